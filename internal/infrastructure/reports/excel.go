// Package reports renders stock data into downloadable report files.
package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
)

// BalanceExporter writes stock balances as an Excel workbook.
type BalanceExporter struct{}

// NewBalanceExporter creates a new balance exporter.
func NewBalanceExporter() *BalanceExporter {
	return &BalanceExporter{}
}

var balanceHeaders = []string{
	"Product ID", "Warehouse ID", "Quantity", "Min Stock", "Low Stock", "Updated At",
}

// Export writes balances to w as an xlsx workbook with one sheet.
func (e *BalanceExporter) Export(w io.Writer, balances []stock.Balance) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Stock Balances"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDDDDD"}},
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for i, header := range balanceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(balanceHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", endCell, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, b := range balances {
		row := i + 2
		low := ""
		if b.IsLow() {
			low = "YES"
		}
		values := []any{
			b.ProductID.String(),
			b.WarehouseID.String(),
			b.Quantity,
			b.MinStock,
			low,
			b.UpdatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	// UUID columns need the width, numeric ones do not.
	if err := f.SetColWidth(sheet, "A", "B", 38); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename returns a timestamped download name.
func (e *BalanceExporter) Filename(now time.Time) string {
	return fmt.Sprintf("stock-balances-%s.xlsx", now.Format("2006-01-02"))
}
