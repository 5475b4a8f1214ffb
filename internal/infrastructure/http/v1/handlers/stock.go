package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/http/v1/dto"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/reports"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service  *stock.Service
	exporter *reports.BalanceExporter
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, exporter *reports.BalanceExporter) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		exporter:    exporter,
	}
}

// GetBalance handles GET /stock/balance
func (h *StockHandler) GetBalance(c *gin.Context) {
	productID, ok := h.parseIDQuery(c, "productId", true)
	if !ok {
		return
	}
	warehouseID, ok := h.parseIDQuery(c, "warehouseId", true)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), *productID, *warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalance(balance))
}

// ListBalances handles GET /stock/balances
func (h *StockHandler) ListBalances(c *gin.Context) {
	filter, ok := h.balanceFilter(c)
	if !ok {
		return
	}

	result, err := h.service.ListBalances(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BalanceResponse, len(result.Items))
	for i, b := range result.Items {
		items[i] = dto.FromBalance(b)
	}

	h.OK(c, dto.ListResponse[dto.BalanceResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// ExportBalances handles GET /stock/balances/export
func (h *StockHandler) ExportBalances(c *gin.Context) {
	filter, ok := h.balanceFilter(c)
	if !ok {
		return
	}

	// Exports walk all pages up to a hard cap instead of honoring limit/offset.
	const exportCap = 10000
	filter.Limit = 500
	filter.Offset = 0

	var balances []stock.Balance
	for {
		result, err := h.service.ListBalances(c.Request.Context(), filter)
		if err != nil {
			h.Error(c, err)
			return
		}
		balances = append(balances, result.Items...)
		if len(result.Items) < filter.Limit || len(balances) >= exportCap {
			break
		}
		filter.Offset += filter.Limit
	}

	filename := h.exporter.Filename(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)

	if err := h.exporter.Export(c.Writer, balances); err != nil {
		h.Error(c, apperror.NewInternal(err))
	}
}

// SetMinStock handles PUT /stock/min-stock
func (h *StockHandler) SetMinStock(c *gin.Context) {
	var req dto.SetMinStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}
	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	if err := h.service.SetMinStock(c.Request.Context(), productID, warehouseID, req.MinStock); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "minimum stock updated")
}

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	filter := stock.MovementFilter{}
	filter.OrderBy = c.Query("orderBy")
	filter.Limit = h.ParseIntQuery(c, "limit", 0)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	var ok bool
	if filter.ProductID, ok = h.parseIDQuery(c, "productId", false); !ok {
		return
	}
	if filter.WarehouseID, ok = h.parseIDQuery(c, "warehouseId", false); !ok {
		return
	}
	if filter.TransferID, ok = h.parseIDQuery(c, "transferId", false); !ok {
		return
	}

	if typeStr := c.Query("type"); typeStr != "" {
		mt := stock.MovementType(typeStr)
		if !mt.Valid() {
			h.Error(c, apperror.NewValidation("unknown movement type").WithDetail("type", typeStr))
			return
		}
		filter.Type = &mt
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
			return
		}
		filter.FromDate = &parsed
	}
	if toStr := c.Query("toDate"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
			return
		}
		filter.ToDate = &parsed
	}

	result, err := h.service.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, len(result.Items))
	for i, m := range result.Items {
		items[i] = dto.FromMovement(m)
	}

	h.OK(c, dto.ListResponse[dto.MovementResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// ApplyMovement handles POST /stock/movements
func (h *StockHandler) ApplyMovement(c *gin.Context) {
	var req dto.ApplyMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movementType := stock.MovementType(req.Type)
	if !movementType.Valid() {
		h.Error(c, apperror.NewValidation("unknown movement type").WithDetail("type", req.Type))
		return
	}
	// Transfer movements are owned by the transfer workflow.
	if movementType.IsTransfer() {
		h.Error(c, apperror.NewValidation("transfer movements are recorded by posting a transfer").
			WithDetail("type", req.Type))
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}
	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	movement, err := h.service.Apply(c.Request.Context(), stock.MovementInput{
		Type:        movementType,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    req.Quantity,
		UserID:      h.GetUserID(c),
		Notes:       req.Notes,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromMovement(movement))
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balance", h.GetBalance)
	rg.GET("/balances", h.ListBalances)
	rg.GET("/balances/export", h.ExportBalances)
	rg.PUT("/min-stock", h.SetMinStock)
	rg.GET("/movements", h.ListMovements)
	rg.POST("/movements", h.ApplyMovement)
}

func (h *StockHandler) balanceFilter(c *gin.Context) (stock.BalanceFilter, bool) {
	filter := stock.BalanceFilter{
		LowOnly:     c.Query("lowOnly") == "true",
		ExcludeZero: c.Query("excludeZero") == "true",
	}
	filter.OrderBy = c.Query("orderBy")
	filter.Limit = h.ParseIntQuery(c, "limit", 0)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	var ok bool
	if filter.ProductID, ok = h.parseIDQuery(c, "productId", false); !ok {
		return filter, false
	}
	if filter.WarehouseID, ok = h.parseIDQuery(c, "warehouseId", false); !ok {
		return filter, false
	}
	return filter, true
}

// parseIDQuery parses a UUID query parameter. Returns ok=false after
// registering a validation error; a missing optional parameter yields nil.
func (h *StockHandler) parseIDQuery(c *gin.Context, key string, required bool) (*id.ID, bool) {
	val := c.Query(key)
	if val == "" {
		if required {
			h.Error(c, apperror.NewValidation(key+" is required"))
			return nil, false
		}
		return nil, true
	}
	parsed, err := id.Parse(val)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+" format"))
		return nil, false
	}
	return &parsed, true
}
