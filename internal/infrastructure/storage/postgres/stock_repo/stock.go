// Package stock_repo provides the PostgreSQL implementation of the stock
// ledger repository.
package stock_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/storage/postgres"
)

const (
	movementsTable = "stock_movements"
	balancesTable  = "stock_balances"
)

var movementColumns = []string{
	"id", "seq", "type", "product_id", "warehouse_id",
	"quantity", "previous_qty", "new_qty",
	"user_id", "notes", "transfer_id", "created_at",
}

var balanceColumns = []string{
	"product_id", "warehouse_id", "quantity", "min_stock",
	"movement_seq", "created_at", "updated_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetBalance returns current balance for product+warehouse.
func (r *StockRepo) GetBalance(ctx context.Context, productID, warehouseID id.ID) (stock.Balance, error) {
	var balance stock.Balance

	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return balance, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			// Pair never moved: report a zero balance instead of an error.
			return stock.Balance{
				ProductID:   productID,
				WarehouseID: warehouseID,
			}, nil
		}
		return balance, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// GetBalanceForUpdate locks the balance row, creating it lazily.
// The insert is a no-op when the row exists; the following SELECT takes
// the row lock either way.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, productID, warehouseID id.ID) (stock.Balance, error) {
	var balance stock.Balance

	querier := r.txManager.GetQuerier(ctx)

	_, err := querier.Exec(ctx, `
		INSERT INTO stock_balances (product_id, warehouse_id, quantity, min_stock, movement_seq, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, now(), now())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING
	`, productID, warehouseID)
	if err != nil {
		return balance, fmt.Errorf("ensure balance row: %w", err)
	}

	err = pgxscan.Get(ctx, querier, &balance, `
		SELECT product_id, warehouse_id, quantity, min_stock, movement_seq, created_at, updated_at
		FROM stock_balances
		WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE
	`, productID, warehouseID)
	if err != nil {
		return balance, fmt.Errorf("get balance for update: %w", err)
	}

	return balance, nil
}

// UpdateBalance writes quantity and movement_seq of a locked row.
func (r *StockRepo) UpdateBalance(ctx context.Context, b stock.Balance) error {
	q := r.builder.Update(balancesTable).
		Set("quantity", b.Quantity).
		Set("movement_seq", b.MovementSeq).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{
			"product_id":   b.ProductID,
			"warehouse_id": b.WarehouseID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance row %s/%s vanished", b.ProductID, b.WarehouseID)
	}

	return nil
}

// SetMinStock updates the low-stock threshold, creating the row lazily.
func (r *StockRepo) SetMinStock(ctx context.Context, productID, warehouseID id.ID, minStock int64) error {
	querier := r.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, `
		INSERT INTO stock_balances (product_id, warehouse_id, quantity, min_stock, movement_seq, created_at, updated_at)
		VALUES ($1, $2, 0, $3, 0, now(), now())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET min_stock = EXCLUDED.min_stock, updated_at = now()
	`, productID, warehouseID, minStock)
	if err != nil {
		return fmt.Errorf("set min stock: %w", err)
	}
	return nil
}

// ListBalances returns a page of balances plus the total count.
func (r *StockRepo) ListBalances(ctx context.Context, filter stock.BalanceFilter) (domain.ListResult[stock.Balance], error) {
	result := domain.ListResult[stock.Balance]{
		Items:  []stock.Balance{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	base := r.builder.Select(balanceColumns...).From(balancesTable)
	base = applyBalanceFilter(base, filter)

	countQ := r.builder.Select("COUNT(*)").From(balancesTable)
	countQ = applyBalanceFilter(countQ, filter)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count balances: %w", err)
	}

	base = base.OrderBy("warehouse_id", "product_id").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	sql, args, err := base.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select balances: %w", err)
	}

	return result, nil
}

func applyBalanceFilter(q squirrel.SelectBuilder, filter stock.BalanceFilter) squirrel.SelectBuilder {
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.LowOnly {
		q = q.Where("min_stock > 0 AND quantity <= min_stock")
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}
	return q
}

// CreateMovements batch inserts movements.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementValues(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	// Fallback: non-transactional insert (slower). Prefer calling CreateMovements within tx.
	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementValues(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

func movementValues(m stock.Movement) []any {
	return []any{
		m.ID, m.Seq, m.Type, m.ProductID, m.WarehouseID,
		m.Quantity, m.PreviousQty, m.NewQty,
		m.UserID, m.Notes, m.TransferID, m.CreatedAt,
	}
}

// ListMovements returns a page of movements, newest first, plus the count.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) (domain.ListResult[stock.Movement], error) {
	result := domain.ListResult[stock.Movement]{
		Items:  []stock.Movement{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	base := r.builder.Select(movementColumns...).From(movementsTable)
	base = applyMovementFilter(base, filter)

	countQ := r.builder.Select("COUNT(*)").From(movementsTable)
	countQ = applyMovementFilter(countQ, filter)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	base = base.OrderBy("created_at DESC", "seq DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	sql, args, err := base.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select movements: %w", err)
	}

	return result, nil
}

func applyMovementFilter(q squirrel.SelectBuilder, filter stock.MovementFilter) squirrel.SelectBuilder {
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.TransferID != nil {
		q = q.Where(squirrel.Eq{"transfer_id": *filter.TransferID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}
	return q
}

// GetMovementsByTransfer retrieves all movements recorded by a transfer.
func (r *StockRepo) GetMovementsByTransfer(ctx context.Context, transferID id.ID) ([]stock.Movement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("created_at", "seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []stock.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return movements, nil
}

// DeleteMovementsByTransfer removes all movements recorded by a transfer.
func (r *StockRepo) DeleteMovementsByTransfer(ctx context.Context, transferID id.ID) (int64, error) {
	q := r.builder.Delete(movementsTable).
		Where(squirrel.Eq{"transfer_id": transferID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete movements: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
