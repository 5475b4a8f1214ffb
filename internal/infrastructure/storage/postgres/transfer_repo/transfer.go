// Package transfer_repo provides the PostgreSQL implementation of the
// transfer document repository.
package transfer_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/transfer"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/storage/postgres"
)

const (
	transfersTable = "transfers"
	itemsTable     = "transfer_items"
)

var transferColumns = []string{
	"id", "transfer_number", "status",
	"from_warehouse_id", "to_warehouse_id", "notes",
	"created_by_id", "posted_by_id", "posted_at", "cancelled_at",
	"version", "created_at", "updated_at",
}

var itemColumns = []string{"line_id", "line_no", "product_id", "quantity"}

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new transfer document.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	data := postgres.StructToMap(t)
	filtered := make(map[string]any, len(transferColumns))
	for _, col := range transferColumns {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.builder.Insert(transfersTable).SetMap(filtered)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	return nil
}

// Update writes document fields with optimistic locking on version.
func (r *TransferRepo) Update(ctx context.Context, t *transfer.Transfer) error {
	data := postgres.StructToMap(t)

	filtered := make(map[string]any, len(transferColumns))
	for _, col := range transferColumns {
		switch col {
		case "id", "created_at", "created_by_id":
			continue // immutable
		case "version", "updated_at":
			continue // managed by repo
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.builder.Update(transfersTable).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": t.ID}).
		Where(squirrel.Eq{"version": t.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("transfer", t.ID.String())
	}

	t.Version++
	return nil
}

// Delete hard-deletes the document; items follow via FK cascade.
func (r *TransferRepo) Delete(ctx context.Context, transferID id.ID) error {
	q := r.builder.Delete(transfersTable).Where(squirrel.Eq{"id": transferID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("transfer", transferID.String())
	}

	return nil
}

func (r *TransferRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(transferColumns...).From(transfersTable)
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": transferID}), transferID.String())
}

// GetByNumber retrieves a transfer by its document number.
func (r *TransferRepo) GetByNumber(ctx context.Context, number string) (*transfer.Transfer, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"transfer_number": number}), number)
}

// GetForUpdate retrieves a transfer with a row lock.
func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": transferID}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, transferID.String())
}

func (r *TransferRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*transfer.Transfer, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer", key)
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	return &t, nil
}

// GetItems retrieves transfer lines ordered by line number.
func (r *TransferRepo) GetItems(ctx context.Context, transferID id.ID) ([]transfer.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []transfer.Item
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	return items, nil
}

// SaveItems replaces transfer lines. Runs as one batch inside the ambient
// transaction.
func (r *TransferRepo) SaveItems(ctx context.Context, transferID id.ID, items []transfer.Item) error {
	queries := make([]postgres.BatchQuery, 0, len(items)+1)
	queries = append(queries, postgres.BatchQuery{
		SQL:  "DELETE FROM transfer_items WHERE transfer_id = $1",
		Args: []any{transferID},
	})
	for _, item := range items {
		queries = append(queries, postgres.BatchQuery{
			SQL: `INSERT INTO transfer_items (line_id, transfer_id, line_no, product_id, quantity)
			      VALUES ($1, $2, $3, $4, $5)`,
			Args: []any{item.LineID, transferID, item.LineNo, item.ProductID, item.Quantity},
		})
	}

	executor := postgres.NewBatchExecutor(r.txManager)
	if err := executor.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	return nil
}

// List retrieves transfers with filtering.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	result := domain.ListResult[*transfer.Transfer]{
		Items:  []*transfer.Transfer{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.FromWarehouseID != nil {
		q = q.Where(squirrel.Eq{"from_warehouse_id": *filter.FromWarehouseID})
	}
	if filter.ToWarehouseID != nil {
		q = q.Where(squirrel.Eq{"to_warehouse_id": *filter.ToWarehouseID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.DateTo})
	}

	// Count
	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	// Order
	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	// Page
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

func (r *TransferRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(transferColumns))
	for _, col := range transferColumns {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// Ensure interface compliance.
var _ transfer.Repository = (*TransferRepo)(nil)
