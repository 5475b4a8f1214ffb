package stock

import (
	"context"
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
)

// Repository defines storage operations for the stock ledger.
type Repository interface {
	// Balance operations

	// GetBalance returns the current balance for product+warehouse.
	// Pairs that never moved yield a zero-value balance, not an error.
	GetBalance(ctx context.Context, productID, warehouseID id.ID) (Balance, error)

	// GetBalanceForUpdate locks the balance row for the rest of the
	// transaction, creating it lazily at quantity zero. Must be called
	// inside a transaction.
	GetBalanceForUpdate(ctx context.Context, productID, warehouseID id.ID) (Balance, error)

	// UpdateBalance writes quantity and movement_seq of a locked row.
	UpdateBalance(ctx context.Context, b Balance) error

	// SetMinStock updates the low-stock threshold, creating the balance
	// row lazily when the pair never moved.
	SetMinStock(ctx context.Context, productID, warehouseID id.ID, minStock int64) error

	// ListBalances returns a page of balances plus the total count.
	ListBalances(ctx context.Context, filter BalanceFilter) (domain.ListResult[Balance], error)

	// Movement operations

	// CreateMovements batch inserts movement rows (used during posting).
	CreateMovements(ctx context.Context, movements []Movement) error

	// ListMovements returns a page of movements, newest first, plus the
	// total count.
	ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[Movement], error)

	// GetMovementsByTransfer returns all movements recorded by a transfer.
	GetMovementsByTransfer(ctx context.Context, transferID id.ID) ([]Movement, error)

	// DeleteMovementsByTransfer removes all movements recorded by a
	// transfer and reports how many rows went away.
	DeleteMovementsByTransfer(ctx context.Context, transferID id.ID) (int64, error)
}

// BalanceFilter for filtering balance queries.
type BalanceFilter struct {
	domain.ListFilter

	ProductID   *id.ID
	WarehouseID *id.ID
	// LowOnly keeps rows with quantity <= min_stock and min_stock > 0.
	LowOnly     bool
	ExcludeZero bool
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	domain.ListFilter

	ProductID   *id.ID
	WarehouseID *id.ID
	Type        *MovementType
	TransferID  *id.ID
	FromDate    *time.Time
	ToDate      *time.Time
}
