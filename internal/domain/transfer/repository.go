package transfer

import (
	"context"
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
)

// Repository defines storage operations for transfer documents.
type Repository interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, transferID id.ID) (*Transfer, error)
	GetByNumber(ctx context.Context, number string) (*Transfer, error)

	// GetForUpdate locks the document row; concurrent workflow operations
	// on the same transfer serialize here. Must run inside a transaction.
	GetForUpdate(ctx context.Context, transferID id.ID) (*Transfer, error)

	// Update writes document fields with optimistic locking on version.
	Update(ctx context.Context, t *Transfer) error

	// Delete hard-deletes the document; items go with it (FK cascade).
	Delete(ctx context.Context, transferID id.ID) error

	GetItems(ctx context.Context, transferID id.ID) ([]Item, error)
	SaveItems(ctx context.Context, transferID id.ID, items []Item) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error)
}

// ListFilter for filtering transfers.
type ListFilter struct {
	domain.ListFilter

	Status          *Status
	FromWarehouseID *id.ID
	ToWarehouseID   *id.ID
	DateFrom        *time.Time
	DateTo          *time.Time
}
