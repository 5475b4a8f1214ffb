// Package stock provides the stock ledger: per-warehouse balances and the
// immutable movement history behind them.
package stock

import (
	"fmt"
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	TypeIn          MovementType = "IN"
	TypeOut         MovementType = "OUT"
	TypeAdjustment  MovementType = "ADJUSTMENT"
	TypeTransferIn  MovementType = "TRANSFER_IN"
	TypeTransferOut MovementType = "TRANSFER_OUT"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case TypeIn, TypeOut, TypeAdjustment, TypeTransferIn, TypeTransferOut:
		return true
	}
	return false
}

// IsInbound reports whether t increases the balance.
func (t MovementType) IsInbound() bool {
	return t == TypeIn || t == TypeTransferIn
}

// IsOutbound reports whether t decreases the balance.
func (t MovementType) IsOutbound() bool {
	return t == TypeOut || t == TypeTransferOut
}

// IsTransfer reports whether t is produced by the transfer workflow.
func (t MovementType) IsTransfer() bool {
	return t == TypeTransferIn || t == TypeTransferOut
}

// Balance is the current quantity of a product in a warehouse.
// Rows are created lazily on first movement; quantity never goes below zero.
// MovementSeq is the last per-pair movement sequence number issued under
// this row's lock.
type Balance struct {
	ProductID   id.ID     `db:"product_id" json:"productId"`
	WarehouseID id.ID     `db:"warehouse_id" json:"warehouseId"`
	Quantity    int64     `db:"quantity" json:"quantity"`
	MinStock    int64     `db:"min_stock" json:"minStock"`
	MovementSeq int64     `db:"movement_seq" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// IsLow reports whether the balance is at or below its threshold.
// A zero threshold disables the check.
func (b Balance) IsLow() bool {
	return b.MinStock > 0 && b.Quantity <= b.MinStock
}

// Movement is one immutable ledger entry. PreviousQty and NewQty snapshot
// the balance around the change; Seq orders movements within a
// (product, warehouse) pair without relying on timestamps.
type Movement struct {
	ID          id.ID        `db:"id" json:"id"`
	Seq         int64        `db:"seq" json:"seq"`
	Type        MovementType `db:"type" json:"type"`
	ProductID   id.ID        `db:"product_id" json:"productId"`
	WarehouseID id.ID        `db:"warehouse_id" json:"warehouseId"`
	Quantity    int64        `db:"quantity" json:"quantity"`
	PreviousQty int64        `db:"previous_qty" json:"previousQty"`
	NewQty      int64        `db:"new_qty" json:"newQty"`
	UserID      string       `db:"user_id" json:"userId"`
	Notes       string       `db:"notes" json:"notes,omitempty"`
	TransferID  *id.ID       `db:"transfer_id" json:"transferId,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

// MovementInput describes a movement to apply.
type MovementInput struct {
	Type        MovementType
	ProductID   id.ID
	WarehouseID id.ID
	// Quantity is the delta magnitude; for ADJUSTMENT it is the absolute
	// target balance.
	Quantity   int64
	UserID     string
	Notes      string
	TransferID *id.ID
}

// Validate checks the input before it reaches the ledger.
func (in MovementInput) Validate() error {
	if !in.Type.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", in.Type))
	}
	if id.IsNil(in.ProductID) {
		return apperror.NewValidation("product_id is required")
	}
	if id.IsNil(in.WarehouseID) {
		return apperror.NewValidation("warehouse_id is required")
	}
	if in.Type == TypeAdjustment {
		if in.Quantity < 0 {
			return apperror.NewValidation("adjustment quantity must not be negative")
		}
		return nil
	}
	if in.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	return nil
}
