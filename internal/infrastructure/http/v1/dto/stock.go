package dto

import (
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
)

// --- Response DTOs ---

// BalanceResponse represents a stock balance in API responses.
type BalanceResponse struct {
	ProductID   string    `json:"productId"`
	WarehouseID string    `json:"warehouseId"`
	Quantity    int64     `json:"quantity"`
	MinStock    int64     `json:"minStock"`
	IsLow       bool      `json:"isLow"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FromBalance converts a balance to a response DTO.
func FromBalance(b stock.Balance) BalanceResponse {
	return BalanceResponse{
		ProductID:   b.ProductID.String(),
		WarehouseID: b.WarehouseID.String(),
		Quantity:    b.Quantity,
		MinStock:    b.MinStock,
		IsLow:       b.IsLow(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// MovementResponse represents a stock movement in API responses.
type MovementResponse struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Type        string    `json:"type"`
	ProductID   string    `json:"productId"`
	WarehouseID string    `json:"warehouseId"`
	Quantity    int64     `json:"quantity"`
	PreviousQty int64     `json:"previousQty"`
	NewQty      int64     `json:"newQty"`
	UserID      string    `json:"userId,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	TransferID  *string   `json:"transferId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromMovement converts a movement to a response DTO.
func FromMovement(m stock.Movement) MovementResponse {
	resp := MovementResponse{
		ID:          m.ID.String(),
		Seq:         m.Seq,
		Type:        string(m.Type),
		ProductID:   m.ProductID.String(),
		WarehouseID: m.WarehouseID.String(),
		Quantity:    m.Quantity,
		PreviousQty: m.PreviousQty,
		NewQty:      m.NewQty,
		UserID:      m.UserID,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
	}
	if m.TransferID != nil {
		s := m.TransferID.String()
		resp.TransferID = &s
	}
	return resp
}

// --- Request DTOs ---

// ApplyMovementRequest records a manual stock movement.
// TRANSFER_IN / TRANSFER_OUT are reserved for the transfer workflow.
type ApplyMovementRequest struct {
	Type        string `json:"type" binding:"required"`
	ProductID   string `json:"productId" binding:"required"`
	WarehouseID string `json:"warehouseId" binding:"required"`
	Quantity    int64  `json:"quantity"`
	Notes       string `json:"notes"`
}

// SetMinStockRequest updates the low-stock threshold for a pair.
type SetMinStockRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	WarehouseID string `json:"warehouseId" binding:"required"`
	MinStock    int64  `json:"minStock" binding:"min=0"`
}
