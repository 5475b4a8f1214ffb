package dto

import (
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/domain/transfer"
)

// --- Request DTOs ---

// TransferItemRequest is one requested transfer line.
type TransferItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

// CreateTransferRequest creates a transfer document.
type CreateTransferRequest struct {
	FromWarehouseID string                `json:"fromWarehouseId" binding:"required"`
	ToWarehouseID   string                `json:"toWarehouseId" binding:"required"`
	Notes           string                `json:"notes"`
	Items           []TransferItemRequest `json:"items" binding:"required"`
	// Post posts the transfer in the same transaction that creates it.
	Post bool `json:"post"`
}

// --- Response DTOs ---

// TransferItemResponse is one transfer line.
type TransferItemResponse struct {
	LineID    string `json:"lineId"`
	LineNo    int    `json:"lineNo"`
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// TransferResponse represents a transfer document in API responses.
type TransferResponse struct {
	ID              string                 `json:"id"`
	TransferNumber  string                 `json:"transferNumber"`
	Status          string                 `json:"status"`
	FromWarehouseID string                 `json:"fromWarehouseId"`
	ToWarehouseID   string                 `json:"toWarehouseId"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedByID     string                 `json:"createdById"`
	PostedByID      *string                `json:"postedById,omitempty"`
	PostedAt        *time.Time             `json:"postedAt,omitempty"`
	CancelledAt     *time.Time             `json:"cancelledAt,omitempty"`
	Version         int                    `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	Items           []TransferItemResponse `json:"items"`
}

// FromTransfer converts a transfer to a response DTO.
func FromTransfer(t *transfer.Transfer) TransferResponse {
	items := make([]TransferItemResponse, len(t.Items))
	for i, item := range t.Items {
		items[i] = TransferItemResponse{
			LineID:    item.LineID.String(),
			LineNo:    item.LineNo,
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
		}
	}

	return TransferResponse{
		ID:              t.ID.String(),
		TransferNumber:  t.Number,
		Status:          string(t.Status),
		FromWarehouseID: t.FromWarehouseID.String(),
		ToWarehouseID:   t.ToWarehouseID.String(),
		Notes:           t.Notes,
		CreatedByID:     t.CreatedByID,
		PostedByID:      t.PostedByID,
		PostedAt:        t.PostedAt,
		CancelledAt:     t.CancelledAt,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Items:           items,
	}
}
