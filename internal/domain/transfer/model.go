// Package transfer provides the warehouse transfer document and its
// DRAFT / POSTED / CANCELLED workflow.
package transfer

import (
	"fmt"
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
)

// Status is the transfer document status.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusCancelled:
		return true
	}
	return false
}

// Transfer moves stock between two warehouses. Items are fixed at creation;
// changing them means deleting the cancelled document and creating a new one.
type Transfer struct {
	ID     id.ID  `db:"id" json:"id"`
	Number string `db:"transfer_number" json:"transferNumber"`
	Status Status `db:"status" json:"status"`

	FromWarehouseID id.ID  `db:"from_warehouse_id" json:"fromWarehouseId"`
	ToWarehouseID   id.ID  `db:"to_warehouse_id" json:"toWarehouseId"`
	Notes           string `db:"notes" json:"notes,omitempty"`

	CreatedByID string     `db:"created_by_id" json:"createdById"`
	PostedByID  *string    `db:"posted_by_id" json:"postedById,omitempty"`
	PostedAt    *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	// Version is the optimistic locking counter.
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Table part: transferred goods
	Items []Item `db:"-" json:"items"`
}

// Item is one transfer line.
type Item struct {
	LineID    id.ID `db:"line_id" json:"lineId"`
	LineNo    int   `db:"line_no" json:"lineNo"`
	ProductID id.ID `db:"product_id" json:"productId"`
	Quantity  int64 `db:"quantity" json:"quantity"`
}

// New creates a draft transfer.
func New(fromWarehouseID, toWarehouseID id.ID, notes, createdByID string) *Transfer {
	now := time.Now().UTC()
	return &Transfer{
		ID:              id.New(),
		Status:          StatusDraft,
		FromWarehouseID: fromWarehouseID,
		ToWarehouseID:   toWarehouseID,
		Notes:           notes,
		CreatedByID:     createdByID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]Item, 0),
	}
}

// AddItem appends a line.
func (t *Transfer) AddItem(productID id.ID, quantity int64) {
	t.Items = append(t.Items, Item{
		LineID:    id.New(),
		LineNo:    len(t.Items) + 1,
		ProductID: productID,
		Quantity:  quantity,
	})
}

// Validate checks document fields and lines.
func (t *Transfer) Validate() error {
	if id.IsNil(t.FromWarehouseID) {
		return apperror.NewValidation("source warehouse is required").
			WithDetail("field", "fromWarehouseId")
	}
	if id.IsNil(t.ToWarehouseID) {
		return apperror.NewValidation("destination warehouse is required").
			WithDetail("field", "toWarehouseId")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return apperror.NewValidation("source and destination warehouses must differ")
	}
	for i, item := range t.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// --- State transitions ---
// DRAFT --post--> POSTED --cancel--> CANCELLED --restore--> DRAFT
// CANCELLED --post--> POSTED, DRAFT --cancel--> CANCELLED,
// delete only from CANCELLED.

// CanPost reports whether the transfer may be posted from its current
// status. Posting is allowed from DRAFT and from CANCELLED (re-post).
func (t *Transfer) CanPost() error {
	if t.Status == StatusPosted {
		return apperror.NewInvalidTransition("post", string(t.Status)).
			WithDetail("transfer_number", t.Number)
	}
	if len(t.Items) == 0 {
		return apperror.NewEmptyTransfer().WithDetail("transfer_id", t.ID)
	}
	return nil
}

// MarkPosted applies the post transition.
func (t *Transfer) MarkPosted(actorID string, now time.Time) {
	t.Status = StatusPosted
	t.PostedByID = &actorID
	t.PostedAt = &now
	t.CancelledAt = nil
	t.UpdatedAt = now
}

// MarkCancelled applies the cancel transition. PostedAt and PostedByID are
// retained so the trail shows the document was once posted.
func (t *Transfer) MarkCancelled(now time.Time) {
	t.Status = StatusCancelled
	t.CancelledAt = &now
	t.UpdatedAt = now
}

// MarkDraft applies the restore transition, wiping posting history.
func (t *Transfer) MarkDraft(now time.Time) {
	t.Status = StatusDraft
	t.PostedByID = nil
	t.PostedAt = nil
	t.CancelledAt = nil
	t.UpdatedAt = now
}

func (t *Transfer) String() string {
	return fmt.Sprintf("Transfer(%s %s %s)", t.ID, t.Number, t.Status)
}
