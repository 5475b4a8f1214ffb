package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/tx"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/audit"
	"github.com/Valencza/sistem-inventaris-barang/pkg/logger"
)

// Service is the movement engine. Every balance change goes through it so
// that the row lock, the non-negativity check and the movement record stay
// in one place.
type Service struct {
	repo      Repository
	txManager tx.Manager
	audit     audit.Recorder
}

// NewService creates a new stock service.
func NewService(repo Repository, txManager tx.Manager, auditRec audit.Recorder) *Service {
	if auditRec == nil {
		auditRec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		audit:     auditRec,
	}
}

// Apply validates and applies a single manual movement in its own
// transaction, recording it in the audit trail.
func (s *Service) Apply(ctx context.Context, in MovementInput) (Movement, error) {
	var m Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ms, err := s.ApplySet(ctx, []MovementInput{in})
		if err != nil {
			return err
		}
		m = ms[0]
		return s.audit.Record(ctx, audit.Entry{
			Action:   audit.ActionApply,
			Entity:   "stock_movement",
			EntityID: m.ID.String(),
			NewData:  m,
			ActorID:  in.UserID,
		})
	})
	return m, err
}

// ApplySet applies movements in order within the caller's transaction.
// Each movement locks its balance row, checks non-negativity and gets the
// next per-pair sequence number; the rows are then written in one batch.
// Any failure aborts the whole set via transaction rollback.
func (s *Service) ApplySet(ctx context.Context, inputs []MovementInput) ([]Movement, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("movement %d: %w", i, err)
		}
	}

	now := time.Now().UTC()
	movements := make([]Movement, 0, len(inputs))
	for _, in := range inputs {
		bal, err := s.repo.GetBalanceForUpdate(ctx, in.ProductID, in.WarehouseID)
		if err != nil {
			return nil, fmt.Errorf("get balance for %s: %w", in.ProductID, err)
		}

		prev := bal.Quantity
		var next int64
		switch {
		case in.Type.IsInbound():
			next = prev + in.Quantity
		case in.Type.IsOutbound():
			next = prev - in.Quantity
			if next < 0 {
				return nil, apperror.NewInsufficientStock(in.ProductID.String(), in.Quantity, prev)
			}
		default: // ADJUSTMENT sets the absolute balance
			next = in.Quantity
		}

		m := Movement{
			ID:          id.New(),
			Seq:         bal.MovementSeq + 1,
			Type:        in.Type,
			ProductID:   in.ProductID,
			WarehouseID: in.WarehouseID,
			Quantity:    in.Quantity,
			PreviousQty: prev,
			NewQty:      next,
			UserID:      in.UserID,
			Notes:       in.Notes,
			TransferID:  in.TransferID,
			CreatedAt:   now,
		}

		bal.Quantity = next
		bal.MovementSeq = m.Seq
		if err := s.repo.UpdateBalance(ctx, bal); err != nil {
			return nil, fmt.Errorf("update balance: %w", err)
		}
		movements = append(movements, m)
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return nil, fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "applied stock movements", "count", len(movements))
	return movements, nil
}

// ReverseTransferMovements compensates and deletes every movement a
// transfer recorded. Must run inside the caller's transaction.
//
// Compensation is by delta: what TRANSFER_OUT removed comes back, what
// TRANSFER_IN added goes away. If the destination has since consumed the
// received quantity the reversal fails with InsufficientStock and the
// transaction rolls back. No compensating movement rows are written; the
// originals are deleted instead.
func (s *Service) ReverseTransferMovements(ctx context.Context, transferID id.ID) error {
	movements, err := s.repo.GetMovementsByTransfer(ctx, transferID)
	if err != nil {
		return fmt.Errorf("get movements: %w", err)
	}

	for _, m := range movements {
		bal, err := s.repo.GetBalanceForUpdate(ctx, m.ProductID, m.WarehouseID)
		if err != nil {
			return fmt.Errorf("get balance for %s: %w", m.ProductID, err)
		}

		var next int64
		switch {
		case m.Type.IsInbound():
			next = bal.Quantity - m.Quantity
			if next < 0 {
				return apperror.NewInsufficientStock(m.ProductID.String(), m.Quantity, bal.Quantity)
			}
		case m.Type.IsOutbound():
			next = bal.Quantity + m.Quantity
		default:
			return apperror.NewValidation(fmt.Sprintf("cannot reverse %s movement by delta", m.Type))
		}

		bal.Quantity = next
		if err := s.repo.UpdateBalance(ctx, bal); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
	}

	deleted, err := s.repo.DeleteMovementsByTransfer(ctx, transferID)
	if err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}

	logger.Info(ctx, "reversed transfer movements",
		"transfer_id", transferID,
		"count", deleted,
	)
	return nil
}

// PurgeTransferMovements deletes a transfer's movements without touching
// balances. Runs before re-posting and when a cancelled transfer is
// deleted.
func (s *Service) PurgeTransferMovements(ctx context.Context, transferID id.ID) (int64, error) {
	return s.repo.DeleteMovementsByTransfer(ctx, transferID)
}

// GetBalance returns the balance for a pair; pairs that never moved come
// back as zero-value balances with the IDs filled in.
func (s *Service) GetBalance(ctx context.Context, productID, warehouseID id.ID) (Balance, error) {
	if id.IsNil(productID) || id.IsNil(warehouseID) {
		return Balance{}, apperror.NewValidation("product_id and warehouse_id are required")
	}
	return s.repo.GetBalance(ctx, productID, warehouseID)
}

// ListBalances returns a filtered page of balances plus the total count.
func (s *Service) ListBalances(ctx context.Context, filter BalanceFilter) (domain.ListResult[Balance], error) {
	filter.Normalize()
	return s.repo.ListBalances(ctx, filter)
}

// ListMovements returns a filtered page of movements plus the total count.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[Movement], error) {
	filter.Normalize()
	return s.repo.ListMovements(ctx, filter)
}

// SetMinStock updates the low-stock threshold for a pair.
func (s *Service) SetMinStock(ctx context.Context, productID, warehouseID id.ID, minStock int64) error {
	if id.IsNil(productID) || id.IsNil(warehouseID) {
		return apperror.NewValidation("product_id and warehouse_id are required")
	}
	if minStock < 0 {
		return apperror.NewValidation("min_stock must not be negative")
	}
	return s.repo.SetMinStock(ctx, productID, warehouseID, minStock)
}
