package transfer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	appctx "github.com/Valencza/sistem-inventaris-barang/internal/core/context"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/numerator"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/tx"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/audit"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
	"github.com/Valencza/sistem-inventaris-barang/pkg/logger"
)

const auditEntity = "transfer"

// StockEngine is the slice of the stock service the workflow needs.
type StockEngine interface {
	// ApplySet applies movements within the caller's transaction.
	ApplySet(ctx context.Context, inputs []stock.MovementInput) ([]stock.Movement, error)
	// ReverseTransferMovements compensates and deletes a transfer's movements.
	ReverseTransferMovements(ctx context.Context, transferID id.ID) error
	// PurgeTransferMovements deletes a transfer's movements without compensation.
	PurgeTransferMovements(ctx context.Context, transferID id.ID) (int64, error)
}

// Service provides the transfer workflow: create, post, cancel, restore,
// delete. Every state transition runs in one transaction together with its
// stock effects and audit record.
type Service struct {
	repo      Repository
	engine    StockEngine
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
}

// NewService creates a new transfer service.
func NewService(
	repo Repository,
	engine StockEngine,
	gen numerator.Generator,
	txManager tx.Manager,
	auditRec audit.Recorder,
) *Service {
	if auditRec == nil {
		auditRec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		engine:    engine,
		numerator: gen,
		txManager: txManager,
		audit:     auditRec,
	}
}

// ItemInput is one requested transfer line.
type ItemInput struct {
	ProductID id.ID
	Quantity  int64
}

// CreateInput describes a transfer to create.
type CreateInput struct {
	FromWarehouseID id.ID
	ToWarehouseID   id.ID
	Notes           string
	Items           []ItemInput
	// Post posts the transfer in the same transaction that creates it.
	Post bool
}

// Create builds a draft transfer with a generated number. Lines with a
// missing product or non-positive quantity are dropped; a transfer that
// ends up with no lines is rejected.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Transfer, error) {
	actor := appctx.GetUserID(ctx)
	t := New(in.FromWarehouseID, in.ToWarehouseID, in.Notes, actor)
	for _, item := range in.Items {
		if id.IsNil(item.ProductID) || item.Quantity <= 0 {
			continue
		}
		t.AddItem(item.ProductID, item.Quantity)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(t.Items) == 0 {
		return nil, apperror.NewEmptyTransfer()
	}

	number, err := s.numerator.GetNextNumber(ctx, NumberConfig(), &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	t.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		if err := s.repo.SaveItems(ctx, t.ID, t.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		if in.Post {
			if err := s.postLocked(ctx, t, actor); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, audit.Entry{
			Action:   audit.ActionCreate,
			Entity:   auditEntity,
			EntityID: t.ID.String(),
			NewData:  t,
			ActorID:  actor,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer created",
		"id", t.ID,
		"number", t.Number,
		"status", t.Status,
	)
	return t, nil
}

// Post moves the transfer to POSTED and applies its stock movements.
// Allowed from DRAFT and from CANCELLED (re-post); all-or-nothing.
func (s *Service) Post(ctx context.Context, transferID id.ID) (*Transfer, error) {
	var t *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.getForUpdateWithItems(ctx, transferID)
		if err != nil {
			return err
		}

		oldStatus := t.Status
		if err := s.postLocked(ctx, t, appctx.GetUserID(ctx)); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			Action:   audit.ActionPost,
			Entity:   auditEntity,
			EntityID: t.ID.String(),
			OldData:  map[string]any{"status": oldStatus},
			NewData:  map[string]any{"status": t.Status},
			ActorID:  appctx.GetUserID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer posted", "id", t.ID, "number", t.Number)
	return t, nil
}

// postLocked posts a transfer whose row is already locked. Runs within the
// caller's transaction.
func (s *Service) postLocked(ctx context.Context, t *Transfer, actor string) error {
	if err := t.CanPost(); err != nil {
		return err
	}

	// A transfer posted from CANCELLED may carry stale movement rows from
	// an earlier posting; drop them before writing fresh ones.
	if _, err := s.engine.PurgeTransferMovements(ctx, t.ID); err != nil {
		return fmt.Errorf("purge stale movements: %w", err)
	}

	// Sort by product so concurrent posts take balance locks in the same
	// order and cannot deadlock.
	items := make([]Item, len(t.Items))
	copy(items, t.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})

	inputs := make([]stock.MovementInput, 0, 2*len(items))
	for _, item := range items {
		inputs = append(inputs,
			stock.MovementInput{
				Type:        stock.TypeTransferOut,
				ProductID:   item.ProductID,
				WarehouseID: t.FromWarehouseID,
				Quantity:    item.Quantity,
				UserID:      actor,
				Notes:       fmt.Sprintf("Transfer %s", t.Number),
				TransferID:  &t.ID,
			},
			stock.MovementInput{
				Type:        stock.TypeTransferIn,
				ProductID:   item.ProductID,
				WarehouseID: t.ToWarehouseID,
				Quantity:    item.Quantity,
				UserID:      actor,
				Notes:       fmt.Sprintf("Transfer %s", t.Number),
				TransferID:  &t.ID,
			},
		)
	}

	if _, err := s.engine.ApplySet(ctx, inputs); err != nil {
		return err
	}

	t.MarkPosted(actor, time.Now().UTC())
	if err := s.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	return nil
}

// Cancel cancels the transfer. Cancelling a CANCELLED transfer is a no-op;
// cancelling a POSTED one reverses its stock movements first. Fails with
// InsufficientStock when the destination already consumed the goods.
func (s *Service) Cancel(ctx context.Context, transferID id.ID) (*Transfer, error) {
	var t *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.getForUpdateWithItems(ctx, transferID)
		if err != nil {
			return err
		}

		if t.Status == StatusCancelled {
			// Idempotent: repeating cancel changes nothing.
			return nil
		}

		oldStatus := t.Status
		if oldStatus == StatusPosted {
			if err := s.engine.ReverseTransferMovements(ctx, t.ID); err != nil {
				return err
			}
		}

		t.MarkCancelled(time.Now().UTC())
		if err := s.repo.Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action:   audit.ActionCancel,
			Entity:   auditEntity,
			EntityID: t.ID.String(),
			OldData:  map[string]any{"status": oldStatus},
			NewData:  map[string]any{"status": t.Status},
			ActorID:  appctx.GetUserID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer cancelled", "id", t.ID, "number", t.Number)
	return t, nil
}

// RestoreToDraft returns a cancelled transfer to DRAFT, wiping posting
// history so it can be posted again as a fresh document.
func (s *Service) RestoreToDraft(ctx context.Context, transferID id.ID) (*Transfer, error) {
	var t *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.getForUpdateWithItems(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusCancelled {
			return apperror.NewInvalidTransition("restore", string(t.Status))
		}

		t.MarkDraft(time.Now().UTC())
		if err := s.repo.Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action:   audit.ActionRestore,
			Entity:   auditEntity,
			EntityID: t.ID.String(),
			NewData:  map[string]any{"status": t.Status},
			ActorID:  appctx.GetUserID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer restored to draft", "id", t.ID, "number", t.Number)
	return t, nil
}

// Delete removes a cancelled transfer and anything still pointing at it.
func (s *Service) Delete(ctx context.Context, transferID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.getForUpdateWithItems(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusCancelled {
			return apperror.NewInvalidTransition("delete", string(t.Status))
		}

		// Cancelled transfers should have no movements left; purge
		// in case an old posting left rows behind.
		if _, err := s.engine.PurgeTransferMovements(ctx, t.ID); err != nil {
			return fmt.Errorf("purge movements: %w", err)
		}
		if err := s.repo.Delete(ctx, t.ID); err != nil {
			return fmt.Errorf("delete transfer: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action:   audit.ActionDelete,
			Entity:   auditEntity,
			EntityID: t.ID.String(),
			OldData:  t,
			ActorID:  appctx.GetUserID(ctx),
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer deleted", "id", transferID)
	return nil
}

// GetByID retrieves a transfer with items.
func (s *Service) GetByID(ctx context.Context, transferID id.ID) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	t.Items = items
	return t, nil
}

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

func (s *Service) getForUpdateWithItems(ctx context.Context, transferID id.ID) (*Transfer, error) {
	t, err := s.repo.GetForUpdate(ctx, transferID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	t.Items = items
	return t, nil
}
