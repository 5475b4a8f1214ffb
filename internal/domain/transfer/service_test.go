package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	appctx "github.com/Valencza/sistem-inventaris-barang/internal/core/context"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/numerator"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/audit"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/stock"
)

// --- In-memory stock repository ---

type memStockRepo struct {
	balances  map[string]stock.Balance
	movements []stock.Movement
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{balances: make(map[string]stock.Balance)}
}

func stockKey(productID, warehouseID id.ID) string {
	return productID.String() + "|" + warehouseID.String()
}

func (r *memStockRepo) GetBalance(_ context.Context, productID, warehouseID id.ID) (stock.Balance, error) {
	if b, ok := r.balances[stockKey(productID, warehouseID)]; ok {
		return b, nil
	}
	return stock.Balance{ProductID: productID, WarehouseID: warehouseID}, nil
}

func (r *memStockRepo) GetBalanceForUpdate(_ context.Context, productID, warehouseID id.ID) (stock.Balance, error) {
	key := stockKey(productID, warehouseID)
	if _, ok := r.balances[key]; !ok {
		r.balances[key] = stock.Balance{ProductID: productID, WarehouseID: warehouseID}
	}
	return r.balances[key], nil
}

func (r *memStockRepo) UpdateBalance(_ context.Context, b stock.Balance) error {
	r.balances[stockKey(b.ProductID, b.WarehouseID)] = b
	return nil
}

func (r *memStockRepo) SetMinStock(_ context.Context, productID, warehouseID id.ID, minStock int64) error {
	key := stockKey(productID, warehouseID)
	b := r.balances[key]
	b.ProductID, b.WarehouseID, b.MinStock = productID, warehouseID, minStock
	r.balances[key] = b
	return nil
}

func (r *memStockRepo) ListBalances(_ context.Context, filter stock.BalanceFilter) (domain.ListResult[stock.Balance], error) {
	result := domain.ListResult[stock.Balance]{Limit: filter.Limit, Offset: filter.Offset}
	for _, b := range r.balances {
		result.Items = append(result.Items, b)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memStockRepo) CreateMovements(_ context.Context, movements []stock.Movement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memStockRepo) ListMovements(_ context.Context, filter stock.MovementFilter) (domain.ListResult[stock.Movement], error) {
	result := domain.ListResult[stock.Movement]{Limit: filter.Limit, Offset: filter.Offset}
	result.Items = append(result.Items, r.movements...)
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memStockRepo) GetMovementsByTransfer(_ context.Context, transferID id.ID) ([]stock.Movement, error) {
	var out []stock.Movement
	for _, m := range r.movements {
		if m.TransferID != nil && *m.TransferID == transferID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memStockRepo) DeleteMovementsByTransfer(_ context.Context, transferID id.ID) (int64, error) {
	kept := r.movements[:0]
	var deleted int64
	for _, m := range r.movements {
		if m.TransferID != nil && *m.TransferID == transferID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.movements = kept
	return deleted, nil
}

// --- In-memory transfer repository ---

type memTransferRepo struct {
	transfers map[id.ID]Transfer
	items     map[id.ID][]Item
}

func newMemTransferRepo() *memTransferRepo {
	return &memTransferRepo{
		transfers: make(map[id.ID]Transfer),
		items:     make(map[id.ID][]Item),
	}
}

func (r *memTransferRepo) Create(_ context.Context, t *Transfer) error {
	stored := *t
	stored.Items = nil
	r.transfers[t.ID] = stored
	return nil
}

func (r *memTransferRepo) GetByID(_ context.Context, transferID id.ID) (*Transfer, error) {
	t, ok := r.transfers[transferID]
	if !ok {
		return nil, apperror.NewNotFound("transfer", transferID.String())
	}
	out := t
	return &out, nil
}

func (r *memTransferRepo) GetByNumber(_ context.Context, number string) (*Transfer, error) {
	for _, t := range r.transfers {
		if t.Number == number {
			out := t
			return &out, nil
		}
	}
	return nil, apperror.NewNotFound("transfer", number)
}

func (r *memTransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return r.GetByID(ctx, transferID)
}

func (r *memTransferRepo) Update(_ context.Context, t *Transfer) error {
	stored, ok := r.transfers[t.ID]
	if !ok {
		return apperror.NewNotFound("transfer", t.ID.String())
	}
	if stored.Version != t.Version {
		return apperror.NewConcurrentModification("transfer", t.ID.String())
	}
	updated := *t
	updated.Version++
	updated.Items = nil
	r.transfers[t.ID] = updated
	t.Version = updated.Version
	return nil
}

func (r *memTransferRepo) Delete(_ context.Context, transferID id.ID) error {
	if _, ok := r.transfers[transferID]; !ok {
		return apperror.NewNotFound("transfer", transferID.String())
	}
	delete(r.transfers, transferID)
	delete(r.items, transferID)
	return nil
}

func (r *memTransferRepo) GetItems(_ context.Context, transferID id.ID) ([]Item, error) {
	return append([]Item(nil), r.items[transferID]...), nil
}

func (r *memTransferRepo) SaveItems(_ context.Context, transferID id.ID, items []Item) error {
	r.items[transferID] = append([]Item(nil), items...)
	return nil
}

func (r *memTransferRepo) List(_ context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	result := domain.ListResult[*Transfer]{Limit: filter.Limit, Offset: filter.Offset}
	for _, t := range r.transfers {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out := t
		result.Items = append(result.Items, &out)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

// --- Shared test fixtures ---

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

// memTxManager snapshots both repositories and restores them when fn fails,
// mirroring a real transaction rollback.
type memTxManager struct {
	stockRepo    *memStockRepo
	transferRepo *memTransferRepo
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	stockSnap := &memStockRepo{
		balances:  make(map[string]stock.Balance, len(m.stockRepo.balances)),
		movements: append([]stock.Movement(nil), m.stockRepo.movements...),
	}
	for k, v := range m.stockRepo.balances {
		stockSnap.balances[k] = v
	}
	transferSnap := newMemTransferRepo()
	for k, v := range m.transferRepo.transfers {
		transferSnap.transfers[k] = v
	}
	for k, v := range m.transferRepo.items {
		transferSnap.items[k] = append([]Item(nil), v...)
	}

	if err := fn(ctx); err != nil {
		m.stockRepo.balances = stockSnap.balances
		m.stockRepo.movements = stockSnap.movements
		m.transferRepo.transfers = transferSnap.transfers
		m.transferRepo.items = transferSnap.items
		return err
	}
	return nil
}

type fixture struct {
	service      *Service
	stockService *stock.Service
	stockRepo    *memStockRepo
	transferRepo *memTransferRepo
	audit        *recordingAudit
}

func newFixture() *fixture {
	stockRepo := newMemStockRepo()
	transferRepo := newMemTransferRepo()
	txm := &memTxManager{stockRepo: stockRepo, transferRepo: transferRepo}
	stockService := stock.NewService(stockRepo, txm, nil)
	auditRec := &recordingAudit{}

	var seq int64
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			seq++
			return fmt.Sprintf("TRF-2026-%04d", seq), nil
		},
	}

	return &fixture{
		service:      NewService(transferRepo, stockService, gen, txm, auditRec),
		stockService: stockService,
		stockRepo:    stockRepo,
		transferRepo: transferRepo,
		audit:        auditRec,
	}
}

func userCtx(userID string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID})
}

func (f *fixture) seedStock(t *testing.T, productID, warehouseID id.ID, qty int64) {
	t.Helper()
	_, err := f.stockService.Apply(context.Background(), stock.MovementInput{
		Type:        stock.TypeIn,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, productID, warehouseID id.ID) int64 {
	t.Helper()
	b, err := f.stockService.GetBalance(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return b.Quantity
}

// --- Tests ---

func TestCreate_Draft(t *testing.T) {
	f := newFixture()
	ctx := userCtx("user-1")
	productID := id.New()

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Notes:           "restock branch",
		Items:           []ItemInput{{ProductID: productID, Quantity: 5}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, tr.Status)
	assert.Equal(t, "TRF-2026-0001", tr.Number)
	assert.Equal(t, "user-1", tr.CreatedByID)
	require.Len(t, tr.Items, 1)
	assert.Equal(t, productID, tr.Items[0].ProductID)

	// Draft moves nothing
	assert.Empty(t, f.stockRepo.movements)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionCreate, f.audit.entries[0].Action)
	assert.Equal(t, "user-1", f.audit.entries[0].ActorID)
}

func TestCreate_FiltersInvalidLines(t *testing.T) {
	f := newFixture()
	productID := id.New()

	tr, err := f.service.Create(userCtx("u"), CreateInput{
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Items: []ItemInput{
			{ProductID: id.Nil(), Quantity: 5},
			{ProductID: productID, Quantity: 0},
			{ProductID: productID, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, tr.Items, 1)
	assert.Equal(t, int64(3), tr.Items[0].Quantity)
}

func TestCreate_EmptyAfterFiltering(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(userCtx("u"), CreateInput{
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Items:           []ItemInput{{ProductID: id.Nil(), Quantity: 5}},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeEmptyTransfer))
}

func TestCreate_SameWarehouse(t *testing.T) {
	f := newFixture()
	wh := id.New()

	_, err := f.service.Create(userCtx("u"), CreateInput{
		FromWarehouseID: wh,
		ToWarehouseID:   wh,
		Items:           []ItemInput{{ProductID: id.New(), Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreate_NumbersAreSequential(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")

	for i := 1; i <= 3; i++ {
		tr, err := f.service.Create(ctx, CreateInput{
			FromWarehouseID: id.New(),
			ToWarehouseID:   id.New(),
			Items:           []ItemInput{{ProductID: id.New(), Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("TRF-2026-%04d", i), tr.Number)
	}
}

func TestPost_MovesStock(t *testing.T) {
	f := newFixture()
	ctx := userCtx("poster")
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 10)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 6}},
	})
	require.NoError(t, err)

	posted, err := f.service.Post(ctx, tr.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedByID)
	assert.Equal(t, "poster", *posted.PostedByID)
	assert.NotNil(t, posted.PostedAt)

	assert.Equal(t, int64(4), f.quantity(t, productID, fromWH))
	assert.Equal(t, int64(6), f.quantity(t, productID, toWH))

	// One OUT and one IN per item, both tied to the transfer
	movements, err := f.stockRepo.GetMovementsByTransfer(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, stock.TypeTransferOut, movements[0].Type)
	assert.Equal(t, stock.TypeTransferIn, movements[1].Type)
}

func TestPost_InsufficientStock_AllOrNothing(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")
	richProduct, poorProduct, fromWH, toWH := id.New(), id.New(), id.New(), id.New()
	f.seedStock(t, richProduct, fromWH, 100)
	f.seedStock(t, poorProduct, fromWH, 2)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items: []ItemInput{
			{ProductID: richProduct, Quantity: 50},
			{ProductID: poorProduct, Quantity: 5},
		},
	})
	require.NoError(t, err)

	_, err = f.service.Post(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Nothing moved, status unchanged
	assert.Equal(t, int64(100), f.quantity(t, richProduct, fromWH))
	assert.Equal(t, int64(0), f.quantity(t, richProduct, toWH))

	got, err := f.service.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)

	movements, _ := f.stockRepo.GetMovementsByTransfer(context.Background(), tr.ID)
	assert.Empty(t, movements)
}

func TestPost_AlreadyPosted(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 10)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 1}},
		Post:            true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, tr.Status)

	_, err = f.service.Post(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))
}

func TestCancel_PostedRestoresBalances(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 10)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 6}},
		Post:            true,
	})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, tr.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	// Posting history stays on the cancelled document
	assert.NotNil(t, cancelled.PostedAt)

	assert.Equal(t, int64(10), f.quantity(t, productID, fromWH))
	assert.Equal(t, int64(0), f.quantity(t, productID, toWH))

	movements, _ := f.stockRepo.GetMovementsByTransfer(context.Background(), tr.ID)
	assert.Empty(t, movements)
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Items:           []ItemInput{{ProductID: id.New(), Quantity: 1}},
	})
	require.NoError(t, err)

	first, err := f.service.Cancel(ctx, tr.ID)
	require.NoError(t, err)
	firstCancelledAt := first.CancelledAt

	second, err := f.service.Cancel(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, second.Status)
	assert.Equal(t, firstCancelledAt, second.CancelledAt)
}

func TestCancel_DestinationConsumed(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 10)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 6}},
		Post:            true,
	})
	require.NoError(t, err)

	// Destination ships 4 of the 6 received
	_, err = f.stockService.Apply(ctx, stock.MovementInput{
		Type: stock.TypeOut, ProductID: productID, WarehouseID: toWH, Quantity: 4,
	})
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Cancellation rolled back; document stays posted
	got, err := f.service.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, got.Status)
	assert.Equal(t, int64(4), f.quantity(t, productID, fromWH))
	assert.Equal(t, int64(2), f.quantity(t, productID, toWH))
}

func TestRestoreToDraft(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Items:           []ItemInput{{ProductID: id.New(), Quantity: 1}},
	})
	require.NoError(t, err)

	// Only CANCELLED restores
	_, err = f.service.RestoreToDraft(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	_, err = f.service.Cancel(ctx, tr.ID)
	require.NoError(t, err)

	restored, err := f.service.RestoreToDraft(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, restored.Status)
	assert.Nil(t, restored.PostedAt)
	assert.Nil(t, restored.PostedByID)
	assert.Nil(t, restored.CancelledAt)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 10)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 2}},
		Post:            true,
	})
	require.NoError(t, err)

	// POSTED cannot be deleted
	err = f.service.Delete(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	_, err = f.service.Cancel(ctx, tr.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, tr.ID))

	_, err = f.service.GetByID(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRepost_FromCancelled(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 10)

	tr, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 6}},
		Post:            true,
	})
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.quantity(t, productID, fromWH))

	reposted, err := f.service.Post(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, reposted.Status)
	assert.Nil(t, reposted.CancelledAt)

	assert.Equal(t, int64(4), f.quantity(t, productID, fromWH))
	assert.Equal(t, int64(6), f.quantity(t, productID, toWH))

	movements, _ := f.stockRepo.GetMovementsByTransfer(context.Background(), tr.ID)
	assert.Len(t, movements, 2)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetByID(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestList_FilterByStatus(t *testing.T) {
	f := newFixture()
	ctx := userCtx("u")

	draft, err := f.service.Create(ctx, CreateInput{
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Items:           []ItemInput{{ProductID: id.New(), Quantity: 1}},
	})
	require.NoError(t, err)

	productID, fromWH, toWH := id.New(), id.New(), id.New()
	f.seedStock(t, productID, fromWH, 5)
	_, err = f.service.Create(ctx, CreateInput{
		FromWarehouseID: fromWH,
		ToWarehouseID:   toWH,
		Items:           []ItemInput{{ProductID: productID, Quantity: 1}},
		Post:            true,
	})
	require.NoError(t, err)

	status := StatusDraft
	result, err := f.service.List(ctx, ListFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, draft.ID, result.Items[0].ID)
}
