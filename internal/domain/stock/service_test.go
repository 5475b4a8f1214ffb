package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain"
)

// --- In-memory fakes ---

type memRepo struct {
	balances  map[string]Balance
	movements []Movement
}

func newMemRepo() *memRepo {
	return &memRepo{balances: make(map[string]Balance)}
}

func pairKey(productID, warehouseID id.ID) string {
	return productID.String() + "|" + warehouseID.String()
}

func (r *memRepo) GetBalance(_ context.Context, productID, warehouseID id.ID) (Balance, error) {
	if b, ok := r.balances[pairKey(productID, warehouseID)]; ok {
		return b, nil
	}
	return Balance{ProductID: productID, WarehouseID: warehouseID}, nil
}

func (r *memRepo) GetBalanceForUpdate(ctx context.Context, productID, warehouseID id.ID) (Balance, error) {
	key := pairKey(productID, warehouseID)
	if _, ok := r.balances[key]; !ok {
		r.balances[key] = Balance{ProductID: productID, WarehouseID: warehouseID}
	}
	return r.balances[key], nil
}

func (r *memRepo) UpdateBalance(_ context.Context, b Balance) error {
	r.balances[pairKey(b.ProductID, b.WarehouseID)] = b
	return nil
}

func (r *memRepo) SetMinStock(_ context.Context, productID, warehouseID id.ID, minStock int64) error {
	key := pairKey(productID, warehouseID)
	b, ok := r.balances[key]
	if !ok {
		b = Balance{ProductID: productID, WarehouseID: warehouseID}
	}
	b.MinStock = minStock
	r.balances[key] = b
	return nil
}

func (r *memRepo) ListBalances(_ context.Context, filter BalanceFilter) (domain.ListResult[Balance], error) {
	result := domain.ListResult[Balance]{Limit: filter.Limit, Offset: filter.Offset}
	for _, b := range r.balances {
		if filter.LowOnly && !b.IsLow() {
			continue
		}
		if filter.ExcludeZero && b.Quantity == 0 {
			continue
		}
		result.Items = append(result.Items, b)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memRepo) CreateMovements(_ context.Context, movements []Movement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memRepo) ListMovements(_ context.Context, filter MovementFilter) (domain.ListResult[Movement], error) {
	result := domain.ListResult[Movement]{Limit: filter.Limit, Offset: filter.Offset}
	for _, m := range r.movements {
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		result.Items = append(result.Items, m)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memRepo) GetMovementsByTransfer(_ context.Context, transferID id.ID) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.TransferID != nil && *m.TransferID == transferID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteMovementsByTransfer(_ context.Context, transferID id.ID) (int64, error) {
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

func (r *memRepo) snapshot() *memRepo {
	snap := newMemRepo()
	for k, v := range r.balances {
		snap.balances[k] = v
	}
	snap.movements = append([]Movement(nil), r.movements...)
	return snap
}

func (r *memRepo) restore(snap *memRepo) {
	r.balances = snap.balances
	r.movements = snap.movements
}

// memTxManager rolls the repo back to its pre-transaction state on error,
// mirroring what a real transaction would do.
type memTxManager struct {
	repo *memRepo
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.restore(snap)
		return err
	}
	return nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, &memTxManager{repo: repo}, nil), repo
}

// --- Tests ---

func TestApply_CreatesBalanceLazily(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	productID, warehouseID := id.New(), id.New()

	m, err := svc.Apply(ctx, MovementInput{
		Type:        TypeIn,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    10,
		UserID:      "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), m.PreviousQty)
	assert.Equal(t, int64(10), m.NewQty)
	assert.Equal(t, int64(1), m.Seq)

	bal, err := svc.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal.Quantity)
	assert.Len(t, repo.movements, 1)
}

func TestApply_InsufficientStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	productID, warehouseID := id.New(), id.New()

	_, err := svc.Apply(ctx, MovementInput{
		Type: TypeIn, ProductID: productID, WarehouseID: warehouseID, Quantity: 3,
	})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, MovementInput{
		Type: TypeOut, ProductID: productID, WarehouseID: warehouseID, Quantity: 5,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(5), appErr.Details["requested"])
	assert.Equal(t, int64(3), appErr.Details["available"])

	// Failed movement leaves no trace
	bal, err := svc.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Quantity)
	assert.Len(t, repo.movements, 1)
}

func TestApply_OutToExactlyZero(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	productID, warehouseID := id.New(), id.New()

	_, err := svc.Apply(ctx, MovementInput{
		Type: TypeIn, ProductID: productID, WarehouseID: warehouseID, Quantity: 4,
	})
	require.NoError(t, err)

	m, err := svc.Apply(ctx, MovementInput{
		Type: TypeOut, ProductID: productID, WarehouseID: warehouseID, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.NewQty)
}

func TestApply_AdjustmentSetsAbsolute(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	productID, warehouseID := id.New(), id.New()

	_, err := svc.Apply(ctx, MovementInput{
		Type: TypeIn, ProductID: productID, WarehouseID: warehouseID, Quantity: 7,
	})
	require.NoError(t, err)

	m, err := svc.Apply(ctx, MovementInput{
		Type: TypeAdjustment, ProductID: productID, WarehouseID: warehouseID, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.PreviousQty)
	assert.Equal(t, int64(4), m.NewQty)

	// Adjustment down to zero is allowed
	m, err = svc.Apply(ctx, MovementInput{
		Type: TypeAdjustment, ProductID: productID, WarehouseID: warehouseID, Quantity: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.NewQty)
}

func TestApply_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		input MovementInput
	}{
		{"unknown type", MovementInput{Type: "BOGUS", ProductID: id.New(), WarehouseID: id.New(), Quantity: 1}},
		{"missing product", MovementInput{Type: TypeIn, WarehouseID: id.New(), Quantity: 1}},
		{"missing warehouse", MovementInput{Type: TypeIn, ProductID: id.New(), Quantity: 1}},
		{"zero quantity", MovementInput{Type: TypeIn, ProductID: id.New(), WarehouseID: id.New(), Quantity: 0}},
		{"negative quantity", MovementInput{Type: TypeOut, ProductID: id.New(), WarehouseID: id.New(), Quantity: -2}},
		{"negative adjustment", MovementInput{Type: TypeAdjustment, ProductID: id.New(), WarehouseID: id.New(), Quantity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Apply(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
		})
	}
}

func TestApply_SequenceAndChain(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	productID, warehouseID := id.New(), id.New()

	quantities := []int64{5, 3, 2}
	var prev int64
	for i, q := range quantities {
		m, err := svc.Apply(ctx, MovementInput{
			Type: TypeIn, ProductID: productID, WarehouseID: warehouseID, Quantity: q,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), m.Seq)
		assert.Equal(t, prev, m.PreviousQty)
		assert.Equal(t, prev+q, m.NewQty)
		prev = m.NewQty
	}
}

func TestApplySet_AllOrNothing(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	okProduct, badProduct, warehouseID := id.New(), id.New(), id.New()

	_, err := svc.Apply(ctx, MovementInput{
		Type: TypeIn, ProductID: okProduct, WarehouseID: warehouseID, Quantity: 10,
	})
	require.NoError(t, err)

	txm := &memTxManager{repo: repo}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.ApplySet(ctx, []MovementInput{
			{Type: TypeOut, ProductID: okProduct, WarehouseID: warehouseID, Quantity: 5},
			{Type: TypeOut, ProductID: badProduct, WarehouseID: warehouseID, Quantity: 1},
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// First leg rolled back with the second
	bal, err := svc.GetBalance(ctx, okProduct, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal.Quantity)
	assert.Len(t, repo.movements, 1)
}

func TestReverseTransferMovements(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	transferID := id.New()

	_, err := svc.Apply(ctx, MovementInput{
		Type: TypeIn, ProductID: productID, WarehouseID: fromWH, Quantity: 10,
	})
	require.NoError(t, err)

	txm := &memTxManager{repo: repo}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.ApplySet(ctx, []MovementInput{
			{Type: TypeTransferOut, ProductID: productID, WarehouseID: fromWH, Quantity: 6, TransferID: &transferID},
			{Type: TypeTransferIn, ProductID: productID, WarehouseID: toWH, Quantity: 6, TransferID: &transferID},
		})
		return err
	})
	require.NoError(t, err)

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return svc.ReverseTransferMovements(ctx, transferID)
	})
	require.NoError(t, err)

	fromBal, _ := svc.GetBalance(ctx, productID, fromWH)
	toBal, _ := svc.GetBalance(ctx, productID, toWH)
	assert.Equal(t, int64(10), fromBal.Quantity)
	assert.Equal(t, int64(0), toBal.Quantity)

	left, err := repo.GetMovementsByTransfer(ctx, transferID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestReverseTransferMovements_DestinationConsumed(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	productID, fromWH, toWH := id.New(), id.New(), id.New()
	transferID := id.New()

	_, err := svc.Apply(ctx, MovementInput{
		Type: TypeIn, ProductID: productID, WarehouseID: fromWH, Quantity: 10,
	})
	require.NoError(t, err)

	txm := &memTxManager{repo: repo}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.ApplySet(ctx, []MovementInput{
			{Type: TypeTransferOut, ProductID: productID, WarehouseID: fromWH, Quantity: 6, TransferID: &transferID},
			{Type: TypeTransferIn, ProductID: productID, WarehouseID: toWH, Quantity: 6, TransferID: &transferID},
		})
		return err
	})
	require.NoError(t, err)

	// Destination ships 4 of the 6 received
	_, err = svc.Apply(ctx, MovementInput{
		Type: TypeOut, ProductID: productID, WarehouseID: toWH, Quantity: 4,
	})
	require.NoError(t, err)

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return svc.ReverseTransferMovements(ctx, transferID)
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Reversal rolled back entirely
	fromBal, _ := svc.GetBalance(ctx, productID, fromWH)
	toBal, _ := svc.GetBalance(ctx, productID, toWH)
	assert.Equal(t, int64(4), fromBal.Quantity)
	assert.Equal(t, int64(2), toBal.Quantity)
}

func TestSetMinStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	productID, warehouseID := id.New(), id.New()

	require.NoError(t, svc.SetMinStock(ctx, productID, warehouseID, 5))

	bal, err := svc.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal.MinStock)
	assert.True(t, bal.IsLow())

	err = svc.SetMinStock(ctx, productID, warehouseID, -1)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestBalanceIsLow(t *testing.T) {
	assert.False(t, Balance{Quantity: 0, MinStock: 0}.IsLow())
	assert.True(t, Balance{Quantity: 5, MinStock: 5}.IsLow())
	assert.True(t, Balance{Quantity: 2, MinStock: 5}.IsLow())
	assert.False(t, Balance{Quantity: 6, MinStock: 5}.IsLow())
}
