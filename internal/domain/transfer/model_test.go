package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
)

func TestNew(t *testing.T) {
	from, to := id.New(), id.New()
	tr := New(from, to, "restock", "user-1")

	assert.Equal(t, StatusDraft, tr.Status)
	assert.Equal(t, from, tr.FromWarehouseID)
	assert.Equal(t, to, tr.ToWarehouseID)
	assert.Equal(t, "user-1", tr.CreatedByID)
	assert.Equal(t, 1, tr.Version)
	assert.Empty(t, tr.Items)
}

func TestAddItem_LineNumbering(t *testing.T) {
	tr := New(id.New(), id.New(), "", "")
	tr.AddItem(id.New(), 5)
	tr.AddItem(id.New(), 3)

	require.Len(t, tr.Items, 2)
	assert.Equal(t, 1, tr.Items[0].LineNo)
	assert.Equal(t, 2, tr.Items[1].LineNo)
	assert.NotEqual(t, tr.Items[0].LineID, tr.Items[1].LineID)
}

func TestValidate(t *testing.T) {
	wh := id.New()

	tests := []struct {
		name    string
		build   func() *Transfer
		wantErr bool
	}{
		{
			"valid",
			func() *Transfer {
				tr := New(id.New(), id.New(), "", "u")
				tr.AddItem(id.New(), 1)
				return tr
			},
			false,
		},
		{
			"missing source",
			func() *Transfer { return New(id.Nil(), id.New(), "", "u") },
			true,
		},
		{
			"missing destination",
			func() *Transfer { return New(id.New(), id.Nil(), "", "u") },
			true,
		},
		{
			"same warehouse",
			func() *Transfer { return New(wh, wh, "", "u") },
			true,
		},
		{
			"nil product",
			func() *Transfer {
				tr := New(id.New(), id.New(), "", "u")
				tr.AddItem(id.Nil(), 1)
				return tr
			},
			true,
		},
		{
			"zero quantity",
			func() *Transfer {
				tr := New(id.New(), id.New(), "", "u")
				tr.AddItem(id.New(), 0)
				return tr
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanPost(t *testing.T) {
	tr := New(id.New(), id.New(), "", "u")
	tr.AddItem(id.New(), 2)

	// DRAFT can post
	assert.NoError(t, tr.CanPost())

	// POSTED cannot post again
	tr.Status = StatusPosted
	err := tr.CanPost()
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	// CANCELLED can re-post
	tr.Status = StatusCancelled
	assert.NoError(t, tr.CanPost())

	// No items blocks posting
	tr.Status = StatusDraft
	tr.Items = nil
	err = tr.CanPost()
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeEmptyTransfer))
}

func TestStateTransitions(t *testing.T) {
	tr := New(id.New(), id.New(), "", "u")
	tr.AddItem(id.New(), 2)
	now := time.Now().UTC()

	tr.MarkPosted("actor-1", now)
	assert.Equal(t, StatusPosted, tr.Status)
	require.NotNil(t, tr.PostedByID)
	assert.Equal(t, "actor-1", *tr.PostedByID)
	assert.Equal(t, &now, tr.PostedAt)
	assert.Nil(t, tr.CancelledAt)

	// Cancel keeps posting history
	later := now.Add(time.Hour)
	tr.MarkCancelled(later)
	assert.Equal(t, StatusCancelled, tr.Status)
	assert.Equal(t, &later, tr.CancelledAt)
	assert.NotNil(t, tr.PostedAt)
	assert.NotNil(t, tr.PostedByID)

	// Restore wipes it
	tr.MarkDraft(later.Add(time.Hour))
	assert.Equal(t, StatusDraft, tr.Status)
	assert.Nil(t, tr.PostedAt)
	assert.Nil(t, tr.PostedByID)
	assert.Nil(t, tr.CancelledAt)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusPosted.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("ARCHIVED").Valid())
}
