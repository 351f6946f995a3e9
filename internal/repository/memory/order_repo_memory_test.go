package memory

import (
	"context"
	"testing"
	"time"

	"order-ledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepo_SaveAssignsSequentialIDs(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		o := &domain.Order{Name: "Alice", Sizes: domain.SizeCounts{domain.SizeS: 1}, TotalItems: 1}
		require.NoError(t, repo.Save(ctx, o))
		assert.Equal(t, uint64(i), o.ID)
	}
}

func TestOrderRepo_ReadsAreIsolatedCopies(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	o := &domain.Order{Name: "Alice", Sizes: domain.SizeCounts{domain.SizeS: 1}, TotalItems: 1}
	require.NoError(t, repo.Save(ctx, o))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	got.Sizes[domain.SizeS] = 99
	got.Paid = true

	again, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Sizes[domain.SizeS])
	assert.False(t, again.Paid)
}

func TestOrderRepo_FindAllOrdering(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Minute), base, base.Add(2 * time.Minute)}
	for _, ts := range times {
		o := &domain.Order{Name: "Alice", Sizes: domain.SizeCounts{domain.SizeS: 1}, TotalItems: 1, CreatedAt: ts}
		require.NoError(t, repo.Save(ctx, o))
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	// Newest first; equal timestamps fall back to insertion order.
	assert.Equal(t, []uint64{4, 2, 3, 1}, []uint64{all[0].ID, all[1].ID, all[2].ID, all[3].ID})
}

func TestOrderRepo_UpdatePaidUnknownID(t *testing.T) {
	repo := NewOrderRepository()

	got, err := repo.UpdatePaid(context.Background(), 42, true)
	require.NoError(t, err)
	assert.Nil(t, got)
}
