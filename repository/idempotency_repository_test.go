package repository

import (
	"context"
	"testing"
	"time"

	"lockbank/models"
	"lockbank/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepository_InsertAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewIdempotencyRepository(testDB.DB)
	ctx := context.Background()

	record := &models.IdempotencyRecord{
		Key:       "dep-1",
		AccountID: 1,
		Operation: models.OperationDeposit,
		Result:    []byte(`{"new_balance":150}`),
	}

	t.Run("unused key returns nil", func(t *testing.T) {
		got, err := repo.Get(ctx, "dep-1", time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("insert and read back", func(t *testing.T) {
		err := repo.Insert(ctx, record)
		require.NoError(t, err)
		assert.False(t, record.CreatedAt.IsZero())

		got, err := repo.Get(ctx, "dep-1", time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record.Key, got.Key)
		assert.Equal(t, record.Operation, got.Operation)
		assert.JSONEq(t, `{"new_balance":150}`, string(got.Result))
	})

	t.Run("duplicate key", func(t *testing.T) {
		err := repo.Insert(ctx, &models.IdempotencyRecord{
			Key:       "dep-1",
			AccountID: 2,
			Operation: models.OperationWithdraw,
			Result:    []byte(`{}`),
		})
		assert.ErrorIs(t, err, models.ErrDuplicateRequest)
	})

	t.Run("expired key is invisible", func(t *testing.T) {
		got, err := repo.Get(ctx, "dep-1", time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestIdempotencyRepository_PurgeOlderThan(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewIdempotencyRepository(testDB.DB)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		err := repo.Insert(ctx, &models.IdempotencyRecord{
			Key: key, AccountID: 1, Operation: models.OperationDeposit, Result: []byte(`{}`),
		})
		require.NoError(t, err)
	}

	// Nothing is old yet
	purged, err := repo.PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 0, purged)

	// Everything is older than a future cutoff
	purged, err = repo.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, purged)

	got, err := repo.Get(ctx, "a", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}
