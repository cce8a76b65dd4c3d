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

func TestRateRepository_CurrentRate(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRateRepository(testDB.DB)
	ctx := context.Background()

	t.Run("no rate configured", func(t *testing.T) {
		_, err := repo.CurrentRate(ctx, models.CurrencyWL, time.Now())
		assert.ErrorIs(t, err, models.ErrNoRateConfigured)
	})

	t.Run("latest row wins", func(t *testing.T) {
		first, err := repo.Insert(ctx, models.CurrencyWL, 1000, "admin:fdy")
		require.NoError(t, err)
		second, err := repo.Insert(ctx, models.CurrencyWL, 1100, "admin:fdy")
		require.NoError(t, err)

		current, err := repo.CurrentRate(ctx, models.CurrencyWL, time.Now())
		require.NoError(t, err)
		assert.Equal(t, second.ID, current.ID)
		assert.EqualValues(t, 1100, current.Rate)

		// The older row is still there, untouched
		asOfFirst, err := repo.CurrentRate(ctx, models.CurrencyWL, first.EffectiveFrom)
		require.NoError(t, err)
		assert.Equal(t, first.ID, asOfFirst.ID)
		assert.EqualValues(t, 1000, asOfFirst.Rate)
	})

	t.Run("currencies have independent rates", func(t *testing.T) {
		_, err := repo.Insert(ctx, models.CurrencyDL, 100000, "admin:fdy")
		require.NoError(t, err)

		dl, err := repo.CurrentRate(ctx, models.CurrencyDL, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 100000, dl.Rate)

		_, err = repo.CurrentRate(ctx, models.CurrencyBGL, time.Now())
		assert.ErrorIs(t, err, models.ErrNoRateConfigured)
	})

	t.Run("before the first row there is no rate", func(t *testing.T) {
		rows, err := repo.History(ctx, models.CurrencyWL, 1)
		require.NoError(t, err)
		require.NotEmpty(t, rows)

		_, err = repo.CurrentRate(ctx, models.CurrencyWL, rows[0].EffectiveFrom.Add(-24*time.Hour))
		assert.ErrorIs(t, err, models.ErrNoRateConfigured)
	})
}

func TestRateRepository_History(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRateRepository(testDB.DB)
	ctx := context.Background()

	for _, rate := range []int64{1000, 1100, 1200} {
		_, err := repo.Insert(ctx, models.CurrencyWL, rate, "admin:fdy")
		require.NoError(t, err)
	}

	history, err := repo.History(ctx, models.CurrencyWL, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Newest first
	assert.EqualValues(t, 1200, history[0].Rate)
	assert.EqualValues(t, 1000, history[2].Rate)

	limited, err := repo.History(ctx, models.CurrencyWL, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
