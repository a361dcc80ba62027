//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorescue/foodshare/internal/db"
	"github.com/ecorescue/foodshare/internal/repository/postgresql"
	"github.com/ecorescue/foodshare/internal/storage"
)

// Runs against the database configured in .env. Build with -tags integration.
func setUp(t *testing.T) (*storage.Storage, *db.Database) {
	t.Helper()

	database, err := db.NewDb(context.Background())
	require.NoError(t, err)

	_, err = database.Exec(context.Background(),
		"TRUNCATE donations, donation_history, outbox_tasks CASCADE")
	require.NoError(t, err)

	stg := storage.NewStorage(
		database,
		postgresql.NewDonationRepo(database),
		postgresql.NewHistoryRepo(database),
		postgresql.NewOutboxTaskRepo(),
	)
	return stg, database
}

func TestDonationLifecycle(t *testing.T) {
	ctx := context.Background()
	stg, database := setUp(t)
	defer database.GetPool().Close()

	donation, err := stg.Publish(ctx, storage.PublishInput{
		Title:     "Bread",
		Quantity:  "2 units",
		DonorName: "Panadería Pepe",
	})
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAvailable, donation.Status())

	code, err := stg.Reserve(ctx, donation.ID, "Juan Voluntario")
	require.NoError(t, err)
	require.Len(t, code, 4)

	// A second reservation must fail while the first one holds.
	_, err = stg.Reserve(ctx, donation.ID, "Pedro Cliente")
	assert.ErrorIs(t, err, storage.ErrAlreadyReserved)

	// Wrong code leaves the donation reserved.
	completed, err := stg.Complete(ctx, donation.ID, "0000")
	require.NoError(t, err)
	assert.False(t, completed)

	completed, err = stg.Complete(ctx, donation.ID, code)
	require.NoError(t, err)
	assert.True(t, completed)

	// Completed donations leave the active view but stay in history.
	active, err := stg.ListActive(ctx, storage.FilterAll)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := stg.ListHistory(ctx, "Juan Voluntario")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, storage.StatusCompleted, history[0].Status())

	trail, err := stg.GetDonationHistory(ctx, donation.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, string(storage.StatusAvailable), trail[0].Status)
	assert.Equal(t, string(storage.StatusReserved), trail[1].Status)
	assert.Equal(t, string(storage.StatusCompleted), trail[2].Status)
}

func TestSoftRemoveKeepsHistory(t *testing.T) {
	ctx := context.Background()
	stg, database := setUp(t)
	defer database.GetPool().Close()

	donation, err := stg.Publish(ctx, storage.PublishInput{
		Title:     "Soup",
		Quantity:  "5 portions",
		DonorName: "Panadería Pepe",
	})
	require.NoError(t, err)

	require.NoError(t, stg.Remove(ctx, donation.ID, false))

	_, err = stg.GetDonation(ctx, donation.ID)
	assert.True(t, storage.IsNotFound(err))

	trail, err := stg.GetDonationHistory(ctx, donation.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, string(storage.StatusRemoved), trail[1].Status)
}
