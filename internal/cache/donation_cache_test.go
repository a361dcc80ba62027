package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ecorescue/foodshare/internal/repository"
	mock_storage "github.com/ecorescue/foodshare/internal/storage/mocks"
)

func TestDonationCache_LoadInitialData(t *testing.T) {
	ctx := context.Background()

	t.Run("warms from the repository", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := mock_storage.NewMockDonationRepository(ctrl)

		mockRepo.EXPECT().GetActive(gomock.Any(), nil).
			Return([]*repository.Donation{
				{ID: "donation-1", Title: "Bread"},
				{ID: "donation-2", Title: "Soup"},
			}, nil)

		c := NewDonationCache(mockRepo)
		require.NoError(t, c.LoadInitialData(ctx))

		donation, found := c.Get("donation-1")
		require.True(t, found)
		assert.Equal(t, "Bread", donation.Title)
	})

	t.Run("propagates repository failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := mock_storage.NewMockDonationRepository(ctrl)

		mockRepo.EXPECT().GetActive(gomock.Any(), nil).
			Return(nil, errors.New("database error"))

		c := NewDonationCache(mockRepo)
		assert.Error(t, c.LoadInitialData(ctx))
	})
}

func TestDonationCache_SetAndGet(t *testing.T) {
	c := NewDonationCache(nil)

	c.Set(&repository.Donation{ID: "donation-1", Title: "Bread"})

	donation, found := c.Get("donation-1")
	require.True(t, found)
	assert.Equal(t, "Bread", donation.Title)

	// The cache hands out copies, not its own entries.
	donation.Title = "mutated"
	again, found := c.Get("donation-1")
	require.True(t, found)
	assert.Equal(t, "Bread", again.Title)
}

func TestDonationCache_SetEvictsInactive(t *testing.T) {
	c := NewDonationCache(nil)

	c.Set(&repository.Donation{ID: "donation-1", Title: "Bread"})

	c.Set(&repository.Donation{ID: "donation-1", Title: "Bread", IsCompleted: true})
	_, found := c.Get("donation-1")
	assert.False(t, found)

	deletedAt := time.Now()
	c.Set(&repository.Donation{ID: "donation-2", DeletedAt: &deletedAt})
	_, found = c.Get("donation-2")
	assert.False(t, found)
}

func TestDonationCache_Delete(t *testing.T) {
	c := NewDonationCache(nil)

	c.Set(&repository.Donation{ID: "donation-1"})
	c.Delete("donation-1")

	_, found := c.Get("donation-1")
	assert.False(t, found)

	// Deleting an absent entry is a no-op.
	c.Delete("donation-1")
}
