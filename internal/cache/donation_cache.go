package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ecorescue/foodshare/internal/metrics"
	"github.com/ecorescue/foodshare/internal/repository"
)

type DonationLister interface {
	GetActive(ctx context.Context, reservedFilter *bool) ([]*repository.Donation, error)
}

// DonationCache keeps the active (non-completed, non-deleted) donations in
// memory for cheap reads. Completed or removed donations are evicted on Set.
type DonationCache struct {
	mu    sync.RWMutex
	cache map[string]*repository.Donation
	repo  DonationLister
}

func NewDonationCache(repo DonationLister) *DonationCache {
	return &DonationCache{
		cache: make(map[string]*repository.Donation),
		repo:  repo,
	}
}

// LoadInitialData warms the cache from the repository at startup.
func (c *DonationCache) LoadInitialData(ctx context.Context) error {
	donations, err := c.repo.GetActive(ctx, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, donation := range donations {
		donationCopy := *donation
		c.cache[donation.ID] = &donationCopy
	}
	metrics.ActiveDonationCacheItems.Set(float64(len(c.cache)))
	zap.L().Info("active donation cache warmed", zap.Int("items", len(c.cache)))
	return nil
}

func (c *DonationCache) Get(donationID string) (*repository.Donation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	donation, found := c.cache[donationID]
	if !found {
		return nil, false
	}
	donationCopy := *donation
	return &donationCopy, true
}

func (c *DonationCache) Set(donation *repository.Donation) {
	if !isActive(donation) {
		c.Delete(donation.ID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	donationCopy := *donation
	c.cache[donation.ID] = &donationCopy
	metrics.ActiveDonationCacheItems.Set(float64(len(c.cache)))
}

func (c *DonationCache) Delete(donationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[donationID]; found {
		delete(c.cache, donationID)
		metrics.ActiveDonationCacheItems.Set(float64(len(c.cache)))
	}
}

func isActive(d *repository.Donation) bool {
	return !d.IsCompleted && d.DeletedAt == nil
}
