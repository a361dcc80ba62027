package postgresql

import (
	"context"
	"fmt"

	"github.com/ecorescue/foodshare/internal/db"
	"github.com/ecorescue/foodshare/internal/repository"
	"github.com/ecorescue/foodshare/internal/storage"
)

type HistoryRepo struct {
	db db.DB
}

func NewHistoryRepo(db db.DB) storage.HistoryRepository {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Create(ctx context.Context, entry *repository.HistoryEntry) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO donation_history (donation_id, status, changed_at)
        VALUES ($1, $2, $3)
    `, entry.DonationID, entry.Status, entry.ChangedAt)
	return err
}

func (r *HistoryRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO donation_history (donation_id, status, changed_at)
        VALUES ($1, $2, $3)
    `, entry.DonationID, entry.Status, entry.ChangedAt)
	return err
}

func (r *HistoryRepo) GetByDonationID(ctx context.Context, donationID string) ([]*repository.HistoryEntry, error) {
	var entries []*repository.HistoryEntry
	err := r.db.Select(ctx, &entries, `
        SELECT * FROM donation_history
        WHERE donation_id = $1
        ORDER BY changed_at ASC
    `, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donation history: %w", err)
	}
	return entries, nil
}
