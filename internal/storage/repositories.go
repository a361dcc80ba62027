package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ecorescue/foodshare/internal/db"
	"github.com/ecorescue/foodshare/internal/repository"
)

type DonationRepository interface {
	Create(ctx context.Context, d *repository.Donation) error
	CreateTx(ctx context.Context, tx db.Tx, d *repository.Donation) error
	GetByID(ctx context.Context, id string) (*repository.Donation, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Donation, error)
	Update(ctx context.Context, d *repository.Donation) error
	UpdateTx(ctx context.Context, tx db.Tx, d *repository.Donation) error
	Delete(ctx context.Context, id string) error
	DeleteTx(ctx context.Context, tx db.Tx, id string) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
	SoftDeleteTx(ctx context.Context, tx db.Tx, id string, deletedAt time.Time) error
	GetActive(ctx context.Context, reservedFilter *bool) ([]*repository.Donation, error)
	GetHistory(ctx context.Context, reservedBy string) ([]*repository.Donation, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *repository.User) error
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
}

type HistoryRepository interface {
	Create(ctx context.Context, entry *repository.HistoryEntry) error
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error
	GetByDonationID(ctx context.Context, donationID string) ([]*repository.HistoryEntry, error)
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit int) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, db db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
}
