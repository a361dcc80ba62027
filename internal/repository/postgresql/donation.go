package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/ecorescue/foodshare/internal/db"
	"github.com/ecorescue/foodshare/internal/repository"
	"github.com/ecorescue/foodshare/internal/storage"
)

type DonationRepo struct {
	db db.DB
}

func NewDonationRepo(db db.DB) storage.DonationRepository {
	return &DonationRepo{db: db}
}

func (r *DonationRepo) Create(ctx context.Context, d *repository.Donation) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO donations (
            id, title, description, quantity, image_url, donor_name,
            is_reserved, reserved_by, pickup_code, is_completed, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, d.ID, d.Title, d.Description, d.Quantity, d.ImageURL, d.DonorName,
		d.IsReserved, d.ReservedBy, d.PickupCode, d.IsCompleted, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DonationRepo) CreateTx(ctx context.Context, tx db.Tx, d *repository.Donation) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO donations (
            id, title, description, quantity, image_url, donor_name,
            is_reserved, reserved_by, pickup_code, is_completed, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, d.ID, d.Title, d.Description, d.Quantity, d.ImageURL, d.DonorName,
		d.IsReserved, d.ReservedBy, d.PickupCode, d.IsCompleted, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DonationRepo) GetByID(ctx context.Context, id string) (*repository.Donation, error) {
	var d repository.Donation
	err := r.db.Get(ctx, &d, "SELECT * FROM donations WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetByIDTx locks the row for the duration of the transaction so reserve and
// complete transitions cannot race each other.
func (r *DonationRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Donation, error) {
	var d repository.Donation
	err := tx.Get(ctx, &d, "SELECT * FROM donations WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DonationRepo) Update(ctx context.Context, d *repository.Donation) error {
	_, err := r.db.Exec(ctx, `
        UPDATE donations
        SET
            title = $1,
            description = $2,
            quantity = $3,
            image_url = $4,
            is_reserved = $5,
            reserved_by = $6,
            pickup_code = $7,
            is_completed = $8,
            deleted_at = $9,
            updated_at = $10
        WHERE id = $11
    `, d.Title, d.Description, d.Quantity, d.ImageURL, d.IsReserved,
		d.ReservedBy, d.PickupCode, d.IsCompleted, d.DeletedAt, d.UpdatedAt, d.ID)
	return err
}

func (r *DonationRepo) UpdateTx(ctx context.Context, tx db.Tx, d *repository.Donation) error {
	_, err := tx.Exec(ctx, `
        UPDATE donations
        SET
            title = $1,
            description = $2,
            quantity = $3,
            image_url = $4,
            is_reserved = $5,
            reserved_by = $6,
            pickup_code = $7,
            is_completed = $8,
            deleted_at = $9,
            updated_at = $10
        WHERE id = $11
    `, d.Title, d.Description, d.Quantity, d.ImageURL, d.IsReserved,
		d.ReservedBy, d.PickupCode, d.IsCompleted, d.DeletedAt, d.UpdatedAt, d.ID)
	return err
}

func (r *DonationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM donations WHERE id = $1", id)
	return err
}

func (r *DonationRepo) DeleteTx(ctx context.Context, tx db.Tx, id string) error {
	_, err := tx.Exec(ctx, "DELETE FROM donations WHERE id = $1", id)
	return err
}

func (r *DonationRepo) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE donations SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		deletedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *DonationRepo) SoftDeleteTx(ctx context.Context, tx db.Tx, id string, deletedAt time.Time) error {
	tag, err := tx.Exec(ctx,
		"UPDATE donations SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		deletedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

// GetActive returns non-completed, non-deleted donations, newest first.
// reservedFilter is a tri-state: nil for all, true for reserved only,
// false for available only.
func (r *DonationRepo) GetActive(ctx context.Context, reservedFilter *bool) ([]*repository.Donation, error) {
	query := "SELECT * FROM donations WHERE is_completed = false AND deleted_at IS NULL"
	args := []interface{}{}

	if reservedFilter != nil {
		query += " AND is_reserved = $1"
		args = append(args, *reservedFilter)
	}

	query += " ORDER BY created_at DESC"

	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get active donations: %w", err)
	}
	return donations, nil
}

// GetHistory returns the full donation history, completed included.
// When reservedBy is non-empty the result is scoped to that identity's
// reservations so one volunteer never sees another's pickup code.
func (r *DonationRepo) GetHistory(ctx context.Context, reservedBy string) ([]*repository.Donation, error) {
	query := "SELECT * FROM donations"
	args := []interface{}{}

	if reservedBy != "" {
		query += " WHERE reserved_by = $1"
		args = append(args, reservedBy)
	}

	query += " ORDER BY created_at DESC"

	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get donation history: %w", err)
	}
	return donations, nil
}
