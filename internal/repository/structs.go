package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound = errors.New("not found")
	ErrEmailTaken     = errors.New("email already registered")
)

type Donation struct {
	ID          string     `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Quantity    string     `db:"quantity"`
	ImageURL    *string    `db:"image_url"`
	DonorName   string     `db:"donor_name"`
	IsReserved  bool       `db:"is_reserved"`
	ReservedBy  *string    `db:"reserved_by"`
	PickupCode  *string    `db:"pickup_code"`
	IsCompleted bool       `db:"is_completed"`
	DeletedAt   *time.Time `db:"deleted_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type User struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	Role         string `db:"role"`
	PasswordHash string `db:"password_hash"`
}

type HistoryEntry struct {
	ID         int64     `db:"id"`
	DonationID string    `db:"donation_id"`
	Status     string    `db:"status"`
	ChangedAt  time.Time `db:"changed_at"`
}

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusFailed     TaskStatus = "FAILED"
)

type OutboxTask struct {
	ID          uuid.UUID  `db:"id"`
	Status      TaskStatus `db:"status"`
	Payload     []byte     `db:"payload"`
	Topic       string     `db:"topic"`
	Attempts    int        `db:"attempts"`
	LastError   *string    `db:"last_error"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}
