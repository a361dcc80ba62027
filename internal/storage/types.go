package storage

import (
	"errors"
	"time"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	StatusCompleted Status = "COMPLETED"
	StatusRemoved   Status = "REMOVED"
)

// ActiveFilter narrows the active donation listing.
type ActiveFilter string

const (
	FilterAll       ActiveFilter = "all"
	FilterAvailable ActiveFilter = "available"
	FilterReserved  ActiveFilter = "reserved"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrAlreadyReserved = errors.New("donation already reserved")
	ErrNotReserved     = errors.New("donation not reserved")
	ErrCompleted       = errors.New("donation already completed")
)

type Donation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Quantity    string    `json:"quantity"`
	ImageURL    string    `json:"image_url,omitempty"`
	DonorName   string    `json:"donor_name"`
	IsReserved  bool      `json:"is_reserved"`
	ReservedBy  string    `json:"reserved_by,omitempty"`
	PickupCode  string    `json:"pickup_code,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status reports the donation's position in the lifecycle. The three states
// partition every donation: completed wins over reserved, reserved over
// available.
func (d Donation) Status() Status {
	switch {
	case d.IsCompleted:
		return StatusCompleted
	case d.IsReserved:
		return StatusReserved
	default:
		return StatusAvailable
	}
}

type PublishInput struct {
	Title       string
	Description string
	Quantity    string
	ImageURL    string
	DonorName   string
}

type HistoryEntry struct {
	DonationID string    `json:"donation_id"`
	Status     string    `json:"status"`
	ChangedAt  time.Time `json:"changed_at"`
}

// DonationEvent is the payload written to the outbox alongside every state
// change and eventually published to Kafka.
type DonationEvent struct {
	Type       string    `json:"type"`
	DonationID string    `json:"donation_id"`
	DonorName  string    `json:"donor_name,omitempty"`
	ReservedBy string    `json:"reserved_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventPublished = "donation.published"
	EventReserved  = "donation.reserved"
	EventCompleted = "donation.completed"
	EventRemoved   = "donation.removed"
)
