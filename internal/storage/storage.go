package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ecorescue/foodshare/internal/db"
	"github.com/ecorescue/foodshare/internal/metrics"
	"github.com/ecorescue/foodshare/internal/repository"
)

const eventsTopic = "donation_events"

// Cache mirrors the active donation set in memory. Set is expected to evict
// entries that are no longer active.
type Cache interface {
	Get(donationID string) (*repository.Donation, bool)
	Set(donation *repository.Donation)
	Delete(donationID string)
}

// Storage is the donation lifecycle engine. Every state transition runs in a
// single transaction together with its history entry and outbox event, and
// subscribers are notified after commit.
type Storage struct {
	db           db.DB
	donationRepo DonationRepository
	historyRepo  HistoryRepository
	outboxRepo   OutboxTaskRepository
	notifier     *Notifier
	cache        Cache

	timeNow       func() time.Time
	newID         func() string
	newPickupCode func() string
}

func NewStorage(
	database db.DB,
	donationRepo DonationRepository,
	historyRepo HistoryRepository,
	outboxRepo OutboxTaskRepository,
) *Storage {
	return &Storage{
		db:            database,
		donationRepo:  donationRepo,
		historyRepo:   historyRepo,
		outboxRepo:    outboxRepo,
		notifier:      NewNotifier(),
		timeNow:       time.Now,
		newID:         uuid.NewString,
		newPickupCode: randomPickupCode,
	}
}

// WithCache makes reads of single donations hit the in-memory cache before
// the database. Mutations keep the cache in sync after commit.
func (s *Storage) WithCache(c Cache) *Storage {
	s.cache = c
	return s
}

func (s *Storage) cacheSet(d *repository.Donation) {
	if s.cache != nil {
		s.cache.Set(d)
	}
}

func (s *Storage) cacheDelete(donationID string) {
	if s.cache != nil {
		s.cache.Delete(donationID)
	}
}

// randomPickupCode draws a 4-digit code uniformly from 1000-9999. Codes are
// scoped per donation, so collisions across donations are harmless.
func randomPickupCode() string {
	return fmt.Sprintf("%d", rand.Intn(9000)+1000)
}

func (s *Storage) Notifier() *Notifier {
	return s.notifier
}

// Subscribe registers for change ticks. A tick means some donation changed;
// the subscriber re-reads whichever view it cares about.
func (s *Storage) Subscribe() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

// Publish creates a new AVAILABLE donation. Title and quantity are required.
func (s *Storage) Publish(ctx context.Context, input PublishInput) (*Donation, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.Quantity == "" {
		return nil, fmt.Errorf("%w: quantity is required", ErrValidation)
	}

	now := s.timeNow().UTC()
	repoDonation := &repository.Donation{
		ID:          s.newID(),
		Title:       input.Title,
		Description: input.Description,
		Quantity:    input.Quantity,
		ImageURL:    optional(input.ImageURL),
		DonorName:   input.DonorName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	if err := s.donationRepo.CreateTx(ctx, tx, repoDonation); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("publish").Inc()
		return nil, fmt.Errorf("failed to publish donation: %w", err)
	}
	if err := s.recordTransition(ctx, tx, repoDonation.ID, StatusAvailable, now); err != nil {
		return nil, err
	}
	if err := s.enqueueEvent(ctx, tx, DonationEvent{
		Type:       EventPublished,
		DonationID: repoDonation.ID,
		DonorName:  repoDonation.DonorName,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}

	metrics.DonationsPublishedTotal.Inc()
	s.cacheSet(repoDonation)
	s.notifier.Notify()

	donation := toDonation(repoDonation)
	return &donation, nil
}

// Reserve assigns the donation to a volunteer and returns the generated
// pickup code. The row is locked for the duration of the transaction, so a
// concurrent reservation of the same donation fails with ErrAlreadyReserved
// instead of silently overwriting the first one.
func (s *Storage) Reserve(ctx context.Context, donationID, volunteerName string) (string, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	repoDonation, err := s.donationRepo.GetByIDTx(ctx, tx, donationID)
	if err != nil {
		return "", err
	}
	if repoDonation.DeletedAt != nil {
		return "", repository.ErrObjectNotFound
	}
	if repoDonation.IsCompleted {
		return "", ErrCompleted
	}
	if repoDonation.IsReserved {
		return "", ErrAlreadyReserved
	}

	now := s.timeNow().UTC()
	code := s.newPickupCode()
	repoDonation.IsReserved = true
	repoDonation.ReservedBy = &volunteerName
	repoDonation.PickupCode = &code
	repoDonation.UpdatedAt = now

	if err := s.donationRepo.UpdateTx(ctx, tx, repoDonation); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("reserve").Inc()
		return "", fmt.Errorf("failed to reserve donation: %w", err)
	}
	if err := s.recordTransition(ctx, tx, donationID, StatusReserved, now); err != nil {
		return "", err
	}
	if err := s.enqueueEvent(ctx, tx, DonationEvent{
		Type:       EventReserved,
		DonationID: donationID,
		DonorName:  repoDonation.DonorName,
		ReservedBy: volunteerName,
		OccurredAt: now,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit reservation: %w", err)
	}

	metrics.DonationsReservedTotal.Inc()
	s.cacheSet(repoDonation)
	s.notifier.Notify()

	return code, nil
}

// Complete transitions a reserved donation to COMPLETED iff submittedCode
// exactly matches the stored pickup code. A mismatch reports false and
// leaves the donation untouched. This comparison is the only access-control
// gate on handover.
func (s *Storage) Complete(ctx context.Context, donationID, submittedCode string) (bool, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	repoDonation, err := s.donationRepo.GetByIDTx(ctx, tx, donationID)
	if err != nil {
		return false, err
	}
	if repoDonation.DeletedAt != nil {
		return false, repository.ErrObjectNotFound
	}
	if repoDonation.IsCompleted {
		return false, ErrCompleted
	}
	if !repoDonation.IsReserved || repoDonation.PickupCode == nil {
		return false, ErrNotReserved
	}
	if *repoDonation.PickupCode != submittedCode {
		metrics.PickupCodeMismatchTotal.Inc()
		return false, nil
	}

	now := s.timeNow().UTC()
	repoDonation.IsCompleted = true
	repoDonation.UpdatedAt = now

	if err := s.donationRepo.UpdateTx(ctx, tx, repoDonation); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("complete").Inc()
		return false, fmt.Errorf("failed to complete donation: %w", err)
	}
	if err := s.recordTransition(ctx, tx, donationID, StatusCompleted, now); err != nil {
		return false, err
	}
	if err := s.enqueueEvent(ctx, tx, DonationEvent{
		Type:       EventCompleted,
		DonationID: donationID,
		DonorName:  repoDonation.DonorName,
		ReservedBy: deref(repoDonation.ReservedBy),
		OccurredAt: now,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit completion: %w", err)
	}

	metrics.DonationsCompletedTotal.Inc()
	s.cacheSet(repoDonation)
	s.notifier.Notify()

	return true, nil
}

// Remove withdraws a donation. The default is a soft delete so the record
// stays visible to reports; hard removes the row entirely. Completed
// donations are part of the permanent history and cannot be removed. Like
// the other transitions, the delete, its history entry and its outbox event
// commit together.
func (s *Storage) Remove(ctx context.Context, donationID string, hard bool) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	repoDonation, err := s.donationRepo.GetByIDTx(ctx, tx, donationID)
	if err != nil {
		return err
	}
	if repoDonation.DeletedAt != nil {
		return repository.ErrObjectNotFound
	}
	if repoDonation.IsCompleted {
		return ErrCompleted
	}

	now := s.timeNow().UTC()
	if hard {
		if err := s.donationRepo.DeleteTx(ctx, tx, donationID); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("remove").Inc()
			return fmt.Errorf("failed to delete donation: %w", err)
		}
	} else {
		if err := s.donationRepo.SoftDeleteTx(ctx, tx, donationID, now); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("remove").Inc()
			return fmt.Errorf("failed to remove donation: %w", err)
		}
		if err := s.recordTransition(ctx, tx, donationID, StatusRemoved, now); err != nil {
			return err
		}
	}
	if err := s.enqueueEvent(ctx, tx, DonationEvent{
		Type:       EventRemoved,
		DonationID: donationID,
		DonorName:  repoDonation.DonorName,
		OccurredAt: now,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit removal: %w", err)
	}

	s.cacheDelete(donationID)
	s.notifier.Notify()
	return nil
}

// ListActive returns non-completed donations, newest first.
func (s *Storage) ListActive(ctx context.Context, filter ActiveFilter) ([]Donation, error) {
	var reservedFilter *bool
	switch filter {
	case FilterAvailable:
		f := false
		reservedFilter = &f
	case FilterReserved:
		f := true
		reservedFilter = &f
	case FilterAll, "":
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", ErrValidation, filter)
	}

	repoDonations, err := s.donationRepo.GetActive(ctx, reservedFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list active donations: %w", err)
	}
	return toDonations(repoDonations), nil
}

// ListHistory returns the full donation history including completed
// donations. A non-empty reservedBy scopes the listing to that volunteer's
// own reservations.
func (s *Storage) ListHistory(ctx context.Context, reservedBy string) ([]Donation, error) {
	repoDonations, err := s.donationRepo.GetHistory(ctx, reservedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list donation history: %w", err)
	}
	return toDonations(repoDonations), nil
}

func (s *Storage) GetDonation(ctx context.Context, donationID string) (*Donation, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(donationID); ok {
			donation := toDonation(cached)
			return &donation, nil
		}
	}

	repoDonation, err := s.donationRepo.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if repoDonation.DeletedAt != nil {
		return nil, repository.ErrObjectNotFound
	}
	donation := toDonation(repoDonation)
	return &donation, nil
}

// GetDonationHistory returns the status-change trail for one donation.
func (s *Storage) GetDonationHistory(ctx context.Context, donationID string) ([]HistoryEntry, error) {
	repoEntries, err := s.historyRepo.GetByDonationID(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donation history: %w", err)
	}

	entries := make([]HistoryEntry, len(repoEntries))
	for i, repoEntry := range repoEntries {
		entries[i] = HistoryEntry{
			DonationID: repoEntry.DonationID,
			Status:     repoEntry.Status,
			ChangedAt:  repoEntry.ChangedAt,
		}
	}
	return entries, nil
}

func (s *Storage) recordTransition(ctx context.Context, tx db.Tx, donationID string, status Status, at time.Time) error {
	entry := &repository.HistoryEntry{
		DonationID: donationID,
		Status:     string(status),
		ChangedAt:  at,
	}
	if err := s.historyRepo.CreateTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to add history entry: %w", err)
	}
	return nil
}

func (s *Storage) enqueueEvent(ctx context.Context, tx db.Tx, event DonationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal donation event: %w", err)
	}
	task := &repository.OutboxTask{
		Payload: payload,
		Topic:   eventsTopic,
	}
	if err := s.outboxRepo.CreateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("failed to enqueue donation event: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the donation does not exist. Exposed
// so callers outside the package do not import the repository layer.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrObjectNotFound)
}

func toDonation(d *repository.Donation) Donation {
	return Donation{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Quantity:    d.Quantity,
		ImageURL:    deref(d.ImageURL),
		DonorName:   d.DonorName,
		IsReserved:  d.IsReserved,
		ReservedBy:  deref(d.ReservedBy),
		PickupCode:  deref(d.PickupCode),
		IsCompleted: d.IsCompleted,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toDonations(repoDonations []*repository.Donation) []Donation {
	donations := make([]Donation, len(repoDonations))
	for i, d := range repoDonations {
		donations[i] = toDonation(d)
	}
	return donations
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
