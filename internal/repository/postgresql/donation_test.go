package postgresql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "github.com/ecorescue/foodshare/internal/db/mocks"
	"github.com/ecorescue/foodshare/internal/repository"
	"github.com/ecorescue/foodshare/internal/repository/postgresql"
)

func testDonation() *repository.Donation {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	return &repository.Donation{
		ID:        "donation-123",
		Title:     "Bread",
		Quantity:  "2 units",
		DonorName: "Panadería Pepe",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDonationRepo_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		d := testDonation()
		mockDB.EXPECT().Exec(
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(d.ID),
			gomock.Eq(d.Title),
			gomock.Eq(d.Description),
			gomock.Eq(d.Quantity),
			gomock.Any(),
			gomock.Eq(d.DonorName),
			gomock.Eq(d.IsReserved),
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(d.IsCompleted),
			gomock.Eq(d.CreatedAt),
			gomock.Eq(d.UpdatedAt),
		).Return(nil, nil)

		err := repo.Create(ctx, d)
		assert.NoError(t, err)
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		expectedErr := errors.New("database error")
		mockDB.EXPECT().Exec(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(nil, expectedErr)

		err := repo.Create(ctx, testDonation())
		assert.Equal(t, expectedErr, err)
	})
}

func TestDonationRepo_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("donation found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		want := testDonation()
		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(want.ID)).
			DoAndReturn(func(_ context.Context, dest *repository.Donation, _ string, _ string) error {
				*dest = *want
				return nil
			})

		got, err := repo.GetByID(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("not found maps pgx.ErrNoRows", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("missing")).
			Return(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}

func TestDonationRepo_SoftDelete(t *testing.T) {
	ctx := context.Background()
	deletedAt := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq(deletedAt), gomock.Eq("donation-123")).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		err := repo.SoftDelete(ctx, "donation-123", deletedAt)
		assert.NoError(t, err)
	})

	t.Run("already deleted or missing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq(deletedAt), gomock.Eq("donation-123")).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.SoftDelete(ctx, "donation-123", deletedAt)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})

	t.Run("transactional variant runs on the transaction", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq(deletedAt), gomock.Eq("donation-123")).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		err := repo.SoftDeleteTx(ctx, mockTx, "donation-123", deletedAt)
		assert.NoError(t, err)
	})
}

func TestDonationRepo_GetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("no filter selects all active", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, dest *[]*repository.Donation, query string, _ ...interface{}) error {
				assert.Contains(t, query, "is_completed = false")
				assert.Contains(t, query, "deleted_at IS NULL")
				assert.NotContains(t, query, "is_reserved = $1")
				*dest = []*repository.Donation{testDonation()}
				return nil
			})

		donations, err := repo.GetActive(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, donations, 1)
	})

	t.Run("reserved filter narrows the query", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		reserved := true
		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(true)).
			DoAndReturn(func(_ context.Context, dest *[]*repository.Donation, query string, _ ...interface{}) error {
				assert.Contains(t, query, "is_reserved = $1")
				return nil
			})

		_, err := repo.GetActive(ctx, &reserved)
		assert.NoError(t, err)
	})
}

func TestDonationRepo_GetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("scoped to a volunteer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("Juan Voluntario")).
			DoAndReturn(func(_ context.Context, dest *[]*repository.Donation, query string, _ ...interface{}) error {
				assert.Contains(t, query, "reserved_by = $1")
				return nil
			})

		_, err := repo.GetHistory(ctx, "Juan Voluntario")
		assert.NoError(t, err)
	})

	t.Run("unscoped includes everything", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewDonationRepo(mockDB)

		mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, dest *[]*repository.Donation, query string, _ ...interface{}) error {
				assert.NotContains(t, query, "WHERE reserved_by")
				return nil
			})

		_, err := repo.GetHistory(ctx, "")
		assert.NoError(t, err)
	})
}
