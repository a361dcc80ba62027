package postgresql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "github.com/ecorescue/foodshare/internal/db/mocks"
	"github.com/ecorescue/foodshare/internal/repository"
	"github.com/ecorescue/foodshare/internal/repository/postgresql"
)

func TestUserRepo_Create(t *testing.T) {
	ctx := context.Background()

	testUser := &repository.User{
		Email:        "pan@eco.com",
		Name:         "Panadería Pepe",
		Role:         "DONOR",
		PasswordHash: "$2a$10$hash",
	}

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().Exec(
			gomock.Any(),
			gomock.Any(),
			gomock.Eq(testUser.Email),
			gomock.Eq(testUser.Name),
			gomock.Eq(testUser.Role),
			gomock.Eq(testUser.PasswordHash),
		).Return(pgconn.CommandTag("INSERT 0 1"), nil)

		err := repo.Create(ctx, testUser)
		assert.NoError(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		// ON CONFLICT DO NOTHING reports zero affected rows.
		mockDB.EXPECT().Exec(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(pgconn.CommandTag("INSERT 0 0"), nil)

		err := repo.Create(ctx, testUser)
		assert.ErrorIs(t, err, repository.ErrEmailTaken)
	})

	t.Run("database error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		expectedErr := errors.New("database error")
		mockDB.EXPECT().Exec(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(nil, expectedErr)

		err := repo.Create(ctx, testUser)
		assert.Equal(t, expectedErr, err)
	})
}

func TestUserRepo_GetByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("user found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		want := &repository.User{
			ID:    1,
			Email: "juan@eco.com",
			Name:  "Juan Voluntario",
			Role:  "VOLUNTEER",
		}
		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq(want.Email)).
			DoAndReturn(func(_ context.Context, dest *repository.User, _ string, _ string) error {
				*dest = *want
				return nil
			})

		got, err := repo.GetByEmail(ctx, want.Email)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("unknown email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("nobody@eco.com")).
			Return(pgx.ErrNoRows)

		_, err := repo.GetByEmail(ctx, "nobody@eco.com")
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}
