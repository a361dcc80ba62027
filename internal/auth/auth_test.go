package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecorescue/foodshare/internal/repository"
	mock_storage "github.com/ecorescue/foodshare/internal/storage/mocks"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw     string
		want    Role
		wantErr bool
	}{
		{"DONOR", RoleDonor, false},
		{"donor", RoleDonor, false},
		{"VOLUNTEER", RoleVolunteer, false},
		{"Volunteer", RoleVolunteer, false},
		{"ADMIN", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			role, err := ParseRole(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, role)
		})
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes password and lowercases email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		svc := NewService(mockUsers, NewSessionStore(time.Hour))

		mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, user *repository.User) error {
				assert.Equal(t, "pan@eco.com", user.Email)
				assert.Equal(t, "Panadería Pepe", user.Name)
				assert.Equal(t, "DONOR", user.Role)
				assert.NotEqual(t, "123", user.PasswordHash)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("123")))
				return nil
			})

		err := svc.Register(ctx, "Panadería Pepe", "Pan@Eco.com", "123", RoleDonor)
		assert.NoError(t, err)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		svc := NewService(mockUsers, NewSessionStore(time.Hour))

		mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(repository.ErrEmailTaken)

		err := svc.Register(ctx, "Panadería Pepe", "pan@eco.com", "123", RoleDonor)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("missing fields", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		svc := NewService(mockUsers, NewSessionStore(time.Hour))

		assert.ErrorIs(t, svc.Register(ctx, "", "pan@eco.com", "123", RoleDonor), ErrMissingField)
		assert.ErrorIs(t, svc.Register(ctx, "Pepe", "", "123", RoleDonor), ErrMissingField)
		assert.ErrorIs(t, svc.Register(ctx, "Pepe", "pan@eco.com", "", RoleDonor), ErrMissingField)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("123"), bcrypt.MinCost)
	require.NoError(t, err)

	storedUser := &repository.User{
		ID:           1,
		Email:        "juan@eco.com",
		Name:         "Juan Voluntario",
		Role:         "VOLUNTEER",
		PasswordHash: string(hash),
	}

	t.Run("valid credentials issue a session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		sessions := NewSessionStore(time.Hour)
		svc := NewService(mockUsers, sessions)

		mockUsers.EXPECT().GetByEmail(gomock.Any(), "juan@eco.com").Return(storedUser, nil)

		session, err := svc.Login(ctx, "Juan@Eco.com", "123")
		require.NoError(t, err)
		assert.Equal(t, "juan@eco.com", session.Email)
		assert.Equal(t, RoleVolunteer, session.Role)
		assert.NotEmpty(t, session.Token)

		resolved, ok := sessions.Resolve(session.Token)
		require.True(t, ok)
		assert.Equal(t, session.Email, resolved.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		svc := NewService(mockUsers, NewSessionStore(time.Hour))

		mockUsers.EXPECT().GetByEmail(gomock.Any(), "juan@eco.com").Return(storedUser, nil)

		_, err := svc.Login(ctx, "juan@eco.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email maps to the same error as a wrong password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		svc := NewService(mockUsers, NewSessionStore(time.Hour))

		mockUsers.EXPECT().GetByEmail(gomock.Any(), "nobody@eco.com").
			Return(nil, repository.ErrObjectNotFound)

		_, err := svc.Login(ctx, "nobody@eco.com", "123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("repository failure is not a credential error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockUsers := mock_storage.NewMockUserRepository(ctrl)
		svc := NewService(mockUsers, NewSessionStore(time.Hour))

		mockUsers.EXPECT().GetByEmail(gomock.Any(), "juan@eco.com").
			Return(nil, errors.New("database error"))

		_, err := svc.Login(ctx, "juan@eco.com", "123")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrInvalidCredentials))
	})
}

func TestSessionStore(t *testing.T) {
	t.Run("expired sessions are dropped on resolve", func(t *testing.T) {
		store := NewSessionStore(time.Minute)
		now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
		store.timeNow = func() time.Time { return now }

		session := store.Issue("juan@eco.com", "Juan Voluntario", RoleVolunteer)

		_, ok := store.Resolve(session.Token)
		assert.True(t, ok)

		now = now.Add(2 * time.Minute)
		_, ok = store.Resolve(session.Token)
		assert.False(t, ok)

		// Dropped for good, even if the clock goes back.
		now = now.Add(-2 * time.Minute)
		_, ok = store.Resolve(session.Token)
		assert.False(t, ok)
	})

	t.Run("revoke", func(t *testing.T) {
		store := NewSessionStore(time.Hour)
		session := store.Issue("pan@eco.com", "Panadería Pepe", RoleDonor)

		store.Revoke(session.Token)
		_, ok := store.Resolve(session.Token)
		assert.False(t, ok)
	})

	t.Run("resolve returns a copy", func(t *testing.T) {
		store := NewSessionStore(time.Hour)
		session := store.Issue("pan@eco.com", "Panadería Pepe", RoleDonor)

		resolved, ok := store.Resolve(session.Token)
		require.True(t, ok)
		resolved.Name = "mutated"

		again, ok := store.Resolve(session.Token)
		require.True(t, ok)
		assert.Equal(t, "Panadería Pepe", again.Name)
	})
}
