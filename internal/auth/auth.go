package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ecorescue/foodshare/internal/repository"
	"github.com/ecorescue/foodshare/internal/storage"
)

// Role is a closed two-variant tag: donors publish and validate donations,
// volunteers reserve and pick them up.
type Role string

const (
	RoleDonor     Role = "DONOR"
	RoleVolunteer Role = "VOLUNTEER"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(raw)) {
	case RoleDonor:
		return RoleDonor, nil
	case RoleVolunteer:
		return RoleVolunteer, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so a caller cannot enumerate registered accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingField       = errors.New("missing required field")
)

type Service struct {
	users    storage.UserRepository
	sessions *SessionStore
}

func NewService(users storage.UserRepository, sessions *SessionStore) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
	}
}

// Register creates a new account with a bcrypt-hashed password. Duplicate
// emails are rejected.
func (s *Service) Register(ctx context.Context, name, email, password string, role Role) error {
	if name == "" || email == "" || password == "" {
		return ErrMissingField
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		Email:        strings.ToLower(email),
		Name:         name,
		Role:         string(role),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Login checks the credentials and, on success, issues a session. The session
// object is the caller's proof of identity from then on; there is no ambient
// "current user" state anywhere.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	role, err := ParseRole(user.Role)
	if err != nil {
		return nil, fmt.Errorf("stored role is invalid: %w", err)
	}

	session := s.sessions.Issue(user.Email, user.Name, role)
	return session, nil
}
