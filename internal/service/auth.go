// Package service composes the user store, the password hasher and the
// event publisher into the registration and authentication operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/user-auth/internal/logging"
	"github.com/iliyamo/user-auth/internal/model"
	"github.com/iliyamo/user-auth/internal/queue"
	"github.com/iliyamo/user-auth/internal/repository"
	"github.com/iliyamo/user-auth/internal/utils"
)

var (
	// ErrAlreadyExists is returned by CreateUser when the email is taken.
	ErrAlreadyExists = errors.New("user with this email already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound is returned by GetUser.
	ErrUserNotFound = errors.New("user not found")
	// ErrHashing and ErrStorage mark internal failures.
	ErrHashing = errors.New("hashing error")
	ErrStorage = errors.New("storage error")
)

// UserStore is the persistence the service needs. *repository.UserRepo
// satisfies it.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	Insert(ctx context.Context, name, email, passwordHash, role string) (model.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) (bool, error)
}

// EventPublisher receives registration events. Failures are logged only.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
}

// NewUser is a validated registration payload.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Credentials is a validated sign-in payload.
type Credentials struct {
	Email    string
	Password string
}

type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	events EventPublisher
	log    logging.Logger
}

// NewAuthService wires the service. events may be nil.
func NewAuthService(users UserStore, hasher PasswordHasher, events EventPublisher, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{users: users, hasher: hasher, events: events, log: log.With("component", "auth_service")}
}

// CreateUser registers a new user. The existence check gives the common
// case a cheap answer; the unique index on users.email settles concurrent
// registrations, and its violation is reported as ErrAlreadyExists too.
func (s *AuthService) CreateUser(ctx context.Context, in NewUser) (model.PublicUser, error) {
	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		s.log.Warn(ctx, "registration rejected: email taken", "email", in.Email)
		return model.PublicUser{}, ErrAlreadyExists
	case !errors.Is(err, repository.ErrNotFound):
		s.log.Error(ctx, "creating the user: lookup failed", "email", in.Email, "err", err)
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.Error(ctx, "error hashing the password", "err", err)
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrHashing, err)
	}

	u, err := s.users.Insert(ctx, in.Name, in.Email, hash, in.Role)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.log.Warn(ctx, "registration rejected: email taken on insert", "email", in.Email)
			return model.PublicUser{}, ErrAlreadyExists
		}
		s.log.Error(ctx, "creating the user: insert failed", "email", in.Email, "err", err)
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.log.Info(ctx, "user created", "user_id", u.ID, "email", u.Email)
	s.publishRegistered(ctx, u)
	return u.Public(), nil
}

// AuthenticateUser checks credentials. Unknown email and wrong password both
// return ErrInvalidCredentials.
func (s *AuthService) AuthenticateUser(ctx context.Context, in Credentials) (model.PublicUser, error) {
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, ErrInvalidCredentials
		}
		s.log.Error(ctx, "error authenticating user: lookup failed", "err", err)
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	ok, err := s.hasher.Compare(in.Password, u.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "error comparing password", "user_id", u.ID, "err", err)
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrHashing, err)
	}
	if !ok {
		return model.PublicUser{}, ErrInvalidCredentials
	}

	s.log.Info(ctx, "user authenticated", "user_id", u.ID, "email", u.Email)
	return u.Public(), nil
}

// GetUser loads the public projection of a user by id.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (model.PublicUser, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, ErrUserNotFound
		}
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return u.Public(), nil
}

func (s *AuthService) publishRegistered(ctx context.Context, u model.User) {
	if s.events == nil {
		return
	}
	ev := queue.UserRegisteredEvent{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         u.Role,
		RegisteredAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishUserRegistered(ctx, ev); err != nil {
		s.log.Warn(ctx, "publish user.registered failed", "user_id", u.ID, "err", err)
	}
}

var _ PasswordHasher = (*utils.PasswordHasher)(nil)
var _ UserStore = (*repository.UserRepo)(nil)
