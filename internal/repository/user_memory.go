package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/user-auth/internal/model"
)

// MemoryUserRepo is an in-process user store with the same contract as
// UserRepo, including the unique email constraint. It backs STORAGE=memory
// and the tests.
type MemoryUserRepo struct {
	mu      sync.Mutex
	nextID  uint64
	byID    map[uint64]model.User
	byEmail map[string]uint64
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[uint64]model.User),
		byEmail: make(map[string]uint64),
	}
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id uint64) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) Insert(_ context.Context, name, email, passwordHash, role string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return model.User{}, ErrEmailExists
	}
	r.nextID++
	now := time.Now().UTC().Truncate(time.Second)
	u := model.User{
		ID:           r.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byEmail[email] = u.ID
	u.PasswordHash = ""
	return u, nil
}

// Count returns the number of rows stored under email (0 or 1).
func (r *MemoryUserRepo) Count(email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return 1
	}
	return 0
}
