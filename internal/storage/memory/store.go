// Package memory provides an in-memory UserStore used by tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/loginportal/backend/internal/models"
	"github.com/loginportal/backend/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

// Store keeps users in a map guarded by a mutex. Uniqueness of username
// and email is enforced the same way the database constraints would.
type Store struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
}

// NewUserStore returns an empty in-memory store.
func NewUserStore() *Store {
	return &Store{nextID: 1, users: make(map[int64]models.User)}
}

// Count reports the number of stored users.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	s.nextID++
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == identifier || u.Email == identifier })
}

func (s *Store) find(match func(models.User) bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}
