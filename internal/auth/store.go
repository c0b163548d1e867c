package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Account is a registered user as the auth package stores it. The password
// hash never crosses this package's boundary.
type Account struct {
	ID           string
	Username     string
	passwordHash string
}

// Store is the in-memory account registry backing registration and login.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*Account
	byUsername map[string]*Account
	hasher     *PasswordHasher
	logger     *slog.Logger
}

// NewStore creates an empty account registry.
func NewStore(hasher *PasswordHasher) *Store {
	return &Store{
		byID:       make(map[string]*Account),
		byUsername: make(map[string]*Account),
		hasher:     hasher,
		logger:     slog.Default().With("service", "auth"),
	}
}

// Register creates a new account with a freshly assigned id. It fails with
// ErrUsernameTaken if the username is already registered.
func (s *Store) Register(ctx context.Context, username, password string) (Identity, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[username]; exists {
		return Identity{}, ErrUsernameTaken
	}

	acct := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		passwordHash: hash,
	}
	s.byID[acct.ID] = acct
	s.byUsername[username] = acct

	s.logger.Info("Account registered", "user_id", acct.ID, "username", username)
	return Identity{UserID: acct.ID, Username: username}, nil
}

// Login checks the username/password pair and returns the account's identity.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *Store) Login(ctx context.Context, username, password string) (Identity, error) {
	s.mu.RLock()
	acct, ok := s.byUsername[username]
	s.mu.RUnlock()

	if !ok || !s.hasher.Verify(password, acct.passwordHash) {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: acct.ID, Username: acct.Username}, nil
}
