// Package identity verifies publisher credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/pkg/metrics"
	"github.com/mynaner/zero2prod/internal/pkg/workerpool"
)

// Service errors.
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrStorage         = errors.New("credential storage failure")
	ErrVerifier        = errors.New("password verifier unavailable")
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidUsername = errors.New("invalid username")
	ErrWeakPassword    = errors.New("password too short")
)

// MinPasswordLength applies to accounts created through CreateUser.
const MinPasswordLength = 12

// dummyHash is verified when the username is unknown so that both paths
// cost one argon2id computation.
const dummyHash = "$argon2id$v=19$m=15000,t=2,p=1$" +
	"gZiV/M1gPc22ELAH/Jh1Hw$" +
	"CWOrko070JBQ/iyh7uJ0L02aLEfrHWTWLLSAxT0zRno"

// Repository defines the interface for publisher account storage.
type Repository interface {
	// GetStoredCredentials returns ErrUserNotFound for unknown usernames.
	GetStoredCredentials(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
}

// Service authenticates publishers.
type Service struct {
	repo   Repository
	pool   *workerpool.Pool
	logger *slog.Logger
	params Params

	verify func(encoded, password string) error
}

// NewService creates a new identity service. Password verification runs on
// pool.
func NewService(repo Repository, pool *workerpool.Pool, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		pool:   pool,
		logger: logger,
		params: DefaultParams,
		verify: VerifyPassword,
	}
}

// Authenticate returns the user id owning creds. Unknown usernames, wrong
// passwords and unreadable stored hashes all yield ErrAuthFailed.
func (s *Service) Authenticate(ctx context.Context, creds domain.Credentials) (string, error) {
	logger := s.logger.With("username", creds.Username)

	var userID string
	expected := domain.NewSecret(dummyHash)

	user, err := s.repo.GetStoredCredentials(ctx, creds.Username)
	switch {
	case err == nil:
		userID = user.ID
		expected = user.PasswordHash
	case errors.Is(err, ErrUserNotFound):
	default:
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	_, err = workerpool.Submit(ctx, s.pool, func() (struct{}, error) {
		return struct{}{}, s.verify(expected.Expose(), creds.Password.Expose())
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrPasswordMismatch):
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	case errors.Is(err, ErrMalformedHash):
		logger.Error("stored password hash is unreadable", "user_id", userID, "error", err)
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	default:
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %w", ErrVerifier, err)
	}

	if userID == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, ErrUserNotFound)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	logger.Debug("publisher authenticated", "user_id", userID)
	return userID, nil
}

// CreateUser stores a new publisher account with an argon2id hash of
// password.
func (s *Service) CreateUser(ctx context.Context, username string, password domain.Secret) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsRune(username, ':') {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if len(password.Expose()) < MinPasswordLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, MinPasswordLength)
	}

	hash, err := HashPassword(password.Expose(), s.params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: domain.NewSecret(hash),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.logger.Info("publisher created", "user_id", user.ID, "username", user.Username)
	return user, nil
}
