package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/pkg/metrics"
	"github.com/mynaner/zero2prod/internal/pkg/workerpool"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	createUserErr error
	lookupErr     error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockRepository) GetStoredCredentials(_ context.Context, username string) (*domain.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	if m.createUserErr != nil {
		return m.createUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return ErrUsernameTaken
	}
	user.ID = "user-" + user.Username
	user.CreatedAt = time.Now()
	m.users[user.Username] = user
	return nil
}

// verifyRecorder wraps VerifyPassword and records the hashes it was given.
type verifyRecorder struct {
	mu     sync.Mutex
	hashes []string
}

func (v *verifyRecorder) verify(encoded, password string) error {
	v.mu.Lock()
	v.hashes = append(v.hashes, encoded)
	v.mu.Unlock()
	return VerifyPassword(encoded, password)
}

func newTestService(t *testing.T) (*Service, *mockRepository, *verifyRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool := workerpool.New(workerpool.Config{Workers: 2, QueueSize: 4}, logger)
	pool.Start()
	t.Cleanup(pool.Stop)

	repo := newMockRepository()
	rec := &verifyRecorder{}
	svc := NewService(repo, pool, logger)
	svc.params = testParams
	svc.verify = rec.verify
	return svc, repo, rec
}

func creds(username, password string) domain.Credentials {
	return domain.Credentials{Username: username, Password: domain.NewSecret(password)}
}

func TestAuthenticate_Success(t *testing.T) {
	// Arrange
	svc, _, _ := newTestService(t)
	user, err := svc.CreateUser(context.Background(), "ursula", domain.NewSecret("a-long-enough-password"))
	require.NoError(t, err)
	before := testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("success"))

	// Act
	id, err := svc.Authenticate(context.Background(), creds("ursula", "a-long-enough-password"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("success")))
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	// Arrange
	svc, _, _ := newTestService(t)
	_, err := svc.CreateUser(context.Background(), "ursula", domain.NewSecret("a-long-enough-password"))
	require.NoError(t, err)

	// Act
	id, err := svc.Authenticate(context.Background(), creds("ursula", "not-the-password"))

	// Assert
	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestAuthenticate_UnknownUserStillVerifies(t *testing.T) {
	// Arrange
	svc, _, rec := newTestService(t)
	before := testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("failure"))

	// Act
	id, err := svc.Authenticate(context.Background(), creds("nobody", "whatever"))

	// Assert
	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrAuthFailed)
	require.Len(t, rec.hashes, 1, "a hash must be verified even for unknown users")
	assert.Equal(t, dummyHash, rec.hashes[0])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("failure")))
}

func TestAuthenticate_MalformedStoredHash(t *testing.T) {
	// Arrange
	svc, repo, _ := newTestService(t)
	repo.users["ursula"] = &domain.User{ID: "user-ursula", Username: "ursula", PasswordHash: domain.NewSecret("plaintext")}

	// Act
	_, err := svc.Authenticate(context.Background(), creds("ursula", "plaintext"))

	// Assert
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestAuthenticate_StorageFailure(t *testing.T) {
	// Arrange
	svc, repo, rec := newTestService(t)
	repo.lookupErr = errors.New("connection refused")

	// Act
	_, err := svc.Authenticate(context.Background(), creds("ursula", "password"))

	// Assert
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrAuthFailed)
	assert.Empty(t, rec.hashes)
}

func TestAuthenticate_VerifierStopped(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := workerpool.New(workerpool.Config{Workers: 1}, logger)
	pool.Start()
	pool.Stop()
	svc := NewService(newMockRepository(), pool, logger)

	// Act
	_, err := svc.Authenticate(context.Background(), creds("ursula", "password"))

	// Assert
	assert.ErrorIs(t, err, ErrVerifier)
	assert.ErrorIs(t, err, workerpool.ErrStopped)
}

func TestCreateUser_Validation(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), "  ", domain.NewSecret("a-long-enough-password"))
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.CreateUser(context.Background(), "ursula:le", domain.NewSecret("a-long-enough-password"))
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.CreateUser(context.Background(), "ursula", domain.NewSecret("short"))
	assert.ErrorIs(t, err, ErrWeakPassword)

	assert.Empty(t, repo.users)
}

func TestCreateUser_StoresHashNotPassword(t *testing.T) {
	svc, repo, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), " ursula ", domain.NewSecret("a-long-enough-password"))
	require.NoError(t, err)

	assert.Equal(t, "ursula", user.Username)
	stored := repo.users["ursula"]
	require.NotNil(t, stored)
	assert.NotContains(t, stored.PasswordHash.Expose(), "a-long-enough-password")
	assert.NoError(t, VerifyPassword(stored.PasswordHash.Expose(), "a-long-enough-password"))
}

func TestCreateUser_Duplicate(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), "ursula", domain.NewSecret("a-long-enough-password"))
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), "ursula", domain.NewSecret("another-long-password"))
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreateUser_StorageFailure(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.createUserErr = errors.New("disk full")

	_, err := svc.CreateUser(context.Background(), "ursula", domain.NewSecret("a-long-enough-password"))
	assert.ErrorIs(t, err, ErrStorage)
}
