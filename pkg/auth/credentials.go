package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// bcrypt ignores input past 72 bytes; longer passwords are rejected by the
// library, so they are refused up front with the same error as a mismatch.
const maxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt. Concurrent hash
// operations are bounded so CPU-bound work cannot starve request goroutines.
type PasswordHasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost and concurrency bound.
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("gestao-suas-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
	return &PasswordHasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		dummy: dummy,
	}, nil
}

// Hash returns the bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", &domain.PolicyError{Reason: fmt.Sprintf("password must be at most %d bytes long", maxPasswordBytes)}
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
	return string(hash), nil
}

// Verify compares plaintext with hash. A mismatch is reported as false with a
// nil error; malformed hashes wrap domain.ErrCredential.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if len(plaintext) > maxPasswordBytes {
		return false, nil
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
}

// DummyVerify spends the same time as a real comparison. Used when the
// account does not exist so response timing does not reveal it.
func (h *PasswordHasher) DummyVerify(ctx context.Context, plaintext string) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer h.sem.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}
