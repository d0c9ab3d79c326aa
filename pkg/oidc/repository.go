package oidc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// AuthorizationCode is a single-use grant. UserSubject is empty until a login
// binds it; Used flips once at redemption and stays set until garbage collection.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserSubject         string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Used                bool
}

func (c *AuthorizationCode) clone() *AuthorizationCode {
	n := *c
	return &n
}

// ConsumeParams are the guards of a redemption. CodeChallenge is the S256
// challenge derived from the presented verifier, or empty.
type ConsumeParams struct {
	Code          string
	ClientID      string
	RedirectURI   string
	CodeChallenge string
	Now           time.Time
}

// ErrCodeNotFound is returned by Get when no record exists
var ErrCodeNotFound = errors.New("authorization code not found")

// CodeRepository persists authorization codes. BindSubject and Consume are
// single conditional updates; they report false when no row matched and the
// caller classifies the failure from Get.
type CodeRepository interface {
	Insert(ctx context.Context, code *AuthorizationCode) error
	Get(ctx context.Context, code string) (*AuthorizationCode, error)

	// BindSubject sets user_subject where the code is unused, unexpired and
	// either unbound or already bound to the same subject.
	BindSubject(ctx context.Context, code, subject string, now time.Time) (bool, error)

	// Consume sets used=true where every guard in p holds and the code is bound.
	Consume(ctx context.Context, p ConsumeParams) (*AuthorizationCode, bool, error)

	// DeleteExpired removes codes whose expiry is before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// InMemoryCodeRepository implements CodeRepository using in-memory storage.
// Each conditional update runs inside one critical section.
type InMemoryCodeRepository struct {
	authCodes map[string]*AuthorizationCode
	mutex     sync.RWMutex
}

// NewInMemoryCodeRepository creates a new in-memory code repository
func NewInMemoryCodeRepository() *InMemoryCodeRepository {
	return &InMemoryCodeRepository{
		authCodes: make(map[string]*AuthorizationCode),
	}
}

func (r *InMemoryCodeRepository) Insert(ctx context.Context, code *AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return errors.New("authorization code cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.authCodes[code.Code]; exists {
		return fmt.Errorf("authorization code already exists")
	}
	r.authCodes[code.Code] = code.clone()
	return nil
}

func (r *InMemoryCodeRepository) Get(ctx context.Context, code string) (*AuthorizationCode, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	authCode, exists := r.authCodes[code]
	if !exists {
		return nil, ErrCodeNotFound
	}
	return authCode.clone(), nil
}

func (r *InMemoryCodeRepository) BindSubject(ctx context.Context, code, subject string, now time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, exists := r.authCodes[code]
	if !exists || c.Used || !now.Before(c.ExpiresAt) {
		return false, nil
	}
	if c.UserSubject != "" && c.UserSubject != subject {
		return false, nil
	}
	c.UserSubject = subject
	return true, nil
}

func (r *InMemoryCodeRepository) Consume(ctx context.Context, p ConsumeParams) (*AuthorizationCode, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, exists := r.authCodes[p.Code]
	if !exists || c.Used || !p.Now.Before(c.ExpiresAt) ||
		c.ClientID != p.ClientID || c.RedirectURI != p.RedirectURI || c.UserSubject == "" ||
		(c.CodeChallenge != "" && c.CodeChallenge != p.CodeChallenge) {
		return nil, false, nil
	}
	c.Used = true
	return c.clone(), true, nil
}

func (r *InMemoryCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var n int64
	for k, c := range r.authCodes {
		if !now.Before(c.ExpiresAt) {
			delete(r.authCodes, k)
			n++
		}
	}
	return n, nil
}
