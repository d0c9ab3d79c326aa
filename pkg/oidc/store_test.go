package oidc

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/pkce"
)

const (
	testClient   = "app"
	testRedirect = "http://app/callback"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSQLiteCodeRepository(t *testing.T) *SQLiteCodeRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLiteCodeRepository(db)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func codeRepositories() map[string]func(t *testing.T) CodeRepository {
	return map[string]func(t *testing.T) CodeRepository{
		"InMemory": func(t *testing.T) CodeRepository { return NewInMemoryCodeRepository() },
		"SQLite":   func(t *testing.T) CodeRepository { return newSQLiteCodeRepository(t) },
	}
}

func TestCodeStore(t *testing.T) {
	for name, newRepo := range codeRepositories() {
		t.Run(name, func(t *testing.T) {
			testCodeStoreContract(t, newRepo)
		})
	}
}

func testCodeStoreContract(t *testing.T, newRepo func(t *testing.T) CodeRepository) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*CodeStore, *testClock) {
		clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
		return NewCodeStore(newRepo(t), WithClock(clock.Now)), clock
	}
	create := func(t *testing.T, s *CodeStore) string {
		code, err := s.Create(ctx, CreateParams{ClientID: testClient, RedirectURI: testRedirect, Scope: "openid email", State: "xyz"})
		require.NoError(t, err)
		return code
	}

	t.Run("CreateGeneratesOpaqueCode", func(t *testing.T) {
		s, clock := newStore(t)
		code := create(t, s)
		assert.Len(t, code, 64)

		c, err := s.Get(ctx, code)
		require.NoError(t, err)
		assert.Empty(t, c.UserSubject)
		assert.False(t, c.Used)
		assert.Equal(t, "xyz", c.State)
		assert.Equal(t, clock.Now().Add(DefaultCodeExpiration), c.ExpiresAt)
	})

	t.Run("BindThenRedeem", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))

		redeemed, err := s.Redeem(ctx, code, testClient, testRedirect, "")
		require.NoError(t, err)
		assert.Equal(t, "u1", redeemed.UserSubject)
		assert.Equal(t, "openid email", redeemed.Scope)
		assert.True(t, redeemed.Used)
	})

	t.Run("SecondRedeemAlreadyUsed", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))
		_, err := s.Redeem(ctx, code, testClient, testRedirect, "")
		require.NoError(t, err)

		_, err = s.Redeem(ctx, code, testClient, testRedirect, "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCodeAlreadyUsed))
	})

	t.Run("RedirectMismatch", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))

		_, err := s.Redeem(ctx, code, testClient, "http://other", "")
		require.True(t, apperrors.IsCode(err, apperrors.ErrCodeRedirectMismatch))
		assert.Contains(t, err.Error(), "Redirect URI mismatch")

		_, err = s.Redeem(ctx, code, testClient, testRedirect, "")
		assert.NoError(t, err, "a rejected attempt must not consume the code")
	})

	t.Run("ClientMismatchBeforeRedirect", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))
		_, err := s.Redeem(ctx, code, "other-client", "http://other", "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClientMismatch))
	})

	t.Run("MissingCode", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Redeem(ctx, "deadbeef", testClient, testRedirect, "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCodeNotFound))
	})

	t.Run("ExpiredEvenIfNeverBound", func(t *testing.T) {
		s, clock := newStore(t)
		code := create(t, s)
		clock.Advance(DefaultCodeExpiration + time.Second)
		_, err := s.Redeem(ctx, code, "wrong", "wrong", "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCodeExpired))
	})

	t.Run("ExpiredBeforeUsed", func(t *testing.T) {
		s, clock := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))
		_, err := s.Redeem(ctx, code, testClient, testRedirect, "")
		require.NoError(t, err)
		clock.Advance(DefaultCodeExpiration)
		_, err = s.Redeem(ctx, code, testClient, testRedirect, "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCodeExpired))
	})

	t.Run("UnboundCodeRejected", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		_, err := s.Redeem(ctx, code, testClient, testRedirect, "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCodeNotBound))
	})

	t.Run("BindIdempotentForSameSubject", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))
		require.NoError(t, s.Bind(ctx, code, "u1"))

		err := s.Bind(ctx, code, "u2")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBusinessLogic))

		c, err := s.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "u1", c.UserSubject)
	})

	t.Run("BindFailures", func(t *testing.T) {
		s, clock := newStore(t)
		assert.True(t, apperrors.IsCode(s.Bind(ctx, "missing", "u1"), apperrors.ErrCodeCodeNotFound))
		assert.True(t, apperrors.IsCode(s.Bind(ctx, "x", ""), apperrors.ErrCodeInvalidInput))

		used := create(t, s)
		require.NoError(t, s.Bind(ctx, used, "u1"))
		_, err := s.Redeem(ctx, used, testClient, testRedirect, "")
		require.NoError(t, err)
		assert.True(t, apperrors.IsCode(s.Bind(ctx, used, "u1"), apperrors.ErrCodeCodeAlreadyUsed))

		expired := create(t, s)
		clock.Advance(DefaultCodeExpiration)
		assert.True(t, apperrors.IsCode(s.Bind(ctx, expired, "u1"), apperrors.ErrCodeCodeExpired))
	})

	t.Run("PKCE", func(t *testing.T) {
		s, _ := newStore(t)
		verifier, err := pkce.GenerateCodeVerifier()
		require.NoError(t, err)

		code, err := s.Create(ctx, CreateParams{
			ClientID:      testClient,
			RedirectURI:   testRedirect,
			Scope:         "openid",
			CodeChallenge: pkce.S256Challenge(verifier),
		})
		require.NoError(t, err)
		require.NoError(t, s.Bind(ctx, code, "u1"))

		_, err = s.Redeem(ctx, code, testClient, testRedirect, "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePKCEFailed))

		other, err := pkce.GenerateCodeVerifier()
		require.NoError(t, err)
		_, err = s.Redeem(ctx, code, testClient, testRedirect, other)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePKCEFailed))

		c, err := s.Redeem(ctx, code, testClient, testRedirect, verifier)
		require.NoError(t, err)
		assert.Equal(t, pkce.ChallengeS256, c.CodeChallengeMethod)
	})

	t.Run("PlainChallengeMethodRejected", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Create(ctx, CreateParams{ClientID: testClient, RedirectURI: testRedirect, CodeChallenge: "abc", CodeChallengeMethod: "plain"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
	})

	t.Run("ConcurrentRedeemSucceedsOnce", func(t *testing.T) {
		s, _ := newStore(t)
		code := create(t, s)
		require.NoError(t, s.Bind(ctx, code, "u1"))

		const n = 32
		var wins, alreadyUsed int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := s.Redeem(ctx, code, testClient, testRedirect, "")
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case apperrors.IsCode(err, apperrors.ErrCodeCodeAlreadyUsed):
					atomic.AddInt32(&alreadyUsed, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins)
		assert.Equal(t, int32(n-1), alreadyUsed)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		s, clock := newStore(t)
		old := create(t, s)
		clock.Advance(5 * time.Minute)
		fresh := create(t, s)
		clock.Advance(6 * time.Minute)

		n, err := s.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = s.Get(ctx, old)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCodeNotFound))
		_, err = s.Get(ctx, fresh)
		assert.NoError(t, err)
	})
}

func TestStartCleanup(t *testing.T) {
	clock := &testClock{now: time.Now()}
	s := NewCodeStore(NewInMemoryCodeRepository(), WithClock(clock.Now), WithCodeExpiration(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())

	code, err := s.Create(ctx, CreateParams{ClientID: testClient, RedirectURI: testRedirect})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	done := s.StartCleanup(ctx, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, err := s.Get(context.Background(), code)
		return apperrors.IsCode(err, apperrors.ErrCodeCodeNotFound)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

type slowRepository struct {
	*InMemoryCodeRepository
}

func (r slowRepository) Consume(ctx context.Context, p ConsumeParams) (*AuthorizationCode, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func TestRedeemTimeoutIsRetryable(t *testing.T) {
	s := NewCodeStore(slowRepository{NewInMemoryCodeRepository()}, WithOpTimeout(20*time.Millisecond))
	_, err := s.Redeem(context.Background(), "code", testClient, testRedirect, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout))
	assert.True(t, apperrors.IsRetryable(err))
}
