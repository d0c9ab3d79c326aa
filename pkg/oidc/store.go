package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/pkce"
	"github.com/tendant/simple-oidc/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCodeExpiration = 10 * time.Minute
	DefaultOpTimeout      = 5 * time.Second

	// codeBytes gives 256 bits of entropy
	codeBytes = 32
)

// CreateParams describes a pending authorization request
type CreateParams struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CodeStore drives the authorization code state machine:
// CREATED -> BOUND -> REDEEMED, with EXPIRED and REJECTED as terminal failures.
type CodeStore struct {
	repository     CodeRepository
	codeExpiration time.Duration
	opTimeout      time.Duration
	now            func() time.Time
	tracer         trace.Tracer
}

// Option is a function that configures a CodeStore
type Option func(*CodeStore)

// WithCodeExpiration sets the authorization code expiration duration
func WithCodeExpiration(duration time.Duration) Option {
	return func(s *CodeStore) {
		if duration > 0 {
			s.codeExpiration = duration
		}
	}
}

// WithOpTimeout bounds every persistence call
func WithOpTimeout(timeout time.Duration) Option {
	return func(s *CodeStore) {
		if timeout > 0 {
			s.opTimeout = timeout
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *CodeStore) {
		s.now = now
	}
}

// NewCodeStore creates a code store over repository
func NewCodeStore(repository CodeRepository, opts ...Option) *CodeStore {
	s := &CodeStore{
		repository:     repository,
		codeExpiration: DefaultCodeExpiration,
		opTimeout:      DefaultOpTimeout,
		now:            time.Now,
		tracer:         otel.Tracer("github.com/tendant/simple-oidc/pkg/oidc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CodeExpiration returns the configured TTL
func (s *CodeStore) CodeExpiration() time.Duration {
	return s.codeExpiration
}

func (s *CodeStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// storeError maps a persistence failure, keeping deadline overruns retryable.
func storeError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "%s timed out", op)
	}
	return apperrors.InternalWrap(err, op+" failed")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.GetCode(err)))
	}
	span.End()
}

// Create persists a new unbound code and returns it.
func (s *CodeStore) Create(ctx context.Context, p CreateParams) (code string, err error) {
	ctx, span := s.tracer.Start(ctx, "CodeStore.Create", trace.WithAttributes(attribute.String("client_id", p.ClientID)))
	defer func() { endSpan(span, err) }()

	if p.ClientID == "" {
		return "", apperrors.MissingParameter("client_id")
	}
	if p.RedirectURI == "" {
		return "", apperrors.MissingParameter("redirect_uri")
	}
	if p.CodeChallenge != "" {
		method, mErr := pkce.NormalizeChallengeMethod(p.CodeChallengeMethod)
		if mErr != nil {
			return "", apperrors.InvalidInput("code_challenge_method", mErr.Error())
		}
		p.CodeChallengeMethod = method
	} else {
		p.CodeChallengeMethod = ""
	}

	code, err = utils.RandomHex(codeBytes)
	if err != nil {
		return "", apperrors.InternalWrap(err, "failed to generate authorization code")
	}

	now := s.now().UTC()
	authCode := &AuthorizationCode{
		Code:                code,
		ClientID:            p.ClientID,
		RedirectURI:         p.RedirectURI,
		Scope:               p.Scope,
		State:               p.State,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.codeExpiration),
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repository.Insert(opCtx, authCode); err != nil {
		return "", storeError(err, "store authorization code")
	}

	slog.Info("Authorization code created", "code", utils.Prefix(code), "client_id", p.ClientID, "pkce", p.CodeChallenge != "")
	return code, nil
}

// Get returns a code record without changing it.
func (s *CodeStore) Get(ctx context.Context, code string) (*AuthorizationCode, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.repository.Get(opCtx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeCodeNotFound, "authorization code not found")
		}
		return nil, storeError(err, "load authorization code")
	}
	return c, nil
}

// Bind attaches subject to a pending code. Binding again to the same subject
// succeeds; binding to a different subject fails with ErrCodeBusinessLogic.
func (s *CodeStore) Bind(ctx context.Context, code, subject string) (err error) {
	ctx, span := s.tracer.Start(ctx, "CodeStore.Bind")
	defer func() { endSpan(span, err) }()

	if code == "" {
		return apperrors.MissingParameter("code")
	}
	if subject == "" {
		return apperrors.InvalidInput("subject", "cannot be empty")
	}

	now := s.now().UTC()
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.repository.BindSubject(opCtx, code, subject, now)
	if err != nil {
		return storeError(err, "bind authorization code")
	}
	if ok {
		slog.Info("Authorization code bound", "code", utils.Prefix(code), "subject", subject)
		return nil
	}

	err = s.classifyBind(ctx, code, subject, now)
	if err == nil {
		return nil
	}
	slog.Warn("Authorization code bind rejected", "code", utils.Prefix(code), "reason", apperrors.GetCode(err))
	return err
}

func (s *CodeStore) classifyBind(ctx context.Context, code, subject string, now time.Time) error {
	c, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	switch {
	case !now.Before(c.ExpiresAt):
		return apperrors.New(apperrors.ErrCodeCodeExpired, "authorization code expired")
	case c.Used:
		return apperrors.New(apperrors.ErrCodeCodeAlreadyUsed, "authorization code already used")
	case c.UserSubject == subject:
		// a concurrent retry bound the same subject
		return nil
	default:
		return apperrors.New(apperrors.ErrCodeBusinessLogic, "authorization code is bound to another user")
	}
}

// Redeem consumes a bound code in one conditional update. A code redeems at
// most once; every later attempt fails without changing the record.
func (s *CodeStore) Redeem(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (_ *AuthorizationCode, err error) {
	ctx, span := s.tracer.Start(ctx, "CodeStore.Redeem", trace.WithAttributes(attribute.String("client_id", clientID)))
	defer func() { endSpan(span, err) }()

	if code == "" {
		return nil, apperrors.MissingParameter("code")
	}

	challenge := ""
	if codeVerifier != "" {
		if vErr := pkce.ValidateVerifierFormat(codeVerifier); vErr == nil {
			challenge = pkce.S256Challenge(codeVerifier)
		}
	}

	now := s.now().UTC()
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	redeemed, ok, err := s.repository.Consume(opCtx, ConsumeParams{
		Code:          code,
		ClientID:      clientID,
		RedirectURI:   redirectURI,
		CodeChallenge: challenge,
		Now:           now,
	})
	if err != nil {
		return nil, storeError(err, "redeem authorization code")
	}
	if ok {
		slog.Info("Authorization code redeemed", "code", utils.Prefix(code), "client_id", clientID, "subject", redeemed.UserSubject)
		return redeemed, nil
	}

	err = s.classifyRedeem(ctx, code, clientID, redirectURI, now)
	slog.Warn("Authorization code redemption rejected", "code", utils.Prefix(code), "client_id", clientID, "reason", apperrors.GetCode(err))
	return nil, err
}

// classifyRedeem reports the first failed guard in a fixed order:
// missing, expired, used, client, redirect, unbound, PKCE.
func (s *CodeStore) classifyRedeem(ctx context.Context, code, clientID, redirectURI string, now time.Time) error {
	c, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	switch {
	case !now.Before(c.ExpiresAt):
		return apperrors.New(apperrors.ErrCodeCodeExpired, "authorization code expired")
	case c.Used:
		return apperrors.New(apperrors.ErrCodeCodeAlreadyUsed, "authorization code already used")
	case c.ClientID != clientID:
		return apperrors.New(apperrors.ErrCodeClientMismatch, "client mismatch")
	case c.RedirectURI != redirectURI:
		return apperrors.New(apperrors.ErrCodeRedirectMismatch, "Redirect URI mismatch")
	case c.UserSubject == "":
		return apperrors.New(apperrors.ErrCodeCodeNotBound, "authorization code not bound to a user")
	case c.CodeChallenge != "":
		return apperrors.New(apperrors.ErrCodePKCEFailed, "code verifier does not match challenge")
	default:
		return apperrors.New(apperrors.ErrCodeBusinessLogic, "authorization code changed during redemption")
	}
}

// DeleteExpired removes expired codes, redeemed or not.
func (s *CodeStore) DeleteExpired(ctx context.Context) (int64, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.repository.DeleteExpired(opCtx, s.now().UTC())
	if err != nil {
		return 0, storeError(err, "delete expired authorization codes")
	}
	return n, nil
}

// StartCleanup runs DeleteExpired every interval until ctx is done. The
// returned channel closes when the loop exits.
func (s *CodeStore) StartCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.DeleteExpired(ctx)
				if err != nil {
					slog.Error("Authorization code cleanup failed", "err", err)
					continue
				}
				if n > 0 {
					slog.Debug("Expired authorization codes removed", "count", n)
				}
			}
		}
	}()
	return done
}

// String keeps codes out of %v output.
func (c *AuthorizationCode) String() string {
	return fmt.Sprintf("AuthorizationCode{code=%s client=%s bound=%t used=%t}", utils.Prefix(c.Code), c.ClientID, c.UserSubject != "", c.Used)
}
