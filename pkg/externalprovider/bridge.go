package externalprovider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/user"
	"github.com/tendant/simple-oidc/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 8 * time.Second

// placeholderHashLength is the number of hex characters of the HMAC kept in
// a synthesized email's local part
const placeholderHashLength = 16

// Bridge turns a remote authorization code into a local user, creating the
// account on first login.
type Bridge struct {
	provider          Provider
	users             *user.UserService
	timeout           time.Duration
	placeholderSecret []byte
	defaultUserType   user.UserType
	selfService       map[user.UserType]bool
	tracer            trace.Tracer
}

// BridgeOption is a function that configures a Bridge
type BridgeOption func(*Bridge)

// WithTimeout bounds each call to the remote provider
func WithTimeout(timeout time.Duration) BridgeOption {
	return func(b *Bridge) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithPlaceholderSecret keys the HMAC used for synthesized emails
func WithPlaceholderSecret(secret string) BridgeOption {
	return func(b *Bridge) {
		b.placeholderSecret = []byte(secret)
	}
}

// WithDefaultUserType sets the type of accounts created through this provider
// when the authorization request names none. Federation never creates admins.
func WithDefaultUserType(t user.UserType) BridgeOption {
	return func(b *Bridge) {
		if t != user.UserTypeAdmin {
			b.defaultUserType = t
		}
	}
}

// WithSelfServiceUserTypes replaces the user types an authorization request
// may ask for. Admin is never accepted from a request.
func WithSelfServiceUserTypes(types ...user.UserType) BridgeOption {
	return func(b *Bridge) {
		b.selfService = make(map[user.UserType]bool, len(types))
		for _, t := range types {
			if t != user.UserTypeAdmin {
				b.selfService[t] = true
			}
		}
	}
}

func NewBridge(provider Provider, users *user.UserService, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		provider:        provider,
		users:           users,
		timeout:         DefaultTimeout,
		defaultUserType: user.UserTypeCustomer,
		selfService: map[user.UserType]bool{
			user.UserTypeCustomer: true,
			user.UserTypeProvider: true,
		},
		tracer: otel.Tracer("github.com/tendant/simple-oidc/pkg/externalprovider"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Provider() Provider {
	return b.provider
}

// DefaultUserType is the type given to new accounts when none is requested
func (b *Bridge) DefaultUserType() user.UserType {
	return b.defaultUserType
}

// ResolveUserType maps the user_type of an unauthenticated authorization
// request to the type a new account gets. Anything outside the self-service
// list falls back to the provider default.
func (b *Bridge) ResolveUserType(requested string) user.UserType {
	t := user.ParseUserType(requested, b.defaultUserType)
	if t != b.defaultUserType && !b.selfService[t] {
		slog.Warn("Requested user type not allowed for federated sign-up", "provider", b.provider.Name(),
			"requested", t, "using", b.defaultUserType)
		return b.defaultUserType
	}
	return t
}

// ExchangeCodeForUser exchanges remoteCode, loads the remote profile and
// finds or creates the local account bound to it. Slow or unreachable
// providers yield ErrCodeFederationTimeout, refusals ErrCodeInvalidFederatedCode
// and unparseable answers ErrCodeFederationUpstream.
func (b *Bridge) ExchangeCodeForUser(ctx context.Context, remoteCode string, userType user.UserType) (_ *user.User, err error) {
	ctx, span := b.tracer.Start(ctx, "Bridge.ExchangeCodeForUser",
		trace.WithAttributes(attribute.String("provider", b.provider.Name())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.GetCode(err)))
		}
		span.End()
	}()

	if remoteCode == "" {
		return nil, apperrors.MissingParameter("code")
	}

	token, err := b.exchange(ctx, remoteCode)
	if err != nil {
		return nil, err
	}
	profile, err := b.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	federatedID := b.provider.Name() + ":" + profile.ID
	template := &user.User{}
	if err := copier.CopyWithOption(template, profile, copier.Option{IgnoreEmpty: true}); err != nil {
		return nil, apperrors.InternalWrap(err, "failed to map remote profile")
	}
	template.FederatedID = federatedID
	template.Email = b.placeholderEmail(federatedID)
	template.UserType = userType
	template.IsActive = true

	u, created, err := b.users.FindOrCreateFederated(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve federated user: %w", err)
	}
	if !u.IsActive {
		slog.Warn("Federated login for inactive account", "provider", b.provider.Name(), "subject", u.Subject)
		return nil, apperrors.New(apperrors.ErrCodeAccountInactive, "account is inactive")
	}

	slog.Info("Federated login resolved", "provider", b.provider.Name(), "subject", u.Subject, "created", created)
	return u, nil
}

func (b *Bridge) exchange(ctx context.Context, remoteCode string) (*RemoteToken, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	ctx, span := b.tracer.Start(ctx, "Provider.Exchange")
	defer span.End()

	token, err := b.provider.Exchange(ctx, remoteCode)
	if err != nil {
		mapped := classifyRemoteError(err, "code exchange")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.GetCode(mapped)))
		slog.Warn("Federated code exchange failed", "provider", b.provider.Name(), "code", utils.Prefix(remoteCode),
			"reason", apperrors.GetCode(mapped), "err", err)
		return nil, mapped
	}
	return token, nil
}

func (b *Bridge) fetchProfile(ctx context.Context, token *RemoteToken) (*RemoteProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	ctx, span := b.tracer.Start(ctx, "Provider.FetchProfile")
	defer span.End()

	profile, err := b.provider.FetchProfile(ctx, token)
	if err == nil && profile.ID == "" {
		err = rejected("profile has no subject")
	}
	if err != nil {
		mapped := classifyRemoteError(err, "profile fetch")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.GetCode(mapped)))
		slog.Warn("Federated profile fetch failed", "provider", b.provider.Name(),
			"reason", apperrors.GetCode(mapped), "err", err)
		return nil, mapped
	}
	return profile, nil
}

// placeholderEmail derives a stable address under a reserved domain, so the
// account satisfies the unique email column without exposing the remote ID.
func (b *Bridge) placeholderEmail(federatedID string) string {
	mac := hmac.New(sha256.New, b.placeholderSecret)
	mac.Write([]byte(federatedID))
	local := hex.EncodeToString(mac.Sum(nil))[:placeholderHashLength]
	return local + "@" + strings.ToLower(b.provider.Name()) + user.PlaceholderEmailDomainSuffix
}

// DerivePlaceholderSecret labels stateSecret so the placeholder email key is
// stable for as long as the state secret is, without the two being equal.
func DerivePlaceholderSecret(stateSecret string) string {
	mac := hmac.New(sha256.New, []byte(stateSecret))
	mac.Write([]byte("simple-oidc placeholder email"))
	return hex.EncodeToString(mac.Sum(nil))
}

// classifyRemoteError separates a provider refusing the request and a
// provider answering garbage from an unreachable or failing provider, which
// is the only retryable case.
func classifyRemoteError(err error, op string) error {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrRejected):
		return apperrors.Wrapf(err, apperrors.ErrCodeInvalidFederatedCode, "%s rejected by identity provider", op)
	case errors.Is(err, ErrMalformedResponse):
		return apperrors.Wrapf(err, apperrors.ErrCodeFederationUpstream, "%s returned an unreadable response", op)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return apperrors.Wrapf(err, apperrors.ErrCodeFederationTimeout, "%s timed out", op)
	default:
		return apperrors.Wrapf(err, apperrors.ErrCodeFederationTimeout, "%s failed, identity provider unavailable", op)
	}
}
