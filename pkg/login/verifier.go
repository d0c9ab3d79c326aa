package login

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/user"
	"github.com/tendant/simple-oidc/pkg/utils"
)

// IdentifierKind says which user field a login identifier is matched against
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

// InferIdentifierKind treats anything containing "@" as an email address.
func InferIdentifierKind(identifier string) IdentifierKind {
	if strings.Contains(identifier, "@") {
		return IdentifierEmail
	}
	return IdentifierPhone
}

// CredentialVerifier checks local email/phone + password logins
type CredentialVerifier struct {
	users user.Repository

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialVerifier(users user.Repository) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the user whose identifier and password match.
// Failures are ErrCodeUserNotFound, ErrCodeAccountInactive or
// ErrCodeInvalidCredentials, in that order.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier string, kind IdentifierKind, password string) (*user.User, error) {
	if identifier == "" {
		return nil, apperrors.MissingParameter("identifier")
	}

	var u *user.User
	var err error
	switch kind {
	case IdentifierEmail:
		u, err = v.users.GetByEmail(ctx, identifier)
	case IdentifierPhone:
		u, err = v.users.GetByPhone(ctx, identifier)
	default:
		return nil, apperrors.InvalidInput("identifier_kind", string(kind))
	}
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeUserNotFound) {
			v.burnComparison(password)
			slog.Info("Login failed: user not found", "kind", kind, "identifier", maskIdentifier(identifier, kind))
			return nil, apperrors.New(apperrors.ErrCodeUserNotFound, "user not found")
		}
		return nil, apperrors.InternalWrap(err, "failed to look up user")
	}

	if !u.IsActive {
		slog.Info("Login failed: account inactive", "subject", u.Subject)
		return nil, apperrors.New(apperrors.ErrCodeAccountInactive, "account is inactive")
	}

	if !u.HasPassword() {
		v.burnComparison(password)
		slog.Info("Login failed: federation-only account", "subject", u.Subject)
		return nil, apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid credentials")
	}

	hasher := HasherFor(u.PasswordHash)
	ok, err := hasher.Verify(password, u.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			slog.Warn("Password verification error", "subject", u.Subject, "err", err)
		}
		return nil, apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid credentials")
	}

	if a, isArgon := hasher.(*Argon2Hasher); isArgon && a.NeedsRehash(u.PasswordHash) {
		slog.Debug("Password hash uses outdated argon2id parameters", "subject", u.Subject)
	}
	slog.Info("Login succeeded", "subject", u.Subject)
	return u, nil
}

// burnComparison spends one bcrypt comparison so a missing account costs
// about as long as a wrong password.
func (v *CredentialVerifier) burnComparison(password string) {
	v.dummyOnce.Do(func() {
		seed, err := utils.RandomHex(16)
		if err != nil {
			return
		}
		v.dummyHash, _ = HashPassword(seed)
	})
	if password == "" || v.dummyHash == "" {
		return
	}
	_, _ = (&BcryptHasher{}).Verify(password, v.dummyHash)
}

func maskIdentifier(identifier string, kind IdentifierKind) string {
	if kind == IdentifierEmail {
		return utils.MaskEmail(identifier)
	}
	return utils.MaskPhone(identifier)
}
