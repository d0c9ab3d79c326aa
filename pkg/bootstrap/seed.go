package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
	"github.com/tendant/simple-oidc/pkg/login"
	"github.com/tendant/simple-oidc/pkg/oauth2client"
	"github.com/tendant/simple-oidc/pkg/user"
	"github.com/tendant/simple-oidc/pkg/utils"
)

// EnsureClient registers client unless a client with the same id exists.
// It returns true when the client was created.
func EnsureClient(ctx context.Context, clients *oauth2client.ClientService, client *oauth2client.RegisteredClient) (bool, error) {
	_, err := clients.Register(ctx, client)
	switch {
	case err == nil:
		return true, nil
	case apperrors.IsCode(err, apperrors.ErrCodeConflict):
		slog.Info("Seed client already registered", "client_id", client.ClientID)
		return false, nil
	default:
		return false, fmt.Errorf("failed to register seed client: %w", err)
	}
}

// LocalUserConfig describes the first local account to provision
type LocalUserConfig struct {
	Email    string
	Phone    string
	Name     string
	Password string
	UserType user.UserType
}

// LocalUserResult reports what EnsureLocalUser did
type LocalUserResult struct {
	Subject string
	Created bool // false if an account with the same email or phone existed
}

// EnsureLocalUser creates a password account unless one with the same email
// or phone already exists.
func EnsureLocalUser(ctx context.Context, users *user.UserService, cfg LocalUserConfig) (*LocalUserResult, error) {
	if cfg.Email == "" && cfg.Phone == "" {
		return nil, fmt.Errorf("invalid bootstrap configuration: email or phone is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("invalid bootstrap configuration: password is required")
	}

	if existing, err := findExisting(ctx, users.Repository(), cfg); err != nil {
		return nil, err
	} else if existing != nil {
		slog.Info("Bootstrap user already exists - skipping", "subject", existing.Subject)
		return &LocalUserResult{Subject: existing.Subject}, nil
	}

	hash, err := login.HashPassword(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash bootstrap password: %w", err)
	}
	userType := cfg.UserType
	if userType == "" {
		userType = user.UserTypeAdmin
	}

	created, err := users.CreateUser(ctx, &user.User{
		Email:        cfg.Email,
		Phone:        cfg.Phone,
		Name:         cfg.Name,
		PasswordHash: hash,
		UserType:     userType,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap user: %w", err)
	}
	slog.Info("Bootstrap user created", "subject", created.Subject,
		"email", utils.MaskEmail(cfg.Email), "user_type", created.UserType)
	return &LocalUserResult{Subject: created.Subject, Created: true}, nil
}

func findExisting(ctx context.Context, repo user.Repository, cfg LocalUserConfig) (*user.User, error) {
	lookups := []struct {
		value string
		get   func(context.Context, string) (*user.User, error)
	}{
		{cfg.Email, repo.GetByEmail},
		{cfg.Phone, repo.GetByPhone},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		u, err := l.get(ctx, l.value)
		if err == nil {
			return u, nil
		}
		if !apperrors.IsCode(err, apperrors.ErrCodeUserNotFound) {
			return nil, fmt.Errorf("failed to look up bootstrap user: %w", err)
		}
	}
	return nil, nil
}
