package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// UserService wraps the directory with the find-or-create rule used by
// federated logins.
type UserService struct {
	repo Repository
}

func NewUserService(repo Repository) *UserService {
	return &UserService{repo: repo}
}

// Repository exposes the underlying directory for read paths.
func (s *UserService) Repository() Repository {
	return s.repo
}

// CreateUser provisions a local account.
func (s *UserService) CreateUser(ctx context.Context, u *User) (*User, error) {
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	slog.Info("User created", "subject", created.Subject, "user_type", created.UserType)
	return created, nil
}

// FindOrCreateFederated returns the user bound to template.FederatedID, creating
// it from template when absent. A concurrent first login that loses the insert
// race re-reads the winner's row, so every caller sees the same subject.
func (s *UserService) FindOrCreateFederated(ctx context.Context, template *User) (*User, bool, error) {
	if template == nil || template.FederatedID == "" {
		return nil, false, apperrors.InvalidInput("federated_id", "cannot be empty")
	}

	existing, err := s.repo.GetByFederatedID(ctx, template.FederatedID)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeUserNotFound) {
		return nil, false, fmt.Errorf("failed to look up federated user: %w", err)
	}

	created, err := s.repo.Create(ctx, template)
	if err == nil {
		slog.Info("Federated user created", "subject", created.Subject, "user_type", created.UserType)
		return created, true, nil
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrCodeUserAlreadyExists {
		return nil, false, fmt.Errorf("failed to create federated user: %w", err)
	}

	existing, err = s.repo.GetByFederatedID(ctx, template.FederatedID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-read federated user after conflict: %w", err)
	}
	return existing, false, nil
}
