package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// Repository is the user directory consumed by the login and token flows
type Repository interface {
	GetBySubject(ctx context.Context, subject string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByFederatedID(ctx context.Context, federatedID string) (*User, error)

	// Create stores a new user. A missing Subject is generated. Unique
	// violations on email, phone or federated id return ErrCodeUserAlreadyExists.
	Create(ctx context.Context, u *User) (*User, error)
}

func notFound(field, value string) error {
	return apperrors.Newf(apperrors.ErrCodeUserNotFound, "user not found by %s", field).WithDetail(field, value)
}

func alreadyExists(err error) error {
	if err == nil {
		return apperrors.New(apperrors.ErrCodeUserAlreadyExists, "user already exists")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUserAlreadyExists, "user already exists")
}

func prepareNew(u *User) *User {
	n := u.clone()
	if n.Subject == "" {
		n.Subject = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UserType == "" {
		n.UserType = UserTypeCustomer
	}
	n.Email = normalizeEmail(n.Email)
	n.Phone = normalizePhone(n.Phone)
	return n
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	users map[string]*User
	mutex sync.RWMutex
}

// NewInMemoryRepository creates a new in-memory user repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[string]*User),
	}
}

func (r *InMemoryRepository) GetBySubject(ctx context.Context, subject string) (*User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, ok := r.users[subject]
	if !ok {
		return nil, notFound("subject", subject)
	}
	return u.clone(), nil
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	return r.find("email", email, func(u *User) bool { return email != "" && u.Email == email })
}

func (r *InMemoryRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	phone = normalizePhone(phone)
	return r.find("phone", phone, func(u *User) bool { return phone != "" && u.Phone == phone })
}

func (r *InMemoryRepository) GetByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	return r.find("federated_id", federatedID, func(u *User) bool { return federatedID != "" && u.FederatedID == federatedID })
}

func (r *InMemoryRepository) find(field, value string, match func(*User) bool) (*User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return u.clone(), nil
		}
	}
	return nil, notFound(field, value)
}

// Create checks uniqueness and inserts under one write lock.
func (r *InMemoryRepository) Create(ctx context.Context, u *User) (*User, error) {
	if u == nil {
		return nil, apperrors.InvalidInput("user", "cannot be nil")
	}
	n := prepareNew(u)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[n.Subject]; exists {
		return nil, alreadyExists(nil)
	}
	for _, existing := range r.users {
		if (n.Email != "" && existing.Email == n.Email) ||
			(n.Phone != "" && existing.Phone == n.Phone) ||
			(n.FederatedID != "" && existing.FederatedID == n.FederatedID) {
			return nil, alreadyExists(nil)
		}
	}

	r.users[n.Subject] = n
	return n.clone(), nil
}
