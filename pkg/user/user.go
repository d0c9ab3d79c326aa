package user

import (
	"strings"
	"time"
)

// UserType classifies an account
type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeProvider UserType = "provider"
	UserTypeAdmin    UserType = "admin"
)

// ParseUserType returns the UserType for s, falling back to def when s is empty or unknown.
func ParseUserType(s string, def UserType) UserType {
	switch UserType(s) {
	case UserTypeCustomer, UserTypeProvider, UserTypeAdmin:
		return UserType(s)
	}
	return def
}

// User is a local account. Subject is immutable once created.
type User struct {
	Subject      string
	Email        string
	Phone        string
	Name         string
	Avatar       string
	PasswordHash string // empty for federation-only accounts
	UserType     UserType
	IsActive     bool
	FederatedID  string // "<provider>:<remote subject>", empty for local accounts
	CreatedAt    time.Time
}

// HasPassword reports whether the account can log in with local credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) clone() *User {
	c := *u
	return &c
}

// PlaceholderEmailDomainSuffix marks synthesized emails of federation-only accounts
const PlaceholderEmailDomainSuffix = ".federated.invalid"

// IsPlaceholderEmail reports whether email was synthesized for a federated account
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(email, PlaceholderEmailDomainSuffix)
}
