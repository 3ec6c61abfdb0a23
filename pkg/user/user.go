package user

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
)

// User is an account that tasks can be assigned to.
type User struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Password  string         `json:"-"` // bcrypt hash
	Role      authority.Role `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// Principal returns the authorization identity of u.
func (u *User) Principal() authority.Principal {
	return authority.Principal{Username: u.Username, Roles: []authority.Role{u.Role}}
}

// CheckPassword reports whether plain matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// Store is the contract for user persistence.
type Store interface {
	// Register creates a user, hashing password. Username and email are unique.
	Register(ctx context.Context, username, email, password string, role authority.Role) (*User, error)

	// Get returns a user by ID, or nil when absent.
	Get(ctx context.Context, id string) (*User, error)

	// ByUsername returns a user by username, or nil when absent.
	ByUsername(ctx context.Context, username string) (*User, error)

	// ByEmail returns a user by email, or nil when absent.
	ByEmail(ctx context.Context, email string) (*User, error)

	// EnsureTable creates the users table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}

// prepare validates registration input and returns the password hash.
func prepare(username, email, password string, role authority.Role) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errs.Validation("username is required")
	}
	if !strings.Contains(email, "@") {
		return "", errs.Validation("email %q is not an address", email)
	}
	if password == "" {
		return "", errs.Validation("password is required")
	}
	if !role.Valid() {
		return "", errs.Validation("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errs.Validation("password: %v", err)
	}
	return string(hash), nil
}
