package user

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

var (
	ErrNotFound           = apperr.NotFound("User not found")
	ErrEmailTaken         = apperr.Conflict("User with this email already exists")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	ErrAccessDenied       = apperr.Forbidden("Access denied")
	ErrInvalidRole        = apperr.BadRequest("Invalid role")
)

// User is a storefront account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Phone        *string   `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	Avatar       *string   `json:"avatar,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess reports whether the actor may act on resources owned by ownerID.
func (a Actor) CanAccess(ownerID int64) bool {
	return a.IsAdmin() || a.UserID == ownerID
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}
