package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(u *User) (token string, expiresAt time.Time, err error)
}

// CreateInput holds the fields accepted when creating an account.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	Role      Role
	Avatar    *string
}

// UpdateInput holds optional account changes. Nil fields are left unchanged.
type UpdateInput struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Phone     *string
	Role      *Role
	Avatar    *string
	IsActive  *bool
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        *User     `json:"user"`
}

// Service implements account management and login.
type Service struct {
	users  Repository
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewService creates a user Service.
func NewService(users Repository, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Register creates a USER account regardless of the requested role.
func (s *Service) Register(ctx context.Context, in CreateInput) (*User, error) {
	in.Role = RoleUser
	return s.create(ctx, in)
}

// Create creates an account with any role. Admin only.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in CreateInput) (*User, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := &User{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		Role:         in.Role,
		Avatar:       in.Avatar,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// FindAll lists every account. Admin only.
func (s *Service) FindAll(ctx context.Context, actor Actor) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	return s.users.List(ctx)
}

// FindOne returns an account visible to the actor.
func (s *Service) FindOne(ctx context.Context, actor Actor, id int64) (*User, error) {
	if !actor.CanAccess(id) {
		return nil, ErrAccessDenied
	}
	return s.users.GetByID(ctx, id)
}

// Update applies in to the account. Only admins may change roles or the
// active flag.
func (s *Service) Update(ctx context.Context, actor Actor, id int64, in UpdateInput) (*User, error) {
	if !actor.CanAccess(id) {
		return nil, ErrAccessDenied
	}
	if (in.Role != nil || in.IsActive != nil) && !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		if _, err := mail.ParseAddress(*in.Email); err != nil {
			return nil, apperr.BadRequest("email must be a valid email address")
		}
		u.Email = normalizeEmail(*in.Email)
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLen {
			return nil, errPasswordTooShort
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		u.PasswordHash = hash
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Avatar != nil {
		u.Avatar = in.Avatar
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, ErrInvalidRole
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// UpdateAvatar points the account avatar at url.
func (s *Service) UpdateAvatar(ctx context.Context, id int64, url string) (*User, error) {
	return s.Update(ctx, Actor{UserID: id, Role: RoleUser}, id, UpdateInput{Avatar: &url})
}

// Remove deletes an account. Admin only.
func (s *Service) Remove(ctx context.Context, actor Actor, id int64) error {
	if !actor.IsAdmin() {
		return ErrAccessDenied
	}
	return s.users.Delete(ctx, id)
}

// Login verifies credentials and issues a bearer token. Unknown and inactive
// accounts are indistinguishable from a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	return &Session{AccessToken: token, ExpiresAt: exp, User: u}, nil
}

const minPasswordLen = 6

var errPasswordTooShort = apperr.BadRequest("password must be at least 6 characters")

func validateCreate(in CreateInput) error {
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.BadRequest("email must be a valid email address")
	}
	if len(in.Password) < minPasswordLen {
		return errPasswordTooShort
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return apperr.BadRequest("firstName and lastName are required")
	}
	if !in.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
