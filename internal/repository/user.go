package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	userColumns = `id, email, password_hash, first_name, last_name, phone, role, avatar,
		is_active, created_at, updated_at`

	createUserSQL = `INSERT INTO users (email, password_hash, first_name, last_name, phone, role, avatar, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	listUsersSQL      = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	updateUserSQL = `UPDATE users SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
		phone = $6, role = $7, avatar = $8, is_active = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteUserSQL = `DELETE FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (email, password_hash, first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role,
			is_active = TRUE, updated_at = now()
		RETURNING id`
)

var errUserHasOrders = apperr.Conflict("Cannot delete user with existing orders")

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u and fills its generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.db.QueryRow(ctx, createUserSQL,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.Avatar, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, sql string, arg any) (*user.User, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %v: %w", arg, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return nil, notFound(err, user.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.db.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	err := r.db.QueryRow(ctx, updateUserSQL,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.Avatar, u.IsActive,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return notFound(err, user.ErrNotFound)
	}
	return nil
}

// Delete removes the account. Cart rows, favorites and addresses go with it;
// accounts with orders cannot be deleted.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errUserHasOrders
		}
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	return affected(tag, user.ErrNotFound)
}

// UpsertAdmin creates or refreshes an administrator account and returns its id.
func (r *UserRepository) UpsertAdmin(ctx context.Context, email, passwordHash, firstName, lastName string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, upsertUserSQL, email, passwordHash, firstName, lastName, string(user.RoleAdmin)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting admin %q: %w", email, err)
	}
	return id, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		role string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &role, &u.Avatar,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	u.Role = user.Role(role)
	return u, err
}
