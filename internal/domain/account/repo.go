package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateRole(ctx context.Context, r *Role) error
	GetRole(ctx context.Context, id uuid.UUID) (*Role, error)
	RoleByName(ctx context.Context, name string) (*Role, error)
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id uuid.UUID) error
	ListRoles(ctx context.Context) ([]*Role, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	// UserByEmail matches case-insensitively.
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByResetToken(ctx context.Context, tokenHash string) (*User, error)
	SuperAdmin(ctx context.Context) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, q ListQuery) ([]*User, int, error)

	// SetPassword stores hash and clears any pending reset token.
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error
}
