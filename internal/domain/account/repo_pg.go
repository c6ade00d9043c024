package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func mapWriteErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if c, ok := db.UniqueViolation(err); ok {
		if strings.Contains(c, "email") {
			return apperr.Validation("email", "email is already in use")
		}
		if strings.Contains(c, "super_admin") {
			return apperr.Conflict("a super-admin account already exists")
		}
		return apperr.Validation("name", what+" name is already in use")
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		if what == "role" {
			return apperr.Conflict("role is assigned to users")
		}
		return apperr.Validation("role_id", "role does not exist")
	}
	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	return err
}

// -- roles --

const roleCols = `id, name, permissions, created_at, updated_at`

func scanRole(row pgx.Row) (*Role, error) {
	var r Role
	if err := row.Scan(&r.ID, &r.Name, &r.Permissions, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *repoPG) CreateRole(ctx context.Context, role *Role) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO role (name, permissions) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		role.Name, role.Permissions,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	return mapWriteErr(err, "role")
}

func (r *repoPG) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	role, err := scanRole(r.conn(ctx).QueryRow(ctx, `SELECT `+roleCols+` FROM role WHERE id = $1`, id))
	return role, notFound(err, "role")
}

func (r *repoPG) RoleByName(ctx context.Context, name string) (*Role, error) {
	role, err := scanRole(r.conn(ctx).QueryRow(ctx, `SELECT `+roleCols+` FROM role WHERE name = $1`, name))
	return role, notFound(err, "role")
}

func (r *repoPG) UpdateRole(ctx context.Context, role *Role) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE role SET name = $2, permissions = $3, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		role.ID, role.Name, role.Permissions,
	).Scan(&role.UpdatedAt)
	return notFound(mapWriteErr(err, "role"), "role")
}

func (r *repoPG) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM role WHERE id = $1`, id)
	if err != nil {
		return mapWriteErr(err, "role")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("role")
	}
	return nil
}

func (r *repoPG) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+roleCols+` FROM role ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Role, error) {
		return scanRole(row)
	})
}

// -- users --

const userCols = `u.id, u.name, u.email, u.role_id, ro.name, ro.permissions, u.is_super_admin,
	p.id, u.password_hash, u.reset_token_hash, u.reset_expires_at, u.created_at, u.updated_at`

const userFrom = ` FROM app_user u
	JOIN role ro ON ro.id = u.role_id
	LEFT JOIN professional p ON p.user_id = u.id`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.RoleID, &u.RoleName, &u.Permissions, &u.SuperAdmin,
		&u.ProfessionalID, &u.PasswordHash, &u.ResetTokenHash, &u.ResetExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repoPG) userWhere(ctx context.Context, cond string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+userFrom+` WHERE `+cond, arg))
	return u, notFound(err, "user")
}

func (r *repoPG) CreateUser(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (name, email, password_hash, role_id, is_super_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.RoleID, u.SuperAdmin,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapWriteErr(err, "user")
}

func (r *repoPG) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.userWhere(ctx, `u.id = $1`, id)
}

func (r *repoPG) UserByEmail(ctx context.Context, email string) (*User, error) {
	return r.userWhere(ctx, `LOWER(u.email) = LOWER($1)`, email)
}

func (r *repoPG) UserByResetToken(ctx context.Context, tokenHash string) (*User, error) {
	return r.userWhere(ctx, `u.reset_token_hash = $1`, tokenHash)
}

func (r *repoPG) SuperAdmin(ctx context.Context) (*User, error) {
	return r.userWhere(ctx, `u.is_super_admin = $1`, true)
}

func (r *repoPG) UpdateUser(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE app_user SET name = $2, email = $3, role_id = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		u.ID, u.Name, u.Email, u.RoleID, u.PasswordHash,
	).Scan(&u.UpdatedAt)
	return notFound(mapWriteErr(err, "user"), "user")
}

func (r *repoPG) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *repoPG) ListUsers(ctx context.Context, q ListQuery) ([]*User, int, error) {
	base := db.Dialect.From(goqu.T("app_user").As("u")).Prepared(true).
		Join(goqu.T("role").As("ro"), goqu.On(goqu.I("ro.id").Eq(goqu.I("u.role_id")))).
		LeftJoin(goqu.T("professional").As("p"), goqu.On(goqu.I("p.user_id").Eq(goqu.I("u.id"))))
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := db.ContainsPattern(s)
		base = base.Where(goqu.Or(
			goqu.I("u.name").ILike(pattern),
			goqu.I("u.email").ILike(pattern),
		))
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, args, err := base.Select(goqu.L(userCols)).
		Order(goqu.I("u.name").Asc()).
		Limit(uint(q.Limit)).Offset(uint(q.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*User, error) {
		return scanUser(row)
	})
	return users, total, err
}

func (r *repoPG) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *repoPG) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1`, id, tokenHash, expires)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}
