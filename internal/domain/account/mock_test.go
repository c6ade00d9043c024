package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/platform/apperr"
)

type mockRepo struct {
	roles map[uuid.UUID]*Role
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{roles: make(map[uuid.UUID]*Role), users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Snapshot() func() {
	users := make(map[uuid.UUID]*User, len(m.users))
	for k, v := range m.users {
		cp := *v
		users[k] = &cp
	}
	return func() { m.users = users }
}

func (m *mockRepo) withRole(u *User) *User {
	cp := *u
	if r, ok := m.roles[u.RoleID]; ok {
		cp.RoleName, cp.Permissions = r.Name, r.Permissions
	}
	return &cp
}

func (m *mockRepo) CreateRole(_ context.Context, r *Role) error {
	for _, other := range m.roles {
		if other.Name == r.Name {
			return apperr.Validation("name", "role name is already in use")
		}
	}
	r.ID = uuid.New()
	cp := *r
	m.roles[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetRole(_ context.Context, id uuid.UUID) (*Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, apperr.NotFound("role")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) RoleByName(_ context.Context, name string) (*Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("role")
}

func (m *mockRepo) UpdateRole(_ context.Context, r *Role) error {
	if _, ok := m.roles[r.ID]; !ok {
		return apperr.NotFound("role")
	}
	cp := *r
	m.roles[r.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteRole(_ context.Context, id uuid.UUID) error {
	if _, ok := m.roles[id]; !ok {
		return apperr.NotFound("role")
	}
	for _, u := range m.users {
		if u.RoleID == id {
			return apperr.Conflict("role is assigned to users")
		}
	}
	delete(m.roles, id)
	return nil
}

func (m *mockRepo) ListRoles(context.Context) ([]*Role, error) {
	var out []*Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepo) CreateUser(_ context.Context, u *User) error {
	for _, other := range m.users {
		if strings.EqualFold(other.Email, u.Email) {
			return apperr.Validation("email", "email is already in use")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return m.withRole(u), nil
}

func (m *mockRepo) find(match func(*User) bool) (*User, error) {
	for _, u := range m.users {
		if match(u) {
			return m.withRole(u), nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *mockRepo) UserByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockRepo) UserByResetToken(_ context.Context, tokenHash string) (*User, error) {
	return m.find(func(u *User) bool { return u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash })
}

func (m *mockRepo) SuperAdmin(context.Context) (*User, error) {
	return m.find(func(u *User) bool { return u.SuperAdmin })
}

func (m *mockRepo) UpdateUser(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("user")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteUser(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("user")
	}
	delete(m.users, id)
	return nil
}

func (m *mockRepo) ListUsers(_ context.Context, q ListQuery) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		if q.Search == "" || strings.Contains(strings.ToLower(u.Name), strings.ToLower(q.Search)) {
			out = append(out, m.withRole(u))
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) SetPassword(_ context.Context, id uuid.UUID, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.PasswordHash, u.ResetTokenHash, u.ResetExpiresAt = hash, nil, nil
	return nil
}

func (m *mockRepo) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.ResetTokenHash, u.ResetExpiresAt = &tokenHash, &expires
	return nil
}

type stubProfessionals struct {
	pros    map[uuid.UUID]*professional.Professional
	failing bool
}

func (s *stubProfessionals) Get(_ context.Context, id uuid.UUID) (*professional.Professional, error) {
	p, ok := s.pros[id]
	if !ok {
		return nil, apperr.NotFound("professional")
	}
	cp := *p
	return &cp, nil
}

func (s *stubProfessionals) LinkUser(_ context.Context, id, userID uuid.UUID) error {
	if s.failing {
		return apperr.Internal("link failed", nil)
	}
	s.pros[id].UserID = &userID
	return nil
}
