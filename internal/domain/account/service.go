package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/notification"
)

const (
	minPasswordLength = 8
	defaultResetTTL   = time.Hour
)

// Professionals is satisfied by professional.Service.
type Professionals interface {
	Get(ctx context.Context, id uuid.UUID) (*professional.Professional, error)
	LinkUser(ctx context.Context, id, userID uuid.UUID) error
}

// Mailer is satisfied by notification.Mailer.
type Mailer interface {
	SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*notification.Notification, error)
}

type Options struct {
	JWT        auth.JWTConfig
	BaseURL    string
	ClinicName string
	ResetTTL   time.Duration
	// InviteRole is the role given to invited professionals.
	InviteRole string
}

type Service struct {
	repo   Repository
	tx     db.TxRunner
	pros   Professionals
	mail   Mailer
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
	hash   func(string) (string, error)
}

func NewService(repo Repository, tx db.TxRunner, pros Professionals, mail Mailer, opts Options, logger zerolog.Logger) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	if opts.InviteRole == "" {
		opts.InviteRole = auth.RoleProfessional
	}
	return &Service{
		repo: repo, tx: tx, pros: pros, mail: mail, opts: opts, logger: logger,
		now: time.Now, hash: auth.HashPassword,
	}
}

var errBadCredentials = apperr.Unauthorized("invalid email or password")

// Login checks the password and issues a token carrying the role's
// permissions.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, errBadCredentials
	}
	u, err := s.repo.UserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.logger.Info().Str("user_id", u.ID.String()).Msg("login rejected")
		return nil, errBadCredentials
	}
	token, exp, err := s.opts.JWT.Issue(u.Principal(), s.now())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

// Me reloads the caller's account.
func (s *Service) Me(ctx context.Context, p *auth.Principal) (*User, error) {
	if p == nil {
		return nil, apperr.Unauthorized("not authenticated")
	}
	return s.repo.GetUser(ctx, p.UserID)
}

// -- roles --

func validateRole(in *RoleInput) error {
	v := apperr.ValidationErrors{}
	in.Name = strings.TrimSpace(in.Name)
	v.Require("name", in.Name)
	seen := make(map[string]bool, len(in.Permissions))
	perms := in.Permissions[:0]
	for _, p := range in.Permissions {
		p = strings.TrimSpace(p)
		if !auth.ValidCapability(p) {
			v.Add("permissions", fmt.Sprintf("unknown permission %q", p))
			continue
		}
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	in.Permissions = perms
	return v.Err()
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if roles == nil && err == nil {
		roles = []*Role{}
	}
	return roles, err
}

func (s *Service) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	if err := validateRole(&in); err != nil {
		return nil, err
	}
	r := &Role{Name: in.Name, Permissions: in.Permissions}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	if err := s.repo.CreateRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, in RoleInput) (*Role, error) {
	if err := validateRole(&in); err != nil {
		return nil, err
	}
	r, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Name, r.Permissions = in.Name, in.Permissions
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	if err := s.repo.UpdateRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRole fails with a conflict while users still hold the role.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRole(ctx, id)
}

// -- users --

func validateUser(in *UserInput, create bool) error {
	v := apperr.ValidationErrors{}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	v.Require("name", in.Name)
	v.Require("email", in.Email)
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			v.Add("email", "email is not valid")
		}
	}
	if in.RoleID == uuid.Nil {
		v.Add("role_id", "role_id is required")
	}
	switch {
	case create && in.Password == "":
		v.Add("password", "password is required")
	case in.Password != "" && len(in.Password) < minPasswordLength:
		v.Add("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	return v.Err()
}

func (s *Service) ListUsers(ctx context.Context, q ListQuery) ([]*User, int, error) {
	q.Search = strings.TrimSpace(q.Search)
	users, total, err := s.repo.ListUsers(ctx, q)
	if users == nil && err == nil {
		users = []*User{}
	}
	return users, total, err
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser never creates a super-admin; that account only comes from
// SeedAdmin.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	if err := validateUser(&in, true); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetRole(ctx, in.RoleID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("role_id", "role does not exist")
		}
		return nil, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Name: in.Name, Email: in.Email, RoleID: in.RoleID, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, u.ID)
}

// UpdateUser edits an account. Only the super-admin may edit the
// super-admin account.
func (s *Service) UpdateUser(ctx context.Context, actor *auth.Principal, id uuid.UUID, in UserInput) (*User, error) {
	if err := validateUser(&in, false); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.SuperAdmin && (actor == nil || actor.UserID != u.ID) {
		return nil, apperr.Forbidden("only the super-admin may edit the super-admin account")
	}
	if in.RoleID != u.RoleID {
		if _, err := s.repo.GetRole(ctx, in.RoleID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Validation("role_id", "role does not exist")
			}
			return nil, err
		}
	}
	u.Name, u.Email, u.RoleID = in.Name, in.Email, in.RoleID
	if in.Password != "" {
		if u.PasswordHash, err = s.hash(in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, id)
}

// DeleteUser refuses to delete the caller's own account and the
// super-admin account.
func (s *Service) DeleteUser(ctx context.Context, actor *auth.Principal, id uuid.UUID) error {
	if actor != nil && actor.UserID == id {
		return apperr.Forbidden("you cannot delete your own account")
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.SuperAdmin {
		return apperr.Forbidden("the super-admin account cannot be deleted")
	}
	return s.repo.DeleteUser(ctx, id)
}

// -- reset tokens --

func newResetToken() (raw, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Service) resetLink(token string) string {
	return strings.TrimRight(s.opts.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *Service) sendReset(ctx context.Context, templateID string, u *User, token string) bool {
	if s.mail == nil {
		return false
	}
	_, err := s.mail.SendTemplate(ctx, templateID, u.Email, map[string]string{
		"name":       u.Name,
		"clinic":     s.opts.ClinicName,
		"reset_link": s.resetLink(token),
		"valid_for":  s.opts.ResetTTL.String(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Str("template", templateID).Msg("reset email not delivered")
		return false
	}
	return true
}

// Invite creates the account of a professional with no usable password
// and emails a link to choose one. The account and the link to the
// professional are written together.
func (s *Service) Invite(ctx context.Context, professionalID uuid.UUID) (*Invitation, error) {
	var (
		u       *User
		token   string
		expires = s.now().Add(s.opts.ResetTTL)
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		pro, err := s.pros.Get(ctx, professionalID)
		if err != nil {
			return err
		}
		if pro.UserID != nil {
			return apperr.Conflict("professional already has an account")
		}
		if pro.Email == nil || strings.TrimSpace(*pro.Email) == "" {
			return apperr.Validation("email", "professional has no email address")
		}
		role, err := s.repo.RoleByName(ctx, s.opts.InviteRole)
		if err != nil {
			return fmt.Errorf("load role %s: %w", s.opts.InviteRole, err)
		}
		u = &User{Name: pro.FullName(), Email: strings.TrimSpace(*pro.Email), RoleID: role.ID}
		if err := s.repo.CreateUser(ctx, u); err != nil {
			return err
		}
		raw, hashed, err := newResetToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		if err := s.repo.SetResetToken(ctx, u.ID, hashed, expires); err != nil {
			return err
		}
		token = raw
		return s.pros.LinkUser(ctx, professionalID, u.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("professional_id", professionalID.String()).Str("user_id", u.ID.String()).Msg("professional invited")
	sent := s.sendReset(ctx, notification.TemplateInvite, u, token)
	if loaded, err := s.repo.GetUser(ctx, u.ID); err == nil {
		u = loaded
	}
	return &Invitation{User: u, ExpiresAt: expires, EmailSent: sent}, nil
}

// ForgotPassword emails a reset link when the address belongs to an
// account. Unknown addresses are not reported to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	u, err := s.repo.UserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	raw, hashed, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if err := s.repo.SetResetToken(ctx, u.ID, hashed, s.now().Add(s.opts.ResetTTL)); err != nil {
		return err
	}
	s.sendReset(ctx, notification.TemplatePasswordReset, u, raw)
	return nil
}

var errBadResetToken = apperr.Validation("token", "reset link is invalid or has expired")

// ResetPassword sets a new password from an unexpired reset token. The
// token is spent by the same write.
func (s *Service) ResetPassword(ctx context.Context, req ResetRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return errBadResetToken
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	u, err := s.repo.UserByResetToken(ctx, hashToken(token))
	if errors.Is(err, apperr.ErrNotFound) {
		return errBadResetToken
	}
	if err != nil {
		return err
	}
	if u.ResetExpiresAt == nil || !s.now().Before(*u.ResetExpiresAt) {
		return errBadResetToken
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("password reset")
	return nil
}

// SeedAdmin creates the single super-admin account.
func (s *Service) SeedAdmin(ctx context.Context, name, email, password string) (*User, error) {
	in := UserInput{Name: name, Email: email, Password: password, RoleID: uuid.New()}
	if err := validateUser(&in, true); err != nil {
		return nil, err
	}
	var u *User
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.SuperAdmin(ctx); err == nil {
			return apperr.Conflict("a super-admin account already exists")
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		role, err := s.repo.RoleByName(ctx, auth.RoleAdmin)
		if err != nil {
			return fmt.Errorf("load role %s: %w", auth.RoleAdmin, err)
		}
		hash, err := s.hash(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u = &User{Name: in.Name, Email: in.Email, RoleID: role.ID, PasswordHash: hash, SuperAdmin: true}
		return s.repo.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
