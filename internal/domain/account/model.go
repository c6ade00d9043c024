package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/auth"
)

// Role groups capabilities. Permissions hold capability names or "*".
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	RoleID         uuid.UUID  `json:"role_id"`
	RoleName       string     `json:"role"`
	Permissions    []string   `json:"permissions"`
	SuperAdmin     bool       `json:"is_super_admin"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	PasswordHash   string     `json:"-"`
	ResetTokenHash *string    `json:"-"`
	ResetExpiresAt *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Principal is what a login embeds in the token.
func (u *User) Principal() auth.Principal {
	return auth.Principal{
		UserID:         u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.RoleName,
		Permissions:    u.Permissions,
		SuperAdmin:     u.SuperAdmin,
		ProfessionalID: u.ProfessionalID,
	}
}

// UserInput is the body of user create and update. Password is optional on
// update.
type UserInput struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	RoleID   uuid.UUID `json:"role_id"`
	Password string    `json:"password"`
}

type RoleInput struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type ListQuery struct {
	Search string
	Limit  int
	Offset int
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type ForgotRequest struct {
	Email string `json:"email"`
}

type ResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Invitation reports the account created for a professional. The reset
// token only travels by email.
type Invitation struct {
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
	EmailSent bool      `json:"email_sent"`
}
