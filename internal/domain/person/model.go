package person

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/apperr"
)

const (
	DefaultDocumentType = "DNI"
	// PlaceholderLastName marks records opened at the emergency desk before
	// the patient could be identified.
	PlaceholderLastName = "Urgencia"
)

type Person struct {
	ID               uuid.UUID  `json:"id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	DocumentType     string     `json:"document_type"`
	DocumentNumber   string     `json:"document_number"`
	BirthDate        *string    `json:"birth_date,omitempty"`
	Gender           *string    `json:"gender,omitempty"`
	MaritalStatus    *string    `json:"marital_status,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	Email            *string    `json:"email,omitempty"`
	Address          *string    `json:"address,omitempty"`
	EmergencyCreated bool       `json:"emergency_created"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Recent is what the registration desk hands to the attention form after a
// patient is created.
type Recent struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	DocumentType     string    `json:"document_type"`
	DocumentNumber   string    `json:"document_number"`
	EmergencyCreated bool      `json:"emergency_created"`
}

func (p *Person) Recent() Recent {
	return Recent{
		ID:               p.ID,
		FullName:         p.FullName(),
		DocumentType:     p.DocumentType,
		DocumentNumber:   p.DocumentNumber,
		EmergencyCreated: p.EmergencyCreated,
	}
}

// FastCreateRequest carries the little the emergency desk knows. Only the
// first name is required.
type FastCreateRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Gender         string `json:"gender"`
}

// Created is returned by both registration paths.
type Created struct {
	Patient *Person `json:"patient"`
	Handoff string  `json:"handoff,omitempty"`
}

type ListQuery struct {
	Search string
	Limit  int
	Offset int
}

// ErrDocumentTaken is returned when the document number belongs to another
// person, deleted or not.
var ErrDocumentTaken = apperr.Validation("document_number", "document number is already registered")
