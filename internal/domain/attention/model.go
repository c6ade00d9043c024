package attention

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/catalog"
	"github.com/clinic/frontdesk/internal/domain/person"
	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/domain/triage"
)

// Attention is one visit of a patient to a professional within a service.
type Attention struct {
	ID             uuid.UUID              `json:"id"`
	PersonID       uuid.UUID              `json:"patient_id"`
	ProfessionalID uuid.UUID              `json:"professional_id"`
	ServiceID      uuid.UUID              `json:"service_id"`
	TypeID         uuid.UUID              `json:"type_id"`
	StatusID       uuid.UUID              `json:"status_id"`
	Status         triage.State           `json:"status"`
	Date           string                 `json:"date"`
	Time           availability.TimeOfDay `json:"time"`
	Motive         *string                `json:"motive,omitempty"`
	Diagnosis      *string                `json:"diagnosis,omitempty"`
	Observations   *string                `json:"observations,omitempty"`
	CareNote       *string                `json:"care_note,omitempty"`
	Treatment      *string                `json:"treatment,omitempty"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	EndedAt        *time.Time             `json:"ended_at,omitempty"`
	DerivedFromID  *uuid.UUID             `json:"derived_from_id,omitempty"`
	Version        int                    `json:"version"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Row is the denormalized attention shown in lists and carried by events.
type Row struct {
	ID               uuid.UUID              `json:"id"`
	Date             string                 `json:"date"`
	Time             availability.TimeOfDay `json:"time"`
	PatientID        uuid.UUID              `json:"patient_id"`
	PatientName      string                 `json:"patient_name"`
	DocumentNumber   string                 `json:"document_number"`
	ProfessionalID   uuid.UUID              `json:"professional_id"`
	ProfessionalName string                 `json:"professional_name"`
	ServiceID        uuid.UUID              `json:"service_id"`
	ServiceName      string                 `json:"service_name"`
	TypeID           uuid.UUID              `json:"type_id"`
	TypeName         string                 `json:"type_name"`
	Tier             int                    `json:"tier"`
	StatusID         uuid.UUID              `json:"status_id"`
	Status           triage.State           `json:"status"`
	StatusName       string                 `json:"status_name"`
	Motive           *string                `json:"motive,omitempty"`
	DerivedFromID    *uuid.UUID             `json:"derived_from_id,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Detail is a Row plus the clinical record.
type Detail struct {
	Row
	Diagnosis    *string             `json:"diagnosis,omitempty"`
	Observations *string             `json:"observations,omitempty"`
	CareNote     *string             `json:"care_note,omitempty"`
	Treatment    *string             `json:"treatment,omitempty"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	EndedAt      *time.Time          `json:"ended_at,omitempty"`
	Attributes   []RecordedAttribute `json:"attributes"`
}

// QueueQuery selects queue rows. A nil Date means every date.
type QueueQuery struct {
	Date           *time.Time
	Search         string
	StatusIDs      []uuid.UUID
	ProfessionalID *uuid.UUID
	Limit          int
	Offset         int
}

type AttributeValue struct {
	AttributeID uuid.UUID `json:"attribute_id"`
	Value       string    `json:"value"`
}

type RecordedAttribute struct {
	AttributeID uuid.UUID `json:"attribute_id"`
	Name        string    `json:"name"`
	Unit        *string   `json:"unit,omitempty"`
	Value       string    `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRequest is the body of POST /attentions.
type CreateRequest struct {
	Date                string     `json:"date"`
	Time                string     `json:"time"`
	ServiceID           uuid.UUID  `json:"service_id"`
	StatusID            *uuid.UUID `json:"status_id"`
	TypeID              uuid.UUID  `json:"type_id"`
	PatientID           uuid.UUID  `json:"patient_id"`
	ProfessionalID      uuid.UUID  `json:"professional_id"`
	Motive              *string    `json:"motive"`
	Diagnosis           *string    `json:"diagnosis"`
	ConfirmOutsideHours bool       `json:"confirm_outside_hours"`
}

// Derivation names where the patient is sent next.
type Derivation struct {
	ServiceID      uuid.UUID `json:"service_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Motive         *string   `json:"motive"`
}

// FinalizeRequest is the body of POST /attentions/:id/guardar.
type FinalizeRequest struct {
	Motive       *string          `json:"motive"`
	Diagnosis    *string          `json:"diagnosis"`
	Observations *string          `json:"observations"`
	CareNote     *string          `json:"care_note"`
	Treatment    *string          `json:"treatment"`
	StartedAt    *time.Time       `json:"started_at"`
	EndedAt      *time.Time       `json:"ended_at"`
	Attributes   []AttributeValue `json:"attributes"`
	Derive       bool             `json:"derive"`
	Derivation   *Derivation      `json:"derivation"`
}

type FinalizeResult struct {
	Attention *Row `json:"attention"`
	Derived   *Row `json:"derived,omitempty"`
}

type PatientSummary struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	BirthDate      *string   `json:"birth_date,omitempty"`
	Gender         *string   `json:"gender,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Deleted        bool      `json:"deleted"`
}

// History is the clinical record around one attention.
type History struct {
	Attention *Detail        `json:"attention"`
	Patient   PatientSummary `json:"patient"`
	Previous  []*Detail      `json:"previous"`
}

// FormData feeds the attention creation form.
type FormData struct {
	*catalog.Catalog
	Professionals []*professional.Professional `json:"professionals"`
	RecentPatient *person.Recent               `json:"recent_patient"`
	Date          string                       `json:"date"`
	Time          availability.TimeOfDay       `json:"time"`
}
