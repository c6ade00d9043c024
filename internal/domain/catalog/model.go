package catalog

import (
	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/triage"
)

type Specialty struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ClinicService is a care unit. It is linked to the specialties whose
// professionals can work it.
type ClinicService struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Active       bool        `json:"active"`
	SpecialtyIDs []uuid.UUID `json:"specialty_ids"`
	Specialties  []Specialty `json:"specialties,omitempty"`
}

type AttentionType struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Tier int       `json:"tier"`
}

type Status struct {
	ID   uuid.UUID    `json:"id"`
	Code triage.State `json:"code"`
	Name string       `json:"name"`
}

// Attribute is a measurable clinical value such as weight or temperature.
type Attribute struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Unit *string   `json:"unit,omitempty"`
}

// Catalog is every reference list the desk forms need.
type Catalog struct {
	Types       []AttentionType `json:"types"`
	Statuses    []Status        `json:"statuses"`
	Attributes  []Attribute     `json:"attributes"`
	Specialties []Specialty     `json:"specialties"`
	Services    []ClinicService `json:"services"`
}
