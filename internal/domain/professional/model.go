package professional

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
)

const (
	EmploymentActive   = "active"
	EmploymentLeave    = "leave"
	EmploymentInactive = "inactive"
)

var employmentStatuses = map[string]bool{
	EmploymentActive:   true,
	EmploymentLeave:    true,
	EmploymentInactive: true,
}

type Professional struct {
	ID               uuid.UUID             `json:"id"`
	PersonID         uuid.UUID             `json:"person_id"`
	FirstName        string                `json:"first_name"`
	LastName         string                `json:"last_name"`
	Email            *string               `json:"email,omitempty"`
	SpecialtyID      uuid.UUID             `json:"specialty_id"`
	SpecialtyName    string                `json:"specialty_name"`
	LicenseNumber    string                `json:"license_number"`
	EmploymentStatus string                `json:"employment_status"`
	UserID           *uuid.UUID            `json:"user_id,omitempty"`
	Windows          []availability.Window `json:"availability,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (p *Professional) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type ListQuery struct {
	Search      string
	SpecialtyID *uuid.UUID
	Limit       int
	Offset      int
}

// Availability answers "can this professional be booked then?".
type Availability struct {
	ProfessionalID uuid.UUID                  `json:"professional_id"`
	Date           string                     `json:"date"`
	Time           availability.TimeOfDay     `json:"time"`
	Result         availability.Result        `json:"result"`
	Schedule       []availability.DaySchedule `json:"schedule"`
}

// Candidate is one row of the by-service lookup used when deriving.
type Candidate struct {
	ID            uuid.UUID                  `json:"id"`
	Name          string                     `json:"name"`
	SpecialtyName string                     `json:"specialty_name"`
	Available     bool                       `json:"available"`
	HasSchedule   bool                       `json:"has_schedule"`
	Schedule      []availability.DaySchedule `json:"schedule"`
	ScheduleText  string                     `json:"schedule_text"`
}
