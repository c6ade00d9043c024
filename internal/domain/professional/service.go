package professional

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/catalog"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
)

// ServiceLookup resolves clinic services. catalog.Service satisfies it.
type ServiceLookup interface {
	GetService(ctx context.Context, id uuid.UUID) (*catalog.ClinicService, error)
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	services ServiceLookup
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, services ServiceLookup, loc *time.Location) *Service {
	return &Service{repo: repo, tx: tx, services: services, loc: loc, now: time.Now}
}

// Now is the clinic's wall clock.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

func validate(p *Professional) error {
	p.LicenseNumber = strings.TrimSpace(p.LicenseNumber)
	p.EmploymentStatus = strings.TrimSpace(p.EmploymentStatus)
	if p.EmploymentStatus == "" {
		p.EmploymentStatus = EmploymentActive
	}

	v := apperr.ValidationErrors{}
	if p.PersonID == uuid.Nil {
		v.Add("person_id", "person_id is required")
	}
	if p.SpecialtyID == uuid.Nil {
		v.Add("specialty_id", "specialty_id is required")
	}
	v.Require("license_number", p.LicenseNumber)
	if !employmentStatuses[p.EmploymentStatus] {
		v.Add("employment_status", "employment_status must be active, leave or inactive")
	}
	for i, w := range p.Windows {
		if err := w.Validate(); err != nil {
			v.Add(fmt.Sprintf("availability.%d", i), err.Error())
		}
	}
	return v.Err()
}

// Create registers a professional and, when given, their weekly windows in
// one transaction.
func (s *Service) Create(ctx context.Context, p *Professional) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if len(p.Windows) == 0 {
			return nil
		}
		return s.repo.ReplaceWindows(ctx, p.ID, p.Windows)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Professional, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	windows, err := s.repo.Windows(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	p.Windows = windows[id]
	return p, nil
}

// Update changes the professional's own fields. Windows are replaced through
// SetAvailability.
func (s *Service) Update(ctx context.Context, p *Professional) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.PersonID = existing.PersonID
	p.Windows = nil
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]*Professional, int, error) {
	return s.repo.List(ctx, q)
}

// SetAvailability replaces every window of a professional. Overlapping
// windows are accepted.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, windows []availability.Window) error {
	v := apperr.ValidationErrors{}
	for i, w := range windows {
		if err := w.Validate(); err != nil {
			v.Add(fmt.Sprintf("availability.%d", i), err.Error())
		}
	}
	if err := v.Err(); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		return s.repo.ReplaceWindows(ctx, id, windows)
	})
}

// WindowsOf loads the weekly windows of one professional.
func (s *Service) WindowsOf(ctx context.Context, id uuid.UUID) ([]availability.Window, error) {
	windows, err := s.repo.Windows(ctx, id)
	if err != nil {
		return nil, err
	}
	return windows[id], nil
}

// CheckAvailability evaluates one professional at date and tod.
func (s *Service) CheckAvailability(ctx context.Context, id uuid.UUID, date time.Time, tod availability.TimeOfDay) (*Availability, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	windows, err := s.WindowsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Availability{
		ProfessionalID: id,
		Date:           date.Format(availability.DateLayout),
		Time:           tod,
		Result:         availability.Check(windows, date, tod),
		Schedule:       availability.Summary(windows),
	}, nil
}

// ForService lists who can take a patient sent to serviceID, each flagged
// with availability at date and tod.
func (s *Service) ForService(ctx context.Context, serviceID uuid.UUID, date time.Time, tod availability.TimeOfDay) ([]Candidate, error) {
	if _, err := s.services.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	pros, err := s.repo.ByService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(pros))
	for i, p := range pros {
		ids[i] = p.ID
	}
	windows, err := s.repo.Windows(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	out := make([]Candidate, 0, len(pros))
	for _, p := range pros {
		w := windows[p.ID]
		res := availability.Check(w, date, tod)
		out = append(out, Candidate{
			ID:            p.ID,
			Name:          p.FullName(),
			SpecialtyName: p.SpecialtyName,
			Available:     res.Available,
			HasSchedule:   res.Configured,
			Schedule:      availability.Summary(w),
			ScheduleText:  availability.SummaryText(w),
		})
	}
	return out, nil
}

// LinkUser records the account created for the professional.
func (s *Service) LinkUser(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.SetUser(ctx, id, userID)
}
