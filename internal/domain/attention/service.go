package attention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/catalog"
	"github.com/clinic/frontdesk/internal/domain/person"
	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/internal/platform/blobstore"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/events"
	"github.com/clinic/frontdesk/internal/platform/handoff"
)

// Catalog is the reference data the workflow resolves. catalog.Service
// satisfies it.
type Catalog interface {
	Status(ctx context.Context, state triage.State) (catalog.Status, error)
	StatusByID(ctx context.Context, id uuid.UUID) (catalog.Status, error)
	StatusIDs(ctx context.Context, codes []triage.State) ([]uuid.UUID, error)
	Type(ctx context.Context, id uuid.UUID) (*catalog.AttentionType, error)
	GetService(ctx context.Context, id uuid.UUID) (*catalog.ClinicService, error)
	Catalog(ctx context.Context) (*catalog.Catalog, error)
}

// Professionals is satisfied by professional.Service.
type Professionals interface {
	Get(ctx context.Context, id uuid.UUID) (*professional.Professional, error)
	List(ctx context.Context, q professional.ListQuery) ([]*professional.Professional, int, error)
}

// Patients is satisfied by person.Service.
type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*person.Person, error)
}

type Deps struct {
	Catalog       Catalog
	Professionals Professionals
	Patients      Patients
	Handoffs      handoff.Store
	Events        events.Publisher
	Blobs         blobstore.Store
	Logger        zerolog.Logger
}

type Options struct {
	Location      *time.Location
	QueueStatuses []triage.State
	PerPage       int
	ClinicName    string
}

type Service struct {
	repo Repository
	tx   db.TxRunner
	Deps
	opts Options
	now  func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, deps Deps, opts Options) *Service {
	if deps.Events == nil {
		deps.Events = events.Nop
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if len(opts.QueueStatuses) == 0 {
		opts.QueueStatuses = []triage.State{triage.Waiting, triage.InProgress, triage.Cancelled}
	}
	return &Service{repo: repo, tx: tx, Deps: deps, opts: opts, now: time.Now}
}

// clock is the current time in the clinic's zone.
func (s *Service) clock() time.Time {
	return s.now().In(s.opts.Location)
}

func (s *Service) publish(ctx context.Context, kind events.Kind, id uuid.UUID) {
	row, err := s.repo.Row(ctx, id)
	if err != nil {
		s.Logger.Warn().Err(err).Str("attention_id", id.String()).Msg("load attention for event")
		return
	}
	ev, err := events.New(kind, events.ChannelAttentions, id.String(), row)
	if err == nil {
		err = s.Events.Publish(ctx, ev)
	}
	if err != nil {
		s.Logger.Warn().Err(err).Str("kind", string(kind)).Str("attention_id", id.String()).Msg("publish attention event")
	}
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func outsideHoursMessage(p *professional.Professional, res availability.Result, date time.Time, tod availability.TimeOfDay) string {
	if !res.Configured {
		return fmt.Sprintf("%s has no availability configured", p.FullName())
	}
	return fmt.Sprintf("%s is not available on %s %s at %s",
		p.FullName(), availability.DayName(res.Day), date.Format(availability.DateLayout), tod)
}

// Create books a new attention. Booking outside the professional's windows
// is refused with a warning until the caller confirms.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Row, error) {
	v := apperr.ValidationErrors{}
	if req.ServiceID == uuid.Nil {
		v.Add("service_id", "service_id is required")
	}
	if req.TypeID == uuid.Nil {
		v.Add("type_id", "type_id is required")
	}
	if req.PatientID == uuid.Nil {
		v.Add("patient_id", "patient_id is required")
	}
	if req.ProfessionalID == uuid.Nil {
		v.Add("professional_id", "professional_id is required")
	}
	date, tod, err := availability.ParseMoment(req.Date, req.Time, s.clock())
	if err != nil {
		v.Add("date", err.Error())
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	status, err := s.Catalog.Status(ctx, triage.Waiting)
	if req.StatusID != nil {
		status, err = s.Catalog.StatusByID(ctx, *req.StatusID)
	}
	if err != nil {
		return nil, err
	}
	if status.Code.Terminal() {
		return nil, apperr.Validation("status_id", "a new attention must be waiting or in progress")
	}
	if _, err := s.Catalog.Type(ctx, req.TypeID); err != nil {
		return nil, err
	}
	svc, err := s.Catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, apperr.Validation("service_id", "service is not active")
	}
	if _, err := s.Patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	pro, err := s.Professionals.Get(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if res := availability.Check(pro.Windows, date, tod); !res.Available && !req.ConfirmOutsideHours {
		return nil, apperr.Warning("outside_availability", outsideHoursMessage(pro, res, date, tod))
	}

	a := &Attention{
		PersonID:       req.PatientID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		TypeID:         req.TypeID,
		StatusID:       status.ID,
		Status:         status.Code,
		Date:           date.Format(availability.DateLayout),
		Time:           tod,
		Motive:         req.Motive,
		Diagnosis:      req.Diagnosis,
	}
	if a.Status == triage.InProgress {
		now := s.clock()
		a.StartedAt = &now
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, events.AttentionCreated, a.ID)
	return s.repo.Row(ctx, a.ID)
}

// transition applies ev to a locked attention and stamps start or end
// times the first time they apply.
func (s *Service) transition(ctx context.Context, id uuid.UUID, ev triage.Event) (*Row, error) {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := triage.Transition(a.Status, ev)
		if err != nil {
			return err
		}
		st, err := s.Catalog.Status(ctx, next)
		if err != nil {
			return err
		}
		now := s.clock()
		switch next {
		case triage.InProgress:
			if a.StartedAt == nil {
				a.StartedAt = &now
			}
		case triage.Attended, triage.Cancelled:
			if a.EndedAt == nil {
				a.EndedAt = &now
			}
		}
		a.Status, a.StatusID = next, st.ID
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AttentionUpdated, id)
	return s.repo.Row(ctx, id)
}

// Start moves a waiting attention into progress.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Row, error) {
	return s.transition(ctx, id, triage.Start)
}

// UpdateStatus moves an attention to the status with statusID. Deriving
// needs a destination and goes through Finalize instead.
func (s *Service) UpdateStatus(ctx context.Context, id, statusID uuid.UUID) (*Row, error) {
	target, err := s.Catalog.StatusByID(ctx, statusID)
	if err != nil {
		return nil, err
	}
	ev, ok := triage.EventFor(target.Code)
	if !ok {
		return nil, apperr.Validation("status_id", "an attention cannot be moved back to "+target.Name)
	}
	if ev == triage.Derive {
		return nil, apperr.Validation("status_id", "use finalize with a derivation to derive an attention")
	}
	return s.transition(ctx, id, ev)
}

func validateFinalize(req *FinalizeRequest) error {
	v := apperr.ValidationErrors{}
	if blank(req.Motive) {
		v.Add("motive", "motive is required")
	}
	if blank(req.CareNote) {
		v.Add("care_note", "care_note is required")
	}
	if req.Derive {
		switch {
		case req.Derivation == nil:
			v.Add("derivation", "derivation is required when derive is set")
		default:
			if req.Derivation.ServiceID == uuid.Nil {
				v.Add("derivation.service_id", "derivation.service_id is required")
			}
			if req.Derivation.ProfessionalID == uuid.Nil {
				v.Add("derivation.professional_id", "derivation.professional_id is required")
			}
		}
	}
	for i := range req.Attributes {
		attr := &req.Attributes[i]
		attr.Value = strings.TrimSpace(attr.Value)
		if attr.AttributeID == uuid.Nil {
			v.Add(fmt.Sprintf("attributes.%d.attribute_id", i), "attribute_id is required")
		}
		if attr.Value == "" {
			v.Add(fmt.Sprintf("attributes.%d.value", i), "value is required")
		}
	}
	if req.StartedAt != nil && req.EndedAt != nil && req.EndedAt.Before(*req.StartedAt) {
		v.Add("ended_at", "ended_at must not be before started_at")
	}
	return v.Err()
}

func keep(next, current *string) *string {
	if next != nil {
		return next
	}
	return current
}

// checkOwner rejects callers linked to a professional other than the one the
// attention is assigned to. Super-admins and accounts without a professional
// link are not restricted here; the route capability already gates them.
func checkOwner(ctx context.Context, a *Attention) error {
	p := auth.PrincipalFromContext(ctx)
	if p == nil || p.SuperAdmin || p.ProfessionalID == nil {
		return nil
	}
	if *p.ProfessionalID != a.ProfessionalID {
		return apperr.Forbidden("attention is assigned to another professional")
	}
	return nil
}

// Finalize records the clinical outcome of an attention and, when asked,
// derives the patient to another service and professional. Everything runs
// in one transaction with the attention row locked. A second finalize of the
// same attention fails the state machine, so at most one derived attention
// exists per parent. A professional may only finalize their own attentions.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID, req FinalizeRequest) (*FinalizeResult, error) {
	if err := validateFinalize(&req); err != nil {
		return nil, err
	}

	var derivedID *uuid.UUID
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(ctx, a); err != nil {
			return err
		}
		ev := triage.Attend
		if req.Derive {
			ev = triage.Derive
		}
		next, err := triage.Transition(a.Status, ev)
		if err != nil {
			return err
		}
		st, err := s.Catalog.Status(ctx, next)
		if err != nil {
			return err
		}

		now := s.clock()
		started := req.StartedAt
		if started == nil {
			started = a.StartedAt
		}
		if started == nil {
			started = &now
		}
		ended := req.EndedAt
		if ended == nil {
			ended = &now
		}
		if ended.Before(*started) {
			return apperr.Validation("ended_at", "ended_at must not be before started_at")
		}

		var child *Attention
		if req.Derive {
			d := req.Derivation
			if d.ServiceID == a.ServiceID && d.ProfessionalID == a.ProfessionalID {
				return apperr.Validation("derivation", "derivation must change the service or the professional")
			}
			if _, err := s.Catalog.GetService(ctx, d.ServiceID); err != nil {
				return err
			}
			if _, err := s.Professionals.Get(ctx, d.ProfessionalID); err != nil {
				return err
			}
			waiting, err := s.Catalog.Status(ctx, triage.Waiting)
			if err != nil {
				return err
			}
			motive := d.Motive
			if blank(motive) {
				motive = req.Motive
			}
			child = &Attention{
				PersonID:       a.PersonID,
				ProfessionalID: d.ProfessionalID,
				ServiceID:      d.ServiceID,
				TypeID:         a.TypeID,
				StatusID:       waiting.ID,
				Status:         triage.Waiting,
				Date:           now.Format(availability.DateLayout),
				Time:           availability.FromTime(now),
				Motive:         motive,
				DerivedFromID:  &a.ID,
			}
		}

		a.Motive = req.Motive
		a.Diagnosis = keep(req.Diagnosis, a.Diagnosis)
		a.Observations = keep(req.Observations, a.Observations)
		a.CareNote = req.CareNote
		a.Treatment = keep(req.Treatment, a.Treatment)
		a.StartedAt, a.EndedAt = started, ended
		a.Status, a.StatusID = next, st.ID
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if err := s.repo.AddAttributes(ctx, a.ID, req.Attributes); err != nil {
			return err
		}
		if child == nil {
			return nil
		}
		if err := s.repo.Create(ctx, child); err != nil {
			return fmt.Errorf("create derived attention: %w", err)
		}
		derivedID = &child.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.Logger.Info().Str("attention_id", id.String()).Bool("derived", derivedID != nil)
	if derivedID != nil {
		log = log.Str("derived_id", derivedID.String())
	}
	log.Msg("attention finalized")

	s.publish(ctx, events.AttentionUpdated, id)
	res := &FinalizeResult{}
	if res.Attention, err = s.repo.Row(ctx, id); err != nil {
		return nil, err
	}
	if derivedID != nil {
		s.publish(ctx, events.AttentionCreated, *derivedID)
		if res.Derived, err = s.repo.Row(ctx, *derivedID); err != nil {
			return nil, err
		}
	}
	return res, nil
}
