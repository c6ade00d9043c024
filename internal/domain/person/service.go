package person

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/handoff"
)

// maxNumberingAttempts bounds retries when a concurrent insert takes the
// number picked for an unidentified patient.
const maxNumberingAttempts = 3

type Service struct {
	repo     Repository
	tx       db.TxRunner
	handoffs handoff.Store
	logger   zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, handoffs handoff.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, handoffs: handoffs, logger: logger}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func validate(p *Person) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.DocumentType = strings.TrimSpace(p.DocumentType)
	p.DocumentNumber = strings.TrimSpace(p.DocumentNumber)
	p.BirthDate = trimPtr(p.BirthDate)
	p.Gender = trimPtr(p.Gender)
	p.MaritalStatus = trimPtr(p.MaritalStatus)
	p.Phone = trimPtr(p.Phone)
	p.Email = trimPtr(p.Email)
	p.Address = trimPtr(p.Address)

	v := apperr.ValidationErrors{}
	v.Require("first_name", p.FirstName)
	v.Require("last_name", p.LastName)
	v.Require("document_type", p.DocumentType)
	v.Require("document_number", p.DocumentNumber)
	if p.BirthDate != nil {
		bd, err := time.Parse("2006-01-02", *p.BirthDate)
		if err != nil {
			v.Add("birth_date", "birth_date must be YYYY-MM-DD")
		} else if bd.After(time.Now()) {
			v.Add("birth_date", "birth_date is in the future")
		}
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			v.Add("email", "email is not a valid address")
		}
	}
	return v.Err()
}

// stash stores the new patient for the attention form. A failing store only
// costs the shortcut, so it is logged and swallowed.
func (s *Service) stash(ctx context.Context, p *Person) string {
	if s.handoffs == nil {
		return ""
	}
	token, err := handoff.PutJSON(ctx, s.handoffs, p.Recent())
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("handoff store failed")
		return ""
	}
	return token
}

// Register creates a fully identified patient.
func (s *Service) Register(ctx context.Context, p *Person) (*Created, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	p.EmergencyCreated = false
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return &Created{Patient: p, Handoff: s.stash(ctx, p)}, nil
}

// FastCreate registers a patient from a name alone. Missing fields get the
// emergency defaults and, when no document number is given, the next free
// placeholder number.
func (s *Service) FastCreate(ctx context.Context, req FastCreateRequest) (*Created, error) {
	p := &Person{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		DocumentType:     strings.TrimSpace(req.DocumentType),
		DocumentNumber:   strings.TrimSpace(req.DocumentNumber),
		Gender:           trimPtr(&req.Gender),
		EmergencyCreated: true,
	}
	if p.FirstName == "" {
		return nil, apperr.Validation("first_name", "first_name is required")
	}
	if p.LastName == "" {
		p.LastName = PlaceholderLastName
	}
	if p.DocumentType == "" {
		p.DocumentType = DefaultDocumentType
	}

	if p.DocumentNumber != "" {
		if err := s.repo.Create(ctx, p); err != nil {
			return nil, err
		}
		return &Created{Patient: p, Handoff: s.stash(ctx, p)}, nil
	}

	var err error
	for attempt := 1; attempt <= maxNumberingAttempts; attempt++ {
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := s.repo.LockNumbering(ctx); err != nil {
				return err
			}
			used, err := s.repo.NumericDocumentNumbers(ctx)
			if err != nil {
				return fmt.Errorf("read document numbers: %w", err)
			}
			p.DocumentNumber = NextDocumentNumber(used)
			return s.repo.Create(ctx, p)
		})
		if !errors.Is(err, ErrDocumentTaken) {
			break
		}
		s.logger.Warn().Int("attempt", attempt).Str("document_number", p.DocumentNumber).
			Msg("placeholder document number taken, retrying")
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Str("document_number", p.DocumentNumber).
		Msg("emergency patient created")
	return &Created{Patient: p, Handoff: s.stash(ctx, p)}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Person, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Person) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// Delete hides the patient from listings. Past attentions keep pointing at
// the row.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]*Person, int, error) {
	return s.repo.List(ctx, q)
}
