package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
)

type Service struct {
	repo Repository
	tx   db.TxRunner

	mu       sync.RWMutex
	statuses map[triage.State]Status
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

// loadStatuses caches the seeded status rows. They never change at runtime.
func (s *Service) loadStatuses(ctx context.Context) (map[triage.State]Status, error) {
	s.mu.RLock()
	cached := s.statuses
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	list, err := s.repo.ListStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	m := make(map[triage.State]Status, len(list))
	for _, st := range list {
		m[st.Code] = st
	}
	for _, want := range triage.States {
		if _, ok := m[want]; !ok {
			return nil, fmt.Errorf("attention_status row %q is missing", want)
		}
	}

	s.mu.Lock()
	s.statuses = m
	s.mu.Unlock()
	return m, nil
}

// Status resolves a state to its row.
func (s *Service) Status(ctx context.Context, state triage.State) (Status, error) {
	m, err := s.loadStatuses(ctx)
	if err != nil {
		return Status{}, err
	}
	st, ok := m[state]
	if !ok {
		return Status{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", state))
	}
	return st, nil
}

// StatusByID resolves a status id from a request body.
func (s *Service) StatusByID(ctx context.Context, id uuid.UUID) (Status, error) {
	m, err := s.loadStatuses(ctx)
	if err != nil {
		return Status{}, err
	}
	for _, st := range m {
		if st.ID == id {
			return st, nil
		}
	}
	return Status{}, apperr.Validation("status_id", "unknown status")
}

// StatusIDs maps codes to ids, rejecting unknown codes.
func (s *Service) StatusIDs(ctx context.Context, codes []triage.State) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(codes))
	for _, c := range codes {
		st, err := s.Status(ctx, c)
		if err != nil {
			return nil, err
		}
		ids = append(ids, st.ID)
	}
	return ids, nil
}

func (s *Service) Type(ctx context.Context, id uuid.UUID) (*AttentionType, error) {
	return s.repo.GetType(ctx, id)
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	return s.repo.GetService(ctx, id)
}

// Catalog returns every reference list. Statuses come back in lifecycle
// order.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	var (
		c   Catalog
		err error
	)
	if c.Types, err = s.repo.ListTypes(ctx); err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	m, err := s.loadStatuses(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range triage.States {
		c.Statuses = append(c.Statuses, m[st])
	}
	if c.Attributes, err = s.repo.ListAttributes(ctx); err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	if c.Specialties, err = s.repo.ListSpecialties(ctx); err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	if c.Services, err = s.repo.ListServices(ctx, true); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return &c, nil
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]ClinicService, error) {
	return s.repo.ListServices(ctx, activeOnly)
}

func validateService(svc *ClinicService) error {
	v := apperr.ValidationErrors{}
	svc.Name = strings.TrimSpace(svc.Name)
	v.Require("name", svc.Name)
	seen := map[uuid.UUID]bool{}
	for _, id := range svc.SpecialtyIDs {
		if id == uuid.Nil {
			v.Add("specialty_ids", "specialty ids must not be empty")
		}
		if seen[id] {
			v.Add("specialty_ids", "specialty ids must be unique")
		}
		seen[id] = true
	}
	return v.Err()
}

func (s *Service) CreateService(ctx context.Context, svc *ClinicService) error {
	if err := validateService(svc); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateService(ctx, svc)
	})
}

func (s *Service) UpdateService(ctx context.Context, svc *ClinicService) error {
	if err := validateService(svc); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.UpdateService(ctx, svc)
	})
}

func (s *Service) CreateSpecialty(ctx context.Context, sp *Specialty) error {
	sp.Name = strings.TrimSpace(sp.Name)
	if sp.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	return s.repo.CreateSpecialty(ctx, sp)
}
