package attention

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/person"
	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/handoff"
	"github.com/clinic/frontdesk/pkg/pagination"
)

// QueueFilters are echoed back with every queue page.
type QueueFilters struct {
	Search  string `json:"search"`
	PerPage int    `json:"perPage"`
	Date    string `json:"date"`
}

// PerPage is the configured default page size.
func (s *Service) PerPage() int {
	return s.opts.PerPage
}

func (s *Service) readQueue(ctx context.Context, q QueueQuery, p pagination.Params, filters QueueFilters) (*pagination.Response, error) {
	q.Search = strings.TrimSpace(q.Search)
	q.Limit, q.Offset = p.Limit(), p.Offset()
	rows, total, err := s.repo.Queue(ctx, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	filters.Search = q.Search
	filters.PerPage = p.PerPage
	return pagination.NewResponse(rows, p, total, filters), nil
}

// Queue lists one day's attentions in triage order. date defaults to today
// in the clinic's zone; statuses are the configured allow-list.
func (s *Service) Queue(ctx context.Context, date, search string, p pagination.Params) (*pagination.Response, error) {
	day, _, err := availability.ParseMoment(date, "", s.clock())
	if err != nil {
		return nil, apperr.Validation("date", err.Error())
	}
	ids, err := s.Catalog.StatusIDs(ctx, s.opts.QueueStatuses)
	if err != nil {
		return nil, err
	}
	q := QueueQuery{Date: &day, Search: search, StatusIDs: ids}
	return s.readQueue(ctx, q, p, QueueFilters{Date: day.Format(availability.DateLayout)})
}

// MyWaiting is the waiting list of one professional across all dates, or
// a single date when given.
func (s *Service) MyWaiting(ctx context.Context, professionalID *uuid.UUID, date, search string, p pagination.Params) (*pagination.Response, error) {
	if professionalID == nil {
		return nil, apperr.Forbidden("your account is not linked to a professional")
	}
	ids, err := s.Catalog.StatusIDs(ctx, []triage.State{triage.Waiting})
	if err != nil {
		return nil, err
	}
	q := QueueQuery{ProfessionalID: professionalID, Search: search, StatusIDs: ids}
	filters := QueueFilters{}
	if strings.TrimSpace(date) != "" {
		day, err := availability.ParseDate(date, s.opts.Location)
		if err != nil {
			return nil, apperr.Validation("date", err.Error())
		}
		q.Date = &day
		filters.Date = day.Format(availability.DateLayout)
	}
	return s.readQueue(ctx, q, p, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Row, error) {
	return s.repo.Row(ctx, id)
}

// FormData gathers what the creation form needs. A valid handoff token
// adds the patient registered just before; a spent or unknown one is
// ignored.
func (s *Service) FormData(ctx context.Context, token string) (*FormData, error) {
	cat, err := s.Catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	pros, _, err := s.Professionals.List(ctx, professional.ListQuery{Limit: pagination.MaxPerPage})
	if err != nil {
		return nil, err
	}
	if pros == nil {
		pros = []*professional.Professional{}
	}
	now := s.clock()
	fd := &FormData{
		Catalog:       cat,
		Professionals: pros,
		Date:          now.Format(availability.DateLayout),
		Time:          availability.FromTime(now),
	}
	if token == "" || s.Handoffs == nil {
		return fd, nil
	}
	var recent person.Recent
	err = handoff.TakeJSON(ctx, s.Handoffs, token, &recent)
	switch {
	case err == nil:
		fd.RecentPatient = &recent
	case errors.Is(err, handoff.ErrNotFound):
	default:
		s.Logger.Warn().Err(err).Msg("read handoff")
	}
	return fd, nil
}
