package attention

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/pdf"
)

// History loads an attention with its patient and every other attention of
// that patient, each with recorded attributes.
func (s *Service) History(ctx context.Context, id uuid.UUID) (*History, error) {
	current, err := s.repo.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	patient, err := s.repo.Patient(ctx, current.PatientID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.PatientDetails(ctx, current.PatientID)
	if err != nil {
		return nil, err
	}

	ids := []uuid.UUID{current.ID}
	previous := make([]*Detail, 0, len(all))
	for _, d := range all {
		if d.ID == current.ID {
			continue
		}
		previous = append(previous, d)
		ids = append(ids, d.ID)
	}
	attrs, err := s.repo.Attributes(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	for _, d := range append([]*Detail{current}, previous...) {
		d.Attributes = attrs[d.ID]
		if d.Attributes == nil {
			d.Attributes = []RecordedAttribute{}
		}
	}
	return &History{Attention: current, Patient: *patient, Previous: previous}, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func printable(d *Detail) pdf.Visit {
	v := pdf.Visit{
		Date:         d.Date,
		Time:         d.Time.String(),
		Service:      d.ServiceName,
		Professional: d.ProfessionalName,
		Type:         d.TypeName,
		Status:       d.StatusName,
		Motive:       str(d.Motive),
		Diagnosis:    str(d.Diagnosis),
		Observations: str(d.Observations),
		CareNote:     str(d.CareNote),
		Treatment:    str(d.Treatment),
	}
	for _, a := range d.Attributes {
		v.Measures = append(v.Measures, pdf.Measure{Name: a.Name, Value: a.Value, Unit: str(a.Unit)})
	}
	return v
}

// ArchiveKey is where a history export is stored.
func ArchiveKey(patientID, attentionID uuid.UUID) string {
	return fmt.Sprintf("exports/%s/%s.pdf", patientID, attentionID)
}

// HistoryPDF renders the history. When a blob store is configured the file
// is archived too and its key returned; archiving failures only cost the
// key.
func (s *Service) HistoryPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	h, err := s.History(ctx, id)
	if err != nil {
		return nil, "", err
	}
	doc := pdf.History{
		Clinic:      s.opts.ClinicName,
		GeneratedAt: s.clock(),
		Patient: pdf.Patient{
			Name:      h.Patient.FullName,
			Document:  h.Patient.DocumentType + " " + h.Patient.DocumentNumber,
			BirthDate: str(h.Patient.BirthDate),
			Gender:    str(h.Patient.Gender),
			Phone:     str(h.Patient.Phone),
		},
		Current: printable(h.Attention),
	}
	for _, d := range h.Previous {
		doc.Previous = append(doc.Previous, printable(d))
	}
	out, err := pdf.RenderHistory(doc)
	if err != nil {
		return nil, "", err
	}

	if s.Blobs == nil {
		return out, "", nil
	}
	key := ArchiveKey(h.Patient.ID, h.Attention.ID)
	if _, err := s.Blobs.Put(ctx, key, "application/pdf", out); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("archive history pdf")
		return out, "", nil
	}
	return out, key, nil
}
