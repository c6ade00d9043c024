package attention

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Queue(ctx context.Context, q QueueQuery) ([]Row, int, error)
	Row(ctx context.Context, id uuid.UUID) (*Row, error)
	Detail(ctx context.Context, id uuid.UUID) (*Detail, error)
	// PatientDetails returns every attention of a patient, newest first.
	PatientDetails(ctx context.Context, personID uuid.UUID) ([]*Detail, error)
	// Patient reads the patient even when soft-deleted.
	Patient(ctx context.Context, personID uuid.UUID) (*PatientSummary, error)

	Create(ctx context.Context, a *Attention) error
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Attention, error)
	// Update writes mutable fields when a.Version still matches and bumps
	// it.
	Update(ctx context.Context, a *Attention) error
	AddAttributes(ctx context.Context, attentionID uuid.UUID, values []AttributeValue) error
	Attributes(ctx context.Context, attentionIDs ...uuid.UUID) (map[uuid.UUID][]RecordedAttribute, error)
}
