package professional

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
)

type Repository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	Update(ctx context.Context, p *Professional) error
	List(ctx context.Context, q ListQuery) ([]*Professional, int, error)
	// ByService returns active professionals whose specialty is linked to
	// the service.
	ByService(ctx context.Context, serviceID uuid.UUID) ([]*Professional, error)
	SetUser(ctx context.Context, id, userID uuid.UUID) error

	Windows(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID][]availability.Window, error)
	ReplaceWindows(ctx context.Context, id uuid.UUID, windows []availability.Window) error
}
