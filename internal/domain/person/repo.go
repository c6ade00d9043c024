package person

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*Person, error)
	Update(ctx context.Context, p *Person) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]*Person, int, error)

	// NumericDocumentNumbers returns every purely numeric document number,
	// soft-deleted rows included.
	NumericDocumentNumbers(ctx context.Context) ([]int64, error)
	// LockNumbering serializes automatic numbering until the surrounding
	// transaction ends.
	LockNumbering(ctx context.Context) error
}
