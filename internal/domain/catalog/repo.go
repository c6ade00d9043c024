package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListTypes(ctx context.Context) ([]AttentionType, error)
	ListStatuses(ctx context.Context) ([]Status, error)
	ListAttributes(ctx context.Context) ([]Attribute, error)
	ListSpecialties(ctx context.Context) ([]Specialty, error)
	ListServices(ctx context.Context, activeOnly bool) ([]ClinicService, error)

	GetType(ctx context.Context, id uuid.UUID) (*AttentionType, error)
	GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error)
	CreateService(ctx context.Context, s *ClinicService) error
	UpdateService(ctx context.Context, s *ClinicService) error
	CreateSpecialty(ctx context.Context, s *Specialty) error
}
