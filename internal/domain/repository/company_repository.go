package repository

import (
	"context"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para Company (DIP).
// La implementación vive en infrastructure.
type CompanyRepository interface {
	// GetByNIT busca la empresa por NIT normalizado. Devuelve (nil, nil) si no existe.
	GetByNIT(ctx context.Context, nit string) (*entity.Company, error)
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	// ListWithAPIKey devuelve las empresas activas que tienen API key configurado.
	ListWithAPIKey(ctx context.Context) ([]*entity.Company, error)
}
