package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
	"github.com/jhoicas/fel-ingestor/pkg/fel"
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para empresas.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

const companyColumns = `id, name, nit, COALESCE(email, ''), COALESCE(api_key_hash, ''), is_active, created_at, updated_at`

// GetByNIT obtiene una empresa por NIT ya normalizado con fel.NormalizeNIT. La columna se
// normaliza con el mismo conjunto de separadores y en mayúsculas.
func (r *CompanyRepo) GetByNIT(ctx context.Context, nit string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + `
		FROM companies
		WHERE upper(translate(nit, $2, '')) = $1
		LIMIT 1`
	c, err := scanCompany(r.q.QueryRow(ctx, query, nit, fel.NITSeparators))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company by NIT: %w", err)
	}
	return c, nil
}

// GetByID obtiene una empresa por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	c, err := scanCompany(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

// ListWithAPIKey devuelve las empresas activas con API key configurado.
func (r *CompanyRepo) ListWithAPIKey(ctx context.Context) ([]*entity.Company, error) {
	query := `SELECT ` + companyColumns + `
		FROM companies
		WHERE is_active = true AND api_key_hash IS NOT NULL AND api_key_hash <> ''
		ORDER BY created_at`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var list []*entity.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*entity.Company, error) {
	var c entity.Company
	if err := row.Scan(&c.ID, &c.Name, &c.NIT, &c.Email, &c.APIKeyHash, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
