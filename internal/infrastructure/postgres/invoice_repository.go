package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
)

var (
	_ repository.IssuerRepository    = (*IssuerRepo)(nil)
	_ repository.RecipientRepository = (*RecipientRepo)(nil)
	_ repository.InvoiceRepository   = (*InvoiceRepo)(nil)
)

// IssuerRepo persiste emisores (usable con pool o tx).
type IssuerRepo struct {
	q Querier
}

// NewIssuerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIssuerRepository(q Querier) *IssuerRepo {
	return &IssuerRepo{q: q}
}

// Create inserta el emisor. Cada factura tiene el suyo.
func (r *IssuerRepo) Create(ctx context.Context, iss *entity.Issuer) error {
	if iss.ID == "" {
		iss.ID = uuid.New().String()
	}
	if iss.CreatedAt.IsZero() {
		iss.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO issuers (id, nit, name, commercial_name, establishment_code, address,
		                     municipality, department, postal_code, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		iss.ID, iss.NIT, iss.Name,
		nullIfEmpty(iss.CommercialName), nullIfEmpty(iss.EstablishmentCode), nullIfEmpty(iss.Address),
		nullIfEmpty(iss.Municipality), nullIfEmpty(iss.Department), nullIfEmpty(iss.PostalCode), nullIfEmpty(iss.Country),
		iss.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert issuer: %w", err)
	}
	return nil
}

// RecipientRepo persiste receptores (usable con pool o tx).
type RecipientRepo struct {
	q Querier
}

// NewRecipientRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRecipientRepository(q Querier) *RecipientRepo {
	return &RecipientRepo{q: q}
}

// Create inserta el receptor.
func (r *RecipientRepo) Create(ctx context.Context, rec *entity.Recipient) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO recipients (id, nit, name, email, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.Exec(ctx, query, rec.ID, rec.NIT, rec.Name, nullIfEmpty(rec.Email), rec.CreatedAt); err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	return nil
}

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste la cabecera de la factura. Issuer y Recipient ya deben tener ID.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.Issuer == nil || inv.Issuer.ID == "" || inv.Recipient == nil || inv.Recipient.ID == "" {
		return fmt.Errorf("insert invoice: emisor y receptor deben persistirse antes")
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if inv.ProcessingDate.IsZero() {
		inv.ProcessingDate = now
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = inv.CreatedAt
	}
	query := `
		INSERT INTO invoices (id, company_id, authorization_number, series, number, document_type,
		                      issuer_id, recipient_id, total, vat, currency, xml_url, document_digest,
		                      emission_date, processing_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.CompanyID, inv.AuthorizationNumber, inv.Series, inv.Number, inv.DocumentType,
		inv.Issuer.ID, inv.Recipient.ID, inv.Total, inv.VAT, inv.Currency, inv.SourceURL,
		nullIfEmpty(inv.DocumentDigest), inv.EmissionDate, inv.ProcessingDate, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice already exists: %w", err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateItem persiste una línea de detalle; los impuestos van como JSONB.
func (r *InvoiceRepo) CreateItem(ctx context.Context, it *entity.Item) error {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	taxes, err := json.Marshal(it.Taxes)
	if err != nil {
		return fmt.Errorf("marshal item taxes: %w", err)
	}
	query := `
		INSERT INTO items (id, invoice_id, line_number, good_or_service, quantity, unit_of_measure,
		                   description, unit_price, price, discount, total, taxes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.q.Exec(ctx, query,
		it.ID, it.InvoiceID, it.LineNumber, it.GoodOrService, it.Quantity, it.UnitOfMeasure,
		it.Description, it.UnitPrice, it.Price, it.Discount, it.Total, taxes,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// ExistsByDigest indica si ya hay una factura con el mismo XML canónico.
func (r *InvoiceRepo) ExistsByDigest(ctx context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE document_digest = $1)`, digest).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invoice digest: %w", err)
	}
	return exists, nil
}

const invoiceSelect = `
	SELECT i.id, i.company_id, i.authorization_number, i.series, i.number, i.document_type,
	       i.emission_date, i.currency, i.total, i.vat, i.xml_url, COALESCE(i.document_digest, ''),
	       i.processing_date, i.created_at, i.updated_at,
	       s.id, s.nit, s.name, s.commercial_name, s.establishment_code, s.address,
	       s.municipality, s.department, s.postal_code, s.country, s.created_at,
	       r.id, r.nit, r.name, r.email, r.created_at
	FROM invoices i
	JOIN issuers s ON s.id = i.issuer_id
	JOIN recipients r ON r.id = i.recipient_id`

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	inv := entity.Invoice{Issuer: &entity.Issuer{}, Recipient: &entity.Recipient{}}
	var commercial, establishment, address, municipality, department, postal, country, email *string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.AuthorizationNumber, &inv.Series, &inv.Number, &inv.DocumentType,
		&inv.EmissionDate, &inv.Currency, &inv.Total, &inv.VAT, &inv.SourceURL, &inv.DocumentDigest,
		&inv.ProcessingDate, &inv.CreatedAt, &inv.UpdatedAt,
		&inv.Issuer.ID, &inv.Issuer.NIT, &inv.Issuer.Name, &commercial, &establishment, &address,
		&municipality, &department, &postal, &country, &inv.Issuer.CreatedAt,
		&inv.Recipient.ID, &inv.Recipient.NIT, &inv.Recipient.Name, &email, &inv.Recipient.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Issuer.CommercialName = derefStr(commercial)
	inv.Issuer.EstablishmentCode = derefStr(establishment)
	inv.Issuer.Address = derefStr(address)
	inv.Issuer.Municipality = derefStr(municipality)
	inv.Issuer.Department = derefStr(department)
	inv.Issuer.PostalCode = derefStr(postal)
	inv.Issuer.Country = derefStr(country)
	inv.Recipient.Email = derefStr(email)
	return &inv, nil
}

// GetByID obtiene una factura completa (emisor, receptor e items) por ID.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, invoiceSelect+` WHERE i.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	items, err := r.itemsFor(ctx, []string{inv.ID})
	if err != nil {
		return nil, err
	}
	inv.Items = items[inv.ID]
	if inv.Items == nil {
		inv.Items = []*entity.Item{}
	}
	return inv, nil
}

// ListByCompany devuelve las facturas de la empresa, más recientes primero, con sus items.
func (r *InvoiceRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	rows, err := r.q.Query(ctx, invoiceSelect+` WHERE i.company_id = $1 ORDER BY i.emission_date DESC, i.created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	var list []*entity.Invoice
	var ids []string
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
		ids = append(ids, inv.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if len(ids) == 0 {
		return []*entity.Invoice{}, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, inv := range list {
		inv.Items = items[inv.ID]
		if inv.Items == nil {
			inv.Items = []*entity.Item{}
		}
	}
	return list, nil
}

// CountByCompany cuenta las facturas de la empresa.
func (r *InvoiceRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE company_id = $1`, companyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return n, nil
}

// itemsFor carga los items de varias facturas en una sola consulta, agrupados por factura
// y en el orden en que se insertaron (orden del documento).
func (r *InvoiceRepo) itemsFor(ctx context.Context, invoiceIDs []string) (map[string][]*entity.Item, error) {
	query := `
		SELECT id, invoice_id, line_number, good_or_service, quantity, unit_of_measure,
		       description, unit_price, price, discount, total, taxes
		FROM items
		WHERE invoice_id = ANY($1::uuid[])
		ORDER BY invoice_id, seq`
	rows, err := r.q.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]*entity.Item, len(invoiceIDs))
	for rows.Next() {
		var it entity.Item
		var taxes []byte
		if err := rows.Scan(
			&it.ID, &it.InvoiceID, &it.LineNumber, &it.GoodOrService, &it.Quantity, &it.UnitOfMeasure,
			&it.Description, &it.UnitPrice, &it.Price, &it.Discount, &it.Total, &taxes,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if len(taxes) > 0 {
			if err := json.Unmarshal(taxes, &it.Taxes); err != nil {
				return nil, fmt.Errorf("unmarshal item taxes: %w", err)
			}
		}
		out[it.InvoiceID] = append(out[it.InvoiceID], &it)
	}
	return out, rows.Err()
}
