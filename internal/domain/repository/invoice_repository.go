package repository

import (
	"context"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
)

// IssuerRepository persiste el emisor propio de cada factura.
type IssuerRepository interface {
	Create(ctx context.Context, issuer *entity.Issuer) error
}

// RecipientRepository persiste el receptor propio de cada factura.
type RecipientRepository interface {
	Create(ctx context.Context, recipient *entity.Recipient) error
}

// InvoiceRepository define el puerto de persistencia para Invoice e Items.
type InvoiceRepository interface {
	// Create inserta la cabecera; Issuer y Recipient deben existir ya (FK).
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateItem(ctx context.Context, item *entity.Item) error
	// ExistsByDigest indica si ya se ingirió un documento con el mismo digest.
	ExistsByDigest(ctx context.Context, digest string) (bool, error)
	// GetByID devuelve la factura con emisor, receptor e items. (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.Invoice, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
}
