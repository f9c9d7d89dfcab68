package ingestion

import (
	"context"
	"fmt"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
	"github.com/jhoicas/fel-ingestor/pkg/fel"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// Persister resuelve el tenant por el NIT del receptor y guarda el grafo de la factura
// en una sola transacción.
type Persister struct {
	companies repository.CompanyRepository
	invoices  repository.InvoiceRepository // lecturas fuera de la tx; puede ser nil
	tx        TxRunner
	publisher EventPublisher // puede ser nil
	log       *logger.Logger
}

// NewPersister construye el persister. invoices y publisher son opcionales.
func NewPersister(
	companies repository.CompanyRepository,
	invoices repository.InvoiceRepository,
	tx TxRunner,
	publisher EventPublisher,
	log *logger.Logger,
) *Persister {
	if log == nil {
		log = logger.Nop()
	}
	return &Persister{
		companies: companies,
		invoices:  invoices,
		tx:        tx,
		publisher: publisher,
		log:       log.Component("ingestion.persister"),
	}
}

// ResolveAndSave asigna la empresa dueña y persiste emisor, receptor, factura e items.
// Sin empresa para el NIT devuelve domain.ErrResolution y no escribe nada; cualquier fallo
// de almacenamiento devuelve domain.ErrPersist tras el rollback.
func (p *Persister) ResolveAndSave(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	if inv == nil || inv.Recipient == nil {
		return nil, fmt.Errorf("%w: factura sin receptor", domain.ErrResolution)
	}
	nit := fel.NormalizeNIT(inv.Recipient.NIT)
	if nit == "" {
		return nil, fmt.Errorf("%w: receptor sin NIT", domain.ErrResolution)
	}

	// Consumidor final no identifica a ningún tenant.
	if nit == fel.ConsumidorFinal {
		return nil, fmt.Errorf("%w: receptor consumidor final", domain.ErrResolution)
	}
	if err := fel.ValidateNIT(nit); err != nil {
		p.log.Warn().Err(err).Str("nit", nit).Str("authorization_number", inv.AuthorizationNumber).Msg("NIT del receptor con dígito verificador inválido")
	}

	company, err := p.companies.GetByNIT(ctx, nit)
	if err != nil {
		return nil, fmt.Errorf("%w: buscar empresa: %v", domain.ErrPersist, err)
	}
	if company == nil || !company.IsActive {
		return nil, fmt.Errorf("%w: NIT %s", domain.ErrResolution, nit)
	}
	inv.CompanyID = company.ID

	if p.invoices != nil && inv.DocumentDigest != "" {
		exists, err := p.invoices.ExistsByDigest(ctx, inv.DocumentDigest)
		if err != nil {
			p.log.Warn().Err(err).Msg("no se pudo verificar el digest")
		} else if exists {
			p.log.Warn().
				Str("digest", inv.DocumentDigest).
				Str("authorization_number", inv.AuthorizationNumber).
				Msg("documento ya ingerido; se guarda una fila nueva")
		}
	}

	err = p.tx.RunIngestion(ctx, func(
		issuerRepo repository.IssuerRepository,
		recipientRepo repository.RecipientRepository,
		invoiceRepo repository.InvoiceRepository,
	) error {
		if inv.Issuer == nil {
			inv.Issuer = &entity.Issuer{}
		}
		if err := issuerRepo.Create(ctx, inv.Issuer); err != nil {
			return fmt.Errorf("emisor: %w", err)
		}
		if err := recipientRepo.Create(ctx, inv.Recipient); err != nil {
			return fmt.Errorf("receptor: %w", err)
		}
		if err := invoiceRepo.Create(ctx, inv); err != nil {
			return fmt.Errorf("factura: %w", err)
		}
		for _, it := range inv.Items {
			it.InvoiceID = inv.ID
			if err := invoiceRepo.CreateItem(ctx, it); err != nil {
				return fmt.Errorf("item %d: %w", it.LineNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersist, err)
	}

	p.log.Info().
		Str("invoice_id", inv.ID).
		Str("company_id", inv.CompanyID).
		Str("authorization_number", inv.AuthorizationNumber).
		Int("items", len(inv.Items)).
		Msg("factura persistida")

	if p.publisher != nil {
		if err := p.publisher.PublishInvoiceIngested(ctx, inv); err != nil {
			p.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo publicar el evento")
		}
	}
	return inv, nil
}
