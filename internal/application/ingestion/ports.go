package ingestion

import (
	"context"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/mailbox"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/sat"
)

// Mailbox operaciones del buzón que usa el pipeline (implementado por mailbox.Client).
type Mailbox interface {
	ListUnread(ctx context.Context) ([]mailbox.Message, error)
	FetchContent(ctx context.Context, messageID string) (string, error)
	MarkRead(ctx context.Context, messageIDs []string) error
}

// LinkExtractor busca el enlace de descarga del XML en el cuerpo del correo.
type LinkExtractor interface {
	Extract(content string) (string, bool)
}

// Fetcher descarga el XML a un archivo temporal. El caller debe cerrar el documento.
type Fetcher interface {
	Spool(ctx context.Context, url string) (*sat.Document, error)
}

// Normalizer decodifica los bytes del documento y limpia caracteres de control.
type Normalizer func(raw []byte) string

// Parser mapea el XML normalizado a una factura.
type Parser interface {
	Parse(xmlText, sourceURL string) (*entity.Invoice, error)
}

// InvoiceSaver resuelve el tenant y persiste la factura.
type InvoiceSaver interface {
	ResolveAndSave(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
}

// TxRunner ejecuta fn dentro de una transacción con los repos de la factura.
// Si fn retorna error no queda ninguna fila escrita.
type TxRunner interface {
	RunIngestion(ctx context.Context, fn func(
		issuerRepo repository.IssuerRepository,
		recipientRepo repository.RecipientRepository,
		invoiceRepo repository.InvoiceRepository,
	) error) error
}

// RunLock candado entre instancias. TryLock devuelve domain.ErrRunInProgress si otra corrida lo tiene.
type RunLock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// EventPublisher notifica facturas ya confirmadas en la base de datos.
type EventPublisher interface {
	PublishInvoiceIngested(ctx context.Context, inv *entity.Invoice) error
}
