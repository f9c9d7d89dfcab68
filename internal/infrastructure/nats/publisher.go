// Package nats publica eventos de facturas ingeridas en NATS.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/fel-ingestor/internal/application/ingestion"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// DefaultSubject subject de los eventos de factura ingerida.
const DefaultSubject = "fel.invoice.ingested"

var _ ingestion.EventPublisher = (*Publisher)(nil)

// InvoiceIngested evento emitido tras confirmar la transacción de una factura.
type InvoiceIngested struct {
	InvoiceID           string          `json:"invoice_id"`
	CompanyID           string          `json:"company_id"`
	AuthorizationNumber string          `json:"authorization_number"`
	Series              string          `json:"series"`
	Number              string          `json:"number"`
	DocumentType        string          `json:"document_type"`
	IssuerNIT           string          `json:"issuer_nit"`
	EmissionDate        time.Time       `json:"emission_date"`
	Currency            string          `json:"currency"`
	Total               decimal.Decimal `json:"total"`
	VAT                 decimal.Decimal `json:"vat"`
	DocumentDigest      string          `json:"document_digest"`
	SourceURL           string          `json:"source_url"`
}

// msgPublisher subconjunto de *nats.Conn que usa el publisher.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher publica InvoiceIngested sobre una conexión NATS.
type Publisher struct {
	conn    msgPublisher
	subject string
	log     *logger.Logger
}

// Connect abre la conexión con reconexión infinita.
func Connect(url string, log *logger.Logger) (*nats.Conn, error) {
	if log == nil {
		log = logger.Nop()
	}
	l := log.Component("nats")
	conn, err := nats.Connect(url,
		nats.Name("fel-ingestor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn().Err(err).Msg("NATS desconectado")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconectado")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewPublisher crea el publisher sobre una conexión abierta.
func NewPublisher(conn *nats.Conn, subject string, log *logger.Logger) *Publisher {
	return newPublisher(conn, subject, log)
}

func newPublisher(conn msgPublisher, subject string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, log: log.Component("nats.publisher")}
}

// PublishInvoiceIngested serializa el evento y lo publica. El id de la factura viaja en
// Nats-Msg-Id para que JetStream descarte duplicados.
func (p *Publisher) PublishInvoiceIngested(ctx context.Context, inv *entity.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(eventFrom(inv))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, inv.ID)
	msg.Header.Set("Company-Id", inv.CompanyID)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.log.Debug().Str("subject", p.subject).Str("invoice_id", inv.ID).Msg("evento publicado")
	return nil
}

func eventFrom(inv *entity.Invoice) InvoiceIngested {
	ev := InvoiceIngested{
		InvoiceID:           inv.ID,
		CompanyID:           inv.CompanyID,
		AuthorizationNumber: inv.AuthorizationNumber,
		Series:              inv.Series,
		Number:              inv.Number,
		DocumentType:        inv.DocumentType,
		EmissionDate:        inv.EmissionDate.UTC(),
		Currency:            inv.Currency,
		Total:               inv.Total,
		VAT:                 inv.VAT,
		DocumentDigest:      inv.DocumentDigest,
		SourceURL:           inv.SourceURL,
	}
	if inv.Issuer != nil {
		ev.IssuerNIT = inv.Issuer.NIT
	}
	return ev
}
