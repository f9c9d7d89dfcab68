package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency moneda asumida cuando el DTE no declara CodigoMoneda.
const DefaultCurrency = "GTQ"

// Invoice representa un DTE certificado por la SAT ya mapeado al modelo de dominio.
// Se crea una sola vez por documento; una re-ingesta produce una fila nueva.
type Invoice struct {
	ID                  string
	CompanyID           string
	AuthorizationNumber string // NumeroAutorizacion (UUID de certificación)
	Series              string
	Number              string
	DocumentType        string // FACT, FCAM, NCRE, ...
	EmissionDate        time.Time
	Currency            string
	Total               decimal.Decimal
	VAT                 decimal.Decimal
	SourceURL           string // enlace de descarga del XML
	DocumentDigest      string // SHA-256 del XML canónico
	Issuer              *Issuer
	Recipient           *Recipient
	Items               []*Item
	ProcessingDate      time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
