package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssuerResponse emisor del DTE.
type IssuerResponse struct {
	ID                string `json:"id"`
	NIT               string `json:"nit"`
	Name              string `json:"name"`
	CommercialName    string `json:"commercial_name"`
	EstablishmentCode string `json:"establishment_code"`
	Address           string `json:"address"`
	Municipality      string `json:"municipality"`
	Department        string `json:"department"`
	PostalCode        string `json:"postal_code"`
	Country           string `json:"country"`
}

// RecipientResponse receptor del DTE.
type RecipientResponse struct {
	ID    string `json:"id"`
	NIT   string `json:"nit"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ItemTaxResponse impuesto de la línea.
type ItemTaxResponse struct {
	Name          string          `json:"name"`
	Code          string          `json:"code"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
}

// ItemResponse línea de detalle.
type ItemResponse struct {
	ID            string          `json:"id"`
	LineNumber    int             `json:"line_number"`
	GoodOrService string          `json:"good_or_service"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	Description   string          `json:"description"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Price         decimal.Decimal `json:"price"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Taxes         ItemTaxResponse `json:"taxes"`
}

// InvoiceResponse factura ingerida con emisor, receptor e items.
type InvoiceResponse struct {
	ID                  string            `json:"id"`
	AuthorizationNumber string            `json:"authorization_number"`
	Series              string            `json:"series"`
	Number              string            `json:"number"`
	DocumentType        string            `json:"document_type"`
	EmissionDate        time.Time         `json:"emission_date"`
	Currency            string            `json:"currency"`
	Total               decimal.Decimal   `json:"total"`
	VAT                 decimal.Decimal   `json:"vat"`
	XMLURL              string            `json:"xml_url"`
	ProcessingDate      time.Time         `json:"processing_date"`
	Issuer              IssuerResponse    `json:"issuer"`
	Recipient           RecipientResponse `json:"recipient"`
	Items               []ItemResponse    `json:"items"`
}

// CompanyInvoicesResponse respuesta de GET /api/invoices/company-invoices.
type CompanyInvoicesResponse struct {
	Status        string            `json:"status"`
	CompanyName   string            `json:"company_name"`
	CompanyNIT    string            `json:"company_nit"`
	InvoicesCount int               `json:"invoices_count"`
	Invoices      []InvoiceResponse `json:"invoices"`
}

// CompanyInvoiceCountResponse respuesta de GET /api/invoices/company-invoice-count.
type CompanyInvoiceCountResponse struct {
	Status       string `json:"status"`
	CompanyName  string `json:"company_name"`
	CompanyNIT   string `json:"company_nit"`
	InvoiceCount int    `json:"invoice_count"`
}
