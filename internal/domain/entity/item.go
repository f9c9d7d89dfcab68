package entity

import "github.com/shopspring/decimal"

// ItemTax primer impuesto declarado en la línea (dte:Impuestos/dte:Impuesto).
type ItemTax struct {
	Name          string          `json:"nombre"`
	Code          string          `json:"codigo"`
	TaxableAmount decimal.Decimal `json:"monto_gravable"`
	TaxAmount     decimal.Decimal `json:"monto_impuesto"`
}

// Item línea de detalle del DTE, en el orden del documento.
type Item struct {
	ID            string
	InvoiceID     string
	LineNumber    int
	GoodOrService string // B = bien, S = servicio
	Quantity      decimal.Decimal
	UnitOfMeasure string
	Description   string
	UnitPrice     decimal.Decimal
	Price         decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Taxes         ItemTax
}
