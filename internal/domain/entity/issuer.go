package entity

import "time"

// Issuer emisor del DTE. Cada factura tiene su propia fila (no se deduplica por NIT).
// Los opcionales ausentes en el XML quedan como "".
type Issuer struct {
	ID                string
	NIT               string
	Name              string
	CommercialName    string
	EstablishmentCode string
	Address           string
	Municipality      string
	Department        string
	PostalCode        string
	Country           string
	CreatedAt         time.Time
}

// Recipient receptor del DTE; su NIT determina el tenant dueño de la factura.
type Recipient struct {
	ID        string
	NIT       string
	Name      string
	Email     string
	CreatedAt time.Time
}
