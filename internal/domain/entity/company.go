package entity

import "time"

// Company representa una organización/tenant del sistema. Las facturas ingeridas
// se asignan a la empresa cuyo NIT coincide con el receptor del DTE.
type Company struct {
	ID         string
	Name       string
	NIT        string
	Email      string
	APIKeyHash string // bcrypt del API key con el que la empresa consulta sus facturas
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
