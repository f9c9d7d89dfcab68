package dto

import "github.com/jhoicas/fel-ingestor/internal/application/ingestion"

// ProcessInvoicesResponse respuesta de POST /api/invoices/process.
type ProcessInvoicesResponse struct {
	Status  string             `json:"status"`
	Summary *ingestion.Summary `json:"summary"`
}
