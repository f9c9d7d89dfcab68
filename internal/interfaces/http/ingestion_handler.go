package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fel-ingestor/internal/application/dto"
	"github.com/jhoicas/fel-ingestor/internal/application/ingestion"
	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// pipelineRunner lo implementa *ingestion.Pipeline.
type pipelineRunner interface {
	Run(ctx context.Context) (*ingestion.Summary, error)
}

// IngestionHandler dispara la corrida del pipeline (protegido, rol scheduler o admin).
type IngestionHandler struct {
	pipeline pipelineRunner
	log      *logger.Logger
}

// NewIngestionHandler construye el handler.
func NewIngestionHandler(pipeline pipelineRunner, log *logger.Logger) *IngestionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestionHandler{pipeline: pipeline, log: log.Component("http.ingestion")}
}

// Process ejecuta una corrida y devuelve el resumen.
// POST|GET /api/invoices/process
//
//	@Summary	Procesa los correos de notificación FEL no leídos
//	@Tags		invoices
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	dto.ProcessInvoicesResponse
//	@Failure	409	{object}	dto.ErrorResponse
//	@Failure	502	{object}	dto.ErrorResponse
//	@Router		/api/invoices/process [post]
func (h *IngestionHandler) Process(c *fiber.Ctx) error {
	h.log.Info().Str("subject", GetSubject(c)).Str("role", GetRole(c)).Msg("corrida solicitada")

	summary, err := h.pipeline.Run(c.UserContext())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RUN_IN_PROGRESS", Message: "ya hay una ingesta en curso"})
		case errors.Is(err, domain.ErrAuth):
			h.log.Error().Err(err).Msg("credencial del buzón inválida")
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "MAILBOX_AUTH", Message: "no se pudo renovar la credencial del buzón"})
		case errors.Is(err, domain.ErrFetch):
			h.log.Error().Err(err).Msg("buzón no disponible")
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "MAILBOX_UNAVAILABLE", Message: "no se pudo consultar el buzón"})
		default:
			h.log.Error().Err(err).Msg("corrida fallida")
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}
	return c.JSON(dto.ProcessInvoicesResponse{Status: "success", Summary: summary})
}
