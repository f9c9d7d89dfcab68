package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/fel-ingestor/internal/application/dto"
	"github.com/jhoicas/fel-ingestor/internal/application/invoices"
	"github.com/jhoicas/fel-ingestor/pkg/jwt"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Pipeline  pipelineRunner
	Invoices  *invoices.UseCase
	JWTSecret string
	Log       *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(dto.HealthResponse{Status: "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	invoicesGroup := app.Group("/api/invoices")

	// Disparo de la ingesta (Bearer + rol). GET para programadores que solo hacen GET.
	ingestionHandler := NewIngestionHandler(deps.Pipeline, deps.Log)
	trigger := []fiber.Handler{
		AuthMiddleware(deps.JWTSecret),
		RequireRole(jwt.RoleScheduler, jwt.RoleAdmin),
		ingestionHandler.Process,
	}
	invoicesGroup.Post("/process", trigger...)
	invoicesGroup.Get("/process", trigger...)

	// Consultas por tenant (X-API-Key)
	invoiceHandler := NewInvoiceHandler(deps.Invoices)
	apiKey := APIKeyMiddleware(deps.Invoices)
	invoicesGroup.Get("/company-invoices", apiKey, invoiceHandler.CompanyInvoices)
	invoicesGroup.Get("/company-invoice-count", apiKey, invoiceHandler.CompanyInvoiceCount)
	invoicesGroup.Get("/:id/pdf", apiKey, invoiceHandler.PDF)
}
