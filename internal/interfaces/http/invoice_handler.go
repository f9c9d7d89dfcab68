package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jhoicas/fel-ingestor/internal/application/dto"
	"github.com/jhoicas/fel-ingestor/internal/application/invoices"
	"github.com/jhoicas/fel-ingestor/internal/domain"
)

// InvoiceHandler consultas de facturas de la empresa autenticada por API key.
type InvoiceHandler struct {
	uc *invoices.UseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *invoices.UseCase) *InvoiceHandler {
	return &InvoiceHandler{uc: uc}
}

// CompanyInvoices lista las facturas de la empresa con emisor, receptor e items.
// GET /api/invoices/company-invoices
//
//	@Summary	Facturas de la empresa
//	@Tags		invoices
//	@Produce	json
//	@Security	APIKeyAuth
//	@Success	200	{object}	dto.CompanyInvoicesResponse
//	@Failure	401	{object}	dto.ErrorResponse
//	@Router		/api/invoices/company-invoices [get]
func (h *InvoiceHandler) CompanyInvoices(c *fiber.Ctx) error {
	company := GetCompany(c)
	if company == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "empresa no autenticada"})
	}
	resp, err := h.uc.ListCompanyInvoices(c.UserContext(), company)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "Failed to retrieve invoices: " + err.Error()})
	}
	return c.JSON(resp)
}

// CompanyInvoiceCount devuelve la cantidad de facturas de la empresa.
// GET /api/invoices/company-invoice-count
//
//	@Summary	Cantidad de facturas de la empresa
//	@Tags		invoices
//	@Produce	json
//	@Security	APIKeyAuth
//	@Success	200	{object}	dto.CompanyInvoiceCountResponse
//	@Failure	401	{object}	dto.ErrorResponse
//	@Router		/api/invoices/company-invoice-count [get]
func (h *InvoiceHandler) CompanyInvoiceCount(c *fiber.Ctx) error {
	company := GetCompany(c)
	if company == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "empresa no autenticada"})
	}
	resp, err := h.uc.CountCompanyInvoices(c.UserContext(), company)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "Failed to retrieve invoice count: " + err.Error()})
	}
	return c.JSON(resp)
}

// PDF devuelve la representación gráfica de una factura de la empresa.
// GET /api/invoices/:id/pdf
//
//	@Summary	PDF de la factura
//	@Tags		invoices
//	@Produce	application/pdf
//	@Security	APIKeyAuth
//	@Param		id	path	string	true	"ID de la factura"
//	@Success	200
//	@Failure	400	{object}	dto.ErrorResponse
//	@Failure	403	{object}	dto.ErrorResponse
//	@Failure	404	{object}	dto.ErrorResponse
//	@Router		/api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) PDF(c *fiber.Ctx) error {
	company := GetCompany(c)
	if company == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "empresa no autenticada"})
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de factura inválido"})
	}
	pdf, filename, err := h.uc.InvoicePDF(c.UserContext(), company, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		if errors.Is(err, domain.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}
