package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fel-ingestor/internal/application/dto"
	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
)

// HeaderAPIKey header con el API key del tenant.
const HeaderAPIKey = "X-API-Key"

// apiKeyAuthenticator lo implementa *invoices.UseCase.
type apiKeyAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, apiKey string) (*entity.Company, error)
}

// APIKeyMiddleware resuelve la empresa a partir del header X-API-Key y la deja en c.Locals.
func APIKeyMiddleware(auth apiKeyAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderAPIKey)
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_API_KEY", Message: "header " + HeaderAPIKey + " requerido"})
		}
		company, err := auth.AuthenticateAPIKey(c.UserContext(), key)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_API_KEY", Message: "Invalid authorization code"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
		c.Locals(LocalCompany, company)
		return c.Next()
	}
}

// GetCompany devuelve la empresa autenticada por API key.
func GetCompany(c *fiber.Ctx) *entity.Company {
	company, _ := c.Locals(LocalCompany).(*entity.Company)
	return company
}
