package invoices

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/fel-ingestor/internal/application/dto"
	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
)

// InvoicePDFGenerator genera la representación gráfica de una factura ingerida.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, inv *entity.Invoice, company *entity.Company) ([]byte, error)
}

// UseCase consultas de facturas por empresa, autenticadas con el API key del tenant.
type UseCase struct {
	companies repository.CompanyRepository
	invoices  repository.InvoiceRepository
	pdf       InvoicePDFGenerator
}

// NewUseCase construye el caso de uso.
func NewUseCase(companies repository.CompanyRepository, invoices repository.InvoiceRepository, pdf InvoicePDFGenerator) *UseCase {
	return &UseCase{companies: companies, invoices: invoices, pdf: pdf}
}

// AuthenticateAPIKey busca la empresa cuyo hash bcrypt coincide con apiKey.
// Devuelve domain.ErrUnauthorized si no hay coincidencia.
func (uc *UseCase) AuthenticateAPIKey(ctx context.Context, apiKey string) (*entity.Company, error) {
	if apiKey == "" {
		return nil, domain.ErrUnauthorized
	}
	list, err := uc.companies.ListWithAPIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar empresas: %w", err)
	}
	// Un hash corrupto equivale a no coincidir.
	for _, c := range list {
		if bcrypt.CompareHashAndPassword([]byte(c.APIKeyHash), []byte(apiKey)) == nil {
			return c, nil
		}
	}
	return nil, domain.ErrUnauthorized
}

// ListCompanyInvoices devuelve todas las facturas de la empresa con sus relaciones.
func (uc *UseCase) ListCompanyInvoices(ctx context.Context, company *entity.Company) (*dto.CompanyInvoicesResponse, error) {
	list, err := uc.invoices.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InvoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, ToInvoiceResponse(inv))
	}
	return &dto.CompanyInvoicesResponse{
		Status:        "success",
		CompanyName:   company.Name,
		CompanyNIT:    company.NIT,
		InvoicesCount: len(out),
		Invoices:      out,
	}, nil
}

// CountCompanyInvoices devuelve la cantidad de facturas de la empresa.
func (uc *UseCase) CountCompanyInvoices(ctx context.Context, company *entity.Company) (*dto.CompanyInvoiceCountResponse, error) {
	n, err := uc.invoices.CountByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &dto.CompanyInvoiceCountResponse{
		Status:       "success",
		CompanyName:  company.Name,
		CompanyNIT:   company.NIT,
		InvoiceCount: n,
	}, nil
}

// InvoicePDF genera el PDF de una factura de la empresa.
//
// Retorna:
//   - domain.ErrNotFound  si la factura no existe.
//   - domain.ErrForbidden si pertenece a otra empresa.
func (uc *UseCase) InvoicePDF(ctx context.Context, company *entity.Company, invoiceID string) ([]byte, string, error) {
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}
	if inv.CompanyID != company.ID {
		return nil, "", domain.ErrForbidden
	}
	pdf, err := uc.pdf.GenerateInvoicePDF(ctx, inv, company)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("DTE-%s-%s.pdf", inv.Series, inv.Number), nil
}

// GenerateAPIKey crea un API key aleatorio y su hash bcrypt para guardar en companies.api_key_hash.
func GenerateAPIKey() (key, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generar api key: %w", err)
	}
	key = hex.EncodeToString(buf)
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash api key: %w", err)
	}
	return key, string(h), nil
}

// ToInvoiceResponse convierte la entidad al DTO de respuesta.
func ToInvoiceResponse(inv *entity.Invoice) dto.InvoiceResponse {
	resp := dto.InvoiceResponse{
		ID:                  inv.ID,
		AuthorizationNumber: inv.AuthorizationNumber,
		Series:              inv.Series,
		Number:              inv.Number,
		DocumentType:        inv.DocumentType,
		EmissionDate:        inv.EmissionDate,
		Currency:            inv.Currency,
		Total:               inv.Total,
		VAT:                 inv.VAT,
		XMLURL:              inv.SourceURL,
		ProcessingDate:      inv.ProcessingDate,
		Items:               make([]dto.ItemResponse, 0, len(inv.Items)),
	}
	if iss := inv.Issuer; iss != nil {
		resp.Issuer = dto.IssuerResponse{
			ID:                iss.ID,
			NIT:               iss.NIT,
			Name:              iss.Name,
			CommercialName:    iss.CommercialName,
			EstablishmentCode: iss.EstablishmentCode,
			Address:           iss.Address,
			Municipality:      iss.Municipality,
			Department:        iss.Department,
			PostalCode:        iss.PostalCode,
			Country:           iss.Country,
		}
	}
	if rec := inv.Recipient; rec != nil {
		resp.Recipient = dto.RecipientResponse{ID: rec.ID, NIT: rec.NIT, Name: rec.Name, Email: rec.Email}
	}
	for _, it := range inv.Items {
		resp.Items = append(resp.Items, dto.ItemResponse{
			ID:            it.ID,
			LineNumber:    it.LineNumber,
			GoodOrService: it.GoodOrService,
			Quantity:      it.Quantity,
			UnitOfMeasure: it.UnitOfMeasure,
			Description:   it.Description,
			UnitPrice:     it.UnitPrice,
			Price:         it.Price,
			Discount:      it.Discount,
			Total:         it.Total,
			Taxes: dto.ItemTaxResponse{
				Name:          it.Taxes.Name,
				Code:          it.Taxes.Code,
				TaxableAmount: it.Taxes.TaxableAmount,
				TaxAmount:     it.Taxes.TaxAmount,
			},
		})
	}
	return resp
}
