package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/fel-ingestor/internal/application/dto"
	"github.com/jhoicas/fel-ingestor/internal/application/ingestion"
	"github.com/jhoicas/fel-ingestor/internal/application/invoices"
	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	infrapdf "github.com/jhoicas/fel-ingestor/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/fel-ingestor/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/fel-ingestor/pkg/jwt"
)

const (
	tenantKey   = "clave-del-tenant"
	invoiceID   = "6f1c2f0e-8d4b-4f5e-9a51-3c2d1e0f9a7b"
	foreignID   = "0b7e3a52-1111-4c3d-8e9f-aaaaaaaaaaaa"
	unknownID   = "0b7e3a52-2222-4c3d-8e9f-bbbbbbbbbbbb"
	tenantID    = "company-1"
	otherTenant = "company-2"
)

type fakePipeline struct {
	summary *ingestion.Summary
	err     error
	calls   int
}

func (p *fakePipeline) Run(ctx context.Context) (*ingestion.Summary, error) {
	p.calls++
	return p.summary, p.err
}

type companies struct{ list []*entity.Company }

func (c *companies) GetByNIT(ctx context.Context, nit string) (*entity.Company, error) { return nil, nil }
func (c *companies) GetByID(ctx context.Context, id string) (*entity.Company, error)   { return nil, nil }
func (c *companies) ListWithAPIKey(ctx context.Context) ([]*entity.Company, error) {
	return c.list, nil
}

type invoiceRepo struct{ byID map[string]*entity.Invoice }

func (r *invoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error  { return nil }
func (r *invoiceRepo) CreateItem(ctx context.Context, it *entity.Item) error { return nil }
func (r *invoiceRepo) ExistsByDigest(ctx context.Context, d string) (bool, error) {
	return false, nil
}
func (r *invoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.byID[id], nil
}
func (r *invoiceRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range r.byID {
		if inv.CompanyID == companyID {
			out = append(out, inv)
		}
	}
	return out, nil
}
func (r *invoiceRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	list, _ := r.ListByCompany(ctx, companyID)
	return len(list), nil
}

func newRouterApp(t *testing.T, pipeline *fakePipeline) *fiber.App {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(tenantKey), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &invoiceRepo{byID: map[string]*entity.Invoice{
		invoiceID: {
			ID: invoiceID, CompanyID: tenantID, AuthorizationNumber: "1234567890",
			Series: "A1", Number: "99", DocumentType: "FACT", Currency: "GTQ",
			Total:     decimal.RequireFromString("150.50"),
			Issuer:    &entity.Issuer{NIT: "107346834", Name: "EMISOR"},
			Recipient: &entity.Recipient{NIT: "1234567-9", Name: "RECEPTOR"},
			Items:     []*entity.Item{{Description: "Servicio de prueba", Total: decimal.RequireFromString("150.50")}},
		},
		foreignID: {ID: foreignID, CompanyID: otherTenant},
	}}
	uc := invoices.NewUseCase(
		&companies{list: []*entity.Company{{ID: tenantID, Name: "Empresa", NIT: "12345679", APIKeyHash: string(hash), IsActive: true}}},
		repo,
		infrapdf.NewMarotoPDFGenerator(),
	)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{Pipeline: pipeline, Invoices: uc, JWTSecret: testJWTSecret})
	return app
}

func send(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthAndMetrics(t *testing.T) {
	app := newRouterApp(t, &fakePipeline{})

	resp, body := send(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = send(t, app, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestProcessReturnsSummary(t *testing.T) {
	pipeline := &fakePipeline{summary: &ingestion.Summary{
		Listed: 2, Attempted: 2, Succeeded: 1, Failed: 1, MarkedRead: 1,
		Failures: []ingestion.MessageFailure{{MessageID: "m2", Step: ingestion.StepExtract, Reason: ingestion.ReasonNoLink}},
	}}
	app := newRouterApp(t, pipeline)
	auth := map[string]string{"Authorization": tokenForRole(t, pkgjwt.RoleScheduler)}

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		resp, body := send(t, app, method, "/api/invoices/process", auth)
		require.Equal(t, http.StatusOK, resp.StatusCode, method)

		var out dto.ProcessInvoicesResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "success", out.Status)
		require.NotNil(t, out.Summary)
		assert.Equal(t, 1, out.Summary.Succeeded)
		require.Len(t, out.Summary.Failures, 1)
		assert.Equal(t, "no link found", out.Summary.Failures[0].Reason)
	}
	assert.Equal(t, 2, pipeline.calls)
}

func TestProcessErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrRunInProgress, http.StatusConflict, "RUN_IN_PROGRESS"},
		{fmt.Errorf("corrida abortada: %w", domain.ErrAuth), http.StatusBadGateway, "MAILBOX_AUTH"},
		{fmt.Errorf("listar mensajes: %w", domain.ErrFetch), http.StatusBadGateway, "MAILBOX_UNAVAILABLE"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			app := newRouterApp(t, &fakePipeline{err: tc.err})
			resp, body := send(t, app, http.MethodPost, "/api/invoices/process",
				map[string]string{"Authorization": tokenForRole(t, pkgjwt.RoleAdmin)})
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Contains(t, string(body), tc.code)
		})
	}
}

func TestProcessRequiresRole(t *testing.T) {
	pipeline := &fakePipeline{summary: &ingestion.Summary{}}
	app := newRouterApp(t, pipeline)

	resp, _ := send(t, app, http.MethodPost, "/api/invoices/process", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, app, http.MethodPost, "/api/invoices/process",
		map[string]string{"Authorization": tokenForRole(t, "contador")})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// El API key del tenant no sirve para disparar la ingesta.
	resp, _ = send(t, app, http.MethodPost, "/api/invoices/process", map[string]string{apphttp.HeaderAPIKey: tenantKey})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, pipeline.calls)
}

func TestCompanyInvoices(t *testing.T) {
	app := newRouterApp(t, &fakePipeline{})

	resp, body := send(t, app, http.MethodGet, "/api/invoices/company-invoices", map[string]string{apphttp.HeaderAPIKey: tenantKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.CompanyInvoicesResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Empresa", out.CompanyName)
	assert.Equal(t, 1, out.InvoicesCount)
	require.Len(t, out.Invoices, 1)
	assert.Equal(t, "1234567890", out.Invoices[0].AuthorizationNumber)
	assert.True(t, out.Invoices[0].Total.Equal(decimal.RequireFromString("150.50")))
	assert.Equal(t, "Servicio de prueba", out.Invoices[0].Items[0].Description)

	resp, body = send(t, app, http.MethodGet, "/api/invoices/company-invoice-count", map[string]string{apphttp.HeaderAPIKey: tenantKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count dto.CompanyInvoiceCountResponse
	require.NoError(t, json.Unmarshal(body, &count))
	assert.Equal(t, 1, count.InvoiceCount)
}

func TestCompanyInvoicesAPIKey(t *testing.T) {
	app := newRouterApp(t, &fakePipeline{})

	resp, body := send(t, app, http.MethodGet, "/api/invoices/company-invoices", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "MISSING_API_KEY")

	resp, body = send(t, app, http.MethodGet, "/api/invoices/company-invoice-count", map[string]string{apphttp.HeaderAPIKey: "otra"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "INVALID_API_KEY")
}

func TestInvoicePDF(t *testing.T) {
	app := newRouterApp(t, &fakePipeline{})
	key := map[string]string{apphttp.HeaderAPIKey: tenantKey}

	resp, body := send(t, app, http.MethodGet, "/api/invoices/"+invoiceID+"/pdf", key)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "DTE-A1-99.pdf")
	assert.Equal(t, "%PDF", string(body[:4]))

	resp, _ = send(t, app, http.MethodGet, "/api/invoices/"+foreignID+"/pdf", key)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = send(t, app, http.MethodGet, "/api/invoices/"+unknownID+"/pdf", key)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = send(t, app, http.MethodGet, "/api/invoices/no-es-uuid/pdf", key)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
