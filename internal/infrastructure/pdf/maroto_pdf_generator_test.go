package pdf

import (
	"bytes"
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
)

func TestGenerateInvoicePDF(t *testing.T) {
	inv := &entity.Invoice{
		AuthorizationNumber: "1234567890",
		Series:              "A1B2C3D4",
		Number:              "2537384742",
		DocumentType:        "FACT",
		EmissionDate:        time.Date(2024, 5, 1, 16, 20, 30, 0, time.UTC),
		Currency:            "GTQ",
		Total:               decimal.RequireFromString("150.50"),
		VAT:                 decimal.RequireFromString("16.12"),
		Issuer:              &entity.Issuer{NIT: "107346834", Name: "SERVICIOS EJEMPLO, S.A."},
		Recipient:           &entity.Recipient{NIT: "1234567-9", Name: "CLIENTE"},
		Items: []*entity.Item{
			{Quantity: decimal.NewFromInt(1), GoodOrService: "S", Description: "Servicio de prueba",
				UnitPrice: decimal.RequireFromString("150.50"), Total: decimal.RequireFromString("150.50")},
		},
	}

	out, err := NewMarotoPDFGenerator().GenerateInvoicePDF(context.Background(), inv, &entity.Company{Name: "CLIENTE"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateInvoicePDFWithoutParties(t *testing.T) {
	out, err := NewMarotoPDFGenerator().GenerateInvoicePDF(context.Background(), &entity.Invoice{Currency: "GTQ"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = NewMarotoPDFGenerator().GenerateInvoicePDF(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"5.5":        "5.50",
		"150.505":    "150.51",
		"1234":       "1,234.00",
		"1234567.89": "1,234,567.89",
		"-1000":      "-1,000.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestVerificationURL(t *testing.T) {
	inv := &entity.Invoice{AuthorizationNumber: "ABC-1", Total: decimal.RequireFromString("10")}
	raw := VerificationURL(inv, &entity.Issuer{NIT: "107346834"}, &entity.Recipient{NIT: "CF"})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "felpub.c.sat.gob.gt", u.Host)
	assert.Equal(t, "ABC-1", u.Query().Get("numero"))
	assert.Equal(t, "10.00", u.Query().Get("monto"))
	assert.Equal(t, "CF", u.Query().Get("receptor"))
}

func TestDocumentTypeName(t *testing.T) {
	assert.Equal(t, "FACTURA ELECTRÓNICA", documentTypeName("fact"))
	assert.Equal(t, "DOCUMENTO TRIBUTARIO ELECTRÓNICO", documentTypeName("XXXX"))
}
