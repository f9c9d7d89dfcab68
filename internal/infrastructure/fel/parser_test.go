package fel

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fel-ingestor/internal/domain"
)

const sourceURL = "https://felav02.c.sat.gob.gt/fel-rest/rest/publico/descargaXml/1234567890"

func loadSample(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("testdata/factura.xml")
	require.NoError(t, err)
	return string(b)
}

// buildDTE arma un DTE mínimo; generales, items y totales se insertan tal cual.
func buildDTE(generales, extra, items, totales string) string {
	return `<dte:GTDocumento xmlns:dte="http://www.sat.gob.gt/dte/fel/0.2.0">
<dte:SAT><dte:DTE><dte:DatosEmision>` + generales + extra + items + totales + `</dte:DatosEmision>
<dte:Certificacion><dte:NumeroAutorizacion Serie="S" Numero="N">AUT-1</dte:NumeroAutorizacion></dte:Certificacion>
</dte:DTE></dte:SAT></dte:GTDocumento>`
}

const (
	generalesOK = `<dte:DatosGenerales FechaHoraEmision="2024-05-01T10:20:30" Tipo="FACT"/>`
	totalesOK   = `<dte:Totales><dte:GranTotal>10.00</dte:GranTotal></dte:Totales>`
)

func TestParseSample(t *testing.T) {
	inv, err := NewParser().Parse(loadSample(t), sourceURL)
	require.NoError(t, err)

	assert.Equal(t, "1234567890", inv.AuthorizationNumber)
	assert.Equal(t, "A1B2C3D4", inv.Series)
	assert.Equal(t, "2537384742", inv.Number)
	assert.Equal(t, "FACT", inv.DocumentType)
	assert.Equal(t, "GTQ", inv.Currency)
	assert.True(t, decimal.RequireFromString("150.50").Equal(inv.Total))
	assert.True(t, decimal.RequireFromString("16.12").Equal(inv.VAT))
	assert.Equal(t, sourceURL, inv.SourceURL)
	assert.Len(t, inv.DocumentDigest, 64)

	want := time.Date(2024, 5, 1, 16, 20, 30, 0, time.UTC)
	assert.True(t, want.Equal(inv.EmissionDate), "emission date %s", inv.EmissionDate)
	assert.Zero(t, inv.EmissionDate.Nanosecond())

	require.NotNil(t, inv.Issuer)
	assert.Equal(t, "107346834", inv.Issuer.NIT)
	assert.Equal(t, "SERVICIOS EJEMPLO, SOCIEDAD ANONIMA", inv.Issuer.Name)
	assert.Equal(t, "Servicios Ejemplo", inv.Issuer.CommercialName)
	assert.Equal(t, "1", inv.Issuer.EstablishmentCode)
	assert.Equal(t, "6a Avenida 10-15 Zona 1", inv.Issuer.Address)
	assert.Equal(t, "01001", inv.Issuer.PostalCode)
	assert.Equal(t, "GT", inv.Issuer.Country)

	require.NotNil(t, inv.Recipient)
	assert.Equal(t, "1234567-9", inv.Recipient.NIT)
	assert.Equal(t, "contabilidad@cliente.gt", inv.Recipient.Email)

	require.Len(t, inv.Items, 1)
	it := inv.Items[0]
	assert.Equal(t, 1, it.LineNumber)
	assert.Equal(t, "S", it.GoodOrService)
	assert.Equal(t, "Servicio de prueba", it.Description)
	assert.Equal(t, "UNI", it.UnitOfMeasure)
	assert.True(t, decimal.RequireFromString("150.50").Equal(it.Total))
	assert.Equal(t, "IVA", it.Taxes.Name)
	assert.Equal(t, "1", it.Taxes.Code)
	assert.True(t, decimal.RequireFromString("16.12").Equal(it.Taxes.TaxAmount))
	assert.True(t, decimal.RequireFromString("134.38").Equal(it.Taxes.TaxableAmount))
}

func TestParseMultipleItemsKeepOrder(t *testing.T) {
	items := `<dte:Items>
<dte:Item NumeroLinea="1"><dte:Descripcion>uno</dte:Descripcion></dte:Item>
<dte:Item NumeroLinea="2"><dte:Descripcion>dos</dte:Descripcion></dte:Item>
<dte:Item NumeroLinea="3"><dte:Descripcion>tres</dte:Descripcion></dte:Item>
</dte:Items>`
	inv, err := NewParser().Parse(buildDTE(generalesOK, "", items, totalesOK), sourceURL)
	require.NoError(t, err)
	require.Len(t, inv.Items, 3)
	for i, d := range []string{"uno", "dos", "tres"} {
		assert.Equal(t, d, inv.Items[i].Description)
		assert.Equal(t, i+1, inv.Items[i].LineNumber)
	}
}

func TestParseOptionalDefaults(t *testing.T) {
	items := `<dte:Items><dte:Item><dte:Descripcion>sin montos</dte:Descripcion></dte:Item></dte:Items>`
	inv, err := NewParser().Parse(buildDTE(generalesOK, "", items, totalesOK), sourceURL)
	require.NoError(t, err)

	assert.Equal(t, "GTQ", inv.Currency)
	assert.True(t, inv.VAT.IsZero())
	assert.Empty(t, inv.Issuer.NIT)
	assert.Empty(t, inv.Issuer.Address)
	assert.Empty(t, inv.Recipient.NIT)
	require.Len(t, inv.Items, 1)
	it := inv.Items[0]
	assert.Equal(t, 0, it.LineNumber)
	assert.True(t, it.Quantity.IsZero())
	assert.True(t, it.UnitPrice.IsZero())
	assert.True(t, it.Discount.IsZero())
	assert.Empty(t, it.Taxes.Name)
	assert.True(t, it.Taxes.TaxAmount.IsZero())
}

func TestParseNoItems(t *testing.T) {
	inv, err := NewParser().Parse(buildDTE(generalesOK, "", "", totalesOK), sourceURL)
	require.NoError(t, err)
	assert.NotNil(t, inv.Items)
	assert.Empty(t, inv.Items)
}

func TestParseEmptyCurrencyDefaults(t *testing.T) {
	gen := `<dte:DatosGenerales CodigoMoneda="" FechaHoraEmision="2024-05-01T10:20:30-06:00" Tipo="FACT"/>`
	inv, err := NewParser().Parse(buildDTE(gen, "", "", totalesOK), sourceURL)
	require.NoError(t, err)
	assert.Equal(t, "GTQ", inv.Currency)

	gen = `<dte:DatosGenerales CodigoMoneda="USD" FechaHoraEmision="2024-05-01T10:20:30-06:00" Tipo="FACT"/>`
	inv, err = NewParser().Parse(buildDTE(gen, "", "", totalesOK), sourceURL)
	require.NoError(t, err)
	assert.Equal(t, "USD", inv.Currency)
}

func TestParseNaiveTimestampIsGuatemalaTime(t *testing.T) {
	gen := `<dte:DatosGenerales FechaHoraEmision="2024-05-01T10:20:30.999" Tipo="FACT"/>`
	inv, err := NewParser().Parse(buildDTE(gen, "", "", totalesOK), sourceURL)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 5, 1, 16, 20, 30, 0, time.UTC).Equal(inv.EmissionDate))
}

func TestParseTimestampWithoutSeconds(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-01T10:20":       time.Date(2024, 5, 1, 16, 20, 0, 0, time.UTC),
		"2024-05-01T10:20-06:00": time.Date(2024, 5, 1, 16, 20, 0, 0, time.UTC),
		"2024-05-01T10:20Z":      time.Date(2024, 5, 1, 10, 20, 0, 0, time.UTC),
		" 2024-05-01T10:20:30Z ": time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC),
	}
	for raw, want := range cases {
		gen := `<dte:DatosGenerales FechaHoraEmision="` + raw + `" Tipo="FACT"/>`
		inv, err := NewParser().Parse(buildDTE(gen, "", "", totalesOK), sourceURL)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(inv.EmissionDate), "%s -> %s", raw, inv.EmissionDate)
	}
}

func TestParseVATPrefersIVA(t *testing.T) {
	tot := `<dte:Totales><dte:TotalImpuestos>
<dte:TotalImpuesto NombreCorto="PETROLEO" TotalMontoImpuesto="4.70"/>
<dte:TotalImpuesto NombreCorto="IVA" TotalMontoImpuesto="1.07"/>
</dte:TotalImpuestos><dte:GranTotal>10.00</dte:GranTotal></dte:Totales>`
	inv, err := NewParser().Parse(buildDTE(generalesOK, "", "", tot), sourceURL)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.07").Equal(inv.VAT))

	tot = `<dte:Totales><dte:TotalImpuestos>
<dte:TotalImpuesto NombreCorto="TURISMO" TotalMontoImpuesto="2.00"/>
</dte:TotalImpuestos><dte:GranTotal>10.00</dte:GranTotal></dte:Totales>`
	inv, err = NewParser().Parse(buildDTE(generalesOK, "", "", tot), sourceURL)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.00").Equal(inv.VAT))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"xml mal formado": "<dte:GTDocumento",
		"raíz incorrecta": `<GTDocumento><SAT/></GTDocumento>`,
		"namespace incorrecto": strings.Replace(buildDTE(generalesOK, "", "", totalesOK),
			"http://www.sat.gob.gt/dte/fel/0.2.0", "urn:otro", 1),
		"sin fecha":         buildDTE(`<dte:DatosGenerales Tipo="FACT"/>`, "", "", totalesOK),
		"fecha inválida":    buildDTE(`<dte:DatosGenerales FechaHoraEmision="ayer" Tipo="FACT"/>`, "", "", totalesOK),
		"sin gran total":    buildDTE(generalesOK, "", "", `<dte:Totales/>`),
		"sin totales":       buildDTE(generalesOK, "", "", ""),
		"total negativo":    buildDTE(generalesOK, "", "", `<dte:Totales><dte:GranTotal>-1</dte:GranTotal></dte:Totales>`),
		"total no numérico": buildDTE(generalesOK, "", "", `<dte:Totales><dte:GranTotal>diez</dte:GranTotal></dte:Totales>`),
		"iva negativo": buildDTE(generalesOK, "", "", `<dte:Totales><dte:TotalImpuestos>
<dte:TotalImpuesto NombreCorto="IVA" TotalMontoImpuesto="-0.5"/></dte:TotalImpuestos>
<dte:GranTotal>1</dte:GranTotal></dte:Totales>`),
		"sin certificación": `<dte:GTDocumento xmlns:dte="http://www.sat.gob.gt/dte/fel/0.2.0"><dte:SAT><dte:DTE><dte:DatosEmision>` +
			generalesOK + totalesOK + `</dte:DatosEmision></dte:DTE></dte:SAT></dte:GTDocumento>`,
		"línea inválida": buildDTE(generalesOK, "", `<dte:Items><dte:Item NumeroLinea="x"/></dte:Items>`, totalesOK),
	}
	p := NewParser()
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			inv, err := p.Parse(doc, sourceURL)
			assert.Nil(t, inv)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestParseAfterNormalizeLatin1(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>` + buildDTE(generalesOK,
		`<dte:Receptor IDReceptor="CF" NombreReceptor="Jos`+"\xe9"+` Pe`+"\xf1"+`a"/>`, "", totalesOK)
	inv, err := NewParser().Parse(Normalize([]byte(doc)), sourceURL)
	require.NoError(t, err)
	assert.Equal(t, "José Peña", inv.Recipient.Name)
}

func TestParseTrimsBOM(t *testing.T) {
	doc := "\ufeff" + buildDTE(generalesOK, "", "", totalesOK)
	_, err := NewParser().Parse(doc, sourceURL)
	assert.NoError(t, err)
}

func TestDigestStableAcrossFormatting(t *testing.T) {
	a := `<?xml version="1.0" encoding="UTF-8"?>
<r xmlns="urn:x" a="1"><c>t</c><e/></r>`
	b := `<r xmlns="urn:x" a="1"><c>t</c><e></e></r>`
	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	dc, err := Digest(`<r xmlns="urn:x" a="1"><c>u</c><e/></r>`)
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}
