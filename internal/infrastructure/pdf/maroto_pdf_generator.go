// Package pdf genera la representación gráfica de un DTE FEL ya certificado.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Emisor + NIT         │  Tipo DTE + Serie/Número    │
//	│  EMISOR: Establecimiento / Dirección                        │
//	│  RECEPTOR: Nombre + NIT + correo                            │
//	│  TABLA: Cant | B/S | Descripción | P.Unit | Desc. | Total   │
//	│  TOTALES: IVA / GRAN TOTAL                                  │
//	│  FOOTER SAT: Autorización + QR de verificación              │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
)

// verifyURL portal público de verificación de DTE de la SAT.
const verifyURL = "https://felpub.c.sat.gob.gt/verificador-web/publico/vistas/verificacionDte.jsf"

var guatemala = time.FixedZone("CST", -6*60*60)

// documentTypes nombres de los tipos de DTE más comunes.
var documentTypes = map[string]string{
	"FACT": "FACTURA",
	"FCAM": "FACTURA CAMBIARIA",
	"FPEQ": "FACTURA PEQUEÑO CONTRIBUYENTE",
	"FESP": "FACTURA ESPECIAL",
	"NABN": "NOTA DE ABONO",
	"RDON": "RECIBO POR DONACIÓN",
	"RECI": "RECIBO",
	"NDEB": "NOTA DE DÉBITO",
	"NCRE": "NOTA DE CRÉDITO",
}

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// MarotoPDFGenerator genera el PDF con Maroto v2.
type MarotoPDFGenerator struct{}

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// GenerateInvoicePDF genera el PDF de la factura y devuelve sus bytes.
// company puede ser nil; solo se usa para los metadatos del documento.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(_ context.Context, inv *entity.Invoice, company *entity.Company) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("pdf: factura nil")
	}
	issuer := inv.Issuer
	if issuer == nil {
		issuer = &entity.Issuer{}
	}
	recipient := inv.Recipient
	if recipient == nil {
		recipient = &entity.Recipient{}
	}
	author := issuer.Name
	if company != nil {
		author = company.Name
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Documento Tributario Electrónico "+inv.AuthorizationNumber, true).
		WithAuthor(author, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv, issuer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(issuerRow(issuer))
	m.AddRows(recipientRow(recipient))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableItemRows(inv.Items)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(satFooterRows(inv, issuer, recipient)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

func headerRow(inv *entity.Invoice, issuer *entity.Issuer) core.Row {
	serieNumero := fmt.Sprintf("Serie %s  No. %s", nonEmpty(inv.Series, "—"), nonEmpty(inv.Number, "—"))
	fecha := inv.EmissionDate.In(guatemala).Format("02/01/2006 15:04:05")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(nonEmpty(issuer.Name, "—"), props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New("NIT: "+nonEmpty(issuer.NIT, "—"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(documentTypeName(inv.DocumentType), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(serieNumero, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 7,
			}),
			text.New("Emisión: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func issuerRow(issuer *entity.Issuer) core.Row {
	address := joinNonEmpty(", ", issuer.Address, issuer.Municipality, issuer.Department, issuer.Country)
	return row.New(12).Add(
		col.New(12).Add(
			text.New("EMISOR: "+nonEmpty(issuer.CommercialName, issuer.Name), props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Establecimiento: %s   |   Dirección: %s",
				nonEmpty(issuer.EstablishmentCode, "—"),
				nonEmpty(address, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func recipientRow(recipient *entity.Recipient) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("RECEPTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(recipient.Name, "—"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("NIT: %s   |   Correo: %s",
				nonEmpty(recipient.NIT, "CF"),
				nonEmpty(recipient.Email, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("B/S", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("P. Unit.", 2, align.Right),
		h("Desc.", 1, align.Right),
		h("Total", 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func tableItemRows(items []*entity.Item) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(it.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(1).Add(text.New(it.GoodOrService, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(it.Description, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatMoney(it.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(formatMoney(it.Discount), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatMoney(it.Total), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(inv *entity.Invoice) core.Row {
	label := func(s string, grand bool) core.Component {
		p := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2}
		if grand {
			p.Size, p.Color, p.Top = 10, colorPrimary, 6
		}
		return text.New(s, p)
	}
	value := func(s string, grand bool) core.Component {
		p := props.Text{Size: 9, Align: align.Right, Right: 1}
		if grand {
			p.Style, p.Size, p.Color, p.Top = fontstyle.Bold, 10, colorPrimary, 6
		}
		return text.New(s, p)
	}
	prefix := inv.Currency + " "

	return row.New(16).Add(
		col.New(6),
		col.New(3).Add(label("IVA:", false), label("GRAN TOTAL:", true)),
		col.New(3).Add(value(prefix+formatMoney(inv.VAT), false), value(prefix+formatMoney(inv.Total), true)),
	)
}

func satFooterRows(inv *entity.Invoice, issuer *entity.Issuer, recipient *entity.Recipient) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("CERTIFICACIÓN SAT", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("Número de autorización: "+inv.AuthorizationNumber, props.Text{Size: 8, Top: 1}),
		)),
	}
	if inv.DocumentDigest != "" {
		rows = append(rows, row.New(4).Add(col.New(12).Add(
			text.New("Digest: "+inv.DocumentDigest, props.Text{Size: 6.5, Color: colorGray, Top: 0.5}),
		)))
	}

	rows = append(rows, row.New(3))
	if inv.AuthorizationNumber != "" {
		rows = append(rows, row.New(45).Add(
			col.New(4).Add(code.NewQr(VerificationURL(inv, issuer, recipient), props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("Escanee el código QR para verificar\neste documento en el portal de la SAT.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
			),
		))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New("Representación gráfica de un Documento Tributario Electrónico certificado por la SAT.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2}),
	)))
	return rows
}

// VerificationURL arma el enlace del verificador público de la SAT.
func VerificationURL(inv *entity.Invoice, issuer *entity.Issuer, recipient *entity.Recipient) string {
	q := url.Values{}
	q.Set("tipo", "autorizacion")
	q.Set("numero", inv.AuthorizationNumber)
	q.Set("emisor", issuer.NIT)
	q.Set("receptor", recipient.NIT)
	q.Set("monto", inv.Total.StringFixed(2))
	return verifyURL + "?" + q.Encode()
}

func documentTypeName(code string) string {
	if name, ok := documentTypes[strings.ToUpper(code)]; ok {
		return name + " ELECTRÓNICA"
	}
	return "DOCUMENTO TRIBUTARIO ELECTRÓNICO"
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// formatMoney formatea con dos decimales y comas de miles.
// Ej: 1234567.5 → "1,234,567.50"
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	return sign + string(buf) + "." + frac
}
