package fel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
)

// Namespaces del DTE FEL 0.2.0.
const (
	NsDTE = "http://www.sat.gob.gt/dte/fel/0.2.0"
	NsDS  = "http://www.w3.org/2000/09/xmldsig#"
)

// Algunos certificadores omiten los segundos.
var (
	offsetLayouts = []string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04Z07:00"}
	naiveLayouts  = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}
)

// guatemala hora local de la SAT (UTC-6, sin horario de verano).
var guatemala = time.FixedZone("CST", -6*60*60)

// Parser mapea el XML del DTE al modelo de dominio.
type Parser struct {
	loc *time.Location
}

// NewParser crea el parser. Las fechas sin offset se interpretan en hora de Guatemala.
func NewParser() *Parser {
	return &Parser{loc: guatemala}
}

// Parse convierte el texto XML (ya normalizado) en una factura. Los nodos obligatorios
// ausentes o montos inválidos producen un error que envuelve domain.ErrParse.
func (p *Parser) Parse(xmlText, sourceURL string) (*entity.Invoice, error) {
	xmlText = strings.TrimPrefix(xmlText, "\ufeff")

	doc := etree.NewDocument()
	// El texto ya viene en UTF-8 aunque la declaración diga otra cosa.
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := doc.ReadFromString(xmlText); err != nil {
		return nil, parseErr("xml mal formado: %v", err)
	}

	root := doc.Root()
	if root == nil || !isDTE(root, "GTDocumento") {
		return nil, parseErr("falta el nodo raíz dte:GTDocumento")
	}
	sat, err := required(root, "SAT")
	if err != nil {
		return nil, err
	}
	dte, err := required(sat, "DTE")
	if err != nil {
		return nil, err
	}
	emision, err := required(dte, "DatosEmision")
	if err != nil {
		return nil, err
	}
	general, err := required(emision, "DatosGenerales")
	if err != nil {
		return nil, err
	}
	certificacion, err := required(dte, "Certificacion")
	if err != nil {
		return nil, err
	}
	autorizacion, err := required(certificacion, "NumeroAutorizacion")
	if err != nil {
		return nil, err
	}
	totales, err := required(emision, "Totales")
	if err != nil {
		return nil, err
	}
	granTotal, err := required(totales, "GranTotal")
	if err != nil {
		return nil, err
	}

	rawDate := attr(general, "FechaHoraEmision")
	if rawDate == "" {
		return nil, parseErr("falta DatosGenerales@FechaHoraEmision")
	}
	emissionDate, err := p.parseTimestamp(rawDate)
	if err != nil {
		return nil, err
	}

	total, err := amount(strings.TrimSpace(granTotal.Text()), "GranTotal", false)
	if err != nil {
		return nil, err
	}
	if total.IsNegative() {
		return nil, parseErr("GranTotal negativo: %s", total)
	}
	vat, err := totalVAT(totales)
	if err != nil {
		return nil, err
	}

	items, err := mapItems(emision)
	if err != nil {
		return nil, err
	}

	currency := attr(general, "CodigoMoneda")
	if currency == "" {
		currency = entity.DefaultCurrency
	}

	digest, err := Digest(xmlText)
	if err != nil {
		return nil, err
	}

	return &entity.Invoice{
		AuthorizationNumber: strings.TrimSpace(autorizacion.Text()),
		Series:              attr(autorizacion, "Serie"),
		Number:              attr(autorizacion, "Numero"),
		DocumentType:        attr(general, "Tipo"),
		EmissionDate:        emissionDate,
		Currency:            currency,
		Total:               total,
		VAT:                 vat,
		SourceURL:           sourceURL,
		DocumentDigest:      digest,
		Issuer:              mapIssuer(child(emision, "Emisor")),
		Recipient:           mapRecipient(child(emision, "Receptor")),
		Items:               items,
	}, nil
}

func (p *Parser) parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, parseErr("FechaHoraEmision inválida %q", raw)
}

func mapIssuer(el *etree.Element) *entity.Issuer {
	iss := &entity.Issuer{}
	if el == nil {
		return iss
	}
	iss.NIT = attr(el, "NITEmisor")
	iss.Name = attr(el, "NombreEmisor")
	iss.CommercialName = attr(el, "NombreComercial")
	iss.EstablishmentCode = attr(el, "CodigoEstablecimiento")
	if dir := child(el, "DireccionEmisor"); dir != nil {
		iss.Address = text(dir, "Direccion")
		iss.Municipality = text(dir, "Municipio")
		iss.Department = text(dir, "Departamento")
		iss.PostalCode = text(dir, "CodigoPostal")
		iss.Country = text(dir, "Pais")
	}
	return iss
}

func mapRecipient(el *etree.Element) *entity.Recipient {
	rec := &entity.Recipient{}
	if el == nil {
		return rec
	}
	rec.NIT = attr(el, "IDReceptor")
	rec.Name = attr(el, "NombreReceptor")
	rec.Email = attr(el, "CorreoReceptor")
	return rec
}

// mapItems respeta el orden del documento. Un único Item produce una lista de un elemento.
func mapItems(emision *etree.Element) ([]*entity.Item, error) {
	container := child(emision, "Items")
	if container == nil {
		return []*entity.Item{}, nil
	}
	var items []*entity.Item
	for _, el := range children(container, "Item") {
		it, err := mapItem(el)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if items == nil {
		items = []*entity.Item{}
	}
	return items, nil
}

func mapItem(el *etree.Element) (*entity.Item, error) {
	it := &entity.Item{
		GoodOrService: attr(el, "BienOServicio"),
		UnitOfMeasure: text(el, "UnidadMedida"),
		Description:   text(el, "Descripcion"),
	}
	if raw := attr(el, "NumeroLinea"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, parseErr("NumeroLinea inválido %q", raw)
		}
		it.LineNumber = n
	}

	fields := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"Cantidad", &it.Quantity},
		{"PrecioUnitario", &it.UnitPrice},
		{"Precio", &it.Price},
		{"Descuento", &it.Discount},
		{"Total", &it.Total},
	}
	for _, f := range fields {
		v, err := amount(text(el, f.name), f.name, true)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	// Solo se mapea el primer impuesto de la línea.
	if imp := child(child(el, "Impuestos"), "Impuesto"); imp != nil {
		gravable, err := amount(text(imp, "MontoGravable"), "MontoGravable", true)
		if err != nil {
			return nil, err
		}
		monto, err := amount(text(imp, "MontoImpuesto"), "MontoImpuesto", true)
		if err != nil {
			return nil, err
		}
		it.Taxes = entity.ItemTax{
			Name:          text(imp, "NombreCorto"),
			Code:          text(imp, "CodigoUnidadGravable"),
			TaxableAmount: gravable,
			TaxAmount:     monto,
		}
	}
	return it, nil
}

// totalVAT toma el TotalImpuesto con NombreCorto=IVA; si no hay, el primero; si no hay ninguno, cero.
func totalVAT(totales *etree.Element) (decimal.Decimal, error) {
	entries := children(child(totales, "TotalImpuestos"), "TotalImpuesto")
	if len(entries) == 0 {
		return decimal.Zero, nil
	}
	selected := entries[0]
	for _, e := range entries {
		if strings.EqualFold(attr(e, "NombreCorto"), "IVA") {
			selected = e
			break
		}
	}
	vat, err := amount(attr(selected, "TotalMontoImpuesto"), "TotalMontoImpuesto", true)
	if err != nil {
		return decimal.Zero, err
	}
	if vat.IsNegative() {
		return decimal.Zero, parseErr("TotalMontoImpuesto negativo: %s", vat)
	}
	return vat, nil
}

// amount convierte un monto. Vacío vale cero solo si allowEmpty.
func amount(raw, field string, allowEmpty bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if allowEmpty {
			return decimal.Zero, nil
		}
		return decimal.Zero, parseErr("falta el monto %s", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, parseErr("monto %s no numérico %q", field, raw)
	}
	return d, nil
}

func isDTE(el *etree.Element, local string) bool {
	return el.Tag == local && el.NamespaceURI() == NsDTE
}

func child(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if isDTE(c, local) {
			return c
		}
	}
	return nil
}

func children(el *etree.Element, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if isDTE(c, local) {
			out = append(out, c)
		}
	}
	return out
}

func required(el *etree.Element, local string) (*etree.Element, error) {
	c := child(el, local)
	if c == nil {
		return nil, parseErr("falta el nodo dte:%s", local)
	}
	return c, nil
}

func text(el *etree.Element, local string) string {
	c := child(el, local)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

func attr(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.SelectAttrValue(key, ""))
}

func parseErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrParse, fmt.Sprintf(format, args...))
}
