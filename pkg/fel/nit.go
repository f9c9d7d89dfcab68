// Package fel contiene utilidades del régimen FEL de la SAT (Guatemala)
// que no dependen de la infraestructura.
package fel

import (
	"fmt"
	"strings"
	"unicode"
)

// ConsumidorFinal es el NIT genérico que la SAT acepta para receptores sin NIT.
const ConsumidorFinal = "CF"

// NITSeparators caracteres que se descartan al comparar NITs. La búsqueda SQL del tenant
// recibe este mismo conjunto, así ambos lados normalizan igual.
const NITSeparators = "- \t\n\v\f\r\u00a0"

// NormalizeNIT quita guiones y espacios (NITSeparators) y pasa a mayúsculas.
// "1234567-K" -> "1234567K"; " cf " -> "CF".
func NormalizeNIT(nit string) string {
	var b strings.Builder
	b.Grow(len(nit))
	for _, r := range nit {
		if strings.ContainsRune(NITSeparators, r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ComputeCheckDigit calcula el dígito verificador (módulo 11) para el cuerpo numérico del NIT.
// Los pesos crecen desde 2 de derecha a izquierda; un resultado de 10 se representa con 'K'.
func ComputeCheckDigit(body string) (byte, error) {
	if body == "" {
		return 0, fmt.Errorf("fel: NIT vacío")
	}
	sum := 0
	n := len(body)
	for i := 0; i < n; i++ {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("fel: NIT contiene caracteres no numéricos: %q", body)
		}
		sum += int(c-'0') * (n - i + 1)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return 'K', nil
	}
	return byte('0' + check), nil
}

// ValidateNIT verifica el dígito verificador de un NIT (con o sin guion).
// "CF" se considera válido.
func ValidateNIT(nit string) error {
	norm := NormalizeNIT(nit)
	if norm == ConsumidorFinal {
		return nil
	}
	if len(norm) < 2 {
		return fmt.Errorf("fel: NIT demasiado corto: %q", nit)
	}
	body, got := norm[:len(norm)-1], norm[len(norm)-1]
	expected, err := ComputeCheckDigit(body)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("fel: dígito verificador del NIT inválido: esperado %c, recibido %c", expected, got)
	}
	return nil
}
