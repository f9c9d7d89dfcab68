package fel

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// decoder intenta convertir bytes a texto UTF-8; ok=false si la secuencia no es válida para esa codificación.
type decoder struct {
	name   string
	decode func([]byte) (string, bool)
}

// decoderChain orden fijo de intento. Latin-1 nunca falla, por lo que las entradas
// siguientes solo se alcanzan si se reordena la cadena.
var decoderChain = []decoder{
	{name: "utf-8", decode: decodeStrictUTF8},
	{name: "iso-8859-1", decode: decodeWith(charmap.ISO8859_1)},
	{name: "utf-8-bom", decode: decodeWith(unicode.UTF8BOM)},
	{name: "utf-16", decode: decodeUTF16},
}

// Normalize decodifica el XML descargado y elimina los caracteres de control
// inválidos en XML (< 0x20 salvo TAB, LF, CR). No falla nunca y es idempotente.
func Normalize(raw []byte) string {
	text, _ := decode(raw)
	return stripControl(text)
}

// decode aplica la cadena de decodificadores y devuelve el texto y el nombre del que tuvo éxito.
func decode(raw []byte) (string, string) {
	for _, d := range decoderChain {
		if s, ok := d.decode(raw); ok {
			return s, d.name
		}
	}
	return strings.ToValidUTF8(string(raw), "�"), "utf-8-replace"
}

func decodeStrictUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func decodeWith(enc encoding.Encoding) func([]byte) (string, bool) {
	return func(b []byte) (string, bool) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
}

func decodeUTF16(b []byte) (string, bool) {
	if len(b)%2 != 0 {
		return "", false
	}
	return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM))(b)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
