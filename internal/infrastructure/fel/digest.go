package fel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ucarion/c14n"

	"github.com/jhoicas/fel-ingestor/internal/domain"
)

// Digest calcula el SHA-256 (hex) del XML canónico. Dos descargas del mismo DTE
// con distinto formato producen el mismo digest.
func Digest(xmlText string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(stripDeclaration(xmlText)))
	dec.Entity = map[string]string{}
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	canonical, err := c14n.Canonicalize(dec)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalizar xml: %v", domain.ErrParse, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// stripDeclaration quita la declaración <?xml ...?>, que la forma canónica no incluye.
func stripDeclaration(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<?xml") {
		return s
	}
	end := strings.Index(s, "?>")
	if end < 0 {
		return s
	}
	return strings.TrimSpace(s[end+2:])
}
