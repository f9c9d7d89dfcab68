package fel

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DefaultLinkHost host del servicio de descarga de XML certificados.
const DefaultLinkHost = "felav02.c.sat.gob.gt"

// downloadSegment en minúsculas; el path se compara sin distinguir mayúsculas.
const downloadSegment = "/descargaxml/"

// LinkExtractor localiza el enlace de descarga del XML dentro del HTML de la notificación.
type LinkExtractor struct {
	host string
}

// NewLinkExtractor crea un extractor para el host dado (vacío = DefaultLinkHost).
func NewLinkExtractor(host string) *LinkExtractor {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		host = DefaultLinkHost
	}
	return &LinkExtractor{host: host}
}

// Extract devuelve el primer href (en orden de documento) que apunta a la descarga del XML.
// El HTML no es confiable: nunca falla, la ausencia se informa con false.
func (e *LinkExtractor) Extract(content string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || string(name) != "a" {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if link, ok := e.match(string(val)); ok {
						return link, true
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

func (e *LinkExtractor) match(href string) (string, bool) {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, "https") || strings.ToLower(u.Hostname()) != e.host {
		return "", false
	}
	i := strings.Index(strings.ToLower(u.Path), downloadSegment)
	if i < 0 || len(u.Path) == i+len(downloadSegment) {
		return "", false
	}
	return href, true
}
