package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// maxResponseBytes tope de lectura para respuestas del API de correo.
const maxResponseBytes = 10 << 20

// Message notificación pendiente en el buzón. El contenido se obtiene bajo demanda.
type Message struct {
	ID      string `json:"messageId"`
	Subject string `json:"subject,omitempty"`
	From    string `json:"fromAddress,omitempty"`
}

// Folder carpeta del buzón.
type Folder struct {
	ID   string `json:"folderId"`
	Name string `json:"folderName"`
	Path string `json:"path,omitempty"`
}

// ClientConfig ubicación del buzón y límites de las llamadas.
type ClientConfig struct {
	APIDomain      string // https://mail.zoho.com/api/accounts
	AccountID      string
	FolderID       string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPClient     *http.Client
}

// Client cliente REST del buzón de notificaciones (Zoho Mail).
// Consulta la Session antes de cada llamada.
type Client struct {
	cfg     ClientConfig
	session *Session
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient crea el cliente del buzón.
func NewClient(cfg ClientConfig, session *Session, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 50 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 2
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		session: session,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		log:     log.Component("mailbox.client"),
	}
}

// ListUnread devuelve los mensajes no leídos de la carpeta configurada. Una lista vacía es válida.
func (c *Client) ListUnread(ctx context.Context) ([]Message, error) {
	q := url.Values{}
	q.Set("folderId", c.cfg.FolderID)
	q.Set("status", "unread")
	endpoint := fmt.Sprintf("%s/%s/messages/view?%s", c.base(), c.cfg.AccountID, q.Encode())

	var resp struct {
		Data []struct {
			MessageID flexibleID `json:"messageId"`
			Subject   string     `json:"subject"`
			From      string     `json:"fromAddress"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("listar mensajes no leídos: %w", err)
	}

	out := make([]Message, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.MessageID == "" {
			continue
		}
		out = append(out, Message{ID: string(m.MessageID), Subject: m.Subject, From: m.From})
	}
	c.log.Info().Int("count", len(out)).Msg("mensajes no leídos obtenidos")
	return out, nil
}

// FetchContent devuelve el HTML del cuerpo del mensaje.
func (c *Client) FetchContent(ctx context.Context, messageID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/folders/%s/messages/%s/content",
		c.base(), c.cfg.AccountID, url.PathEscape(c.cfg.FolderID), url.PathEscape(messageID))

	var resp struct {
		Data struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", fmt.Errorf("contenido del mensaje %s: %w", messageID, err)
	}
	return resp.Data.Content, nil
}

// MarkRead marca los mensajes como leídos en una sola llamada.
func (c *Client) MarkRead(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	payload := struct {
		Mode      string   `json:"mode"`
		MessageID []string `json:"messageId"`
	}{Mode: "markAsRead", MessageID: messageIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marcar como leídos: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/updatemessage", c.base(), c.cfg.AccountID)
	if err := c.do(ctx, http.MethodPut, endpoint, body, nil); err != nil {
		return fmt.Errorf("marcar como leídos: %w", err)
	}
	c.log.Info().Int("count", len(messageIDs)).Msg("mensajes marcados como leídos")
	return nil
}

// ListFolders lista las carpetas de la cuenta. Sirve como prueba de conectividad.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	endpoint := fmt.Sprintf("%s/%s/folders", c.base(), c.cfg.AccountID)
	var resp struct {
		Data []struct {
			FolderID   flexibleID `json:"folderId"`
			FolderName string     `json:"folderName"`
			Path       string     `json:"path"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("listar carpetas: %w", err)
	}
	out := make([]Folder, 0, len(resp.Data))
	for _, f := range resp.Data {
		out = append(out, Folder{ID: string(f.FolderID), Name: f.FolderName, Path: f.Path})
	}
	return out, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.cfg.APIDomain, "/")
}

// do ejecuta la llamada autenticada. Los errores de sesión se devuelven tal cual (domain.ErrAuth).
// Un 401 invalida el token, refresca y reintenta una sola vez; si el proveedor vuelve a rechazarlo
// se devuelve domain.ErrAuth. El resto envuelve domain.ErrFetch.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	for attempt := 1; ; attempt++ {
		cred, err := c.session.EnsureValid(ctx)
		if err != nil {
			return err
		}
		status, data, err := c.send(ctx, method, endpoint, body, cred.AccessToken)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.session.Invalidate(cred.AccessToken)
			if attempt == 1 {
				continue
			}
			return fmt.Errorf("%w: el API de correo rechazó el token renovado", domain.ErrAuth)
		}
		if status < 200 || status > 299 {
			c.log.Error().Int("status", status).Str("body", truncate(string(data), 512)).Msg("respuesta no exitosa del API de correo")
			return fmt.Errorf("%w: status %d", domain.ErrFetch, status)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: json inválido: %v", domain.ErrFetch, err)
		}
		return nil
	}
}

// send realiza una petición y devuelve el status y el cuerpo leído.
func (c *Client) send(ctx context.Context, method, endpoint string, body []byte, accessToken string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, endpoint, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrFetch, err)
	}
	return resp.StatusCode, data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// flexibleID acepta identificadores como string o número JSON.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexibleID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}
