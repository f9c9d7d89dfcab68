package sat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/metrics"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// maxDocumentBytes tope del XML descargado.
const maxDocumentBytes = 20 << 20

// Config reintentos y límites de la descarga.
type Config struct {
	MaxAttempts int
	Timeout     time.Duration // por intento
	RetryDelay  time.Duration // retardo base; el intento n espera n*RetryDelay
	TmpDir      string
	HTTPClient  *http.Client
}

// Downloader descarga el XML certificado desde el servicio público de la SAT.
// El endpoint no requiere autenticación.
type Downloader struct {
	cfg      Config
	http     *http.Client
	maxBytes int
	sleep    func(context.Context, time.Duration) error
	log      *logger.Logger
}

// permanentError fallo que no mejora al reintentar (URL inválida, documento demasiado grande).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// NewDownloader crea el descargador con valores por defecto para los campos vacíos.
func NewDownloader(cfg Config, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// El cliente por defecto sigue redirecciones.
		hc = &http.Client{}
	}
	return &Downloader{
		cfg:      cfg,
		http:     hc,
		maxBytes: maxDocumentBytes,
		sleep:    sleepCtx,
		log:      log.Component("sat.downloader"),
	}
}

// Document XML descargado y volcado a un archivo temporal.
// Close elimina el archivo y debe llamarse en toda salida.
type Document struct {
	Path    string
	Charset string // tomado del Content-Type, solo como pista
	Size    int64
}

// Bytes lee el contenido del archivo temporal.
func (d *Document) Bytes() ([]byte, error) {
	return os.ReadFile(d.Path)
}

// Close elimina el archivo temporal. Es seguro llamarlo más de una vez.
func (d *Document) Close() error {
	if d == nil || d.Path == "" {
		return nil
	}
	err := os.Remove(d.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Download obtiene el cuerpo del XML con reintentos lineales (1x, 2x, 3x... el retardo base).
// Reintenta ante errores de transporte, timeouts y status >= 400; una URL inválida o un documento
// que excede el tope se devuelven sin reintentar. Agotados los intentos devuelve un error
// que envuelve domain.ErrDownload. La cancelación del contexto devuelve el error del contexto.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	body, _, err := d.fetch(ctx, url)
	return body, err
}

// Spool descarga el XML y lo escribe en un archivo temporal de TmpDir.
func (d *Downloader) Spool(ctx context.Context, url string) (*Document, error) {
	body, charset, err := d.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(d.cfg.TmpDir, "dte-*.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: crear archivo temporal: %v", domain.ErrDownload, err)
	}
	doc := &Document{Path: f.Name(), Charset: charset, Size: int64(len(body))}
	if _, err := f.Write(body); err != nil {
		f.Close()
		doc.Close()
		return nil, fmt.Errorf("%w: escribir archivo temporal: %v", domain.ErrDownload, err)
	}
	if err := f.Close(); err != nil {
		doc.Close()
		return nil, fmt.Errorf("%w: cerrar archivo temporal: %v", domain.ErrDownload, err)
	}
	return doc, nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		body, charset, err := d.attempt(ctx, url)
		if err == nil {
			metrics.DownloadAttemptsTotal.WithLabelValues("ok").Inc()
			return body, charset, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		metrics.DownloadAttemptsTotal.WithLabelValues("error").Inc()
		var perm *permanentError
		if errors.As(err, &perm) {
			d.log.Error().Err(err).Str("url", url).Int("attempt", attempt).Msg("descarga fallida sin reintento")
			return nil, "", fmt.Errorf("%w: %v", domain.ErrDownload, err)
		}
		lastErr = err
		d.log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Int("max_attempts", d.cfg.MaxAttempts).Msg("intento de descarga fallido")

		if attempt == d.cfg.MaxAttempts {
			break
		}
		if err := d.sleep(ctx, time.Duration(attempt)*d.cfg.RetryDelay); err != nil {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("%w: %d intentos: %v", domain.ErrDownload, d.cfg.MaxAttempts, lastErr)
}

func (d *Downloader) attempt(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &permanentError{err: err}
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBytes)+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > d.maxBytes {
		return nil, "", &permanentError{err: fmt.Errorf("documento excede %d bytes", d.maxBytes)}
	}
	return body, charsetOf(resp.Header.Get("Content-Type")), nil
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
