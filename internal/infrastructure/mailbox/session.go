package mailbox

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/metrics"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// defaultTokenLifetime se usa cuando el proveedor no informa expires_in.
const defaultTokenLifetime = 3600 * time.Second

// Credential estado OAuth2 del buzón. Solo vive en memoria del proceso.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	Expiry       time.Time
}

// SessionConfig datos necesarios para refrescar el token.
type SessionConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	TokenURL     string
	HTTPClient   *http.Client
}

// Session mantiene una credencial válida contra el proveedor de correo.
// Es segura para uso concurrente: varios workers provocan a lo sumo un refresh.
type Session struct {
	mu     sync.Mutex
	cred   Credential
	oauth  oauth2.Config
	client *http.Client
	now    func() time.Time
	log    *logger.Logger
}

// NewSession crea la sesión. Si no hay access token inicial, el primer EnsureValid refresca.
// Con un access token inicial sin expiración conocida se fuerza el refresh igualmente.
func NewSession(cfg SessionConfig, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 50 * time.Second}
	}
	return &Session{
		cred: Credential{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		},
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		now:    time.Now,
		log:    log.Component("mailbox.session"),
	}
}

// EnsureValid devuelve una credencial vigente, refrescando el token si está vacío o vencido.
// Ante un fallo devuelve un error que envuelve domain.ErrAuth y no modifica la credencial.
func (s *Session) EnsureValid(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred.AccessToken != "" && s.now().Before(s.cred.Expiry) {
		return s.cred, nil
	}
	if err := s.refresh(ctx); err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return Credential{}, err
	}
	metrics.TokenRefreshTotal.WithLabelValues("ok").Inc()
	return s.cred, nil
}

// Invalidate descarta el access token si sigue siendo el rechazado por el proveedor, de modo
// que el próximo EnsureValid refresque. Un token ya renovado por otro worker se conserva.
func (s *Session) Invalidate(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accessToken != "" && s.cred.AccessToken == accessToken {
		s.cred.AccessToken = ""
		s.cred.Expiry = time.Time{}
		s.log.Warn().Msg("access token rechazado por el proveedor, se descarta")
	}
}

// refresh ejecuta un único grant refresh_token. Debe llamarse con mu tomado.
func (s *Session) refresh(ctx context.Context) error {
	if s.cred.RefreshToken == "" {
		return fmt.Errorf("%w: refresh token no configurado", domain.ErrAuth)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: s.cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		s.log.Error().Err(err).Msg("no se pudo refrescar el access token")
		return fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(defaultTokenLifetime)
	}
	s.cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.cred.RefreshToken = tok.RefreshToken
	}
	s.cred.Expiry = expiry
	s.log.Info().Time("expiry", expiry).Msg("access token refrescado")
	return nil
}
