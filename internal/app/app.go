// Package app arma el grafo de dependencias compartido por la API y la CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/fel-ingestor/internal/application/ingestion"
	"github.com/jhoicas/fel-ingestor/internal/application/invoices"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/fel"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/mailbox"
	infranats "github.com/jhoicas/fel-ingestor/internal/infrastructure/nats"
	infrapdf "github.com/jhoicas/fel-ingestor/internal/infrastructure/pdf"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/fel-ingestor/internal/infrastructure/redis"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/sat"
	"github.com/jhoicas/fel-ingestor/pkg/config"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// Container servicios listos para usar. Close libera las conexiones abiertas.
type Container struct {
	Pool     *pgxpool.Pool
	Mailbox  *mailbox.Client
	Pipeline *ingestion.Pipeline
	Invoices *invoices.UseCase

	closers []func()
}

// Close cierra las conexiones en orden inverso a su apertura.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// MailboxClient construye solo la sesión y el cliente del buzón.
func MailboxClient(cfg *config.Config, log *logger.Logger) *mailbox.Client {
	session := mailbox.NewSession(mailbox.SessionConfig{
		ClientID:     cfg.Zoho.ClientID,
		ClientSecret: cfg.Zoho.ClientSecret,
		AccessToken:  cfg.Zoho.AccessToken,
		RefreshToken: cfg.Zoho.RefreshToken,
		TokenURL:     cfg.Zoho.TokenURL,
	}, log)
	return mailbox.NewClient(mailbox.ClientConfig{
		APIDomain:      cfg.Zoho.APIDomain,
		AccountID:      cfg.Zoho.AccountID,
		FolderID:       cfg.Zoho.FolderID,
		Timeout:        time.Duration(cfg.Zoho.TimeoutSeconds) * time.Second,
		RateLimitRPS:   cfg.Zoho.RateLimitRPS,
		RateLimitBurst: cfg.Zoho.RateLimitBurst,
	}, session, log)
}

// Build abre PostgreSQL y, si están configurados, Redis y NATS; después arma el pipeline
// y el caso de uso de consultas.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{}

	pool, err := postgres.NewPool(ctx, cfg.DB, cfg.Pipeline.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	c.Pool = pool
	c.closers = append(c.closers, pool.Close)

	companyRepo := postgres.NewCompanyRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Los opcionales quedan como interfaz nil, nunca como puntero tipado nil.
	var publisher ingestion.EventPublisher
	if cfg.NATS.URL != "" {
		conn, err := infranats.Connect(cfg.NATS.URL, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("conexión a NATS: %w", err)
		}
		c.closers = append(c.closers, func() { _ = conn.Drain() })
		publisher = infranats.NewPublisher(conn, cfg.NATS.Subject, log)
	}

	var lock ingestion.RunLock
	if cfg.Redis.URL != "" {
		client, err := infraredis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = client.Close() })
		lock = infraredis.NewRunLock(client, infraredis.DefaultLockKey, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second)
	}

	c.Mailbox = MailboxClient(cfg, log)
	downloader := sat.NewDownloader(sat.Config{
		MaxAttempts: cfg.FEL.DownloadMaxAttempts,
		Timeout:     time.Duration(cfg.FEL.DownloadTimeoutSeconds) * time.Second,
		RetryDelay:  time.Duration(cfg.FEL.DownloadRetryDelayMillis) * time.Millisecond,
		TmpDir:      cfg.FEL.TmpDir,
	}, log)
	persister := ingestion.NewPersister(companyRepo, invoiceRepo, txRunner, publisher, log)

	c.Pipeline = ingestion.NewPipeline(ingestion.Deps{
		Mailbox:   c.Mailbox,
		Links:     fel.NewLinkExtractor(cfg.FEL.LinkHost),
		Fetcher:   downloader,
		Normalize: fel.Normalize,
		Parser:    fel.NewParser(),
		Saver:     persister,
		Lock:      lock,
	}, ingestion.Config{
		Concurrency: cfg.Pipeline.Concurrency,
		RunTimeout:  time.Duration(cfg.Pipeline.RunTimeoutSeconds) * time.Second,
	}, log)

	c.Invoices = invoices.NewUseCase(companyRepo, invoiceRepo, infrapdf.NewMarotoPDFGenerator())
	return c, nil
}
