package postgres

import (
	"context"
	"fmt"
	"net"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/fel-ingestor/pkg/config"
)

// Conexiones que se suman a las de los workers: consultas de la API por tenant y migraciones.
const spareConns = 3

// NewPool crea el pool PostgreSQL. workers es la concurrencia del pipeline: cada worker
// sostiene a lo sumo una transacción de guardado a la vez.
func NewPool(ctx context.Context, cfg config.DBConfig, workers int) (*pgxpool.Pool, error) {
	poolConfig, err := newPoolConfig(cfg, workers)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

func newPoolConfig(cfg config.DBConfig, workers int) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns(cfg.MaxConns, workers))
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	if cfg.ForceIPv4 {
		dialer := &net.Dialer{Timeout: 10 * time.Second}
		poolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		}
	}

	// Registrar codec para NUMERIC/DECIMAL -> shopspring/decimal (todas las conexiones del pool).
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return poolConfig, nil
}

// maxConns usa DB_MAX_CONNS si está definido; si no, una conexión por worker más las de reserva.
func maxConns(configured, workers int) int {
	if configured > 0 {
		return configured
	}
	if workers < 1 {
		workers = 1
	}
	return workers + spareConns
}
