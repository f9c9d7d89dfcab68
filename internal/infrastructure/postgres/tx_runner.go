package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/fel-ingestor/internal/application/ingestion"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
)

// Asegura que TxRunner implementa ingestion.TxRunner.
var _ ingestion.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunIngestion inicia una transacción, ejecuta fn con los repos de la factura atados a la tx
// y hace Commit. Cualquier error de fn provoca Rollback: no queda ninguna fila parcial.
func (r *TxRunner) RunIngestion(ctx context.Context, fn func(
	issuerRepo repository.IssuerRepository,
	recipientRepo repository.RecipientRepository,
	invoiceRepo repository.InvoiceRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewIssuerRepository(tx), NewRecipientRepository(tx), NewInvoiceRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
