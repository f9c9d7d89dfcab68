package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/domain/entity"
	"github.com/jhoicas/fel-ingestor/internal/domain/repository"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/mailbox"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/sat"
)

// fakeMailbox buzón en memoria.
type fakeMailbox struct {
	mu        sync.Mutex
	messages  []mailbox.Message
	contents  map[string]string
	fetchErrs map[string]error
	listErr   error
	markErr   error
	onFetch   func(id string)
	marked    []string
	markCalls int
}

func (m *fakeMailbox) ListUnread(ctx context.Context) ([]mailbox.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.messages, nil
}

func (m *fakeMailbox) FetchContent(ctx context.Context, id string) (string, error) {
	if m.onFetch != nil {
		m.onFetch(id)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.fetchErrs[id]; err != nil {
		return "", err
	}
	return m.contents[id], nil
}

func (m *fakeMailbox) MarkRead(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, ids...)
	return nil
}

// fakeFetcher escribe el cuerpo configurado para cada URL en un archivo temporal.
type fakeFetcher struct {
	mu     sync.Mutex
	dir    string
	bodies map[string][]byte
	errs   map[string]error
	paths  []string
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{dir: t.TempDir(), bodies: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Spool(ctx context.Context, url string) (*sat.Document, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, domain.ErrDownload
	}
	file, err := os.CreateTemp(f.dir, "dte-*.xml")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if _, err := file.Write(body); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.paths = append(f.paths, file.Name())
	f.mu.Unlock()
	return &sat.Document{Path: file.Name(), Size: int64(len(body))}, nil
}

// leftovers devuelve los archivos temporales que siguen en disco.
func (f *fakeFetcher) leftovers(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.dir, "*"))
	require.NoError(t, err)
	return matches
}

// fakeCompanies empresas por NIT normalizado.
type fakeCompanies struct {
	mu     sync.Mutex
	byNIT  map[string]*entity.Company
	err    error
	lookup []string
}

func (c *fakeCompanies) GetByNIT(ctx context.Context, nit string) (*entity.Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookup = append(c.lookup, nit)
	if c.err != nil {
		return nil, c.err
	}
	return c.byNIT[nit], nil
}

func (c *fakeCompanies) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	for _, co := range c.byNIT {
		if co.ID == id {
			return co, nil
		}
	}
	return nil, nil
}

func (c *fakeCompanies) ListWithAPIKey(ctx context.Context) ([]*entity.Company, error) {
	var out []*entity.Company
	for _, co := range c.byNIT {
		out = append(out, co)
	}
	return out, nil
}

// memStore simula la transacción: las filas solo se confirman si fn no falla.
type memStore struct {
	mu         sync.Mutex
	issuers    []*entity.Issuer
	recipients []*entity.Recipient
	invoices   []*entity.Invoice
	items      []*entity.Item
	failItem   bool
	digests    map[string]bool
}

type stagedIssuers struct{ rows []*entity.Issuer }

func (s *stagedIssuers) Create(ctx context.Context, iss *entity.Issuer) error {
	iss.ID = "iss-" + iss.NIT
	s.rows = append(s.rows, iss)
	return nil
}

type stagedRecipients struct{ rows []*entity.Recipient }

func (s *stagedRecipients) Create(ctx context.Context, rec *entity.Recipient) error {
	rec.ID = "rec-" + rec.NIT
	s.rows = append(s.rows, rec)
	return nil
}

type stagedInvoices struct {
	store    *memStore
	invoices []*entity.Invoice
	items    []*entity.Item
}

func (s *stagedInvoices) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.Issuer.ID == "" || inv.Recipient.ID == "" {
		return errors.New("fk: emisor o receptor sin id")
	}
	inv.ID = "inv-" + inv.AuthorizationNumber
	s.invoices = append(s.invoices, inv)
	return nil
}

func (s *stagedInvoices) CreateItem(ctx context.Context, it *entity.Item) error {
	if s.store.failItem {
		return errors.New("insert item: conexión perdida")
	}
	if it.InvoiceID == "" {
		return errors.New("fk: item sin factura")
	}
	s.items = append(s.items, it)
	return nil
}

func (s *stagedInvoices) ExistsByDigest(ctx context.Context, digest string) (bool, error) {
	return s.store.ExistsByDigest(ctx, digest)
}

func (s *stagedInvoices) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return nil, nil
}

func (s *stagedInvoices) ListByCompany(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	return nil, nil
}

func (s *stagedInvoices) CountByCompany(ctx context.Context, companyID string) (int, error) {
	return 0, nil
}

func (m *memStore) RunIngestion(ctx context.Context, fn func(
	issuerRepo repository.IssuerRepository,
	recipientRepo repository.RecipientRepository,
	invoiceRepo repository.InvoiceRepository,
) error) error {
	iss, rec, inv := &stagedIssuers{}, &stagedRecipients{}, &stagedInvoices{store: m}
	if err := fn(iss, rec, inv); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issuers = append(m.issuers, iss.rows...)
	m.recipients = append(m.recipients, rec.rows...)
	m.invoices = append(m.invoices, inv.invoices...)
	m.items = append(m.items, inv.items...)
	return nil
}

func (m *memStore) ExistsByDigest(ctx context.Context, digest string) (bool, error) {
	return m.digests[digest], nil
}

func (m *memStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.issuers) + len(m.recipients) + len(m.invoices) + len(m.items)
}

// invoiceReader expone ExistsByDigest del store como InvoiceRepository de lectura.
type invoiceReader struct {
	stagedInvoices
}

func newInvoiceReader(m *memStore) *invoiceReader {
	return &invoiceReader{stagedInvoices{store: m}}
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*entity.Invoice
	err       error
}

func (p *fakePublisher) PublishInvoiceIngested(ctx context.Context, inv *entity.Invoice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, inv)
	return p.err
}

type fakeLock struct {
	err      error
	released bool
}

func (l *fakeLock) TryLock(ctx context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.released = true
		return nil
	}, nil
}
