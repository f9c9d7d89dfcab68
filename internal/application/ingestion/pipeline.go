package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/fel-ingestor/internal/domain"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/mailbox"
	"github.com/jhoicas/fel-ingestor/internal/infrastructure/metrics"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

// markReadTimeout tiempo máximo de la conciliación del buzón, independiente del plazo de la corrida.
const markReadTimeout = 30 * time.Second

// Config parámetros de ejecución del pipeline.
type Config struct {
	Concurrency int           // mensajes en paralelo; 1 = secuencial
	RunTimeout  time.Duration // plazo de toda la corrida; 0 = sin plazo
}

// Deps colaboradores del pipeline. Lock es opcional.
type Deps struct {
	Mailbox   Mailbox
	Links     LinkExtractor
	Fetcher   Fetcher
	Normalize Normalizer
	Parser    Parser
	Saver     InvoiceSaver
	Lock      RunLock
}

// Pipeline orquesta la ingesta: lista los no leídos, procesa cada mensaje de forma
// independiente y marca como leídos solo los que quedaron persistidos.
type Pipeline struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
}

// NewPipeline construye el orquestador.
func NewPipeline(deps Deps, cfg Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{deps: deps, cfg: cfg, log: log.Component("ingestion.pipeline")}
}

// Run ejecuta una corrida completa. Solo domain.ErrAuth aborta la corrida; en ese caso
// se devuelve el resumen parcial junto con el error. Un fallo al listar devuelve error sin resumen.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if p.deps.Lock != nil {
		unlock, err := p.deps.Lock.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn().Err(err).Msg("no se pudo liberar el candado de ejecución")
			}
		}()
	}

	start := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	runCtx := ctx
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	msgs, err := p.deps.Mailbox.ListUnread(runCtx)
	if err != nil {
		return nil, fmt.Errorf("listar mensajes: %w", err)
	}
	p.log.Info().Int("messages", len(msgs)).Int("concurrency", p.cfg.Concurrency).Msg("corrida iniciada")

	outcomes := make([]outcome, len(msgs))
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.cfg.Concurrency)
	for i, msg := range msgs {
		if gctx.Err() != nil {
			outcomes[i] = skipped(gctx.Err())
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = skipped(gctx.Err())
				return nil
			}
			o := p.process(gctx, msg)
			outcomes[i] = o
			if errors.Is(o.err, domain.ErrAuth) {
				return o.err
			}
			return nil
		})
	}
	runErr := g.Wait()

	sum := p.summarize(msgs, outcomes)
	p.reconcile(ctx, msgs, outcomes, sum)

	p.log.Info().
		Int("attempted", sum.Attempted).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Int("marked_read", sum.MarkedRead).
		Dur("elapsed", time.Since(start)).
		Msg("corrida finalizada")

	if runErr != nil {
		return sum, fmt.Errorf("corrida abortada: %w", runErr)
	}
	return sum, nil
}

// process ejecuta los pasos de un mensaje. El documento temporal se elimina en toda salida.
func (p *Pipeline) process(ctx context.Context, msg mailbox.Message) outcome {
	fail := func(step Step, reason string, err error) outcome {
		if ctx.Err() != nil && !errors.Is(err, domain.ErrAuth) {
			return skipped(err)
		}
		p.log.Warn().Err(err).Str("message_id", msg.ID).Str("step", string(step)).Msg(reason)
		return failed(step, reason, err)
	}

	content, err := p.deps.Mailbox.FetchContent(ctx, msg.ID)
	if err != nil {
		return fail(StepFetch, ReasonFetch, err)
	}

	link, ok := p.deps.Links.Extract(content)
	if !ok {
		return fail(StepExtract, ReasonNoLink, domain.ErrLinkNotFound)
	}

	doc, err := p.deps.Fetcher.Spool(ctx, link)
	if err != nil {
		return fail(StepDownload, ReasonDownload, fmt.Errorf("%s: %w", link, err))
	}
	defer func() {
		if err := doc.Close(); err != nil {
			p.log.Warn().Err(err).Str("path", doc.Path).Msg("no se pudo eliminar el archivo temporal")
		}
	}()

	raw, err := doc.Bytes()
	if err != nil {
		return fail(StepDownload, ReasonDownload, fmt.Errorf("%w: leer archivo temporal: %v", domain.ErrDownload, err))
	}

	inv, err := p.deps.Parser.Parse(p.deps.Normalize(raw), link)
	if err != nil {
		return fail(StepParse, ReasonParse, fmt.Errorf("%s: %w", link, err))
	}

	if _, err := p.deps.Saver.ResolveAndSave(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrResolution) {
			return fail(StepResolve, ReasonTenant, err)
		}
		return fail(StepPersist, ReasonPersist, err)
	}

	p.log.Info().Str("message_id", msg.ID).Str("url", link).Msg("mensaje procesado")
	return succeeded()
}

func (p *Pipeline) summarize(msgs []mailbox.Message, outcomes []outcome) *Summary {
	sum := &Summary{Listed: len(msgs), Failures: []MessageFailure{}}
	for i, o := range outcomes {
		switch o.status {
		case statusSucceeded:
			sum.Succeeded++
			metrics.MessagesTotal.WithLabelValues("succeeded").Inc()
		case statusFailed:
			sum.Failed++
			sum.Failures = append(sum.Failures, MessageFailure{MessageID: msgs[i].ID, Step: o.step, Reason: o.reason})
			metrics.MessagesTotal.WithLabelValues("failed").Inc()
			metrics.FailuresTotal.WithLabelValues(string(o.step)).Inc()
		default:
			sum.Skipped++
			metrics.MessagesTotal.WithLabelValues("skipped").Inc()
		}
	}
	sum.Attempted = sum.Succeeded + sum.Failed
	return sum
}

// reconcile marca como leídos los mensajes persistidos en una sola llamada. Usa un contexto
// desacoplado de la corrida: las facturas ya confirmadas no se revierten si falla.
func (p *Pipeline) reconcile(ctx context.Context, msgs []mailbox.Message, outcomes []outcome, sum *Summary) {
	var ids []string
	for i, o := range outcomes {
		if o.status == statusSucceeded {
			ids = append(ids, msgs[i].ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markReadTimeout)
	defer cancel()
	if err := p.deps.Mailbox.MarkRead(ctx, ids); err != nil {
		p.log.Error().Err(err).Strs("message_ids", ids).Msg("no se pudieron marcar como leídos")
		return
	}
	sum.MarkedRead = len(ids)
	metrics.MarkedReadTotal.Add(float64(len(ids)))
}
