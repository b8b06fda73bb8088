package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dennwc/assetcache/content"
	"github.com/dennwc/assetcache/logging"
	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

const (
	DefaultWorkers     = 8
	DefaultPageWorkers = 4
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Workers is the number of concurrent asset downloads.
	Workers int
	// PageWorkers is the number of pages whose block trees are fetched concurrently.
	PageWorkers int
	// Client is used for asset downloads.
	Client *http.Client
	// Timeout limits a single asset download.
	Timeout time.Duration
	Log     *slog.Logger
	Metrics *Metrics
	// Now overrides the clock used to check reference expiry.
	Now func() time.Time
}

// Summary describes the outcome of a pipeline run.
type Summary struct {
	Pages       int
	FailedPages int
	// Candidates is the number of asset references that were processed.
	Candidates   int
	Downloaded   int
	Cached       int
	Failed       int
	Unresolvable int
	// Malformed is the number of assets skipped because of missing or invalid fields.
	Malformed int
	Bytes     uint64
	Duration  time.Duration
}

// Succeeded returns the number of candidates present in the corpus after the run.
func (s Summary) Succeeded() int {
	return s.Downloaded + s.Cached
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d assets (%d downloaded, %d cached, %d failed, %d unresolvable, %d malformed), %d/%d pages, %s in %v",
		s.Succeeded(), s.Candidates, s.Downloaded, s.Cached, s.Failed, s.Unresolvable, s.Malformed,
		s.Pages-s.FailedPages, s.Pages, humanize.IBytes(s.Bytes), s.Duration.Round(time.Millisecond))
}

// Pipeline walks all pages of the content source and materializes every referenced asset.
type Pipeline struct {
	src      content.Source
	fetcher  *Fetcher
	resolver *Resolver
	log      *slog.Logger
	metrics  *Metrics

	workers     int
	pageWorkers int
}

// NewPipeline creates a pipeline that reads content from src and writes assets to st.
func NewPipeline(src content.Source, st storage.Storage, opts PipelineOptions) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PageWorkers <= 0 {
		opts.PageWorkers = DefaultPageWorkers
	}
	return &Pipeline{
		src: src,
		fetcher: NewFetcher(st, FetcherOptions{
			Client:  opts.Client,
			Timeout: opts.Timeout,
			Log:     opts.Log,
			Metrics: opts.Metrics,
		}),
		resolver:    newResolver(src, opts.Now, opts.Log),
		log:         logging.NewComponentLogger(opts.Log, "pipeline"),
		metrics:     opts.Metrics,
		workers:     opts.Workers,
		pageWorkers: opts.PageWorkers,
	}
}

type eventKind int

const (
	eventPage eventKind = iota
	eventAsset
)

// event is sent by workers to the collector.
type event struct {
	kind eventKind
	page string

	// page events
	failed    bool
	malformed int

	// asset events
	ref content.Reference
	res Result
	err error
}

// Run processes all pages and returns once every asset reference has been handled.
//
// Failures of individual pages and assets are logged and counted in the summary.
// An error is returned only if pages cannot be listed, or the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	log := p.log.With(logging.String(logging.FieldRunID, uuid.NewString()))

	pages, err := p.src.Pages(ctx)
	if err != nil {
		log.Error("cannot list pages", logging.Error(err))
		return Summary{Duration: time.Since(start)}, fmt.Errorf("list pages: %w", err)
	}
	log.Info("starting",
		logging.Int("pages", len(pages)),
		logging.Int("workers", p.workers),
		logging.Int("page_workers", p.pageWorkers),
	)

	var (
		pageCh = make(chan *content.Page)
		taskCh = make(chan content.Reference)
		events = make(chan event)

		pageWG  sync.WaitGroup
		assetWG sync.WaitGroup
	)
	for i := 0; i < p.pageWorkers; i++ {
		pageWG.Add(1)
		go func() {
			defer pageWG.Done()
			for pg := range pageCh {
				events <- p.processPage(ctx, log, pg, taskCh)
			}
		}()
	}
	for i := 0; i < p.workers; i++ {
		assetWG.Add(1)
		go func() {
			defer assetWG.Done()
			for ref := range taskCh {
				events <- p.processAsset(ctx, ref)
			}
		}()
	}
	go func() {
		defer close(pageCh)
		for _, pg := range pages {
			if pg == nil {
				continue
			}
			select {
			case pageCh <- pg:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		pageWG.Wait()
		close(taskCh)
		assetWG.Wait()
		close(events)
	}()

	var sum Summary
	for ev := range events {
		p.record(log, &sum, ev)
	}
	sum.Duration = time.Since(start)

	log.Info(fmt.Sprintf("completed: %d/%d", sum.Succeeded(), sum.Candidates),
		logging.Int("downloaded", sum.Downloaded),
		logging.Int("cached", sum.Cached),
		logging.Int("failed", sum.Failed),
		logging.Int("unresolvable", sum.Unresolvable),
		logging.Int("malformed", sum.Malformed),
		logging.Int("failed_pages", sum.FailedPages),
		logging.Uint64(logging.FieldBytes, sum.Bytes),
		logging.Duration("took", sum.Duration),
	)
	return sum, ctx.Err()
}

// processPage extracts references of a single page and queues them for download.
// Page-level assets are queued even if the block tree cannot be fetched.
func (p *Pipeline) processPage(ctx context.Context, log *slog.Logger, pg *content.Page, tasks chan<- content.Reference) (ev event) {
	ev = event{kind: eventPage, page: pg.Name()}
	defer func() {
		if r := recover(); r != nil {
			log.Error("page processing panicked",
				logging.String(logging.FieldPage, ev.page),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			ev.failed = true
		}
	}()
	refs, malformed := content.PageReferences(pg)

	blocks, err := p.src.BlockTree(ctx, pg.ID)
	if err != nil {
		log.Warn("cannot fetch block tree",
			logging.String(logging.FieldPage, ev.page),
			logging.Error(err),
		)
		ev.failed = true
	} else {
		brefs, n := content.BlockReferences(pg, blocks)
		refs = append(refs, brefs...)
		malformed += n
	}
	ev.malformed = malformed
	if malformed > 0 {
		log.Debug("skipped malformed references",
			logging.String(logging.FieldPage, ev.page),
			logging.Int("count", malformed),
		)
	}
	for _, ref := range refs {
		select {
		case tasks <- ref:
		case <-ctx.Done():
			return ev
		}
	}
	return ev
}

func (p *Pipeline) processAsset(ctx context.Context, ref content.Reference) (ev event) {
	ev = event{kind: eventAsset, page: ref.Page, ref: ref}
	defer func() {
		if r := recover(); r != nil {
			ev.err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	ev.res, ev.err = p.fetcher.EnsureReference(ctx, ref, p.resolver)
	return ev
}

// record accounts the event in the summary. It is only called from the collector goroutine.
func (p *Pipeline) record(log *slog.Logger, sum *Summary, ev event) {
	switch ev.kind {
	case eventPage:
		sum.Pages++
		if ev.failed {
			sum.FailedPages++
		}
		sum.Malformed += ev.malformed
		p.metrics.page(!ev.failed)
		p.metrics.asset(outcomeMalformed, ev.malformed)
		return
	case eventAsset:
	default:
		return
	}
	sum.Candidates++
	attrs := []logging.Attr{
		logging.String(logging.FieldPage, ev.page),
		logging.String(logging.FieldOwner, ev.ref.Owner),
		logging.String(logging.FieldURL, redact(ev.ref.URL)),
	}
	switch {
	case ev.err == nil && ev.res.Cached:
		sum.Cached++
		p.metrics.asset(outcomeCached, 1)
	case ev.err == nil:
		sum.Downloaded++
		sum.Bytes += ev.res.Info.Size
		p.metrics.asset(outcomeDownloaded, 1)
	case errors.Is(ev.err, ErrUnresolvable):
		sum.Unresolvable++
		p.metrics.asset(outcomeUnresolvable, 1)
		log.Warn("cannot resolve asset", logging.Args(append(attrs, logging.Error(ev.err))...)...)
	case errors.Is(ev.err, types.ErrMalformedReference):
		sum.Failed++
		p.metrics.asset(outcomeFailed, 1)
		log.Warn("malformed asset reference", logging.Args(append(attrs, logging.Error(ev.err))...)...)
	default:
		sum.Failed++
		p.metrics.asset(outcomeFailed, 1)
		log.Warn("download failed", logging.Args(append(attrs, logging.Error(ev.err))...)...)
	}
}
