package assetcache

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dennwc/assetcache/content"
	"github.com/dennwc/assetcache/storage"
)

// BuildOptions configures a full build.
type BuildOptions struct {
	Source  content.Source
	Storage storage.Storage

	Workers     int
	PageWorkers int
	Client      *http.Client
	Timeout     time.Duration

	Log     *slog.Logger
	Metrics *Metrics
	// Debug enables lookup miss diagnostics in the index.
	Debug bool
	Now   func() time.Time
}

// Build materializes all assets of the content source and indexes the corpus.
//
// The index is returned even if pages cannot be listed; in that case it only contains assets
// materialized by previous builds, and the error is returned along with it.
func Build(ctx context.Context, opts BuildOptions) (*Index, Summary, error) {
	p := NewPipeline(opts.Source, opts.Storage, PipelineOptions{
		Workers:     opts.Workers,
		PageWorkers: opts.PageWorkers,
		Client:      opts.Client,
		Timeout:     opts.Timeout,
		Log:         opts.Log,
		Metrics:     opts.Metrics,
		Now:         opts.Now,
	})
	sum, runErr := p.Run(ctx)
	if err := ctx.Err(); err != nil {
		return nil, sum, err
	}
	idx, err := BuildIndex(ctx, opts.Storage, IndexOptions{
		Log:     opts.Log,
		Debug:   opts.Debug,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, sum, err
	}
	return idx, sum, runErr
}
