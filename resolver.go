package assetcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dennwc/assetcache/content"
	"github.com/dennwc/assetcache/logging"
)

// Resolver guarantees that a reference carries a usable URL.
//
// A fresh reference is returned as is. An expired one is refreshed by re-fetching its owner
// from the content source. Results are not cached: the refreshed reference is only used
// for a single download.
type Resolver struct {
	src content.Source
	now func() time.Time
	log *slog.Logger
}

// NewResolver creates a resolver that refreshes references from the source.
func NewResolver(src content.Source, log *slog.Logger) *Resolver {
	return newResolver(src, time.Now, log)
}

func newResolver(src content.Source, now func() time.Time, log *slog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{src: src, now: now, log: logging.NewComponentLogger(log, "resolver")}
}

// Resolve returns a reference with a URL that is valid at the current time.
// It returns an UnresolvableError if the owner cannot be fetched or no longer carries the asset.
func (r *Resolver) Resolve(ctx context.Context, ref content.Reference) (content.Reference, error) {
	if !ref.Expired(r.now()) {
		return ref, nil
	}
	r.log.Debug("refreshing expired reference",
		logging.String(logging.FieldOwner, ref.Owner),
		logging.String(logging.FieldPage, ref.Page),
		logging.String("slot", string(ref.Slot)),
	)
	var (
		nr content.Reference
		ok bool
	)
	switch ref.OwnerKind {
	case content.OwnerBlock:
		b, err := r.src.Block(ctx, ref.Owner)
		if err != nil {
			return content.Reference{}, &UnresolvableError{Owner: ref.Owner, Page: ref.Page, Err: err}
		}
		nr, ok = ref.RefreshFromBlock(b)
	case content.OwnerPage:
		p, err := r.src.Page(ctx, ref.Owner)
		if err != nil {
			return content.Reference{}, &UnresolvableError{Owner: ref.Owner, Page: ref.Page, Err: err}
		}
		nr, ok = ref.RefreshFromPage(p)
	default:
		return content.Reference{}, &UnresolvableError{
			Owner: ref.Owner, Page: ref.Page,
			Err: fmt.Errorf("unsupported owner kind: %v", ref.OwnerKind),
		}
	}
	if !ok {
		return content.Reference{}, &UnresolvableError{Owner: ref.Owner, Page: ref.Page, Err: errAssetMissing}
	}
	return nr, nil
}
