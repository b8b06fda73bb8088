package assetcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/dennwc/assetcache/imagemeta"
	"github.com/dennwc/assetcache/logging"
	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

// maxCandidates limits the number of similar keys logged on a lookup miss.
const maxCandidates = 10

// LocalAsset is a materialized asset in the corpus.
type LocalAsset struct {
	Key types.Key `json:"key"`
	// Path is relative to the corpus root, always slash-separated.
	Path        string       `json:"path"`
	Size        uint64       `json:"size"`
	ModTime     time.Time    `json:"mod_time"`
	ContentType string       `json:"content_type,omitempty"`
	Format      string       `json:"format,omitempty"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	SHA256      types.Digest `json:"sha256"`
}

func newLocalAsset(info storage.Info) *LocalAsset {
	return &LocalAsset{
		Key:         info.Key,
		Path:        info.Key.String(),
		Size:        info.Size,
		ModTime:     info.ModTime,
		ContentType: info.Meta.ContentType,
		Format:      info.Meta.Format,
		Width:       info.Meta.Width,
		Height:      info.Meta.Height,
		SHA256:      info.Meta.SHA256,
	}
}

// IndexOptions configures BuildIndex.
type IndexOptions struct {
	Log *slog.Logger
	// Debug enables logging of candidate keys on lookup misses.
	Debug   bool
	Metrics *Metrics
}

// Index maps remote asset URLs to materialized assets. It is immutable and safe for concurrent use.
type Index struct {
	assets map[types.Key]*LocalAsset
	keys   []types.Key
	byDir  map[string][]types.Key
	byName map[string][]types.Key

	log     *slog.Logger
	debug   bool
	metrics *Metrics
}

// BuildIndex scans the corpus once and builds an index of all assets in it.
// Dimensions of images that were stored without them are decoded from the content.
func BuildIndex(ctx context.Context, st storage.Storage, opts IndexOptions) (*Index, error) {
	idx := &Index{
		assets:  make(map[types.Key]*LocalAsset),
		byDir:   make(map[string][]types.Key),
		byName:  make(map[string][]types.Key),
		log:     logging.NewComponentLogger(opts.Log, "index"),
		debug:   opts.Debug,
		metrics: opts.Metrics,
	}
	it := st.Iterate(ctx)
	defer it.Close()
	for it.Next() {
		info := it.Info()
		a := newLocalAsset(info)
		if !info.Meta.HasDimensions() && imagemeta.IsImage(info.Key.Name()) {
			idx.decode(ctx, st, a)
		}
		idx.add(a)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	sort.Slice(idx.keys, func(i, j int) bool {
		return idx.keys[i].String() < idx.keys[j].String()
	})
	idx.log.Info("index built", logging.Int("assets", len(idx.keys)))
	return idx, nil
}

func (idx *Index) add(a *LocalAsset) {
	if _, ok := idx.assets[a.Key]; ok {
		return
	}
	idx.assets[a.Key] = a
	idx.keys = append(idx.keys, a.Key)
	idx.byDir[a.Key.Dir()] = append(idx.byDir[a.Key.Dir()], a.Key)
	idx.byName[a.Key.Name()] = append(idx.byName[a.Key.Name()], a.Key)
}

func (idx *Index) decode(ctx context.Context, st storage.Storage, a *LocalAsset) {
	rc, _, err := st.Fetch(ctx, a.Key)
	if err != nil {
		idx.log.Debug("cannot open asset", logging.String(logging.FieldKey, a.Path), logging.Error(err))
		return
	}
	defer rc.Close()
	info, err := imagemeta.Decode(rc, a.Key.Name())
	if err != nil {
		idx.log.Debug("cannot decode asset", logging.String(logging.FieldKey, a.Path), logging.Error(err))
		return
	}
	if a.ContentType == "" {
		a.ContentType = info.ContentType
	}
	a.Format = info.Format
	a.Width, a.Height = info.Width, info.Height
}

// Len returns the number of assets in the index.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Keys returns all asset keys, sorted.
func (idx *Index) Keys() []types.Key {
	return append([]types.Key(nil), idx.keys...)
}

// Resolve returns the local asset for a remote asset URL, or nil if it is not materialized.
func (idx *Index) Resolve(raw string) *LocalAsset {
	u, err := url.Parse(raw)
	if err != nil {
		idx.metrics.lookup(false)
		idx.log.Warn("cannot parse asset url", logging.Error(err))
		return nil
	}
	return idx.ResolveURL(u)
}

// ResolveURL returns the local asset for a remote asset URL, or nil if it is not materialized.
// Query parameters of the URL are ignored.
func (idx *Index) ResolveURL(u *url.URL) *LocalAsset {
	key, err := types.KeyFromURL(u)
	if err != nil {
		idx.metrics.lookup(false)
		idx.log.Warn("cannot derive asset key", logging.String(logging.FieldURL, redact(u)), logging.Error(err))
		return nil
	}
	return idx.lookup(key, redact(u))
}

// Lookup returns the local asset with a given key, or nil if it is not materialized.
func (idx *Index) Lookup(key types.Key) *LocalAsset {
	return idx.lookup(key, "")
}

func (idx *Index) lookup(key types.Key, src string) *LocalAsset {
	if a, ok := idx.assets[key]; ok {
		idx.metrics.lookup(true)
		c := *a
		return &c
	}
	idx.metrics.lookup(false)
	attrs := []logging.Attr{logging.String(logging.FieldKey, key.String())}
	if src != "" {
		attrs = append(attrs, logging.String(logging.FieldURL, src))
	}
	idx.log.Warn("asset is not in the index", logging.Args(attrs...)...)
	if idx.debug {
		idx.log.Debug("lookup miss candidates",
			logging.String(logging.FieldKey, key.String()),
			logging.Int("index_size", len(idx.keys)),
			logging.Any("same_container", keyStrings(idx.byDir[key.Dir()])),
			logging.Any("same_name", keyStrings(idx.byName[key.Name()])),
		)
	}
	return nil
}

func keyStrings(keys []types.Key) []string {
	if len(keys) > maxCandidates {
		keys = keys[:maxCandidates]
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}
