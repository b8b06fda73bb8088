package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dennwc/assetcache/content"
	"github.com/dennwc/assetcache/imagemeta"
	"github.com/dennwc/assetcache/logging"
	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

// ResolveFunc returns a currently valid URL of the asset. It is only called when the asset
// must be downloaded.
type ResolveFunc func(ctx context.Context) (*url.URL, error)

// Result describes the outcome of Fetcher.Ensure.
type Result struct {
	Key types.Key
	// Cached is set if the asset was already present in the corpus, or was downloaded
	// by a concurrent caller.
	Cached bool
	Info   storage.Info
}

// Downloaded reports if the asset was downloaded by this call.
func (r Result) Downloaded() bool {
	return !r.Cached
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// Client is used for downloads. Defaults to http.DefaultClient.
	Client *http.Client
	// Timeout limits a single download. Zero means no limit.
	Timeout time.Duration
	Log     *slog.Logger
	Metrics *Metrics
}

// Fetcher downloads assets into the corpus, at most once per key.
//
// Concurrent calls for the same key within a process share a single download. If the storage
// implements storage.Locker, the key is also locked across processes for the duration of the
// download. Existing assets are never replaced.
type Fetcher struct {
	st      storage.Storage
	cli     *http.Client
	timeout time.Duration
	log     *slog.Logger
	metrics *Metrics

	group singleflight.Group
}

// NewFetcher creates a fetcher that writes to the storage.
func NewFetcher(st storage.Storage, opts FetcherOptions) *Fetcher {
	cli := opts.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	return &Fetcher{
		st:      st,
		cli:     cli,
		timeout: opts.Timeout,
		log:     logging.NewComponentLogger(opts.Log, "fetcher"),
		metrics: opts.Metrics,
	}
}

// Ensure makes sure the asset with a given key is present in the corpus.
//
// If the asset is already present, neither resolve nor the network is used.
func (f *Fetcher) Ensure(ctx context.Context, key types.Key, resolve ResolveFunc) (Result, error) {
	return f.ensure(ctx, key, "", resolve)
}

// EnsureReference is like Ensure, but derives the key from the reference and refreshes
// its URL with the resolver when needed.
func (f *Fetcher) EnsureReference(ctx context.Context, ref content.Reference, r *Resolver) (Result, error) {
	key, err := ref.Key()
	if err != nil {
		return Result{}, err
	}
	return f.ensure(ctx, key, ref.Owner, func(ctx context.Context) (*url.URL, error) {
		nr, err := r.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		return nr.URL, nil
	})
}

func (f *Fetcher) ensure(ctx context.Context, key types.Key, owner string, resolve ResolveFunc) (Result, error) {
	if key.Zero() {
		return Result{}, &DownloadError{Key: key, Err: storage.ErrInvalidKey}
	}
	if info, err := f.st.Stat(ctx, key); err == nil {
		return Result{Key: key, Cached: true, Info: info}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Result{Key: key}, &DownloadError{Key: key, Err: err}
	}
	leader := false
	v, err, _ := f.group.Do(key.String(), func() (any, error) {
		leader = true
		return f.fetchLocked(ctx, key, owner, resolve)
	})
	if err != nil {
		return Result{Key: key}, err
	}
	res := v.(Result)
	if !leader {
		res.Cached = true
	}
	return res, nil
}

func (f *Fetcher) fetchLocked(ctx context.Context, key types.Key, owner string, resolve ResolveFunc) (Result, error) {
	if l, ok := f.st.(storage.Locker); ok {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			return Result{}, &DownloadError{Key: key, Err: fmt.Errorf("lock: %w", err)}
		}
		defer unlock()
	}
	// another caller may have finished the download after our first check
	if info, err := f.st.Stat(ctx, key); err == nil {
		return Result{Key: key, Cached: true, Info: info}, nil
	}
	u, err := resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	info, err := f.download(ctx, key, owner, u)
	if storage.IsExists(err) {
		// lost the race to a writer that does not share our lock
		info, err = f.st.Stat(ctx, key)
		if err != nil {
			return Result{}, &DownloadError{Key: key, URL: redact(u), Err: err}
		}
		return Result{Key: key, Cached: true, Info: info}, nil
	} else if err != nil {
		return Result{}, err
	}
	return Result{Key: key, Info: info}, nil
}

func (f *Fetcher) download(ctx context.Context, key types.Key, owner string, u *url.URL) (storage.Info, error) {
	if u == nil {
		return storage.Info{}, &DownloadError{Key: key, Err: errors.New("no url")}
	}
	src := redact(u)
	if f.timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return storage.Info{}, &DownloadError{Key: key, URL: src, Err: err}
	}
	resp, err := f.cli.Do(req)
	if err != nil {
		// url.Error includes the signed URL
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return storage.Info{}, &DownloadError{Key: key, URL: src, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return storage.Info{}, &DownloadError{Key: key, URL: src, Status: resp.StatusCode}
	}
	w, err := f.st.Begin(ctx, key)
	if err != nil {
		return storage.Info{}, &DownloadError{Key: key, URL: src, Err: err}
	}
	defer w.Close()

	h := types.NewHash()
	sn := imagemeta.NewSniffer(key.Name())
	defer sn.Close()
	n, err := io.Copy(w, io.TeeReader(resp.Body, io.MultiWriter(h, sn)))
	if err != nil {
		return storage.Info{}, &DownloadError{Key: key, URL: src, Err: err}
	}
	im := sn.Info()
	if im.ContentType == "application/octet-stream" {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			if mt, _, err := mime.ParseMediaType(ct); err == nil {
				im.ContentType = mt
			}
		}
	}
	m := storage.Meta{
		ContentType: im.ContentType,
		Format:      im.Format,
		Width:       im.Width,
		Height:      im.Height,
		Source:      src,
		Owner:       owner,
		SHA256:      types.DigestOf(h),
	}
	w.SetMeta(m)
	if err = w.Commit(); storage.IsExists(err) {
		return storage.Info{}, err
	} else if err != nil {
		return storage.Info{}, &DownloadError{Key: key, URL: src, Err: err}
	}
	dt := time.Since(start)
	f.metrics.downloaded(uint64(n), dt)
	f.log.Debug("downloaded",
		logging.String(logging.FieldKey, key.String()),
		logging.Uint64(logging.FieldBytes, uint64(n)),
		logging.Duration("took", dt),
	)
	return storage.Info{Key: key, Size: uint64(n), ModTime: time.Now(), Meta: m}, nil
}
