// Package gcs implements an asset corpus in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

var (
	_ storage.Storage = (*Storage)(nil)
)

const (
	DefaultPrefix = "assets/"

	metaOwner  = "owner"
	metaSource = "source"
	metaFormat = "format"
	metaWidth  = "width"
	metaHeight = "height"
	metaSHA256 = "sha256"
)

// New opens a corpus in the bucket. All assets are stored under the prefix.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Storage, error) {
	cli, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Storage{cli: cli, b: cli.Bucket(bucket), pref: prefix}, nil
}

type Storage struct {
	cli  *gcs.Client
	b    *gcs.BucketHandle
	pref string
}

func (s *Storage) Close() error {
	return s.cli.Close()
}

func (s *Storage) object(key types.Key) *gcs.ObjectHandle {
	return s.b.Object(s.pref + key.String())
}

func infoFromAttrs(key types.Key, a *gcs.ObjectAttrs) storage.Info {
	m := storage.Meta{
		ContentType: a.ContentType,
		Format:      a.Metadata[metaFormat],
		Source:      a.Metadata[metaSource],
		Owner:       a.Metadata[metaOwner],
	}
	m.Width, _ = strconv.Atoi(a.Metadata[metaWidth])
	m.Height, _ = strconv.Atoi(a.Metadata[metaHeight])
	if v := a.Metadata[metaSHA256]; v != "" {
		m.SHA256, _ = types.ParseDigest(v)
	}
	return storage.Info{
		Key:     key,
		Size:    uint64(a.Size),
		ModTime: a.Updated,
		Meta:    m,
	}
}

func metadata(m storage.Meta) map[string]string {
	md := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			md[k] = v
		}
	}
	set(metaOwner, m.Owner)
	set(metaSource, m.Source)
	set(metaFormat, m.Format)
	set(metaSHA256, m.SHA256.String())
	if m.HasDimensions() {
		md[metaWidth] = strconv.Itoa(m.Width)
		md[metaHeight] = strconv.Itoa(m.Height)
	}
	return md
}

func (s *Storage) Stat(ctx context.Context, key types.Key) (storage.Info, error) {
	if key.Zero() {
		return storage.Info{}, storage.ErrInvalidKey
	}
	a, err := s.object(key).Attrs(ctx)
	if err == gcs.ErrObjectNotExist {
		return storage.Info{}, storage.ErrNotFound
	} else if err != nil {
		return storage.Info{}, err
	}
	return infoFromAttrs(key, a), nil
}

func (s *Storage) Fetch(ctx context.Context, key types.Key) (io.ReadCloser, storage.Info, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, storage.Info{}, err
	}
	r, err := s.object(key).NewReader(ctx)
	if err == gcs.ErrObjectNotExist {
		return nil, storage.Info{}, storage.ErrNotFound
	} else if err != nil {
		return nil, storage.Info{}, err
	}
	return r, info, nil
}

// Begin starts an upload that only succeeds if the object does not exist yet.
func (s *Storage) Begin(ctx context.Context, key types.Key) (storage.Writer, error) {
	if key.Zero() {
		return nil, storage.ErrInvalidKey
	}
	ctx, discard := context.WithCancel(ctx)
	w := s.object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	return &writer{w: w, discard: discard}, nil
}

type writer struct {
	w       *gcs.Writer
	discard func()
	size    uint64
	done    bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, storage.ErrAssetCommitted
	}
	n, err := w.w.Write(p)
	w.size += uint64(n)
	return n, err
}

func (w *writer) Size() uint64 {
	return w.size
}

func (w *writer) SetMeta(m storage.Meta) {
	w.w.ContentType = m.ContentType
	w.w.Metadata = metadata(m)
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	// cancelling the context aborts the upload
	w.discard()
	_ = w.w.Close()
	return nil
}

func (w *writer) Commit() error {
	if w.done {
		return storage.ErrAssetCommitted
	}
	w.done = true
	defer w.discard()
	err := w.w.Close()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return storage.ErrExists
	}
	return err
}

func (s *Storage) Iterate(ctx context.Context) storage.Iterator {
	return &objectsIterator{
		it:   s.b.Objects(ctx, &gcs.Query{Prefix: s.pref}),
		pref: s.pref,
	}
}

type objectsIterator struct {
	it   *gcs.ObjectIterator
	pref string

	info storage.Info
	err  error
}

func (it *objectsIterator) Next() bool {
	it.info = storage.Info{}
	if it.err != nil || it.it == nil {
		return false
	}
	for {
		a, err := it.it.Next()
		if err == iterator.Done {
			return false
		} else if err != nil {
			it.err = err
			return false
		}
		rel := strings.TrimPrefix(a.Name, it.pref)
		if strings.Count(rel, "/") != 1 {
			continue
		}
		key, err := types.KeyFromPath(rel)
		if err != nil {
			// not an asset
			continue
		}
		it.info = infoFromAttrs(key, a)
		return true
	}
}

func (it *objectsIterator) Err() error {
	return it.err
}

func (it *objectsIterator) Info() storage.Info {
	return it.info
}

func (it *objectsIterator) Close() error {
	it.it = nil
	return nil
}
