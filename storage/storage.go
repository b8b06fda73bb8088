// Package storage defines the corpus of materialized assets and its in-memory implementation.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dennwc/assetcache/types"
)

var (
	ErrNotFound        = errors.New("asset: not found")
	ErrExists          = errors.New("asset: already exists")
	ErrAssetDiscarded  = errors.New("asset was discarded")
	ErrAssetCommitted  = errors.New("asset was committed")
	ErrInvalidKey      = errors.New("asset: invalid key")
	ErrStorageReadOnly = errors.New("storage is read-only")
)

// Meta is the metadata stored along with the asset content.
type Meta struct {
	ContentType string `json:"content_type,omitempty"`
	Format      string `json:"format,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	// Source is the URL of the asset without the query string.
	Source string `json:"source,omitempty"`
	// Owner is an id of the content node that referenced the asset first.
	Owner  string       `json:"owner,omitempty"`
	SHA256 types.Digest `json:"sha256"`
}

// HasDimensions reports if image dimensions are known.
func (m Meta) HasDimensions() bool {
	return m.Width > 0 && m.Height > 0
}

// Info describes a materialized asset.
type Info struct {
	Key     types.Key
	Size    uint64
	ModTime time.Time
	Meta    Meta
}

type Storage interface {
	// Stat returns the info about the asset, or ErrNotFound.
	Stat(ctx context.Context, key types.Key) (Info, error)
	// Fetch opens the asset content for reading.
	Fetch(ctx context.Context, key types.Key) (io.ReadCloser, Info, error)
	// Begin starts writing a new asset. It will only become visible after Commit.
	Begin(ctx context.Context, key types.Key) (Writer, error)
	// Iterate lists all assets in the corpus, ordered by key.
	Iterate(ctx context.Context) Iterator
	Close() error
}

type Writer interface {
	io.Writer
	// Size returns the number of bytes written so far.
	Size() uint64
	// SetMeta sets the metadata that will be stored on Commit.
	SetMeta(m Meta)
	// Commit stores the asset and closes the writer automatically.
	// If another writer committed the same key first, the existing asset is kept and ErrExists is returned.
	Commit() error
	// Close discards the asset, unless it was committed.
	Close() error
}

// Locker is implemented by storages that can coordinate writers across processes.
type Locker interface {
	// Lock blocks until an exclusive lock for the key is acquired, or the context is cancelled.
	Lock(ctx context.Context, key types.Key) (unlock func(), err error)
}

type Iterator interface {
	Next() bool
	Err() error
	Close() error
	Info() Info
}
