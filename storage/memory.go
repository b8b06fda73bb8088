package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dennwc/assetcache/types"
)

func NewInMemory() Storage {
	return &memStorage{
		assets: make(map[types.Key]memAsset),
	}
}

type memAsset struct {
	data []byte
	meta Meta
	mod  time.Time
}

func (a memAsset) info(key types.Key) Info {
	return Info{Key: key, Size: uint64(len(a.data)), ModTime: a.mod, Meta: a.meta}
}

type memStorage struct {
	mu     sync.RWMutex
	assets map[types.Key]memAsset
}

func (s *memStorage) Close() error {
	return nil
}

func (s *memStorage) Stat(ctx context.Context, key types.Key) (Info, error) {
	if key.Zero() {
		return Info{}, ErrInvalidKey
	}
	s.mu.RLock()
	a, ok := s.assets[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, ErrNotFound
	}
	return a.info(key), nil
}

func (s *memStorage) Fetch(ctx context.Context, key types.Key) (io.ReadCloser, Info, error) {
	if key.Zero() {
		return nil, Info{}, ErrInvalidKey
	}
	s.mu.RLock()
	a, ok := s.assets[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Info{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(a.data)), a.info(key), nil
}

func (s *memStorage) Begin(ctx context.Context, key types.Key) (Writer, error) {
	if key.Zero() {
		return nil, ErrInvalidKey
	}
	return &memWriter{s: s, key: key}, nil
}

type memWriter struct {
	s    *memStorage
	key  types.Key
	buf  bytes.Buffer
	meta Meta
	done bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrAssetCommitted
	}
	return w.buf.Write(p)
}

func (w *memWriter) Size() uint64 {
	return uint64(w.buf.Len())
}

func (w *memWriter) SetMeta(m Meta) {
	w.meta = m
}

func (w *memWriter) Commit() error {
	if w.done {
		return ErrAssetCommitted
	}
	w.done = true
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if _, ok := w.s.assets[w.key]; ok {
		return ErrExists
	}
	data := append([]byte(nil), w.buf.Bytes()...)
	w.s.assets[w.key] = memAsset{data: data, meta: w.meta, mod: time.Now()}
	return nil
}

func (w *memWriter) Close() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (s *memStorage) Iterate(ctx context.Context) Iterator {
	return &memIter{s: s, i: -1}
}

type memIter struct {
	s     *memStorage
	infos []Info
	i     int
}

func (it *memIter) Next() bool {
	if it.s == nil {
		return false
	}
	if it.infos == nil {
		it.s.mu.RLock()
		it.infos = make([]Info, 0, len(it.s.assets))
		for key, a := range it.s.assets {
			it.infos = append(it.infos, a.info(key))
		}
		it.s.mu.RUnlock()
		sort.Slice(it.infos, func(i, j int) bool {
			return it.infos[i].Key.String() < it.infos[j].Key.String()
		})
	}
	if it.i < len(it.infos) {
		it.i++
	}
	return it.i < len(it.infos)
}

func (it *memIter) Err() error {
	return nil
}

func (it *memIter) Close() error {
	it.s = nil
	return nil
}

func (it *memIter) Info() Info {
	if it.i < 0 || it.i >= len(it.infos) {
		return Info{}
	}
	return it.infos[it.i]
}
