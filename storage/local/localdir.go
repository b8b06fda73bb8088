// Package local implements an asset corpus in a local directory.
//
// Assets are stored as regular files at <root>/<container>/<file>, so the corpus can be consumed
// directly by tools that glob the directory. Metadata is kept in extended attributes, with a
// fallback to sidecar files for filesystems that do not support them.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
	"github.com/dennwc/assetcache/xattr"
)

const (
	dirTmp   = ".tmp"
	dirLocks = ".locks"
	dirMeta  = ".meta"

	xattrMeta = "assetcache.meta"

	lockRetry = 50 * time.Millisecond

	filePerm = 0644
	dirPerm  = 0755
)

// setMeta stores asset metadata on the open file. Replaced in tests.
var setMeta = xattr.SetJSONF

var (
	_ storage.Storage = (*Storage)(nil)
	_ storage.Locker  = (*Storage)(nil)
)

// New opens a corpus in the directory. If create is set, the directory is created when missing.
func New(dir string, create bool) (*Storage, error) {
	_, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if !create {
			return nil, err
		}
		err = os.MkdirAll(dir, dirPerm)
	}
	if err != nil {
		return nil, err
	}
	for _, name := range []string{dirTmp, dirLocks} {
		if err = os.MkdirAll(filepath.Join(dir, name), dirPerm); err != nil {
			return nil, err
		}
	}
	return &Storage{dir: dir}, nil
}

type Storage struct {
	dir string
}

// Dir returns the root directory of the corpus.
func (s *Storage) Dir() string {
	return s.dir
}

func (s *Storage) Close() error {
	return nil
}

// Path returns a filesystem path for the asset key.
func (s *Storage) Path(key types.Key) string {
	return filepath.Join(s.dir, filepath.FromSlash(key.String()))
}

func (s *Storage) metaPath(key types.Key) string {
	return filepath.Join(s.dir, dirMeta, filepath.FromSlash(key.String())+".json")
}

func (s *Storage) lockPath(key types.Key) string {
	h := sha256.Sum256([]byte(key.String()))
	return filepath.Join(s.dir, dirLocks, hex.EncodeToString(h[:16])+".lock")
}

func (s *Storage) stat(key types.Key) (Info, error) {
	if key.Zero() {
		return Info{}, storage.ErrInvalidKey
	}
	path := s.Path(key)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Info{}, storage.ErrNotFound
	} else if err != nil {
		return Info{}, err
	} else if !fi.Mode().IsRegular() {
		return Info{}, storage.ErrNotFound
	}
	return Info{
		Key:     key,
		Size:    uint64(fi.Size()),
		ModTime: fi.ModTime(),
		Meta:    s.readMeta(key, path),
	}, nil
}

// Info is an alias to keep signatures short.
type Info = storage.Info

func (s *Storage) readMeta(key types.Key, path string) storage.Meta {
	var m storage.Meta
	err := xattr.GetJSON(path, xattrMeta, &m)
	if err == nil {
		return m
	}
	// metadata is optional; fall back to a sidecar file
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return storage.Meta{}
	}
	if err = json.Unmarshal(data, &m); err != nil {
		return storage.Meta{}
	}
	return m
}

// tempSidecar writes metadata to a temporary file that is later moved into place by placeSidecar.
func (s *Storage) tempSidecar(m storage.Meta) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Join(s.dir, dirTmp), "meta_")
	if err != nil {
		return "", err
	}
	name := f.Name()
	_, err = f.Write(data)
	if err == nil {
		err = f.Chmod(filePerm)
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func (s *Storage) placeSidecar(key types.Key, tmp string) error {
	path := s.metaPath(key)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Storage) Stat(ctx context.Context, key types.Key) (Info, error) {
	return s.stat(key)
}

func (s *Storage) Fetch(ctx context.Context, key types.Key) (io.ReadCloser, Info, error) {
	info, err := s.stat(key)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(s.Path(key))
	if os.IsNotExist(err) {
		return nil, Info{}, storage.ErrNotFound
	} else if err != nil {
		return nil, Info{}, err
	}
	return f, info, nil
}

// Lock acquires an exclusive file lock for the key. It coordinates writers from different processes
// that share the same corpus directory.
func (s *Storage) Lock(ctx context.Context, key types.Key) (func(), error) {
	fl := flock.New(s.lockPath(key))
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	} else if !ok {
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}

func (s *Storage) Begin(ctx context.Context, key types.Key) (storage.Writer, error) {
	if key.Zero() {
		return nil, storage.ErrInvalidKey
	}
	f, err := os.CreateTemp(filepath.Join(s.dir, dirTmp), "asset_")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp file: %w", err)
	}
	return &writer{s: s, key: key, f: f}, nil
}

type writer struct {
	s    *Storage
	key  types.Key
	f    *os.File
	size uint64
	meta storage.Meta
	done bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.f == nil {
		if w.done {
			return 0, storage.ErrAssetCommitted
		}
		return 0, storage.ErrAssetDiscarded
	}
	n, err := w.f.Write(p)
	w.size += uint64(n)
	return n, err
}

func (w *writer) Size() uint64 {
	return w.size
}

func (w *writer) SetMeta(m storage.Meta) {
	w.meta = m
}

func (w *writer) Close() error {
	if w.f == nil {
		return nil
	}
	name := w.f.Name()
	w.f.Close()
	os.Remove(name)
	w.f = nil
	return nil
}

func (w *writer) Commit() error {
	if w.f == nil {
		if w.done {
			return storage.ErrAssetCommitted
		}
		return storage.ErrAssetDiscarded
	}
	tmp := w.f
	w.f = nil
	w.done = true
	name := tmp.Name()

	var sidecar string
	if err := setMeta(tmp, xattrMeta, w.meta); err != nil {
		// metadata must be ready before the asset becomes visible
		sidecar, err = w.s.tempSidecar(w.meta)
		if err != nil {
			tmp.Close()
			os.Remove(name)
			return err
		}
	}
	abort := func(err error) error {
		os.Remove(name)
		if sidecar != "" {
			os.Remove(sidecar)
		}
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return abort(err)
	}
	if err := tmp.Close(); err != nil {
		return abort(err)
	}
	dst := w.s.Path(w.key)
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return abort(err)
	}
	if err := renameNoReplace(name, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = storage.ErrExists
		}
		return abort(err)
	}
	if sidecar != "" {
		// the asset is committed at this point; without a sidecar the index decodes metadata from the content
		if err := w.s.placeSidecar(w.key, sidecar); err != nil {
			os.Remove(sidecar)
		}
	}
	return nil
}

func (s *Storage) Iterate(ctx context.Context) storage.Iterator {
	return &dirIterator{s: s}
}

// dirIterator lists <root>/<container>/<file> entries, skipping service directories.
type dirIterator struct {
	s    *Storage
	keys []types.Key
	done bool

	err  error
	info Info
}

func (it *dirIterator) list() ([]types.Key, error) {
	dirs, err := os.ReadDir(it.s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var keys []types.Key
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(it.s.dir, d.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !f.Type().IsRegular() {
				continue
			}
			key, err := types.NewKey(d.Name(), f.Name())
			if err != nil {
				// not an asset
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

func (it *dirIterator) Next() bool {
	it.info = Info{}
	if it.err != nil {
		return false
	}
	if !it.done {
		it.done = true
		it.keys, it.err = it.list()
		if it.err != nil {
			return false
		}
	}
	for len(it.keys) > 0 {
		key := it.keys[0]
		it.keys = it.keys[1:]
		info, err := it.s.stat(key)
		if err == storage.ErrNotFound {
			// removed concurrently
			continue
		} else if err != nil {
			it.err = err
			return false
		}
		it.info = info
		return true
	}
	return false
}

func (it *dirIterator) Err() error {
	return it.err
}

func (it *dirIterator) Info() Info {
	return it.info
}

func (it *dirIterator) Close() error {
	it.keys = nil
	it.done = true
	return nil
}
