package local

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/storage/test"
	"github.com/dennwc/assetcache/types"
	"github.com/dennwc/assetcache/xattr"
)

func TestLocalDir(t *testing.T) {
	storagetest.RunTests(t, func(t testing.TB) (storage.Storage, func()) {
		dir, err := os.MkdirTemp("", "assetcache_local_")
		require.NoError(t, err)
		cleanup := func() {
			os.RemoveAll(dir)
		}
		s, err := New(dir, true)
		if err != nil {
			cleanup()
		}
		require.NoError(t, err)
		return s, cleanup
	})
}

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "corpus"), true)
	require.NoError(t, err)

	ctx := context.Background()
	key := types.MustKey("abc123", "my photo.jpg")
	err = storage.WriteBytes(ctx, s, key, []byte("jpeg"), storage.Meta{Width: 4, Height: 3})
	require.NoError(t, err)

	path := filepath.Join(dir, "corpus", "abc123", "my photo.jpg")
	require.Equal(t, path, s.Path(key))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(data))

	// no leftovers in the temp dir
	tmp, err := os.ReadDir(filepath.Join(dir, "corpus", dirTmp))
	require.NoError(t, err)
	require.Empty(t, tmp)

	// reopening sees the same asset and metadata
	s2, err := New(filepath.Join(dir, "corpus"), false)
	require.NoError(t, err)
	info, err := s2.Stat(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 4, info.Meta.Width)
	require.Equal(t, 3, info.Meta.Height)
}

func TestIterateSkipsServiceDirs(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, true)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, dirMeta, "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, dirMeta, "a", "x.json"), []byte("{}"), 0644))

	ctx := context.Background()
	key := types.MustKey("a", "x")
	require.NoError(t, storage.WriteBytes(ctx, s, key, []byte("x"), storage.Meta{}))

	keys, err := storage.Keys(ctx, s)
	require.NoError(t, err)
	require.Equal(t, []types.Key{key}, keys)
}

func TestHiddenContainerIsNotAKey(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, true)
	require.NoError(t, err)

	for _, raw := range []string{
		"https://cdn.example/.well-known/logo.png?sig=1",
		"https://cdn.example/.meta/x.json",
	} {
		_, err = types.ParseURLKey(raw)
		require.ErrorIs(t, err, types.ErrMalformedReference, raw)
	}

	// every key that can be written is listed back
	ctx := context.Background()
	key, err := types.ParseURLKey("https://cdn.example/well-known/logo.png?sig=1")
	require.NoError(t, err)
	require.NoError(t, storage.WriteBytes(ctx, s, key, []byte("png"), storage.Meta{}))
	keys, err := storage.Keys(ctx, s)
	require.NoError(t, err)
	require.Equal(t, []types.Key{key}, keys)
}

func withoutXattrs(t *testing.T) {
	orig := setMeta
	setMeta = func(*os.File, string, interface{}) error {
		return xattr.ErrNotSupported
	}
	t.Cleanup(func() { setMeta = orig })
}

func TestSidecarMeta(t *testing.T) {
	withoutXattrs(t)
	dir := t.TempDir()
	s, err := New(dir, true)
	require.NoError(t, err)

	ctx := context.Background()
	key := types.MustKey("abc", "x.png")
	require.NoError(t, storage.WriteBytes(ctx, s, key, []byte("png"), storage.Meta{Format: "png", Width: 2, Height: 1}))

	_, err = os.Stat(filepath.Join(dir, dirMeta, "abc", "x.png.json"))
	require.NoError(t, err)
	info, err := s.Stat(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 2, info.Meta.Width)

	tmp, err := os.ReadDir(filepath.Join(dir, dirTmp))
	require.NoError(t, err)
	require.Empty(t, tmp)

	// a lost race leaves neither the asset nor the sidecar behind
	err = storage.WriteBytes(ctx, s, key, []byte("other"), storage.Meta{Width: 9})
	require.True(t, storage.IsExists(err), "%v", err)
	info, err = s.Stat(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 2, info.Meta.Width)
	tmp, err = os.ReadDir(filepath.Join(dir, dirTmp))
	require.NoError(t, err)
	require.Empty(t, tmp)
}

func TestSidecarFailureKeepsCommit(t *testing.T) {
	withoutXattrs(t)
	dir := t.TempDir()
	s, err := New(dir, true)
	require.NoError(t, err)
	// sidecar directory cannot be created
	require.NoError(t, os.WriteFile(filepath.Join(dir, dirMeta), []byte("x"), 0644))

	ctx := context.Background()
	key := types.MustKey("abc", "y.png")
	w, err := s.Begin(ctx, key)
	require.NoError(t, err)
	_, err = w.Write([]byte("png"))
	require.NoError(t, err)
	w.SetMeta(storage.Meta{Width: 3, Height: 3})
	require.NoError(t, w.Commit())

	info, err := s.Stat(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uint64(3), info.Size)
	require.False(t, info.Meta.HasDimensions())

	tmp, err := os.ReadDir(filepath.Join(dir, dirTmp))
	require.NoError(t, err)
	require.Empty(t, tmp)
}

func TestOpenMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), false)
	require.True(t, os.IsNotExist(err))
}

func TestLock(t *testing.T) {
	s, err := New(t.TempDir(), true)
	require.NoError(t, err)

	ctx := context.Background()
	key := types.MustKey("a", "locked.png")

	var (
		wg     sync.WaitGroup
		inside int32
		maxIn  int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.Lock(ctx, key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxIn)
				if n <= m || atomic.CompareAndSwapInt32(&maxIn, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxIn)

	// cancelled context while the lock is held
	unlock, err := s.Lock(ctx, key)
	require.NoError(t, err)
	defer unlock()
	cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = s.Lock(cctx, key)
	require.Error(t, err)
}
