// Package storagetest is a conformance suite for asset storage implementations.
package storagetest

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

type StorageFunc func(t testing.TB) (storage.Storage, func())

func RunTests(t *testing.T, fnc StorageFunc) {
	t.Run("simple", func(t *testing.T) {
		testSimple(t, fnc)
	})
	t.Run("not found", func(t *testing.T) {
		testNotFound(t, fnc)
	})
	t.Run("discard", func(t *testing.T) {
		testDiscard(t, fnc)
	})
	t.Run("no replace", func(t *testing.T) {
		testNoReplace(t, fnc)
	})
	t.Run("concurrent", func(t *testing.T) {
		testConcurrent(t, fnc)
	})
	t.Run("iterate", func(t *testing.T) {
		testIterate(t, fnc)
	})
}

func testSimple(t *testing.T, fnc StorageFunc) {
	s, closer := fnc(t)
	defer closer()

	ctx := context.Background()
	key := types.MustKey("abc123", "photo one.jpg")

	w, err := s.Begin(ctx, key)
	require.NoError(t, err)
	defer w.Close()

	data := []byte("useful data")
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, uint64(len(data)), w.Size())

	// not visible before commit
	_, err = s.Stat(ctx, key)
	require.Equal(t, storage.ErrNotFound, err)

	meta := storage.Meta{
		ContentType: "image/jpeg", Format: "jpeg",
		Width: 3, Height: 2,
		Source: "https://cdn.example/abc123/photo%20one.jpg",
		Owner:  "block-1",
		SHA256: types.BytesDigest(data),
	}
	w.SetMeta(meta)
	require.NoError(t, w.Commit())
	assert.NoError(t, w.Close())

	info, err := s.Stat(ctx, key)
	require.NoError(t, err)
	require.Equal(t, key, info.Key)
	require.Equal(t, uint64(len(data)), info.Size)
	require.Equal(t, meta, info.Meta)

	rc, info, err := s.Fetch(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, uint64(len(data)), info.Size)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func testNotFound(t *testing.T, fnc StorageFunc) {
	s, closer := fnc(t)
	defer closer()

	ctx := context.Background()
	key := types.MustKey("nope", "missing.png")

	_, err := s.Stat(ctx, key)
	require.Equal(t, storage.ErrNotFound, err)

	_, _, err = s.Fetch(ctx, key)
	require.Equal(t, storage.ErrNotFound, err)

	_, err = s.Stat(ctx, types.Key{})
	require.Error(t, err)
}

func testDiscard(t *testing.T, fnc StorageFunc) {
	s, closer := fnc(t)
	defer closer()

	ctx := context.Background()
	key := types.MustKey("d", "discarded.bin")

	w, err := s.Begin(ctx, key)
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = s.Stat(ctx, key)
	require.Equal(t, storage.ErrNotFound, err)

	keys, err := storage.Keys(ctx, s)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func testNoReplace(t *testing.T, fnc StorageFunc) {
	s, closer := fnc(t)
	defer closer()

	ctx := context.Background()
	key := types.MustKey("x", "same.txt")

	w1, err := s.Begin(ctx, key)
	require.NoError(t, err)
	defer w1.Close()
	w2, err := s.Begin(ctx, key)
	require.NoError(t, err)
	defer w2.Close()

	_, err = w1.Write([]byte("first"))
	require.NoError(t, err)
	_, err = w2.Write([]byte("second"))
	require.NoError(t, err)

	require.NoError(t, w1.Commit())
	err = w2.Commit()
	require.True(t, storage.IsExists(err), "%v", err)

	rc, _, err := s.Fetch(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))
}

func testConcurrent(t *testing.T, fnc StorageFunc) {
	s, closer := fnc(t)
	defer closer()

	ctx := context.Background()
	key := types.MustKey("c", "race.bin")
	data := []byte("same bytes")

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		commits int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := storage.WriteBytes(ctx, s, key, data, storage.Meta{})
			if err == nil {
				mu.Lock()
				commits++
				mu.Unlock()
				return
			}
			assert.True(t, storage.IsExists(err), "%v", err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, commits)

	info, err := s.Stat(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), info.Size)
}

func testIterate(t *testing.T, fnc StorageFunc) {
	s, closer := fnc(t)
	defer closer()

	ctx := context.Background()
	exp := []types.Key{
		types.MustKey("a", "1.png"),
		types.MustKey("a", "2.png"),
		types.MustKey("b", "1.png"),
	}
	// write in reverse order; iteration must be sorted
	for i := len(exp) - 1; i >= 0; i-- {
		err := storage.WriteBytes(ctx, s, exp[i], []byte(exp[i].String()), storage.Meta{Owner: "o"})
		require.NoError(t, err)
	}

	it := s.Iterate(ctx)
	defer it.Close()
	for _, k := range exp {
		require.True(t, it.Next())
		info := it.Info()
		require.Equal(t, k, info.Key)
		require.Equal(t, uint64(len(k.String())), info.Size)
		require.Equal(t, "o", info.Meta.Owner)
		require.Equal(t, types.BytesDigest([]byte(k.String())), info.Meta.SHA256)
	}
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}
