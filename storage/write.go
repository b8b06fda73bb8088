package storage

import (
	"context"
	"errors"

	"github.com/dennwc/assetcache/types"
)

// WriteBytes stores the data as an asset with a given key.
func WriteBytes(ctx context.Context, s Storage, key types.Key, data []byte, m Meta) error {
	w, err := s.Begin(ctx, key)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err = w.Write(data); err != nil {
		return err
	}
	if m.SHA256.Zero() {
		m.SHA256 = types.BytesDigest(data)
	}
	w.SetMeta(m)
	return w.Commit()
}

// Keys lists all asset keys in the storage.
func Keys(ctx context.Context, s Storage) ([]types.Key, error) {
	it := s.Iterate(ctx)
	defer it.Close()
	var out []types.Key
	for it.Next() {
		out = append(out, it.Info().Key)
	}
	return out, it.Err()
}

// IsExists reports if the error indicates that the asset was already stored by another writer.
func IsExists(err error) bool {
	return errors.Is(err, ErrExists)
}
