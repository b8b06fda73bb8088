package config

import (
	"context"
	"fmt"

	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/storage/gcs"
	"github.com/dennwc/assetcache/storage/local"
)

// OpenCorpus opens the configured asset corpus. If create is set, a missing local directory is created.
func (c *Config) OpenCorpus(ctx context.Context, create bool) (storage.Storage, error) {
	switch c.Corpus.Type {
	case CorpusLocal:
		s, err := local.New(c.Corpus.Dir, create)
		if err != nil {
			return nil, fmt.Errorf("open corpus %q: %w", c.Corpus.Dir, err)
		}
		return s, nil
	case CorpusGCS:
		prefix := c.Corpus.Prefix
		if prefix == "" {
			prefix = gcs.DefaultPrefix
		}
		s, err := gcs.New(ctx, c.Corpus.Bucket, prefix)
		if err != nil {
			return nil, fmt.Errorf("open corpus gs://%s: %w", c.Corpus.Bucket, err)
		}
		return s, nil
	case CorpusMemory:
		return storage.NewInMemory(), nil
	}
	return nil, fmt.Errorf("unsupported corpus type: %q", c.Corpus.Type)
}
