package gcs

import (
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"

	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

func TestMetadata(t *testing.T) {
	key := types.MustKey("abc", "photo.png")
	m := storage.Meta{
		ContentType: "image/png",
		Format:      "png",
		Width:       640, Height: 480,
		Source: "https://cdn.example/abc/photo.png",
		Owner:  "block",
		SHA256: types.BytesDigest([]byte("png")),
	}
	now := time.Now()
	a := &gcs.ObjectAttrs{
		Name:        DefaultPrefix + key.String(),
		ContentType: m.ContentType,
		Metadata:    metadata(m),
		Size:        3,
		Updated:     now,
	}
	info := infoFromAttrs(key, a)
	require.Equal(t, storage.Info{Key: key, Size: 3, ModTime: now, Meta: m}, info)

	md := metadata(storage.Meta{})
	require.Empty(t, md)
}
