package contenttest

import (
	"time"

	"github.com/dennwc/assetcache/content"
)

// Hosted returns a hosted asset with a given signed URL and expiry time.
func Hosted(url string, exp time.Time) *content.Asset {
	return &content.Asset{
		Type: content.AssetHosted,
		File: &content.File{URL: url, ExpiryTime: exp},
	}
}

// ImageBlock returns an image block with a hosted image.
func ImageBlock(id, url string, exp time.Time) *content.Block {
	return &content.Block{ID: id, Type: content.BlockImage, Image: Hosted(url, exp)}
}

// FileBlock returns a file block with a hosted attachment.
func FileBlock(id, url string, exp time.Time) *content.Block {
	return &content.Block{ID: id, Type: content.BlockFile, File: Hosted(url, exp)}
}
