package storagetest

import (
	"testing"

	"github.com/dennwc/assetcache/storage"
)

func TestMemory(t *testing.T) {
	RunTests(t, func(_ testing.TB) (storage.Storage, func()) {
		return storage.NewInMemory(), func() {}
	})
}
