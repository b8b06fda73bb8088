package xattr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	type meta struct {
		Width int `json:"w"`
	}
	err = SetJSONF(f, "test.meta", meta{Width: 10})
	if err == ErrNotSupported {
		t.Skip("xattrs are not supported by the filesystem")
	}
	require.NoError(t, err)

	var m meta
	require.NoError(t, GetJSON(path, "test.meta", &m))
	require.Equal(t, 10, m.Width)

	_, err = Get(path, "test.missing")
	require.Equal(t, ErrNotSet, err)
}
