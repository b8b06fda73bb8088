package assetcache

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/dennwc/assetcache/types"
)

var (
	// ErrUnresolvable is matched by errors returned when an expired reference cannot be refreshed.
	ErrUnresolvable = errors.New("asset reference cannot be resolved")
	// ErrDownloadFailed is matched by errors returned when an asset cannot be materialized.
	ErrDownloadFailed = errors.New("asset download failed")

	errAssetMissing = errors.New("refreshed owner carries no asset")
)

// UnresolvableError is returned when the owner of an expired reference cannot be fetched,
// or it no longer carries the asset.
type UnresolvableError struct {
	Owner string
	Page  string
	Err   error
}

func (e *UnresolvableError) Error() string {
	if e.Page != "" {
		return fmt.Sprintf("cannot resolve asset of %s on page %q: %v", e.Owner, e.Page, e.Err)
	}
	return fmt.Sprintf("cannot resolve asset of %s: %v", e.Owner, e.Err)
}

func (e *UnresolvableError) Unwrap() error { return e.Err }

func (e *UnresolvableError) Is(err error) bool { return err == ErrUnresolvable }

// DownloadError is returned when an asset cannot be downloaded or stored.
// URL never includes the query string.
type DownloadError struct {
	Key    types.Key
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("download %s (%s): status %d", e.Key, e.URL, e.Status)
	case e.URL != "":
		return fmt.Sprintf("download %s (%s): %v", e.Key, e.URL, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.Key, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Is(err error) bool { return err == ErrDownloadFailed }

// redact returns the URL without the query string and fragment.
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	c.User = nil
	return c.String()
}
