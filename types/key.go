package types

import (
	"encoding"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrMalformedReference is returned when a URL or a path cannot be converted to a Key.
var ErrMalformedReference = errors.New("malformed asset reference")

var (
	_ encoding.TextMarshaler   = Key{}
	_ encoding.TextUnmarshaler = (*Key)(nil)
)

// Key is a stable identifier of a materialized asset.
//
// It is derived from the last two segments of the asset URL path: a container id and a file name.
// Query parameters (signatures, expiry) never participate, so two signed URLs for the same file
// always map to the same key.
type Key struct {
	dir  string
	name string
}

// NewKey validates a container id and a (decoded) file name and returns a key for them.
//
// Containers starting with a dot are reserved for corpus service data and are rejected.
func NewKey(dir, name string) (Key, error) {
	if err := checkSegment(dir); err != nil {
		return Key{}, fmt.Errorf("%w: container %q: %v", ErrMalformedReference, dir, err)
	} else if strings.HasPrefix(dir, ".") {
		return Key{}, fmt.Errorf("%w: container %q: hidden", ErrMalformedReference, dir)
	}
	if err := checkSegment(name); err != nil {
		return Key{}, fmt.Errorf("%w: file %q: %v", ErrMalformedReference, name, err)
	}
	return Key{dir: dir, name: name}, nil
}

func MustKey(dir, name string) Key {
	k, err := NewKey(dir, name)
	if err != nil {
		panic(err)
	}
	return k
}

func checkSegment(s string) error {
	switch {
	case s == "":
		return errors.New("empty")
	case s == "." || s == "..":
		return errors.New("relative segment")
	case strings.ContainsAny(s, "/\\\x00"):
		return errors.New("contains a separator")
	}
	return nil
}

// KeyFromURL derives a key from the URL path. The container id is used as it appears in the URL,
// while the file name is percent-decoded.
func KeyFromURL(u *url.URL) (Key, error) {
	if u == nil {
		return Key{}, fmt.Errorf("%w: nil url", ErrMalformedReference)
	}
	segs := strings.Split(u.EscapedPath(), "/")
	if len(segs) < 2 {
		return Key{}, fmt.Errorf("%w: %q has less than two path segments", ErrMalformedReference, u.Path)
	}
	dir, file := segs[len(segs)-2], segs[len(segs)-1]
	name, err := url.PathUnescape(file)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrMalformedReference, err)
	}
	return NewKey(dir, name)
}

// ParseURLKey parses a raw URL and derives a key from it.
func ParseURLKey(s string) (Key, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrMalformedReference, err)
	}
	return KeyFromURL(u)
}

// KeyFromPath converts a slash-separated storage path back to a key.
// Only the last two elements of the path are considered, so the corpus prefix may be included.
func KeyFromPath(p string) (Key, error) {
	p = JoinPath(p)
	dir, name := path.Split(p)
	dir = path.Base(strings.TrimSuffix(dir, "/"))
	return NewKey(dir, name)
}

// ParseKey parses the string form of a key.
func ParseKey(s string) (Key, error) {
	i := strings.Index(s, "/")
	if i < 0 {
		return Key{}, fmt.Errorf("%w: not a key: %q", ErrMalformedReference, s)
	}
	return NewKey(s[:i], s[i+1:])
}

func (k Key) Zero() bool {
	return k == Key{}
}

// Dir returns the container id of the key.
func (k Key) Dir() string {
	return k.dir
}

// Name returns the decoded file name of the key.
func (k Key) Name() string {
	return k.name
}

// Ext returns a lower-case file extension, including the dot.
func (k Key) Ext() string {
	return strings.ToLower(path.Ext(k.name))
}

// String returns the storage path of the key, relative to the corpus root.
func (k Key) String() string {
	if k.Zero() {
		return ""
	}
	return JoinPath(k.dir, k.name)
}

func (k Key) GoString() string {
	return fmt.Sprintf("types.MustKey(%q, %q)", k.dir, k.name)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(s []byte) error {
	nk, err := ParseKey(string(s))
	if err != nil {
		return err
	}
	*k = nk
	return nil
}
