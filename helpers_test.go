package assetcache_test

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	past   = time.Now().Add(-time.Hour)
	future = time.Now().Add(time.Hour)
)

// cdn is a fake asset host that counts requests by path and by full request URI.
type cdn struct {
	t   testing.TB
	srv *httptest.Server

	mu     sync.Mutex
	files  map[string][]byte
	status map[string]int
	byPath map[string]int
	byURI  map[string]int
	delay  time.Duration

	active inflight
}

// inflight tracks the number of concurrent calls and its maximum.
type inflight struct {
	cur  int32
	peak int32
}

func (f *inflight) enter() {
	n := atomic.AddInt32(&f.cur, 1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			return
		}
	}
}

func (f *inflight) exit() {
	atomic.AddInt32(&f.cur, -1)
}

func (f *inflight) max() int {
	return int(atomic.LoadInt32(&f.peak))
}

func newCDN(t testing.TB) *cdn {
	c := &cdn{
		t:      t,
		files:  make(map[string][]byte),
		status: make(map[string]int),
		byPath: make(map[string]int),
		byURI:  make(map[string]int),
	}
	c.srv = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *cdn) serve(w http.ResponseWriter, r *http.Request) {
	c.active.enter()
	defer c.active.exit()
	c.mu.Lock()
	c.byPath[r.URL.Path]++
	c.byURI[r.URL.RequestURI()]++
	data, ok := c.files[r.URL.Path]
	status := c.status[r.URL.Path]
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// add registers a file served at the path.
func (c *cdn) add(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = data
}

func (c *cdn) fail(path string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[path] = status
}

func (c *cdn) url(path, sig string) string {
	return c.srv.URL + path + "?X-Amz-Signature=" + sig + "&X-Amz-Expires=3600"
}

func (c *cdn) pathHits(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byPath[path]
}

func (c *cdn) urlHits(path, sig string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byURI[path+"?X-Amz-Signature="+sig+"&X-Amz-Expires=3600"]
}

func (c *cdn) totalHits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.byPath {
		n += v
	}
	return n
}

// jpegBytes returns a JPEG whose frame header is preceded by pad maximum-size APP2 segments.
func jpegBytes(t testing.TB, w, h, pad int) []byte {
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil)
	require.NoError(t, err)
	data := buf.Bytes()

	out := append([]byte{}, data[:2]...)
	for i := 0; i < pad; i++ {
		out = append(out, 0xFF, 0xE2, 0xFF, 0xFF)
		out = append(out, make([]byte, 0xFFFF-2)...)
	}
	return append(out, data[2:]...)
}

func pngBytes(t testing.TB, w, h int) []byte {
	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)
	return buf.Bytes()
}
