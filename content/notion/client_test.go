package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennwc/assetcache/content"
)

const (
	testToken = "secret_token"
	testDB    = "db1"
)

// fakeAPI serves a small Notion workspace.
type fakeAPI struct {
	t *testing.T

	mu        sync.Mutex
	limitOnce map[string]bool
	requests  map[string]int
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Bearer "+testToken, r.Header.Get("Authorization"))
	assert.Equal(f.t, APIVersion, r.Header.Get("Notion-Version"))

	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests[key]++
	limited := f.limitOnce[key]
	delete(f.limitOnce, key)
	f.mu.Unlock()

	if limited {
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"object":"error","code":"rate_limited","message":"slow down"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch key {
	case "POST /v1/databases/" + testDB + "/query":
		var req struct {
			StartCursor string `json:"start_cursor"`
			PageSize    int    `json:"page_size"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, pageSize, req.PageSize)
		if req.StartCursor == "" {
			fmt.Fprint(w, `{"results":[`+pageJSON+`],"has_more":true,"next_cursor":"c2"}`)
		} else {
			assert.Equal(f.t, "c2", req.StartCursor)
			fmt.Fprint(w, `{"results":[
				{"id":"p2","properties":{"Name":{"type":"title","title":[{"plain_text":"Two"}]}}},
				{"id":"p3","archived":true,"properties":{}}
			],"has_more":false,"next_cursor":null}`)
		}
	case "GET /v1/pages/p1":
		fmt.Fprint(w, pageJSON)
	case "GET /v1/blocks/p1/children":
		if r.URL.Query().Get("start_cursor") == "" {
			fmt.Fprint(w, `{"results":[
				{"id":"b1","type":"paragraph","has_children":false},
				{"id":"t1","type":"toggle","has_children":true},
				{"id":"cp","type":"child_page","has_children":true}
			],"has_more":true,"next_cursor":"n1"}`)
		} else {
			fmt.Fprint(w, `{"results":[`+fileBlockJSON+`],"has_more":false}`)
		}
	case "GET /v1/blocks/t1/children":
		fmt.Fprint(w, `{"results":[`+imageBlockJSON+`],"has_more":false}`)
	case "GET /v1/blocks/i1":
		fmt.Fprint(w, imageBlockJSON)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"object":"error","code":"object_not_found","message":"Could not find block"}`)
	}
}

const pageJSON = `{
	"id":"p1",
	"last_edited_time":"2024-03-01T10:00:00.000Z",
	"cover":{"type":"file","file":{"url":"https://s3.example/c1/cover.jpg?sig=1","expiry_time":"2024-03-01T11:00:00.000Z"}},
	"icon":{"type":"emoji","emoji":"🚀"},
	"properties":{
		"Page":{"type":"title","title":[{"plain_text":"Hello "},{"plain_text":"world"}]},
		"Slug":{"type":"rich_text","rich_text":[{"plain_text":"hello-world"}]},
		"FeaturedImage":{"type":"files","files":[{"type":"file","name":"f.png","file":{"url":"https://s3.example/c2/f.png?sig=1","expiry_time":"2024-03-01T11:00:00.000Z"}}]}
	}
}`

const imageBlockJSON = `{"id":"i1","type":"image","has_children":false,"image":{
	"type":"file","caption":[{"plain_text":"diagram"}],
	"file":{"url":"https://s3.example/c3/diagram.png?sig=1","expiry_time":"2024-03-01T11:00:00.000Z"}}}`

const fileBlockJSON = `{"id":"f1","type":"file","has_children":false,"file":{
	"type":"external","external":{"url":"https://elsewhere.example/doc.pdf"}}}`

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	api := &fakeAPI{t: t, limitOnce: make(map[string]bool), requests: make(map[string]int)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		Token:             testToken,
		DatabaseID:        testDB,
		BaseURL:           srv.URL + "/v1/",
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return c, api
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{DatabaseID: "x"})
	require.Error(t, err)
	_, err = New(Config{Token: "x"})
	require.Error(t, err)
}

func TestPages(t *testing.T) {
	c, api := newTestClient(t)
	pages, err := c.Pages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, 2, api.count("POST /v1/databases/"+testDB+"/query"))

	p := pages[0]
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "hello-world", p.Slug)
	require.Equal(t, "Hello world", p.Title)
	require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), p.LastEdited.UTC())
	require.NotNil(t, p.Cover)
	require.Equal(t, content.AssetHosted, p.Cover.Type)
	require.Equal(t, "https://s3.example/c1/cover.jpg?sig=1", p.Cover.File.URL)
	require.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), p.Cover.File.ExpiryTime.UTC())
	require.Equal(t, content.AssetEmoji, p.Icon.Type)
	require.Equal(t, "https://s3.example/c2/f.png?sig=1", p.FeaturedImage.File.URL)

	require.Equal(t, "p2", pages[1].ID)
	require.Equal(t, "Two", pages[1].Title)

	refs, malformed := content.PageReferences(p)
	require.Zero(t, malformed)
	require.Len(t, refs, 2)
}

func TestBlockTree(t *testing.T) {
	c, api := newTestClient(t)
	blocks, err := c.BlockTree(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 4)
	require.Equal(t, []string{"b1", "t1", "cp", "f1"}, []string{blocks[0].ID, blocks[1].ID, blocks[2].ID, blocks[3].ID})

	require.Len(t, blocks[1].Children, 1)
	img := blocks[1].Children[0]
	require.Equal(t, content.BlockImage, img.Type)
	require.Equal(t, "diagram", img.Image.Caption)
	require.Empty(t, blocks[2].Children)
	require.Zero(t, api.count("GET /v1/blocks/cp/children"))

	refs, malformed := content.BlockReferences(&content.Page{ID: "p1"}, blocks)
	require.Zero(t, malformed)
	require.Len(t, refs, 1)
	require.Equal(t, "i1", refs[0].Owner)
}

func TestBlockAndPage(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	b, err := c.Block(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, "https://s3.example/c3/diagram.png?sig=1", b.Image.File.URL)

	p, err := c.Page(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "hello-world", p.Slug)

	_, err = c.Block(ctx, "missing")
	require.True(t, errors.Is(err, content.ErrNotFound))
	var aerr *APIError
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, "object_not_found", aerr.Code)

	_, err = c.Page(ctx, "missing")
	require.True(t, errors.Is(err, content.ErrNotFound))
}

func TestRateLimitRetry(t *testing.T) {
	c, api := newTestClient(t)
	api.mu.Lock()
	api.limitOnce["GET /v1/blocks/i1"] = true
	api.mu.Unlock()

	b, err := c.Block(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, "i1", b.ID)
	require.Equal(t, 2, api.count("GET /v1/blocks/i1"))
}
