// Package assethttp exposes the asset index and the corpus to the rendering stage over HTTP.
package assethttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dennwc/assetcache"
	"github.com/dennwc/assetcache/logging"
	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

const (
	// HeaderSHA256 carries the content digest of a served asset.
	HeaderSHA256 = "X-Asset-SHA256"
	// HeaderKey carries the key of a served asset.
	HeaderKey = "X-Asset-Key"
)

// NewServer creates a handler for a given URL path prefix. It serves:
//
//	GET /resolve?url=<asset url>      local asset description as JSON
//	GET /assets                       all assets, one JSON object per line
//	GET|HEAD /assets/<container>/<file> asset content
func NewServer(idx *assetcache.Index, st storage.Storage, urlPref string, log *slog.Logger) http.Handler {
	urlPref = strings.TrimSuffix(urlPref, "/")
	return &server{idx: idx, st: st, pref: urlPref, log: logging.NewComponentLogger(log, "http")}
}

type server struct {
	idx  *assetcache.Index
	st   storage.Storage
	pref string
	log  *slog.Logger
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.EscapedPath(), s.pref)
	path = strings.Trim(path, "/")
	sub := strings.SplitN(path, "/", 2)

	switch sub[0] {
	case "resolve":
		if len(sub) != 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.serveResolve(w, r)
		return
	case "assets":
		if len(sub) == 1 {
			s.serveList(w, r)
			return
		}
		key, err := parseKey(sub[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.serveAsset(w, r, key)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// parseKey parses an escaped <container>/<file> path.
func parseKey(p string) (types.Key, error) {
	dir, file, ok := strings.Cut(p, "/")
	if !ok {
		return types.Key{}, fmt.Errorf("%w: not a key: %q", types.ErrMalformedReference, p)
	}
	name, err := url.PathUnescape(file)
	if err != nil {
		return types.Key{}, fmt.Errorf("%w: %v", types.ErrMalformedReference, err)
	}
	return types.NewKey(dir, name)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *server) serveResolve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("url parameter is required"))
		return
	}
	a := s.idx.Resolve(raw)
	if a == nil {
		writeError(w, http.StatusNotFound, errors.New("asset is not materialized"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *server) serveList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, key := range s.idx.Keys() {
		if err := enc.Encode(s.idx.Lookup(key)); err != nil {
			return // client is gone
		}
	}
}

func setHeaders(w http.ResponseWriter, info storage.Info) {
	h := w.Header()
	h.Set("Content-Length", strconv.FormatUint(info.Size, 10))
	h.Set(HeaderKey, info.Key.String())
	if ct := info.Meta.ContentType; ct != "" {
		h.Set("Content-Type", ct)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	if d := info.Meta.SHA256; !d.Zero() {
		h.Set(HeaderSHA256, d.String())
		h.Set("ETag", strconv.Quote(d.String()))
	}
	if !info.ModTime.IsZero() {
		h.Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	}
}

func notModified(r *http.Request, info storage.Info) bool {
	if info.Meta.SHA256.Zero() {
		return false
	}
	inm := r.Header.Get("If-None-Match")
	return inm != "" && inm == strconv.Quote(info.Meta.SHA256.String())
}

func (s *server) serveAsset(w http.ResponseWriter, r *http.Request, key types.Key) {
	switch r.Method {
	case http.MethodHead:
		info, err := s.st.Stat(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		} else if err != nil {
			s.log.Error("stat failed", logging.String(logging.FieldKey, key.String()), logging.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		setHeaders(w, info)
		return
	case http.MethodGet:
		rc, info, err := s.st.Fetch(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		} else if err != nil {
			s.log.Error("fetch failed", logging.String(logging.FieldKey, key.String()), logging.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		defer rc.Close()
		if notModified(r, info) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		setHeaders(w, info)
		_, _ = io.Copy(w, rc)
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}
