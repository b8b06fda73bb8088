package assethttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dennwc/assetcache"
	"github.com/dennwc/assetcache/storage"
	"github.com/dennwc/assetcache/types"
)

// NewClient creates a client for an asset server with a given base address.
//
// Example:
//
//	NewClient("http://localhost:8080/assetcache")
func NewClient(addr string) *Client {
	addr = strings.TrimSuffix(addr, "/")
	return &Client{
		base: addr,
		cli:  http.DefaultClient,
	}
}

// Client resolves asset URLs on a remote asset server.
type Client struct {
	cli  *http.Client
	base string
}

// SetHTTPClient allows to set a custom HTTP client that will be used to send requests.
func (c *Client) SetHTTPClient(cli *http.Client) {
	c.cli = cli
}

func (c *Client) assetURL(key types.Key) string {
	return c.base + "/assets/" + key.Dir() + "/" + url.PathEscape(key.Name())
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, storage.ErrNotFound
	}
	defer resp.Body.Close()
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return nil, fmt.Errorf("status: %v", resp.Status)
}

// Resolve returns the local asset for a remote asset URL. It returns storage.ErrNotFound
// if the asset is not materialized.
func (c *Client) Resolve(ctx context.Context, raw string) (*assetcache.LocalAsset, error) {
	resp, err := c.get(ctx, c.base+"/resolve?url="+url.QueryEscape(raw))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var a assetcache.LocalAsset
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Fetch opens the content of the asset.
func (c *Client) Fetch(ctx context.Context, key types.Key) (io.ReadCloser, error) {
	resp, err := c.get(ctx, c.assetURL(key))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// List returns all assets known to the server.
func (c *Client) List(ctx context.Context) ([]assetcache.LocalAsset, error) {
	resp, err := c.get(ctx, c.base+"/assets")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out []assetcache.LocalAsset
	dec := json.NewDecoder(resp.Body)
	for {
		var a assetcache.LocalAsset
		if err := dec.Decode(&a); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, a)
	}
}
