package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dennwc/assetcache/content"
	"github.com/dennwc/assetcache/logging"
)

var _ content.Source = (*Client)(nil)

// Pages lists all pages of the database, following pagination.
func (c *Client) Pages(ctx context.Context) ([]*content.Page, error) {
	var (
		out    []*content.Page
		cursor string
	)
	for {
		req := map[string]any{"page_size": pageSize}
		if cursor != "" {
			req["start_cursor"] = cursor
		}
		var resp list[page]
		if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(c.database)+"/query", nil, req, &resp); err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}
		for i := range resp.Results {
			p := &resp.Results[i]
			if p.Archived || p.InTrash {
				continue
			}
			out = append(out, p.convert())
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}
	c.log.Debug("listed pages", logging.Int("pages", len(out)))
	return out, nil
}

// BlockTree returns all blocks of the page with their children.
func (c *Client) BlockTree(ctx context.Context, pageID string) ([]*content.Block, error) {
	return c.children(ctx, pageID)
}

func (c *Client) children(ctx context.Context, id string) ([]*content.Block, error) {
	var (
		out    []*content.Block
		cursor string
	)
	for {
		q := url.Values{"page_size": {strconv.Itoa(pageSize)}}
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		var resp list[block]
		if err := c.do(ctx, http.MethodGet, "/blocks/"+url.PathEscape(id)+"/children", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("block %s children: %w", id, err)
		}
		for i := range resp.Results {
			b := &resp.Results[i]
			cb := b.convert()
			if b.ownsChildren() {
				sub, err := c.children(ctx, b.ID)
				if err != nil {
					return nil, err
				}
				cb.Children = sub
			}
			out = append(out, cb)
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		cursor = *resp.NextCursor
	}
}

// Block fetches a single block without its children.
func (c *Client) Block(ctx context.Context, id string) (*content.Block, error) {
	var b block
	if err := c.do(ctx, http.MethodGet, "/blocks/"+url.PathEscape(id), nil, nil, &b); err != nil {
		return nil, fmt.Errorf("block %s: %w", id, err)
	}
	if b.Archived || b.InTrash {
		return nil, fmt.Errorf("block %s: archived: %w", id, content.ErrNotFound)
	}
	return b.convert(), nil
}

// Page fetches a single page.
func (c *Client) Page(ctx context.Context, id string) (*content.Page, error) {
	var p page
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, fmt.Errorf("page %s: %w", id, err)
	}
	if p.Archived || p.InTrash {
		return nil, fmt.Errorf("page %s: archived: %w", id, content.ErrNotFound)
	}
	return p.convert(), nil
}
