// Package content describes pages and typed content blocks pulled from a remote content source,
// and extracts downloadable asset references from them.
package content

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Source when a page or a block no longer exists or is not accessible.
var ErrNotFound = errors.New("content: not found")

// Source is a remote content API.
type Source interface {
	// Pages lists all pages of the site.
	Pages(ctx context.Context) ([]*Page, error)
	// BlockTree returns top-level blocks of the page with their children populated.
	BlockTree(ctx context.Context, pageID string) ([]*Block, error)
	// Block fetches a single block. It is used to refresh expired asset URLs.
	Block(ctx context.Context, id string) (*Block, error)
	// Page fetches a single page. It is used to refresh expired page-level asset URLs.
	Page(ctx context.Context, id string) (*Page, error)
}

type BlockType string

const (
	BlockParagraph        BlockType = "paragraph"
	BlockHeading1         BlockType = "heading_1"
	BlockHeading2         BlockType = "heading_2"
	BlockHeading3         BlockType = "heading_3"
	BlockBulletedListItem BlockType = "bulleted_list_item"
	BlockNumberedListItem BlockType = "numbered_list_item"
	BlockToDo             BlockType = "to_do"
	BlockToggle           BlockType = "toggle"
	BlockQuote            BlockType = "quote"
	BlockCallout          BlockType = "callout"
	BlockCode             BlockType = "code"
	BlockImage            BlockType = "image"
	BlockFile             BlockType = "file"
	BlockVideo            BlockType = "video"
	BlockPDF              BlockType = "pdf"
	BlockBookmark         BlockType = "bookmark"
	BlockEmbed            BlockType = "embed"
	BlockDivider          BlockType = "divider"
	BlockColumnList       BlockType = "column_list"
	BlockColumn           BlockType = "column"
	BlockTable            BlockType = "table"
	BlockTableRow         BlockType = "table_row"
	BlockSyncedBlock      BlockType = "synced_block"
	BlockUnsupported      BlockType = "unsupported"
)

// Asset types as reported by the source.
const (
	AssetHosted   = "file"
	AssetExternal = "external"
	AssetEmoji    = "emoji"
)

// File is a file hosted by the content source. URL is signed and valid until ExpiryTime.
type File struct {
	URL        string    `json:"url"`
	ExpiryTime time.Time `json:"expiry_time"`
}

// External is a file hosted elsewhere. It is never downloaded.
type External struct {
	URL string `json:"url"`
}

// Asset is an image or file payload of a block or a page.
type Asset struct {
	Type     string    `json:"type"`
	File     *File     `json:"file,omitempty"`
	External *External `json:"external,omitempty"`
	Emoji    string    `json:"emoji,omitempty"`
	Caption  string    `json:"caption,omitempty"`
}

type Block struct {
	ID          string    `json:"id"`
	Type        BlockType `json:"type"`
	HasChildren bool      `json:"has_children,omitempty"`
	Image       *Asset    `json:"image,omitempty"`
	File        *Asset    `json:"file,omitempty"`
	Children    []*Block  `json:"children,omitempty"`
}

// Asset returns an image or file payload of the block, if any.
func (b *Block) Asset() *Asset {
	if b == nil {
		return nil
	}
	switch b.Type {
	case BlockImage:
		return b.Image
	case BlockFile:
		return b.File
	}
	if b.Image != nil {
		return b.Image
	}
	return b.File
}

type Page struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title,omitempty"`
	Cover         *Asset    `json:"cover,omitempty"`
	Icon          *Asset    `json:"icon,omitempty"`
	FeaturedImage *Asset    `json:"featured_image,omitempty"`
	LastEdited    time.Time `json:"last_edited_time,omitempty"`
}

// Name returns a human-readable page identifier for logs.
func (p *Page) Name() string {
	if p == nil {
		return ""
	}
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID
}
