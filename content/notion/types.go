package notion

import (
	"strings"
	"time"

	"github.com/dennwc/assetcache/content"
)

// Property names of the site database.
const (
	propSlug          = "Slug"
	propFeaturedImage = "FeaturedImage"
)

type list[T any] struct {
	Results    []T     `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

func plainText(rt []richText) string {
	var sb strings.Builder
	for _, t := range rt {
		sb.WriteString(t.PlainText)
	}
	return sb.String()
}

// fileObject is a file, image, cover or icon payload.
type fileObject struct {
	Type     string            `json:"type"`
	Name     string            `json:"name,omitempty"`
	File     *content.File     `json:"file,omitempty"`
	External *content.External `json:"external,omitempty"`
	Emoji    string            `json:"emoji,omitempty"`
	Caption  []richText        `json:"caption,omitempty"`
}

func (f *fileObject) asset() *content.Asset {
	if f == nil {
		return nil
	}
	return &content.Asset{
		Type:     f.Type,
		File:     f.File,
		External: f.External,
		Emoji:    f.Emoji,
		Caption:  plainText(f.Caption),
	}
}

type block struct {
	ID          string            `json:"id"`
	Type        content.BlockType `json:"type"`
	HasChildren bool              `json:"has_children"`
	InTrash     bool              `json:"in_trash"`
	Archived    bool              `json:"archived"`
	Image       *fileObject       `json:"image,omitempty"`
	File        *fileObject       `json:"file,omitempty"`
}

// ownsChildren reports if children belong to the block. Child pages are separate pages.
func (b *block) ownsChildren() bool {
	return b.HasChildren && b.Type != "child_page" && b.Type != "child_database"
}

func (b *block) convert() *content.Block {
	return &content.Block{
		ID:          b.ID,
		Type:        b.Type,
		HasChildren: b.HasChildren,
		Image:       b.Image.asset(),
		File:        b.File.asset(),
	}
}

type property struct {
	Type     string       `json:"type"`
	Title    []richText   `json:"title,omitempty"`
	RichText []richText   `json:"rich_text,omitempty"`
	Files    []fileObject `json:"files,omitempty"`
}

type page struct {
	ID             string              `json:"id"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Archived       bool                `json:"archived"`
	InTrash        bool                `json:"in_trash"`
	Cover          *fileObject         `json:"cover"`
	Icon           *fileObject         `json:"icon"`
	Properties     map[string]property `json:"properties"`
}

func (p *page) convert() *content.Page {
	out := &content.Page{
		ID:         p.ID,
		LastEdited: p.LastEditedTime,
		Cover:      p.Cover.asset(),
		Icon:       p.Icon.asset(),
	}
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			out.Title = plainText(prop.Title)
			break
		}
	}
	if prop, ok := p.Properties[propSlug]; ok {
		out.Slug = plainText(prop.RichText)
	}
	if prop, ok := p.Properties[propFeaturedImage]; ok && len(prop.Files) != 0 {
		out.FeaturedImage = prop.Files[0].asset()
	}
	return out
}
