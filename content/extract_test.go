package content_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dennwc/assetcache/content"
	"github.com/dennwc/assetcache/content/contenttest"
)

var future = time.Now().Add(time.Hour)

func TestExtractTargetBlocks(t *testing.T) {
	img1 := contenttest.ImageBlock("i1", "https://cdn.example/a/1.png", future)
	img2 := contenttest.ImageBlock("i2", "https://cdn.example/b/2.png", future)
	blocks := []*content.Block{
		{ID: "p1", Type: content.BlockParagraph},
		img1,
		{ID: "cl", Type: content.BlockColumnList, Children: []*content.Block{
			{ID: "c1", Type: content.BlockColumn, Children: []*content.Block{img2}},
		}},
		nil,
	}
	got := content.ExtractTargetBlocks(content.BlockImage, blocks)
	require.Equal(t, []*content.Block{img1, img2}, got)

	require.Empty(t, content.ExtractTargetBlocks(content.BlockVideo, blocks))
	require.Empty(t, content.ExtractTargetBlocks(content.BlockImage, nil))
}

func TestBlockReferences(t *testing.T) {
	page := &content.Page{ID: "page", Slug: "hello"}
	blocks := []*content.Block{
		contenttest.FileBlock("f1", "https://cdn.example/d/doc.pdf?sig=1", future),
		contenttest.ImageBlock("i1", "https://cdn.example/a/1.png?sig=1", future),
		// external images are not candidates
		{ID: "e1", Type: content.BlockImage, Image: &content.Asset{
			Type: content.AssetExternal, External: &content.External{URL: "https://elsewhere/x.png"},
		}},
		// hosted, but malformed
		{ID: "m1", Type: content.BlockImage, Image: &content.Asset{Type: content.AssetHosted}},
		contenttest.ImageBlock("m2", "", future),
		contenttest.ImageBlock("m3", "https://cdn.example/flat.png", future),
		// no payload at all
		{ID: "m4", Type: content.BlockImage},
	}
	refs, malformed := content.BlockReferences(page, blocks)
	require.Equal(t, 3, malformed)
	require.Len(t, refs, 2)

	// images first, then files
	require.Equal(t, "i1", refs[0].Owner)
	require.Equal(t, content.KindImage, refs[0].Kind)
	require.Equal(t, content.OwnerBlock, refs[0].OwnerKind)
	require.Equal(t, "hello", refs[0].Page)
	require.Equal(t, "f1", refs[1].Owner)
	require.Equal(t, content.KindFile, refs[1].Kind)

	k, err := refs[1].Key()
	require.NoError(t, err)
	require.Equal(t, "d/doc.pdf", k.String())
}

func TestPageReferences(t *testing.T) {
	page := &content.Page{
		ID:            "page",
		Cover:         contenttest.Hosted("https://cdn.example/c/cover.jpg", future),
		Icon:          &content.Asset{Type: content.AssetEmoji, Emoji: "x"},
		FeaturedImage: &content.Asset{Type: content.AssetHosted, File: &content.File{}},
	}
	refs, malformed := content.PageReferences(page)
	require.Equal(t, 1, malformed)
	require.Len(t, refs, 1)
	require.Equal(t, content.SlotCover, refs[0].Slot)
	require.Equal(t, content.OwnerPage, refs[0].OwnerKind)
	require.Equal(t, "page", refs[0].Page)

	refs, malformed = content.PageReferences(nil)
	require.Empty(t, refs)
	require.Zero(t, malformed)
}

func TestReferenceExpired(t *testing.T) {
	now := time.Now()
	r := content.Reference{Expiry: now.Add(time.Minute)}
	require.False(t, r.Expired(now))
	require.True(t, r.Expired(now.Add(time.Minute)))
	require.True(t, content.Reference{}.Expired(now))
}

func TestReferenceRefresh(t *testing.T) {
	page := &content.Page{ID: "page", Slug: "s"}
	b := contenttest.ImageBlock("i1", "https://cdn.example/a/1.png?sig=old", time.Now().Add(-time.Hour))
	refs, _ := content.BlockReferences(page, []*content.Block{b})
	require.Len(t, refs, 1)
	old := refs[0]

	nb := contenttest.ImageBlock("i1", "https://cdn.example/a/1.png?sig=new", future)
	nr, ok := old.RefreshFromBlock(nb)
	require.True(t, ok)
	require.Equal(t, "sig=new", nr.URL.RawQuery)
	require.Equal(t, old.Owner, nr.Owner)
	require.Equal(t, old.Page, nr.Page)
	require.Equal(t, "sig=old", old.URL.RawQuery)

	_, ok = old.RefreshFromBlock(&content.Block{ID: "i1", Type: content.BlockImage})
	require.False(t, ok)
	_, ok = old.RefreshFromPage(page)
	require.False(t, ok)

	page.Cover = contenttest.Hosted("https://cdn.example/c/cover.jpg?sig=1", time.Now().Add(-time.Hour))
	prefs, _ := content.PageReferences(page)
	require.Len(t, prefs, 1)
	np := &content.Page{ID: "page", Cover: contenttest.Hosted("https://cdn.example/c/cover.jpg?sig=2", future)}
	nr, ok = prefs[0].RefreshFromPage(np)
	require.True(t, ok)
	require.Equal(t, "sig=2", nr.URL.RawQuery)
	require.Equal(t, content.SlotCover, nr.Slot)
}
