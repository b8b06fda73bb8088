package content

// ExtractTargetBlocks walks the block tree depth-first and returns blocks of a given type,
// in document order. Children are searched as well.
func ExtractTargetBlocks(typ BlockType, blocks []*Block) []*Block {
	var out []*Block
	var walk func(blocks []*Block)
	walk = func(blocks []*Block) {
		for _, b := range blocks {
			if b == nil {
				continue
			}
			if b.Type == typ {
				out = append(out, b)
			}
			walk(b.Children)
		}
	}
	walk(blocks)
	return out
}

// BlockReferences collects references to hosted images and file attachments of the page blocks.
//
// Blocks that claim to carry a hosted asset but lack a usable URL are not references;
// they are only counted in malformed. External assets are neither.
func BlockReferences(page *Page, blocks []*Block) (refs []Reference, malformed int) {
	add := func(kind Kind, list []*Block) {
		for _, b := range list {
			a := b.Asset()
			if a == nil || !isHosted(a) {
				continue
			}
			r, ok := newReference(a, kind)
			if !ok {
				malformed++
				continue
			}
			r.Owner, r.OwnerKind, r.Slot, r.Page = b.ID, OwnerBlock, SlotBlock, page.Name()
			refs = append(refs, r)
		}
	}
	add(KindImage, ExtractTargetBlocks(BlockImage, blocks))
	add(KindFile, ExtractTargetBlocks(BlockFile, blocks))
	return refs, malformed
}

// PageReferences collects references to hosted page-level images: the cover, the icon and
// the featured image.
func PageReferences(page *Page) (refs []Reference, malformed int) {
	if page == nil {
		return nil, 0
	}
	for _, s := range []Slot{SlotCover, SlotIcon, SlotFeatured} {
		a := page.slot(s)
		if !isHosted(a) {
			continue
		}
		r, ok := newReference(a, KindImage)
		if !ok {
			malformed++
			continue
		}
		r.Owner, r.OwnerKind, r.Slot, r.Page = page.ID, OwnerPage, s, page.Name()
		refs = append(refs, r)
	}
	return refs, malformed
}
