package content

import (
	"fmt"
	"net/url"
	"time"

	"github.com/dennwc/assetcache/types"
)

// Kind is a kind of the downloadable asset.
type Kind string

const (
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// OwnerKind tells which content node carries the asset.
type OwnerKind int

const (
	OwnerBlock OwnerKind = iota
	OwnerPage
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerBlock:
		return "block"
	case OwnerPage:
		return "page"
	}
	return fmt.Sprintf("OwnerKind(%d)", int(k))
}

// Slot is the field of the owner that carries the asset.
type Slot string

const (
	SlotBlock    Slot = "block"
	SlotCover    Slot = "cover"
	SlotIcon     Slot = "icon"
	SlotFeatured Slot = "featured_image"
)

// Reference points to a single downloadable asset as it exists in the content source.
//
// URL is only valid while now is before Expiry. Once expired, the reference must be replaced by
// re-fetching the owner; references are never updated in place.
type Reference struct {
	Owner     string
	OwnerKind OwnerKind
	Slot      Slot
	Kind      Kind
	URL       *url.URL
	Expiry    time.Time
	// Page is a slug (or id) of the page that carried the reference; used for log context.
	Page string
}

// Expired reports if the URL of the reference can no longer be used at the given time.
// References without an expiry time are considered expired.
func (r Reference) Expired(now time.Time) bool {
	return !now.Before(r.Expiry)
}

// Key derives a local asset key from the reference URL.
func (r Reference) Key() (types.Key, error) {
	return types.KeyFromURL(r.URL)
}

func (r Reference) String() string {
	u := ""
	if r.URL != nil {
		c := *r.URL
		c.RawQuery = ""
		u = c.String()
	}
	return fmt.Sprintf("%s %s/%s (%s)", r.Kind, r.OwnerKind, r.Owner, u)
}

// RefreshFromBlock extracts a new reference for the same slot from a re-fetched block.
func (r Reference) RefreshFromBlock(b *Block) (Reference, bool) {
	if b == nil || r.OwnerKind != OwnerBlock {
		return Reference{}, false
	}
	nr, ok := newReference(b.Asset(), r.Kind)
	if !ok {
		return Reference{}, false
	}
	nr.Owner, nr.OwnerKind, nr.Slot, nr.Page = r.Owner, r.OwnerKind, r.Slot, r.Page
	return nr, true
}

// RefreshFromPage extracts a new reference for the same slot from a re-fetched page.
func (r Reference) RefreshFromPage(p *Page) (Reference, bool) {
	if p == nil || r.OwnerKind != OwnerPage {
		return Reference{}, false
	}
	nr, ok := newReference(p.slot(r.Slot), r.Kind)
	if !ok {
		return Reference{}, false
	}
	nr.Owner, nr.OwnerKind, nr.Slot, nr.Page = r.Owner, r.OwnerKind, r.Slot, r.Page
	return nr, true
}

func (p *Page) slot(s Slot) *Asset {
	switch s {
	case SlotCover:
		return p.Cover
	case SlotIcon:
		return p.Icon
	case SlotFeatured:
		return p.FeaturedImage
	}
	return nil
}

// isHosted reports if the asset claims to be hosted by the content source.
func isHosted(a *Asset) bool {
	return a != nil && a.Type == AssetHosted
}

// newReference builds a reference from a hosted asset. It returns false if required fields
// are missing or invalid.
func newReference(a *Asset, kind Kind) (Reference, bool) {
	if !isHosted(a) || a.File == nil || a.File.URL == "" {
		return Reference{}, false
	}
	u, err := url.Parse(a.File.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Reference{}, false
	}
	if _, err := types.KeyFromURL(u); err != nil {
		return Reference{}, false
	}
	return Reference{
		Kind:   kind,
		URL:    u,
		Expiry: a.File.ExpiryTime,
	}, true
}
