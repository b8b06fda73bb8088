package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

const hashSha256Name = "sha256"

// Digest is a content hash of a materialized asset. It is informational only: assets are keyed by
// URL path, not by content.
type Digest struct {
	data [sha256.Size]byte
	set  bool
}

func NewHash() hash.Hash {
	return sha256.New()
}

func DigestOf(h hash.Hash) Digest {
	var d Digest
	_ = h.Sum(d.data[:0])
	d.set = true
	return d
}

func BytesDigest(p []byte) Digest {
	return Digest{data: sha256.Sum256(p), set: true}
}

func HashReader(r io.Reader) (Digest, uint64, error) {
	h := NewHash()
	n, err := io.Copy(h, r)
	return DigestOf(h), uint64(n), err
}

func ParseDigest(s string) (Digest, error) {
	i := strings.Index(s, ":")
	if i < 0 {
		return Digest{}, fmt.Errorf("not a digest: %q", s)
	}
	if name := s[:i]; name != hashSha256Name {
		return Digest{}, fmt.Errorf("unsupported digest type: %q", name)
	}
	data, err := hex.DecodeString(s[i+1:])
	if err != nil {
		return Digest{}, err
	}
	var d Digest
	if n := copy(d.data[:], data); n != sha256.Size || len(data) != sha256.Size {
		return Digest{}, fmt.Errorf("wrong size for %s digest: expected %d, got %d", hashSha256Name, sha256.Size, len(data))
	}
	d.set = true
	return d, nil
}

func (d Digest) Zero() bool {
	return !d.set
}

func (d Digest) String() string {
	if !d.set {
		return ""
	}
	return hashSha256Name + ":" + hex.EncodeToString(d.data[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(s []byte) error {
	if len(s) == 0 {
		*d = Digest{}
		return nil
	}
	nd, err := ParseDigest(string(s))
	if err != nil {
		return err
	}
	*d = nd
	return nil
}
