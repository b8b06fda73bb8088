package types

import "strings"

// JoinPath joins path segments with a single '/' separator.
// Empty segments are dropped, repeated separators are collapsed and the trailing separator is stripped.
// An empty result is reported as "/".
//
// Both key derivation and storage paths go through this function, so they always agree byte-for-byte.
func JoinPath(paths ...string) string {
	var b strings.Builder
	for _, p := range paths {
		if p == "" {
			continue
		}
		if b.Len() != 0 {
			b.WriteByte('/')
		}
		b.WriteString(p)
	}
	s := b.String()
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return "/"
	}
	return s
}
