// Package sku generates deterministic, content-addressed SKUs for listings
// created from catalog data. The format is versioned so historical SKUs
// remain parseable if the layout ever changes.
package sku

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix identifies version 1 of the SKU format:
//
//	RP1-<owner hash, 8 hex chars>[-<catalog id>]-<content hash, 12 hex chars>
//
// The catalog-id segment makes seller-side identification possible without a
// second index; the content hash keeps the SKU unique when it is absent.
const Prefix = "RP1"

// Generate builds the SKU for a listing owned by ownerID. catalogID may be
// empty. Identical inputs always yield the identical string, which is what
// makes catalog-driven listing creation idempotent.
func Generate(ownerID, catalogID, contentFingerprint string) string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteByte('-')
	b.WriteString(shortHash(ownerID, 8))
	if catalogID != "" {
		b.WriteByte('-')
		b.WriteString(sanitize(catalogID))
	}
	b.WriteByte('-')
	b.WriteString(shortHash(contentFingerprint, 12))
	return b.String()
}

// IsVersioned reports whether s carries a known SKU format prefix.
func IsVersioned(s string) bool {
	return strings.HasPrefix(s, Prefix+"-")
}

func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

// sanitize strips characters that marketplaces commonly reject in SKUs.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_':
			return r
		default:
			return -1
		}
	}, s)
}
