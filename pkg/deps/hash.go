package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Markers used by the hash classification. Detection is case-insensitive so
// identities differing only in marker case land in the same equivalence
// class, but the canonical string preserves the original name, version and
// URL case (registry names are case-significant).
const (
	repoMarker    = "github:"
	archiveMarker = "__archiveurl="
)

// Hash computes the canonical deduplication key for an identity.
//
// Classification precedence, first match wins:
//
//  1. Repository-addressed: the name starts with "github:" or the
//     resolution contains "github:". Hashes "github:<name>/<resolution>" so
//     the same repo at different refs stays distinct.
//  2. Archive-addressed: the resolution embeds an "__archiveUrl=" marker.
//     Hashes "url:<archive-url>" alone, so two identities pointing at the
//     same tarball deduplicate even under different display names.
//  3. Registry-addressed default: hashes "npm:<name>@<version>".
//
// The function is pure: no I/O, no shared state, safe from any goroutine.
func Hash(id Identity) string {
	lowerName := strings.ToLower(id.Name)
	lowerRes := strings.ToLower(id.Resolution)

	var key string
	switch {
	case strings.HasPrefix(lowerName, repoMarker) || strings.Contains(lowerRes, repoMarker):
		key = "github:" + id.Name + "/" + id.Resolution
	case strings.Contains(lowerRes, archiveMarker):
		idx := strings.Index(lowerRes, archiveMarker)
		key = "url:" + id.Resolution[idx+len(archiveMarker):]
	default:
		key = "npm:" + id.Name + "@" + id.Version
	}

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// FallbackChecksum derives a stable checksum for identities whose lockfile
// entry carries none, from the registry, name segments and version.
func FallbackChecksum(id Identity) string {
	registry := "npm"
	lowerName := strings.ToLower(id.Name)
	lowerRes := strings.ToLower(id.Resolution)
	if strings.HasPrefix(lowerName, repoMarker) || strings.Contains(lowerRes, repoMarker) {
		registry = "github"
	}

	parts := []string{registry}
	parts = append(parts, strings.Split(id.Name, "/")...)
	parts = append(parts, id.Version)

	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return "fallback:" + hex.EncodeToString(sum[:])
}
