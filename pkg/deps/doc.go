// Package deps defines the package identity and record model shared by the
// lockfile parsers, the resolution engine, and the registry clients.
//
// # Identity and Record
//
// An [Identity] is the immutable tuple read from a lockfile (or extracted
// from a resolved record's dependency list): name, version, resolution
// string, and an optional checksum. A [Record] is the outcome of resolving
// an identity against its registry: license information, URLs, diagnostic
// text, and the list of further dependency identities discovered along the
// way.
//
// # Canonical hashing
//
// [Hash] maps every identity to a deterministic SHA-256 key. Two identities
// with the same hash are the same node: the hash addresses the record cache
// and backs the engine's at-most-once processing guarantee. The
// classification rules (repository-addressed, archive-addressed,
// registry-addressed) are documented on [Hash] and must stay stable, since
// changing them changes the deduplication equivalence classes and silently
// invalidates every existing cache entry.
package deps
