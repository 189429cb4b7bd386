package deps

import (
	"context"
	"strings"
)

// UnknownLicense marks a record whose license could not be determined.
// Records carrying it are eligible for re-resolution under retry mode.
const UnknownLicense = "UNKNOWN"

// localVersionMarker identifies workspace-local pseudo-packages in yarn
// lockfiles. They have no registry counterpart and are never resolved.
const localVersionMarker = "0.0.0-use.local"

// Identity identifies a package reference before resolution.
// It is immutable once created.
type Identity struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Resolution string `json:"resolution"`
	Checksum   string `json:"checksum,omitempty"`
}

// DisplayID returns the human-facing "name@version" identifier used for
// dependency-edge keys and tree output.
func (id Identity) DisplayID() string {
	return id.Name + "@" + id.Version
}

// Ignored reports whether the identity is a workspace-local pseudo-package
// that should be dropped silently instead of resolved.
func (id Identity) Ignored() bool {
	return strings.Contains(id.Version, localVersionMarker)
}

// Record is the resolved (or error-placeholder) result for an identity.
type Record struct {
	Identity

	// Registry classifies where the record came from: "npm", "pypi",
	// "nuget", or "github:<owner>/<repo>" for repository-addressed packages.
	Registry    string `json:"registry,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	License     string `json:"license,omitempty"`
	URL         string `json:"url,omitempty"`
	LicenseURL  string `json:"license_url,omitempty"`

	// DebugInfo carries diagnostic text explaining why a license is UNKNOWN
	// or what went wrong during resolution.
	DebugInfo string `json:"debug_info,omitempty"`

	// Dependencies lists the unresolved identities discovered in this
	// record. They are stored in the cache so a hit can re-enqueue children
	// without contacting the registry again.
	Dependencies []Identity `json:"dependencies,omitempty"`

	Processed bool `json:"processed,omitempty"`

	// RetryForUnknown marks an in-flight retry of a cached UNKNOWN entry.
	// It is never persisted as true: loading from cache always clears it.
	RetryForUnknown bool `json:"retry_for_unknown,omitempty"`
}

// NewRecord creates a record carrying only the identity fields.
func NewRecord(id Identity) *Record {
	return &Record{Identity: id}
}

// NewErrorRecord synthesizes a terminal placeholder for an identity whose
// resolution failed. The license is UNKNOWN and the error text is preserved
// in DebugInfo so the failure stays visible in the results.
func NewErrorRecord(id Identity, registry, url, errMsg string) *Record {
	return &Record{
		Identity:    id,
		Registry:    registry,
		DisplayName: id.DisplayID(),
		License:     UnknownLicense,
		URL:         url,
		DebugInfo:   errMsg,
		Processed:   true,
	}
}

// Display returns the formatted display name, falling back to
// "name@version" when the resolver did not set one.
func (r *Record) Display() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.DisplayID()
}

// Resolver produces a record for an identity, typically by contacting a
// package registry. Implementations must be safe for concurrent use: the
// engine calls Resolve from every worker with no synchronization.
type Resolver interface {
	Resolve(ctx context.Context, id Identity) (*Record, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, id Identity) (*Record, error)

func (f ResolverFunc) Resolve(ctx context.Context, id Identity) (*Record, error) {
	return f(ctx, id)
}
