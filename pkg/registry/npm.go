package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
)

const defaultNPMBaseURL = "https://registry.npmjs.org"

// NPM resolves packages against the npm registry.
type NPM struct {
	client  *Client
	baseURL string
}

// NewNPM creates an npm resolver. An empty baseURL selects the public
// registry.
func NewNPM(client *Client, baseURL string) *NPM {
	if baseURL == "" {
		baseURL = defaultNPMBaseURL
	}
	return &NPM{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// npmMetadata is the subset of the registry document the scanner reads.
type npmMetadata struct {
	License    json.RawMessage            `json:"license"`
	Licenses   []npmLicenseEntry          `json:"licenses"`
	LicenseURL string                     `json:"licenseUrl"`
	Homepage   string                     `json:"homepage"`
	DistTags   map[string]string          `json:"dist-tags"`
	Versions   map[string]npmVersionEntry `json:"versions"`
}

type npmVersionEntry struct {
	License      json.RawMessage   `json:"license"`
	Licenses     []npmLicenseEntry `json:"licenses"`
	Dependencies map[string]string `json:"dependencies"`
}

type npmLicenseEntry struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Resolve fetches metadata for an identity straight from npm. The returned
// record has license UNKNOWN with a diagnostic trail when the metadata
// carries no usable license field; only transport failures are errors.
func (n *NPM) Resolve(ctx context.Context, id deps.Identity) (*deps.Record, error) {
	name := strings.Trim(id.Name, `"' `)
	rec := deps.NewRecord(id)
	rec.Registry = "npm"
	rec.DisplayName = name + "@" + id.Version
	rec.URL = "https://www.npmjs.com/package/" + name

	var meta npmMetadata
	err := n.client.Get(ctx, n.baseURL+"/"+encodeNPMName(name), &meta)
	if errors.Is(err, cache.ErrNotFound) {
		rec.License = deps.UnknownLicense
		rec.DebugInfo = fmt.Sprintf("npm registry has no package named %s", name)
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("npm registry request for %s: %w", name, err)
	}

	n.fill(ctx, rec, &meta, id.Version)
	return rec, nil
}

// Lookup checks whether a package exists on npm, for the npm-first fallback
// used by repository and archive packages. A missing package returns
// (nil, nil) so the caller can move on to the next source.
func (n *NPM) Lookup(ctx context.Context, name, version string) (*deps.Record, error) {
	name = strings.Trim(name, `"' `)

	// Repository shorthands carry the npm name in the repo segment.
	npmName := name
	if strings.HasPrefix(npmName, "github:") {
		parts := strings.Split(strings.TrimPrefix(npmName, "github:"), "/")
		if len(parts) >= 2 {
			npmName = parts[1]
		}
	}

	var meta npmMetadata
	err := n.client.Get(ctx, n.baseURL+"/"+encodeNPMName(npmName), &meta)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := deps.NewRecord(deps.Identity{
		Name:       name,
		Version:    version,
		Resolution: npmTarball(npmName, version),
	})
	rec.Registry = "npm"
	rec.DisplayName = npmName + "@" + version
	rec.URL = "https://www.npmjs.com/package/" + npmName
	n.fill(ctx, rec, &meta, version)
	return rec, nil
}

// fill extracts license, license URL and dependencies from registry
// metadata into rec.
func (n *NPM) fill(ctx context.Context, rec *deps.Record, meta *npmMetadata, version string) {
	lic, trail := extractNPMLicense(meta, version)
	rec.License = lic
	rec.LicenseURL = extractNPMLicenseURL(meta, lic)
	rec.Dependencies = extractNPMDependencies(meta, version)
	if lic == deps.UnknownLicense {
		rec.DebugInfo = trail
		// A license file link is the last resort: download it and try to
		// recognize the text.
		if rec.LicenseURL != "" {
			if detected, err := n.detectFromURL(ctx, rec.LicenseURL); err != nil {
				rec.DebugInfo = fmt.Sprintf("%s; failed to download license from %s (%v)", trail, rec.LicenseURL, err)
			} else if detected != "" {
				rec.License = detected
				rec.DebugInfo = "License detected from URL: " + rec.LicenseURL
			} else {
				rec.DebugInfo = fmt.Sprintf("%s; attempted license detection from %s", trail, rec.LicenseURL)
			}
		}
	}
}

// detectFromURL downloads license text and runs pattern detection on it.
func (n *NPM) detectFromURL(ctx context.Context, url string) (string, error) {
	text, err := n.client.GetText(ctx, url)
	if err != nil {
		return "", err
	}
	return license.DetectFromText(text), nil
}

// extractNPMLicense walks the metadata looking for a license identifier,
// preferring the requested version, then the latest, then top-level fields.
// The second return value is the diagnostic trail of everything that was
// tried, kept only when the result is UNKNOWN.
func extractNPMLicense(meta *npmMetadata, requested string) (string, string) {
	var trail []string

	if entry, ok := meta.Versions[requested]; ok {
		if lic := licenseFromRaw(entry.License); lic != "" {
			return license.NormalizeID(lic), ""
		}
		trail = append(trail, "no license field in version "+requested)
		if len(entry.Licenses) > 0 && entry.Licenses[0].Type != "" {
			return license.NormalizeID(entry.Licenses[0].Type), ""
		}
		trail = append(trail, "no licenses array in version metadata")
	} else if len(meta.Versions) > 0 {
		trail = append(trail, "requested version "+requested+" not found in package metadata")
	} else {
		trail = append(trail, "no versions field in package metadata")
	}

	if latest := meta.DistTags["latest"]; latest != "" {
		if entry, ok := meta.Versions[latest]; ok {
			if lic := licenseFromRaw(entry.License); lic != "" {
				return license.NormalizeID(lic), ""
			}
			if len(entry.Licenses) > 0 && entry.Licenses[0].Type != "" {
				return license.NormalizeID(entry.Licenses[0].Type), ""
			}
		}
		trail = append(trail, "could not find license in latest version "+latest)
	} else {
		trail = append(trail, "no latest version tag found")
	}

	if lic := licenseFromRaw(meta.License); lic != "" {
		return license.NormalizeID(lic), ""
	}
	trail = append(trail, "no top-level license field in package metadata")

	if len(meta.Licenses) > 0 && meta.Licenses[0].Type != "" {
		return license.NormalizeID(meta.Licenses[0].Type), ""
	}
	trail = append(trail, "no top-level licenses array in package metadata")

	return deps.UnknownLicense, strings.Join(trail, "; ")
}

// licenseFromRaw reads npm's license field, which is either a plain string
// or an object with a type key.
func licenseFromRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Type
	}
	return ""
}

// extractNPMLicenseURL finds a license URL: the canonical page for known
// identifiers, otherwise whatever the metadata offers.
func extractNPMLicenseURL(meta *npmMetadata, lic string) string {
	if u := license.CanonicalURL(lic); u != "" {
		return u
	}
	if meta.LicenseURL != "" {
		return meta.LicenseURL
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(meta.License, &obj); err == nil && obj.URL != "" {
		return obj.URL
	}
	return ""
}

// extractNPMDependencies lists the direct dependencies of the requested
// version (or latest when the requested one is missing), as identities
// ready to enqueue.
func extractNPMDependencies(meta *npmMetadata, requested string) []deps.Identity {
	entry, ok := meta.Versions[requested]
	if !ok {
		entry, ok = meta.Versions[meta.DistTags["latest"]]
		if !ok {
			return nil
		}
	}

	out := make([]deps.Identity, 0, len(entry.Dependencies))
	for name, constraint := range entry.Dependencies {
		clean := strings.TrimLeft(constraint, "^~")
		resolution := npmTarball(name, clean)
		if strings.HasPrefix(constraint, "github:") {
			resolution = "https://github.com/" + strings.TrimPrefix(constraint, "github:")
		}
		out = append(out, deps.Identity{Name: name, Version: clean, Resolution: resolution})
	}
	return out
}

// npmTarball builds the registry tarball URL for a package version.
func npmTarball(name, version string) string {
	flat := strings.ReplaceAll(strings.ReplaceAll(name, "@", ""), "/", "-")
	return defaultNPMBaseURL + "/" + name + "/-/" + flat + "-" + version + ".tgz"
}

// encodeNPMName escapes a package name for the registry URL path. Scoped
// names keep their literal form with @ and / percent-encoded.
func encodeNPMName(name string) string {
	if strings.HasPrefix(name, "@") {
		return strings.ReplaceAll(strings.ReplaceAll(name, "@", "%40"), "/", "%2F")
	}
	return url.PathEscape(name)
}
