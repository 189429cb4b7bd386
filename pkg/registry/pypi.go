package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
)

const defaultPyPIBaseURL = "https://pypi.org"

// PyPI resolves Python packages against the PyPI JSON API.
type PyPI struct {
	client  *Client
	baseURL string
}

// NewPyPI creates a PyPI resolver. An empty baseURL selects pypi.org.
func NewPyPI(client *Client, baseURL string) *PyPI {
	if baseURL == "" {
		baseURL = defaultPyPIBaseURL
	}
	return &PyPI{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

type pypiResponse struct {
	Info struct {
		License      string            `json:"license"`
		Classifiers  []string          `json:"classifiers"`
		Summary      string            `json:"summary"`
		HomePage     string            `json:"home_page"`
		ProjectURL   string            `json:"project_url"`
		ProjectURLs  map[string]string `json:"project_urls"`
		RequiresDist []string          `json:"requires_dist"`
		Version      string            `json:"version"`
	} `json:"info"`
}

// Resolve fetches metadata for the exact version, falling back to the
// latest release when the version is gone from the index.
func (p *PyPI) Resolve(ctx context.Context, id deps.Identity) (*deps.Record, error) {
	rec := deps.NewRecord(id)
	rec.Registry = "pypi"
	rec.DisplayName = id.DisplayID()
	rec.URL = p.baseURL + "/project/" + id.Name + "/"

	var resp pypiResponse
	err := p.client.Get(ctx, fmt.Sprintf("%s/pypi/%s/%s/json", p.baseURL, id.Name, id.Version), &resp)
	if errors.Is(err, cache.ErrNotFound) {
		// Constraint strings and yanked releases miss the exact endpoint.
		err = p.client.Get(ctx, fmt.Sprintf("%s/pypi/%s/json", p.baseURL, id.Name), &resp)
		if errors.Is(err, cache.ErrNotFound) {
			rec.License = deps.UnknownLicense
			rec.DebugInfo = "PyPI has no project named " + id.Name
			return rec, nil
		}
		if err == nil {
			rec.DebugInfo = "Used data from latest version instead of requested version " + id.Version
		}
	}
	if err != nil {
		return nil, fmt.Errorf("pypi request for %s: %w", id.Name, err)
	}

	info := resp.Info

	lic := deps.UnknownLicense
	if trimmed := strings.TrimSpace(info.License); trimmed != "" && trimmed != deps.UnknownLicense {
		lic = license.NormalizeID(trimmed)
	}
	if lic == deps.UnknownLicense {
		if fromClassifiers := licenseFromClassifiers(info.Classifiers); fromClassifiers != "" {
			lic = fromClassifiers
		}
	}
	rec.License = lic
	rec.LicenseURL = license.CanonicalURL(lic)

	if info.ProjectURL != "" {
		rec.URL = info.ProjectURL
	} else if info.HomePage != "" && info.HomePage != deps.UnknownLicense {
		rec.URL = info.HomePage
	}

	for _, req := range info.RequiresDist {
		dep, ok := parseRequirement(req)
		if !ok {
			continue
		}
		rec.Dependencies = append(rec.Dependencies, dep)
	}

	rec.Processed = true
	return rec, nil
}

// classifierLicenses maps trove classifiers to SPDX identifiers.
var classifierLicenses = []struct{ classifier, id string }{
	{"License :: OSI Approved :: MIT License", "MIT"},
	{"License :: OSI Approved :: Apache Software License", "Apache-2.0"},
	{"License :: OSI Approved :: BSD 3-Clause License", "BSD-3-Clause"},
	{"License :: OSI Approved :: BSD 2-Clause License", "BSD-2-Clause"},
	{"License :: OSI Approved :: BSD License", "BSD-3-Clause"},
	{"License :: OSI Approved :: GNU General Public License v3 (GPLv3)", "GPL-3.0"},
	{"License :: OSI Approved :: GNU General Public License v2 (GPLv2)", "GPL-2.0"},
	{"License :: OSI Approved :: GNU Lesser General Public License v3 (LGPLv3)", "LGPL-3.0"},
	{"License :: OSI Approved :: GNU Lesser General Public License v2.1 (LGPLv2.1)", "LGPL-2.1"},
	{"License :: OSI Approved :: Mozilla Public License 2.0 (MPL 2.0)", "MPL-2.0"},
	{"License :: OSI Approved :: ISC License (ISCL)", "ISC"},
	{"License :: CC0 1.0 Universal (CC0 1.0) Public Domain Dedication", "CC0-1.0"},
	{"License :: Public Domain", "Unlicense"},
	{"License :: OSI Approved :: Python Software Foundation License", "PSF"},
	{"License :: OSI Approved :: zlib/libpng License", "Zlib"},
}

// licenseFromClassifiers extracts a license identifier from trove
// classifiers, falling back to a best-effort mapping of any OSI-approved
// entry it does not specifically know.
func licenseFromClassifiers(classifiers []string) string {
	const osiPrefix = "License :: OSI Approved :: "

	for _, classifier := range classifiers {
		for _, known := range classifierLicenses {
			if strings.Contains(classifier, known.classifier) {
				return known.id
			}
		}
		if _, name, found := strings.Cut(classifier, osiPrefix); found {
			name = strings.TrimSpace(name)
			switch {
			case strings.Contains(name, "MIT"):
				return "MIT"
			case strings.Contains(name, "Apache"):
				return "Apache-2.0"
			case strings.Contains(name, "BSD") && strings.Contains(name, "2"):
				return "BSD-2-Clause"
			case strings.Contains(name, "BSD"):
				return "BSD-3-Clause"
			default:
				return license.NormalizeID(name)
			}
		}
	}
	return ""
}

// parseRequirement turns a requires_dist entry like
// "urllib3 (>=1.21.1,<3) ; python_version >= \"3.8\"" into an identity.
// Entries gated behind an extra marker are skipped.
func parseRequirement(req string) (deps.Identity, bool) {
	spec, marker, _ := strings.Cut(req, ";")
	if strings.Contains(marker, "extra ==") {
		return deps.Identity{}, false
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return deps.Identity{}, false
	}

	name := spec
	version := "*"
	if i := strings.IndexAny(spec, " (<>=!~"); i >= 0 {
		name = spec[:i]
		version = strings.Trim(strings.TrimSpace(spec[i:]), "()")
		if version == "" {
			version = "*"
		}
	}
	// Extras belong to the same distribution.
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return deps.Identity{}, false
	}
	return deps.Identity{
		Name:       name,
		Version:    version,
		Resolution: "https://pypi.org/project/" + name + "/",
	}, true
}
