package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

// licenseFilePatterns are the file names probed when looking for a license
// file in a repository or an extracted archive.
var licenseFilePatterns = []string{
	"LICENSE",
	"LICENSE.txt",
	"LICENSE.md",
	"License",
	"License.txt",
	"License.md",
	"license",
	"COPYING",
	"COPYING.txt",
}

// GitHub resolves repository-addressed packages by reading package.json
// through the GitHub contents API.
type GitHub struct {
	client  *Client
	baseURL string
}

// NewGitHub creates a GitHub resolver. An empty baseURL selects the public
// API. A token can be supplied through the client's default headers.
func NewGitHub(client *Client, baseURL string) *GitHub {
	if baseURL == "" {
		baseURL = defaultGitHubAPIBaseURL
	}
	return &GitHub{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Resolve reads the repository's package.json at the referenced ref and
// extracts license and dependency information. Failures that leave no
// usable data come back as errors for the engine to turn into placeholders.
func (g *GitHub) Resolve(ctx context.Context, id deps.Identity) (*deps.Record, error) {
	repoURL, err := deriveRepoURL(id)
	if err != nil {
		return nil, err
	}
	owner, repo, ref, err := splitRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	repoURL = "https://github.com/" + owner + "/" + repo

	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/package.json?ref=%s", g.baseURL, owner, repo, ref)
	var contents struct {
		Content string `json:"content"`
	}
	if err := g.client.Get(ctx, apiURL, &contents); err != nil {
		return nil, fmt.Errorf("github contents API for %s/%s: %w", owner, repo, err)
	}
	if contents.Content == "" {
		return nil, fmt.Errorf("no content field in GitHub API response for %s/%s", owner, repo)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode package.json content: %w", err)
	}

	var pkgJSON struct {
		License         string            `json:"license"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(decoded, &pkgJSON); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}

	rec := deps.NewRecord(id)
	rec.Registry = "github:" + owner + "/" + repo
	rec.DisplayName = id.DisplayID()
	rec.URL = repoURL
	rec.License = pkgJSON.License
	if rec.License == "" {
		rec.License = deps.UnknownLicense
	}

	rec.LicenseURL = license.CanonicalURL(rec.License)
	if rec.LicenseURL == "" {
		rec.LicenseURL = g.licenseFileURL(ctx, owner, repo, ref, repoURL)
	}

	if rec.License == deps.UnknownLicense {
		rec.DebugInfo = "No license field in package.json; manual check needed at " + firstNonEmpty(rec.LicenseURL, repoURL)
		if rec.LicenseURL != "" {
			if text, err := g.client.GetText(ctx, rawLicenseURL(rec.LicenseURL)); err == nil {
				if detected := license.DetectFromText(text); detected != "" {
					rec.License = detected
					rec.DebugInfo = "License detected from URL: " + rec.LicenseURL
				}
			}
		}
	}

	for name, constraint := range pkgJSON.Dependencies {
		rec.Dependencies = append(rec.Dependencies, githubDepIdentity(name, constraint))
	}
	for name, constraint := range pkgJSON.DevDependencies {
		rec.Dependencies = append(rec.Dependencies, githubDepIdentity(name, constraint))
	}

	rec.Processed = true
	return rec, nil
}

// licenseFileURL probes the repository for a license file and returns its
// blob URL. Probing stops at the first transport error; the bare LICENSE
// link is the fallback since it is by far the most common name.
func (g *GitHub) licenseFileURL(ctx context.Context, owner, repo, ref, repoURL string) string {
	for _, pattern := range licenseFilePatterns {
		apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", g.baseURL, owner, repo, pattern, ref)
		var probe json.RawMessage
		err := g.client.Get(ctx, apiURL, &probe)
		if err == nil {
			return fmt.Sprintf("%s/blob/%s/%s", repoURL, ref, pattern)
		}
		if !errors.Is(err, cache.ErrNotFound) {
			break
		}
	}
	return fmt.Sprintf("%s/blob/%s/LICENSE", repoURL, ref)
}

// deriveRepoURL finds the repository reference inside an identity.
func deriveRepoURL(id deps.Identity) (string, error) {
	switch {
	case strings.Contains(id.Resolution, "github:"):
		_, after, _ := strings.Cut(id.Resolution, "github:")
		repo, _, _ := strings.Cut(after, "#")
		ref := ""
		if _, r, found := strings.Cut(after, "#"); found {
			ref = r
		}
		url := "github:" + repo
		if ref != "" {
			url += "#" + ref
		}
		return url, nil
	case strings.HasPrefix(id.Name, "github:"):
		return "https://github.com/" + strings.TrimPrefix(id.Name, "github:"), nil
	case strings.Contains(id.Resolution, "github.com"):
		i := strings.Index(id.Resolution, "github.com")
		rest := id.Resolution[i:]
		ref := ""
		if j := strings.Index(rest, "#"); j >= 0 {
			ref = rest[j+1:]
			rest = rest[:j]
		}
		if end := strings.Index(rest, ".git"); end >= 0 {
			rest = rest[:end]
		}
		parts := strings.SplitN(strings.TrimPrefix(rest, "github.com/"), "/", 3)
		if len(parts) >= 2 {
			url := "github:" + parts[0] + "/" + parts[1]
			if ref != "" {
				url += "#" + ref
			}
			return url, nil
		}
		return "https://" + rest, nil
	default:
		return "", fmt.Errorf("could not determine GitHub repository from package %s", id.Name)
	}
}

// splitRepoURL extracts owner, repo and ref from either an https URL or a
// github: shorthand. The ref defaults to main.
func splitRepoURL(url string) (owner, repo, ref string, err error) {
	ref = "main"

	if strings.HasPrefix(url, "https://github.com/") {
		parts := strings.Split(url, "/")
		if len(parts) >= 5 {
			owner, repo = parts[3], parts[4]
			if len(parts) >= 7 && (parts[5] == "tree" || parts[5] == "commit") {
				ref = parts[6]
			}
			repo = strings.TrimSuffix(repo, ".git")
			return owner, repo, ref, nil
		}
	}

	if strings.HasPrefix(url, "github:") {
		rest := strings.TrimPrefix(url, "github:")
		path, r, found := strings.Cut(rest, "#")
		if found && r != "" {
			// Berry writes refs as "#commit=<sha>".
			ref = strings.TrimPrefix(r, "commit=")
		}
		parts := strings.Split(path, "/")
		if len(parts) >= 2 {
			return parts[0], parts[1], ref, nil
		}
	}

	return "", "", "", fmt.Errorf("could not extract GitHub details from URL: %s", url)
}

// githubDepIdentity converts a package.json dependency entry into an
// identity, mirroring how registry dependencies are shaped.
func githubDepIdentity(name, constraint string) deps.Identity {
	clean := strings.TrimLeft(constraint, "^~")
	resolution := npmTarball(name, clean)
	if strings.HasPrefix(constraint, "github:") {
		resolution = "https://github.com/" + strings.TrimPrefix(constraint, "github:")
	}
	return deps.Identity{Name: name, Version: clean, Resolution: resolution}
}

// rawLicenseURL rewrites a GitHub blob URL to its raw counterpart so the
// response is the license text rather than an HTML page.
func rawLicenseURL(url string) string {
	if strings.Contains(url, "github.com") && strings.Contains(url, "/blob/") {
		url = strings.Replace(url, "github.com", "raw.githubusercontent.com", 1)
		url = strings.Replace(url, "/blob/", "/", 1)
	}
	return url
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
