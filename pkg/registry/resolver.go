package registry

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/licenscan/licenscan/pkg/deps"
)

// Resolver dispatches identities to the registry backend that owns them.
// Repository and archive packages go npm-first: many of them are published
// on npm under the repo name, which is far cheaper than the GitHub API or a
// tarball download.
type Resolver struct {
	npm     *NPM
	github  *GitHub
	pypi    *PyPI
	archive *Archive

	// preresolved holds records that arrived complete from the lockfile
	// parser (nuget projects), keyed by canonical identity hash.
	preresolved map[string]*deps.Record

	logger *log.Logger
}

// Options configures a Resolver.
type Options struct {
	// NPMBaseURL, GitHubBaseURL and PyPIBaseURL override the public
	// endpoints, mainly for tests and mirrors.
	NPMBaseURL    string
	GitHubBaseURL string
	PyPIBaseURL   string

	// GitHubToken is sent as a bearer token to lift API rate limits.
	GitHubToken string

	// Preresolved seeds the resolver with records that need no lookup.
	Preresolved map[string]*deps.Record

	Logger *log.Logger
}

// New creates a Resolver wired to all backends.
func New(opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	client := NewClient(nil)

	githubHeaders := map[string]string{}
	if opts.GitHubToken != "" {
		githubHeaders["Authorization"] = "Bearer " + opts.GitHubToken
	}
	githubClient := NewClient(githubHeaders)

	return &Resolver{
		npm:         NewNPM(client, opts.NPMBaseURL),
		github:      NewGitHub(githubClient, opts.GitHubBaseURL),
		pypi:        NewPyPI(client, opts.PyPIBaseURL),
		archive:     NewArchive(client),
		preresolved: opts.Preresolved,
		logger:      opts.Logger,
	}
}

// Resolve routes one identity to its backend.
func (r *Resolver) Resolve(ctx context.Context, id deps.Identity) (*deps.Record, error) {
	if rec, ok := r.preresolved[deps.Hash(id)]; ok {
		return rec, nil
	}

	switch {
	case isPyPI(id):
		return r.pypi.Resolve(ctx, id)
	case isGitHub(id):
		if rec := r.npmFirst(ctx, id, "repository"); rec != nil {
			return rec, nil
		}
		return r.github.Resolve(ctx, id)
	case isArchive(id):
		if rec := r.npmFirst(ctx, id, "archive"); rec != nil {
			return rec, nil
		}
		return r.archive.Resolve(ctx, id)
	default:
		return r.npm.Resolve(ctx, id)
	}
}

// npmFirst tries the npm registry before the more expensive backend.
// Lookup misses and errors both fall through.
func (r *Resolver) npmFirst(ctx context.Context, id deps.Identity, kind string) *deps.Record {
	rec, err := r.npm.Lookup(ctx, id.Name, id.Version)
	if err != nil {
		r.logger.Debug("npm lookup failed, falling back", "package", id.Name, "kind", kind, "error", err)
		return nil
	}
	if rec == nil {
		r.logger.Debug("not on npm, falling back", "package", id.Name, "kind", kind)
		return nil
	}
	// Keep the lockfile's identity so the engine's bookkeeping matches.
	rec.Identity = id
	return rec
}

func isPyPI(id deps.Identity) bool {
	return strings.Contains(id.Resolution, "pypi.org")
}

func isGitHub(id deps.Identity) bool {
	return strings.HasPrefix(strings.ToLower(id.Name), "github:") ||
		strings.Contains(id.Resolution, "github:") ||
		strings.Contains(id.Resolution, "github.com")
}

func isArchive(id deps.Identity) bool {
	return strings.Contains(strings.ToLower(id.Resolution), strings.ToLower(archiveURLMarker)) ||
		IsArchiveURL(id.Resolution)
}
