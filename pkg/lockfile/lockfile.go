// Package lockfile parses dependency lockfiles into resolvable package
// identities. Supported formats are yarn.lock (classic and berry),
// package-lock.json, poetry.lock with an optional pyproject.toml, and
// .csproj projects via the external nuget-license tool.
package lockfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/errors"
)

// ParseFile parses the lockfile at path, dispatching on the file name.
// Formats that are recognized but not yet supported return a descriptive
// error instead of silently producing nothing.
func ParseFile(path string) ([]*deps.Record, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, errors.New(errors.ErrCodeFileNotFound, "file not found: %s", path)
	}

	name := filepath.Base(path)

	// .csproj projects shell out to nuget-license, which wants the path.
	if strings.HasSuffix(name, ".csproj") {
		return ParseCsproj(path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "failed to read %s", path)
	}

	switch name {
	case "yarn.lock":
		return ParseYarnLock(string(content)), nil
	case "package-lock.json":
		return ParsePackageLock(content), nil
	case "poetry.lock":
		records := ParsePoetryLock(content)
		records = mergePyproject(records, filepath.Dir(path))
		return records, nil
	case "pnpm-lock.yaml":
		return nil, errors.New(errors.ErrCodeUnsupported, "pnpm-lock.yaml support is coming soon")
	case "bun.lock":
		return nil, errors.New(errors.ErrCodeUnsupported, "bun.lock support is coming soon")
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported lock file format: %s", name)
	}
}

// mergePyproject folds pyproject.toml dependencies from the same directory
// into the poetry.lock records, skipping name/version duplicates.
func mergePyproject(records []*deps.Record, dir string) []*deps.Record {
	path := filepath.Join(dir, "pyproject.toml")
	content, err := os.ReadFile(path)
	if err != nil {
		return records
	}
	extra, err := ParsePyprojectTOML(content)
	if err != nil {
		return records
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.Name+"@"+rec.Version] = struct{}{}
	}
	for _, rec := range extra {
		if _, dup := seen[rec.Name+"@"+rec.Version]; dup {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Identities extracts the identity of every record, for seeding a scan.
func Identities(records []*deps.Record) []deps.Identity {
	ids := make([]deps.Identity, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Identity)
	}
	return ids
}

// Preresolved returns the records that already carry complete license
// information, keyed by canonical hash. The nuget path produces these.
func Preresolved(records []*deps.Record) map[string]*deps.Record {
	out := make(map[string]*deps.Record)
	for _, rec := range records {
		if rec.Processed {
			out[deps.Hash(rec.Identity)] = rec
		}
	}
	return out
}
