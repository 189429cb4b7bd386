package lockfile

import (
	"encoding/json"
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
)

type packageLock struct {
	Dependencies map[string]packageLockDep   `json:"dependencies"`
	Packages     map[string]packageLockEntry `json:"packages"`
}

type packageLockDep struct {
	Version   string `json:"version"`
	Resolved  string `json:"resolved"`
	Integrity string `json:"integrity"`
}

type packageLockEntry struct {
	Version   string `json:"version"`
	Integrity string `json:"integrity"`
}

// ParsePackageLock parses package-lock.json content. Both the legacy
// "dependencies" map and the v7+ "packages" map are read; entries appearing
// in both are kept once.
func ParsePackageLock(content []byte) []*deps.Record {
	var lock packageLock
	if err := json.Unmarshal(content, &lock); err != nil {
		return nil
	}

	var records []*deps.Record
	seen := make(map[string]struct{})

	for name, dep := range lock.Dependencies {
		if dep.Version == "" {
			continue
		}
		id := deps.Identity{
			Name:       name,
			Version:    dep.Version,
			Resolution: npmTarballURL(name, dep.Version),
			Checksum:   dep.Integrity,
		}
		if id.Checksum == "" {
			id.Checksum = deps.FallbackChecksum(id)
		}
		rec := deps.NewRecord(id)
		rec.URL = npmLockPackageURL(name, id.Resolution, dep.Resolved)
		records = append(records, rec)
		seen[name+"@"+dep.Version] = struct{}{}
	}

	for path, entry := range lock.Packages {
		// The empty path is the project itself.
		if path == "" {
			continue
		}
		name := path
		if i := strings.LastIndex(name, "node_modules/"); i >= 0 {
			name = name[i+len("node_modules/"):]
		}

		version := entry.Version
		if version == "" {
			// Some generators encode the version in the path.
			if at := strings.LastIndex(name, "@"); at > 0 {
				if !(strings.HasPrefix(name, "@") && strings.Contains(name[1:at], "/")) {
					version = name[at+1:]
					name = name[:at]
				}
			}
		}
		if version == "" {
			continue
		}
		if _, dup := seen[name+"@"+version]; dup {
			continue
		}
		seen[name+"@"+version] = struct{}{}

		id := deps.Identity{
			Name:       name,
			Version:    version,
			Resolution: npmTarballURL(name, version),
			Checksum:   entry.Integrity,
		}
		if id.Checksum == "" {
			id.Checksum = deps.FallbackChecksum(id)
		}
		rec := deps.NewRecord(id)
		rec.URL = npmLockPackageURL(name, id.Resolution, "")
		records = append(records, rec)
	}

	return records
}

// npmTarballURL builds the registry tarball URL npm would fetch.
func npmTarballURL(name, version string) string {
	flat := strings.ReplaceAll(strings.ReplaceAll(name, "@", ""), "/", "-")
	return "https://registry.npmjs.org/" + name + "/-/" + flat + "-" + version + ".tgz"
}

// npmLockPackageURL picks a browsable URL for a package-lock entry.
func npmLockPackageURL(name, resolution, resolved string) string {
	if resolved != "" && strings.Contains(resolved, "github.com") {
		return "https://github.com/" + strings.TrimPrefix(resolved, "github:")
	}
	if strings.Contains(resolution, "github.com") || strings.HasPrefix(name, "github:") {
		if strings.HasPrefix(name, "github:") {
			return "https://github.com/" + strings.TrimPrefix(name, "github:")
		}
		if i := strings.Index(resolution, "github.com"); i >= 0 {
			rest := resolution[i:]
			if end := strings.Index(rest, ".git"); end >= 0 {
				return rest[:end]
			}
			return rest
		}
		return "https://github.com/" + name
	}
	return "https://www.npmjs.com/package/" + name
}
