package lockfile

import (
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
)

// ParseYarnLock parses yarn.lock content. Both the classic v1 format
// (`version "4.17.21"`) and the berry format (`version: 4.17.21`) are
// handled by the same line scanner.
func ParseYarnLock(content string) []*deps.Record {
	var records []*deps.Record

	var header string
	fields := make(map[string]string)

	flush := func() {
		if header == "" {
			return
		}
		defer func() {
			header = ""
			fields = make(map[string]string)
		}()

		if header == "__metadata" {
			return
		}
		version := fields["version"]
		if version == "" {
			return
		}
		id := deps.Identity{
			Name:    ExtractPackageName(header),
			Version: version,
		}
		// Workspace-local pseudo-packages have no registry counterpart.
		if id.Ignored() {
			return
		}
		if res, ok := fields["resolution"]; ok {
			id.Resolution = res
		} else {
			id.Resolution = header
		}
		id.Checksum = fields["checksum"]
		if id.Checksum == "" {
			id.Checksum = deps.FallbackChecksum(id)
		}

		rec := deps.NewRecord(id)
		rec.URL = yarnPackageURL(id.Name, id.Resolution)
		records = append(records, rec)
	}

	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			flush()
			header = strings.Trim(strings.TrimSuffix(strings.TrimSpace(line), ":"), `"`)
			continue
		}
		if header == "" {
			continue
		}

		key, value, ok := splitYarnField(strings.TrimSpace(line))
		if ok {
			fields[key] = value
		}
	}
	flush()

	return records
}

// splitYarnField splits one indented lockfile line into key and value.
// Berry writes `key: value`, classic writes `key "value"`.
func splitYarnField(line string) (string, string, bool) {
	if i := strings.Index(line, ": "); i >= 0 {
		return line[:i], strings.Trim(line[i+2:], `"`), true
	}
	if i := strings.Index(line, " "); i >= 0 {
		return line[:i], strings.Trim(line[i+1:], `"`), true
	}
	return "", "", false
}

// yarnPackageURL picks a browsable URL for a package from its name and
// resolution.
func yarnPackageURL(name, resolution string) string {
	if strings.HasPrefix(name, "github:") {
		return "https://github.com/" + strings.TrimPrefix(name, "github:")
	}
	if strings.Contains(resolution, "github:") || strings.Contains(resolution, "github.com") {
		if _, after, found := strings.Cut(resolution, "github:"); found {
			repo, _, _ := strings.Cut(after, "#")
			return "https://github.com/" + repo
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

// ExtractPackageName extracts the base package name from a lockfile entry
// key such as "lodash@^4.17.21" or "@babel/core@npm:^7.0.0, @babel/core@^7.1.0".
func ExtractPackageName(identifier string) string {
	// Grouped descriptors share one name; take the first.
	if before, _, found := strings.Cut(identifier, ","); found {
		return ExtractPackageName(strings.TrimSpace(before))
	}

	// Scoped packages carry a second "@" before the range.
	if strings.HasPrefix(identifier, "@") {
		rest := identifier[1:]
		if i := strings.Index(rest, "@"); i >= 0 {
			return identifier[:i+1]
		}
		return identifier
	}

	if i := strings.Index(identifier, "@"); i >= 0 {
		return identifier[:i]
	}
	return identifier
}
