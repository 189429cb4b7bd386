package lockfile

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/licenscan/licenscan/pkg/deps"
)

type poetryLock struct {
	Package  []poetryPackage `toml:"package"`
	Metadata struct {
		DevDependencies map[string]toml.Primitive `toml:"dev-dependencies"`
	} `toml:"metadata"`
}

type poetryPackage struct {
	Name         string                    `toml:"name"`
	Version      string                    `toml:"version"`
	Dependencies map[string]toml.Primitive `toml:"dependencies"`
	Source       *poetrySource             `toml:"source"`
}

type poetrySource struct {
	Type      string `toml:"type"`
	URL       string `toml:"url"`
	Reference string `toml:"reference"`
}

// ParsePoetryLock parses poetry.lock content. Git sources pointing at
// GitHub are classified as github packages; other non-PyPI sources keep
// their source type as the registry.
func ParsePoetryLock(content []byte) []*deps.Record {
	var lock poetryLock
	meta, err := toml.Decode(string(content), &lock)
	if err != nil {
		return nil
	}

	var records []*deps.Record
	for _, pkg := range lock.Package {
		name, version := pkg.Name, pkg.Version
		if name == "" {
			continue
		}
		if version == "" {
			version = "0.0.0"
		}

		sourceType := "pypi"
		sourceURL := ""
		if pkg.Source != nil {
			if pkg.Source.Type != "" {
				sourceType = pkg.Source.Type
			}
			sourceURL = pkg.Source.URL
			if sourceType == "git" && strings.Contains(sourceURL, "github.com") &&
				pkg.Source.Reference != "" && !strings.Contains(sourceURL, "#") {
				sourceURL += "#" + pkg.Source.Reference
			}
		}

		resolution := sourceURL
		if resolution == "" {
			resolution = fmt.Sprintf("https://pypi.org/project/%s/%s/", name, version)
		}

		rec := deps.NewRecord(deps.Identity{Name: name, Version: version, Resolution: resolution})
		rec.DisplayName = name + "@" + version

		switch {
		case sourceType == "git" && strings.Contains(sourceURL, "github.com"):
			rec.Registry = "github"
			rec.URL = sourceURL
		case sourceType != "pypi":
			rec.Registry = sourceType
			rec.URL = "https://pypi.org/project/" + name + "/"
		default:
			rec.Registry = "pypi"
			rec.URL = "https://pypi.org/project/" + name + "/"
		}
		if sourceType != "pypi" {
			rec.DebugInfo = fmt.Sprintf("Source type: %s, URL: %s", sourceType, sourceURL)
		}

		for depName, raw := range pkg.Dependencies {
			constraint := decodeConstraint(meta, raw)
			rec.Dependencies = append(rec.Dependencies, deps.Identity{
				Name:       depName,
				Version:    constraint,
				Resolution: "https://pypi.org/project/" + depName + "/",
			})
		}

		records = append(records, rec)
	}

	for depName, raw := range lock.Metadata.DevDependencies {
		constraint := decodeConstraint(meta, raw)
		rec := deps.NewRecord(deps.Identity{
			Name:       depName,
			Version:    constraint,
			Resolution: "https://pypi.org/project/" + depName + "/",
		})
		rec.Registry = "pypi"
		rec.DisplayName = fmt.Sprintf("%s@%s (dev)", depName, constraint)
		rec.URL = "https://pypi.org/project/" + depName + "/"
		records = append(records, rec)
	}

	return records
}

type pyproject struct {
	Tool struct {
		Poetry struct {
			Dependencies    map[string]toml.Primitive `toml:"dependencies"`
			DevDependencies map[string]toml.Primitive `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// ParsePyprojectTOML extracts declared dependencies from a pyproject.toml.
// The python interpreter constraint is skipped.
func ParsePyprojectTOML(content []byte) ([]*deps.Record, error) {
	var project pyproject
	meta, err := toml.Decode(string(content), &project)
	if err != nil {
		return nil, err
	}

	var records []*deps.Record
	add := func(name, constraint string, dev bool) {
		rec := deps.NewRecord(deps.Identity{
			Name:       name,
			Version:    constraint,
			Resolution: "https://pypi.org/project/" + name + "/",
		})
		rec.Registry = "pypi"
		rec.DisplayName = name + "@" + constraint
		if dev {
			rec.DisplayName += " (dev)"
		}
		rec.URL = "https://pypi.org/project/" + name + "/"
		records = append(records, rec)
	}

	for name, raw := range project.Tool.Poetry.Dependencies {
		if name == "python" {
			continue
		}
		add(name, decodeConstraint(meta, raw), false)
	}
	for name, raw := range project.Tool.Poetry.DevDependencies {
		add(name, decodeConstraint(meta, raw), true)
	}
	return records, nil
}

// decodeConstraint reads a dependency constraint that may be either a bare
// version string or a table with a version key. Anything else becomes the
// wildcard.
func decodeConstraint(meta toml.MetaData, raw toml.Primitive) string {
	var s string
	if err := meta.PrimitiveDecode(raw, &s); err == nil && s != "" {
		return s
	}
	var table struct {
		Version string `toml:"version"`
	}
	if err := meta.PrimitiveDecode(raw, &table); err == nil && table.Version != "" {
		return table.Version
	}
	return "*"
}
