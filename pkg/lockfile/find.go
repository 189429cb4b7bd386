package lockfile

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// lockfileNames are the file names Find recognizes. Unsupported but known
// formats are included so the caller can report them instead of silently
// skipping.
var lockfileNames = map[string]struct{}{
	"yarn.lock":         {},
	"package-lock.json": {},
	"poetry.lock":       {},
	"pnpm-lock.yaml":    {},
	"bun.lock":          {},
}

// skippedDirs are directory names never descended into during discovery.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".yarn":        {},
	"bin":          {},
	"obj":          {},
}

// Find walks root recursively and returns the paths of all lockfiles and
// .csproj projects it encounters. Dependency and build output directories
// are skipped.
func Find(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := lockfileNames[d.Name()]; ok || strings.HasSuffix(d.Name(), ".csproj") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
