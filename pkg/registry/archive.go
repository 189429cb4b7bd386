package registry

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
)

// archiveURLMarker flags resolutions that embed an explicit archive URL.
const archiveURLMarker = "__archiveUrl="

// Archive resolves packages distributed as raw tarballs or zips by
// downloading the archive and inspecting package.json and license files
// in memory.
type Archive struct {
	client *Client
}

// NewArchive creates an archive resolver.
func NewArchive(client *Client) *Archive {
	return &Archive{client: client}
}

// IsArchiveURL reports whether the URL points at an archive format the
// resolver can unpack.
func IsArchiveURL(url string) bool {
	return strings.HasSuffix(url, ".zip") ||
		strings.HasSuffix(url, ".tar.gz") ||
		strings.HasSuffix(url, ".tgz")
}

// ArchiveURL extracts the download URL from a resolution, preferring an
// embedded __archiveUrl= marker over the resolution itself.
func ArchiveURL(resolution string) string {
	lower := strings.ToLower(resolution)
	if i := strings.Index(lower, strings.ToLower(archiveURLMarker)); i >= 0 {
		return resolution[i+len(archiveURLMarker):]
	}
	return resolution
}

// Resolve downloads the archive behind an identity and extracts its
// license. Download failures are errors; an archive without recognizable
// license material yields an UNKNOWN record with a diagnostic.
func (a *Archive) Resolve(ctx context.Context, id deps.Identity) (*deps.Record, error) {
	url := ArchiveURL(id.Resolution)

	var content []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		data, err := a.client.GetBytes(ctx, url)
		if err != nil {
			return err
		}
		content = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download archive %s: %w", url, err)
	}

	lic, preview, err := extractLicenseFromArchive(url, content)
	if err != nil {
		return nil, fmt.Errorf("extract from archive %s: %w", url, err)
	}

	rec := deps.NewRecord(id)
	rec.Registry = "npm"
	rec.DisplayName = id.DisplayID()
	rec.License = lic
	rec.URL = "https://www.npmjs.com/package/" + id.Name
	rec.LicenseURL = license.CanonicalURL(lic)
	if lic == deps.UnknownLicense {
		if preview != "" {
			rec.DebugInfo = "License file found but type unknown. Preview: " + preview + "..."
		} else {
			rec.DebugInfo = "License extracted from archive: " + url
		}
	}
	rec.Processed = true
	return rec, nil
}

// extractLicenseFromArchive scans archive entries for package.json and
// license files. It returns the detected license (UNKNOWN when nothing
// matched) and a preview of unrecognized license text.
func extractLicenseFromArchive(url string, content []byte) (string, string, error) {
	var files map[string][]byte
	var err error
	switch {
	case strings.HasSuffix(url, ".zip"):
		files, err = readZip(content)
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		files, err = readTarGz(content)
	default:
		return "", "", errors.New("unsupported archive format")
	}
	if err != nil {
		return "", "", err
	}

	lic := deps.UnknownLicense
	if data, ok := lookupArchiveFile(files, "package.json"); ok {
		var pkgJSON struct {
			License string `json:"license"`
		}
		if json.Unmarshal(data, &pkgJSON) == nil && pkgJSON.License != "" {
			lic = license.NormalizeID(pkgJSON.License)
		}
	}

	preview := ""
	for _, pattern := range licenseFilePatterns {
		data, ok := lookupArchiveFile(files, pattern)
		if !ok {
			continue
		}
		text := string(data)
		if lic == deps.UnknownLicense {
			if detected := license.DetectFromText(text); detected != "" {
				lic = detected
			} else {
				preview = text
				if len(preview) > 100 {
					preview = preview[:100]
				}
			}
		}
		break
	}

	return lic, preview, nil
}

// lookupArchiveFile finds an entry by base name, preferring shallow paths
// so the top-level license wins over vendored copies.
func lookupArchiveFile(files map[string][]byte, name string) ([]byte, bool) {
	best := ""
	for entry := range files {
		if path.Base(entry) != name {
			continue
		}
		if best == "" || strings.Count(entry, "/") < strings.Count(best, "/") {
			best = entry
		}
	}
	if best == "" {
		return nil, false
	}
	return files[best], true
}

func readTarGz(content []byte) (map[string][]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		files[hdr.Name] = data
	}
	return files, nil
}

func readZip(content []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte)
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files[entry.Name] = data
	}
	return files, nil
}
