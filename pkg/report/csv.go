package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
)

// WriteCSV writes records as "name,url,license" rows. Lockfiles routinely
// list the same package under several version ranges, so rows are
// deduplicated on a normalized name/version/URL key, preferring entries
// with a known license over UNKNOWN ones. Output is sorted by key.
func WriteCSV(w io.Writer, records []*deps.Record) error {
	unique := make(map[string]*deps.Record)
	for _, rec := range records {
		key := uniqueKey(rec)
		existing, ok := unique[key]
		if !ok {
			unique[key] = rec
			continue
		}
		if existing.License == deps.UnknownLicense && rec.License != deps.UnknownLicense {
			unique[key] = rec
		}
	}

	keys := make([]string, 0, len(unique))
	for key := range unique {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "url", "license"}); err != nil {
		return err
	}

	// Normalization can still map two distinct keys to the same visible
	// row, so the name+URL pair gets a final pass.
	written := make(map[string]bool)
	for _, key := range keys {
		rec := unique[key]
		rowKey := rec.Name + "|" + rec.URL
		if written[rowKey] {
			continue
		}
		written[rowKey] = true
		if err := cw.Write([]string{rec.Name, rec.URL, rec.License}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// uniqueKey normalizes a record into a deduplication key. The name drops
// registry prefixes and case, the version drops range markers and
// pre-release suffixes, and the URL distinguishes same-named packages from
// different sources.
func uniqueKey(rec *deps.Record) string {
	name := strings.ToLower(strings.TrimPrefix(rec.Name, "github:"))

	version := strings.TrimLeft(rec.Version, "^~")
	if i := strings.Index(version, "-"); i >= 0 {
		version = version[:i]
	}

	return name + "|" + version + "|" + strings.ToLower(rec.URL)
}
