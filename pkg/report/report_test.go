package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
)

func rec(name, version, lic, url string) *deps.Record {
	r := deps.NewRecord(deps.Identity{Name: name, Version: version})
	r.License = lic
	r.URL = url
	return r
}

func TestSummarize(t *testing.T) {
	records := []*deps.Record{
		rec("a", "1.0.0", "MIT", ""),
		rec("b", "1.0.0", "MIT", ""),
		rec("c", "1.0.0", "GPL-3.0", ""),
		rec("d", "1.0.0", deps.UnknownLicense, ""),
	}

	s := Summarize(records, license.NewChecker([]string{"MIT", "Apache-2.0"}))

	if s.Total != 4 {
		t.Errorf("total = %d, want 4", s.Total)
	}
	if s.Unknown != 1 {
		t.Errorf("unknown = %d, want 1", s.Unknown)
	}
	if len(s.Violations) != 1 || s.Violations[0].Name != "c" {
		t.Errorf("violations = %+v, want just c", s.Violations)
	}
	if len(s.ByLicense) != 3 {
		t.Fatalf("histogram = %+v, want 3 buckets", s.ByLicense)
	}
	if s.ByLicense[0].License != "MIT" || s.ByLicense[0].Count != 2 {
		t.Errorf("top bucket = %+v, want MIT x2", s.ByLicense[0])
	}
	if s.ByLicense[0].URL == "" {
		t.Error("known licenses should carry their canonical URL")
	}
}

func TestSummarizeUnknownIsNotViolation(t *testing.T) {
	s := Summarize([]*deps.Record{rec("a", "1.0.0", deps.UnknownLicense, "")},
		license.NewChecker([]string{"MIT"}))
	if len(s.Violations) != 0 {
		t.Errorf("violations = %+v, UNKNOWN must not count as a violation", s.Violations)
	}
	if s.Unknown != 1 {
		t.Errorf("unknown = %d, want 1", s.Unknown)
	}
}

func TestSummarizeNoAllowList(t *testing.T) {
	s := Summarize([]*deps.Record{rec("a", "1.0.0", "GPL-3.0", "")}, license.NewChecker(nil))
	if len(s.Violations) != 0 {
		t.Errorf("violations = %+v, empty allow-list permits everything", s.Violations)
	}
}

func TestWriteCSVDeduplicates(t *testing.T) {
	records := []*deps.Record{
		rec("lodash", "^4.17.0", deps.UnknownLicense, "https://www.npmjs.com/package/lodash"),
		rec("lodash", "4.17.0", "MIT", "https://www.npmjs.com/package/lodash"),
		rec("left-pad", "1.3.0", "WTFPL", "https://www.npmjs.com/package/left-pad"),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "name,url,license" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("got %d rows, want header plus 2 deduplicated packages:\n%s", len(lines)-1, buf.String())
	}
	for _, line := range lines[1:] {
		if strings.Contains(line, "lodash") && strings.Contains(line, deps.UnknownLicense) {
			t.Errorf("dedup kept the UNKNOWN row over the known license: %q", line)
		}
	}
}

func TestWriteCSVPreservesDistinctVersions(t *testing.T) {
	records := []*deps.Record{
		rec("pkg", "1.0.0", "MIT", "https://example.com/pkg/1"),
		rec("pkg", "2.0.0", "MIT", "https://example.com/pkg/2"),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("got %d rows, want both versions kept:\n%s", len(lines)-1, buf.String())
	}
}

func TestWriteTreeDiamond(t *testing.T) {
	records := []*deps.Record{
		rec("app", "1.0.0", "MIT", ""),
		rec("left", "1.0.0", "MIT", ""),
		rec("right", "1.0.0", "ISC", ""),
		rec("shared", "1.0.0", "BSD-3-Clause", ""),
	}
	edges := map[string][]string{
		"app@1.0.0":   {"left@1.0.0", "right@1.0.0"},
		"left@1.0.0":  {"shared@1.0.0"},
		"right@1.0.0": {"shared@1.0.0"},
	}

	var buf bytes.Buffer
	if err := WriteTree(&buf, records, edges); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "app (MIT)") {
		t.Errorf("missing root line:\n%s", out)
	}
	// A shared dependency prints under every parent.
	if n := strings.Count(out, "shared (BSD-3-Clause)"); n != 2 {
		t.Errorf("shared printed %d times, want 2:\n%s", n, out)
	}
	if strings.Contains(out, "circular") {
		t.Errorf("diamond is not a cycle:\n%s", out)
	}
}

func TestWriteTreeCycle(t *testing.T) {
	records := []*deps.Record{
		rec("app", "1.0.0", "MIT", ""),
		rec("a", "1.0.0", "MIT", ""),
		rec("b", "1.0.0", "MIT", ""),
	}
	edges := map[string][]string{
		"app@1.0.0": {"a@1.0.0"},
		"a@1.0.0":   {"b@1.0.0"},
		"b@1.0.0":   {"a@1.0.0"},
	}

	var buf bytes.Buffer
	if err := WriteTree(&buf, records, edges); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if !strings.Contains(buf.String(), "a@1.0.0 [circular reference]") {
		t.Errorf("cycle not truncated:\n%s", buf.String())
	}
}

func TestWriteTreeUnknownChild(t *testing.T) {
	records := []*deps.Record{rec("app", "1.0.0", "MIT", "")}
	edges := map[string][]string{
		"app@1.0.0": {"ghost@1.0.0"},
	}

	var buf bytes.Buffer
	if err := WriteTree(&buf, records, edges); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if !strings.Contains(buf.String(), "ghost@1.0.0 [unknown]") {
		t.Errorf("missing unknown marker:\n%s", buf.String())
	}
}

func TestToDOT(t *testing.T) {
	records := []*deps.Record{
		rec("app", "1.0.0", "MIT", ""),
		rec("dep", "2.0.0", deps.UnknownLicense, ""),
	}
	edges := map[string][]string{
		"app@1.0.0": {"dep@2.0.0"},
	}

	dot := ToDOT(records, edges)

	if !strings.HasPrefix(dot, "digraph dependencies {") {
		t.Errorf("dot = %q", dot)
	}
	if !strings.Contains(dot, `"app@1.0.0" -> "dep@2.0.0";`) {
		t.Errorf("missing edge:\n%s", dot)
	}
	if !strings.Contains(dot, "fillcolor=lightyellow") {
		t.Errorf("unknown license node not highlighted:\n%s", dot)
	}
}
