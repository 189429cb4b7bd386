package deps

import (
	"strings"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	id := Identity{Name: "lodash", Version: "4.17.21", Resolution: "lodash@npm:4.17.21"}
	if Hash(id) != Hash(id) {
		t.Error("Hash should be stable across calls")
	}
	if len(Hash(id)) != 64 {
		t.Errorf("Hash length should be 64 hex chars, got %d", len(Hash(id)))
	}
}

func TestHashClassification(t *testing.T) {
	tests := []struct {
		name string
		a, b Identity
		same bool
	}{
		{
			name: "registry default keys on name and version",
			a:    Identity{Name: "lodash", Version: "4.17.21"},
			b:    Identity{Name: "lodash", Version: "4.17.20"},
			same: false,
		},
		{
			name: "resolution is immaterial for registry packages",
			a:    Identity{Name: "lodash", Version: "4.17.21", Resolution: "https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz"},
			b:    Identity{Name: "lodash", Version: "4.17.21", Resolution: "lodash@npm:4.17.21"},
			same: true,
		},
		{
			name: "repo packages key on name and resolution",
			a:    Identity{Name: "github:foo/bar", Version: "1.0.0", Resolution: "github:foo/bar#main"},
			b:    Identity{Name: "github:foo/bar", Version: "2.0.0", Resolution: "github:foo/bar#main"},
			same: true,
		},
		{
			name: "repo packages at different refs stay distinct",
			a:    Identity{Name: "github:foo/bar", Version: "1.0.0", Resolution: "github:foo/bar#main"},
			b:    Identity{Name: "github:foo/bar", Version: "1.0.0", Resolution: "github:foo/bar#v2"},
			same: false,
		},
		{
			name: "same archive under different display names deduplicates",
			a:    Identity{Name: "pkg-a", Version: "1.0.0", Resolution: "pkg-a@custom::__archiveUrl=https://example.com/p.tgz"},
			b:    Identity{Name: "pkg-b", Version: "2.0.0", Resolution: "pkg-b@custom::__archiveUrl=https://example.com/p.tgz"},
			same: true,
		},
		{
			name: "marker case is immaterial",
			a:    Identity{Name: "pkg", Version: "1.0.0", Resolution: "pkg@custom::__archiveUrl=https://example.com/p.tgz"},
			b:    Identity{Name: "pkg", Version: "1.0.0", Resolution: "pkg@custom::__ARCHIVEURL=https://example.com/p.tgz"},
			same: true,
		},
		{
			name: "repo marker case is immaterial",
			a:    Identity{Name: "GITHUB:foo/bar", Version: "1.0.0", Resolution: "x"},
			b:    Identity{Name: "GITHUB:foo/bar", Version: "2.0.0", Resolution: "x"},
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, hb := Hash(tt.a), Hash(tt.b)
			if (ha == hb) != tt.same {
				t.Errorf("Hash(%+v)=%s, Hash(%+v)=%s, want same=%v", tt.a, ha, tt.b, hb, tt.same)
			}
		})
	}
}

func TestHashPrecedence(t *testing.T) {
	// A repo marker wins over an archive marker in the same resolution.
	id := Identity{
		Name:       "pkg",
		Version:    "1.0.0",
		Resolution: "github:foo/bar::__archiveUrl=https://example.com/p.tgz",
	}
	other := Identity{Name: "other", Version: "9.9.9", Resolution: "x::__archiveUrl=https://example.com/p.tgz"}
	if Hash(id) == Hash(other) {
		t.Error("repo-addressed identity should not collapse into the archive class")
	}
}

func TestIgnored(t *testing.T) {
	if !(Identity{Name: "local-pkg", Version: "0.0.0-use.local"}).Ignored() {
		t.Error("workspace-local pseudo-version should be ignored")
	}
	if (Identity{Name: "lodash", Version: "4.17.21"}).Ignored() {
		t.Error("regular version should not be ignored")
	}
}

func TestFallbackChecksum(t *testing.T) {
	id := Identity{Name: "@babel/core", Version: "7.0.0"}
	sum := FallbackChecksum(id)
	if !strings.HasPrefix(sum, "fallback:") {
		t.Errorf("fallback checksum should be marked, got %s", sum)
	}
	if sum != FallbackChecksum(id) {
		t.Error("fallback checksum should be deterministic")
	}
}

func TestNewErrorRecord(t *testing.T) {
	id := Identity{Name: "broken", Version: "1.0.0"}
	rec := NewErrorRecord(id, "npm", "https://www.npmjs.com/package/broken", "boom")
	if rec.License != UnknownLicense {
		t.Errorf("error record license = %q, want UNKNOWN", rec.License)
	}
	if rec.DebugInfo == "" {
		t.Error("error record must keep the diagnostic text")
	}
	if !rec.Processed {
		t.Error("error record must be terminal")
	}
	if rec.Display() != "broken@1.0.0" {
		t.Errorf("display = %q", rec.Display())
	}
}
