package license

import "testing"

func TestCheckerExactMatch(t *testing.T) {
	c := NewChecker([]string{"MIT"})
	if !c.Allowed("MIT") {
		t.Error("MIT should be allowed")
	}
	if c.Allowed("Apache-2.0") {
		t.Error("Apache-2.0 should not be allowed")
	}
}

func TestCheckerWildcardMatch(t *testing.T) {
	c := NewChecker([]string{"Apache*"})
	if !c.Allowed("Apache-2.0") {
		t.Error("Apache-2.0 should match Apache*")
	}
	if !c.Allowed("Apache") {
		t.Error("Apache should match Apache*")
	}
	if c.Allowed("MIT") {
		t.Error("MIT should not match Apache*")
	}
}

func TestCheckerWildcardAnchored(t *testing.T) {
	c := NewChecker([]string{"GPL*"})
	if c.Allowed("LGPL-3.0") {
		t.Error("pattern must anchor at the start: LGPL-3.0 is not GPL*")
	}
}

func TestCheckerMultiplePatterns(t *testing.T) {
	c := NewChecker([]string{"MIT", "ISC"})
	if !c.Allowed("MIT") || !c.Allowed("ISC") {
		t.Error("both listed licenses should be allowed")
	}
	if c.Allowed("GPL-3.0") {
		t.Error("GPL-3.0 should not be allowed")
	}
}

func TestCheckerEmptyAllowsAll(t *testing.T) {
	c := NewChecker(nil)
	if !c.Allowed("MIT") || !c.Allowed("Any-License") {
		t.Error("empty allow-list should allow everything")
	}
}

func TestCheckerLiteralDots(t *testing.T) {
	c := NewChecker([]string{"GPL-3.0"})
	if c.Allowed("GPL-3x0") {
		t.Error("dot in pattern must match literally")
	}
}

func TestDetectFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "mit",
			text: "The MIT License (MIT)\n\nCopyright (c) 2024 Someone",
			want: "MIT",
		},
		{
			name: "mit grant phrasing across lines",
			text: "Permission is hereby granted, free of charge, to any person\nobtaining a copy of this software, subject to the following conditions:",
			want: "MIT",
		},
		{
			name: "apache",
			text: "Apache License\nVersion 2.0, January 2004",
			want: "Apache-2.0",
		},
		{
			name: "bsd3 beats bsd2 on the full text",
			text: "Redistribution and use in source and binary forms are permitted provided that the following conditions are met:\n1. Redistributions in binary form must reproduce the notice.\n3. Neither the name of the copyright holder nor the names of its contributors may be used.",
			want: "BSD-3-Clause",
		},
		{
			name: "bsd2",
			text: "Redistribution and use in source and binary forms are permitted provided that the following conditions are met:\n2. Redistributions in binary form must reproduce the above copyright notice.",
			want: "BSD-2-Clause",
		},
		{
			name: "unlicense",
			text: "This is free and unencumbered software released into the public domain.",
			want: "Unlicense",
		},
		{
			name: "lgpl not mistaken for gpl",
			text: "GNU Lesser General Public License\nVersion 3, 29 June 2007",
			want: "LGPL-3.0",
		},
		{
			name: "unknown",
			text: "All rights reserved. Proprietary and confidential.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFromText(tt.text); got != tt.want {
				t.Errorf("DetectFromText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mit", "MIT"},
		{"  MIT ", "MIT"},
		{"apache 2.0", "Apache-2.0"},
		{"bsd", "BSD-3-Clause"},
		{"gplv3", "GPL-3.0"},
		{"public domain", "Unlicense"},
		{"MPL-2.0", "MPL-2.0"},
		{"Custom-1.0", "Custom-1.0"},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalURL(t *testing.T) {
	if got := CanonicalURL("MIT"); got != "https://opensource.org/licenses/MIT" {
		t.Errorf("CanonicalURL(MIT) = %q", got)
	}
	if got := CanonicalURL("Made-Up-License"); got != "" {
		t.Errorf("CanonicalURL(unknown) = %q, want empty", got)
	}
}
