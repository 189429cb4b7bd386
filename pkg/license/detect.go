package license

import (
	"regexp"
	"strings"
)

// textPatterns match characteristic phrases of well-known license texts.
// Order matters: more specific licenses come before ones whose phrases they
// contain (the 3-clause BSD text also satisfies the 2-clause pattern, and
// LGPL texts mention the GPL).
var textPatterns = []struct {
	id string
	re *regexp.Regexp
}{
	{"MIT", regexp.MustCompile(`(?is)(Permission is hereby granted, free of charge,.*MIT License|The MIT License \(MIT\)|MIT License Copyright|Permission is hereby granted, free of charge,.*subject to the following conditions)`)},
	{"Apache-2.0", regexp.MustCompile(`(?is)(Apache License.*Version 2\.0|Licensed under the Apache License, Version 2\.0)`)},
	{"BSD-3-Clause", regexp.MustCompile(`(?is)(redistribution and use.*permitted provided that.*conditions are met.*neither the name.*nor the names of|The 3-Clause BSD License|3-Clause BSD License|3-clause BSD license)`)},
	{"BSD-2-Clause", regexp.MustCompile(`(?is)redistribution and use.*permitted provided that.*conditions are met.*binary form must`)},
	{"ISC", regexp.MustCompile(`(?is)ISC License.*Permission to use, copy, modify, and/or distribute`)},
	{"Unlicense", regexp.MustCompile(`(?is)This is free and unencumbered software released into the public domain`)},
	{"MPL-2.0", regexp.MustCompile(`(?is)(Mozilla Public License.*Version 2\.0|MPL 2\.0)`)},
	{"LGPL-2.1", regexp.MustCompile(`(?is)GNU Lesser General Public License.*Version 2\.1`)},
	{"LGPL-3.0", regexp.MustCompile(`(?is)GNU Lesser General Public License.*Version 3`)},
	{"GPL-3.0", regexp.MustCompile(`(?is)GNU General Public License.*Version 3`)},
	{"GPL-2.0", regexp.MustCompile(`(?is)GNU General Public License.*Version 2`)},
	{"CC0-1.0", regexp.MustCompile(`(?is)(Creative Commons Legal Code.*CC0 1\.0|CC0 1\.0 Universal|The person.*waives all of his or her rights)`)},
	{"EPL-2.0", regexp.MustCompile(`(?is)(Eclipse Public License.*2\.0|EPL-2\.0)`)},
}

// DetectFromText guesses the license identifier from raw license text.
// Returns "" when no known license matches.
func DetectFromText(text string) string {
	for _, p := range textPatterns {
		if p.re.MatchString(text) {
			return p.id
		}
	}
	return ""
}

// NormalizeID cleans up commonly found license identifier variations.
// Unrecognized identifiers pass through unchanged.
func NormalizeID(license string) string {
	switch strings.ToLower(strings.TrimSpace(license)) {
	case "mit":
		return "MIT"
	case "apache2", "apache 2", "apache2.0", "apache 2.0":
		return "Apache-2.0"
	case "bsd", "bsd-3":
		// Default to 3-clause when unspecified.
		return "BSD-3-Clause"
	case "bsd-2":
		return "BSD-2-Clause"
	case "gpl", "gpl3", "gplv3", "gpl-3":
		return "GPL-3.0"
	case "gpl2", "gplv2", "gpl-2":
		return "GPL-2.0"
	case "isc license":
		return "ISC"
	case "public domain":
		return "Unlicense"
	default:
		return license
	}
}
