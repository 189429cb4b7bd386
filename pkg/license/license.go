// Package license implements allow-list checking, identifier normalization
// and best-effort license detection from raw license text.
package license

import (
	"regexp"
	"strings"
)

// Checker tests license identifiers against an allow-list of patterns.
// Patterns support "*" as a wildcard matching any character sequence;
// everything else matches literally and case-sensitively, the way SPDX
// identifiers are written.
type Checker struct {
	patterns []*regexp.Regexp
	raw      []string
}

// NewChecker compiles the allow-list. An empty list allows every license.
func NewChecker(allowed []string) *Checker {
	c := &Checker{raw: allowed}
	for _, pattern := range allowed {
		expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		c.patterns = append(c.patterns, re)
	}
	return c
}

// Allowed reports whether the license matches any allow-list pattern.
// With no patterns configured, every license is allowed.
func (c *Checker) Allowed(license string) bool {
	if len(c.raw) == 0 {
		return true
	}
	for _, re := range c.patterns {
		if re.MatchString(license) {
			return true
		}
	}
	return false
}

// Patterns returns the configured allow-list, for display.
func (c *Checker) Patterns() []string { return c.raw }
