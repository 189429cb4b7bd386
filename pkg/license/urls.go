package license

// canonicalURLs maps common license identifiers to their canonical web page.
var canonicalURLs = map[string]string{
	"MIT":          "https://opensource.org/licenses/MIT",
	"Apache-2.0":   "https://opensource.org/licenses/Apache-2.0",
	"BSD-2-Clause": "https://opensource.org/licenses/BSD-2-Clause",
	"BSD-3-Clause": "https://opensource.org/licenses/BSD-3-Clause",
	"GPL-2.0":      "https://www.gnu.org/licenses/old-licenses/gpl-2.0.en.html",
	"GPL-3.0":      "https://www.gnu.org/licenses/gpl-3.0.en.html",
	"LGPL-2.1":     "https://www.gnu.org/licenses/old-licenses/lgpl-2.1.en.html",
	"LGPL-3.0":     "https://www.gnu.org/licenses/lgpl-3.0.en.html",
	"ISC":          "https://opensource.org/licenses/ISC",
	"MPL-2.0":      "https://opensource.org/licenses/MPL-2.0",
	"CDDL-1.0":     "https://opensource.org/licenses/CDDL-1.0",
	"EPL-2.0":      "https://opensource.org/licenses/EPL-2.0",
	"CC0-1.0":      "https://creativecommons.org/publicdomain/zero/1.0/",
	"Unlicense":    "https://unlicense.org/",
	"Zlib":         "https://opensource.org/licenses/Zlib",
	"WTFPL":        "http://www.wtfpl.net/",
	"0BSD":         "https://opensource.org/licenses/0BSD",

	// Aliases and common variations.
	"Apache 2.0":         "https://opensource.org/licenses/Apache-2.0",
	"Apache License 2.0": "https://opensource.org/licenses/Apache-2.0",
	"GPL-2.0-only":       "https://www.gnu.org/licenses/old-licenses/gpl-2.0.en.html",
	"GPL-2.0-or-later":   "https://www.gnu.org/licenses/old-licenses/gpl-2.0.en.html",
	"GPL-3.0-only":       "https://www.gnu.org/licenses/gpl-3.0.en.html",
	"GPL-3.0-or-later":   "https://www.gnu.org/licenses/gpl-3.0.en.html",
}

// CanonicalURL returns the canonical web page for a license identifier, or
// "" when none is known.
func CanonicalURL(license string) string {
	return canonicalURLs[license]
}
