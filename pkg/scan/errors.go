package scan

import (
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
)

// errorRecord builds the terminal placeholder committed when a resolver
// fails. It guesses the registry and a browsable URL from the identity so
// the failure still points somewhere useful in reports.
func errorRecord(id deps.Identity, err error) *deps.Record {
	registry := "npm"
	url := "https://www.npmjs.com/package/" + id.Name

	lowerName := strings.ToLower(id.Name)
	lowerRes := strings.ToLower(id.Resolution)
	if strings.HasPrefix(lowerName, "github:") || strings.Contains(lowerRes, "github:") {
		registry = "github"
		repo := strings.TrimPrefix(id.Name, "github:")
		repo = strings.TrimPrefix(repo, "GITHUB:")
		if i := strings.IndexAny(repo, "#@"); i >= 0 {
			repo = repo[:i]
		}
		url = "https://github.com/" + repo
	}

	return deps.NewErrorRecord(id, registry, url, err.Error())
}
