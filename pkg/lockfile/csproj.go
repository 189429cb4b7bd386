package lockfile

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
)

// nugetLicenseEntry mirrors one element of `nuget-license -o jsonPretty`.
type nugetLicenseEntry struct {
	PackageID         string `json:"PackageId"`
	PackageVersion    string `json:"PackageVersion"`
	PackageProjectURL string `json:"PackageProjectUrl"`
	License           string `json:"License"`
	LicenseURL        string `json:"LicenseUrl"`
	Authors           string `json:"Authors"`
	Copyright         string `json:"Copyright"`
}

// ParseCsproj extracts NuGet package information from a .csproj project by
// shelling out to the nuget-license tool. The resulting records are fully
// resolved: they carry their license already and never hit the network.
func ParseCsproj(path string) ([]*deps.Record, error) {
	if _, err := exec.LookPath("nuget-license"); err != nil {
		return nil, fmt.Errorf("nuget-license command not found, install it with 'dotnet tool install --global nuget-license'")
	}

	// The tool exits non-zero when any single package fails to resolve but
	// still prints usable JSON, so the output is parsed regardless.
	out, err := exec.Command("nuget-license", "-t", "-o", "jsonPretty", "-i", path).Output()
	if len(out) == 0 && err != nil {
		return nil, fmt.Errorf("failed to execute nuget-license: %w", err)
	}

	return parseNugetLicenseOutput(out)
}

func parseNugetLicenseOutput(out []byte) ([]*deps.Record, error) {
	var entries []nugetLicenseEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse nuget-license output: %w", err)
	}

	records := make([]*deps.Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.PackageID
		if name == "" {
			name = "unknown"
		}
		version := entry.PackageVersion
		if version == "" {
			version = "0.0.0"
		}
		license := entry.License
		if license == "" {
			license = deps.UnknownLicense
		}

		rec := deps.NewRecord(deps.Identity{
			Name:       name,
			Version:    version,
			Resolution: "nuget:" + name + "/" + version,
		})
		rec.Registry = "nuget"
		rec.DisplayName = name + "@" + version
		rec.License = license
		rec.LicenseURL = entry.LicenseURL
		rec.URL = entry.PackageProjectURL
		if rec.URL == "" {
			rec.URL = "https://www.nuget.org/packages/" + name
		}
		rec.Processed = true

		var info []string
		if entry.Authors != "" {
			info = append(info, "Authors: "+entry.Authors)
		}
		if entry.Copyright != "" {
			info = append(info, "Copyright: "+entry.Copyright)
		}
		rec.DebugInfo = strings.Join(info, ", ")

		records = append(records, rec)
	}
	return records, nil
}
