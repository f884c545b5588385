// Package dotnet wraps the .NET build-tool surface the provider depends on:
// target-framework detection from project files, SDK installation through the
// dotnet-install script, and NuGet dependency resolution.
package dotnet

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Framework identifies the runtime/SDK generation a project targets, e.g.
// net8.0, netcoreapp3.1, net472.
type Framework struct {
	TFM string
}

func (f Framework) String() string {
	return f.TFM
}

// IsModern reports whether the framework is a current-generation .NET that
// dotnet-install can provision. Old .NET Framework monikers (net1x through
// net4x) cannot be installed that way.
func (f Framework) IsModern() bool {
	tfm := strings.ToLower(f.TFM)
	if strings.HasPrefix(tfm, "netcoreapp") || strings.HasPrefix(tfm, "netstandard") {
		return true
	}
	if !strings.HasPrefix(tfm, "net") {
		return false
	}
	for _, legacy := range []string{"net4", "net3", "net2", "net1"} {
		if strings.HasPrefix(tfm, legacy) {
			return false
		}
	}
	return true
}

// Channel returns the dotnet-install channel for the framework, e.g. "8.0"
// for net8.0.
func (f Framework) Channel() string {
	major, minor := f.version()
	return fmt.Sprintf("%d.%d", major, minor)
}

// version parses the numeric component of the moniker. Dotted forms (net6.0,
// netcoreapp3.1) parse directly; compact .NET Framework forms (net48, net472)
// read the first digit as the major version.
func (f Framework) version() (major, minor int) {
	tfm := strings.ToLower(f.TFM)
	digits := strings.TrimLeftFunc(tfm, func(r rune) bool {
		return r < '0' || r > '9'
	})
	if cut := strings.IndexFunc(digits, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); cut >= 0 {
		digits = digits[:cut]
	}
	if digits == "" {
		return 0, 0
	}
	if strings.Contains(digits, ".") {
		parts := strings.SplitN(digits, ".", 2)
		major, _ = strconv.Atoi(parts[0])
		minor, _ = strconv.Atoi(strings.TrimRight(parts[1], "."))
		return major, minor
	}
	major, _ = strconv.Atoi(digits[:1])
	minor, _ = strconv.Atoi(digits[1:])
	return major, minor
}

// ordinal gives a total order over frameworks for earliest-selection.
func (f Framework) ordinal() (int, int, string) {
	major, minor := f.version()
	return major, minor, strings.ToLower(f.TFM)
}

func earlier(a, b Framework) bool {
	am, an, as := a.ordinal()
	bm, bn, bs := b.ordinal()
	if am != bm {
		return am < bm
	}
	if an != bn {
		return an < bn
	}
	return as < bs
}

// csproj mirrors the subset of the MSBuild project schema the provider reads.
type csproj struct {
	XMLName        xml.Name        `xml:"Project"`
	PropertyGroups []propertyGroup `xml:"PropertyGroup"`
	ItemGroups     []itemGroup     `xml:"ItemGroup"`
}

type propertyGroup struct {
	TargetFramework  string `xml:"TargetFramework"`
	TargetFrameworks string `xml:"TargetFrameworks"`
}

type itemGroup struct {
	PackageReferences []packageReference `xml:"PackageReference"`
	ProjectReferences []projectReference `xml:"ProjectReference"`
}

type packageReference struct {
	Include string `xml:"Include,attr"`
	Version string `xml:"Version,attr"`
}

type projectReference struct {
	Include string `xml:"Include,attr"`
}

func parseProjectFile(path string) (*csproj, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	var p csproj
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &p, nil
}

// listProjectFiles finds .csproj files under root, skipping build output.
func listProjectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "bin" || name == "obj") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csproj") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// DetectTargetFramework scans the project files under location and returns
// the earliest framework any of them targets. Multi-targeted projects
// (TargetFrameworks) contribute each moniker individually.
func DetectTargetFramework(location string) (Framework, error) {
	paths, err := listProjectFiles(location)
	if err != nil {
		return Framework{}, err
	}
	if len(paths) == 0 {
		return Framework{}, fmt.Errorf("no project files found under %s", location)
	}

	var found []Framework
	for _, path := range paths {
		proj, err := parseProjectFile(path)
		if err != nil {
			return Framework{}, err
		}
		for _, pg := range proj.PropertyGroups {
			if tfm := strings.TrimSpace(pg.TargetFramework); tfm != "" {
				found = append(found, Framework{TFM: tfm})
			}
			for _, tfm := range strings.Split(pg.TargetFrameworks, ";") {
				if tfm = strings.TrimSpace(tfm); tfm != "" {
					found = append(found, Framework{TFM: tfm})
				}
			}
		}
	}
	if len(found) == 0 {
		return Framework{}, fmt.Errorf("no target framework declared in %d project file(s)", len(paths))
	}

	earliest := found[0]
	for _, fw := range found[1:] {
		if earlier(fw, earliest) {
			earliest = fw
		}
	}
	return earliest, nil
}
