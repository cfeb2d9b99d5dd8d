// Package deps implements dependency manifest/lockfile parsing and git
// dependency syncing, spec.md §4.10. Configuration is parsed with
// BurntSushi/toml, the idiomatic TOML library SPEC_FULL.md's
// Configuration section names, and dependency name validation borrows
// golang.org/x/mod/module's module-path checker rather than hand-rolling
// one.
package deps

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/module"
)

// Manifest is the parsed `tonic.toml` project file.
type Manifest struct {
	Project      ProjectSection           `toml:"project"`
	Dependencies map[string]DependencyRaw `toml:"dependencies"`
}

type ProjectSection struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// DependencyRaw is one [dependencies.X] table before validation: either
// shape may be present in the TOML text, and validation decides which
// one (if either) is actually well-formed.
type DependencyRaw struct {
	Path string `toml:"path"`
	Git  string `toml:"git"`
	Rev  string `toml:"rev"`
}

// ManifestError reports a manifest validation failure with the exact
// wording spec.md §4.10 specifies.
type ManifestError struct {
	msg string
}

func (e *ManifestError) Error() string { return e.msg }

// ParseManifest parses and validates tonic.toml's bytes, rejecting any
// dependency entry that specifies neither a path nor a complete git+rev
// pair.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parsing tonic.toml: %w", err)
	}
	for name, raw := range m.Dependencies {
		if err := validateDependency(name, raw); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func validateDependency(name string, raw DependencyRaw) error {
	hasPath := raw.Path != ""
	hasGit := raw.Git != ""
	hasRev := raw.Rev != ""
	if hasPath {
		return nil
	}
	if hasGit && hasRev {
		return nil
	}
	return &ManifestError{msg: fmt.Sprintf(
		"dependency '%s' must specify either a string 'path' or both string 'git' and 'rev'", name)}
}

// ValidateName reports whether a dependency name is a well-formed module
// path, reusing golang.org/x/mod/module's own validator rather than
// reimplementing Go's module-path grammar.
func ValidateName(name string) error {
	return module.CheckPath(name)
}

// SortedDependencyNames returns m's dependency names in sorted order, the
// iteration order every deterministic-output path (lockfile generation,
// sync reporting) must use instead of ranging the map directly.
func (m *Manifest) SortedDependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
