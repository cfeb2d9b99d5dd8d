package deps

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// Lockfile is the parsed/generated `tonic.lock`: version=1,
// [path_deps.<name>] path="…", [git_deps.<name>] url="…" rev="…", per
// spec.md §6's exact shape.
type Lockfile struct {
	Version  int                    `toml:"version"`
	PathDeps map[string]PathDepLock `toml:"path_deps"`
	GitDeps  map[string]GitDepLock  `toml:"git_deps"`
}

type PathDepLock struct {
	Path string `toml:"path"`
}

type GitDepLock struct {
	URL string `toml:"url"`
	Rev string `toml:"rev"`
}

// GenerateLockfile builds a Lockfile from a validated manifest. Path and
// git dependencies are separated by which fields they set — validation
// already guaranteed each dependency is one or the other.
func GenerateLockfile(m *Manifest) *Lockfile {
	lock := &Lockfile{
		Version:  1,
		PathDeps: map[string]PathDepLock{},
		GitDeps:  map[string]GitDepLock{},
	}
	for name, raw := range m.Dependencies {
		if raw.Path != "" {
			lock.PathDeps[name] = PathDepLock{Path: raw.Path}
		} else {
			lock.GitDeps[name] = GitDepLock{URL: raw.Git, Rev: raw.Rev}
		}
	}
	return lock
}

// Encode serializes lock deterministically: sorted keys, no timestamps
// or other non-reproducible metadata, so identical logical input yields
// byte-identical output (spec.md §4.10, §8's "lockfile determinism"
// testable property). BurntSushi/toml's Encoder does not itself sort map
// keys, so path_deps/git_deps are instead serialized by hand in sorted
// name order, falling back to the encoder only for each entry's own
// flat {path} / {url, rev} table.
func Encode(lock *Lockfile) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "version = %d\n", lock.Version)

	pathNames := make([]string, 0, len(lock.PathDeps))
	for name := range lock.PathDeps {
		pathNames = append(pathNames, name)
	}
	sort.Strings(pathNames)
	for _, name := range pathNames {
		fmt.Fprintf(&buf, "\n[path_deps.%s]\n", name)
		if err := toml.NewEncoder(&buf).Encode(lock.PathDeps[name]); err != nil {
			return nil, err
		}
	}

	gitNames := make([]string, 0, len(lock.GitDeps))
	for name := range lock.GitDeps {
		gitNames = append(gitNames, name)
	}
	sort.Strings(gitNames)
	for _, name := range gitNames {
		fmt.Fprintf(&buf, "\n[git_deps.%s]\n", name)
		if err := toml.NewEncoder(&buf).Encode(lock.GitDeps[name]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// ParseLockfile parses an existing tonic.lock's bytes.
func ParseLockfile(data []byte) (*Lockfile, error) {
	var lock Lockfile
	if _, err := toml.Decode(string(data), &lock); err != nil {
		return nil, fmt.Errorf("parsing tonic.lock: %w", err)
	}
	return &lock, nil
}
