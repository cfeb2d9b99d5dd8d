package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseManifestAcceptsPathDependency(t *testing.T) {
	src := `
[project]
name = "demo"
entry = "main.tn"

[dependencies.util]
path = "../util"
`
	m, err := ParseManifest([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Project.Name != "demo" || m.Project.Entry != "main.tn" {
		t.Fatalf("unexpected project section: %+v", m.Project)
	}
	if m.Dependencies["util"].Path != "../util" {
		t.Fatalf("expected path dependency, got %+v", m.Dependencies["util"])
	}
}

func TestParseManifestAcceptsGitDependency(t *testing.T) {
	src := `
[project]
name = "demo"
entry = "main.tn"

[dependencies.lib]
git = "https://example.com/lib.git"
rev = "abc123"
`
	m, err := ParseManifest([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Dependencies["lib"].Git != "https://example.com/lib.git" || m.Dependencies["lib"].Rev != "abc123" {
		t.Fatalf("unexpected git dependency: %+v", m.Dependencies["lib"])
	}
}

func TestParseManifestRejectsIncompleteGitDependency(t *testing.T) {
	src := `
[project]
name = "demo"
entry = "main.tn"

[dependencies.lib]
git = "https://example.com/lib.git"
`
	_, err := ParseManifest([]byte(src))
	if err == nil {
		t.Fatal("expected an error for a git dependency missing rev")
	}
	want := "dependency 'lib' must specify either a string 'path' or both string 'git' and 'rev'"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestParseManifestRejectsEmptyDependency(t *testing.T) {
	src := `
[project]
name = "demo"
entry = "main.tn"

[dependencies.lib]
`
	_, err := ParseManifest([]byte(src))
	if err == nil {
		t.Fatal("expected an error for a dependency with no path or git/rev")
	}
}

func TestValidateNameRejectsMalformedPath(t *testing.T) {
	if err := ValidateName("Not An Identifier"); err == nil {
		t.Fatal("expected an error for a malformed dependency name")
	}
}

func TestValidateNameAcceptsWellFormedPath(t *testing.T) {
	if err := ValidateName("example.com/lib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSortedDependencyNamesIsSorted(t *testing.T) {
	m := &Manifest{Dependencies: map[string]DependencyRaw{
		"zebra": {Path: "../zebra"},
		"alpha": {Path: "../alpha"},
		"mid":   {Path: "../mid"},
	}}
	got := m.SortedDependencyNames()
	want := []string{"alpha", "mid", "zebra"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestGenerateLockfileSeparatesPathAndGitDeps(t *testing.T) {
	m := &Manifest{Dependencies: map[string]DependencyRaw{
		"util": {Path: "../util"},
		"lib":  {Git: "https://example.com/lib.git", Rev: "abc123"},
	}}
	lock := GenerateLockfile(m)
	if lock.Version != 1 {
		t.Fatalf("expected version 1, got %d", lock.Version)
	}
	if lock.PathDeps["util"].Path != "../util" {
		t.Fatalf("expected path dep util, got %+v", lock.PathDeps)
	}
	if lock.GitDeps["lib"].URL != "https://example.com/lib.git" || lock.GitDeps["lib"].Rev != "abc123" {
		t.Fatalf("expected git dep lib, got %+v", lock.GitDeps)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := &Manifest{Dependencies: map[string]DependencyRaw{
		"zebra": {Path: "../zebra"},
		"alpha": {Git: "https://example.com/alpha.git", Rev: "rev1"},
		"mid":   {Path: "../mid"},
	}}
	lock := GenerateLockfile(m)
	a, err := Encode(lock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Encode(lock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected encoding the same lockfile twice to be byte-identical")
	}
}

func TestEncodeThenParseRoundTrips(t *testing.T) {
	m := &Manifest{Dependencies: map[string]DependencyRaw{
		"util": {Path: "../util"},
		"lib":  {Git: "https://example.com/lib.git", Rev: "abc123"},
	}}
	lock := GenerateLockfile(m)
	data, err := Encode(lock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := ParseLockfile(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Version != 1 {
		t.Fatalf("expected version 1, got %d", parsed.Version)
	}
	if parsed.PathDeps["util"].Path != "../util" {
		t.Fatalf("expected util path dep round trip, got %+v", parsed.PathDeps)
	}
	if parsed.GitDeps["lib"].URL != "https://example.com/lib.git" || parsed.GitDeps["lib"].Rev != "abc123" {
		t.Fatalf("expected lib git dep round trip, got %+v", parsed.GitDeps)
	}
}

func TestRequireLockfileRejectsMissingLockWithDeclaredDeps(t *testing.T) {
	m := &Manifest{Dependencies: map[string]DependencyRaw{"util": {Path: "../util"}}}
	err := RequireLockfile(m, false)
	if err == nil {
		t.Fatal("expected an error when dependencies are declared but no lockfile is present")
	}
	want := "dependencies declared in tonic.toml but tonic.lock is missing; run `tonic deps lock` or `tonic deps sync`"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestRequireLockfileAllowsNoDependencies(t *testing.T) {
	m := &Manifest{}
	if err := RequireLockfile(m, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireLockfileAllowsPresentLockfile(t *testing.T) {
	m := &Manifest{Dependencies: map[string]DependencyRaw{"util": {Path: "../util"}}}
	if err := RequireLockfile(m, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolvePathIsRelativeToProjectRootNotCwd(t *testing.T) {
	r := NewResolver("/home/dev/project")
	got := r.ResolvePath("../util")
	want := filepath.Clean("/home/dev/util")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestResolvePathLeavesAbsolutePathsAlone(t *testing.T) {
	r := NewResolver("/home/dev/project")
	got := r.ResolvePath("/opt/shared/util")
	if got != "/opt/shared/util" {
		t.Fatalf("expected absolute path unchanged, got %q", got)
	}
}

func TestGitCacheDirIsUnderDotTonicDeps(t *testing.T) {
	r := NewResolver("/home/dev/project")
	got := r.GitCacheDir("lib")
	want := filepath.Join("/home/dev/project", ".tonic", "deps", "lib")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRequireGitCacheFailsWhenDirAbsent(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	err := r.RequireGitCache("lib")
	if err == nil {
		t.Fatal("expected an error when the git cache directory does not exist")
	}
	want := "cached git dependency 'lib' not found at " + r.GitCacheDir("lib") + "; run `tonic deps sync`"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestRequireGitCacheSucceedsWhenDirPresent(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	if err := os.MkdirAll(r.GitCacheDir("lib"), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.RequireGitCache("lib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSyncFailsWithExactMessageWhenRepoUnreachable(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	lock := &Lockfile{
		Version: 1,
		GitDeps: map[string]GitDepLock{
			"ghost": {URL: "https://example.invalid/does-not-exist.git", Rev: "deadbeef"},
		},
	}
	err := r.Sync(lock)
	if err == nil {
		t.Fatal("expected an error syncing an unreachable repository")
	}
	want := "failed to fetch git dependency 'ghost' from 'https://example.invalid/does-not-exist.git' at rev 'deadbeef'; verify the repository URL and revision are reachable"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
