package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/deps"
	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/parser"
	"github.com/tonic-lang/tonic/internal/profiling"
	"github.com/tonic-lang/tonic/internal/resolver"
)

// compiled is the shared frontend result run/check/compile/test all
// start from.
type compiled struct {
	entryModule string
	fns         []*mir.Function
}

// compileFile runs the full frontend pipeline (parse, resolve, lower to
// IR, build MIR) over one source file, profiling each phase when prof
// is enabled. A nil prof makes every Track call a pure passthrough.
func compileFile(prof *profiling.Profiler, source []byte) (*compiled, error) {
	var mods []*ast.Module
	if err := prof.Track(profiling.PhaseFrontendParse, func() error {
		parsed, parseErr := parser.Parse(source)
		mods = parsed
		return parseErr
	}); err != nil {
		return nil, err
	}

	if err := prof.Track(profiling.PhaseResolveTypes, func() error {
		return resolver.Resolve(mods)
	}); err != nil {
		return nil, err
	}

	var irFns []*ir.Function
	if err := prof.Track(profiling.PhaseIRLower, func() error {
		var lowerErr error
		irFns, lowerErr = ir.Lower(mods)
		return lowerErr
	}); err != nil {
		return nil, err
	}

	var fns []*mir.Function
	if err := prof.Track(profiling.PhaseMIRBuild, func() error {
		var buildErr error
		fns, buildErr = mir.Build(irFns)
		return buildErr
	}); err != nil {
		return nil, err
	}

	if len(mods) == 0 {
		return nil, fmt.Errorf("no modules found in source")
	}
	return &compiled{entryModule: mods[0].Name, fns: fns}, nil
}

// projectRootFor returns the directory a tonic.toml/tonic.lock for
// path's project would live in: path's own directory if path is a
// file, or path itself if it is already a directory.
func projectRootFor(path string) string {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// preflightDeps enforces internal/deps's two pre-run guards when a
// manifest is present alongside the entry file: declared dependencies
// require a lockfile, and every git dependency's lockfile entry must
// already have a synced cache directory. A missing manifest is not an
// error — not every entry file belongs to a dependency-managed project.
func preflightDeps(entryPath string) error {
	root := projectRootFor(entryPath)
	manifestData, err := os.ReadFile(filepath.Join(root, "tonic.toml"))
	if err != nil {
		return nil
	}
	manifest, err := deps.ParseManifest(manifestData)
	if err != nil {
		return err
	}
	lockData, lockErr := os.ReadFile(filepath.Join(root, "tonic.lock"))
	if err := deps.RequireLockfile(manifest, lockErr == nil); err != nil {
		return err
	}
	if lockErr != nil {
		return nil
	}
	lock, err := deps.ParseLockfile(lockData)
	if err != nil {
		return err
	}
	res := deps.NewResolver(root)
	for name := range lock.GitDeps {
		if err := res.RequireGitCache(name); err != nil {
			return err
		}
	}
	return nil
}
