// Package cache implements the build cache spec.md §4.9 describes: a
// content-addressed store keyed by a 256-bit fingerprint of everything
// that can change a build's output, with build artifacts written
// alongside under a separate native-sidecar path.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Inputs collects everything Fingerprint hashes, named exactly as
// spec.md §4.9 lists them: canonicalized source contents, the lockfile's
// canonical bytes, resolved dependency identities, the chosen backend,
// and a compiler version stamp.
type Inputs struct {
	SourceFiles          map[string][]byte // path -> canonicalized contents
	LockfileCanonical    []byte
	DependencyIdentities []string
	Backend              string
	CompilerVersion      string
}

// Fingerprint hashes Inputs into a 256-bit (32-byte) fingerprint. Source
// files are hashed concurrently via errgroup since canonicalization of
// each file is independent work and a project's source set can be large;
// the per-file digests are then combined in sorted-path order so the
// result is independent of scheduling order.
func Fingerprint(ctx context.Context, in Inputs) ([32]byte, error) {
	paths := make([]string, 0, len(in.SourceFiles))
	for p := range in.SourceFiles {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	digests := make([][32]byte, len(paths))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			digests[i] = sha256.Sum256(in.SourceFiles[p])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [32]byte{}, err
	}

	h := sha256.New()
	for i, p := range paths {
		io.WriteString(h, p)
		h.Write(digests[i][:])
	}
	h.Write(in.LockfileCanonical)
	depIDs := append([]string{}, in.DependencyIdentities...)
	sort.Strings(depIDs)
	for _, id := range depIDs {
		io.WriteString(h, id)
	}
	io.WriteString(h, in.Backend)
	io.WriteString(h, in.CompilerVersion)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Hex renders a fingerprint the way cache paths spell it:
// `.tonic/cache/<hex-fingerprint>`.
func Hex(fp [32]byte) string { return hex.EncodeToString(fp[:]) }

// Store resolves cache/build artifact paths under a project's .tonic
// directory and traces hit/miss/write outcomes through logrus the way
// the rest of this codebase logs, gated on the same TONIC_DEBUG_CACHE
// env var spec.md names.
type Store struct {
	Root string // project root; paths are Root/.tonic/...
	Log  *logrus.Logger
}

func NewStore(root string, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{Root: root, Log: log}
}

func (s *Store) cachePath(fp [32]byte) string {
	return filepath.Join(s.Root, ".tonic", "cache", Hex(fp))
}

// BuildArtifactPath is the sidecar path for a native-backend artifact
// keyed by entry point rather than fingerprint, e.g.
// `.tonic/build/main.ll` or `.tonic/build/main.o`.
func (s *Store) BuildArtifactPath(entry, ext string) string {
	return filepath.Join(s.Root, ".tonic", "build", entry+ext)
}

func (s *Store) traceEnabled() bool {
	return os.Getenv("TONIC_DEBUG_CACHE") == "1"
}

func (s *Store) trace(status, fp string) {
	if s.traceEnabled() {
		s.Log.Infof("cache-status %s %s", status, fp)
	}
}

// Read returns a cached artifact's bytes. A regular readable file at the
// fingerprint's path is a hit; anything else (missing, or a non-regular
// file — treated as corruption rather than a read error) is reported as
// a miss so callers always fall through to rebuilding.
func (s *Store) Read(fp [32]byte) ([]byte, bool) {
	path := s.cachePath(fp)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.trace("miss", Hex(fp))
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.trace("miss", Hex(fp))
		return nil, false
	}
	s.trace("hit", Hex(fp))
	return data, true
}

// Write best-effort writes an artifact under its fingerprint. A write
// failure never fails the build — it only warns — since the cache is an
// optimization, not a correctness requirement.
func (s *Store) Write(fp [32]byte, data []byte) {
	path := s.cachePath(fp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.Log.Warnf("warning: failed to write cache artifact %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.Log.Warnf("warning: failed to write cache artifact %s: %v", path, err)
	}
}

// TraceModuleLoad logs a lazy stdlib module load when
// TONIC_DEBUG_MODULE_LOADS=1 is set.
func (s *Store) TraceModuleLoad(name string) {
	if os.Getenv("TONIC_DEBUG_MODULE_LOADS") == "1" {
		s.Log.Infof("module-load stdlib:%s", name)
	}
}
