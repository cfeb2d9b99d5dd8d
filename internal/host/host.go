// Package host implements the standard host registry spec.md §4.8
// describes: a closed set of named Go functions a compiled program reaches
// via host_call(atom_key, args…), covering process execution, filesystem,
// environment, argv, and hashing/random primitives.
package host

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"

	"github.com/tonic-lang/tonic/internal/runtime"
)

// Options configures the standard registry's process-level context: the
// argv exposed to sys_argv and whether test-only hosts are registered.
type Options struct {
	Args []string

	// EnableTestHosts gates memory_cycle_churn, a GC-pressure host meant
	// only for the `tonic test` harness's own memory-mode coverage — not
	// part of a program's ordinary host surface.
	EnableTestHosts bool
}

// Standard returns the closed set of host functions spec.md §4.8 names,
// keyed by atom name exactly as host_call's first argument spells them.
func Standard(opts Options) map[string]runtime.HostFunc {
	hosts := map[string]runtime.HostFunc{
		"sys_run":             sysRun,
		"sys_path_exists":     sysPathExists,
		"sys_ensure_dir":      sysEnsureDir,
		"sys_write_text":      sysWriteText,
		"sys_env":             sysEnv,
		"sys_which":           sysWhich,
		"sys_cwd":             sysCwd,
		"sys_argv":            sysArgv(opts.Args),
		"sys_random_token":    sysRandomToken,
		"sys_hmac_sha256_hex": sysHmacSha256Hex,
	}
	if opts.EnableTestHosts {
		hosts["memory_cycle_churn"] = memoryCycleChurn
	}
	return hosts
}

// expectationError reports a host call's arity/type mismatch exactly as
// spec.md §4.8 specifies, with no added prefix: "<name> expects …".
type expectationError struct {
	msg string
}

func (e *expectationError) Error() string { return e.msg }

func expects(name, shape string) error {
	return &expectationError{msg: fmt.Sprintf("%s expects %s", name, shape)}
}

func stringArg(name string, args []runtime.Value, idx int) (string, error) {
	if idx >= len(args) || args[idx].Kind != runtime.KString {
		return "", expects(name, "a string argument")
	}
	return args[idx].Str, nil
}

// sysRun shells a command out via `sh -c <cmd>` (spec.md §5's external
// subprocess list), returning %{status: :ok|:error, stdout:, stderr:,
// exit_code:}. Non-zero exit is reported through the map, not a Go error:
// a failing subprocess is ordinary program data, not a host malfunction.
func sysRun(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 {
		return runtime.Value{}, expects("sys_run", "1 string argument (the shell command)")
	}
	command, err := stringArg("sys_run", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	cmd := exec.Command("sh", "-c", command)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	status := "ok"
	exitCode := int64(0)
	if runErr := cmd.Run(); runErr != nil {
		status = "error"
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = int64(exitErr.ExitCode())
		} else {
			exitCode = -1
		}
	}
	return runtime.Value{Kind: runtime.KMap, Entries: []runtime.MapEntry{
		{Key: runtime.Atom("status"), Value: runtime.Atom(status)},
		{Key: runtime.Atom("stdout"), Value: runtime.Str(stdout.String())},
		{Key: runtime.Atom("stderr"), Value: runtime.Str(stderr.String())},
		{Key: runtime.Atom("exit_code"), Value: runtime.Int(exitCode)},
	}}, nil
}

func sysPathExists(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 {
		return runtime.Value{}, expects("sys_path_exists", "1 string argument (the path)")
	}
	path, err := stringArg("sys_path_exists", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	_, statErr := os.Stat(path)
	return runtime.Bool_(statErr == nil), nil
}

func sysEnsureDir(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 {
		return runtime.Value{}, expects("sys_ensure_dir", "1 string argument (the path)")
	}
	path, err := stringArg("sys_ensure_dir", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return runtime.Value{}, fmt.Errorf("sys_ensure_dir: %w", err)
	}
	return runtime.Atom("ok"), nil
}

func sysWriteText(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 2 {
		return runtime.Value{}, expects("sys_write_text", "2 string arguments (path, contents)")
	}
	path, err := stringArg("sys_write_text", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	contents, err := stringArg("sys_write_text", args, 1)
	if err != nil {
		return runtime.Value{}, err
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return runtime.Value{}, fmt.Errorf("sys_write_text: %w", err)
	}
	return runtime.Atom("ok"), nil
}

func sysEnv(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 {
		return runtime.Value{}, expects("sys_env", "1 string argument (the variable name)")
	}
	name, err := stringArg("sys_env", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return runtime.Nil(), nil
	}
	return runtime.Str(v), nil
}

// sysWhich shells out to the `which` binary itself (spec.md §5 lists it
// among external subprocesses alongside sh -c/git/the C compiler) rather
// than resolving PATH in-process, so its notion of "executable" matches
// whatever `which` the host environment actually has installed.
func sysWhich(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 {
		return runtime.Value{}, expects("sys_which", "1 string argument (the program name)")
	}
	name, err := stringArg("sys_which", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	out, runErr := exec.Command("which", name).Output()
	if runErr != nil {
		return runtime.Nil(), nil
	}
	return runtime.Str(strings.TrimSpace(string(out))), nil
}

func sysCwd(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 0 {
		return runtime.Value{}, expects("sys_cwd", "no arguments")
	}
	dir, err := os.Getwd()
	if err != nil {
		return runtime.Value{}, fmt.Errorf("sys_cwd: %w", err)
	}
	return runtime.Str(dir), nil
}

func sysArgv(argv []string) runtime.HostFunc {
	return func(args []runtime.Value) (runtime.Value, error) {
		if len(args) != 0 {
			return runtime.Value{}, expects("sys_argv", "no arguments")
		}
		elems := make([]runtime.Value, len(argv))
		for i, a := range argv {
			elems[i] = runtime.Str(a)
		}
		return runtime.Value{Kind: runtime.KList, Elems: elems}, nil
	}
}

// sysRandomToken returns a base64url-encoded token of the requested byte
// length (spec.md §4.8: 16..=64).
func sysRandomToken(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 || args[0].Kind != runtime.KInt {
		return runtime.Value{}, expects("sys_random_token", "1 integer argument (byte length)")
	}
	n := args[0].Int
	if n < 16 || n > 64 {
		return runtime.Value{}, expects("sys_random_token", "a byte length between 16 and 64")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return runtime.Value{}, fmt.Errorf("sys_random_token: %w", err)
	}
	return runtime.Str(base64.URLEncoding.EncodeToString(buf)), nil
}

// sysHmacSha256Hex computes HMAC-SHA256(secret, message) hex-encoded.
func sysHmacSha256Hex(args []runtime.Value) (runtime.Value, error) {
	if len(args) != 2 {
		return runtime.Value{}, expects("sys_hmac_sha256_hex", "2 string arguments (secret, message)")
	}
	secret, err := stringArg("sys_hmac_sha256_hex", args, 0)
	if err != nil {
		return runtime.Value{}, err
	}
	if secret == "" {
		return runtime.Value{}, expects("sys_hmac_sha256_hex", "a non-empty secret")
	}
	message, err := stringArg("sys_hmac_sha256_hex", args, 1)
	if err != nil {
		return runtime.Value{}, err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return runtime.Str(hex.EncodeToString(mac.Sum(nil))), nil
}

// memoryCycleChurn is test-only: it forces a handful of GC cycles so a
// trace-mode memory-mode test can observe collection actually happening
// rather than asserting on timing.
func memoryCycleChurn(args []runtime.Value) (runtime.Value, error) {
	n := 3
	if len(args) == 1 && args[0].Kind == runtime.KInt {
		n = int(args[0].Int)
	}
	for i := 0; i < n; i++ {
		goruntime.GC()
	}
	return runtime.Atom("ok"), nil
}
