package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tonic-lang/tonic/internal/runtime"
)

func TestStandardRegistersExpectedHosts(t *testing.T) {
	hosts := Standard(Options{Args: []string{"a", "b"}})
	for _, name := range []string{
		"sys_run", "sys_path_exists", "sys_ensure_dir", "sys_write_text",
		"sys_env", "sys_which", "sys_cwd", "sys_argv",
		"sys_random_token", "sys_hmac_sha256_hex",
	} {
		if _, ok := hosts[name]; !ok {
			t.Fatalf("expected %s to be registered", name)
		}
	}
	if _, ok := hosts["memory_cycle_churn"]; ok {
		t.Fatal("memory_cycle_churn must not be registered without EnableTestHosts")
	}
}

func TestStandardEnableTestHosts(t *testing.T) {
	hosts := Standard(Options{EnableTestHosts: true})
	if _, ok := hosts["memory_cycle_churn"]; !ok {
		t.Fatal("expected memory_cycle_churn to be registered")
	}
}

func TestSysRunCapturesStdoutAndStatus(t *testing.T) {
	v, err := sysRun([]runtime.Value{runtime.Str("echo hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KMap {
		t.Fatalf("expected a map, got %s", runtime.Render(v))
	}
	entry := func(key string) runtime.Value {
		for _, e := range v.Entries {
			if e.Key.Str == key {
				return e.Value
			}
		}
		t.Fatalf("missing entry %q", key)
		return runtime.Nil()
	}
	if entry("status").Str != "ok" {
		t.Fatalf("expected status ok, got %s", runtime.Render(entry("status")))
	}
	if entry("stdout").Str != "hello\n" {
		t.Fatalf("expected stdout hello, got %q", entry("stdout").Str)
	}
	if entry("exit_code").Int != 0 {
		t.Fatalf("expected exit_code 0, got %d", entry("exit_code").Int)
	}
}

func TestSysRunReportsNonZeroExit(t *testing.T) {
	v, err := sysRun([]runtime.Value{runtime.Str("exit 3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range v.Entries {
		if e.Key.Str == "status" && e.Value.Str != "error" {
			t.Fatalf("expected status error, got %s", e.Value.Str)
		}
		if e.Key.Str == "exit_code" && e.Value.Int != 3 {
			t.Fatalf("expected exit_code 3, got %d", e.Value.Int)
		}
	}
}

func TestSysRunRejectsWrongArity(t *testing.T) {
	if _, err := sysRun(nil); err == nil {
		t.Fatal("expected an arity error")
	}
}

func TestSysPathExistsAndEnsureDirAndWriteText(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")

	exists, err := sysPathExists([]runtime.Value{runtime.Str(nested)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists.Bool {
		t.Fatal("expected path to not exist yet")
	}

	if _, err := sysEnsureDir([]runtime.Value{runtime.Str(nested)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, err = sysPathExists([]runtime.Value{runtime.Str(nested)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists.Bool {
		t.Fatal("expected directory to exist after sys_ensure_dir")
	}

	file := filepath.Join(nested, "out.txt")
	if _, err := sysWriteText([]runtime.Value{runtime.Str(file), runtime.Str("contents")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("unexpected error reading back: %v", err)
	}
	if string(got) != "contents" {
		t.Fatalf("expected contents, got %q", got)
	}
}

func TestSysEnvReturnsNilWhenUnset(t *testing.T) {
	v, err := sysEnv([]runtime.Value{runtime.Str("TONIC_HOST_TEST_DOES_NOT_EXIST")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KNil {
		t.Fatalf("expected nil, got %s", runtime.Render(v))
	}
}

func TestSysEnvReturnsSetValue(t *testing.T) {
	t.Setenv("TONIC_HOST_TEST_VAR", "present")
	v, err := sysEnv([]runtime.Value{runtime.Str("TONIC_HOST_TEST_VAR")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Str != "present" {
		t.Fatalf("expected present, got %q", v.Str)
	}
}

func TestSysArgvReturnsConfiguredArgs(t *testing.T) {
	fn := sysArgv([]string{"one", "two"})
	v, err := fn(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Elems) != 2 || v.Elems[0].Str != "one" || v.Elems[1].Str != "two" {
		t.Fatalf("unexpected argv: %s", runtime.Render(v))
	}
}

func TestSysCwdMatchesOsGetwd(t *testing.T) {
	want, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := sysCwd(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Str != want {
		t.Fatalf("expected %q, got %q", want, v.Str)
	}
}

func TestSysRandomTokenLengthAndRange(t *testing.T) {
	v, err := sysRandomToken([]runtime.Value{runtime.Int(32)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KString || len(v.Str) == 0 {
		t.Fatalf("expected a non-empty token string, got %s", runtime.Render(v))
	}
	if _, err := sysRandomToken([]runtime.Value{runtime.Int(8)}); err == nil {
		t.Fatal("expected an error for a byte length below 16")
	}
	if _, err := sysRandomToken([]runtime.Value{runtime.Int(128)}); err == nil {
		t.Fatal("expected an error for a byte length above 64")
	}
}

func TestSysRandomTokenProducesDistinctTokens(t *testing.T) {
	a, err := sysRandomToken([]runtime.Value{runtime.Int(16)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := sysRandomToken([]runtime.Value{runtime.Int(16)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Str == b.Str {
		t.Fatal("expected two random tokens to differ")
	}
}

func TestSysHmacSha256HexIsDeterministic(t *testing.T) {
	a, err := sysHmacSha256Hex([]runtime.Value{runtime.Str("secret"), runtime.Str("message")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := sysHmacSha256Hex([]runtime.Value{runtime.Str("secret"), runtime.Str("message")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Str != b.Str {
		t.Fatal("expected identical inputs to produce identical hmacs")
	}
	if len(a.Str) != 64 {
		t.Fatalf("expected a 64-character hex digest, got %d chars", len(a.Str))
	}
}

func TestSysHmacSha256HexRejectsEmptySecret(t *testing.T) {
	if _, err := sysHmacSha256Hex([]runtime.Value{runtime.Str(""), runtime.Str("message")}); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestMemoryCycleChurnReturnsOk(t *testing.T) {
	v, err := memoryCycleChurn([]runtime.Value{runtime.Int(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KAtom || v.Str != "ok" {
		t.Fatalf("expected :ok, got %s", runtime.Render(v))
	}
}
