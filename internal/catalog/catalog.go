// Package catalog loads the curated fixture set that drives
// compile/run parity assertions (spec.md's glossary entry for
// "Catalog") and runs each fixture through the interpreter and,
// optionally, the native backend, comparing their outputs.
//
// Fixtures are single-file golang.org/x/tools/txtar archives under
// testdata/catalog/*.txtar, each holding a `source.tn` file, a
// `stdout` file with the expected rendered result, and a `meta` file
// of `key = value` lines (`status = active|skip`, `exit_code = N`).
package catalog

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/tools/txtar"
)

// Status is a fixture's participation level in parity checks.
type Status string

const (
	StatusActive Status = "active"
	StatusSkip   Status = "skip"
)

// Fixture is one parsed catalog entry.
type Fixture struct {
	Name         string
	Source       []byte
	WantStdout   string
	WantExitCode int
	Status       Status
}

// ParseError reports a malformed fixture archive.
type ParseError struct {
	Name, Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("catalog fixture %q: %s", e.Name, e.Reason)
}

// Parse decodes one txtar-encoded fixture. name is used only for error
// messages; callers typically pass the archive's file path.
func Parse(name string, data []byte) (*Fixture, error) {
	archive := txtar.Parse(data)
	f := &Fixture{Name: name, Status: StatusActive, WantExitCode: 0}

	var haveSource bool
	for _, file := range archive.Files {
		switch file.Name {
		case "source.tn":
			f.Source = file.Data
			haveSource = true
		case "stdout":
			f.WantStdout = string(file.Data)
		case "meta":
			if err := applyMeta(f, file.Data); err != nil {
				return nil, &ParseError{Name: name, Reason: err.Error()}
			}
		}
	}
	if !haveSource {
		return nil, &ParseError{Name: name, Reason: "missing source.tn section"}
	}
	return f, nil
}

func applyMeta(f *Fixture, data []byte) error {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("malformed meta line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "status":
			switch Status(value) {
			case StatusActive, StatusSkip:
				f.Status = Status(value)
			default:
				return fmt.Errorf("unknown status %q", value)
			}
		case "exit_code":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid exit_code %q: %w", value, err)
			}
			f.WantExitCode = n
		default:
			return fmt.Errorf("unknown meta key %q", key)
		}
	}
	return scanner.Err()
}

// Encode serializes a Fixture back to txtar bytes, the inverse of
// Parse. Used by fixture-authoring tooling and round-trip tests.
func Encode(f *Fixture) []byte {
	archive := &txtar.Archive{
		Files: []txtar.File{
			{Name: "source.tn", Data: f.Source},
			{Name: "stdout", Data: []byte(f.WantStdout)},
			{Name: "meta", Data: []byte(fmt.Sprintf("status = %s\nexit_code = %d\n", f.Status, f.WantExitCode))},
		},
	}
	return txtar.Format(archive)
}
