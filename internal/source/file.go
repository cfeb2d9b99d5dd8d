// Package source holds loaded program text and maps byte offsets to
// line/column positions for diagnostics.
package source

import "strings"

// File is an immutable view of one compiled input: its path, its raw
// bytes, and a line-start index built once at load time. All later
// compiler stages address positions in this file by byte offset.
type File struct {
	Path       string
	Bytes      []byte
	lineStarts []int
}

// NewFile loads a File from raw bytes, indexing line starts.
func NewFile(path string, contents []byte) *File {
	f := &File{Path: path, Bytes: contents}
	f.lineStarts = []int{0}
	for i, b := range contents {
		if b == '\n' {
			f.lineStarts = append(f.lineStarts, i+1)
		}
	}
	return f
}

// Position is a 1-based line/column pair.
type Position struct {
	Line   int
	Column int
}

// Position converts a byte offset into a 1-based (line, column) pair.
// Offsets past the end of the file clamp to the last line.
func (f *File) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.Bytes) {
		offset = len(f.Bytes)
	}

	lo, hi := 0, len(f.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if f.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	lineStart := f.lineStarts[lo]
	return Position{Line: lo + 1, Column: offset - lineStart + 1}
}

// Line returns the text of the given 1-based line number, without its
// trailing newline.
func (f *File) Line(line int) string {
	if line < 1 || line > len(f.lineStarts) {
		return ""
	}
	start := f.lineStarts[line-1]
	end := len(f.Bytes)
	if line < len(f.lineStarts) {
		end = f.lineStarts[line] - 1
	}
	if end < start {
		end = start
	}
	return strings.TrimRight(string(f.Bytes[start:end]), "\r")
}

// Snippet renders the source line containing offset together with a caret
// pointing at the exact column, for use under a diagnostic message.
func (f *File) Snippet(offset int) string {
	pos := f.Position(offset)
	line := f.Line(pos.Line)
	caret := strings.Repeat(" ", max(0, pos.Column-1)) + "^"
	return line + "\n" + caret
}
