// preprocessor.go — include expansion and the line table.
//
// OVERVIEW
// --------
// The preprocessor reads a root template file, recursively inlines
// `#include "path"` directives, and emits a single text stream. Directive
// lines of the exact form
//
//	#file PATH LINENO
//
// are written at column 0 wherever the origin of the following text changes,
// so any later consumer can re-derive source locations. Column-0
// sensitivity is what distinguishes preprocessor directives from user code.
//
// Alongside the stream the preprocessor builds a line table: one entry per
// emitted line, holding the byte bounds of the line within the stream and
// the (original file, original line) it came from. The table is sorted by
// position and binary-searchable, which is how the lexer resolves every
// token to its original coordinates across include boundaries.
//
// Include resolution mirrors the teacher-of-record module loader: a path is
// resolved relative to the including file's directory first, then the
// current working directory. Cycles are detected with an explicit stack and
// reported with the full `a.bt -> b.bt -> a.bt` chain.
package bt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LineInfo describes one line of the preprocessed stream.
type LineInfo struct {
	Pos  int    // byte offset of the line start in the stream
	End  int    // byte offset of the line end (exclusive, before '\n')
	File string // original file
	Line int    // original 1-based line number

	Directive bool // true for emitted "#file" marker lines
}

// LineTable maps byte positions of the preprocessed stream back to original
// source coordinates. Read-only after construction.
type LineTable struct {
	lines []LineInfo
}

// Lookup returns the original (file, line) for a byte position. Positions
// past the end of the stream map to the last line.
func (t *LineTable) Lookup(pos int) (string, int) {
	li := t.lineAt(pos)
	if li == nil {
		return "", 0
	}
	return li.File, li.Line
}

func (t *LineTable) lineAt(pos int) *LineInfo {
	if len(t.lines) == 0 {
		return nil
	}
	// First line starting after pos; the owning line is the one before it.
	i := sort.Search(len(t.lines), func(i int) bool { return t.lines[i].Pos > pos })
	if i == 0 {
		return &t.lines[0]
	}
	return &t.lines[i-1]
}

func (t *LineTable) findLine(file string, line int) *LineInfo {
	for i := range t.lines {
		li := &t.lines[i]
		if !li.Directive && li.File == file && li.Line == line {
			return li
		}
	}
	return nil
}

func (t *LineTable) prevLine(li *LineInfo) *LineInfo {
	for i := range t.lines {
		if &t.lines[i] == li && i > 0 && !t.lines[i-1].Directive {
			return &t.lines[i-1]
		}
	}
	return nil
}

func (t *LineTable) nextLine(li *LineInfo) *LineInfo {
	for i := range t.lines {
		if &t.lines[i] == li && i+1 < len(t.lines) && !t.lines[i+1].Directive {
			return &t.lines[i+1]
		}
	}
	return nil
}

// PreprocessedSource is the output of preprocessing: the expanded stream and
// its line table.
type PreprocessedSource struct {
	Name  string // root file name
	Text  string
	Table *LineTable
}

// IncludeResolver loads the content of an included file. `from` is the path
// of the including file ("" for the root).
type IncludeResolver func(path, from string) (string, error)

// FileResolver resolves includes on the local filesystem, relative to the
// including file's directory, then the working directory.
func FileResolver(path, from string) (string, error) {
	if !filepath.IsAbs(path) && from != "" {
		cand := filepath.Join(filepath.Dir(from), path)
		if b, err := os.ReadFile(cand); err == nil {
			return string(b), nil
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Preprocess reads and expands a root template file from disk.
func Preprocess(path string) (*PreprocessedSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: KindPreprocessor, Msg: fmt.Sprintf("io-error: cannot read %s: %v", path, err)}
	}
	return PreprocessString(path, string(b), FileResolver)
}

// PreprocessString expands in-memory source. A nil resolver makes every
// include fail with a missing-include error.
func PreprocessString(name, src string, include IncludeResolver) (*PreprocessedSource, error) {
	pp := &preprocessor{include: include}
	if err := pp.expand(name, src, nil); err != nil {
		return nil, err
	}
	return &PreprocessedSource{
		Name:  name,
		Text:  pp.out.String(),
		Table: &LineTable{lines: pp.lines},
	}, nil
}

/* ===========================
   PRIVATE
   =========================== */

type preprocessor struct {
	include IncludeResolver
	out     strings.Builder
	lines   []LineInfo
}

// emitLine appends one line plus newline and records its table entry.
func (pp *preprocessor) emitLine(text, file string, line int, directive bool) {
	pos := pp.out.Len()
	pp.out.WriteString(text)
	end := pp.out.Len()
	pp.out.WriteByte('\n')
	pp.lines = append(pp.lines, LineInfo{Pos: pos, End: end, File: file, Line: line, Directive: directive})
}

func (pp *preprocessor) emitFileMarker(file string, line int) {
	pp.emitLine(fmt.Sprintf("#file %s %d", file, line), file, line, true)
}

func (pp *preprocessor) expand(file, src string, stack []string) error {
	for _, f := range stack {
		if f == file {
			chain := strings.Join(append(stack, file), " -> ")
			return &Error{
				Kind: KindPreprocessor,
				Msg:  fmt.Sprintf("io-error: include cycle detected: %s", chain),
				File: stack[len(stack)-1],
			}
		}
	}
	stack = append(stack, file)

	pp.emitFileMarker(file, 1)

	lines := strings.Split(src, "\n")
	// A trailing newline yields one empty trailing element; drop it so we
	// do not emit a phantom line.
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(src, "\n") {
		lines = lines[:len(lines)-1]
	}

	for i, ln := range lines {
		lineNo := i + 1
		if incPath, ok := parseIncludeLine(ln); ok {
			if pp.include == nil {
				return &Error{
					Kind: KindPreprocessor,
					Msg:  fmt.Sprintf("missing-include: %q (no include resolver)", incPath),
					File: file, Line: lineNo,
				}
			}
			content, err := pp.include(incPath, file)
			if err != nil {
				return &Error{
					Kind: KindPreprocessor,
					Msg:  fmt.Sprintf("missing-include: %q: %v", incPath, err),
					File: file, Line: lineNo,
				}
			}
			if err := pp.expand(incPath, content, stack); err != nil {
				return err
			}
			// Resume coordinates in the including file.
			pp.emitFileMarker(file, lineNo+1)
			continue
		}
		pp.emitLine(ln, file, lineNo, false)
	}
	return nil
}

// parseIncludeLine recognizes `#include "path"` or `#include <path>` at
// column 0. Anything else — including indented directives — is user text.
func parseIncludeLine(ln string) (string, bool) {
	if !strings.HasPrefix(ln, "#include") {
		return "", false
	}
	rest := strings.TrimSpace(ln[len("#include"):])
	if len(rest) >= 2 && rest[0] == '"' {
		if end := strings.IndexByte(rest[1:], '"'); end >= 0 {
			return rest[1 : 1+end], true
		}
	}
	if len(rest) >= 2 && rest[0] == '<' {
		if end := strings.IndexByte(rest[1:], '>'); end >= 0 {
			return rest[1 : 1+end], true
		}
	}
	return "", false
}
