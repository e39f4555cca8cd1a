// errors.go: the unified error type for the template engine, plus
// caret-snippet rendering over the preprocessed stream.
//
// Every error raised from user template code is an *Error carrying a Kind
// discriminator and the original (file, line) the preprocessor's line table
// resolved for the offending position. Lexer and parser errors additionally
// carry a 1-based column so the renderer can place a caret; runtime errors
// have Col 0 and render without one.
//
// The primary rendering entry point is `WrapErrorWithSource`, which formats
// an *Error into a readable snippet with up to one line of context on either
// side:
//
//	TypeMismatch in png.bt at 12: operand must be numeric, not string
//
//	  11 | uint32 width;
//	  12 | local int x = width + "px";
//	  13 | Printf("%d", x);
//
// Errors that are not *Error pass through unchanged.
package bt

import (
	"fmt"
	"strings"
)

// Kind enumerates every failure class the engine can surface.
type Kind int

const (
	KindParse Kind = iota
	KindPreprocessor
	KindUndefinedType
	KindUndefinedVariable
	KindUndefinedFunction
	KindUndefinedMember
	KindRedefinedVariable
	KindRedefinedFunction
	KindRedefinedType
	KindTypeMismatch
	KindOutOfRangeIndex
	KindGlobalInFunctionBody
	KindMissingReturn
	KindReturnOutsideFunction
	KindBreakOutsideLoop
	KindContinueOutsideLoop
	KindDivisionByZero
	KindAssignmentToConstant
	KindAssignmentToFileVariable
	KindTemplateAborted
	KindInternal
)

var kindNames = map[Kind]string{
	KindParse:                    "ParseError",
	KindPreprocessor:             "PreprocessorError",
	KindUndefinedType:            "UndefinedType",
	KindUndefinedVariable:        "UndefinedVariable",
	KindUndefinedFunction:        "UndefinedFunction",
	KindUndefinedMember:          "UndefinedMember",
	KindRedefinedVariable:        "RedefinedVariable",
	KindRedefinedFunction:        "RedefinedFunction",
	KindRedefinedType:            "RedefinedType",
	KindTypeMismatch:             "TypeMismatch",
	KindOutOfRangeIndex:          "OutOfRangeIndex",
	KindGlobalInFunctionBody:     "GlobalInFunctionBody",
	KindMissingReturn:            "MissingReturn",
	KindReturnOutsideFunction:    "ReturnOutsideFunction",
	KindBreakOutsideLoop:         "BreakOutsideLoop",
	KindContinueOutsideLoop:      "ContinueOutsideLoop",
	KindDivisionByZero:           "DivisionByZero",
	KindAssignmentToConstant:     "AssignmentToConstant",
	KindAssignmentToFileVariable: "AssignmentToFileVariable",
	KindTemplateAborted:          "TemplateAborted",
	KindInternal:                 "InternalError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the single structured error type of the engine.
type Error struct {
	Kind Kind
	Msg  string
	File string
	Line int // 1-based; 0 when unknown
	Col  int // 1-based; 0 when unknown (runtime errors)
}

func (e *Error) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s at %s:%d: %s", e.Kind, e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// errAt builds an *Error located at a node.
func errAt(n *Node, kind Kind, format string, args ...any) *Error {
	e := &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.File = n.File
		e.Line = n.Line
	}
	return e
}

/* ===========================
   Snippet rendering
   =========================== */

// WrapErrorWithSource returns an error whose message is a caret-annotated
// snippet of the preprocessed source. Only *Error values are reformatted;
// anything else is returned unchanged. `pre` may be nil, in which case the
// error is returned as-is.
func WrapErrorWithSource(err error, pre *PreprocessedSource) error {
	e, ok := err.(*Error)
	if !ok || pre == nil {
		return err
	}
	li := pre.Table.findLine(e.File, e.Line)
	if li == nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %s at %d", e.Kind, e.File, e.Line)
	if e.Col > 0 {
		fmt.Fprintf(&b, ":%d", e.Col)
	}
	fmt.Fprintf(&b, ": %s\n\n", e.Msg)

	if prev := pre.Table.prevLine(li); prev != nil {
		fmt.Fprintf(&b, "%4d | %s\n", prev.Line, pre.Text[prev.Pos:prev.End])
	}
	fmt.Fprintf(&b, "%4d | %s\n", li.Line, pre.Text[li.Pos:li.End])
	if e.Col > 0 {
		caretPad := e.Col - 1
		if caretPad < 0 {
			caretPad = 0
		}
		fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	}
	if next := pre.Table.nextLine(li); next != nil {
		fmt.Fprintf(&b, "%4d | %s\n", next.Line, pre.Text[next.Pos:next.End])
	}
	return fmt.Errorf("%s", b.String())
}
