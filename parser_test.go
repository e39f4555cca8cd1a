// parser_test.go
package bt

import (
	"strings"
	"testing"
)

func parseSrc(t *testing.T, src string) *Node {
	t.Helper()
	pre, err := PreprocessString("parse.bt", src, nil)
	if err != nil {
		t.Fatalf("PreprocessString error: %v", err)
	}
	root, perr := Parse(pre)
	if perr != nil {
		t.Fatalf("Parse error: %v\nsource:\n%s", perr, src)
	}
	return root
}

// wantCanonical asserts the canonical printed form of a parse, which pins
// down both the statement structure and the folded expression trees.
func wantCanonical(t *testing.T, src, want string) {
	t.Helper()
	got := FormatTemplate(parseSrc(t, src))
	if got != want {
		t.Fatalf("\nsource:\n%s\nwant:\n%s\ngot:\n%s", src, want, got)
	}
}

func wantParseError(t *testing.T, src string) *Error {
	t.Helper()
	pre, err := PreprocessString("parse.bt", src, nil)
	if err != nil {
		t.Fatalf("PreprocessString error: %v", err)
	}
	_, perr := Parse(pre)
	if perr == nil {
		t.Fatalf("expected parse error for:\n%s", src)
	}
	e, ok := perr.(*Error)
	if !ok || e.Kind != KindParse {
		t.Fatalf("expected ParseError, got %v", perr)
	}
	return e
}

/* ─────────────────────────── statements ───────────────────────────────── */

func Test_Parser_VariableForms(t *testing.T) {
	wantCanonical(t, "uint32 x;", "uint32 x;\n")
	wantCanonical(t, "uchar buf[16];", "uchar buf[16];\n")
	wantCanonical(t, "Foo f(1, 2)[3];", "Foo f(1, 2)[3];\n")
	wantCanonical(t, "struct Foo f;", "struct Foo f;\n")
	wantCanonical(t, "enum Suit s;", "enum Suit s;\n")
	wantCanonical(t, "unsigned int u;", "unsigned int u;\n")
}

func Test_Parser_LocalForms(t *testing.T) {
	wantCanonical(t, "local int i;", "local int i;\n")
	wantCanonical(t, "local int i = 1 + 2;", "local int i = (1 + 2);\n")
	wantCanonical(t, "local uchar b[4];", "local uchar b[4];\n")
}

func Test_Parser_StructVariants(t *testing.T) {
	// anonymous + variable
	wantCanonical(t, "struct { int a; } v;",
		"struct {\n    int a;\n} v;\n")
	// named, no variable
	wantCanonical(t, "struct S { int a; };",
		"struct S {\n    int a;\n};\n")
	// typedef + named
	wantCanonical(t, "typedef struct S { int a; };",
		"typedef struct S {\n    int a;\n};\n")
	// named with parameters and trailing variable
	wantCanonical(t, "struct S (int n) { uchar d[n]; } v(4);",
		"struct S(int n) {\n    uchar d[n];\n} v(4);\n")
}

func Test_Parser_EnumVariants(t *testing.T) {
	wantCanonical(t, "enum E { A, B = 2, C };",
		"enum E {\n    A,\n    B = 2,\n    C\n};\n")
	wantCanonical(t, "enum <uchar> E { A } v;",
		"enum <uchar> E {\n    A\n} v;\n")
	wantCanonical(t, "typedef enum E { A };",
		"typedef enum E {\n    A\n};\n")
}

func Test_Parser_Typedef(t *testing.T) {
	wantCanonical(t, "typedef uint32 u32;", "typedef uint32 u32;\n")
	wantCanonical(t, "typedef uchar Sig[4];", "typedef uchar Sig[4];\n")
}

func Test_Parser_FunctionDefinition(t *testing.T) {
	wantCanonical(t, "int add(int a, int b) { return a + b; }",
		"int add(int a, int b) {\n    return (a + b);\n}\n")
	wantCanonical(t, "void f() { }", "void f() {\n}\n")
}

func Test_Parser_ControlFlow(t *testing.T) {
	wantCanonical(t, "if (1) { ; } else { ; }",
		"if (1)\n    {\n        ;\n    }\nelse\n    {\n        ;\n    }\n")
	wantCanonical(t, "while (x) { break; }",
		"while (x)\n    {\n        break;\n    }\n")
	wantCanonical(t, "for (i = 0; i < 9; i = i + 1) { continue; }",
		"for ((i = 0); (i < 9); (i = (i + 1)))\n    {\n        continue;\n    }\n")
	wantCanonical(t, "switch (x) { case 1: ; default: ; }",
		"switch (x) {\ncase 1:\n    ;\ndefault:\n    ;\n}\n")
}

/* ─────────────────────────── expressions ──────────────────────────────── */

func Test_Parser_Precedence_MulOverAdd(t *testing.T) {
	wantCanonical(t, "1 + 2 * 3;", "(1 + (2 * 3));\n")
	wantCanonical(t, "1 * 2 + 3;", "((1 * 2) + 3);\n")
}

func Test_Parser_Precedence_LeftAssociativity(t *testing.T) {
	wantCanonical(t, "1 - 2 - 3;", "((1 - 2) - 3);\n")
	wantCanonical(t, "8 / 4 / 2;", "((8 / 4) / 2);\n")
}

func Test_Parser_Precedence_ShiftBelowAdditive(t *testing.T) {
	wantCanonical(t, "1 << 4 - 1;", "(1 << (4 - 1));\n")
}

func Test_Parser_Precedence_RelationalAndEquality(t *testing.T) {
	wantCanonical(t, "a < b == c > d;", "((a < b) == (c > d));\n")
}

func Test_Parser_Precedence_BitwiseTiers(t *testing.T) {
	wantCanonical(t, "a | b ^ c & d;", "(a | (b ^ (c & d)));\n")
}

func Test_Parser_Precedence_LogicalTiers(t *testing.T) {
	wantCanonical(t, "a && b || c && d;", "((a && b) || (c && d));\n")
}

func Test_Parser_AssignmentRightAssociative(t *testing.T) {
	wantCanonical(t, "a = b = 1;", "(a = (b = 1));\n")
}

func Test_Parser_UnaryOperators(t *testing.T) {
	wantCanonical(t, "!a;", "(!a);\n")
	wantCanonical(t, "~a + 1;", "((~a) + 1);\n")
	wantCanonical(t, "!!a;", "(!(!a));\n")
	wantCanonical(t, "-a * 2;", "((-a) * 2);\n")
}

func Test_Parser_Paths(t *testing.T) {
	wantCanonical(t, "a.b.c;", "a.b.c;\n")
	wantCanonical(t, "a[1].b[i + 1];", "a[1].b[(i + 1)];\n")
}

func Test_Parser_Calls(t *testing.T) {
	wantCanonical(t, "f();", "f();\n")
	wantCanonical(t, `Printf("%d", x + 1);`, "Printf(\"%d\", (x + 1));\n")
}

func Test_Parser_CastsAreDiscarded(t *testing.T) {
	wantCanonical(t, "(int) x;", "x;\n")
	wantCanonical(t, "(unsigned int) x + 1;", "(x + 1);\n")
	// Parenthesized expressions are not casts.
	wantCanonical(t, "(x) + 1;", "(x + 1);\n")
}

func Test_Parser_ParenthesizedGrouping(t *testing.T) {
	wantCanonical(t, "(1 + 2) * 3;", "((1 + 2) * 3);\n")
}

/* ─────────────────────────── errors ───────────────────────────────────── */

func Test_Parser_ErrorHasLocationAndNearText(t *testing.T) {
	e := wantParseError(t, "int a;\nif x;")
	if e.Line != 2 {
		t.Fatalf("expected error on line 2, got %d", e.Line)
	}
	if !strings.Contains(e.Msg, "near") {
		t.Fatalf("expected near-text in message, got %q", e.Msg)
	}
}

func Test_Parser_Errors(t *testing.T) {
	cases := []string{
		"int a",             // missing ';'
		"if (x { }",         // missing ')'
		"struct { int a; }", // missing ';'
		"switch (x) { }",    // no case arms
		"for (;;",           // unterminated for
		"1 + ;",             // trailing operator
		"local int x = ;",   // missing initializer
		"enum E { };",       // empty enum member
		"f(,);",             // missing argument
		"a . ;",             // missing member name
		"a[;",               // missing index
		"typedef uint32;",   // missing alias name
		"int f(int) { }",    // missing parameter name
		"x = = 1;",          // doubled operator
	}
	for _, src := range cases {
		wantParseError(t, src)
	}
}

func Test_Parser_ReservedWordsRejectedAsNames(t *testing.T) {
	wantParseError(t, "int struct;")
	wantParseError(t, "int if;")
}
