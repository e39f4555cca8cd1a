// interpreter_test.go
package bt

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

// traceHost records every host call in order, so tests can assert the exact
// annotation sequence a template produces.
type traceHost struct {
	data   []byte
	calls  []string
	prints []string
	yield  func() error
}

func (h *traceHost) SetDataType(off, length int64, code string) {
	h.calls = append(h.calls, fmt.Sprintf("type(%d,%d,%s)", off, length, code))
}

func (h *traceHost) SetComment(off, length int64, text string) {
	h.calls = append(h.calls, fmt.Sprintf("comment(%d,%d,%s)", off, length, text))
}

func (h *traceHost) ReadData(off, length int64) []byte {
	if off < 0 || off >= int64(len(h.data)) || length <= 0 {
		return nil
	}
	end := off + length
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	return h.data[off:end]
}

func (h *traceHost) FileLength() int64 { return int64(len(h.data)) }

func (h *traceHost) Print(s string) {
	h.prints = append(h.prints, s)
	h.calls = append(h.calls, "print("+s+")")
}

func (h *traceHost) Yield() error {
	if h.yield != nil {
		return h.yield()
	}
	return nil
}

func execSrc(src string, h Host) error {
	pre, err := PreprocessString("test.bt", src, nil)
	if err != nil {
		return err
	}
	return NewInterpreter(h).ExecuteTemplate(pre)
}

func runTemplate(t *testing.T, src string, data []byte) *traceHost {
	t.Helper()
	h := &traceHost{data: data}
	if err := execSrc(src, h); err != nil {
		t.Fatalf("execute error: %v\nsource:\n%s", err, src)
	}
	return h
}

func wantCalls(t *testing.T, h *traceHost, want []string) {
	t.Helper()
	if len(h.calls) != len(want) {
		t.Fatalf("call count mismatch\nwant: %v\ngot:  %v", want, h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Fatalf("call %d mismatch\nwant: %v\ngot:  %v", i, want, h.calls)
		}
	}
}

func wantErrKind(t *testing.T, src string, data []byte, kind Kind) *Error {
	t.Helper()
	h := &traceHost{data: data}
	err := execSrc(src, h)
	if err == nil {
		t.Fatalf("expected %s, template succeeded\nsource:\n%s", kind, src)
	}
	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected %s, got %s: %v", kind, e.Kind, e)
	}
	return e
}

func wantPrints(t *testing.T, h *traceHost, want ...string) {
	t.Helper()
	if len(h.prints) != len(want) {
		t.Fatalf("print mismatch\nwant: %q\ngot:  %q", want, h.prints)
	}
	for i := range want {
		if h.prints[i] != want[i] {
			t.Fatalf("print %d mismatch\nwant: %q\ngot:  %q", i, want, h.prints)
		}
	}
}

// --- spec scenarios --------------------------------------------------------

func Test_Scenario_SingleInt(t *testing.T) {
	h := runTemplate(t, "int x;", make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,4,s32le)",
		"comment(0,4,x)",
	})
}

func Test_Scenario_EndianSwitch(t *testing.T) {
	h := runTemplate(t, "BigEndian(); uint16 y; LittleEndian(); uint16 z;", make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,2,u16be)",
		"comment(0,2,y)",
		"type(2,2,u16le)",
		"comment(2,2,z)",
	})
}

func Test_Scenario_AnonymousStruct(t *testing.T) {
	h := runTemplate(t, "struct { int a; int b; } s;", make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,4,s32le)",
		"comment(0,4,a)",
		"type(4,4,s32le)",
		"comment(4,4,b)",
	})
}

func Test_Scenario_DynamicArray(t *testing.T) {
	data := append([]byte{0x03, 0x00, 0x00, 0x00}, make([]byte, 8)...)
	h := runTemplate(t, "uint32 n; uchar data[n];", data)
	wantCalls(t, h, []string{
		"type(0,4,u32le)",
		"comment(0,4,n)",
		"type(4,1,u8)",
		"comment(4,1,data[0])",
		"type(5,1,u8)",
		"comment(5,1,data[1])",
		"type(6,1,u8)",
		"comment(6,1,data[2])",
	})
}

func Test_Scenario_IfOnZeroValue(t *testing.T) {
	h := runTemplate(t, `int x; if (x == 0) { Printf("z"); }`, make([]byte, 4))
	wantPrints(t, h, "z")
}

func Test_Scenario_ReturnAtTemplateScope(t *testing.T) {
	e := wantErrKind(t, "return;", nil, KindReturnOutsideFunction)
	if e.File != "test.bt" || e.Line != 1 {
		t.Fatalf("expected location test.bt:1, got %s:%d", e.File, e.Line)
	}
}

// --- declarations & binding ------------------------------------------------

func Test_Interp_MixedPrimitives_CursorAdvance(t *testing.T) {
	h := runTemplate(t, "char c; ushort s; uint64 q; float f;", make([]byte, 32))
	wantCalls(t, h, []string{
		"type(0,1,s8)", "comment(0,1,c)",
		"type(1,2,u16le)", "comment(1,2,s)",
		"type(3,8,u64le)", "comment(3,8,q)",
		"type(11,4,f32le)", "comment(11,4,f)",
	})
}

func Test_Interp_TypeAliases(t *testing.T) {
	h := runTemplate(t, "DWORD a; WORD b; BYTE c; QWORD d; DOUBLE e;", make([]byte, 32))
	wantCalls(t, h, []string{
		"type(0,4,u32le)", "comment(0,4,a)",
		"type(4,2,u16le)", "comment(4,2,b)",
		"type(6,1,s8)", "comment(6,1,c)",
		"type(7,8,u64le)", "comment(7,8,d)",
		"type(15,8,f64le)", "comment(15,8,e)",
	})
}

func Test_Interp_UnsignedForm(t *testing.T) {
	h := runTemplate(t, "unsigned int a; unsigned short b;", make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,4,u32le)", "comment(0,4,a)",
		"type(4,2,u16le)", "comment(4,2,b)",
	})
}

func Test_Interp_NestedStruct(t *testing.T) {
	h := runTemplate(t, `
struct {
    uint16 inner;
    struct {
        uchar deep;
    } mid;
} outer;
`, make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,2,u16le)", "comment(0,2,inner)",
		"type(2,1,u8)", "comment(2,1,deep)",
	})
}

func Test_Interp_NamedStructVariable(t *testing.T) {
	h := runTemplate(t, `
struct Header {
    uint32 magic;
};
struct Header hdr;
`, make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,4,u32le)", "comment(0,4,magic)",
	})
}

func Test_Interp_TypedefStructAndUse(t *testing.T) {
	h := runTemplate(t, `
typedef struct Pair {
    uint16 a;
    uint16 b;
};
Pair p;
`, make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,2,u16le)", "comment(0,2,a)",
		"type(2,2,u16le)", "comment(2,2,b)",
	})
}

func Test_Interp_StructWithArguments(t *testing.T) {
	h := runTemplate(t, `
typedef struct Blob (int n) {
    uchar bytes[n];
};
Blob b(2);
`, make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,1,u8)", "comment(0,1,bytes[0])",
		"type(1,1,u8)", "comment(1,1,bytes[1])",
	})
}

func Test_Interp_StructMemberAccess(t *testing.T) {
	data := []byte{0x2a, 0x00, 0x00, 0x00}
	h := runTemplate(t, `
struct { int v; } s;
Printf("%d", s.v);
`, data)
	wantPrints(t, h, "42")
}

func Test_Interp_ArrayOfStructs(t *testing.T) {
	h := runTemplate(t, `
typedef struct P { uchar x; };
P ps[2];
`, make([]byte, 4))
	wantCalls(t, h, []string{
		"type(0,1,u8)", "comment(0,1,x)",
		"type(1,1,u8)", "comment(1,1,x)",
	})
}

func Test_Interp_TypedefFixedArray(t *testing.T) {
	h := runTemplate(t, "typedef uchar Sig[3]; Sig sig;", make([]byte, 8))
	wantCalls(t, h, []string{
		"type(0,1,u8)", "comment(0,1,sig[0])",
		"type(1,1,u8)", "comment(1,1,sig[1])",
		"type(2,1,u8)", "comment(2,1,sig[2])",
	})
}

func Test_Interp_Enum_BindsUnderlyingType(t *testing.T) {
	h := runTemplate(t, `enum <uchar> Suit { CLUBS, HEARTS = 5, SPADES } s;`, make([]byte, 4))
	wantCalls(t, h, []string{
		"type(0,1,u8)", "comment(0,1,s)",
	})
}

func Test_Interp_Enum_MemberConstants(t *testing.T) {
	h := runTemplate(t, `
enum Suit { CLUBS, HEARTS = 5, SPADES };
Printf("%d %d %d", CLUBS, HEARTS, SPADES);
`, nil)
	wantPrints(t, h, "0 5 6")
}

func Test_Interp_RedefinedVariable(t *testing.T) {
	wantErrKind(t, "int x; int x;", make([]byte, 16), KindRedefinedVariable)
}

func Test_Interp_RedefinedType(t *testing.T) {
	wantErrKind(t, "struct A { int x; }; struct A { int y; };", make([]byte, 16), KindRedefinedType)
}

func Test_Interp_UndefinedType(t *testing.T) {
	wantErrKind(t, "Widget w;", nil, KindUndefinedType)
}

func Test_Interp_StringVariableCannotBind(t *testing.T) {
	wantErrKind(t, "string s;", make([]byte, 8), KindTypeMismatch)
}

// --- locals & assignment ---------------------------------------------------

func Test_Interp_LocalArithmetic(t *testing.T) {
	h := runTemplate(t, `
local int v = 1 + 2 * 3;
Printf("%d", v);
`, nil)
	wantPrints(t, h, "7")
}

func Test_Interp_ShiftPrecedenceBelowAdditive(t *testing.T) {
	// '<<' binds looser than '-': 1 << 4 - 1 is 1 << 3.
	h := runTemplate(t, `Printf("%d", 1 << 4 - 1);`, nil)
	wantPrints(t, h, "8")
}

func Test_Interp_BitwiseTiers(t *testing.T) {
	h := runTemplate(t, `Printf("%d", 1 | 2 ^ 2 & 3);`, nil)
	// & first (2&3=2), then ^ (2^2=0), then | (1|0=1)
	wantPrints(t, h, "1")
}

func Test_Interp_AssignmentToLocal(t *testing.T) {
	h := runTemplate(t, `
local int v = 1;
v = v + 41;
Printf("%d", v);
`, nil)
	wantPrints(t, h, "42")
}

func Test_Interp_AssignmentIsRightAssociative(t *testing.T) {
	h := runTemplate(t, `
local int a = 0;
local int b = 0;
a = b = 7;
Printf("%d %d", a, b);
`, nil)
	wantPrints(t, h, "7 7")
}

func Test_Interp_AssignmentToFileVariable(t *testing.T) {
	wantErrKind(t, "int x; x = 5;", make([]byte, 4), KindAssignmentToFileVariable)
}

func Test_Interp_AssignmentToConstant(t *testing.T) {
	wantErrKind(t, "enum E { A }; A = 3;", nil, KindAssignmentToConstant)
}

func Test_Interp_LocalString(t *testing.T) {
	h := runTemplate(t, `
local string s = "foo" + "bar";
Printf("%s", s);
`, nil)
	wantPrints(t, h, "foobar")
}

func Test_Interp_LocalArray(t *testing.T) {
	h := runTemplate(t, `
local int xs[3];
xs[0] = 5;
xs[2] = xs[0] + 1;
Printf("%d %d %d", xs[0], xs[1], xs[2]);
`, nil)
	wantPrints(t, h, "5 0 6")
}

func Test_Interp_LocalStructRejected(t *testing.T) {
	wantErrKind(t, "struct S { int x; }; local struct S s;", nil, KindTypeMismatch)
}

func Test_Interp_UnaryOperators(t *testing.T) {
	h := runTemplate(t, `Printf("%d %d %d", -5, !0, ~0);`, nil)
	wantPrints(t, h, "-5 1 -1")
}

func Test_Interp_DivisionByZero(t *testing.T) {
	wantErrKind(t, "local int v = 1 / 0;", nil, KindDivisionByZero)
	wantErrKind(t, "local int v = 1 % 0;", nil, KindDivisionByZero)
}

func Test_Interp_ShortCircuit(t *testing.T) {
	// The right operand would divide by zero; && must not evaluate it.
	h := runTemplate(t, `Printf("%d", 0 && 1 / 0);`, nil)
	wantPrints(t, h, "0")
	h = runTemplate(t, `Printf("%d", 1 || 1 / 0);`, nil)
	wantPrints(t, h, "1")
}

// --- indexing & boundaries -------------------------------------------------

func Test_Interp_IndexEqualToLength(t *testing.T) {
	wantErrKind(t, "uchar xs[2]; local int v = xs[2];", make([]byte, 8), KindOutOfRangeIndex)
}

func Test_Interp_NegativeIndex(t *testing.T) {
	wantErrKind(t, "uchar xs[2]; local int v = xs[-1];", make([]byte, 8), KindOutOfRangeIndex)
}

func Test_Interp_UndefinedVariable(t *testing.T) {
	wantErrKind(t, "Printf(\"%d\", nope);", nil, KindUndefinedVariable)
}

func Test_Interp_UndefinedMember(t *testing.T) {
	wantErrKind(t, "struct { int a; } s; local int v = s.b;", make([]byte, 8), KindUndefinedMember)
}

func Test_Interp_UndefinedFunction(t *testing.T) {
	wantErrKind(t, "Frobnicate();", nil, KindUndefinedFunction)
}

func Test_Interp_ShortRead_SurfacesOnUse(t *testing.T) {
	// Binding past the end succeeds; using the unavailable value does not.
	h := runTemplate(t, "uint32 x;", make([]byte, 2))
	wantCalls(t, h, []string{"type(0,4,u32le)", "comment(0,4,x)"})

	wantErrKind(t, `uint32 x; Printf("%d", x);`, make([]byte, 2), KindTypeMismatch)
}

// --- functions -------------------------------------------------------------

func Test_Interp_FunctionCallAndReturn(t *testing.T) {
	h := runTemplate(t, `
int add(int a, int b) {
    return a + b;
}
Printf("%d", add(2, 3));
`, nil)
	wantPrints(t, h, "5")
}

func Test_Interp_FunctionStringArg(t *testing.T) {
	h := runTemplate(t, `
void greet(string who) {
    Printf("hello %s", who);
}
greet("world");
`, nil)
	wantPrints(t, h, "hello world")
}

func Test_Interp_MissingReturn(t *testing.T) {
	wantErrKind(t, `
int f() {
    Printf("x");
}
local int v = f();
`, nil, KindMissingReturn)
}

func Test_Interp_GlobalInFunctionBody(t *testing.T) {
	wantErrKind(t, `
void f() {
    int x;
}
f();
`, make([]byte, 8), KindGlobalInFunctionBody)
}

func Test_Interp_FunctionFrameBarrier(t *testing.T) {
	// Template-scope locals are invisible inside functions; globals are not.
	wantErrKind(t, `
local int loc = 7;
void f() {
    Printf("%d", loc);
}
f();
`, nil, KindUndefinedVariable)

	h := runTemplate(t, `
int g;
void f() {
    Printf("%d", g);
}
f();
`, []byte{9, 0, 0, 0})
	wantPrints(t, h, "9")
}

func Test_Interp_BreakOutsideLoopInFunction(t *testing.T) {
	wantErrKind(t, `
void f() {
    break;
}
f();
`, nil, KindBreakOutsideLoop)
}

func Test_Interp_RecursionWorks(t *testing.T) {
	h := runTemplate(t, `
int fib(int n) {
    if (n < 2) {
        return n;
    }
    return fib(n - 1) + fib(n - 2);
}
Printf("%d", fib(10));
`, nil)
	wantPrints(t, h, "55")
}

func Test_Interp_RedefinedFunction(t *testing.T) {
	wantErrKind(t, `
void f() { }
void f() { }
`, nil, KindRedefinedFunction)
}

// --- control flow ----------------------------------------------------------

func Test_Interp_ForLoopSum(t *testing.T) {
	h := runTemplate(t, `
local int sum = 0;
for (local int i = 0; i < 5; i = i + 1) {
    sum = sum + i;
}
Printf("%d", sum);
`, nil)
	wantPrints(t, h, "10")
}

func Test_Interp_WhileLoop(t *testing.T) {
	h := runTemplate(t, `
local int i = 0;
while (i < 3) {
    Printf("%d", i);
    i = i + 1;
}
`, nil)
	wantPrints(t, h, "0", "1", "2")
}

func Test_Interp_BreakAndContinue(t *testing.T) {
	h := runTemplate(t, `
for (local int i = 0; i < 10; i = i + 1) {
    if (i == 1) {
        continue;
    }
    if (i == 3) {
        break;
    }
    Printf("%d", i);
}
`, nil)
	wantPrints(t, h, "0", "2")
}

func Test_Interp_ElseIfChain(t *testing.T) {
	h := runTemplate(t, `
local int x = 2;
if (x == 1) {
    Printf("one");
} else if (x == 2) {
    Printf("two");
} else {
    Printf("other");
}
`, nil)
	wantPrints(t, h, "two")
}

func Test_Interp_SwitchFallthrough(t *testing.T) {
	src := `
local int x = %d;
switch (x) {
case 0:
    Printf("a");
case 1:
    Printf("b");
    break;
default:
    Printf("c");
}
`
	h := runTemplate(t, fmt.Sprintf(src, 0), nil)
	wantPrints(t, h, "a", "b")

	h = runTemplate(t, fmt.Sprintf(src, 1), nil)
	wantPrints(t, h, "b")

	h = runTemplate(t, fmt.Sprintf(src, 9), nil)
	wantPrints(t, h, "c")
}

func Test_Interp_SwitchOnFileVariable(t *testing.T) {
	h := runTemplate(t, `
uchar tag;
switch (tag) {
case 'A':
    Printf("alpha");
    break;
default:
    Printf("other");
}
`, []byte{'A'})
	wantPrints(t, h, "alpha")
}

func Test_Interp_ContinueOutsideLoop(t *testing.T) {
	wantErrKind(t, "continue;", nil, KindContinueOutsideLoop)
}

func Test_Interp_BreakAtTemplateScope(t *testing.T) {
	wantErrKind(t, "break;", nil, KindBreakOutsideLoop)
}

// --- built-ins -------------------------------------------------------------

func Test_Interp_PrintfSpecifiers(t *testing.T) {
	h := runTemplate(t, `Printf("%d %u %x %X %s %%", -1, 255, 255, 255, "ok");`, nil)
	wantPrints(t, h, "-1 255 ff FF ok %")
}

func Test_Interp_PrintfArgMismatch(t *testing.T) {
	wantErrKind(t, `Printf("%d");`, nil, KindTypeMismatch)
	wantErrKind(t, `Printf("%d", 1, 2);`, nil, KindTypeMismatch)
	wantErrKind(t, `Printf("%s", 1);`, nil, KindTypeMismatch)
}

func Test_Interp_FileSizeAndCursor(t *testing.T) {
	h := runTemplate(t, `
uint32 a;
Printf("%d %d %d", FileSize(), FTell(), FEof());
`, make([]byte, 6))
	wantPrints(t, h, "6 4 0")

	h = runTemplate(t, `
uint32 a;
uint16 b;
Printf("%d", FEof());
`, make([]byte, 6))
	wantPrints(t, h, "1")
}

// --- cancellation ----------------------------------------------------------

func Test_Interp_YieldAbort(t *testing.T) {
	n := 0
	h := &traceHost{yield: func() error {
		n++
		if n > 3 {
			return &Error{Kind: KindTemplateAborted, Msg: "stop"}
		}
		return nil
	}}
	err := execSrc("local int i = 0; while (1) { i = i + 1; }", h)
	e, ok := err.(*Error)
	if !ok || e.Kind != KindTemplateAborted {
		t.Fatalf("expected TemplateAborted, got %v", err)
	}
}

func Test_Interp_RecursiveStructIsCancelable(t *testing.T) {
	n := 0
	h := &traceHost{
		data: make([]byte, 16),
		yield: func() error {
			n++
			if n > 10000 {
				return &Error{Kind: KindTemplateAborted, Msg: "stop"}
			}
			return nil
		},
	}
	err := execSrc(`
struct R {
    struct R inner;
};
struct R r;
`, h)
	e, ok := err.(*Error)
	if !ok || e.Kind != KindTemplateAborted {
		t.Fatalf("expected TemplateAborted from runaway recursion, got %v", err)
	}
}

func Test_Interp_NoSpuriousAbortWithNoopYield(t *testing.T) {
	// Fixed-width primitives within the buffer, no-op yield: must succeed.
	runTemplate(t, "uint32 a; uint16 b; uchar c;", make([]byte, 7))
}

// --- universal invariants --------------------------------------------------

var propPrims = []struct {
	name string
	size int64
}{
	{"char", 1}, {"uchar", 1}, {"short", 2}, {"ushort", 2},
	{"int", 4}, {"uint", 4}, {"int64", 8}, {"uint64", 8},
	{"float", 4}, {"double", 8},
}

// For randomly generated primitive-only templates: data-type coverage equals
// the sum of declared sizes, comments cover the same ranges, and offsets
// never decrease.
func Test_Property_CoverageAndMonotonicCursor(t *testing.T) {
	rng := rand.New(rand.NewSource(31337))
	for trial := 0; trial < 50; trial++ {
		var b strings.Builder
		var total int64
		count := 1 + rng.Intn(12)
		for i := 0; i < count; i++ {
			p := propPrims[rng.Intn(len(propPrims))]
			fmt.Fprintf(&b, "%s v%d;\n", p.name, i)
			total += p.size
		}
		h := &traceHost{data: make([]byte, 64)}
		if err := execSrc(b.String(), h); err != nil {
			t.Fatalf("trial %d: %v\n%s", trial, err, b.String())
		}

		var typed, commented int64
		var lastOff int64 = -1
		var types []string
		for _, c := range h.calls {
			var off, length int64
			var code string
			if n, _ := fmt.Sscanf(c, "type(%d,%d,%s", &off, &length, &code); n == 3 {
				typed += length
				if off < lastOff {
					t.Fatalf("trial %d: offsets went backwards: %v", trial, h.calls)
				}
				lastOff = off
				types = append(types, c)
			}
			if n, _ := fmt.Sscanf(c, "comment(%d,%d,", &off, &length); n == 2 {
				commented += length
			}
		}
		if typed != total || commented != total {
			t.Fatalf("trial %d: coverage mismatch: typed=%d commented=%d want=%d\ncalls=%v",
				trial, typed, commented, total, h.calls)
		}
		if len(types) != count {
			t.Fatalf("trial %d: expected %d data-type calls, got %d", trial, count, len(types))
		}
	}
}

// Constant expressions are referentially transparent: evaluating the same
// template twice produces identical host traffic.
func Test_Property_DeterministicRuns(t *testing.T) {
	src := `
uint32 n;
uchar body[n % 7];
local int v = (3 * 14) % 11;
Printf("%d", v);
`
	data := []byte{0x09, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	a := runTemplate(t, src, data)
	b := runTemplate(t, src, data)
	if strings.Join(a.calls, ";") != strings.Join(b.calls, ";") {
		t.Fatalf("runs differ:\n%v\n%v", a.calls, b.calls)
	}
}
