// printer_test.go
package bt

import "testing"

// printCorpus exercises every statement form and operator tier.
var printCorpus = []string{
	"int x;",
	"uchar buf[16];",
	"BigEndian(); uint16 y; LittleEndian(); uint16 z;",
	"struct { int a; int b; } s;",
	"struct Header { uint32 magic; uint16 count; };",
	"typedef struct Pair (int n) { uchar d[n]; };",
	"enum <uchar> Suit { CLUBS, HEARTS = 5, SPADES } s;",
	"typedef uchar Sig[4];",
	"local int v = 1 + 2 * 3 - 4 / 2 % 3;",
	"local int w = 1 << 2 >> 1 & 3 ^ 1 | 8;",
	"local int t = 1 < 2 == 3 >= 4 && 5 != 6 || !7;",
	"a = b = c[0].d + -e;",
	`int add(int a, int b) { return a + b; }`,
	`void log(string m) { Printf("%s", m); }`,
	"if (x) { ; } else if (y) { ; } else { ; }",
	"while (i < 10) { i = i + 1; }",
	"for (local int i = 0; i < 4; i = i + 1) { continue; }",
	"for (;;) { break; }",
	`switch (tag) { case 'A': Printf("a"); break; default: ; }`,
	"struct Outer { struct { uchar b; } inner; uint16 tail; } o;",
}

func reprint(t *testing.T, src string) string {
	t.Helper()
	return FormatTemplate(parseSrc(t, src))
}

// Pretty-printing is a fixed point: printing, reparsing, and printing again
// must reproduce the first printing byte for byte.
func Test_Printer_FixedPoint(t *testing.T) {
	for _, src := range printCorpus {
		once := reprint(t, src)
		twice := reprint(t, once)
		if once != twice {
			t.Fatalf("not a fixed point\nsource:\n%s\nfirst:\n%s\nsecond:\n%s", src, once, twice)
		}
	}
}

// The canonical form must execute identically to the original source.
func Test_Printer_PreservesSemantics(t *testing.T) {
	srcs := []string{
		"BigEndian(); uint16 y; LittleEndian(); uint16 z;",
		"uint32 n; uchar data[n];",
		`local int v = 1 << 4 - 1; Printf("%d", v);`,
		`int f(int n) { if (n == 0) { return 1; } return n * f(n - 1); } Printf("%d", f(5));`,
	}
	data := []byte{0x03, 0x00, 0x00, 0x00, 9, 9, 9, 9, 9, 9}
	for _, src := range srcs {
		orig := &traceHost{data: data}
		if err := execSrc(src, orig); err != nil {
			t.Fatalf("original failed: %v\n%s", err, src)
		}
		canon := reprint(t, src)
		rerun := &traceHost{data: data}
		if err := execSrc(canon, rerun); err != nil {
			t.Fatalf("canonical form failed: %v\n%s", err, canon)
		}
		if len(orig.calls) != len(rerun.calls) {
			t.Fatalf("call mismatch\noriginal: %v\ncanonical: %v", orig.calls, rerun.calls)
		}
		for i := range orig.calls {
			if orig.calls[i] != rerun.calls[i] {
				t.Fatalf("call %d mismatch\noriginal: %v\ncanonical: %v", i, orig.calls, rerun.calls)
			}
		}
	}
}

func Test_Printer_StringEscapesRoundTrip(t *testing.T) {
	src := "local string s = \"tab\\t nl\\n q\\\" b\\\\ nul\\0 hex\\x7f\";"
	once := reprint(t, src)
	twice := reprint(t, once)
	if once != twice {
		t.Fatalf("escape round trip failed\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
}
