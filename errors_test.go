// errors_test.go
package bt

import (
	"strings"
	"testing"
)

func Test_Errors_KindNames(t *testing.T) {
	if KindTypeMismatch.String() != "TypeMismatch" {
		t.Fatalf("kind name: %q", KindTypeMismatch.String())
	}
	if KindTemplateAborted.String() != "TemplateAborted" {
		t.Fatalf("kind name: %q", KindTemplateAborted.String())
	}
}

func Test_Errors_MessageFormat(t *testing.T) {
	e := &Error{Kind: KindUndefinedType, Msg: "undefined type \"Widget\"", File: "a.bt", Line: 3}
	if e.Error() != `UndefinedType at a.bt:3: undefined type "Widget"` {
		t.Fatalf("message: %q", e.Error())
	}
	e2 := &Error{Kind: KindPreprocessor, Msg: "boom"}
	if e2.Error() != "PreprocessorError: boom" {
		t.Fatalf("message: %q", e2.Error())
	}
}

func Test_Errors_WrapWithSource_Snippet(t *testing.T) {
	src := "int a;\nWidget w;\nint b;\n"
	pre, err := PreprocessString("snip.bt", src, nil)
	if err != nil {
		t.Fatalf("PreprocessString: %v", err)
	}
	rerr := NewInterpreter(&traceHost{data: make([]byte, 16)}).ExecuteTemplate(pre)
	if rerr == nil {
		t.Fatalf("expected an error")
	}
	wrapped := WrapErrorWithSource(rerr, pre)
	msg := wrapped.Error()
	for _, want := range []string{
		"UndefinedType in snip.bt at 2",
		"   1 | int a;",
		"   2 | Widget w;",
		"   3 | int b;",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("snippet missing %q:\n%s", want, msg)
		}
	}
}

func Test_Errors_WrapWithSource_CaretForParseErrors(t *testing.T) {
	src := "local int x = ;\n"
	pre, err := PreprocessString("snip.bt", src, nil)
	if err != nil {
		t.Fatalf("PreprocessString: %v", err)
	}
	_, perr := Parse(pre)
	if perr == nil {
		t.Fatalf("expected a parse error")
	}
	msg := WrapErrorWithSource(perr, pre).Error()
	if !strings.Contains(msg, "^") {
		t.Fatalf("expected a caret in:\n%s", msg)
	}
}

func Test_Errors_WrapPassesOthersThrough(t *testing.T) {
	pre, _ := PreprocessString("x.bt", "int a;\n", nil)
	plain := &Error{Kind: KindInternal, Msg: "no location"}
	if got := WrapErrorWithSource(plain, pre); got != plain {
		t.Fatalf("unlocatable *Error should pass through unchanged")
	}
}
