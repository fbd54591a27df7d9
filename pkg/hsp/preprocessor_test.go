package hsp

import "testing"

func expand(t *testing.T, src string) string {
	t.Helper()
	pp := NewPreprocessor()
	out, err := pp.Process(src)
	if err != nil {
		t.Fatalf("Process(%q) failed: %v", src, err)
	}
	return out
}

func TestDefineSimpleReplacement(t *testing.T) {
	got := expand(t, "#define FOO 42\nmes FOO")
	want := "\nmes 42"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestDefineParameterizedMacro(t *testing.T) {
	got := expand(t, "#define ctype ADD(%1,%2) (%1+%2)\nmes ADD(1,2)")
	want := "\nmes (1+2)"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestCtypeMacroRequiresParens(t *testing.T) {
	pp := NewPreprocessor()
	_, err := pp.Process("#define ctype ADD(%1,%2) (%1+%2)\nmes ADD")
	if err == nil {
		t.Error("Process() with bare ctype macro reference returned nil error")
	}
}

func TestMPiIsPreregistered(t *testing.T) {
	got := expand(t, "mes M_PI")
	want := "mes 3.141592653589793238"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestIfdefSkipsBodyWhenUndefined(t *testing.T) {
	got := expand(t, "#ifdef FOO\nmes 1\n#endif\nmes 2")
	want := "\n\n\nmes 2"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestIfdefKeepsBodyWhenDefined(t *testing.T) {
	got := expand(t, "#define FOO 1\n#ifdef FOO\nmes 1\n#endif\nmes 2")
	want := "\n\nmes 1\n\nmes 2"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestEnumAssignsSequentialValues(t *testing.T) {
	got := expand(t, "#enum RED\n#enum GREEN\n#enum BLUE\nmes RED : mes GREEN : mes BLUE")
	want := "\n\n\nmes 0 : mes 1 : mes 2"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestEnumExplicitInitializer(t *testing.T) {
	got := expand(t, "#enum FIRST = 10\n#enum SECOND\nmes FIRST : mes SECOND")
	want := "\n\nmes 10 : mes 11"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestUndefRemovesMacro(t *testing.T) {
	pp := NewPreprocessor()
	_, err := pp.Process("#define FOO 1\n#undef FOO\n#undef FOO")
	if err == nil {
		t.Error("Process() undefining an already-undefined macro returned nil error")
	}
}

func TestUnbalancedIfIsAnError(t *testing.T) {
	pp := NewPreprocessor()
	if _, err := pp.Process("#ifdef FOO\nmes 1"); err == nil {
		t.Error("Process() with unbalanced #ifdef returned nil error")
	}
}

func TestMacroRedefinitionIsAnError(t *testing.T) {
	pp := NewPreprocessor()
	if _, err := pp.Process("#define FOO 1\n#define FOO 2"); err == nil {
		t.Error("Process() redefining a macro returned nil error")
	}
}
