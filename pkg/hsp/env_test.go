package hsp

import (
	"bytes"
	"strings"
	"testing"
)

// run compiles and executes src, returning everything written to mes/
// input output. Any error fails the test immediately with the script
// source for context.
func run(t *testing.T, src string) string {
	t.Helper()
	return runWithInput(t, src, "")
}

// runWithInput is run but with in supplied as the script's stdin, for
// exercising input.
func runWithInput(t *testing.T, src, in string) string {
	t.Helper()
	env := NewEnvironment()
	if err := env.LoadScript(src); err != nil {
		t.Fatalf("LoadScript(%q) failed: %v", src, err)
	}
	var out bytes.Buffer
	if err := env.Execute(&out, strings.NewReader(in)); err != nil {
		t.Fatalf("Execute(%q) failed: %v", src, err)
	}
	return out.String()
}

func TestConcreteScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"basic arithmetic", `a=1 : b=2 : mes str(a+b)`, "3\n"},
		{"repeat with cnt", `repeat 3 : mes str(cnt) : loop`, "0\n1\n2\n"},
		{"label and loop accumulation", `*L : a=0 : repeat 5 : a+=cnt : loop : mes str(a)`, "10\n"},
		{"parameterized macro", "#define SQ(%1) ((%1)*(%1))\nmes str(SQ(3+1))", "16\n"},
		{
			"enum sequence",
			"#enum A\n#enum B\n#enum C=10\n#enum D\nmes str(A)+\",\"+str(B)+\",\"+str(C)+\",\"+str(D)",
			"0,1,10,11\n",
		},
		{"string compound assign", `sdim s, 16 : s="hi" : s+="!" : mes s`, "hi!\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, tc.src)
			if got != tc.want {
				t.Errorf("output = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1+2*3", "7\n"},
		{"(1+2)*3", "9\n"},
		{"1|2&3", "3\n"},
		{"-2*3", "-6\n"},
		{"5\\3", "2\n"},
		{"5.0/2.0", "2.5\n"},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got := run(t, "mes str("+tc.expr+")")
			if got != tc.want {
				t.Errorf("mes str(%s) = %q, want %q", tc.expr, got, tc.want)
			}
		})
	}
}

func TestGosubReturnResumesAfterCall(t *testing.T) {
	src := `gosub *sub
mes "after"
end
*sub
mes "in sub"
return`
	got := run(t, src)
	want := "in sub\nafter\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestReturnWithDoubleValueSetsRefdval(t *testing.T) {
	src := `gosub *sub
mes str(refdval)
end
*sub
return 3.5`
	got := run(t, src)
	if got != "3.5\n" {
		t.Errorf("output = %q, want %q", got, "3.5\n")
	}
}

func TestReturnWithStringValueSetsRefstr(t *testing.T) {
	src := `gosub *sub
mes refstr
end
*sub
return "done"`
	got := run(t, src)
	if got != "done\n" {
		t.Errorf("output = %q, want %q", got, "done\n")
	}
}

func TestReturnWithIntValueSetsStat(t *testing.T) {
	src := `gosub *sub
mes str(stat)
end
*sub
return 7`
	got := run(t, src)
	if got != "7\n" {
		t.Errorf("output = %q, want %q", got, "7\n")
	}
}

func TestInputExactCountRead(t *testing.T) {
	src := `input a, 5
mes a
mes str(strsize)`
	got := runWithInput(t, src, "helloworld")
	if got != "hello\n5\n" {
		t.Errorf("output = %q, want %q", got, "hello\n5\n")
	}
}

func TestInputMode1StopsAtNewline(t *testing.T) {
	src := `input a, 80, 1
mes a
mes str(strsize)`
	got := runWithInput(t, src, "abc\ndef")
	if got != "abc\n3\n" {
		t.Errorf("output = %q, want %q", got, "abc\n3\n")
	}
}

func TestInputMode2StopsAtCRLF(t *testing.T) {
	src := `input a, 80, 2
mes a
mes str(strsize)`
	got := runWithInput(t, src, "abc\r\ndef")
	if got != "abc\n3\n" {
		t.Errorf("output = %q, want %q", got, "abc\n3\n")
	}
}

func TestInputMode2KeepsLoneCR(t *testing.T) {
	src := `input a, 80, 2
mes a
mes str(strsize)`
	got := runWithInput(t, src, "ab\rcd\n")
	if got != "ab\rcd\n5\n" {
		t.Errorf("output = %q, want %q", got, "ab\rcd\n5\n")
	}
}

func TestRndRejectsNonPositiveArgument(t *testing.T) {
	env := NewEnvironment()
	if err := env.LoadScript(`a = rnd(0)`); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if err := env.Execute(&bytes.Buffer{}, strings.NewReader("")); err == nil {
		t.Fatal("expected a runtime error for rnd(0)")
	}
}

func TestStrlenRejectsNonStringArgument(t *testing.T) {
	env := NewEnvironment()
	if err := env.LoadScript(`a = strlen(5)`); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if err := env.Execute(&bytes.Buffer{}, strings.NewReader("")); err == nil {
		t.Fatal("expected a runtime error for strlen of a non-string argument")
	}
}

func TestArrayTypeChangeOnReassign(t *testing.T) {
	got := run(t, `a=5 : a="hello" : mes a`)
	if got != "hello\n" {
		t.Errorf("output = %q, want %q", got, "hello\n")
	}
}

func TestPeekPokeInverse(t *testing.T) {
	got := run(t, `sdim v, 16 : poke v, 0, 65 : mes str(peek(v, 0))`)
	if got != "65\n" {
		t.Errorf("output = %q, want %q", got, "65\n")
	}
}

func TestBreakExitsLoopEarly(t *testing.T) {
	src := `repeat
mes str(cnt)
if cnt==2 : break
loop`
	got := run(t, src)
	if got != "0\n1\n2\n" {
		t.Errorf("output = %q, want %q", got, "0\n1\n2\n")
	}
}

func TestContinueSkipsRestOfBody(t *testing.T) {
	src := `repeat 4
if cnt==1 : continue
mes str(cnt)
loop`
	got := run(t, src)
	if got != "0\n2\n3\n" {
		t.Errorf("output = %q, want %q", got, "0\n2\n3\n")
	}
}

func TestIfElseDispatch(t *testing.T) {
	got := run(t, `a=5 : if a>10 { mes "big" } else { mes "small" }`)
	if got != "small\n" {
		t.Errorf("output = %q, want %q", got, "small\n")
	}
}

func TestUnknownCommandIsCodegenError(t *testing.T) {
	env := NewEnvironment()
	err := env.LoadScript(`notarealcommand 1, 2`)
	if err == nil {
		t.Fatal("expected a codegen error for an unknown command")
	}
}

func TestReturnOutsideGosubErrors(t *testing.T) {
	env := NewEnvironment()
	if err := env.LoadScript(`return`); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if err := env.Execute(&bytes.Buffer{}, strings.NewReader("")); err == nil {
		t.Fatal("expected a runtime error for return outside gosub")
	}
}

func TestDumpBytecodeAndASTAreNonEmpty(t *testing.T) {
	env := NewEnvironment()
	if err := env.LoadScript(`mes "hi"`); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if env.DumpAST() == "" {
		t.Error("DumpAST returned empty string")
	}
	if env.DumpBytecode() == "" {
		t.Error("DumpBytecode returned empty string")
	}
}
