package hsp

import "testing"

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	lx := NewLexer(src)
	var toks []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("Next() on %q failed: %v", src, err)
		}
		toks = append(toks, tok)
		if tok.Tag == TokEOF {
			return toks
		}
	}
}

func TestLexerScansIntegerAndReal(t *testing.T) {
	toks := scanAll(t, "42 3.5")
	if toks[0].Tag != TokInteger || toks[0].Content != "42" {
		t.Errorf("token[0] = %+v, want integer 42", toks[0])
	}
	if toks[1].Tag != TokReal || toks[1].Content != "3.5" {
		t.Errorf("token[1] = %+v, want real 3.5", toks[1])
	}
}

func TestLexerScansStringWithEscapes(t *testing.T) {
	toks := scanAll(t, `"line\n\ttab"`)
	if toks[0].Tag != TokString {
		t.Fatalf("token[0].Tag = %v, want TokString", toks[0].Tag)
	}
	if toks[0].Content != "line\n\ttab" {
		t.Errorf("token[0].Content = %q, want %q", toks[0].Content, "line\n\ttab")
	}
}

func TestLexerRejectsUnterminatedString(t *testing.T) {
	lx := NewLexer(`"unterminated`)
	if _, err := lx.Next(); err == nil {
		t.Error("Next() on an unterminated string returned nil error")
	}
}

func TestLexerMultiCharOperators(t *testing.T) {
	toks := scanAll(t, ">= <= == != += -=")
	want := []TokenTag{TokOpGtOe, TokOpLtOe, TokOpEq, TokOpNeq, TokAddAssign, TokSubAssign}
	for i, w := range want {
		if toks[i].Tag != w {
			t.Errorf("token[%d].Tag = %v, want %v", i, toks[i].Tag, w)
		}
	}
}

func TestLexerSkipsLineAndBlockComments(t *testing.T) {
	toks := scanAll(t, "1 // trailing\n/* block\nspanning */ 2")
	var ints []string
	for _, tok := range toks {
		if tok.Tag == TokInteger {
			ints = append(ints, tok.Content)
		}
	}
	if len(ints) != 2 || ints[0] != "1" || ints[1] != "2" {
		t.Errorf("scanned integers = %v, want [1 2]", ints)
	}
}

func TestLexerShadowsKeywordOperators(t *testing.T) {
	toks := scanAll(t, "and or xor")
	want := []TokenTag{TokOpBAnd, TokOpBOr, TokOpBXor}
	for i, w := range want {
		if toks[i].Tag != w {
			t.Errorf("token[%d].Tag = %v, want %v", i, toks[i].Tag, w)
		}
	}
}

func TestLexerIdentifierNotShadowed(t *testing.T) {
	toks := scanAll(t, "android")
	if toks[0].Tag != TokIdentifier || toks[0].Content != "android" {
		t.Errorf("token[0] = %+v, want identifier %q", toks[0], "android")
	}
}

func TestLexerRejectsUnknownCharacter(t *testing.T) {
	lx := NewLexer("@")
	if _, err := lx.Next(); err == nil {
		t.Error("Next() on an unknown character returned nil error")
	}
}
