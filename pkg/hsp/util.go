package hsp

// asciiLower/asciiUpper/asciiEqualFold implement strict ASCII-only case
// folding. Scripts are ASCII case insensitive by rule, not Unicode case
// insensitive, so this intentionally does not reach for
// golang.org/x/text/cases (which folds by Unicode rules) — see
// DESIGN.md.
func asciiLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func isAsciiAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAsciiDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentRest(c byte) bool {
	return isAsciiAlpha(c) || isAsciiDigit(c) || c == '_'
}

func isHSpace(c byte) bool { return c == ' ' || c == '\t' }
