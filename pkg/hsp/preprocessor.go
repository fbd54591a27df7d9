package hsp

import "strings"

const (
	maxMacroParams  = 9
	maxPPRegions    = 16
	maxExpandPasses = 256
)

// macroParam is one formal parameter of a parameterized macro: its
// default replacement text, or "" with hasDefault=false when the
// parameter is mandatory.
type macroParam struct {
	hasDefault bool
	def        string
}

type macro struct {
	name      string
	isCtype   bool
	params    []macroParam
	replacing string
}

// ppRegion is one entry of the preprocessor's #if/#ifdef nesting stack.
type ppRegion struct {
	valid bool
	line  int
}

// Preprocessor is a line-oriented macro expander with
// #define/#undef/#if/#ifdef/#endif/#enum, comment stripping, line
// continuation, and parameterized macro expansion. Grounded on
// prepro_do/prepro_line/prepro_line_expand in the original.
type Preprocessor struct {
	macros     map[string]*macro
	macroOrder []string
	regions    []ppRegion
	enumNext   int64
}

// NewPreprocessor creates a context with the default macro table
// pre-registered (M_PI).
func NewPreprocessor() *Preprocessor {
	pp := &Preprocessor{macros: make(map[string]*macro)}
	pp.registerMacro(&macro{name: "M_PI", replacing: "3.141592653589793238"})
	return pp
}

func (pp *Preprocessor) regionValid() bool {
	for _, r := range pp.regions {
		if !r.valid {
			return false
		}
	}
	return true
}

func (pp *Preprocessor) registerMacro(m *macro) {
	key := asciiLower(m.name)
	if _, exists := pp.macros[key]; !exists {
		pp.macroOrder = append(pp.macroOrder, key)
	}
	pp.macros[key] = m
}

func (pp *Preprocessor) findMacro(name string) *macro {
	return pp.macros[asciiLower(name)]
}

func (pp *Preprocessor) eraseMacro(name string) bool {
	key := asciiLower(name)
	if _, ok := pp.macros[key]; !ok {
		return false
	}
	delete(pp.macros, key)
	return true
}

// Process runs the whole preprocessing pass over src and returns the
// expanded text, one output line per source line (so downstream line
// numbers line up with the original file) — prepro_do's contract.
func (pp *Preprocessor) Process(src string) (string, error) {
	lines, err := splitLogicalLines(src)
	if err != nil {
		return "", err
	}

	var out []string
	for i, raw := range lines {
		expanded, err := pp.processLine(raw, i+1, true)
		if err != nil {
			return "", err
		}
		out = append(out, expanded)
	}

	if len(pp.regions) > 0 {
		return "", raisef(StagePreprocessor, pp.regions[0].line, "%w", ErrUnbalancedIf)
	}
	return strings.Join(out, "\n"), nil
}

// splitLogicalLines splits src into logical lines: a backslash
// immediately before a newline continues the line, and /* */ spans strip
// to nothing while their embedded newlines fold into the current logical
// line. Every newline folded away is emitted as an empty line after the
// logical line ends, so the result keeps one entry per source line and
// the caller can use the slice index as the source line number.
func splitLogicalLines(src string) ([]string, error) {
	var lines []string
	var cur strings.Builder
	inBlockComment := false
	pending := 0
	i := 0
	n := len(src)
	for i < n {
		if !inBlockComment && i+1 < n && src[i] == '/' && src[i+1] == '*' {
			inBlockComment = true
			i += 2
			continue
		}
		if inBlockComment && i+1 < n && src[i] == '*' && src[i+1] == '/' {
			inBlockComment = false
			i += 2
			continue
		}
		if !inBlockComment && i+1 < n && src[i] == '\\' && src[i+1] == '\n' {
			i += 2
			pending++
			continue
		}
		if src[i] == '\n' {
			if inBlockComment {
				pending++
				i++
				continue
			}
			lines = append(lines, cur.String())
			cur.Reset()
			for ; pending > 0; pending-- {
				lines = append(lines, "")
			}
			i++
			continue
		}
		if !inBlockComment {
			cur.WriteByte(src[i])
		}
		i++
	}
	lines = append(lines, cur.String())
	for ; pending > 0; pending-- {
		lines = append(lines, "")
	}
	return lines, nil
}

// processLine handles one logical source line: directive dispatch, or
// repeated macro expansion to a fixpoint. With enablePreprocessor false
// (the #if/#enum expression tails) a leading '#' is not a directive and
// the line is always expanded.
func (pp *Preprocessor) processLine(line string, lineNo int, enablePreprocessor bool) (string, error) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) == 0 || trimmed[0] != '#' {
		if enablePreprocessor && !pp.regionValid() {
			return "", nil
		}
		return pp.expandFixpoint(line, lineNo)
	}
	if !enablePreprocessor {
		return pp.expandFixpoint(line, lineNo)
	}
	return "", pp.processDirective(trimmed[1:], lineNo)
}

func (pp *Preprocessor) expandFixpoint(line string, lineNo int) (string, error) {
	passes := 0
	for {
		expanded, replaced, err := pp.expandOnce(line, lineNo)
		if err != nil {
			return "", err
		}
		if !replaced {
			return line, nil
		}
		line = expanded
		passes++
		if passes > maxExpandPasses {
			return "", raise(StagePreprocessor, lineNo, ErrMacroRecursion)
		}
	}
}

// expandOnce performs a single left-to-right scan of line, expanding the
// first-found macro invocations, and reports whether anything changed.
func (pp *Preprocessor) expandOnce(line string, lineNo int) (string, bool, error) {
	if !pp.regionValid() {
		return line, false, nil
	}
	ts := NewTokenStream(line)
	var out strings.Builder
	replaced := false
	prevEnd := 0

	for {
		tok, err := ts.Next()
		if err != nil {
			return "", false, err
		}
		if tok.Begin > prevEnd {
			out.WriteString(line[prevEnd:tok.Begin])
		}
		if tok.Tag == TokEOF {
			break
		}

		if tok.Tag == TokIdentifier {
			if m := pp.findMacro(tok.Content); m != nil {
				text, newEnd, err := pp.expandInvocation(ts, line, tok, m, lineNo)
				if err != nil {
					return "", false, err
				}
				out.WriteString(text)
				prevEnd = newEnd
				replaced = true
				continue
			}
		}
		out.WriteString(line[tok.Begin:tok.End])
		prevEnd = tok.End
	}
	return out.String(), replaced, nil
}

// expandInvocation consumes a macro call starting at the already-read
// name token and returns its substituted replacement text plus the
// source offset consumed.
func (pp *Preprocessor) expandInvocation(ts *TokenStream, line string, nameTok Token, m *macro, lineNo int) (string, int, error) {
	if len(m.params) == 0 {
		return m.replacing, nameTok.End, nil
	}

	// parenCall is true when the arguments sit inside call-site
	// parentheses: always for a ctype macro, and for a non-ctype macro
	// whose name is directly followed by '('.
	parenCall := m.isCtype
	if m.isCtype {
		lp, err := ts.Next()
		if err != nil {
			return "", 0, err
		}
		if lp.Tag != TokLParen {
			return "", 0, raisef(StagePreprocessor, lineNo, "%w: ctype macro %s requires call-site parentheses", ErrMalformedStmt, m.name)
		}
	} else {
		nxt, err := ts.Next()
		if err != nil {
			return "", 0, err
		}
		if nxt.Tag == TokLParen && !nxt.LeftSpace {
			parenCall = true
		} else {
			ts.Unread(1)
			if !nxt.LeftSpace && !isEOSLike(nxt.Tag) {
				return "", 0, raisef(StagePreprocessor, lineNo, "%w: macro %s must be followed by whitespace, '(' or end of statement", ErrMalformedStmt, m.name)
			}
		}
	}

	args := make([]string, 0, len(m.params))

	for {
		startTok, err := ts.Next()
		if err != nil {
			return "", 0, err
		}
		ts.Unread(1)

		depth := 0
		given := true
		for {
			nt, err := ts.Next()
			if err != nil {
				return "", 0, err
			}
			if nt.Tag == TokEOS || nt.Tag == TokEOF {
				if depth > 0 || parenCall {
					return "", 0, raisef(StagePreprocessor, lineNo, "%w: unexpected end of statement while reading arguments to %s", ErrMalformedStmt, m.name)
				}
				if len(args) >= len(m.params) {
					return "", 0, raisef(StagePreprocessor, lineNo, "%w: too many arguments to %s", ErrArgCount, m.name)
				}
				if startTok == nt {
					given = false
				} else {
					args = append(args, line[startTok.Begin:nt.Begin])
				}
				ts.Unread(1)
				goto doneArg
			}
			isRPEnd := parenCall && nt.Tag == TokRParen
			if depth == 0 && (isRPEnd || nt.Tag == TokComma) {
				if len(args) >= len(m.params) {
					return "", 0, raisef(StagePreprocessor, lineNo, "%w: too many arguments to %s", ErrArgCount, m.name)
				}
				if startTok == nt {
					given = false
				} else {
					args = append(args, line[startTok.Begin:nt.Begin])
				}
				if isRPEnd {
					ts.Unread(1)
				}
				goto doneArg
			}
			if nt.Tag == TokLParen {
				depth++
			}
			if nt.Tag == TokRParen {
				depth--
			}
		}
	doneArg:
		if !given {
			args = append(args, "")
		}

		if len(args) >= len(m.params) {
			break
		}
	}

	if parenCall {
		rp, err := ts.Next()
		if err != nil {
			return "", 0, err
		}
		if rp.Tag != TokRParen {
			return "", 0, raisef(StagePreprocessor, lineNo, "%w: unterminated argument list to %s", ErrMalformedStmt, m.name)
		}
	}

	endTok, err := ts.Next()
	ts.Unread(1)
	if err != nil {
		return "", 0, err
	}

	for i := len(args); i < len(m.params); i++ {
		if !m.params[i].hasDefault {
			return "", 0, raisef(StagePreprocessor, lineNo, "%w: missing argument %d to %s", ErrArgCount, i+1, m.name)
		}
		args = append(args, m.params[i].def)
	}

	replacement := substituteParams(m.replacing, args)
	return replacement, endTok.Begin, nil
}

// substituteParams replaces every %N in replacing with args[N-1].
func substituteParams(replacing string, args []string) string {
	var out strings.Builder
	i := 0
	n := len(replacing)
	for i < n {
		if replacing[i] == '%' && i+1 < n && isAsciiDigit(replacing[i+1]) {
			j := i + 1
			for j < n && isAsciiDigit(replacing[j]) {
				j++
			}
			idx := int(atoiPrefix(replacing[i+1 : j]))
			if idx >= 1 && idx <= len(args) {
				out.WriteString(args[idx-1])
			}
			i = j
			continue
		}
		out.WriteByte(replacing[i])
		i++
	}
	return out.String()
}

func (pp *Preprocessor) processDirective(rest string, lineNo int) error {
	ts := NewTokenStream(rest)
	st, err := ts.Next()
	if err != nil {
		return err
	}
	if st.Tag != TokIdentifier {
		return raise(StagePreprocessor, lineNo, ErrUnknownDirective)
	}

	switch asciiLower(st.Content) {
	case "define":
		return pp.directiveDefine(ts, rest, lineNo)
	case "undef":
		return pp.directiveUndef(ts, lineNo)
	case "if":
		return pp.directiveIf(ts, rest, st, lineNo)
	case "ifdef":
		return pp.directiveIfdef(ts, lineNo)
	case "endif":
		return pp.directiveEndif(ts, lineNo)
	case "enum":
		return pp.directiveEnum(ts, rest, lineNo)
	default:
		return raisef(StagePreprocessor, lineNo, "%w: %s", ErrUnknownDirective, st.Content)
	}
}

func (pp *Preprocessor) directiveDefine(ts *TokenStream, rest string, lineNo int) error {
	if !pp.regionValid() {
		return nil
	}
	isCtype := false
	it, err := ts.Next()
	if err != nil {
		return err
	}
	if it.Tag == TokIdentifier && asciiEqualFold(it.Content, "ctype") {
		isCtype = true
	} else {
		ts.Unread(1)
	}

	nameTok, err := ts.Next()
	if err != nil {
		return err
	}
	if nameTok.Tag != TokIdentifier {
		return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
	}

	m := &macro{name: nameTok.Content, isCtype: isCtype}

	rt, err := ts.Next()
	if err != nil {
		return err
	}
	if rt.Tag == TokLParen {
		for {
			ct, err := ts.Next()
			if err != nil {
				return err
			}
			if ct.Tag == TokEOF {
				return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
			}
			if ct.Tag == TokRParen {
				ts.Unread(1)
				break
			}
			if ct.Tag != TokPPArgIndicator {
				return raisef(StagePreprocessor, lineNo, "%w: macro parameters must start with %%", ErrMalformedStmt)
			}
			numTok, err := ts.Next()
			if err != nil {
				return err
			}
			if numTok.Tag != TokInteger || numTok.LeftSpace {
				return raisef(StagePreprocessor, lineNo, "%w: %%N parameter index must immediately follow %%", ErrMalformedStmt)
			}
			idx := int(atoiPrefix(numTok.Content))
			if idx != len(m.params)+1 {
				return raisef(StagePreprocessor, lineNo, "%w: macro parameters must be declared in order", ErrMalformedStmt)
			}
			if len(m.params) >= maxMacroParams {
				return raisef(StagePreprocessor, lineNo, "%w: too many macro parameters", ErrArgCount)
			}

			param := macroParam{}
			at, err := ts.Next()
			if err != nil {
				return err
			}
			isBreak := false
			if at.Tag == TokAssign {
				depth := 0
				for {
					nt, err := ts.Next()
					if err != nil {
						return err
					}
					if depth == 0 && (nt.Tag == TokRParen || nt.Tag == TokComma) {
						param.hasDefault = true
						param.def = rest[at.End:nt.Begin]
						if nt.Tag == TokRParen {
							isBreak = true
							ts.Unread(1)
						}
						break
					}
					if nt.Tag == TokLParen {
						depth++
					}
					if nt.Tag == TokRParen {
						depth--
					}
					if nt.Tag == TokEOF {
						return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
					}
				}
			} else {
				if at.Tag == TokRParen {
					ts.Unread(1)
					m.params = append(m.params, param)
					break
				}
				if at.Tag != TokComma {
					return raisef(StagePreprocessor, lineNo, "%w: unexpected token after parameter %%%d", ErrMalformedStmt, idx)
				}
			}
			m.params = append(m.params, param)
			if isBreak {
				break
			}
		}
		lrt, err := ts.Next()
		if err != nil {
			return err
		}
		if lrt.Tag != TokRParen {
			return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
		}
		m.replacing = strings.TrimLeft(rest[lrt.End:], " \t")
	} else {
		m.replacing = strings.TrimLeft(rest[rt.Begin:], " \t")
	}

	if _, exists := pp.macros[asciiLower(m.name)]; exists {
		return raisef(StagePreprocessor, lineNo, "%w: %s", ErrMacroRedefined, m.name)
	}
	pp.registerMacro(m)
	return nil
}

func (pp *Preprocessor) directiveUndef(ts *TokenStream, lineNo int) error {
	if !pp.regionValid() {
		return nil
	}
	it, err := ts.Next()
	if err != nil {
		return err
	}
	if it.Tag != TokIdentifier {
		return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
	}
	if !pp.eraseMacro(it.Content) {
		return raisef(StagePreprocessor, lineNo, "%w: %s", ErrMacroNotFound, it.Content)
	}
	return nil
}

func (pp *Preprocessor) pushRegion(r ppRegion) error {
	if len(pp.regions) >= maxPPRegions {
		return raise(StagePreprocessor, r.line, ErrUnbalancedIf)
	}
	pp.regions = append(pp.regions, r)
	return nil
}

func (pp *Preprocessor) directiveIf(ts *TokenStream, rest string, st Token, lineNo int) error {
	valid := false
	if pp.regionValid() {
		tail, err := pp.processLine(rest[st.End:], lineNo, false)
		if err != nil {
			return err
		}
		expr, err := ParseExpressionOnly(tail)
		if err != nil {
			return err
		}
		v, err := EvaluateImmediate(expr)
		if err != nil {
			return err
		}
		valid = v.AsBool()
	}
	return pp.pushRegion(ppRegion{valid: pp.regionValid() && valid, line: lineNo})
}

func (pp *Preprocessor) directiveIfdef(ts *TokenStream, lineNo int) error {
	it, err := ts.Next()
	if err != nil {
		return err
	}
	if it.Tag != TokIdentifier {
		return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
	}
	has := pp.findMacro(it.Content) != nil
	return pp.pushRegion(ppRegion{valid: pp.regionValid() && has, line: lineNo})
}

func (pp *Preprocessor) directiveEndif(ts *TokenStream, lineNo int) error {
	if len(pp.regions) == 0 {
		return raise(StagePreprocessor, lineNo, ErrEndifUnderflow)
	}
	pp.regions = pp.regions[:len(pp.regions)-1]
	return nil
}

func (pp *Preprocessor) directiveEnum(ts *TokenStream, rest string, lineNo int) error {
	if !pp.regionValid() {
		return nil
	}
	it, err := ts.Next()
	if err != nil {
		return err
	}
	if it.Tag != TokIdentifier {
		return raise(StagePreprocessor, lineNo, ErrMalformedStmt)
	}
	at, err := ts.Next()
	if err != nil {
		return err
	}
	if at.Tag == TokAssign {
		tail, err := pp.processLine(rest[at.End:], lineNo, false)
		if err != nil {
			return err
		}
		expr, err := ParseExpressionOnly(tail)
		if err != nil {
			return err
		}
		v, err := EvaluateImmediate(expr)
		if err != nil {
			return err
		}
		if v.primitiveKind() != KindInt {
			return raisef(StagePreprocessor, lineNo, "%w: #enum initializer must be INT", ErrTypeMismatch)
		}
		pp.enumNext = v.AsInt()
	}
	pp.registerMacro(&macro{name: it.Content, replacing: IntValue(pp.enumNext).AsString()})
	pp.enumNext++
	return nil
}
