package hsp

// TokenStream wraps a Lexer with an unbounded lookahead buffer and an
// index cursor, so the parser can pull tokens on demand and rewind with
// Unread(n).
type TokenStream struct {
	lx  *Lexer
	buf []Token
	pos int
}

func NewTokenStream(src string) *TokenStream {
	return &TokenStream{lx: NewLexer(src)}
}

func (ts *TokenStream) fill(upTo int) error {
	for len(ts.buf) <= upTo {
		if n := len(ts.buf); n > 0 && ts.buf[n-1].Tag == TokEOF {
			return nil
		}
		tok, err := ts.lx.Next()
		if err != nil {
			return err
		}
		ts.buf = append(ts.buf, tok)
	}
	return nil
}

// Next returns the next token, advancing the cursor.
func (ts *TokenStream) Next() (Token, error) {
	if err := ts.fill(ts.pos); err != nil {
		return Token{}, err
	}
	idx := ts.pos
	if idx >= len(ts.buf) {
		idx = len(ts.buf) - 1
	}
	t := ts.buf[idx]
	ts.pos++
	return t, nil
}

// Unread rewinds the cursor by n tokens (never below zero).
func (ts *TokenStream) Unread(n int) {
	ts.pos -= n
	if ts.pos < 0 {
		ts.pos = 0
	}
}

// Prev peeks k tokens behind the cursor without moving it — the
// original's prev_token(k), used by the if-statement parser to inspect
// what the previous parse_statement call consumed.
func (ts *TokenStream) Prev(k int) Token {
	idx := ts.pos - k
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ts.buf) {
		if len(ts.buf) == 0 {
			return Token{Tag: TokEOF}
		}
		idx = len(ts.buf) - 1
	}
	return ts.buf[idx]
}

// Parser is a hand-written recursive-descent parser producing an AST of
// statements (§4.4) plus a precedence-ordered expression tree (§4.4's
// precedence table).
type Parser struct {
	ts *TokenStream
}

func NewParser(src string) *Parser {
	return &Parser{ts: NewTokenStream(src)}
}

var keywordSet = map[string]bool{
	"global": true, "ctype": true, "end": true, "return": true,
	"goto": true, "gosub": true, "repeat": true, "loop": true,
	"continue": true, "break": true, "if": true, "else": true,
}

func isKeyword(ident, kw string) bool { return asciiEqualFold(ident, kw) }

// ParseProgram parses the full statement list until EOF.
func (p *Parser) ParseProgram() (*AST, error) {
	ast := &AST{}
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if tok.Tag == TokEOF {
			break
		}
		p.ts.Unread(1)
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			ast.Statements = append(ast.Statements, stmt)
		}
	}
	return ast, nil
}

// parseStatement parses exactly one statement and consumes its trailing
// terminator (EOL/EOS/EOF/'}'), matching parse_statement's structure.
func (p *Parser) parseStatement() (*Node, error) {
	tok, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if tok.Tag == TokEOF {
		return nil, nil
	}
	if isEOSLike(tok.Tag) {
		return newNode(NodeNop, tok), nil
	}
	p.ts.Unread(1)

	stmt, err := p.tryLabel()
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		stmt, err = p.tryControl()
		if err != nil {
			return nil, err
		}
	}
	if stmt == nil {
		stmt, err = p.tryCommand()
		if err != nil {
			return nil, err
		}
	}
	if stmt == nil {
		stmt, err = p.tryAssign()
		if err != nil {
			return nil, err
		}
	}
	if stmt == nil {
		t, _ := p.ts.Next()
		return nil, raise(StageParser, t.Line+1, ErrMalformedStmt)
	}

	// IF already consumes its own terminator while scanning its body;
	// every other statement still needs one consumed here.
	if stmt.Tag != NodeIf {
		term, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if !isEOSLike(term.Tag) {
			return nil, raisef(StageParser, term.Line+1, "%w: expected end of statement", ErrMalformedStmt)
		}
	}
	return stmt, nil
}

func (p *Parser) tryLabel() (*Node, error) {
	tok, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if tok.Tag != TokOpMul {
		p.ts.Unread(1)
		return nil, nil
	}
	ident, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if ident.Tag != TokIdentifier {
		p.ts.Unread(2)
		return nil, nil
	}
	return newNode(NodeLabel, ident), nil
}

func (p *Parser) tryControl() (*Node, error) {
	ident, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if ident.Tag != TokIdentifier {
		p.ts.Unread(1)
		return nil, nil
	}
	lower := asciiLower(ident.Content)
	if !keywordSet[lower] {
		p.ts.Unread(1)
		return nil, nil
	}

	switch lower {
	case "end":
		return newNode(NodeEnd, ident), nil
	case "return":
		next, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		p.ts.Unread(1)
		n := newNode(NodeReturn, ident)
		if !isEOSLike(next.Tag) {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			n.Left = expr
		}
		return n, nil
	case "goto", "gosub":
		label, err := p.tryLabel()
		if err != nil {
			return nil, err
		}
		if label == nil {
			return nil, raisef(StageParser, ident.Line+1, "%w: goto/gosub requires a label", ErrMalformedStmt)
		}
		tag := NodeGoto
		if lower == "gosub" {
			tag = NodeGosub
		}
		n := newNode(tag, ident)
		n.Left = label
		return n, nil
	case "repeat":
		next, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		p.ts.Unread(1)
		n := newNode(NodeRepeat, ident)
		if !isEOSLike(next.Tag) {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			n.Left = expr
		}
		return n, nil
	case "loop":
		return newNode(NodeLoop, ident), nil
	case "continue":
		return newNode(NodeContinue, ident), nil
	case "break":
		return newNode(NodeBreak, ident), nil
	case "if":
		return p.parseIf(ident)
	case "else":
		return nil, raisef(StageParser, ident.Line+1, "%w: unmatched else", ErrUnreachableElse)
	}
	p.ts.Unread(1)
	return nil, nil
}

func isElseToken(t Token) bool {
	return t.Tag == TokIdentifier && asciiEqualFold(t.Content, "else")
}

func (p *Parser) parseIf(ident Token) (*Node, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	next, err := p.ts.Next()
	if err != nil {
		return nil, err
	}

	var trueBody, falseBody []*Node
	if next.Tag == TokLBrace {
		trueBody, err = p.parseBraceBlock(ident)
		if err != nil {
			return nil, err
		}
	} else {
		p.ts.Unread(1)
		nn, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if nn.Tag != TokEOS {
			return nil, raisef(StageParser, nn.Line+1, "%w: expected { or : after if condition", ErrMissingThen)
		}
		trueBody, err = p.parseLineBlock(ident)
		if err != nil {
			return nil, err
		}
	}

	nn, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if isElseToken(nn) {
		nextf, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if nextf.Tag == TokLBrace {
			falseBody, err = p.parseBraceBlock(ident)
			if err != nil {
				return nil, err
			}
		} else {
			p.ts.Unread(1)
			nnf, err := p.ts.Next()
			if err != nil {
				return nil, err
			}
			if nnf.Tag != TokEOS {
				return nil, raisef(StageParser, nnf.Line+1, "%w: expected { or : after else", ErrMissingThen)
			}
			falseBody, err = p.parseLineBlock(ident)
			if err != nil {
				return nil, err
			}
		}
	} else {
		p.ts.Unread(1)
	}

	dispatcher := newNode(NodeIfDispatcher, ident)
	dispatcher.Body = trueBody
	if falseBody != nil {
		elseDisp := newNode(NodeIfDispatcher, ident)
		elseDisp.Body = falseBody
		dispatcher.Right = elseDisp
	}
	n := newNode(NodeIf, ident)
	n.Left = cond
	n.Right = dispatcher
	return n, nil
}

func (p *Parser) parseBraceBlock(ident Token) ([]*Node, error) {
	var body []*Node
	for {
		if p.ts.Prev(1).Tag == TokRBrace {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			return nil, raisef(StageParser, ident.Line+1, "%w: unterminated if/else block", ErrUnbalancedBrace)
		}
		body = append(body, stmt)
	}
	return body, nil
}

// parseLineBlock parses single-line-form if/else bodies up to the next
// EOL/EOF or an upcoming `else`, leaving that terminator for the caller
// the way the original's repair_token logic does.
func (p *Parser) parseLineBlock(ident Token) ([]*Node, error) {
	var body []*Node
	for {
		prev := p.ts.Prev(1)
		if prev.Tag == TokEOL || prev.Tag == TokEOF {
			p.ts.Unread(1)
			break
		}
		nn, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		p.ts.Unread(1)
		if isElseToken(nn) {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			return nil, raisef(StageParser, ident.Line+1, "%w: unterminated if/else line", ErrMalformedStmt)
		}
		body = append(body, stmt)
	}
	return body, nil
}

func (p *Parser) tryCommand() (*Node, error) {
	ident, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if ident.Tag != TokIdentifier {
		p.ts.Unread(1)
		return nil, nil
	}
	next, err := p.ts.Next()
	if err != nil {
		return nil, err
	}

	notCommand := false
	switch next.Tag {
	case TokAssign, TokAddAssign, TokSubAssign, TokMulAssign, TokDivAssign,
		TokModAssign, TokBOrAssign, TokBAndAssign, TokBXorAssign:
		notCommand = true
	}
	if !ident.RightSpace && next.Tag == TokLParen {
		notCommand = true
	}
	if notCommand {
		p.ts.Unread(2)
		return nil, nil
	}

	n := newNode(NodeCommand, ident)
	if !isEOSLike(next.Tag) {
		p.ts.Unread(1)
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		n.Args = args
	} else {
		p.ts.Unread(1)
	}
	return n, nil
}

func (p *Parser) parseArguments() ([]*Node, error) {
	var args []*Node
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	args = append(args, first)
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if tok.Tag != TokComma {
			p.ts.Unread(1)
			break
		}
		next, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	return args, nil
}

func (p *Parser) tryAssign() (*Node, error) {
	variable, err := p.tryVariable()
	if err != nil {
		return nil, err
	}
	if variable == nil {
		return nil, nil
	}
	next, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	var tag NodeTag
	switch next.Tag {
	case TokAssign:
		tag = NodeAssign
	case TokAddAssign:
		tag = NodeAddAssign
	case TokSubAssign:
		tag = NodeSubAssign
	case TokMulAssign:
		tag = NodeMulAssign
	case TokDivAssign:
		tag = NodeDivAssign
	case TokModAssign:
		tag = NodeModAssign
	case TokBOrAssign:
		tag = NodeBOrAssign
	case TokBAndAssign:
		tag = NodeBAndAssign
	case TokBXorAssign:
		tag = NodeBXorAssign
	default:
		return nil, raisef(StageParser, next.Line+1, "%w: assignment requires =", ErrMalformedStmt)
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	n := newNode(tag, variable.Tok)
	n.Left = variable
	n.Right = expr
	return n, nil
}

func (p *Parser) tryVariable() (*Node, error) {
	ident, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if ident.Tag != TokIdentifier {
		p.ts.Unread(1)
		return nil, nil
	}
	next, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if next.Tag != TokLParen {
		p.ts.Unread(1)
		return newNode(NodeVariable, ident), nil
	}
	idx, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	nn, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if nn.Tag != TokRParen {
		if nn.Tag == TokComma {
			return nil, raise(StageParser, nn.Line+1, ErrMultiDimIndex)
		}
		return nil, raise(StageParser, nn.Line+1, ErrUnbalancedParen)
	}
	n := newNode(NodeVariable, ident)
	n.Left = idx
	return n, nil
}

// --- expressions: precedence climbing, low to high -------------------------

func (p *Parser) parseExpression() (*Node, error) { return p.parseBOrAnd() }

func (p *Parser) parseBOrAnd() (*Node, error) {
	node, err := p.parseEqNeq()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		var tag NodeTag
		switch tok.Tag {
		case TokOpBOr:
			tag = NodeBOr
		case TokOpBAnd:
			tag = NodeBAnd
		case TokOpBXor:
			tag = NodeBXor
		default:
			p.ts.Unread(1)
			return node, nil
		}
		r, err := p.parseEqNeq()
		if err != nil {
			return nil, err
		}
		n := newNode(tag, tok)
		n.Left, n.Right = node, r
		node = n
	}
}

func (p *Parser) parseEqNeq() (*Node, error) {
	node, err := p.parseGtLt()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		var tag NodeTag
		switch tok.Tag {
		case TokOpEq, TokAssign: // single '=' inside an expression means ==
			tag = NodeEq
		case TokOpNeq:
			tag = NodeNeq
		default:
			p.ts.Unread(1)
			return node, nil
		}
		r, err := p.parseGtLt()
		if err != nil {
			return nil, err
		}
		n := newNode(tag, tok)
		n.Left, n.Right = node, r
		node = n
	}
}

func (p *Parser) parseGtLt() (*Node, error) {
	node, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		var tag NodeTag
		switch tok.Tag {
		case TokOpGt:
			tag = NodeGt
		case TokOpGtOe:
			tag = NodeGtoe
		case TokOpLt:
			tag = NodeLt
		case TokOpLtOe:
			tag = NodeLtoe
		default:
			p.ts.Unread(1)
			return node, nil
		}
		r, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		n := newNode(tag, tok)
		n.Left, n.Right = node, r
		node = n
	}
}

func (p *Parser) parseAddSub() (*Node, error) {
	node, err := p.parseMulDivMod()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		var tag NodeTag
		switch tok.Tag {
		case TokOpAdd:
			tag = NodeAdd
		case TokOpSub:
			tag = NodeSub
		default:
			p.ts.Unread(1)
			return node, nil
		}
		r, err := p.parseMulDivMod()
		if err != nil {
			return nil, err
		}
		n := newNode(tag, tok)
		n.Left, n.Right = node, r
		node = n
	}
}

func (p *Parser) parseMulDivMod() (*Node, error) {
	node, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		var tag NodeTag
		switch tok.Tag {
		case TokOpMul:
			tag = NodeMul
		case TokOpDiv:
			tag = NodeDiv
		case TokOpMod:
			tag = NodeMod
		default:
			p.ts.Unread(1)
			return node, nil
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := newNode(tag, tok)
		n.Left, n.Right = node, r
		node = n
	}
}

func (p *Parser) parseUnary() (*Node, error) {
	tok, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if tok.Tag == TokOpSub {
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		n := newNode(NodeUnaryMinus, tok)
		n.Left = operand
		return n, nil
	}
	p.ts.Unread(1)
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (*Node, error) {
	tok, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Tag {
	case TokLParen:
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		next, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if next.Tag != TokRParen {
			return nil, raise(StageParser, tok.Line+1, ErrUnbalancedParen)
		}
		return inner, nil

	case TokInteger, TokReal, TokString:
		tag := NodeIntLiteral
		if tok.Tag == TokReal {
			tag = NodeDoubleLiteral
		} else if tok.Tag == TokString {
			tag = NodeStringLiteral
		}
		return newNode(tag, tok), nil

	case TokOpMul:
		p.ts.Unread(1)
		label, err := p.tryLabel()
		if err != nil {
			return nil, err
		}
		if label == nil {
			return nil, raise(StageParser, tok.Line+1, ErrLabelInExpr)
		}
		return nil, raise(StageParser, tok.Line+1, ErrLabelInExpr)

	case TokIdentifier:
		p.ts.Unread(1)
		return p.parseIdentifierExpr()

	default:
		return nil, raisef(StageParser, tok.Line+1, "%w: cannot parse a value here", ErrMalformedStmt)
	}
}

func (p *Parser) parseIdentifierExpr() (*Node, error) {
	ident, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if ident.Tag != TokIdentifier {
		p.ts.Unread(1)
		return nil, raise(StageParser, ident.Line+1, ErrMalformedStmt)
	}
	next, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if next.Tag != TokLParen {
		p.ts.Unread(1)
		return newNode(NodeIdentifierExpr, ident), nil
	}

	nn, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if nn.Tag == TokRParen {
		return newNode(NodeIdentifierExpr, ident), nil
	}
	p.ts.Unread(1)

	args, err := p.parseArguments()
	if err != nil {
		return nil, err
	}
	nn, err = p.ts.Next()
	if err != nil {
		return nil, err
	}
	if nn.Tag != TokRParen {
		return nil, raise(StageParser, nn.Line+1, ErrUnbalancedParen)
	}
	n := newNode(NodeIdentifierExpr, ident)
	n.Args = args
	return n, nil
}

// ParseExpressionOnly parses a single expression from src and asserts
// the remaining input is just trailing terminators — the entry point
// the preprocessor uses to evaluate #if / #enum expressions (§4.9).
func ParseExpressionOnly(src string) (*Node, error) {
	p := NewParser(src)
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	if !isEOSLike(tok.Tag) {
		return nil, raisef(StageParser, tok.Line+1, "%w: trailing tokens after expression", ErrMalformedStmt)
	}
	return expr, nil
}
