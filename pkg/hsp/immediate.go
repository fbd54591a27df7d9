package hsp

// EvaluateImmediate is a reduced evaluator for constant expressions: it
// walks a pure-expression AST subtree — literals and operators only, no
// variables, system variables, functions, or labels — and evaluates it
// on a local value stack represented here simply as recursive Go calls,
// since the original's dedicated mini value-stack buys nothing once
// operator precedence is already baked into the tree shape. Used by the
// preprocessor to evaluate `#if` and `#enum = expr`.
func EvaluateImmediate(n *Node) (Value, error) {
	if n == nil {
		return Value{}, raise(StagePreprocessor, 0, ErrMalformedStmt)
	}
	switch n.Tag {
	case NodeIntLiteral:
		v := IntValue(atoiPrefix(n.Tok.Content))
		return v, nil
	case NodeDoubleLiteral:
		return DoubleValue(atofPrefix(n.Tok.Content)), nil
	case NodeStringLiteral:
		return StringValue(n.Tok.Content), nil
	case NodeUnaryMinus:
		v, err := EvaluateImmediate(n.Left)
		if err != nil {
			return Value{}, err
		}
		return valueUnaryMinus(n.Line, v)
	case NodeVariable, NodeIdentifierExpr, NodeLabelRef:
		return Value{}, raisef(StagePreprocessor, n.Line, "%w: #if/#enum expressions may not reference variables, functions, or labels", ErrMalformedStmt)
	}

	left, err := EvaluateImmediate(n.Left)
	if err != nil {
		return Value{}, err
	}
	right, err := EvaluateImmediate(n.Right)
	if err != nil {
		return Value{}, err
	}
	switch n.Tag {
	case NodeBOr:
		return valueBOr(n.Line, left, right)
	case NodeBAnd:
		return valueBAnd(n.Line, left, right)
	case NodeBXor:
		return valueBXor(n.Line, left, right)
	case NodeEq:
		return valueEq(left, right), nil
	case NodeNeq:
		return valueNeq(left, right), nil
	case NodeGt:
		return valueGt(n.Line, left, right)
	case NodeGtoe:
		return valueGtoe(n.Line, left, right)
	case NodeLt:
		return valueLt(n.Line, left, right)
	case NodeLtoe:
		return valueLtoe(n.Line, left, right)
	case NodeAdd:
		return valueAdd(n.Line, left, right)
	case NodeSub:
		return valueSub(n.Line, left, right)
	case NodeMul:
		return valueMul(n.Line, left, right)
	case NodeDiv:
		return valueDiv(n.Line, left, right)
	case NodeMod:
		return valueMod(n.Line, left, right)
	}
	return Value{}, raisef(StagePreprocessor, n.Line, "%w: unsupported expression in immediate context", ErrMalformedStmt)
}
