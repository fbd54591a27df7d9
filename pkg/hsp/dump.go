package hsp

import (
	"fmt"
	"strings"
)

var opNames = map[OpCode]string{
	OpNop:          "NOP",
	OpPushInt:      "PUSH_INT",
	OpPushDouble:   "PUSH_DOUBLE",
	OpPushString:   "PUSH_STRING",
	OpPushVariable: "PUSH_VARIABLE",
	OpPushSysvar:   "PUSH_SYSVAR",
	OpAssign:       "ASSIGN",
	OpAddAssign:    "ADD_ASSIGN",
	OpSubAssign:    "SUB_ASSIGN",
	OpMulAssign:    "MUL_ASSIGN",
	OpDivAssign:    "DIV_ASSIGN",
	OpModAssign:    "MOD_ASSIGN",
	OpBOrAssign:    "BOR_ASSIGN",
	OpBAndAssign:   "BAND_ASSIGN",
	OpBXorAssign:   "BXOR_ASSIGN",
	OpBOr:          "BOR",
	OpBAnd:         "BAND",
	OpBXor:         "BXOR",
	OpEq:           "EQ",
	OpNeq:          "NEQ",
	OpGt:           "GT",
	OpGtoe:         "GTOE",
	OpLt:           "LT",
	OpLtoe:         "LTOE",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpUnaryMinus:   "UNARY_MINUS",
	OpIf:           "IF",
	OpRepeat:       "REPEAT",
	OpRepeatCheck:  "REPEAT_CHECK",
	OpLoop:         "LOOP",
	OpContinue:     "CONTINUE",
	OpBreak:        "BREAK",
	OpLabel:        "LABEL",
	OpGosub:        "GOSUB",
	OpGoto:         "GOTO",
	OpCommand:      "COMMAND",
	OpFunction:     "FUNCTION",
	OpJump:         "JUMP",
	OpJumpRelative: "JUMP_RELATIVE",
	OpReturn:       "RETURN",
	OpEnd:          "END",
}

// Disassemble renders the bytecode buffer as one instruction per line,
// address-prefixed, for the -e dump flag.
func (b *Bytecode) Disassemble() string {
	var sb strings.Builder
	pc := 0
	for pc < len(b.buf) {
		start := pc
		op := b.ReadOp(pc)
		pc++
		name := opNames[op]
		if name == "" {
			name = fmt.Sprintf("OP(%d)", op)
		}
		fmt.Fprintf(&sb, "%6d  %s", start, name)

		switch op {
		case OpPushInt, OpPushSysvar, OpIf, OpJump, OpRepeatCheck,
			OpLoop, OpContinue, OpBreak, OpReturn:
			v, next := b.ReadInt(pc)
			fmt.Fprintf(&sb, " %d", v)
			pc = next
		case OpPushDouble:
			v, next := b.ReadDouble(pc)
			fmt.Fprintf(&sb, " %g", v)
			pc = next
		case OpPushString:
			s, next := b.ReadString(pc)
			fmt.Fprintf(&sb, " %q", s)
			pc = next
		case OpPushVariable, OpAssign, OpAddAssign, OpSubAssign, OpMulAssign,
			OpDivAssign, OpModAssign, OpBOrAssign, OpBAndAssign, OpBXorAssign,
			OpGoto, OpGosub:
			s, next := b.ReadString(pc)
			fmt.Fprintf(&sb, " %s", s)
			pc = next
		case OpCommand, OpFunction:
			s, next := b.ReadString(pc)
			argc, next2 := b.ReadInt(next)
			fmt.Fprintf(&sb, " %s/%d", s, argc)
			pc = next2
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

var nodeTagNames = map[NodeTag]string{
	NodeNop: "NOP", NodeLabel: "LABEL", NodeEnd: "END", NodeReturn: "RETURN",
	NodeGoto: "GOTO", NodeGosub: "GOSUB", NodeRepeat: "REPEAT", NodeLoop: "LOOP",
	NodeContinue: "CONTINUE", NodeBreak: "BREAK", NodeIf: "IF",
	NodeIfDispatcher: "IF_DISPATCHER", NodeCommand: "COMMAND",
	NodeAssign: "ASSIGN", NodeAddAssign: "ADD_ASSIGN", NodeSubAssign: "SUB_ASSIGN",
	NodeMulAssign: "MUL_ASSIGN", NodeDivAssign: "DIV_ASSIGN", NodeModAssign: "MOD_ASSIGN",
	NodeBOrAssign: "BOR_ASSIGN", NodeBAndAssign: "BAND_ASSIGN", NodeBXorAssign: "BXOR_ASSIGN",
	NodeIntLiteral: "INT", NodeDoubleLiteral: "DOUBLE", NodeStringLiteral: "STRING",
	NodeVariable: "VARIABLE", NodeIdentifierExpr: "IDENTIFIER_EXPR", NodeLabelRef: "LABEL_REF",
	NodeBOr: "BOR", NodeBAnd: "BAND", NodeBXor: "BXOR", NodeEq: "EQ", NodeNeq: "NEQ",
	NodeGt: "GT", NodeGtoe: "GTOE", NodeLt: "LT", NodeLtoe: "LTOE",
	NodeAdd: "ADD", NodeSub: "SUB", NodeMul: "MUL", NodeDiv: "DIV", NodeMod: "MOD",
	NodeUnaryMinus: "UNARY_MINUS",
}

// Dump renders the whole statement list as an indented tree, for the -a
// dump flag.
func (a *AST) Dump() string {
	var sb strings.Builder
	for _, n := range a.Statements {
		dumpNode(&sb, n, 0)
	}
	return sb.String()
}

func dumpNode(sb *strings.Builder, n *Node, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	name := nodeTagNames[n.Tag]
	if name == "" {
		name = fmt.Sprintf("TAG(%d)", n.Tag)
	}
	if n.Tok.Content != "" {
		fmt.Fprintf(sb, "%s%s %q\n", indent, name, n.Tok.Content)
	} else {
		fmt.Fprintf(sb, "%s%s\n", indent, name)
	}
	dumpNode(sb, n.Left, depth+1)
	dumpNode(sb, n.Right, depth+1)
	for _, a := range n.Args {
		dumpNode(sb, a, depth+1)
	}
	for _, s := range n.Body {
		dumpNode(sb, s, depth+1)
	}
}
