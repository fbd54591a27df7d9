package hsp

import (
	"io"

	"github.com/antibyte/hspc/pkg/hlog"
)

// Environment owns the AST, label table, variable table, and bytecode
// for one loaded script, created before LoadScript and consumed by
// Execute. Runtime state (value stack, frames, system variables) is
// created fresh inside a *VM every time Execute runs. The variable
// table belongs to the Environment, so variables keep their values from
// one Execute to the next.
type Environment struct {
	source       string
	preprocessed string
	ast          *AST
	bc           *Bytecode
	labels       *LabelTable
	vars         *VariableTable
}

func NewEnvironment() *Environment {
	return &Environment{}
}

// LoadScript runs the whole preprocessor → tokenizer → parser → codegen
// pipeline over source, populating the environment. It does not execute
// anything.
func (env *Environment) LoadScript(source string) error {
	env.source = source

	pp := NewPreprocessor()
	expanded, err := pp.Process(source)
	if err != nil {
		hlog.ErrorLog(hlog.AreaPreprocessor, "preprocess failed: %v", err)
		return err
	}
	env.preprocessed = expanded

	parser := NewParser(expanded)
	ast, err := parser.ParseProgram()
	if err != nil {
		hlog.ErrorLog(hlog.AreaParser, "parse failed: %v", err)
		return err
	}
	env.ast = ast

	bc, labels, err := Generate(ast)
	if err != nil {
		hlog.ErrorLog(hlog.AreaCodegen, "codegen failed: %v", err)
		return err
	}
	env.bc = bc
	env.labels = labels
	env.vars = NewVariableTable()

	hlog.DebugLog(hlog.AreaCodegen, "compiled %d bytecode words", bc.Len())
	return nil
}

// Execute runs the loaded program to completion on a freshly created
// VM, wired to out/in for mes/input traffic.
func (env *Environment) Execute(out io.Writer, in io.Reader) error {
	vm := NewVM(env.bc, env.vars, env.labels, out, in)
	if err := vm.Run(); err != nil {
		hlog.ErrorLog(hlog.AreaVM, "runtime error: %v", err)
		return err
	}
	return nil
}

// Source returns the raw script text passed to LoadScript, for the -s
// dump flag.
func (env *Environment) Source() string { return env.source }

// Preprocessed returns the expanded source after macro processing, for
// the -p dump flag.
func (env *Environment) Preprocessed() string { return env.preprocessed }

// DumpAST renders the parsed statement tree, for the -a dump flag.
func (env *Environment) DumpAST() string {
	if env.ast == nil {
		return ""
	}
	return env.ast.Dump()
}

// DumpBytecode renders the compiled instruction stream, for the -e dump
// flag.
func (env *Environment) DumpBytecode() string {
	if env.bc == nil {
		return ""
	}
	return env.bc.Disassemble()
}
