// Command hspc runs the front-end-to-VM pipeline over one script file:
// preprocessor, tokenizer, parser, codegen, and the stack VM.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/antibyte/hspc/pkg/hlog"
	"github.com/antibyte/hspc/pkg/hsp"
)

const usage = `usage: hspc [-s] [-p] [-a] [-e] [-h] -f SCRIPT_FILE

  -f string   script file to run (required)
  -s          dump the loaded source
  -p          dump the preprocessed source
  -a          dump the parsed AST
  -e          dump the generated bytecode
  -h          show this help
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Stdin))
}

func run(argv []string, stdout, stderr *os.File, stdin *os.File) int {
	fs := flag.NewFlagSet("hspc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	scriptFile := fs.String("f", "", "script file to run")
	dumpSource := fs.Bool("s", false, "dump the loaded source")
	dumpPreprocessed := fs.Bool("p", false, "dump the preprocessed source")
	dumpAST := fs.Bool("a", false, "dump the parsed AST")
	dumpBytecode := fs.Bool("e", false, "dump the generated bytecode")
	help := fs.Bool("h", false, "show this help")

	if err := fs.Parse(argv); err != nil {
		return -1
	}
	if *help {
		fmt.Fprint(stdout, usage)
		return 0
	}
	if *scriptFile == "" {
		fmt.Fprintln(stderr, "hspc: -f SCRIPT_FILE is required")
		fs.Usage()
		return -1
	}

	colorize := isatty.IsTerminal(stdout.Fd())
	if *dumpAST || *dumpBytecode {
		hlog.SetLevel(hlog.Debug)
	}

	src, err := os.ReadFile(*scriptFile)
	if err != nil {
		fmt.Fprintf(stderr, "hspc: %v\n", err)
		return -1
	}

	env := hsp.NewEnvironment()
	if *dumpSource {
		printDump(stdout, "SOURCE", string(src), colorize)
	}

	if err := env.LoadScript(string(src)); err != nil {
		fmt.Fprintln(stderr, err)
		return -1
	}

	if *dumpPreprocessed {
		printDump(stdout, "PREPROCESSED", env.Preprocessed(), colorize)
	}
	if *dumpAST {
		printDump(stdout, "AST", env.DumpAST(), colorize)
	}
	if *dumpBytecode {
		printDump(stdout, "BYTECODE", env.DumpBytecode(), colorize)
	}

	if err := env.Execute(stdout, stdin); err != nil {
		fmt.Fprintln(stderr, err)
		return -1
	}
	hlog.DebugLog(hlog.AreaHost, "script %s finished", *scriptFile)

	return 0
}

func printDump(w *os.File, title, body string, colorize bool) {
	if colorize {
		fmt.Fprintf(w, "\x1b[36m--- %s ---\x1b[0m\n%s\n", title, body)
		return
	}
	fmt.Fprintf(w, "--- %s ---\n%s\n", title, body)
}
