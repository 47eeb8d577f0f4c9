// Command shell is the CLI entrypoint described in spec §6: an
// interactive REPL with no arguments, `-c program [arg0 [args...]]`, or a
// scriptfile followed by its own arguments.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	posh "github.com/go-posh/posh"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	cFlag := fs.String("c", "", "execute program and exit")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	rest := fs.Args()

	sh := posh.NewShell(nil)

	switch {
	case *cFlag != "":
		arg0 := "shell"
		var args []string
		if len(rest) > 0 {
			arg0 = rest[0]
			args = rest[1:]
		}
		sh.SetArgs(arg0, args)
		sh.RunProgram(*cFlag)
	case len(rest) > 0:
		data, err := os.ReadFile(rest[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "shell: %v\n", err)
			return 127
		}
		sh.SetArgs(rest[0], rest[1:])
		sh.RunProgram(string(data))
	default:
		runInteractive(sh)
	}
	return sh.LastStatus()
}

// runInteractive is a minimal line-at-a-time REPL: the richer
// line-editing facility (history, completion) is an external
// collaborator per spec §1/§6. When stdin is a genuine terminal, it is
// probed (via golang.org/x/term) for its width so the prompt can be
// shaped to it; this is the only thing this shell uses the controlling
// terminal for.
func runInteractive(sh *posh.Shell) {
	prompt := "$ "
	if w, _, err := term.GetSize(int(os.Stdin.Fd())); err == nil && w > 0 {
		if w < 4 {
			prompt = "$"
		}
	}
	scanner := bufio.NewScanner(os.Stdin)
	isTerm := term.IsTerminal(int(os.Stdin.Fd()))
	for {
		if isTerm {
			fmt.Fprint(os.Stderr, prompt)
		}
		if !scanner.Scan() {
			break
		}
		if err := sh.RunProgram(scanner.Text()); errors.Is(err, posh.ErrExit) {
			break
		}
	}
}
