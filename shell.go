package posh

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const shellName = "posh"

// Shell is the executor: it walks the AST and drives process creation,
// pipelines, redirections, word expansion and control flow (spec §4.6).
// It owns the execution environment described in spec §3.
type Shell struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	env *Env
	pos *PositionalArgs

	arg0       string
	pid        int
	lastStatus int

	path []string
	cwd  string

	level int
}

func NewShell(env *Env) *Shell {
	if env == nil {
		env = NewEnvFromOS()
	}
	cwd, _ := os.Getwd()
	return &Shell{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		env:    env,
		pos:    NewPositionalArgs(nil),
		arg0:   shellName,
		pid:    os.Getpid(),
		path:   filepath.SplitList(os.Getenv("PATH")),
		cwd:    cwd,
		level:  1,
	}
}

const maxSubshellDepth = 255

// Sub returns a forked copy of the shell: a new scope enclosing the same
// variables and functions, so that a subshell or non-final pipeline stage
// can mutate state without that state escaping back to the parent (spec
// §3, §4.6).
func (sh *Shell) Sub() *Shell {
	sub := *sh
	sub.env = sh.env.Fork()
	sub.pos = NewPositionalArgs(append([]string(nil), sh.pos.Current()...))
	sub.level = sh.level + 1
	return &sub
}

// SetArgs sets $0 and the initial positional parameters, per the `-c` and
// scriptfile CLI surfaces (spec §6).
func (sh *Shell) SetArgs(arg0 string, args []string) {
	sh.arg0 = arg0
	sh.pos.Pop()
	sh.pos.Push(args)
}

// LastStatus is the exit status of the last command executed, the CLI's
// own process exit code (spec §6).
func (sh *Shell) LastStatus() int { return sh.lastStatus }

// RunProgram parses and executes a whole program's text, following the
// `-c` and scriptfile CLI surfaces (spec §6).
func (sh *Shell) RunProgram(src string) error {
	p := NewParser(src)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintf(sh.Stderr, "%s: %s\n", shellName, err)
		sh.lastStatus = 2
		return nil
	}
	return sh.ExecProgram(prog)
}

func (sh *Shell) ExecProgram(p Program) error {
	err := sh.execCompoundList(p.Body)
	if errors.Is(err, ErrExit) {
		return err
	}
	return nil
}

// Run reads the whole of r, parses it once, and executes each statement
// in order. Interactive use is a thin wrapper the CLI provides (see
// cmd/shell): the line-editing facility itself is an external collaborator
// per spec §1/§6.
func (sh *Shell) Run(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	err = sh.RunProgram(string(data))
	if errors.Is(err, ErrExit) {
		return nil
	}
	return err
}

func (sh *Shell) execCompoundList(list CompoundList) error {
	for _, ao := range list.AndOrs {
		if err := sh.execAndOrTop(ao); err != nil {
			return err
		}
	}
	return nil
}

func (sh *Shell) execAndOrTop(ao AndOr) error {
	err := sh.execAndOr(ao)
	if errors.Is(err, ErrExit) {
		return err
	}
	sh.reportAndReset(err)
	return nil
}

func (sh *Shell) reportAndReset(err error) {
	if err == nil {
		sh.lastStatus = 0
		return
	}
	sh.lastStatus = sh.statusOf(err)
	if sh.lastStatus != 0 && !errors.Is(err, ErrFalse) {
		// *exec.ExitError and *statusError both just carry an exit code
		// through the error-return plumbing (spec §4.6): neither is a
		// fault worth a diagnostic on its own.
		var ee *exec.ExitError
		var se *statusError
		if !errors.As(err, &ee) && !errors.As(err, &se) {
			fmt.Fprintf(sh.Stderr, "%s: %s\n", shellName, err)
		}
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (sh *Shell) statusOf(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrFalse) {
		return 1
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}

func (sh *Shell) execAndOr(ao AndOr) error {
	if ao.Async {
		fmt.Fprintf(sh.Stderr, "%s: %s\n", shellName, unsupported("background execution with &"))
	}
	err := sh.execPipeline(ao.Pipelines[0])
	status := sh.statusOf(err)
	for i, conn := range ao.Connectors {
		if conn == ConnAnd && status != 0 {
			break
		}
		if conn == ConnOr && status == 0 {
			break
		}
		err = sh.execPipeline(ao.Pipelines[i+1])
		status = sh.statusOf(err)
	}
	return err
}

// execPipeline implements spec §4.6's Pipeline and §8's
// invert-XOR-last-status law.
func (sh *Shell) execPipeline(pl Pipeline) error {
	var err error
	if len(pl.Commands) == 1 {
		err = sh.execCommand(pl.Commands[0])
	} else {
		err = sh.execPipelineStages(pl.Commands)
	}
	if !pl.Invert {
		return err
	}
	if sh.statusOf(err) == 0 {
		return &statusError{code: 1}
	}
	return nil
}

func (sh *Shell) execPipelineStages(cmds []Command) error {
	n := len(cmds)
	readers := make([]io.Reader, n)
	writers := make([]io.Writer, n)
	readers[0] = sh.Stdin
	writers[n-1] = sh.Stdout
	pipeWriters := make([]*io.PipeWriter, n-1)
	for i := 0; i < n-1; i++ {
		pr, pw := io.Pipe()
		writers[i] = pw
		readers[i+1] = pr
		pipeWriters[i] = pw
	}

	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			sub := sh.Sub()
			sub.Stdin = readers[i]
			sub.Stdout = writers[i]
			sub.Stderr = sh.Stderr
			err := sub.execCommand(cmds[i])
			if errors.Is(err, ErrExit) {
				// Every pipeline stage is a forked child (spec §4.6): exit
				// only ends that stage, surfaced here as its exit status.
				err = &statusError{code: sub.lastStatus}
			}
			errs[i] = err
			if i < n-1 {
				pipeWriters[i].Close()
			}
			return nil
		})
	}
	g.Wait()
	return errs[n-1]
}

func (sh *Shell) execCommand(cmd Command) error {
	switch c := cmd.(type) {
	case SimpleCommand:
		return sh.execSimple(c)
	case BraceGroup:
		if err := sh.execCompoundList(c.Body); err != nil {
			return err
		}
		if sh.lastStatus != 0 {
			return &statusError{code: sh.lastStatus}
		}
		return nil
	case Subshell:
		return sh.execSubshell(c)
	case ForClause:
		return sh.execFor(c)
	case CaseClause:
		return sh.execCase(c)
	case IfClause:
		return sh.execIf(c)
	case WhileClause:
		return sh.execWhile(c)
	case FunctionDefinition:
		sh.env.DefineFunction(c.Name, c)
		return nil
	default:
		return runtimeErr("unsupported command type %T", cmd)
	}
}

// execSubshell forks: assignments and function definitions made inside
// never escape to the parent, and an exit inside only ends the subshell
// (spec §4.6, §3 Lifecycle).
func (sh *Shell) execSubshell(c Subshell) error {
	if sh.level >= maxSubshellDepth {
		return runtimeErr("too many nested subshells")
	}
	sub := sh.Sub()
	err := sub.execCompoundList(c.Body)
	// execCompoundList only ever returns nil or an ErrExit-wrapped error:
	// every other outcome, including an ordinary nonzero status, is
	// already folded into sub.lastStatus by its own execAndOrTop/
	// reportAndReset. Either way, exit inside a subshell only ends the
	// subshell, so its status surfaces here as a plain status rather
	// than a fatal signal.
	if err != nil && !errors.Is(err, ErrExit) {
		return err
	}
	if sub.lastStatus != 0 {
		return &statusError{code: sub.lastStatus}
	}
	return nil
}

// execFor and execWhile run directly against sh: for/while/if are plain
// compound commands, not forked subshells, so the loop variable and any
// assignment made in the body are visible to the rest of the script.
func (sh *Shell) execFor(c ForClause) error {
	var items []string
	if c.HasWordlist {
		for _, w := range c.Wordlist {
			fields, err := sh.expandWord(w)
			if err != nil {
				return err
			}
			items = append(items, fields...)
		}
	} else {
		// POSIX semantics for "for NAME; do ... done" with no wordlist:
		// iterate the positional parameters (spec §9 open question,
		// resolved in DESIGN.md).
		items = sh.pos.Current()
	}
	if len(items) == 0 {
		sh.lastStatus = 0
		return nil
	}
	for _, it := range items {
		sh.env.Define(c.VarName, it, false)
		if err := sh.execCompoundList(c.Body); err != nil {
			return err
		}
	}
	if sh.lastStatus != 0 {
		// execCompoundList folds an ordinary failing status into
		// sh.lastStatus and returns nil; re-surface it here so &&/||
		// chaining and pipeline-stage status see the loop's real result
		// instead of a bare nil.
		return &statusError{code: sh.lastStatus}
	}
	return nil
}

func (sh *Shell) execCase(c CaseClause) error {
	subject, err := sh.expandWordNoSplit(c.Value)
	if err != nil {
		return err
	}
	for _, arm := range c.Arms {
		for _, pat := range arm.Patterns {
			patStr, err := sh.expandWordNoSplit(pat)
			if err != nil {
				return err
			}
			if patStr == subject {
				if err := sh.execCompoundList(arm.Body); err != nil {
					return err
				}
				if sh.lastStatus != 0 {
					return &statusError{code: sh.lastStatus}
				}
				return nil
			}
		}
	}
	sh.lastStatus = 0
	return nil
}

func (sh *Shell) execIf(c IfClause) error {
	for i, cond := range c.Conditions {
		if err := sh.execCompoundList(cond); err != nil {
			return err
		}
		if sh.lastStatus == 0 {
			if err := sh.execCompoundList(c.Bodies[i]); err != nil {
				return err
			}
			if sh.lastStatus != 0 {
				return &statusError{code: sh.lastStatus}
			}
			return nil
		}
	}
	if len(c.Bodies) > len(c.Conditions) {
		if err := sh.execCompoundList(c.Bodies[len(c.Bodies)-1]); err != nil {
			return err
		}
		if sh.lastStatus != 0 {
			return &statusError{code: sh.lastStatus}
		}
		return nil
	}
	sh.lastStatus = 0
	return nil
}

// execWhile's status is that of the last command executed in the body, or
// zero if the body never ran (POSIX), not the condition's own trailing
// status — tracked separately since the condition runs one extra time
// (the one that ends the loop) after the last body run.
func (sh *Shell) execWhile(c WhileClause) error {
	status := 0
	for {
		if err := sh.execCompoundList(c.Condition); err != nil {
			return err
		}
		ok := sh.lastStatus == 0
		if c.Until {
			ok = !ok
		}
		if !ok {
			break
		}
		if err := sh.execCompoundList(c.Body); err != nil {
			return err
		}
		status = sh.lastStatus
	}
	sh.lastStatus = status
	if status != 0 {
		return &statusError{code: status}
	}
	return nil
}
