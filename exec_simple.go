package posh

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// execSimple implements spec §4.6's SimpleCommand classification: EMPTY
// (assignments/redirections only), FUNCTION (first word names a defined
// function) or EXEC (builtin or external process).
func (sh *Shell) execSimple(c SimpleCommand) error {
	scratch := sh.env.Enclosed()
	for _, a := range c.Assignments {
		val, err := sh.expandWordNoSplit(a.Value)
		if err != nil {
			return err
		}
		// Bound in scratch itself: Define would update an existing binding
		// in sh.env, and the assignment would outlive its command.
		scratch.values[a.Name] = variable{value: val, exported: true}
	}

	words, err := sh.expandArgs(c.Args)
	if err != nil {
		return err
	}

	if len(words) == 0 {
		for _, a := range c.Assignments {
			val, _, _ := scratch.Resolve(a.Name)
			if err := sh.env.Define(a.Name, val, false); err != nil {
				return err
			}
		}
		return sh.applyBareRedirects(c.Redirs)
	}

	name, args := words[0], words[1:]
	if fn, ok := sh.env.LookupFunction(name); ok {
		return sh.execFunction(fn, args, c.Redirs)
	}
	return sh.execExternalOrBuiltin(name, args, scratch, c.Redirs)
}

// execFunction runs a function body against a frame that shares the
// caller's environment (functions execute in the current shell, not a
// forked one: a plain assignment inside a function is visible to the
// caller afterwards) but gets its own positional-parameter frame and
// $0 (spec §3/§4.6).
func (sh *Shell) execFunction(fn FunctionDefinition, args []string, redirs []Redirect) error {
	in, out, errw, closers, err := sh.resolveRedirectStreams(redirs, sh.Stdin, sh.Stdout, sh.Stderr)
	defer closeAll(closers)
	if err != nil {
		return err
	}
	if sh.level >= maxSubshellDepth {
		return runtimeErr("function call nesting too deep")
	}
	frame := *sh
	frame.Stdin, frame.Stdout, frame.Stderr = in, out, errw
	frame.pos = NewPositionalArgs(append([]string(nil), args...))
	frame.arg0 = fn.Name
	frame.level = sh.level + 1
	err = frame.execCompoundList(fn.Body.Body)
	sh.lastStatus = frame.lastStatus
	if err != nil {
		// exit inside a function body terminates the whole shell, not just
		// the function: functions run in the current shell, not a forked
		// one (spec §4.6), so ErrExit must propagate untouched here rather
		// than being converted into a plain status the way a subshell's is.
		return err
	}
	if frame.lastStatus != 0 {
		return &statusError{code: frame.lastStatus}
	}
	return nil
}

// execExternalOrBuiltin builds the Executable for the EXEC classification
// (spec §4.6) — a builtin or an external process, both driven the same
// way through process.go's Executable interface — then applies redirects
// and runs it.
func (sh *Shell) execExternalOrBuiltin(name string, args []string, scratch *Env, redirs []Redirect) error {
	var ex Executable
	if fn, ok := builtins[name]; ok {
		ex = newBuiltinProc(sh, fn, args)
	} else {
		path, err := sh.lookupPath(scratch, name)
		if err != nil {
			return err
		}
		ex = External(path, args, scratch.List(), sh.cwd)
	}
	closers, err := sh.applyExecRedirects(ex, redirs)
	defer closeAll(closers)
	if err != nil {
		return err
	}
	return ex.Run()
}

func (sh *Shell) lookupPath(scratch *Env, name string) (string, error) {
	if strings.ContainsRune(name, '/') {
		return name, nil
	}
	pathVal, _, ok := scratch.Resolve("PATH")
	if !ok {
		pathVal = strings.Join(sh.path, string(os.PathListSeparator))
	}
	for _, dir := range filepath.SplitList(pathVal) {
		if dir == "" {
			dir = "."
		}
		full := filepath.Join(dir, name)
		if info, err := os.Stat(full); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return full, nil
		}
	}
	return "", runtimeErr("%s: command not found", name)
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		c.Close()
	}
}

// resolveRedirectStreams applies redirs to the given default streams for
// a Go-internal callee (a builtin or shell function): only fds 0-2 are
// representable since there is no real process fd table to dup into.
func (sh *Shell) resolveRedirectStreams(redirs []Redirect, in io.Reader, out, errw io.Writer) (io.Reader, io.Writer, io.Writer, []io.Closer, error) {
	var closers []io.Closer
	for _, r := range redirs {
		fd := defaultFD(r.Op)
		if r.HasFD {
			fd = r.FD
		}
		if fd > 2 {
			closeAll(closers)
			return nil, nil, nil, nil, unsupported("redirecting file descriptors above 2 in builtins and shell functions")
		}
		f, dupFD, isDup, closeFD, err := sh.openTarget(r)
		if err != nil {
			closeAll(closers)
			return nil, nil, nil, nil, err
		}
		if closeFD {
			switch fd {
			case 0:
				in = strings.NewReader("")
			case 1:
				out = io.Discard
			case 2:
				errw = io.Discard
			}
			continue
		}
		if isDup {
			var src any
			switch dupFD {
			case 0:
				src = in
			case 1:
				src = out
			case 2:
				src = errw
			default:
				closeAll(closers)
				return nil, nil, nil, nil, unsupported("duplicating file descriptors above 2")
			}
			switch fd {
			case 0:
				in, _ = src.(io.Reader)
			case 1:
				out, _ = src.(io.Writer)
			case 2:
				errw, _ = src.(io.Writer)
			}
			continue
		}
		closers = append(closers, f)
		switch fd {
		case 0:
			in = f
		case 1:
			out = f
		case 2:
			errw = f
		}
	}
	return in, out, errw, closers, nil
}

// applyExecRedirects resolves redirs against the Executable's current
// streams and pushes the result through its replaceIn/replaceOut/
// replaceErr/setExtraFile methods, so a builtin and an external process
// are redirected identically (spec §4.6's Redirect model) regardless of
// which one the caller built.
func (sh *Shell) applyExecRedirects(ex Executable, redirs []Redirect) ([]io.Closer, error) {
	streams := map[int]any{0: sh.Stdin, 1: sh.Stdout, 2: sh.Stderr}
	var closers []io.Closer
	for _, r := range redirs {
		fd := defaultFD(r.Op)
		if r.HasFD {
			fd = r.FD
		}
		f, dupFD, isDup, closeFD, err := sh.openTarget(r)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		if closeFD {
			// >&- / <&- closes a specific IO-number for the child only.
			// sh.Stdin/Stdout/Stderr are the shell process's own os.Std*
			// files (a subshell is an in-process Sub(), never an OS fork),
			// so closing the real fd here would corrupt every later
			// command in this shell; swap in an already-exhausted stream
			// instead of touching the descriptor itself.
			if fd == 0 {
				streams[fd] = strings.NewReader("")
			} else {
				streams[fd] = io.Discard
			}
			continue
		}
		if isDup {
			src, ok := streams[dupFD]
			if !ok {
				closeAll(closers)
				return nil, runtimeErr("bad file descriptor %d", dupFD)
			}
			streams[fd] = src
			continue
		}
		streams[fd] = f
		closers = append(closers, f)
	}
	if v, ok := streams[0]; ok {
		if r, ok2 := v.(io.Reader); ok2 {
			ex.replaceIn(r)
		}
	}
	if v, ok := streams[1]; ok {
		if w, ok2 := v.(io.Writer); ok2 {
			ex.replaceOut(w)
		}
	}
	if v, ok := streams[2]; ok {
		if w, ok2 := v.(io.Writer); ok2 {
			ex.replaceErr(w)
		}
	}
	for fd, v := range streams {
		if fd <= 2 {
			continue
		}
		f, ok := v.(*os.File)
		if !ok {
			continue
		}
		if err := ex.setExtraFile(fd, f); err != nil {
			closeAll(closers)
			return nil, err
		}
	}
	return closers, nil
}

func (sh *Shell) applyBareRedirects(redirs []Redirect) error {
	for _, r := range redirs {
		f, _, isDup, closeFD, err := sh.openTarget(r)
		if isDup || closeFD {
			continue
		}
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

// openTarget resolves one redirection's right-hand side: a file to open,
// or (for <&/>& forms) the source fd to duplicate or "-" to close.
func (sh *Shell) openTarget(r Redirect) (f *os.File, dupFD int, isDup bool, closeFD bool, err error) {
	rhs, err := sh.expandWordNoSplit(r.RHS)
	if err != nil {
		return nil, 0, false, false, err
	}
	if r.Op == RedirDupIn || r.Op == RedirDupOut {
		if rhs == "-" {
			return nil, 0, false, true, nil
		}
		n, convErr := strconv.Atoi(rhs)
		if convErr != nil {
			return nil, 0, false, false, runtimeErr("%s: invalid file descriptor", rhs)
		}
		return nil, n, true, false, nil
	}
	f, err = os.OpenFile(rhs, flagsFor(r.Op), 0644)
	return f, 0, false, false, err
}

func flagsFor(op RedirectOp) int {
	switch op {
	case RedirOut, RedirClobber:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case RedirAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case RedirInOut:
		return os.O_RDWR | os.O_CREATE
	default:
		return os.O_RDONLY
	}
}

func defaultFD(op RedirectOp) int {
	switch op {
	case RedirIn, RedirInOut, RedirDupIn:
		return 0
	default:
		return 1
	}
}
