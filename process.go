package posh

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/midbel/rw"
)

// Executable is anything the Executor can Start/Wait on: an external
// process or a builtin. Both external commands and builtins share this
// shape so Pipeline/SimpleCommand execution doesn't need to special-case
// one or the other (spec §4.6).
type Executable interface {
	Start() error
	Wait() error
	Run() error

	StdoutPipe() (io.ReadCloser, error)

	replaceIn(io.Reader)
	replaceOut(io.Writer)
	replaceErr(io.Writer)

	// setExtraFile attaches fd (>2) for an external process. Builtins
	// have no real fd table beyond 0-2 and reject this.
	setExtraFile(fd int, f *os.File) error
}

type external struct {
	*exec.Cmd
}

func External(name string, args, env []string, dir string) Executable {
	c := exec.Command(name, args...)
	c.Env = env
	c.Dir = dir
	return &external{Cmd: c}
}

func (e *external) replaceIn(r io.Reader) {
	if f, ok := unwrapFile(r); ok {
		e.Cmd.Stdin = f
		return
	}
	e.Cmd.Stdin = r
}

func (e *external) replaceOut(w io.Writer) {
	if f, ok := unwrapFile(w); ok {
		e.Cmd.Stdout = f
		return
	}
	e.Cmd.Stdout = w
}

func (e *external) replaceErr(w io.Writer) {
	if f, ok := unwrapFile(w); ok {
		e.Cmd.Stderr = f
		return
	}
	e.Cmd.Stderr = w
}

func (e *external) StdoutPipe() (io.ReadCloser, error) {
	return e.Cmd.StdoutPipe()
}

func (e *external) setExtraFile(fd int, f *os.File) error {
	idx := fd - 3
	for len(e.Cmd.ExtraFiles) <= idx {
		e.Cmd.ExtraFiles = append(e.Cmd.ExtraFiles, nil)
	}
	e.Cmd.ExtraFiles[idx] = f
	return nil
}

// unwrapFile recovers the *os.File backing a decorated stdio stream (e.g.
// one wrapped for buffering) so redirection can dup fds directly instead
// of spinning up an extra copy goroutine, mirroring the teacher's use of
// github.com/midbel/rw for the same purpose.
func unwrapFile(v any) (*os.File, bool) {
	if f, ok := v.(*os.File); ok {
		return f, true
	}
	if u, ok := v.(rw.UnwrapReader); ok {
		f, ok := u.Unwrap().(*os.File)
		return f, ok
	}
	if u, ok := v.(rw.UnwrapWriter); ok {
		f, ok := u.Unwrap().(*os.File)
		return f, ok
	}
	return nil, false
}

// builtinProc runs a builtin function as an Executable, goroutine-backed
// so that it composes uniformly with pipelines the same way an external
// process does (grounded on the teacher's executable.go builtin type).
type builtinProc struct {
	fn     func(*builtinCall) error
	call   builtinCall
	done   chan error
	pipeW  []io.Closer
}

type builtinCall struct {
	sh     *Shell
	args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func newBuiltinProc(sh *Shell, fn func(*builtinCall) error, args []string) *builtinProc {
	return &builtinProc{
		fn:   fn,
		call: builtinCall{sh: sh, args: args, Stdin: sh.Stdin, Stdout: sh.Stdout, Stderr: sh.Stderr},
	}
}

func (b *builtinProc) replaceIn(r io.Reader)  { b.call.Stdin = r }
func (b *builtinProc) replaceOut(w io.Writer) { b.call.Stdout = w }
func (b *builtinProc) replaceErr(w io.Writer) { b.call.Stderr = w }

func (b *builtinProc) setExtraFile(fd int, f *os.File) error {
	return unsupported("file descriptors above 2 in a builtin")
}

func (b *builtinProc) Start() error {
	if b.done != nil {
		return fmt.Errorf("builtin already started")
	}
	b.done = make(chan error, 1)
	go func() {
		b.done <- b.fn(&b.call)
		for _, c := range b.pipeW {
			c.Close()
		}
	}()
	return nil
}

func (b *builtinProc) Wait() error {
	if b.done == nil {
		return fmt.Errorf("builtin not started")
	}
	err := <-b.done
	close(b.done)
	return err
}

func (b *builtinProc) Run() error {
	if err := b.Start(); err != nil {
		return err
	}
	return b.Wait()
}

func (b *builtinProc) StdoutPipe() (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	b.call.Stdout = pw
	b.pipeW = append(b.pipeW, pw)
	return pr, nil
}
