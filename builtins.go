package posh

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/midbel/shlex"
)

// builtins is the table the Executor's EXEC classification consults
// before searching PATH (spec §4.6, SPEC_FULL.md §4.8), matching the
// teacher's lookupBuiltin-before-lookupCommand ordering.
var builtins = map[string]func(*builtinCall) error{
	"cd":     builtinCd,
	"pwd":    builtinPwd,
	"export": builtinExport,
	"unset":  builtinUnset,
	"exit":   builtinExit,
	":":      builtinTrue,
	"true":   builtinTrue,
	"false":  builtinFalse,
	"shift":  builtinShift,
	"read":   builtinRead,
}

func builtinCd(c *builtinCall) error {
	dir := ""
	switch {
	case len(c.args) > 0 && c.args[0] == "-":
		old, _, ok := c.sh.env.Resolve("OLDPWD")
		if !ok {
			return runtimeErr("cd: OLDPWD not set")
		}
		dir = old
	case len(c.args) > 0:
		dir = c.args[0]
	default:
		home, _, ok := c.sh.env.Resolve("HOME")
		if !ok {
			return runtimeErr("cd: HOME not set")
		}
		dir = home
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.sh.cwd, dir)
	}
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return runtimeErr("cd: %s: %v", dir, err)
	}
	if !info.IsDir() {
		return runtimeErr("cd: %s: not a directory", dir)
	}
	c.sh.env.Define("OLDPWD", c.sh.cwd, true)
	c.sh.cwd = dir
	c.sh.env.Define("PWD", dir, true)
	return nil
}

func builtinPwd(c *builtinCall) error {
	fmt.Fprintln(c.Stdout, c.sh.cwd)
	return nil
}

func builtinExport(c *builtinCall) error {
	if len(c.args) == 0 {
		for _, kv := range c.sh.env.List() {
			fmt.Fprintln(c.Stdout, kv)
		}
		return nil
	}
	for _, a := range c.args {
		if i := strings.IndexByte(a, '='); i >= 0 {
			if err := c.sh.env.Define(a[:i], a[i+1:], true); err != nil {
				return err
			}
			continue
		}
		if err := c.sh.env.Export(a); err != nil {
			return err
		}
	}
	return nil
}

func builtinUnset(c *builtinCall) error {
	for _, a := range c.args {
		c.sh.env.Unset(a)
	}
	return nil
}

func builtinExit(c *builtinCall) error {
	code := c.sh.lastStatus
	if len(c.args) > 0 {
		if n, err := strconv.Atoi(c.args[0]); err == nil {
			code = n
		}
	}
	c.sh.lastStatus = code
	return fmt.Errorf("exit %d: %w", code, ErrExit)
}

func builtinTrue(c *builtinCall) error { return nil }

func builtinFalse(c *builtinCall) error { return ErrFalse }

func builtinShift(c *builtinCall) error {
	n := 1
	if len(c.args) > 0 {
		v, err := strconv.Atoi(c.args[0])
		if err != nil {
			return runtimeErr("shift: %s: not a number", c.args[0])
		}
		n = v
	}
	cur := c.sh.pos.Current()
	if n < 0 || n > len(cur) {
		return runtimeErr("shift: count out of range")
	}
	c.sh.pos.Pop()
	c.sh.pos.Push(append([]string(nil), cur[n:]...))
	return nil
}

// builtinRead reads one line from stdin and assigns fields to the named
// variables (the last variable absorbs any remainder), splitting the line
// with github.com/midbel/shlex the way the teacher's own internal/words
// package intended to (its expand.go has a commented-out shlex.Split call
// for exactly this job).
func builtinRead(c *builtinCall) error {
	reader := bufio.NewReader(c.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return runtimeErr("read: %v", err)
	}
	line = strings.TrimSuffix(line, "\n")
	fields, splitErr := shlex.Split(strings.NewReader(line))
	if splitErr != nil {
		fields = strings.Fields(line)
	}
	names := c.args
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	for i, name := range names {
		val := ""
		switch {
		case i == len(names)-1 && i < len(fields):
			val = strings.Join(fields[i:], " ")
		case i < len(fields):
			val = fields[i]
		}
		if err := c.sh.env.Define(name, val, false); err != nil {
			return err
		}
	}
	return nil
}
