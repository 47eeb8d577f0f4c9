package posh

import "testing"

func parseOne(t *testing.T, src string) Command {
	t.Helper()
	p := NewParser(src)
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("%s: unexpected parse error: %s", src, err)
	}
	if len(prog.Body.AndOrs) != 1 || len(prog.Body.AndOrs[0].Pipelines) != 1 {
		t.Fatalf("%s: want exactly one pipeline, got %d and-or(s)", src, len(prog.Body.AndOrs))
	}
	cmds := prog.Body.AndOrs[0].Pipelines[0].Commands
	if len(cmds) != 1 {
		t.Fatalf("%s: want exactly one command, got %d", src, len(cmds))
	}
	return cmds[0]
}

func TestParseSimpleCommand(t *testing.T) {
	cmd := parseOne(t, "echo foo bar")
	sc, ok := cmd.(SimpleCommand)
	if !ok {
		t.Fatalf("want SimpleCommand, got %T", cmd)
	}
	if len(sc.Args) != 3 {
		t.Fatalf("want 3 args, got %d (%v)", len(sc.Args), sc.Args)
	}
}

func TestParseAssignmentPrefix(t *testing.T) {
	cmd := parseOne(t, "FOO=bar BAZ=qux echo $FOO")
	sc, ok := cmd.(SimpleCommand)
	if !ok {
		t.Fatalf("want SimpleCommand, got %T", cmd)
	}
	if len(sc.Assignments) != 2 {
		t.Fatalf("want 2 assignments, got %d", len(sc.Assignments))
	}
	if sc.Assignments[0].Name != "FOO" || sc.Assignments[0].Value != "bar" {
		t.Errorf("unexpected first assignment: %+v", sc.Assignments[0])
	}
	if len(sc.Args) != 2 {
		t.Fatalf("want 2 args (echo $FOO), got %d", len(sc.Args))
	}
}

func TestParseRedirects(t *testing.T) {
	cmd := parseOne(t, "cat foo > out.txt 2>> err.txt <&0")
	sc, ok := cmd.(SimpleCommand)
	if !ok {
		t.Fatalf("want SimpleCommand, got %T", cmd)
	}
	if len(sc.Redirs) != 3 {
		t.Fatalf("want 3 redirects, got %d (%+v)", len(sc.Redirs), sc.Redirs)
	}
	if sc.Redirs[0].Op != RedirOut || sc.Redirs[0].RHS != "out.txt" {
		t.Errorf("unexpected redirect 0: %+v", sc.Redirs[0])
	}
	if sc.Redirs[1].Op != RedirAppend || !sc.Redirs[1].HasFD || sc.Redirs[1].FD != 2 {
		t.Errorf("unexpected redirect 1: %+v", sc.Redirs[1])
	}
	if sc.Redirs[2].Op != RedirDupIn {
		t.Errorf("unexpected redirect 2: %+v", sc.Redirs[2])
	}
}

func TestParsePipeline(t *testing.T) {
	p := NewParser("cat foo | grep bar | wc -l")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	pl := prog.Body.AndOrs[0].Pipelines[0]
	if len(pl.Commands) != 3 {
		t.Fatalf("want 3 pipeline stages, got %d", len(pl.Commands))
	}
}

func TestParsePipelineInvert(t *testing.T) {
	p := NewParser("! false")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	pl := prog.Body.AndOrs[0].Pipelines[0]
	if !pl.Invert {
		t.Fatalf("want Invert=true for leading !")
	}
}

func TestParseAndOrConnectors(t *testing.T) {
	p := NewParser("true && echo a || echo b")
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	ao := prog.Body.AndOrs[0]
	if len(ao.Pipelines) != 3 {
		t.Fatalf("want 3 pipelines, got %d", len(ao.Pipelines))
	}
	if ao.Connectors[0] != ConnAnd || ao.Connectors[1] != ConnOr {
		t.Fatalf("unexpected connectors: %+v", ao.Connectors)
	}
}

func TestParseIfClause(t *testing.T) {
	cmd := parseOne(t, "if true; then echo a; elif false; then echo b; else echo c; fi")
	ic, ok := cmd.(IfClause)
	if !ok {
		t.Fatalf("want IfClause, got %T", cmd)
	}
	if len(ic.Conditions) != 2 {
		t.Fatalf("want 2 conditions (if + elif), got %d", len(ic.Conditions))
	}
	if len(ic.Bodies) != 3 {
		t.Fatalf("want 3 bodies (if + elif + else), got %d", len(ic.Bodies))
	}
}

func TestParseIfClauseNoElse(t *testing.T) {
	cmd := parseOne(t, "if true; then echo a; fi")
	ic, ok := cmd.(IfClause)
	if !ok {
		t.Fatalf("want IfClause, got %T", cmd)
	}
	if len(ic.Bodies) != len(ic.Conditions) {
		t.Fatalf("want bodies == conditions with no trailing else, got %d vs %d", len(ic.Bodies), len(ic.Conditions))
	}
}

func TestParseWhileAndUntil(t *testing.T) {
	cmd := parseOne(t, "while true; do echo a; done")
	wc, ok := cmd.(WhileClause)
	if !ok {
		t.Fatalf("want WhileClause, got %T", cmd)
	}
	if wc.Until {
		t.Fatalf("want Until=false for while")
	}

	cmd = parseOne(t, "until false; do echo a; done")
	wc, ok = cmd.(WhileClause)
	if !ok {
		t.Fatalf("want WhileClause, got %T", cmd)
	}
	if !wc.Until {
		t.Fatalf("want Until=true for until")
	}
}

func TestParseForWithWordlist(t *testing.T) {
	cmd := parseOne(t, "for i in a b c; do echo $i; done")
	fc, ok := cmd.(ForClause)
	if !ok {
		t.Fatalf("want ForClause, got %T", cmd)
	}
	if !fc.HasWordlist || len(fc.Wordlist) != 3 {
		t.Fatalf("unexpected wordlist: %+v", fc)
	}
	if fc.VarName != "i" {
		t.Fatalf("unexpected var name: %q", fc.VarName)
	}
}

func TestParseForWithoutWordlist(t *testing.T) {
	cmd := parseOne(t, "for i; do echo $i; done")
	fc, ok := cmd.(ForClause)
	if !ok {
		t.Fatalf("want ForClause, got %T", cmd)
	}
	if fc.HasWordlist {
		t.Fatalf("want HasWordlist=false")
	}
}

func TestParseCaseClause(t *testing.T) {
	cmd := parseOne(t, "case $x in a) echo a ;; b|c) echo bc ;; *) echo other ;; esac")
	cc, ok := cmd.(CaseClause)
	if !ok {
		t.Fatalf("want CaseClause, got %T", cmd)
	}
	if len(cc.Arms) != 3 {
		t.Fatalf("want 3 arms, got %d", len(cc.Arms))
	}
	if len(cc.Arms[1].Patterns) != 2 {
		t.Fatalf("want 2 patterns on second arm, got %d", len(cc.Arms[1].Patterns))
	}
}

func TestParseSubshellAndBraceGroup(t *testing.T) {
	cmd := parseOne(t, "( echo a; echo b )")
	if _, ok := cmd.(Subshell); !ok {
		t.Fatalf("want Subshell, got %T", cmd)
	}

	cmd = parseOne(t, "{ echo a; echo b; }")
	if _, ok := cmd.(BraceGroup); !ok {
		t.Fatalf("want BraceGroup, got %T", cmd)
	}
}

func TestParseFunctionDefinition(t *testing.T) {
	cmd := parseOne(t, "greet() { echo hello; }")
	fn, ok := cmd.(FunctionDefinition)
	if !ok {
		t.Fatalf("want FunctionDefinition, got %T", cmd)
	}
	if fn.Name != "greet" {
		t.Fatalf("unexpected function name: %q", fn.Name)
	}
}

func TestParseReservedWordAsArgument(t *testing.T) {
	// "if" used as a plain argument, not in command position, must parse
	// as an ordinary word (stream.go's withReserved=false rule).
	cmd := parseOne(t, "echo if then")
	sc, ok := cmd.(SimpleCommand)
	if !ok {
		t.Fatalf("want SimpleCommand, got %T", cmd)
	}
	if len(sc.Args) != 3 {
		t.Fatalf("want 3 args, got %d (%v)", len(sc.Args), sc.Args)
	}
}

func TestParseSyntaxError(t *testing.T) {
	p := NewParser("if true; then echo a")
	if _, err := p.Parse(); err == nil {
		t.Fatalf("want a syntax error for an unterminated if")
	}
}
