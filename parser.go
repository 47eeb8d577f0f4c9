package posh

// Parser performs recursive-descent construction of the AST in ast.go
// from a TokenStream (spec §4.4).
type Parser struct {
	s *TokenStream
}

func NewParser(text string) *Parser {
	return &Parser{s: NewTokenStream(NewTokenizer(text))}
}

// Parse parses the whole program.
func (p *Parser) Parse() (Program, error) {
	p.linebreak()
	if p.s.At(EOFTOK) {
		return Program{}, nil
	}
	list, err := p.compoundList()
	if err != nil {
		return Program{}, err
	}
	if !p.s.At(EOFTOK) {
		return Program{}, syntaxErr(p.s.Peek(), "expected end of input")
	}
	return Program{Body: list}, nil
}

func (p *Parser) linebreak() {
	for p.s.At(NEWLINE) {
		p.s.Advance()
	}
}

func (p *Parser) atEndToken() bool {
	if p.s.At(EOFTOK) {
		return true
	}
	if p.s.AtLiteral(OPERATOR, ")") || p.s.AtLiteral(OPERATOR, ";;") {
		return true
	}
	for _, w := range []string{"then", "else", "elif", "fi", "do", "done", "esac", "}"} {
		if p.s.AtLiteral(RESERVED, w) {
			return true
		}
	}
	return false
}

func (p *Parser) compoundList() (CompoundList, error) {
	var list CompoundList
	p.linebreak()
	for !p.atEndToken() {
		ao, err := p.andOr()
		if err != nil {
			return list, err
		}
		list.AndOrs = append(list.AndOrs, ao)
		if p.s.Eat(OPERATOR, ";") || p.s.At(NEWLINE) {
			p.linebreak()
			continue
		}
		break
	}
	return list, nil
}

func (p *Parser) andOr() (AndOr, error) {
	var ao AndOr
	pl, err := p.pipeline()
	if err != nil {
		return ao, err
	}
	ao.Pipelines = append(ao.Pipelines, pl)
	for p.s.AtLiteral(OPERATOR, "&&") || p.s.AtLiteral(OPERATOR, "||") {
		conn := ConnAnd
		if p.s.Peek().Value == "||" {
			conn = ConnOr
		}
		p.s.Advance()
		p.linebreak()
		pl, err := p.pipeline()
		if err != nil {
			return ao, err
		}
		ao.Connectors = append(ao.Connectors, conn)
		ao.Pipelines = append(ao.Pipelines, pl)
	}
	if p.s.Eat(OPERATOR, "&") {
		ao.Async = true
	}
	return ao, nil
}

func (p *Parser) pipeline() (Pipeline, error) {
	var pl Pipeline
	if p.s.AtLiteral(RESERVED, "!") {
		p.s.Advance()
		pl.Invert = true
	}
	cmd, err := p.command()
	if err != nil {
		return pl, err
	}
	pl.Commands = append(pl.Commands, cmd)
	for p.s.AtLiteral(OPERATOR, "|") {
		p.s.Advance()
		p.linebreak()
		cmd, err := p.command()
		if err != nil {
			return pl, err
		}
		pl.Commands = append(pl.Commands, cmd)
	}
	return pl, nil
}

func (p *Parser) command() (Command, error) {
	switch {
	case p.s.AtLiteral(RESERVED, "{"):
		return p.braceGroup()
	case p.s.AtLiteral(OPERATOR, "("):
		return p.subshell()
	case p.s.AtLiteral(RESERVED, "for"):
		return p.forClause()
	case p.s.AtLiteral(RESERVED, "case"):
		return p.caseClause()
	case p.s.AtLiteral(RESERVED, "if"):
		return p.ifClause()
	case p.s.AtLiteral(RESERVED, "while"), p.s.AtLiteral(RESERVED, "until"):
		return p.whileClause()
	case p.isFunctionDef():
		return p.functionDef()
	default:
		return p.simpleCommand()
	}
}

// isFunctionDef implements the two-token lookahead for "NAME (" with an
// empty parameter list (spec §4.3/§4.4).
func (p *Parser) isFunctionDef() bool {
	if Classify(p.s.Peek(), false) != WORD {
		return false
	}
	if _, _, isAssign := assignmentPrefix(p.s.Peek()); isAssign {
		return false
	}
	return p.s.PeekAt(1).Value == "("
}

func (p *Parser) braceGroup() (Command, error) {
	p.s.Advance() // {
	body, err := p.compoundList()
	if err != nil {
		return nil, err
	}
	if !p.s.Eat(RESERVED, "}") {
		return nil, syntaxErr(p.s.Peek(), "expected }")
	}
	return BraceGroup{Body: body}, nil
}

func (p *Parser) subshell() (Command, error) {
	p.s.Advance() // (
	body, err := p.compoundList()
	if err != nil {
		return nil, err
	}
	if !p.s.Eat(OPERATOR, ")") {
		return nil, syntaxErr(p.s.Peek(), "expected )")
	}
	return Subshell{Body: body}, nil
}

func (p *Parser) forClause() (Command, error) {
	p.s.Advance() // for
	nameTok, err := p.s.Pop(WORD)
	if err != nil {
		return nil, err
	}
	p.linebreak()
	fc := ForClause{VarName: nameTok.Value}
	if p.s.Eat(RESERVED, "in") {
		fc.HasWordlist = true
		for p.s.AtWord() {
			fc.Wordlist = append(fc.Wordlist, Word(p.s.Advance().Value))
		}
		if p.s.Eat(OPERATOR, ";") {
		} else if p.s.At(NEWLINE) {
			p.linebreak()
		}
	} else {
		if p.s.Eat(OPERATOR, ";") {
			p.linebreak()
		} else {
			p.linebreak()
		}
	}
	if !p.s.Eat(RESERVED, "do") {
		return nil, syntaxErr(p.s.Peek(), "expected do")
	}
	body, err := p.compoundList()
	if err != nil {
		return nil, err
	}
	if !p.s.Eat(RESERVED, "done") {
		return nil, syntaxErr(p.s.Peek(), "expected done")
	}
	fc.Body = body
	return fc, nil
}

func (p *Parser) caseClause() (Command, error) {
	p.s.Advance() // case
	valueTok, err := p.s.Pop(WORD)
	if err != nil {
		return nil, err
	}
	p.linebreak()
	if !p.s.Eat(RESERVED, "in") {
		return nil, syntaxErr(p.s.Peek(), "expected in")
	}
	p.linebreak()
	cc := CaseClause{Value: Word(valueTok.Value)}
	for !p.s.AtLiteral(RESERVED, "esac") {
		p.s.Eat(OPERATOR, "(")
		var arm CaseArm
		// Patterns are plain words, like a for loop's wordlist: a reserved
		// word such as "done" is a valid pattern.
		if !p.s.AtWord() {
			return nil, syntaxErr(p.s.Peek(), "expected pattern")
		}
		arm.Patterns = append(arm.Patterns, Word(p.s.Advance().Value))
		for p.s.Eat(OPERATOR, "|") {
			if !p.s.AtWord() {
				return nil, syntaxErr(p.s.Peek(), "expected pattern")
			}
			arm.Patterns = append(arm.Patterns, Word(p.s.Advance().Value))
		}
		if !p.s.Eat(OPERATOR, ")") {
			return nil, syntaxErr(p.s.Peek(), "expected )")
		}
		body, err := p.compoundList()
		if err != nil {
			return nil, err
		}
		arm.Body = body
		cc.Arms = append(cc.Arms, arm)
		if p.s.Eat(OPERATOR, ";;") {
			p.linebreak()
			continue
		}
		p.linebreak()
		break
	}
	if !p.s.Eat(RESERVED, "esac") {
		return nil, syntaxErr(p.s.Peek(), "expected esac")
	}
	return cc, nil
}

func (p *Parser) ifClause() (Command, error) {
	p.s.Advance() // if
	var ic IfClause
	for {
		cond, err := p.compoundList()
		if err != nil {
			return nil, err
		}
		if !p.s.Eat(RESERVED, "then") {
			return nil, syntaxErr(p.s.Peek(), "expected then")
		}
		body, err := p.compoundList()
		if err != nil {
			return nil, err
		}
		ic.Conditions = append(ic.Conditions, cond)
		ic.Bodies = append(ic.Bodies, body)
		if p.s.Eat(RESERVED, "elif") {
			continue
		}
		break
	}
	if p.s.Eat(RESERVED, "else") {
		elseBody, err := p.compoundList()
		if err != nil {
			return nil, err
		}
		ic.Bodies = append(ic.Bodies, elseBody)
	}
	if !p.s.Eat(RESERVED, "fi") {
		return nil, syntaxErr(p.s.Peek(), "expected fi")
	}
	return ic, nil
}

func (p *Parser) whileClause() (Command, error) {
	until := p.s.Peek().Value == "until"
	p.s.Advance()
	cond, err := p.compoundList()
	if err != nil {
		return nil, err
	}
	if !p.s.Eat(RESERVED, "do") {
		return nil, syntaxErr(p.s.Peek(), "expected do")
	}
	body, err := p.compoundList()
	if err != nil {
		return nil, err
	}
	if !p.s.Eat(RESERVED, "done") {
		return nil, syntaxErr(p.s.Peek(), "expected done")
	}
	return WhileClause{Condition: cond, Body: body, Until: until}, nil
}

func (p *Parser) functionDef() (Command, error) {
	nameTok := p.s.Advance()
	p.s.Advance() // (
	if !p.s.Eat(OPERATOR, ")") {
		return nil, syntaxErr(p.s.Peek(), "expected )")
	}
	p.linebreak()
	if !p.s.AtLiteral(RESERVED, "{") {
		return nil, syntaxErr(p.s.Peek(), "expected {")
	}
	body, err := p.braceGroup()
	if err != nil {
		return nil, err
	}
	return FunctionDefinition{Name: nameTok.Value, Body: body.(BraceGroup)}, nil
}

var redirOps = map[string]RedirectOp{
	"<": RedirIn, ">": RedirOut, "<&": RedirDupIn, ">&": RedirDupOut,
	">>": RedirAppend, "<>": RedirInOut, ">|": RedirClobber,
}

func (p *Parser) isRedirectStart() bool {
	if p.s.At(IONUMBER) {
		return true
	}
	_, ok := redirOps[p.s.Peek().Value]
	return ok && p.s.At(OPERATOR)
}

func (p *Parser) redirect() (Redirect, error) {
	var rd Redirect
	if p.s.At(IONUMBER) {
		tok := p.s.Advance()
		rd.HasFD = true
		rd.FD = atoiSafe(tok.Value)
	}
	opTok := p.s.Advance()
	op, ok := redirOps[opTok.Value]
	if !ok {
		return rd, syntaxErr(opTok, "expected redirection operator")
	}
	rd.Op = op
	wordTok, err := p.s.Pop(WORD)
	if err != nil {
		return rd, err
	}
	rd.RHS = Word(wordTok.Value)
	return rd, nil
}

func (p *Parser) simpleCommand() (Command, error) {
	var sc SimpleCommand
	for {
		if p.isRedirectStart() {
			rd, err := p.redirect()
			if err != nil {
				return nil, err
			}
			sc.Redirs = append(sc.Redirs, rd)
			continue
		}
		if p.s.AtWord() {
			if name, val, ok := assignmentPrefix(p.s.Peek()); ok {
				p.s.Advance()
				sc.Assignments = append(sc.Assignments, Assignment{Name: name, Value: Word(val)})
				continue
			}
		}
		break
	}
	for p.s.AtWord() || p.isRedirectStart() {
		if p.isRedirectStart() {
			rd, err := p.redirect()
			if err != nil {
				return nil, err
			}
			sc.Redirs = append(sc.Redirs, rd)
			continue
		}
		tok := p.s.Advance()
		sc.Args = append(sc.Args, Word(tok.Value))
	}
	if len(sc.Args) == 0 && len(sc.Assignments) == 0 && len(sc.Redirs) == 0 {
		return nil, syntaxErr(p.s.Peek(), "expected command")
	}
	return sc, nil
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		n = n*10 + int(s[i]-'0')
	}
	return n
}
