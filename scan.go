package posh

import "strings"

// Tokenizer produces one Token per call, classifying operators, newlines,
// IO-numbers and words. It delegates all quote-sensitive reading to the
// CharReader so that word boundaries and quoting are resolved in one pass
// (spec §4.2).
type Tokenizer struct {
	r *CharReader
}

func NewTokenizer(text string) *Tokenizer {
	return &Tokenizer{r: NewCharReader(text)}
}

// Next returns the next token, or a zero-value Token with Value == "" at
// end of input.
func (t *Tokenizer) Next() (Token, error) {
	t.skipBlanks()
	if t.r.Eof() {
		return Token{}, nil
	}
	if t.r.At('\n') {
		t.r.Pop()
		return Token{Value: "\n"}, nil
	}
	if t.r.At('#') {
		t.skipComment()
		return t.Next()
	}
	if isOperatorStart(t.r.Peek()) {
		return t.readOperator(), nil
	}
	return t.readWord()
}

func (t *Tokenizer) skipBlanks() {
	for isBlank(t.r.Peek()) {
		t.r.Pop()
	}
}

func (t *Tokenizer) skipComment() {
	for !t.r.Eof() && !t.r.At('\n') {
		t.r.Pop()
	}
}

func (t *Tokenizer) readOperator() Token {
	for _, op := range operators {
		if t.r.Eat(op) {
			return Token{Value: op}
		}
	}
	// Unknown single operator-class byte on its own (shouldn't normally
	// happen given the table above covers every start byte).
	return Token{Value: string(t.r.Pop())}
}

// readWord accumulates bytes, delegating to the CharReader's quote
// sub-readers whenever a special byte is encountered, until whitespace,
// newline, an operator start, or EOF terminates the word.
func (t *Tokenizer) readWord() (Token, error) {
	var b strings.Builder
	for {
		if t.r.Eof() || isBlank(t.r.Peek()) || t.r.At('\n') || isOperatorStart(t.r.Peek()) {
			break
		}
		switch t.r.Peek() {
		case '\\':
			b.WriteString(t.r.ReadBackslashQuote(true))
		case '\'':
			s, err := t.r.ReadSingleQuote(true)
			if err != nil {
				return Token{}, err
			}
			b.WriteString(s)
		case '"':
			s, err := t.readDoubleQuoteSpan()
			if err != nil {
				return Token{}, err
			}
			b.WriteString(s)
		case '`':
			s, err := t.readBackquoteSpan()
			if err != nil {
				return Token{}, err
			}
			b.WriteString(s)
		case '$':
			s, err := t.readDollarSpan()
			if err != nil {
				return Token{}, err
			}
			b.WriteString(s)
		default:
			// One byte at a time: ReadRegularPart would run on past the
			// blanks and operator characters that end a word here.
			b.WriteByte(t.r.Pop())
		}
	}
	value := b.String()
	io := value != "" && isAllDigits(value) && (t.r.At('<') || t.r.At('>'))
	return Token{Value: value, IsIONum: io}, nil
}

func (t *Tokenizer) readDoubleQuoteSpan() (string, error) {
	var b strings.Builder
	b.WriteByte(t.r.Pop()) // opening "
	for {
		if t.r.Eof() {
			return "", errUnterminated("double quote")
		}
		switch t.r.Peek() {
		case '"':
			b.WriteByte(t.r.Pop())
			return b.String(), nil
		case '\\':
			b.WriteString(t.r.ReadBackslashQuote(true))
		case '$':
			s, err := t.readDollarSpan()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case '`':
			s, err := t.readBackquoteSpan()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		default:
			b.WriteByte(t.r.Pop())
		}
	}
}

func (t *Tokenizer) readBackquoteSpan() (string, error) {
	var b strings.Builder
	b.WriteByte(t.r.Pop()) // opening `
	for {
		if t.r.Eof() {
			return "", errUnterminated("backquote")
		}
		switch t.r.Peek() {
		case '`':
			b.WriteByte(t.r.Pop())
			return b.String(), nil
		case '\\':
			b.WriteString(t.r.ReadBackslashQuote(true))
		default:
			b.WriteByte(t.r.Pop())
		}
	}
}

// readDollarSpan consumes a full $-form: $name, $1, $@ etc, ${...}, $(...)
// or $((...)), returning the raw text (including delimiters) so the
// tokenizer can preserve it verbatim in the word's value.
func (t *Tokenizer) readDollarSpan() (string, error) {
	start := t.r.Pos()
	t.r.Pop() // $
	switch {
	case t.r.AtPrefix("(("):
		t.r.Eat("((")
		if _, err := t.r.SkipBalanced('(', ')'); err != nil {
			return "", err
		}
		if !t.r.Eat(")") {
			return "", errUnterminated("arithmetic expansion")
		}
		return t.r.SliceFrom(start), nil
	case t.r.At('('):
		t.r.Eat("(")
		if _, err := t.r.SkipBalanced('(', ')'); err != nil {
			return "", err
		}
		return t.r.SliceFrom(start), nil
	case t.r.At('{'):
		t.r.Eat("{")
		if _, err := t.r.SkipBalanced('{', '}'); err != nil {
			return "", err
		}
		return t.r.SliceFrom(start), nil
	case isNameStart(t.r.Peek()):
		for isNamePart(t.r.Peek()) {
			t.r.Pop()
		}
		return t.r.SliceFrom(start), nil
	case isDigit(t.r.Peek()):
		t.r.Pop()
		return t.r.SliceFrom(start), nil
	case strings.IndexByte("@*#?-$!0", t.r.Peek()) >= 0 && !t.r.Eof():
		t.r.Pop()
		return t.r.SliceFrom(start), nil
	default:
		// Bare '$' with nothing valid following it: just '$'.
		return t.r.SliceFrom(start), nil
	}
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
