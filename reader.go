package posh

import "fmt"

// CharReader is a cursor over immutable program text. It never mutates the
// text; every method advances an internal index and returns what it
// consumed. The Tokenizer drives these primitives directly; the Expander
// later walks a word's raw text with the same eat/at/peek vocabulary to
// perform substitution (see expand.go).
type CharReader struct {
	src []byte
	pos int
}

func NewCharReader(text string) *CharReader {
	return &CharReader{src: []byte(text)}
}

func (r *CharReader) Eof() bool {
	return r.pos >= len(r.src)
}

func (r *CharReader) Peek() byte {
	if r.Eof() {
		return 0
	}
	return r.src[r.pos]
}

func (r *CharReader) PeekAt(n int) byte {
	if r.pos+n >= len(r.src) {
		return 0
	}
	return r.src[r.pos+n]
}

func (r *CharReader) Pop() byte {
	b := r.Peek()
	if !r.Eof() {
		r.pos++
	}
	return b
}

func (r *CharReader) At(b byte) bool {
	return r.Peek() == b
}

func (r *CharReader) AtPrefix(s string) bool {
	if r.pos+len(s) > len(r.src) {
		return false
	}
	return string(r.src[r.pos:r.pos+len(s)]) == s
}

func (r *CharReader) Eat(s string) bool {
	if !r.AtPrefix(s) {
		return false
	}
	r.pos += len(s)
	return true
}

func (r *CharReader) Pos() int { return r.pos }

func (r *CharReader) SliceFrom(mark int) string {
	return string(r.src[mark:r.pos])
}

// ReadRegularPart consumes a run of bytes that never need special
// handling by a quote-aware sub-reader: anything but backslash, the two
// quote characters, backquote and dollar.
func (r *CharReader) ReadRegularPart() string {
	start := r.pos
	for !r.Eof() {
		switch r.Peek() {
		case '\\', '\'', '"', '`', '$':
			return r.SliceFrom(start)
		}
		r.pos++
	}
	return r.SliceFrom(start)
}

// ReadBackslashQuote consumes one backslash escape. A backslash followed
// by a newline is a line continuation and disappears entirely. A trailing
// backslash at end of input is returned verbatim. keepQuotes controls
// whether the escaping backslash survives in the result (tokenizer) or is
// resolved away (expander quote-removal).
func (r *CharReader) ReadBackslashQuote(keepQuotes bool) string {
	r.Pop() // consume '\'
	if r.Eof() {
		return "\\"
	}
	if r.Peek() == '\n' {
		r.Pop()
		return ""
	}
	c := r.Pop()
	if keepQuotes {
		return "\\" + string(c)
	}
	return string(c)
}

// ReadSingleQuote consumes from the opening quote to its match. Everything
// in between is literal.
func (r *CharReader) ReadSingleQuote(keepQuotes bool) (string, error) {
	start := r.pos
	r.Pop() // opening '
	inner := r.pos
	for {
		if r.Eof() {
			return "", fmt.Errorf("unterminated single quote")
		}
		if r.Peek() == '\'' {
			break
		}
		r.pos++
	}
	content := r.SliceFrom(inner)
	r.Pop() // closing '
	if keepQuotes {
		return r.SliceFrom(start), nil
	}
	return content, nil
}

func (r *CharReader) atDollarParenParen() bool {
	return r.AtPrefix("$((")
}

// SkipBalanced consumes bytes until the matching close delimiter, honoring
// nested opens of the same pair, quotes, and backslash escapes along the
// way. It is used by the tokenizer to find the extent of $(...), ${...}
// and $((...)) without interpreting their contents.
func (r *CharReader) SkipBalanced(open, close byte) (string, error) {
	start := r.pos
	depth := 1
	for {
		if r.Eof() {
			return "", fmt.Errorf("unbalanced %q%q", open, close)
		}
		switch c := r.Peek(); {
		case c == '\\':
			r.ReadBackslashQuote(true)
		case c == '\'':
			if _, err := r.ReadSingleQuote(true); err != nil {
				return "", err
			}
		case c == '"':
			if err := r.skipDoubleQuote(); err != nil {
				return "", err
			}
		case c == open:
			depth++
			r.pos++
		case c == close:
			depth--
			if depth == 0 {
				content := r.SliceFrom(start)
				r.pos++
				return content, nil
			}
			r.pos++
		default:
			r.pos++
		}
	}
}

func (r *CharReader) skipDoubleQuote() error {
	r.Pop()
	for {
		if r.Eof() {
			return fmt.Errorf("unterminated double quote")
		}
		switch r.Peek() {
		case '"':
			r.Pop()
			return nil
		case '\\':
			r.ReadBackslashQuote(true)
		default:
			r.pos++
		}
	}
}
