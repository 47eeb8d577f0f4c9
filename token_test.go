package posh

import "testing"

func TestTokenizerWords(t *testing.T) {
	data := []struct {
		Input string
		Want  []string
	}{
		{Input: `echo foobar`, Want: []string{"echo", "foobar"}},
		{Input: `echo "foo bar"`, Want: []string{"echo", `"foo bar"`}},
		{Input: `echo 'foo bar'`, Want: []string{"echo", `'foo bar'`}},
		{Input: `echo pre-"foobar"-post`, Want: []string{"echo", `pre-"foobar"-post`}},
		{Input: `cat foo | grep bar`, Want: []string{"cat", "foo", "|", "grep", "bar"}},
		{Input: "echo `cat foo`", Want: []string{"echo", "`cat foo`"}},
		{Input: `echo ${#foobar}`, Want: []string{"echo", "${#foobar}"}},
		{Input: "echo $(cat foo)", Want: []string{"echo", "$(cat foo)"}},
		{Input: `foo=bar`, Want: []string{"foo=bar"}},
	}
	for _, d := range data {
		tok := NewTokenizer(d.Input)
		var got []string
		for {
			tk, err := tok.Next()
			if err != nil {
				t.Fatalf("%s: unexpected error: %s", d.Input, err)
			}
			if tk.Value == "" {
				break
			}
			if tk.Value == "\n" {
				continue
			}
			got = append(got, tk.Value)
		}
		if len(got) != len(d.Want) {
			t.Fatalf("%s: want %d tokens, got %d (%v)", d.Input, len(d.Want), len(got), got)
		}
		for i := range got {
			if got[i] != d.Want[i] {
				t.Errorf("%s: token %d: want %q, got %q", d.Input, i, d.Want[i], got[i])
			}
		}
	}
}

func TestTokenizerOperatorsLongestMatch(t *testing.T) {
	data := []struct {
		Input string
		Want  []string
	}{
		{Input: ">>", Want: []string{">>"}},
		{Input: ">", Want: []string{">"}},
		{Input: ">&2", Want: []string{">&", "2"}},
		{Input: "&&", Want: []string{"&&"}},
		{Input: "||", Want: []string{"||"}},
		{Input: ";;", Want: []string{";;"}},
	}
	for _, d := range data {
		tok := NewTokenizer(d.Input)
		var got []string
		for {
			tk, err := tok.Next()
			if err != nil {
				t.Fatalf("%s: unexpected error: %s", d.Input, err)
			}
			if tk.Value == "" {
				break
			}
			got = append(got, tk.Value)
		}
		if len(got) != len(d.Want) {
			t.Fatalf("%s: want %v, got %v", d.Input, d.Want, got)
		}
		for i := range got {
			if got[i] != d.Want[i] {
				t.Errorf("%s: want %q at %d, got %q", d.Input, d.Want[i], i, got[i])
			}
		}
	}
}

func TestTokenizerUnterminatedQuote(t *testing.T) {
	data := []string{
		`echo "foo`,
		`echo 'foo`,
		"echo `foo",
	}
	for _, in := range data {
		tok := NewTokenizer(in)
		var err error
		for err == nil {
			var tk Token
			tk, err = tok.Next()
			if err == nil && tk.Value == "" {
				t.Fatalf("%s: expected an unterminated-quote error", in)
			}
		}
	}
}

func TestClassifyReservedWordIsContextSensitive(t *testing.T) {
	tk := Token{Value: "if"}
	if Classify(tk, true) != RESERVED {
		t.Fatalf("expected RESERVED with withReserved=true")
	}
	if Classify(tk, false) != WORD {
		t.Fatalf("expected WORD with withReserved=false")
	}
}

func TestAssignmentPrefix(t *testing.T) {
	data := []struct {
		Input string
		Name  string
		Value string
		Ok    bool
	}{
		{Input: "foo=bar", Name: "foo", Value: "bar", Ok: true},
		{Input: "FOO=", Name: "FOO", Value: "", Ok: true},
		{Input: "=bar", Ok: false},
		{Input: "foo", Ok: false},
		{Input: "1foo=bar", Ok: false},
	}
	for _, d := range data {
		name, value, ok := assignmentPrefix(Token{Value: d.Input})
		if ok != d.Ok {
			t.Fatalf("%s: want ok=%v, got %v", d.Input, d.Ok, ok)
		}
		if ok && (name != d.Name || value != d.Value) {
			t.Errorf("%s: want (%q,%q), got (%q,%q)", d.Input, d.Name, d.Value, name, value)
		}
	}
}
