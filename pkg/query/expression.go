package query

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Expression is a user query in one of the accepted shapes: String, List
// or Map.
type Expression interface {
	entries() ([]entry, error)
}

// String is a single condition "FIELD=v1,v2".
//
// A backslash makes the next character literal, so "\," and "\=" do not
// split and "\*", "\(" and "\)" are not wildcards or grouping. Double quotes
// make everything up to the closing quote literal. Whitespace around
// unquoted values is trimmed and empty values are dropped.
type String string

// List is a sequence of conditions, each in the String form.
type List []string

// Map maps field names to raw values. Values are not split on commas but
// escapes and quotes apply as in String. Entries compile in key order.
type Map map[string][]string

func (s String) entries() ([]entry, error) {
	e, err := parseCondition(string(s))
	if err != nil {
		return nil, err
	}
	return []entry{e}, nil
}

func (l List) entries() ([]entry, error) {
	out := make([]entry, 0, len(l))
	for _, s := range l {
		e, err := parseCondition(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (m Map) entries() ([]entry, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]entry, 0, len(keys))
	for _, k := range keys {
		field := strings.TrimSpace(k)
		src := fmt.Sprintf("%s=%s", k, strings.Join(m[k], ","))
		if field == "" {
			return nil, &SyntaxError{Condition: src, Msg: "missing field name"}
		}

		var tokens []token
		for _, raw := range m[k] {
			runes, err := lex(raw)
			if err != nil {
				return nil, &SyntaxError{Condition: src, Msg: err.Error()}
			}
			if tok := trim(runes); len(tok) > 0 {
				tokens = append(tokens, tok)
			}
		}
		if len(tokens) == 0 {
			return nil, &SyntaxError{Condition: src, Msg: "no values"}
		}

		out = append(out, entry{field: field, tokens: tokens, src: src})
	}
	return out, nil
}

// entry is one normalized field condition.
type entry struct {
	field  string
	tokens []token
	src    string
}

// char is one input character. literal is set when it was escaped or
// quoted, which strips any syntactic meaning from it.
type char struct {
	r       rune
	literal bool
}

type token []char

// Literal returns the token text.
func (t token) Literal() string {
	var b strings.Builder
	for _, c := range t {
		b.WriteRune(c.r)
	}
	return b.String()
}

// Escaped returns the token text with literal metacharacters escaped for the
// service's search grammar. Unescaped wildcards pass through.
func (t token) Escaped() string {
	var b strings.Builder
	for _, c := range t {
		if c.literal && isMeta(c.r) {
			b.WriteByte('\\')
		}
		b.WriteRune(c.r)
	}
	return b.String()
}

func isMeta(r rune) bool {
	switch r {
	case '*', '(', ')', '\\':
		return true
	}
	return false
}

// lex resolves escapes and quotes.
func lex(s string) ([]char, error) {
	var (
		out    []char
		quoted bool
		runes  = []rune(s)
	)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 < len(runes) {
				i++
				out = append(out, char{r: runes[i], literal: true})
			} else {
				out = append(out, char{r: r, literal: true})
			}
		case r == '"':
			quoted = !quoted
		default:
			out = append(out, char{r: r, literal: quoted})
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	return out, nil
}

// trim drops unquoted whitespace at both ends.
func trim(cs []char) token {
	start, end := 0, len(cs)
	for start < end && !cs[start].literal && unicode.IsSpace(cs[start].r) {
		start++
	}
	for end > start && !cs[end-1].literal && unicode.IsSpace(cs[end-1].r) {
		end--
	}
	return token(cs[start:end])
}

// parseCondition splits "FIELD=v1,v2" on the first unescaped '=' and the
// value part on unescaped commas.
func parseCondition(s string) (entry, error) {
	cs, err := lex(s)
	if err != nil {
		return entry{}, &SyntaxError{Condition: s, Msg: err.Error()}
	}

	eq := -1
	for i, c := range cs {
		if c.r == '=' && !c.literal {
			eq = i
			break
		}
	}
	if eq < 0 {
		return entry{}, &SyntaxError{Condition: s, Msg: "missing '='"}
	}

	field := trim(cs[:eq]).Literal()
	if field == "" {
		return entry{}, &SyntaxError{Condition: s, Msg: "missing field name"}
	}

	var tokens []token
	rest := cs[eq+1:]
	start := 0
	for i := 0; i <= len(rest); i++ {
		if i < len(rest) && (rest[i].r != ',' || rest[i].literal) {
			continue
		}
		if tok := trim(rest[start:i]); len(tok) > 0 {
			tokens = append(tokens, tok)
		}
		start = i + 1
	}
	if len(tokens) == 0 {
		return entry{}, &SyntaxError{Condition: s, Msg: "no values"}
	}

	return entry{field: field, tokens: tokens, src: s}, nil
}
