// Package query serves read access to validated records. Filters are a
// small equality expression language evaluated in-process; anything that
// looks like SQL smuggling is blocked outright.
package query

import (
	"fmt"
	"strings"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

// forbiddenTokens block filter strings that look like SQL injection
// attempts. Matching is case-insensitive substring, same as the policy the
// filter language replaced.
var forbiddenTokens = []string{";", "--", "DROP", "DELETE", "INSERT", "UPDATE"}

// IsSafe reports whether the filter is free of forbidden tokens.
func IsSafe(filter string) bool {
	upper := strings.ToUpper(filter)
	for _, tok := range forbiddenTokens {
		if strings.Contains(upper, tok) {
			return false
		}
	}
	return true
}

// Filter is a parsed, evaluatable filter expression.
type Filter struct {
	root node
}

// Match reports whether the record satisfies the expression.
func (f *Filter) Match(rec *record.Record) bool {
	if f == nil || f.root == nil {
		return true
	}
	return f.root.eval(rec)
}

type node interface {
	eval(rec *record.Record) bool
}

type andNode struct{ left, right node }

func (n andNode) eval(rec *record.Record) bool { return n.left.eval(rec) && n.right.eval(rec) }

type orNode struct{ left, right node }

func (n orNode) eval(rec *record.Record) bool { return n.left.eval(rec) || n.right.eval(rec) }

type cmpNode struct {
	column string
	value  string
	negate bool
}

func (n cmpNode) eval(rec *record.Record) bool {
	eq := columnValue(rec, n.column) == n.value
	if n.negate {
		return !eq
	}
	return eq
}

func columnValue(rec *record.Record, column string) string {
	switch column {
	case record.ColumnImage:
		return rec.Image
	case record.ColumnFinalRev:
		return rec.FinalRev
	case record.ColumnRevDate:
		return rec.RevDate
	case record.ColumnSheetStatus:
		return string(rec.SheetStatus)
	case record.ColumnRevStatus:
		return string(rec.RevStatus)
	default:
		return rec.Fields[column]
	}
}

var queryColumns = func() map[string]string {
	m := make(map[string]string)
	for _, c := range []string{
		record.ColumnImage,
		record.ColumnFinalRev,
		record.ColumnRevDate,
		record.ColumnSheetStatus,
		record.ColumnRevStatus,
	} {
		m[strings.ToUpper(c)] = c
	}
	for _, f := range record.FieldNames {
		m[f] = f
	}
	return m
}()

// Parse compiles a filter expression. The grammar is
//
//	expr   := and { "OR" and }
//	and    := cond { "AND" cond }
//	cond   := COLUMN ( "=" | "!=" ) value | "(" expr ")"
//
// with values written bare or in single or double quotes. An empty filter
// matches everything.
func Parse(filter string) (*Filter, error) {
	toks, err := tokenize(filter)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return &Filter{}, nil
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %q", p.toks[p.pos])
	}
	return &Filter{root: root}, nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseCond() (node, error) {
	tok := p.next()
	if tok == "" {
		return nil, fmt.Errorf("unexpected end of filter")
	}
	if tok == "(" {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	}

	column, ok := queryColumns[strings.ToUpper(tok)]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", tok)
	}
	op := p.next()
	if op != "=" && op != "!=" {
		return nil, fmt.Errorf("expected = or != after %q", column)
	}
	value := p.next()
	if value == "" || value == "(" || value == ")" {
		return nil, fmt.Errorf("missing value for %q", column)
	}
	return cmpNode{column: column, value: unquote(value), negate: op == "!="}, nil
}

// tokenize splits the filter on whitespace, parentheses and operators,
// keeping quoted strings whole.
func tokenize(s string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			flush()
			j := i + 1
			for j < len(runes) && runes[j] != r {
				j++
			}
			if j == len(runes) {
				return nil, fmt.Errorf("unterminated quote")
			}
			toks = append(toks, string(r)+string(runes[i+1:j])+string(r))
			i = j
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == '=':
			flush()
			toks = append(toks, "=")
		case r == '!' && i+1 < len(runes) && runes[i+1] == '=':
			flush()
			toks = append(toks, "!=")
			i++
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks, nil
}

func unquote(tok string) string {
	if len(tok) >= 2 {
		if (tok[0] == '\'' && tok[len(tok)-1] == '\'') || (tok[0] == '"' && tok[len(tok)-1] == '"') {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}
