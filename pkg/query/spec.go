// Package query implements the restricted ad-hoc query interface over the
// canonical table.
//
// A query expression is parsed into a whitelisted Spec before anything
// touches the storage engine: only SELECT-like projection, WHERE-like
// filtering, and GROUP BY-like aggregation over canonical field names can
// be expressed, so write operations and unknown fields are rejected at
// parse time with an InvalidQueryError.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cardscope/cardscope/pkg/api"
)

// Aggregate names a permitted aggregation function.
type Aggregate string

// Permitted aggregates.
const (
	AggNone  Aggregate = ""
	AggCount Aggregate = "count"
	AggSum   Aggregate = "sum"
	AggAvg   Aggregate = "avg"
	AggMin   Aggregate = "min"
	AggMax   Aggregate = "max"
)

// SelectItem is one output column: a plain field projection when Agg is
// AggNone, otherwise an aggregate over Field ("*" only for count).
type SelectItem struct {
	Field string
	Agg   Aggregate
}

// Label returns the result column name.
func (it SelectItem) Label() string {
	if it.Agg == AggNone {
		return it.Field
	}
	if it.Field == "*" {
		return string(it.Agg)
	}
	return string(it.Agg) + "_" + it.Field
}

// Condition is one WHERE comparison. Conditions are AND-combined; Values
// holds a single literal except for IN, where it holds the whole list.
type Condition struct {
	Field  string
	Op     string // = != < <= > >= like in
	Values []any
}

// OrderBy names the output ordering.
type OrderBy struct {
	Column string // a select-item label
	Desc   bool
}

// Spec is the validated form of a query expression. It can only describe
// read-only projection, filtering, and aggregation.
type Spec struct {
	Select  []SelectItem
	Where   []Condition
	GroupBy []string
	OrderBy *OrderBy
	Limit   int
}

// Fields lists the canonical columns a query may reference.
var Fields = []string{
	"transaction_id", "date", "amount", "city", "city_tier", "card_type",
	"category", "customer_id", "gender", "year", "month", "quarter",
	"day_of_week", "is_weekend", "spending_tier",
}

var fieldSet = func() map[string]bool {
	set := make(map[string]bool, len(Fields))
	for _, f := range Fields {
		set[f] = true
	}
	return set
}()

var aggregateSet = map[string]Aggregate{
	"count": AggCount, "sum": AggSum, "avg": AggAvg, "min": AggMin, "max": AggMax,
}

// Parse validates a query expression against the restricted grammar and
// canonical schema. Any reference outside the schema, and any operation
// other than read-only projection/filter/aggregation, fails with a
// *api.InvalidQueryError.
func Parse(expr string) (*Spec, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, &api.InvalidQueryError{Expression: expr, Reason: err.Error()}
	}

	p := &parser{expr: expr, tokens: tokens}
	spec, err := p.parseQuery()
	if err != nil {
		if iq, ok := err.(*api.InvalidQueryError); ok {
			return nil, iq
		}
		return nil, &api.InvalidQueryError{Expression: expr, Reason: err.Error()}
	}
	return spec, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
}

func lex(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			j := i
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}
			tokens = append(tokens, token{tokIdent, strings.ToLower(expr[i:j])})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, expr[i:j]})
			i = j
		case c == '\'':
			j := i + 1
			for j < len(expr) && expr[j] != '\'' {
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{tokString, expr[i+1 : j]})
			i = j + 1
		case strings.ContainsRune("(),*;", rune(c)):
			tokens = append(tokens, token{tokSymbol, string(c)})
			i++
		case c == '=' || c == '<' || c == '>' || c == '!':
			j := i + 1
			if j < len(expr) && (expr[j] == '=' || (c == '<' && expr[j] == '>')) {
				j++
			}
			tokens = append(tokens, token{tokSymbol, expr[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

type parser struct {
	expr   string
	tokens []token
	pos    int
}

func (p *parser) cur() token  { return p.tokens[p.pos] }
func (p *parser) next() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) errorf(format string, args ...any) error {
	return &api.InvalidQueryError{Expression: p.expr, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.cur().kind == tokIdent && p.cur().text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseQuery() (*Spec, error) {
	if !p.acceptKeyword("select") {
		return nil, p.errorf("only SELECT expressions are permitted")
	}

	spec := &Spec{}

	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	spec.Select = items

	if p.acceptKeyword("from") {
		t := p.next()
		if t.kind != tokIdent || t.text != "transactions" {
			return nil, p.errorf("unknown table %q, only \"transactions\" exists", t.text)
		}
	}

	if p.acceptKeyword("where") {
		conds, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		spec.Where = conds
	}

	if p.acceptKeyword("group") {
		if !p.acceptKeyword("by") {
			return nil, p.errorf("expected BY after GROUP")
		}
		for {
			f, err := p.parseField()
			if err != nil {
				return nil, err
			}
			spec.GroupBy = append(spec.GroupBy, f)
			if p.cur().kind == tokSymbol && p.cur().text == "," {
				p.pos++
				continue
			}
			break
		}
	}

	if p.acceptKeyword("order") {
		if !p.acceptKeyword("by") {
			return nil, p.errorf("expected BY after ORDER")
		}
		t := p.next()
		if t.kind != tokIdent {
			return nil, p.errorf("expected column name after ORDER BY")
		}
		ob := &OrderBy{Column: t.text}
		if p.acceptKeyword("desc") {
			ob.Desc = true
		} else {
			p.acceptKeyword("asc")
		}
		if !p.orderColumnKnown(spec, ob.Column) {
			return nil, p.errorf("ORDER BY column %q is not a selected column or field", ob.Column)
		}
		spec.OrderBy = ob
	}

	if p.acceptKeyword("limit") {
		t := p.next()
		if t.kind != tokNumber {
			return nil, p.errorf("expected a number after LIMIT")
		}
		n, err := strconv.Atoi(t.text)
		if err != nil || n < 0 {
			return nil, p.errorf("invalid LIMIT %q", t.text)
		}
		spec.Limit = n
	}

	// Tolerate one trailing semicolon.
	if p.cur().kind == tokSymbol && p.cur().text == ";" {
		p.pos++
	}
	if p.cur().kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.cur().text)
	}
	return spec, nil
}

func (p *parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().kind == tokSymbol && p.cur().text == "," {
			p.pos++
			continue
		}
		return items, nil
	}
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	t := p.next()
	if t.kind == tokSymbol && t.text == "*" {
		return SelectItem{}, p.errorf("SELECT * is not permitted, name the fields")
	}
	if t.kind != tokIdent {
		return SelectItem{}, p.errorf("expected field or aggregate, got %q", t.text)
	}

	if agg, ok := aggregateSet[t.text]; ok && p.cur().kind == tokSymbol && p.cur().text == "(" {
		p.pos++ // (
		inner := p.next()
		var field string
		switch {
		case inner.kind == tokSymbol && inner.text == "*":
			if agg != AggCount {
				return SelectItem{}, p.errorf("%s(*) is not permitted", agg)
			}
			field = "*"
		case inner.kind == tokIdent:
			if !fieldSet[inner.text] {
				return SelectItem{}, p.errorf("unknown field %q", inner.text)
			}
			field = inner.text
		default:
			return SelectItem{}, p.errorf("expected field inside %s(...)", agg)
		}
		if c := p.next(); c.kind != tokSymbol || c.text != ")" {
			return SelectItem{}, p.errorf("expected ) after %s(%s", agg, field)
		}
		return SelectItem{Field: field, Agg: agg}, nil
	}

	if !fieldSet[t.text] {
		return SelectItem{}, p.errorf("unknown field %q", t.text)
	}
	return SelectItem{Field: t.text}, nil
}

func (p *parser) parseConditions() ([]Condition, error) {
	var conds []Condition
	for {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
		if p.acceptKeyword("and") {
			continue
		}
		return conds, nil
	}
}

func (p *parser) parseCondition() (Condition, error) {
	field, err := p.parseField()
	if err != nil {
		return Condition{}, err
	}

	t := p.next()
	switch {
	case t.kind == tokSymbol:
		op := t.text
		switch op {
		case "=", "!=", "<>", "<", "<=", ">", ">=":
			if op == "<>" {
				op = "!="
			}
		default:
			return Condition{}, p.errorf("unsupported operator %q", op)
		}
		val, err := p.parseLiteral()
		if err != nil {
			return Condition{}, err
		}
		return Condition{Field: field, Op: op, Values: []any{val}}, nil

	case t.kind == tokIdent && t.text == "like":
		val, err := p.parseLiteral()
		if err != nil {
			return Condition{}, err
		}
		return Condition{Field: field, Op: "like", Values: []any{val}}, nil

	case t.kind == tokIdent && t.text == "in":
		if c := p.next(); c.kind != tokSymbol || c.text != "(" {
			return Condition{}, p.errorf("expected ( after IN")
		}
		var vals []any
		for {
			val, err := p.parseLiteral()
			if err != nil {
				return Condition{}, err
			}
			vals = append(vals, val)
			c := p.next()
			if c.kind == tokSymbol && c.text == "," {
				continue
			}
			if c.kind == tokSymbol && c.text == ")" {
				break
			}
			return Condition{}, p.errorf("expected , or ) in IN list")
		}
		return Condition{Field: field, Op: "in", Values: vals}, nil

	default:
		return Condition{}, p.errorf("unsupported operator %q", t.text)
	}
}

func (p *parser) parseField() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", p.errorf("expected field name, got %q", t.text)
	}
	if !fieldSet[t.text] {
		return "", p.errorf("unknown field %q", t.text)
	}
	return t.text, nil
}

func (p *parser) parseLiteral() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", t.text)
		}
		return f, nil
	default:
		return nil, p.errorf("expected a literal, got %q", t.text)
	}
}

// orderColumnKnown accepts select-item labels and canonical fields.
func (p *parser) orderColumnKnown(spec *Spec, col string) bool {
	for _, it := range spec.Select {
		if it.Label() == col || it.Field == col {
			return true
		}
	}
	return fieldSet[col]
}
