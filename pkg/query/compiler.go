// Package query compiles user search expressions into search requests.
//
// Compilation is pure: it resolves field names against a dialog schema,
// coerces every value to its field's type and never touches the network.
// Any error is returned before a request could be sent.
package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/hashicorp-forge/dwclient/pkg/schema"
	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

// DateRangePolicy decides how two values for a Date or DateTime field are
// read.
type DateRangePolicy int

const (
	// RangeOnPair reads exactly two values as an inclusive range.
	RangeOnPair DateRangePolicy = iota
	// RangeNever keeps two values as alternatives.
	RangeNever
)

// Options configures a Compiler.
type Options struct {
	DateRange DateRangePolicy

	// Location resolves date literals without a zone.
	// Default: UTC
	Location *time.Location
}

// Request is the input of Compile.
type Request struct {
	Expression Expression
	Operation  Operation
	PageSize   int
	SortField  string
	SortOrder  SortOrder
}

// Compiler compiles expressions against one dialog schema. It is safe for
// concurrent use.
type Compiler struct {
	schema *schema.Schema
	opts   Options
}

// NewCompiler creates a compiler for s.
func NewCompiler(s *schema.Schema, opts Options) *Compiler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Compiler{schema: s, opts: opts}
}

// Compile turns r into a SearchRequest.
func (c *Compiler) Compile(r Request) (*SearchRequest, error) {
	if r.Expression == nil {
		return nil, &SyntaxError{Msg: "empty expression"}
	}
	if r.PageSize < 0 {
		return nil, fmt.Errorf("page size must not be negative, got %d", r.PageSize)
	}

	entries, err := r.Expression.entries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &SyntaxError{Msg: "empty expression"}
	}

	req := &SearchRequest{
		DialogID:   c.schema.DialogID,
		Conditions: make([]CompiledCondition, 0, len(entries)),
		Operation:  r.Operation,
		PageSize:   r.PageSize,
		SortOrder:  r.SortOrder,
	}

	for _, e := range entries {
		cond, err := c.compileEntry(e)
		if err != nil {
			return nil, err
		}
		req.Conditions = append(req.Conditions, cond)
	}

	if r.SortField != "" {
		f, ok := c.schema.Lookup(r.SortField)
		if !ok {
			return nil, &UnknownFieldError{Field: r.SortField, DialogID: c.schema.DialogID}
		}
		req.SortField = f.ID
	}

	return req, nil
}

func (c *Compiler) compileEntry(e entry) (CompiledCondition, error) {
	f, ok := c.schema.Lookup(e.field)
	if !ok {
		return CompiledCondition{}, &UnknownFieldError{Field: e.field, DialogID: c.schema.DialogID}
	}

	cond := CompiledCondition{
		FieldID: f.ID,
		Type:    f.Type,
		Values:  make([]Value, 0, len(e.tokens)),
	}

	if f.Type.IsTemporal() && c.opts.DateRange == RangeOnPair && len(e.tokens) == 2 {
		lower, upper, err := c.dateRange(f, e.tokens[0], e.tokens[1])
		if err != nil {
			return CompiledCondition{}, err
		}
		cond.Range = true
		cond.Values = append(cond.Values, lower, upper)
		return cond, nil
	}

	for _, tok := range e.tokens {
		v, err := c.coerce(f, tok)
		if err != nil {
			return CompiledCondition{}, err
		}
		cond.Values = append(cond.Values, v)
	}
	return cond, nil
}

func (c *Compiler) coerce(f schema.FieldDescriptor, tok token) (Value, error) {
	lit := tok.Literal()

	switch f.Type {
	case schema.TypeNumeric:
		n, err := strconv.ParseInt(strings.TrimSpace(lit), 10, 64)
		if err != nil {
			return nil, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "not an integer"}
		}
		return IntValue(n), nil

	case schema.TypeDecimal:
		num := strings.TrimSpace(lit)
		if !decimalPattern.MatchString(num) {
			return nil, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "not a decimal number"}
		}
		d, err := strconv.ParseFloat(num, 64)
		if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "not a number"}
		}
		return DecimalValue(d), nil

	case schema.TypeDate, schema.TypeDateTime:
		return c.parseTime(f, lit)

	default:
		return TextValue{Literal: lit, Escaped: tok.Escaped()}, nil
	}
}

func (c *Compiler) parseTime(f schema.FieldDescriptor, lit string) (TimeValue, error) {
	s := strings.TrimSpace(lit)

	if strings.HasPrefix(s, "/Date(") {
		t, err := wire.ParseDate(s)
		if err != nil || t.IsZero() {
			return TimeValue{}, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "invalid date", Err: err}
		}
		return TimeValue{Time: t}, nil
	}

	layout, err := dateparse.ParseFormat(s)
	if err != nil {
		return TimeValue{}, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "not a date", Err: err}
	}
	// Day and month order is only unambiguous in year-first form.
	if !strings.HasPrefix(layout, isoDateLayout) {
		return TimeValue{}, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "not an ISO 8601 date (YYYY-MM-DD)"}
	}

	t, err := dateparse.ParseIn(s, c.opts.Location)
	if err != nil {
		return TimeValue{}, &ValueTypeError{Field: f.Name, Type: f.Type, Value: lit, Msg: "not a date", Err: err}
	}

	return TimeValue{Time: t, DateOnly: isDateOnly(layout)}, nil
}

const isoDateLayout = "2006-01-02"

// decimalPattern is a plain decimal literal with an optional exponent.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// dateRange compiles an inclusive range. A date-only upper bound covers the
// whole day.
func (c *Compiler) dateRange(f schema.FieldDescriptor, lo, hi token) (Value, Value, error) {
	lower, err := c.parseTime(f, lo.Literal())
	if err != nil {
		return nil, nil, err
	}
	upper, err := c.parseTime(f, hi.Literal())
	if err != nil {
		return nil, nil, err
	}

	if upper.DateOnly {
		y, m, d := upper.Time.Date()
		upper.Time = time.Date(y, m, d, 23, 59, 59, 0, upper.Time.Location())
	}
	if upper.Time.Before(lower.Time) {
		return nil, nil, &ValueTypeError{
			Field: f.Name,
			Type:  f.Type,
			Value: lo.Literal() + "," + hi.Literal(),
			Msg:   "range start is after range end",
		}
	}
	return lower, upper, nil
}

// isDateOnly reports whether layout carries no time of day.
func isDateOnly(layout string) bool {
	return !strings.Contains(layout, ":") && !strings.Contains(layout, "15")
}
