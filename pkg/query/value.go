package query

import (
	"strconv"
	"time"

	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

// Value is a coerced condition value. The concrete type is one of
// TextValue, IntValue, DecimalValue or TimeValue, selected by the field type.
type Value interface {
	// String returns the literal value.
	String() string
	// Wire returns the value as sent to the service.
	Wire() string

	value()
}

// TextValue is the value of a Text or Keywords field.
type TextValue struct {
	Literal string
	// Escaped is Literal with literal metacharacters escaped. Wildcards the
	// user did not escape are kept as is.
	Escaped string
}

func (v TextValue) String() string { return v.Literal }
func (v TextValue) Wire() string   { return v.Escaped }
func (TextValue) value()           {}

// IntValue is the value of a Numeric field.
type IntValue int64

func (v IntValue) String() string { return strconv.FormatInt(int64(v), 10) }
func (v IntValue) Wire() string   { return v.String() }
func (IntValue) value()           {}

// DecimalValue is the value of a Decimal field.
type DecimalValue float64

func (v DecimalValue) String() string { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v DecimalValue) Wire() string   { return v.String() }
func (DecimalValue) value()           {}

// TimeValue is the value of a Date or DateTime field.
type TimeValue struct {
	Time time.Time
	// DateOnly is set when the input had no time of day.
	DateOnly bool
}

func (v TimeValue) String() string {
	if v.DateOnly {
		return v.Time.Format("2006-01-02")
	}
	return v.Time.Format(time.RFC3339)
}

func (v TimeValue) Wire() string { return wire.FormatDate(v.Time) }
func (TimeValue) value()         {}
