package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp-forge/dwclient/pkg/schema"
)

// Operation combines the conditions of a request. Values within one
// condition are always alternatives.
type Operation int

const (
	And Operation = iota
	Or
)

func (o Operation) String() string {
	if o == Or {
		return "Or"
	}
	return "And"
}

// ParseOperation parses "and" or "or", case-insensitively. Empty means And.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return And, nil
	case "or":
		return Or, nil
	}
	return And, fmt.Errorf("unknown operation %q", s)
}

// SortOrder is the direction of SearchRequest.SortField.
type SortOrder int

const (
	Asc SortOrder = iota
	Desc
)

func (o SortOrder) String() string {
	if o == Desc {
		return "Desc"
	}
	return "Asc"
}

// ParseSortOrder parses "asc" or "desc", case-insensitively. Empty means Asc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return Asc, fmt.Errorf("unknown sort order %q", s)
}

// CompiledCondition is one field condition with coerced values. When Range
// is set, Values holds the inclusive lower and upper bound.
type CompiledCondition struct {
	FieldID string
	Type    schema.FieldType
	Values  []Value
	Range   bool
}

// Wire returns the wire form of every value.
func (c CompiledCondition) Wire() []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.Wire()
	}
	return out
}

// SearchRequest is a compiled search, ready to be sent.
type SearchRequest struct {
	DialogID   string
	Conditions []CompiledCondition
	Operation  Operation
	PageSize   int
	SortField  string
	SortOrder  SortOrder
}

type conditionPayload struct {
	DBName string   `json:"DBName"`
	Value  []string `json:"Value"`
}

type requestPayload struct {
	Condition []conditionPayload `json:"Condition"`
	Operation string             `json:"Operation"`
}

// Payload returns the JSON request body.
func (r *SearchRequest) Payload() ([]byte, error) {
	p := requestPayload{
		Condition: make([]conditionPayload, 0, len(r.Conditions)),
		Operation: r.Operation.String(),
	}
	for _, c := range r.Conditions {
		p.Condition = append(p.Condition, conditionPayload{DBName: c.FieldID, Value: c.Wire()})
	}
	return json.Marshal(p)
}

// Query returns the URL parameters of the request: the result fields, the
// page size and the sort order.
func (r *SearchRequest) Query() url.Values {
	q := url.Values{}

	seen := make(map[string]bool, len(r.Conditions))
	var fields []string
	for _, c := range r.Conditions {
		if !seen[c.FieldID] {
			seen[c.FieldID] = true
			fields = append(fields, c.FieldID)
		}
	}
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	if r.PageSize > 0 {
		q.Set("count", strconv.Itoa(r.PageSize))
	}
	if r.SortField != "" {
		q.Set("sortOrder", r.SortField+" "+r.SortOrder.String())
	}
	return q
}
