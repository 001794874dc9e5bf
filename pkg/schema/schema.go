// Package schema describes the searchable fields of a search dialog.
//
// A Schema is fetched from the service once per dialog and is immutable
// afterwards. The query compiler resolves field names against it and
// coerces values according to each field's declared type.
package schema

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

// FieldType is the declared type of a dialog field.
type FieldType int

const (
	TypeText FieldType = iota
	TypeNumeric
	TypeDecimal
	TypeDate
	TypeDateTime
	TypeKeywords
)

func (t FieldType) String() string {
	switch t {
	case TypeNumeric:
		return "Numeric"
	case TypeDecimal:
		return "Decimal"
	case TypeDate:
		return "Date"
	case TypeDateTime:
		return "DateTime"
	case TypeKeywords:
		return "Keywords"
	default:
		return "Text"
	}
}

// IsTemporal reports whether values of t are dates.
func (t FieldType) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime
}

// ParseFieldType maps a wire type name to a FieldType. Names are matched
// case-insensitively.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "memo":
		return TypeText, nil
	case "numeric", "int":
		return TypeNumeric, nil
	case "decimal":
		return TypeDecimal, nil
	case "date":
		return TypeDate, nil
	case "datetime":
		return TypeDateTime, nil
	case "keywords":
		return TypeKeywords, nil
	}
	return TypeText, fmt.Errorf("unknown field type %q", s)
}

// FieldDescriptor describes one field of a dialog.
type FieldDescriptor struct {
	// ID is the database field name used on the wire.
	ID string
	// Name is the dialog label shown to users.
	Name        string
	Type        FieldType
	Length      int
	MultiValued bool
	Links       wire.Links
}

func (f FieldDescriptor) String() string {
	if f.Length > 0 {
		return fmt.Sprintf("%s [%s, %s(%d)]", f.Name, f.ID, f.Type, f.Length)
	}
	return fmt.Sprintf("%s [%s, %s]", f.Name, f.ID, f.Type)
}

// Schema is the ordered field collection of one dialog.
type Schema struct {
	DialogID string
	// QueryLinks are the links of the dialog's query resource.
	QueryLinks wire.Links

	fields []FieldDescriptor
	byName map[string]int
	byID   map[string]int
}

// New builds a schema. On duplicate names or ids the first field wins.
func New(dialogID string, fields []FieldDescriptor) *Schema {
	s := &Schema{
		DialogID: dialogID,
		fields:   make([]FieldDescriptor, len(fields)),
		byName:   make(map[string]int, len(fields)),
		byID:     make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if _, ok := s.byName[f.Name]; !ok {
			s.byName[f.Name] = i
		}
		if _, ok := s.byID[f.ID]; !ok {
			s.byID[f.ID] = i
		}
	}
	return s
}

// Lookup resolves a field by its exact dialog label, then by its exact
// database id.
func (s *Schema) Lookup(name string) (FieldDescriptor, bool) {
	if i, ok := s.byName[name]; ok {
		return s.fields[i], true
	}
	if i, ok := s.byID[name]; ok {
		return s.fields[i], true
	}
	return FieldDescriptor{}, false
}

// Fields returns the fields in dialog order.
func (s *Schema) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

type dialogField struct {
	DBFieldName string     `mapstructure:"DBFieldName"`
	DlgLabel    string     `mapstructure:"DlgLabel"`
	DWFieldType string     `mapstructure:"DWFieldType"`
	Length      int        `mapstructure:"Length"`
	Links       wire.Links `mapstructure:"Links"`
}

// Decode builds a schema from a dialog description body. Fields with an
// unknown type are kept as Text.
func Decode(dialogID string, body []byte, logger hclog.Logger) (*Schema, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var dialog struct {
		Fields []dialogField `mapstructure:"Fields"`
		Query  struct {
			Links wire.Links `mapstructure:"Links"`
		} `mapstructure:"Query"`
	}
	if err := wire.Decode(body, &dialog); err != nil {
		return nil, fmt.Errorf("failed to decode dialog %s: %w", dialogID, err)
	}

	fields := make([]FieldDescriptor, 0, len(dialog.Fields))
	for _, f := range dialog.Fields {
		if f.DBFieldName == "" {
			continue
		}

		typ, err := ParseFieldType(f.DWFieldType)
		if err != nil {
			logger.Debug("treating field as text", "dialog", dialogID, "field", f.DBFieldName, "type", f.DWFieldType)
		}

		name := f.DlgLabel
		if name == "" {
			name = f.DBFieldName
		}

		fields = append(fields, FieldDescriptor{
			ID:          f.DBFieldName,
			Name:        name,
			Type:        typ,
			Length:      f.Length,
			MultiValued: typ == TypeKeywords,
			Links:       f.Links,
		})
	}

	s := New(dialogID, fields)
	s.QueryLinks = dialog.Query.Links
	return s, nil
}
