package results

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/hashicorp-forge/dwclient/pkg/schema"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

// FieldValue is one index value of a document. Value is nil for empty
// fields and for values that could not be decoded; otherwise it holds a
// string, int64, float64, time.Time or []string, depending on Type.
type FieldValue struct {
	ID       string
	Name     string
	Type     schema.FieldType
	ReadOnly bool
	System   bool
	Value    interface{}
}

// String formats the value for display.
func (v FieldValue) String() string {
	switch val := v.Value.(type) {
	case nil:
		return ""
	case time.Time:
		if v.Type == schema.TypeDate {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case []string:
		return strings.Join(val, ", ")
	default:
		return cast.ToString(val)
	}
}

// Attachment is one file of a document.
type Attachment struct {
	ID             string
	Filename       string
	ContentType    string
	FileSize       int64
	Pages          int
	Modified       time.Time
	HasAnnotations bool
	Links          wire.Links
}

// Document is a stored document with its index values and attachments.
// Documents materialized from a result page carry no attachments; use
// Record.FetchDocument for the full view.
type Document struct {
	ID          int
	Title       string
	ContentType string
	FileSize    int64
	Created     time.Time
	Modified    time.Time
	Fields      []FieldValue
	Attachments []Attachment
	Links       wire.Links
}

// Field returns the value with the given id or name, matched
// case-insensitively.
func (d *Document) Field(key string) (FieldValue, bool) {
	return findField(d.Fields, key)
}

// Record is one search hit.
type Record struct {
	Title         string
	ContentType   string
	FileCabinetID string
	Fields        []FieldValue
	Links         wire.Links
	Document      *Document

	sender Sender
}

// Field returns the value with the given id or name, matched
// case-insensitively.
func (r *Record) Field(key string) (FieldValue, bool) {
	return findField(r.Fields, key)
}

// FetchDocument loads the full document of the record, attachments
// included.
func (r *Record) FetchDocument(ctx context.Context) (*Document, error) {
	href, ok := r.Links.Href("self")
	if !ok {
		return nil, fmt.Errorf("record %q has no document link", r.Title)
	}

	resp, err := r.sender.Send(ctx, &transport.Request{Method: http.MethodGet, Path: href})
	if err != nil {
		return nil, err
	}

	var raw rawDocument
	if err := wire.Decode(resp.Body, &raw); err != nil {
		return nil, err
	}
	return raw.document(), nil
}

func findField(fields []FieldValue, key string) (FieldValue, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.ID, key) {
			return f, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return FieldValue{}, false
}

type rawField struct {
	FieldLabel      string      `mapstructure:"FieldLabel"`
	FieldName       string      `mapstructure:"FieldName"`
	ItemElementName string      `mapstructure:"ItemElementName"`
	ReadOnly        bool        `mapstructure:"ReadOnly"`
	SystemField     bool        `mapstructure:"SystemField"`
	IsNull          bool        `mapstructure:"IsNull"`
	Item            interface{} `mapstructure:"Item"`
}

type rawSection struct {
	ID                string     `mapstructure:"Id"`
	OriginalFileName  string     `mapstructure:"OriginalFileName"`
	ContentType       string     `mapstructure:"ContentType"`
	FileSize          int64      `mapstructure:"FileSize"`
	PageCount         int        `mapstructure:"PageCount"`
	ContentModified   time.Time  `mapstructure:"ContentModified"`
	HasTextAnnotation bool       `mapstructure:"HasTextAnnotation"`
	Links             wire.Links `mapstructure:"Links"`
}

type rawDocument struct {
	ID            int          `mapstructure:"Id"`
	Title         string       `mapstructure:"Title"`
	ContentType   string       `mapstructure:"ContentType"`
	FileSize      int64        `mapstructure:"FileSize"`
	FileCabinetID string       `mapstructure:"FileCabinetId"`
	CreatedAt     time.Time    `mapstructure:"CreatedAt"`
	LastModified  time.Time    `mapstructure:"LastModified"`
	Fields        []rawField   `mapstructure:"Fields"`
	Sections      []rawSection `mapstructure:"Sections"`
	Links         wire.Links   `mapstructure:"Links"`
}

func (d rawDocument) document() *Document {
	doc := &Document{
		ID:          d.ID,
		Title:       d.Title,
		ContentType: d.ContentType,
		FileSize:    d.FileSize,
		Created:     d.CreatedAt,
		Modified:    d.LastModified,
		Fields:      make([]FieldValue, 0, len(d.Fields)),
		Links:       d.Links,
	}
	for _, f := range d.Fields {
		doc.Fields = append(doc.Fields, f.value())
	}
	for _, s := range d.Sections {
		doc.Attachments = append(doc.Attachments, Attachment{
			ID:             s.ID,
			Filename:       s.OriginalFileName,
			ContentType:    s.ContentType,
			FileSize:       s.FileSize,
			Pages:          s.PageCount,
			Modified:       s.ContentModified,
			HasAnnotations: s.HasTextAnnotation,
			Links:          s.Links,
		})
	}
	return doc
}

func (d rawDocument) record(sender Sender) *Record {
	doc := d.document()
	return &Record{
		Title:         d.Title,
		ContentType:   d.ContentType,
		FileCabinetID: d.FileCabinetID,
		Fields:        doc.Fields,
		Links:         d.Links,
		Document:      doc,
		sender:        sender,
	}
}

// value decodes the loosely typed Item of a field.
func (f rawField) value() FieldValue {
	typ, _ := schema.ParseFieldType(f.ItemElementName)
	v := FieldValue{
		ID:       f.FieldName,
		Name:     f.FieldLabel,
		Type:     typ,
		ReadOnly: f.ReadOnly,
		System:   f.SystemField,
	}
	if f.IsNull || f.Item == nil {
		return v
	}

	switch strings.ToLower(f.ItemElementName) {
	case "string":
		if s := cast.ToString(f.Item); s != "" {
			v.Value = s
		}
	case "int":
		if n, err := cast.ToInt64E(f.Item); err == nil {
			v.Value = n
		}
	case "decimal":
		if n, err := cast.ToFloat64E(f.Item); err == nil {
			v.Value = n
		}
	case "date", "datetime":
		if t, err := wire.ParseDate(cast.ToString(f.Item)); err == nil && !t.IsZero() {
			v.Value = t
		}
	case "keywords":
		if m, ok := f.Item.(map[string]interface{}); ok {
			for k, kw := range m {
				if strings.EqualFold(k, "Keyword") {
					if words := cast.ToStringSlice(kw); len(words) > 0 {
						v.Value = words
					}
				}
			}
		}
	default:
		v.Value = f.Item
	}
	return v
}
