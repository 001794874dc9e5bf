package schema

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dialogBody = `{
	"Id": "dlg-1",
	"Fields": [
		{"DBFieldName": "DOCTYPE", "DlgLabel": "Document Type", "DWFieldType": "Text", "Length": 40,
		 "Links": [{"rel": "simpleSelectList", "href": "/lists/doctype"}]},
		{"DBFieldName": "AMOUNT", "DlgLabel": "Amount", "DWFieldType": "Decimal"},
		{"DBFieldName": "INVOICE_NO", "DWFieldType": "Int"},
		{"DBFieldName": "DOCDATE", "DlgLabel": "Date", "DWFieldType": "Date"},
		{"DBFieldName": "STORED", "DlgLabel": "Stored", "DWFieldType": "DateTime"},
		{"DBFieldName": "TAGS", "DlgLabel": "Tags", "DWFieldType": "Keywords"},
		{"DBFieldName": "NOTES", "DlgLabel": "Notes", "DWFieldType": "Memo"},
		{"DBFieldName": "ODD", "DlgLabel": "Odd", "DWFieldType": "Geometry"},
		{"DlgLabel": "No id"}
	],
	"Query": {"Links": [{"rel": "dialogExpressionLink", "href": "/fc/1/Query/DialogExpressionLink?dialogId=dlg-1"}]}
}`

func TestDecode(t *testing.T) {
	s, err := Decode("dlg-1", []byte(dialogBody), nil)
	require.NoError(t, err)
	assert.Equal(t, "dlg-1", s.DialogID)
	require.Equal(t, 8, s.Len())

	want := []struct {
		id, name string
		typ      FieldType
	}{
		{"DOCTYPE", "Document Type", TypeText},
		{"AMOUNT", "Amount", TypeDecimal},
		{"INVOICE_NO", "INVOICE_NO", TypeNumeric},
		{"DOCDATE", "Date", TypeDate},
		{"STORED", "Stored", TypeDateTime},
		{"TAGS", "Tags", TypeKeywords},
		{"NOTES", "Notes", TypeText},
		{"ODD", "Odd", TypeText},
	}
	for i, f := range s.Fields() {
		assert.Equal(t, want[i].id, f.ID)
		assert.Equal(t, want[i].name, f.Name)
		assert.Equal(t, want[i].typ, f.Type, f.ID)
		assert.Equal(t, f.Type == TypeKeywords, f.MultiValued, f.ID)
	}

	doctype, ok := s.Lookup("Document Type")
	require.True(t, ok)
	assert.Equal(t, 40, doctype.Length)
	href, ok := doctype.Links.Href("simpleSelectList")
	assert.True(t, ok)
	assert.Equal(t, "/lists/doctype", href)

	assert.True(t, s.QueryLinks.Has("dialogExpressionLink"))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("dlg-1", []byte(`{"Fields": `), nil)
	assert.Error(t, err)
}

func TestSchema_Lookup(t *testing.T) {
	s := New("dlg", []FieldDescriptor{
		{ID: "DOCDATE", Name: "Date", Type: TypeDate},
		{ID: "DATE", Name: "Other", Type: TypeText},
		{ID: "AMOUNT", Name: "Amount", Type: TypeDecimal},
	})

	tests := []struct {
		name   string
		wantID string
		found  bool
	}{
		{"Date", "DOCDATE", true},
		{"DATE", "DATE", true},
		{"AMOUNT", "AMOUNT", true},
		{"Amount", "AMOUNT", true},
		{"amount", "", false},
		{"Missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := s.Lookup(tt.name)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, f.ID)
		})
	}
}

func TestSchema_FieldsIsCopy(t *testing.T) {
	s := New("dlg", []FieldDescriptor{{ID: "A", Name: "A"}})
	fields := s.Fields()
	fields[0].Name = "changed"

	f, ok := s.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "A", f.Name)
}

func TestParseFieldType(t *testing.T) {
	for in, want := range map[string]FieldType{
		"Text": TypeText, "String": TypeText, "memo": TypeText,
		"Numeric": TypeNumeric, "Int": TypeNumeric, "Decimal": TypeDecimal,
		"Date": TypeDate, "DATETIME": TypeDateTime, "Keywords": TypeKeywords,
	} {
		got, err := ParseFieldType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFieldType("Geometry")
	assert.Error(t, err)
}

func TestCache_FetchOnce(t *testing.T) {
	c := NewCache(CacheConfig{})

	var calls atomic.Int32
	fetch := func(ctx context.Context) (*Schema, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return New("dlg", []FieldDescriptor{{ID: "A", Name: "A"}}), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Get(context.Background(), "dlg", fetch)
			assert.NoError(t, err)
			assert.Equal(t, 1, s.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache(CacheConfig{})

	_, err := c.Get(context.Background(), "dlg", func(ctx context.Context) (*Schema, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	s, err := c.Get(context.Background(), "dlg", func(ctx context.Context) (*Schema, error) {
		return New("dlg", nil), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "dlg", s.DialogID)
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(CacheConfig{TTL: time.Hour})

	var calls int
	fetch := func(ctx context.Context) (*Schema, error) {
		calls++
		return New("dlg", nil), nil
	}

	_, err := c.Get(context.Background(), "dlg", fetch)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "dlg", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	c.Invalidate("dlg")
	_, err = c.Get(context.Background(), "dlg", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
