package docuware

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/hashicorp-forge/dwclient/pkg/query"
	"github.com/hashicorp-forge/dwclient/pkg/results"
	"github.com/hashicorp-forge/dwclient/pkg/schema"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

// SearchDialog is a dialog of type Search.
type SearchDialog struct {
	*Dialog
}

// Field is a searchable field of a dialog.
type Field struct {
	schema.FieldDescriptor

	dialog *SearchDialog
}

// Schema returns the field schema of the dialog. It is fetched once per
// dialog and shared by all searches of the client.
func (d *SearchDialog) Schema(ctx context.Context) (*schema.Schema, error) {
	c := d.fc.org.client
	return c.schemas.Get(ctx, d.ID, func(ctx context.Context) (*schema.Schema, error) {
		href, err := link(d.Links, "self", "dialog")
		if err != nil {
			return nil, err
		}

		resp, err := c.session.Send(ctx, &transport.Request{Method: http.MethodGet, Path: href})
		if err != nil {
			return nil, fmt.Errorf("failed to load dialog %s: %w", d.ID, err)
		}
		return schema.Decode(d.ID, resp.Body, c.logger)
	})
}

// Fields returns the searchable fields in dialog order.
func (d *SearchDialog) Fields(ctx context.Context) ([]Field, error) {
	s, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}

	descriptors := s.Fields()
	out := make([]Field, len(descriptors))
	for i, f := range descriptors {
		out[i] = Field{FieldDescriptor: f, dialog: d}
	}
	return out, nil
}

// Field finds a field by dialog label or database id.
func (d *SearchDialog) Field(ctx context.Context, name string) (Field, error) {
	s, err := d.Schema(ctx)
	if err != nil {
		return Field{}, err
	}
	f, ok := s.Lookup(name)
	if !ok {
		return Field{}, &query.UnknownFieldError{Field: name, DialogID: d.ID}
	}
	return Field{FieldDescriptor: f, dialog: d}, nil
}

// SelectList returns the values the service suggests for the field. Fields
// without a select list return no values.
func (f Field) SelectList(ctx context.Context) ([]string, error) {
	href, ok := f.Links.Href("simpleSelectList")
	if !ok {
		return nil, nil
	}

	var list struct {
		Value []interface{} `mapstructure:"Value"`
	}
	if err := f.dialog.fc.org.client.getJSON(ctx, href, &list); err != nil {
		return nil, fmt.Errorf("failed to load select list of %s: %w", f.ID, err)
	}
	return cast.ToStringSlice(list.Value), nil
}

// Compile compiles r against the dialog schema without sending anything.
func (d *SearchDialog) Compile(ctx context.Context, r query.Request) (*query.SearchRequest, error) {
	s, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewCompiler(s, d.fc.org.client.query).Compile(r)
}

// Search compiles r and runs it. Compile errors are returned before any
// search request is sent.
func (d *SearchDialog) Search(ctx context.Context, r query.Request) (*results.Iterator, error) {
	c := d.fc.org.client

	s, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	req, err := query.NewCompiler(s, c.query).Compile(r)
	if err != nil {
		return nil, err
	}

	href, err := expressionLink(s)
	if err != nil {
		return nil, err
	}
	body, err := req.Payload()
	if err != nil {
		return nil, fmt.Errorf("failed to encode search: %w", err)
	}

	c.logger.Debug("searching",
		"dialog", d.ID,
		"conditions", len(req.Conditions),
		"operation", req.Operation,
	)

	resp, err := c.session.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   href,
		Query:  req.Query(),
		Header: http.Header{
			"Content-Type": {"application/json"},
			"Accept":       {"text/plain"},
		},
		Body: body,
	})
	if err != nil {
		return nil, err
	}

	resultURL := strings.TrimSpace(strings.SplitN(string(resp.Body), "\n", 2)[0])
	if resultURL == "" {
		return nil, fmt.Errorf("search in dialog %s returned no result location", d.ID)
	}

	return results.Open(ctx, c.session, resultURL)
}

var dialogExpressionPattern = regexp.MustCompile(`(?i)/DialogExpression\b`)

// expressionLink returns the search endpoint of a dialog. Some service
// versions only announce "dialogExpression"; the link variant lives next to
// it.
func expressionLink(s *schema.Schema) (string, error) {
	if href, ok := s.QueryLinks.Href("dialogExpressionLink"); ok {
		return href, nil
	}
	if href, ok := s.QueryLinks.Href("dialogExpression"); ok {
		return dialogExpressionPattern.ReplaceAllString(href, "/DialogExpressionLink"), nil
	}
	return "", fmt.Errorf("dialog %s has no search endpoint", s.DialogID)
}
