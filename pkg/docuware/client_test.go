package docuware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/dwclient/pkg/query"
	"github.com/hashicorp-forge/dwclient/pkg/schema"
	"github.com/hashicorp-forge/dwclient/pkg/session"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

const (
	sessionCookie = `.DWPLATFORMAUTH=Zm9v+YmFy/==`
	fcPath        = "/DocuWare/Platform/FileCabinets/fc-1"
	resultsPath   = fcPath + "/Query/Results/abc"
)

// fakeService emulates the parts of the platform the client walks.
type fakeService struct {
	*httptest.Server

	requests      atomic.Int32
	logins        atomic.Int32
	logoffs       atomic.Int32
	dialogFetches atomic.Int32
	reject        atomic.Bool

	mu         sync.Mutex
	searchBody map[string]interface{}
	searchURL  *url.URL
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func links(pairs ...string) []map[string]string {
	var out []map[string]string
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, map[string]string{"rel": pairs[i], "href": pairs[i+1]})
	}
	return out
}

func resultItem(id int, title string) map[string]interface{} {
	return map[string]interface{}{
		"Id":            id,
		"Title":         title,
		"ContentType":   "application/pdf",
		"FileCabinetId": "fc-1",
		"Fields": []map[string]interface{}{
			{"FieldName": "DOCTYPE", "FieldLabel": "Document Type", "ItemElementName": "String", "Item": "Invoice"},
		},
		"Links": links("self", fmt.Sprintf("%s/Documents/%d", fcPath, id)),
	}
}

func newFakeService(t *testing.T) *fakeService {
	s := &fakeService{}
	mux := http.NewServeMux()

	mux.HandleFunc("/DocuWare/Platform/Account/Logon", func(w http.ResponseWriter, r *http.Request) {
		s.logins.Add(1)
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("UserName") != "jdoe" || r.PostForm.Get("Password") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Add("Set-Cookie", sessionCookie+"; path=/; HttpOnly")
		writeJSON(w, map[string]interface{}{})
	})

	mux.HandleFunc("/DocuWare/Platform/Account/Logoff", func(w http.ResponseWriter, r *http.Request) {
		s.logoffs.Add(1)
	})

	mux.HandleFunc("/DocuWare/Platform", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"Version": "7.8.1",
			"Links":   links("organizations", "/DocuWare/Platform/Organizations"),
		})
	})

	mux.HandleFunc("/DocuWare/Platform/Organizations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"Organization": []map[string]interface{}{{
				"Id":   "org-1",
				"Name": "Acme Corp",
				"Links": links(
					"self", "/DocuWare/Platform/Organizations/org-1",
					"filecabinets", "/DocuWare/Platform/FileCabinets?orgId=org-1",
					"dialogs", "/DocuWare/Platform/Organizations/org-1/Dialogs",
				),
			}},
		})
	})

	mux.HandleFunc("/DocuWare/Platform/Organizations/org-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"Id": "org-1",
			"AdditionalInfo": map[string]interface{}{
				"CompanyNames": []string{"", "  "},
				"AddressLines": []string{"Main St 1", "", "Springfield"},
				"Email":        "info@acme.test",
			},
		})
	})

	dialogs := []map[string]interface{}{
		{"$type": "DialogInfo", "Id": "dlg-store", "DisplayName": "Store", "Type": "Store", "FileCabinetId": "fc-1"},
		{"$type": "DialogInfo", "Id": "dlg-1", "DisplayName": "Default Search", "Type": "Search", "FileCabinetId": "fc-1",
			"Links": links("self", fcPath+"/Dialogs/dlg-1")},
		{"$type": "DialogInfo", "Id": "dlg_mobile", "DisplayName": "Mobile", "Type": "Search", "FileCabinetId": "fc-1"},
		{"$type": "Dialog", "Id": "dlg-full", "DisplayName": "Full", "Type": "Search", "FileCabinetId": "fc-1"},
		{"$type": "DialogInfo", "Id": "dlg-other", "DisplayName": "Other", "Type": "Search", "FileCabinetId": "fc-9"},
	}

	mux.HandleFunc("/DocuWare/Platform/Organizations/org-1/Dialogs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"Dialog": dialogs})
	})

	mux.HandleFunc("/DocuWare/Platform/FileCabinets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-1", r.URL.Query().Get("orgId"))
		writeJSON(w, map[string]interface{}{
			"FileCabinet": []map[string]interface{}{
				{"Id": "fc-1", "Name": "Archive", "Color": "Blue", "Links": links("dialogs", fcPath+"/Dialogs")},
				{"Id": "fc-2", "Name": "Inbox", "IsBasket": true},
			},
		})
	})

	mux.HandleFunc(fcPath+"/Dialogs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"Dialog": dialogs})
	})

	mux.HandleFunc(fcPath+"/Dialogs/dlg-1", func(w http.ResponseWriter, r *http.Request) {
		s.dialogFetches.Add(1)
		writeJSON(w, map[string]interface{}{
			"Id": "dlg-1",
			"Fields": []map[string]interface{}{
				{"DBFieldName": "DOCTYPE", "DlgLabel": "Document Type", "DWFieldType": "Text", "Length": 40,
					"Links": links("simpleSelectList", fcPath+"/Dialogs/dlg-1/SelectList/DOCTYPE")},
				{"DBFieldName": "DOCDATE", "DlgLabel": "Date", "DWFieldType": "Date"},
				{"DBFieldName": "AMOUNT", "DlgLabel": "Amount", "DWFieldType": "Decimal"},
			},
			"Query": map[string]interface{}{
				"Links": links("dialogExpression", fcPath+"/Query/DialogExpression?dialogId=dlg-1"),
			},
		})
	})

	mux.HandleFunc(fcPath+"/Dialogs/dlg-1/SelectList/DOCTYPE", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"Value": []interface{}{"Invoice", "Offer", 42}})
	})

	mux.HandleFunc(fcPath+"/Query/DialogExpressionLink", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &payload))

		s.mu.Lock()
		s.searchBody = payload
		s.searchURL = r.URL
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s\nignored second line\n", resultsPath)
	})

	mux.HandleFunc(resultsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"Count": map[string]interface{}{"Value": 3},
			"Items": []interface{}{resultItem(1, "Invoice 1"), resultItem(2, "Invoice 2")},
			"Links": links("next", resultsPath+"/2"),
		})
	})

	mux.HandleFunc(resultsPath+"/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"Count": map[string]interface{}{"Value": 3},
			"Items": []interface{}{resultItem(3, "Invoice 3")},
		})
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		open := strings.HasPrefix(r.URL.Path, "/DocuWare/Platform/Account/")
		if !open && (s.reject.Load() || r.Header.Get("Cookie") != sessionCookie) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

func newTestClient(t *testing.T, srv *fakeService) *Client {
	t.Helper()
	tr, err := transport.New(&transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	cred, err := session.NewCredential(srv.URL, "Acme Corp", "jdoe", "s3cret")
	require.NoError(t, err)
	return New(tr, cred, &Config{Scheme: session.SchemeCookie})
}

func searchDialog(t *testing.T, c *Client) *SearchDialog {
	t.Helper()
	ctx := context.Background()

	org, err := c.Organization(ctx, "acme corp")
	require.NoError(t, err)
	fc, err := org.FileCabinet(ctx, "ARCHIVE")
	require.NoError(t, err)
	dlg, err := fc.SearchDialog(ctx, "")
	require.NoError(t, err)
	return dlg
}

func TestClient_LoginAndPlatform(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	state, err := c.Login(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, session.SchemeCookie, state.Scheme)
	assert.Equal(t, sessionCookie, state.Value)
	assert.Equal(t, session.StatusActive, c.Session().Status())

	p, err := c.Platform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7.8.1", p.Version)
	assert.Equal(t, int32(2), srv.requests.Load())

	require.NoError(t, c.Logoff(context.Background()))
	assert.Equal(t, int32(1), srv.logoffs.Load())
	assert.Equal(t, session.StatusLoggedOut, c.Session().Status())
}

func TestClient_LoginWithPersistedState(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.Login(context.Background(), &session.State{Scheme: session.SchemeCookie, Value: sessionCookie})
	require.NoError(t, err)
	assert.Equal(t, int32(0), srv.logins.Load())
}

func TestClient_LoginRejected(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()

	tr, err := transport.New(&transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	cred, err := session.NewCredential(srv.URL, "", "jdoe", "wrong")
	require.NoError(t, err)
	c := New(tr, cred, &Config{Scheme: session.SchemeCookie})

	_, err = c.Login(context.Background(), nil)
	assert.True(t, errors.Is(err, session.ErrAuthentication))
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestClient_Navigation(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, nil)
	require.NoError(t, err)

	_, err = c.Organization(ctx, "Globex")
	assert.True(t, errors.Is(err, ErrNotFound))

	org, err := c.Organization(ctx, "org-1")
	require.NoError(t, err)

	cabinets, err := org.FileCabinets(ctx)
	require.NoError(t, err)
	require.Len(t, cabinets, 2)
	assert.True(t, cabinets[1].IsBasket)
	assert.Equal(t, org, cabinets[0].Organization())

	fc := cabinets[0]
	dialogs, err := fc.Dialogs(ctx)
	require.NoError(t, err)
	var ids []string
	for _, d := range dialogs {
		ids = append(ids, d.ID)
		assert.Equal(t, fc, d.FileCabinet())
	}
	assert.Equal(t, []string{"dlg-store", "dlg-1", "dlg-other"}, ids)

	orgDialogs, err := org.Dialogs(ctx)
	require.NoError(t, err)
	ids = nil
	for _, d := range orgDialogs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"dlg-store", "dlg-1", "dlg_mobile"}, ids)

	store, err := fc.Dialog(ctx, "store")
	require.NoError(t, err)
	assert.Equal(t, DialogTypeStore, store.Type)

	_, err = fc.SearchDialog(ctx, "Store")
	assert.True(t, errors.Is(err, ErrNotFound))

	dlg, err := fc.SearchDialog(ctx, "default search")
	require.NoError(t, err)
	assert.Equal(t, "dlg-1", dlg.ID)

	info, err := org.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp"}, info.CompanyNames)
	assert.Equal(t, []string{"Main St 1", "Springfield"}, info.AddressLines)
	assert.Equal(t, "info@acme.test", info.Additional["Email"])
}

func TestSearchDialog_SchemaAndFields(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, nil)
	require.NoError(t, err)
	dlg := searchDialog(t, c)

	fields, err := dlg.Fields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "DOCTYPE", fields[0].ID)
	assert.Equal(t, schema.TypeDate, fields[1].Type)

	doctype, err := dlg.Field(ctx, "Document Type")
	require.NoError(t, err)
	values, err := doctype.SelectList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice", "Offer", "42"}, values)

	amount, err := dlg.Field(ctx, "AMOUNT")
	require.NoError(t, err)
	values, err = amount.SelectList(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = dlg.Field(ctx, "Nope")
	assert.True(t, errors.Is(err, query.ErrUnknownField))

	// A second dialog value for the same id shares the cached schema.
	again := searchDialog(t, c)
	_, err = again.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.dialogFetches.Load())
}

func TestSearchDialog_Search(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, nil)
	require.NoError(t, err)
	dlg := searchDialog(t, c)

	it, err := dlg.Search(ctx, query.Request{
		Expression: query.List{`Document Type=Invoice \(incoming\),Offer*`, "DOCDATE=2023-01-01,2023-02-01"},
		Operation:  query.Or,
		PageSize:   2,
		SortField:  "Date",
		SortOrder:  query.Desc,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, it.Count())

	var titles []string
	for r, err := range it.All(ctx) {
		require.NoError(t, err)
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"Invoice 1", "Invoice 2", "Invoice 3"}, titles)

	srv.mu.Lock()
	defer srv.mu.Unlock()

	q := srv.searchURL.Query()
	assert.Equal(t, "dlg-1", q.Get("dialogId"))
	assert.Equal(t, "DOCTYPE,DOCDATE", q.Get("fields"))
	assert.Equal(t, "2", q.Get("count"))
	assert.Equal(t, "DOCDATE Desc", q.Get("sortOrder"))

	assert.Equal(t, "Or", srv.searchBody["Operation"])
	conditions := srv.searchBody["Condition"].([]interface{})
	require.Len(t, conditions, 2)
	assert.Equal(t, map[string]interface{}{
		"DBName": "DOCTYPE",
		"Value":  []interface{}{`Invoice \(incoming\)`, "Offer*"},
	}, conditions[0])
	assert.Equal(t, map[string]interface{}{
		"DBName": "DOCDATE",
		"Value":  []interface{}{"/Date(1672531200000)/", "/Date(1675295999000)/"},
	}, conditions[1])
}

func TestSearchDialog_CompileErrorsSendNothing(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, nil)
	require.NoError(t, err)
	dlg := searchDialog(t, c)
	_, err = dlg.Schema(ctx)
	require.NoError(t, err)

	before := srv.requests.Load()

	tests := map[string]query.Expression{
		"string": query.String("NOPE=x"),
		"list":   query.List{"DOCTYPE=x", "NOPE=y"},
		"map":    query.Map{"NOPE": {"x"}},
	}
	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := dlg.Search(ctx, query.Request{Expression: expr})
			var ufe *query.UnknownFieldError
			require.True(t, errors.As(err, &ufe))
			assert.Equal(t, "NOPE", ufe.Field)
		})
	}

	_, err = dlg.Search(ctx, query.Request{Expression: query.String("AMOUNT=abc")})
	assert.True(t, errors.Is(err, query.ErrValueType))

	req, err := dlg.Compile(ctx, query.Request{Expression: query.String("AMOUNT=1.5")})
	require.NoError(t, err)
	assert.Len(t, req.Conditions, 1)

	assert.Equal(t, before, srv.requests.Load())
}

func TestSearchDialog_SessionRejectedDuringIteration(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, nil)
	require.NoError(t, err)
	dlg := searchDialog(t, c)

	it, err := dlg.Search(ctx, query.Request{Expression: query.String("DOCTYPE=Invoice")})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := it.Next(ctx)
		require.NoError(t, err)
	}

	srv.reject.Store(true)
	_, err = it.Next(ctx)
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	assert.Equal(t, session.StatusLoggedOut, c.Session().Status())

	// The session stays logged out; nothing is retried.
	srv.reject.Store(false)
	before := srv.requests.Load()
	_, err = it.Next(ctx)
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	_, err = dlg.Search(ctx, query.Request{Expression: query.String("DOCTYPE=Invoice")})
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	assert.Equal(t, before, srv.requests.Load())
	assert.Equal(t, int32(1), srv.logins.Load())
}

func TestExpressionLink(t *testing.T) {
	tests := []struct {
		name  string
		links string
		want  string
	}{
		{
			name:  "announced",
			links: `{"Query": {"Links": [{"rel": "dialogExpressionLink", "href": "/q/DialogExpressionLink?dialogId=1"}]}}`,
			want:  "/q/DialogExpressionLink?dialogId=1",
		},
		{
			name:  "derived",
			links: `{"Query": {"Links": [{"rel": "dialogExpression", "href": "/q/DialogExpression?dialogId=1"}]}}`,
			want:  "/q/DialogExpressionLink?dialogId=1",
		},
		{
			name:  "derived case-insensitively",
			links: `{"Query": {"Links": [{"rel": "dialogExpression", "href": "/q/dialogexpression?dialogId=1"}]}}`,
			want:  "/q/DialogExpressionLink?dialogId=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := schema.Decode("1", []byte(tt.links), nil)
			require.NoError(t, err)
			got, err := expressionLink(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := expressionLink(schema.New("1", nil))
	assert.Error(t, err)
}
