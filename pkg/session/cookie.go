package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

const (
	logonPath  = "/DocuWare/Platform/Account/Logon"
	logoffPath = "/DocuWare/Platform/Account/Logoff"
)

func (m *Manager) cookieLogin(ctx context.Context) (*State, error) {
	form := url.Values{
		"LoginType":                      {"DocuWare"},
		"RedirectToMyselfInCaseOfError": {"false"},
		"RememberMe":                     {"false"},
		"UserName":                       {m.cred.username},
		"Password":                       {m.cred.secret},
	}
	if m.cred.organization != "" {
		form.Set("Organization", m.cred.organization)
	}

	resp, err := m.transport.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   logonPath,
		Header: http.Header{
			"Content-Type": {"application/x-www-form-urlencoded"},
			"Accept":       {"application/json"},
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return nil, &AuthenticationError{Scheme: SchemeCookie, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthenticationError{
			Scheme:     SchemeCookie,
			StatusCode: resp.StatusCode,
			Msg:        "login rejected",
		}
	}

	cookie := cookieHeader(resp.Header.Values("Set-Cookie"))
	if cookie == "" {
		return nil, &AuthenticationError{
			Scheme:     SchemeCookie,
			StatusCode: resp.StatusCode,
			Msg:        "no session cookie in response",
		}
	}

	return &State{Scheme: SchemeCookie, Value: cookie}, nil
}

func (m *Manager) cookieLogoff(ctx context.Context, state *State) error {
	resp, err := m.transport.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   logoffPath,
		Header: http.Header{"Cookie": {state.Value}},
	})
	if err != nil {
		return err
	}
	return transport.CheckStatus(http.MethodGet, resp)
}

// cookieHeader builds a Cookie header from Set-Cookie lines. Only the
// name=value part before the first ';' is kept, byte for byte; the value
// format belongs to the service and is not interpreted.
func cookieHeader(setCookies []string) string {
	var pairs []string
	for _, line := range setCookies {
		pair := line
		if i := strings.IndexByte(line, ';'); i >= 0 {
			pair = line[:i]
		}
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		pairs = append(pairs, pair)
	}
	return strings.Join(pairs, "; ")
}
