package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scheme selects the authentication scheme.
type Scheme int

const (
	// SchemeAuto reuses the scheme of a persisted state, or OAuth2.
	SchemeAuto Scheme = iota
	SchemeCookie
	SchemeOAuth2
)

func (s Scheme) String() string {
	switch s {
	case SchemeCookie:
		return "cookie"
	case SchemeOAuth2:
		return "oauth2"
	default:
		return "auto"
	}
}

// ParseScheme parses "auto", "cookie" or "oauth2".
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SchemeAuto, nil
	case "cookie":
		return SchemeCookie, nil
	case "oauth2":
		return SchemeOAuth2, nil
	}
	return SchemeAuto, fmt.Errorf("unknown authentication scheme %q", s)
}

// Status is the state of a Manager.
type Status int

const (
	StatusLoggedOut Status = iota
	StatusAuthenticating
	StatusActive
	StatusExpiring
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticating:
		return "authenticating"
	case StatusActive:
		return "active"
	case StatusExpiring:
		return "expiring"
	default:
		return "logged-out"
	}
}

// State is the persistable session material.
//
// For SchemeCookie, Value is the Cookie header exactly as the service set it
// and Expiry is always zero. For SchemeOAuth2, Value is the access token.
type State struct {
	Scheme       Scheme
	Value        string
	Expiry       time.Time
	RefreshToken string
	TokenURL     string
}

// Expired reports whether the state must not be used at now. States without
// an expiry never expire client-side.
func (s *State) Expired(now time.Time, leeway time.Duration) bool {
	if s.Expiry.IsZero() {
		return false
	}
	return !now.Before(s.Expiry.Add(-leeway))
}

type stateBlob struct {
	Scheme       string `json:"scheme"`
	Value        []byte `json:"value"`
	Expiry       int64  `json:"expiry,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
}

// Marshal encodes the state as an opaque blob. The value is kept as raw
// bytes and the expiry as Unix milliseconds so both round-trip exactly.
func (s *State) Marshal() ([]byte, error) {
	if s.Scheme != SchemeCookie && s.Scheme != SchemeOAuth2 {
		return nil, fmt.Errorf("cannot persist state with scheme %q", s.Scheme)
	}

	blob := stateBlob{
		Scheme:       s.Scheme.String(),
		Value:        []byte(s.Value),
		RefreshToken: s.RefreshToken,
		TokenURL:     s.TokenURL,
	}
	if !s.Expiry.IsZero() {
		blob.Expiry = s.Expiry.UnixMilli()
	}

	return json.Marshal(blob)
}

// UnmarshalState decodes a blob produced by Marshal.
func UnmarshalState(data []byte) (*State, error) {
	var blob stateBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("invalid session state: %w", err)
	}

	scheme, err := ParseScheme(blob.Scheme)
	if err != nil {
		return nil, fmt.Errorf("invalid session state: %w", err)
	}
	if scheme == SchemeAuto {
		return nil, fmt.Errorf("invalid session state: missing scheme")
	}
	if len(blob.Value) == 0 {
		return nil, fmt.Errorf("invalid session state: empty value")
	}

	s := &State{
		Scheme:       scheme,
		Value:        string(blob.Value),
		RefreshToken: blob.RefreshToken,
		TokenURL:     blob.TokenURL,
	}
	if blob.Expiry != 0 {
		s.Expiry = time.UnixMilli(blob.Expiry)
	}
	return s, nil
}
