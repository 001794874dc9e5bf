package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/hashicorp-forge/dwclient/pkg/transport"
	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

const (
	identityServiceInfoPath = "/DocuWare/Platform/Home/IdentityServiceInfo"
	fallbackTokenPath       = "/DocuWare/Identity/connect/token"
)

// oauthContext routes every HTTP call made by the oauth2 and oidc packages
// through the manager's transport.
func (m *Manager) oauthContext(ctx context.Context) context.Context {
	client := transport.Client(m.transport)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	return oidc.ClientContext(ctx, client)
}

func (m *Manager) oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: m.opts.ClientID,
		Scopes:   m.opts.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (m *Manager) oauth2Login(ctx context.Context) (*State, error) {
	ctx = m.oauthContext(ctx)

	tokenURL, err := m.discoverTokenURL(ctx)
	if err != nil {
		return nil, &AuthenticationError{Scheme: SchemeOAuth2, Msg: "token endpoint discovery failed", Err: err}
	}

	tok, err := m.oauthConfig(tokenURL).PasswordCredentialsToken(ctx, m.cred.username, m.cred.secret)
	if err != nil {
		authErr := &AuthenticationError{Scheme: SchemeOAuth2, Msg: "token request failed", Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			authErr.StatusCode = re.Response.StatusCode
		}
		return nil, authErr
	}
	if tok.AccessToken == "" {
		return nil, &AuthenticationError{Scheme: SchemeOAuth2, Msg: "empty access token"}
	}

	return stateFromToken(tok, tokenURL, ""), nil
}

// refreshToken exchanges the refresh token of state for a new access token.
func (m *Manager) refreshToken(ctx context.Context, state *State) (*State, error) {
	if state.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token")
	}

	ctx = m.oauthContext(ctx)

	tokenURL := state.TokenURL
	if tokenURL == "" {
		var err error
		if tokenURL, err = m.discoverTokenURL(ctx); err != nil {
			return nil, err
		}
	}

	src := m.oauthConfig(tokenURL).TokenSource(ctx, &oauth2.Token{RefreshToken: state.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}

	return stateFromToken(tok, tokenURL, state.RefreshToken), nil
}

// discoverTokenURL asks the platform for its identity service and reads the
// token endpoint from the service's OpenID configuration.
func (m *Manager) discoverTokenURL(ctx context.Context) (string, error) {
	resp, err := m.transport.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   identityServiceInfoPath,
	})
	if err != nil {
		return "", err
	}
	if err := transport.CheckStatus(http.MethodGet, resp); err != nil {
		return "", err
	}

	var info struct {
		IdentityServiceURL string `mapstructure:"IdentityServiceUrl"`
	}
	if err := wire.Decode(resp.Body, &info); err != nil {
		return "", err
	}

	issuer := strings.TrimRight(info.IdentityServiceURL, "/")
	if issuer == "" {
		return m.fallbackTokenURL()
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("openid discovery for %s: %w", issuer, err)
	}

	if tokenURL := provider.Endpoint().TokenURL; tokenURL != "" {
		return tokenURL, nil
	}
	return m.fallbackTokenURL()
}

func (m *Manager) fallbackTokenURL() (string, error) {
	base, err := url.Parse(m.cred.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	return transport.ResolveURL(base, fallbackTokenPath, nil)
}

// stateFromToken converts a token response. When the response carries no
// expires_in, the exp claim of a JWT access token is used instead.
func stateFromToken(tok *oauth2.Token, tokenURL, previousRefresh string) *State {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = jwtExpiry(tok.AccessToken)
	}
	if !expiry.IsZero() {
		expiry = time.UnixMilli(expiry.UnixMilli())
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	return &State{
		Scheme:       SchemeOAuth2,
		Value:        tok.AccessToken,
		Expiry:       expiry,
		RefreshToken: refresh,
		TokenURL:     tokenURL,
	}
}

// jwtExpiry reads the exp claim without verifying the signature; the value
// only schedules a refresh and is never trusted for authorization.
func jwtExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
