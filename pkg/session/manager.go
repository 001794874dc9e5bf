package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

const (
	DefaultClientID     = "docuware.platform.net.client"
	DefaultScope        = "docuware.platform"
	DefaultExpiryLeeway = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	// ClientID and Scopes are sent with the OAuth2 password grant.
	ClientID string
	Scopes   []string

	// ExpiryLeeway treats tokens this close to expiry as expired.
	// Default: 30 seconds
	ExpiryLeeway time.Duration

	// OnStateChange is called after every successful login or refresh with
	// the state the caller should persist. It runs while the handshake lock
	// is held and must not call back into the Manager.
	OnStateChange func(State)

	// Now overrides the clock (tests).
	Now func() time.Time

	Logger hclog.Logger
}

// Manager owns the session for one credential. It is safe for concurrent
// use; login and refresh handshakes are serialized so the service never sees
// two of them in parallel for the same account.
type Manager struct {
	transport transport.Transport
	cred      Credential
	opts      Options
	logger    hclog.Logger

	// handshake serializes login, refresh and logoff.
	handshake sync.Mutex

	mu     sync.RWMutex
	status Status
	state  *State
	// generation changes whenever state is replaced or dropped.
	generation uint64
}

// NewManager creates a logged-out Manager.
func NewManager(t transport.Transport, cred Credential, opts Options) *Manager {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{DefaultScope}
	}
	if opts.ExpiryLeeway == 0 {
		opts.ExpiryLeeway = DefaultExpiryLeeway
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	return &Manager{
		transport: t,
		cred:      cred,
		opts:      opts,
		logger:    opts.Logger.Named("session"),
	}
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// State returns a copy of the active state, if any.
func (m *Manager) State() (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return State{}, false
	}
	return *m.state, true
}

// Login activates a session. An unexpired persisted state is adopted without
// contacting the service; otherwise the scheme's handshake runs. The returned
// state is what the caller should persist.
func (m *Manager) Login(ctx context.Context, persisted *State, scheme Scheme) (*State, error) {
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()

	m.handshake.Lock()
	defer m.handshake.Unlock()

	// A login that completed while this caller waited is reused; the service
	// must not see a second handshake right after the first.
	m.mu.RLock()
	if m.generation != gen && m.status == StatusActive && m.state != nil &&
		(scheme == SchemeAuto || scheme == m.state.Scheme) {
		out := *m.state
		m.mu.RUnlock()
		m.logger.Debug("reusing session established by a concurrent login", "scheme", out.Scheme)
		return &out, nil
	}
	m.mu.RUnlock()

	now := m.opts.Now()

	if persisted != nil && persisted.Value != "" &&
		(scheme == SchemeAuto || scheme == persisted.Scheme) {
		if !persisted.Expired(now, m.opts.ExpiryLeeway) {
			restored := *persisted
			m.activate(&restored)
			m.logger.Debug("restored persisted session", "scheme", restored.Scheme)
			out := restored
			return &out, nil
		}

		if persisted.Scheme == SchemeOAuth2 && persisted.RefreshToken != "" {
			m.setStatus(StatusExpiring)
			refreshed, err := m.refreshToken(ctx, persisted)
			if err == nil {
				m.activate(refreshed)
				m.notify(refreshed)
				m.logger.Debug("refreshed persisted session")
				out := *refreshed
				return &out, nil
			}
			m.logger.Debug("refresh of persisted session failed, logging in", "error", err)
		}
	}

	if scheme == SchemeAuto {
		scheme = SchemeOAuth2
		if persisted != nil && persisted.Scheme != SchemeAuto {
			scheme = persisted.Scheme
		}
	}

	if m.cred.secret == "" {
		m.drop()
		return nil, &AuthenticationError{Scheme: scheme, Msg: "no secret available, full login required"}
	}

	m.setStatus(StatusAuthenticating)
	m.logger.Info("logging in", "scheme", scheme, "user", m.cred.Username())

	var (
		state *State
		err   error
	)
	switch scheme {
	case SchemeCookie:
		state, err = m.cookieLogin(ctx)
	default:
		state, err = m.oauth2Login(ctx)
	}
	if err != nil {
		m.drop()
		m.logger.Warn("login failed", "scheme", scheme, "error", err)
		return nil, err
	}

	m.activate(state)
	m.notify(state)
	m.logger.Info("login succeeded", "scheme", scheme)

	out := *state
	return &out, nil
}

// Authorize attaches the session to req. An expired OAuth2 token is refreshed
// first. A logged-out manager fails fast with *SessionExpiredError.
func (m *Manager) Authorize(ctx context.Context, req *transport.Request) error {
	state, err := m.current(ctx)
	if err != nil {
		return err
	}

	if req.Header == nil {
		req.Header = http.Header{}
	}
	switch state.Scheme {
	case SchemeCookie:
		req.Header.Set("Cookie", state.Value)
	case SchemeOAuth2:
		req.Header.Set("Authorization", "Bearer "+state.Value)
	}
	return nil
}

// HandleResponse invalidates the session when the service answers 401. The
// service is authoritative, so local expiry bookkeeping is ignored.
func (m *Manager) HandleResponse(resp *transport.Response) {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return
	}

	m.mu.Lock()
	wasActive := m.state != nil
	m.status = StatusLoggedOut
	m.state = nil
	m.generation++
	m.mu.Unlock()

	if wasActive {
		m.logger.Warn("session rejected by service, login required", "url", resp.URL)
	}
}

// Send authorizes req, sends it and checks the response. Non-2xx responses
// become errors; a 401 becomes *SessionExpiredError.
func (m *Manager) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := m.Authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := m.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	m.HandleResponse(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &SessionExpiredError{Reason: "rejected by service"}
	}

	if err := transport.CheckStatus(req.Method, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Logoff ends the session. The cookie scheme notifies the service; the local
// state is dropped in every case.
func (m *Manager) Logoff(ctx context.Context) error {
	m.handshake.Lock()
	defer m.handshake.Unlock()

	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	var err error
	if state != nil && state.Scheme == SchemeCookie {
		err = m.cookieLogoff(ctx, state)
	}

	m.drop()
	m.logger.Debug("logged off")
	return err
}

// current returns a usable state, waiting out a running handshake and
// refreshing an expired token.
func (m *Manager) current(ctx context.Context) (*State, error) {
	m.mu.RLock()
	status, state, gen := m.status, m.state, m.generation
	m.mu.RUnlock()

	if status == StatusAuthenticating || status == StatusExpiring {
		m.handshake.Lock()
		m.handshake.Unlock()

		m.mu.RLock()
		status, state, gen = m.status, m.state, m.generation
		m.mu.RUnlock()
	}

	if status == StatusLoggedOut || state == nil {
		return nil, &SessionExpiredError{Reason: "not logged in"}
	}

	if state.Scheme == SchemeOAuth2 && state.Expired(m.opts.Now(), m.opts.ExpiryLeeway) {
		return m.refresh(ctx, gen)
	}
	return state, nil
}

// refresh renews the token seen at generation gen. If another caller already
// replaced or dropped that state, its outcome is used instead.
func (m *Manager) refresh(ctx context.Context, gen uint64) (*State, error) {
	m.handshake.Lock()
	defer m.handshake.Unlock()

	m.mu.Lock()
	if m.generation != gen {
		state := m.state
		m.mu.Unlock()
		if state == nil {
			return nil, &SessionExpiredError{Reason: "not logged in"}
		}
		return state, nil
	}
	state := m.state
	m.status = StatusExpiring
	m.mu.Unlock()

	m.logger.Debug("access token expired, refreshing")

	refreshed, err := m.refreshToken(ctx, state)
	if err != nil {
		m.drop()
		m.logger.Warn("token refresh failed, login required", "error", err)
		return nil, &SessionExpiredError{Reason: "token refresh failed", Err: err}
	}

	m.activate(refreshed)
	m.notify(refreshed)
	return refreshed, nil
}

func (m *Manager) activate(state *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusActive
	m.state = state
	m.generation++
}

func (m *Manager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusLoggedOut
	m.state = nil
	m.generation++
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

func (m *Manager) notify(state *State) {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(*state)
	}
}
