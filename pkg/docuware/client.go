// Package docuware is a client for the DocuWare Platform REST API.
//
// A Client ties the packages of this module together: it logs in through a
// session.Manager, walks organizations, file cabinets and dialogs, and runs
// searches compiled by the query package, returning a results.Iterator.
package docuware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/dwclient/pkg/query"
	"github.com/hashicorp-forge/dwclient/pkg/schema"
	"github.com/hashicorp-forge/dwclient/pkg/session"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

const platformPath = "/DocuWare/Platform"

// Config configures a Client.
type Config struct {
	// Scheme is the preferred authentication scheme.
	// Default: session.SchemeAuto
	Scheme session.Scheme

	// Session configures the session manager. Its Logger defaults to the
	// client's logger.
	Session session.Options

	// Query configures the query compiler.
	Query query.Options

	// SchemaTTL evicts cached dialog schemas. Zero caches them for the
	// lifetime of the client.
	SchemaTTL time.Duration

	Logger hclog.Logger
}

// Client is safe for concurrent use. Searches running in parallel share one
// session.
type Client struct {
	session *session.Manager
	schemas *schema.Cache
	scheme  session.Scheme
	query   query.Options
	logger  hclog.Logger

	mu       sync.RWMutex
	platform *Platform
}

// Platform describes the service root.
type Platform struct {
	Version string
	Links   wire.Links
}

// New creates a client that sends through t with the given credential.
func New(t transport.Transport, cred session.Credential, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	opts := cfg.Session
	if opts.Logger == nil {
		opts.Logger = logger
	}

	return &Client{
		session: session.NewManager(t, cred, opts),
		schemas: schema.NewCache(schema.CacheConfig{TTL: cfg.SchemaTTL, Logger: logger}),
		scheme:  cfg.Scheme,
		query:   cfg.Query,
		logger:  logger.Named("client"),
	}
}

// Session returns the session manager of the client.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Login activates a session, reusing persisted when it is still valid, and
// loads the platform links. The returned state should be persisted by the
// caller.
func (c *Client) Login(ctx context.Context, persisted *session.State) (*session.State, error) {
	state, err := c.session.Login(ctx, persisted, c.scheme)
	if err != nil {
		return nil, err
	}

	if _, err := c.loadPlatform(ctx); err != nil {
		return state, err
	}
	return state, nil
}

// Logoff ends the session.
func (c *Client) Logoff(ctx context.Context) error {
	c.mu.Lock()
	c.platform = nil
	c.mu.Unlock()

	return c.session.Logoff(ctx)
}

// Platform returns the service root, fetching it on first use.
func (c *Client) Platform(ctx context.Context) (*Platform, error) {
	c.mu.RLock()
	p := c.platform
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}
	return c.loadPlatform(ctx)
}

func (c *Client) loadPlatform(ctx context.Context) (*Platform, error) {
	var p Platform
	if err := c.getJSON(ctx, platformPath, &p); err != nil {
		return nil, fmt.Errorf("failed to load platform: %w", err)
	}

	c.mu.Lock()
	c.platform = &p
	c.mu.Unlock()

	c.logger.Debug("platform loaded", "version", p.Version)
	return &p, nil
}

// Organizations lists the organizations visible to the user.
func (c *Client) Organizations(ctx context.Context) ([]*Organization, error) {
	p, err := c.Platform(ctx)
	if err != nil {
		return nil, err
	}
	href, err := link(p.Links, "organizations", "platform")
	if err != nil {
		return nil, err
	}

	var list struct {
		Organization []*Organization `mapstructure:"Organization"`
	}
	if err := c.getJSON(ctx, href, &list); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	for _, o := range list.Organization {
		o.client = c
	}
	return list.Organization, nil
}

// Organization finds an organization by id or name.
func (c *Client) Organization(ctx context.Context, key string) (*Organization, error) {
	orgs, err := c.Organizations(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		if matches(o.ID, o.Name, key) {
			return o, nil
		}
	}
	return nil, &NotFoundError{Kind: "organization", Key: key}
}

func (c *Client) getJSON(ctx context.Context, href string, out interface{}) error {
	resp, err := c.session.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   href,
		Header: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return err
	}
	return wire.Decode(resp.Body, out)
}

// matches compares key with an id exactly and with a name
// case-insensitively.
func matches(id, name, key string) bool {
	return id == key || strings.EqualFold(name, key)
}

func link(links wire.Links, rel, owner string) (string, error) {
	href, ok := links.Href(rel)
	if !ok {
		return "", fmt.Errorf("%s has no %q link", owner, rel)
	}
	return href, nil
}
