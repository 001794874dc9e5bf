package session

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Credential identifies one account on one service. It is immutable; the
// secret is only readable inside this package and never printed.
type Credential struct {
	baseURL      string
	organization string
	username     string
	secret       string
}

// NewCredential validates and builds a Credential. Organization may be empty.
func NewCredential(baseURL, organization, username, secret string) (Credential, error) {
	err := validation.Errors{
		"base_url": validation.Validate(baseURL, validation.Required, is.URL),
		"username": validation.Validate(username, validation.Required),
		"secret":   validation.Validate(secret, validation.Required),
	}.Filter()
	if err != nil {
		return Credential{}, fmt.Errorf("invalid credential: %w", err)
	}

	return Credential{
		baseURL:      baseURL,
		organization: organization,
		username:     username,
		secret:       secret,
	}, nil
}

// ResumeCredential builds a Credential without a secret. It can only adopt or
// refresh a persisted session; a full login fails without contacting the
// service.
func ResumeCredential(baseURL, organization, username string) (Credential, error) {
	err := validation.Errors{
		"base_url": validation.Validate(baseURL, validation.Required, is.URL),
		"username": validation.Validate(username, validation.Required),
	}.Filter()
	if err != nil {
		return Credential{}, fmt.Errorf("invalid credential: %w", err)
	}

	return Credential{baseURL: baseURL, organization: organization, username: username}, nil
}

func (c Credential) BaseURL() string      { return c.baseURL }
func (c Credential) Organization() string { return c.organization }
func (c Credential) Username() string     { return c.username }

// String redacts the secret.
func (c Credential) String() string {
	return fmt.Sprintf("%s@%s (org %q)", c.username, c.baseURL, c.organization)
}

// GoString redacts the secret in %#v output.
func (c Credential) GoString() string {
	return "session.Credential{" + c.String() + "}"
}
