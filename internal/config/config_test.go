package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/dwclient/pkg/session"
)

func TestLoad(t *testing.T) {
	t.Setenv("DW_TEST_ORG", "Acme Corp")

	fs := afero.NewMemMapFs()
	src := `
url          = "https://example.docuware.cloud"
username     = "jdoe"
organization = env("DW_TEST_ORG")
scheme       = "cookie"
timeout      = "10s"
tls_verify   = false
page_size    = 25
`
	require.NoError(t, afero.WriteFile(fs, "/cfg/config.hcl", []byte(src), 0o600))

	cfg, err := Load(fs, "/cfg")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", cfg.Organization)
	assert.Equal(t, session.SchemeCookie, cfg.SessionScheme())
	assert.Equal(t, 25, cfg.Pages())
	assert.Equal(t, DefaultRetryMaxElapsed, cfg.RetryWindow())

	tc, err := cfg.Transport()
	require.NoError(t, err)
	assert.Equal(t, "https://example.docuware.cloud", tc.BaseURL)
	assert.Equal(t, 10*time.Second, tc.Timeout)
	require.NotNil(t, tc.TLSVerify)
	assert.False(t, *tc.TLSVerify)
	assert.Contains(t, tc.UserAgent, "dwclient/")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/cfg")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":      `url = `,
		"missing url": `username = "jdoe"`,
		"bad scheme":  `url = "https://example.docuware.cloud"` + "\n" + `scheme = "kerberos"`,
		"bad timeout": `url = "https://example.docuware.cloud"` + "\n" + `timeout = "soon"`,
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/cfg/config.hcl", []byte(src), 0o600))
			_, err := Load(fs, "/cfg")
			assert.Error(t, err)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{URL: "https://example.docuware.cloud", Timeout: "x", RetryMaxElapsed: "-1s"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "retry_max_elapsed")
}

func TestSaveAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	verify := true
	cfg := &Config{
		URL:             "https://example.docuware.cloud",
		Username:        "jdoe",
		Scheme:          "oauth2",
		TLSVerify:       &verify,
		PageSize:        10,
		RetryMaxElapsed: "30s",
	}
	require.NoError(t, Save(fs, "/home/jdoe/.config/dwclient", cfg))

	path := filepath.Join("/home/jdoe/.config/dwclient", FileName)
	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "organization")

	loaded, err := Load(fs, "/home/jdoe/.config/dwclient")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, 30*time.Second, loaded.RetryWindow())
}

func TestSave_Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.Error(t, Save(fs, "/cfg", &Config{}))
	_, err := fs.Stat("/cfg/config.hcl")
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultDir(t *testing.T) {
	t.Setenv(DirEnv, "/tmp/dw")
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dw", dir)
}
