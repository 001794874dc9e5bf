package sessionstore

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/dwclient/pkg/session"
)

func TestStore_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/cfg", nil)

	state, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	want := session.State{
		Scheme:       session.SchemeOAuth2,
		Value:        "eyJhbGciOi.x+y/z==",
		Expiry:       time.UnixMilli(1700000000123),
		RefreshToken: "refresh",
		TokenURL:     "https://dms.example.com/DocuWare/Identity/connect/token",
	}
	require.NoError(t, s.Save(want))

	info, err := fs.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = fs.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Value, got.Value)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Expiry))

	require.NoError(t, s.Remove())
	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Remove())
}

func TestStore_CorruptFileIsIgnored(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/"+FileName, []byte("{not json"), 0o600))

	got, err := New(fs, "/cfg", nil).Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveRejectsUnpersistableState(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/cfg", nil)
	assert.Error(t, s.Save(session.State{Scheme: session.SchemeAuto, Value: "x"}))
}
