package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCredentialsMissingFileReturnsEmptyMap(t *testing.T) {
	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.ini"))
	require.NoError(t, err)
	require.Empty(t, creds)
}

func TestLoadCredentialsParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.ini")
	require.NoError(t, os.WriteFile(path, []byte("[twitch]\nclient_id = abc\nclient_secret = def\n"), 0o644))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	require.Equal(t, PlatformCredentials{ClientID: "abc", ClientSecret: "def"}, creds["twitch"])
}
