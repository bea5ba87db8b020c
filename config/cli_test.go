package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCliDefaults(t *testing.T) {
	cli, err := ParseCli(nil)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cli.HTTPAddr)
	require.Equal(t, DefaultRefreshInterval, cli.RefreshInterval)
	require.Equal(t, DefaultMaxClipDuration, cli.MaxClipDuration)
	require.Equal(t, DefaultUploadEndpoint, cli.UploadEndpoint)
}

func TestParseCliOverridesFromFlags(t *testing.T) {
	cli, err := ParseCli([]string{"-http-addr", "127.0.0.1:9999", "-refresh-interval", "30s"})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cli.HTTPAddr)
	require.Equal(t, 30*time.Second, cli.RefreshInterval)
}

func TestParseCliOverridesFromEnv(t *testing.T) {
	t.Setenv("STREAMWATCH_API_KEY", "super-secret")
	cli, err := ParseCli(nil)
	require.NoError(t, err)
	require.Equal(t, "super-secret", cli.APIKey)
}
