package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutBackendURLFails(t *testing.T) {
	cfg, err := Load("", nil)
	require.Error(t, err, "backend-url is required and has no default")
	_ = cfg
}

func TestLoadWithRequiredFlagsSucceeds(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Set("backend-url", "http://backend.internal:9000"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.ListenHost)
	assert.Equal(t, 6667, cfg.ListenPort)
	assert.Equal(t, "monk-irc", cfg.ServerName)
	assert.Equal(t, "http://backend.internal:9000", cfg.BackendURL)
	assert.Equal(t, 30, cfg.MaxNickLength)
}

func TestLoadInvalidBackendURLFailsValidation(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Set("backend-url", "not-a-url"))

	_, err := Load("", fs)
	assert.Error(t, err)
}

func TestLoadFlagOverridesDefault(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Set("backend-url", "http://backend.internal:9000"))
	require.NoError(t, fs.Set("server-name", "custom.irc"))
	require.NoError(t, fs.Set("listen-port", "7000"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "custom.irc", cfg.ServerName)
	assert.Equal(t, 7000, cfg.ListenPort)
}

func TestLoadEnvVarOverride(t *testing.T) {
	t.Setenv("MONKIRC_BACKEND_URL", "http://env-backend.internal:9000")
	t.Setenv("MONKIRC_SERVER_NAME", "env.irc")
	defer os.Unsetenv("MONKIRC_BACKEND_URL")
	defer os.Unsetenv("MONKIRC_SERVER_NAME")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env-backend.internal:9000", cfg.BackendURL)
	assert.Equal(t, "env.irc", cfg.ServerName)
}

func TestLoadInvalidListenPortFailsValidation(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Set("backend-url", "http://backend.internal:9000"))
	require.NoError(t, fs.Set("listen-port", "70000"))

	_, err := Load("", fs)
	assert.Error(t, err)
}
