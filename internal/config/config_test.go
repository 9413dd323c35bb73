package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{"address":"10.0.0.8","token":"a1b2","key":"deadbeef"}`)

	cfg := Load(path, "info")

	assert.Equal(t, "10.0.0.8", cfg.Address)
	assert.Equal(t, 5, cfg.PollIntervalSeconds)
	assert.Equal(t, 1000, cfg.SettleDelayMS)
	assert.Equal(t, 5, cfg.RequestTimeoutSeconds)
	assert.Equal(t, "F", cfg.Unit)
	assert.Equal(t, 8530, cfg.ListenPort)
	assert.Equal(t, 3, cfg.FailureAlertThreshold)
	assert.Equal(t, "senville", cfg.MQTTTopicPrefix)
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	path := writeConfig(t, `{"address":"10.0.0.8","token":"filetoken","key":"filekey"}`)

	t.Setenv("SENVILLE_IP", "192.168.1.50")
	t.Setenv("SENVILLE_TOKEN", "envtoken")
	t.Setenv("SENVILLE_KEY", "envkey")

	cfg := Load(path, "debug")

	assert.Equal(t, "192.168.1.50", cfg.Address)
	assert.Equal(t, "envtoken", cfg.Token)
	assert.Equal(t, "envkey", cfg.Key)
}

func TestLoad_MissingCredentialsPanics(t *testing.T) {
	path := writeConfig(t, `{"address":"10.0.0.8"}`)

	t.Setenv("SENVILLE_IP", "")
	t.Setenv("SENVILLE_TOKEN", "")
	t.Setenv("SENVILLE_KEY", "")

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic for missing credentials")
		assert.Contains(t, r.(string), "token")
		assert.Contains(t, r.(string), "key")
	}()

	Load(path, "info")
}

func TestLoad_InvalidUnitPanics(t *testing.T) {
	path := writeConfig(t, `{"address":"a","token":"t","key":"k","unit":"K"}`)

	defer func() {
		require.NotNil(t, recover(), "expected panic for invalid unit")
	}()

	Load(path, "info")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", ParseLogLevel("debug").String())
	assert.Equal(t, "warn", ParseLogLevel("warn").String())
	assert.Equal(t, "error", ParseLogLevel("error").String())
	assert.Equal(t, "info", ParseLogLevel("anything-else").String())
}
