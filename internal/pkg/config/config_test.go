package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"token": "t0ken",
		"hostname": "discord.com",
		"gateway_option": "/?v=10&encoding=json",
		"http_api_location": "/api/v10",
		"gateway_version": 10,
		"http_api_version": 10
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "discord.com", cfg.Hostname)
	require.Equal(t, "Bot t0ken", cfg.Authorization())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingToken(t *testing.T) {
	path := writeConfig(t, `{
		"hostname": "discord.com",
		"gateway_option": "/?v=10&encoding=json",
		"http_api_location": "/api/v10",
		"gateway_version": 10,
		"http_api_version": 10
	}`)
	_, err := Load(path)
	require.Error(t, err)
}
