package apps_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/crowdigit/oh-no-bot/internal/app/apps"
	"github.com/crowdigit/oh-no-bot/internal/app/cfg"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"token": "t0ken",
		"hostname": "localhost",
		"gateway_option": "/?v=10&encoding=json",
		"http_api_location": "/api/v10",
		"gateway_version": 10,
		"http_api_version": 10
	}`), 0o600))
	return path
}

func TestNewBotAppRequiresConfigPath(t *testing.T) {
	_, err := apps.NewBotApp()
	require.Error(t, err)
}

func TestNewBotApp(t *testing.T) {
	app, err := apps.NewBotApp(cfg.NewConfigPathCfg("config.json"))
	require.NoError(t, err)
	require.Equal(t, "config.json", app.ConfigPath)
}

func TestNewActionAppRequiresConfigPath(t *testing.T) {
	_, err := apps.NewActionApp()
	require.Error(t, err)
}

func TestActionAppRejectsUnknownAction(t *testing.T) {
	app, err := apps.NewActionApp(cfg.NewConfigPathCfg(writeConfig(t)))
	require.NoError(t, err)
	err = app.Run(context.Background(), []string{"self-destruct"})
	require.ErrorContains(t, err, "unknown action")
}

func TestActionAppRequiresArguments(t *testing.T) {
	app, err := apps.NewActionApp(cfg.NewConfigPathCfg(writeConfig(t)))
	require.NoError(t, err)
	require.Error(t, app.Run(context.Background(), nil))
	require.Error(t, app.Run(context.Background(), []string{"send-message", "42"}))
}
