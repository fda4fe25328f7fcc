package service_test

import (
	"strings"
	"testing"

	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/service"
	"github.com/spf13/viper"

	"github.com/stretchr/testify/require"
)

const serveConfig = `
version: 0
serve:
  address: "127.0.0.1:9999"
  schedules:
    - workflow: pull
      cron: "*/30 * * * *"
    - workflow: push
      duration: PT1H
`

func readConfig(t *testing.T, cfg string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(cfg)))
}

func TestParseConfig(t *testing.T) {
	// can't be parallel as touches the viper package
	readConfig(t, serveConfig)
	cfg, err := service.ParseConfig("serve")
	require.NoError(t, err)
	t.Logf("got: %+v", cfg)

	require.Equal(t, "127.0.0.1:9999", cfg.Address)
	require.Equal(t, []model.Schedule{
		{Workflow: "pull", Cron: "*/30 * * * *"},
		{Workflow: "push", Duration: "PT1H"},
	}, cfg.Schedules)

	t.Run("override", func(t *testing.T) {
		viper.Set("serve.address", "0.0.0.0:8080")
		cfg, err := service.ParseConfig("serve")
		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:8080", cfg.Address)
	})
}

func TestParseConfig_Defaults(t *testing.T) {
	readConfig(t, "version: 0\n")
	cfg, err := service.ParseConfig("serve")
	require.NoError(t, err)
	require.Equal(t, model.DefaultAddress, cfg.Address)
	require.Empty(t, cfg.Schedules)
}

func TestParseConfig_Invalid(t *testing.T) {
	for _, tc := range []struct {
		scenario string
		given    string
	}{
		{"bad cron", "serve:\n  schedules:\n    - workflow: push\n      cron: \"* * *\"\n"},
		{"both", "serve:\n  schedules:\n    - workflow: push\n      cron: \"@hourly\"\n      duration: PT1H\n"},
		{"none", "serve:\n  schedules:\n    - workflow: push\n"},
		{"bad duration", "serve:\n  schedules:\n    - workflow: push\n      duration: P1M\n"},
	} {
		t.Run(tc.scenario, func(t *testing.T) {
			readConfig(t, tc.given)
			_, err := service.ParseConfig("serve")
			require.Error(t, err)
		})
	}
}
