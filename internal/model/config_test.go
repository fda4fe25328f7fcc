package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dxmate/dxmate/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
workspace: /src/project
scratch:
  duration_days: 7
  default_permission_sets:
    - Admin
    - Sales
dummy_data:
  location: data
  sfdmu: true
dependency:
  keys:
    Core: s3cr3t
jobs:
  policy: abort
serve:
  schedules:
    - workflow: pull
      cron: "*/15 * * * *"
    - workflow: permsets
      duration: PT1H
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "/src/project", cfg.Workspace)
	require.Equal(t, 7, cfg.Scratch.DurationDays)
	require.Equal(t, "config/project-scratch-def.json", cfg.Scratch.Definition)
	require.Equal(t, []string{"Admin", "Sales"}, cfg.Scratch.DefaultPermissionSets)
	require.Equal(t, "data", cfg.DummyData.Location)
	require.True(t, cfg.DummyData.SFDMU)
	require.Equal(t, map[string]string{"Core": "s3cr3t"}, cfg.Dependency.Keys)
	require.True(t, cfg.AbortOnError())
	require.True(t, cfg.Jobs.Retry)
	require.Equal(t, model.DefaultAddress, cfg.Serve.Address)
	require.Len(t, cfg.Serve.Schedules, 2)
	require.Equal(t, "*/15 * * * *", cfg.Serve.Schedules[0].Cron)
	require.Equal(t, "PT1H", cfg.Serve.Schedules[1].Duration)
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	require.Equal(t, 0, cfg.Version)
	require.False(t, cfg.Verbose)
	require.Equal(t, 5, cfg.Scratch.DurationDays)
	require.Empty(t, cfg.Scratch.DefaultPermissionSets)
	require.Equal(t, model.PolicyContinue, cfg.Jobs.Policy)
	require.False(t, cfg.AbortOnError())
	require.True(t, cfg.Jobs.Retry)
	require.NotNil(t, cfg.Dependency.Keys)
	require.Empty(t, cfg.Serve.Schedules)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		yml      string
		path     string
	}{
		{"bad policy", "version: 0\njobs:\n  policy: sometimes\n", "jobs.policy"},
		{"duration too long", "version: 0\nscratch:\n  duration_days: 90\n", "scratch.duration_days"},
		{"unknown workflow", "version: 0\nserve:\n  schedules:\n    - workflow: deploy-prod\n      cron: \"@daily\"\n", "workflow"},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.yml))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
			require.Contains(t, details[0].Path, tc.path)
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, model.Schedule{Workflow: "pull", Cron: "@hourly"}.Validate())
	require.NoError(t, model.Schedule{Workflow: "pull", Duration: "PT10M"}.Validate())
	require.ErrorIs(t, model.Schedule{Workflow: "pull"}.Validate(), model.ErrScheduleEmpty)
	require.ErrorIs(t, model.Schedule{Workflow: "pull", Cron: "@hourly", Duration: "PT1M"}.Validate(), model.ErrScheduleBoth)
	require.ErrorIs(t, model.Schedule{Workflow: "pull", Duration: "P2M"}.Validate(), model.ErrISOFormat)
}

func TestParseISODuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		given string
		then  time.Duration
		err   error
	}{
		{"P1D", 24 * time.Hour, nil},
		{"PT30M", 30 * time.Minute, nil},
		{"PT1H30M", 90 * time.Minute, nil},
		{"P1DT2H", 26 * time.Hour, nil},
		{"PT1.5S", 1500 * time.Millisecond, nil},
		{"PT0,25S", 250 * time.Millisecond, nil},
		{"P2M", 0, model.ErrISOFormat},
		{"P2DT", 0, model.ErrISOFormat},
		{"PT", 0, model.ErrISOFormat},
		{"", 0, model.ErrISOFormat},
		{"1H", 0, model.ErrISOFormat},
	}
	for _, tc := range cases {
		t.Run(tc.given, func(t *testing.T) {
			d, err := model.ParseISODuration(tc.given)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.then, d)
		})
	}
}
