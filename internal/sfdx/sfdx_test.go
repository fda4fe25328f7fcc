package sfdx_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/sfdx"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	const out = ` ›   Warning: @salesforce/cli update available from 2.60.0 to 2.61.8.
{
  "status": 0,
  "result": {
    "nonScratchOrgs": [{"alias": "hub", "username": "admin@hub.org", "isDevHub": true}],
    "scratchOrgs": [{"alias": "feature", "username": "test-abc@example.com", "expirationDate": "2026-10-24"}]
  },
  "warnings": []
}
`
	list, err := sfdx.Decode[sfdx.OrgList](out)
	require.NoError(t, err)
	require.Len(t, list.ScratchOrgs, 1)
	require.True(t, list.HasScratchAlias("feature"))
	require.False(t, list.HasScratchAlias("hub"))
	require.True(t, list.NonScratchOrgs[0].IsDevHub)
}

func TestDecode_Fail(t *testing.T) {
	t.Parallel()

	_, err := sfdx.Decode[sfdx.OrgOpen]("command not found")
	require.ErrorIs(t, err, sfdx.ErrNoJSON)

	_, err = sfdx.Decode[sfdx.OrgOpen](`{"status": 0, "result": `)
	require.Error(t, err)

	_, err = sfdx.Decode[sfdx.OrgOpen](`{"status": 1, "name": "NoDefaultEnvError", "message": "No default environment found."}`)
	var cmdErr *sfdx.CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, 1, cmdErr.Status)
	require.ErrorIs(t, err, model.ErrFailed)
	require.EqualError(t, err, "sf status 1: NoDefaultEnvError: No default environment found.")
}

func TestOrgDisplay(t *testing.T) {
	t.Parallel()

	d, err := sfdx.Decode[sfdx.OrgDisplay](`{"status":0,"result":{"alias":"feature","username":"u@x","sfdxAuthUrl":"force://abc"}}`)
	require.NoError(t, err)
	require.Equal(t, "feature", d.Alias)
	require.False(t, d.IsDevHub())

	d, err = sfdx.Decode[sfdx.OrgDisplay](`{"status":0,"result":{"alias":"hub","username":"admin@hub"}}`)
	require.NoError(t, err)
	require.True(t, d.IsDevHub())
}

const projectJSON = `{
    "packageDirectories": [
        {
            "path": "core",
            "default": true,
            "package": "Core",
            "versionNumber": "1.2.0.NEXT",
            "ancestorVersion": "HIGHEST",
            "dependencies": [
                {"package": "Logger", "versionNumber": "4.0.0.LATEST"},
                {"package": "Triggers"}
            ]
        },
        {
            "path": "sales",
            "package": "Sales",
            "dependencies": [
                {"package": "Core"},
                {"package": "Logger", "versionNumber": "4.0.0.LATEST"}
            ]
        }
    ],
    "namespace": "",
    "sfdcLoginUrl": "https://login.salesforce.com",
    "sourceApiVersion": "61.0",
    "packageAliases": {"Logger": "0Ho000000000001"}
}`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sfdx.ProjectFile), []byte(projectJSON), 0o644))
	return dir
}

func TestProject(t *testing.T) {
	t.Parallel()

	p, err := sfdx.LoadProject(writeProject(t))
	require.NoError(t, err)
	require.True(t, p.IsMultiPackage())
	require.Equal(t, []string{"Logger", "Triggers", "Core"}, p.Dependencies())

	dir, ok := p.Directory("Sales")
	require.True(t, ok)
	require.Equal(t, "sales", dir.Path)
	_, ok = p.Directory("Missing")
	require.False(t, ok)
}

func TestProject_AddDependency(t *testing.T) {
	t.Parallel()

	workspace := writeProject(t)
	p, err := sfdx.LoadProject(workspace)
	require.NoError(t, err)

	require.NoError(t, p.AddDependency("Sales", "Flows", "0.1.0.LATEST", "0Ho000000000002"))
	require.NoError(t, p.AddDependency("Sales", "Logger", "5.0.0.LATEST", "0Ho000000000001"))
	require.Error(t, p.AddDependency("Missing", "Flows", "0.1.0.LATEST", "0Ho"))
	require.NoError(t, p.Save())

	b, err := os.ReadFile(filepath.Join(workspace, sfdx.ProjectFile))
	require.NoError(t, err)
	require.Contains(t, string(b), "\n    \"namespace\"")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, "61.0", raw["sourceApiVersion"])
	require.Equal(t, "https://login.salesforce.com", raw["sfdcLoginUrl"])
	dirs := raw["packageDirectories"].([]any)
	require.Equal(t, "HIGHEST", dirs[0].(map[string]any)["ancestorVersion"])

	reloaded, err := sfdx.LoadProject(workspace)
	require.NoError(t, err)
	sales, _ := reloaded.Directory("Sales")
	require.Equal(t, []sfdx.Dependency{
		{Package: "Core"},
		{Package: "Logger", VersionNumber: "5.0.0.LATEST"},
		{Package: "Flows", VersionNumber: "0.1.0.LATEST"},
	}, sales.Dependencies)
	require.Equal(t, "0Ho000000000002", reloaded.PackageAliases["Flows"])
}

func TestLegacyKeys(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	keys, err := sfdx.LegacyKeys(workspace)
	require.NoError(t, err)
	require.Empty(t, keys)

	require.NoError(t, sfdx.SaveLegacyKey(workspace, "Logger", "one"))
	require.NoError(t, sfdx.SaveLegacyKey(workspace, "Triggers", ""))
	require.NoError(t, sfdx.SaveLegacyKey(workspace, "Logger", "two"))

	keys, err = sfdx.LegacyKeys(workspace)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"Logger": "two", "Triggers": ""}, keys)

	require.NoError(t, os.WriteFile(filepath.Join(workspace, sfdx.LegacyKeysFile), []byte("{"), 0o600))
	_, err = sfdx.LegacyKeys(workspace)
	require.Error(t, err)
}
