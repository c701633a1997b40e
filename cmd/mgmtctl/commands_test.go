package main

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mender-qa/mgmtctl/internal/testutil"
	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/presets"
	"github.com/mender-qa/mgmtctl/pkg/util"
	"github.com/mender-qa/mgmtctl/pkg/workflow"
)

// execute runs the root command with args against an isolated settings file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	old := settingsPath
	settingsPath = func() string { return filepath.Join(dir, "settings.json") }
	t.Cleanup(func() { settingsPath = old })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// useBackend points the configuration at b through the legacy variables.
func useBackend(t *testing.T, b *testutil.Backend) {
	t.Helper()
	clearEnv(t)
	t.Setenv("URL", b.URL())
	t.Setenv("USERNAME", b.Username)
	t.Setenv("PASSWORD", b.Password)
}

func TestCount(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddDevices(3, model.StatusPending)
	b.AddDevices(1, model.StatusAccepted)
	useBackend(t, b)

	out, err := execute(t, "count", "pending")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestCount_UnknownStatus(t *testing.T) {
	b := testutil.NewBackend(t)
	useBackend(t, b)

	_, err := execute(t, "count", "sleeping")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown device status"))
	assert.Empty(t, b.Requests())
}

func TestMissingConfigurationFailsBeforeNetwork(t *testing.T) {
	b := testutil.NewBackend(t)
	clearEnv(t)
	t.Setenv("URL", b.URL())

	_, err := execute(t, "accept")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "password")
	assert.Empty(t, b.Requests())
}

func TestLoginFailureFailsFast(t *testing.T) {
	b := testutil.NewBackend(t)
	useBackend(t, b)
	t.Setenv("PASSWORD", "wrong")

	_, err := execute(t, "accept")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authenticating")
	assert.Equal(t, 1, b.Logins())
	assert.Empty(t, b.RequestsTo(http.MethodGet, "/api/management/v2/devauth/devices"))
}

func TestAccept(t *testing.T) {
	b := testutil.NewBackend(t)
	ids := b.AddDevices(5, model.StatusPending)
	useBackend(t, b)

	out, err := execute(t, "accept")
	require.NoError(t, err)
	assert.Contains(t, out, "Accepted 5 devices")
	for _, id := range ids {
		d, ok := b.Device(id)
		require.True(t, ok)
		assert.Equal(t, model.StatusAccepted, d.Status)
	}
}

func TestGroupCreate_FromEnvironment(t *testing.T) {
	b := testutil.NewBackend(t)
	ids := b.AddDevices(4, model.StatusAccepted)
	useBackend(t, b)
	t.Setenv("DEVICES_QTY", "3")
	t.Setenv("GROUP_NAME", "wave1")

	out, err := execute(t, "group", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "Group wave1 created with 3 devices")

	grouped := 0
	for _, id := range ids {
		if b.Group(id) == "wave1" {
			grouped++
		}
	}
	assert.Equal(t, 3, grouped)
}

func TestDeployGroup(t *testing.T) {
	b := testutil.NewBackend(t)
	for _, id := range b.AddDevices(2, model.StatusAccepted) {
		b.SetGroup(id, "wave2")
	}
	useBackend(t, b)
	t.Setenv("DEPLOYMENT_NAME", "rollout")
	t.Setenv("ARTIFACT_NAME", "release-2")

	out, err := execute(t, "deploy", "group", "wave2")
	require.NoError(t, err)
	assert.Contains(t, out, "Deployment rollout (release-2) created")

	deployments := b.Deployments()
	require.Len(t, deployments, 1)
	assert.Equal(t, []string{"wave2"}, deployments[0].Groups)
	assert.Equal(t, "release-2", deployments[0].ArtifactName)
}

func TestDeploymentList(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddDeployment("nightly", "release-3", model.DeploymentInProgress)
	useBackend(t, b)

	out, err := execute(t, "deployment", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "NAME", "STATUS", "INITIAL", "DEVICE_CNT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{id, "nightly", "inprogress", "0", "0"}, strings.Fields(lines[2]))
}

func TestFilterPresets(t *testing.T) {
	b := testutil.NewBackend(t)
	useBackend(t, b)

	out, err := execute(t, "filter", "presets")
	require.NoError(t, err)
	want, err := presets.Default()
	require.NoError(t, err)
	assert.Len(t, b.Filters(), len(want))
	assert.Contains(t, out, "Created filters")
}

func TestSettingsCommands(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	old := settingsPath
	settingsPath = func() string { return filepath.Join(dir, "settings.json") }
	t.Cleanup(func() { settingsPath = old })

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.ExecuteContext(context.Background()))
		return out.String()
	}

	run("settings", "set", "concurrency", "12")
	assert.Equal(t, "12\n", run("settings", "get", "concurrency"))
	assert.Equal(t, "(not set)\n", run("settings", "get", "server_url"))
	assert.Contains(t, run("settings", "show"), "concurrency")
	run("settings", "clear")
	assert.Equal(t, "(not set)\n", run("settings", "get", "concurrency"))
}

func TestParseTerm(t *testing.T) {
	tests := []struct {
		raw     string
		want    model.FilterTerm
		wantErr bool
	}{
		{
			raw:  "identity:mac:$regex:ff:00:00:.*",
			want: model.FilterTerm{Scope: "identity", Attribute: "mac", Type: "$regex", Value: "ff:00:00:.*"},
		},
		{
			raw:  `inventory:device_group:$in:["group2","group3"]`,
			want: model.FilterTerm{Scope: "inventory", Attribute: "device_group", Type: "$in", Value: []any{"group2", "group3"}},
		},
		{
			raw:  "inventory:device_group:$eq:group10",
			want: model.FilterTerm{Scope: "inventory", Attribute: "device_group", Type: "$eq", Value: "group10"},
		},
		{raw: "inventory:device_group", wantErr: true},
		{raw: ":mac:$eq:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTerm(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, util.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := parseIdentity([]string{"mac=ff:00:00:00:00:01", "sku=qemu"})
	require.NoError(t, err)
	assert.Equal(t, model.IdentityData{"mac": "ff:00:00:00:00:01", "sku": "qemu"}, id)

	_, err = parseIdentity(nil)
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	_, err = parseIdentity([]string{"novalue"})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestMenu(t *testing.T) {
	b := testutil.NewBackend(t)
	depl := b.AddDeployment("nightly", "release-3", model.DeploymentInProgress)
	r, err := newRunner(connection{URL: b.URL(), Username: b.Username, Password: b.Password})
	require.NoError(t, err)

	input := strings.Join([]string{
		"f", "c", // create presets
		"f", "l", // list filters
		"d", "a", depl, // abort
		"d", "l", // list deployments
		"x", // invalid
		"q",
	}, "\n") + "\n"
	var out bytes.Buffer
	require.NoError(t, newMenu(r, strings.NewReader(input), &out).run(context.Background()))

	want, err := presets.Default()
	require.NoError(t, err)
	assert.Len(t, b.Filters(), len(want))
	assert.Contains(t, out.String(), want[0].Name)
	assert.Contains(t, out.String(), "Invalid option")

	deployments := b.Deployments()
	require.Len(t, deployments, 1)
	assert.Equal(t, model.DeploymentFinished, deployments[0].Status)
}

func TestMenu_CreateDeploymentToFilter(t *testing.T) {
	b := testutil.NewBackend(t)
	filterID := b.AddFilter(model.Filter{Name: "ff", Terms: []model.FilterTerm{
		{Scope: "identity", Attribute: "mac", Type: "$regex", Value: "ff:00:00:.*"},
	}})
	r, err := newRunner(connection{URL: b.URL(), Username: b.Username, Password: b.Password})
	require.NoError(t, err)

	input := "d\nc\n" + filterID + "\n\n\nq\n"
	var out bytes.Buffer
	require.NoError(t, newMenu(r, strings.NewReader(input), &out).run(context.Background()))

	deployments := b.Deployments()
	require.Len(t, deployments, 1)
	assert.Equal(t, workflow.DefaultArtifactName, deployments[0].ArtifactName)
	assert.True(t, strings.HasPrefix(deployments[0].Name, "depl_name_"))
}

func TestMenu_EndOfInput(t *testing.T) {
	b := testutil.NewBackend(t)
	r, err := newRunner(connection{URL: b.URL(), Username: b.Username, Password: b.Password})
	require.NoError(t, err)

	var out bytes.Buffer
	assert.NoError(t, newMenu(r, strings.NewReader(""), &out).run(context.Background()))
	assert.Empty(t, b.Requests())
}
