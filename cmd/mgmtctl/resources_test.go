package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mender-qa/mgmtctl/internal/testutil"
	"github.com/mender-qa/mgmtctl/pkg/model"
)

func TestDeviceShow_IncludesInventory(t *testing.T) {
	b := testutil.NewBackend(t)
	accepted := b.AddDevices(1, model.StatusAccepted)[0]
	b.SetGroup(accepted, "group1")
	pending := b.AddDevices(1, model.StatusPending)[0]
	useBackend(t, b)

	out, err := execute(t, "device", "show", accepted)
	require.NoError(t, err)
	assert.Contains(t, out, "Inventory:")
	assert.Contains(t, out, "group1")
	assert.Len(t, b.RequestsTo(http.MethodGet, "/api/management/v1/inventory/devices/"+accepted), 1)

	out, err = execute(t, "device", "show", pending)
	require.NoError(t, err)
	assert.NotContains(t, out, "Inventory:")
}

func TestDeviceDelete_Purge(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddDevices(1, model.StatusAccepted)[0]
	useBackend(t, b)

	out, err := execute(t, "device", "delete", id, "--purge")
	require.NoError(t, err)
	assert.Contains(t, out, "decommissioned")
	_, ok := b.Device(id)
	assert.False(t, ok)
	assert.Equal(t, []string{id}, b.RemovedDevices())
}

func TestDeviceAuthSetCommands(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddDevice(model.StatusPending, 2)
	dev, _ := b.Device(id)
	useBackend(t, b)

	out, err := execute(t, "device", "authset", "status", id, dev.AuthSets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "pending\n", out)

	_, err = execute(t, "device", "authset", "delete", id, dev.AuthSets[1].ID)
	require.NoError(t, err)
	dev, _ = b.Device(id)
	assert.Len(t, dev.AuthSets, 1)

	_, err = execute(t, "device", "revoke-token", "token-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"token-7"}, b.RevokedTokens())
}

func TestGroupUnassign(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddDevices(1, model.StatusAccepted)[0]
	b.SetGroup(id, "group1")
	useBackend(t, b)

	out, err := execute(t, "group", "unassign", id, "group1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed from group group1")
	assert.Empty(t, b.Group(id))
}

func TestDeploymentReleasesAndStorage(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddArtifact("release-1")
	b.AddArtifact("release-1")
	b.SetStorageLimit(4096)
	useBackend(t, b)

	out, err := execute(t, "deployment", "releases")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"release-1", "2"}, strings.Fields(lines[2]))

	out, err = execute(t, "deployment", "storage")
	require.NoError(t, err)
	assert.Equal(t, "0 of 4096 bytes used\n", out)
}

func TestArtifactCommands(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddArtifact("release-1")
	useBackend(t, b)

	out, err := execute(t, "artifact", "update", id, "--description", "hotfix")
	require.NoError(t, err)
	assert.Contains(t, out, "updated")
	a, _ := b.Artifact(id)
	assert.Equal(t, "hotfix", a.Description)

	out, err = execute(t, "artifact", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "release-1")
	assert.Contains(t, out, "hotfix")

	out, err = execute(t, "artifact", "link", id)
	require.NoError(t, err)
	assert.Contains(t, out, "/download/"+id)
}

func TestUserShowAndUpdate(t *testing.T) {
	b := testutil.NewBackend(t)
	useBackend(t, b)

	out, err := execute(t, "user", "create", "ops@example.com", "--user-password", "long-password")
	require.NoError(t, err)
	id := strings.TrimSpace(out[strings.LastIndex(out, ":")+1:])

	_, err = execute(t, "user", "update", id, "--email", "oncall@example.com")
	require.NoError(t, err)
	u, ok := b.User(id)
	require.True(t, ok)
	assert.Equal(t, "oncall@example.com", u.Email)

	out, err = execute(t, "user", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "oncall@example.com")
}
