package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mender-qa/mgmtctl/internal/testutil"
	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/util"
)

func macFilter(name string) model.Filter {
	return model.Filter{
		Name: name,
		Terms: []model.FilterTerm{{
			Attribute: "mac",
			Scope:     model.ScopeIdentity,
			Type:      model.OpRegex,
			Value:     "^ff",
		}},
	}
}

func TestDeployments_CreateSendsExactBody(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)

	id, err := c.Deployments.Create(context.Background(), "rollout", "test-update-1.0.0", []string{"a", "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	reqs := b.RequestsTo(http.MethodPost, deployV1Path)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"artifact_name":"test-update-1.0.0","name":"rollout","devices":["a","b"]}`, string(reqs[0].Body))
	assert.Equal(t, []string{"a", "b"}, b.DeploymentDevices(id))
}

func TestDeployments_CreateValidates(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)

	_, err := c.Deployments.Create(context.Background(), "", "", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment name is required")

	_, err = c.Deployments.Create(context.Background(), "n", "a", nil)
	require.Error(t, err)
	assert.Empty(t, b.Requests())
}

func TestDeployments_GroupAndFilterTargets(t *testing.T) {
	b := testutil.NewBackend(t)
	ids := b.AddDevices(3, model.StatusAccepted)
	for _, id := range ids {
		b.SetGroup(id, "group1")
	}
	filterID := b.AddFilter(macFilter("mac_ff"))
	c, _ := newClient(t, b)
	ctx := context.Background()

	groupDep, err := c.Deployments.CreateForGroup(ctx, "to-group", "art", "group1")
	require.NoError(t, err)
	d, err := c.Deployments.Get(ctx, groupDep)
	require.NoError(t, err)
	assert.Equal(t, []string{"group1"}, d.Groups)
	assert.Equal(t, 3, d.DeviceCount)

	filterDep, err := c.Deployments.CreateForFilter(ctx, "to-filter", "art", filterID)
	require.NoError(t, err)
	reqs := b.RequestsTo(http.MethodPost, deployV2Path)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"name":"to-filter","artifact_name":"art","filter_id":"`+filterID+`"}`, string(reqs[0].Body))

	d, err = c.Deployments.Get(ctx, filterDep)
	require.NoError(t, err)
	require.NotNil(t, d.Filter)
	assert.Equal(t, "mac_ff", d.Filter.Name)
}

func TestDeployments_AbortAndStatistics(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)
	ctx := context.Background()

	id, err := c.Deployments.Create(ctx, "rollout", "art", []string{"a", "b", "c"})
	require.NoError(t, err)

	stats, err := c.Deployments.Statistics(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, stats["pending"])
	assert.Equal(t, 3, stats.Total())

	require.NoError(t, c.Deployments.Abort(ctx, id))
	reqs := b.RequestsTo(http.MethodPut, deployV1Path+"/"+id+"/status")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"status":"aborted"}`, string(reqs[0].Body))

	finished, err := c.Deployments.List(ctx, api.DeploymentListOptions{Status: model.DeploymentFinished})
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, id, finished[0].ID)

	err = c.Deployments.Abort(ctx, id)
	require.Error(t, err)
	kind, _ := api.KindOf(err)
	assert.Equal(t, api.KindClient, kind)
}

func TestDeployments_GetMissing(t *testing.T) {
	b := testutil.NewBackend(t)
	c, hook := newClient(t, b)

	_, err := c.Deployments.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Len(t, testutil.Warnings(hook), 1)
}

func TestDeployments_UploadArtifact(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)
	ctx := context.Background()

	id, err := c.Deployments.UploadArtifact(ctx, "update.mender", "nightly", strings.NewReader("artifact-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	artifacts, err := c.Deployments.Artifacts(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, id, artifacts[0].ID)
	assert.Equal(t, "nightly", artifacts[0].Description)
	assert.EqualValues(t, len("artifact-bytes"), artifacts[0].Size)
}

func TestFilters_CreateListDelete(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)
	ctx := context.Background()

	id, err := c.Filters.Create(ctx, macFilter("mac_ff"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var sent model.Filter
	reqs := b.RequestsTo(http.MethodPost, filtersPath)
	require.Len(t, reqs, 1)
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Empty(t, sent.ID)
	assert.Equal(t, "^ff", sent.Terms[0].Value)

	filters, err := c.Filters.List(ctx)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, id, filters[0].ID)
	listReqs := b.RequestsTo(http.MethodGet, filtersPath)
	require.Len(t, listReqs, 1)
	assert.Equal(t, "per_page=100", listReqs[0].Query)

	f, err := c.Filters.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "mac_ff", f.Name)

	require.NoError(t, c.Filters.Delete(ctx, id))
	assert.Empty(t, b.Filters())

	err = c.Filters.Delete(ctx, id)
	assert.True(t, api.IsNotFound(err))
}

func TestFilters_CreateDuplicateConflicts(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddFilter(macFilter("mac_ff"))
	c, hook := newClient(t, b)

	_, err := c.Filters.Create(context.Background(), macFilter("mac_ff"))
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Len(t, testutil.Warnings(hook), 1)
}

func TestFilters_CreateRejectsInvalidFilter(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)

	_, err := c.Filters.Create(context.Background(), model.Filter{Name: "empty"})
	require.Error(t, err)
	assert.Empty(t, b.Requests())
}

func TestInventory_GroupAssignment(t *testing.T) {
	b := testutil.NewBackend(t)
	ids := b.AddDevices(4, model.StatusAccepted)
	b.SetGroup(ids[0], "existing")
	c, _ := newClient(t, b)
	ctx := context.Background()

	ungrouped, err := c.Inventory.AllDevices(ctx, api.InventoryListOptions{HasGroup: api.Bool(false)})
	require.NoError(t, err)
	assert.Len(t, ungrouped, 3)

	require.NoError(t, c.Inventory.AssignGroup(ctx, ids[1], "group1"))
	reqs := b.RequestsTo(http.MethodPut, inventoryV1+"/"+ids[1]+"/group")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"group":"group1"}`, string(reqs[0].Body))
	assert.Equal(t, "group1", b.Group(ids[1]))

	groups, err := c.Inventory.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"existing", "group1"}, groups)

	g, err := c.Inventory.GroupDevices(ctx, "group1")
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, g.Members)

	grouped, err := c.Inventory.AllDevices(ctx, api.InventoryListOptions{HasGroup: api.Bool(true)})
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	attr, ok := grouped[0].Attribute("group", model.ScopeSystem)
	require.True(t, ok)
	assert.Equal(t, "existing", attr.Value)
}

func TestDevAuth_PreauthorizeAcceptAndDelete(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetMaxDevices(100)
	c, _ := newClient(t, b)
	ctx := context.Background()

	require.NoError(t, c.DevAuth.Preauthorize(ctx, model.IdentityData{"mac": "aa:bb"}, "PUBKEY"))
	n, err := c.DevAuth.Count(ctx, model.StatusPreauthorized)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	id := b.AddDevice(model.StatusPending, 1)
	dev, err := c.DevAuth.GetDevice(ctx, id)
	require.NoError(t, err)
	set, ok := dev.SingleAuthSet()
	require.True(t, ok)

	require.NoError(t, c.DevAuth.SetAuthSetStatus(ctx, id, set.ID, model.StatusAccepted))
	updated, ok := b.Device(id)
	require.True(t, ok)
	assert.Equal(t, model.StatusAccepted, updated.Status)

	limit, err := c.DevAuth.MaxDevicesLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, limit)

	require.NoError(t, c.DevAuth.DeleteDevice(ctx, id))
	_, err = c.DevAuth.GetDevice(ctx, id)
	assert.True(t, api.IsNotFound(err))
}

func TestUsers_SettingsAndCreate(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)
	ctx := context.Background()

	require.NoError(t, c.Users.SaveSettings(ctx, model.UserSettings{"columns": "mac"}))
	settings, err := c.Users.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mac", settings["columns"])

	id, err := c.Users.Create(ctx, "ops@example.com", "long-password")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	users, err := c.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ops@example.com", users[1].Email)

	_, err = c.Users.Create(ctx, "", "")
	require.Error(t, err)
}

func TestInventory_DeviceRecordAndGroupRemoval(t *testing.T) {
	b := testutil.NewBackend(t)
	ids := b.AddDevices(2, model.StatusAccepted)
	b.SetGroup(ids[0], "group1")
	c, _ := newClient(t, b)
	ctx := context.Background()

	dev, err := c.Inventory.GetDevice(ctx, ids[0])
	require.NoError(t, err)
	attr, ok := dev.Attribute("group", model.ScopeSystem)
	require.True(t, ok)
	assert.Equal(t, "group1", attr.Value)

	group, err := c.Inventory.DeviceGroup(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "group1", group)
	group, err = c.Inventory.DeviceGroup(ctx, ids[1])
	require.NoError(t, err)
	assert.Empty(t, group)

	require.NoError(t, c.Inventory.UnassignGroup(ctx, ids[0], "group1"))
	assert.Len(t, b.RequestsTo(http.MethodDelete, inventoryV1+"/"+ids[0]+"/group/group1"), 1)
	assert.Empty(t, b.Group(ids[0]))
	err = c.Inventory.UnassignGroup(ctx, ids[0], "group1")
	assert.True(t, api.IsNotFound(err))

	require.NoError(t, c.Inventory.DeleteDevice(ctx, ids[1]))
	assert.Len(t, b.RequestsTo(http.MethodDelete, inventoryV1+"/"+ids[1]), 1)
	assert.False(t, b.HasInventory(ids[1]))
	_, err = c.Inventory.GetDevice(ctx, ids[1])
	assert.True(t, api.IsNotFound(err))
}

func TestDevAuth_AuthSetsAndTokens(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddDevice(model.StatusPending, 2)
	dev, ok := b.Device(id)
	require.True(t, ok)
	first, second := dev.AuthSets[0].ID, dev.AuthSets[1].ID
	c, _ := newClient(t, b)
	ctx := context.Background()

	st, err := c.DevAuth.AuthSetStatus(ctx, id, first)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, st)
	assert.Len(t, b.RequestsTo(http.MethodGet, devicesPath+"/"+id+"/auth/"+first+"/status"), 1)

	require.NoError(t, c.DevAuth.DeleteAuthSet(ctx, id, second))
	assert.Len(t, b.RequestsTo(http.MethodDelete, devicesPath+"/"+id+"/auth/"+second), 1)
	dev, _ = b.Device(id)
	require.Len(t, dev.AuthSets, 1)
	assert.Equal(t, first, dev.AuthSets[0].ID)

	_, err = c.DevAuth.AuthSetStatus(ctx, id, second)
	assert.True(t, api.IsNotFound(err))

	require.NoError(t, c.DevAuth.RevokeToken(ctx, "token-1"))
	assert.Len(t, b.RequestsTo(http.MethodDelete, "/api/management/v2/devauth/tokens/token-1"), 1)
	assert.Equal(t, []string{"token-1"}, b.RevokedTokens())

	err = c.DevAuth.RevokeToken(ctx, "")
	assert.True(t, errors.Is(err, util.ErrInvalidArgument))
}

func TestDeployments_DevicesLogAndRemoval(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)
	ctx := context.Background()

	id, err := c.Deployments.Create(ctx, "rollout", "art", []string{"dev-a", "dev-b"})
	require.NoError(t, err)
	b.SetDeviceLog(id, "dev-a", "installing\nfailed\n")

	devices, err := c.Deployments.Devices(ctx, id)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "dev-a", devices[0].ID)
	assert.Equal(t, "pending", devices[0].Status)
	assert.True(t, devices[0].Log)
	assert.False(t, devices[1].Log)

	log, err := c.Deployments.DeviceLog(ctx, id, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, "installing\nfailed\n", log)
	_, err = c.Deployments.DeviceLog(ctx, id, "dev-b")
	assert.True(t, api.IsNotFound(err))

	require.NoError(t, c.Deployments.RemoveDevice(ctx, "dev-a"))
	assert.Len(t, b.RequestsTo(http.MethodDelete, deployV1Path+"/devices/dev-a"), 1)
	assert.Equal(t, []string{"dev-a"}, b.RemovedDevices())
	assert.Equal(t, []string{"dev-b"}, b.DeploymentDevices(id))
}

func TestDeployments_ReleasesAndStorage(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetStorageLimit(1 << 20)
	c, _ := newClient(t, b)
	ctx := context.Background()

	for _, a := range []struct{ name, content string }{
		{"release-1.mender", "aaaa"},
		{"release-1.mender", "bbbbbb"},
		{"release-2.mender", "cc"},
	} {
		_, err := c.Deployments.UploadArtifact(ctx, a.name, "", strings.NewReader(a.content))
		require.NoError(t, err)
	}

	releases, err := c.Deployments.Releases(ctx)
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, "release-1.mender", releases[0].Name)
	assert.Len(t, releases[0].Artifacts, 2)
	assert.Len(t, releases[1].Artifacts, 1)

	limit, err := c.Deployments.StorageLimit(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1<<20, limit.Limit)
	assert.EqualValues(t, 12, limit.Usage)
}

func TestDeployments_ArtifactLifecycle(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddArtifact("release-1")
	c, _ := newClient(t, b)
	ctx := context.Background()

	a, err := c.Deployments.Artifact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "release-1", a.Name)

	require.NoError(t, c.Deployments.UpdateArtifact(ctx, id, "nightly build"))
	reqs := b.RequestsTo(http.MethodPut, artifactsPath+"/"+id)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"description":"nightly build"}`, string(reqs[0].Body))
	stored, ok := b.Artifact(id)
	require.True(t, ok)
	assert.Equal(t, "nightly build", stored.Description)

	link, err := c.Deployments.ArtifactDownloadLink(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(link.URI, "/download/"+id))
	assert.NotNil(t, link.Expire)

	require.NoError(t, c.Deployments.DeleteArtifact(ctx, id))
	_, ok = b.Artifact(id)
	assert.False(t, ok)
	_, err = c.Deployments.Artifact(ctx, id)
	assert.True(t, api.IsNotFound(err))
}

func TestUsers_GetUpdateDelete(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)
	ctx := context.Background()

	id, err := c.Users.Create(ctx, "ops@example.com", "long-password")
	require.NoError(t, err)

	u, err := c.Users.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", u.Email)

	require.NoError(t, c.Users.Update(ctx, id, model.UserUpdate{Email: "oncall@example.com"}))
	reqs := b.RequestsTo(http.MethodPut, usersPath+"/"+id)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"email":"oncall@example.com"}`, string(reqs[0].Body))
	stored, ok := b.User(id)
	require.True(t, ok)
	assert.Equal(t, "oncall@example.com", stored.Email)

	err = c.Users.Update(ctx, id, model.UserUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
	assert.Len(t, b.RequestsTo(http.MethodPut, usersPath+"/"+id), 1)

	require.NoError(t, c.Users.Delete(ctx, id))
	_, err = c.Users.Get(ctx, id)
	assert.True(t, api.IsNotFound(err))
}
