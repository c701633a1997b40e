package testutil

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

// AddFilter stores a filter and returns its id.
func (b *Backend) AddFilter(f model.Filter) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	f.ID = uuid.NewString()
	b.filters = append(b.filters, f)
	return f.ID
}

// Filters returns the stored filters.
func (b *Backend) Filters() []model.Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Filter(nil), b.filters...)
}

// AddDeployment stores a deployment in status st and returns its id.
func (b *Backend) AddDeployment(name, artifact string, st model.DeploymentStatus) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addDeployment(name, artifact, st, nil).ID
}

// Deployments returns the stored deployments.
func (b *Backend) Deployments() []model.Deployment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Deployment, 0, len(b.deployments))
	for _, d := range b.deployments {
		out = append(out, d.Deployment)
	}
	return out
}

// DeploymentDevices returns the explicit device list a deployment was
// created with.
func (b *Backend) DeploymentDevices(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.findDeployment(id); d != nil {
		return append([]string(nil), d.Devices...)
	}
	return nil
}

// AddArtifact stores an artifact and returns its id.
func (b *Backend) AddArtifact(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := model.Artifact{ID: uuid.NewString(), Name: name, DeviceTypesCompatible: []string{"qemux86-64"}}
	b.artifacts = append(b.artifacts, a)
	return a.ID
}

// Artifact returns a copy of the artifact with id.
func (b *Backend) Artifact(id string) (model.Artifact, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.findArtifact(id); ok {
		return b.artifacts[i], true
	}
	return model.Artifact{}, false
}

// SetStorageLimit sets the limit reported for artifact storage.
func (b *Backend) SetStorageLimit(limit int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.storage = limit
}

// SetDeviceLog stores the log a device uploaded for a deployment.
func (b *Backend) SetDeviceLog(deploymentID, deviceID, log string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs[deploymentID+"/"+deviceID] = log
}

// RemovedDevices returns the devices removed from deployment history.
func (b *Backend) RemovedDevices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.removed...)
}

// User returns a copy of the user with id.
func (b *Backend) User(id string) (model.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.findUser(id); ok {
		return b.users[i], true
	}
	return model.User{}, false
}

func (b *Backend) addDeployment(name, artifact string, st model.DeploymentStatus, devices []string) *fakeDeployment {
	now := time.Now().UTC()
	d := &fakeDeployment{
		Deployment: model.Deployment{
			ID:                 uuid.NewString(),
			Name:               name,
			ArtifactName:       artifact,
			Status:             st,
			Created:            &now,
			DeviceCount:        len(devices),
			InitialDeviceCount: len(devices),
		},
		Devices: devices,
	}
	b.deployments = append(b.deployments, d)
	return d
}

func (b *Backend) findDeployment(id string) *fakeDeployment {
	for _, d := range b.deployments {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (b *Backend) findArtifact(id string) (int, bool) {
	for i, a := range b.artifacts {
		if a.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (b *Backend) findUser(id string) (int, bool) {
	for i, u := range b.users {
		if u.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (b *Backend) findFilter(id string) (int, bool) {
	for i, f := range b.filters {
		if f.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (b *Backend) listFilters(c *gin.Context) {
	page, perPage := paging(c)
	b.mu.Lock()
	filters := append([]model.Filter{}, b.filters...)
	b.mu.Unlock()
	c.JSON(http.StatusOK, pageOf(filters, page, perPage))
}

func (b *Backend) createFilter(c *gin.Context) {
	var f model.Filter
	if err := c.ShouldBindJSON(&f); err != nil || f.Validate() != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.filters {
		if existing.Name == f.Name {
			c.JSON(http.StatusConflict, gin.H{"error": "filter with the same name already exists"})
			return
		}
	}
	f.ID = uuid.NewString()
	b.filters = append(b.filters, f)
	location(c, f.ID)
	c.Status(http.StatusCreated)
}

func (b *Backend) getFilter(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findFilter(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "filter not found"})
		return
	}
	c.JSON(http.StatusOK, b.filters[i])
}

func (b *Backend) deleteFilter(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findFilter(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "filter not found"})
		return
	}
	b.filters = append(b.filters[:i], b.filters[i+1:]...)
	c.Status(http.StatusNoContent)
}

func (b *Backend) listDeployments(c *gin.Context) {
	page, perPage := paging(c)
	status := model.DeploymentStatus(c.Query("status"))
	b.mu.Lock()
	out := []model.Deployment{}
	for _, d := range b.deployments {
		if status == "" || d.Status == status {
			out = append(out, d.Deployment)
		}
	}
	b.mu.Unlock()
	c.JSON(http.StatusOK, pageOf(out, page, perPage))
}

func (b *Backend) createDeployment(c *gin.Context) {
	var req model.NewDeployment
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.ArtifactName == "" || len(req.Devices) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deployment"})
		return
	}
	b.mu.Lock()
	d := b.addDeployment(req.Name, req.ArtifactName, model.DeploymentPending, req.Devices)
	d.Type = "software"
	b.mu.Unlock()
	location(c, d.ID)
	c.Status(http.StatusCreated)
}

func (b *Backend) createGroupDeployment(c *gin.Context) {
	var req model.NewGroupDeployment
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.ArtifactName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deployment"})
		return
	}
	group := c.Param("name")
	b.mu.Lock()
	var members []string
	for _, dev := range b.devices {
		if b.groups[dev.ID] == group {
			members = append(members, dev.ID)
		}
	}
	if len(members) == 0 {
		b.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"error": "group has no devices"})
		return
	}
	d := b.addDeployment(req.Name, req.ArtifactName, model.DeploymentPending, members)
	d.Groups = []string{group}
	b.mu.Unlock()
	c.Header("Location", apiRoot+"/v1/deployments/deployments/"+d.ID)
	c.Status(http.StatusCreated)
}

func (b *Backend) createFilterDeployment(c *gin.Context) {
	var req model.NewFilterDeployment
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.ArtifactName == "" || req.FilterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deployment"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findFilter(req.FilterID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter not found"})
		return
	}
	d := b.addDeployment(req.Name, req.ArtifactName, model.DeploymentPending, nil)
	f := b.filters[i]
	d.Filter = &f
	d.FilterID = req.FilterID
	location(c, d.ID)
	c.Status(http.StatusCreated)
}

func (b *Backend) getDeployment(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDeployment(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return
	}
	c.JSON(http.StatusOK, d.Deployment)
}

func (b *Backend) setDeploymentStatus(c *gin.Context) {
	var req model.DeploymentStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil || req.Status != model.DeploymentAborted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only aborting is supported"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDeployment(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return
	}
	if d.Status == model.DeploymentFinished {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "deployment already finished"})
		return
	}
	now := time.Now().UTC()
	d.Status = model.DeploymentFinished
	d.Finished = &now
	c.Status(http.StatusNoContent)
}

func (b *Backend) deploymentStatistics(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDeployment(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return
	}
	stats := model.DeploymentStatistics{"pending": 0, "success": 0, "failure": 0, "aborted": 0}
	if d.Status == model.DeploymentFinished {
		stats["aborted"] = len(d.Devices)
	} else {
		stats["pending"] = len(d.Devices)
	}
	c.JSON(http.StatusOK, stats)
}

func (b *Backend) listArtifacts(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, append([]model.Artifact{}, b.artifacts...))
}

func (b *Backend) uploadArtifact(c *gin.Context) {
	file, err := c.FormFile("artifact")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "artifact file is required"})
		return
	}
	b.mu.Lock()
	a := model.Artifact{
		ID:          uuid.NewString(),
		Name:        file.Filename,
		Description: c.PostForm("description"),
		Size:        file.Size,
	}
	b.artifacts = append(b.artifacts, a)
	b.mu.Unlock()
	c.Header("Location", apiRoot+"/v1/deployments/artifacts/"+a.ID)
	c.Status(http.StatusCreated)
}

func (b *Backend) getSettings(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.settings)
}

func (b *Backend) postSettings(c *gin.Context) {
	var s model.UserSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	b.settings = s
	b.mu.Unlock()
	c.Status(http.StatusCreated)
}

func (b *Backend) listUsers(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := append([]model.User{{ID: "admin", Email: b.Username}}, b.users...)
	c.JSON(http.StatusOK, users)
}

func (b *Backend) createUser(c *gin.Context) {
	var req model.NewUser
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	b.mu.Lock()
	u := model.User{ID: uuid.NewString(), Email: req.Email}
	b.users = append(b.users, u)
	b.mu.Unlock()
	location(c, u.ID)
	c.Status(http.StatusCreated)
}

func (b *Backend) deploymentDeviceList(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDeployment(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return
	}
	status := "pending"
	if d.Status == model.DeploymentFinished {
		status = "aborted"
	}
	out := []model.DeviceDeployment{}
	for _, id := range d.Devices {
		_, hasLog := b.logs[d.ID+"/"+id]
		out = append(out, model.DeviceDeployment{ID: id, Status: status, Log: hasLog})
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) deploymentDeviceLog(c *gin.Context) {
	b.mu.Lock()
	log, ok := b.logs[c.Param("id")+"/"+c.Param("device")]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "log not found"})
		return
	}
	c.Data(http.StatusOK, "text/plain", []byte(log))
}

func (b *Backend) removeDeploymentDevice(c *gin.Context) {
	id := c.Param("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.deployments {
		for i, dev := range d.Devices {
			if dev == id {
				d.Devices = append(d.Devices[:i], d.Devices[i+1:]...)
				d.DeviceCount--
				break
			}
		}
	}
	b.removed = append(b.removed, id)
	c.Status(http.StatusNoContent)
}

func (b *Backend) listReleases(c *gin.Context) {
	b.mu.Lock()
	byName := map[string][]model.Artifact{}
	for _, a := range b.artifacts {
		byName[a.Name] = append(byName[a.Name], a)
	}
	b.mu.Unlock()
	out := []model.Release{}
	for name, artifacts := range byName {
		out = append(out, model.Release{Name: name, Artifacts: artifacts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func (b *Backend) storageLimit(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	limit := model.StorageLimit{Limit: b.storage}
	for _, a := range b.artifacts {
		limit.Usage += a.Size
	}
	c.JSON(http.StatusOK, limit)
}

func (b *Backend) getArtifact(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findArtifact(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	c.JSON(http.StatusOK, b.artifacts[i])
}

func (b *Backend) updateArtifact(c *gin.Context) {
	var req struct {
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Description == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findArtifact(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	b.artifacts[i].Description = *req.Description
	c.Status(http.StatusNoContent)
}

func (b *Backend) deleteArtifact(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findArtifact(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	b.artifacts = append(b.artifacts[:i], b.artifacts[i+1:]...)
	c.Status(http.StatusNoContent)
}

func (b *Backend) artifactDownload(c *gin.Context) {
	b.mu.Lock()
	_, ok := b.findArtifact(c.Param("id"))
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	expire := time.Now().UTC().Add(15 * time.Minute)
	c.JSON(http.StatusOK, model.Link{
		URI:    "http://" + c.Request.Host + "/download/" + c.Param("id"),
		Expire: &expire,
	})
}

func (b *Backend) getUser(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findUser(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, b.users[i])
}

func (b *Backend) updateUser(c *gin.Context) {
	var req model.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil || (req.Email == "" && req.Password == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findUser(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if req.Email != "" {
		b.users[i].Email = req.Email
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) deleteUser(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findUser(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	b.users = append(b.users[:i], b.users[i+1:]...)
	c.Status(http.StatusNoContent)
}
