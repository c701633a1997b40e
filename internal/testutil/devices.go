package testutil

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

// AddDevices registers n devices with status st, each with a single auth set
// in the same status, and returns their ids in listing order.
func (b *Backend) AddDevices(n int, st model.DeviceStatus) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, b.AddDevice(st, 1))
	}
	return ids
}

// AddDevice registers one device with authSets auth sets in status st.
func (b *Backend) AddDevice(st model.DeviceStatus, authSets int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	mac := macFor(len(b.devices))
	d := &model.Device{
		ID:           id,
		Status:       st,
		IdentityData: model.IdentityData{"mac": mac},
		AuthSets:     []model.AuthSet{},
	}
	for i := 0; i < authSets; i++ {
		d.AuthSets = append(d.AuthSets, model.AuthSet{
			ID:           uuid.NewString(),
			IdentityData: model.IdentityData{"mac": mac},
			Status:       st,
		})
	}
	b.devices = append(b.devices, d)
	return id
}

// Device returns a copy of the device with id.
func (b *Backend) Device(id string) (model.Device, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.ID == id {
			return *d, true
		}
	}
	return model.Device{}, false
}

// SetDeviceStatus changes the status of a device and of its auth sets, as
// an admission made by another client would.
func (b *Backend) SetDeviceStatus(id string, st model.DeviceStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.findDevice(id); d != nil {
		d.Status = st
		for i := range d.AuthSets {
			d.AuthSets[i].Status = st
		}
	}
}

// CountDevices returns how many devices have status st (all when empty).
func (b *Backend) CountDevices(st model.DeviceStatus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.filterDevices(st))
}

// SetGroup assigns a device to a group directly.
func (b *Backend) SetGroup(deviceID, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups[deviceID] = group
}

// Group returns the group of a device.
func (b *Backend) Group(deviceID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.groups[deviceID]
}

// SetMaxDevices sets the value reported by the max_devices limit.
func (b *Backend) SetMaxDevices(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxDevices = n
}

func macFor(i int) string {
	return fmt.Sprintf("ff:00:00:%02x:%02x:%02x", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
}

func (b *Backend) filterDevices(st model.DeviceStatus) []model.Device {
	out := []model.Device{}
	for _, d := range b.devices {
		if st == "" || d.Status == st {
			out = append(out, *d)
		}
	}
	return out
}

func (b *Backend) findDevice(id string) *model.Device {
	for _, d := range b.devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (b *Backend) listDevices(c *gin.Context) {
	page, perPage := paging(c)
	b.mu.Lock()
	devices := b.filterDevices(model.DeviceStatus(c.Query("status")))
	b.mu.Unlock()
	c.JSON(http.StatusOK, pageOf(devices, page, perPage))
}

func (b *Backend) countDevices(c *gin.Context) {
	b.mu.Lock()
	n := len(b.filterDevices(model.DeviceStatus(c.Query("status"))))
	b.mu.Unlock()
	c.JSON(http.StatusOK, model.Count{Count: n})
}

func (b *Backend) getDevice(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDevice(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (b *Backend) deleteDevice(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := c.Param("id")
	for i, d := range b.devices {
		if d.ID == id {
			b.devices = append(b.devices[:i], b.devices[i+1:]...)
			delete(b.groups, id)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
}

func (b *Backend) preauthorize(c *gin.Context) {
	var req model.PreauthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PubKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preauthorization request"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	b.devices = append(b.devices, &model.Device{
		ID:           id,
		Status:       model.StatusPreauthorized,
		IdentityData: req.IdentityData,
		AuthSets: []model.AuthSet{{
			ID:           uuid.NewString(),
			PubKey:       req.PubKey,
			IdentityData: req.IdentityData,
			Status:       model.StatusPreauthorized,
		}},
	})
	c.Status(http.StatusCreated)
}

func (b *Backend) setAuthSetStatus(c *gin.Context) {
	var req model.AuthSetStatus
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDevice(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	for i := range d.AuthSets {
		if d.AuthSets[i].ID == c.Param("aid") {
			d.AuthSets[i].Status = req.Status
			d.Status = req.Status
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "auth set not found"})
}

func (b *Backend) authSetStatus(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDevice(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	for _, a := range d.AuthSets {
		if a.ID == c.Param("aid") {
			c.JSON(http.StatusOK, model.AuthSetStatus{Status: a.Status})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "auth set not found"})
}

func (b *Backend) deleteAuthSet(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDevice(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	for i, a := range d.AuthSets {
		if a.ID == c.Param("aid") {
			d.AuthSets = append(d.AuthSets[:i], d.AuthSets[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "auth set not found"})
}

func (b *Backend) revokeToken(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked = append(b.revoked, c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (b *Backend) maxDevicesLimit(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, model.Limit{Limit: b.maxDevices})
}

// RevokedTokens returns the device token ids revoked so far.
func (b *Backend) RevokedTokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.revoked...)
}

// HasInventory reports whether the inventory still holds a record of the
// device.
func (b *Backend) HasInventory(deviceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDevice(deviceID)
	return d != nil && d.Status == model.StatusAccepted && !b.purged[deviceID]
}

// inventoryRecord returns the inventory view of an accepted device, with
// its group as a system attribute. Callers hold b.mu.
func (b *Backend) inventoryRecord(d *model.Device) model.InventoryDevice {
	dev := model.InventoryDevice{ID: d.ID, Attributes: []model.Attribute{
		{Name: "mac", Value: d.IdentityData["mac"], Scope: model.ScopeIdentity},
	}}
	if g, ok := b.groups[d.ID]; ok {
		dev.Attributes = append(dev.Attributes, model.Attribute{Name: "group", Value: g, Scope: model.ScopeSystem})
	}
	return dev
}

// inventoryDevice finds an accepted device with an inventory record.
// Callers hold b.mu.
func (b *Backend) inventoryDevice(id string) *model.Device {
	d := b.findDevice(id)
	if d == nil || d.Status != model.StatusAccepted || b.purged[id] {
		return nil
	}
	return d
}

// listInventory serves accepted devices with their group as a system attribute.
func (b *Backend) listInventory(c *gin.Context) {
	page, perPage := paging(c)
	hasGroup, group := c.Query("has_group"), c.Query("group")

	b.mu.Lock()
	out := []model.InventoryDevice{}
	for _, d := range b.devices {
		if b.inventoryDevice(d.ID) == nil {
			continue
		}
		g, grouped := b.groups[d.ID]
		switch {
		case hasGroup == "true" && !grouped, hasGroup == "false" && grouped:
			continue
		case group != "" && g != group:
			continue
		}
		out = append(out, b.inventoryRecord(d))
	}
	b.mu.Unlock()
	c.JSON(http.StatusOK, pageOf(out, page, perPage))
}

func (b *Backend) getInventoryDevice(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.inventoryDevice(c.Param("id"))
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	c.JSON(http.StatusOK, b.inventoryRecord(d))
}

func (b *Backend) deleteInventoryDevice(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := c.Param("id")
	if b.inventoryDevice(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	b.purged[id] = true
	delete(b.groups, id)
	c.Status(http.StatusNoContent)
}

func (b *Backend) deviceGroup(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := c.Param("id")
	if b.inventoryDevice(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if g, ok := b.groups[id]; ok {
		c.JSON(http.StatusOK, gin.H{"group": g})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": nil})
}

func (b *Backend) unassignGroup(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := c.Param("id")
	if g, ok := b.groups[id]; !ok || g != c.Param("name") {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found in group"})
		return
	}
	delete(b.groups, id)
	c.Status(http.StatusNoContent)
}

func (b *Backend) assignGroup(c *gin.Context) {
	var req model.GroupAssignment
	if err := c.ShouldBindJSON(&req); err != nil || req.Group == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.findDevice(c.Param("id")) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	b.groups[c.Param("id")] = req.Group
	c.Status(http.StatusNoContent)
}

func (b *Backend) listGroups(c *gin.Context) {
	b.mu.Lock()
	seen := map[string]bool{}
	groups := []string{}
	for _, g := range b.groups {
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	b.mu.Unlock()
	sort.Strings(groups)
	c.JSON(http.StatusOK, groups)
}

func (b *Backend) groupDevices(c *gin.Context) {
	name := c.Param("name")
	b.mu.Lock()
	ids := []string{}
	for _, d := range b.devices {
		if b.groups[d.ID] == name {
			ids = append(ids, d.ID)
		}
	}
	b.mu.Unlock()
	if len(ids) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.JSON(http.StatusOK, ids)
}
