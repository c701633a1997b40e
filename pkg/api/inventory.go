package api

import (
	"context"
	"net/http"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

// InventoryService wraps the inventory API (v1): device attributes and
// static groups.
type InventoryService struct {
	c *Client
}

// InventoryListOptions selects a page of inventory devices.
type InventoryListOptions struct {
	Page     int    `url:"page,omitempty"`
	PerPage  int    `url:"per_page,omitempty"`
	Group    string `url:"group,omitempty"`
	HasGroup *bool  `url:"has_group,omitempty"`
	Sort     string `url:"sort,omitempty"`
}

// Bool returns a pointer to b, for optional tri-state filters such as HasGroup.
func Bool(b bool) *bool {
	return &b
}

type groupResponse struct {
	Group *string `json:"group"`
}

// ListDevices returns one page of inventory devices.
func (s *InventoryService) ListDevices(ctx context.Context, opts InventoryListOptions) ([]model.InventoryDevice, error) {
	var devices []model.InventoryDevice
	if err := s.c.getJSON(ctx, inventoryV1+"/devices", opts, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// AllDevices collects every inventory device matching opts. opts.PerPage sets
// the page size (zero selects DefaultPageSize); opts.Page is ignored.
func (s *InventoryService) AllDevices(ctx context.Context, opts InventoryListOptions) ([]model.InventoryDevice, error) {
	return Paginate(ctx, func(ctx context.Context, page, perPage int) ([]model.InventoryDevice, error) {
		o := opts
		o.Page, o.PerPage = page, perPage
		return s.ListDevices(ctx, o)
	}, PageOptions{PerPage: opts.PerPage, Logger: s.c.log})
}

// GetDevice returns the inventory record of a device.
func (s *InventoryService) GetDevice(ctx context.Context, deviceID string) (*model.InventoryDevice, error) {
	if err := requireID("device id", deviceID); err != nil {
		return nil, err
	}
	var device model.InventoryDevice
	if err := s.c.getJSON(ctx, pathJoin(inventoryV1, "devices", deviceID), nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// DeleteDevice removes the inventory record of a device.
func (s *InventoryService) DeleteDevice(ctx context.Context, deviceID string) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(inventoryV1, "devices", deviceID), http.StatusNoContent, nil, nil)
	return err
}

// DeviceGroup returns the group of a device, or "" when it has none.
func (s *InventoryService) DeviceGroup(ctx context.Context, deviceID string) (string, error) {
	if err := requireID("device id", deviceID); err != nil {
		return "", err
	}
	var resp groupResponse
	if err := s.c.getJSON(ctx, pathJoin(inventoryV1, "devices", deviceID, "group"), nil, &resp); err != nil {
		return "", err
	}
	if resp.Group == nil {
		return "", nil
	}
	return *resp.Group, nil
}

// AssignGroup moves a device into a group, replacing any previous one.
func (s *InventoryService) AssignGroup(ctx context.Context, deviceID, group string) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	if err := requireID("group name", group); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodPut, pathJoin(inventoryV1, "devices", deviceID, "group"),
		http.StatusNoContent, model.GroupAssignment{Group: group}, nil)
	return err
}

// UnassignGroup removes a device from a group.
func (s *InventoryService) UnassignGroup(ctx context.Context, deviceID, group string) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	if err := requireID("group name", group); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(inventoryV1, "devices", deviceID, "group", group), http.StatusNoContent, nil, nil)
	return err
}

// Groups lists the names of all static groups.
func (s *InventoryService) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	if err := s.c.getJSON(ctx, inventoryV1+"/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupDevices lists the device ids of a group.
func (s *InventoryService) GroupDevices(ctx context.Context, group string) (*model.Group, error) {
	if err := requireID("group name", group); err != nil {
		return nil, err
	}
	var ids []string
	if err := s.c.getJSON(ctx, pathJoin(inventoryV1, "groups", group, "devices"), nil, &ids); err != nil {
		return nil, err
	}
	return &model.Group{Name: group, Members: ids}, nil
}
