package api

import (
	"context"
	"net/http"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

// DevAuthService wraps the device authentication API (v2).
type DevAuthService struct {
	c *Client
}

// DeviceListOptions selects a page of the device authentication listing.
type DeviceListOptions struct {
	Status  model.DeviceStatus `url:"status,omitempty"`
	Page    int                `url:"page,omitempty"`
	PerPage int                `url:"per_page,omitempty"`
}

type countOptions struct {
	Status model.DeviceStatus `url:"status,omitempty"`
}

// Preauthorize registers a device identity and public key ahead of its first
// connection.
func (s *DevAuthService) Preauthorize(ctx context.Context, identity model.IdentityData, pubKey string) error {
	body := model.PreauthRequest{IdentityData: identity, PubKey: pubKey}
	if body.IdentityData == nil {
		body.IdentityData = model.IdentityData{}
	}
	_, err := s.c.sendJSON(ctx, http.MethodPost, devauthV2+"/devices", http.StatusCreated, body, nil)
	return err
}

// ListDevices returns one page of devices.
func (s *DevAuthService) ListDevices(ctx context.Context, opts DeviceListOptions) ([]model.Device, error) {
	var devices []model.Device
	if err := s.c.getJSON(ctx, devauthV2+"/devices", opts, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// AllDevices collects every device with the given status (all statuses when
// empty) in pages of perPage devices; zero selects DefaultPageSize.
func (s *DevAuthService) AllDevices(ctx context.Context, status model.DeviceStatus, perPage int) ([]model.Device, error) {
	return Paginate(ctx, func(ctx context.Context, page, perPage int) ([]model.Device, error) {
		return s.ListDevices(ctx, DeviceListOptions{Status: status, Page: page, PerPage: perPage})
	}, PageOptions{PerPage: perPage, Logger: s.c.log})
}

// Count returns the number of devices with the given status (all when empty).
func (s *DevAuthService) Count(ctx context.Context, status model.DeviceStatus) (int, error) {
	var count model.Count
	if err := s.c.getJSON(ctx, devauthV2+"/devices/count", countOptions{Status: status}, &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}

// GetDevice returns one device.
func (s *DevAuthService) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	if err := requireID("device id", deviceID); err != nil {
		return nil, err
	}
	var device model.Device
	if err := s.c.getJSON(ctx, pathJoin(devauthV2, "devices", deviceID), nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// DeleteDevice decommissions a device.
func (s *DevAuthService) DeleteDevice(ctx context.Context, deviceID string) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(devauthV2, "devices", deviceID), http.StatusNoContent, nil, nil)
	return err
}

// DeleteAuthSet removes one auth set of a device.
func (s *DevAuthService) DeleteAuthSet(ctx context.Context, deviceID, authSetID string) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	if err := requireID("auth set id", authSetID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(devauthV2, "devices", deviceID, "auth", authSetID), http.StatusNoContent, nil, nil)
	return err
}

// AuthSetStatus returns the admission status of an auth set.
func (s *DevAuthService) AuthSetStatus(ctx context.Context, deviceID, authSetID string) (model.DeviceStatus, error) {
	if err := requireID("device id", deviceID); err != nil {
		return "", err
	}
	if err := requireID("auth set id", authSetID); err != nil {
		return "", err
	}
	var st model.AuthSetStatus
	if err := s.c.getJSON(ctx, pathJoin(devauthV2, "devices", deviceID, "auth", authSetID, "status"), nil, &st); err != nil {
		return "", err
	}
	return st.Status, nil
}

// SetAuthSetStatus accepts, rejects or resets an auth set.
func (s *DevAuthService) SetAuthSetStatus(ctx context.Context, deviceID, authSetID string, status model.DeviceStatus) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	if err := requireID("auth set id", authSetID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodPut,
		pathJoin(devauthV2, "devices", deviceID, "auth", authSetID, "status"),
		http.StatusNoContent, model.AuthSetStatus{Status: status}, nil)
	return err
}

// MaxDevicesLimit returns the tenant's device limit (0 means unlimited).
func (s *DevAuthService) MaxDevicesLimit(ctx context.Context) (int, error) {
	var limit model.Limit
	if err := s.c.getJSON(ctx, devauthV2+"/limits/max_devices", nil, &limit); err != nil {
		return 0, err
	}
	return limit.Limit, nil
}

// RevokeToken invalidates a device token.
func (s *DevAuthService) RevokeToken(ctx context.Context, tokenID string) error {
	if err := requireID("token id", tokenID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(devauthV2, "tokens", tokenID), http.StatusNoContent, nil, nil)
	return err
}
