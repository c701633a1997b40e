package model

import "time"

// DeviceStatus is the admission state of a device or of one of its auth sets.
type DeviceStatus string

const (
	StatusPending       DeviceStatus = "pending"
	StatusAccepted      DeviceStatus = "accepted"
	StatusRejected      DeviceStatus = "rejected"
	StatusPreauthorized DeviceStatus = "preauthorized"
	StatusNoAuth        DeviceStatus = "noauth"
)

// DeviceStatuses lists every status accepted by the device listing filter.
var DeviceStatuses = []DeviceStatus{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusPreauthorized,
	StatusNoAuth,
}

// ParseDeviceStatus validates a user-supplied status string.
func ParseDeviceStatus(s string) (DeviceStatus, bool) {
	for _, st := range DeviceStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IdentityData is the opaque identity map a device registers with (mac, sku, sn...).
type IdentityData map[string]any

// Device represents a device as seen by the device authentication service
type Device struct {
	ID           string       `json:"id"`
	IdentityData IdentityData `json:"identity_data,omitempty"`
	Status       DeviceStatus `json:"status"`
	AuthSets     []AuthSet    `json:"auth_sets"`
	CreatedTs    *time.Time   `json:"created_ts,omitempty"`
	UpdatedTs    *time.Time   `json:"updated_ts,omitempty"`
	Decommission bool         `json:"decommissioning,omitempty"`
}

// AuthSet is one submitted identity/public-key credential of a device.
type AuthSet struct {
	ID           string       `json:"id"`
	PubKey       string       `json:"pubkey,omitempty"`
	IdentityData IdentityData `json:"identity_data,omitempty"`
	Status       DeviceStatus `json:"status"`
	Ts           *time.Time   `json:"ts,omitempty"`
}

// SingleAuthSet returns the only auth set of the device.
// ok is false when the device has zero or several auth sets.
func (d Device) SingleAuthSet() (AuthSet, bool) {
	if len(d.AuthSets) != 1 {
		return AuthSet{}, false
	}
	return d.AuthSets[0], true
}

// PreauthRequest is the body of a device preauthorization call.
type PreauthRequest struct {
	IdentityData IdentityData `json:"identity_data"`
	PubKey       string       `json:"pubkey"`
}

// AuthSetStatus is the body of auth-set status reads and updates.
type AuthSetStatus struct {
	Status DeviceStatus `json:"status"`
}

// Count is the response of counting endpoints.
type Count struct {
	Count int `json:"count"`
}

// Limit is a server-side limit such as max_devices.
type Limit struct {
	Limit int `json:"limit"`
}

// StorageLimit describes artifact storage usage.
type StorageLimit struct {
	Limit int64 `json:"limit"`
	Usage int64 `json:"usage"`
}
