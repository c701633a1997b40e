package model

import "time"

// DeploymentStatus is the lifecycle state of a deployment
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentInProgress DeploymentStatus = "inprogress"
	DeploymentFinished   DeploymentStatus = "finished"
	// DeploymentAborted is only ever sent; the backend reports aborted
	// deployments as finished.
	DeploymentAborted DeploymentStatus = "aborted"
)

// Deployment represents a software rollout to a set of devices
type Deployment struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	ArtifactName       string           `json:"artifact_name"`
	Status             DeploymentStatus `json:"status"`
	Created            *time.Time       `json:"created,omitempty"`
	Finished           *time.Time       `json:"finished,omitempty"`
	DeviceCount        int              `json:"device_count"`
	InitialDeviceCount int              `json:"initial_device_count"`
	MaxDevices         int              `json:"max_devices,omitempty"`
	Groups             []string         `json:"groups,omitempty"`
	Filter             *Filter          `json:"filter,omitempty"`
	Type               string           `json:"type,omitempty"`
}

// NewDeployment targets an explicit device list (deployments v1).
// Field order matches the wire body: artifact_name, name, devices.
type NewDeployment struct {
	ArtifactName string   `json:"artifact_name"`
	Name         string   `json:"name"`
	Devices      []string `json:"devices"`
}

// NewGroupDeployment targets every device of a static group (deployments v1).
type NewGroupDeployment struct {
	ArtifactName string `json:"artifact_name"`
	Name         string `json:"name"`
	Group        string `json:"group"`
}

// NewFilterDeployment targets the devices selected by a stored filter (deployments v2).
type NewFilterDeployment struct {
	Name         string `json:"name"`
	ArtifactName string `json:"artifact_name"`
	FilterID     string `json:"filter_id"`
}

// DeploymentStatusUpdate is the body of a deployment status change
type DeploymentStatusUpdate struct {
	Status DeploymentStatus `json:"status"`
}

// DeploymentStatistics holds per-state device counters of a deployment.
// Keys are device deployment states (success, failure, pending, downloading...).
type DeploymentStatistics map[string]int

// Total sums every counter.
func (s DeploymentStatistics) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// DeviceDeployment is the state of one device within a deployment
type DeviceDeployment struct {
	ID       string     `json:"id"`
	Status   string     `json:"status"`
	SubState string     `json:"substate,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
	Finished *time.Time `json:"finished,omitempty"`
	Log      bool       `json:"log"`
}

// Artifact is an uploaded update artifact
type Artifact struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	DeviceTypesCompatible []string   `json:"device_types_compatible,omitempty"`
	Signed                bool       `json:"signed"`
	Size                  int64      `json:"size,omitempty"`
	Modified              *time.Time `json:"modified,omitempty"`
}

// Release groups artifacts sharing a name
type Release struct {
	Name      string     `json:"Name"`
	Artifacts []Artifact `json:"Artifacts"`
}

// Link is a pre-signed download link
type Link struct {
	URI    string     `json:"uri"`
	Expire *time.Time `json:"expire,omitempty"`
}
