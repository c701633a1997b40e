package workflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

// DeploymentRequest names a deployment and the artifact it installs. Empty
// fields get defaults.
type DeploymentRequest struct {
	Name         string
	ArtifactName string
}

// DeployResult describes a created deployment.
type DeployResult struct {
	ID           string
	Name         string
	ArtifactName string
	// Devices is the size of an explicit device list; zero for group and
	// filter targets.
	Devices int
}

// DefaultDeploymentName generates a deployment name.
func DefaultDeploymentName() string {
	return "depl_name_" + shortID()
}

func (req DeploymentRequest) withDefaults(log logrus.FieldLogger) DeploymentRequest {
	if req.Name == "" {
		req.Name = DefaultDeploymentName()
		log.Warnf("DEPLOYMENT_NAME is not set, using generated '%s'", req.Name)
	}
	if req.ArtifactName == "" {
		req.ArtifactName = DefaultArtifactName
		log.Warnf("ARTIFACT_NAME is not set, using default '%s'", req.ArtifactName)
	}
	return req
}

// DeployToAll creates a deployment to every accepted device.
func (r *Runner) DeployToAll(ctx context.Context, req DeploymentRequest) (DeployResult, error) {
	log := r.logFor("deploy")
	req = req.withDefaults(log)
	log.Infof("Starting creating deployment. USERNAME='%s', URL='%s'", r.client.Session().Username(), r.client.BaseURL())

	devices, err := r.client.DevAuth.AllDevices(ctx, model.StatusAccepted, r.pageSize)
	if err != nil {
		return DeployResult{}, fmt.Errorf("listing accepted devices: %w", err)
	}
	log.Debugf("Accepted devices count: %d", len(devices))
	if err := NewPreconditionChecker("deploy.all", req.Name).
		RequireAtLeast("accepted devices", len(devices), 1).
		Result(); err != nil {
		return DeployResult{}, err
	}

	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	id, err := r.client.Deployments.Create(ctx, req.Name, req.ArtifactName, ids)
	if err != nil {
		return DeployResult{}, fmt.Errorf("creating deployment %s: %w", req.Name, err)
	}
	log.Infof("Deployment successfully created: devices qty - %d, name - %s", len(ids), req.Name)
	return DeployResult{ID: id, Name: req.Name, ArtifactName: req.ArtifactName, Devices: len(ids)}, nil
}

// DeployToGroup creates a deployment to a static group.
func (r *Runner) DeployToGroup(ctx context.Context, req DeploymentRequest, group string) (DeployResult, error) {
	log := r.logFor("deploy")
	req = req.withDefaults(log)
	if err := NewPreconditionChecker("deploy.group", req.Name).RequireNonEmpty("GROUP_NAME", group).Result(); err != nil {
		return DeployResult{}, err
	}
	log.Infof("Starting creating deployment. USERNAME='%s', URL='%s'", r.client.Session().Username(), r.client.BaseURL())

	id, err := r.client.Deployments.CreateForGroup(ctx, req.Name, req.ArtifactName, group)
	if err != nil {
		return DeployResult{}, fmt.Errorf("creating deployment %s: %w", req.Name, err)
	}
	log.Infof("Deployment successfully created: group - %s, name - %s", group, req.Name)
	return DeployResult{ID: id, Name: req.Name, ArtifactName: req.ArtifactName}, nil
}

// DeployToFilter creates a deployment to the devices matching a saved filter.
func (r *Runner) DeployToFilter(ctx context.Context, req DeploymentRequest, filterID string) (DeployResult, error) {
	log := r.logFor("deploy")
	req = req.withDefaults(log)
	if err := NewPreconditionChecker("deploy.filter", req.Name).RequireNonEmpty("filter id", filterID).Result(); err != nil {
		return DeployResult{}, err
	}

	id, err := r.client.Deployments.CreateForFilter(ctx, req.Name, req.ArtifactName, filterID)
	if err != nil {
		return DeployResult{}, fmt.Errorf("creating deployment %s: %w", req.Name, err)
	}
	log.Infof("Deployment successfully created: filter - %s, name - %s", filterID, req.Name)
	return DeployResult{ID: id, Name: req.Name, ArtifactName: req.ArtifactName}, nil
}
