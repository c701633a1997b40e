package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/util"
)

// DeploymentService wraps the deployments API: deployments (v1 explicit and
// group targets, v2 filter targets), artifacts and releases.
type DeploymentService struct {
	c *Client
}

// DeploymentListOptions selects a page of deployments.
type DeploymentListOptions struct {
	Status  model.DeploymentStatus `url:"status,omitempty"`
	Search  string                 `url:"search,omitempty"`
	Page    int                    `url:"page,omitempty"`
	PerPage int                    `url:"per_page,omitempty"`
}

// Create starts a deployment to an explicit device list and returns its id.
// The backend answers 201.
func (s *DeploymentService) Create(ctx context.Context, name, artifactName string, deviceIDs []string) (string, error) {
	if err := validateDeployment(name, artifactName); err != nil {
		return "", err
	}
	if len(deviceIDs) == 0 {
		return "", fmt.Errorf("%w: deployment %q has no devices", util.ErrInvalidArgument, name)
	}
	body := model.NewDeployment{ArtifactName: artifactName, Name: name, Devices: deviceIDs}
	header, err := s.c.sendJSON(ctx, http.MethodPost, deploymentsV1+"/deployments", http.StatusCreated, body, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(header), nil
}

// CreateForGroup starts a deployment to every member of a static group.
func (s *DeploymentService) CreateForGroup(ctx context.Context, name, artifactName, group string) (string, error) {
	if err := validateDeployment(name, artifactName); err != nil {
		return "", err
	}
	if err := requireID("group name", group); err != nil {
		return "", err
	}
	body := model.NewGroupDeployment{ArtifactName: artifactName, Name: name, Group: group}
	header, err := s.c.sendJSON(ctx, http.MethodPost, pathJoin(deploymentsV1, "deployments", "group", group), http.StatusCreated, body, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(header), nil
}

// CreateForFilter starts a deployment to the devices selected by a saved
// filter (deployments v2).
func (s *DeploymentService) CreateForFilter(ctx context.Context, name, artifactName, filterID string) (string, error) {
	if err := validateDeployment(name, artifactName); err != nil {
		return "", err
	}
	if err := requireID("filter id", filterID); err != nil {
		return "", err
	}
	body := model.NewFilterDeployment{Name: name, ArtifactName: artifactName, FilterID: filterID}
	header, err := s.c.sendJSON(ctx, http.MethodPost, deploymentsV2+"/deployments", http.StatusCreated, body, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(header), nil
}

func validateDeployment(name, artifactName string) error {
	v := &util.ValidationBuilder{}
	v.Require("deployment name", name)
	v.Require("artifact name", artifactName)
	return v.Build()
}

// List returns one page of deployments.
func (s *DeploymentService) List(ctx context.Context, opts DeploymentListOptions) ([]model.Deployment, error) {
	var deployments []model.Deployment
	if err := s.c.getJSON(ctx, deploymentsV1+"/deployments", opts, &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// Get returns one deployment.
func (s *DeploymentService) Get(ctx context.Context, deploymentID string) (*model.Deployment, error) {
	if err := requireID("deployment id", deploymentID); err != nil {
		return nil, err
	}
	var d model.Deployment
	if err := s.c.getJSON(ctx, pathJoin(deploymentsV1, "deployments", deploymentID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetStatus changes the status of a deployment; only aborting is supported
// by the backend.
func (s *DeploymentService) SetStatus(ctx context.Context, deploymentID string, status model.DeploymentStatus) error {
	if err := requireID("deployment id", deploymentID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodPut, pathJoin(deploymentsV1, "deployments", deploymentID, "status"),
		http.StatusNoContent, model.DeploymentStatusUpdate{Status: status}, nil)
	return err
}

// Abort stops a deployment.
func (s *DeploymentService) Abort(ctx context.Context, deploymentID string) error {
	return s.SetStatus(ctx, deploymentID, model.DeploymentAborted)
}

// Devices lists the per-device state of a deployment.
func (s *DeploymentService) Devices(ctx context.Context, deploymentID string) ([]model.DeviceDeployment, error) {
	if err := requireID("deployment id", deploymentID); err != nil {
		return nil, err
	}
	var devices []model.DeviceDeployment
	if err := s.c.getJSON(ctx, pathJoin(deploymentsV1, "deployments", deploymentID, "devices"), nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeviceLog returns the deployment log a device uploaded.
func (s *DeploymentService) DeviceLog(ctx context.Context, deploymentID, deviceID string) (string, error) {
	if err := requireID("deployment id", deploymentID); err != nil {
		return "", err
	}
	if err := requireID("device id", deviceID); err != nil {
		return "", err
	}
	r := newRequest(http.MethodGet, pathJoin(deploymentsV1, "deployments", deploymentID, "devices", deviceID, "log"), http.StatusOK)
	r.text = true
	var log string
	if _, err := s.c.do(ctx, r, &log); err != nil {
		return "", err
	}
	return log, nil
}

// Statistics returns per-state device counters of a deployment.
func (s *DeploymentService) Statistics(ctx context.Context, deploymentID string) (model.DeploymentStatistics, error) {
	if err := requireID("deployment id", deploymentID); err != nil {
		return nil, err
	}
	stats := model.DeploymentStatistics{}
	if err := s.c.getJSON(ctx, pathJoin(deploymentsV1, "deployments", deploymentID, "statistics"), nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// RemoveDevice removes a device from every deployment it takes part in.
func (s *DeploymentService) RemoveDevice(ctx context.Context, deviceID string) error {
	if err := requireID("device id", deviceID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(deploymentsV1, "deployments", "devices", deviceID), http.StatusNoContent, nil, nil)
	return err
}

// Releases lists artifacts grouped by release name.
func (s *DeploymentService) Releases(ctx context.Context) ([]model.Release, error) {
	var releases []model.Release
	if err := s.c.getJSON(ctx, deploymentsV1+"/deployments/releases", nil, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// StorageLimit returns artifact storage usage and limit.
func (s *DeploymentService) StorageLimit(ctx context.Context) (*model.StorageLimit, error) {
	var limit model.StorageLimit
	if err := s.c.getJSON(ctx, deploymentsV1+"/limits/storage", nil, &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

// Artifacts lists uploaded artifacts.
func (s *DeploymentService) Artifacts(ctx context.Context) ([]model.Artifact, error) {
	var artifacts []model.Artifact
	if err := s.c.getJSON(ctx, deploymentsV1+"/artifacts", nil, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// Artifact returns one artifact.
func (s *DeploymentService) Artifact(ctx context.Context, artifactID string) (*model.Artifact, error) {
	if err := requireID("artifact id", artifactID); err != nil {
		return nil, err
	}
	var a model.Artifact
	if err := s.c.getJSON(ctx, pathJoin(deploymentsV1, "artifacts", artifactID), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateArtifact changes the description of an artifact.
func (s *DeploymentService) UpdateArtifact(ctx context.Context, artifactID, description string) error {
	if err := requireID("artifact id", artifactID); err != nil {
		return err
	}
	body := map[string]string{"description": description}
	_, err := s.c.sendJSON(ctx, http.MethodPut, pathJoin(deploymentsV1, "artifacts", artifactID), http.StatusNoContent, body, nil)
	return err
}

// DeleteArtifact removes an artifact.
func (s *DeploymentService) DeleteArtifact(ctx context.Context, artifactID string) error {
	if err := requireID("artifact id", artifactID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(deploymentsV1, "artifacts", artifactID), http.StatusNoContent, nil, nil)
	return err
}

// ArtifactDownloadLink returns a pre-signed download link.
func (s *DeploymentService) ArtifactDownloadLink(ctx context.Context, artifactID string) (*model.Link, error) {
	if err := requireID("artifact id", artifactID); err != nil {
		return nil, err
	}
	var link model.Link
	if err := s.c.getJSON(ctx, pathJoin(deploymentsV1, "artifacts", artifactID, "download"), nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// UploadArtifact uploads an artifact file as multipart form data and
// returns the new artifact id. The artifact is buffered in memory.
func (s *DeploymentService) UploadArtifact(ctx context.Context, filename, description string, artifact io.Reader) (string, error) {
	var content bytes.Buffer
	size, err := io.Copy(&content, artifact)
	if err != nil {
		return "", fmt.Errorf("reading artifact %s: %w", filename, err)
	}

	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	if description != "" {
		if err := w.WriteField("description", description); err != nil {
			return "", err
		}
	}
	if err := w.WriteField("size", strconv.FormatInt(size, 10)); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("artifact", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, &content); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	r := newRequest(http.MethodPost, deploymentsV1+"/artifacts", http.StatusCreated)
	r.body = form.Bytes()
	r.contentType = w.FormDataContentType()
	header, err := s.c.do(ctx, r, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(header), nil
}
