package workflow

import (
	"context"
	"fmt"

	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/model"
)

// Deployments lists every deployment, optionally restricted to a status.
func (r *Runner) Deployments(ctx context.Context, status model.DeploymentStatus) ([]model.Deployment, error) {
	deployments, err := api.Paginate(ctx, func(ctx context.Context, page, perPage int) ([]model.Deployment, error) {
		return r.client.Deployments.List(ctx, api.DeploymentListOptions{Status: status, Page: page, PerPage: perPage})
	}, api.PageOptions{PerPage: r.pageSize, Logger: r.log})
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	r.logFor("deployment.list").Infof("listing %d deployments", len(deployments))
	return deployments, nil
}

// AbortDeployment stops a deployment.
func (r *Runner) AbortDeployment(ctx context.Context, id string) error {
	if err := r.client.Deployments.Abort(ctx, id); err != nil {
		return fmt.Errorf("aborting deployment %s: %w", id, err)
	}
	r.logFor("deployment.abort").Infof("Deployment %s aborted", id)
	return nil
}
