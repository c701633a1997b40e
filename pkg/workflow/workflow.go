// Package workflow implements the operational scripts run against a
// device-management backend: accepting pending devices, building groups,
// creating deployments and housekeeping of filters, deployments and devices.
package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/bulk"
	"github.com/mender-qa/mgmtctl/pkg/util"
)

const (
	// DefaultArtifactName is deployed when no artifact is named.
	DefaultArtifactName = "test-update-1.0.0"
	// DefaultAcceptPageSize is the pending listing size of one accept round.
	DefaultAcceptPageSize = 50
	// GroupPageSize is the page size used to collect ungrouped devices.
	GroupPageSize = 500
)

// Options tunes a Runner. Zero values select the defaults.
type Options struct {
	// Concurrency bounds the fan-out of accept rounds and bulk deletes.
	Concurrency int
	// Delay spaces calls when Concurrency is 1.
	Delay time.Duration
	// AcceptPageSize is the number of pending devices handled per round.
	AcceptPageSize int
	// PageSize is the per_page of full listings.
	PageSize int
	Logger   logrus.FieldLogger
}

// Runner runs workflows against one backend.
type Runner struct {
	client         *api.Client
	fanout         bulk.Runner
	log            logrus.FieldLogger
	acceptPageSize int
	pageSize       int
}

// New builds a Runner around an authenticated-on-demand client.
func New(client *api.Client, opts Options) *Runner {
	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = bulk.DefaultLimit
	}
	r := &Runner{
		client:         client,
		fanout:         bulk.New(concurrency, opts.Delay),
		log:            opts.Logger,
		acceptPageSize: opts.AcceptPageSize,
		pageSize:       opts.PageSize,
	}
	if r.log == nil {
		r.log = util.Logger
	}
	if r.acceptPageSize <= 0 {
		r.acceptPageSize = DefaultAcceptPageSize
	}
	if r.pageSize <= 0 {
		r.pageSize = api.DefaultPageSize
	}
	return r
}

// Client returns the API client of the runner.
func (r *Runner) Client() *api.Client {
	return r.client
}

func (r *Runner) logFor(workflow string) logrus.FieldLogger {
	return r.log.WithField("workflow", workflow)
}

// shortID returns the first block of a random UUID, for generated names.
func shortID() string {
	return uuid.NewString()[:8]
}
