package workflow

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/model"
)

// AcceptResult summarizes an accept run.
type AcceptResult struct {
	Accepted int
	Skipped  int
	Failed   int
	Rounds   int
}

// AcceptAll accepts every pending device. Each round lists one page of
// pending devices and accepts the listed devices concurrently. Devices
// with zero or several auth sets cannot be accepted unambiguously and are
// skipped with a warning; devices whose acceptance fails are not retried.
// The run ends when a listing returns no pending device that is still a
// candidate, so it never spins on devices it cannot accept.
func (r *Runner) AcceptAll(ctx context.Context) (AcceptResult, error) {
	log := r.logFor("accept")
	log.Infof("Starting accepting all pending devices. USERNAME='%s', URL='%s'",
		r.client.Session().Username(), r.client.BaseURL())

	var (
		res     AcceptResult
		errs    *multierror.Error
		ignored = map[string]bool{}
		page    = 1
	)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		devices, err := r.client.DevAuth.ListDevices(ctx, api.DeviceListOptions{
			Status:  model.StatusPending,
			Page:    page,
			PerPage: r.acceptPageSize,
		})
		if err != nil {
			return res, fmt.Errorf("listing pending devices: %w", err)
		}
		if len(devices) == 0 {
			break
		}
		res.Rounds++

		authSets := make(map[string]string, len(devices))
		var candidates []string
		for _, d := range devices {
			if ignored[d.ID] {
				continue
			}
			set, ok := d.SingleAuthSet()
			if !ok {
				log.WithField("device", d.ID).Warnf("Device %s has %d auth sets, skipping", d.ID, len(d.AuthSets))
				ignored[d.ID] = true
				res.Skipped++
				continue
			}
			authSets[d.ID] = set.ID
			candidates = append(candidates, d.ID)
		}

		if len(candidates) == 0 {
			// Only ignored devices on this page: look further, or stop at
			// the last page.
			if len(devices) < r.acceptPageSize {
				break
			}
			page++
			continue
		}

		report := r.fanout.Run(ctx, candidates, func(ctx context.Context, id string) error {
			return r.client.DevAuth.SetAuthSetStatus(ctx, id, authSets[id], model.StatusAccepted)
		})
		accepted := len(report.Succeeded())
		res.Accepted += accepted
		for _, f := range report.Failed() {
			ignored[f.ID] = true
			res.Failed++
		}
		log.Debugf("Round %d: %s", res.Rounds, report.Summary())
		if err := report.Err(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if accepted == 0 && len(report.Failed()) == 0 {
			break
		}
		if accepted > 0 {
			// Accepted devices leave the pending listing and later ones
			// move forward onto earlier pages.
			page = 1
		}
	}

	log.Infof("Finished accepting devices: %d accepted, %d skipped, %d failed", res.Accepted, res.Skipped, res.Failed)
	return res, errs.ErrorOrNil()
}
