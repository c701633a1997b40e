package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mender-qa/mgmtctl/pkg/bulk"
	"github.com/mender-qa/mgmtctl/pkg/model"
)

// Filters lists saved filters.
func (r *Runner) Filters(ctx context.Context) ([]model.Filter, error) {
	filters, err := r.client.Filters.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}
	r.logFor("filter.list").Infof("listing %d filters", len(filters))
	return filters, nil
}

// CreateFilters saves each filter in order. A failed filter is reported and
// the remaining ones are still created. Report ids are input positions.
func (r *Runner) CreateFilters(ctx context.Context, filters []model.Filter) (*bulk.Report, error) {
	log := r.logFor("filter.create")
	positions := make([]string, len(filters))
	for i := range filters {
		positions[i] = strconv.Itoa(i)
	}
	log.Infof("creating %d filters", len(filters))
	report := bulk.Sequential{}.Run(ctx, positions, func(ctx context.Context, pos string) error {
		i, err := strconv.Atoi(pos)
		if err != nil {
			return err
		}
		f := filters[i]
		id, err := r.client.Filters.Create(ctx, f)
		if err != nil {
			return fmt.Errorf("filter %s: %w", f.Name, err)
		}
		log.Debugf("created filter %s (%s)", f.Name, id)
		return nil
	})
	log.Infof("Finished creating filters: %s", report.Summary())
	return report, report.Err()
}

// DeleteAllFilters removes every saved filter.
func (r *Runner) DeleteAllFilters(ctx context.Context) (*bulk.Report, error) {
	log := r.logFor("filter.delete-all")
	filters, err := r.client.Filters.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}
	log.Infof("deleting %d filters", len(filters))
	ids := make([]string, len(filters))
	for i, f := range filters {
		ids[i] = f.ID
		log.Infof("deleting %s %s %s", f.ID, f.Name, f.TermsJSON())
	}
	report := bulk.Sequential{}.Run(ctx, ids, r.client.Filters.Delete)
	return report, report.Err()
}
