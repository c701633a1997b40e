package workflow

import (
	"context"
	"fmt"

	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/bulk"
)

// GroupResult describes a created group.
type GroupResult struct {
	Name    string
	Devices []string
}

// DefaultGroupName generates a group name.
func DefaultGroupName() string {
	return "group-" + shortID()
}

// CreateGroup moves qty ungrouped devices into group, generating a name when
// group is empty. It reads ceil(qty/500) pages of ungrouped devices first and
// changes nothing when fewer than qty are available.
func (r *Runner) CreateGroup(ctx context.Context, qty int, group string) (GroupResult, error) {
	log := r.logFor("group")
	if qty <= 0 {
		return GroupResult{}, fmt.Errorf("devices quantity must be positive, got %d", qty)
	}
	if group == "" {
		group = DefaultGroupName()
		log.Warnf("GROUP_NAME is not set, using generated '%s'", group)
	}

	devices, err := r.ungroupedDevices(ctx, qty)
	if err != nil {
		return GroupResult{Name: group}, err
	}
	if err := NewPreconditionChecker("group.create", group).
		RequireAtLeast("ungrouped devices", len(devices), qty).
		Result(); err != nil {
		log.Errorf("It's %d devices available which is not enough to create group with %d devices in it.", len(devices), qty)
		return GroupResult{Name: group}, err
	}

	report := bulk.Sequential{}.Run(ctx, devices, func(ctx context.Context, id string) error {
		return r.client.Inventory.AssignGroup(ctx, id, group)
	})
	res := GroupResult{Name: group, Devices: report.Succeeded()}
	if err := report.Err(); err != nil {
		return res, fmt.Errorf("adding devices to group %s: %w", group, err)
	}
	log.Infof("'%d' devices added to group '%s'", len(res.Devices), group)
	return res, nil
}

func (r *Runner) ungroupedDevices(ctx context.Context, qty int) ([]string, error) {
	pages := (qty + GroupPageSize - 1) / GroupPageSize
	ids := make([]string, 0, qty)
	for page := 1; page <= pages && len(ids) < qty; page++ {
		devices, err := r.client.Inventory.ListDevices(ctx, api.InventoryListOptions{
			Page:     page,
			PerPage:  GroupPageSize,
			HasGroup: api.Bool(false),
		})
		if err != nil {
			return nil, fmt.Errorf("listing ungrouped devices: %w", err)
		}
		if len(devices) == 0 {
			break
		}
		for _, d := range devices {
			if len(ids) == qty {
				break
			}
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}
