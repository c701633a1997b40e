package workflow

import (
	"context"
	"fmt"

	"github.com/mender-qa/mgmtctl/pkg/bulk"
	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/util"
)

// ParseStatus validates a device status given on the command line. An empty
// string selects every status.
func ParseStatus(s string) (model.DeviceStatus, error) {
	if s == "" {
		return "", nil
	}
	st, ok := model.ParseDeviceStatus(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown device status %q, want one of %v", util.ErrInvalidArgument, s, model.DeviceStatuses)
	}
	return st, nil
}

// Count returns the number of devices with the given status.
func (r *Runner) Count(ctx context.Context, status model.DeviceStatus) (int, error) {
	n, err := r.client.DevAuth.Count(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("counting %s devices: %w", status, err)
	}
	return n, nil
}

// Devices lists every device with the given status (all when empty).
func (r *Runner) Devices(ctx context.Context, status model.DeviceStatus) ([]model.Device, error) {
	devices, err := r.client.DevAuth.AllDevices(ctx, status, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// DeleteAllDevices decommissions every device with the given status (all
// when empty) through the concurrent fan-out.
func (r *Runner) DeleteAllDevices(ctx context.Context, status model.DeviceStatus) (*bulk.Report, error) {
	log := r.logFor("device.delete-all")
	devices, err := r.Devices(ctx, status)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	log.Infof("deleting %d devices", len(ids))
	report := r.fanout.Run(ctx, ids, r.client.DevAuth.DeleteDevice)
	log.Infof("Finished deleting devices: %s", report.Summary())
	return report, report.Err()
}
