package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/cli"
	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/util"
	"github.com/mender-qa/mgmtctl/pkg/workflow"
)

var deviceCmd = &cobra.Command{
	Use:     "device",
	Aliases: []string{"devices"},
	Short:   "Inspect and manage devices",
	Long: `Inspect and manage devices of the device authentication service.

Examples:
  mgmtctl device list --status pending
  mgmtctl device show <device-id>
  mgmtctl device delete <device-id> --purge
  mgmtctl device delete-all --status rejected
  mgmtctl device authset status <device-id> <auth-set-id>
  mgmtctl device preauthorize --identity mac=ff:00:00:00:00:01 --pubkey key.pem`,
}

var deviceStatus string

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := workflow.ParseStatus(deviceStatus)
		if err != nil {
			return err
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		devices, err := r.Devices(cmd.Context(), st)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(devices)
		}
		t := cli.NewTableTo(cmd.OutOrStdout(), "ID", "STATUS", "AUTH_SETS", "IDENTITY").WhenEmpty("no devices")
		for _, d := range devices {
			t.Row(d.ID, string(d.Status), strconv.Itoa(len(d.AuthSets)), identityString(d.IdentityData))
		}
		t.Flush()
		return nil
	},
}

func identityString(id model.IdentityData) string {
	if len(id) == 0 {
		return "-"
	}
	b, err := json.Marshal(id)
	if err != nil {
		return "-"
	}
	return cli.Truncate(string(b), 60)
}

var deviceShowCmd = &cobra.Command{
	Use:   "show <device-id>",
	Short: "Show device details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		d, err := r.Client().DevAuth.GetDevice(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(d)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Device: %s\n", bold(d.ID))
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("Status", 16), cli.Status(string(d.Status)))
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("Identity", 16), identityString(d.IdentityData))
		if group, err := r.Client().Inventory.DeviceGroup(cmd.Context(), d.ID); err == nil && group != "" {
			fmt.Fprintf(out, "%s %s\n", cli.DotPad("Group", 16), group)
		}
		fmt.Fprintf(out, "Auth sets: %d\n", len(d.AuthSets))
		t := cli.NewTableTo(out, "ID", "STATUS").WithPrefix("  ")
		for _, a := range d.AuthSets {
			t.Row(a.ID, string(a.Status))
		}
		t.Flush()

		// Only accepted devices have an inventory record.
		inv, err := r.Client().Inventory.GetDevice(cmd.Context(), d.ID)
		if err != nil {
			if api.IsNotFound(err) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, "Inventory:")
		t = cli.NewTableTo(out, "SCOPE", "NAME", "VALUE").WithPrefix("  ").WhenEmpty("no attributes")
		for _, a := range inv.Attributes {
			t.Row(a.Scope, a.Name, fmt.Sprint(a.Value))
		}
		t.Flush()
		return nil
	},
}

var deviceDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Decommission every device in a status",
	Long: `Decommission every device in a status (all devices when --status is
not given). Deletions run in parallel (--concurrency).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := workflow.ParseStatus(deviceStatus)
		if err != nil {
			return err
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		report, err := r.DeleteAllDevices(cmd.Context(), st)
		printReport(cmd.OutOrStdout(), "Deleted devices", report)
		return err
	},
}

var purgeDevice bool

var deviceDeleteCmd = &cobra.Command{
	Use:   "delete <device-id>",
	Short: "Decommission one device",
	Long: `Decommission one device. With --purge its inventory record and its
deployment history are removed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		c, id := r.Client(), args[0]
		if err := c.DevAuth.DeleteDevice(cmd.Context(), id); err != nil {
			return err
		}
		if purgeDevice {
			if err := c.Inventory.DeleteDevice(cmd.Context(), id); err != nil && !api.IsNotFound(err) {
				return fmt.Errorf("removing inventory of %s: %w", id, err)
			}
			if err := c.Deployments.RemoveDevice(cmd.Context(), id); err != nil {
				return fmt.Errorf("removing deployment history of %s: %w", id, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Device %s %s\n", id, red("decommissioned"))
		return nil
	},
}

var deviceAuthSetCmd = &cobra.Command{
	Use:   "authset",
	Short: "Inspect or remove device auth sets",
}

var deviceAuthSetStatusCmd = &cobra.Command{
	Use:   "status <device-id> <auth-set-id>",
	Short: "Print the admission status of an auth set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		st, err := r.Client().DevAuth.AuthSetStatus(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), st)
		return nil
	},
}

var deviceAuthSetDeleteCmd = &cobra.Command{
	Use:   "delete <device-id> <auth-set-id>",
	Short: "Remove an auth set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().DevAuth.DeleteAuthSet(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Auth set %s of device %s deleted\n", args[1], args[0])
		return nil
	},
}

var deviceRevokeTokenCmd = &cobra.Command{
	Use:   "revoke-token <token-id>",
	Short: "Revoke a device token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().DevAuth.RevokeToken(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token %s revoked\n", args[0])
		return nil
	},
}

var (
	preauthIdentity []string
	preauthKeyFile  string
)

var devicePreauthorizeCmd = &cobra.Command{
	Use:   "preauthorize",
	Short: "Preauthorize a device identity and public key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := parseIdentity(preauthIdentity)
		if err != nil {
			return err
		}
		if preauthKeyFile == "" {
			return fmt.Errorf("%w: --pubkey is required", util.ErrInvalidArgument)
		}
		key, err := os.ReadFile(preauthKeyFile)
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}

		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().DevAuth.Preauthorize(cmd.Context(), identity, string(key)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green("Device preauthorized"))
		return nil
	},
}

// parseIdentity reads key=value pairs.
func parseIdentity(pairs []string) (model.IdentityData, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: at least one --identity key=value is required", util.ErrInvalidArgument)
	}
	identity := model.IdentityData{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: identity %q must be key=value", util.ErrInvalidArgument, p)
		}
		identity[k] = v
	}
	return identity, nil
}

var deviceLimitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Show the accepted-device limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		limit, err := r.Client().DevAuth.MaxDevicesLimit(cmd.Context())
		if err != nil {
			return err
		}
		if limit == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "unlimited")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), limit)
		return nil
	},
}

func init() {
	deviceListCmd.Flags().StringVar(&deviceStatus, "status", "", "Only devices in this status")
	deviceDeleteAllCmd.Flags().StringVar(&deviceStatus, "status", "", "Only devices in this status")
	devicePreauthorizeCmd.Flags().StringArrayVar(&preauthIdentity, "identity", nil, "Identity attribute key=value (repeatable)")
	devicePreauthorizeCmd.Flags().StringVar(&preauthKeyFile, "pubkey", "", "PEM file with the device public key")
	deviceDeleteCmd.Flags().BoolVar(&purgeDevice, "purge", false, "Also remove inventory and deployment history")

	deviceAuthSetCmd.AddCommand(deviceAuthSetStatusCmd, deviceAuthSetDeleteCmd)
	deviceCmd.AddCommand(deviceListCmd, deviceShowCmd, deviceDeleteCmd, deviceDeleteAllCmd,
		deviceAuthSetCmd, deviceRevokeTokenCmd, devicePreauthorizeCmd, deviceLimitCmd)
	addOutputFlags(deviceCmd)
}
