package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/workflow"
)

var acceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept every pending device",
	Long: `Accept every pending device.

Pending devices are listed one page at a time and accepted in parallel
(--concurrency). Devices with zero or several auth sets are skipped with a
warning. The run ends when no acceptable pending device is left.

Examples:
  mgmtctl accept
  mgmtctl accept --concurrency 1 --delay 100ms`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		res, err := r.AcceptAll(cmd.Context())
		if jsonOutput {
			if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(res); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Accepted %s devices in %d rounds", green(fmt.Sprint(res.Accepted)), res.Rounds)
			if res.Skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %s skipped", yellow(fmt.Sprint(res.Skipped)))
			}
			if res.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %s failed", red(fmt.Sprint(res.Failed)))
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return err
	},
}

var countCmd = &cobra.Command{
	Use:   "count [status]",
	Short: "Print the number of devices in a status",
	Long: `Print the number of devices in a status.

Status is one of pending, accepted, rejected, preauthorized, noauth. Without
a status all devices are counted.

Examples:
  mgmtctl count pending
  mgmtctl count accepted`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var status string
		if len(args) == 1 {
			status = args[0]
		}
		st, err := workflow.ParseStatus(status)
		if err != nil {
			return err
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		n, err := r.Count(cmd.Context(), st)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage static device groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Move ungrouped devices into a group",
	Long: `Move a number of ungrouped accepted devices into a static group.

Nothing is changed when fewer ungrouped devices than requested exist. A
group name is generated when none is given.

Examples:
  mgmtctl group create --qty 1000 --name group1
  DEVICES_QTY=500 GROUP_NAME=group2 mgmtctl group create`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		qty := cfg.GetInt(keyDevicesQty)
		if qty <= 0 {
			return fmt.Errorf("devices quantity is required: use --qty or DEVICES_QTY")
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		res, err := r.CreateGroup(cmd.Context(), qty, cfg.GetString(keyGroupName))
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Group %s created with %d devices\n", bold(res.Name), len(res.Devices))
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List static groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		groups, err := r.Client().Inventory.Groups(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(groups)
		}
		if len(groups) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No groups")
			return nil
		}
		for _, g := range groups {
			fmt.Fprintln(cmd.OutOrStdout(), g)
		}
		return nil
	},
}

var groupUnassignCmd = &cobra.Command{
	Use:   "unassign <device-id> <group-name>",
	Short: "Remove a device from a static group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().Inventory.UnassignGroup(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Device %s removed from group %s\n", args[0], args[1])
		return nil
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create a deployment",
	Long: `Create a deployment to all accepted devices, a static group or an
inventory filter.

The deployment name defaults to a generated one and the artifact to
test-update-1.0.0; both defaults are reported as warnings.

Examples:
  mgmtctl deploy all --name rollout-1 --artifact release-2
  mgmtctl deploy group group1
  DEPLOYMENT_NAME=d1 ARTIFACT_NAME=release-2 mgmtctl deploy filter 0b6c1f7e-...`,
}

var deployAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Deploy to every accepted device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy(cmd, func(r *workflow.Runner, req workflow.DeploymentRequest) (workflow.DeployResult, error) {
			return r.DeployToAll(cmd.Context(), req)
		})
	},
}

var deployGroupCmd = &cobra.Command{
	Use:   "group [group-name]",
	Short: "Deploy to a static group",
	Long: `Deploy to a static group. The group is taken from the argument or
GROUP_NAME.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group := cfg.GetString(keyGroupName)
		if len(args) == 1 {
			group = args[0]
		}
		if group == "" {
			return fmt.Errorf("group name is required: pass it as argument or set GROUP_NAME")
		}
		return runDeploy(cmd, func(r *workflow.Runner, req workflow.DeploymentRequest) (workflow.DeployResult, error) {
			return r.DeployToGroup(cmd.Context(), req, group)
		})
	},
}

var deployFilterCmd = &cobra.Command{
	Use:   "filter <filter-id>",
	Short: "Deploy to the devices matching an inventory filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy(cmd, func(r *workflow.Runner, req workflow.DeploymentRequest) (workflow.DeployResult, error) {
			return r.DeployToFilter(cmd.Context(), req, args[0])
		})
	},
}

func runDeploy(cmd *cobra.Command, fn func(*workflow.Runner, workflow.DeploymentRequest) (workflow.DeployResult, error)) error {
	r, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	res, err := fn(r, workflow.DeploymentRequest{
		Name:         flagOrConfig(cmd, "name", keyDeploymentName),
		ArtifactName: flagOrConfig(cmd, "artifact", keyArtifactName),
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deployment %s (%s) created: %s\n", bold(res.Name), res.ArtifactName, res.ID)
	return nil
}

// flagOrConfig returns the flag value when it was given on the command line,
// the configured key otherwise.
func flagOrConfig(cmd *cobra.Command, flag, key string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return f.Value.String()
	}
	return cfg.GetString(key)
}

func init() {
	groupCreateCmd.Flags().Int("qty", 0, "Number of devices to move (env DEVICES_QTY)")
	groupCreateCmd.Flags().String("name", "", "Group name (env GROUP_NAME)")
	_ = cfg.BindPFlag(keyDevicesQty, groupCreateCmd.Flags().Lookup("qty"))
	_ = cfg.BindPFlag(keyGroupName, groupCreateCmd.Flags().Lookup("name"))

	deployCmd.PersistentFlags().String("name", "", "Deployment name (env DEPLOYMENT_NAME)")
	deployCmd.PersistentFlags().String("artifact", "", "Artifact name (env ARTIFACT_NAME)")

	groupCmd.AddCommand(groupCreateCmd, groupListCmd, groupUnassignCmd)
	deployCmd.AddCommand(deployAllCmd, deployGroupCmd, deployFilterCmd)

	for _, cmd := range []*cobra.Command{acceptCmd, groupCmd, deployCmd} {
		addOutputFlags(cmd)
	}
}
