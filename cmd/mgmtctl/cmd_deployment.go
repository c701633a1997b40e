package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/cli"
	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/workflow"
)

var deploymentCmd = &cobra.Command{
	Use:     "deployment",
	Aliases: []string{"deployments"},
	Short:   "Inspect and control deployments",
	Long: `Inspect and control deployments.

Examples:
  mgmtctl deployment list
  mgmtctl deployment list --status inprogress
  mgmtctl deployment show <id>
  mgmtctl deployment stats <id>
  mgmtctl deployment abort <id>
  mgmtctl deployment releases
  mgmtctl deployment create <filter-id> --name d1 --artifact release-2`,
}

var deploymentStatus string

var deploymentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		deployments, err := r.Deployments(cmd.Context(), model.DeploymentStatus(deploymentStatus))
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(deployments)
		}
		printDeployments(cmd.OutOrStdout(), deployments)
		return nil
	},
}

func printDeployments(w io.Writer, deployments []model.Deployment) {
	t := cli.NewTableTo(w, "ID", "NAME", "STATUS", "INITIAL", "DEVICE_CNT").WhenEmpty("no deployments")
	for _, d := range deployments {
		t.Row(d.ID, d.Name, string(d.Status), strconv.Itoa(d.InitialDeviceCount), strconv.Itoa(d.DeviceCount))
	}
	t.Flush()
}

var deploymentShowCmd = &cobra.Command{
	Use:   "show <deployment-id>",
	Short: "Show deployment details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		d, err := r.Client().Deployments.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(d)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Deployment: %s\n", bold(d.Name))
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("ID", 16), d.ID)
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("Artifact", 16), d.ArtifactName)
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("Status", 16), cli.Status(string(d.Status)))
		if d.Created != nil {
			fmt.Fprintf(out, "%s %s\n", cli.DotPad("Created", 16), d.Created.Format("2006-01-02 15:04:05"))
		}
		if d.Finished != nil {
			fmt.Fprintf(out, "%s %s\n", cli.DotPad("Finished", 16), d.Finished.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(out, "%s %d/%d\n", cli.DotPad("Devices", 16), d.DeviceCount, d.InitialDeviceCount)
		if len(d.Groups) > 0 {
			fmt.Fprintf(out, "%s %v\n", cli.DotPad("Groups", 16), d.Groups)
		}
		if d.Filter != nil {
			fmt.Fprintf(out, "%s %s\n", cli.DotPad("Filter", 16), d.Filter.Name)
		}
		return nil
	},
}

var deploymentStatsCmd = &cobra.Command{
	Use:   "stats <deployment-id>",
	Short: "Show per-status device counts of a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := r.Client().Deployments.Statistics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		}
		statuses := make([]string, 0, len(stats))
		for s := range stats {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		t := cli.NewTableTo(cmd.OutOrStdout(), "STATUS", "DEVICES")
		for _, s := range statuses {
			if stats[s] == 0 {
				continue
			}
			t.Row(s, strconv.Itoa(stats[s]))
		}
		t.Row("total", strconv.Itoa(stats.Total()))
		t.Flush()
		return nil
	},
}

var deploymentDevicesCmd = &cobra.Command{
	Use:   "devices <deployment-id>",
	Short: "List the devices of a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		devices, err := r.Client().Deployments.Devices(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(devices)
		}
		t := cli.NewTableTo(cmd.OutOrStdout(), "DEVICE", "STATUS", "SUBSTATE", "LOG").WhenEmpty("no devices")
		for _, d := range devices {
			t.Row(d.ID, d.Status, d.SubState, strconv.FormatBool(d.Log))
		}
		t.Flush()
		return nil
	},
}

var deploymentLogCmd = &cobra.Command{
	Use:   "log <deployment-id> <device-id>",
	Short: "Print the deployment log of one device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		log, err := r.Client().Deployments.DeviceLog(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), log)
		return nil
	},
}

var deploymentAbortCmd = &cobra.Command{
	Use:   "abort <deployment-id>",
	Short: "Abort a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.AbortDeployment(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deployment %s %s\n", args[0], red("aborted"))
		return nil
	},
}

var deploymentReleasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List releases and their artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		releases, err := r.Client().Deployments.Releases(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(releases)
		}
		t := cli.NewTableTo(cmd.OutOrStdout(), "RELEASE", "ARTIFACTS").WhenEmpty("no releases")
		for _, rel := range releases {
			t.Row(rel.Name, strconv.Itoa(len(rel.Artifacts)))
		}
		t.Flush()
		return nil
	},
}

var deploymentStorageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Show artifact storage usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		limit, err := r.Client().Deployments.StorageLimit(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(limit)
		}
		if limit.Limit == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes used, unlimited\n", limit.Usage)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d bytes used\n", limit.Usage, limit.Limit)
		return nil
	},
}

var deploymentRemoveDeviceCmd = &cobra.Command{
	Use:   "remove-device <device-id>",
	Short: "Remove a device from every deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().Deployments.RemoveDevice(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Device %s removed from deployments\n", args[0])
		return nil
	},
}

var deploymentCreateCmd = &cobra.Command{
	Use:   "create <filter-id>",
	Short: "Create a deployment to a saved filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy(cmd, func(r *workflow.Runner, req workflow.DeploymentRequest) (workflow.DeployResult, error) {
			return r.DeployToFilter(cmd.Context(), req, args[0])
		})
	},
}

var artifactCmd = &cobra.Command{
	Use:     "artifact",
	Aliases: []string{"artifacts"},
	Short:   "Manage artifacts",
	Long: `Manage artifacts of the deployments service.

Examples:
  mgmtctl artifact list
  mgmtctl artifact upload release-2.mender --description "second release"
  mgmtctl artifact update <artifact-id> --description "hotfix"
  mgmtctl artifact delete <artifact-id>`,
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		artifacts, err := r.Client().Deployments.Artifacts(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(artifacts)
		}
		t := cli.NewTableTo(cmd.OutOrStdout(), "ID", "NAME", "SIZE", "DESCRIPTION").WhenEmpty("no artifacts")
		for _, a := range artifacts {
			t.Row(a.ID, a.Name, strconv.FormatInt(a.Size, 10), cli.Truncate(a.Description, 40))
		}
		t.Flush()
		return nil
	},
}

var artifactShowCmd = &cobra.Command{
	Use:   "show <artifact-id>",
	Short: "Show artifact details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		a, err := r.Client().Deployments.Artifact(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(a)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Artifact: %s\n", bold(a.Name))
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("ID", 16), a.ID)
		fmt.Fprintf(out, "%s %s\n", cli.DotPad("Description", 16), a.Description)
		fmt.Fprintf(out, "%s %d\n", cli.DotPad("Size", 16), a.Size)
		fmt.Fprintf(out, "%s %v\n", cli.DotPad("Device types", 16), a.DeviceTypesCompatible)
		fmt.Fprintf(out, "%s %t\n", cli.DotPad("Signed", 16), a.Signed)
		return nil
	},
}

var artifactUpdateCmd = &cobra.Command{
	Use:   "update <artifact-id>",
	Short: "Change the description of an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("description") {
			return fmt.Errorf("--description is required")
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().Deployments.UpdateArtifact(cmd.Context(), args[0], artifactDescription); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artifact %s updated\n", args[0])
		return nil
	},
}

var artifactLinkCmd = &cobra.Command{
	Use:   "link <artifact-id>",
	Short: "Print a download link for an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		link, err := r.Client().Deployments.ArtifactDownloadLink(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link.URI)
		if link.Expire != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", link.Expire.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var artifactDescription string

var artifactUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an artifact file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		id, err := r.Client().Deployments.UploadArtifact(cmd.Context(), filepath.Base(args[0]), artifactDescription, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artifact uploaded: %s\n", id)
		return nil
	},
}

var artifactDeleteCmd = &cobra.Command{
	Use:   "delete <artifact-id>",
	Short: "Delete an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().Deployments.DeleteArtifact(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artifact %s deleted\n", args[0])
		return nil
	},
}

func init() {
	deploymentListCmd.Flags().StringVar(&deploymentStatus, "status", "", "Only deployments in this status (pending, inprogress, finished)")
	deploymentCreateCmd.Flags().String("name", "", "Deployment name (env DEPLOYMENT_NAME)")
	deploymentCreateCmd.Flags().String("artifact", "", "Artifact name (env ARTIFACT_NAME)")
	artifactUploadCmd.Flags().StringVar(&artifactDescription, "description", "", "Artifact description")
	artifactUpdateCmd.Flags().StringVar(&artifactDescription, "description", "", "New artifact description")

	deploymentCmd.AddCommand(deploymentListCmd, deploymentShowCmd, deploymentStatsCmd,
		deploymentDevicesCmd, deploymentLogCmd, deploymentAbortCmd, deploymentCreateCmd,
		deploymentReleasesCmd, deploymentStorageCmd, deploymentRemoveDeviceCmd)
	artifactCmd.AddCommand(artifactListCmd, artifactShowCmd, artifactUploadCmd, artifactUpdateCmd,
		artifactLinkCmd, artifactDeleteCmd)
	addOutputFlags(deploymentCmd)
	addOutputFlags(artifactCmd)
}
