package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mender-qa/mgmtctl/pkg/presets"
	"github.com/mender-qa/mgmtctl/pkg/util"
	"github.com/mender-qa/mgmtctl/pkg/workflow"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Enter interactive mode",
	Long: `Enter interactive menu mode for filters and deployments.

In interactive mode, you can:
  - list, create the predefined and delete all filters
  - list, create and abort deployments

The password is prompted for when it is not configured and the input is a
terminal.

Examples:
  mgmtctl interactive
  URL=https://hosted.example.com USERNAME=admin@example.com mgmtctl i`,
	Aliases: []string{"i"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GetString(keyPassword) == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			password, err := promptPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cfg.Set(keyPassword, password)
		}

		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green("Connected to "+r.Client().BaseURL()))

		return newMenu(r, cmd.InOrStdin(), cmd.OutOrStdout()).run(cmd.Context())
	},
}

func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// menu is the text menu of the interactive mode. Failed actions are
// reported and the menu continues.
type menu struct {
	runner *workflow.Runner
	in     *bufio.Reader
	out    io.Writer
}

func newMenu(r *workflow.Runner, in io.Reader, out io.Writer) *menu {
	return &menu{runner: r, in: bufio.NewReader(in), out: out}
}

// ask prints a question and returns the trimmed reply. ok is false at end
// of input.
func (m *menu) ask(question string) (string, bool) {
	fmt.Fprint(m.out, question)
	input, err := m.in.ReadString('\n')
	fmt.Fprintln(m.out)
	if err != nil && input == "" {
		return "", false
	}
	return strings.TrimSpace(input), true
}

func (m *menu) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(m.out, "-----------------------")
		fmt.Fprintln(m.out, bold("What do you want to do?"))
		fmt.Fprintln(m.out, "  F) Filters list/create/delete")
		fmt.Fprintln(m.out, "  D) Deployments list/create/abort")
		fmt.Fprintln(m.out, "  Q) Quit")

		reply, ok := m.ask("Choice? ")
		if !ok {
			return nil
		}
		switch strings.ToLower(reply) {
		case "q":
			return nil
		case "f":
			m.report(m.filters(ctx))
		case "d":
			m.report(m.deployments(ctx))
		default:
			fmt.Fprintln(m.out, yellow("Invalid option"))
		}
	}
}

func (m *menu) report(err error) {
	if err != nil {
		util.Errorf("%v", err)
		fmt.Fprintln(m.out, red("Error: ")+err.Error())
	}
}

func (m *menu) filters(ctx context.Context) error {
	fmt.Fprintln(m.out, "What do you want to do?")
	fmt.Fprintln(m.out, "  L) List filters")
	fmt.Fprintln(m.out, "  C) Create predefined filters")
	fmt.Fprintln(m.out, "  D) Delete all filters")
	fmt.Fprintln(m.out, "  Q) Quit")

	reply, _ := m.ask("Choice? ")
	switch strings.ToLower(reply) {
	case "l":
		filters, err := m.runner.Filters(ctx)
		if err != nil {
			return err
		}
		printFilters(m.out, filters, false)
	case "c":
		filters, err := presets.Default()
		if err != nil {
			return err
		}
		report, err := m.runner.CreateFilters(ctx, filters)
		printReport(m.out, "Created filters", report)
		return err
	case "d":
		report, err := m.runner.DeleteAllFilters(ctx)
		printReport(m.out, "Deleted filters", report)
		return err
	}
	return nil
}

func (m *menu) deployments(ctx context.Context) error {
	fmt.Fprintln(m.out, "What do you want to do?")
	fmt.Fprintln(m.out, "  L) List deployments")
	fmt.Fprintln(m.out, "  C) Create new deployment")
	fmt.Fprintln(m.out, "  A) Abort deployment")
	fmt.Fprintln(m.out, "  Q) Quit")

	reply, _ := m.ask("Choice? ")
	switch strings.ToLower(reply) {
	case "l":
		deployments, err := m.runner.Deployments(ctx, "")
		if err != nil {
			return err
		}
		printDeployments(m.out, deployments)
	case "c":
		filterID, _ := m.ask("Filter ID? ")
		name, _ := m.ask("Deployment name? ")
		artifact, _ := m.ask("Artifact name? ")
		res, err := m.runner.DeployToFilter(ctx, workflow.DeploymentRequest{Name: name, ArtifactName: artifact}, filterID)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Deployment %s created: %s\n", bold(res.Name), res.ID)
	case "a":
		id, _ := m.ask("Deployment ID? ")
		if err := m.runner.AbortDeployment(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Deployment %s %s\n", id, red("aborted"))
	}
	return nil
}
