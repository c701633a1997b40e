package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/bulk"
	"github.com/mender-qa/mgmtctl/pkg/cli"
	"github.com/mender-qa/mgmtctl/pkg/model"
	"github.com/mender-qa/mgmtctl/pkg/presets"
	"github.com/mender-qa/mgmtctl/pkg/util"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manage saved inventory filters",
	Long: `Manage saved inventory filters (inventory v2).

Examples:
  mgmtctl filter list
  mgmtctl filter show 0b6c1f7e-...
  mgmtctl filter create ff-devices --term 'identity:mac:$regex:ff:00:00:.*'
  mgmtctl filter create wave1 --term 'inventory:device_group:$in:["group2","group3"]'
  mgmtctl filter presets
  mgmtctl filter presets --file my-filters.yaml
  mgmtctl filter delete-all`,
}

var filterDetails bool

var filterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		filters, err := r.Filters(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(filters)
		}
		printFilters(cmd.OutOrStdout(), filters, filterDetails)
		return nil
	},
}

func printFilters(w io.Writer, filters []model.Filter, details bool) {
	headers := []string{"ID", "NAME"}
	if details {
		headers = append(headers, "TERMS")
	}
	t := cli.NewTableTo(w, headers...).WhenEmpty("no filters")
	for _, f := range filters {
		row := []string{f.ID, f.Name}
		if details {
			row = append(row, f.TermsJSON())
		}
		t.Row(row...)
	}
	t.Flush()
}

var filterShowCmd = &cobra.Command{
	Use:   "show <filter-id>",
	Short: "Show filter details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		f, err := r.Client().Filters.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(f)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Filter: %s\n", bold(f.Name))
		fmt.Fprintf(out, "ID: %s\n", f.ID)
		fmt.Fprintf(out, "Terms: %d\n\n", len(f.Terms))

		t := cli.NewTableTo(out, "SCOPE", "ATTRIBUTE", "TYPE", "VALUE").WithPrefix("  ")
		for _, term := range f.Terms {
			value, _ := json.Marshal(term.Value)
			t.Row(term.Scope, term.Attribute, term.Type, string(value))
		}
		t.Flush()
		return nil
	},
}

var filterTerms []string

var filterCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a filter",
	Long: `Create a filter from one or more --term scope:attribute:type:value.

The value is decoded as JSON when it is valid JSON (arrays, numbers,
booleans) and used as a string otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := model.Filter{Name: args[0]}
		for _, raw := range filterTerms {
			term, err := parseTerm(raw)
			if err != nil {
				return err
			}
			f.Terms = append(f.Terms, term)
		}
		if err := f.Validate(); err != nil {
			return err
		}

		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		id, err := r.Client().Filters.Create(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filter %s created: %s\n", bold(f.Name), id)
		return nil
	},
}

// parseTerm reads scope:attribute:type:value. The value may contain colons.
func parseTerm(raw string) (model.FilterTerm, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return model.FilterTerm{}, fmt.Errorf("%w: term %q must be scope:attribute:type:value", util.ErrInvalidArgument, raw)
	}
	term := model.FilterTerm{Scope: parts[0], Attribute: parts[1], Type: parts[2], Value: parts[3]}
	var decoded any
	if err := json.Unmarshal([]byte(parts[3]), &decoded); err == nil {
		term.Value = decoded
	}
	return term, nil
}

var presetsFile string

var filterPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Create the predefined load-test filters",
	Long: `Create the predefined load-test filters.

The built-in set splits devices by static group and MAC prefix. --file
replaces it with a YAML file of the same layout:

  filters:
    - name: ff-devices
      terms:
        - {scope: identity, attribute: mac, type: $regex, value: "ff:00:00:.*"}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := presets.Load(presetsFile)
		if err != nil {
			return err
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		report, err := r.CreateFilters(cmd.Context(), filters)
		printReport(cmd.OutOrStdout(), "Created filters", report)
		return err
	},
}

var filterDeleteCmd = &cobra.Command{
	Use:   "delete <filter-id>...",
	Short: "Delete filters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		report := bulk.Sequential{}.Run(cmd.Context(), args, r.Client().Filters.Delete)
		printReport(cmd.OutOrStdout(), "Deleted filters", report)
		return report.Err()
	},
}

var filterDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every saved filter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		report, err := r.DeleteAllFilters(cmd.Context())
		if report != nil {
			printReport(cmd.OutOrStdout(), "Deleted filters", report)
		}
		return err
	},
}

// printReport prints the one-line outcome of a bulk operation.
func printReport(w io.Writer, what string, report *bulk.Report) {
	if report == nil {
		return
	}
	summary := report.Summary()
	if len(report.Failed()) > 0 {
		summary = yellow(summary)
	} else {
		summary = green(summary)
	}
	fmt.Fprintf(w, "%s: %s\n", what, summary)
}

func init() {
	filterListCmd.Flags().BoolVar(&filterDetails, "details", false, "Include filter terms")
	filterCreateCmd.Flags().StringArrayVar(&filterTerms, "term", nil, "Filter term scope:attribute:type:value (repeatable)")
	filterPresetsCmd.Flags().StringVar(&presetsFile, "file", "", "YAML preset file (default: built-in set)")

	filterCmd.AddCommand(filterListCmd, filterShowCmd, filterCreateCmd, filterPresetsCmd, filterDeleteCmd, filterDeleteAllCmd)
	addOutputFlags(filterCmd)
}
