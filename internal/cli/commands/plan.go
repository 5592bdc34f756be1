package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/nbexplode/internal/cli/config"
	"github.com/leapstack-labs/nbexplode/internal/explode"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var titleStyle = lipgloss.NewStyle().Bold(true)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <notebook>",
		Short: "List the notebooks an explosion would generate",
		Long: `Evaluate the parameters cell of a notebook and list every combination
together with the file it would be written to. Nothing is written.

Formats:
  table     aligned table (default)
  markdown  markdown table
  json      JSON document
  yaml      YAML document`,
		Example: `  # Preview the combinations of sample.ipynb
  nbexplode plan sample.ipynb

  # Machine-readable plan with the prefix applied
  nbexplode plan -p sweep_ --format json sample.ipynb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0])
		},
	}

	cmd.Flags().String("format", config.DefaultPlanFormat, "Output format (table|markdown|json|yaml)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.PlanFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runPlan(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	if err := config.ValidatePlanFormat(cfg.PlanFormat); err != nil {
		return err
	}

	ex := explode.New(explode.Config{
		Prefix: cfg.Prefix,
		Logger: config.GetLogger(ctx),
	})

	plan, err := ex.PlanFile(path)
	if err != nil {
		return err
	}
	return renderPlan(cmd.OutOrStdout(), plan, cfg.PlanFormat)
}

func renderPlan(w io.Writer, plan *explode.Plan, format string) error {
	switch format {
	case config.FormatJSON:
		return renderPlanJSON(w, plan)
	case config.FormatYAML:
		return renderPlanYAML(w, plan)
	case config.FormatMarkdown:
		return renderPlanMarkdown(w, plan)
	case config.FormatTable:
		return renderPlanTable(w, plan)
	default:
		return fmt.Errorf("unknown plan format: %s", format)
	}
}

func planSummary(plan *explode.Plan) string {
	if plan.Skipped {
		return fmt.Sprintf("%s: no parameters found", plan.Source)
	}
	s := fmt.Sprintf("%s: %d notebooks", plan.Source, len(plan.Combinations))
	if len(plan.Save) > 0 {
		s += fmt.Sprintf(" (saving %s)", strings.Join(plan.Save, ", "))
	}
	return s
}

func renderPlanTable(w io.Writer, plan *explode.Plan) error {
	_, _ = fmt.Fprintln(w, titleStyle.Render(planSummary(plan)))
	if plan.Skipped {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"#", "file"}
	for _, name := range plan.Parameters {
		header = append(header, name)
	}
	t.AppendHeader(header)

	for _, c := range plan.Combinations {
		row := table.Row{c.Index, c.File}
		for _, a := range c.Assignments {
			row = append(row, a.Value)
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

func renderPlanMarkdown(w io.Writer, plan *explode.Plan) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", planSummary(plan))
	if plan.Skipped {
		return nil
	}

	cols := append([]string{"#", "file"}, plan.Parameters...)
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, c := range plan.Combinations {
		values := []string{fmt.Sprint(c.Index), "`" + c.File + "`"}
		for _, a := range c.Assignments {
			values = append(values, "`"+strings.ReplaceAll(a.Value, "|", `\|`)+"`")
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func renderPlanJSON(w io.Writer, plan *explode.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

func renderPlanYAML(w io.Writer, plan *explode.Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return err
	}
	return enc.Close()
}
