package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/ai-cad-agent/internal/request"
	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// osExit is swappable so tests can observe exit codes.
var osExit = os.Exit

var runFile string

// planFile is the YAML shape accepted by --file: a description plus the
// task specs to execute.
type planFile struct {
	Description string            `yaml:"description"`
	Tasks       []models.TaskSpec `yaml:"tasks"`
}

var runCmd = &cobra.Command{
	Use:   "run [request...]",
	Short: "Execute a modeling request",
	Long: `Parse a natural-language modeling request into an execution plan and
run it against the active document.

  aca run create a 20x10x5 box then fillet the edges

Alternatively, execute task specs from a YAML plan file:

  aca run --file plan.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		var description string
		var specs []models.TaskSpec

		switch {
		case runFile != "":
			if len(args) > 0 {
				return fmt.Errorf("cannot combine --file with a request")
			}
			data, err := os.ReadFile(runFile)
			if err != nil {
				return fmt.Errorf("reading plan file: %w", err)
			}
			var pf planFile
			if err := yaml.Unmarshal(data, &pf); err != nil {
				return fmt.Errorf("parsing plan file: %w", err)
			}
			if len(pf.Tasks) == 0 {
				return fmt.Errorf("plan file %s contains no tasks", runFile)
			}
			description = pf.Description
			if description == "" {
				description = runFile
			}
			specs = pf.Tasks

		case len(args) > 0:
			description = strings.Join(args, " ")
			docCtx := map[string]any{}
			if Doc != nil {
				docCtx = Doc.ContextSnapshot()
			}
			parsed, err := request.Parse(description, docCtx)
			if err != nil {
				return fmt.Errorf("parsing request: %w", err)
			}
			specs = parsed.Specs
			fmt.Printf("Parsed %d task(s) (%s complexity)\n\n", len(specs), parsed.Complexity)

		default:
			return fmt.Errorf("a request or --file is required; see 'aca run --help'")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		summary, err := Coordinator.ExecuteSpecs(ctx, description, specs)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}

		printSummary(summary)

		if summary.Status == "failed" {
			osExit(1)
		}
		return nil
	},
}

// printSummary prints an execution summary with one row per task result.
func printSummary(summary *models.ExecutionSummary) {
	fmt.Printf("Plan %s: %s (%s)\n", summary.PlanID, summary.Status, summary.Duration.Round(time.Millisecond))
	if summary.Error != "" {
		fmt.Printf("  error: %s\n", summary.Error)
	}

	if len(summary.Results) > 0 {
		fmt.Printf("\n  %-10s %-10s %-10s %s\n", "TASK", "STATUS", "TIME", "DETAIL")
		fmt.Printf("  %-10s %-10s %-10s %s\n", "----", "------", "----", "------")
		for _, id := range sortedResultIDs(summary.Results) {
			r := summary.Results[id]
			detail := ""
			switch {
			case r.Error != "":
				detail = r.Error
			case len(r.CreatedEntityIDs) > 0:
				detail = "created " + strings.Join(r.CreatedEntityIDs, ", ")
			case len(r.ModifiedEntityIDs) > 0:
				detail = "modified " + strings.Join(r.ModifiedEntityIDs, ", ")
			}
			fmt.Printf("  %-10s %-10s %-10s %s\n", r.TaskID, r.Status, r.Duration.Round(time.Millisecond), detail)
		}
	}

	if len(summary.Unattempted) > 0 {
		fmt.Printf("\n  Unattempted: %s\n", strings.Join(summary.Unattempted, ", "))
	}

	if len(summary.CreatedEntityIDs) > 0 {
		fmt.Printf("\n  Created:  %s\n", strings.Join(summary.CreatedEntityIDs, ", "))
	}
	if len(summary.ModifiedEntityIDs) > 0 {
		fmt.Printf("  Modified: %s\n", strings.Join(summary.ModifiedEntityIDs, ", "))
	}
}

// sortedResultIDs returns result keys in stable order. Length-first
// comparison keeps generated ids like task-2 ahead of task-10.
func sortedResultIDs(results map[string]models.TaskResult) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "Execute task specs from a YAML plan file instead of parsing a request")
	rootCmd.AddCommand(runCmd)
}
