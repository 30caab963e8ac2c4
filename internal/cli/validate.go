package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ai-cad-agent/internal/request"
)

var validateCmd = &cobra.Command{
	Use:   "validate [request...]",
	Short: "Check a modeling request without executing it",
	Long: `Parse a natural-language modeling request and report the tasks it would
run, their dependency order, and any feasibility issues. Nothing is
executed and the document is not touched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		text := strings.Join(args, " ")
		docCtx := map[string]any{}
		if Doc != nil {
			docCtx = Doc.ContextSnapshot()
		}

		parsed, err := request.Parse(text, docCtx)
		if err != nil {
			return fmt.Errorf("parsing request: %w", err)
		}

		report, err := Coordinator.ValidateSpecs(parsed.Specs)
		if err != nil {
			return fmt.Errorf("validating request: %w", err)
		}

		fmt.Printf("Request:    %s\n", text)
		fmt.Printf("Complexity: %s\n", parsed.Complexity)
		if report.Feasible {
			fmt.Printf("Feasible:   yes (%d task(s))\n", report.TaskCount)
		} else {
			fmt.Printf("Feasible:   no\n")
		}

		fmt.Printf("\n  %-10s %-22s %-30s %s\n", "ID", "TYPE", "DESCRIPTION", "DEPENDS ON")
		fmt.Printf("  %-10s %-22s %-30s %s\n", "--", "----", "-----------", "----------")
		for _, spec := range parsed.Specs {
			deps := strings.Join(spec.Dependencies, ", ")
			if deps == "" {
				deps = "-"
			}
			fmt.Printf("  %-10s %-22s %-30s %s\n", spec.ID, spec.Type, spec.Description, deps)
		}

		if len(report.Issues) > 0 {
			fmt.Println("\nIssues:")
			for _, issue := range report.Issues {
				fmt.Printf("  - %s\n", issue)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
