package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status <plan-id>",
	Short: "Display the status of one plan",
	Long: `Display a plan's current status with one row per task.

Task statuses are pending, running, completed, failed, and cancelled.
Use --output yaml for a machine-readable plan dump.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		if statusOutput != "text" && statusOutput != "yaml" {
			return fmt.Errorf("unsupported output format %q (text or yaml)", statusOutput)
		}

		plan, err := Coordinator.PlanStatus(args[0])
		if err != nil {
			return fmt.Errorf("fetching plan: %w", err)
		}

		if statusOutput == "yaml" {
			data, err := yaml.Marshal(plan)
			if err != nil {
				return fmt.Errorf("encoding plan: %w", err)
			}
			fmt.Print(string(data))
			return nil
		}

		fmt.Printf("Plan:        %s\n", plan.ID)
		fmt.Printf("Description: %s\n", plan.Description)
		fmt.Printf("Status:      %s\n", plan.Status)
		fmt.Printf("Created:     %s\n", plan.CreatedAt.Format(time.RFC3339))
		if !plan.StartedAt.IsZero() {
			fmt.Printf("Started:     %s\n", plan.StartedAt.Format(time.RFC3339))
		}
		if !plan.CompletedAt.IsZero() {
			fmt.Printf("Completed:   %s\n", plan.CompletedAt.Format(time.RFC3339))
		}
		if plan.ErrorMessage != "" {
			fmt.Printf("Error:       %s\n", plan.ErrorMessage)
		}

		fmt.Printf("\n  %-10s %-12s %-22s %s\n", "TASK", "STATUS", "TYPE", "DESCRIPTION")
		fmt.Printf("  %-10s %-12s %-22s %s\n", "----", "------", "----", "-----------")
		for _, t := range plan.Tasks {
			fmt.Printf("  %-10s %-12s %-22s %s\n", t.ID, t.Status, t.Type, t.Description)
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOutput, "output", "text", "output format (text or yaml)")
	rootCmd.AddCommand(statusCmd)
}
