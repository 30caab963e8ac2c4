package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

var plansAll bool

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List execution plans",
	Long: `List plans the coordinator is tracking. By default only active plans
are shown; use --all to include plans that already reached a terminal
state this session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		plans := Coordinator.ActivePlans()
		if plansAll {
			plans = append(plans, Coordinator.CompletedPlans()...)
		}

		if len(plans) == 0 {
			fmt.Println("No plans found.")
			return nil
		}

		sort.Slice(plans, func(i, j int) bool {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		})

		printPlanTable(plans)
		return nil
	},
}

// printPlanTable prints one row per plan.
func printPlanTable(plans []*models.ExecutionPlan) {
	fmt.Printf("  %-14s %-12s %-6s %s\n", "ID", "STATUS", "TASKS", "DESCRIPTION")
	fmt.Printf("  %-14s %-12s %-6s %s\n", "--", "------", "-----", "-----------")
	for _, p := range plans {
		fmt.Printf("  %-14s %-12s %-6d %s\n", p.ID, p.Status, len(p.Tasks), p.Description)
	}
}

func init() {
	plansCmd.Flags().BoolVar(&plansAll, "all", false, "Include plans that already finished")
	rootCmd.AddCommand(plansCmd)
}
