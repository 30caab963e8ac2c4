package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <plan-id>",
	Short: "Cancel an active plan",
	Long: `Cancel an active plan. Tasks not yet dispatched will not run;
a task already executing finishes on its own.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		if err := Coordinator.CancelPlan(args[0]); err != nil {
			return err
		}
		fmt.Printf("Plan %s cancelled.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
