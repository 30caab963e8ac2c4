package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past plan executions",
	Long:  `Show the execution history, newest first. Every plan that reached a terminal state has one entry.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		records, err := Coordinator.History(historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No executions recorded.")
			return nil
		}

		fmt.Printf("%-20s %-14s %-11s %-6s %-10s %s\n", "WHEN", "PLAN", "STATUS", "TASKS", "TIME", "DESCRIPTION")
		fmt.Printf("%-20s %-14s %-11s %-6s %-10s %s\n", "----", "----", "------", "-----", "----", "-----------")
		for _, rec := range records {
			fmt.Printf("%-20s %-14s %-11s %-6d %-10s %s\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				rec.PlanID,
				rec.Status,
				rec.TaskCount,
				rec.Duration.Round(time.Millisecond),
				rec.Description)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries to show")
	rootCmd.AddCommand(historyCmd)
}
