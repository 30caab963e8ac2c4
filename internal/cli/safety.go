package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var safetyCmd = &cobra.Command{
	Use:   "safety",
	Short: "Show safety controller state",
	Long: `Show the safety controller's current state: level, resource limits,
pause and manual-control flags, and rollback snapshot count.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}

		status := Safety.Status()
		fmt.Printf("Safety level:      %s\n", status.Level)
		fmt.Printf("Operations:        %s\n", gateState(status.Paused, status.ManualControl))
		fmt.Printf("Operations count:  %d\n", status.OperationsCount)
		fmt.Printf("Constraints:       %d\n", status.ConstraintsCount)
		fmt.Printf("Snapshots held:    %d\n", status.SnapshotCount)
		fmt.Println("\nLimits:")
		fmt.Printf("  Max execution time:  %s\n", status.Limits.MaxExecutionTime)
		fmt.Printf("  Max memory:          %d MB\n", status.Limits.MaxMemoryMB)
		fmt.Printf("  Max entities:        %d\n", status.Limits.MaxEntities)
		fmt.Printf("  Max ops per minute:  %d\n", status.Limits.MaxOperationsPerMinute)
		return nil
	},
}

// gateState renders the pause gate as a single word plus the reason.
func gateState(paused, manual bool) string {
	switch {
	case paused && manual:
		return "blocked (paused, manual control)"
	case paused:
		return "blocked (paused)"
	case manual:
		return "blocked (manual control)"
	default:
		return "allowed"
	}
}

var safetyPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause all operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}
		Safety.Pause()
		fmt.Println("Operations paused.")
		return nil
	},
}

var safetyResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume paused operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}
		Safety.Resume()
		fmt.Println("Operations resumed.")
		return nil
	},
}

var safetyManualCmd = &cobra.Command{
	Use:   "manual on|off",
	Short: "Hand control of the document to the user, or take it back",
	Long: `Enable or disable manual control. While manual control is on, no
tasks are dispatched; the document belongs to the user.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}
		switch args[0] {
		case "on":
			Safety.EnableManualControl()
			fmt.Println("Manual control enabled.")
		case "off":
			Safety.DisableManualControl()
			fmt.Println("Manual control disabled.")
		default:
			return fmt.Errorf("argument must be on or off, got %q", args[0])
		}
		return nil
	},
}

var safetySnapshotsClear bool

var safetySnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List rollback snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}

		if safetySnapshotsClear {
			Safety.ClearSnapshots()
			fmt.Println("All snapshots released.")
			return nil
		}

		snapshots := Safety.Snapshots()
		if len(snapshots) == 0 {
			fmt.Println("No snapshots held.")
			return nil
		}
		fmt.Printf("%-28s %-20s %-10s %s\n", "SNAPSHOT", "CREATED", "ENTITIES", "OPERATION")
		fmt.Printf("%-28s %-20s %-10s %s\n", "--------", "-------", "--------", "---------")
		for _, snap := range snapshots {
			fmt.Printf("%-28s %-20s %-10d %s\n",
				snap.ID,
				snap.CreatedAt.Format(time.RFC3339),
				len(snap.EntityIDs),
				snap.OperationID)
		}
		return nil
	},
}

var safetyRollbackRelease bool

var safetyRollbackCmd = &cobra.Command{
	Use:   "rollback <snapshot-id>",
	Short: "Roll the document back to a snapshot",
	Long: `Roll the document back to a snapshot: entities created since the
snapshot are removed, then the document is recomputed. With --release
the snapshot is dropped without touching the document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}

		if safetyRollbackRelease {
			if !Safety.ReleaseSnapshot(args[0]) {
				return fmt.Errorf("snapshot %s not found", args[0])
			}
			fmt.Printf("Snapshot %s released.\n", args[0])
			return nil
		}

		if !Safety.ExecuteRollback(args[0]) {
			return fmt.Errorf("rollback to snapshot %s failed", args[0])
		}
		fmt.Printf("Rolled back to snapshot %s.\n", args[0])
		return nil
	},
}

func init() {
	safetySnapshotsCmd.Flags().BoolVar(&safetySnapshotsClear, "clear", false, "release every held snapshot")
	safetyRollbackCmd.Flags().BoolVar(&safetyRollbackRelease, "release", false, "drop the snapshot without rolling back")
	safetyCmd.AddCommand(safetyPauseCmd)
	safetyCmd.AddCommand(safetyResumeCmd)
	safetyCmd.AddCommand(safetyManualCmd)
	safetyCmd.AddCommand(safetySnapshotsCmd)
	safetyCmd.AddCommand(safetyRollbackCmd)
	rootCmd.AddCommand(safetyCmd)
}
