package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	acamcp "github.com/valter-silva-au/ai-cad-agent/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the aca MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aca MCP server on stdio",
	Long: `Start the aca MCP server on stdio transport.

The server exposes aca functionality as MCP tools that AI assistants can
call: execute_request, validate_request, plan_status, list_plans,
cancel_plan, execution_history, safety_status, pause_operations,
resume_operations, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		if Safety == nil {
			return fmt.Errorf("safety controller not initialized")
		}

		srv := acamcp.NewServer(Coordinator, Safety, Doc, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
