package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ai-cad-agent/internal/observability"
)

var alertsWebhook string

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts from the event log",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts cover safety violation spikes, high task failure rates, failed
rollbacks, and plans that started but never finished.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}

		fmt.Printf("%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Printf("  [%s] %s (%s)\n", severity, alert.Message, alert.Condition)
			fmt.Printf("         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		notifier := Notifier
		if alertsWebhook != "" {
			notifier = observability.NewWebhookNotifier(alertsWebhook)
		}
		if notifier != nil {
			if err := notifier.Notify(alerts); err != nil {
				return fmt.Errorf("delivering alerts: %w", err)
			}
			fmt.Printf("Delivered %d alert(s) to webhook.\n", len(alerts))
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().StringVar(&alertsWebhook, "webhook", "", "also post triggered alerts to this webhook URL")
	rootCmd.AddCommand(alertsCmd)
}
