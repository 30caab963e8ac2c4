package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Dashboard panel indices.
const (
	panelPlans = iota
	panelSafety
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	plans   []planSnapshot
	safety  *safetySnapshot
	metrics *metricsSnapshot
	alerts  []alertSnapshot

	// State.
	loading bool
	err     error
}

type planSnapshot struct {
	id     string
	status string
	done   int
	total  int
}

type safetySnapshot struct {
	level       string
	gate        string
	operations  int
	constraints int
	snapshots   int
}

type metricsSnapshot struct {
	plansStarted  int
	byOutcome     map[string]int
	tasksExecuted int
	tasksFailed   int
	violations    int
	rollbacks     int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	plans   []planSnapshot
	safety  *safetySnapshot
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	err     error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusCreated   = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	statusCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	gateAllowed = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	gateBlocked = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelPlans,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.plans = msg.plans
		m.safety = msg.safety
		m.metrics = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" ACA Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	plansPanel := m.renderPlansPanel()
	safetyPanel := m.renderSafetyPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		plansPanel = m.applyPanelStyle(panelPlans, plansPanel, colWidth-4)
		safetyPanel = m.applyPanelStyle(panelSafety, safetyPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, plansPanel, safetyPanel, alertsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		plansPanel = m.applyPanelStyle(panelPlans, plansPanel, panelWidth)
		safetyPanel = m.applyPanelStyle(panelSafety, safetyPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, plansPanel, safetyPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderPlansPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Plans"))
	b.WriteString("\n")

	if len(m.plans) == 0 {
		b.WriteString("  No active plans.")
	} else {
		for _, p := range m.plans {
			line := fmt.Sprintf("  %-14s %-10s %d/%d", p.id, p.status, p.done, p.total)
			b.WriteString(styleForPlanStatus(p.status).Render(line))
			b.WriteString("\n")
		}
	}

	if m.metrics != nil {
		b.WriteString(fmt.Sprintf("\n  Started (7d): %d\n", m.metrics.plansStarted))
		for _, outcome := range []string{"completed", "failed", "cancelled"} {
			if count := m.metrics.byOutcome[outcome]; count > 0 {
				b.WriteString(fmt.Sprintf("  %-14s %d\n", outcome, count))
			}
		}
	}

	return b.String()
}

func (m dashboardModel) renderSafetyPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Safety"))
	b.WriteString("\n")

	if m.safety == nil {
		b.WriteString("  Safety controller unavailable.")
		return b.String()
	}

	gate := gateAllowed
	if m.safety.gate != "allowed" {
		gate = gateBlocked
	}
	b.WriteString(fmt.Sprintf("  %-14s %s\n", "Level", m.safety.level))
	b.WriteString(fmt.Sprintf("  %-14s %s\n", "Operations", gate.Render(m.safety.gate)))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Ops count", m.safety.operations))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Constraints", m.safety.constraints))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Snapshots", m.safety.snapshots))

	if m.metrics != nil {
		b.WriteString(fmt.Sprintf("\n  %-14s %d\n", "Violations 7d", m.metrics.violations))
		b.WriteString(fmt.Sprintf("  %-14s %d\n", "Rollbacks 7d", m.metrics.rollbacks))
		b.WriteString(fmt.Sprintf("  %-14s %d / %d\n", "Tasks 7d", m.metrics.tasksExecuted-m.metrics.tasksFailed, m.metrics.tasksExecuted))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForPlanStatus(status string) lipgloss.Style {
	switch status {
	case "running":
		return statusRunning
	case "completed":
		return statusCompleted
	case "failed":
		return statusFailed
	case "created":
		return statusCreated
	case "cancelled":
		return statusCancelled
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	// Active plans with per-task progress.
	if Coordinator != nil {
		for _, plan := range Coordinator.ActivePlans() {
			done := 0
			for _, t := range plan.Tasks {
				if t.Status == models.TaskCompleted {
					done++
				}
			}
			result.plans = append(result.plans, planSnapshot{
				id:     plan.ID,
				status: string(plan.Status),
				done:   done,
				total:  len(plan.Tasks),
			})
		}
	}

	// Controller state.
	if Safety != nil {
		status := Safety.Status()
		result.safety = &safetySnapshot{
			level:       string(status.Level),
			gate:        gateState(status.Paused, status.ManualControl),
			operations:  status.OperationsCount,
			constraints: status.ConstraintsCount,
			snapshots:   status.SnapshotCount,
		}
	}

	// Seven-day metrics from the event log.
	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			plansStarted:  metrics.PlansStarted,
			byOutcome:     metrics.PlansByOutcome,
			tasksExecuted: metrics.TasksExecuted,
			tasksFailed:   metrics.TasksFailed,
			violations:    metrics.SafetyViolations,
			rollbacks:     metrics.Rollbacks,
		}
	}

	// Triggered alerts, highest severity first.
	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		sort.Slice(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		result.alerts = make([]alertSnapshot, 0, len(alerts))
		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for plans, safety state, and alerts",
	Long: `Launch an interactive terminal dashboard showing active plans, the
safety controller's state, and triggered alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coordinator == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
