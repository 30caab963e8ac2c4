package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// Risk badge styles for the confirmation prompt.
var (
	riskBadgeHigh = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("196")).
			Padding(0, 1)

	riskBadgeMedium = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("226")).
			Padding(0, 1)

	riskBadgeLow = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("240")).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

// terminalConfirmation asks the user to approve a risky operation on the
// terminal. It satisfies the safety controller's confirmation channel.
type terminalConfirmation struct {
	in  io.Reader
	out io.Writer
}

// NewTerminalConfirmation returns a confirmation channel prompting on
// stdin/stdout.
func NewTerminalConfirmation() *terminalConfirmation {
	return &terminalConfirmation{in: os.Stdin, out: os.Stdout}
}

// Confirm renders the operation details and reads a yes/no answer. Only an
// explicit yes approves; everything else, including EOF, denies.
func (c *terminalConfirmation) Confirm(details models.OperationDetails) (bool, error) {
	fmt.Fprintf(c.out, "\n%s %s\n", riskBadge(details.RiskLevel), details.Title)
	if details.Description != "" {
		fmt.Fprintf(c.out, "  %s\n", details.Description)
	}
	if len(details.AffectedEntityIDs) > 0 {
		fmt.Fprintf(c.out, "  Affects: %s\n", strings.Join(details.AffectedEntityIDs, ", "))
	}
	for _, w := range details.Warnings {
		fmt.Fprintf(c.out, "  %s\n", warningStyle.Render("! "+w))
	}

	reader := bufio.NewReader(c.in)
	for {
		fmt.Fprint(c.out, "Proceed? [y/N]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, fmt.Errorf("reading confirmation: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		default:
			fmt.Fprintln(c.out, "  Answer y or n.")
		}
	}
}

func riskBadge(level models.RiskLevel) string {
	switch {
	case level.AtLeast(models.RiskHigh):
		return riskBadgeHigh.Render(strings.ToUpper(string(level)))
	case level.AtLeast(models.RiskMedium):
		return riskBadgeMedium.Render(strings.ToUpper(string(level)))
	default:
		return riskBadgeLow.Render(strings.ToUpper(string(level)))
	}
}
