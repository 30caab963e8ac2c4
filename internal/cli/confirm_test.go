package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

func confirmDetails() models.OperationDetails {
	return models.OperationDetails{
		Title:             "Confirm task-3",
		Description:       "remove Bracket from the document",
		RiskLevel:         models.RiskDestructive,
		AffectedEntityIDs: []string{"Bracket"},
		Warnings:          []string{"destructive operation: remove_object"},
	}
}

func TestTerminalConfirmation_Answers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes short", "y\n", true},
		{"yes long", "yes\n", true},
		{"yes uppercase", "YES\n", true},
		{"no short", "n\n", false},
		{"no long", "no\n", false},
		{"empty defaults to no", "\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &terminalConfirmation{
				in:  strings.NewReader(tt.input),
				out: &bytes.Buffer{},
			}
			got, err := c.Confirm(confirmDetails())
			if err != nil {
				t.Fatalf("Confirm: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTerminalConfirmation_EOFDenies(t *testing.T) {
	c := &terminalConfirmation{
		in:  strings.NewReader(""),
		out: &bytes.Buffer{},
	}
	got, err := c.Confirm(confirmDetails())
	if err != nil {
		t.Fatalf("EOF should deny without error, got %v", err)
	}
	if got {
		t.Error("EOF should deny")
	}
}

func TestTerminalConfirmation_ReasksOnGarbage(t *testing.T) {
	out := &bytes.Buffer{}
	c := &terminalConfirmation{
		in:  strings.NewReader("maybe\ny\n"),
		out: out,
	}
	got, err := c.Confirm(confirmDetails())
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !got {
		t.Error("second answer y should approve")
	}
	if !strings.Contains(out.String(), "Answer y or n.") {
		t.Error("garbage input should prompt for y or n")
	}
	if strings.Count(out.String(), "Proceed? [y/N]:") != 2 {
		t.Errorf("prompt should repeat, output:\n%s", out.String())
	}
}

func TestTerminalConfirmation_RendersDetails(t *testing.T) {
	out := &bytes.Buffer{}
	c := &terminalConfirmation{
		in:  strings.NewReader("n\n"),
		out: out,
	}
	if _, err := c.Confirm(confirmDetails()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	rendered := out.String()
	for _, want := range []string{"Confirm task-3", "Affects: Bracket", "destructive operation: remove_object"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("prompt missing %q:\n%s", want, rendered)
		}
	}
}

func TestRiskBadge_CoversAllLevels(t *testing.T) {
	for _, level := range []models.RiskLevel{
		models.RiskSafe, models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskDestructive,
	} {
		badge := riskBadge(level)
		if !strings.Contains(badge, strings.ToUpper(string(level))) {
			t.Errorf("badge for %s = %q", level, badge)
		}
	}
}
