// Package cli provides styled terminal output and interactive review for
// the spice command.
package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color (spicy red).
	PrimaryColor = lipgloss.Color("#FF6B6B")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor indicates results that need a human look.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 1)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	SpiceIcon   = "🌶️"
)

// methodColors tint results by the tier that produced them, from most to
// least trusted.
var methodColors = map[model.Method]lipgloss.Color{
	model.MethodPersonal:   SuccessColor,
	model.MethodContact:    SuccessColor,
	model.MethodRule:       InfoColor,
	model.MethodGlobal:     InfoColor,
	model.MethodEmbedding:  WarningColor,
	model.MethodGenerative: PrimaryColor,
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the spice icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(SpiceIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// FormatMethod renders a tier name as a colored badge.
func FormatMethod(method model.Method) string {
	if method == "" {
		return SubtleStyle.Render("[unresolved]")
	}
	color, ok := methodColors[method]
	if !ok {
		color = SubtleColor
	}
	return lipgloss.NewStyle().Foreground(color).Render("[" + string(method) + "]")
}

// FormatResult renders a one-line summary of a categorization.
func FormatResult(text string, r model.CategorizationResult) string {
	var b strings.Builder
	if r.Resolved() {
		fmt.Fprintf(&b, "%s %s %s %s",
			BoldStyle.Render(r.Category()),
			FormatMethod(r.Method),
			SubtleStyle.Render(fmt.Sprintf("%.0f%%", r.Confidence*100)),
			text)
	} else {
		fmt.Fprintf(&b, "%s %s", FormatMethod(r.Method), text)
	}
	if r.NeedsReview {
		b.WriteString(" " + WarningStyle.Render(WarningIcon+" review"))
	}
	return b.String()
}

// FormatAlternatives lists competing categories, best first.
func FormatAlternatives(alternatives []model.Alternative) string {
	if len(alternatives) == 0 {
		return ""
	}
	parts := make([]string, len(alternatives))
	for i, a := range alternatives {
		parts[i] = fmt.Sprintf("%s %s %.0f%%", a.CategoryID, FormatMethod(a.Method), a.Score*100)
	}
	return SubtleStyle.Render("alternatives: ") + strings.Join(parts, ", ")
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}
