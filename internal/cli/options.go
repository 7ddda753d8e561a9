package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// EventOptions holds the flags that describe the triggering event.
// Empty fields fall back to the CI environment, then to the repository.
type EventOptions struct {
	Ref         string
	RefType     string
	Event       string
	Environment string
	Repo        string
}

// VersionOptions holds options for version computation.
type VersionOptions struct {
	EventOptions
	LatestTag string
	Commit    string
	Date      string
}

// GateOptions holds options for the scan gate.
type GateOptions struct {
	Reports []string
	NoFail  bool
}

// PlanOptions holds options for the plan command.
type PlanOptions struct {
	VersionOptions
	GateOptions
}

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	XState bool
}

// InitOptions holds options for the init command.
type InitOptions struct {
	Force  bool
	Format string
}

// Styles holds the CLI styling configuration.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Subtle  lipgloss.Style
	Bold    lipgloss.Style
}

// DefaultStyles returns the default CLI styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
}

// printer writes styled lines for text output.
type printer struct {
	w      io.Writer
	styles Styles
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styles: styles}
}

// Success prints a success message.
func (p *printer) Success(msg string) {
	p.println(p.styles.Success.Render("✓ " + msg))
}

// Error prints an error message.
func (p *printer) Error(msg string) {
	p.println(p.styles.Error.Render("✗ " + msg))
}

// Warning prints a warning message.
func (p *printer) Warning(msg string) {
	p.println(p.styles.Warning.Render("⚠ " + msg))
}

// Info prints an info message.
func (p *printer) Info(msg string) {
	p.println(p.styles.Info.Render("ℹ " + msg))
}

// Title prints a title.
func (p *printer) Title(msg string) {
	p.println(p.styles.Title.Render(msg))
}

// Subtle prints muted text.
func (p *printer) Subtle(msg string) {
	p.println(p.styles.Subtle.Render(msg))
}

// Field prints an indented label and value.
func (p *printer) Field(label string, value any) {
	p.println(fmt.Sprintf("  %s %v", p.styles.Bold.Render(label+":"), value))
}

// Blank prints an empty line.
func (p *printer) Blank() {
	p.println("")
}

func (p *printer) println(s string) {
	if p.w != nil {
		io.WriteString(p.w, s+"\n")
	}
}
