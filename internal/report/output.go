// Package report renders reload cycles to the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/itsmostafa/funpad/internal/reload"
)

var (
	// titleStyle for bold red headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// symbolStyle for names merged into the namespace
	symbolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	headerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	cycleBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("255")).
				Background(lipgloss.Color("160")).
				Padding(0, 2)
)

// Header describes the session for FormatHeader.
type Header struct {
	Path    string
	Session string
	WebAddr string
	Version string
}

// FormatHeader renders the session header box.
func FormatHeader(w io.Writer, h Header) {
	lines := []string{
		fmt.Sprintf("%s %s  %s %s", dimStyle.Render("funpad"), titleStyle.Render(h.Version),
			dimStyle.Render("Session:"), h.Session),
		fmt.Sprintf("%s %s", dimStyle.Render("Watching:"), h.Path),
	}
	if h.WebAddr != "" {
		lines = append(lines, fmt.Sprintf("%s %s", dimStyle.Render("Web:"), successStyle.Render("http://"+h.WebAddr)))
	}
	fmt.Fprintln(w, headerBoxStyle.Render(strings.Join(lines, "\n")))
}

// Printer is a reload.Reporter writing to a terminal.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Report renders one cycle.
func (p *Printer) Report(c reload.Cycle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	FormatCycle(p.w, c)
}

// FormatCycle renders a cycle: banner, merged names, main outcome, errors.
func FormatCycle(w io.Writer, c reload.Cycle) {
	banner := fmt.Sprintf(" RELOAD %d ", c.Seq)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", cycleBannerStyle.Render(banner), dimStyle.Render(fmt.Sprintf("%s %.1fms", c.Load, float64(c.Duration.Microseconds())/1000)))

	switch c.Outcome() {
	case reload.OutcomeLoadError, reload.OutcomeError:
		FormatError(w, "Load failed", c.Err)
		return
	}

	if len(c.Accepted) > 0 {
		names := make([]string, len(c.Accepted))
		for i, name := range c.Accepted {
			names[i] = symbolStyle.Render(name)
		}
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("New locals:"), strings.Join(names, ", "))
	} else {
		fmt.Fprintln(w, dimStyle.Render("No changes"))
	}
	if len(c.Unchanged) > 0 {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Kept:"), dimStyle.Render(strings.Join(c.Unchanged, ", ")))
	}

	if !c.MainInvoked {
		return
	}
	if c.Outcome() == reload.OutcomeEntryError {
		fmt.Fprintln(w, "Executing main... "+errorStyle.Render("failed"))
		FormatError(w, "main raised", c.Err)
		return
	}
	if c.MainResult == "" {
		fmt.Fprintln(w, "Executing main... "+successStyle.Render("Done"))
		return
	}
	fmt.Fprintln(w, "Executing main...")
	fmt.Fprintln(w, c.MainResult)
}

// FormatError renders err in a red box with its full diagnostic.
func FormatError(w io.Writer, title string, err error) {
	if err == nil {
		return
	}
	content := errorStyle.Render(title) + "\n" + strings.TrimRight(err.Error(), "\n")
	fmt.Fprintln(w, errorBoxStyle.Render(content))
}
