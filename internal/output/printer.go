// Package output renders command results for the terminal.
//
// [Printer] styles output with lipgloss. Styles are bound to the writer's
// renderer, so output to a pipe or buffer carries no escape sequences.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes styled output.
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer

	header  lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
	key     lipgloss.Style
}

// NewPrinter returns a Printer writing to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter returns a Printer writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:        w,
		renderer: r,
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		success:  r.NewStyle().Foreground(lipgloss.Color("70")).Bold(true),
		failure:  r.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("179")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("245")),
		key:      r.NewStyle().Foreground(lipgloss.Color("110")).Width(14),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Header prints a bold section title.
func (p *Printer) Header(title string) {
	fmt.Fprintln(p.w, p.header.Render(title))
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Failure prints a failure line.
func (p *Printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.failure.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.w, p.warning.Render("! "+fmt.Sprintf(format, args...)))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Muted prints a dimmed line.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(format, args...)))
}

// KeyValue prints an aligned "key value" line.
func (p *Printer) KeyValue(key string, value any) {
	fmt.Fprintf(p.w, "%s %v\n", p.key.Render(key), value)
}

// Table prints rows under headers. Nothing is printed for zero rows.
func (p *Printer) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		p.Muted("(none)")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.renderer.NewStyle().Bold(true).Padding(0, 1)
			}
			return p.renderer.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(p.w, t.Render())
}

// ProgressBar renders percent (0-100) as a fixed-width bar.
func (p *Printer) ProgressBar(percent int) string {
	const width = 20
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return p.success.Render(strings.Repeat("█", filled)) +
		p.muted.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3d%%", percent)
}
