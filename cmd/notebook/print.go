package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"nickandperla.net/notebook/pkg/notebook"
)

// ---- ANSI colors ----

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

// printer writes notebook text, coloring result lines when enabled.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer, color bool) *printer {
	return &printer{w: w, color: color}
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + colorReset
}

// document prints text, highlighting result lines.
func (p *printer) document(text string) {
	text = strings.TrimSuffix(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#; ") {
			line = p.paint(colorCyan, line)
		}
		fmt.Fprintln(p.w, line)
	}
}

// result prints one result view with its variant label.
func (p *printer) result(view *notebook.View) {
	label := ""
	if len(view.Variants()) > 1 {
		label = p.paint(colorGray, " ["+view.Label()+"]")
	}
	lines := strings.Split(view.Render(), "\n")
	for i, line := range lines {
		if i == len(lines)-1 {
			fmt.Fprintln(p.w, p.paint(colorCyan, "#; "+line)+label)
			continue
		}
		fmt.Fprintln(p.w, p.paint(colorCyan, "#; "+line))
	}
}

func (p *printer) fault(err error) {
	fmt.Fprintln(p.w, p.paint(colorRed, "error: "+err.Error()))
}

func (p *printer) note(s string) {
	fmt.Fprintln(p.w, p.paint(colorGray, s))
}

func printHistory(p *printer, nb *notebook.Notebook, limit int) error {
	entries, err := nb.History(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		p.note("no recorded evaluations")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(p.w, "%s %s %s\n",
			p.paint(colorGray, fmt.Sprintf("%-14s", humanize.Time(e.At))),
			p.paint(colorBold, firstLine(e.Source)),
			p.paint(colorGray, "("+e.Latency.String()+")"))
		if e.Failed() {
			fmt.Fprintln(p.w, "  "+p.paint(colorRed, "error: "+e.Fault))
			continue
		}
		fmt.Fprintln(p.w, "  "+p.paint(colorGreen, "=> "+firstLine(e.Raw)))
	}
	return nil
}

func printSessions(p *printer, nb *notebook.Notebook, limit int) error {
	sums, err := nb.Sessions(limit)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		p.note("no recorded sessions")
		return nil
	}
	for _, s := range sums {
		faults := ""
		if s.Faults > 0 {
			faults = p.paint(colorRed, fmt.Sprintf(", %s %s", humanize.Comma(int64(s.Faults)), plural(s.Faults, "fault", "faults")))
		}
		fmt.Fprintf(p.w, "%s  %s %s%s  %s\n",
			p.paint(colorBold, s.Session),
			humanize.Comma(int64(s.Entries)),
			plural(s.Entries, "evaluation", "evaluations"),
			faults,
			p.paint(colorGray, "last "+humanize.Time(s.Last)))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
