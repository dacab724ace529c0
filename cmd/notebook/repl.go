package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"nickandperla.net/notebook/pkg/notebook"
)

const (
	promptMain = "nb> "
	promptMore = "...  "
)

func printBanner(out *printer) {
	fmt.Fprintln(out.w, out.paint(colorBold+colorCyan, "notebook REPL")+" "+out.paint(colorGray, "(:help for commands, Ctrl+D to exit)"))
	fmt.Fprintln(out.w)
}

func printHelp(out *printer) {
	fmt.Fprintln(out.w, "Commands:")
	fmt.Fprintln(out.w, "  :doc              print the notebook")
	fmt.Fprintln(out.w, "  :run              evaluate the whole notebook")
	fmt.Fprintln(out.w, "  :clear            remove every result")
	fmt.Fprintln(out.w, "  :next / :prev     show the next or previous variant of the latest result")
	fmt.Fprintln(out.w, "  :ack              acknowledge an evaluator error")
	fmt.Fprintln(out.w, "  :load FILE        replace the notebook with FILE")
	fmt.Fprintln(out.w, "  :write FILE       save the notebook to FILE")
	fmt.Fprintln(out.w, "  :history [N]      recorded evaluations")
	fmt.Fprintln(out.w, "  :stats            evaluation counters")
	fmt.Fprintln(out.w, "  :quit             exit")
}

// repl holds the interactive state around one notebook.
type repl struct {
	nb     *notebook.Notebook
	out    *printer
	latest int // line of the latest result, -1 if none
}

func runREPL(nb *notebook.Notebook, color bool) {
	// History file (~/.notebook_history)
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".notebook_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptMain,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init failed: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	r := &repl{nb: nb, out: newPrinter(rl.Stdout(), color), latest: -1}
	printBanner(r.out)

	var accumulated strings.Builder
	for {
		if accumulated.Len() > 0 {
			rl.SetPrompt(r.out.paint(colorGray, promptMore))
		} else {
			rl.SetPrompt(r.out.paint(colorGreen, promptMain))
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if accumulated.Len() > 0 {
					// Cancel multi-line input
					accumulated.Reset()
					continue
				}
				r.out.note("(use :quit or Ctrl+D to exit)")
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(r.out.w)
			}
			return
		}

		if accumulated.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			if !r.command(strings.Fields(strings.TrimSpace(line))) {
				return
			}
			continue
		}

		accumulated.WriteString(line)
		accumulated.WriteString("\n")
		source := accumulated.String()
		if !notebook.Balanced(source) {
			continue
		}
		accumulated.Reset()

		source = strings.TrimRight(source, "\n")
		if strings.TrimSpace(source) == "" {
			continue
		}
		r.evaluate(source)
	}
}

// evaluate appends source to the notebook and evaluates the expression it
// ends with.
func (r *repl) evaluate(source string) {
	r.nb.Append(source)
	line, _ := r.nb.Cursor()
	if err := r.nb.EvaluateNearestExpression(); err != nil {
		r.out.fault(err)
		return
	}
	if !r.wait() {
		return
	}
	if view, ok := r.nb.ViewAt(line + 1); ok {
		r.latest = line + 1
		r.out.result(view)
	}
}

// wait blocks until the evaluator has replied. It returns false on a fault
// or an interrupt.
func (r *repl) wait() bool {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := r.nb.Wait(ctx); err != nil {
		r.out.note("interrupted; the reply will still be written when it arrives")
		return false
	}
	if r.nb.ErrorFlag() {
		r.out.fault(r.nb.Err())
		r.out.note("use :ack to continue")
		return false
	}
	return true
}

// command runs a REPL command. It returns false to exit.
func (r *repl) command(args []string) bool {
	switch args[0] {
	case ":quit", ":q", ":exit":
		return false

	case ":help", ":h":
		printHelp(r.out)

	case ":doc":
		r.out.document(r.nb.Text())

	case ":run":
		if err := r.nb.EvaluateDocument(); err != nil {
			r.out.fault(err)
			return true
		}
		r.wait()
		r.out.document(r.nb.Text())

	case ":clear":
		n := r.nb.ClearAllResults()
		r.latest = -1
		r.out.note(fmt.Sprintf("removed %d result %s", n, plural(n, "line", "lines")))

	case ":next", ":prev":
		delta := 1
		if args[0] == ":prev" {
			delta = -1
		}
		if r.latest < 0 {
			r.out.note("no result")
			return true
		}
		r.nb.SetCursor(r.latest, 0)
		if !r.nb.CycleDisplayedVariant(delta) {
			r.out.note("no result")
			r.latest = -1
			return true
		}
		view, _ := r.nb.ViewAt(r.latest)
		r.out.result(view)

	case ":ack":
		if !r.nb.AcknowledgeError() {
			r.out.note("no error to acknowledge")
		}

	case ":load":
		if len(args) < 2 {
			r.out.note("usage: :load FILE")
			return true
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			r.out.fault(err)
			return true
		}
		r.nb.SetText(string(data))
		r.latest = -1
		r.out.document(r.nb.Text())

	case ":write":
		if len(args) < 2 {
			r.out.note("usage: :write FILE")
			return true
		}
		if err := os.WriteFile(args[1], []byte(r.nb.Text()), 0644); err != nil {
			r.out.fault(err)
		}

	case ":history":
		limit := 10
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				r.out.note("usage: :history [N]")
				return true
			}
			limit = n
		}
		if err := printHistory(r.out, r.nb, limit); err != nil {
			r.out.fault(err)
		}

	case ":stats":
		sent, faults, waited := r.nb.Stats()
		fmt.Fprintf(r.out.w, "session %s: %s, %d sent, %d %s, %s waiting\n",
			r.nb.SessionID(), r.nb.State(), sent, faults, plural(faults, "fault", "faults"), waited)

	default:
		r.out.note("unknown command " + args[0] + " (:help for commands)")
	}
	return true
}
