// Command notebook evaluates s-expression notebooks against an external
// evaluator, writing each result as a "#; " comment below its expression.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"nickandperla.net/notebook/pkg/notebook"
)

func main() {
	var (
		evalStr    = flag.String("e", "", "Evaluate notebook text")
		file       = flag.String("f", "", "Evaluate notebook file")
		write      = flag.Bool("w", false, "Write results back to the -f file")
		dbPath     = flag.String("db", envOr("NOTEBOOK_DB", "notebook.db"), "SQLite transcript path (empty to disable)")
		transportF = flag.String("transport", "", "Evaluator transport: process, http or echo")
		command    = flag.String("cmd", os.Getenv("NOTEBOOK_EVALUATOR"), "Evaluator command for the process transport")
		url        = flag.String("url", "http://localhost:7070/eval", "Evaluator URL for the http transport")
		timeout    = flag.Duration("timeout", 30*time.Second, "HTTP evaluator request timeout")
		history    = flag.Int("history", 0, "Print the last N recorded evaluations and exit")
		sessions   = flag.Int("sessions", 0, "Print the last N recorded sessions and exit")
		verbose    = flag.Bool("v", false, "Enable debug logging")
		noColor    = flag.Bool("no-color", false, "Disable colored output")
	)

	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	color := !*noColor && os.Getenv("NO_COLOR") == "" &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	out := newPrinter(os.Stdout, color)

	// Build options
	opts := []notebook.Option{
		notebook.WithLogger(logger),
		notebook.WithTimeout(*timeout),
	}
	if *dbPath != "" {
		opts = append(opts, notebook.WithSQLiteStore(*dbPath))
	}

	// Configure transport
	kind := *transportF
	if kind == "" {
		kind = "echo"
		if *command != "" {
			kind = "process"
		}
	}
	switch kind {
	case "process":
		if *command == "" {
			fmt.Fprintln(os.Stderr, "The process transport needs -cmd or NOTEBOOK_EVALUATOR")
			os.Exit(1)
		}
		opts = append(opts, notebook.WithProcess(*command))
	case "http":
		opts = append(opts, notebook.WithHTTP(*url))
	case "echo":
		opts = append(opts, notebook.WithEcho())
	default:
		fmt.Fprintf(os.Stderr, "Unknown transport: %s (use process, http or echo)\n", kind)
		os.Exit(1)
	}

	// Transcript listings don't need an evaluator.
	if *history > 0 || *sessions > 0 {
		if *dbPath == "" {
			fmt.Fprintln(os.Stderr, "No transcript database (-db is empty)")
			os.Exit(1)
		}
		nb, err := notebook.New(notebook.WithLogger(logger), notebook.WithSQLiteStore(*dbPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer nb.Close()
		if *sessions > 0 {
			err = printSessions(out, nb, *sessions)
		} else {
			err = printHistory(out, nb, *history)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var text string
	switch {
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading file: %v\n", err)
			os.Exit(1)
		}
		text = string(data)

	case *evalStr != "":
		text = *evalStr

	case !term.IsTerminal(int(os.Stdin.Fd())):
		// Piped input
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		text = string(data)

	default:
		nb, err := notebook.New(opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer nb.Close()
		runREPL(nb, color)
		return
	}

	nb, err := notebook.New(append(opts, notebook.WithText(text))...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	code := runBatch(nb, out)
	if code == 0 && *write && *file != "" {
		if err := os.WriteFile(*file, []byte(nb.Text()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			code = 1
		}
	}
	nb.Close()
	os.Exit(code)
}

// runBatch evaluates the whole document and prints it with its results.
func runBatch(nb *notebook.Notebook, out *printer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := nb.EvaluateDocument(); err != nil && !nb.ErrorFlag() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := nb.Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Interrupted: %v\n", err)
		return 1
	}
	out.document(nb.Text())

	if nb.ErrorFlag() {
		out.fault(nb.Err())
		return 1
	}
	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
