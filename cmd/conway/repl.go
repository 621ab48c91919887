package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/peterh/liner"

	"github.com/vito/conway/pkg/conway"
	"github.com/vito/conway/pkg/ioctx"
)

const continuationPrompt = "... "

var (
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type replCommandDef struct {
	name string
	desc string
}

var replCommandDefs = []replCommandDef{
	{"help", "Show this help message"},
	{"exit", "Exit the REPL"},
	{"quit", "Exit the REPL"},
	{"reset", "Discard all variables"},
	{"env", "Show visible variables, innermost first"},
	{"debug", "Toggle printing the syntax tree of each input"},
	{"strict", "Toggle treating undefined variables as errors"},
	{"history", "Show recent input"},
}

// lineReader prompts for input lines and keeps the scrollback history.
// *liner.State implements it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
	Close() error
}

type repl struct {
	ev     *conway.Evaluator
	lines  lineReader
	out    io.Writer
	prompt string
	color  bool
	debug  bool

	// history persists the scrollback between sessions; nil when disabled.
	history *replHistory
}

func runREPL(ctx context.Context, cfg Config, proj project) error {
	ln := liner.NewLiner()
	defer ln.Close() //nolint:errcheck
	ln.SetCtrlCAborts(true)

	r := newREPL(ln, os.Stdout, proj.config.REPL.Prompt, ioctx.IsTerminal(os.Stdout))
	r.debug = cfg.Debug
	r.ev.SetStrict(cfg.runOptions(proj).Strict)
	if proj.config.REPL.HistoryEnabled() {
		r.history = newReplHistory()
		r.loadHistory()
		defer r.saveHistory()
	}
	return r.Run(ctx)
}

func newREPL(lines lineReader, out io.Writer, prompt string, color bool) *repl {
	if prompt == "" {
		prompt = conway.DefaultPrompt
	}
	return &repl{
		ev:     conway.NewEvaluator(conway.NewEnvironment()),
		lines:  lines,
		out:    out,
		prompt: prompt,
		color:  color,
	}
}

func (r *repl) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *repl) println(args ...any) {
	fmt.Fprintln(r.out, args...)
}

// Run reads input until EOF or :exit. Errors are printed and the session
// carries on with whatever bindings survived.
func (r *repl) Run(ctx context.Context) error {
	ctx = ioctx.StdoutToContext(ctx, r.out)
	ctx = ioctx.StderrToContext(ctx, r.out)

	r.println(r.style(dimStyle, "Welcome to the Conway REPL! Type :help for commands."))

	for {
		input, err := r.read()
		if errors.Is(err, io.EOF) {
			r.println()
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		r.lines.AppendHistory(historyEntry(trimmed))

		if strings.HasPrefix(trimmed, ":") {
			if quit := r.handleCommand(ctx, trimmed[1:]); quit {
				return nil
			}
			continue
		}
		r.handleInput(ctx, input)
	}
}

// read prompts until the input no longer stops inside an unclosed block.
// Ctrl-C discards whatever has been typed so far. At EOF, unfinished input
// is returned once so that its syntax error gets reported.
func (r *repl) read() (string, error) {
	var pending strings.Builder
	for {
		prompt := r.prompt
		if pending.Len() > 0 {
			prompt = continuationPrompt
		}

		line, err := r.lines.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			pending.Reset()
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && pending.Len() > 0 {
				return pending.String(), nil
			}
			return "", err
		}

		if pending.Len() > 0 {
			pending.WriteByte('\n')
		} else if strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, nil
		}
		pending.WriteString(line)

		if !incomplete(pending.String()) {
			return pending.String(), nil
		}
	}
}

// incomplete reports whether input stops inside an unclosed block.
func incomplete(input string) bool {
	_, err := conway.Parse("", []byte(input))
	var parseErr *conway.ParseError
	return errors.As(err, &parseErr) &&
		parseErr.Rule == "Block" &&
		parseErr.Found == "end of input"
}

func (r *repl) handleInput(ctx context.Context, input string) {
	nodes, err := conway.Parse("<repl>", []byte(input))
	if err != nil {
		var parseErr *conway.ParseError
		if errors.As(err, &parseErr) && parseErr.Loc != nil {
			err = conway.NewSourceError(parseErr, parseErr.Loc, input)
		}
		r.printError(err)
		return
	}

	if r.debug {
		if err := conway.Dump(r.out, nodes, conway.DumpPretty); err != nil {
			r.printError(err)
		}
	}

	r.ev.SetSource("<repl>", input)
	for _, node := range nodes {
		val, err := r.ev.Eval(ctx, node)
		if err != nil {
			r.printError(err)
			return
		}
		r.println(r.style(resultStyle, "=> "+val.String()))
	}
}

func (r *repl) printError(err error) {
	r.println(r.style(errorStyle, "Error: ")+renderError(err, r.color))
}

func (r *repl) handleCommand(ctx context.Context, cmdLine string) (quit bool) {
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		r.println(r.style(errorStyle, "empty command"))
		return false
	}

	switch parts[0] {
	case "help":
		r.println("Available commands:")
		maxName := 0
		for _, cmd := range replCommandDefs {
			maxName = max(maxName, len(cmd.name))
		}
		for _, cmd := range replCommandDefs {
			r.println(r.style(dimStyle, fmt.Sprintf("  :%-*s - %s", maxName, cmd.name, cmd.desc)))
		}
		r.println()
		r.println(r.style(dimStyle, "Type Conway statements to evaluate them. Unclosed blocks continue on the next line."))

	case "exit", "quit":
		return true

	case "reset":
		r.ev.Env().Reset()
		r.println(r.style(resultStyle, "Environment reset."))

	case "env":
		bindings := r.ev.Env().Bindings()
		if len(bindings) == 0 {
			r.println(r.style(dimStyle, "No variables defined."))
			return false
		}
		for _, b := range bindings {
			r.println(fmt.Sprintf("  %s = %s", b.Name, conway.FormatValue(b.Value)))
		}

	case "debug":
		r.debug = !r.debug
		r.println(r.style(resultStyle, "Debug mode "+onOff(r.debug)+"."))

	case "strict":
		r.ev.SetStrict(!r.ev.Strict())
		r.println(r.style(resultStyle, "Strict mode "+onOff(r.ev.Strict())+"."))

	case "history":
		entries := recentHistory(r.lines, 20)
		if len(entries) == 0 {
			r.println(r.style(dimStyle, "No history yet."))
			return false
		}
		r.println("Recent history:")
		for i, entry := range entries {
			r.println(r.style(dimStyle, fmt.Sprintf("  %d: %s", i+1, entry)))
		}

	default:
		r.println(r.style(errorStyle, fmt.Sprintf("unknown command: %s", parts[0])))
	}

	return false
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
