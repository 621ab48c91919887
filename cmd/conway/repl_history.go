package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/vito/conway/pkg/conway"
)

// maxHistoryEntries bounds the history file. It matches the scrollback
// liner keeps in memory.
const maxHistoryEntries = liner.HistoryLimit

// replHistory persists the line reader's scrollback, one entry per line.
type replHistory struct {
	file string
}

func newReplHistory() *replHistory {
	return &replHistory{file: historyFilePath()}
}

// historyFilePath is $XDG_DATA_HOME/conway/history, falling back to
// ~/.local/share.
func historyFilePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "conway_history")
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "conway", "history")
}

// Load feeds the history file into lines. A missing file is not an error.
func (h *replHistory) Load(lines lineReader) error {
	f, err := os.Open(h.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck
	_, err = lines.ReadHistory(f)
	return err
}

// Save writes the newest maxHistoryEntries entries of lines back to the
// history file.
func (h *replHistory) Save(lines lineReader) error {
	if err := os.MkdirAll(filepath.Dir(h.file), 0755); err != nil {
		return err
	}
	var sb strings.Builder
	for _, entry := range recentHistory(lines, maxHistoryEntries) {
		sb.WriteString(entry)
		sb.WriteByte('\n')
	}
	return os.WriteFile(h.file, []byte(sb.String()), 0644)
}

func (r *repl) loadHistory() {
	if r.history == nil {
		return
	}
	if err := r.history.Load(r.lines); err != nil {
		slog.Debug("failed to load history", "file", r.history.file, "error", err)
	}
}

func (r *repl) saveHistory() {
	if r.history == nil {
		return
	}
	if err := r.history.Save(r.lines); err != nil {
		slog.Debug("failed to save history", "file", r.history.file, "error", err)
	}
}

// recentHistory returns the last n entries of the scrollback, oldest first.
func recentHistory(lines lineReader, n int) []string {
	var buf bytes.Buffer
	if _, err := lines.WriteHistory(&buf); err != nil || buf.Len() == 0 {
		return nil
	}
	entries := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	return entries[max(0, len(entries)-n):]
}

// historyEntry flattens input onto a single line so that recalling it
// replays the whole statement. Comments are dropped first; otherwise they
// would swallow everything joined after them.
func historyEntry(input string) string {
	if !strings.Contains(input, "\n") {
		return input
	}
	lines := strings.Split(input, "\n")
	if _, comments, err := conway.Lex("", []byte(input)); err == nil {
		for _, c := range comments {
			i := c.Line - 1
			if i < 0 || i >= len(lines) {
				continue
			}
			lines[i] = strings.TrimSuffix(strings.TrimRight(lines[i], " \t\r"), c.Text)
		}
	}
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
