// Package logging constructs the *slog.Logger the orchestrator and every
// pipeline collaborator log through.
package logging

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var levelStyles = map[slog.Level]lipgloss.Style{
	slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// New builds the process-wide logger. Verbose enables slog.LevelDebug;
// otherwise the level is slog.LevelInfo. Output always goes to stderr, so
// stdout stays clean for the CLI's own status output.
//
// A TTY gets a colorized text handler (level name styled via lipgloss);
// redirected to a file or pipe,
// logs go out as plain JSON for downstream parsing.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			lvl, _ := a.Value.Any().(slog.Level)
			style, ok := levelStyles[lvl]
			if !ok {
				return a
			}
			return slog.String(slog.LevelKey, style.Render(lvl.String()))
		},
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
