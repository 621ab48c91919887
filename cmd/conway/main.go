package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/ansi"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vito/conway/pkg/conway"
	"github.com/vito/conway/pkg/ioctx"
)

// Config holds the application configuration
type Config struct {
	Debug      bool
	Strict     bool
	ConfigPath string
}

// project is the conway.toml in effect, if any.
type project struct {
	path   string
	config *conway.ProjectConfig
}

func main() {
	var cfg Config

	// Create the root command
	rootCmd := &cobra.Command{
		Use:   "conway [flags] [file]",
		Short: "Conway language interpreter",
		Long: `Conway is a small scripting language with literals, unary operators,
variables and lexically scoped blocks.`,
		Example: `  # Run a Conway script
  conway script.cy

  # Start interactive REPL
  conway

  # Run with debug logging enabled
  conway --debug script.cy`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cfg.Debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := loadProject(cfg)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return conway.RunFile(cmd.Context(), args[0], cfg.runOptions(proj))
			}
			return runREPL(cmd.Context(), cfg, proj)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&cfg.Strict, "strict", false, "Treat undefined variables as errors")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigPath, "config", "", "Path to conway.toml (searched upward from the working directory by default)")

	rootCmd.AddCommand(runCmd(&cfg))
	rootCmd.AddCommand(fmtCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(lspCmd(&cfg))

	ctx := context.Background()
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithCommit("dev"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, renderError(err, ioctx.IsTerminal(w)))
		}),
	); err != nil {
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if ioctx.IsTerminal(os.Stderr) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}
	slog.SetDefault(slog.New(handler))
}

// renderError shows errors with a source excerpt, dropping the colors when
// the output is not a terminal.
func renderError(err error, color bool) string {
	msg := strings.TrimRight(conway.Highlight(err), "\n")
	if !color {
		msg = ansi.Strip(msg)
	}
	return msg
}

func loadProject(cfg Config) (project, error) {
	if cfg.ConfigPath != "" {
		config, err := conway.LoadProjectConfig(cfg.ConfigPath)
		if err != nil {
			return project{}, err
		}
		return project{path: cfg.ConfigPath, config: config}, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return project{}, err
	}
	path, config, err := conway.FindProjectConfig(cwd)
	if err != nil {
		return project{}, fmt.Errorf("failed to load %s: %w", conway.ProjectFileName, err)
	}
	if config == nil {
		return project{config: conway.DefaultProjectConfig()}, nil
	}
	slog.Debug("loaded project config", "path", path)
	return project{path: path, config: config}, nil
}

func (cfg Config) runOptions(proj project) conway.RunOptions {
	return conway.RunOptions{
		Strict: cfg.Strict || proj.config.Run.Strict,
		Debug:  cfg.Debug,
	}
}

func runCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run [file...]",
		Short: "Run Conway source files in order",
		Long: `Run evaluates each file in order against one environment, printing the
value of every statement. With no arguments it runs run.main from conway.toml.`,
		Example: `  # Run two files sharing their variables
  conway run prelude.cy main.cy

  # Run the project's main file
  conway run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := loadProject(*cfg)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				mainFile := proj.config.MainFile(proj.path)
				if mainFile == "" {
					return errors.New("no files given and no run.main set in " + conway.ProjectFileName)
				}
				args = []string{mainFile}
			}
			return conway.RunFiles(cmd.Context(), args, cfg.runOptions(proj))
		},
	}
}

func parseCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse [flags] file",
		Short: "Print the syntax tree of a Conway source file",
		Example: `  # Dump the tree as YAML
  conway parse --format yaml script.cy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("accessing %s: %w", args[0], err)
			}
			nodes, err := conway.Parse(args[0], source)
			if err != nil {
				var parseErr *conway.ParseError
				if errors.As(err, &parseErr) {
					return conway.NewSourceError(parseErr, parseErr.Loc, string(source))
				}
				return err
			}
			return conway.Dump(cmd.OutOrStdout(), nodes, conway.DumpFormat(format))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(conway.DumpPretty), "Output format: pretty, json or yaml")

	return cmd
}

func fmtCmd() *cobra.Command {
	var (
		write bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "fmt [flags] [path...]",
		Short: "Format Conway source files",
		Long: `Format Conway source files according to the canonical style.

By default, fmt prints the formatted source to stdout.
Use -w to write the result back to the source file.
Use -l to list files that would be changed.`,
		Example: `  # Format a file and print to stdout
  conway fmt script.cy

  # Format a file in place
  conway fmt -w script.cy

  # Format all .cy files in a directory
  conway fmt -w ./scripts`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(cmd.OutOrStdout(), args, write, list)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write result to source file instead of stdout")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List files that would be formatted")

	return cmd
}

// runFmt formats the given files, and the .cy files directly inside any
// given directories. Without -w or -l the formatted source is printed.
func runFmt(out io.Writer, paths []string, write, list bool) error {
	files, err := sourceFiles(paths)
	if err != nil {
		return err
	}

	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		formatted, err := conway.FormatSource(file, source)
		if err != nil {
			return fmt.Errorf("formatting %s: %w", file, err)
		}
		changed := string(source) != formatted

		switch {
		case write:
			if !changed {
				continue
			}
			if err := os.WriteFile(file, []byte(formatted), 0644); err != nil {
				return err
			}
			if list {
				if _, err := fmt.Fprintln(out, file); err != nil {
					return err
				}
			}
		case list:
			if changed {
				if _, err := fmt.Fprintln(out, file); err != nil {
					return err
				}
			}
		default:
			if _, err := io.WriteString(out, formatted); err != nil {
				return err
			}
		}
	}

	return nil
}

func sourceFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == ".cy" {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}
	return files, nil
}
