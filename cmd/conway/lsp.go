package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/spf13/cobra"

	"github.com/vito/conway/pkg/lsp"
)

func lspCmd(cfg *Config) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Run the Conway language server on stdin and stdout",
		Long: `Run a Language Server Protocol server for Conway source files. It reports
syntax and operator errors as diagnostics and supports go to definition,
hover, document symbols, rename and formatting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var logDest io.Writer
			if logFile != "" {
				f, err := os.Create(logFile)
				if err != nil {
					return fmt.Errorf("open lsp log: %w", err)
				}
				defer f.Close() //nolint:errcheck
				logDest = f
			} else {
				logDest = os.Stderr
			}

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(logDest, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)

			ctx := cmd.Context()
			logger.InfoContext(ctx, "starting LSP server")

			handler := lsp.NewHandler()
			srv := jrpc2.NewServer(handler, &jrpc2.ServerOptions{
				AllowPush: true,
				Logger:    func(text string) { logger.Debug(text) },
			})
			handler.SetServer(srv)

			srv.Start(channel.LSP(stdrwc{}, stdrwc{}))

			logger.InfoContext(ctx, "LSP server closed", "error", srv.Wait())
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Write server logs to this file instead of stderr")

	return cmd
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
