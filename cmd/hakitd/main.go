// Command hakitd is the HAKit daemon: it loads tiles, runs the
// dataflow graph, and serves HKCP over TCP/UDP.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hakit/daemon"
	"hakit/internal/buildinfo"
	"hakit/internal/config"
	"hakit/internal/logging"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool
	var port int
	var traceDepth int
	var tileRoots []string
	var historyDir string

	cmd := &cobra.Command{
		Use:     "hakitd",
		Short:   "HAKit home automation runtime daemon",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
			}
			if traceDepth != 0 {
				cfg.TraceDepth = traceDepth
			}
			if len(tileRoots) > 0 {
				cfg.TileRoots = tileRoots
			}
			if historyDir != "" {
				cfg.HistoryDir = historyDir
			}

			return daemon.Run(ctx, daemon.Options{Config: cfg, TileRoots: cfg.TileRoots})
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().IntVar(&port, "port", 0, "HKCP TCP/UDP port (default 5678)")
	cmd.Flags().IntVar(&traceDepth, "trace-depth", 0, "Per-endpoint trace ring depth")
	cmd.Flags().StringArrayVar(&tileRoots, "tile", nil, "Tile directory or file to load (repeatable)")
	cmd.Flags().StringVar(&historyDir, "history-dir", "", "Directory to write signal history buckets to (disabled if empty)")

	return cmd
}
