// Command hakit is a thin HKCP client: it dials a hakitd daemon's TCP
// command port and speaks the line protocol directly, the way
// cmd/ployz's subcommands talk to the runtime over its own service
// API.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hakit/internal/buildinfo"
	"hakit/internal/hkcp"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var host string
	var port int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:     "hakit",
		Short:   "HKCP command-line client",
		Version: buildinfo.Version,
	}
	cmd.PersistentFlags().StringVar(&host, "host", "localhost", "hakitd host")
	cmd.PersistentFlags().IntVar(&port, "port", hkcp.DefaultPort, "hakitd HKCP TCP port")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "connect timeout")

	addr := func() string { return host + ":" + strconv.Itoa(port) }

	cmd.AddCommand(getCmd(&host, &port, &timeout, addr))
	cmd.AddCommand(sinksCmd(addr, &timeout))
	cmd.AddCommand(sourcesCmd(addr, &timeout))
	cmd.AddCommand(nodesCmd(addr, &timeout))
	cmd.AddCommand(setCmd(addr, &timeout))
	cmd.AddCommand(watchCmd(addr, &timeout))

	return cmd
}

func getCmd(host *string, port *int, timeout *time.Duration, addr func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get [name...]",
		Short: "Dump sink and source values",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr(), *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			return runGet(c, args)
		},
	}
}

func sinksCmd(addr func() string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "sinks",
		Short: "List public sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr(), *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			return runSinks(c)
		},
	}
}

func sourcesCmd(addr func() string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List public sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr(), *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			return runSources(c)
		},
	}
}

func nodesCmd(addr func() string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List attached HKCP peer nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr(), *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			return runNodes(c)
		},
	}
}

func setCmd(addr func() string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "set name=value [name=value...]",
		Short: "Set one or more sinks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr(), *timeout)
			if err != nil {
				return err
			}
			defer c.Close()
			return runSet(c, args)
		},
	}
}

func watchCmd(addr func() string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream source updates until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr(), *timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(c, func() bool {
				select {
				case <-ctx.Done():
					return true
				default:
					return false
				}
			})
		},
	}
}
