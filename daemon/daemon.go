// Package daemon wires the scheduler, dataflow graph, endpoint
// registry, HKCP server and history log into one running process,
// following the teacher's daemon.Run(ctx, ...) shape: one goroutine
// per subsystem under an errgroup, with systemd readiness
// notification once the graph has started.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"hakit/internal/classes"
	"hakit/internal/config"
	"hakit/internal/endpoint"
	"hakit/internal/graph"
	"hakit/internal/hkcp"
	"hakit/internal/history"
	"hakit/internal/netif"
	"hakit/internal/sched"
)

// Options configures a Run invocation.
type Options struct {
	Config    *config.Config
	TileRoots []string
}

// Run loads the configured tiles, starts the scheduler loop, the HKCP
// server and (if configured) the history log, and blocks until ctx is
// cancelled or a subsystem fails.
func Run(ctx context.Context, opts Options) error {
	reg := graph.NewRegistry()
	endpoints := endpoint.NewRegistry(opts.Config.TraceDepth)
	classes.RegisterAll(reg, endpoints)

	tiles, err := loadTiles(reg, opts.TileRoots)
	if err != nil {
		return fmt.Errorf("load tiles: %w", err)
	}

	for _, t := range tiles {
		if err := t.Setup(); err != nil {
			return fmt.Errorf("setup tile %q: %w", t.Name, err)
		}
	}
	for _, t := range tiles {
		if err := t.Start(); err != nil {
			return fmt.Errorf("start tile %q: %w", t.Name, err)
		}
	}
	slog.Info("tiles started", "count", len(tiles))

	loop := sched.NewLoop()

	port := opts.Config.Port
	if port == 0 {
		port = hkcp.DefaultPort
	}
	srv := hkcp.NewServer(endpoints, fmt.Sprintf(":%d", port), loop)

	wireHistory(loop, endpoints, opts.Config)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(ctx) })

	started := make(chan struct{})
	g.Go(func() error {
		go func() {
			select {
			case <-started:
				if _, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
					slog.Error("systemd readiness notification failed", "err", err)
				}
			case <-ctx.Done():
			}
		}()

		netif.Watch(ctx, 0, func() {
			slog.Debug("hkcp: interface change detected, re-advertising")
			srv.TriggerAdvertise()
		})

		close(started)
		return srv.ListenAndServe(ctx)
	})

	return g.Wait()
}

// wireHistory, if a history directory is configured, declares every
// currently registered source (local ones included) against the log and
// chains endpoints.NotifySource so every public source update is also
// fed to the log, with idle flushing and a final flush on shutdown
// driven by loop.
func wireHistory(loop *sched.Loop, endpoints *endpoint.Registry, cfg *config.Config) {
	if cfg.HistoryDir == "" {
		return
	}

	prefix := cfg.HistoryPrefix
	if prefix == "" {
		prefix = "hakit"
	}

	log := history.NewLog(prefix, &dirWriter{dir: cfg.HistoryDir}, nil)

	endpoints.ForEachSource(func(s *endpoint.Source) { log.DeclareSignal(int64(s.ID()), s.Name) })

	prevNotify := endpoints.NotifySource
	endpoints.NotifySource = func(s *endpoint.Source) {
		log.Feed(int64(s.ID()), s.Value)
		if prevNotify != nil {
			prevNotify(s)
		}
	}

	loop.AddTimeout(history.FlushTimeout, func() bool {
		if log.FlushDue() {
			log.Flush()
		}
		return true
	})

	loop.AddQuitHandler(func() {
		if log.FlushDue() {
			log.Flush()
		}
	})
}

// dirWriter appends history bucket data to files under a directory,
// creating the directory on first write.
type dirWriter struct {
	dir string
}

func (w *dirWriter) AppendFile(name string, data []byte) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("history: create dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %q: %w", name, err)
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func loadTiles(reg *graph.Registry, roots []string) ([]*graph.Tile, error) {
	var tiles []*graph.Tile
	for _, root := range roots {
		t, err := graph.LoadTile(root, root, reg)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	return tiles, nil
}
