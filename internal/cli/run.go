package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/localsearch/miner/internal/config"
	"github.com/localsearch/miner/internal/controller"
	"github.com/localsearch/miner/internal/indexer"
	"github.com/localsearch/miner/internal/miner"
	"github.com/localsearch/miner/internal/monitor"
	"github.com/localsearch/miner/internal/notifier"
	"github.com/localsearch/miner/internal/store"
	"github.com/localsearch/miner/internal/tree"
)

// mountPollInterval is how often the removable-media observer rescans
// /proc/mounts.
const mountPollInterval = 5 * time.Second

func newRunCmd() *cobra.Command {
	var pidFile string
	var logFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start monitoring and indexing the configured roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			var output io.Writer = cmd.OutOrStdout()
			if logFile != "" {
				f, err := os.Create(logFile)
				if err != nil {
					return fmt.Errorf("create log file: %w", err)
				}
				defer f.Close()
				output = f
				cmd.SetOut(f)
				cmd.SetErr(f)
			}

			if pidFile != "" {
				if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
					return fmt.Errorf("write pid file: %w", err)
				}
				defer os.Remove(pidFile)
			}

			logFn := func(format string, args ...any) {
				fmt.Fprintf(output, format+"\n", args...)
			}

			resolvedStorePath := cfg.ResolveStorePath(dbPath)
			if resolvedStorePath == "" {
				return fmt.Errorf("no store path; configure store-path or use --store-path")
			}

			st, err := store.Open(resolvedStorePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			buf := store.New(st, func(sig store.Signal) {
				switch sig {
				case store.SignalCorrupt:
					logFn("store: flush hit a corrupt record, continuing")
				case store.SignalNoSpace:
					logFn("store: flush ran out of space, continuing")
				}
			})

			idx := indexer.New(indexer.Config{Buffer: buf})

			t := tree.New()

			mounts := controller.NewMountObserver(t, mountPollInterval)
			ctl := controller.New(t, mounts)
			if err := ctl.Apply(cfg); err != nil {
				return fmt.Errorf("apply config: %w", err)
			}

			mon, err := monitor.New()
			if err != nil {
				return fmt.Errorf("start monitor: %w", err)
			}
			defer mon.Close()
			if !cfg.EnableMonitors {
				mon.SetEnabled(false)
			}

			lastStatus := ""
			m := miner.New(miner.Config{
				Buffer: buf,
				Sink:   idx,
				Logger: logFn,
				OnStatus: func(status string) {
					if status == lastStatus {
						return
					}
					lastStatus = status
					logFn("miner: %s", status)
				},
			})

			n := notifier.New(notifier.Config{
				Tree:      t,
				Monitor:   mon,
				Store:     st,
				Sink:      m.Consume,
				HighWater: m.IsHighWater,
				Logger:    logFn,
			})

			for _, root := range t.ListRoots() {
				n.QueueRoot(root)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(output, "\nShutting down...")
				cancel()
			}()

			fmt.Fprintf(output, "Indexing %d recursive and %d single roots into %s\n",
				len(cfg.IndexRecursiveDirectories), len(cfg.IndexSingleDirectories), resolvedStorePath)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return n.Run(gctx) })
			g.Go(func() error {
				// m.Run drains to idle and returns; re-arm it on a short
				// tick so events enqueued by Consume after an idle tick
				// still get dispatched.
				for {
					if err := m.Run(gctx); err != nil {
						return err
					}
					select {
					case <-gctx.Done():
						return nil
					case <-time.After(200 * time.Millisecond):
					}
				}
			})
			g.Go(func() error { return mounts.Run(gctx) })

			runErr := g.Wait()
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				logFn("run: %v", runErr)
			}

			if _, err := buf.Flush(context.Background(), "shutdown"); err != nil {
				logFn("final flush: %v", err)
			}

			stats := idx.Stats()
			fmt.Fprintf(output, "\nFinal stats:\n")
			fmt.Fprintf(output, "  Files indexed:   %d\n", stats.FilesIndexed)
			fmt.Fprintf(output, "  Folders indexed: %d\n", stats.FoldersIndexed)
			fmt.Fprintf(output, "  Removed:         %d\n", stats.Removed)

			fmt.Fprintf(output, "\nPer-root reconcile stats:\n")
			for _, root := range t.ListRoots() {
				fmt.Fprintf(output, "  %s: found=%d ignored=%d updated=%d reindexed=%d\n",
					root.Path, root.Stats.FilesFound, root.Stats.FilesIgnored,
					root.Stats.FilesUpdated, root.Stats.FilesReindexed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pidFile, "pid-file", "", "write process PID to this file")
	cmd.Flags().StringVar(&logFile, "log-file", "", "redirect all output to this file")

	return cmd
}
