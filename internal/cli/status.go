package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/localsearch/miner/internal/config"
	"github.com/localsearch/miner/internal/store"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show indexing status and store stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
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

			stats, err := st.Stats(context.Background())
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Index Status\n")
			fmt.Fprintf(out, "============\n\n")
			fmt.Fprintf(out, "  Store path:   %s\n", resolvedStorePath)
			fmt.Fprintf(out, "  Files:        %s\n", humanize.Comma(stats.FileCount))
			fmt.Fprintf(out, "  Folders:      %s\n", humanize.Comma(stats.FolderCount))
			fmt.Fprintf(out, "  LSM size:     %s\n", humanize.Bytes(uint64(stats.LSMBytes)))
			fmt.Fprintf(out, "  Value log:    %s\n", humanize.Bytes(uint64(stats.VLogBytes)))

			fmt.Fprintf(out, "\n  Recursive roots: %d\n", len(cfg.IndexRecursiveDirectories))
			for _, r := range cfg.IndexRecursiveDirectories {
				fmt.Fprintf(out, "    %s\n", r.Path)
			}
			fmt.Fprintf(out, "  Single roots:    %d\n", len(cfg.IndexSingleDirectories))
			for _, r := range cfg.IndexSingleDirectories {
				fmt.Fprintf(out, "    %s\n", r.Path)
			}

			return nil
		},
	}

	return cmd
}
