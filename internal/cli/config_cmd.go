package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/localsearch/miner/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the active configuration",
		Long: `Print the effective configuration: values loaded from
.localsearch/config.yaml, LOCALSEARCHD_* environment variables, and
built-in defaults, merged in that order.

Use 'config init' to write out a starter config.yaml.`,
		RunE: runConfigView,
	}

	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config dir:               %s\n", cfg.ConfigDir)
	fmt.Fprintf(out, "store path:               %s\n", cfg.ResolveStorePath(dbPath))
	fmt.Fprintf(out, "enable-monitors:          %t\n", cfg.EnableMonitors)
	fmt.Fprintf(out, "index-removable-devices:  %t\n", cfg.IndexRemovableDevices)

	fmt.Fprintf(out, "\nindex-recursive-directories:\n")
	for _, r := range cfg.IndexRecursiveDirectories {
		fmt.Fprintf(out, "  - %s\n", r.Path)
	}
	fmt.Fprintf(out, "index-single-directories:\n")
	for _, r := range cfg.IndexSingleDirectories {
		fmt.Fprintf(out, "  - %s\n", r.Path)
	}
	fmt.Fprintf(out, "ignored-files:\n")
	for _, p := range cfg.IgnoredFiles {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	fmt.Fprintf(out, "ignored-directories:\n")
	for _, p := range cfg.IgnoredDirectories {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	fmt.Fprintf(out, "ignored-directories-with-content:\n")
	for _, p := range cfg.IgnoredDirectoriesWithContent {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	fmt.Fprintf(out, "text-allowlist:\n")
	for _, p := range cfg.TextAllowlist {
		fmt.Fprintf(out, "  - %s\n", p)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nwarning: %v\n", err)
	}

	return nil
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter config.yaml under .localsearch/",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", root, err)
			}

			projectDir := filepath.Join(absRoot, config.ProjectDirName)
			configPath := filepath.Join(projectDir, config.ProjectConfigFile)

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}

			if err := os.MkdirAll(projectDir, 0755); err != nil {
				return fmt.Errorf("create %s: %w", projectDir, err)
			}

			cfg := &config.Config{
				IndexRecursiveDirectories: []config.IndexRootConfig{{Path: absRoot}},
				EnableMonitors:            true,
			}
			if err := config.WriteConfig(cfg, configPath); err != nil {
				return fmt.Errorf("write %s: %w", configPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}
