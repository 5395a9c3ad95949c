package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/campushive/hivelab/internal/config"
	"github.com/campushive/hivelab/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "hivelab",
	Short: "HiveLab tool composition and runtime engine",
	Long: `HiveLab checks and repairs tool compositions produced by editors or
generators, and runs the execution boundary deployed tools talk to.

Settings come from defaults, an optional --config file and HIVELAB_*
environment variables (e.g. HIVELAB_REDIS_ADDR), in increasing priority.
Flags win over all of them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("kinds", "", "YAML file with extra element kinds")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	v := config.New()
	bind := map[string]string{
		"log.level":     "log-level",
		"log.format":    "log-format",
		"catalog.kinds": "kinds",
		"catalog.dir":   "dir",
		"server.addr":   "addr",
		"store":         "store",
		"mcp.transport": "transport",
		"mcp.addr":      "mcp-addr",
	}
	for key, name := range bind {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	var err error
	if cfg, err = config.Load(v, cfgFile); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger = logging.New(level, logging.WithFormat(logging.Format(cfg.Log.Format)))
	slog.SetDefault(logger)
	return nil
}
