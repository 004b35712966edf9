package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecache"
	"github.com/hupe1980/vecache/internal/config"
)

// app carries state resolved once in PersistentPreRunE.
type app struct {
	cfg    config.Config
	logger *vecache.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vecache",
		Short:         "vecache - in-memory vector store for semantic caching",
		Long:          "vecache inspects vector snapshots and runs load tests against the in-memory store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	// Global flags override VECACHE_* variables.
	root.PersistentFlags().String("env-file", "", "path to a .env file (default .env)")
	root.PersistentFlags().String("storage-path", "", "snapshot directory for the local backend")
	root.PersistentFlags().String("snapshot-name", "", "snapshot blob name")
	root.PersistentFlags().String("compression", "", "snapshot compression: none, lz4 or zstd")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "", "log format: text or json")

	root.AddCommand(
		newInspectCmd(a),
		newBenchCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	var files []string
	if f, _ := cmd.Flags().GetString("env-file"); f != "" {
		files = append(files, f)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	overrides := map[string]*string{
		"storage-path":  &cfg.StoragePath,
		"snapshot-name": &cfg.SnapshotName,
		"compression":   &cfg.Compression,
		"log-level":     &cfg.LogLevel,
		"log-format":    &cfg.LogFormat,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}
