// Package main provides the vibe-vdb command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vdb/internal/binindex"
	"github.com/inodb/vibe-vdb/internal/store"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:     "vibe-vdb",
		Short:   "Genomic variant annotation store",
		Long:    "vibe-vdb maintains a DuckDB-backed store of genomic variants and their annotations:\nVCF loads, VEP results, CADD scores, load undo, and duplicate reconciliation.",
		Version: fmt.Sprintf("%s (%s) built %s", version, commit, date),
		Example: `  vibe-vdb load --commit variants.vcf.gz
  vibe-vdb load-vep --commit vep_output.json.gz
  vibe-vdb load-cadd --commit whole_genome_SNVs.tsv.gz
  vibe-vdb undo 42
  vibe-vdb reconcile --chromosome 7`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.vibe-vdb.yaml)")
	cmd.PersistentFlags().String("db", defaultDBPath(), "path to the variant database")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	viper.BindPFlag("db", cmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newLoadVEPCmd())
	cmd.AddCommand(newLoadCADDCmd())
	cmd.AddCommand(newUndoCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".vibe-vdb")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VIBE_VDB")
	viper.AutomaticEnv()
	viper.SetDefault("binindex.maxlevel", binindex.DefaultMaxLevel)
	viper.SetDefault("binindex.minwidth", binindex.DefaultMinWidth)
	viper.SetDefault("load.workers", 0)
	viper.SetDefault("load.strict", false)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "variants.duckdb"
	}
	return filepath.Join(home, ".vibe-vdb", "variants.duckdb")
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore opens the configured database.
func openStore(logger *zap.Logger) (*store.Store, error) {
	path := viper.GetString("db")
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant database at %s: %w", path, err)
	}
	s.SetLogger(logger)
	return s, nil
}

// ensureBinIndex loads the persisted bin index reference, building and
// bootstrapping it on first use.
func ensureBinIndex(ctx context.Context, s *store.Store, logger *zap.Logger) (*binindex.Index, error) {
	idx, err := s.LoadBinIndex(ctx)
	if err == nil {
		return idx, nil
	}

	maxLevel := viper.GetInt("binindex.maxlevel")
	minWidth := viper.GetInt64("binindex.minwidth")
	logger.Info("bootstrapping bin index reference",
		zap.Int("max_level", maxLevel),
		zap.Int64("min_width", minWidth))
	idx = binindex.Build(maxLevel, minWidth)
	if err := s.BootstrapBinIndex(ctx, idx); err != nil {
		return nil, fmt.Errorf("bootstrap bin index: %w", err)
	}
	return idx, nil
}
