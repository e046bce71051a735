package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-vdb/internal/cadd"
	"github.com/inodb/vibe-vdb/internal/load"
	"github.com/inodb/vibe-vdb/internal/merge"
	"github.com/inodb/vibe-vdb/internal/vcf"
	"github.com/inodb/vibe-vdb/internal/vep"
)

// loadFlags holds the flags shared by every load command.
type loadFlags struct {
	commit  bool
	strict  bool
	workers int
}

func (f *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.commit, "commit", false, "apply changes (default is a dry run)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "abort on the first rejected record")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent workers (default: number of CPUs)")
	viper.BindPFlag("load.strict", cmd.Flags().Lookup("strict"))
	viper.BindPFlag("load.workers", cmd.Flags().Lookup("workers"))
}

func newLoadCmd() *cobra.Command {
	var flags loadFlags
	cmd := &cobra.Command{
		Use:   "load <file.vcf[.gz]>",
		Short: "Load variants from a VCF file",
		Long:  "Load variants from a VCF file. Multi-allelic records are split per alternate\nallele; dbSNP FREQ population frequencies become allele_frequencies annotations.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := vcf.NewSource(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			return runLoad(cmd, src, "load_vcf_file", args, flags, true)
		},
	}
	flags.register(cmd)
	return cmd
}

func newLoadVEPCmd() *cobra.Command {
	var flags loadFlags
	cmd := &cobra.Command{
		Use:   "load-vep <results.json[.gz]>",
		Short: "Load VEP annotation results",
		Long:  "Load Ensembl VEP JSON output. Each result contributes the full VEP record,\nthe most severe consequence, severity-ranked consequences, loss of function\ncalls, and colocated population frequencies.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := vep.NewSource(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			return runLoad(cmd, src, "load_vep_result", args, flags, true)
		},
	}
	flags.register(cmd)
	return cmd
}

func newLoadCADDCmd() *cobra.Command {
	var flags loadFlags
	cmd := &cobra.Command{
		Use:   "load-cadd <scores.tsv.gz> [indels.tsv.gz ...]",
		Short: "Load CADD scores into existing variant records",
		Long:  "Load CADD score files (SNV and indel). Scores only update variants already in\nthe store; scored alleles with no matching record are counted as skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := cadd.NewSource(args...)
			defer src.Close()
			return runLoad(cmd, src, "load_cadd_scores", args, flags, false)
		},
	}
	flags.register(cmd)
	return cmd
}

func runLoad(cmd *cobra.Command, src load.Source, scriptName string, args []string, flags loadFlags, implicitInsert bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := openStore(logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	idx, err := ensureBinIndex(ctx, s, logger)
	if err != nil {
		return err
	}

	engine := merge.NewEngine(s, idx)
	engine.SetLogger(logger)
	engine.SetImplicitInsert(implicitInsert)

	loader := load.NewLoader(s, engine)
	loader.SetLogger(logger)

	res, err := loader.Run(ctx, src, scriptName, strings.Join(args, " "), load.Options{
		Workers: viper.GetInt("load.workers"),
		Strict:  viper.GetBool("load.strict"),
		Commit:  flags.commit,
	})
	if err != nil {
		return err
	}

	mode := "committed"
	if !flags.commit {
		mode = "dry run"
	}
	fmt.Printf("invocation %d (%s): %d read, %d applied, %d skipped, %d rejected\n",
		res.Invocation.ID, mode, res.Read, res.Applied, res.Skipped, res.Rejected)
	for _, rej := range res.Rejections {
		fmt.Printf("  rejected record %d: %v\n", rej.Seq, rej.Err)
	}
	if !flags.commit {
		fmt.Println("dry run: no changes were written; rerun with --commit to apply")
	}
	return nil
}
