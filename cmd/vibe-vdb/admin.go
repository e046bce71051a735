package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-vdb/internal/genome"
	"github.com/inodb/vibe-vdb/internal/reconcile"
)

func newUndoCmd() *cobra.Command {
	var chromosomes []string
	cmd := &cobra.Command{
		Use:   "undo <invocation-id>",
		Short: "Remove every record a load invocation wrote",
		Long:  "Remove every record whose last writer is the given invocation. Records a later\ninvocation rewrote are left alone. Undoing a dry-run invocation is a no-op.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid invocation id %q", args[0])
			}

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

			res, err := s.Undo(cmd.Context(), id, chromosomes...)
			if err != nil {
				return err
			}

			fmt.Printf("undo of invocation %d removed %d rows\n", id, res.RowsRemoved)
			for chrom, n := range res.ByChromosome {
				fmt.Printf("  chr%s: %d\n", chrom, n)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&chromosomes, "chromosome", nil, "limit undo to these chromosomes")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	var chromosomes []string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Collapse duplicate records and report conflicts",
		Long:  "Run the duplicate maintenance pass: key groups with more than one row are\ncollapsed when identical up to provenance and reported as conflicts otherwise;\nredundant irregular rows are removed. Do not run while a load is active.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if len(chromosomes) == 0 {
				chromosomes = genome.All()
			}

			resolver := reconcile.NewResolver(s)
			resolver.SetLogger(logger)

			for _, chrom := range chromosomes {
				report, err := resolver.Reconcile(cmd.Context(), genome.Normalize(chrom))
				if err != nil {
					return fmt.Errorf("reconcile chr%s: %w", chrom, err)
				}
				if report.Collapsed == 0 && len(report.Conflicts) == 0 && report.RemovedIrregular == 0 {
					continue
				}
				fmt.Printf("chr%s: collapsed %d, removed %d irregular, %d conflicts\n",
					report.Chromosome, report.Collapsed, report.RemovedIrregular, len(report.Conflicts))
				for _, c := range report.Conflicts {
					fmt.Printf("  conflict %s (%d rows)\n", c.PrimaryKey, len(c.Rows))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&chromosomes, "chromosome", nil, "limit the pass to these chromosomes")
	return cmd
}
