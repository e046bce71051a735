package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-vdb/internal/binindex"
)

// BinReferenceCount returns the number of bins in the persisted reference.
func (s *Store) BinReferenceCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bin_index_reference`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bin reference: %w", err)
	}
	return n, nil
}

// BootstrapBinIndex persists a freshly built bin hierarchy. It is a no-op
// when the reference table already has rows; the reference is populated once
// and read-only afterward.
func (s *Store) BootstrapBinIndex(ctx context.Context, idx *binindex.Index) error {
	n, err := s.BinReferenceCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "bin_index_reference")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	var appendErr error
	idx.Walk(func(b *binindex.Bin) {
		if appendErr != nil {
			return
		}
		appendErr = appender.AppendRow(
			b.Chromosome, int32(b.Level), int32(b.ID), b.Path, b.Start, b.End,
		)
	})
	if appendErr != nil {
		return fmt.Errorf("append bin reference row: %w", appendErr)
	}

	if err := appender.Flush(); err != nil {
		return fmt.Errorf("flush bin reference: %w", err)
	}
	s.logger.Info("bin index reference bootstrapped")
	return nil
}

// LoadBinIndex rebuilds the in-memory bin index from the persisted
// reference table.
func (s *Store) LoadBinIndex(ctx context.Context) (*binindex.Index, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chromosome, level, bin_id, bin_path, location_start, location_end
		 FROM bin_index_reference`)
	if err != nil {
		return nil, fmt.Errorf("query bin reference: %w", err)
	}
	defer rows.Close()

	var entries []binindex.Entry
	for rows.Next() {
		var e binindex.Entry
		if err := rows.Scan(&e.Chromosome, &e.Level, &e.ID, &e.Path, &e.Start, &e.End); err != nil {
			return nil, fmt.Errorf("scan bin reference row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bin reference: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("bin index reference is empty; bootstrap it first")
	}

	return binindex.FromEntries(entries)
}
