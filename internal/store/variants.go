package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vdb/internal/variant"
)

// fragmentColumns lists the annotation fragment columns in the order used
// by every SELECT and INSERT in this file. It mirrors variant.FragmentNames.
var fragmentColumns = strings.Join(variant.FragmentNames, ", ")

const variantColumns = `chromosome, record_primary_key, position, metaseq_id,
	ref_snp_id, bin_index, is_multi_allelic, row_algorithm_id`

// PartitionTx wraps a storage transaction scoped to one chromosome
// partition. It is only handed out by WithPartition, which also holds the
// partition lock, so at most one PartitionTx per chromosome is live.
type PartitionTx struct {
	tx    *sql.Tx
	ctx   context.Context
	chrom string
}

// WithPartition serializes fn against all other writers of the chromosome
// and runs it inside a single transaction: the insert-or-update a caller
// performs through the PartitionTx is atomic, never read-then-write across
// transactions. The transaction commits when fn returns nil and rolls back
// otherwise.
func (s *Store) WithPartition(ctx context.Context, chrom string, fn func(*PartitionTx) error) error {
	lock := s.partitionLock(chrom)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin partition transaction: %w", err)
	}

	if err := fn(&PartitionTx{tx: tx, ctx: ctx, chrom: chrom}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit partition transaction: %w", err)
	}
	return nil
}

// Get fetches the live record for a primary key, or nil when absent.
func (p *PartitionTx) Get(primaryKey string) (*variant.Variant, error) {
	row := p.tx.QueryRowContext(p.ctx,
		`SELECT `+variantColumns+`, `+fragmentColumns+`
		 FROM variants WHERE chromosome = ? AND record_primary_key = ?`,
		p.chrom, primaryKey)

	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// GetByIdentity fetches the live record matching a canonical id, trying
// the canonical allele order first and then the swapped alternate form.
// Unlike Get it ignores the primary key's external-reference suffix, so a
// payload without a refSNP id still finds the record a dbSNP load stored
// under `<canonical>_rsID` (and vice versa). Returns nil when absent.
func (p *PartitionTx) GetByIdentity(id variant.Identity) (*variant.Variant, error) {
	row := p.tx.QueryRowContext(p.ctx,
		`SELECT `+variantColumns+`, `+fragmentColumns+`
		 FROM variants WHERE chromosome = ? AND metaseq_id IN (?, ?)
		 ORDER BY CASE WHEN metaseq_id = ? THEN 0 ELSE 1 END, record_primary_key
		 LIMIT 1`,
		p.chrom, id.String(), id.Swapped().String(), id.String())

	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// Insert writes a new record. The caller must have resolved the bin path
// already; the store never infers it.
func (p *PartitionTx) Insert(v *variant.Variant) error {
	args := []any{
		v.Chromosome, v.PrimaryKey, v.Position, v.MetaseqID,
		nullable(v.RefSnpID), v.BinPath, v.IsMultiAllelic, v.InvocationID,
	}
	args = append(args, fragmentArgs(v)...)

	_, err := p.tx.ExecContext(p.ctx,
		`INSERT INTO variants (`+variantColumns+`, `+fragmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert variant %s: %w", v.PrimaryKey, err)
	}
	return nil
}

// Update rewrites a record's annotation fragments, multi-allelic flag, and
// last-writer invocation id. Identity, bin path, and position are immutable
// after insert and are deliberately not part of the statement.
func (p *PartitionTx) Update(v *variant.Variant) error {
	sets := make([]string, 0, len(variant.FragmentNames)+2)
	args := make([]any, 0, len(variant.FragmentNames)+4)
	for _, name := range variant.FragmentNames {
		sets = append(sets, name+" = ?")
		args = append(args, nullableJSON(v.Fragment(name)))
	}
	sets = append(sets, "is_multi_allelic = ?", "row_algorithm_id = ?")
	args = append(args, v.IsMultiAllelic, v.InvocationID, p.chrom, v.PrimaryKey)

	_, err := p.tx.ExecContext(p.ctx,
		`UPDATE variants SET `+strings.Join(sets, ", ")+`
		 WHERE chromosome = ? AND record_primary_key = ?`, args...)
	if err != nil {
		return fmt.Errorf("update variant %s: %w", v.PrimaryKey, err)
	}
	return nil
}

// DistinctAlts returns the alt alleles of every record at a position,
// parsed from their canonical ids. Used for multi-allelic detection.
func (p *PartitionTx) DistinctAlts(pos int64) ([]string, error) {
	rows, err := p.tx.QueryContext(p.ctx,
		`SELECT DISTINCT metaseq_id FROM variants WHERE chromosome = ? AND position = ?`,
		p.chrom, pos)
	if err != nil {
		return nil, fmt.Errorf("query alts at position: %w", err)
	}
	defer rows.Close()

	var alts []string
	seen := make(map[string]bool)
	for rows.Next() {
		var metaseqID string
		if err := rows.Scan(&metaseqID); err != nil {
			return nil, fmt.Errorf("scan metaseq id: %w", err)
		}
		id, err := variant.ParseIdentity(metaseqID)
		if err != nil {
			continue
		}
		if !seen[id.Alt] {
			seen[id.Alt] = true
			alts = append(alts, id.Alt)
		}
	}
	return alts, rows.Err()
}

// SetMultiAllelic flags every record at a position as multi-allelic.
func (p *PartitionTx) SetMultiAllelic(pos int64) error {
	_, err := p.tx.ExecContext(p.ctx,
		`UPDATE variants SET is_multi_allelic = TRUE WHERE chromosome = ? AND position = ?`,
		p.chrom, pos)
	if err != nil {
		return fmt.Errorf("set multi-allelic at %d: %w", pos, err)
	}
	return nil
}

// FindByIdentity looks up variants by canonical id, trying the canonical
// form first and then the allele-swapped alternate form; canonical-form
// matches sort first. When externalRefID is non-empty only records carrying
// it match. With firstHitOnly set, at most one record is returned.
func (s *Store) FindByIdentity(ctx context.Context, canonicalID, externalRefID string, firstHitOnly bool) ([]*variant.Variant, error) {
	id, err := variant.ParseIdentity(canonicalID)
	if err != nil {
		return nil, err
	}
	canonical := id.String()
	swapped := id.Swapped().String()

	query := `SELECT ` + variantColumns + `, ` + fragmentColumns + `
		FROM variants
		WHERE chromosome = ? AND metaseq_id IN (?, ?)`
	args := []any{id.Chromosome, canonical, swapped}
	if externalRefID != "" {
		query += ` AND ref_snp_id = ?`
		args = append(args, externalRefID)
	}
	query += ` ORDER BY CASE WHEN metaseq_id = ? THEN 0 ELSE 1 END, record_primary_key`
	args = append(args, canonical)
	if firstHitOnly {
		query += ` LIMIT 1`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by identity: %w", err)
	}
	defer rows.Close()

	return collectVariants(rows)
}

// UndoResult reports what an undo removed.
type UndoResult struct {
	RowsRemoved  int64
	ByChromosome map[string]int64
}

// undoChunk bounds each delete statement so an undo of a large load stays
// in small transactions and can be interrupted between chromosomes.
const undoChunk = 500

// Undo deletes every record whose last-writer invocation id equals the
// target, in the given chromosome partitions (all partitions when none are
// named). Provenance is row-level: a record later rewritten by another
// invocation is left alone. Undo of a dry-run invocation is a no-op.
func (s *Store) Undo(ctx context.Context, invocationID int64, chromosomes ...string) (UndoResult, error) {
	res := UndoResult{ByChromosome: make(map[string]int64)}

	inv, err := s.GetInvocation(ctx, invocationID)
	if err != nil {
		return res, err
	}
	if !inv.CommitMode {
		s.logger.Info("undo of dry-run invocation is a no-op",
			zap.Int64("invocation_id", invocationID))
		return res, nil
	}

	if len(chromosomes) == 0 {
		chromosomes, err = s.chromosomesWithRows(ctx, invocationID)
		if err != nil {
			return res, err
		}
	}

	for _, chrom := range chromosomes {
		var removed int64
		err := s.WithPartition(ctx, chrom, func(p *PartitionTx) error {
			for {
				r, err := p.tx.ExecContext(ctx,
					fmt.Sprintf(`DELETE FROM variants WHERE rowid IN (
						SELECT rowid FROM variants
						WHERE chromosome = ? AND row_algorithm_id = ?
						LIMIT %d)`, undoChunk),
					chrom, invocationID)
				if err != nil {
					return fmt.Errorf("undo delete chunk: %w", err)
				}
				n, err := r.RowsAffected()
				if err != nil {
					return fmt.Errorf("undo rows affected: %w", err)
				}
				removed += n
				if n < undoChunk {
					return nil
				}
			}
		})
		if err != nil {
			return res, err
		}
		if removed > 0 {
			res.ByChromosome[chrom] = removed
			res.RowsRemoved += removed
			s.logger.Info("undo removed rows",
				zap.String("chromosome", chrom),
				zap.Int64("invocation_id", invocationID),
				zap.Int64("rows", removed))
		}
	}

	return res, nil
}

// chromosomesWithRows lists the partitions holding rows for an invocation.
func (s *Store) chromosomesWithRows(ctx context.Context, invocationID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT chromosome FROM variants WHERE row_algorithm_id = ?`, invocationID)
	if err != nil {
		return nil, fmt.Errorf("list chromosomes for invocation %d: %w", invocationID, err)
	}
	defer rows.Close()

	var chroms []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan chromosome: %w", err)
		}
		chroms = append(chroms, c)
	}
	return chroms, rows.Err()
}

// StoredRow is a variant record plus its storage rowid, used by the
// duplicate resolver to address individual rows within a key group.
type StoredRow struct {
	variant.Variant
	RowID int64
}

// PartitionRows returns every record in a chromosome partition ordered by
// primary key then rowid. Intended for maintenance passes, which own the
// partition while they run.
func (s *Store) PartitionRows(ctx context.Context, chrom string) ([]StoredRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, `+variantColumns+`, `+fragmentColumns+`
		 FROM variants WHERE chromosome = ?
		 ORDER BY record_primary_key, rowid`, chrom)
	if err != nil {
		return nil, fmt.Errorf("query partition rows: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		sr, err := scanStoredRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}

// DeleteRows removes specific rows from a partition by rowid and returns
// the number removed.
func (s *Store) DeleteRows(ctx context.Context, chrom string, rowIDs []int64) (int64, error) {
	if len(rowIDs) == 0 {
		return 0, nil
	}
	var removed int64
	err := s.WithPartition(ctx, chrom, func(p *PartitionTx) error {
		for _, id := range rowIDs {
			r, err := p.tx.ExecContext(ctx,
				`DELETE FROM variants WHERE chromosome = ? AND rowid = ?`, chrom, id)
			if err != nil {
				return fmt.Errorf("delete row %d: %w", id, err)
			}
			n, _ := r.RowsAffected()
			removed += n
		}
		return nil
	})
	return removed, err
}

// CountByInvocation returns the number of live rows tagged with an
// invocation id, optionally scoped to one chromosome.
func (s *Store) CountByInvocation(ctx context.Context, invocationID int64, chrom string) (int64, error) {
	query := `SELECT COUNT(*) FROM variants WHERE row_algorithm_id = ?`
	args := []any{invocationID}
	if chrom != "" {
		query += ` AND chromosome = ?`
		args = append(args, chrom)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count by invocation: %w", err)
	}
	return n, nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariant(r rowScanner) (*variant.Variant, error) {
	v := &variant.Variant{}
	var refSnp sql.NullString
	frags := make([]sql.NullString, len(variant.FragmentNames))

	dest := []any{
		&v.Chromosome, &v.PrimaryKey, &v.Position, &v.MetaseqID,
		&refSnp, &v.BinPath, &v.IsMultiAllelic, &v.InvocationID,
	}
	for i := range frags {
		dest = append(dest, &frags[i])
	}
	if err := r.Scan(dest...); err != nil {
		return nil, err
	}

	v.RefSnpID = refSnp.String
	for i, name := range variant.FragmentNames {
		if frags[i].Valid {
			v.SetFragment(name, json.RawMessage(frags[i].String))
		}
	}
	return v, nil
}

func scanStoredRow(r rowScanner) (*StoredRow, error) {
	sr := &StoredRow{}
	var refSnp sql.NullString
	frags := make([]sql.NullString, len(variant.FragmentNames))

	dest := []any{
		&sr.RowID,
		&sr.Chromosome, &sr.PrimaryKey, &sr.Position, &sr.MetaseqID,
		&refSnp, &sr.BinPath, &sr.IsMultiAllelic, &sr.InvocationID,
	}
	for i := range frags {
		dest = append(dest, &frags[i])
	}
	if err := r.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan stored row: %w", err)
	}

	sr.RefSnpID = refSnp.String
	for i, name := range variant.FragmentNames {
		if frags[i].Valid {
			sr.SetFragment(name, json.RawMessage(frags[i].String))
		}
	}
	return sr, nil
}

func collectVariants(rows *sql.Rows) ([]*variant.Variant, error) {
	var out []*variant.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func fragmentArgs(v *variant.Variant) []any {
	args := make([]any, 0, len(variant.FragmentNames))
	for _, name := range variant.FragmentNames {
		args = append(args, nullableJSON(v.Fragment(name)))
	}
	return args
}
