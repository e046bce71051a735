// Package reconcile implements the per-chromosome duplicate maintenance
// pass: key groups holding more than one row are collapsed when the rows
// differ only in provenance and surfaced as conflicts when they diverge,
// and irregular leftover rows with no external reference id are removed
// when another record already covers their locus. The pass is idempotent.
package reconcile

import (
	"context"
	"encoding/json"
	"reflect"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vdb/internal/store"
	"github.com/inodb/vibe-vdb/internal/variant"
)

// Conflict reports a group of rows sharing a canonical identity whose
// content diverges: the same primary key with different annotations, or
// one identity split across key derivations. Conflicts are listed for
// operator review, never auto-resolved.
type Conflict struct {
	// PrimaryKey is the first surviving row's key.
	PrimaryKey string
	Rows       []store.StoredRow
}

// Report summarizes one reconcile pass over a chromosome.
type Report struct {
	Chromosome       string
	Collapsed        int
	Conflicts        []Conflict
	RemovedIrregular int
}

// Resolver runs reconcile passes. Callers must ensure no load is active
// against the partition while a pass runs.
type Resolver struct {
	store  *store.Store
	logger *zap.Logger
}

// NewResolver creates a resolver over a store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s, logger: zap.NewNop()}
}

// SetLogger sets the logger for reconcile operations.
func (r *Resolver) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Reconcile runs both maintenance steps over one chromosome partition and
// reports what changed. Running it again with no intervening loads yields
// an empty delta (conflicts are re-reported, nothing else changes).
func (r *Resolver) Reconcile(ctx context.Context, chrom string) (Report, error) {
	report := Report{Chromosome: chrom}

	rows, err := r.store.PartitionRows(ctx, chrom)
	if err != nil {
		return report, err
	}

	// Step 1: collapse or surface duplicate groups. Rows group by canonical
	// identity (both allele orders), not primary key alone: a record stored
	// bare and one stored under `<canonical>_rsID` share an identity and
	// must not coexist silently.
	var toDelete []int64
	deleted := make(map[int64]bool)
	groups := make(map[string][]store.StoredRow)
	var order []string
	for _, row := range rows {
		key := identityKey(&row)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		// Collapse provenance-only copies within each primary key first;
		// rows arrive ordered by key, so copies are contiguous.
		var survivors []store.StoredRow
		for start := 0; start < len(group); {
			end := start + 1
			for end < len(group) && group[end].PrimaryKey == group[start].PrimaryKey {
				end++
			}
			sub := group[start:end]
			if len(sub) > 1 && identicalUpToProvenance(sub) {
				for _, row := range sub[1:] {
					toDelete = append(toDelete, row.RowID)
					deleted[row.RowID] = true
				}
				report.Collapsed += len(sub) - 1
				survivors = append(survivors, sub[0])
			} else {
				survivors = append(survivors, sub...)
			}
			start = end
		}
		// Anything left beyond a single row diverges in content or in key
		// derivation; surface it, never auto-resolve.
		if len(survivors) > 1 {
			report.Conflicts = append(report.Conflicts, Conflict{
				PrimaryKey: survivors[0].PrimaryKey,
				Rows:       append([]store.StoredRow(nil), survivors...),
			})
		}
	}

	// Step 2: remove irregular rows that another record makes redundant.
	// An irregular canonical id (indel shorthand, range or ambiguity
	// markers) with no external reference id only survives when it is the
	// sole record at its locus.
	perPosition := make(map[int64]int)
	for _, row := range rows {
		if !deleted[row.RowID] {
			perPosition[row.Position]++
		}
	}
	conflicted := make(map[int64]bool)
	for _, c := range report.Conflicts {
		for _, row := range c.Rows {
			conflicted[row.RowID] = true
		}
	}
	for _, row := range rows {
		if deleted[row.RowID] || conflicted[row.RowID] {
			continue
		}
		if row.RefSnpID != "" || !variant.IsIrregularID(row.MetaseqID) {
			continue
		}
		if perPosition[row.Position] > 1 {
			toDelete = append(toDelete, row.RowID)
			deleted[row.RowID] = true
			perPosition[row.Position]--
			report.RemovedIrregular++
		}
	}

	if _, err := r.store.DeleteRows(ctx, chrom, toDelete); err != nil {
		return report, err
	}

	r.logger.Info("reconcile pass complete",
		zap.String("chromosome", chrom),
		zap.Int("collapsed", report.Collapsed),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Int("removed_irregular", report.RemovedIrregular))
	return report, nil
}

// identityKey normalizes a row's canonical id so both allele orders of the
// same variant land in one group. Unparseable ids group by their raw value.
func identityKey(row *store.StoredRow) string {
	id, err := variant.ParseIdentity(row.MetaseqID)
	if err != nil {
		return row.MetaseqID
	}
	if id.Alt < id.Ref {
		id.Ref, id.Alt = id.Alt, id.Ref
	}
	return id.String()
}

// identicalUpToProvenance reports whether every row in a group matches the
// first in all fields except last-writer invocation id and rowid.
func identicalUpToProvenance(group []store.StoredRow) bool {
	first := &group[0]
	for i := 1; i < len(group); i++ {
		row := &group[i]
		if row.MetaseqID != first.MetaseqID ||
			row.RefSnpID != first.RefSnpID ||
			row.Position != first.Position ||
			row.BinPath != first.BinPath ||
			row.IsMultiAllelic != first.IsMultiAllelic {
			return false
		}
		if !fragmentsEqual(&first.Variant, &row.Variant) {
			return false
		}
	}
	return true
}

// fragmentsEqual compares annotation fragments semantically: two fragments
// are equal when their decoded JSON values match, regardless of key order
// or whitespace.
func fragmentsEqual(a, b *variant.Variant) bool {
	for _, name := range variant.FragmentNames {
		if !jsonEqual(a.Fragment(name), b.Fragment(name)) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(av, bv)
}
