// Package binindex implements the multi-resolution genomic interval index.
// Each chromosome is covered by a fixed hierarchy of bins: level 0 spans the
// whole chromosome and every deeper level splits each bin in two, so the bins
// at any level partition the chromosome without overlap. A bin's path chains
// its ancestor labels (e.g. "chr7.L1.B2.L2.B1"), which makes ancestor checks
// plain prefix checks.
//
// The index is built once at bootstrap and is read-only afterward.
package binindex

import (
	"errors"
	"fmt"

	"github.com/inodb/vibe-vdb/internal/genome"
)

// ErrUnknownChromosome is returned when a query names a chromosome that has
// no bins in the reference.
var ErrUnknownChromosome = errors.New("unknown chromosome")

// Default hierarchy parameters. Thirteen levels over the largest human
// chromosome yield leaf bins of roughly 30kb.
const (
	DefaultMaxLevel = 13
	DefaultMinWidth = 10000
)

// Bin is one node in the hierarchy. Start/End are 1-based and inclusive,
// chromosome-relative.
type Bin struct {
	Chromosome string
	Level      int
	ID         int // child number within the parent (1 or 2); 1 at level 0
	Path       string
	Start      int64
	End        int64

	children []*Bin
}

// Entry is the persisted form of a bin, used to bootstrap the reference
// table and to rebuild the index from it.
type Entry struct {
	Chromosome string
	Level      int
	ID         int
	Path       string
	Start      int64
	End        int64
}

// Index holds the bin hierarchy for every chromosome in the reference set.
type Index struct {
	roots    map[string]*Bin
	maxLevel int
	minWidth int64
}

// Build constructs the full hierarchy from the reference chromosome lengths.
// Splitting stops at maxLevel or when a bin would drop below minWidth.
func Build(maxLevel int, minWidth int64) *Index {
	if maxLevel <= 0 {
		maxLevel = DefaultMaxLevel
	}
	if minWidth <= 0 {
		minWidth = DefaultMinWidth
	}

	idx := &Index{
		roots:    make(map[string]*Bin),
		maxLevel: maxLevel,
		minWidth: minWidth,
	}

	for _, chrom := range genome.All() {
		length, _ := genome.Length(chrom)
		root := &Bin{
			Chromosome: chrom,
			Level:      0,
			ID:         1,
			Path:       "chr" + chrom,
			Start:      1,
			End:        length,
		}
		idx.split(root)
		idx.roots[chrom] = root
	}

	return idx
}

// split recursively divides a bin into two equal halves until the depth or
// width limit is reached.
func (idx *Index) split(b *Bin) {
	if b.Level >= idx.maxLevel {
		return
	}
	width := b.End - b.Start + 1
	if width/2 < idx.minWidth {
		return
	}

	mid := b.Start + width/2 - 1
	level := b.Level + 1
	left := &Bin{
		Chromosome: b.Chromosome,
		Level:      level,
		ID:         1,
		Path:       fmt.Sprintf("%s.L%d.B1", b.Path, level),
		Start:      b.Start,
		End:        mid,
	}
	right := &Bin{
		Chromosome: b.Chromosome,
		Level:      level,
		ID:         2,
		Path:       fmt.Sprintf("%s.L%d.B2", b.Path, level),
		Start:      mid + 1,
		End:        b.End,
	}
	b.children = []*Bin{left, right}
	idx.split(left)
	idx.split(right)
}

// FromEntries rebuilds an index from persisted reference entries. Entries
// must form complete per-chromosome hierarchies; children are linked to
// parents by path prefix.
func FromEntries(entries []Entry) (*Index, error) {
	idx := &Index{roots: make(map[string]*Bin)}
	byPath := make(map[string]*Bin, len(entries))
	maxLevel := 0

	for _, e := range entries {
		b := &Bin{
			Chromosome: e.Chromosome,
			Level:      e.Level,
			ID:         e.ID,
			Path:       e.Path,
			Start:      e.Start,
			End:        e.End,
		}
		byPath[e.Path] = b
		if e.Level == 0 {
			idx.roots[e.Chromosome] = b
		}
		if e.Level > maxLevel {
			maxLevel = e.Level
		}
	}

	for _, b := range byPath {
		if b.Level == 0 {
			continue
		}
		parentPath := parentOf(b.Path)
		parent, ok := byPath[parentPath]
		if !ok {
			return nil, fmt.Errorf("bin %s: parent %s not in reference", b.Path, parentPath)
		}
		parent.children = append(parent.children, b)
	}

	// Keep children ordered by interval so descent can scan them in order.
	for _, b := range byPath {
		if len(b.children) == 2 && b.children[0].Start > b.children[1].Start {
			b.children[0], b.children[1] = b.children[1], b.children[0]
		}
	}

	idx.maxLevel = maxLevel
	return idx, nil
}

// parentOf strips the trailing ".L<n>.B<n>" label pair from a bin path.
func parentOf(path string) string {
	dots := 0
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			dots++
			if dots == 2 {
				return path[:i]
			}
		}
	}
	return path
}

// Walk visits every bin in the index, depth-first per chromosome in
// karyotype order. Used to bootstrap the persisted reference table.
func (idx *Index) Walk(fn func(*Bin)) {
	for _, chrom := range genome.All() {
		root, ok := idx.roots[chrom]
		if !ok {
			continue
		}
		walk(root, fn)
	}
}

func walk(b *Bin, fn func(*Bin)) {
	fn(b)
	for _, c := range b.children {
		walk(c, fn)
	}
}

// Chromosomes returns the chromosomes covered by the index.
func (idx *Index) Chromosomes() []string {
	var names []string
	for _, chrom := range genome.All() {
		if _, ok := idx.roots[chrom]; ok {
			names = append(names, chrom)
		}
	}
	return names
}
