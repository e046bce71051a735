package binindex

import "github.com/inodb/vibe-vdb/internal/genome"

// Resolve maps a 1-based, inclusive interval to its deepest containing bin.
// Endpoints outside [1, chromosomeLength-1] are clamped into range first, so
// flanking windows that run off the chromosome still resolve; an unrecognized
// chromosome is the only error. By the partition invariant at most one bin
// per level can contain the interval, so the deepest match is unique.
func (idx *Index) Resolve(chrom string, start, end int64) (*Bin, error) {
	root, ok := idx.roots[genome.Normalize(chrom)]
	if !ok {
		return nil, ErrUnknownChromosome
	}

	start, end = clamp(start, end, root.End)

	b := root
	for {
		child := containing(b.children, start, end)
		if child == nil {
			return b, nil
		}
		b = child
	}
}

// clamp forces both endpoints into [1, length-1] and keeps start <= end.
func clamp(start, end, length int64) (int64, int64) {
	max := length - 1
	if start < 1 {
		start = 1
	} else if start > max {
		start = max
	}
	if end < 1 {
		end = 1
	} else if end > max {
		end = max
	}
	if end < start {
		end = start
	}
	return start, end
}

// containing returns the child whose interval is a superset of [start, end],
// or nil when the interval straddles the split point.
func containing(children []*Bin, start, end int64) *Bin {
	for _, c := range children {
		if start >= c.Start && end <= c.End {
			return c
		}
	}
	return nil
}
