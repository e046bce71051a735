package binindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vdb/internal/genome"
)

func buildDefault(t *testing.T) *Index {
	t.Helper()
	return Build(DefaultMaxLevel, DefaultMinWidth)
}

func TestBuildCoversAllChromosomes(t *testing.T) {
	idx := buildDefault(t)
	assert.Len(t, idx.Chromosomes(), 25)
}

func TestLevelZeroSpansChromosome(t *testing.T) {
	idx := buildDefault(t)
	length, _ := genome.Length("7")

	b, err := idx.Resolve("7", 1, length-1)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Level)
	assert.Equal(t, "chr7", b.Path)
	assert.Equal(t, int64(1), b.Start)
	assert.Equal(t, length, b.End)
}

func TestPartitionInvariant(t *testing.T) {
	// At every level the bins partition the chromosome: intervals are
	// contiguous, non-overlapping, and jointly span [1, length].
	idx := Build(6, DefaultMinWidth)
	length, _ := genome.Length("21")

	byLevel := make(map[int][]*Bin)
	idx.Walk(func(b *Bin) {
		if b.Chromosome == "21" {
			byLevel[b.Level] = append(byLevel[b.Level], b)
		}
	})
	require.NotEmpty(t, byLevel[6])

	for level, bins := range byLevel {
		var next int64 = 1
		for _, b := range bins {
			assert.Equal(t, next, b.Start, "level %d gap before %s", level, b.Path)
			assert.GreaterOrEqual(t, b.End, b.Start)
			next = b.End + 1
		}
		assert.Equal(t, length+1, next, "level %d does not span chromosome", level)
	}
}

func TestChildSubsetOfParent(t *testing.T) {
	idx := Build(4, DefaultMinWidth)
	idx.Walk(func(b *Bin) {
		for _, c := range b.children {
			assert.GreaterOrEqual(t, c.Start, b.Start)
			assert.LessOrEqual(t, c.End, b.End)
			assert.True(t, strings.HasPrefix(c.Path, b.Path+"."), "child path %s not under %s", c.Path, b.Path)
		}
	})
}

func TestResolveDeepestUnique(t *testing.T) {
	idx := buildDefault(t)

	b, err := idx.Resolve("7", 100000, 100000)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLevel, b.Level)
	assert.LessOrEqual(t, b.Start, int64(100000))
	assert.GreaterOrEqual(t, b.End, int64(100000))

	// No deeper bin qualifies: the result has no child containing the query.
	assert.Nil(t, containing(b.children, 100000, 100000))
}

func TestResolveSupersetProperty(t *testing.T) {
	idx := buildDefault(t)
	cases := []struct {
		chrom      string
		start, end int64
	}{
		{"1", 1, 1},
		{"1", 248956421, 248956421},
		{"7", 100000, 200000},
		{"X", 5000000, 5000001},
		{"M", 1, 16568},
	}
	for _, tc := range cases {
		b, err := idx.Resolve(tc.chrom, tc.start, tc.end)
		require.NoError(t, err)
		assert.LessOrEqual(t, b.Start, tc.start)
		assert.GreaterOrEqual(t, b.End, tc.end)
	}
}

func TestResolveStraddlingIntervalStopsAtAncestor(t *testing.T) {
	idx := buildDefault(t)
	length, _ := genome.Length("7")
	mid := int64(1) + length/2 - 1

	// An interval spanning the level-1 split can only live in the root bin.
	b, err := idx.Resolve("7", mid, mid+1)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Level)
}

func TestResolveClamping(t *testing.T) {
	idx := buildDefault(t)

	clamped, err := idx.Resolve("22", -5, 100)
	require.NoError(t, err)
	exact, err := idx.Resolve("22", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, exact.Path, clamped.Path)

	length, _ := genome.Length("22")
	clamped, err = idx.Resolve("22", length-100, length+5000)
	require.NoError(t, err)
	exact, err = idx.Resolve("22", length-100, length-1)
	require.NoError(t, err)
	assert.Equal(t, exact.Path, clamped.Path)
}

func TestResolveUnknownChromosome(t *testing.T) {
	idx := buildDefault(t)
	_, err := idx.Resolve("chr99", 1, 100)
	assert.ErrorIs(t, err, ErrUnknownChromosome)

	empty := &Index{roots: map[string]*Bin{}}
	_, err = empty.Resolve("1", 1, 100)
	assert.ErrorIs(t, err, ErrUnknownChromosome)
}

func TestResolveNormalizesChromosome(t *testing.T) {
	idx := buildDefault(t)
	a, err := idx.Resolve("chr7", 100000, 100000)
	require.NoError(t, err)
	b, err := idx.Resolve("7", 100000, 100000)
	require.NoError(t, err)
	assert.Equal(t, a.Path, b.Path)
}

func TestEntriesRoundTrip(t *testing.T) {
	idx := Build(5, DefaultMinWidth)

	var entries []Entry
	idx.Walk(func(b *Bin) {
		entries = append(entries, Entry{
			Chromosome: b.Chromosome,
			Level:      b.Level,
			ID:         b.ID,
			Path:       b.Path,
			Start:      b.Start,
			End:        b.End,
		})
	})

	rebuilt, err := FromEntries(entries)
	require.NoError(t, err)

	for _, q := range []struct {
		chrom      string
		start, end int64
	}{
		{"1", 1000000, 1000100},
		{"7", 100000, 100000},
		{"X", 42, 42},
	} {
		want, err := idx.Resolve(q.chrom, q.start, q.end)
		require.NoError(t, err)
		got, err := rebuilt.Resolve(q.chrom, q.start, q.end)
		require.NoError(t, err)
		assert.Equal(t, want.Path, got.Path)
	}
}

func TestFromEntriesMissingParent(t *testing.T) {
	_, err := FromEntries([]Entry{
		{Chromosome: "1", Level: 1, ID: 1, Path: "chr1.L1.B1", Start: 1, End: 100},
	})
	assert.Error(t, err)
}

func TestParentOf(t *testing.T) {
	assert.Equal(t, "chr1", parentOf("chr1.L1.B1"))
	assert.Equal(t, "chr1.L1.B2", parentOf("chr1.L1.B2.L2.B1"))
}
