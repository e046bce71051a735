package variant

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("chr1:100:A:T")
	require.NoError(t, err)
	assert.Equal(t, "1", id.Chromosome)
	assert.Equal(t, int64(100), id.Position)
	assert.Equal(t, "A", id.Ref)
	assert.Equal(t, "T", id.Alt)
	assert.Equal(t, "1:100:A:T", id.String())
}

func TestParseIdentityMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"1:100:A",
		"1:100:A:T:extra",
		"1:abc:A:T",
		"rs12345",
	} {
		_, err := ParseIdentity(bad)
		assert.ErrorIs(t, err, ErrMalformedIdentity, "input %q", bad)
	}
}

func TestIdentitySwapped(t *testing.T) {
	id, err := ParseIdentity("1:100:A:T")
	require.NoError(t, err)
	assert.Equal(t, "1:100:T:A", id.Swapped().String())
	assert.Equal(t, id, id.Swapped().Swapped())
}

func TestPrimaryKeyDeterministic(t *testing.T) {
	pk1, err := PrimaryKey("1:100:A:T", "rs123")
	require.NoError(t, err)
	pk2, err := PrimaryKey("1:100:A:T", "rs123")
	require.NoError(t, err)
	assert.Equal(t, pk1, pk2)
	assert.Equal(t, "1:100:A:T_rs123", pk1)
}

func TestPrimaryKeyNoExternalRef(t *testing.T) {
	pk, err := PrimaryKey("7:100000:G:A", "")
	require.NoError(t, err)
	assert.Equal(t, "7:100000:G:A", pk)
}

func TestPrimaryKeyTruncation(t *testing.T) {
	longAlt := strings.Repeat("CAGT", 30)
	id := MetaseqID("1", 110852777, "C", longAlt)

	pk, err := PrimaryKey(id, "rs71575164")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(pk), MaxKeyPrefix+1+len("rs71575164"))
	assert.True(t, strings.HasPrefix(pk, id[:MaxKeyPrefix]))
	assert.True(t, strings.HasSuffix(pk, "_rs71575164"))
}

func TestPrimaryKeyMalformedProducesNoKey(t *testing.T) {
	pk, err := PrimaryKey("not-a-variant", "rs1")
	assert.ErrorIs(t, err, ErrMalformedIdentity)
	assert.Empty(t, pk)
}

func TestNormalizeAlleles(t *testing.T) {
	tests := []struct {
		ref, alt         string
		dash             bool
		wantRef, wantAlt string
	}{
		{"A", "T", false, "A", "T"},           // SNV untouched
		{"CAGT", "CG", false, "AGT", "G"},     // shared left prefix stripped
		{"CA", "C", true, "A", "-"},           // deletion, dash display
		{"C", "CTT", true, "-", "TT"},         // insertion, dash display
		{"AT", "GC", false, "AT", "GC"},       // MNV untouched
		{"CA", "C", false, "A", ""},           // deletion, raw
	}
	for _, tc := range tests {
		gotRef, gotAlt := NormalizeAlleles(tc.ref, tc.alt, tc.dash)
		assert.Equal(t, tc.wantRef, gotRef, "%s/%s", tc.ref, tc.alt)
		assert.Equal(t, tc.wantAlt, gotAlt, "%s/%s", tc.ref, tc.alt)
	}
}

func TestDisplayAttributes(t *testing.T) {
	snv := DisplayAttributes("G", "A", 100000)
	assert.Equal(t, "single nucleotide variant", snv["variant_class"])
	assert.Equal(t, "G>A", snv["display_allele"])
	assert.Equal(t, int64(100000), snv["location_end"])

	del := DisplayAttributes("CA", "C", 500)
	assert.Equal(t, "deletion", del["variant_class"])
	assert.Equal(t, "delA", del["display_allele"])

	ins := DisplayAttributes("C", "CTT", 500)
	assert.Equal(t, "insertion", ins["variant_class"])
	assert.Equal(t, "insTT", ins["display_allele"])
	assert.Equal(t, int64(501), ins["location_end"])

	inv := DisplayAttributes("ACGT", "TGCA", 500)
	assert.Equal(t, "inversion", inv["variant_class"])
	assert.Equal(t, "invACGT", inv["display_allele"])
}

func TestIsIrregularID(t *testing.T) {
	assert.False(t, IsIrregularID("1:100:A:T"))
	assert.False(t, IsIrregularID("1:100:CAGT:CG"))
	assert.True(t, IsIrregularID("1:100:A:-"))        // deletion shorthand
	assert.True(t, IsIrregularID("1:100:A:<DEL>"))    // symbolic allele
	assert.True(t, IsIrregularID("1:100:A:R"))        // ambiguity code
	assert.True(t, IsIrregularID("1:100:A:N"))        // ambiguous base
	assert.True(t, IsIrregularID("1:100-200:A:T"))    // range marker
	assert.True(t, IsIrregularID("not:parseable"))
}

func TestFragmentAccessors(t *testing.T) {
	v := &Variant{}
	assert.Nil(t, v.Fragment(FragmentCADDScores))

	v.SetFragment(FragmentCADDScores, json.RawMessage(`{"CADD_phred":12.3}`))
	assert.JSONEq(t, `{"CADD_phred":12.3}`, string(v.Fragment(FragmentCADDScores)))
}

func TestIsFragmentName(t *testing.T) {
	assert.True(t, IsFragmentName("cadd_scores"))
	assert.True(t, IsFragmentName("allele_frequencies"))
	assert.False(t, IsFragmentName("bin_index"))
	assert.False(t, IsFragmentName(""))
}
