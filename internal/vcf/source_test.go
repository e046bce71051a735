package vcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vdb/internal/merge"
	"github.com/inodb/vibe-vdb/internal/variant"
)

func TestSourceSplitsMultiAllelic(t *testing.T) {
	src, err := NewSource(writeVCF(t, sampleVCF))
	require.NoError(t, err)
	defer src.Close()

	var payloads []*merge.Payload
	for {
		p, err := src.Next()
		require.NoError(t, err)
		if p == nil {
			break
		}
		payloads = append(payloads, p)
	}

	// Three records, the last with two alternate alleles.
	require.Len(t, payloads, 4)
	assert.Equal(t, "AC", payloads[0].Alt)
	assert.Equal(t, "rs367896724", payloads[0].ExternalRefID)
	assert.Equal(t, "C", payloads[2].Alt)
	assert.Equal(t, "G", payloads[3].Alt)
	assert.Equal(t, "rs429358", payloads[3].ExternalRefID)
}

func TestPayloadFrequencies(t *testing.T) {
	v := &Variant{
		Chrom: "1", Pos: 10177, ID: "rs367896724", Ref: "A", Alt: "AC",
		Info: map[string]interface{}{"FREQ": "1000Genomes:0.5747,0.4253|GnomAD:0.6,0.4"},
	}

	freqs := v.Frequencies()
	require.Len(t, freqs, 2)
	assert.InDelta(t, 0.4253, freqs["1000Genomes"], 1e-9)
	assert.InDelta(t, 0.4, freqs["GnomAD"], 1e-9)

	p := v.Payload()
	require.Len(t, p.Fragments, 1)
	assert.Equal(t, variant.FragmentAlleleFrequencies, p.Fragments[0].Name)
	assert.Equal(t, merge.PolicyDeepMergeKeys, p.Fragments[0].Policy)
	assert.JSONEq(t, `{"1000Genomes":0.4253,"GnomAD":0.4}`, string(p.Fragments[0].Value))
}

func TestFrequenciesSecondAllele(t *testing.T) {
	v := &Variant{
		Chrom: "19", Pos: 44908684, Ref: "T", Alt: "G", AltIndex: 1,
		Info: map[string]interface{}{"FREQ": "TOPMED:0.85,0.14,.|GnomAD:0.8,0.1,0.1"},
	}

	freqs := v.Frequencies()
	// TOPMED has no value for the second allele.
	require.Len(t, freqs, 1)
	assert.InDelta(t, 0.1, freqs["GnomAD"], 1e-9)
}

func TestFrequenciesAbsent(t *testing.T) {
	v := &Variant{Chrom: "1", Pos: 100, Ref: "A", Alt: "T", Info: map[string]interface{}{}}
	assert.Nil(t, v.Frequencies())
	assert.Empty(t, v.Payload().Fragments)
}
