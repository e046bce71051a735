package vep

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vdb/internal/variant"
)

const sampleResult = `{"input":"19\t44908684\trs429358\tT\tC\t.\t.\t.","most_severe_consequence":"missense_variant","seq_region_name":"19","start":44908684,"allele_string":"T/C","transcript_consequences":[{"transcript_id":"ENST00000252486","gene_symbol":"APOE","canonical":1,"consequence_terms":["missense_variant"],"impact":"MODERATE"},{"transcript_id":"ENST00000446996","consequence_terms":["downstream_gene_variant"],"impact":"MODIFIER"}],"colocated_variants":[{"id":"rs429358","frequencies":{"C":{"af":0.155,"gnomad":0.144}}}]}`

const lofResult = `{"input":"1\t100\t.\tG\tGA\t.\t.\t.","most_severe_consequence":"frameshift_variant","transcript_consequences":[{"transcript_id":"ENST00000001","consequence_terms":["frameshift_variant"],"lof":"HC","lof_filter":"","lof_flags":"SINGLE_EXON"}]}`

func writeResults(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vep.json")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReaderParsesResults(t *testing.T) {
	r, err := NewReader(writeResults(t, sampleResult, "", lofResult))
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "missense_variant", res.MostSevereConsequence)
	assert.Len(t, res.TranscriptConsequences, 2)
	assert.JSONEq(t, sampleResult, string(res.Raw))

	res, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "frameshift_variant", res.MostSevereConsequence)

	res, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestPayloadIdentityFromInput(t *testing.T) {
	var res Result
	require.NoError(t, json.Unmarshal([]byte(sampleResult), &res))
	res.Raw = json.RawMessage(sampleResult)

	p, err := res.Payload()
	require.NoError(t, err)
	assert.Equal(t, "19", p.Chromosome)
	assert.Equal(t, int64(44908684), p.Position)
	assert.Equal(t, "T", p.Ref)
	assert.Equal(t, "C", p.Alt)
	assert.Equal(t, "rs429358", p.ExternalRefID)
}

func TestPayloadIdentityFromRegion(t *testing.T) {
	res := Result{
		SeqRegionName: "7",
		Start:         117559590,
		AlleleString:  "G/A",
		Raw:           json.RawMessage(`{}`),
	}
	p, err := res.Payload()
	require.NoError(t, err)
	assert.Equal(t, "7", p.Chromosome)
	assert.Equal(t, int64(117559590), p.Position)
	assert.Equal(t, "G", p.Ref)
	assert.Equal(t, "A", p.Alt)
}

func TestPayloadFragments(t *testing.T) {
	var res Result
	require.NoError(t, json.Unmarshal([]byte(sampleResult), &res))
	res.Raw = json.RawMessage(sampleResult)

	p, err := res.Payload()
	require.NoError(t, err)

	byName := map[string]json.RawMessage{}
	for _, f := range p.Fragments {
		byName[f.Name] = f.Value
	}

	assert.JSONEq(t, sampleResult, string(byName[variant.FragmentVEPOutput]))
	assert.Contains(t, string(byName[variant.FragmentMostSevereConsequence]), "ENST00000252486")
	assert.JSONEq(t, `{"af":0.155,"gnomad":0.144}`, string(byName[variant.FragmentAlleleFrequencies]))

	// Ranked consequences: missense before downstream.
	var ranked struct {
		TranscriptConsequences []struct {
			TranscriptID string `json:"transcript_id"`
		} `json:"transcript_consequences"`
	}
	require.NoError(t, json.Unmarshal(byName[variant.FragmentRankedConsequences], &ranked))
	require.Len(t, ranked.TranscriptConsequences, 2)
	assert.Equal(t, "ENST00000252486", ranked.TranscriptConsequences[0].TranscriptID)
	assert.Equal(t, "ENST00000446996", ranked.TranscriptConsequences[1].TranscriptID)

	_, hasLof := byName[variant.FragmentLossOfFunction]
	assert.False(t, hasLof, "no LOFTEE calls in this result")
}

func TestPayloadLossOfFunction(t *testing.T) {
	var res Result
	require.NoError(t, json.Unmarshal([]byte(lofResult), &res))
	res.Raw = json.RawMessage(lofResult)

	p, err := res.Payload()
	require.NoError(t, err)

	var lof json.RawMessage
	for _, f := range p.Fragments {
		if f.Name == variant.FragmentLossOfFunction {
			lof = f.Value
		}
	}
	require.NotNil(t, lof)
	assert.JSONEq(t,
		`{"calls":[{"transcript_id":"ENST00000001","lof":"HC","lof_flags":"SINGLE_EXON"}]}`,
		string(lof))
}

func TestTermRanking(t *testing.T) {
	assert.Less(t, TermRank("stop_gained"), TermRank("missense_variant"))
	assert.Less(t, TermRank("missense_variant"), TermRank("synonymous_variant"))
	assert.Less(t, TermRank("synonymous_variant"), TermRank("intron_variant"))
	assert.Equal(t, unrankedSeverity, TermRank("made_up_term"))

	assert.Equal(t, TermRank("stop_gained"), BestRank([]string{"intron_variant", "stop_gained"}))
}

func TestImpactOf(t *testing.T) {
	assert.Equal(t, ImpactHigh, ImpactOf("frameshift_variant"))
	assert.Equal(t, ImpactModerate, ImpactOf("missense_variant"))
	assert.Equal(t, ImpactLow, ImpactOf("synonymous_variant"))
	assert.Equal(t, ImpactModifier, ImpactOf("intron_variant"))
}
