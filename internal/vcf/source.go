package vcf

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vdb/internal/merge"
	"github.com/inodb/vibe-vdb/internal/variant"
)

// Source turns a VCF file into a stream of annotation payloads. Multi-allelic
// records are split so each payload carries exactly one alternate allele.
type Source struct {
	parser *Parser
	queue  []*Variant
}

// NewSource opens a VCF file as a payload source.
func NewSource(path string) (*Source, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	return &Source{parser: p}, nil
}

// Next returns the payload for the next alternate allele in the file, or
// nil, nil at end of input.
func (s *Source) Next() (*merge.Payload, error) {
	for len(s.queue) == 0 {
		v, err := s.parser.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		s.queue = SplitMultiAllelic(v)
	}

	v := s.queue[0]
	s.queue = s.queue[1:]
	p := v.Payload()
	return &p, nil
}

// Close closes the underlying parser.
func (s *Source) Close() error {
	return s.parser.Close()
}

// Payload converts a (single-allele) variant into a merge payload. Allele
// frequencies from the FREQ INFO field become an allele_frequencies fragment;
// a dbSNP id in the ID column becomes the external reference id.
func (v *Variant) Payload() merge.Payload {
	p := merge.Payload{
		Chromosome:    v.Chrom,
		Position:      v.Pos,
		Ref:           v.Ref,
		Alt:           v.Alt,
		ExternalRefID: v.RefSnpID(),
	}

	if freqs := v.Frequencies(); len(freqs) > 0 {
		if raw, err := json.Marshal(freqs); err == nil {
			p.Fragments = append(p.Fragments, merge.Fragment{
				Name:   variant.FragmentAlleleFrequencies,
				Value:  raw,
				Policy: merge.PolicyDeepMergeKeys,
			})
		}
	}

	return p
}

// Frequencies extracts this allele's population frequencies from the dbSNP
// FREQ INFO field. The field holds one block per source, each listing the
// reference frequency followed by one frequency per alternate allele:
//
//	FREQ=KOREAN:0.9954,0.004577|dbGaP_PopFreq:0.9998,0.0002414
//
// The allele's value sits at AltIndex+1 within each block; "." marks a
// missing value and is skipped.
func (v *Variant) Frequencies() map[string]float64 {
	raw, ok := v.Info["FREQ"].(string)
	if !ok || raw == "" {
		return nil
	}

	freqs := make(map[string]float64)
	for _, block := range strings.Split(raw, "|") {
		source, values, ok := strings.Cut(block, ":")
		if !ok {
			continue
		}
		fields := strings.Split(values, ",")
		idx := v.AltIndex + 1
		if idx >= len(fields) || fields[idx] == "." {
			continue
		}
		f, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			continue
		}
		freqs[source] = f
	}
	if len(freqs) == 0 {
		return nil
	}
	return freqs
}
