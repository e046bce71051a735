// Package vep reads Ensembl VEP JSON output (one result object per line)
// and converts each result into an annotation payload: the full VEP record,
// the most severe consequence, consequences ranked by severity, loss of
// function calls, and colocated population frequencies.
package vep

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/vibe-vdb/internal/merge"
	"github.com/inodb/vibe-vdb/internal/variant"
)

// Result is one parsed VEP output line. Raw holds the unmodified JSON so the
// full record can be stored verbatim.
type Result struct {
	Input                  string            `json:"input"`
	ID                     string            `json:"id"`
	SeqRegionName          string            `json:"seq_region_name"`
	Start                  int64             `json:"start"`
	AlleleString           string            `json:"allele_string"`
	MostSevereConsequence  string            `json:"most_severe_consequence"`
	TranscriptConsequences []json.RawMessage `json:"transcript_consequences"`
	ColocatedVariants      []Colocated       `json:"colocated_variants"`

	Raw json.RawMessage `json:"-"`
}

// Colocated is a known variant overlapping the VEP input.
type Colocated struct {
	ID          string                                `json:"id"`
	Frequencies map[string]map[string]json.RawMessage `json:"frequencies"`
}

// transcriptConsequence carries the fields needed for ranking and loss of
// function extraction; the raw object is kept alongside for output.
type transcriptConsequence struct {
	ConsequenceTerms []string `json:"consequence_terms"`
	TranscriptID     string   `json:"transcript_id"`
	Canonical        int      `json:"canonical"`
	Lof              string   `json:"lof"`
	LofFilter        string   `json:"lof_filter"`
	LofFlags         string   `json:"lof_flags"`

	raw json.RawMessage
}

// Reader streams results from a VEP JSON output file, plain or gzipped.
type Reader struct {
	scanner    *bufio.Scanner
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
}

// NewReader opens a VEP JSON output file.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vep output: %w", err)
	}

	r := &Reader{file: file}
	var src io.Reader = file

	buf := make([]byte, 2)
	if _, err := file.Read(buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read vep output: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek vep output: %w", err)
	}
	if buf[0] == 0x1f && buf[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		src = r.gzipReader
	}

	r.scanner = bufio.NewScanner(src)
	// VEP lines for densely annotated regions run long.
	r.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return r, nil
}

// Next returns the next parsed result, or nil, nil at end of input.
func (r *Reader) Next() (*Result, error) {
	for r.scanner.Scan() {
		r.lineNumber++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		res := &Result{}
		if err := json.Unmarshal([]byte(line), res); err != nil {
			return nil, fmt.Errorf("parse vep result at line %d: %w", r.lineNumber, err)
		}
		res.Raw = json.RawMessage(line)
		return res, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vep output: %w", err)
	}
	return nil, nil
}

// Close closes the reader and underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// LineNumber returns the current line number being processed.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Source adapts a Reader into a payload stream for the load pipeline.
type Source struct {
	reader *Reader
}

// NewSource opens a VEP JSON output file as a payload source.
func NewSource(path string) (*Source, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	return &Source{reader: r}, nil
}

// Next returns the payload for the next result, or nil, nil at end of input.
func (s *Source) Next() (*merge.Payload, error) {
	res, err := s.reader.Next()
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	p, err := res.Payload()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Close closes the underlying reader.
func (s *Source) Close() error {
	return s.reader.Close()
}

// Payload converts a result into a merge payload.
func (res *Result) Payload() (merge.Payload, error) {
	p, err := res.identity()
	if err != nil {
		return p, err
	}

	p.Fragments = append(p.Fragments, merge.Fragment{
		Name:   variant.FragmentVEPOutput,
		Value:  res.Raw,
		Policy: merge.PolicyReplace,
	})

	consequences := res.parsedConsequences()

	if msc := res.mostSevere(consequences); msc != nil {
		p.Fragments = append(p.Fragments, merge.Fragment{
			Name:   variant.FragmentMostSevereConsequence,
			Value:  msc,
			Policy: merge.PolicyReplace,
		})
	}

	if ranked := rankedConsequences(consequences); ranked != nil {
		p.Fragments = append(p.Fragments, merge.Fragment{
			Name:   variant.FragmentRankedConsequences,
			Value:  ranked,
			Policy: merge.PolicyReplace,
		})
	}

	if lof := lossOfFunction(consequences); lof != nil {
		p.Fragments = append(p.Fragments, merge.Fragment{
			Name:   variant.FragmentLossOfFunction,
			Value:  lof,
			Policy: merge.PolicyReplace,
		})
	}

	if freqs := res.frequencies(p.Alt); freqs != nil {
		p.Fragments = append(p.Fragments, merge.Fragment{
			Name:   variant.FragmentAlleleFrequencies,
			Value:  freqs,
			Policy: merge.PolicyDeepMergeKeys,
		})
	}

	return p, nil
}

// identity derives the variant identity from the echoed VCF input line,
// falling back to the region fields when the input is absent.
func (res *Result) identity() (merge.Payload, error) {
	var p merge.Payload

	if res.Input != "" {
		fields := strings.Split(res.Input, "\t")
		if len(fields) >= 5 {
			pos, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return p, fmt.Errorf("vep input has non-numeric position: %q", res.Input)
			}
			p.Chromosome = fields[0]
			p.Position = pos
			p.Ref = fields[3]
			p.Alt = fields[4]
			if strings.HasPrefix(fields[2], "rs") {
				p.ExternalRefID = fields[2]
			}
			if p.ExternalRefID == "" {
				p.ExternalRefID = res.refSnpID()
			}
			return p, nil
		}
	}

	ref, alt, ok := strings.Cut(res.AlleleString, "/")
	if !ok || res.SeqRegionName == "" {
		return p, fmt.Errorf("vep result carries no usable identity: %q", res.ID)
	}
	p.Chromosome = res.SeqRegionName
	p.Position = res.Start
	p.Ref = ref
	p.Alt = alt
	p.ExternalRefID = res.refSnpID()
	return p, nil
}

// refSnpID returns the dbSNP id among the colocated variants, if any.
func (res *Result) refSnpID() string {
	for _, c := range res.ColocatedVariants {
		if strings.HasPrefix(c.ID, "rs") {
			return c.ID
		}
	}
	return ""
}

func (res *Result) parsedConsequences() []transcriptConsequence {
	out := make([]transcriptConsequence, 0, len(res.TranscriptConsequences))
	for _, raw := range res.TranscriptConsequences {
		var tc transcriptConsequence
		if err := json.Unmarshal(raw, &tc); err != nil {
			continue
		}
		tc.raw = raw
		out = append(out, tc)
	}
	return out
}

// mostSevere returns the consequence object whose terms include the
// reported most severe consequence, preferring canonical transcripts.
func (res *Result) mostSevere(consequences []transcriptConsequence) json.RawMessage {
	var best json.RawMessage
	bestCanonical := -1
	for _, tc := range consequences {
		for _, term := range tc.ConsequenceTerms {
			if term != res.MostSevereConsequence {
				continue
			}
			if tc.Canonical > bestCanonical {
				bestCanonical = tc.Canonical
				best = tc.raw
			}
		}
	}
	if best != nil {
		return best
	}
	if res.MostSevereConsequence == "" {
		return nil
	}
	fallback, err := json.Marshal(map[string]any{
		"consequence_terms": []string{res.MostSevereConsequence},
		"impact":            ImpactOf(res.MostSevereConsequence),
	})
	if err != nil {
		return nil
	}
	return fallback
}

// rankedConsequences sorts the transcript consequences from most to least
// severe; canonical transcripts break ties.
func rankedConsequences(consequences []transcriptConsequence) json.RawMessage {
	if len(consequences) == 0 {
		return nil
	}
	sorted := append([]transcriptConsequence(nil), consequences...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := BestRank(sorted[i].ConsequenceTerms), BestRank(sorted[j].ConsequenceTerms)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Canonical > sorted[j].Canonical
	})

	raws := make([]json.RawMessage, len(sorted))
	for i, tc := range sorted {
		raws[i] = tc.raw
	}
	out, err := json.Marshal(map[string]any{"transcript_consequences": raws})
	if err != nil {
		return nil
	}
	return out
}

// lossOfFunction collects LOFTEE calls from the transcript consequences.
func lossOfFunction(consequences []transcriptConsequence) json.RawMessage {
	type lofCall struct {
		TranscriptID string `json:"transcript_id"`
		Lof          string `json:"lof"`
		LofFilter    string `json:"lof_filter,omitempty"`
		LofFlags     string `json:"lof_flags,omitempty"`
	}
	var calls []lofCall
	for _, tc := range consequences {
		if tc.Lof == "" {
			continue
		}
		calls = append(calls, lofCall{
			TranscriptID: tc.TranscriptID,
			Lof:          tc.Lof,
			LofFilter:    tc.LofFilter,
			LofFlags:     tc.LofFlags,
		})
	}
	if len(calls) == 0 {
		return nil
	}
	out, err := json.Marshal(map[string]any{"calls": calls})
	if err != nil {
		return nil
	}
	return out
}

// frequencies extracts the colocated frequency map for the payload's alt
// allele.
func (res *Result) frequencies(alt string) json.RawMessage {
	for _, c := range res.ColocatedVariants {
		byAllele, ok := c.Frequencies[alt]
		if !ok || len(byAllele) == 0 {
			continue
		}
		out, err := json.Marshal(byAllele)
		if err != nil {
			continue
		}
		return out
	}
	return nil
}
