// Package variant defines the canonical variant record and its identity
// scheme: the colon-delimited canonical id ("metaseq id"), the derived
// bounded primary key, and the standard display annotations computed from
// the alleles.
package variant

import "encoding/json"

// Names of the independently updatable annotation fragments carried by a
// variant record. These double as column names in the store.
const (
	FragmentDisplayAttributes     = "display_attributes"
	FragmentAlleleFrequencies     = "allele_frequencies"
	FragmentCADDScores            = "cadd_scores"
	FragmentMostSevereConsequence = "most_severe_consequence"
	FragmentRankedConsequences    = "ranked_consequences"
	FragmentLossOfFunction        = "loss_of_function"
	FragmentOtherAnnotation       = "other_annotation"
	FragmentVEPOutput             = "vep_output"
)

// FragmentNames lists every annotation fragment in storage order.
var FragmentNames = []string{
	FragmentDisplayAttributes,
	FragmentAlleleFrequencies,
	FragmentCADDScores,
	FragmentMostSevereConsequence,
	FragmentRankedConsequences,
	FragmentLossOfFunction,
	FragmentOtherAnnotation,
	FragmentVEPOutput,
}

// IsFragmentName reports whether name is a known annotation fragment.
func IsFragmentName(name string) bool {
	for _, n := range FragmentNames {
		if n == name {
			return true
		}
	}
	return false
}

// Variant is one stored variant record. There is at most one live record
// per (chromosome, primary key); BinPath is assigned on first insert and
// never changes afterward.
type Variant struct {
	Chromosome     string
	Position       int64
	MetaseqID      string // canonical id chrom:pos:ref:alt
	RefSnpID       string // external reference id, empty when none
	PrimaryKey     string
	BinPath        string
	IsMultiAllelic bool

	// Annotation fragments, keyed by fragment name. Absent fragments are
	// simply missing from the map.
	Fragments map[string]json.RawMessage

	// InvocationID is the id of the last load invocation that wrote this
	// record.
	InvocationID int64
}

// Fragment returns the named fragment, or nil when the record does not
// carry it.
func (v *Variant) Fragment(name string) json.RawMessage {
	if v.Fragments == nil {
		return nil
	}
	return v.Fragments[name]
}

// SetFragment stores a fragment on the record, allocating the map on first
// use.
func (v *Variant) SetFragment(name string, value json.RawMessage) {
	if v.Fragments == nil {
		v.Fragments = make(map[string]json.RawMessage)
	}
	v.Fragments[name] = value
}
