// Package vcf reads variant records from VCF files and converts them into
// annotation payloads for the merge engine.
package vcf

import "strings"

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom    string                 // Chromosome name (e.g., "12", "chr12")
	Pos      int64                  // 1-based genomic position
	ID       string                 // Variant identifier (e.g., rs ID)
	Ref      string                 // Reference allele
	Alt      string                 // Alternate allele (single allele after splitting)
	AltIndex int                    // Index of Alt in the original ALT column
	Qual     float64                // Quality score
	Filter   string                 // Filter status (PASS or filter name)
	Info     map[string]interface{} // INFO field key-value pairs
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v *Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant is a deletion.
func (v *Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// RefSnpID returns the ID column when it carries a dbSNP reference id,
// otherwise "". VCF uses "." for variants without an id.
func (v *Variant) RefSnpID() string {
	if strings.HasPrefix(v.ID, "rs") {
		return v.ID
	}
	return ""
}
