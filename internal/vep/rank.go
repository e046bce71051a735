package vep

// Impact levels for variant consequences.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
	ImpactModifier = "MODIFIER"
)

// severityRank orders Sequence Ontology consequence terms from most to least
// severe, following the Ensembl consequence ranking. Lower rank is more
// severe; unknown terms rank after everything listed.
var severityRank = map[string]int{
	"transcript_ablation":                1,
	"splice_acceptor_variant":            2,
	"splice_donor_variant":               3,
	"stop_gained":                        4,
	"frameshift_variant":                 5,
	"stop_lost":                          6,
	"start_lost":                         7,
	"transcript_amplification":           8,
	"inframe_insertion":                  9,
	"inframe_deletion":                   10,
	"missense_variant":                   11,
	"protein_altering_variant":           12,
	"splice_region_variant":              13,
	"incomplete_terminal_codon_variant":  14,
	"start_retained_variant":             15,
	"stop_retained_variant":              16,
	"synonymous_variant":                 17,
	"coding_sequence_variant":            18,
	"mature_miRNA_variant":               19,
	"5_prime_UTR_variant":                20,
	"3_prime_UTR_variant":                21,
	"non_coding_transcript_exon_variant": 22,
	"intron_variant":                     23,
	"NMD_transcript_variant":             24,
	"non_coding_transcript_variant":      25,
	"upstream_gene_variant":              26,
	"downstream_gene_variant":            27,
	"TFBS_ablation":                      28,
	"TFBS_amplification":                 29,
	"TF_binding_site_variant":            30,
	"regulatory_region_ablation":         31,
	"regulatory_region_amplification":    32,
	"feature_elongation":                 33,
	"regulatory_region_variant":          34,
	"feature_truncation":                 35,
	"intergenic_variant":                 36,
}

const unrankedSeverity = 100

// TermRank returns the severity rank of a consequence term; lower is more
// severe.
func TermRank(term string) int {
	if r, ok := severityRank[term]; ok {
		return r
	}
	return unrankedSeverity
}

// BestRank returns the most severe rank among a set of consequence terms.
func BestRank(terms []string) int {
	best := unrankedSeverity
	for _, t := range terms {
		if r := TermRank(t); r < best {
			best = r
		}
	}
	return best
}

// ImpactOf maps a consequence term to its impact level.
func ImpactOf(term string) string {
	switch r := TermRank(term); {
	case r <= 8:
		return ImpactHigh
	case r <= 12:
		return ImpactModerate
	case r <= 18:
		return ImpactLow
	default:
		return ImpactModifier
	}
}
