package variant

// NormalizeAlleles removes the shared left prefix from a ref/alt allele
// pair (e.g. CAGT/CG -> AGT/G). When dashForEmpty is set an allele that
// normalizes to the empty string is rendered as "-", the display
// convention for pure insertions and deletions. SNVs and MNVs are returned
// unchanged.
func NormalizeAlleles(ref, alt string, dashForEmpty bool) (string, string) {
	if len(ref) == 1 && len(alt) == 1 {
		return ref, alt
	}

	shared := 0
	for shared < len(ref) && shared < len(alt) && ref[shared] == alt[shared] {
		shared++
	}
	if shared == 0 {
		return ref, alt
	}

	normRef := ref[shared:]
	normAlt := alt[shared:]
	if dashForEmpty {
		if normRef == "" {
			normRef = "-"
		}
		if normAlt == "" {
			normAlt = "-"
		}
	}
	return normRef, normAlt
}

// VariantClass classifies a ref/alt pair by length relation.
type VariantClass string

const (
	ClassSNV       VariantClass = "SNV"
	ClassMNV       VariantClass = "MNV"
	ClassInsertion VariantClass = "INS"
	ClassDeletion  VariantClass = "DEL"
	ClassIndel     VariantClass = "INDEL"
)

// DisplayAttributes derives the standard display annotation for a variant:
// its class, display allele, and dbSNP-compatible start/end locations. The
// result is stored as the display_attributes fragment on first insert.
func DisplayAttributes(ref, alt string, pos int64) map[string]any {
	normRef, normAlt := NormalizeAlleles(ref, alt, false)
	dispRef, dispAlt := NormalizeAlleles(ref, alt, true)
	refLen, altLen := int64(len(ref)), int64(len(alt))
	normRefLen := int64(len(normRef))

	attrs := map[string]any{
		"location_start": pos,
		"location_end":   pos,
	}

	switch {
	case refLen == 1 && altLen == 1:
		attrs["variant_class"] = "single nucleotide variant"
		attrs["variant_class_abbrev"] = string(ClassSNV)
		attrs["display_allele"] = ref + ">" + alt

	case refLen == altLen:
		if ref == reverse(alt) {
			attrs["variant_class"] = "inversion"
			attrs["variant_class_abbrev"] = string(ClassMNV)
			attrs["display_allele"] = "inv" + ref
			attrs["location_end"] = pos + refLen - 1
		} else {
			attrs["variant_class"] = "substitution"
			attrs["variant_class_abbrev"] = string(ClassMNV)
			attrs["display_allele"] = dispRef + ">" + dispAlt
			attrs["location_end"] = pos + normRefLen - 1
		}

	case refLen > altLen:
		if len(normAlt) > 1 {
			attrs["variant_class"] = "indel"
			attrs["variant_class_abbrev"] = string(ClassIndel)
			attrs["display_allele"] = "del" + dispRef + "ins" + dispAlt
			attrs["location_end"] = pos + normRefLen - 1
		} else {
			attrs["variant_class"] = "deletion"
			attrs["variant_class_abbrev"] = string(ClassDeletion)
			attrs["display_allele"] = "del" + dispRef
			attrs["location_end"] = pos + normRefLen - 1
		}

	default: // insertion
		if refLen > 1 {
			attrs["variant_class"] = "indel"
			attrs["variant_class_abbrev"] = string(ClassIndel)
			attrs["display_allele"] = "del" + dispRef + "ins" + dispAlt
			attrs["location_end"] = pos + normRefLen - 1
		} else {
			attrs["variant_class"] = "insertion"
			attrs["variant_class_abbrev"] = string(ClassInsertion)
			attrs["display_allele"] = "ins" + dispAlt
			attrs["location_end"] = pos + 1
		}
	}

	return attrs
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
