package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vdb/internal/genome"
)

// ErrMalformedIdentity is returned when a canonical id does not split into
// exactly four colon-delimited fields.
var ErrMalformedIdentity = errors.New("malformed canonical variant id")

// Identity is a parsed canonical id.
type Identity struct {
	Chromosome string
	Position   int64
	Ref        string
	Alt        string
}

// ParseIdentity splits a canonical id (chrom:pos:ref:alt) into its fields.
// The chromosome is normalized; anything other than exactly four fields with
// a numeric position fails with ErrMalformedIdentity.
func ParseIdentity(canonicalID string) (Identity, error) {
	fields := strings.Split(canonicalID, ":")
	if len(fields) != 4 {
		return Identity{}, fmt.Errorf("%w: %q", ErrMalformedIdentity, canonicalID)
	}
	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: non-numeric position in %q", ErrMalformedIdentity, canonicalID)
	}
	return Identity{
		Chromosome: genome.Normalize(fields[0]),
		Position:   pos,
		Ref:        fields[2],
		Alt:        fields[3],
	}, nil
}

// String formats the identity back into canonical form.
func (id Identity) String() string {
	return MetaseqID(id.Chromosome, id.Position, id.Ref, id.Alt)
}

// Swapped returns the alternate canonical form with ref and alt exchanged.
// Annotation sources disagree on ref/alt order, so lookups try both forms.
func (id Identity) Swapped() Identity {
	return Identity{
		Chromosome: id.Chromosome,
		Position:   id.Position,
		Ref:        id.Alt,
		Alt:        id.Ref,
	}
}

// MetaseqID builds the canonical id for a variant.
func MetaseqID(chrom string, pos int64, ref, alt string) string {
	return strings.Join([]string{
		genome.Normalize(chrom),
		strconv.FormatInt(pos, 10),
		ref,
		alt,
	}, ":")
}

// irregular allele markers: anything outside plain ACGT sequence, e.g.
// indel shorthand ("-"), ranges, symbolic alleles ("<DEL>") or ambiguity
// codes (R, Y, N, ...).
func isPlainSequence(allele string) bool {
	if allele == "" {
		return false
	}
	for i := 0; i < len(allele); i++ {
		switch allele[i] {
		case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		default:
			return false
		}
	}
	return true
}

// IsIrregularID reports whether a canonical id encodes indel shorthand,
// range, or ambiguous-base markers in either allele. Malformed ids are
// irregular by definition.
func IsIrregularID(canonicalID string) bool {
	id, err := ParseIdentity(canonicalID)
	if err != nil {
		return true
	}
	return !isPlainSequence(id.Ref) || !isPlainSequence(id.Alt)
}
