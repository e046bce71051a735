package variant

// MaxKeyPrefix bounds the canonical-id prefix kept in a primary key.
// Long indel alleles would otherwise produce unbounded keys.
const MaxKeyPrefix = 50

// keyDelimiter separates the canonical-id prefix from the external
// reference id in a primary key.
const keyDelimiter = "_"

// PrimaryKey derives the record primary key for a canonical id and an
// optional external reference id. The derivation is deterministic and
// idempotent: the canonical id is truncated to MaxKeyPrefix bytes, and the
// external reference id (when present) is appended after keyDelimiter.
// A malformed canonical id yields ErrMalformedIdentity and no partial key.
func PrimaryKey(canonicalID, externalRefID string) (string, error) {
	if _, err := ParseIdentity(canonicalID); err != nil {
		return "", err
	}
	key := canonicalID
	if len(key) > MaxKeyPrefix {
		key = key[:MaxKeyPrefix]
	}
	if externalRefID != "" {
		key += keyDelimiter + externalRefID
	}
	return key, nil
}
