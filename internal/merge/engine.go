// Package merge implements the annotation merge engine: it derives a
// variant's primary key from an incoming payload, inserts a new record
// (resolving its bin path exactly once) or merges the payload's annotation
// fragments into the existing record, and tags every write with the active
// load invocation.
package merge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vdb/internal/binindex"
	"github.com/inodb/vibe-vdb/internal/genome"
	"github.com/inodb/vibe-vdb/internal/store"
	"github.com/inodb/vibe-vdb/internal/variant"
)

// ErrMergeTargetMissing is returned when implicit inserts are disabled and
// the payload's primary key has no existing record.
var ErrMergeTargetMissing = errors.New("merge target does not exist")

// Policy selects how a fragment is applied to an existing record.
type Policy int

const (
	// PolicyReplace overwrites the stored fragment with the incoming one.
	PolicyReplace Policy = iota
	// PolicyDeepMergeKeys merges the incoming fragment into the stored one
	// key-wise, recursing into nested objects.
	PolicyDeepMergeKeys
)

// Fragment is one named annotation fragment in a payload.
type Fragment struct {
	Name   string
	Value  json.RawMessage
	Policy Policy
}

// Payload is a normalized annotation payload from a loader. Either
// CanonicalID or the (Chromosome, Position, Ref, Alt) quadruple identifies
// the variant; ExternalRefID is optional.
type Payload struct {
	Chromosome    string
	Position      int64
	Ref           string
	Alt           string
	CanonicalID   string
	ExternalRefID string
	Fragments     []Fragment
}

// ValidationError is a payload rejection. It carries the offending payload
// so no record is ever silently dropped; callers persist or report it.
type ValidationError struct {
	Reason  string
	Payload Payload
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Reason
}

// Engine applies payloads to the variant store.
type Engine struct {
	store          *store.Store
	bins           *binindex.Index
	logger         *zap.Logger
	implicitInsert bool
}

// NewEngine creates a merge engine over a store and a bin index.
func NewEngine(s *store.Store, bins *binindex.Index) *Engine {
	return &Engine{
		store:          s,
		bins:           bins,
		logger:         zap.NewNop(),
		implicitInsert: true,
	}
}

// SetLogger sets the logger for merge operations.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetImplicitInsert configures whether a merge against a missing key
// inserts a new record (the default) or fails with ErrMergeTargetMissing.
func (e *Engine) SetImplicitInsert(enabled bool) {
	e.implicitInsert = enabled
}

// Upsert applies one payload under the given invocation id and returns the
// resulting record. Validation happens before any storage access; a payload
// that fails validation leaves the store untouched.
func (e *Engine) Upsert(ctx context.Context, p Payload, invocationID int64) (*variant.Variant, error) {
	id, err := e.validate(p)
	if err != nil {
		return nil, err
	}

	pk, err := variant.PrimaryKey(id.String(), p.ExternalRefID)
	if err != nil {
		return nil, err
	}

	var result *variant.Variant
	err = e.store.WithPartition(ctx, id.Chromosome, func(ptx *store.PartitionTx) error {
		existing, err := ptx.Get(pk)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", pk, err)
		}
		if existing == nil {
			// The stored key differs from the derived one when only one
			// side knows the external reference id (a dbSNP load stores
			// `<canonical>_rsID`, a CADD payload derives the bare
			// canonical key). Resolve by identity before concluding the
			// target is missing.
			existing, err = ptx.GetByIdentity(id)
			if err != nil {
				return fmt.Errorf("lookup %s by identity: %w", id.String(), err)
			}
		}
		if existing == nil {
			if !e.implicitInsert {
				return fmt.Errorf("%w: %s", ErrMergeTargetMissing, pk)
			}
			result, err = e.insert(ptx, id, pk, p, invocationID)
			return err
		}
		result, err = e.apply(ptx, existing, p, invocationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Validate checks a payload without touching the store. Dry-run loads use
// it to report what a commit run would reject.
func (e *Engine) Validate(p Payload) error {
	_, err := e.validate(p)
	return err
}

// validate checks the payload before any write and resolves its identity.
func (e *Engine) validate(p Payload) (variant.Identity, error) {
	var id variant.Identity
	var err error

	if p.CanonicalID != "" {
		id, err = variant.ParseIdentity(p.CanonicalID)
		if err != nil {
			return id, err
		}
	} else {
		if p.Chromosome == "" {
			return id, &ValidationError{Reason: "missing chromosome", Payload: p}
		}
		if p.Position <= 0 {
			return id, &ValidationError{Reason: "missing or non-positive position", Payload: p}
		}
		if p.Ref == "" || p.Alt == "" {
			return id, &ValidationError{Reason: "missing ref or alt allele", Payload: p}
		}
		id = variant.Identity{
			Chromosome: genome.Normalize(p.Chromosome),
			Position:   p.Position,
			Ref:        p.Ref,
			Alt:        p.Alt,
		}
	}

	if !genome.IsKnown(id.Chromosome) {
		return id, fmt.Errorf("%w: %s", binindex.ErrUnknownChromosome, id.Chromosome)
	}

	for _, f := range p.Fragments {
		if !variant.IsFragmentName(f.Name) {
			return id, &ValidationError{Reason: "unknown fragment " + f.Name, Payload: p}
		}
		if len(f.Value) > 0 && !json.Valid(f.Value) {
			return id, &ValidationError{Reason: "fragment " + f.Name + " is not valid JSON", Payload: p}
		}
	}

	return id, nil
}

// insert creates a new record for an unseen primary key. The bin path is
// resolved here, exactly once; it is immutable afterward.
func (e *Engine) insert(ptx *store.PartitionTx, id variant.Identity, pk string, p Payload, invocationID int64) (*variant.Variant, error) {
	end := id.Position + int64(len(id.Ref)) - 1
	bin, err := e.bins.Resolve(id.Chromosome, id.Position, end)
	if err != nil {
		return nil, err
	}

	v := &variant.Variant{
		Chromosome:   id.Chromosome,
		Position:     id.Position,
		MetaseqID:    id.String(),
		RefSnpID:     p.ExternalRefID,
		PrimaryKey:   pk,
		BinPath:      bin.Path,
		InvocationID: invocationID,
	}
	for _, f := range p.Fragments {
		v.SetFragment(f.Name, f.Value)
	}
	if v.Fragment(variant.FragmentDisplayAttributes) == nil {
		attrs, err := json.Marshal(variant.DisplayAttributes(id.Ref, id.Alt, id.Position))
		if err == nil {
			v.SetFragment(variant.FragmentDisplayAttributes, attrs)
		}
	}

	// A second distinct alt allele at this position makes the site
	// multi-allelic; flag the new record and every sibling.
	alts, err := ptx.DistinctAlts(id.Position)
	if err != nil {
		return nil, err
	}
	for _, alt := range alts {
		if alt != id.Alt {
			v.IsMultiAllelic = true
			if err := ptx.SetMultiAllelic(id.Position); err != nil {
				return nil, err
			}
			break
		}
	}

	if err := ptx.Insert(v); err != nil {
		return nil, err
	}
	e.logger.Debug("inserted variant",
		zap.String("primary_key", pk),
		zap.String("bin", bin.Path),
		zap.Int64("invocation_id", invocationID))
	return v, nil
}

// apply merges the payload's fragments into an existing record per their
// policies and advances the record's last-writer invocation id. Identity
// and bin path never change here.
func (e *Engine) apply(ptx *store.PartitionTx, existing *variant.Variant, p Payload, invocationID int64) (*variant.Variant, error) {
	for _, f := range p.Fragments {
		switch f.Policy {
		case PolicyReplace:
			existing.SetFragment(f.Name, f.Value)
		case PolicyDeepMergeKeys:
			merged, err := mergeJSON(existing.Fragment(f.Name), f.Value)
			if err != nil {
				return nil, fmt.Errorf("merge fragment %s: %w", f.Name, err)
			}
			existing.SetFragment(f.Name, merged)
		default:
			return nil, fmt.Errorf("unknown merge policy %d for fragment %s", f.Policy, f.Name)
		}
	}

	existing.InvocationID = invocationID
	if err := ptx.Update(existing); err != nil {
		return nil, err
	}
	e.logger.Debug("merged variant",
		zap.String("primary_key", existing.PrimaryKey),
		zap.Int64("invocation_id", invocationID))
	return existing, nil
}
