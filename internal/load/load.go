// Package load runs annotation loads: it streams payloads from a source,
// applies them through the merge engine under a fresh invocation id, and
// contains per-record failures so one bad row never aborts a load. Upserts
// run on a worker pool; the store's partition locks serialize writers of the
// same chromosome.
package load

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-vdb/internal/binindex"
	"github.com/inodb/vibe-vdb/internal/merge"
	"github.com/inodb/vibe-vdb/internal/store"
	"github.com/inodb/vibe-vdb/internal/variant"
)

// Source streams annotation payloads, typically from a VCF, VEP output, or
// CADD score file. Next returns nil, nil at end of input.
type Source interface {
	Next() (*merge.Payload, error)
	Close() error
}

// Options configures one load run.
type Options struct {
	// Workers is the number of concurrent upsert workers; 0 means
	// runtime.NumCPU().
	Workers int
	// Strict aborts the load on the first rejected payload instead of
	// recording it and continuing.
	Strict bool
	// Commit applies payloads to the store. When false the run is a dry
	// run: payloads are validated and counted but nothing is written, and
	// the invocation is recorded as non-committing.
	Commit bool
}

// Rejection is one payload the load refused, kept with its error so no
// record is silently dropped.
type Rejection struct {
	Seq     int
	Payload merge.Payload
	Err     error
}

// Result summarizes a finished load.
type Result struct {
	Invocation store.Invocation
	Read       int64 // payloads pulled from the source
	Applied    int64 // payloads upserted (or validated, on dry runs)
	Skipped    int64 // payloads whose merge target does not exist
	Rejected   int64 // payloads refused by validation
	Rejections []Rejection
}

// Loader drives load runs against one store and engine.
type Loader struct {
	store  *store.Store
	engine *merge.Engine
	logger *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(s *store.Store, e *merge.Engine) *Loader {
	return &Loader{store: s, engine: e, logger: zap.NewNop()}
}

// SetLogger sets the logger for load operations.
func (l *Loader) SetLogger(lg *zap.Logger) {
	l.logger = lg
}

type item struct {
	seq     int
	payload merge.Payload
}

// Run executes one load: it registers the invocation, streams the source
// through the worker pool, and reports counters and rejections. Source read
// errors and storage errors abort the run; payload validation errors are
// contained as rejections unless Strict is set.
func (l *Loader) Run(ctx context.Context, src Source, scriptName, parameters string, opts Options) (*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	inv, err := l.store.StartInvocation(ctx, scriptName, parameters, opts.Commit)
	if err != nil {
		return nil, err
	}
	l.logger.Info("load started",
		zap.Int64("invocation_id", inv.ID),
		zap.String("script", scriptName),
		zap.Bool("commit", opts.Commit),
		zap.Int("workers", workers))

	res := &Result{Invocation: *inv}
	var mu sync.Mutex // guards res.Rejections

	g, gctx := errgroup.WithContext(ctx)
	items := make(chan item, 2*workers)

	g.Go(func() error {
		defer close(items)
		seq := 0
		for {
			p, err := src.Next()
			if err != nil {
				return err
			}
			if p == nil {
				return nil
			}
			atomic.AddInt64(&res.Read, 1)
			select {
			case items <- item{seq: seq, payload: *p}:
			case <-gctx.Done():
				return gctx.Err()
			}
			seq++
		}
	})

	for range workers {
		g.Go(func() error {
			for it := range items {
				err := l.apply(gctx, it.payload, inv.ID, opts.Commit)
				switch {
				case err == nil:
					atomic.AddInt64(&res.Applied, 1)
				case errors.Is(err, merge.ErrMergeTargetMissing):
					atomic.AddInt64(&res.Skipped, 1)
				case rejectable(err):
					atomic.AddInt64(&res.Rejected, 1)
					mu.Lock()
					res.Rejections = append(res.Rejections, Rejection{
						Seq:     it.seq,
						Payload: it.payload,
						Err:     err,
					})
					mu.Unlock()
					l.logger.Warn("payload rejected",
						zap.Int64("invocation_id", inv.ID),
						zap.Int("seq", it.seq),
						zap.Error(err))
					if opts.Strict {
						return err
					}
				default:
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	l.logger.Info("load finished",
		zap.Int64("invocation_id", inv.ID),
		zap.Int64("read", res.Read),
		zap.Int64("applied", res.Applied),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("rejected", res.Rejected))
	return res, nil
}

func (l *Loader) apply(ctx context.Context, p merge.Payload, invocationID int64, commit bool) error {
	if !commit {
		return l.engine.Validate(p)
	}
	_, err := l.engine.Upsert(ctx, p, invocationID)
	return err
}

// rejectable reports whether an error condemns only the payload that caused
// it. Anything else is treated as a load-level failure.
func rejectable(err error) bool {
	var verr *merge.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, variant.ErrMalformedIdentity) ||
		errors.Is(err, binindex.ErrUnknownChromosome)
}
