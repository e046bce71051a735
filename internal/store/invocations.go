package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownInvocation is returned when an operation references an
// invocation id that is not in the log.
var ErrUnknownInvocation = errors.New("unknown invocation id")

// Invocation is one immutable entry in the load invocation log. Every row
// written during a load carries the id of the invocation that wrote it,
// which is what makes loads reversible.
type Invocation struct {
	ID         int64
	ScriptName string
	Parameters string
	CommitMode bool
	CreatedAt  time.Time
}

// StartInvocation appends a new invocation record and returns it. Ids are
// drawn from a sequence, so they are unique and monotonic across jobs.
func (s *Store) StartInvocation(ctx context.Context, scriptName, parameters string, commitMode bool) (*Invocation, error) {
	inv := &Invocation{
		ScriptName: scriptName,
		Parameters: parameters,
		CommitMode: commitMode,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO algorithm_invocations (script_name, script_parameters, commit_mode)
		 VALUES (?, ?, ?)
		 RETURNING algorithm_invocation_id, created_at`,
		scriptName, parameters, commitMode,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invocation: %w", err)
	}

	s.logger.Info("invocation started",
		zap.Int64("invocation_id", inv.ID),
		zap.String("script", scriptName),
		zap.Bool("commit", commitMode))
	return inv, nil
}

// GetInvocation looks up an invocation by id.
func (s *Store) GetInvocation(ctx context.Context, id int64) (*Invocation, error) {
	inv := &Invocation{}
	var params sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT algorithm_invocation_id, script_name, script_parameters, commit_mode, created_at
		 FROM algorithm_invocations WHERE algorithm_invocation_id = ?`, id,
	).Scan(&inv.ID, &inv.ScriptName, &params, &inv.CommitMode, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInvocation, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query invocation: %w", err)
	}
	inv.Parameters = params.String
	return inv, nil
}
