package session

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// RecoverFunc compresses the session a pending marker points at. It should
// return nil once compression has completed, including when compression
// recorded a failed session; a non-nil error leaves the marker in place.
type RecoverFunc func(ctx context.Context, m PendingMarker) error

// RecoveryResult describes what Recover did.
type RecoveryResult struct {
	// Recovered is true when fn ran against an interrupted session.
	Recovered bool
	Marker    *PendingMarker
	// Stale is true when a marker pointed at a log that no longer exists
	// and was discarded.
	Stale bool
	// Promoted is true when the interrupted session was found through an
	// active marker left by a supervisor that no longer runs.
	Promoted bool
	// Live is set when another supervisor appears to be running for this
	// project. Sessions are not locked, so this is informational.
	Live *ActiveMarker
}

// Recover resolves state left behind by a previous run. It must be called
// before a new session starts. A pending marker whose raw log exists is
// handed to fn and cleared once fn succeeds; a marker whose log is gone is
// discarded silently. An active marker whose process is dead is promoted to
// a pending marker first.
func (t *Tracker) Recover(ctx context.Context, fn RecoverFunc) (RecoveryResult, error) {
	var res RecoveryResult

	pending, err := t.LoadPending()
	if err != nil && !errors.Is(err, ErrNoMarker) {
		return res, err
	}

	if pending == nil {
		active, err := t.LoadActive()
		if err != nil && !errors.Is(err, ErrNoMarker) {
			return res, err
		}
		if active == nil {
			return res, nil
		}
		if active.PID > 0 && active.PID != os.Getpid() && t.alive(active.PID) {
			res.Live = active
			return res, nil
		}
		if !exists(active.RawLogPath) {
			res.Stale = true
			return res, t.ClearActive()
		}
		pending = &PendingMarker{
			RawLogPath:        active.RawLogPath,
			StructuredLogPath: active.StructuredLogPath,
			SessionID:         active.SessionID,
		}
		if err := t.WritePending(*pending); err != nil {
			return res, err
		}
		if err := t.ClearActive(); err != nil {
			return res, err
		}
		res.Promoted = true
	}

	if !exists(pending.RawLogPath) {
		res.Stale = true
		return res, t.ClearPending()
	}

	res.Marker = pending
	if err := fn(ctx, *pending); err != nil {
		return res, fmt.Errorf("recovering session %s: %w", pending.SessionID, err)
	}
	res.Recovered = true
	return res, t.ClearPending()
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
