package syncer

import (
	"errors"
	"fmt"
)

// Stage is a state of the sync pipeline.
type Stage string

const (
	StagePlanning    Stage = "planning"
	StageFetching    Stage = "fetching"
	StageClassifying Stage = "classifying"
	StageMerging     Stage = "merging"
	StageCommitted   Stage = "committed"
	StageFailed      Stage = "failed"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrSourceFetch        = errors.New("source fetch failed")
	ErrDedupLookup        = errors.New("dedup lookup failed")
	ErrStoreWrite         = errors.New("store write failed")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrCanceled           = errors.New("sync canceled")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrConfig             = errors.New("sync misconfigured")
)

// SyncError records the stage a sync failed in and why.
type SyncError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func (e *SyncError) Is(target error) bool { return target == e.Kind }

func stageErr(stage Stage, kind, err error) *SyncError {
	return &SyncError{Stage: stage, Kind: kind, Err: err}
}
