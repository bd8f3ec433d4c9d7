package integration

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunMode selects how much of the board a run re-derives
type RunMode string

const (
	// RunModeFull re-derives every open card on the board
	RunModeFull RunMode = "FULL"
	// RunModeIncremental only syncs cards with activity after the checkpoint
	RunModeIncremental RunMode = "INCREMENTAL"
)

// IsValid returns true if the mode is valid
func (m RunMode) IsValid() bool {
	switch m {
	case RunModeFull, RunModeIncremental:
		return true
	default:
		return false
	}
}

// String returns the string representation of RunMode
func (m RunMode) String() string {
	return string(m)
}

// ParseRunMode accepts "full" / "incremental" in any case.
func ParseRunMode(s string) (RunMode, error) {
	switch m := RunMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case RunModeFull, RunModeIncremental:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRunMode, s)
	}
}

// RunState is the state of a reconciliation run
type RunState string

const (
	RunStateInit          RunState = "INIT"
	RunStateFetchingPage  RunState = "FETCHING_PAGE"
	RunStateDeduping      RunState = "DEDUPING"
	RunStateSyncingCard   RunState = "SYNCING_CARD"
	RunStateErrorRecorded RunState = "ERROR_RECORDED"
	RunStateCheckpointing RunState = "CHECKPOINTING"
	RunStateDone          RunState = "DONE"
	RunStateAborted       RunState = "ABORTED"
)

// String returns the string representation of RunState
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateAborted
}

// runTransitions lists the allowed next states. With a worker pool the card
// states interleave with page fetching, so they may reach each other freely.
var runTransitions = map[RunState][]RunState{
	RunStateInit:          {RunStateFetchingPage, RunStateAborted},
	RunStateFetchingPage:  {RunStateDeduping, RunStateSyncingCard, RunStateErrorRecorded, RunStateCheckpointing, RunStateAborted},
	RunStateDeduping:      {RunStateSyncingCard, RunStateErrorRecorded, RunStateFetchingPage, RunStateCheckpointing, RunStateAborted},
	RunStateSyncingCard:   {RunStateSyncingCard, RunStateErrorRecorded, RunStateDeduping, RunStateFetchingPage, RunStateCheckpointing, RunStateAborted},
	RunStateErrorRecorded: {RunStateSyncingCard, RunStateErrorRecorded, RunStateDeduping, RunStateFetchingPage, RunStateCheckpointing, RunStateAborted},
	RunStateCheckpointing: {RunStateDone, RunStateAborted},
}

// CanTransitionTo returns true if moving from s to next is allowed
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunCounters are the per-run statistics.
type RunCounters struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
	Deleted int `json:"deleted"`
}

// Processed returns the number of cards that reached a terminal outcome.
func (c RunCounters) Processed() int {
	return c.Created + c.Updated + c.Errored + c.Deleted
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// SyncRun tracks one reconciliation run in memory. All methods are safe for
// concurrent use by the run's workers.
type SyncRun struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Mode      RunMode
	StartedAt time.Time

	mu       sync.Mutex
	state    RunState
	seen     map[string]struct{}
	counters RunCounters
}

// NewSyncRun creates a run in INIT state
func NewSyncRun(tenantID uuid.UUID, mode RunMode, startedAt time.Time) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Mode:      mode,
		StartedAt: startedAt,
		state:     RunStateInit,
		seen:      make(map[string]struct{}),
	}
}

// State returns the current state
func (r *SyncRun) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Transition moves the run to next, rejecting moves the state machine forbids.
func (r *SyncRun) Transition(next RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRunTransition, r.state, next)
	}
	r.state = next
	return nil
}

// MarkSeen records a card ID and reports whether this is its first occurrence
// in the run. Later occurrences are counted as skipped.
func (r *SyncRun) MarkSeen(externalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[externalID]; dup {
		r.counters.Skipped++
		return false
	}
	r.seen[externalID] = struct{}{}
	return true
}

// SeenCount returns the number of distinct cards seen so far
func (r *SyncRun) SeenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// RecordFetched adds n listed cards
func (r *SyncRun) RecordFetched(n int) {
	r.mu.Lock()
	r.counters.Fetched += n
	r.mu.Unlock()
}

// RecordSynced counts a card outcome as created or updated
func (r *SyncRun) RecordSynced(created bool) {
	r.mu.Lock()
	if created {
		r.counters.Created++
	} else {
		r.counters.Updated++
	}
	r.mu.Unlock()
}

// RecordSkipped counts a card that was deliberately not synced
func (r *SyncRun) RecordSkipped() {
	r.mu.Lock()
	r.counters.Skipped++
	r.mu.Unlock()
}

// RecordError counts a failed card
func (r *SyncRun) RecordError() {
	r.mu.Lock()
	r.counters.Errored++
	r.mu.Unlock()
}

// RecordDeleted counts a card removed locally because the board no longer has it
func (r *SyncRun) RecordDeleted() {
	r.mu.Lock()
	r.counters.Deleted++
	r.mu.Unlock()
}

// Counters returns a snapshot of the counters
func (r *SyncRun) Counters() RunCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters
}
