// Package finalizer schedules one pending task per active election. The task
// fires at the election's end time (or on demand) and audits any ballots that
// are still unconfirmed, so no cast ballot is ever left in limbo.
package finalizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/storage"
	"github.com/verivote/dreip-backend/types"
)

// Store is the persistence the finalizer needs. *storage.Store implements it.
type Store interface {
	ElectionsByState(ctx context.Context, states ...types.ElectionState) ([]*storage.Election, error)
	UnconfirmedBallots(ctx context.Context, electionID types.ElectionID) ([]ballot.Ballot[ballot.Unconfirmed], error)
	AuditBallot(ctx context.Context, b ballot.Ballot[ballot.Unconfirmed]) (ballot.Ballot[ballot.Audited], error)
}

// Finalizers tracks the pending finalizer task of every scheduled election.
// The mutex only guards the map; it is never held while waiting on a task.
type Finalizers struct {
	store Store

	mu    sync.Mutex
	tasks map[types.ElectionID]*Task
}

// New creates an empty set of election finalizers.
func New(store Store) *Finalizers {
	return &Finalizers{
		store: store,
		tasks: make(map[types.ElectionID]*Task),
	}
}

// ScheduleAll schedules a finalizer for every published and archived
// election. It runs at process start; archived elections fire immediately,
// giving failed finalizers a natural second chance.
func (f *Finalizers) ScheduleAll(ctx context.Context) error {
	elections, err := f.store.ElectionsByState(ctx, types.ElectionPublished, types.ElectionArchived)
	if err != nil {
		return fmt.Errorf("list elections to finalize: %w", err)
	}
	for _, election := range elections {
		f.Schedule(election)
	}
	log.Infow("election finalizers scheduled", "count", len(elections))
	return nil
}

// Schedule creates the finalizer task for an election, set to fire at its
// end time. An existing task for the same election is replaced.
func (f *Finalizers) Schedule(election *storage.Election) {
	id := election.ID
	task := NewTask(func(ctx context.Context) error {
		return f.finalize(ctx, id)
	}, election.EndTime)

	f.mu.Lock()
	old := f.tasks[id]
	f.tasks[id] = task
	f.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
}

// TriggerNow fires the election's finalizer immediately and waits for it to
// complete. An election without a scheduled finalizer is a no-op.
func (f *Finalizers) TriggerNow(electionID types.ElectionID) error {
	f.mu.Lock()
	task := f.tasks[electionID]
	delete(f.tasks, electionID)
	f.mu.Unlock()

	if task == nil {
		return nil
	}
	return task.TriggerNow()
}

// Cancel aborts the election's finalizer. It reports whether the body had
// already completed.
func (f *Finalizers) Cancel(electionID types.ElectionID) bool {
	f.mu.Lock()
	task := f.tasks[electionID]
	delete(f.tasks, electionID)
	f.mu.Unlock()

	if task == nil {
		return false
	}
	return task.Cancel()
}

// Close cancels every pending finalizer, for process shutdown.
func (f *Finalizers) Close() {
	f.mu.Lock()
	tasks := f.tasks
	f.tasks = make(map[types.ElectionID]*Task)
	f.mu.Unlock()

	for _, task := range tasks {
		task.Cancel()
	}
}

// finalize audits every still-unconfirmed ballot of the election. It is
// deliberately not transactional: a partial sweep is still better than
// nothing, and a failed finalizer is retried on the next server boot.
func (f *Finalizers) finalize(ctx context.Context, electionID types.ElectionID) error {
	log.Debugw("running election finalizer", "election", electionID)
	ballots, err := f.store.UnconfirmedBallots(ctx, electionID)
	if err != nil {
		log.Errorw(err, fmt.Sprintf("finalizer for election %d failed, unconfirmed ballots might be leaked", electionID))
		return err
	}
	for _, b := range ballots {
		if _, err := f.store.AuditBallot(ctx, b); err != nil {
			log.Errorw(err, fmt.Sprintf("finalizer failed to audit ballot %d of election %d", b.BallotID, electionID))
			return err
		}
	}
	if len(ballots) > 0 {
		log.Warnw("finalized election", "election", electionID, "audited", len(ballots))
	} else {
		log.Debugw("finalizer had nothing to do", "election", electionID)
	}
	return nil
}
