package finalizer

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/storage"
	"github.com/verivote/dreip-backend/types"
)

type fakeStore struct {
	mu          sync.Mutex
	elections   []*storage.Election
	unconfirmed map[types.ElectionID][]ballot.Ballot[ballot.Unconfirmed]
	audited     map[types.BallotID]bool
}

func (f *fakeStore) ElectionsByState(_ context.Context, states ...types.ElectionState) ([]*storage.Election, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*storage.Election
	for _, e := range f.elections {
		for _, state := range states {
			if e.State == state {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) UnconfirmedBallots(_ context.Context, electionID types.ElectionID) ([]ballot.Ballot[ballot.Unconfirmed], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unconfirmed[electionID], nil
}

func (f *fakeStore) AuditBallot(_ context.Context, b ballot.Ballot[ballot.Unconfirmed]) (ballot.Ballot[ballot.Audited], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audited[b.BallotID] = true
	remaining := f.unconfirmed[b.ElectionID][:0]
	for _, u := range f.unconfirmed[b.ElectionID] {
		if u.BallotID != b.BallotID {
			remaining = append(remaining, u)
		}
	}
	f.unconfirmed[b.ElectionID] = remaining
	return ballot.Audit(b), nil
}

func testElection(t *testing.T, id types.ElectionID, end time.Time) *storage.Election {
	t.Helper()
	spec := types.ElectionSpec{
		Name:      "Finalizer Test",
		StartTime: end.Add(-time.Hour),
		EndTime:   end,
		Questions: []types.QuestionSpec{
			{Description: "Q", Candidates: []types.CandidateID{"A", "B"}},
		},
	}
	election, err := storage.NewElection(rand.Reader, id, spec)
	qt.Assert(t, err, qt.IsNil)
	election.State = types.ElectionPublished
	return election
}

func testUnconfirmed(t *testing.T, election *storage.Election, ballotID types.BallotID) ballot.Ballot[ballot.Unconfirmed] {
	t.Helper()
	keys, err := election.Keys()
	qt.Assert(t, err, qt.IsNil)
	b, err := ballot.New(rand.Reader, keys, election.ID, 1, ballotID, "A",
		[]types.CandidateID{"A", "B"}, time.Now())
	qt.Assert(t, err, qt.IsNil)
	return *b
}

func TestTaskRunsAtScheduledTime(t *testing.T) {
	c := qt.New(t)
	ran := make(chan struct{})
	task := NewTask(func(context.Context) error {
		close(ran)
		return nil
	}, time.Now().Add(20*time.Millisecond))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		c.Fatal("task did not run")
	}
	c.Assert(task.Cancel(), qt.IsTrue)
}

func TestTaskTriggerNow(t *testing.T) {
	c := qt.New(t)
	ran := false
	task := NewTask(func(context.Context) error {
		ran = true
		return nil
	}, time.Now().Add(time.Hour))
	c.Assert(task.TriggerNow(), qt.IsNil)
	c.Assert(ran, qt.IsTrue)
	// The body ran exactly once; triggering again returns the same result.
	c.Assert(task.TriggerNow(), qt.IsNil)
}

func TestTaskCancelBeforeRun(t *testing.T) {
	c := qt.New(t)
	task := NewTask(func(context.Context) error {
		c.Error("body should not run")
		return nil
	}, time.Now().Add(time.Hour))
	c.Assert(task.Cancel(), qt.IsFalse)
}

func TestTriggerNowAuditsLeftovers(t *testing.T) {
	c := qt.New(t)
	election := testElection(t, 1, time.Now().Add(time.Hour))
	store := &fakeStore{
		elections: []*storage.Election{election},
		unconfirmed: map[types.ElectionID][]ballot.Ballot[ballot.Unconfirmed]{
			1: {testUnconfirmed(t, election, 1), testUnconfirmed(t, election, 2)},
		},
		audited: make(map[types.BallotID]bool),
	}
	f := New(store)
	f.Schedule(election)

	c.Assert(f.TriggerNow(1), qt.IsNil)
	c.Assert(store.audited, qt.HasLen, 2)
	c.Assert(store.unconfirmed[1], qt.HasLen, 0)

	// The task was consumed; a second trigger is a no-op.
	c.Assert(f.TriggerNow(1), qt.IsNil)
}

func TestScheduleAllFiresPastEndTimes(t *testing.T) {
	c := qt.New(t)
	election := testElection(t, 2, time.Now().Add(-time.Minute))
	store := &fakeStore{
		elections: []*storage.Election{election},
		unconfirmed: map[types.ElectionID][]ballot.Ballot[ballot.Unconfirmed]{
			2: {testUnconfirmed(t, election, 7)},
		},
		audited: make(map[types.BallotID]bool),
	}
	f := New(store)
	c.Assert(f.ScheduleAll(context.Background()), qt.IsNil)
	defer f.Close()

	// End time is in the past, so the task fires immediately.
	deadline := time.Now().Add(5 * time.Second)
	for {
		store.mu.Lock()
		done := store.audited[7]
		store.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			c.Fatal("finalizer did not audit the leftover ballot")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDraftsAreNotScheduled(t *testing.T) {
	c := qt.New(t)
	draft := testElection(t, 3, time.Now().Add(-time.Minute))
	draft.State = types.ElectionDraft
	store := &fakeStore{
		elections:   []*storage.Election{draft},
		unconfirmed: map[types.ElectionID][]ballot.Ballot[ballot.Unconfirmed]{},
		audited:     make(map[types.BallotID]bool),
	}
	f := New(store)
	c.Assert(f.ScheduleAll(context.Background()), qt.IsNil)
	c.Assert(f.Cancel(3), qt.IsFalse)
}
