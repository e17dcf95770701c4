// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/classpulse/models"
	"github.com/danielhkuo/classpulse/testutil"
)

// fakeStore records persistence calls and can be made to fail.
type fakeStore struct {
	mu        sync.Mutex
	inserted  []*models.Poll
	appended  []models.Response
	finalized []*models.Poll
	fail      bool
}

func (s *fakeStore) InsertPoll(p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.inserted = append(s.inserted, p)
	return nil
}

func (s *fakeStore) AppendResponse(pollID string, resp models.Response, newCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.appended = append(s.appended, resp)
	return nil
}

func (s *fakeStore) FinalizePoll(p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.finalized = append(s.finalized, p)
	return nil
}

func newTestCoordinator() (*Coordinator, *testutil.RecordingBroadcaster, *fakeStore) {
	bc := testutil.NewRecordingBroadcaster()
	store := &fakeStore{}
	c := NewCoordinator(NewRegistry(), NewLedger(), store, bc)
	return c, bc, store
}

// registerClass registers one teacher and the given students, then
// clears the broadcaster so tests only see poll events.
func registerClass(c *Coordinator, bc *testutil.RecordingBroadcaster, students ...string) {
	c.Register("conn-teacher", "Teacher", models.RoleTeacher)
	for i, name := range students {
		c.Register(fmt.Sprintf("conn-s%d", i), name, models.RoleStudent)
	}
	bc.Clear()
}

func activePollID(t *testing.T, bc *testutil.RecordingBroadcaster) string {
	t.Helper()
	started := bc.BroadcastsOfKind(models.EventPollStarted)
	if len(started) == 0 {
		t.Fatal("Expected a poll-started broadcast")
	}
	return started[0].Payload.(models.PollStartedEvent).PollID
}

func TestCreatePollValidation(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		options     []string
		wantStarted bool
		wantError   bool
	}{
		{
			name:        "valid poll",
			question:    "Capital of France?",
			options:     []string{"Paris", "Berlin"},
			wantStarted: true,
		},
		{
			name:      "empty question",
			question:  "   ",
			options:   []string{"A", "B"},
			wantError: true,
		},
		{
			name:      "single option",
			question:  "Pick one",
			options:   []string{"A"},
			wantError: true,
		},
		{
			name:      "options blank after trimming",
			question:  "Pick one",
			options:   []string{"A", "  ", ""},
			wantError: true,
		},
		{
			name:      "no options",
			question:  "Pick one",
			options:   nil,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, bc, _ := newTestCoordinator()
			registerClass(c, bc, "Alice")

			c.CreatePoll("conn-teacher", tt.question, tt.options, 30)

			started := bc.BroadcastsOfKind(models.EventPollStarted)
			if tt.wantStarted && len(started) != 1 {
				t.Errorf("Expected 1 poll-started broadcast, got %d", len(started))
			}
			if !tt.wantStarted && len(started) != 0 {
				t.Errorf("Expected no poll-started broadcast, got %d", len(started))
			}

			// Validation failures surface privately to the requester only
			private := bc.For("conn-teacher")
			if tt.wantError {
				if len(private) != 1 || private[0].Kind != models.EventValidationError {
					t.Errorf("Expected one private validation-error, got %+v", private)
				}
			} else if len(private) != 0 {
				t.Errorf("Expected no private events on success, got %+v", private)
			}
		})
	}
}

func TestCreatePollAuthorization(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice")

	// Students and unregistered connections are silently ignored
	c.CreatePoll("conn-s0", "Question?", []string{"A", "B"}, 30)
	c.CreatePoll("conn-ghost", "Question?", []string{"A", "B"}, 30)

	if got := len(bc.Events()); got != 0 {
		t.Errorf("Expected no events at all, got %d", got)
	}
}

func TestCreatePollWhileActive(t *testing.T) {
	c, bc, store := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "First?", []string{"A", "B"}, 30)
	bc.Clear()

	c.CreatePoll("conn-teacher", "Second?", []string{"C", "D"}, 30)

	// Rejected with a private message and zero broadcast side effects
	if got := len(bc.BroadcastsOfKind(models.EventPollStarted)); got != 0 {
		t.Errorf("Expected no poll-started broadcast, got %d", got)
	}
	private := bc.For("conn-teacher")
	if len(private) != 1 || private[0].Kind != models.EventValidationError {
		t.Fatalf("Expected one private validation-error, got %+v", private)
	}
	if len(store.inserted) != 1 {
		t.Errorf("Expected only the first poll persisted, got %d", len(store.inserted))
	}
}

// TestAllAnsweredScenario runs the canonical two-student flow: one
// duplicate submission is ignored, and the second student's answer
// closes the poll by quorum.
func TestAllAnsweredScenario(t *testing.T) {
	c, bc, store := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)

	started := bc.BroadcastsOfKind(models.EventPollStarted)
	if len(started) != 1 {
		t.Fatalf("Expected 1 poll-started, got %d", len(started))
	}
	startEvt := started[0].Payload.(models.PollStartedEvent)
	if startEvt.Expected != 2 {
		t.Errorf("Expected 2 expected respondents, got %d", startEvt.Expected)
	}
	if len(startEvt.Options) != 2 || startEvt.Options[0] != "Paris" {
		t.Errorf("Unexpected options: %v", startEvt.Options)
	}
	bc.Clear()

	// Alice answers Paris
	c.SubmitAnswer("conn-s0", 0)
	updates := bc.BroadcastsOfKind(models.EventPollUpdated)
	if len(updates) != 1 {
		t.Fatalf("Expected 1 poll-updated, got %d", len(updates))
	}
	upd := updates[0].Payload.(models.PollUpdatedEvent)
	if upd.Counts[0] != 1 || upd.Counts[1] != 0 || upd.Responded != 1 || upd.Expected != 2 {
		t.Errorf("Unexpected update after first answer: %+v", upd)
	}
	bc.Clear()

	// Alice double-submits: no broadcast, no state change
	c.SubmitAnswer("conn-s0", 1)
	if got := len(bc.Events()); got != 0 {
		t.Errorf("Expected duplicate submission to produce no events, got %d", got)
	}

	// Bob answers Berlin: update then immediate quorum closure
	c.SubmitAnswer("conn-s1", 1)
	updates = bc.BroadcastsOfKind(models.EventPollUpdated)
	if len(updates) != 1 {
		t.Fatalf("Expected 1 poll-updated, got %d", len(updates))
	}
	upd = updates[0].Payload.(models.PollUpdatedEvent)
	if upd.Counts[0] != 1 || upd.Counts[1] != 1 || upd.Responded != 2 {
		t.Errorf("Unexpected update after second answer: %+v", upd)
	}

	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected 1 poll-ended, got %d", len(ended))
	}
	end := ended[0].Payload.(models.PollEndedEvent)
	if end.Reason != models.ReasonAllAnswered {
		t.Errorf("Expected reason all-answered, got %s", end.Reason)
	}
	if end.Counts[0] != 1 || end.Counts[1] != 1 || end.TotalResponses != 2 {
		t.Errorf("Unexpected final snapshot: %+v", end)
	}

	if len(store.finalized) != 1 {
		t.Errorf("Expected 1 finalized poll, got %d", len(store.finalized))
	}
	if len(store.appended) != 2 {
		t.Errorf("Expected 2 persisted responses, got %d", len(store.appended))
	}
}

func TestTimeoutClosure(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	pollID := activePollID(t, bc)
	bc.Clear()

	// Simulate the countdown firing with nobody having answered
	c.timeoutFired(pollID)

	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected 1 poll-ended, got %d", len(ended))
	}
	end := ended[0].Payload.(models.PollEndedEvent)
	if end.Reason != models.ReasonTimeout {
		t.Errorf("Expected reason timeout, got %s", end.Reason)
	}
	if end.Counts[0] != 0 || end.Counts[1] != 0 || end.TotalResponses != 0 {
		t.Errorf("Expected zero counts on timeout, got %+v", end)
	}
}

// TestTimerFires exercises the real countdown end to end.
func TestTimerFires(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice")

	c.CreatePoll("conn-teacher", "Quick one?", []string{"A", "B"}, 1)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(bc.BroadcastsOfKind(models.EventPollEnded)) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected 1 poll-ended from the timer, got %d", len(ended))
	}
	if reason := ended[0].Payload.(models.PollEndedEvent).Reason; reason != models.ReasonTimeout {
		t.Errorf("Expected reason timeout, got %s", reason)
	}
}

func TestManualEndCancelsTimer(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	pollID := activePollID(t, bc)
	c.SubmitAnswer("conn-s0", 0)
	bc.Clear()

	c.EndPoll("conn-teacher")

	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected 1 poll-ended, got %d", len(ended))
	}
	end := ended[0].Payload.(models.PollEndedEvent)
	if end.Reason != models.ReasonManual {
		t.Errorf("Expected reason manual, got %s", end.Reason)
	}
	if end.TotalResponses != 1 {
		t.Errorf("Expected 1 response, got %d", end.TotalResponses)
	}

	// A late timer callback for the closed poll must do nothing
	bc.Clear()
	c.timeoutFired(pollID)
	if got := len(bc.Events()); got != 0 {
		t.Errorf("Expected no events after stale timer fire, got %d", got)
	}
}

// TestClosureAtMostOnce drives all three closure triggers at the same
// poll and verifies exactly one poll-ended goes out.
func TestClosureAtMostOnce(t *testing.T) {
	c, bc, store := newTestCoordinator()
	registerClass(c, bc, "Alice")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	pollID := activePollID(t, bc)

	c.SubmitAnswer("conn-s0", 0) // quorum of one closes the poll
	c.timeoutFired(pollID)       // stale timer
	c.EndPoll("conn-teacher")    // manual end on an idle session

	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected exactly 1 poll-ended, got %d", len(ended))
	}
	if len(store.finalized) != 1 {
		t.Errorf("Expected exactly 1 finalize, got %d", len(store.finalized))
	}
}

func TestEndPollAuthorization(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	bc.Clear()

	c.EndPoll("conn-s0")   // student
	c.EndPoll("conn-none") // unregistered

	if got := len(bc.BroadcastsOfKind(models.EventPollEnded)); got != 0 {
		t.Errorf("Expected no poll-ended from unauthorized end, got %d", got)
	}
}

// TestLateJoinReplay verifies a mid-poll registration privately
// receives the poll definition and current tally without touching
// anyone else.
func TestLateJoinReplay(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	c.SubmitAnswer("conn-s0", 0)
	bc.Clear()

	c.Register("conn-late", "Carol", models.RoleStudent)

	private := bc.For("conn-late")
	if len(private) != 2 {
		t.Fatalf("Expected 2 private replay events, got %d: %+v", len(private), private)
	}
	if private[0].Kind != models.EventPollStarted {
		t.Errorf("Expected poll-started first, got %s", private[0].Kind)
	}
	if private[1].Kind != models.EventPollUpdated {
		t.Errorf("Expected poll-updated second, got %s", private[1].Kind)
	}

	upd := private[1].Payload.(models.PollUpdatedEvent)
	if upd.Counts[0] != 1 || upd.Responded != 1 || upd.Expected != 2 {
		t.Errorf("Replay tally does not reflect current state: %+v", upd)
	}

	// The roster changed for everyone, but no poll events went wide
	for _, e := range bc.Events() {
		if e.ConnID == "" && e.Kind != models.EventRosterChanged {
			t.Errorf("Unexpected broadcast %s during late join", e.Kind)
		}
	}
}

// TestLateJoinerOutsideQuorum pins the denominator-snapshot behavior:
// a student registering mid-poll can answer and move the counts, but
// is never added to the expected count.
func TestLateJoinerOutsideQuorum(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	c.Register("conn-late", "Carol", models.RoleStudent)
	bc.Clear()

	c.SubmitAnswer("conn-late", 1)

	updates := bc.BroadcastsOfKind(models.EventPollUpdated)
	if len(updates) != 1 {
		t.Fatalf("Expected late joiner's answer to broadcast, got %d updates", len(updates))
	}
	upd := updates[0].Payload.(models.PollUpdatedEvent)
	if upd.Counts[1] != 1 || upd.Responded != 1 {
		t.Errorf("Expected late joiner to move the tally: %+v", upd)
	}
	if upd.Expected != 2 {
		t.Errorf("Expected denominator to stay at 2, got %d", upd.Expected)
	}
	if got := len(bc.BroadcastsOfKind(models.EventPollEnded)); got != 0 {
		t.Errorf("Expected poll to stay open, got %d poll-ended", got)
	}
}

func TestSubmitRejections(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice")

	// No active poll
	c.SubmitAnswer("conn-s0", 0)
	if got := len(bc.Events()); got != 0 {
		t.Errorf("Expected no events submitting while idle, got %d", got)
	}

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	bc.Clear()

	c.SubmitAnswer("conn-teacher", 0) // teachers don't vote
	c.SubmitAnswer("conn-ghost", 0)   // unregistered
	c.SubmitAnswer("conn-s0", 5)      // out of range
	c.SubmitAnswer("conn-s0", -1)     // out of range

	if got := len(bc.Events()); got != 0 {
		t.Errorf("Expected all invalid submissions to be silent, got %d events", got)
	}
}

func TestDisconnectMidPoll(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	c.SubmitAnswer("conn-s0", 0)
	bc.Clear()

	c.Disconnect("conn-s0")

	// Roster updates, but the poll and its denominator are untouched
	if got := len(bc.BroadcastsOfKind(models.EventRosterChanged)); got != 1 {
		t.Errorf("Expected 1 roster-changed, got %d", got)
	}
	if got := len(bc.BroadcastsOfKind(models.EventPollEnded)); got != 0 {
		t.Errorf("Expected no poll-ended on disconnect, got %d", got)
	}

	c.SubmitAnswer("conn-s1", 1)
	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected quorum closure after remaining student answered, got %d", len(ended))
	}
	end := ended[0].Payload.(models.PollEndedEvent)
	if end.TotalResponses != 2 || end.Expected != 2 {
		t.Errorf("Expected disconnected student's answer to keep its slot: %+v", end)
	}
}

func TestKickFlow(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	targetID, ok := c.Kick("conn-teacher", "Alice")
	if !ok {
		t.Fatal("Expected kick to find Alice")
	}
	if targetID != "conn-s0" {
		t.Errorf("Expected target conn-s0, got %s", targetID)
	}

	// Private kicked notice to the target
	private := bc.For("conn-s0")
	if len(private) != 1 || private[0].Kind != models.EventKicked {
		t.Errorf("Expected one private kicked event, got %+v", private)
	}

	// Roster broadcast excludes the removed name
	rosters := bc.BroadcastsOfKind(models.EventRosterChanged)
	if len(rosters) != 1 {
		t.Fatalf("Expected 1 roster-changed, got %d", len(rosters))
	}
	names := rosters[0].Payload.(models.RosterChangedEvent).Participants
	if len(names) != 1 || names[0] != "Bob" {
		t.Errorf("Expected roster [Bob], got %v", names)
	}
}

func TestKickAuthorization(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	registerClass(c, bc, "Alice", "Bob")

	if _, ok := c.Kick("conn-s1", "Alice"); ok {
		t.Error("Expected student kick to be refused")
	}
	if _, ok := c.Kick("conn-teacher", "Nobody"); ok {
		t.Error("Expected kick of unknown name to be refused")
	}
	if got := len(bc.Events()); got != 0 {
		t.Errorf("Expected refused kicks to be silent, got %d events", got)
	}
}

// TestStoreFailureDoesNotBreakLiveFlow verifies durability is
// best-effort: a dead store never blocks broadcasts or closure.
func TestStoreFailureDoesNotBreakLiveFlow(t *testing.T) {
	c, bc, store := newTestCoordinator()
	store.fail = true
	registerClass(c, bc, "Alice")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	c.SubmitAnswer("conn-s0", 0)

	if got := len(bc.BroadcastsOfKind(models.EventPollStarted)); got != 1 {
		t.Errorf("Expected poll-started despite store failure, got %d", got)
	}
	if got := len(bc.BroadcastsOfKind(models.EventPollEnded)); got != 1 {
		t.Errorf("Expected quorum closure despite store failure, got %d", got)
	}
}

// TestNilStore covers running without a database at all.
func TestNilStore(t *testing.T) {
	bc := testutil.NewRecordingBroadcaster()
	c := NewCoordinator(NewRegistry(), NewLedger(), nil, bc)
	registerClass(c, bc, "Alice")

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin"}, 30)
	c.SubmitAnswer("conn-s0", 0)

	if got := len(bc.BroadcastsOfKind(models.EventPollEnded)); got != 1 {
		t.Errorf("Expected live session to work without a store, got %d poll-ended", got)
	}
}

// TestConcurrentSubmissions hammers the coordinator from many
// goroutines and checks the exactly-once and single-closure
// invariants hold.
func TestConcurrentSubmissions(t *testing.T) {
	c, bc, _ := newTestCoordinator()
	c.Register("conn-teacher", "Teacher", models.RoleTeacher)

	numStudents := 20
	for i := 0; i < numStudents; i++ {
		c.Register(fmt.Sprintf("conn-s%d", i), fmt.Sprintf("Student%d", i), models.RoleStudent)
	}
	bc.Clear()

	c.CreatePoll("conn-teacher", "Capital of France?", []string{"Paris", "Berlin", "Rome"}, 30)

	var wg sync.WaitGroup
	for i := 0; i < numStudents; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-s%d", idx)
			// every student double-submits
			c.SubmitAnswer(connID, idx%3)
			c.SubmitAnswer(connID, (idx+1)%3)
		}(i)
	}
	wg.Wait()

	ended := bc.BroadcastsOfKind(models.EventPollEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected exactly 1 poll-ended, got %d", len(ended))
	}
	end := ended[0].Payload.(models.PollEndedEvent)

	sum := 0
	for _, n := range end.Counts {
		sum += n
	}
	if sum != numStudents {
		t.Errorf("Expected counts to sum to %d, got %d", numStudents, sum)
	}
	if end.TotalResponses != numStudents {
		t.Errorf("Expected %d total responses, got %d", numStudents, end.TotalResponses)
	}
	if end.Reason != models.ReasonAllAnswered {
		t.Errorf("Expected reason all-answered, got %s", end.Reason)
	}
}
