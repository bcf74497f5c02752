/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true

	return true
}

// fakeClock only moves when Advance is called. Due timers run on the
// caller's goroutine, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type frame struct {
	to   string
	typ  string
	data []byte
}

// captureTransport records every frame a room delivers.
type captureTransport struct {
	mu     sync.Mutex
	frames []frame
}

func (t *captureTransport) Deliver(playerID string, data []byte) bool {
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &head)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames = append(t.frames, frame{to: playerID, typ: head.Type, data: bytes.Clone(data)})

	return true
}

func (t *captureTransport) types(playerID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, f := range t.frames {
		if f.to == playerID {
			out = append(out, f.typ)
		}
	}

	return out
}

func (t *captureTransport) count(playerID, typ string) int {
	n := 0
	for _, got := range t.types(playerID) {
		if got == typ {
			n++
		}
	}

	return n
}

// last decodes the most recent frame of type typ sent to playerID.
func (t *captureTransport) last(tb testing.TB, playerID, typ string, v any) {
	tb.Helper()

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		if f.to == playerID && f.typ == typ {
			if err := json.Unmarshal(f.data, v); err != nil {
				tb.Fatalf("decode %s: %v", typ, err)
			}
			return
		}
	}

	tb.Fatalf("%s never received %s (got %v)", playerID, typ, t.typesLocked(playerID))
}

func (t *captureTransport) typesLocked(playerID string) []string {
	var out []string
	for _, f := range t.frames {
		if f.to == playerID {
			out = append(out, f.typ)
		}
	}

	return out
}

// fixedQuestions always asks "2 + 3" and records what it was asked for.
type fixedQuestions struct {
	mu       sync.Mutex
	requests []QuestionRequest
	err      error
}

func (q *fixedQuestions) NextQuestion(_ context.Context, req QuestionRequest) (Question, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.requests = append(q.requests, req)
	if q.err != nil {
		return Question{}, q.err
	}

	return Question{
		ID:       "sum",
		Prompt:   "How much is 2 + 3?",
		Options:  []Value{"5", "4", "6", "3"},
		Correct:  "5",
		Points:   10,
		Category: "Math",
	}, nil
}

type recordedStandings struct {
	mu  sync.Mutex
	got []Standings
	ch  chan Standings
}

func newRecordedStandings() *recordedStandings {
	return &recordedStandings{ch: make(chan Standings, 8)}
}

func (r *recordedStandings) RecordStandings(_ context.Context, s Standings) error {
	r.mu.Lock()
	r.got = append(r.got, s)
	r.mu.Unlock()

	r.ch <- s

	return nil
}

type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logLines) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.ContainsFunc(l.lines, func(line string) bool { return strings.Contains(line, substr) })
}

type harness struct {
	errors    *logLines
	clock     *fakeClock
	transport *captureTransport
	questions *fixedQuestions
	recorder  *recordedStandings
	dir       *Directory
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()

	h := &harness{
		errors:    &logLines{},
		clock:     newFakeClock(),
		transport: &captureTransport{},
		questions: &fixedQuestions{},
		recorder:  newRecordedStandings(),
	}

	opts := Options{
		Clock:        h.clock,
		Questions:    h.questions,
		Transport:    h.transport,
		Recorder:     h.recorder,
		LeadIn:       3 * time.Second,
		ResultsDelay: 5 * time.Second,
		GracePeriod:  5 * time.Minute,
		Errorf:       h.errors.printf,
	}
	for _, fn := range tweak {
		fn(&opts)
	}

	h.dir = NewDirectory(opts)
	t.Cleanup(h.dir.Close)

	return h
}

func player(id string, grade int) Player {
	return Player{ID: id, Name: "Player " + id, Grade: grade}
}

// snapshot also checks the room invariants that must hold at every
// observable point.
func snapshot(t *testing.T, r *Room) Snapshot {
	t.Helper()

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot %s: %v", r.Code(), err)
	}

	switch snap.Status {
	case StatusWaiting:
		if snap.QuestionOpen || snap.Round != 0 {
			t.Fatalf("waiting room has round %d (open=%v)", snap.Round, snap.QuestionOpen)
		}
	case StatusPlaying:
		if n := len(snap.Players); n < MinPlayers || n > snap.Settings.MaxPlayers {
			t.Fatalf("playing room has %d players (max %d)", n, snap.Settings.MaxPlayers)
		}
	}

	if snap.Status != StatusFinished && !slices.ContainsFunc(snap.Players, func(p SessionPlayer) bool { return p.ID == snap.HostID }) {
		t.Fatalf("host %q is not a member of %s", snap.HostID, snap.Code)
	}

	return snap
}
