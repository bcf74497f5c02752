/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"cmp"
	"context"
	"slices"
	"time"
)

const (
	inboxSize       = 64
	questionTimeout = 5 * time.Second
	recordTimeout   = 10 * time.Second
)

type answerRecord struct {
	value   Value
	correct bool
	elapsed time.Duration
	points  int
}

// roundState is replaced, never reused, each time a question goes out.
type roundState struct {
	ordinal   int
	gen       uint64
	question  Question
	startedAt time.Time
	roster    []SessionPlayer
	answers   map[string]answerRecord
}

// Snapshot is a consistent copy of a room's public state.
type Snapshot struct {
	Code         string          `json:"code"`
	HostID       string          `json:"hostId"`
	Status       Status          `json:"status"`
	Settings     Settings        `json:"settings"`
	Players      []SessionPlayer `json:"players"`
	Round        int             `json:"round"`
	QuestionOpen bool            `json:"questionOpen"`
	CreatedAt    time.Time       `json:"createdAt"`
	FinalResults []FinalResult   `json:"finalResults,omitempty"`
}

// Room is one quiz session. A single goroutine owns all of its state and
// runs queued commands one at a time; exported methods enqueue a command and
// wait for it to finish.
type Room struct {
	code     string
	settings Settings
	opts     *Options
	onRemove func(code string, r *Room)

	inbox chan func()
	done  chan struct{}

	// Everything below is only touched by the room goroutine.
	hostID     string
	members    []*SessionPlayer
	status     Status
	current    *roundState
	ordinal    int
	gen        uint64
	seen       []string
	joinSeq    int
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	lastActive time.Time
	final      []FinalResult
	sched      scheduler
	removed    bool
}

func newRoom(code string, host Player, settings Settings, opts *Options, onRemove func(string, *Room)) *Room {
	now := opts.Clock.Now()

	r := &Room{
		code:       code,
		settings:   settings,
		opts:       opts,
		onRemove:   onRemove,
		inbox:      make(chan func(), inboxSize),
		done:       make(chan struct{}),
		hostID:     host.ID,
		members:    []*SessionPlayer{{Player: host}},
		status:     StatusWaiting,
		joinSeq:    1,
		createdAt:  now,
		lastActive: now,
	}
	r.sched = scheduler{clock: opts.Clock, post: r.post}

	// Nothing else can reach the room yet, so the host always hears about
	// it before anyone joins.
	r.send(host.ID, RoomMessage{Type: "sessionCreated", Room: r.snapshot()})

	go r.run()

	return r
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) Settings() Settings {
	return r.settings
}

func (r *Room) run() {
	defer close(r.done)

	for !r.removed {
		fn := <-r.inbox
		fn()
	}
}

// call runs fn on the room goroutine. Commands that reach a room after it
// was removed fail with ErrRoomNotFound.
func (r *Room) call(fn func() error) error {
	reply := make(chan error, 1)

	select {
	case r.inbox <- func() { reply <- fn() }:
	case <-r.done:
		return ErrRoomNotFound
	}

	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomNotFound
		}
	}
}

// post is used by timers. It never runs fn after the room is gone.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

func (r *Room) Join(p Player) error {
	return r.call(func() error {
		switch {
		case r.status != StatusWaiting:
			return ErrRoomNotWaiting
		case r.member(p.ID) != nil:
			return ErrAlreadyMember
		case len(r.members) >= r.settings.MaxPlayers:
			return ErrRoomFull
		case r.settings.GradeFilter != 0 && p.Grade != r.settings.GradeFilter:
			return newError(ErrGradeMismatch, "this room is for grade %d", r.settings.GradeFilter)
		}

		sp := &SessionPlayer{Player: p, seq: r.joinSeq}
		r.joinSeq++
		r.members = append(r.members, sp)
		r.touch()

		snap := r.snapshot()
		r.broadcast(PlayerJoinedMessage{Type: "playerJoined", Player: *sp, Room: snap}, p.ID)
		r.send(p.ID, RoomMessage{Type: "sessionJoined", Room: snap})

		r.logf("GAMES: Player %q joined %s (%d/%d)", p.Name, r.code, len(r.members), r.settings.MaxPlayers)

		return nil
	})
}

// Leave removes a player, whether they asked to or their connection died.
// A player who drops mid-round stays on that round's roster and is scored
// as unanswered.
func (r *Room) Leave(playerID string) error {
	return r.call(func() error {
		return r.leave(playerID)
	})
}

func (r *Room) leave(playerID string) error {
	i := slices.IndexFunc(r.members, func(m *SessionPlayer) bool { return m.ID == playerID })
	if i < 0 {
		return ErrNotMember
	}

	r.members = slices.Delete(r.members, i, i+1)
	r.touch()

	r.logf("GAMES: Player %q left %s", playerID, r.code)

	if len(r.members) == 0 {
		r.remove("")

		return nil
	}

	if r.hostID == playerID {
		r.hostID = r.members[0].ID
		r.logf("GAMES: Host of %s is now %q", r.code, r.hostID)
	}

	r.broadcast(PlayerLeftMessage{
		Type:     "playerLeft",
		PlayerID: playerID,
		HostID:   r.hostID,
		Room:     r.snapshot(),
	}, "")

	if r.status != StatusPlaying {
		return nil
	}

	switch {
	case len(r.members) < MinPlayers:
		r.endGame()
	case r.current != nil && r.allAnswered():
		r.endRound()
	}

	return nil
}

func (r *Room) Start(requesterID string) error {
	return r.call(func() error {
		switch {
		case requesterID != r.hostID:
			return ErrNotHost
		case r.status != StatusWaiting:
			return ErrAlreadyStarted
		case len(r.members) < MinPlayers:
			return ErrNotEnoughPlayers
		}

		r.status = StatusPlaying
		r.ordinal = 1
		r.startedAt = r.opts.Clock.Now()
		r.touch()

		r.broadcast(RoomMessage{Type: "gameStarted", Room: r.snapshot()}, "")
		r.sched.arm(r.opts.LeadIn, r.beginRound)

		r.logf("GAMES: Started %s with %d players", r.code, len(r.members))

		return nil
	})
}

func (r *Room) beginRound() {
	if r.status != StatusPlaying || r.current != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), questionTimeout)
	q, err := r.opts.Questions.NextQuestion(ctx, QuestionRequest{
		Grade:      r.grade(),
		Difficulty: r.settings.Difficulty,
		Round:      r.ordinal,
		Seen:       r.seen,
	})
	cancel()
	if err != nil {
		r.opts.Errorf("GAMES: No question for %s round %d: %v", r.code, r.ordinal, err)
		r.endGame()

		return
	}

	roster := make([]SessionPlayer, len(r.members))
	for i, m := range r.members {
		roster[i] = *m
	}

	r.gen++
	r.current = &roundState{
		ordinal:   r.ordinal,
		gen:       r.gen,
		question:  q,
		startedAt: r.opts.Clock.Now(),
		roster:    roster,
		answers:   make(map[string]answerRecord, len(roster)),
	}
	r.seen = append(r.seen, q.ID)

	r.broadcast(NewQuestionMessage{
		Type:        "newQuestion",
		Prompt:      q.Prompt,
		Options:     q.Options,
		Category:    q.Category,
		Points:      q.Points,
		Round:       r.ordinal,
		TotalRounds: r.settings.TotalRounds,
		Seconds:     r.settings.SecondsPerQuestion,
	}, "")

	gen := r.gen
	r.sched.arm(r.settings.deadline(), func() {
		r.expire(gen)
	})
}

// expire ends the round it was armed for, unless that round already ended.
func (r *Room) expire(gen uint64) {
	if r.current == nil || r.current.gen != gen {
		return
	}

	r.logf("GAMES: Round %d of %s timed out", r.current.ordinal, r.code)
	r.endRound()
}

func (r *Room) Answer(playerID string, v Value) error {
	return r.call(func() error {
		rd := r.current
		if rd == nil {
			return ErrRoundClosed
		}

		p := r.member(playerID)
		if p == nil {
			return ErrNotMember
		}

		if _, ok := rd.answers[playerID]; ok {
			return ErrDuplicateAnswer
		}

		elapsed := max(r.opts.Clock.Now().Sub(rd.startedAt), 0)
		if elapsed > r.settings.deadline() {
			return ErrRoundClosed
		}

		rec := answerRecord{
			value:   v,
			correct: v.Equal(rd.question.Correct),
			elapsed: elapsed,
		}
		if rec.correct {
			rec.points = rd.question.Points
			p.CorrectAnswers++
		}
		rd.answers[playerID] = rec

		p.Score += rec.points
		p.answered++
		p.answerTime += elapsed
		r.touch()

		r.broadcast(PlayerAnsweredMessage{
			Type:      "playerAnswered",
			PlayerID:  playerID,
			IsCorrect: rec.correct,
			Elapsed:   elapsed.Milliseconds(),
		}, playerID)

		if r.allAnswered() {
			r.endRound()
		}

		return nil
	})
}

func (r *Room) allAnswered() bool {
	for _, m := range r.members {
		if _, ok := r.current.answers[m.ID]; !ok {
			return false
		}
	}

	return true
}

func (r *Room) endRound() {
	rd := r.current
	if rd == nil {
		return
	}
	r.current = nil
	r.sched.cancel()

	deadline := r.settings.deadline()

	type ranked struct {
		RoundResult
		elapsed time.Duration
	}

	lines := make([]ranked, 0, len(rd.roster))
	for _, sp := range rd.roster {
		line := ranked{
			RoundResult: RoundResult{
				PlayerID: sp.ID,
				Name:     sp.Name,
				Avatar:   sp.Avatar,
				Elapsed:  deadline.Milliseconds(),
				Score:    sp.Score,
			},
			elapsed: deadline,
		}

		if rec, ok := rd.answers[sp.ID]; ok {
			line.Answered = true
			line.Answer = rec.value
			line.IsCorrect = rec.correct
			line.Elapsed = rec.elapsed.Milliseconds()
			line.Points = rec.points
			line.Score += rec.points
			line.elapsed = rec.elapsed
		}

		if m := r.member(sp.ID); m != nil {
			line.Score = m.Score
		}

		lines = append(lines, line)
	}

	slices.SortStableFunc(lines, func(a, b ranked) int {
		if a.IsCorrect != b.IsCorrect {
			if a.IsCorrect {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.elapsed, b.elapsed)
	})

	results := make([]RoundResult, len(lines))
	for i, line := range lines {
		results[i] = line.RoundResult
	}

	r.broadcast(RoundResultsMessage{
		Type:          "roundResults",
		Results:       results,
		CorrectAnswer: rd.question.Correct,
		Round:         rd.ordinal,
		TotalRounds:   r.settings.TotalRounds,
	}, "")

	if r.ordinal >= r.settings.TotalRounds {
		r.endGame()

		return
	}

	r.ordinal++
	r.sched.arm(r.opts.ResultsDelay, r.beginRound)
}

func (r *Room) endGame() {
	if r.status == StatusFinished {
		return
	}

	r.current = nil
	r.sched.cancel()

	now := r.opts.Clock.Now()
	r.status = StatusFinished
	r.finishedAt = now
	r.touch()

	standings := slices.Clone(r.members)
	slices.SortStableFunc(standings, func(a, b *SessionPlayer) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	results := make([]FinalResult, len(standings))
	for i, p := range standings {
		results[i] = FinalResult{
			PlayerID:       p.ID,
			Name:           p.Name,
			Avatar:         p.Avatar,
			Grade:          p.Grade,
			Score:          p.Score,
			CorrectAnswers: p.CorrectAnswers,
			AvgElapsed:     p.averageElapsed().Milliseconds(),
			Position:       i + 1,
			Reward:         r.opts.Rewards.Reward(p.Score, i+1),
		}
	}
	r.final = results

	r.broadcast(GameFinishedMessage{
		Type:            "gameFinished",
		FinalResults:    results,
		TotalRounds:     r.settings.TotalRounds,
		SessionDuration: now.Sub(r.startedAt).Milliseconds(),
	}, "")

	r.logf("GAMES: Finished %s after %d rounds", r.code, r.ordinal)

	st := Standings{
		Code:        r.code,
		GradeFilter: r.settings.GradeFilter,
		TotalRounds: r.settings.TotalRounds,
		StartedAt:   r.startedAt,
		FinishedAt:  now,
		Results:     slices.Clone(results),
	}
	rec, errorf := r.opts.Recorder, r.opts.Errorf

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := rec.RecordStandings(ctx, st); err != nil {
			errorf("GAMES: Failed to record standings for %s: %v", st.Code, err)
		}
	}()
}

// Close is the host aborting a waiting or running session. Everyone is told
// why and the room is gone as soon as Close returns. A finished room stays
// until its grace period runs out.
func (r *Room) Close(requesterID string) error {
	return r.call(func() error {
		switch {
		case requesterID != r.hostID:
			return ErrNotHost
		case r.status == StatusFinished:
			return newError(ErrRoomNotWaiting, "game has already finished")
		}

		r.logf("GAMES: Host closed %s", r.code)
		r.remove(ReasonHostClosed)

		return nil
	})
}

// Stop removes the room unconditionally, telling members why if reason is set.
func (r *Room) Stop(reason string) {
	_ = r.call(func() error {
		r.remove(reason)

		return nil
	})
}

// sweep removes the room if its finished grace period or its lobby idle
// timeout has passed.
func (r *Room) sweep(now time.Time) bool {
	var swept bool

	_ = r.call(func() error {
		switch {
		case r.status == StatusFinished && now.Sub(r.finishedAt) >= r.opts.GracePeriod:
			r.remove("")
			swept = true
		case r.status == StatusWaiting && r.opts.LobbyTimeout > 0 && now.Sub(r.lastActive) >= r.opts.LobbyTimeout:
			r.remove(ReasonLobbyExpired)
			swept = true
		}

		return nil
	})

	return swept
}

func (r *Room) Snapshot() (Snapshot, error) {
	var snap Snapshot

	err := r.call(func() error {
		snap = r.snapshot()

		return nil
	})

	return snap, err
}

func (r *Room) remove(reason string) {
	if r.removed {
		return
	}

	if reason != "" {
		r.broadcast(SessionClosedMessage{Type: "sessionClosed", Reason: reason}, "")
	}

	r.removed = true
	r.current = nil
	r.sched.cancel()
	r.onRemove(r.code, r)
}

func (r *Room) snapshot() Snapshot {
	players := make([]SessionPlayer, len(r.members))
	for i, m := range r.members {
		players[i] = *m
	}

	return Snapshot{
		Code:         r.code,
		HostID:       r.hostID,
		Status:       r.status,
		Settings:     r.settings,
		Players:      players,
		Round:        r.ordinal,
		QuestionOpen: r.current != nil,
		CreatedAt:    r.createdAt,
		FinalResults: slices.Clone(r.final),
	}
}

// grade picks the question level: the room's filter, else its youngest member.
func (r *Room) grade() int {
	if r.settings.GradeFilter > 0 {
		return r.settings.GradeFilter
	}

	grade := 0
	for _, m := range r.members {
		if m.Grade > 0 && (grade == 0 || m.Grade < grade) {
			grade = m.Grade
		}
	}

	return max(grade, 1)
}

func (r *Room) member(playerID string) *SessionPlayer {
	for _, m := range r.members {
		if m.ID == playerID {
			return m
		}
	}

	return nil
}

func (r *Room) touch() {
	r.lastActive = r.opts.Clock.Now()
}

func (r *Room) broadcast(msg any, except string) {
	data, err := encode(msg)
	if err != nil {
		r.opts.Errorf("GAMES: Failed to encode message for %s: %v", r.code, err)

		return
	}

	for _, m := range r.members {
		if m.ID == except {
			continue
		}
		r.deliver(m.ID, data)
	}
}

func (r *Room) send(playerID string, msg any) {
	data, err := encode(msg)
	if err != nil {
		r.opts.Errorf("GAMES: Failed to encode message for %s: %v", r.code, err)

		return
	}

	r.deliver(playerID, data)
}

func (r *Room) deliver(playerID string, data []byte) {
	if !r.opts.Transport.Deliver(playerID, data) {
		r.logf("GAMES: Dropped message to %q in %s", playerID, r.code)
	}
}

func (r *Room) logf(format string, args ...any) {
	r.opts.Logf(format, args...)
}
