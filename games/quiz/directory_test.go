/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCreateRoomCodes(t *testing.T) {
	h := newHarness(t)

	const n = 64

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]bool, n)
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := h.dir.CreateRoom(player(fmt.Sprintf("host-%d", i), 1), Settings{})
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			codes[r.Code()] = true
		}()
	}
	wg.Wait()

	if len(codes) != n || h.dir.Len() != n {
		t.Fatalf("got %d distinct codes and %d rooms, want %d", len(codes), h.dir.Len(), n)
	}

	for code := range codes {
		if len(code) != codeLength {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q uses %q", code, c)
			}
		}
	}
}

func TestCodeSpaceExhausted(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Rand = bytes.NewReader(make([]byte, codeLength*(codeMaxAttempts+1)))
	})

	r, err := h.dir.CreateRoom(player("A", 1), Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Code() != "AAAAAA" {
		t.Fatalf("code = %q", r.Code())
	}

	_, err = h.dir.CreateRoom(player("B", 1), Settings{})
	if !errors.Is(err, ErrCodeSpaceExhausted) || CodeOf(err) != "Internal" {
		t.Fatalf("got %v, want code space exhaustion", err)
	}
}

func TestCreateRoomSettings(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Defaults = Settings{MaxPlayers: 6, TotalRounds: 3, SecondsPerQuestion: 20}
	})

	r, err := h.dir.CreateRoom(player("A", 2), Settings{TotalRounds: 5})
	if err != nil {
		t.Fatal(err)
	}

	want := Settings{MaxPlayers: 6, TotalRounds: 5, SecondsPerQuestion: 20, Difficulty: DifficultyAuto}
	if got := r.Settings(); got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}

	tests := []Settings{
		{MaxPlayers: 1},
		{MaxPlayers: 51},
		{TotalRounds: -1},
		{SecondsPerQuestion: 301},
		{Difficulty: "impossible"},
		{GradeFilter: -2},
	}
	for _, s := range tests {
		if _, err := h.dir.CreateRoom(player("B", 2), s); !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("settings %+v: got %v, want InvalidSettings", s, err)
		}
	}

	if _, err := h.dir.CreateRoom(player("C", 2), Settings{GradeFilter: 3}); !errors.Is(err, ErrGradeMismatch) {
		t.Fatalf("host outside grade filter: got %v", err)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	h := newHarness(t)

	full, _ := h.dir.CreateRoom(player("A", 2), Settings{MaxPlayers: 2})
	if _, err := h.dir.JoinRoom(full.Code(), player("B", 2)); err != nil {
		t.Fatal(err)
	}

	graded, _ := h.dir.CreateRoom(player("C", 3), Settings{GradeFilter: 3})

	playing, _ := h.dir.CreateRoom(player("E", 2), Settings{})
	_, _ = h.dir.JoinRoom(playing.Code(), player("F", 2))
	if err := playing.Start("E"); err != nil {
		t.Fatal(err)
	}

	finished, _ := h.dir.CreateRoom(player("G", 2), Settings{TotalRounds: 1})
	_, _ = h.dir.JoinRoom(finished.Code(), player("H", 2))
	if err := finished.Start("G"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(3 * time.Second)
	_ = finished.Answer("G", "5")
	_ = finished.Answer("H", "5")
	if snap := snapshot(t, finished); snap.Status != StatusFinished {
		t.Fatalf("status = %s", snap.Status)
	}

	tests := []struct {
		name string
		code string
		p    Player
		want error
	}{
		{"unknown code", "ZZZZZZ", player("X", 2), ErrRoomNotFound},
		{"full", full.Code(), player("X", 2), ErrRoomFull},
		{"member", full.Code(), player("B", 2), ErrAlreadyMember},
		{"grade", graded.Code(), player("X", 2), ErrGradeMismatch},
		{"started", playing.Code(), player("X", 2), ErrRoomNotWaiting},
		{"started member", playing.Code(), player("F", 2), ErrRoomNotWaiting},
		{"finished member", finished.Code(), player("H", 2), ErrRoomNotWaiting},
		{"finished", finished.Code(), player("X", 3), ErrRoomNotWaiting},
		{"full member", full.Code(), player("A", 2), ErrAlreadyMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.dir.JoinRoom(tt.code, tt.p); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if snap := snapshot(t, full); len(snap.Players) != 2 {
		t.Fatalf("rejected join changed the room: %+v", snap.Players)
	}

	if _, err := h.dir.JoinRoom(strings.ToLower(graded.Code()), player("D", 3)); err != nil {
		t.Fatalf("lower-case code: %v", err)
	}
}

func TestQuickMatchFillsOldestFirst(t *testing.T) {
	h := newHarness(t)

	older, _ := h.dir.CreateRoom(player("A", 2), Settings{GradeFilter: 2, MaxPlayers: 2})
	newer, _ := h.dir.CreateRoom(player("B", 2), Settings{GradeFilter: 2})
	_, _ = h.dir.CreateRoom(player("C", 3), Settings{GradeFilter: 3})
	_, _ = h.dir.CreateRoom(player("D", 2), Settings{})

	r, created, err := h.dir.FindQuickMatch(player("E", 2), 2)
	if err != nil || created || r != older {
		t.Fatalf("first match: same=%v created=%v err=%v", r == older, created, err)
	}

	// older is now full.
	r, created, err = h.dir.FindQuickMatch(player("F", 2), 0)
	if err != nil || created || r != newer {
		t.Fatalf("second match: created=%v err=%v", created, err)
	}

	r, created, err = h.dir.FindQuickMatch(player("G", 1), 1)
	if err != nil || !created {
		t.Fatalf("third match: created=%v err=%v", created, err)
	}
	if r.Settings().GradeFilter != 1 || r.Settings().MaxPlayers != 4 {
		t.Fatalf("new room settings = %+v", r.Settings())
	}

	if _, _, err := h.dir.FindQuickMatch(player("H", 1), 3); !errors.Is(err, ErrGradeMismatch) {
		t.Fatalf("wrong grade quick match: got %v", err)
	}

	if got, ok := h.dir.RoomOf("F"); !ok || got != newer {
		t.Fatal("F not indexed to the room it joined")
	}
}

func TestSweepFinished(t *testing.T) {
	h := newHarness(t)
	r := h.startedRoom(t, Settings{TotalRounds: 1}, "A", "B")

	waiting, _ := h.dir.CreateRoom(player("C", 2), Settings{})

	_ = r.Answer("A", "5")
	_ = r.Answer("B", "5")
	if snap := snapshot(t, r); snap.Status != StatusFinished {
		t.Fatalf("status = %s", snap.Status)
	}

	finishedAt := h.clock.Now()

	if n := h.dir.SweepFinished(finishedAt.Add(4 * time.Minute)); n != 0 {
		t.Fatalf("swept %d rooms inside the grace period", n)
	}
	if snap := snapshot(t, r); len(snap.FinalResults) != 2 {
		t.Fatalf("late result query = %+v", snap)
	}

	if n := h.dir.SweepFinished(finishedAt.Add(5 * time.Minute)); n != 1 {
		t.Fatalf("swept %d rooms, want 1", n)
	}
	if _, err := h.dir.Lookup(r.Code()); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("finished room still listed: %v", err)
	}

	// Waiting rooms are kept when no lobby timeout is configured.
	if _, err := h.dir.Lookup(waiting.Code()); err != nil {
		t.Fatalf("waiting room was swept: %v", err)
	}
}

func TestSweepIdleLobby(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.LobbyTimeout = 10 * time.Minute
	})

	idle, _ := h.dir.CreateRoom(player("A", 2), Settings{})
	busy, _ := h.dir.CreateRoom(player("B", 2), Settings{})

	h.clock.Advance(8 * time.Minute)
	_, _ = h.dir.JoinRoom(busy.Code(), player("C", 2))
	h.clock.Advance(3 * time.Minute)

	if n := h.dir.SweepFinished(h.clock.Now()); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}

	var closed SessionClosedMessage
	h.transport.last(t, "A", "sessionClosed", &closed)
	if closed.Reason != ReasonLobbyExpired {
		t.Fatalf("reason = %q", closed.Reason)
	}

	if _, err := idle.Snapshot(); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("idle lobby survived: %v", err)
	}
	if _, err := h.dir.Lookup(busy.Code()); err != nil {
		t.Fatalf("busy lobby swept: %v", err)
	}
}

func TestDirectoryClose(t *testing.T) {
	h := newHarness(t)

	r, _ := h.dir.CreateRoom(player("A", 2), Settings{})
	h.dir.Close()

	if h.dir.Len() != 0 {
		t.Fatalf("%d rooms left after close", h.dir.Len())
	}

	var closed SessionClosedMessage
	h.transport.last(t, "A", "sessionClosed", &closed)
	if closed.Reason != ReasonShutdown {
		t.Fatalf("reason = %q", closed.Reason)
	}

	if err := r.Join(player("B", 2)); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("join after close: got %v", err)
	}
}
