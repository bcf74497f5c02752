/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import "time"

type Timer interface {
	Stop() bool
}

// Clock lets tests drive round deadlines by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var SystemClock Clock = systemClock{}

// scheduler holds the one pending timer of a room. A room only ever waits
// on a single thing at a time (lead-in, answer deadline or results display),
// so arming a new timer replaces the old one. Fired timers never touch room
// state; they post back into the room's queue, and a post that arrives after
// the timer was replaced or cancelled is dropped.
//
// All methods must be called from the room's goroutine.
type scheduler struct {
	clock   Clock
	post    func(func())
	pending Timer
	seq     uint64
}

func (s *scheduler) arm(d time.Duration, fn func()) {
	s.cancel()

	seq := s.seq
	s.pending = s.clock.AfterFunc(d, func() {
		s.post(func() {
			if s.seq != seq {
				return
			}
			s.pending = nil
			fn()
		})
	})
}

func (s *scheduler) cancel() {
	s.seq++

	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
