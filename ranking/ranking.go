/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ranking stores the final standings of finished quiz rooms.
package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/Seednode/partyquiz/games/quiz"
)

// Boards that can be queried for a leaderboard.
const (
	BoardScore  = "score"
	BoardReward = "reward"
)

var ErrUnknownBoard = errors.New("unknown leaderboard")

type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
	Total    int64  `json:"total"`
}

type Query struct {
	Board string
	Grade int
	Limit int
}

func (q *Query) normalize() error {
	switch q.Board {
	case "":
		q.Board = BoardReward
	case BoardScore, BoardReward:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBoard, q.Board)
	}

	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}

	return nil
}

// Store is a quiz.Recorder that can also be asked for its leaderboard.
type Store interface {
	quiz.Recorder
	Top(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

// Log only reports standings through the given logger.
type Log struct {
	Logf func(format string, args ...any)
}

func (l Log) RecordStandings(_ context.Context, s quiz.Standings) error {
	for _, r := range s.Results {
		l.Logf("RANKS: %s #%d %q score=%d reward=%d", s.Code, r.Position, r.Name, r.Score, r.Reward)
	}

	return nil
}

// grade is the grade a result counts toward: the room's filter, or the
// player's own grade in an open room.
func grade(s quiz.Standings, r quiz.FinalResult) int {
	if s.GradeFilter > 0 {
		return s.GradeFilter
	}

	return r.Grade
}

var (
	_ Store         = (*Redis)(nil)
	_ Store         = (*Postgres)(nil)
	_ quiz.Recorder = Log{}
)
