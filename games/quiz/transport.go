/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"context"
	"encoding/json"
	"time"
)

// Transport delivers an encoded frame to whichever connection currently
// speaks for a player. Delivery is best effort and must never block.
type Transport interface {
	Deliver(playerID string, data []byte) bool
}

// Standings is what a finished room hands to the ranking store.
type Standings struct {
	Code        string
	GradeFilter int
	TotalRounds int
	StartedAt   time.Time
	FinishedAt  time.Time
	Results     []FinalResult
}

// Recorder persists final standings. Rooms call it in the background and
// only log failures.
type Recorder interface {
	RecordStandings(ctx context.Context, s Standings) error
}

type nopRecorder struct{}

func (nopRecorder) RecordStandings(context.Context, Standings) error {
	return nil
}

func encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
