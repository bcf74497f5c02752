/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"strings"
	"time"
)

// Player is the long-lived identity a client presents when it authenticates.
// Only the session score is ever changed by a room.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age,omitempty"`
	Grade  int    `json:"grade"`
	Avatar string `json:"avatar,omitempty"`
	Level  int    `json:"level,omitempty"`
}

func (p *Player) normalize() error {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)

	if p.ID == "" {
		return newError(ErrInvalidMessage, "player id is required")
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Grade < 0 {
		return newError(ErrInvalidMessage, "grade must not be negative")
	}

	return nil
}

// SessionPlayer is a member of a room, with its score for that session.
type SessionPlayer struct {
	Player
	Score          int `json:"score"`
	CorrectAnswers int `json:"correctAnswers"`

	answered   int
	answerTime time.Duration
	seq        int
}

func (p *SessionPlayer) averageElapsed() time.Duration {
	if p.answered == 0 {
		return 0
	}

	return p.answerTime / time.Duration(p.answered)
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Difficulty string

const (
	DifficultyAuto   Difficulty = "auto"
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) valid() bool {
	switch d {
	case DifficultyAuto, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}

	return false
}

// Limits applied to room settings, whether they come from a client or from flags.
const (
	MinPlayers            = 2
	MaxPlayersLimit       = 50
	MaxRounds             = 50
	MaxSecondsPerQuestion = 300
)

// Settings are fixed when a room is created.
type Settings struct {
	MaxPlayers         int        `json:"maxPlayers"`
	TotalRounds        int        `json:"rounds"`
	SecondsPerQuestion int        `json:"timePerQuestion"`
	GradeFilter        int        `json:"gradeFilter,omitempty"`
	Difficulty         Difficulty `json:"difficulty"`
}

// DefaultSettings mirrors the lobby defaults offered to players.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:         4,
		TotalRounds:        10,
		SecondsPerQuestion: 30,
		Difficulty:         DifficultyAuto,
	}
}

// withDefaults fills every zero field from d.
func (s Settings) withDefaults(d Settings) Settings {
	if s.MaxPlayers == 0 {
		s.MaxPlayers = d.MaxPlayers
	}
	if s.TotalRounds == 0 {
		s.TotalRounds = d.TotalRounds
	}
	if s.SecondsPerQuestion == 0 {
		s.SecondsPerQuestion = d.SecondsPerQuestion
	}
	if s.Difficulty == "" {
		s.Difficulty = d.Difficulty
	}
	if s.Difficulty == "" {
		s.Difficulty = DifficultyAuto
	}

	return s
}

func (s Settings) Validate() error {
	switch {
	case s.MaxPlayers < MinPlayers || s.MaxPlayers > MaxPlayersLimit:
		return newError(ErrInvalidSettings, "maxPlayers must be between %d and %d", MinPlayers, MaxPlayersLimit)
	case s.TotalRounds < 1 || s.TotalRounds > MaxRounds:
		return newError(ErrInvalidSettings, "rounds must be between 1 and %d", MaxRounds)
	case s.SecondsPerQuestion < 1 || s.SecondsPerQuestion > MaxSecondsPerQuestion:
		return newError(ErrInvalidSettings, "timePerQuestion must be between 1 and %d seconds", MaxSecondsPerQuestion)
	case s.GradeFilter < 0:
		return newError(ErrInvalidSettings, "gradeFilter must not be negative")
	case !s.Difficulty.valid():
		return newError(ErrInvalidSettings, "unknown difficulty %q", s.Difficulty)
	}

	return nil
}

func (s Settings) deadline() time.Duration {
	return time.Duration(s.SecondsPerQuestion) * time.Second
}
