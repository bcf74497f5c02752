/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

// Messages coming from clients. Each type only uses a subset of the fields.
type ClientMessage struct {
	Type        string    `json:"type"`
	Player      *Player   `json:"player,omitempty"`      // authenticate
	Settings    *Settings `json:"settings,omitempty"`    // createSession
	Code        string    `json:"code,omitempty"`        // joinSession
	GradeFilter int       `json:"gradeFilter,omitempty"` // findQuickMatch
	Answer      *Value    `json:"answer,omitempty"`      // answerQuestion
}

const (
	msgAuthenticate   = "authenticate"
	msgCreateSession  = "createSession"
	msgJoinSession    = "joinSession"
	msgFindQuickMatch = "findQuickMatch"
	msgStartGame      = "startGame"
	msgAnswerQuestion = "answerQuestion"
	msgCloseSession   = "closeSession"
	msgLeaveSession   = "leaveSession"
	msgPing           = "ping"
)

// Messages sent to clients

type ConnectedMessage struct {
	Type         string `json:"type"` // "connected"
	ConnectionID string `json:"connectionId"`
}

type AuthenticatedMessage struct {
	Type   string `json:"type"` // "authenticated"
	Player Player `json:"player"`
}

// RoomMessage carries a full room snapshot: sessionCreated, sessionJoined
// and gameStarted.
type RoomMessage struct {
	Type string   `json:"type"`
	Room Snapshot `json:"room"`
}

type PlayerJoinedMessage struct {
	Type   string        `json:"type"` // "playerJoined"
	Player SessionPlayer `json:"player"`
	Room   Snapshot      `json:"room"`
}

type PlayerLeftMessage struct {
	Type     string   `json:"type"` // "playerLeft"
	PlayerID string   `json:"playerId"`
	HostID   string   `json:"hostId"`
	Room     Snapshot `json:"room"`
}

type SessionLeftMessage struct {
	Type string `json:"type"` // "sessionLeft"
	Code string `json:"code"`
}

// NewQuestionMessage never carries the correct answer.
type NewQuestionMessage struct {
	Type        string  `json:"type"` // "newQuestion"
	Prompt      string  `json:"prompt"`
	Options     []Value `json:"options"`
	Category    string  `json:"category,omitempty"`
	Points      int     `json:"points"`
	Round       int     `json:"round"`
	TotalRounds int     `json:"totalRounds"`
	Seconds     int     `json:"seconds"`
}

// PlayerAnsweredMessage goes to everyone except the player who answered.
type PlayerAnsweredMessage struct {
	Type      string `json:"type"` // "playerAnswered"
	PlayerID  string `json:"playerId"`
	IsCorrect bool   `json:"isCorrect"`
	Elapsed   int64  `json:"elapsed"`
}

type RoundResult struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Answered  bool   `json:"answered"`
	Answer    Value  `json:"answer,omitempty"`
	IsCorrect bool   `json:"isCorrect"`
	Elapsed   int64  `json:"elapsed"`
	Points    int    `json:"points"`
	Score     int    `json:"score"`
}

type RoundResultsMessage struct {
	Type          string        `json:"type"` // "roundResults"
	Results       []RoundResult `json:"results"`
	CorrectAnswer Value         `json:"correctAnswer"`
	Round         int           `json:"round"`
	TotalRounds   int           `json:"totalRounds"`
}

type FinalResult struct {
	PlayerID       string `json:"playerId"`
	Name           string `json:"name"`
	Avatar         string `json:"avatar,omitempty"`
	Grade          int    `json:"grade"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	AvgElapsed     int64  `json:"avgElapsed"`
	Position       int    `json:"position"`
	Reward         int    `json:"reward"`
}

type GameFinishedMessage struct {
	Type            string        `json:"type"` // "gameFinished"
	FinalResults    []FinalResult `json:"finalResults"`
	TotalRounds     int           `json:"totalRounds"`
	SessionDuration int64         `json:"sessionDuration"`
}

type SessionClosedMessage struct {
	Type   string `json:"type"` // "sessionClosed"
	Reason string `json:"reason"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SimpleMessage struct {
	Type string `json:"type"` // "pong"
}

const (
	ReasonHostClosed   = "host closed"
	ReasonLobbyExpired = "lobby expired"
	ReasonShutdown     = "server shutting down"
)
