/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/partyquiz/games/quiz"
	"github.com/Seednode/partyquiz/ranking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 256
	qrSize         = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn is a quiz.Conn backed by a websocket. Frames are queued to a
// single writer goroutine; a client that falls too far behind is dropped.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.close()

		return false
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsConn) readPump(cfg *Config, srv *quiz.Server) {
	defer func() {
		srv.Disconnect(c)
		c.close()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logf(cfg, "GAMES: Connection %s closed: %v", c.id, err)
			}

			return
		}

		srv.HandleMessage(c, data)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()

				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()

				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))

			return
		}
	}
}

func serveWS(cfg *Config, srv *quiz.Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade from %s failed: %v", realIP(r), err)

			return
		}

		c := newWSConn(ws)

		logf(cfg, "GAMES: Connection %s opened from %s", c.id, realIP(r))

		srv.Connect(c)

		go c.writePump()
		c.readPump(cfg, srv)
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any, errs chan<- error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs <- err
	}
}

func roomError(cfg *Config, w http.ResponseWriter, err error, errs chan<- error) {
	status := http.StatusInternalServerError
	if errors.Is(err, quiz.ErrRoomNotFound) {
		status = http.StatusNotFound
	}

	writeJSON(cfg, w, status, quiz.ErrorMessage{
		Type:    "error",
		Code:    quiz.CodeOf(err),
		Message: err.Error(),
	}, errs)
}

func serveRoom(cfg *Config, dir *quiz.Directory, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		room, err := dir.Lookup(ps.ByName("code"))
		if err != nil {
			roomError(cfg, w, err, errs)

			return
		}

		snap, err := room.Snapshot()
		if err != nil {
			roomError(cfg, w, err, errs)

			return
		}

		writeJSON(cfg, w, http.StatusOK, snap, errs)
	}
}

// serveRoomQR renders a PNG pointing at the room, for players joining from
// a phone.
func serveRoomQR(cfg *Config, dir *quiz.Directory, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		room, err := dir.Lookup(ps.ByName("code"))
		if err != nil {
			roomError(cfg, w, err, errs)

			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := fmt.Sprintf("%s://%s%s/quiz/rooms/%s", scheme, r.Host, cfg.prefix, room.Code())

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func serveLeaderboard(cfg *Config, store ranking.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if store == nil {
			http.Error(w, "leaderboard disabled", http.StatusNotFound)

			return
		}

		query := r.URL.Query()
		grade, _ := strconv.Atoi(query.Get("grade"))
		limit, _ := strconv.Atoi(query.Get("limit"))

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		entries, err := store.Top(ctx, ranking.Query{
			Board: strings.ToLower(query.Get("board")),
			Grade: grade,
			Limit: limit,
		})
		switch {
		case errors.Is(err, ranking.ErrUnknownBoard):
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		case err != nil:
			errorf("Leaderboard query failed: %v", err)
			http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)

			return
		}

		writeJSON(cfg, w, http.StatusOK, entries, errs)
	}
}

func loadQuestions(cfg *Config) (*quiz.Bank, error) {
	if cfg.questions == "" {
		return quiz.DefaultBank(), nil
	}

	return quiz.LoadBank(cfg.questions)
}

// newRanking opens the configured ranking store. With none, standings are
// only logged and there is no leaderboard.
func newRanking(ctx context.Context, cfg *Config) (ranking.Store, quiz.Recorder, error) {
	switch cfg.ranking {
	case rankingRedis:
		store, err := ranking.DialRedis(ctx, cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
		if err != nil {
			return nil, nil, err
		}

		return store, store, nil
	case rankingPostgres:
		store, err := ranking.OpenPostgres(cfg.postgresDSN)
		if err != nil {
			return nil, nil, err
		}

		return store, store, nil
	default:
		return nil, ranking.Log{Logf: func(format string, args ...any) { logf(cfg, format, args...) }}, nil
	}
}

func newQuizServer(cfg *Config, questions quiz.QuestionProvider, recorder quiz.Recorder) *quiz.Server {
	return quiz.NewServer(quiz.Options{
		Questions:    questions,
		Recorder:     recorder,
		Rewards:      cfg.rewards(),
		Defaults:     cfg.settings(),
		LeadIn:       cfg.leadIn,
		ResultsDelay: cfg.resultsDelay,
		GracePeriod:  cfg.gracePeriod,
		LobbyTimeout: cfg.lobbyTimeout,
		Logf: func(format string, args ...any) {
			logf(cfg, format, args...)
		},
		Errorf: errorf,
	})
}

// registerQuizGame sets up routes so that:
//   - $path/ws                → websocket for all quiz traffic
//   - $path/rooms/:code       → JSON snapshot of a room
//   - $path/rooms/:code/qr    → PNG QR code for a room
//   - $path/leaderboard       → top players from the ranking store
func registerQuizGame(cfg *Config, path string, mux *httprouter.Router, srv *quiz.Server, store ranking.Store, errs chan<- error) {
	dir := srv.Directory()

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, srv))
	mux.GET(cfg.prefix+path+"/rooms/:code", serveRoom(cfg, dir, errs))
	mux.GET(cfg.prefix+path+"/rooms/:code/qr", serveRoomQR(cfg, dir, errs))
	mux.GET(cfg.prefix+path+"/leaderboard", serveLeaderboard(cfg, store, errs))
}
