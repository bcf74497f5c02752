/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"encoding/json"
	"errors"
)

// Server decodes client frames and routes them to the registry, the
// directory and the player's room. It is safe for concurrent use; each
// connection is expected to feed it from its own goroutine.
type Server struct {
	registry  *Registry
	directory *Directory
	logf      func(format string, args ...any)
	errorf    func(format string, args ...any)
}

// NewServer builds the registry and directory together so that rooms
// deliver through the same registry that connections authenticate against.
func NewServer(opts Options) *Server {
	registry := NewRegistry()
	opts.Transport = registry

	d := NewDirectory(opts)

	return &Server{
		registry:  registry,
		directory: d,
		logf:      d.opts.Logf,
		errorf:    d.opts.Errorf,
	}
}

func (s *Server) Directory() *Directory {
	return s.directory
}

func (s *Server) Registry() *Registry {
	return s.registry
}

// Connect greets a new connection with its id.
func (s *Server) Connect(c Conn) {
	s.reply(c, ConnectedMessage{Type: "connected", ConnectionID: c.ID()})
}

// Disconnect unbinds c and takes its player out of their room, unless the
// player is still connected elsewhere.
func (s *Server) Disconnect(c Conn) {
	p, ok := s.registry.Unbind(c)
	if !ok || s.registry.Connected(p.ID) {
		return
	}

	s.logf("GAMES: Player %q disconnected", p.Name)
	s.leaveCurrent(p.ID)
}

func (s *Server) HandleMessage(c Conn, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.fail(c, newError(ErrInvalidMessage, "malformed message"))

		return
	}

	if err := s.dispatch(c, msg); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) dispatch(c Conn, msg ClientMessage) error {
	switch msg.Type {
	case msgPing:
		s.reply(c, SimpleMessage{Type: "pong"})

		return nil
	case msgAuthenticate:
		return s.authenticate(c, msg)
	case msgCreateSession, msgJoinSession, msgFindQuickMatch, msgStartGame,
		msgAnswerQuestion, msgCloseSession, msgLeaveSession:
	default:
		return newError(ErrUnknownMessageType, "unknown message type %q", msg.Type)
	}

	p, ok := s.registry.Resolve(c)
	if !ok {
		return ErrNotAuthenticated
	}

	switch msg.Type {
	case msgCreateSession:
		var settings Settings
		if msg.Settings != nil {
			settings = *msg.Settings
		}
		prev, _ := s.directory.RoomOf(p.ID)

		r, err := s.directory.CreateRoom(p, settings)
		if err != nil {
			return err
		}
		s.leaveFor(prev, r, p.ID)

		return nil
	case msgJoinSession:
		return s.join(p, msg.Code)
	case msgFindQuickMatch:
		prev, _ := s.directory.RoomOf(p.ID)

		r, _, err := s.directory.FindQuickMatch(p, msg.GradeFilter)
		if err != nil {
			return err
		}
		s.leaveFor(prev, r, p.ID)

		return nil
	case msgStartGame:
		return s.withRoom(p, func(r *Room) error { return r.Start(p.ID) })
	case msgAnswerQuestion:
		if msg.Answer == nil {
			return newError(ErrInvalidMessage, "answer is required")
		}

		return s.withRoom(p, func(r *Room) error { return r.Answer(p.ID, *msg.Answer) })
	case msgCloseSession:
		return s.withRoom(p, func(r *Room) error { return r.Close(p.ID) })
	default: // msgLeaveSession
		return s.withRoom(p, func(r *Room) error {
			if err := s.directory.Leave(r.code, p.ID); err != nil {
				return err
			}
			s.reply(c, SessionLeftMessage{Type: "sessionLeft", Code: r.code})

			return nil
		})
	}
}

func (s *Server) authenticate(c Conn, msg ClientMessage) error {
	if msg.Player == nil {
		return newError(ErrInvalidMessage, "player is required")
	}

	p := *msg.Player
	if err := p.normalize(); err != nil {
		return err
	}

	if err := s.registry.Bind(c, p); err != nil {
		return err
	}

	s.logf("GAMES: Player %q authenticated on %s", p.Name, c.ID())
	s.reply(c, AuthenticatedMessage{Type: "authenticated", Player: p})

	return nil
}

func (s *Server) join(p Player, code string) error {
	target, err := s.directory.Lookup(code)
	if err != nil {
		return err
	}

	prev, ok := s.directory.RoomOf(p.ID)
	if ok && prev == target {
		return ErrAlreadyMember
	}

	if _, err := s.directory.JoinRoom(target.code, p); err != nil {
		return err
	}
	s.leaveFor(prev, target, p.ID)

	return nil
}

func (s *Server) withRoom(p Player, fn func(r *Room) error) error {
	r, ok := s.directory.RoomOf(p.ID)
	if !ok {
		return ErrRoomNotFound
	}

	return fn(r)
}

func (s *Server) leaveCurrent(playerID string) {
	if r, ok := s.directory.RoomOf(playerID); ok {
		s.leave(r, playerID)
	}
}

// leaveFor takes a player out of prev once they hold a seat in next, so a
// rejected move leaves them where they were.
func (s *Server) leaveFor(prev, next *Room, playerID string) {
	if prev == nil || prev == next {
		return
	}

	s.leave(prev, playerID)
}

func (s *Server) leave(r *Room, playerID string) {
	if err := s.directory.Leave(r.code, playerID); err != nil && !errors.Is(err, ErrRoomNotFound) {
		s.logf("GAMES: Player %q could not leave %s: %v", playerID, r.code, err)
	}
}

func (s *Server) fail(c Conn, err error) {
	if silent(err) {
		s.logf("GAMES: Ignored message on %s: %v", c.ID(), err)

		return
	}

	msg := ErrorMessage{Type: "error", Code: ErrInternal.Code, Message: ErrInternal.Message}

	var e *Error
	if errors.As(err, &e) && e.Code != ErrInternal.Code {
		msg.Code, msg.Message = e.Code, e.Message
	} else {
		s.errorf("GAMES: %v", err)
	}

	s.reply(c, msg)
}

func (s *Server) reply(c Conn, msg any) {
	data, err := encode(msg)
	if err != nil {
		s.errorf("GAMES: Failed to encode reply: %v", err)

		return
	}

	if !c.Send(data) {
		s.logf("GAMES: Dropped reply to %s", c.ID())
	}
}
