/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"slices"
	"sync"
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	// Send queues a frame without blocking, reporting false if the
	// connection is closed or backed up.
	Send(data []byte) bool
}

type binding struct {
	conn   Conn
	player Player
}

// Registry maps connections to the players they authenticated as. When the
// same player connects more than once, the newest live connection receives
// their frames.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]binding
	// oldest first
	byPlayer map[string][]Conn
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:   make(map[string]binding),
		byPlayer: make(map[string][]Conn),
	}
}

func (g *Registry) Bind(c Conn, p Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byConn[c.ID()]; ok {
		return ErrAlreadyAuthenticated
	}

	g.byConn[c.ID()] = binding{conn: c, player: p}
	g.byPlayer[p.ID] = append(g.byPlayer[p.ID], c)

	return nil
}

func (g *Registry) Resolve(c Conn) (Player, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	b, ok := g.byConn[c.ID()]

	return b.player, ok
}

// Unbind forgets c. It leaves room membership alone; the caller decides
// whether the player should also leave their room.
func (g *Registry) Unbind(c Conn) (Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.byConn[c.ID()]
	if !ok {
		return Player{}, false
	}

	delete(g.byConn, c.ID())

	conns := slices.DeleteFunc(g.byPlayer[b.player.ID], func(o Conn) bool { return o.ID() == c.ID() })
	if len(conns) == 0 {
		delete(g.byPlayer, b.player.ID)
	} else {
		g.byPlayer[b.player.ID] = conns
	}

	return b.player, true
}

// Connected reports whether any connection still speaks for playerID.
func (g *Registry) Connected(playerID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.byPlayer[playerID]) > 0
}

func (g *Registry) Deliver(playerID string, data []byte) bool {
	g.mu.RLock()
	conns := g.byPlayer[playerID]
	var c Conn
	if len(conns) > 0 {
		c = conns[len(conns)-1]
	}
	g.mu.RUnlock()

	if c == nil {
		return false
	}

	return c.Send(data)
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.byConn)
}
