/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	codeAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength       = 6
	codeMaxAttempts  = 10
	defaultLeadIn    = 3 * time.Second
	defaultResults   = 5 * time.Second
	defaultGrace     = 5 * time.Minute
	defaultSweepTick = 30 * time.Second
)

// Options wires a Directory to its collaborators. Zero fields get defaults.
type Options struct {
	Clock     Clock
	Questions QuestionProvider
	Transport Transport
	Recorder  Recorder
	Rewards   RewardPolicy
	Defaults  Settings

	LeadIn       time.Duration
	ResultsDelay time.Duration
	GracePeriod  time.Duration
	LobbyTimeout time.Duration

	// Logf is for verbose output, Errorf for failures that are always shown.
	Logf   func(format string, args ...any)
	Errorf func(format string, args ...any)

	// Rand is the entropy source for room codes.
	Rand io.Reader
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Questions == nil {
		o.Questions = DefaultBank()
	}
	if o.Transport == nil {
		o.Transport = NewRegistry()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Rewards.Rate == 0 && o.Rewards.PositionBonus == nil {
		o.Rewards = DefaultRewardPolicy()
	}
	o.Defaults = o.Defaults.withDefaults(DefaultSettings())
	if o.LeadIn == 0 {
		o.LeadIn = defaultLeadIn
	}
	if o.ResultsDelay == 0 {
		o.ResultsDelay = defaultResults
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = defaultGrace
	}
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
	if o.Errorf == nil {
		o.Errorf = log.Printf
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
}

// Directory owns every live room, keyed by code. Rooms are kept in creation
// order so quick match fills the oldest lobby first.
type Directory struct {
	opts Options

	mu       sync.Mutex
	rooms    map[string]*Room
	order    []*Room
	byPlayer map[string]string
}

func NewDirectory(opts Options) *Directory {
	opts.setDefaults()

	return &Directory{
		opts:     opts,
		rooms:    make(map[string]*Room),
		byPlayer: make(map[string]string),
	}
}

// CreateRoom makes host the sole member of a new waiting room. Missing
// settings are taken from the configured defaults.
func (d *Directory) CreateRoom(host Player, settings Settings) (*Room, error) {
	settings = settings.withDefaults(d.opts.Defaults)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if settings.GradeFilter != 0 && host.Grade != settings.GradeFilter {
		return nil, newError(ErrGradeMismatch, "you cannot host a room for grade %d", settings.GradeFilter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	code, err := d.newCode()
	if err != nil {
		return nil, err
	}

	r := newRoom(code, host, settings, &d.opts, d.forget)
	d.rooms[code] = r
	d.order = append(d.order, r)
	d.byPlayer[host.ID] = code

	d.opts.Logf("GAMES: Created room %s for %q", code, host.Name)

	return r, nil
}

// newCode must be called with d.mu held.
func (d *Directory) newCode() (string, error) {
	buf := make([]byte, codeLength)

	for range codeMaxAttempts {
		if _, err := io.ReadFull(d.opts.Rand, buf); err != nil {
			return "", err
		}

		out := make([]byte, codeLength)
		for i := range out {
			out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(out)

		if _, exists := d.rooms[code]; !exists {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

func (d *Directory) JoinRoom(code string, p Player) (*Room, error) {
	r, err := d.Lookup(code)
	if err != nil {
		return nil, err
	}

	if err := r.Join(p); err != nil {
		return nil, err
	}

	d.track(p.ID, r.code)

	return r, nil
}

// FindQuickMatch joins the oldest waiting room for gradeFilter that will
// take the player, or creates one with default settings. The bool reports
// whether a room was created.
func (d *Directory) FindQuickMatch(p Player, gradeFilter int) (*Room, bool, error) {
	if gradeFilter == 0 {
		gradeFilter = p.Grade
	}

	d.mu.Lock()
	candidates := make([]*Room, 0, len(d.order))
	for _, r := range d.order {
		if r.settings.GradeFilter == gradeFilter {
			candidates = append(candidates, r)
		}
	}
	d.mu.Unlock()

	for _, r := range candidates {
		err := r.Join(p)
		if err == nil {
			d.track(p.ID, r.code)

			return r, false, nil
		}
		if errors.Is(err, ErrGradeMismatch) {
			return nil, false, err
		}
	}

	r, err := d.CreateRoom(p, Settings{GradeFilter: gradeFilter})
	if err != nil {
		return nil, false, err
	}

	return r, true, nil
}

// Leave removes a player from a room, deleting the room if it empties.
func (d *Directory) Leave(code, playerID string) error {
	r, err := d.Lookup(code)
	if err != nil {
		return err
	}

	err = r.Leave(playerID)

	d.mu.Lock()
	if d.byPlayer[playerID] == r.code {
		delete(d.byPlayer, playerID)
	}
	d.mu.Unlock()

	return err
}

func (d *Directory) Lookup(code string) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return r, nil
}

// RoomOf returns the room a player is currently in.
func (d *Directory) RoomOf(playerID string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code, ok := d.byPlayer[playerID]
	if !ok {
		return nil, false
	}

	r, ok := d.rooms[code]
	if !ok {
		delete(d.byPlayer, playerID)

		return nil, false
	}

	return r, true
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.rooms)
}

// SweepFinished drops finished rooms past their grace period and, when a
// lobby timeout is set, waiting rooms idle for longer than it.
func (d *Directory) SweepFinished(now time.Time) int {
	d.mu.Lock()
	rooms := slices.Clone(d.order)
	d.mu.Unlock()

	swept := 0
	for _, r := range rooms {
		if r.sweep(now) {
			swept++
		}
	}

	if swept > 0 {
		d.opts.Logf("GAMES: Swept %d rooms", swept)
	}

	return swept
}

// Reap sweeps on every tick until ctx is done.
func (d *Directory) Reap(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepTick
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.SweepFinished(d.opts.Clock.Now())
		}
	}
}

// Close stops every room.
func (d *Directory) Close() {
	d.mu.Lock()
	rooms := slices.Clone(d.order)
	d.mu.Unlock()

	for _, r := range rooms {
		r.Stop(ReasonShutdown)
	}
}

func (d *Directory) track(playerID, code string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.rooms[code]; ok {
		d.byPlayer[playerID] = code
	}
}

// forget runs on the room's goroutine when it removes itself.
func (d *Directory) forget(code string, r *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rooms[code] == r {
		delete(d.rooms, code)
	}

	d.order = slices.DeleteFunc(d.order, func(o *Room) bool { return o == r })

	for playerID, c := range d.byPlayer {
		if c == code {
			delete(d.byPlayer, playerID)
		}
	}
}
