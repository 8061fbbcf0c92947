package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/game"
	"github.com/lox/blankcards/internal/gameid"
	"github.com/lox/blankcards/internal/randutil"
)

// Notifier is told about every committed change. Calls for one room may
// arrive out of order; Version orders the snapshots.
type Notifier interface {
	RoomUpdated(room *game.Room)
	RoomClosed(roomID string)
}

// errUnchanged ends a transaction without committing.
var errUnchanged = errors.New("unchanged")

// Dispatcher applies player actions to rooms as optimistic transactions:
// load the committed snapshot, clone it, run the action on the clone, and
// compare-and-swap it in. A lost race retries against the newer snapshot; a
// rule violation returns the typed game error and the clone is dropped.
type Dispatcher struct {
	registry  *Registry
	catalog   *deck.Catalog
	defaults  game.Config
	clock     quartz.Clock
	logger    *log.Logger
	notifier  Notifier
	newSource func() randutil.Source
	roomIDs   *gameid.Generator
	playerIDs *gameid.Generator

	commits   atomic.Uint64
	conflicts atomic.Uint64
	aborts    atomic.Uint64
	created   atomic.Uint64
	destroyed atomic.Uint64
}

// New creates a dispatcher over registry dealing cards from catalog.
func New(registry *Registry, catalog *deck.Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		catalog:   catalog,
		defaults:  game.DefaultConfig(),
		clock:     quartz.NewReal(),
		logger:    defaultLogger(),
		newSource: func() randutil.Source { return randutil.Seeded() },
		roomIDs:   gameid.Rooms(),
		playerIDs: gameid.Players(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher writes to.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// CreateRoom registers an empty room in the Lobby and returns its id.
func (d *Dispatcher) CreateRoom(name string, opts ...RoomOption) (string, error) {
	cfg := d.defaults
	for _, opt := range opts {
		opt(&cfg)
	}

	id := d.roomIDs.Generate()
	room, err := game.NewRoom(id, name, cfg, d.catalog, d.newSource(), d.clock)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if !d.registry.insert(room) {
		return "", fmt.Errorf("create room: id %s already registered", id)
	}

	d.created.Add(1)
	d.logger.Info("Room created", "room", id, "name", room.Name(), "config", cfg)
	d.notifyUpdated(room)
	return id, nil
}

// JoinRoom adds a player and returns their new id and view of the room.
func (d *Dispatcher) JoinRoom(roomID, name string) (string, game.View, error) {
	playerID := d.playerIDs.Generate()
	room, err := d.update(roomID, "join", func(r *game.Room) error {
		_, err := r.Join(playerID, name)
		return err
	})
	if err != nil {
		return "", game.View{}, err
	}
	d.logger.Info("Player joined", "room", roomID, "player", playerID, "name", name)
	return playerID, room.View(playerID), nil
}

// LeaveRoom removes a player. Leaving twice is not an error; the room is
// destroyed when its last player leaves.
func (d *Dispatcher) LeaveRoom(roomID, playerID string) error {
	_, err := d.update(roomID, "leave", func(r *game.Room) error {
		left, err := r.Leave(playerID)
		if err != nil {
			return err
		}
		if !left {
			return errUnchanged
		}
		return nil
	})
	return err
}

// StartGame deals hands and the first prompt.
func (d *Dispatcher) StartGame(roomID, playerID string) error {
	_, err := d.update(roomID, "start", func(r *game.Room) error {
		return r.Start(playerID)
	})
	return err
}

// SubmitCards records a player's answer for the current round.
func (d *Dispatcher) SubmitCards(roomID, playerID string, cardIDs ...string) error {
	_, err := d.update(roomID, "submit", func(r *game.Room) error {
		return r.Submit(playerID, cardIDs...)
	})
	return err
}

// PickWinner awards the round and returns the scores after it.
func (d *Dispatcher) PickWinner(roomID, judgeID, winnerID string) (map[string]int, error) {
	var scores map[string]int
	_, err := d.update(roomID, "pick", func(r *game.Room) error {
		var err error
		scores, err = r.PickWinner(judgeID, winnerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// RoomState returns the committed state of a room as seen by viewerID.
func (d *Dispatcher) RoomState(roomID, viewerID string) (game.View, error) {
	room, ok := d.registry.Room(roomID)
	if !ok {
		return game.View{}, fmt.Errorf("state %s: %w", roomID, game.ErrRoomNotFound)
	}
	return room.View(viewerID), nil
}

// ListRooms summarizes every open room, oldest first.
func (d *Dispatcher) ListRooms() []game.Summary {
	rooms := d.registry.Rooms()
	summaries := make([]game.Summary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, r.Summary())
	}
	return summaries
}

// update runs one transaction against a room.
func (d *Dispatcher) update(roomID, action string, fn func(*game.Room) error) (*game.Room, error) {
	c, ok := d.registry.cell(roomID)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", action, roomID, game.ErrRoomNotFound)
	}

	for attempt := 0; ; attempt++ {
		current := c.room.Load()
		if current.Closed() {
			return nil, fmt.Errorf("%s %s: %w", action, roomID, game.ErrRoomNotFound)
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, errUnchanged) {
				return current, nil
			}
			d.aborts.Add(1)
			return nil, fmt.Errorf("%s %s: %w", action, roomID, err)
		}

		if !c.room.CompareAndSwap(current, next) {
			d.conflicts.Add(1)
			d.logger.Debug("Commit conflict", "room", roomID, "action", action, "attempt", attempt+1)
			continue
		}

		d.commits.Add(1)
		d.logger.Debug("Committed", "room", roomID, "action", action, "version", next.Version(), "phase", next.Phase())

		if next.Closed() {
			d.destroy(roomID, c)
		} else {
			d.notifyUpdated(next)
		}
		return next, nil
	}
}

func (d *Dispatcher) destroy(roomID string, c *cell) {
	if !d.registry.remove(roomID, c) {
		return
	}
	d.destroyed.Add(1)
	d.logger.Info("Room destroyed", "room", roomID)
	if d.notifier != nil {
		d.notifier.RoomClosed(roomID)
	}
}

func (d *Dispatcher) notifyUpdated(room *game.Room) {
	if d.notifier != nil {
		d.notifier.RoomUpdated(room)
	}
}

// Stats counts transactions since the dispatcher was created.
type Stats struct {
	Rooms          int    `json:"rooms"`
	RoomsCreated   uint64 `json:"roomsCreated"`
	RoomsDestroyed uint64 `json:"roomsDestroyed"`
	Commits        uint64 `json:"commits"`
	Conflicts      uint64 `json:"conflicts"`
	Aborts         uint64 `json:"aborts"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Rooms:          d.registry.Len(),
		RoomsCreated:   d.created.Load(),
		RoomsDestroyed: d.destroyed.Load(),
		Commits:        d.commits.Load(),
		Conflicts:      d.conflicts.Load(),
		Aborts:         d.aborts.Load(),
	}
}

// Close removes every room.
func (d *Dispatcher) Close() {
	n := d.registry.Len()
	d.registry.Clear()
	d.logger.Info("Dispatcher closed", "rooms", n)
}
