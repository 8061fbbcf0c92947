// Package engine runs game rooms concurrently. Each room lives in a cell
// holding an atomic pointer to an immutable game.Room snapshot; actions are
// applied to a clone and published with compare-and-swap, so rooms never
// block each other and readers never take a lock.
package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lox/blankcards/internal/game"
)

// cell holds the committed snapshot of one room.
type cell struct {
	room atomic.Pointer[game.Room]
}

// Registry maps room ids to room cells. Creating and destroying rooms are
// its only structural changes. It is created once per process and passed to
// the Dispatcher.
type Registry struct {
	rooms sync.Map // map[string]*cell
	count atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Room returns the committed snapshot of a room. The snapshot must not be
// modified, and must not be used as the basis of a write.
func (r *Registry) Room(id string) (*game.Room, bool) {
	c, ok := r.cell(id)
	if !ok {
		return nil, false
	}
	room := c.room.Load()
	if room == nil || room.Closed() {
		return nil, false
	}
	return room, true
}

func (r *Registry) cell(id string) (*cell, bool) {
	v, ok := r.rooms.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*cell), true
}

// insert registers a new room, reporting false if the id is taken.
func (r *Registry) insert(room *game.Room) bool {
	c := &cell{}
	c.room.Store(room)
	if _, loaded := r.rooms.LoadOrStore(room.ID(), c); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// remove deletes the cell if it is still registered under id.
func (r *Registry) remove(id string, c *cell) bool {
	if r.rooms.CompareAndDelete(id, c) {
		r.count.Add(-1)
		return true
	}
	return false
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Rooms returns a snapshot of every open room, oldest first.
func (r *Registry) Rooms() []*game.Room {
	var rooms []*game.Room
	r.rooms.Range(func(_, v any) bool {
		if room := v.(*cell).room.Load(); room != nil && !room.Closed() {
			rooms = append(rooms, room)
		}
		return true
	})
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt().Equal(rooms[j].CreatedAt()) {
			return rooms[i].ID() < rooms[j].ID()
		}
		return rooms[i].CreatedAt().Before(rooms[j].CreatedAt())
	})
	return rooms
}

// Clear removes every room. It is used at shutdown.
func (r *Registry) Clear() {
	r.rooms.Range(func(k, v any) bool {
		r.remove(k.(string), v.(*cell))
		return true
	})
}
