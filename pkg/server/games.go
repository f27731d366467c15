package server

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeolun/medius/pkg/plugins"
)

// GameRegistry is the process-wide directory of games. Ids come from a
// counter owned by the registry.
type GameRegistry struct {
	mu     sync.RWMutex
	games  map[int32]*Game
	nextID atomic.Int32
	events EventSink
	log    zerolog.Logger
}

func NewGameRegistry(events EventSink, logger zerolog.Logger) *GameRegistry {
	if events == nil {
		events = nopSink{}
	}
	return &GameRegistry{
		games:  make(map[int32]*Game),
		events: events,
		log:    logger,
	}
}

// Create allocates an id, registers the game with ch and records host as
// its host. The name must be free among the channel's live games.
func (r *GameRegistry) Create(host *Client, p GameParams, ch *Channel, node *RoutingNode, timeout time.Duration, now time.Time) (*Game, error) {
	g := newGame(r.nextID.Add(1), host, p, ch, node, timeout, now)
	if ch != nil {
		if g.AppID == 0 {
			g.AppID = ch.AppID
		}
		if err := ch.RegisterGame(g); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.games[g.ID] = g
	r.mu.Unlock()

	r.log.Info().
		Int32("game", g.ID).
		Str("name", p.Name).
		Stringer("host", host).
		Msg("game created")
	return g, nil
}

func (r *GameRegistry) Get(id int32) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// ByDMEWorld finds the game node hosts as world
func (r *GameRegistry) ByDMEWorld(node *RoutingNode, world int32) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.games {
		if g.Node == node && g.DMEWorldID() == world {
			return g, true
		}
	}
	return nil, false
}

// List returns every game ordered by id
func (r *GameRegistry) List() []*Game {
	r.mu.RLock()
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered games
func (r *GameRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// EndGame tears g down and removes it. A name it held is free as soon as
// this returns.
func (r *GameRegistry) EndGame(g *Game) {
	g.teardown()

	r.mu.Lock()
	_, ok := r.games[g.ID]
	delete(r.games, g.ID)
	r.mu.Unlock()
	if !ok {
		return
	}

	r.log.Info().Int32("game", g.ID).Str("name", g.Name()).Msg("game ended")
	r.events.Emit(context.Background(), plugins.Event{
		Type:     plugins.EventGameEnded,
		Source:   "games",
		AppID:    g.AppID,
		GameID:   g.ID,
		GameName: g.Name(),
	})
}

// Tick runs every game's tick and destroys those ready to be reaped. It
// returns the reaped games.
func (r *GameRegistry) Tick(now time.Time) []*Game {
	var reaped []*Game
	for _, g := range r.List() {
		g.Tick(now)
		if g.ReadyToDestroy(now) {
			r.EndGame(g)
			reaped = append(reaped, g)
		}
	}
	return reaped
}
