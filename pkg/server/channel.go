package server

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrGameNameExists is returned when a live game in the channel already
// uses the name
var ErrGameNameExists = errors.New("game name already exists in channel")

// ChannelType distinguishes lobby channels from per-game chat channels
type ChannelType int

const (
	ChannelLobby ChannelType = iota
	ChannelGame
)

func (t ChannelType) String() string {
	if t == ChannelGame {
		return "game"
	}
	return "lobby"
}

// Channel groups the clients and games of one lobby of a title
type Channel struct {
	ID         int32
	AppID      int32
	Name       string
	Type       ChannelType
	MaxPlayers int32

	mu      sync.RWMutex
	members map[*Client]struct{}
	games   map[int32]*Game
}

func newChannel(id, appID int32, name string, typ ChannelType) *Channel {
	return &Channel{
		ID:         id,
		AppID:      appID,
		Name:       name,
		Type:       typ,
		MaxPlayers: 256,
		members:    make(map[*Client]struct{}),
		games:      make(map[int32]*Game),
	}
}

func (ch *Channel) join(c *Client) {
	ch.mu.Lock()
	ch.members[c] = struct{}{}
	ch.mu.Unlock()
}

func (ch *Channel) leave(c *Client) {
	ch.mu.Lock()
	delete(ch.members, c)
	ch.mu.Unlock()
}

// PlayerCount counts members that are still connected
func (ch *Channel) PlayerCount() int32 {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	var n int32
	for c := range ch.members {
		if c.IsConnected() {
			n++
		}
	}
	return n
}

// RegisterGame adds g to the channel. Names are unique, ignoring case,
// among games that are not closed.
func (ch *Channel) RegisterGame(g *Game) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, other := range ch.games {
		if other != g && strings.EqualFold(other.Name(), g.Name()) && !other.Closed() {
			return ErrGameNameExists
		}
	}
	ch.games[g.ID] = g
	return nil
}

// UnregisterGame removes g from the channel
func (ch *Channel) UnregisterGame(g *Game) {
	ch.mu.Lock()
	delete(ch.games, g.ID)
	ch.mu.Unlock()
}

// NameTaken reports whether a live game in the channel is named name
func (ch *Channel) NameTaken(name string) bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for _, g := range ch.games {
		if strings.EqualFold(g.Name(), name) && !g.Closed() {
			return true
		}
	}
	return false
}

// Games returns the registered games ordered by id
func (ch *Channel) Games() []*Game {
	ch.mu.RLock()
	out := make([]*Game, 0, len(ch.games))
	for _, g := range ch.games {
		out = append(out, g)
	}
	ch.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChannelInfo is the admin view of a channel
type ChannelInfo struct {
	ID          int32  `json:"id"`
	AppID       int32  `json:"app_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	PlayerCount int32  `json:"player_count"`
	GameCount   int    `json:"game_count"`
}

func (ch *Channel) Info() ChannelInfo {
	ch.mu.RLock()
	games := len(ch.games)
	ch.mu.RUnlock()
	return ChannelInfo{
		ID:          ch.ID,
		AppID:       ch.AppID,
		Name:        ch.Name,
		Type:        ch.Type.String(),
		PlayerCount: ch.PlayerCount(),
		GameCount:   games,
	}
}

// ChannelRegistry is the create-once directory of channels
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[int32]*Channel
	lobbies  map[int32]*Channel // default lobby per app id
	nextID   atomic.Int32
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		channels: make(map[int32]*Channel),
		lobbies:  make(map[int32]*Channel),
	}
}

// DefaultLobby returns the app's default lobby, creating it named name on
// first use
func (r *ChannelRegistry) DefaultLobby(appID int32, name string) *Channel {
	r.mu.RLock()
	ch, ok := r.lobbies[appID]
	r.mu.RUnlock()
	if ok {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.lobbies[appID]; ok {
		return ch
	}
	ch = newChannel(r.nextID.Add(1), appID, name, ChannelLobby)
	r.channels[ch.ID] = ch
	r.lobbies[appID] = ch
	return ch
}

// Create adds a new channel
func (r *ChannelRegistry) Create(appID int32, name string, typ ChannelType) *Channel {
	ch := newChannel(r.nextID.Add(1), appID, name, typ)
	r.mu.Lock()
	r.channels[ch.ID] = ch
	r.mu.Unlock()
	return ch
}

func (r *ChannelRegistry) Get(id int32) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// ForApp returns the lobby channels of appID ordered by id
func (r *ChannelRegistry) ForApp(appID int32) []*Channel {
	r.mu.RLock()
	var out []*Channel
	for _, ch := range r.channels {
		if ch.AppID == appID && ch.Type == ChannelLobby {
			out = append(out, ch)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns every channel ordered by id
func (r *ChannelRegistry) List() []*Channel {
	r.mu.RLock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
