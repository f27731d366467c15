package server

import (
	"sync"
	"time"

	"github.com/aeolun/medius/pkg/protocol"
)

// reapGrace is how long a closed, empty game lingers so a host restarting
// with the same name does not race the teardown
const reapGrace = time.Second

// GameParams are the creation parameters of a game
type GameParams struct {
	Name              string
	Password          string
	SpectatorPassword string
	MinPlayers        int32
	MaxPlayers        int32
	GameLevel         int32
	PlayerSkillLevel  int32
	RulesSet          int32
	Attributes        int32
	GenericFields     protocol.GenericFields
	HostType          protocol.GameHostType
}

// WorldReport is the routing side's view of a running game
type WorldReport struct {
	WorldID          int32
	Name             string
	Stats            []byte
	MinPlayers       int32
	MaxPlayers       int32
	GameLevel        int32
	PlayerSkillLevel int32
	RulesSet         int32
	GenericFields    protocol.GenericFields
	Status           protocol.WorldStatus
}

type member struct {
	client *Client
	inGame bool
}

// Game is one match. Its member list is guarded by mu; registries and
// channels never hold their own lock while calling into a game that then
// calls back into them.
type Game struct {
	ID      int32
	AppID   int32
	Channel *Channel
	Node    *RoutingNode
	Created time.Time

	mu         sync.Mutex
	params     GameParams
	stats      []byte
	status     protocol.WorldStatus
	members    []*member
	host       *Client
	hostJoined bool
	emptySince time.Time
	dmeWorldID int32
	hasWorld   bool
	owner      *Conn // routing connection of a peer host
	addresses  protocol.NetAddressList
	timeout    time.Duration
	ended      bool
}

func newGame(id int32, host *Client, p GameParams, ch *Channel, node *RoutingNode, timeout time.Duration, now time.Time) *Game {
	g := &Game{
		ID:      id,
		Channel: ch,
		Node:    node,
		Created: now,
		params:  p,
		status:  protocol.WorldPendingCreation,
		host:    host,
		timeout: timeout,
	}
	if host != nil {
		g.AppID = host.AppID
	}
	return g
}

func (g *Game) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.Name
}

func (g *Game) Params() GameParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params
}

func (g *Game) Status() protocol.WorldStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Closed reports whether the game reached its terminal status
func (g *Game) Closed() bool {
	return g.Status() == protocol.WorldClosed
}

func (g *Game) Host() *Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.host
}

func (g *Game) HostJoined() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hostJoined
}

func (g *Game) DMEWorldID() int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dmeWorldID
}

// SetDMEWorldID records the world the routing node created for the game
// and marks it active
func (g *Game) SetDMEWorldID(id int32) {
	g.mu.Lock()
	g.dmeWorldID = id
	g.hasWorld = true
	if g.status == protocol.WorldPendingCreation {
		g.status = protocol.WorldActive
	}
	g.mu.Unlock()
}

func (g *Game) Addresses() protocol.NetAddressList {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addresses
}

func (g *Game) setAddresses(l protocol.NetAddressList) {
	g.mu.Lock()
	g.addresses = l
	g.mu.Unlock()
}

func (g *Game) setOwner(c *Conn) {
	g.mu.Lock()
	g.owner = c
	g.mu.Unlock()
}

// OwnedBy reports whether c is the routing connection that registered the
// game on its own machine
func (g *Game) OwnedBy(c *Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner != nil && g.owner == c
}

func (g *Game) Stats() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]byte(nil), g.stats...)
}

// PlayerCount counts members whose identity is connected. It is never
// cached.
func (g *Game) PlayerCount() int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int32
	for _, m := range g.members {
		if m.client != nil && m.client.IsConnected() {
			n++
		}
	}
	return n
}

// Members returns the clients on the member list
func (g *Game) Members() []*Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Client, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m.client)
	}
	return out
}

// InGameCount counts members the routing layer reported as connected
func (g *Game) InGameCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, m := range g.members {
		if m.inGame {
			n++
		}
	}
	return n
}

// CheckPassword reports whether password admits a player
func (g *Game) CheckPassword(password string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params.Password == "" || g.params.Password == password
}

// AddMember adds c once
func (g *Game) AddMember(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m.client == c {
			return
		}
	}
	g.members = append(g.members, &member{client: c})
}

// RemoveMember drops c, clearing the host if it was c
func (g *Game) RemoveMember(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.host == c {
		g.host = nil
	}
	kept := g.members[:0]
	for _, m := range g.members {
		if m.client != c {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(g.members); i++ {
		g.members[i] = nil
	}
	g.members = kept
}

// Tick prunes members that disconnected or moved to another game. Once
// nobody is in game it starts the reap grace if the game was ended, the
// host has been in at least once, or the creation timeout passed.
func (g *Game) Tick(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := make([]*member, 0, len(g.members))
	for _, m := range g.members {
		if m.client == nil || !m.client.IsConnected() || m.client.CurrentGame() != g {
			continue
		}
		kept = append(kept, m)
	}
	g.members = kept

	if !g.emptySince.IsZero() {
		return
	}
	for _, m := range g.members {
		if m.inGame {
			return
		}
	}
	if g.status == protocol.WorldClosed || g.hostJoined || now.Sub(g.Created) > g.timeout {
		g.emptySince = now
		g.status = protocol.WorldClosed
	}
}

// ReadyToDestroy reports whether the game is closed and has been empty for
// longer than the reap grace
func (g *Game) ReadyToDestroy(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status == protocol.WorldClosed && !g.emptySince.IsZero() && now.Sub(g.emptySince) > reapGrace
}

// OnConnectNotification applies a routing-side connect or disconnect of
// the member holding sessionKey. It returns the member and whether it
// left.
func (g *Game) OnConnectNotification(sessionKey string, event protocol.ConnectEventType) (*Client, bool) {
	g.mu.Lock()
	var found *member
	for _, m := range g.members {
		if m.client != nil && m.client.SessionKey == sessionKey {
			found = m
			break
		}
	}
	if found == nil {
		g.mu.Unlock()
		return nil, false
	}

	switch event {
	case protocol.EventClientConnect:
		found.inGame = true
		if found.client == g.host {
			g.hostJoined = true
		}
		g.mu.Unlock()
		return found.client, false
	case protocol.EventClientDisconnect:
		found.inGame = false
		g.mu.Unlock()
		g.playerLeft(found.client)
		return found.client, true
	}
	g.mu.Unlock()
	return found.client, false
}

// playerLeft runs the explicit leave path for c
func (g *Game) playerLeft(c *Client) {
	c.LeaveGame(g)
	c.LeaveChannel(g.Channel)
}

// OnWorldReport copies the routing side's descriptive fields. A closed game
// stays closed: a host restarting a match ends the game before the other
// members' routing nodes stop reporting it active.
func (g *Game) OnWorldReport(r WorldReport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.WorldID != g.ID {
		return
	}

	g.params.Name = r.Name
	g.params.MinPlayers = r.MinPlayers
	g.params.MaxPlayers = r.MaxPlayers
	g.params.GameLevel = r.GameLevel
	g.params.PlayerSkillLevel = r.PlayerSkillLevel
	g.params.RulesSet = r.RulesSet
	g.params.GenericFields = r.GenericFields
	if r.Stats != nil {
		g.stats = append([]byte(nil), r.Stats...)
	}

	if g.status != protocol.WorldClosed {
		g.status = r.Status
	}
}

// End forces the game closed. Members drain and the reaper collects it.
func (g *Game) End() {
	g.mu.Lock()
	g.status = protocol.WorldClosed
	g.mu.Unlock()
}

// teardown removes every member, unregisters from the channel and tells
// the routing node to drop its world. It runs once.
func (g *Game) teardown() {
	g.mu.Lock()
	if g.ended {
		g.mu.Unlock()
		return
	}
	g.ended = true
	g.status = protocol.WorldClosed
	members := make([]*Client, 0, len(g.members))
	for _, m := range g.members {
		if m.client != nil {
			members = append(members, m.client)
		}
	}
	g.members = nil
	world, hasWorld := g.dmeWorldID, g.hasWorld
	g.mu.Unlock()

	for _, c := range members {
		c.LeaveGame(g)
		c.LeaveChannel(g.Channel)
	}
	if g.Channel != nil {
		g.Channel.UnregisterGame(g)
	}
	if g.Node != nil && hasWorld {
		g.Node.EndWorld(world)
	}
}

// GameInfo is the admin and list view of a game
type GameInfo struct {
	ID          int32  `json:"id"`
	AppID       int32  `json:"app_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	HostType    int32  `json:"host_type"`
	PlayerCount int32  `json:"player_count"`
	MaxPlayers  int32  `json:"max_players"`
	ChannelID   int32  `json:"channel_id"`
	DMEWorldID  int32  `json:"dme_world_id"`
	HostJoined  bool   `json:"host_joined"`
	Host        string `json:"host,omitempty"`
}

func (g *Game) Info() GameInfo {
	count := g.PlayerCount()
	g.mu.Lock()
	defer g.mu.Unlock()
	info := GameInfo{
		ID:          g.ID,
		AppID:       g.AppID,
		Name:        g.params.Name,
		Status:      g.status.String(),
		HostType:    int32(g.params.HostType),
		PlayerCount: count,
		MaxPlayers:  g.params.MaxPlayers,
		DMEWorldID:  g.dmeWorldID,
		HostJoined:  g.hostJoined,
	}
	if g.Channel != nil {
		info.ChannelID = g.Channel.ID
	}
	if g.host != nil {
		info.Host = g.host.String()
	}
	return info
}
