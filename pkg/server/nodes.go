package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/medius/pkg/protocol"
)

type requestKind int

const (
	requestCreate requestKind = iota
	requestJoin
)

// pendingRequest remembers who asked for a routing operation so the
// node's answer can be delivered to them
type pendingRequest struct {
	kind      requestKind
	gameID    int32
	accountID int32
	messageID string
	client    *Client
	deadline  time.Time
	settled   bool // already answered with a failure
}

// settledKeep is how long an expired request id is remembered so a late
// answer to it does not reach the client a second time
const settledKeep = 10 * time.Minute

// RoutingNode is a DME server registered on the routing role
type RoutingNode struct {
	ID      int32
	AppID   int32 // 0 serves every title
	conn    *Conn
	address protocol.NetAddress

	mu                 sync.Mutex
	maxWorlds          int16
	maxPlayersPerWorld int16
	activeWorlds       int16
	totalPlayers       int16
	alertLevel         int32
	reserved           int
	pending            map[string]pendingRequest
	settled            map[string]time.Time
}

// Conn returns the node's connection
func (n *RoutingNode) Conn() *Conn {
	return n.conn
}

// Alive reports whether the node's connection is open
func (n *RoutingNode) Alive() bool {
	return n.conn != nil && n.conn.Alive()
}

// Address is where clients reach the node
func (n *RoutingNode) Address() protocol.NetAddress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.address
}

func (n *RoutingNode) setAddress(a protocol.NetAddress) {
	n.mu.Lock()
	n.address = a
	n.mu.Unlock()
}

// Load is the number of worlds on the node, counting reservations not yet
// reported
func (n *RoutingNode) Load() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return int(n.activeWorlds) + n.reserved
}

// OnServerReport records the node's load report
func (n *RoutingNode) OnServerReport(r *protocol.ServerReport) {
	n.mu.Lock()
	n.maxWorlds = r.MaxWorlds
	n.maxPlayersPerWorld = r.MaxPlayersPerWorld
	n.activeWorlds = r.ActiveWorldCount
	n.totalPlayers = r.TotalActivePlayers
	n.alertLevel = r.AlertLevel
	n.reserved = 0
	n.mu.Unlock()
}

// correlationID formats the message id sent to the node. It is cut to the
// width of the message id field.
func correlationID(gameID, accountID int32, messageID string) string {
	id := fmt.Sprintf("%d-%d-%s", gameID, accountID, messageID)
	if len(id) > protocol.MessageIDLen-1 {
		id = id[:protocol.MessageIDLen-1]
	}
	return id
}

// parseCorrelationID recovers the game and account of a node answer
func parseCorrelationID(id string) (gameID, accountID int32, messageID string, ok bool) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 2 {
		return 0, 0, "", false
	}
	g, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return 0, 0, "", false
	}
	a, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return 0, 0, "", false
	}
	if len(parts) == 3 {
		messageID = parts[2]
	}
	return int32(g), int32(a), messageID, true
}

func (n *RoutingNode) remember(kind requestKind, g *Game, c *Client, messageID string, deadline time.Time) string {
	id := correlationID(g.ID, c.AccountID(), messageID)
	n.mu.Lock()
	n.pending[id] = pendingRequest{
		kind:      kind,
		gameID:    g.ID,
		accountID: c.AccountID(),
		messageID: messageID,
		client:    c,
		deadline:  deadline,
	}
	if kind == requestCreate {
		n.reserved++
	}
	n.mu.Unlock()
	return id
}

// takePending returns and forgets the request answered by id. Unknown ids
// are parsed so answers that outlive a restart still route; those carry no
// client. Ids of requests already failed by expiry come back settled.
func (n *RoutingNode) takePending(id string) (pendingRequest, bool) {
	n.mu.Lock()
	p, ok := n.pending[id]
	delete(n.pending, id)
	_, settled := n.settled[id]
	delete(n.settled, id)
	n.mu.Unlock()
	if ok {
		return p, true
	}
	g, a, msg, ok := parseCorrelationID(id)
	return pendingRequest{gameID: g, accountID: a, messageID: msg, settled: settled}, ok
}

// expirePending removes the requests whose deadline passed and returns them
// for the caller to fail
func (n *RoutingNode) expirePending(now time.Time) []pendingRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []pendingRequest
	for id, p := range n.pending {
		if p.deadline.IsZero() || now.Before(p.deadline) {
			continue
		}
		delete(n.pending, id)
		n.settled[id] = now
		if p.kind == requestCreate && n.reserved > 0 {
			n.reserved--
		}
		out = append(out, p)
	}
	for id, at := range n.settled {
		if now.Sub(at) > settledKeep {
			delete(n.settled, id)
		}
	}
	return out
}

// drainPending removes every outstanding request. It is used when the node
// goes away.
func (n *RoutingNode) drainPending() []pendingRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]pendingRequest, 0, len(n.pending))
	for id, p := range n.pending {
		delete(n.pending, id)
		out = append(out, p)
	}
	n.reserved = 0
	return out
}

// Pending is the number of requests waiting for the node's answer
func (n *RoutingNode) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// RequestCreateGame asks the node to create a world for g on behalf of c.
// The request fails if no answer arrives by deadline.
func (n *RoutingNode) RequestCreateGame(g *Game, c *Client, messageID string, deadline time.Time) error {
	p := g.Params()
	return n.conn.SendApp(&protocol.ServerCreateGameWithAttributesRequest{
		MessageID:      n.remember(requestCreate, g, c, messageID, deadline),
		MediusWorldUID: uint32(g.ID),
		Attributes:     p.Attributes,
		ApplicationID:  g.AppID,
		MaxClients:     p.MaxPlayers,
	})
}

// RequestJoinGame asks the node to admit c into g's world
func (n *RoutingNode) RequestJoinGame(g *Game, c *Client, messageID string, deadline time.Time) error {
	return n.conn.SendApp(&protocol.ServerJoinGameRequest{
		MessageID: n.remember(requestJoin, g, c, messageID, deadline),
		ConnectInfo: protocol.NetConnectionInfo{
			Type:       protocol.NetConnectionClientServerTCP,
			WorldID:    g.DMEWorldID(),
			SessionKey: c.SessionKey,
			AccessKey:  c.AccessToken,
		},
	})
}

// EndWorld tells the node to drop world
func (n *RoutingNode) EndWorld(world int32) {
	if !n.Alive() {
		return
	}
	_ = n.conn.SendApp(&protocol.ServerEndGameRequest{
		MessageID: strconv.Itoa(int(world)),
		WorldID:   world,
	})
}

// NodeInfo is the admin view of a routing node
type NodeInfo struct {
	ID           int32  `json:"id"`
	AppID        int32  `json:"app_id"`
	Address      string `json:"address"`
	ActiveWorlds int16  `json:"active_worlds"`
	MaxWorlds    int16  `json:"max_worlds"`
	Players      int16  `json:"players"`
	AlertLevel   int32  `json:"alert_level"`
}

func (n *RoutingNode) Info() NodeInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NodeInfo{
		ID:           n.ID,
		AppID:        n.AppID,
		Address:      fmt.Sprintf("%s:%d", n.address.Address, n.address.Port),
		ActiveWorlds: n.activeWorlds,
		MaxWorlds:    n.maxWorlds,
		Players:      n.totalPlayers,
		AlertLevel:   n.alertLevel,
	}
}

// NodeRegistry tracks the routing nodes connected to this process
type NodeRegistry struct {
	mu     sync.RWMutex
	nodes  map[uint32]*RoutingNode // by connection id
	nextID atomic.Int32
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{nodes: make(map[uint32]*RoutingNode)}
}

// Register adds the node behind conn, or returns it if already known
func (r *NodeRegistry) Register(conn *Conn, appID int32, addr protocol.NetAddress) *RoutingNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[conn.ID]; ok {
		n.setAddress(addr)
		return n
	}
	n := &RoutingNode{
		ID:      r.nextID.Add(1),
		AppID:   appID,
		conn:    conn,
		address: addr,
		pending: make(map[string]pendingRequest),
		settled: make(map[string]time.Time),
	}
	r.nodes[conn.ID] = n
	return n
}

// ForConn returns the node registered on conn
func (r *NodeRegistry) ForConn(conn *Conn) (*RoutingNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[conn.ID]
	return n, ok
}

// Remove forgets the node on conn and returns it
func (r *NodeRegistry) Remove(conn *Conn) (*RoutingNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[conn.ID]
	delete(r.nodes, conn.ID)
	return n, ok
}

// Least returns the live node serving appID with the fewest worlds
func (r *NodeRegistry) Least(appID int32) (*RoutingNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *RoutingNode
	bestLoad := 0
	for _, n := range r.nodes {
		if !n.Alive() || (n.AppID != 0 && n.AppID != appID) {
			continue
		}
		load := n.Load()
		if best == nil || load < bestLoad || (load == bestLoad && n.ID < best.ID) {
			best, bestLoad = n, load
		}
	}
	return best, best != nil
}

// List returns every node ordered by id
func (r *NodeRegistry) List() []*RoutingNode {
	r.mu.RLock()
	out := make([]*RoutingNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
