package server

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aeolun/medius/pkg/protocol"
)

// Client is a player identity. It outlives the connection it logged in on
// so a hand-off to another role can re-bind it by access token.
type Client struct {
	SessionKey  string
	AccessToken string
	AppID       int32

	mu             sync.RWMutex
	accountID      int32
	accountName    string
	accountType    int32
	loggedIn       bool
	anonymous      bool
	loginTime      time.Time
	conn           *Conn
	channel        *Channel
	game           *Game
	dmeClientIndex int32
	keepAlive      bool
	deadline       time.Time
	machineID      string
	remoteIP       string
}

// newToken returns a random credential that fits the 17 byte key fields
func newToken() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[:protocol.SessionKeyLen-1]
}

func newClient(appID int32) *Client {
	return &Client{
		SessionKey:  newToken(),
		AccessToken: newToken(),
		AppID:       appID,
	}
}

func (c *Client) AccountID() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountID
}

func (c *Client) AccountName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountName
}

func (c *Client) AccountType() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountType
}

// IsLoggedIn reports whether an account (or anonymous login) is attached
func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedIn
}

// IsConnected reports whether the client currently has a live connection
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && conn.Alive()
}

// Conn returns the live connection, nil between connections
func (c *Client) Conn() *Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) CurrentChannel() *Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

func (c *Client) CurrentGame() *Game {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.game
}

func (c *Client) DMEClientIndex() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dmeClientIndex
}

func (c *Client) LoginTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loginTime
}

func (c *Client) RemoteIP() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteIP
}

func (c *Client) MachineID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.machineID
}

func (c *Client) setMachineID(id string) {
	c.mu.Lock()
	c.machineID = id
	c.mu.Unlock()
}

// login attaches an account. Anonymous logins use a negative id.
func (c *Client) login(accountID int32, name string, accountType int32, anonymous bool, now time.Time) {
	c.mu.Lock()
	c.accountID = accountID
	c.accountName = name
	c.accountType = accountType
	c.anonymous = anonymous
	c.loggedIn = true
	c.loginTime = now
	c.mu.Unlock()
}

func (c *Client) logout() {
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
}

// bind makes conn the client's live connection and cancels any pending
// keep-alive
func (c *Client) bind(conn *Conn) {
	c.mu.Lock()
	c.conn = conn
	c.keepAlive = false
	c.deadline = time.Time{}
	if conn != nil && conn.remote != nil {
		c.remoteIP = hostOf(conn.remote)
	}
	c.mu.Unlock()
}

// release drops conn if it is still the live connection. Without a pending
// keep-alive the client expires on the next reap.
func (c *Client) release(conn *Conn, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	if !c.keepAlive {
		c.deadline = now
	}
}

// KeepAliveUntilNextConnection lets the client survive its current
// connection closing until deadline
func (c *Client) KeepAliveUntilNextConnection(deadline time.Time) {
	c.mu.Lock()
	c.keepAlive = true
	c.deadline = deadline
	c.mu.Unlock()
}

// expired reports whether the client has no connection and its grace
// window has passed
func (c *Client) expired(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn != nil && c.conn.Alive() {
		return false
	}
	if c.conn == nil && c.deadline.IsZero() {
		// Created by a session begin whose connection has not bound yet
		return false
	}
	return !now.Before(c.deadline)
}

func (c *Client) setChannel(ch *Channel) {
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()
}

func (c *Client) setGame(g *Game, dmeClientIndex int32) {
	c.mu.Lock()
	c.game = g
	c.dmeClientIndex = dmeClientIndex
	c.mu.Unlock()
}

// JoinChannel moves the client into ch, leaving its previous channel
func (c *Client) JoinChannel(ch *Channel) {
	if prev := c.CurrentChannel(); prev != nil && prev != ch {
		prev.leave(c)
	}
	ch.join(c)
	c.setChannel(ch)
}

// LeaveChannel removes the client from ch if it is the current channel
func (c *Client) LeaveChannel(ch *Channel) {
	if ch == nil || c.CurrentChannel() != ch {
		return
	}
	ch.leave(c)
	c.setChannel(nil)
}

// JoinGame makes g the client's current game and adds it as a member
func (c *Client) JoinGame(g *Game, dmeClientIndex int32) {
	if prev := c.CurrentGame(); prev != nil && prev != g {
		c.LeaveGame(prev)
	}
	c.setGame(g, dmeClientIndex)
	g.AddMember(c)
}

// LeaveGame removes the client from g if it is the current game
func (c *Client) LeaveGame(g *Game) {
	if g == nil {
		return
	}
	if c.CurrentGame() == g {
		c.setGame(nil, 0)
	}
	g.RemoveMember(c)
}

func (c *Client) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.accountName != "" {
		return c.accountName
	}
	return c.SessionKey
}

// ClientInfo is the admin view of a client
type ClientInfo struct {
	AccountID   int32     `json:"account_id"`
	AccountName string    `json:"account_name"`
	AppID       int32     `json:"app_id"`
	LoggedIn    bool      `json:"logged_in"`
	Connected   bool      `json:"connected"`
	ChannelID   int32     `json:"channel_id,omitempty"`
	GameID      int32     `json:"game_id,omitempty"`
	LoginTime   time.Time `json:"login_time"`
	RemoteIP    string    `json:"remote_ip,omitempty"`
}

func (c *Client) Info() ClientInfo {
	info := ClientInfo{Connected: c.IsConnected()}
	c.mu.RLock()
	info.AccountID = c.accountID
	info.AccountName = c.accountName
	info.AppID = c.AppID
	info.LoggedIn = c.loggedIn
	info.LoginTime = c.loginTime
	info.RemoteIP = c.remoteIP
	ch, g := c.channel, c.game
	c.mu.RUnlock()
	if ch != nil {
		info.ChannelID = ch.ID
	}
	if g != nil {
		info.GameID = g.ID
	}
	return info
}
