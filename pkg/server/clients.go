package server

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type accountKey struct {
	appID     int32
	accountID int32
}

// ClientRegistry is the canonical directory of player identities, indexed
// by session key, access token and account
type ClientRegistry struct {
	mu         sync.RWMutex
	bySession  map[string]*Client
	byToken    map[string]*Client
	byAccount  map[accountKey]*Client
	nextAnonID atomic.Int32
	keepAlive  time.Duration
}

// NewClientRegistry creates an empty registry. keepAlive is the grace a
// client gets when asked to survive until its next connection.
func NewClientRegistry(keepAlive time.Duration) *ClientRegistry {
	return &ClientRegistry{
		bySession: make(map[string]*Client),
		byToken:   make(map[string]*Client),
		byAccount: make(map[accountKey]*Client),
		keepAlive: keepAlive,
	}
}

// KeepAliveGrace returns the hand-off grace window
func (r *ClientRegistry) KeepAliveGrace() time.Duration {
	return r.keepAlive
}

// Create registers a fresh, not yet logged in client
func (r *ClientRegistry) Create(appID int32) *Client {
	c := newClient(appID)
	r.mu.Lock()
	r.bySession[c.SessionKey] = c
	r.byToken[c.AccessToken] = c
	r.mu.Unlock()
	return c
}

func (r *ClientRegistry) BySessionKey(key string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.bySession[key]
	return c, ok
}

func (r *ClientRegistry) ByAccessToken(token string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byToken[token]
	return c, ok
}

func (r *ClientRegistry) ByAccount(appID, accountID int32) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byAccount[accountKey{appID, accountID}]
	return c, ok
}

// Login attaches an account to c and indexes it. It returns false when
// another live client already holds the account.
func (r *ClientRegistry) Login(c *Client, accountID int32, name string, accountType int32, now time.Time) bool {
	key := accountKey{c.AppID, accountID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.byAccount[key]; ok && other != c && other.IsLoggedIn() {
		return false
	}
	c.login(accountID, name, accountType, false, now)
	r.byAccount[key] = c
	return true
}

// LoginAnonymous attaches a display name and a negative account id
func (r *ClientRegistry) LoginAnonymous(c *Client, name string, now time.Time) int32 {
	id := -r.nextAnonID.Add(1)
	r.mu.Lock()
	c.login(id, name, 0, true, now)
	r.byAccount[accountKey{c.AppID, id}] = c
	r.mu.Unlock()
	return id
}

// Remove drops every index of c
func (r *ClientRegistry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bySession[c.SessionKey] == c {
		delete(r.bySession, c.SessionKey)
	}
	if r.byToken[c.AccessToken] == c {
		delete(r.byToken, c.AccessToken)
	}
	key := accountKey{c.AppID, c.AccountID()}
	if r.byAccount[key] == c {
		delete(r.byAccount, key)
	}
}

// Expired removes and returns the clients whose connection is gone and
// whose keep-alive window has passed
func (r *ClientRegistry) Expired(now time.Time) []*Client {
	r.mu.RLock()
	var gone []*Client
	for _, c := range r.bySession {
		if c.expired(now) {
			gone = append(gone, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range gone {
		r.Remove(c)
	}
	return gone
}

// List returns every client ordered by account id
func (r *ClientRegistry) List() []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.bySession))
	for _, c := range r.bySession {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID() < out[j].AccountID() })
	return out
}

// Count returns the number of registered clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession)
}
