package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/aeolun/medius/pkg/cipher"
	"github.com/aeolun/medius/pkg/plugins"
)

// Role is one of the server roles a connection can land on
type Role string

const (
	RoleAuth     Role = "auth"
	RoleLobby    Role = "lobby"
	RoleRouting  Role = "routing"
	RoleUniverse Role = "universe"
)

// Roles lists every role in start order
var Roles = []Role{RoleUniverse, RoleAuth, RoleLobby, RoleRouting}

func (r Role) String() string { return string(r) }

// ParseRole maps a name to its role
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Server hosts the four roles in one process. They share the client,
// channel, game and routing-node registries.
type Server struct {
	cfg       ServerConfig
	apps      *AppTable
	rsa       *cipher.RSAKey
	accounts  AccountStore
	events    EventSink
	filter    TextFilter
	metrics   *Metrics
	registry  *prometheus.Registry
	log       zerolog.Logger
	now       func() time.Time
	startTime time.Time

	clients  *ClientRegistry
	channels *ChannelRegistry
	games    *GameRegistry
	nodes    *NodeRegistry

	roles      map[Role]*RoleServer
	dispatcher *Dispatcher
	connIDs    atomic.Uint32
	admin      *http.Server

	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithAccountStore sets the account collaborator. Without one every
// account lookup answers DBError.
func WithAccountStore(store AccountStore) Option {
	return func(s *Server) { s.accounts = store }
}

// WithEventSink sets the lifecycle hook receiver
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.events = sink }
}

// WithTextFilter replaces the per-title word filter
func WithTextFilter(f TextFilter) Option {
	return func(s *Server) { s.filter = f }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// WithClock sets the time source of accepts and processing turns
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRSAKey sets the handshake key, overriding the configured one
func WithRSAKey(key *cipher.RSAKey) Option {
	return func(s *Server) { s.rsa = key }
}

// NewServer creates a server. Listeners open on Start.
func NewServer(cfg ServerConfig, apps *AppTable, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		apps:     apps,
		filter:   apps,
		events:   nopSink{},
		log:      zerolog.Nop(),
		now:      time.Now,
		registry: prometheus.NewRegistry(),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.rsa == nil && cfg.EncryptionEnabled {
		var err error
		if cfg.RSAModulus != "" {
			s.rsa, err = cipher.NewRSAKey(cfg.RSAModulus, cfg.RSAPrivate)
		} else {
			s.rsa, err = cipher.GenerateRSAKey(rand.Reader)
			s.log.Info().Msg("generated an ephemeral handshake key")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load RSA key: %w", err)
		}
	}

	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = NewMetrics(s.registry)
	s.startTime = s.now()

	s.clients = NewClientRegistry(cfg.KeepAliveGrace)
	s.channels = NewChannelRegistry()
	s.games = NewGameRegistry(s.events, s.log.With().Str("component", "games").Logger())
	s.nodes = NewNodeRegistry()
	s.dispatcher = NewDispatcher(cfg.Workers)

	s.roles = map[Role]*RoleServer{
		RoleAuth:     newRoleServer(s, RoleAuth, &authRole{srv: s}),
		RoleLobby:    newRoleServer(s, RoleLobby, &lobbyRole{authRole{srv: s}}),
		RoleRouting:  newRoleServer(s, RoleRouting, &routingRole{srv: s}),
		RoleUniverse: newRoleServer(s, RoleUniverse, &universeRole{srv: s}),
	}
	for _, id := range apps.IDs() {
		app, _ := apps.Lookup(id)
		s.channels.DefaultLobby(id, app.DefaultLobbyName)
	}
	return s, nil
}

// Start opens the listeners of every role with a port and starts the
// processing loop
func (s *Server) Start() error {
	for _, role := range Roles {
		r := s.roles[role]
		if r.section.Port <= 0 {
			s.log.Info().Str("role", string(role)).Msg("role disabled")
			continue
		}
		if err := r.Start(); err != nil {
			s.Stop()
			return fmt.Errorf("failed to start %s: %w", role, err)
		}
	}

	s.dispatcher.Start()

	s.wg.Add(1)
	go s.tickLoop()

	s.wg.Add(1)
	go s.monitorListenOverflows()

	if s.cfg.AdminPort > 0 {
		if err := s.startAdmin(); err != nil {
			s.Stop()
			return fmt.Errorf("failed to start admin API: %w", err)
		}
	}
	return nil
}

func (s *Server) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Tick runs one processing turn on every connection, then the game and
// client reapers
func (s *Server) Tick(now time.Time) {
	start := time.Now()

	var conns []*Conn
	for _, role := range Roles {
		rc := s.roles[role].Conns()
		s.metrics.RecordActiveConnections(role, len(rc))
		conns = append(conns, rc...)
	}
	s.dispatcher.Run(conns, now)
	s.expireRouting(now)

	for _, g := range s.games.Tick(now) {
		s.metrics.RecordGameReaped()
		s.log.Debug().Int32("game", g.ID).Msg("game reaped")
	}

	for _, cl := range s.clients.Expired(now) {
		s.expireClient(cl)
	}

	s.metrics.RecordGamesActive(s.games.Count())
	s.metrics.RecordTickDuration(time.Since(start).Seconds())
}

// expireClient logs out a client whose keep-alive ran out
func (s *Server) expireClient(cl *Client) {
	if g := cl.CurrentGame(); g != nil {
		cl.LeaveGame(g)
	}
	if ch := cl.CurrentChannel(); ch != nil {
		cl.LeaveChannel(ch)
	}
	wasLoggedIn := cl.IsLoggedIn()
	cl.logout()
	s.log.Debug().Str("client", cl.String()).Msg("client expired")
	if wasLoggedIn {
		s.emit(plugins.EventPlayerLoggedOut, "server", cl, nil)
	}
}

// Stop closes every listener and connection, releases them and waits for
// the background goroutines
func (s *Server) Stop() error {
	var result *multierror.Error
	s.stopOnce.Do(func() {
		close(s.shutdown)

		if s.admin != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.admin.Shutdown(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("admin shutdown: %w", err))
			}
			cancel()
		}

		for _, role := range Roles {
			s.roles[role].Stop()
		}
		s.wg.Wait()

		// Release whatever the last tick did not
		s.Tick(s.now())
		s.dispatcher.Stop()

		if s.accounts != nil {
			if err := s.accounts.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("account store: %w", err))
			}
		}
	})
	return result.ErrorOrNil()
}

func (s *Server) nextConnID() uint32 {
	return s.connIDs.Add(1)
}

// emit sends a lifecycle event about cl. g may be nil.
func (s *Server) emit(t plugins.EventType, source string, cl *Client, g *Game) {
	ev := plugins.Event{
		Type:   t,
		Source: source,
		Time:   s.now(),
	}
	if cl != nil {
		ev.AppID = cl.AppID
		ev.AccountID = cl.AccountID()
		ev.AccountName = cl.AccountName()
		ev.RemoteAddr = cl.RemoteIP()
		if ch := cl.CurrentChannel(); ch != nil {
			ev.ChannelID = ch.ID
		}
	}
	if g != nil {
		ev.AppID = g.AppID
		ev.GameID = g.ID
		ev.GameName = g.Name()
	}
	s.events.Emit(context.Background(), ev)
}

// Role returns the server of one role
func (s *Server) Role(r Role) *RoleServer {
	return s.roles[r]
}

func (s *Server) Clients() *ClientRegistry   { return s.clients }
func (s *Server) Channels() *ChannelRegistry { return s.channels }
func (s *Server) Games() *GameRegistry       { return s.games }
func (s *Server) Nodes() *NodeRegistry       { return s.nodes }
func (s *Server) Apps() *AppTable            { return s.apps }

// Registry is the server's own Prometheus registry
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// serverKey is the key advertised in connect infos: the handshake modulus,
// zeros with encryption disabled
func (s *Server) serverKey() []byte {
	if s.rsa == nil {
		return make([]byte, cipher.SessionKeySize)
	}
	return s.rsa.Modulus()
}

// RSAKey returns the handshake key, nil with encryption disabled
func (s *Server) RSAKey() *cipher.RSAKey { return s.rsa }

// Uptime is the time since NewServer
func (s *Server) Uptime() time.Duration {
	return s.now().Sub(s.startTime)
}
