package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aeolun/medius/pkg/protocol"
)

// Stats tracks performance metrics
type Stats struct {
	logins            atomic.Int64
	requests          atomic.Int64
	requestsFailed    atomic.Int64
	totalResponseTime atomic.Int64 // in microseconds
	connectionErrors  atomic.Int64

	// Detailed failure tracking
	handshakeFailures atomic.Int64
	loginFailures     atomic.Int64
	timeouts          atomic.Int64
	disconnections    atomic.Int64
}

func (s *Stats) recordSuccess(responseTimeUs int64) {
	s.requests.Add(1)
	s.totalResponseTime.Add(responseTimeUs)
}

func (s *Stats) recordFailure(err error) {
	s.requestsFailed.Add(1)
	switch {
	case isTimeout(err):
		s.timeouts.Add(1)
	case isClosed(err):
		s.disconnections.Add(1)
	}
}

func (s *Stats) snapshot() (requests, failed, connErrors int64, avgResponseUs float64) {
	requests = s.requests.Load()
	failed = s.requestsFailed.Load()
	connErrors = s.connectionErrors.Load()

	if requests > 0 {
		avgResponseUs = float64(s.totalResponseTime.Load()) / float64(requests)
	}
	return
}

// BotClient logs in through the auth role, then browses the lobby
type BotClient struct {
	id       int
	username string
	password string
	opts     *options
	stats    *Stats
	lobby    *mediusConn
	channels []int32
	seq      int
}

type options struct {
	authAddr  string
	lobbyAddr string
	appID     int32
	version   int
	timeout   time.Duration
}

func NewBotClient(id int, opts *options, stats *Stats) *BotClient {
	return &BotClient{
		id:       id,
		username: "bot" + uuid.NewString()[:8],
		password: uuid.NewString()[:12],
		opts:     opts,
		stats:    stats,
	}
}

func (bc *BotClient) nextID() string {
	bc.seq++
	return strconv.Itoa(bc.id) + "-" + strconv.Itoa(bc.seq)
}

// Login registers the bot's account and logs in, returning where the lobby
// lives and the credentials to connect there with
func (bc *BotClient) Login() (protocol.NetConnectionInfo, error) {
	var info protocol.NetConnectionInfo

	auth, err := dialMedius(bc.opts.authAddr, bc.opts.timeout)
	if err != nil {
		bc.stats.connectionErrors.Add(1)
		return info, err
	}
	defer auth.Close()

	if err := auth.handshake(bc.opts.appID, bc.opts.version, protocol.ConnectCredentials{}, bc.opts.timeout); err != nil {
		bc.stats.handshakeFailures.Add(1)
		return info, err
	}

	if err := auth.sendApp(&protocol.SessionBeginRequest{MessageID: bc.nextID()}); err != nil {
		return info, err
	}
	session, err := recvApp[*protocol.SessionBeginResponse](auth, bc.opts.timeout)
	if err != nil {
		return info, fmt.Errorf("session begin: %w", err)
	}

	if err := auth.sendApp(&protocol.AccountRegistrationRequest{
		MessageID:   bc.nextID(),
		SessionKey:  session.SessionKey,
		AccountName: bc.username,
		Password:    bc.password,
	}); err != nil {
		return info, err
	}
	reg, err := recvApp[*protocol.AccountRegistrationResponse](auth, bc.opts.timeout)
	if err != nil {
		return info, fmt.Errorf("registration: %w", err)
	}
	if reg.StatusCode != protocol.StatusSuccess && reg.StatusCode != protocol.StatusAccountAlreadyExists {
		bc.stats.loginFailures.Add(1)
		return info, fmt.Errorf("registration: %s", reg.StatusCode)
	}

	if err := auth.sendApp(&protocol.AccountLoginRequest{
		MessageID:  bc.nextID(),
		SessionKey: session.SessionKey,
		Username:   bc.username,
		Password:   bc.password,
	}); err != nil {
		return info, err
	}
	login, err := recvApp[*protocol.AccountLoginResponse](auth, bc.opts.timeout)
	if err != nil {
		return info, fmt.Errorf("login: %w", err)
	}
	if login.StatusCode != protocol.StatusSuccess {
		bc.stats.loginFailures.Add(1)
		return info, fmt.Errorf("login: %s", login.StatusCode)
	}
	bc.stats.logins.Add(1)
	return login.ConnectInfo, nil
}

// Connect hands the logged-in identity over to the lobby role
func (bc *BotClient) Connect(info protocol.NetConnectionInfo) error {
	addr := bc.opts.lobbyAddr
	if addr == "" {
		a := info.AddressList[0]
		addr = net.JoinHostPort(a.Address, strconv.Itoa(int(a.Port)))
	}

	lobby, err := dialMedius(addr, bc.opts.timeout)
	if err != nil {
		bc.stats.connectionErrors.Add(1)
		return err
	}
	creds := protocol.ConnectCredentials{SessionKey: info.SessionKey, AccessToken: info.AccessKey}
	if err := lobby.handshake(bc.opts.appID, bc.opts.version, creds, bc.opts.timeout); err != nil {
		bc.stats.handshakeFailures.Add(1)
		lobby.Close()
		return err
	}
	bc.lobby = lobby
	return nil
}

// ListChannels pages through the channel list, caching the ids
func (bc *BotClient) ListChannels() error {
	start := time.Now()
	if err := bc.lobby.sendApp(&protocol.ChannelListRequest{PageRequest: protocol.PageRequest{
		MessageID: bc.nextID(),
		PageID:    1,
		PageSize:  20,
	}}); err != nil {
		bc.stats.recordFailure(err)
		return err
	}

	var ids []int32
	for {
		resp, err := recvApp[*protocol.ChannelListResponse](bc.lobby, bc.opts.timeout)
		if err != nil {
			bc.stats.recordFailure(err)
			return err
		}
		if resp.StatusCode == protocol.StatusSuccess {
			ids = append(ids, resp.MediusWorldID)
		}
		if resp.EndOfList || resp.StatusCode != protocol.StatusSuccess {
			break
		}
	}
	bc.channels = ids
	bc.stats.recordSuccess(time.Since(start).Microseconds())
	return nil
}

// ListGames reads the game list of the current channel
func (bc *BotClient) ListGames() error {
	start := time.Now()
	if err := bc.lobby.sendApp(&protocol.GameListRequest{PageRequest: protocol.PageRequest{
		MessageID: bc.nextID(),
		PageID:    1,
		PageSize:  20,
	}}); err != nil {
		bc.stats.recordFailure(err)
		return err
	}
	for {
		resp, err := recvApp[*protocol.GameListResponse](bc.lobby, bc.opts.timeout)
		if err != nil {
			bc.stats.recordFailure(err)
			return err
		}
		if resp.EndOfList || resp.StatusCode != protocol.StatusSuccess {
			break
		}
	}
	bc.stats.recordSuccess(time.Since(start).Microseconds())
	return nil
}

func (bc *BotClient) Run(duration time.Duration, minDelay, maxDelay time.Duration, shutdownDelay time.Duration) {
	defer bc.lobby.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("bot", bc.id).Interface("panic", r).Msg("bot panicked")
		}
	}()

	endTime := time.Now().Add(duration)
	iteration := 0

	for time.Now().Before(endTime) {
		iteration++

		var err error
		if iteration%3 == 1 || len(bc.channels) == 0 {
			err = bc.ListChannels()
		} else {
			err = bc.ListGames()
		}
		if isClosed(err) {
			return
		}

		delay := minDelay
		if maxDelay > minDelay {
			delay += time.Duration(rand.Int63n(int64(maxDelay - minDelay)))
		}
		time.Sleep(delay)
	}

	// Stagger shutdown to avoid thundering herd on disconnect
	if shutdownDelay > 0 {
		time.Sleep(shutdownDelay)
	}
}

func isTimeout(err error) bool { return err != nil && errors.Is(err, errTimeout) }
func isClosed(err error) bool  { return err != nil && errors.Is(err, errClosed) }

func main() {
	authAddr := flag.String("server", "localhost:10075", "Auth server address (host:port)")
	lobbyAddr := flag.String("lobby", "", "Lobby address, default the one handed out at login")
	appID := flag.Int("app", 11184, "Application id to connect as")
	version := flag.Int("version", 109, "Medius protocol version of the application")
	numClients := flag.Int("clients", 10, "Number of concurrent clients")
	duration := flag.Duration("duration", 1*time.Minute, "Test duration")
	minDelay := flag.Duration("min-delay", 100*time.Millisecond, "Minimum delay between requests")
	maxDelay := flag.Duration("max-delay", 1*time.Second, "Maximum delay between requests")
	timeout := flag.Duration("timeout", 5*time.Second, "Reply timeout")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	opts := &options{
		authAddr:  *authAddr,
		lobbyAddr: *lobbyAddr,
		appID:     int32(*appID),
		version:   *version,
		timeout:   *timeout,
	}

	// Ramp up over 25% of test duration
	rampUpDuration := *duration / 4
	staggerDelay := rampUpDuration / time.Duration(*numClients)
	if staggerDelay < 1*time.Millisecond {
		staggerDelay = 1 * time.Millisecond
	}

	log.Info().
		Str("server", *authAddr).
		Int("clients", *numClients).
		Int("app", *appID).
		Dur("duration", *duration).
		Dur("ramp_up", rampUpDuration).
		Dur("min_delay", *minDelay).
		Dur("max_delay", *maxDelay).
		Msg("starting load test")

	stats := &Stats{}
	var wg sync.WaitGroup

	stopStats := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(stopStats) }) }

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		startTime := time.Now()
		for {
			select {
			case <-ticker.C:
				requests, failed, connErrors, avgUs := stats.snapshot()
				elapsed := time.Since(startTime).Seconds()
				log.Info().
					Int64("logins", stats.logins.Load()).
					Int64("requests", requests).
					Float64("rate", float64(requests)/elapsed).
					Int64("failed", failed).
					Int64("conn_errors", connErrors).
					Float64("avg_ms", avgUs/1000.0).
					Msg("stats")
			case <-stopStats:
				return
			}
		}
	}()

	for i := 0; i < *numClients; i++ {
		wg.Add(1)

		// Reverse order for ramp-down
		shutdownDelay := staggerDelay * time.Duration(*numClients-i-1)

		go func(id int, shutdownDelay time.Duration) {
			defer wg.Done()

			bot := NewBotClient(id, opts, stats)
			info, err := bot.Login()
			if err != nil {
				log.Debug().Err(err).Int("bot", id).Msg("login failed")
				return
			}
			if err := bot.Connect(info); err != nil {
				log.Debug().Err(err).Int("bot", id).Msg("lobby connect failed")
				return
			}

			if id%100 == 0 {
				log.Info().Int("bot", id).Str("user", bot.username).Msg("connected")
			}

			bot.Run(*duration, *minDelay, *maxDelay, shutdownDelay)
		}(i, shutdownDelay)

		time.Sleep(staggerDelay)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn().Msg("shutdown signal received, stopping test")
		stop()
	}()

	wg.Wait()
	stop()

	requests, failed, connErrors, avgUs := stats.snapshot()
	rate := float64(requests) / duration.Seconds()

	log.Info().
		Dur("duration", *duration).
		Int64("logins", stats.logins.Load()).
		Int64("requests", requests).
		Float64("rate", rate).
		Int64("failed", failed).
		Int64("handshake_failures", stats.handshakeFailures.Load()).
		Int64("login_failures", stats.loginFailures.Load()).
		Int64("timeouts", stats.timeouts.Load()).
		Int64("disconnections", stats.disconnections.Load()).
		Int64("conn_errors", connErrors).
		Float64("avg_ms", avgUs/1000.0).
		Msg("final results")

	if requests > 0 {
		log.Info().Float64("success_rate", float64(requests)/float64(requests+failed)*100).Msg("success rate")
	}
}
