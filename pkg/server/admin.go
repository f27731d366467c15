package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthInfo is the body of GET /api/health
type HealthInfo struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Connections   map[string]int `json:"connections"`
	Clients       int            `json:"clients"`
	Games         int            `json:"games"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
}

// Health reports process and host state
func (s *Server) Health() HealthInfo {
	h := HealthInfo{
		Status:        "healthy",
		UptimeSeconds: int64(s.Uptime().Seconds()),
		Connections:   make(map[string]int, len(Roles)),
		Clients:       s.clients.Count(),
		Games:         s.games.Count(),
	}
	for _, role := range Roles {
		h.Connections[string(role)] = s.roles[role].Count()
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		h.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemoryPercent = vm.UsedPercent
	}
	return h
}

// AdminHandler builds the admin router
func (s *Server) AdminHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/games", s.handleGames)
		api.POST("/games/:id/end", s.handleEndGame)
		api.GET("/channels", s.handleChannels)
		api.GET("/clients", s.handleClients)
		api.GET("/nodes", s.handleNodes)
	}
	router.GET("/ws/:role", s.handleWebSocket)

	if s.cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	return router
}

func (s *Server) startAdmin() error {
	addr := fmt.Sprintf(":%d", s.cfg.AdminPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.admin = &http.Server{
		Handler:      s.AdminHandler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log := s.log.With().Str("component", "admin").Logger()
	log.Info().Str("addr", ln.Addr().String()).Msg("admin API listening")

	go func() {
		if err := s.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin API stopped")
		}
	}()
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	log := s.log.With().Str("component", "admin").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("admin request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.Health())
}

// appFilter reads the optional app_id query parameter
func appFilter(c *gin.Context) (int32, bool) {
	v := c.Query("app_id")
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app_id"})
		return 0, false
	}
	return int32(id), true
}

func (s *Server) handleGames(c *gin.Context) {
	appID, ok := appFilter(c)
	if !ok {
		return
	}
	out := make([]GameInfo, 0)
	for _, g := range s.games.List() {
		if appID == 0 || g.AppID == appID {
			out = append(out, g.Info())
		}
	}
	c.JSON(http.StatusOK, gin.H{"games": out, "count": len(out)})
}

func (s *Server) handleEndGame(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	g, ok := s.games.Get(int32(id))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	s.games.EndGame(g)
	s.log.Info().Str("component", "admin").Int32("game", g.ID).Msg("game ended by operator")
	c.JSON(http.StatusOK, g.Info())
}

func (s *Server) handleChannels(c *gin.Context) {
	appID, ok := appFilter(c)
	if !ok {
		return
	}
	out := make([]ChannelInfo, 0)
	for _, ch := range s.channels.List() {
		if appID == 0 || ch.AppID == appID {
			out = append(out, ch.Info())
		}
	}
	c.JSON(http.StatusOK, gin.H{"channels": out, "count": len(out)})
}

func (s *Server) handleClients(c *gin.Context) {
	appID, ok := appFilter(c)
	if !ok {
		return
	}
	out := make([]ClientInfo, 0)
	for _, cl := range s.clients.List() {
		if appID == 0 || cl.AppID == appID {
			out = append(out, cl.Info())
		}
	}
	c.JSON(http.StatusOK, gin.H{"clients": out, "count": len(out)})
}

func (s *Server) handleNodes(c *gin.Context) {
	nodes := s.nodes.List()
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Info())
	}
	c.JSON(http.StatusOK, gin.H{"nodes": out, "count": len(out)})
}
