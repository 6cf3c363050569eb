package server

import (
	"net/http"
	"time"

	"spy-game/internal/config"
	"spy-game/internal/db"
	"spy-game/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	repo     db.Repository
	cfg      config.Config
	game     *game.Supervisor
	ws       *wsHub
	upgrader websocket.Upgrader
}

// New wires the room supervisor to repo and to the websocket hub. Extra
// options are passed through to the supervisor.
func New(repo db.Repository, cfg config.Config, opts ...game.Option) *Server {
	hub := newWSHub(cfg.WSSendBuffer)
	supervisorOpts := append([]game.Option{game.WithMaxUsernameLength(cfg.MaxUsernameLength)}, opts...)
	return &Server{
		repo: repo,
		cfg:  cfg,
		game: game.NewSupervisor(repo, hub, supervisorOpts...),
		ws:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.CORSAllowedOrigins),
		},
	}
}

func (s *Server) Game() *game.Supervisor {
	return s.game
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/types", s.handleListCategories)
	router.POST("/types", s.handleCreateCategory)
	router.POST("/rooms", s.handleCreateRoom)
	router.GET("/rooms/:id", s.handleGetRoom)
	router.POST("/create-room", s.handleCreateRoomWithOwner)
	router.POST("/users", s.handleCreateUser)
	router.POST("/games", s.handleRecordGame)
	router.GET("/ws", s.handleWebsocket)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(router)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || candidate == origin {
				return true
			}
		}
		return false
	}
}
