package http

import (
	"context"

	"github.com/Rana-X/nora/internal/adapters/signal"
	"github.com/Rana-X/nora/internal/app"
	"github.com/Rana-X/nora/internal/app/credentials"
	"github.com/Rana-X/nora/internal/auth"
	"github.com/Rana-X/nora/internal/config"
	"github.com/Rana-X/nora/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

type Deps struct {
	Registry *app.Registry
	Flow     *credentials.Flow
	Issuer   *auth.Issuer
	Metrics  metrics.Collector
}

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable id kept in its cookie
// session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save client session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("NoraSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", handleHealth(deps))
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{deps: deps}
	api := r.Group("/api")
	api.POST("/token", h.issueToken)

	session := api.Group("/session")
	session.POST("", h.startSession)
	session.GET("", h.getSession)
	session.DELETE("", h.leaveSession)
	session.POST("/microphone", h.setMicrophone)

	ws := signal.NewSignalWSController(deps.Registry, cfg.ReadLimit, cfg.PingPeriod)
	ws.MessageRate = cfg.MessageRate
	ws.MessageBurst = cfg.MessageBurst
	session.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws view endpoint hit")
		ws.HandleSignal(ctx, c)
	})

	return r
}
