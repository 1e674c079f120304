package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	router "github.com/Rana-X/nora/internal/adapters/http"
	"github.com/Rana-X/nora/internal/adapters/livekit"
	"github.com/Rana-X/nora/internal/app"
	"github.com/Rana-X/nora/internal/app/credentials"
	"github.com/Rana-X/nora/internal/app/orch"
	"github.com/Rana-X/nora/internal/auth"
	"github.com/Rana-X/nora/internal/config"
	"github.com/Rana-X/nora/internal/metrics"
)

func setLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLevel(cfg.LogLevel)
	if err := config.Watch(func(c *config.Config) { setLevel(c.LogLevel) }); err != nil {
		log.Debug().Err(err).Msg("config watch disabled")
	}

	if cfg.Secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatal().Err(err).Msg("generate cookie secret")
		}
		cfg.Secret = hex.EncodeToString(buf)
		log.Warn().Msg("no secret configured, client cookies will not survive a restart")
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(promReg)

	issuer := auth.NewIssuer(auth.Config{
		URL:       cfg.LiveKit.URL,
		APIKey:    cfg.LiveKit.APIKey,
		APISecret: cfg.LiveKit.APISecret,
		TTL:       cfg.LiveKit.TokenTTL,
	})
	if !issuer.Configured() {
		log.Warn().Msg("livekit credentials missing, token endpoint will refuse requests")
	}

	reg := app.NewRegistry(app.Options{
		Session: orch.Config{
			Dialer:     livekit.NewDialer(),
			Quiescence: cfg.SpeakingQuiescence,
			Metrics:    collector,
		},
		StartRate:  rate.Limit(cfg.StartRate),
		StartBurst: cfg.StartBurst,
	})

	issuerURL := cfg.IssuerURL
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)
	}
	flow := credentials.NewFlow(credentials.Options{
		IssuerURL: issuerURL,
		Timeout:   cfg.IssuerTimeout,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Registry: reg,
		Flow:     flow,
		Issuer:   issuer,
		Metrics:  collector,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("issuer", issuerURL).Msg("Nora server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	reg.LeaveAll()
	log.Info().Msg("Server exited gracefully")
}
