package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/auth"
	"certquiz-service/internal/config"
	"certquiz-service/internal/infra/gemini"
	"certquiz-service/internal/logger"
	transport "certquiz-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (JWT_SECRET) must be set")
	}

	certificates, closeStore, err := openCertificateStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet")
		}
	}

	completer, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	generator := newCachedGenerator(cfg, redisClient,
		gemini.NewGenerator(completer, config.TTLDuration(cfg.Gemini.Timeout, time.Minute), log),
		log)

	sessions := newSessionRepository(cfg, redisClient)
	quizzes := app.NewQuizService(generator, sessions, certificates, app.WithLogger(log))
	limiter := transport.NewRateLimiter(cfg.RateLimit.GeneratePerMinute, time.Minute)

	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go limiter.Run(runCtx)
	if sweeper, ok := sessions.(interface{ Run(context.Context) }); ok {
		go sweeper.Run(runCtx)
	}

	router := transport.NewRouter(transport.RouterConfig{
		Quizzes:        quizzes,
		Certificates:   app.NewCertificateService(certificates),
		Auth:           auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)),
		Limiter:        limiter,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// No write timeout: quiz generation and websocket sessions are long-lived.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Str("store", cfg.Store.Driver).Msg("starting certquiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
