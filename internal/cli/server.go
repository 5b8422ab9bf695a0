package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"fff-console/internal/config"
	"fff-console/internal/domain"
	"fff-console/internal/infra/console"
	"fff-console/internal/infra/memory"
	pgloader "fff-console/internal/infra/postgres"
	redisinfra "fff-console/internal/infra/redis"
	"fff-console/internal/round"
	transport "fff-console/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the console server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the FFF console server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	catalogTTL := config.Duration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog round.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	clock := clockwork.NewRealClock()
	roundCfg := round.Config{
		Duration: config.Duration(cfg.Round.Duration, 20*time.Second),
		Cadence:  config.Duration(cfg.Round.Tick, 100*time.Millisecond),
	}

	hub := transport.NewHub()
	flow := round.NewFlow(
		roundCfg,
		clock,
		catalog,
		round.NewRegistry(),
		round.NewLedger(),
		hub,
		console.NewScreen(),
		console.NewAudio(clock),
	)

	wsHandler := transport.NewWSHandler(flow, hub)
	hostHandler := transport.NewHostHandler(flow)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	hostHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting fff console")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal FFF bank for demo runs without a
// database; swap the loader for the Postgres one in production.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:   "fff-1",
			Text: "Put these prefixes in ascending order of magnitude.",
			Answers: [domain.AnswerCount]string{
				"Giga", "Kilo", "Mega", "Tera",
			},
			CorrectOrder: "BCAD",
		},
		{
			ID:   "fff-2",
			Text: "Put these events in chronological order.",
			Answers: [domain.AnswerCount]string{
				"First moon landing", "Fall of the Berlin Wall", "Wright brothers' flight", "Launch of Sputnik",
			},
			CorrectOrder: "CDAB",
		},
		{
			ID:   "fff-3",
			Text: "Order these planets by distance from the Sun, nearest first.",
			Answers: [domain.AnswerCount]string{
				"Mars", "Mercury", "Earth", "Venus",
			},
			CorrectOrder: "BDCA",
		},
	}
}
