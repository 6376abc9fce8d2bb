package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	infmemory "livequiz-service/internal/infra/memory"
	infpostgres "livequiz-service/internal/infra/postgres"
	infredis "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/questionbank"
	transport "livequiz-service/internal/transport/http"
)

const defaultQuestionsPerSession = 10

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.Log.Format == "pretty" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	if lvl, parseErr := zap.ParseAtomicLevel(cfg.Log.Level); parseErr == nil && cfg.Log.Level != "" {
		logger = logger.WithOptions(zap.IncreaseLevel(lvl))
	}
	return logger
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
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

	var (
		pool  *pgxpool.Pool
		bunDB *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	var bank questionbank.Bank
	if bunDB != nil {
		bank = infpostgres.NewQuestionBank(bunDB)
	} else {
		memBank := questionbank.NewMemoryBank()
		if _, err := memBank.CreateBatch(ctx, sampleQuestions()); err != nil {
			return err
		}
		bank = memBank
	}

	questionTTL := config.TTLDuration(cfg.Quiz.QuestionTTL, 10*time.Minute)
	var questions transport.QuestionSource
	if redisClient != nil && pool != nil {
		questions = infredis.NewQuestionCache(redisClient, infpostgres.NewQuestionLoader(pool), questionTTL)
	} else if pool != nil {
		questions = infmemory.NewQuestionCache(infpostgres.NewQuestionLoader(pool), questionTTL)
	} else {
		questions = infmemory.NewQuestionCache(infmemory.NewBankLoader(bank), questionTTL)
	}

	var liveness app.SessionLiveness
	if redisClient != nil {
		liveness = infredis.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}

	var (
		archiver app.SessionArchiver
		reader   transport.SessionReader
	)
	if bunDB != nil {
		archive := infpostgres.NewSessionArchive(bunDB)
		archiver = archive
		reader = archive
	}

	registry := app.NewRegistry()
	rooms := app.NewRooms(registry, logger)
	sessions := app.NewSessionRegistry(liveness)
	dispatcher := app.NewDispatcher(registry, rooms, sessions, archiver, logger)

	wsHandler := transport.NewWSHandler(registry, dispatcher, logger)
	api := transport.NewAPI(
		bank,
		questions,
		sessions,
		dispatcher,
		reader,
		archiver,
		cfg.Server.HostCode,
		cfg.QuestionsPerSession(defaultQuestionsPerSession),
		logger,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting live quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the in-memory bank when no Postgres is
// configured, enough to run a demo session out of the box.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Category:      "Geography",
			Prompt:        "What is the capital of Australia?",
			Options:       []string{"Sydney", "Canberra", "Melbourne", "Perth"},
			CorrectAnswer: "Canberra",
		},
		{
			Category:      "80s Music",
			Prompt:        "Who released the album Thriller in 1982?",
			Options:       []string{"Prince", "Michael Jackson", "Madonna", "Lionel Richie"},
			CorrectAnswer: "Michael Jackson",
		},
		{
			Category:      "Sport",
			Prompt:        "How many players are on a volleyball team on court?",
			Options:       []string{"5", "6", "7", "8"},
			CorrectAnswer: "6",
		},
		{
			Category:      "TV & Film",
			Prompt:        "Which film features the line \"Here's looking at you, kid\"?",
			Options:       []string{"Casablanca", "Citizen Kane", "Gone with the Wind", "Vertigo"},
			CorrectAnswer: "Casablanca",
		},
	}
}
