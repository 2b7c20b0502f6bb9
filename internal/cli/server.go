package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/config"
	"exam-submission-service/internal/infra/memory"
	pgloader "exam-submission-service/internal/infra/postgres"
	redisinfra "exam-submission-service/internal/infra/redis"
	"exam-submission-service/internal/infra/sqlstore"
	transport "exam-submission-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backend is the set of repositories chosen by store.driver.
type backend struct {
	schedules   app.ScheduleRepository
	questions   app.QuestionRepository
	submissions app.SubmissionRepository
	classes     transport.ClassDirectory
	// loader feeds the grading cache; defaults to questions.
	loader  app.QuestionReader
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case "memory":
		questions := memory.NewQuestionStore()
		return &backend{
			schedules:   memory.NewScheduleStore(),
			questions:   questions,
			submissions: memory.NewSubmissionStore(),
			classes:     memory.NewClassRegistry(),
			loader:      questions,
		}, nil
	case string(sqlstore.DriverSQLite), string(sqlstore.DriverPostgres):
		driver := sqlstore.Driver(cfg.Store.Driver)
		if driver == sqlstore.DriverPostgres {
			if err := RunMigrations(ctx, cfg.Store.DSN); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		db, err := sqlstore.Open(ctx, driver, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		store := sqlstore.New(db)
		b := &backend{
			schedules:   store.Schedules,
			questions:   store.Questions,
			submissions: store.Submissions,
			classes:     store.Classes,
			loader:      store.Questions,
			closers:     []func(){func() { closeDB(db) }},
		}
		if driver == sqlstore.DriverPostgres {
			pool, err := pgxpool.Connect(ctx, cfg.Store.DSN)
			if err != nil {
				b.close()
				return nil, err
			}
			b.loader = pgloader.NewQuestionLoader(pool)
			b.closers = append(b.closers, pool.Close)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("close database: %v", err)
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	lockTTL := config.TTLDuration(cfg.Grading.LockTTL, 10*time.Second)

	var (
		questionCache interface {
			app.QuestionReader
			app.QuestionInvalidator
		}
		locker app.Locker
	)
	if redisClient != nil {
		questionCache = redisinfra.NewQuestionCache(redisClient, b.loader, cacheTTL)
		locker = redisinfra.NewLocker(redisClient, lockTTL)
	} else {
		questionCache = memory.NewQuestionCache(b.loader, cacheTTL)
		locker = memory.NewKeyedLocker()
	}

	feed := app.NewFeed()
	opts := []app.Option{app.WithAutoGrade(cfg.Grading.AutoGrade), app.WithFeed(feed)}
	handler := transport.NewHandler(transport.Services{
		Schedules:   app.NewScheduleService(b.schedules, opts...),
		Questions:   app.NewQuestionService(b.questions, questionCache, opts...),
		Submissions: app.NewSubmissionService(b.submissions, b.schedules, b.classes, questionCache, locker, opts...),
		Statistics:  app.NewStatisticsService(b.submissions),
		Classes:     b.classes,
		Feed:        feed,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s (store=%s, redis=%t)", finalPort, cfg.Store.Driver, redisClient != nil)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
