package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/Tomlord1122/todo-widget/internal/config"
	"github.com/Tomlord1122/todo-widget/internal/database"
	"github.com/Tomlord1122/todo-widget/internal/logging"
	"github.com/Tomlord1122/todo-widget/internal/repository"
	"github.com/Tomlord1122/todo-widget/internal/server"
	"github.com/Tomlord1122/todo-widget/internal/service"
	"github.com/Tomlord1122/todo-widget/internal/session"
)

func gracefulShutdown(apiServer *http.Server, dbService database.Service, redisClient *redis.Client, log zerolog.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if dbService != nil {
		log.Info().Msg("closing database connection pool")
		if err := dbService.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database connection pool")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}

	log.Info().Msg("server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	provision := flag.Bool("provision", false, "Create the todo table for every tenant prefix and exit")
	uninstall := flag.Bool("uninstall", false, "Drop the todo table for every tenant prefix and exit")
	issueToken := flag.Uint("issue-token", 0, "Print a bearer token for the given user id and exit")
	flag.Parse()

	log := logging.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLog, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logger")
	}
	log = appLog

	issuer := session.NewIssuer(cfg.Session.JWTSecret, cfg.Session.JWTIssuer, cfg.Session.JWTTTL)

	if *issueToken != 0 {
		token, id, err := issuer.Issue(*issueToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to issue token")
		}
		log.Info().Uint("user_id", id.UserID).Str("session_id", id.SessionID).Msg("issued bearer token")
		fmt.Println(token)
		return
	}

	if err := run(cfg, issuer, *provision, *uninstall, log); err != nil {
		log.Fatal().Err(err).Msg("todo service stopped")
	}
}

func run(cfg *config.Config, issuer *session.Issuer, provision, uninstall bool, log zerolog.Logger) error {
	ctx := context.Background()

	var (
		dbService database.Service
		todoRepo  repository.TodoRepository
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		if provision || uninstall {
			return errors.New("--provision and --uninstall need STORE_DRIVER=postgres")
		}
		log.Warn().Msg("using in-memory store, todos are lost on restart")
		todoRepo = repository.NewMemoryTodoRepository()
	default:
		var err error
		dbService, err = database.New(cfg.Postgres, log)
		if err != nil {
			return err
		}
		gormDB := dbService.GetDB()

		switch {
		case provision:
			defer dbService.Close()
			return database.Provision(ctx, gormDB, cfg.Store.Tenants(), log)
		case uninstall:
			defer dbService.Close()
			return database.Uninstall(ctx, gormDB, cfg.Store.Tenants(), log)
		}

		// The served tenant is provisioned on startup so a fresh database works.
		if err := database.Provision(ctx, gormDB, []string{cfg.Store.TablePrefix}, log); err != nil {
			dbService.Close()
			return err
		}
		table, err := database.Table(cfg.Store.TablePrefix)
		if err != nil {
			dbService.Close()
			return err
		}
		todoRepo = repository.NewGormTodoRepository(gormDB, table, log)
	}

	var (
		tokens      session.TokenStore
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		var err error
		redisClient, err = session.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			if dbService != nil {
				dbService.Close()
			}
			return err
		}
		tokens = session.NewRedisTokenStore(redisClient, cfg.Session.CSRFTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("anti-forgery tokens stored in redis")
	} else {
		tokens = session.NewMemoryTokenStore(cfg.Session.CSRFTTL)
	}

	todoService := service.NewTodoService(todoRepo, log)

	apiServer, err := server.NewHTTPServer(cfg.Port, server.Deps{
		TodoService: todoService,
		DB:          dbService,
		Issuer:      issuer,
		Tokens:      tokens,
		Log:         log,
	})
	if err != nil {
		return err
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, dbService, redisClient, log, done)

	log.Info().Str("addr", apiServer.Addr).Str("env", cfg.Env).Str("store", cfg.Store.Driver).Msg("starting server")
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("graceful shutdown complete")
	return nil
}

func init() {
	flag.CommandLine.SortFlags = false
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: api [flags]\n\nServes the todo widget API. Configuration is read from the environment and .env.\n\n")
		flag.PrintDefaults()
	}
}
