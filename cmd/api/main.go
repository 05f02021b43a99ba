package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vita-api/internal/cache"
	"vita-api/internal/chat"
	"vita-api/internal/database"
	"vita-api/internal/middleware"
	"vita-api/internal/model"
	"vita-api/internal/profile"
	"vita-api/internal/ratelimit"
	"vita-api/internal/routers"
	"vita-api/internal/shared"
	"vita-api/internal/tasks"
	"vita-api/internal/users"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type messageStore struct {
	writeDB *sql.DB
}

func (s *messageStore) SaveMessages(ctx context.Context, userID uint64, msgs []shared.StoredMessage) error {
	return database.SaveMessages(ctx, s.writeDB, userID, msgs)
}

func main() {
	// Flags / ENV Variables
	writeDSN := flag.String("dsn", "", "Write DSN")
	readDSN := flag.String("read-dsn", "", "Read replica DSN")
	metricsAPIKey := flag.String("metrics-api-key", "", "Metrics api key")
	redisAddr := flag.String("redis-addr", "", "Redis host:port")
	debug := flag.Bool("debug", false, "Debug enabled")
	modelURL := flag.String("model-url", "", "Chat model base URL")
	modelAPIKey := flag.String("model-api-key", "", "Chat model API key")
	modelID := flag.String("model-id", "", "Chat model id")

	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()

	// Write DB init
	writeDB, err := sql.Open("mysql", *writeDSN)
	if err != nil {
		panic(fmt.Sprintf("failed initializing sqlClient: %s", err))
	}
	err = writeDB.Ping()
	if err != nil {
		panic(fmt.Sprintf("failed ping to sql db: %s", err))
	}

	// Read db init
	readDB, err := sql.Open("mysql", *readDSN)
	if err != nil {
		panic(fmt.Sprintf("failed initializing readSqlClient: %s", err))
	}
	err = readDB.Ping()
	if err != nil {
		panic(fmt.Sprintf("failed to ping read replica sql db: %s", err))
	}

	var logger *zap.Logger
	if !*debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if *debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()

	// Redis is the cache primary. Losing it degrades the cache to memory, it
	// never blocks startup.
	var redisClient *redis.Client
	if *redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     *redisAddr,
			Password: "",
			DB:       0,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warnw("Redis unreachable, cache degrades to memory", "addr", *redisAddr, "error", err)
			_ = redisClient.Close()
			redisClient = nil
		}
	}

	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if writeDB != nil {
			_ = writeDB.Close()
		}
		if readDB != nil {
			_ = readDB.Close()
		}
	}()

	cacheManager := cache.New(redisClient, log, shared.CacheSweepPeriod)
	defer cacheManager.Close()

	limiter := ratelimit.New(log, map[ratelimit.RouteClass]ratelimit.WindowConfig{
		ratelimit.ClassGeneric: {Limit: shared.DefaultWindowLimit, Window: shared.DefaultWindow},
		ratelimit.ClassLogin:   {Limit: shared.LoginWindowLimit, Window: shared.DefaultWindow},
		ratelimit.ClassChat:    {Limit: shared.ChatWindowLimit, Window: shared.DefaultWindow},
	}, shared.LimiterSweepPeriod, shared.LimiterIdleEviction)
	defer limiter.Close()

	coordinator := tasks.New(log, shared.ExtractionWorkers, shared.ExtractionQueueSize)

	userService := users.NewService(readDB, cacheManager, log)
	profileService := profile.NewService(database.NewProfileStore(writeDB, readDB), cacheManager, log)
	streamer := model.NewClient(*modelURL, *modelAPIKey, *modelID, log)
	orchestrator := chat.NewOrchestrator(streamer, coordinator, profileService, &messageStore{writeDB: writeDB}, log)

	e := echo.New()
	e.HTTPErrorHandler = middleware.NewErrorHandler(log)
	e.GET(("/ping"), func(c echo.Context) error {
		return c.String(200, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey, err := shared.ExtractAPIKey(c)
			if err != nil {
				return c.String(401, "Missing or invalid API key")
			}

			if apiKey != *metricsAPIKey {
				return c.String(401, "Unauthorized API key")
			}
			return next(c)
		}
	})

	base := e.Group("")
	base.Use(emw.CORS())
	base.Use(middleware.NewRecoverMiddleware(log))
	base.Use(middleware.NewTrackMiddleware(log))

	extractUser := middleware.NewExtractUserMiddleware(userService)

	// Rate limiting sits in front of user extraction: a rejected request
	// never touches the cache or the account tables.
	routers.RegisterAuthRoutes(base, writeDB,
		middleware.NewRateLimitMiddleware(limiter, ratelimit.ClassLogin),
		extractUser,
	)
	routers.RegisterChatRoutes(base, orchestrator, readDB,
		middleware.NewRateLimitMiddleware(limiter, ratelimit.ClassChat),
		extractUser,
		middleware.RequireUser,
	)
	routers.RegisterProfileRoutes(base, profileService,
		middleware.NewRateLimitMiddleware(limiter, ratelimit.ClassGeneric),
		extractUser,
		middleware.RequireUser,
	)

	go func() {
		if err := e.Start(":80"); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), shared.DefaultShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	// Let queued extraction work drain before the process exits.
	if err := coordinator.AwaitAll(ctx); err != nil {
		log.Warnw("Extraction queue did not drain before shutdown", "error", err)
	}
}
