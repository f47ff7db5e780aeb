package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vntrieu/impostor/internal/config"
	"github.com/vntrieu/impostor/internal/database"
	"github.com/vntrieu/impostor/internal/games"
	"github.com/vntrieu/impostor/internal/httpapi"
	"github.com/vntrieu/impostor/internal/moderation"
	"github.com/vntrieu/impostor/internal/ratelimit"
	"github.com/vntrieu/impostor/internal/store"
	"github.com/vntrieu/impostor/internal/telegram"
	"github.com/vntrieu/impostor/internal/websocket"
	"github.com/vntrieu/impostor/internal/xp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Connect to PostgreSQL.
	ctx := context.Background()
	dbPool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer dbPool.Close()
	log.Println("connected to database")

	// Run pending migrations.
	if err := database.Migrate(ctx, dbPool); err != nil {
		log.Fatalf("database migrate: %v", err)
	}
	if v, err := database.MigrationVersion(ctx, dbPool); err == nil {
		log.Printf("migrations up to date version=%d", v)
	}

	hub := websocket.NewHub()
	go hub.Run()

	notifier := games.MultiNotifier{hub}
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		if bot, err = telegram.New(cfg.TelegramToken); err != nil {
			log.Fatalf("telegram: %v", err)
		}
		notifier = append(notifier, bot)
	}

	users := store.NewUserStore(dbPool)
	scorer := xp.NewService(users, notifier)
	moderator := moderation.NewService(users, cfg.OwnerID, cfg.RankedRoomIDs)
	if cfg.OwnerID == 0 {
		log.Println("BOT_OWNER_ID not set, owner commands disabled")
	}
	engine := games.NewEngine(store.NewMatchStore(dbPool), scorer, moderator, notifier, cfg.Timings)
	if err := engine.Recover(ctx); err != nil {
		log.Fatalf("recover matches: %v", err)
	}

	botCtx, stopBot := context.WithCancel(context.Background())
	botDone := make(chan struct{})
	if bot != nil {
		var limiter ratelimit.Limiter
		if cfg.RateLimitPerMinute > 0 {
			limiter = ratelimit.NewInMemory(cfg.RateLimitPerMinute, time.Minute)
		}
		h := telegram.NewHandler(bot.API(), engine, scorer, moderator, limiter)
		go func() {
			defer close(botDone)
			if err := bot.Run(botCtx, h); err != nil && err != context.Canceled {
				log.Printf("telegram bot error: %v", err)
			}
		}()
	} else {
		close(botDone)
		log.Println("TELEGRAM_BOT_TOKEN not set, telegram transport disabled")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Matches:        engine,
		Profiles:       scorer,
		Moderation:     moderator,
		Hub:            hub,
		DB:             dbPool,
		TokenSecret:    cfg.TokenSecret,
		RateLimiter:    httpapi.DefaultRateLimiter(cfg.RateLimitPerMinute),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("impostor server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	stopBot()
	<-botDone
	// drains the notify queue, so transports must still be up
	engine.Shutdown()
	hub.Stop()
}
