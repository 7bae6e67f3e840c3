package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/internal/auth"
	"github.com/communityhub/internal/bot"
	"github.com/communityhub/internal/config"
	"github.com/communityhub/internal/handler"
	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/middleware"
	"github.com/communityhub/internal/repository"
	"github.com/communityhub/internal/startup"
	"github.com/communityhub/internal/storage"
	"github.com/communityhub/internal/storage/memory"
	"github.com/communityhub/internal/ws"
	"github.com/communityhub/migrations"
)

func main() {
	logger.SetPrefix("hub")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting hub service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := pool.Exec(resetCtx, "UPDATE users SET is_online = false"); err != nil {
		logger.Errorf("reset online status: %v", err)
	}
	resetCancel()
	logger.Info("database connected, migrations applied")

	var store storage.SessionStore
	if *dev {
		store = memory.New()
		logger.Info("using in-memory session store")
	} else {
		redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
		store = redisClient
	}
	defer store.Close()

	tokenSecret := cfg.TokenSecret
	if tokenSecret == "" {
		// Dev convenience only: tokens die with the process. Production
		// requires TOKEN_SECRET (enforced in config.Load).
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Errorf("generate token secret: %v", err)
			os.Exit(1)
		}
		tokenSecret = hex.EncodeToString(buf)
		logger.Error("TOKEN_SECRET not set, generated an ephemeral one")
	}
	tokens := auth.NewTokenManager(tokenSecret, cfg.TokenExpire)

	userRepo := repository.NewUserRepository(pool)
	communityRepo := repository.NewCommunityRepository(pool)
	channelRepo := repository.NewChannelRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	reactRepo := repository.NewReactionRepository(pool)
	pinnedRepo := repository.NewPinnedRepository(pool)
	pollRepo := repository.NewPollRepository(pool)
	dmRepo := repository.NewDMRepository(pool)
	botRepo := repository.NewBotRepository(pool)

	var responder ws.Responder
	if cfg.Answer.URL != "" {
		setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
		setup, err := bot.EnsureSupport(setupCtx, userRepo, communityRepo, channelRepo, botRepo)
		setupCancel()
		if err != nil {
			logger.Errorf("support bot setup: %v", err)
			os.Exit(1)
		}
		answerer := bot.NewClient(cfg.Answer.URL, cfg.Answer.APIKey, cfg.Answer.Model)
		responder = bot.NewResponder(setup.Channel.ID, setup.Bot.ID, setup.Bot.Name, msgRepo, answerer)
		logger.Infof("support bot active in channel %s", setup.Channel.ID)
	} else {
		logger.Info("ANSWER_SERVICE_URL not set, support bot disabled")
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(tokens, userRepo, communityRepo, channelRepo, msgRepo, reactRepo, dmRepo, cfg.MaxWSConnections, responder)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	authH := handler.NewAuthHandler(userRepo, store, tokens, cfg.SecureCookies)
	communityH := handler.NewCommunityHandler(communityRepo, channelRepo, botRepo)
	msgH := handler.NewMessageHandler(msgRepo, channelRepo, communityRepo, pinnedRepo, hub)
	pollH := handler.NewPollHandler(pollRepo, channelRepo, communityRepo)
	dmH := handler.NewDMHandler(dmRepo, userRepo, hub)
	botH := handler.NewBotHandler(botRepo, channelRepo, msgRepo, hub)
	wsH := handler.NewWSHandler(hub, store, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Do not compress WebSocket responses: a wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Bot-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	r.Post("/api/auth/logout", authH.Logout)
	r.Post("/api/auth/recover", authH.Recover)

	// API-key surface for registered bots, outside the session middleware.
	r.Post("/api/bot/messages", botH.SendMessage)

	// /ws is outside the session group: a connection without a cookie is
	// allowed through and must authenticate with a token join frame.
	r.Get("/ws", wsH.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(store, tokens))
		r.Get("/api/auth/me", authH.Me)

		r.Get("/api/communities", communityH.ListPublic)
		r.Post("/api/communities", communityH.Create)
		r.Get("/api/communities/mine", communityH.ListMine)
		r.Get("/api/communities/{communityID}", communityH.Get)
		r.Post("/api/communities/{communityID}/join", communityH.Join)
		r.Post("/api/communities/{communityID}/leave", communityH.Leave)
		r.Get("/api/communities/{communityID}/members", communityH.Members)
		r.Get("/api/communities/{communityID}/channels", communityH.ListChannels)
		r.Post("/api/communities/{communityID}/channels", communityH.CreateChannel)
		r.Get("/api/communities/{communityID}/bots", communityH.ListBots)
		r.Post("/api/communities/{communityID}/bots", communityH.CreateBot)
		r.Put("/api/communities/{communityID}/bots/{botID}/active", communityH.SetBotActive)

		r.Get("/api/channels/{channelID}/messages", msgH.History)
		r.Get("/api/channels/{channelID}/messages/search", msgH.Search)
		r.Get("/api/channels/{channelID}/pins", msgH.ListPins)
		r.Post("/api/messages/{messageID}/pin", msgH.Pin)
		r.Delete("/api/messages/{messageID}/pin", msgH.Unpin)

		r.Get("/api/channels/{channelID}/polls", pollH.ListByChannel)
		r.Post("/api/channels/{channelID}/polls", pollH.Create)
		r.Post("/api/polls/{pollID}/vote", pollH.Vote)

		r.Get("/api/dm/conversations", dmH.ListConversations)
		r.Post("/api/dm/conversations", dmH.CreateConversation)
		r.Get("/api/dm/conversations/{conversationID}/messages", dmH.Messages)
		r.Post("/api/dm/conversations/{conversationID}/messages", dmH.SendMessage)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := migrations.Files.ReadFile(entry.Name())
		if err != nil {
			logger.Errorf("read migration %s: %v", entry.Name(), err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", entry.Name(), err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "communityhub"
		password = "communityhub_secret"
		database = "communityhub"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
