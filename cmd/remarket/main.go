package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/erazemk/remarket/internal/api"
	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/blob"
	"github.com/erazemk/remarket/internal/catalog"
	"github.com/erazemk/remarket/internal/config"
	"github.com/erazemk/remarket/internal/db"
	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/imaging"
	"github.com/erazemk/remarket/internal/importer"
	"github.com/erazemk/remarket/internal/store"
	"github.com/erazemk/remarket/internal/upload"
	"github.com/erazemk/remarket/internal/web"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{stdout: lr.stdout.WithAttrs(attrs), stderr: lr.stderr.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{stdout: lr.stdout.WithGroup(name), stderr: lr.stderr.WithGroup(name)}
}

// setupLogger sends INFO/WARN to stdout and ERROR to stderr, and everything
// to logPath as well when it is set.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	cleanup := func() {}

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Server.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	admins := auth.NewAllowList(cfg.Admins)
	created, err := bootstrapAccounts(ctx, database, admins)
	if err != nil {
		return err
	}
	printCredentials(created)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	blobs, closeBlobs, err := openBlobStore(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeBlobs()

	var (
		notifier catalog.Notifier
		drafts   importer.DraftStore = importer.NewMemoryStore(cfg.Import.DraftTTL)
	)
	if cfg.Redis.Addr != "" {
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		notifier = catalog.NewRedisNotifier(client, cfg.Redis.Channel)
		drafts = importer.NewRedisStore(client, "", cfg.Import.DraftTTL)
		slog.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	feed := catalog.NewFeed(database, notifier)
	defer feed.Close()
	feedErr := make(chan error, 1)
	go func() { feedErr <- feed.Run(ctx) }()

	cat := catalog.New(database, feed, cfg.Images.MaxImages)
	imgOpts := imaging.Options{MaxDimension: cfg.Images.MaxDimension, Quality: cfg.Images.Quality}
	uploads := upload.New(blobs, upload.Config{
		MaxImages:   cfg.Images.MaxImages,
		Concurrency: cfg.Images.Concurrency,
		Imaging:     imgOpts,
	})

	var extractor extract.Extractor = extract.Unavailable{}
	if cfg.Gemini.APIKey != "" {
		g, err := extract.NewGemini(ctx, extract.GeminiConfig{
			APIKey:          cfg.Gemini.APIKey,
			AnalysisModel:   cfg.Gemini.AnalysisModel,
			ExtractionModel: cfg.Gemini.ExtractionModel,
		})
		if err != nil {
			return err
		}
		extractor = g
	} else {
		slog.Warn("GEMINI_API_KEY not set, AI features disabled")
	}

	apiRouter := api.NewRouter(api.Deps{
		DB:        database,
		JWTSecret: jwtSecret,
		Admins:    admins,
		Catalog:   cat,
		Uploads:   uploads,
		Imports:   importer.NewRegistry(drafts, extractor, cat),
		Extractor: extractor,
		Imaging:   imgOpts,
		Contact:   cfg.Contact,
	})
	webRouter := web.NewRouter(&web.Server{
		DB:        database,
		JWTSecret: jwtSecret,
		Admins:    admins,
		Hub:       auth.NewHub(database, jwtSecret),
		Items:     feed,
		Blobs:     blobs,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go purgeRevokedTokens(ctx, database)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Server.Addr, "blobs", cfg.Blob.Backend)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case err := <-feedErr:
		if err != nil {
			return fmt.Errorf("catalog feed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server stopped, closing database")
	return nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, database *sql.DB) (blob.Store, func(), error) {
	if cfg.Blob.Backend == config.BlobNATS {
		s, err := blob.NewJetStreamStore(ctx, cfg.Blob.NATSURL, cfg.Blob.Bucket, cfg.Server.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening photo bucket: %w", err)
		}
		return s, s.Close, nil
	}
	return blob.NewSQLiteStore(database, cfg.Server.BaseURL), func() {}, nil
}

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

type credentials struct {
	email    string
	password string
}

// bootstrapAccounts creates an account for every allow-listed email that
// has none yet.
func bootstrapAccounts(ctx context.Context, database *sql.DB, admins auth.AllowList) ([]credentials, error) {
	var created []credentials
	for _, email := range admins.Emails() {
		acc, err := store.GetAccountByEmail(ctx, database, email)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", email, err)
		}
		if acc != nil {
			continue
		}

		password, err := auth.GeneratePassword(16)
		if err != nil {
			return nil, fmt.Errorf("generating password: %w", err)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		name, _, _ := strings.Cut(email, "@")
		if _, err := store.CreateAccount(ctx, database, email, name, hash); err != nil {
			return nil, fmt.Errorf("creating account %s: %w", email, err)
		}
		slog.Info("account created", "email", email)
		created = append(created, credentials{email: email, password: password})
	}
	return created, nil
}

func printCredentials(created []credentials) {
	if len(created) == 0 {
		return
	}
	fmt.Println("Admin accounts created:")
	for _, c := range created {
		fmt.Printf("  %s  %s\n", c.email, c.password)
	}
	fmt.Println()
	fmt.Println("Save these passwords, they cannot be recovered.")
	fmt.Println("They can be changed after logging in.")
	fmt.Println()
}

func purgeRevokedTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Warn("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("revoked tokens purged", "count", n)
			}
		}
	}
}
