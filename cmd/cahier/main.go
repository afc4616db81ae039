// CLAUDE:SUMMARY Point d'entrée du service cahier — config YAML+env, sqlite, shield, auth JWT, API chi, MCP stdio optionnel.
package main

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/cahier/assist"
	"github.com/hazyhaar/cahier/auth"
	"github.com/hazyhaar/cahier/blob"
	"github.com/hazyhaar/cahier/config"
	"github.com/hazyhaar/cahier/docimport"
	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/server"
	"github.com/hazyhaar/cahier/shield"
	"github.com/hazyhaar/cahier/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch env("LOG_LEVEL", cfg.LogLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	secretInput := env("SESSION_SECRET", cfg.Auth.SessionSecret)
	if secretInput == "" {
		slog.Error("SESSION_SECRET is required")
		os.Exit(1)
	}
	// Derive a 32-byte JWT secret via SHA-256 (satisfies safe.MinSecretLen).
	secretHash := sha256.Sum256([]byte(secretInput))
	jwtSecret := string(secretHash[:])

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Database.
	db, err := store.Open(env("DB_PATH", cfg.DBPath))
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.ApplySchema(db); err != nil {
		slog.Error("apply schema", "error", err)
		os.Exit(1)
	}
	if err := shield.Init(db); err != nil {
		slog.Error("shield init", "error", err)
		os.Exit(1)
	}
	if err := observability.Init(db); err != nil {
		slog.Error("observability init", "error", err)
		os.Exit(1)
	}

	st := store.NewStore(db)
	if err := seedAdmin(ctx, st); err != nil {
		slog.Error("seed admin", "error", err)
		os.Exit(1)
	}

	events := observability.NewEventLogger(db)

	// Retention cleanup, once a day.
	go func() {
		tick := time.NewTicker(24 * time.Hour)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				retention := observability.RetentionConfig{EventLogsDays: cfg.Retention.EventLogsDays}
				if err := observability.Cleanup(ctx, db, retention); err != nil {
					slog.Warn("retention cleanup", "error", err)
				}
			}
		}
	}()

	// Assistant (optional — AI endpoints return 503 without it).
	var assistant server.Assistant
	apiKey := env("ANTHROPIC_API_KEY", cfg.Assistant.APIKey)
	if apiKey != "" {
		client, err := assist.New(assist.Config{
			APIKey:    apiKey,
			Model:     cfg.Assistant.Model,
			BaseURL:   cfg.Assistant.BaseURL,
			MaxTokens: cfg.Assistant.MaxTokens,
		})
		if err != nil {
			slog.Error("assistant client", "error", err)
			os.Exit(1)
		}
		assistant = client
	} else {
		slog.Warn("no assistant API key, AI endpoints disabled")
	}

	// Object storage (optional — media endpoints return 503 without it).
	var blobs server.BlobStore
	if cfg.Storage.Endpoint != "" {
		bs, err := blob.New(ctx, blob.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: env("S3_ACCESS_KEY", cfg.Storage.AccessKey),
			SecretKey: env("S3_SECRET_KEY", cfg.Storage.SecretKey),
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			slog.Error("object storage", "error", err)
			os.Exit(1)
		}
		blobs = bs
	} else {
		slog.Warn("no storage endpoint, media endpoints disabled")
	}

	importer := docimport.New(docimport.Config{
		MaxFileSize: cfg.MaxImportBytes(),
		BaseDir:     env("MCP_IMPORT_DIR", ""),
		Logger:      logger,
	})

	api := server.New(server.Config{
		Store:         st,
		Importer:      importer,
		Assistant:     assistant,
		Blobs:         blobs,
		Events:        events,
		Logger:        logger,
		JWTSecret:     jwtSecret,
		TokenTTL:      time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
		CookieDomain:  cfg.Auth.CookieDomain,
		SecureCookies: cfg.Auth.SecureCookies,
		MaxImportSize: cfg.MaxImportBytes(),
		MaxMediaSize:  cfg.MaxMediaBytes(),
	})

	// Optional MCP stdio transport: expose the import pipeline to agent
	// tooling, then exit when the client disconnects.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "cahier",
			Version: "1.0.0",
		}, nil)
		importer.RegisterMCP(mcpSrv)
		slog.Info("MCP stdio serving")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	// Router.
	r := chi.NewRouter()
	stack, rl := shield.DefaultAPIStack(db)
	for _, mw := range stack {
		r.Use(mw)
	}
	rl.StartReloader(ctx.Done())
	r.Use(auth.Middleware([]byte(jwtSecret)))
	r.Mount("/api", api.Router())

	srv := &http.Server{
		Addr:              env("LISTEN", cfg.Listen),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second, // SSE streams need headroom
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func loadConfig() (*config.Config, error) {
	path := env("CONFIG_PATH", "")
	if path == "" {
		cfg := config.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return config.LoadConfig(path)
}

// seedAdmin creates the initial admin account when the users table is empty.
// The generated password is logged once; change it after first login.
func seedAdmin(ctx context.Context, st *store.Store) error {
	count, err := st.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := env("ADMIN_PASSWORD", "")
	if password == "" {
		password = idgen.NanoID(16)()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &store.User{
		ID:           idgen.New(),
		Email:        env("ADMIN_EMAIL", "admin@cahier.local"),
		Name:         "admin",
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := st.CreateUser(ctx, admin); err != nil {
		return err
	}
	slog.Info("admin user seeded", "email", admin.Email, "password", password)
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
