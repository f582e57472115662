package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/gazette/internal/config"
	"github.com/MarcoPoloResearchLab/gazette/internal/database"
	"github.com/MarcoPoloResearchLab/gazette/internal/identity"
	"github.com/MarcoPoloResearchLab/gazette/internal/logging"
	"github.com/MarcoPoloResearchLab/gazette/internal/posts"
	"github.com/MarcoPoloResearchLab/gazette/internal/server"
	"github.com/MarcoPoloResearchLab/gazette/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gazette-api",
		Short: "Gazette blog backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("storage-backend", defaults.GetString("storage.backend"), "Storage backend (file, sqlite)")
	cmd.PersistentFlags().String("storage-path", defaults.GetString("storage.path"), "Path to the document file or SQLite database")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Bearer token validity window")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("cors-allowed-origins", defaults.GetString("cors.allowed_origins"), "Comma-separated CORS origins")
	cmd.PersistentFlags().Bool("ratelimit-enabled", defaults.GetBool("ratelimit.enabled"), "Rate limit the signup/signin routes")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.backend", "storage-backend")
	bindFlag(cmd, "storage.path", "storage-path")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "cors.allowed_origins", "cors-allowed-origins")
	bindFlag(cmd, "ratelimit.enabled", "ratelimit-enabled")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newStore(cfg config.AppConfig, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.StoragePath, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		documentStore, err := database.NewDocumentStore(db, logger)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return documentStore, func() { sqlDB.Close() }, nil
	default:
		fileStore, err := store.NewFileStore(store.FileStoreConfig{Path: cfg.StoragePath, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return fileStore, func() {}, nil
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	documentStore, closeStore, err := newStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenManager, err := identity.NewTokenManager(identity.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "gazette-auth",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	identityService, err := identity.NewService(identity.ServiceConfig{
		Store:  documentStore,
		Tokens: tokenManager,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	postRepository, err := posts.NewRepository(posts.RepositoryConfig{
		Clock:      time.Now,
		IDProvider: posts.NewUUIDProvider(),
	})
	if err != nil {
		return err
	}

	var rateLimiter *server.RateLimiter
	if appConfig.RateLimit {
		rateLimiter = server.NewRateLimiter(server.DefaultRateLimiterConfig())
		defer rateLimiter.Stop()
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:          documentStore,
		Identity:       identityService,
		Tokens:         tokenManager,
		Posts:          postRepository,
		Events:         server.NewPostEventBroker(),
		Metrics:        server.NewMetrics(),
		RateLimiter:    rateLimiter,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("storage_backend", appConfig.StorageBackend))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
