package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/auth"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/config"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/database"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/logging"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/proposals"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/server"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hive-explorer-api",
		Short: "Hive proposal explorer backend service",
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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("hive-api-url", defaults.GetString("hive.api_url"), "Hive JSON-RPC endpoint")
	cmd.PersistentFlags().String("keychain-relay-url", defaults.GetString("keychain.relay_url"), "Signing relay base URL")
	cmd.PersistentFlags().Int("flow-timeout-seconds", defaults.GetInt("flow.timeout_seconds"), "Seconds to wait for a signature")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("write-rate", defaults.GetString("ratelimit.writes"), "Write rate limit per client, e.g. 30-M")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "hive.api_url", "hive-api-url")
	bindFlag(cmd, "keychain.relay_url", "keychain-relay-url")
	bindFlag(cmd, "flow.timeout_seconds", "flow-timeout-seconds")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "ratelimit.writes", "write-rate")
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

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	cacheCtx, cancelCache := context.WithCancel(context.Background())
	defer cancelCache()
	responseCache, err := hive.NewBigCache(cacheCtx, appConfig.HiveCacheTTL)
	if err != nil {
		return err
	}
	defer responseCache.Close() //nolint:errcheck

	chain := hive.NewClient(hive.ClientConfig{
		Endpoint:       appConfig.HiveAPIURL,
		RequestTimeout: appConfig.HiveRequestTimeout,
		CategoryTags:   proposals.Categories,
		Cache:          responseCache,
		Logger:         logger,
	})

	var provider keychain.Provider
	if relay := keychain.NewRelayProvider(keychain.RelayConfig{
		URL:     appConfig.KeychainRelayURL,
		Timeout: appConfig.FlowTimeout,
		Logger:  logger,
	}); relay != nil {
		provider = relay
	} else {
		logger.Warn("keychain relay not configured, signing requests will be refused")
	}
	bridge := keychain.NewBridge(keychain.BridgeConfig{
		Provider: provider,
		Logger:   logger,
	})

	verifier, err := auth.NewKeychainVerifier(auth.KeychainVerifierConfig{
		Signer: bridge,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		TokenTTL:      appConfig.SessionTokenTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	accountService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}
	journalService, err := journal.NewService(journal.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: journal.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	dispatcher := server.NewNotificationDispatcher()
	registry, err := flow.NewRegistry(flow.RegistryConfig{
		Chain:           chain,
		Signer:          bridge,
		Recorder:        journalService,
		Publisher:       dispatcher,
		Timeout:         appConfig.FlowTimeout,
		NotificationTTL: appConfig.NotificationTTL,
		IdleTTL:         appConfig.ControllerIdleTTL,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier:   verifier,
		Tokens:     tokenIssuer,
		Sessions:   sessionValidator,
		Accounts:   accountService,
		Registry:   registry,
		Journal:    journalService,
		Dispatcher: dispatcher,
		WriteRate:  appConfig.WriteRateLimit,
		Logger:     logger,
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
			zap.String("hive_api", appConfig.HiveAPIURL),
			zap.Bool("signing_enabled", bridge.Available()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := registry.Drain(shutdownCtx); err != nil {
			logger.Warn("outstanding signing requests abandoned at shutdown", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		return err
	}
}
