package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/analytics"
	"github.com/ashenforge/buildshare/backend/internal/builds"
	"github.com/ashenforge/buildshare/backend/internal/config"
	"github.com/ashenforge/buildshare/backend/internal/database"
	"github.com/ashenforge/buildshare/backend/internal/feedback"
	"github.com/ashenforge/buildshare/backend/internal/logging"
	"github.com/ashenforge/buildshare/backend/internal/ratelimit"
	"github.com/ashenforge/buildshare/backend/internal/server"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "buildshare-api",
		Short: "BuildShare backend service",
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
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite or postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address (empty disables Redis)")
	cmd.PersistentFlags().String("website-url", defaults.GetString("website.url"), "Public website URL used for share links")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("ratelimit-enabled", defaults.GetBool("ratelimit.enabled"), "Enforce per-identity request budgets")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "website.url", "website-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "ratelimit.enabled", "ratelimit-enabled")
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

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var redisClient *goredis.Client
	if appConfig.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return err
		}
		logger.Info("redis connected", zap.String("address", appConfig.RedisAddr))
	}

	buildService, err := builds.NewService(builds.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: builds.NewHexIDProvider(),
		Logger:     logger,
		OpTimeout:  appConfig.StorageTimeout,
	})
	if err != nil {
		return err
	}

	feedbackService, err := feedback.NewService(feedback.ServiceConfig{
		Database:  db,
		Clock:     time.Now,
		Logger:    logger,
		OpTimeout: appConfig.StorageTimeout,
	})
	if err != nil {
		return err
	}

	analyticsConfig := analytics.ServiceConfig{
		Database:  db,
		Clock:     time.Now,
		Logger:    logger,
		OpTimeout: appConfig.StorageTimeout,
	}
	if redisClient != nil {
		analyticsConfig.Cache = analytics.NewRedisCache(redisClient)
		analyticsConfig.CacheTTL = appConfig.PopularCacheTTL
	}
	analyticsService, err := analytics.NewService(analyticsConfig)
	if err != nil {
		return err
	}

	var limiter *ratelimit.Limiter
	if appConfig.RateLimits.Enabled && redisClient != nil {
		limiter, err = ratelimit.NewLimiter(ratelimit.Config{
			Store: ratelimit.NewRedisStore(redisClient),
			Budgets: map[ratelimit.Class]int{
				ratelimit.ClassBuildCreate:    appConfig.RateLimits.BuildCreate,
				ratelimit.ClassVote:           appConfig.RateLimits.Vote,
				ratelimit.ClassFeedback:       appConfig.RateLimits.Feedback,
				ratelimit.ClassAnalyticsWrite: appConfig.RateLimits.AnalyticsWrite,
				ratelimit.ClassRead:           appConfig.RateLimits.Read,
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}
	} else if appConfig.RateLimits.Enabled {
		logger.Warn("rate limiting enabled but redis.addr is empty, budgets not enforced")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		BuildService:     buildService,
		FeedbackService:  feedbackService,
		AnalyticsService: analyticsService,
		Limiter:          limiter,
		WebsiteURL:       appConfig.WebsiteURL,
		Logger:           logger,
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
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
