package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fleetportal/internal/access"
	"fleetportal/internal/agent"
	"fleetportal/internal/auth"
	"fleetportal/internal/config"
	"fleetportal/internal/httpserver"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/hub"
	"fleetportal/internal/logger"
	"fleetportal/internal/redis"
	"fleetportal/internal/scheduler"
	"fleetportal/internal/statuscache"
	"fleetportal/internal/store"
	redisstore "fleetportal/internal/store/redis"
	"fleetportal/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       *store.Store
	cache       *statuscache.Cache
	hub         *hub.Hub
	liveness    *scheduler.LivenessMonitor
	redisClient *goredis.Client
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		loggerClient.Errorf("Failed to open database %s: %v", cfg.DatabasePath, err)
		os.Exit(1)
	}
	loggerClient.Info("database opened", logger.String("path", cfg.DatabasePath))

	cache := statuscache.New(loggerClient, cfg.StatusEventQueue)

	// Redis mirror is optional. Without it the portal simply starts cold.
	var redisClient *goredis.Client
	var mirror *redisstore.Mirror
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		mirror = redisstore.NewMirror(redisClient, cfg.SnapshotTTL)

		// Warm the cache from mirrored snapshots so a restart doesn't blank
		// the dashboard until the next report cycle.
		if snapshots, err := mirror.AllSnapshots(context.Background()); err != nil {
			loggerClient.Warn("failed to warm cache from redis", logger.Error(err))
		} else {
			for hostID, report := range snapshots {
				cache.Update(hostID, report)
			}
			loggerClient.Info("cache warmed from redis", logger.Int("snapshots", len(snapshots)))
		}
	} else {
		loggerClient.Info("redis not configured, snapshot mirroring disabled")
	}

	hubClient := hub.New(loggerClient, cache.All)
	cache.Subscribe(hubClient.OnStatus)
	if mirror != nil {
		m := mirror
		cache.Subscribe(func(ev statuscache.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if ev.Report == nil {
				if err := m.DeleteSnapshot(ctx, ev.HostID); err != nil {
					loggerClient.Warn("snapshot mirror delete failed",
						logger.String("host_id", ev.HostID),
						logger.Error(err),
					)
				}
				return
			}
			if err := m.SaveSnapshot(ctx, ev.HostID, ev.Report); err != nil {
				loggerClient.Warn("snapshot mirror write failed",
					logger.String("host_id", ev.HostID),
					logger.Error(err),
				)
			}
		})
	}

	liveness := scheduler.NewLivenessMonitor(st, loggerClient, cfg.SweepPeriod, cfg.StaleThreshold)

	d := deps.Deps{
		Logger:     loggerClient,
		StartTime:  time.Now(),
		Version:    version.Version,
		Commit:     version.Commit,
		BuildDate:  version.BuildDate,
		GoVersion:  version.GoVersion,
		TimeNow:    time.Now,
		Store:      st,
		Cache:      cache,
		Resolver:   access.NewResolver(st),
		Dispatcher: agent.NewDispatcher(loggerClient, cfg.AgentTimeout),
		Hub:        hubClient,
		OAuth:      auth.NewDiscord(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURI, loggerClient),
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		store:       st,
		cache:       cache,
		hub:         hubClient,
		liveness:    liveness,
		redisClient: redisClient,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Fleet Portal v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Fleet Portal %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.cache.Start(ctx); err != nil {
		return fmt.Errorf("failed to start status cache: %w", err)
	}
	go a.hub.Run()

	a.liveness.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop producers before consumers: no more sweeps or events, then the
	// fan-out, then the listeners.
	a.liveness.Stop()
	a.cache.Stop()
	a.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
	}

	a.logger.Info("✅ Fleet Portal stopped cleanly")
	return nil
}
