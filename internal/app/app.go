package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/voyago/travelcore/internal/config"
	"github.com/voyago/travelcore/internal/db"
	"github.com/voyago/travelcore/internal/http/api"
	"github.com/voyago/travelcore/internal/ledger"
	"github.com/voyago/travelcore/internal/planstore"
	"github.com/voyago/travelcore/internal/policysync"
	"github.com/voyago/travelcore/internal/ratelimit"
	"github.com/voyago/travelcore/internal/watcher"
)

// ConfigExists reports whether the config file is present.
func ConfigExists(configPath string) bool {
	info, errStat := os.Stat(configPath)
	return errStat == nil && !info.IsDir()
}

// Migrate opens the database, applies the schema and seeds default policies.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components and blocks
// until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	cw := watcher.NewConfigWatcher(configPath)
	cw.Start(ctx)

	store := planstore.NewStore(conn)
	lgr := ledger.NewLedger(conn)
	windows := ratelimit.NewManager(lgr, func() ratelimit.Settings {
		redisCfg := cw.Redis()
		return ratelimit.Settings{
			RedisEnabled:  redisCfg.Enabled,
			RedisAddr:     redisCfg.Addr,
			RedisPassword: redisCfg.Password,
			RedisDB:       redisCfg.DB,
			RedisPrefix:   redisCfg.Prefix,
		}
	}, nil, nil)
	governor := ratelimit.NewGovernor(conn, windows, nil)

	if syncCfg := config.LoadPolicySyncConfig(configPath); syncCfg.URL != "" {
		syncer := policysync.NewSyncer(conn, syncCfg.URL, time.Duration(syncCfg.IntervalMinutes)*time.Minute)
		syncer.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api.Register(router, api.Deps{
		DB:       conn,
		Store:    store,
		Ledger:   lgr,
		Governor: governor,
		Windows:  windows,
	})

	port := config.LoadPort(configPath, defaultPort)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", port).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
