package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrbrentonwest/qwirkle-companion/internal/broadcast"
	"github.com/mrbrentonwest/qwirkle-companion/internal/cache"
	"github.com/mrbrentonwest/qwirkle-companion/internal/config"
	"github.com/mrbrentonwest/qwirkle-companion/internal/database"
	"github.com/mrbrentonwest/qwirkle-companion/internal/identity"
	"github.com/mrbrentonwest/qwirkle-companion/internal/oracle"
	"github.com/mrbrentonwest/qwirkle-companion/internal/session"
	"github.com/mrbrentonwest/qwirkle-companion/internal/store"
	"github.com/mrbrentonwest/qwirkle-companion/internal/web"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	cfg := config.Load()

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancel()
		logrus.WithError(err).Fatal("migration failed")
	}
	cancel()

	notifier, err := cache.NewNotifier(ctx, cfg.RedisAddr, cfg.RedisPass)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to redis")
	}
	defer notifier.Close()

	ident := identity.NewService()
	ident.OnIdentityChange(func(userID string) {
		logrus.WithField("userId", userID).Debug("identity changed")
	})

	games := store.New(db)
	hub := broadcast.NewHub()
	sessions := session.NewManager(games, notifier, hub, cfg.PersistDebounce)
	defer sessions.Close()

	oracleClient := oracle.NewClient(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleModel)

	handler := web.NewHandler(sessions, games, oracleClient, ident, cfg.JWTSecret)
	router := web.NewRouter(handler, sessions, hub, []byte(cfg.JWTSecret))

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		logrus.WithField("addr", cfg.Addr).Info("qwirkle companion listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logrus.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("graceful shutdown failed")
	}
}
