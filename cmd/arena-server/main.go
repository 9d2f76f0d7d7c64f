package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena-server/internal/archive"
	appcfg "github.com/park285/chess-arena-server/internal/config"
	"github.com/park285/chess-arena-server/internal/hub"
	"github.com/park285/chess-arena-server/internal/obslog"
	"github.com/park285/chess-arena-server/internal/ops"
	"github.com/park285/chess-arena-server/internal/rules"
	"github.com/park285/chess-arena-server/internal/session"
	"github.com/park285/chess-arena-server/internal/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	h := hub.New(rules.NewAdapter())
	h.SetMaxSessions(cfg.MaxSessions)
	h.SetSendTimeout(time.Duration(cfg.SendTimeoutSec) * time.Second)

	// Redis snapshots and the postgres archive are optional: leave the URL
	// empty to run in-memory only.
	var store *session.Store
	if cfg.RedisURL != "" {
		store, err = session.NewStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		h.AttachStore(store)
	}
	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		h.AttachArchive(repo)
	}

	wsServer := ws.NewServer(h, cfg.AllowedOrigins, time.Duration(cfg.SendTimeoutSec)*time.Second)
	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		obslog.L().Info("listen", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	var opsSrv *ops.Server
	if cfg.OpsAddr != "" {
		opsSrv = ops.NewServer(h.Stats)
		go func() {
			obslog.L().Info("ops_listen", zap.String("addr", cfg.OpsAddr))
			if err := opsSrv.ListenAndServe(cfg.OpsAddr); err != nil {
				obslog.L().Error("ops_listen_error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutdown_signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	if opsSrv != nil {
		_ = opsSrv.Shutdown()
	}
	if store != nil {
		_ = store.Close()
	}
	if repo != nil {
		_ = repo.Close()
	}
}
