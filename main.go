package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vtube/pkg/media"
	"vtube/pkg/token"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config (env vars override)")
	migrateOnly := flag.Bool("migrate", false, "run schema migration and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := initDB(cfg.DB)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	if *migrateOnly {
		logger.Info("migration completed")
		return
	}

	mediaStore, err := media.NewS3Store(context.Background(), cfg.mediaConfig())
	if err != nil {
		logger.Fatal("media store init failed", zap.Error(err))
	}

	store := newGormUserStore(db)
	codec := token.New(cfg.tokenConfig())
	sessions := newSessionManager(store, codec, logger)
	srv := newServer(cfg, logger, store, sessions, codec, mediaStore)

	r := gin.New()
	r.Use(gin.Recovery())
	srv.setupRoutes(r)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Info("http listening", zap.String("addr", cfg.Server.Addr))
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
