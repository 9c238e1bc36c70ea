// Command docgen-server serves the document generation HTTP API.
//
//	docgen-server -config /etc/docgen/config.yaml
//
// Every setting can be overridden with a DOCGEN_* environment variable,
// e.g. DOCGEN_SERVER_PORT=9090 or DOCGEN_RENDER_LOCALE=en.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/itakecare/leazr-docgen/api"
	"github.com/itakecare/leazr-docgen/config"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/service"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("docgen-server: %v", err)
	}
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("docgen-server: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	rt, err := service.New(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("runtime init failed", zap.Error(err))
	}
	defer rt.Close()

	srv := api.New(cfg.Server, api.Deps{
		Generator:     rt.Generator,
		Templates:     rt.Templates,
		Blobs:         rt.Files,
		MaxUploadSize: cfg.Storage.MaxUploadSizeBytes(),
	}, zlog)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		zlog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zlog.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Listen(); err != nil {
		zlog.Error("server stopped", zap.Error(err))
		return
	}
	zlog.Info("server stopped")
}
