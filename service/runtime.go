// Package service wires the configured collaborators of the generation core
// for the command-line entry points.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/blob"
	"github.com/itakecare/leazr-docgen/config"
	"github.com/itakecare/leazr-docgen/generate"
	"github.com/itakecare/leazr-docgen/htmlpdf"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/resolve"
	"github.com/itakecare/leazr-docgen/store"
)

// Runtime holds the long-lived collaborators built from a configuration.
type Runtime struct {
	Config      *config.Config
	Settings    docgen.Settings
	Logger      *zap.Logger
	DB          *gorm.DB
	Templates   store.TemplateStore
	Files       *blob.Filesystem
	Backgrounds blob.Store
	Formatter   *resolve.Formatter
	Generator   *generate.Generator

	redis *redis.Client
}

// New opens the database, migrates it when configured, and builds the blob
// stores and generator.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	log = logger.OrNop(log)
	settings := docgen.NewSettings(cfg.Render.Options()...)
	r := &Runtime{Config: cfg, Settings: settings, Logger: log}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	r.DB = db
	templates := store.NewGorm(db, log)
	if cfg.Database.AutoMigrate {
		if err := templates.Migrate(ctx); err != nil {
			r.Close()
			return nil, err
		}
	}
	r.Templates = templates

	files, err := blob.NewFilesystem(cfg.Storage.BasePath, log)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("service: storage: %w", err)
	}
	r.Files = files

	remote := blob.NewHTTP(nil, blob.DefaultMaxBytes)
	var backgrounds blob.Store = blob.NewRouter(files).
		Handle("http", remote).
		Handle("https", remote)
	if cfg.Redis.Enabled {
		r.redis = blob.NewRedisClient(cfg.Redis)
		if err := r.redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, background cache degraded", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		backgrounds = blob.NewCache(backgrounds, r.redis, cfg.Redis.TTL, log)
	}
	r.Backgrounds = backgrounds

	r.Formatter = resolve.NewFormatter(settings.Locale, settings.DefaultCurrency)
	r.Generator = generate.New(templates,
		generate.NewOverlayBackend(backgrounds, settings, log),
		generate.NewMarkupBackend(htmlpdf.New(settings, log), settings, log),
		log)

	log.Info("runtime ready",
		zap.String("database", cfg.Database.Type),
		zap.String("storage", cfg.Storage.BasePath),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.String("locale", settings.Locale))
	return r, nil
}

// Close releases the database and cache connections.
func (r *Runtime) Close() error {
	var errs []error
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	return errors.Join(errs...)
}
