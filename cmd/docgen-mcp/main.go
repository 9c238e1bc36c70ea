// Command docgen-mcp is a Model Context Protocol server over stdio exposing
// template selection, field resolution and document generation.
//
//	{
//	  "mcpServers": {
//	    "docgen": {
//	      "command": "docgen-mcp",
//	      "args": ["-config", "/etc/docgen/config.yaml"]
//	    }
//	  }
//	}
//
// # Tools
//
//   - generate_document: render a tenant's document, base64 or to a file
//   - select_template: show which template serves a request
//   - list_templates: list a tenant's templates
//   - analyze_background: page count and sizes of a background PDF
//   - resolve_field: the value a field displays for a record
//   - sample_record: the synthetic preview record
//
// # Resources
//
//   - docgen://sample-record
//   - templates://{tenant}
//   - template://{tenant}/{id}
//
// Stdout carries the protocol, so logs go to the configured file only.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/itakecare/leazr-docgen/config"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/mcp"
	"github.com/itakecare/leazr-docgen/service"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "docgen-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Log.Stdout = false
	if cfg.Log.Filename == "" {
		cfg.Log.Filename = "logs/docgen-mcp.log"
	}
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := service.New(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := mcp.NewServer("leazr-docgen", version, zlog)
	svc := mcp.Services{
		Generator: rt.Generator,
		Templates: rt.Templates,
		Blobs:     rt.Backgrounds,
		Formatter: rt.Formatter,
	}
	mcp.RegisterTools(server, svc)
	mcp.RegisterResources(server, svc)

	zlog.Info("mcp server started", zap.String("version", version))
	return server.Run(ctx)
}
