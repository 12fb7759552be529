package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"zeek-gateway/internal/config"
	"zeek-gateway/internal/provider"
	"zeek-gateway/internal/ratelimit"
	"zeek-gateway/internal/server"
	"zeek-gateway/internal/upstream"
)

const serveUsage = `Usage:
  zeek-gateway serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to optional YAML configuration file (overrides environment)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to optional configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	client := upstream.NewClient()
	registry := provider.NewRegistry(client)
	limiter := ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultLimit)

	srv, err := server.New(cfg, registry, limiter, client)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
