package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/FocuswithJustin/bdoc/internal/api"
	"github.com/FocuswithJustin/bdoc/internal/store"
)

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port           int      `help:"HTTP server port; overrides server.port"`
	AllowedOrigins []string `name:"allowed-origins" help:"CORS and websocket origins; overrides server.allowed_origins"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	if c.Port > 0 {
		cfg.Server.Port = c.Port
	}
	if len(c.AllowedOrigins) > 0 {
		cfg.Server.AllowedOrigins = c.AllowedOrigins
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api.Version = version
	return api.New(cfg, st).ListenAndServe(ctx)
}
