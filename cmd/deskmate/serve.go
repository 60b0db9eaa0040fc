package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ubitech/deskmate/pkg/server"
)

func runServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	bind := fs.String("bind", "", "address to bind the HTTP API (overrides config)")
	configPath := fs.String("config", "", "explicit config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := initRuntime(*configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	addr := rt.cfg.Server.Bind
	if *bind != "" {
		addr = *bind
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the cache before accepting traffic. A failure here is not fatal,
	// the store surfaces it through lastError.
	rt.store.Refresh(ctx)

	srv := server.New(rt.responder, rt.store, rt.gw, rt.sessions, rt.logger)
	fmt.Printf("deskmate listening on %s\n", addr)
	return srv.Run(ctx, addr)
}
