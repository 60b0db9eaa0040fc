package main

import (
	"context"
	"flag"
	"fmt"
	"time"
)

func runRefreshCommand(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	configPath := fs.String("config", "", "explicit config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := initRuntime(*configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rt.store.Refresh(ctx)
	if msg := rt.store.LastError(); msg != "" {
		return fmt.Errorf("%s", msg)
	}

	tickets := rt.store.Tickets()
	fmt.Printf("%d tickets\n", len(tickets))
	for _, t := range tickets {
		fmt.Printf("  #%s  %-8s %-8s %s\n", t.ID, t.Status, t.Severity, t.Subject)
	}
	return nil
}
