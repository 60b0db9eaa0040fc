package main

import (
	"fmt"
	"os"

	"github.com/ubitech/deskmate/pkg/agent"
	"github.com/ubitech/deskmate/pkg/audit"
	"github.com/ubitech/deskmate/pkg/bus"
	"github.com/ubitech/deskmate/pkg/config"
	"github.com/ubitech/deskmate/pkg/gateway"
	"github.com/ubitech/deskmate/pkg/logging"
	"github.com/ubitech/deskmate/pkg/model"
	"github.com/ubitech/deskmate/pkg/session"
	"github.com/ubitech/deskmate/pkg/store"
	"github.com/ubitech/deskmate/pkg/tool"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// loadConfigFn allows tests to stub configuration loading.
var loadConfigFn = config.Load

func main() {
	os.Exit(dispatchSubcommand(os.Args[1:]))
}

func dispatchSubcommand(args []string) int {
	if len(args) == 0 {
		printHelp()
		return 0
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return 0
	case "--help", "-h", "help":
		printHelp()
		return 0
	case "serve":
		return runCommand(runServeCommand, args[1:])
	case "chat":
		return runCommand(runChatCommand, args[1:])
	case "refresh":
		return runCommand(runRefreshCommand, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		return 1
	}
}

func runCommand(run func(args []string) error, args []string) int {
	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("deskmate %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Print(`deskmate - conversational IT helpdesk agent

Usage:
  deskmate serve [--bind addr] [--config path]   run the HTTP API
  deskmate chat [--config path]                  interactive terminal session
  deskmate refresh [--config path]               pull the latest snapshot and print it
  deskmate version                               print version information

Configuration is read from ~/.deskmate/config.yaml, then ./.deskmate/config.yaml,
then environment variables (DESKMATE_MODEL_API_KEY, DESKMATE_GATEWAY_URL, ...).
`)
}

// runtime bundles the wired subsystems a subcommand needs.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	gw        *gateway.Client
	store     *store.Store
	responder *agent.Responder
	sessions  *session.Manager
	eventBus  bus.MessageBus
}

func (rt *runtime) close() {
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.eventBus != nil {
		rt.eventBus.Close()
	}
	if rt.logger != nil {
		rt.logger.Close()
	}
}

func initRuntime(configPath string) (*runtime, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = loadConfigFn()
	}
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, "")
	if err != nil {
		logger = logging.NewNopLogger()
	}
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	gw := gateway.NewClient(cfg.Gateway.URL,
		gateway.WithTimeout(cfg.Gateway.Timeout.Duration),
		gateway.WithLogger(logger),
	)

	eventBus, err := newBus(cfg)
	if err != nil {
		logger.Close()
		return nil, err
	}

	st := store.New(gw,
		store.WithBus(eventBus),
		store.WithLogger(logger),
		store.WithDelays(cfg.Store.CreateRefreshDelay.Duration, cfg.Store.MutateRefreshDelay.Duration),
	)

	registry := tool.NewRegistry(logger)
	tool.RegisterTicketTools(registry, st)

	client := model.NewClient(cfg.Model.APIKey, cfg.Model.BaseURL, cfg.Model.Model)

	responder := agent.NewResponder(client, registry,
		agent.WithLogger(logger),
		agent.WithAuditSink(audit.NewGatewaySink(gw, logger)),
		agent.WithMaxHistory(cfg.Model.MaxHistory),
		agent.WithTemperature(cfg.Model.Temperature),
	)

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		gw:        gw,
		store:     st,
		responder: responder,
		sessions:  session.NewManager(),
		eventBus:  eventBus,
	}, nil
}

func newBus(cfg *config.Config) (bus.MessageBus, error) {
	switch cfg.Bus.Kind {
	case "nats":
		busCfg := bus.DefaultConfig()
		busCfg.URL = cfg.Bus.URL
		return bus.NewNATSBus(busCfg)
	default:
		return bus.NewMemoryBus(), nil
	}
}
