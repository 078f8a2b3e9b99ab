package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/wardlink/wardlink/internal/config"
	"github.com/wardlink/wardlink/internal/discovery"
	"github.com/wardlink/wardlink/internal/logger"
	"github.com/wardlink/wardlink/internal/storage"
)

var (
	configPath = flag.String("config", "wardlink.yaml", "Path to the YAML config file")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error, fatal)")
	nodeName   = flag.String("name", "", "Override the configured node name")
	nodeType   = flag.String("type", "", "Override the configured node type (bedside, nurse-station, admin)")
	room       = flag.String("room", "", "Override the configured room")
	backendURL = flag.String("backend", "", "Override the configured relay URL")
)

func parseLogLevel(level string) logger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	case "fatal":
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}

func main() {
	flag.Parse()

	log, err := logger.NewWithFile("wardlink", "logs")
	if err != nil {
		panic(err)
	}
	defer log.Close()
	log.SetLevel(parseLogLevel(*logLevel))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}
	if *nodeName != "" {
		cfg.NodeName = *nodeName
	}
	if *nodeType != "" {
		cfg.NodeType = *nodeType
	}
	if *room != "" {
		cfg.Room = *room
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}

	var store storage.Store
	store, err = storage.NewFileStore(cfg.DataDir)
	if err != nil {
		// Degraded mode: nothing survives a restart, but discovery
		// still works for this run.
		log.Warn("Persistent storage unavailable (%v), running in-memory only", err)
		store = storage.NewMemStore()
	}
	defer store.Close()

	probe := discovery.NewStaticProbe(
		discovery.DefaultCapabilities(discovery.NodeType(cfg.NodeType))...)

	svc, err := discovery.NewService(cfg, store, probe, clock.New(), log)
	if err != nil {
		log.Fatal("Failed to create discovery service: %v", err)
	}

	unsubscribe := svc.Subscribe(func(nodes []*discovery.Node) {
		online := 0
		for _, n := range nodes {
			if n.Status == discovery.StatusOnline {
				online++
			}
		}
		log.Info("Roster changed: %d node(s) known, %d online", len(nodes), online)
	})
	defer unsubscribe()

	svc.Start()
	log.Info("Discovery running as %s, relay %s", svc.NodeID(), cfg.BackendURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal %v, shutting down", sig)

	svc.Stop()
}
