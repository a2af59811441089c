package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/agents"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/api"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/config"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/executor"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/metrics"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/orchestrator"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/planner"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/remote"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/service"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/state"
)

// app wires the coordination core together for the CLI.
type app struct {
	cfg           *config.Config
	db            *state.DB
	conversations *service.ConversationService
	tasks         *service.TaskService
	registry      *agents.Registry
	connections   *remote.Connections
	emitter       *response.Emitter
	metrics       *metrics.Metrics
	orchestrator  *orchestrator.Orchestrator
	debugLogger   *orchestrator.DebugLogger
}

// buildApp loads configuration and assembles the full stack.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	conversations := service.NewConversationService(db)
	tasks := service.NewTaskService(db)

	registry := agents.NewRegistry()
	if cfg.Agents.ManifestPath != "" {
		if err := registry.LoadManifest(cfg.Agents.ManifestPath); err != nil {
			log.Printf("[app] agent manifest: %v", err)
		} else if cfg.Agents.WatchManifest {
			if err := registry.WatchManifest(cfg.Agents.ManifestPath); err != nil {
				log.Printf("[app] agent manifest watch: %v", err)
			}
		}
	}

	connections := remote.NewConnections(func(agentName string) (remote.Client, error) {
		card, err := registry.Get(agentName)
		if err != nil {
			return nil, err
		}
		return remote.NewWSClient(card.URL), nil
	})

	emitter := response.NewEmitter(conversations, 256)
	m := metrics.New()
	m.ObserveEmitter(emitter)
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, m)
	}

	apiKey, err := config.GetAPIKey(cfg)
	if !cfg.Anthropic.UseAWSBedrock {
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := config.ValidateAPIKey(apiKey); err != nil {
			db.Close()
			return nil, fmt.Errorf("anthropic api key: %w", err)
		}
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	plans := planner.NewPlanService()
	p := planner.New(client, registry, plans, conversations)

	exec := executor.New(tasks, conversations, connections, emitter,
		executor.WithLocale(cfg.Locale.Language, cfg.Locale.Timezone),
		executor.WithPollInterval(cfg.Orchestrator.SchedulePollInterval))

	orch := orchestrator.New(p, plans, exec, conversations, emitter,
		orchestrator.WithContextTimeout(cfg.Orchestrator.ContextTimeout),
		orchestrator.WithObservers(m.PlansCreated.Inc, func(n int) {
			m.ContextsExpired.Add(float64(n))
		}))

	debugLogger, err := orchestrator.NewDebugLogger(orchestrator.DefaultLogPath())
	if err != nil {
		log.Printf("[app] debug log unavailable: %v", err)
		debugLogger = orchestrator.NopLogger()
	}
	orchestrator.SetDebugLogger(debugLogger)

	return &app{
		cfg:           cfg,
		db:            db,
		conversations: conversations,
		tasks:         tasks,
		registry:      registry,
		connections:   connections,
		emitter:       emitter,
		metrics:       m,
		orchestrator:  orch,
		debugLogger:   debugLogger,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	a.registry.Close()
	if err := a.connections.Close(); err != nil {
		log.Printf("[app] close connections: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Printf("[app] close database: %v", err)
	}
	if err := a.debugLogger.Close(); err != nil {
		log.Printf("[app] close debug log: %v", err)
	}
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[app] metrics endpoint: %v", err)
		}
	}()
}
