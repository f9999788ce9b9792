package cli

import (
	"fmt"

	"agentric/internal/audit"
	"agentric/internal/config"
	"agentric/internal/gateway"
	"agentric/internal/kv"
	"agentric/internal/llm_client"
	"agentric/internal/logger"
	"agentric/internal/mission"
	"agentric/internal/provider"
	"agentric/internal/roster"
	"agentric/internal/tools"
)

// app is the wired engine shared by the REPL and the HTTP server.
type app struct {
	cfg     *config.Config
	backend kv.KV
	store   *audit.Store
	orch    *mission.Orchestrator
	sandbox *tools.DaggerRunner
}

func openStore(cfg *config.Config) (kv.KV, error) {
	if cfg.Audit.Backend == config.AuditMemory {
		return kv.NewMemory(), nil
	}
	db, err := kv.OpenSQLite(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open audit store: %w", err)
	}
	return db, nil
}

func newApp(cfg *config.Config) (*app, error) {
	backend, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, backend: backend, store: audit.New(backend)}

	// A bad roster keeps the engine up but unusable; Send reports the error.
	r, rosterErr := roster.Load(cfg.Roster)
	if rosterErr != nil {
		logger.Log.Error().Err(rosterErr).Str("path", cfg.Roster).Msg("roster load failed")
	}

	var dispatcher tools.Dispatcher = tools.NewLocalRunner(cfg.ToolOptions(), tools.RealExecutor{})
	if cfg.Tools.Sandbox == config.SandboxDagger {
		a.sandbox = tools.NewDaggerRunner(cfg.Tools.SandboxImage, cfg.Tools.Timeout, dispatcher)
		dispatcher = a.sandbox
	}

	providers := provider.NewSwitch(cfg.Providers())
	gw := gateway.New(gateway.Deps{
		Providers: providers,
		Pool:      llm_client.NewPool(),
		Tools:     dispatcher,
		Rules:     cfg.Planner,
	})

	a.orch = mission.New(mission.Deps{
		Roster:    r,
		RosterErr: rosterErr,
		Engine:    gw,
		Audit:     a.store,
		Providers: providers,
		Cooldown:  cfg.Cooldown,
	})
	return a, nil
}

func (a *app) Close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.sandbox != nil {
		_ = a.sandbox.Close()
	}
	if a.backend != nil {
		_ = a.backend.Close()
	}
}
