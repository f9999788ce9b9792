// Package gateway produces mission plans and executes single plan steps
// against the backend each agent requires.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"agentric/internal/llm_client"
	"agentric/internal/locallogic"
	"agentric/internal/logger"
	"agentric/internal/planner"
	"agentric/internal/provider"
	"agentric/internal/roster"
	"agentric/internal/tools"
)

var (
	ErrAuthorizationDenied = errors.New("operator denied execution")
	ErrImageNotConfigured  = errors.New("image generation is not configured")
)

// Route says how a plan was obtained.
type Route int

const (
	RouteNative Route = iota
	RouteLocalModel
	RouteRemoteModel
)

// Notice returns the operator-facing narration for a route.
func (r Route) Notice() string {
	switch r {
	case RouteLocalModel:
		return "Objective is complex. Routing to local Ollama server for planning..."
	case RouteRemoteModel:
		return "Objective is complex. Routing to Gemini API for planning..."
	}
	return "Objective appears simple. Using native planner..."
}

// Attachment is an image supplied with the objective.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// PlanRequest is the input to ProducePlan.
type PlanRequest struct {
	Objective string
	Team      []roster.Agent
	// Notify, if set, receives the routing notice before any model is called.
	Notify func(msg string)
}

func (r PlanRequest) notify(msg string) {
	if r.Notify != nil {
		r.Notify(msg)
	}
}

// StepRequest is everything needed to run one plan step.
type StepRequest struct {
	MissionID  string
	Agent      roster.Agent
	Task       string
	Context    string
	Attachment *Attachment

	// Authorize blocks until the operator decides. It returns
	// ErrAuthorizationDenied on denial. A nil Authorize denies.
	Authorize func(ctx context.Context) error
	// Notify, if set, receives narration produced while the step runs.
	Notify func(msg string)
}

func (r StepRequest) notify(msg string) {
	if r.Notify != nil {
		r.Notify(msg)
	}
}

type Deps struct {
	Providers *provider.Switch
	Pool      *llm_client.Pool
	Tools     tools.Dispatcher
	Rules     planner.Rules
}

type Gateway struct {
	providers *provider.Switch
	pool      *llm_client.Pool
	tools     tools.Dispatcher
	matcher   *planner.Matcher
	log       zerolog.Logger
}

func New(d Deps) *Gateway {
	if d.Providers == nil {
		d.Providers = provider.NewSwitch(provider.Config{})
	}
	if d.Pool == nil {
		d.Pool = llm_client.NewPool()
	}
	return &Gateway{
		providers: d.Providers,
		pool:      d.Pool,
		tools:     d.Tools,
		matcher:   planner.NewMatcher(d.Rules),
		log:       logger.Component("gateway"),
	}
}

func (g *Gateway) textProvider(cfg provider.Text) (llm_client.Provider, error) {
	if cfg.IsLocal() {
		return g.pool.Get(llm_client.Config{Backend: llm_client.BackendOllama, OllamaHost: cfg.Endpoint, Model: cfg.Model})
	}
	return g.pool.Get(llm_client.Config{Backend: llm_client.BackendGemini, Model: cfg.RemoteModel})
}

func textModel(cfg provider.Text) string {
	if cfg.IsLocal() {
		return cfg.Model
	}
	return cfg.RemoteModel
}

// ProducePlan tries the deterministic planner first and falls back to the
// configured text model. The route taken is announced through req.Notify.
func (g *Gateway) ProducePlan(ctx context.Context, req PlanRequest) (planner.Plan, error) {
	objective, team := req.Objective, req.Team
	if plan, ok := g.matcher.Match(objective, team); ok {
		g.log.Info().Int("steps", len(plan)).Msg("native plan")
		req.notify(RouteNative.Notice())
		return plan, nil
	}

	cfg := g.providers.Snapshot().Text
	route := RouteRemoteModel
	prompt := planner.RemotePlanPrompt(objective, team)
	var schema any = planner.PlanSchema
	if cfg.IsLocal() {
		route = RouteLocalModel
		prompt = planner.LocalPlanPrompt(objective, team)
		schema = nil
	}
	req.notify(route.Notice())

	prov, err := g.textProvider(cfg)
	if err != nil {
		return nil, err
	}
	g.log.Info().Str("provider", prov.Name()).Msg("model planning")

	text, err := prov.GenerateJSON(ctx, prompt, textModel(cfg), schema)
	if err != nil {
		return nil, err
	}
	plan, err := planner.ParseModelPlan(text)
	if err != nil {
		g.log.Warn().Err(err).Str("response", text).Msg("unusable plan response")
		return nil, err
	}
	return plan, nil
}

// ExecuteStep runs one step and returns its text result. Image results are
// data URIs.
func (g *Gateway) ExecuteStep(ctx context.Context, req StepRequest) (string, error) {
	switch req.Agent.Kind() {
	case roster.KindTool:
		return g.executeTool(ctx, req)
	case roster.KindLocalLogic:
		return locallogic.Execute(req.Agent.Name, req.Task, req.Context), nil
	case roster.KindModel:
		return g.executeModel(ctx, req)
	}
	return "", fmt.Errorf("agent %q has unknown kind", req.Agent.Name)
}

func (g *Gateway) executeTool(ctx context.Context, req StepRequest) (string, error) {
	tool := req.Agent.Tool
	if tool.RequiresAuthorization() {
		if req.Authorize == nil {
			return "", ErrAuthorizationDenied
		}
		if err := req.Authorize(ctx); err != nil {
			return "", err
		}
	}

	if tool == roster.ToolImageGeneration {
		return g.generateImage(ctx, req)
	}
	if g.tools == nil {
		return "", fmt.Errorf("%w: no tool runner configured", tools.ErrToolExecution)
	}
	return tools.Run(ctx, g.tools, tools.Request{Tool: tool, Task: req.Task, Input: req.Context})
}

func (g *Gateway) generateImage(ctx context.Context, req StepRequest) (string, error) {
	cfg := g.providers.Snapshot().Image
	switch cfg.Kind {
	case provider.KindLocal:
		req.notify("Using local model for image generation...")
		if g.tools == nil {
			return "", fmt.Errorf("%w: no tool runner configured", tools.ErrToolExecution)
		}
		return tools.Run(ctx, g.tools, tools.Request{
			Tool:  roster.ToolImageGeneration,
			Task:  req.Task,
			Input: req.Context,
			Image: &tools.ImageParams{ModelPath: cfg.ModelPath, Script: cfg.Script},
		})
	case provider.KindRemote:
		req.notify("Using Gemini API for image generation...")
		prov, err := g.pool.Get(llm_client.Config{Backend: llm_client.BackendGemini})
		if err != nil {
			return "", err
		}
		gen, ok := prov.(llm_client.ImageGenerator)
		if !ok {
			return "", fmt.Errorf("%s cannot generate images", prov.Name())
		}
		return gen.GenerateImage(ctx, req.Task, cfg.RemoteModel)
	}
	return "", ErrImageNotConfigured
}

func (g *Gateway) executeModel(ctx context.Context, req StepRequest) (string, error) {
	cfg := g.providers.Snapshot().Text
	prov, err := g.textProvider(cfg)
	if err != nil {
		return "", err
	}

	if req.Attachment != nil && strings.Contains(req.Agent.Name, "Image") {
		if analyzer, ok := prov.(llm_client.ImageAnalyzer); ok {
			return analyzer.AnalyzeImage(ctx, req.Task, req.Attachment.Data, req.Attachment.MIMEType, textModel(cfg))
		}
	}
	return prov.Generate(ctx, planner.AgentPrompt(req.Agent, req.Task, req.Context), textModel(cfg))
}
