package mission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agentric/internal/audit"
	"agentric/internal/gate"
	"agentric/internal/gateway"
	"agentric/internal/logger"
	"agentric/internal/metrics"
	"agentric/internal/planner"
	"agentric/internal/provider"
	"agentric/internal/roster"
)

const DefaultCooldown = 2 * time.Second

// NoCooldown disables the send window entirely.
const NoCooldown time.Duration = -1

var (
	ErrBusy              = errors.New("a mission is already in progress")
	ErrCoolingDown       = errors.New("please wait a moment before sending another objective")
	ErrEmptyObjective    = errors.New("objective is empty")
	ErrEmptyTeam         = errors.New("no agents have been added to the team")
	ErrUnknownAgent      = errors.New("agent not found in roster")
	ErrNotSelectable     = errors.New("agent is not available under the current provider configuration")
	ErrRosterUnavailable = errors.New("agent roster is unavailable")

	ErrPlanningFailure     = planner.ErrPlanningFailure
	ErrAuthorizationDenied = gateway.ErrAuthorizationDenied
)

const (
	senderOperator     = "Operator"
	senderOrchestrator = "Orchestrator Alpha"
	senderSystem       = "System"
	senderPlanner      = "Planner"

	emptyTeamMessage = "No agents have been added to the team. Please assemble a team from the Agent Roster."
	clearedMessage   = "All consciousness logs have been cleared from local storage."
)

// Engine produces plans and runs steps.
type Engine interface {
	ProducePlan(ctx context.Context, req gateway.PlanRequest) (planner.Plan, error)
	ExecuteStep(ctx context.Context, req gateway.StepRequest) (string, error)
}

type Deps struct {
	Roster *roster.Roster
	// RosterErr is the load failure, if any. The orchestrator stays idle and
	// rejects every objective with it.
	RosterErr error
	Engine    Engine
	Gate      *gate.Gate
	Audit     *audit.Store
	Providers *provider.Switch
	// Cooldown is how long new objectives are rejected after a send. Zero
	// means DefaultCooldown.
	Cooldown time.Duration
	Now      func() time.Time
}

// Orchestrator owns the mission state machine. All exported methods are safe
// for concurrent use; the mission itself runs on its own goroutine.
type Orchestrator struct {
	roster    *roster.Roster
	rosterErr error
	engine    Engine
	gate      *gate.Gate
	audit     *audit.Store
	providers *provider.Switch
	cooldown  time.Duration
	now       func() time.Time
	log       zerolog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	results chan Result

	mu          sync.Mutex
	state       State
	team        []roster.Agent
	current     *Mission
	transcript  []Message
	observers   []func(Message)
	cooling     bool
	cooldownGen uint64
	afterFunc   func(time.Duration, func())
	lastID      int64
}

func New(d Deps) *Orchestrator {
	if d.Gate == nil {
		d.Gate = gate.New()
	}
	if d.Providers == nil {
		d.Providers = provider.NewSwitch(provider.Config{})
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cooldown == 0 {
		d.Cooldown = DefaultCooldown
	}
	if d.Roster == nil && d.RosterErr == nil {
		d.RosterErr = errors.New("no roster loaded")
	}

	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		roster:    d.Roster,
		rosterErr: d.RosterErr,
		engine:    d.Engine,
		gate:      d.Gate,
		audit:     d.Audit,
		providers: d.Providers,
		cooldown:  d.Cooldown,
		now:       d.Now,
		log:       logger.Component("mission"),
		base:      base,
		cancel:    cancel,
		results:   make(chan Result, 16),
		state:     StateIdle,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}

	if o.rosterErr != nil {
		o.narrate("", MessageError, "Critical Error: Failed to load agent roster. The application cannot function without it. Details: "+o.rosterErr.Error(), "", nil)
	} else {
		o.narrate("", MessageSystem, "Agentric core initialized. Assemble your team and define your mission objective.", "", nil)
	}
	return o
}

// Close stops waiting on the gate and waits for the running mission to settle.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// Wait blocks until the running mission, if any, has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) Results() <-chan Result { return o.results }

func (o *Orchestrator) Gate() *gate.Gate { return o.gate }

func (o *Orchestrator) Providers() *provider.Switch { return o.providers }

// Subscribe registers fn to receive every new transcript message.
func (o *Orchestrator) Subscribe(fn func(Message)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Transcript() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// Current returns a snapshot of the latest mission.
func (o *Orchestrator) Current() (Mission, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Mission{}, false
	}
	return o.current.clone(), true
}

// MissionLog returns the per-agent statuses of the latest mission.
func (o *Orchestrator) MissionLog() map[string]roster.Status {
	m, ok := o.Current()
	if !ok {
		return map[string]roster.Status{}
	}
	return m.Log
}

func (o *Orchestrator) Agents() []roster.Agent {
	if o.roster == nil {
		return nil
	}
	return o.roster.Agents()
}

// Send starts a mission for objective. It returns the mission id, or an empty
// id when the objective was narrated but not run (empty team).
func (o *Orchestrator) Send(ctx context.Context, objective string, attachment *gateway.Attachment) (string, error) {
	if o.rosterErr != nil {
		return "", fmt.Errorf("%w: %v", ErrRosterUnavailable, o.rosterErr)
	}
	objective = strings.TrimSpace(objective)

	o.mu.Lock()
	switch {
	case !o.state.Accepting():
		o.mu.Unlock()
		return "", ErrBusy
	case o.cooling:
		o.mu.Unlock()
		return "", ErrCoolingDown
	case objective == "" && attachment == nil:
		o.mu.Unlock()
		return "", ErrEmptyObjective
	}
	o.startCooldownLocked()
	team := append([]roster.Agent(nil), o.team...)

	var m *Mission
	if len(team) > 0 {
		m = &Mission{
			ID:         o.nextIDLocked(),
			Objective:  objective,
			Log:        make(map[string]roster.Status, len(team)),
			Context:    NewContext(objective),
			Attachment: attachment,
		}
		for _, a := range team {
			m.Log[a.Name] = roster.StatusPending
			o.roster.SetStatus(a.Name, roster.StatusPending)
		}
		o.current = m
		o.state = StatePlanning
		o.wg.Add(1)
	}
	o.mu.Unlock()

	missionID := ""
	if m != nil {
		missionID = m.ID
	}
	msg := o.newMessage(missionID, MessageUser, objective, senderOperator)
	if attachment != nil {
		msg.ImageURL = attachment.Name
	}
	o.emit(msg)

	if m == nil {
		o.narrate("", MessageError, emptyTeamMessage, "", nil)
		return "", ErrEmptyTeam
	}

	o.log.Info().Str("mission", m.ID).Int("team", len(team)).Msg("mission accepted")
	go o.run(context.WithoutCancel(ctx), m, team)
	return m.ID, nil
}

// nextIDLocked returns mission-<unix millis>, bumped past the previous id when
// two missions start within the same millisecond.
func (o *Orchestrator) nextIDLocked() string {
	ms := o.now().UnixMilli()
	if ms <= o.lastID {
		ms = o.lastID + 1
	}
	o.lastID = ms
	return fmt.Sprintf("mission-%d", ms)
}

func (o *Orchestrator) startCooldownLocked() {
	if o.cooldown <= 0 {
		return
	}
	o.cooling = true
	o.cooldownGen++
	gen := o.cooldownGen
	o.afterFunc(o.cooldown, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.cooldownGen == gen {
			o.cooling = false
		}
	})
}

func (o *Orchestrator) run(ctx context.Context, m *Mission, team []roster.Agent) {
	defer o.wg.Done()

	// Shutdown cancels the base context; request-scoped values still flow.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-o.base.Done():
			stop()
		case <-ctx.Done():
		}
	}()

	mm := metrics.New(m.ID, o.now())
	o.record(func() error {
		_, err := o.audit.LogEvent(ctx, m.ID, audit.LogUserInput, senderOperator, m.Objective)
		return err
	})

	plan, err := o.engine.ProducePlan(ctx, gateway.PlanRequest{
		Objective: m.Objective,
		Team:      team,
		Notify: func(msg string) {
			o.narrate(m.ID, MessageSystem, msg, "", nil)
		},
	})
	if err != nil {
		o.narrate(m.ID, MessageError, "Planning Failed: "+err.Error(), "", nil)
		o.settle(m, mm, StateError, err)
		return
	}
	mm.Planned(o.now())

	o.mu.Lock()
	m.Plan = plan
	o.state = StateExecuting
	o.mu.Unlock()

	o.record(func() error {
		_, err := o.audit.LogConcept(ctx, m.ID, senderPlanner, audit.ConceptPlan, m.Objective, plan)
		return err
	})
	o.narrate(m.ID, MessageSystem, "Mission plan generated. Commencing execution...", senderOrchestrator, plan)

	for _, step := range plan {
		agent, ok := findAgent(team, step.AgentName)
		if !ok {
			o.narrate(m.ID, MessageError, fmt.Sprintf("Execution Failed: Agent %q not found in roster.", step.AgentName), "", nil)
			o.settle(m, mm, StateError, fmt.Errorf("%w: %q", ErrUnknownAgent, step.AgentName))
			return
		}

		o.setAgentStatus(m, agent.Name, roster.StatusThinking)
		o.mu.Lock()
		stepContext := m.Context.String()
		o.mu.Unlock()

		start := o.now()
		result, err := o.engine.ExecuteStep(ctx, gateway.StepRequest{
			MissionID:  m.ID,
			Agent:      agent,
			Task:       step.Task,
			Context:    stepContext,
			Attachment: m.Attachment,
			Authorize:  o.authorizer(m, agent, step.Task),
			Notify: func(msg string) {
				o.narrate(m.ID, MessageSystem, msg, "", nil)
			},
		})
		mm.Record(agent.Name, agent.Kind().String(), start, o.now(), err)

		if err != nil {
			o.log.Warn().Err(err).Str("mission", m.ID).Str("agent", agent.Name).Msg("step failed")
			o.narrate(m.ID, MessageError, fmt.Sprintf("Agent %s failed: %s", agent.Name, err.Error()), agent.Name, nil)
			o.setAgentStatus(m, agent.Name, roster.StatusError)
			o.settle(m, mm, StateError, err)
			return
		}

		isImage := strings.HasPrefix(result, "data:image")
		dataType := audit.DataText
		if isImage {
			dataType = audit.DataImage
		}
		o.record(func() error {
			_, err := o.audit.LogData(ctx, m.ID, agent.Name, dataType, step.Task, result)
			return err
		})

		o.mu.Lock()
		m.Context.Append(agent.Name, result)
		o.mu.Unlock()
		o.setAgentStatus(m, agent.Name, roster.StatusDone)

		msg := o.newMessage(m.ID, MessageAgentOutput, result, agent.Name)
		if isImage {
			msg.Content = ""
			msg.ImageURL = result
		}
		o.emit(msg)
	}

	o.mu.Lock()
	for name := range m.Log {
		m.Log[name] = roster.StatusDone
		o.roster.SetStatus(name, roster.StatusDone)
	}
	final := m.Context.String()
	o.mu.Unlock()

	debrief := o.newMessage(m.ID, MessageFinalResponse, "**Mission Debrief:** All tasks completed. The final context is as follows:\n\n---\n"+final, senderSystem)
	debrief.Speakable = true
	o.emit(debrief)
	o.record(func() error {
		_, err := o.audit.LogEvent(ctx, m.ID, audit.LogFinalOutput, senderSystem, final)
		return err
	})
	o.settle(m, mm, StateFinished, nil)
}

// authorizer suspends the mission on the gate until the operator answers.
func (o *Orchestrator) authorizer(m *Mission, agent roster.Agent, task string) func(context.Context) error {
	return func(ctx context.Context) error {
		o.setAgentStatus(m, agent.Name, roster.StatusAuthorizing)
		o.setState(StateAuthorizing)
		defer func() {
			o.setAgentStatus(m, agent.Name, roster.StatusThinking)
			o.setState(StateExecuting)
		}()

		decision, err := o.gate.Await(ctx, gate.Request{
			MissionID: m.ID,
			Agent:     agent.Name,
			Tool:      string(agent.Tool),
			Task:      task,
			CreatedAt: o.now(),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthorizationDenied, err)
		}
		if decision != gate.Allowed {
			return ErrAuthorizationDenied
		}
		o.log.Info().Str("mission", m.ID).Str("agent", agent.Name).Msg("execution authorized")
		return nil
	}
}

func (o *Orchestrator) settle(m *Mission, mm *metrics.MissionMetrics, state State, err error) {
	mm.Finish(o.now(), state == StateFinished)

	o.mu.Lock()
	o.state = state
	steps := len(m.Plan)
	o.mu.Unlock()

	res := Result{MissionID: m.ID, Objective: m.Objective, State: state, Steps: steps, Metrics: mm}
	if err != nil {
		res.Error = err.Error()
	}
	o.log.Info().Str("mission", m.ID).Str("state", string(state)).Int64("duration_ms", mm.DurationMs).Msg("mission settled")

	select {
	case o.results <- res:
	default:
		o.log.Warn().Str("mission", m.ID).Msg("results channel full, dropping result")
	}
}

// record runs an audit write. Failures are logged and never reach the mission.
func (o *Orchestrator) record(write func() error) {
	if o.audit == nil {
		return
	}
	if err := write(); err != nil {
		o.log.Error().Err(err).Msg("audit write failed")
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) setAgentStatus(m *Mission, name string, s roster.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m.Log[name] = s
	o.roster.SetStatus(name, s)
}

func findAgent(team []roster.Agent, name string) (roster.Agent, bool) {
	for _, a := range team {
		if a.Name == name {
			return a, true
		}
	}
	return roster.Agent{}, false
}

func (o *Orchestrator) newMessage(missionID string, typ MessageType, content, sender string) Message {
	return Message{
		ID:        "msg-" + uuid.NewString(),
		MissionID: missionID,
		Type:      typ,
		Content:   content,
		Sender:    sender,
		Time:      o.now(),
	}
}

func (o *Orchestrator) narrate(missionID string, typ MessageType, content, sender string, plan planner.Plan) {
	msg := o.newMessage(missionID, typ, content, sender)
	msg.Plan = plan
	o.emit(msg)
}

// emit appends to the transcript and notifies observers outside the lock.
func (o *Orchestrator) emit(msg Message) {
	o.mu.Lock()
	o.transcript = append(o.transcript, msg)
	observers := append([]func(Message){}, o.observers...)
	o.mu.Unlock()

	for _, fn := range observers {
		fn(msg)
	}
}

// Team returns the agents selected for the next mission.
func (o *Orchestrator) Team() []roster.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]roster.Agent(nil), o.team...)
}

// SetTeam replaces the team with the agents named by ids.
func (o *Orchestrator) SetTeam(ids []string) error {
	if o.roster == nil {
		return ErrRosterUnavailable
	}
	team := make([]roster.Agent, 0, len(ids))
	for _, id := range ids {
		a, ok := o.roster.ByID(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAgent, id)
		}
		if !o.providers.Selectable(a) {
			return fmt.Errorf("%w: %s", ErrNotSelectable, a.Name)
		}
		if _, dup := findAgent(team, a.Name); !dup {
			team = append(team, a)
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.team = team
	return nil
}

// ToggleTeam adds the agent to the team, or removes it if already present.
// It reports whether the agent is on the team afterwards.
func (o *Orchestrator) ToggleTeam(id string) (bool, error) {
	if o.roster == nil {
		return false, ErrRosterUnavailable
	}
	a, ok := o.roster.ByID(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, member := range o.team {
		if member.ID == id {
			o.team = append(o.team[:i:i], o.team[i+1:]...)
			return false, nil
		}
	}
	if !o.providers.Selectable(a) {
		return false, fmt.Errorf("%w: %s", ErrNotSelectable, a.Name)
	}
	o.team = append(o.team, a)
	return true, nil
}

// SelectAll puts every selectable agent on the team. When the team already
// holds that many agents it empties the team instead.
func (o *Orchestrator) SelectAll() []roster.Agent {
	var selectable []roster.Agent
	cfg := o.providers.Snapshot()
	for _, a := range o.Agents() {
		if cfg.Selectable(a) {
			selectable = append(selectable, a)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.team) == len(selectable) {
		o.team = nil
	} else {
		o.team = selectable
	}
	return append([]roster.Agent(nil), o.team...)
}

// pruneTeamLocked drops members that the current provider configuration
// no longer allows.
func (o *Orchestrator) pruneTeamLocked(cfg provider.Config) {
	kept := o.team[:0:0]
	for _, a := range o.team {
		if cfg.Selectable(a) {
			kept = append(kept, a)
		}
	}
	o.team = kept
}

// Counts returns the audit store sizes.
func (o *Orchestrator) Counts(ctx context.Context) (audit.Counts, error) {
	if o.audit == nil {
		return audit.Counts{}, nil
	}
	return o.audit.Counts(ctx)
}

// ClearMemory empties all three audit collections.
func (o *Orchestrator) ClearMemory(ctx context.Context) error {
	if o.audit != nil {
		if err := o.audit.ClearAll(ctx); err != nil {
			o.narrate("", MessageError, "Failed to clear consciousness logs: "+err.Error(), "", nil)
			return err
		}
	}
	o.narrate("", MessageSystem, clearedMessage, "", nil)
	return nil
}

// SetTextProvider switches the text backend and narrates the change.
func (o *Orchestrator) SetTextProvider(t provider.Text) error {
	if err := o.providers.SetText(t); err != nil {
		o.narrate("", MessageError, "Failed to configure text provider: "+err.Error(), "", nil)
		return err
	}
	cfg := o.providers.Snapshot()
	o.mu.Lock()
	o.pruneTeamLocked(cfg)
	o.mu.Unlock()

	if cfg.Text.IsLocal() {
		o.narrate("", MessageSystem, fmt.Sprintf("Local text model %s at %s configured. Offline text mode is now active.", cfg.Text.Model, cfg.Text.Endpoint), "", nil)
	} else {
		o.narrate("", MessageSystem, "Reverting to online Gemini API for text tasks.", "", nil)
	}
	return nil
}

// SetImageProvider switches the image backend. A local model path must exist.
func (o *Orchestrator) SetImageProvider(i provider.Image) error {
	if err := o.providers.SetImage(i); err != nil {
		o.narrate("", MessageError, "Failed to configure image provider: "+err.Error(), "", nil)
		return err
	}
	if i.Kind == provider.KindLocal {
		o.providers.MarkImage(provider.StatusConfiguring, nil)
		if _, err := os.Stat(i.ModelPath); err != nil {
			o.providers.MarkImage(provider.StatusError, err)
			o.narrate("", MessageError, "Failed to load local image model: "+err.Error(), "", nil)
			o.mu.Lock()
			o.pruneTeamLocked(o.providers.Snapshot())
			o.mu.Unlock()
			return err
		}
		o.providers.MarkImage(provider.StatusConfigured, nil)
	}

	cfg := o.providers.Snapshot()
	o.mu.Lock()
	o.pruneTeamLocked(cfg)
	o.mu.Unlock()

	switch cfg.Image.Kind {
	case provider.KindLocal:
		o.narrate("", MessageSystem, fmt.Sprintf("Local image model loaded: %s. Offline image generation is now active.", cfg.Image.ModelPath), "", nil)
	case provider.KindRemote:
		o.narrate("", MessageSystem, "Image generation will use the Gemini API.", "", nil)
	default:
		o.narrate("", MessageSystem, "Image generation disabled.", "", nil)
	}
	return nil
}
