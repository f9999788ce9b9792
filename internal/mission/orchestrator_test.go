package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentric/internal/audit"
	"agentric/internal/gate"
	"agentric/internal/gateway"
	"agentric/internal/kv"
	"agentric/internal/planner"
	"agentric/internal/provider"
	"agentric/internal/roster"
)

type fakeEngine struct {
	plan    planner.Plan
	route   gateway.Route
	planErr error
	outputs map[string]string
	errs    map[string]error

	mu       sync.Mutex
	contexts []string
	executed []string
}

func (f *fakeEngine) ProducePlan(ctx context.Context, req gateway.PlanRequest) (planner.Plan, error) {
	req.Notify(f.route.Notice())
	return f.plan, f.planErr
}

func (f *fakeEngine) ExecuteStep(ctx context.Context, req gateway.StepRequest) (string, error) {
	f.mu.Lock()
	f.contexts = append(f.contexts, req.Context)
	f.mu.Unlock()

	if req.Agent.Tool.RequiresAuthorization() {
		if err := req.Authorize(ctx); err != nil {
			return "", err
		}
	}
	if err, ok := f.errs[req.Agent.Name]; ok {
		return "", err
	}

	f.mu.Lock()
	f.executed = append(f.executed, req.Agent.Name)
	f.mu.Unlock()
	return f.outputs[req.Agent.Name], nil
}

// tickingClock advances one second per call so mission ids never collide.
func tickingClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

type harness struct {
	o     *Orchestrator
	store *audit.Store
	gate  *gate.Gate
}

func newHarness(t *testing.T, engine Engine, team ...string) *harness {
	t.Helper()
	r, err := roster.Load("")
	require.NoError(t, err)

	h := &harness{store: audit.New(kv.NewMemory()), gate: gate.New()}
	h.o = New(Deps{
		Roster:   r,
		Engine:   engine,
		Gate:     h.gate,
		Audit:    h.store,
		Cooldown: NoCooldown,
		Now:      tickingClock(),
	})
	t.Cleanup(h.o.Close)
	require.NoError(t, h.o.SetTeam(team))
	return h
}

func (h *harness) send(t *testing.T, objective string) string {
	t.Helper()
	id, err := h.o.Send(context.Background(), objective, nil)
	require.NoError(t, err)
	h.o.Wait()
	return id
}

func messagesOf(o *Orchestrator, typ MessageType) []Message {
	var out []Message
	for _, m := range o.Transcript() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func lastMessage(o *Orchestrator) Message {
	tr := o.Transcript()
	return tr[len(tr)-1]
}

const (
	idSummarizer = "agent-001"
	idSentiment  = "agent-002"
	idFormatter  = "agent-003"
	idPython     = "agent-016"
	idImager     = "agent-020"
)

func threeStepPlan() planner.Plan {
	return planner.Plan{
		{AgentName: "Content Summarizer", Task: "summarize"},
		{AgentName: "Format As Code", Task: "language: md"},
		{AgentName: "Sentiment Analyzer", Task: "rate it"},
	}
}

func TestSend_Rejections(t *testing.T) {
	t.Run("Empty objective", func(t *testing.T) {
		h := newHarness(t, &fakeEngine{}, idSummarizer)
		_, err := h.o.Send(context.Background(), "   ", nil)
		assert.ErrorIs(t, err, ErrEmptyObjective)
		assert.Equal(t, StateIdle, h.o.State())
	})

	t.Run("Attachment without text is accepted", func(t *testing.T) {
		h := newHarness(t, &fakeEngine{plan: planner.Plan{{AgentName: "Content Summarizer", Task: "x"}}}, idSummarizer)
		id, err := h.o.Send(context.Background(), "", &gateway.Attachment{Name: "a.png", MIMEType: "image/png", Data: []byte("x")})
		require.NoError(t, err)
		h.o.Wait()
		assert.NotEmpty(t, id)
		assert.Equal(t, StateFinished, h.o.State())
	})

	t.Run("Empty team narrates and stays idle", func(t *testing.T) {
		h := newHarness(t, &fakeEngine{})
		id, err := h.o.Send(context.Background(), "summarize this", nil)
		assert.ErrorIs(t, err, ErrEmptyTeam)
		assert.Empty(t, id)
		assert.Equal(t, StateIdle, h.o.State())

		last := lastMessage(h.o)
		assert.Equal(t, MessageError, last.Type)
		assert.Equal(t, emptyTeamMessage, last.Content)

		counts, err := h.store.Counts(context.Background())
		require.NoError(t, err)
		assert.Zero(t, counts.Collective)
	})

	t.Run("Roster failure", func(t *testing.T) {
		o := New(Deps{RosterErr: errors.New("could not parse roster JSON"), Engine: &fakeEngine{}})
		_, err := o.Send(context.Background(), "summarize this", nil)
		assert.ErrorIs(t, err, ErrRosterUnavailable)
		assert.Equal(t, StateIdle, o.State())
		assert.Contains(t, o.Transcript()[0].Content, "could not parse roster JSON")
	})

	t.Run("Cooldown", func(t *testing.T) {
		r, err := roster.Load("")
		require.NoError(t, err)
		o := New(Deps{
			Roster: r,
			Engine: &fakeEngine{plan: planner.Plan{{AgentName: "Content Summarizer", Task: "x"}}},
			Audit:  audit.New(kv.NewMemory()),
		})
		t.Cleanup(o.Close)
		require.NoError(t, o.SetTeam([]string{idSummarizer}))

		_, err = o.Send(context.Background(), "first", nil)
		require.NoError(t, err)
		o.Wait()
		_, err = o.Send(context.Background(), "second", nil)
		assert.ErrorIs(t, err, ErrCoolingDown)
	})
}

// manualTimers holds cooldown callbacks until a test fires them.
type manualTimers struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualTimers) after(_ time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.fns[i]
	m.mu.Unlock()
	f()
}

func (m *manualTimers) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

func TestSend_CooldownWindow(t *testing.T) {
	newOrchestrator := func(t *testing.T) (*Orchestrator, *manualTimers) {
		r, err := roster.Load("")
		require.NoError(t, err)
		o := New(Deps{
			Roster:   r,
			Engine:   &fakeEngine{plan: planner.Plan{{AgentName: "Content Summarizer", Task: "x"}}},
			Audit:    audit.New(kv.NewMemory()),
			Cooldown: time.Minute,
			Now:      tickingClock(),
		})
		t.Cleanup(o.Close)
		require.NoError(t, o.SetTeam([]string{idSummarizer}))
		timers := &manualTimers{}
		o.afterFunc = timers.after
		return o, timers
	}

	t.Run("Reopens after the window", func(t *testing.T) {
		o, timers := newOrchestrator(t)
		_, err := o.Send(context.Background(), "first", nil)
		require.NoError(t, err)
		o.Wait()

		_, err = o.Send(context.Background(), "second", nil)
		assert.ErrorIs(t, err, ErrCoolingDown)

		require.Equal(t, 1, timers.len())
		timers.fire(0)
		_, err = o.Send(context.Background(), "third", nil)
		require.NoError(t, err)
		o.Wait()
		assert.Equal(t, StateFinished, o.State())
	})

	t.Run("Stale timer does not reopen a newer window", func(t *testing.T) {
		o, timers := newOrchestrator(t)
		_, err := o.Send(context.Background(), "first", nil)
		require.NoError(t, err)
		o.Wait()

		o.mu.Lock()
		o.startCooldownLocked()
		o.mu.Unlock()
		require.Equal(t, 2, timers.len())

		timers.fire(0)
		_, err = o.Send(context.Background(), "second", nil)
		assert.ErrorIs(t, err, ErrCoolingDown)

		timers.fire(1)
		_, err = o.Send(context.Background(), "third", nil)
		require.NoError(t, err)
		o.Wait()
	})
}

func TestSend_MissionIDsAreUnique(t *testing.T) {
	r, err := roster.Load("")
	require.NoError(t, err)
	frozen := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	o := New(Deps{
		Roster:   r,
		Engine:   &fakeEngine{plan: planner.Plan{{AgentName: "Content Summarizer", Task: "x"}}},
		Audit:    audit.New(kv.NewMemory()),
		Cooldown: NoCooldown,
		Now:      func() time.Time { return frozen },
	})
	t.Cleanup(o.Close)
	require.NoError(t, o.SetTeam([]string{idSummarizer}))

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := o.Send(context.Background(), fmt.Sprintf("objective %d", i), nil)
		require.NoError(t, err)
		o.Wait()
		assert.False(t, seen[id], "duplicate mission id %s", id)
		seen[id] = true
	}
	assert.True(t, seen[fmt.Sprintf("mission-%d", frozen.UnixMilli())])
	assert.True(t, seen[fmt.Sprintf("mission-%d", frozen.UnixMilli()+19)])
}

func TestSend_BusyWhileAuthorizing(t *testing.T) {
	engine := &fakeEngine{plan: planner.Plan{{AgentName: "Python Interpreter", Task: "print(1)"}}}
	h := newHarness(t, engine, idPython)

	requested := make(chan gate.Request, 1)
	h.gate.OnRequest(func(r gate.Request) { requested <- r })

	_, err := h.o.Send(context.Background(), "run it", nil)
	require.NoError(t, err)

	req := <-requested
	assert.Equal(t, "Python Interpreter", req.Agent)
	assert.Equal(t, "print(1)", req.Task)
	assert.Equal(t, StateAuthorizing, h.o.State())
	assert.Equal(t, roster.StatusAuthorizing, h.o.MissionLog()["Python Interpreter"])

	_, err = h.o.Send(context.Background(), "another", nil)
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, h.gate.Allow())
	h.o.Wait()
	assert.Equal(t, StateFinished, h.o.State())
}

func TestMission_Finishes(t *testing.T) {
	engine := &fakeEngine{
		plan: threeStepPlan(),
		outputs: map[string]string{
			"Content Summarizer": "short",
			"Format As Code":     "```md\nshort\n```",
			"Sentiment Analyzer": "Sentiment: **Neutral**",
		},
	}
	h := newHarness(t, engine, idSummarizer, idFormatter, idSentiment)
	id := h.send(t, "summarize the memo")

	assert.Regexp(t, `^mission-\d+$`, id)
	assert.Equal(t, StateFinished, h.o.State())

	m, ok := h.o.Current()
	require.True(t, ok)
	want := "Initial Objective: summarize the memo" +
		"\n\n--- Output from Content Summarizer ---\nshort" +
		"\n\n--- Output from Format As Code ---\n```md\nshort\n```" +
		"\n\n--- Output from Sentiment Analyzer ---\nSentiment: **Neutral**"
	assert.Equal(t, want, m.Context.String())
	assert.Len(t, m.Context.Blocks, 3)

	for name, status := range h.o.MissionLog() {
		assert.Equal(t, roster.StatusDone, status, name)
	}

	testCases := []struct {
		name string
		step int
		want string
	}{
		{name: "First step sees only the objective", step: 0, want: "Initial Objective: summarize the memo"},
		{name: "Second step sees the first output", step: 1, want: "Initial Objective: summarize the memo\n\n--- Output from Content Summarizer ---\nshort"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.contexts[tc.step])
		})
	}

	final := messagesOf(h.o, MessageFinalResponse)
	require.Len(t, final, 1)
	assert.True(t, final[0].Speakable)
	assert.Equal(t, "System", final[0].Sender)
	assert.Equal(t, "**Mission Debrief:** All tasks completed. The final context is as follows:\n\n---\n"+want, final[0].Content)

	planMsgs := messagesOf(h.o, MessageSystem)
	var planned *Message
	for i := range planMsgs {
		if planMsgs[i].Plan != nil {
			planned = &planMsgs[i]
		}
	}
	require.NotNil(t, planned)
	assert.Equal(t, "Orchestrator Alpha", planned.Sender)
	assert.Equal(t, engine.plan, planned.Plan)

	counts, err := h.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.Counts{Collective: 2, Simulated: 3, Theoretical: 1}, counts)

	trail, err := h.store.MissionTrail(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, trail.Events, 2)
	assert.Equal(t, audit.LogUserInput, trail.Events[0].LogType)
	assert.Equal(t, "Operator", trail.Events[0].Source)
	assert.Equal(t, audit.LogFinalOutput, trail.Events[1].LogType)
	assert.Equal(t, "Planner", trail.Concepts[0].SourceAgent)

	select {
	case res := <-h.o.Results():
		assert.Equal(t, id, res.MissionID)
		assert.Equal(t, StateFinished, res.State)
		assert.Empty(t, res.Error)
		require.NotNil(t, res.Metrics)
		assert.Len(t, res.Metrics.Steps, 3)
		assert.True(t, res.Metrics.Succeeded)
	default:
		t.Fatal("no result published")
	}
}

func TestMission_StepFailureStopsExecution(t *testing.T) {
	engine := &fakeEngine{
		plan:    threeStepPlan(),
		outputs: map[string]string{"Content Summarizer": "short"},
		errs:    map[string]error{"Format As Code": errors.New("boom")},
	}
	h := newHarness(t, engine, idSummarizer, idFormatter, idSentiment)
	h.send(t, "summarize the memo")

	assert.Equal(t, StateError, h.o.State())
	log := h.o.MissionLog()
	assert.Equal(t, roster.StatusDone, log["Content Summarizer"])
	assert.Equal(t, roster.StatusError, log["Format As Code"])
	assert.Equal(t, roster.StatusPending, log["Sentiment Analyzer"])

	m, _ := h.o.Current()
	assert.Equal(t, 2, m.Settled(), "one done plus one error for two attempted steps")
	assert.Equal(t, []string{"Content Summarizer"}, engine.executed)

	last := lastMessage(h.o)
	assert.Equal(t, MessageError, last.Type)
	assert.Equal(t, "Agent Format As Code failed: boom", last.Content)
	assert.Equal(t, "Format As Code", last.Sender)
	assert.Empty(t, messagesOf(h.o, MessageFinalResponse))
}

func TestMission_SettledMatchesAttempted(t *testing.T) {
	plan := threeStepPlan()
	for failAt := 0; failAt <= len(plan); failAt++ {
		t.Run(fmt.Sprintf("Failure at step %d", failAt), func(t *testing.T) {
			engine := &fakeEngine{plan: plan, outputs: map[string]string{}, errs: map[string]error{}}
			attempted := len(plan)
			if failAt < len(plan) {
				engine.errs[plan[failAt].AgentName] = errors.New("nope")
				attempted = failAt + 1
			}
			h := newHarness(t, engine, idSummarizer, idFormatter, idSentiment)
			h.send(t, "summarize")

			m, _ := h.o.Current()
			if failAt < len(plan) {
				assert.Equal(t, attempted, m.Settled())
			} else {
				assert.Equal(t, len(m.Log), m.Settled())
			}
		})
	}
}

func TestMission_UnknownAgent(t *testing.T) {
	testCases := []struct {
		name  string
		agent string
	}{
		{name: "Not in roster", agent: "Ghost"},
		{name: "In roster but not on the team", agent: "The Novelist"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{plan: planner.Plan{{AgentName: tc.agent, Task: "x"}}}
			h := newHarness(t, engine, idSummarizer)
			h.send(t, "do it")

			assert.Equal(t, StateError, h.o.State())
			assert.Equal(t, fmt.Sprintf("Execution Failed: Agent %q not found in roster.", tc.agent), lastMessage(h.o).Content)
			assert.Empty(t, engine.contexts)

			res := <-h.o.Results()
			assert.Contains(t, res.Error, ErrUnknownAgent.Error())
		})
	}
}

func TestMission_PlanningFailure(t *testing.T) {
	engine := &fakeEngine{
		route:   gateway.RouteRemoteModel,
		planErr: fmt.Errorf("%w: no JSON object in response", planner.ErrPlanningFailure),
	}
	h := newHarness(t, engine, idSummarizer)
	h.send(t, "design a system")

	assert.Equal(t, StateError, h.o.State())
	last := lastMessage(h.o)
	assert.Equal(t, MessageError, last.Type)
	assert.Contains(t, last.Content, "Planning Failed: ")

	notices := messagesOf(h.o, MessageSystem)
	assert.Equal(t, gateway.RouteRemoteModel.Notice(), notices[len(notices)-1].Content)

	counts, err := h.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Collective)
	assert.Zero(t, counts.Theoretical)
}

func TestMission_Authorization(t *testing.T) {
	testCases := []struct {
		name      string
		allow     bool
		wantState State
		wantLast  string
	}{
		{name: "Denied", allow: false, wantState: StateError, wantLast: "Agent Python Interpreter failed: operator denied execution"},
		{name: "Allowed", allow: true, wantState: StateFinished},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{
				plan:    planner.Plan{{AgentName: "Python Interpreter", Task: "print(2)"}},
				outputs: map[string]string{"Python Interpreter": "2"},
			}
			h := newHarness(t, engine, idPython)
			h.gate.OnRequest(func(gate.Request) {
				if tc.allow {
					_ = h.gate.Allow()
				} else {
					_ = h.gate.Deny()
				}
			})
			h.send(t, "run it")

			assert.Equal(t, tc.wantState, h.o.State())
			if tc.wantLast != "" {
				assert.Equal(t, tc.wantLast, lastMessage(h.o).Content)
				assert.Equal(t, roster.StatusError, h.o.MissionLog()["Python Interpreter"])
				assert.Empty(t, engine.executed)
			} else {
				assert.Equal(t, []string{"Python Interpreter"}, engine.executed)
			}
			_, pending := h.gate.Pending()
			assert.False(t, pending)
		})
	}
}

func TestMission_ImageOutput(t *testing.T) {
	engine := &fakeEngine{
		plan:    planner.Plan{{AgentName: "Content Summarizer", Task: "x"}},
		outputs: map[string]string{"Content Summarizer": "data:image/png;base64,AAAA"},
	}
	h := newHarness(t, engine, idSummarizer)
	id := h.send(t, "draw")

	out := messagesOf(h.o, MessageAgentOutput)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Content)
	assert.Equal(t, "data:image/png;base64,AAAA", out[0].ImageURL)

	trail, err := h.store.MissionTrail(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, trail.Data, 1)
	assert.Equal(t, audit.DataImage, trail.Data[0].DataType)
}

type brokenKV struct{ kv.KV }

func (brokenKV) Set(context.Context, string, []byte) error { return errors.New("read-only") }

func TestMission_AuditFailuresAreSwallowed(t *testing.T) {
	r, err := roster.Load("")
	require.NoError(t, err)
	o := New(Deps{
		Roster: r,
		Engine: &fakeEngine{plan: planner.Plan{{AgentName: "Content Summarizer", Task: "x"}}, outputs: map[string]string{"Content Summarizer": "ok"}},
		Audit:  audit.New(brokenKV{KV: kv.NewMemory()}),
		Now:    tickingClock(),
	})
	t.Cleanup(o.Close)
	require.NoError(t, o.SetTeam([]string{idSummarizer}))

	_, err = o.Send(context.Background(), "summarize", nil)
	require.NoError(t, err)
	o.Wait()
	assert.Equal(t, StateFinished, o.State())
}

func TestClearMemory(t *testing.T) {
	engine := &fakeEngine{plan: threeStepPlan(), outputs: map[string]string{}}
	h := newHarness(t, engine, idSummarizer, idFormatter, idSentiment)
	h.send(t, "summarize")

	require.NoError(t, h.o.ClearMemory(context.Background()))
	counts, err := h.o.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.Counts{}, counts)
	assert.Equal(t, clearedMessage, lastMessage(h.o).Content)
}

func teamNames(team []roster.Agent) []string {
	names := make([]string, len(team))
	for i, a := range team {
		names[i] = a.Name
	}
	return names
}

func TestTeamSelection(t *testing.T) {
	h := newHarness(t, &fakeEngine{})

	on, err := h.o.ToggleTeam(idSummarizer)
	require.NoError(t, err)
	assert.True(t, on)
	on, err = h.o.ToggleTeam(idFormatter)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"Content Summarizer", "Format As Code"}, teamNames(h.o.Team()))

	on, err = h.o.ToggleTeam(idSummarizer)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, []string{"Format As Code"}, teamNames(h.o.Team()))

	_, err = h.o.ToggleTeam("agent-999")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = h.o.ToggleTeam(idImager)
	assert.ErrorIs(t, err, ErrNotSelectable, "image generation is not configured")

	all := h.o.SelectAll()
	assert.Len(t, all, h.o.roster.Len()-1)
	assert.Empty(t, h.o.SelectAll(), "second select-all clears the team")
}

func TestProviderSwitchPrunesTeam(t *testing.T) {
	h := newHarness(t, &fakeEngine{}, idSummarizer, idFormatter, idPython)

	require.NoError(t, h.o.SetTextProvider(provider.LocalText("http://127.0.0.1:11434", "llama3:latest")))
	assert.Equal(t, []string{"Format As Code", "Python Interpreter"}, teamNames(h.o.Team()))
	assert.Contains(t, lastMessage(h.o).Content, "Offline text mode is now active.")

	err := h.o.SetTextProvider(provider.Text{Kind: provider.KindLocal})
	assert.ErrorIs(t, err, provider.ErrInvalidConfig)
	assert.True(t, h.o.Providers().Snapshot().Text.IsLocal(), "invalid change keeps the previous provider")

	require.NoError(t, h.o.SetTextProvider(provider.RemoteText("")))
	assert.Equal(t, "Reverting to online Gemini API for text tasks.", lastMessage(h.o).Content)

	err = h.o.SetImageProvider(provider.LocalImage(t.TempDir()+"/missing.safetensors", ""))
	assert.Error(t, err)
	assert.Equal(t, provider.StatusError, h.o.Providers().Snapshot().Image.Status)

	require.NoError(t, h.o.SetImageProvider(provider.RemoteImage("")))
	on, err := h.o.ToggleTeam(idImager)
	require.NoError(t, err)
	assert.True(t, on)
}
