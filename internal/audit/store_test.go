package audit

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentric/internal/kv"
)

// stepClock returns times that move backwards, so ordering by timestamp
// differs from append order.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(kv.NewMemory())
}

func TestStore_AppendAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LogEvent(ctx, "m1", LogUserInput, "Operator", "summarize this")
	require.NoError(t, err)
	_, err = s.LogData(ctx, "m1", "Content Summarizer", DataText, "task", "summary")
	require.NoError(t, err)
	_, err = s.LogData(ctx, "m1", "Content Summarizer", DataText, "task2", "summary2")
	require.NoError(t, err)
	_, err = s.LogConcept(ctx, "m1", "Planner", ConceptPlan, "summarize this", []map[string]string{{"agentName": "Content Summarizer"}})
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Collective: 1, Simulated: 2, Theoretical: 1}, counts)
}

func TestStore_ClearAllZeroesCounts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		events int
	}{
		{name: "empty store", events: 0},
		{name: "one record each", events: 1},
		{name: "many records", events: 25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			for i := 0; i < tc.events; i++ {
				_, err := s.LogEvent(ctx, "m", LogSystemMessage, "System", "x")
				require.NoError(t, err)
				_, err = s.LogData(ctx, "m", "A", DataText, "p", "d")
				require.NoError(t, err)
				_, err = s.LogConcept(ctx, "m", "Planner", ConceptIdea, "p", "o")
				require.NoError(t, err)
			}

			require.NoError(t, s.ClearAll(ctx))
			counts, err := s.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, Counts{}, counts)
		})
	}
}

func TestCollection_ByMissionSortedByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.now = stepClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), -time.Second)

	first, err := s.LogEvent(ctx, "m1", LogUserInput, "Operator", "first")
	require.NoError(t, err)
	_, err = s.LogEvent(ctx, "m2", LogUserInput, "Operator", "other mission")
	require.NoError(t, err)
	second, err := s.LogEvent(ctx, "m1", LogFinalOutput, "System", "second")
	require.NoError(t, err)

	got, err := s.Events.ByMission(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// second was stamped earlier than first by the backwards clock
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestCollection_ByAgent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LogData(ctx, "m1", "Alpha", DataText, "p1", "d1")
	require.NoError(t, err)
	_, err = s.LogData(ctx, "m1", "Beta", DataText, "p2", "d2")
	require.NoError(t, err)
	_, err = s.LogData(ctx, "m2", "Alpha", DataCode, "p3", "d3")
	require.NoError(t, err)

	got, err := s.Data.ByAgent(ctx, "Alpha")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].GeneratedData)
	assert.Equal(t, "d3", got[1].GeneratedData)

	trail, err := s.AgentTrail(ctx, "Beta")
	require.NoError(t, err)
	assert.Len(t, trail.Data, 1)
	assert.Empty(t, trail.Events)
}

func TestStore_RecordsKeepIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := s.LogEvent(ctx, "m1", LogUserInput, "Operator", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	_, err = s.LogEvent(ctx, "m1", LogSystemMessage, "System", "later")
	require.NoError(t, err)

	all, err := s.Events.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, rec, all[0])
	assert.NotEqual(t, all[0].ID, all[1].ID)
}

func TestStore_ConceptOutputIsJSON(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	plan := []map[string]string{{"agentName": "A", "task": "t"}}
	_, err := s.LogConcept(ctx, "m1", "Planner", ConceptPlan, "objective", plan)
	require.NoError(t, err)

	got, err := s.Concepts.ByMission(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(got[0].Output, &decoded))
	assert.Equal(t, plan, decoded)
}

func TestStore_SQLiteBackend(t *testing.T) {
	ctx := context.Background()
	db, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer db.Close()

	s := New(db)
	_, err = s.LogEvent(ctx, "m1", LogUserInput, "Operator", "hi")
	require.NoError(t, err)

	trail, err := New(db).MissionTrail(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, trail.Events, 1)
	assert.Equal(t, "hi", trail.Events[0].Content)
}

type failingKV struct{ kv.KV }

func (failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestStore_BackendErrorsPropagate(t *testing.T) {
	s := New(failingKV{KV: kv.NewMemory()})
	_, err := s.LogEvent(context.Background(), "m1", LogUserInput, "Operator", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), CollectiveKey)
}
