package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
	"github.com/p-blackswan/pulsetrack/internal/processor"
	"github.com/p-blackswan/pulsetrack/internal/risk"
	"github.com/p-blackswan/pulsetrack/internal/state"
	"github.com/p-blackswan/pulsetrack/internal/store"
)

// fakeProcessor returns canned states or errors in sequence.
type fakeProcessor struct {
	mu      sync.Mutex
	states  []*state.StructuredState
	errs    []error
	calls   int
	lastReq processor.Request
}

func (f *fakeProcessor) Process(_ context.Context, req processor.Request) (*state.StructuredState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.states) {
		return f.states[i], nil
	}
	return &state.StructuredState{StatusSummary: fmt.Sprintf("state %d", i)}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []risk.Alert
	done   chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 8)}
}

func (f *fakeNotifier) NotifyAlert(_ context.Context, _ string, a risk.Alert) {
	f.mu.Lock()
	f.alerts = append(f.alerts, a)
	f.mu.Unlock()
	f.done <- struct{}{}
}

type fakeSeeder struct {
	doc string
	err error
}

func (f *fakeSeeder) FetchContext(_ context.Context, _ string) (string, error) {
	return f.doc, f.err
}

func newTestManager(t *testing.T, proc UpdateProcessor, opts ...ManagerOption) *Manager {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pulsetrack-test.db")
	logger := zerolog.New(os.Stderr)
	ds, err := store.New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return NewManager(NewStore(ds, logger), proc, risk.NewDetector(), logger, opts...)
}

func TestSubmitUpdate_FirstUpdate(t *testing.T) {
	proc := &fakeProcessor{states: []*state.StructuredState{
		{StatusSummary: "Landing page shipped.", Completed: []string{"landing page"}},
	}}
	m := newTestManager(t, proc)

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Launch", Goal: "Ship it"})
	require.NoError(t, err)

	res, err := m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "Finished the landing page"})
	require.NoError(t, err)
	require.NotNil(t, res.Update.State)
	assert.Empty(t, res.NewAlerts, "first update has no baseline, must not alert")
	assert.Equal(t, "Landing page shipped.", res.State.StatusSummary)

	// The processor saw no previous state.
	assert.Nil(t, proc.lastReq.Previous)
	assert.Equal(t, "Launch", proc.lastReq.ProjectName)

	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Landing page shipped.", got.CurrentState.StatusSummary)
	assert.Nil(t, got.PreviousState)
	assert.Len(t, got.Updates, 1)
	assert.Empty(t, got.RiskAlerts)
}

func TestSubmitUpdate_BlockerSurgeOnSecondUpdate(t *testing.T) {
	proc := &fakeProcessor{states: []*state.StructuredState{
		{StatusSummary: "Going well.", InProgress: []string{"auth"}},
		{StatusSummary: "Rough week.", Blockers: []string{"API keys", "design review", "hiring"}},
	}}
	m := newTestManager(t, proc)

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Launch"})
	require.NoError(t, err)

	_, err = m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "all good"})
	require.NoError(t, err)

	res, err := m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "three new blockers"})
	require.NoError(t, err)
	require.Len(t, res.NewAlerts, 1)
	assert.Equal(t, risk.AlertBlockerSurge, res.NewAlerts[0].Type)
	assert.Equal(t, risk.SeverityMedium, res.NewAlerts[0].Severity)

	// The second cycle diffed against the first state.
	require.NotNil(t, proc.lastReq.Previous)
	assert.Equal(t, "Going well.", proc.lastReq.Previous.StatusSummary)

	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rough week.", got.CurrentState.StatusSummary)
	assert.Equal(t, "Going well.", got.PreviousState.StatusSummary)
	assert.Len(t, got.RiskAlerts, 1)
}

func TestSubmitUpdate_ProcessingFailure(t *testing.T) {
	proc := &fakeProcessor{
		errs: []error{nil, &perrors.ProcessingError{Attempts: 5, Err: perrors.ErrUnavailable}},
		states: []*state.StructuredState{
			{StatusSummary: "Going well."},
		},
	}
	m := newTestManager(t, proc)

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Launch"})
	require.NoError(t, err)

	_, err = m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "first"})
	require.NoError(t, err)

	res, err := m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "second"})
	require.NoError(t, err, "a processing failure is not a request failure")
	assert.Nil(t, res.Update.State)
	assert.NotEmpty(t, res.Update.ProcessingError)
	assert.Empty(t, res.NewAlerts)
	assert.Equal(t, "Going well.", res.State.StatusSummary, "state must not advance on failure")

	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	require.Len(t, got.Updates, 2, "raw text is kept even when processing fails")
	assert.Equal(t, "second", got.Updates[1].Text)
	assert.Equal(t, "Going well.", got.CurrentState.StatusSummary)
	assert.Nil(t, got.PreviousState)
}

func TestSubmitUpdate_NonProcessingErrorAborts(t *testing.T) {
	proc := &fakeProcessor{errs: []error{context.Canceled}}
	m := newTestManager(t, proc)

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Launch"})
	require.NoError(t, err)

	_, err = m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "doomed"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Updates, "aborted cycle must leave nothing behind")
}

func TestSubmitUpdate_Validation(t *testing.T) {
	m := newTestManager(t, &fakeProcessor{})

	_, err := m.SubmitUpdate(context.Background(), "whatever", SubmitUpdateInput{})
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)

	_, err = m.SubmitUpdate(context.Background(), "missing", SubmitUpdateInput{Text: "hi"})
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestSubmitUpdate_NotifiesHighSeverity(t *testing.T) {
	proc := &fakeProcessor{states: []*state.StructuredState{
		{StatusSummary: "fine"},
		{StatusSummary: "bad", Blockers: []string{"a", "b", "c", "d", "e"}},
	}}
	notifier := newFakeNotifier()
	m := newTestManager(t, proc, WithNotifier(notifier))

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Launch"})
	require.NoError(t, err)

	_, err = m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "ok"})
	require.NoError(t, err)
	res, err := m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "five blockers"})
	require.NoError(t, err)
	require.Len(t, res.NewAlerts, 1)
	require.Equal(t, risk.SeverityHigh, res.NewAlerts[0].Severity)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called for a high-severity alert")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, risk.AlertBlockerSurge, notifier.alerts[0].Type)
}

func TestSubmitUpdate_SerializedPerProject(t *testing.T) {
	proc := &fakeProcessor{}
	m := newTestManager(t, proc)

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Busy"})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{
				Text: fmt.Sprintf("update %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Updates, n)
	require.NotNil(t, got.CurrentState)
	require.NotNil(t, got.PreviousState, "after n serialized cycles both state slots are populated")
}

func TestCreateProject_SeedsInitialContext(t *testing.T) {
	seeder := &fakeSeeder{doc: "# MyRepo\nA thing."}
	m := newTestManager(t, &fakeProcessor{}, WithSeeder(seeder))

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Seeded", Repo: "owner/myrepo"})
	require.NoError(t, err)
	assert.Equal(t, "# MyRepo\nA thing.", p.InitialContext)
}

func TestCreateProject_SeedFailureNonFatal(t *testing.T) {
	seeder := &fakeSeeder{err: errors.New("rate limited")}
	m := newTestManager(t, &fakeProcessor{}, WithSeeder(seeder))

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Seeded", Repo: "owner/myrepo"})
	require.NoError(t, err)
	assert.Empty(t, p.InitialContext)
}

func TestCreateProject_ExplicitContextWins(t *testing.T) {
	seeder := &fakeSeeder{doc: "from repo"}
	m := newTestManager(t, &fakeProcessor{}, WithSeeder(seeder))

	p, err := m.CreateProject(context.Background(), CreateProjectInput{
		Name: "Seeded", Repo: "owner/myrepo", InitialContext: "hand written",
	})
	require.NoError(t, err)
	assert.Equal(t, "hand written", p.InitialContext)
}

func TestGetProject_CacheInvalidatedOnWrite(t *testing.T) {
	proc := &fakeProcessor{states: []*state.StructuredState{{StatusSummary: "one"}}}
	m := newTestManager(t, proc)

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Cached"})
	require.NoError(t, err)

	// Prime the cache.
	before, err := m.GetProject(p.ID)
	require.NoError(t, err)
	assert.Nil(t, before.CurrentState)

	_, err = m.SubmitUpdate(context.Background(), p.ID, SubmitUpdateInput{Text: "first"})
	require.NoError(t, err)

	after, err := m.GetProject(p.ID)
	require.NoError(t, err)
	require.NotNil(t, after.CurrentState)
	assert.Equal(t, "one", after.CurrentState.StatusSummary)
}

func TestDeleteProject_Manager(t *testing.T) {
	m := newTestManager(t, &fakeProcessor{})

	p, err := m.CreateProject(context.Background(), CreateProjectInput{Name: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteProject(p.ID))
	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
