package project

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
	"github.com/p-blackswan/pulsetrack/internal/metrics"
	"github.com/p-blackswan/pulsetrack/internal/processor"
	"github.com/p-blackswan/pulsetrack/internal/risk"
	"github.com/p-blackswan/pulsetrack/internal/state"
	"github.com/p-blackswan/pulsetrack/pkg/lru"
)

// Bounds on the hydrated-aggregate cache. The TTL caps staleness if
// the database is written outside this process.
const (
	aggregateCacheSize = 128
	aggregateCacheTTL  = 5 * time.Minute
)

// UpdateProcessor produces a structured state from an update.
type UpdateProcessor interface {
	Process(ctx context.Context, req processor.Request) (*state.StructuredState, error)
}

// AlertNotifier delivers high-severity alerts to an external channel.
// Implementations must not block the update cycle.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, projectName string, alert risk.Alert)
}

// ContextSeeder fetches a seed document for a project's initial context.
type ContextSeeder interface {
	FetchContext(ctx context.Context, repo string) (string, error)
}

// Manager owns the project aggregates: it runs the full update cycle
// (process, detect, commit) and serializes overlapping submissions per
// project so risk detection never diffs against a stale baseline.
type Manager struct {
	store    *Store
	proc     UpdateProcessor
	detector *risk.Detector
	notifier AlertNotifier
	seeder   ContextSeeder
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	cache *lru.Cache[string, *Project]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithNotifier attaches an alert notifier.
func WithNotifier(n AlertNotifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithSeeder attaches a context seeder.
func WithSeeder(s ContextSeeder) ManagerOption {
	return func(m *Manager) { m.seeder = s }
}

// WithMetrics attaches metric recording.
func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager creates a project manager.
func NewManager(store *Store, proc UpdateProcessor, detector *risk.Detector, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		proc:     proc,
		detector: detector,
		logger:   logger.With().Str("component", "project.manager").Logger(),
		cache: lru.New[string, *Project](aggregateCacheSize,
			lru.WithTTL[string, *Project](aggregateCacheTTL)),
		locks: make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// projectLock returns the mutex serializing update cycles for one project.
func (m *Manager) projectLock(projectID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[projectID] = l
	}
	return l
}

// CreateProject creates an empty project. When the input references a repo
// and a seeder is configured, the fetched document seeds the initial context;
// seed failures are non-fatal.
func (m *Manager) CreateProject(ctx context.Context, input CreateProjectInput) (*Project, error) {
	if input.Repo != "" && input.InitialContext == "" && m.seeder != nil {
		doc, err := m.seeder.FetchContext(ctx, input.Repo)
		if err != nil {
			m.logger.Warn().Str("repo", input.Repo).Err(err).Msg("seed fetch failed, creating without context")
		} else {
			input.InitialContext = doc
		}
	}
	return m.store.CreateProject(input)
}

// GetProject returns the hydrated aggregate, nil if absent.
func (m *Manager) GetProject(id string) (*Project, error) {
	if p, ok := m.cache.Get(id); ok {
		return p, nil
	}
	p, err := m.store.GetProject(id)
	if err != nil || p == nil {
		return p, err
	}
	m.cache.Put(id, p)
	return p, nil
}

// ListProjects returns all hydrated aggregates, optionally status-filtered.
func (m *Manager) ListProjects(status string) ([]*Project, error) {
	return m.store.ListProjects(status)
}

// UpdateProjectMeta patches project metadata.
func (m *Manager) UpdateProjectMeta(id string, input UpdateProjectInput) (*Project, error) {
	p, err := m.store.UpdateProjectMeta(id, input)
	if err == nil {
		m.cache.Delete(id)
	}
	return p, err
}

// DeleteProject removes a project and its updates irreversibly.
func (m *Manager) DeleteProject(id string) error {
	err := m.store.DeleteProject(id)
	if err == nil {
		m.cache.Delete(id)
	}
	return err
}

// DeleteUpdate removes one update. The cached current/previous states are
// not recomputed from the remaining history; the cheaper stale-cache
// behavior is a documented trade-off.
func (m *Manager) DeleteUpdate(projectID, updateID string) error {
	err := m.store.DeleteUpdate(projectID, updateID)
	if err == nil {
		m.cache.Delete(projectID)
	}
	return err
}

// SubmitResult is the outcome of one update cycle.
type SubmitResult struct {
	Update    *Update      `json:"update"`
	NewAlerts []risk.Alert `json:"new_alerts"`
	// State is the project's current state after the cycle. Unchanged when
	// processing failed.
	State *state.StructuredState `json:"state"`
}

// SubmitUpdate runs one full update cycle as an atomic transition:
//
//  1. process the text against the current baseline,
//  2. detect risks from (previous, new) on success,
//  3. append the update, shift the cached state, append alerts — in one
//     transaction.
//
// A failed processing cycle still records the update (raw text is never
// lost) but does not advance the state. Overlapping calls for the same
// project are serialized so step 2 always diffs against a settled baseline.
func (m *Manager) SubmitUpdate(ctx context.Context, projectID string, input SubmitUpdateInput) (*SubmitResult, error) {
	if input.Text == "" {
		return nil, fmt.Errorf("%w: update text is required", perrors.ErrInvalidInput)
	}

	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	// Read the baseline fresh from the store under the lock.
	p, err := m.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, perrors.ErrNotFound)
	}

	now := time.Now()
	update := &Update{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Text:      input.Text,
		Tags:      input.Tags,
		Comments:  input.Comments,
		Timestamp: now,
	}

	newState, procErr := m.proc.Process(ctx, processor.Request{
		ProjectName:    p.Name,
		Goal:           p.Goal,
		InitialContext: p.InitialContext,
		Previous:       p.CurrentState,
		UpdateText:     input.Text,
	})

	params := CommitUpdateParams{Update: update}
	var newAlerts []risk.Alert

	if procErr != nil {
		var pe *perrors.ProcessingError
		if !errors.As(procErr, &pe) {
			// Anything other than a processing failure (e.g. cancellation)
			// aborts the cycle entirely.
			return nil, procErr
		}
		update.ProcessingError = pe.Error()
		m.logger.Warn().
			Str("project_id", projectID).
			Int("attempts", pe.Attempts).
			Err(pe.Err).
			Msg("update recorded without structured state")
		if m.metrics != nil {
			m.metrics.RecordUpdate("processing_failed")
			m.metrics.RecordError("processor", "processing_failed")
		}
	} else {
		update.State = newState
		newAlerts = m.detector.Detect(p.CurrentState, newState, now)
		params.AdvanceState = true
		params.CurrentState = newState
		params.PreviousState = p.CurrentState
		params.NewAlerts = newAlerts
		if m.metrics != nil {
			m.metrics.RecordUpdate("processed")
			for _, a := range newAlerts {
				m.metrics.RecordAlert(string(a.Type), string(a.Severity))
			}
		}
	}

	if err := m.store.CommitUpdate(ctx, projectID, params); err != nil {
		// The aggregate is untouched; the submission did not happen.
		return nil, err
	}
	m.cache.Delete(projectID)

	result := &SubmitResult{Update: update, NewAlerts: newAlerts, State: p.CurrentState}
	if params.AdvanceState {
		result.State = newState
	}

	if m.notifier != nil {
		for _, a := range newAlerts {
			if a.Severity == risk.SeverityHigh {
				go m.notifier.NotifyAlert(context.WithoutCancel(ctx), p.Name, a)
			}
		}
	}

	return result, nil
}
