package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// memoryDB stages writes made inside RunInTx and applies them on commit.
type memoryDB struct {
	jobs    []models.Job
	star    models.Star
	pending *memoryTx

	warehouseErr error
	txCalls      int
}

type memoryTx struct {
	jobs []models.Job
	star *models.Star
}

func (db *memoryDB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txCalls++
	db.pending = &memoryTx{}
	defer func() { db.pending = nil }()

	if err := fn(ctx); err != nil {
		return err
	}
	if db.pending.jobs != nil {
		db.jobs = db.pending.jobs
	}
	if db.pending.star != nil {
		db.star = *db.pending.star
	}
	return nil
}

type canonicalFake struct{ db *memoryDB }

func (c canonicalFake) Replace(_ context.Context, jobs []models.Job) error {
	if c.db.pending == nil {
		return errors.New("write outside transaction")
	}
	c.db.pending.jobs = append([]models.Job{}, jobs...)
	return nil
}

type warehouseFake struct{ db *memoryDB }

func (w warehouseFake) Replace(_ context.Context, star models.Star) error {
	if w.db.pending == nil {
		return errors.New("write outside transaction")
	}
	if w.db.warehouseErr != nil {
		return w.db.warehouseErr
	}
	w.db.pending.star = &star
	return nil
}

type fakeRaw struct {
	raw   models.RawSet
	err   error
	calls int
}

func (f *fakeRaw) Load(context.Context) (models.RawSet, error) {
	f.calls++
	return f.raw, f.err
}

type fakeIngester struct {
	raw   models.RawSet
	err   error
	calls int
}

func (f *fakeIngester) Ingest(context.Context) (models.RawSet, error) {
	f.calls++
	return f.raw, f.err
}

type fakeRunLog struct {
	created  []models.PipelineRun
	finished []models.PipelineRun
	results  map[uuid.UUID][]models.AssertionResult
}

func newFakeRunLog() *fakeRunLog {
	return &fakeRunLog{results: map[uuid.UUID][]models.AssertionResult{}}
}

func (f *fakeRunLog) Create(_ context.Context, run *models.PipelineRun) error {
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRunLog) Finish(_ context.Context, run *models.PipelineRun) error {
	f.finished = append(f.finished, *run)
	return nil
}

func (f *fakeRunLog) SaveResults(_ context.Context, runID uuid.UUID, results []models.AssertionResult) error {
	f.results[runID] = results
	return nil
}

type fakeChecker struct {
	report validation.Report
	err    error
}

func (f fakeChecker) Check(context.Context) (validation.Report, error) {
	return f.report, f.err
}

type fakeLocker struct {
	err      error
	released int
}

func (f *fakeLocker) Hold(context.Context) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

type fakeEvents struct {
	published []events.RunEvent
}

func (f *fakeEvents) PublishRun(_ context.Context, evt events.RunEvent) error {
	f.published = append(f.published, evt)
	return nil
}

type harness struct {
	db       *memoryDB
	raw      *fakeRaw
	ingester *fakeIngester
	runLog   *fakeRunLog
	locker   *fakeLocker
	events   *fakeEvents
	observed []models.PipelineRun
}

func newHarness() *harness {
	return &harness{
		db:       &memoryDB{},
		raw:      &fakeRaw{raw: scenarioRaw()},
		ingester: &fakeIngester{raw: scenarioRaw()},
		runLog:   newFakeRunLog(),
		locker:   &fakeLocker{},
		events:   &fakeEvents{},
	}
}

func (h *harness) runner(t *testing.T, checker StoreChecker) *Runner {
	t.Helper()
	runner, err := NewRunner(Dependencies{
		Raw:       h.raw,
		Ingester:  h.ingester,
		Canonical: canonicalFake{db: h.db},
		Warehouse: warehouseFake{db: h.db},
		Tx:        h.db,
		Checker:   checker,
		RunLog:    h.runLog,
		Locker:    h.locker,
		Events:    h.events,
		Observer:  func(run models.PipelineRun) { h.observed = append(h.observed, run) },
	}, BuildOptions{}, testLogger())
	require.NoError(t, err)
	runner.now = func() time.Time { return runTime }
	return runner
}

func TestNewRunner_MissingDependency(t *testing.T) {
	_, err := NewRunner(Dependencies{}, BuildOptions{}, testLogger())
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestRunner_Run(t *testing.T) {
	h := newHarness()
	report, err := h.runner(t, fakeChecker{}).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, h.ingester.calls)
	assert.Zero(t, h.raw.calls)
	assert.Equal(t, 1, h.db.txCalls)

	run := report.Run
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, 4, run.RawAPIRows)
	assert.Equal(t, 316, run.RawHistoryRows)
	assert.Equal(t, 320, run.CanonicalRows)
	assert.Equal(t, 320, run.FactRows)
	assert.Equal(t, 5, run.DepartmentRows)
	assert.Equal(t, 2, run.LocationRows)
	assert.Zero(t, run.FailedAssertions)
	assert.False(t, report.Failed())
	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), run.RunDate)

	assert.Len(t, h.db.jobs, 320)
	assert.Len(t, h.db.star.Facts, 320)

	require.Len(t, h.runLog.created, 1)
	require.Len(t, h.runLog.finished, 1)
	assert.Equal(t, models.RunStatusRunning, h.runLog.created[0].Status)
	assert.NotEmpty(t, h.runLog.results[run.RunID])

	assert.Equal(t, 1, h.locker.released)
	require.Len(t, h.events.published, 1)
	assert.Equal(t, events.EventRunSucceeded, h.events.published[0].Type)
	require.Len(t, h.observed, 1)
	assert.Equal(t, run.RunID, h.observed[0].RunID)
}

func TestRunner_SkipIngestMatchesIngest(t *testing.T) {
	h := newHarness()
	// staged rows come back from TIMESTAMPTZ in the session zone
	for i := range h.raw.raw.API {
		reloaded := h.raw.raw.API[i].UpdatedAt.UTC()
		h.raw.raw.API[i].UpdatedAt = &reloaded
	}
	runner := h.runner(t, fakeChecker{})

	_, err := runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	ingestedJobs, ingestedStar := h.db.jobs, h.db.star

	_, err = runner.Run(context.Background(), RunOptions{SkipIngest: true})
	require.NoError(t, err)
	assert.Equal(t, 1, h.raw.calls)

	assert.Equal(t, ingestedJobs, h.db.jobs)
	assert.Equal(t, ingestedStar, h.db.star)
}

func TestRunner_RunIsIdempotent(t *testing.T) {
	h := newHarness()
	runner := h.runner(t, nil)
	opts := RunOptions{SkipIngest: true, RunDate: runTime}

	_, err := runner.Run(context.Background(), opts)
	require.NoError(t, err)
	firstJobs, firstStar := h.db.jobs, h.db.star

	_, err = runner.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, h.raw.calls)
	assert.Zero(t, h.ingester.calls)
	assert.Equal(t, firstJobs, h.db.jobs)
	assert.Equal(t, firstStar, h.db.star)
}

func TestRunner_SourceUnavailable(t *testing.T) {
	h := newHarness()
	previous := []models.Job{{JobID: 1, Title: "from the last run"}}
	h.db.jobs = previous
	h.ingester.err = fmt.Errorf("%w: api: connection refused", ErrSourceUnavailable)

	report, err := h.runner(t, fakeChecker{}).Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	assert.Zero(t, h.db.txCalls)
	assert.Equal(t, previous, h.db.jobs)

	require.Len(t, h.runLog.finished, 1)
	failed := h.runLog.finished[0]
	assert.Equal(t, models.RunStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "connection refused")
	require.Len(t, h.events.published, 1)
	assert.Equal(t, events.EventRunFailed, h.events.published[0].Type)
}

func TestRunner_StagedRowsUnreadable(t *testing.T) {
	h := newHarness()
	h.raw.err = errors.New("relation does not exist")

	_, err := h.runner(t, nil).Run(context.Background(), RunOptions{SkipIngest: true})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Zero(t, h.db.txCalls)
}

func TestRunner_PersistFailureKeepsPreviousTables(t *testing.T) {
	h := newHarness()
	previous := []models.Job{{JobID: 1, Title: "from the last run"}}
	h.db.jobs = previous
	h.db.warehouseErr = errors.New("disk full")

	_, err := h.runner(t, nil).Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, previous, h.db.jobs)
	assert.Equal(t, models.RunStatusFailed, h.runLog.finished[0].Status)
}

func TestRunner_FailedAssertionsAreReported(t *testing.T) {
	h := newHarness()
	checker := fakeChecker{report: validation.Report{Results: []models.AssertionResult{
		validation.Count(models.ScopeStore, validation.FactDepartmentKey, 3),
	}}}

	report, err := h.runner(t, checker).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.True(t, report.Failed())
	assert.Equal(t, models.RunStatusSucceeded, report.Run.Status)
	assert.Equal(t, 1, report.Run.FailedAssertions)
	assert.Equal(t, []string{"store." + validation.FactDepartmentKey}, h.events.published[0].FailedAssertions)
}

func TestRunner_StoreCheckError(t *testing.T) {
	h := newHarness()

	_, err := h.runner(t, fakeChecker{err: errors.New("timeout")}).Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, h.runLog.finished[0].Status)
}

func TestRunner_LockHeldElsewhere(t *testing.T) {
	h := newHarness()
	errHeld := errors.New("lock not acquired")
	h.locker.err = errHeld

	_, err := h.runner(t, nil).Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, errHeld)
	assert.Empty(t, h.runLog.created)
	assert.Zero(t, h.ingester.calls)
}
