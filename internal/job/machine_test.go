package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// memCheckpoints is an in-memory CheckpointStore that counts operations and
// can be told to fail, mirroring a broken disk.
type memCheckpoints struct {
	mu         sync.Mutex
	snapshot   *entity.Job
	writes     int
	clears     int
	failWrites bool
}

func (s *memCheckpoints) Write(_ context.Context, snapshot entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("disk gone")
	}
	cp := snapshot
	s.snapshot = &cp
	s.writes++
	return nil
}

func (s *memCheckpoints) Read(_ context.Context) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil, nil
	}
	cp := *s.snapshot
	return &cp, nil
}

func (s *memCheckpoints) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.clears++
	return nil
}

func (s *memCheckpoints) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memCheckpoints) current() *entity.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	cp := *s.snapshot
	return &cp
}

func testRequest() entity.ClipRequest {
	return entity.ClipRequest{
		URL:    "https://example.com/article",
		Format: constants.FormatMarkdown,
	}
}

func TestBeginRejectsSecondJobUntilTerminal(t *testing.T) {
	store := &memCheckpoints{}
	m := NewManager(store, Config{}, nil)
	defer m.Close()

	first, _, err := m.Begin(testRequest())
	require.NoError(t, err)
	assert.Equal(t, constants.StageAnalyzing, first.Stage)

	_, _, err = m.Begin(testRequest())
	assert.ErrorIs(t, err, common.ErrAlreadyRunning)

	m.Complete(&entity.ClipResult{Title: "done"})

	second, _, err := m.Begin(testRequest())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAdvanceEnforcesStageOrder(t *testing.T) {
	store := &memCheckpoints{}
	m := NewManager(store, Config{}, nil)
	defer m.Close()

	_, _, err := m.Begin(testRequest())
	require.NoError(t, err)

	// skipping extraction is a pipeline bug
	err = m.Advance(constants.StageGenerating)
	require.Error(t, err)
	var app *common.AppError
	require.ErrorAs(t, err, &app)
	assert.Equal(t, common.CodeInternal, app.Code)

	require.NoError(t, m.Advance(constants.StageExtracting))
	require.NoError(t, m.Advance(constants.StageTranslating))
	require.NoError(t, m.Advance(constants.StageGenerating))

	// backward moves never validate
	assert.Error(t, m.Advance(constants.StageExtracting))

	m.Complete(nil)
	assert.ErrorIs(t, m.Advance(constants.StageExtracting), common.ErrNoActiveJob)
}

func TestTranslationStageIsOptional(t *testing.T) {
	m := NewManager(&memCheckpoints{}, Config{}, nil)
	defer m.Close()

	_, _, err := m.Begin(testRequest())
	require.NoError(t, err)
	require.NoError(t, m.Advance(constants.StageExtracting))
	require.NoError(t, m.Advance(constants.StageGenerating), "extracting may go straight to generating")
}

func TestEveryMutationWritesACheckpoint(t *testing.T) {
	store := &memCheckpoints{}
	m := NewManager(store, Config{}, nil)
	defer m.Close()

	_, _, err := m.Begin(testRequest())
	require.NoError(t, err)
	afterBegin := store.writeCount()
	require.GreaterOrEqual(t, afterBegin, 1)

	require.NoError(t, m.Advance(constants.StageExtracting))
	m.Progress(40, "extracting chunk 2/5")

	assert.GreaterOrEqual(t, store.writeCount(), afterBegin+2)
	snap := store.current()
	require.NotNil(t, snap)
	assert.Equal(t, constants.StageExtracting, snap.Stage)
	assert.Equal(t, 40, snap.Progress)
	assert.Equal(t, "extracting chunk 2/5", snap.Status)
}

func TestCheckpointFailuresNeverFailTheJob(t *testing.T) {
	store := &memCheckpoints{failWrites: true}
	m := NewManager(store, Config{}, nil)
	defer m.Close()

	j, _, err := m.Begin(testRequest())
	require.NoError(t, err, "begin succeeds with a dead store")
	require.NoError(t, m.Advance(constants.StageExtracting))
	m.Progress(10, "still fine")

	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, constants.StageExtracting, got.Stage)
}

func TestCancelFlagsJobAndCancelsContext(t *testing.T) {
	store := &memCheckpoints{}
	m := NewManager(store, Config{}, nil)
	defer m.Close()

	_, jobCtx, err := m.Begin(testRequest())
	require.NoError(t, err)
	require.NoError(t, m.CheckCancelled())

	flagged, err := m.Cancel()
	require.NoError(t, err)
	assert.True(t, flagged.Cancelled)
	assert.True(t, flagged.Stage.Active(), "stage finalizes at the next boundary, not here")

	select {
	case <-jobCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("job context not cancelled")
	}
	assert.ErrorIs(t, m.CheckCancelled(), common.ErrCancelled)

	m.FinalizeCancelled()
	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, constants.StageCancelled, got.Stage)
	assert.Nil(t, store.current(), "terminal job leaves no checkpoint")

	_, err = m.Cancel()
	assert.ErrorIs(t, err, common.ErrNoActiveJob)
}

func TestFailRecordsNormalizedError(t *testing.T) {
	m := NewManager(&memCheckpoints{}, Config{}, nil)
	defer m.Close()

	_, _, err := m.Begin(testRequest())
	require.NoError(t, err)

	m.Fail(common.NewAppError(common.CodeExtractionFailed, "page had no readable content", nil))

	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, constants.StageError, got.Stage)
	require.NotNil(t, got.Error)
	assert.Equal(t, common.CodeExtractionFailed, got.Error.Code)
	assert.Equal(t, "page had no readable content", got.Error.Message)
}

func TestHeartbeatKeepsSnapshotFresh(t *testing.T) {
	store := &memCheckpoints{}
	m := NewManager(store, Config{HeartbeatInterval: 25 * time.Millisecond}, nil)
	defer m.Close()

	_, _, err := m.Begin(testRequest())
	require.NoError(t, err)
	base := store.writeCount()

	// several beats land without any explicit mutation
	require.Eventually(t, func() bool {
		return store.writeCount() >= base+3
	}, 2*time.Second, 10*time.Millisecond)

	m.Complete(nil)
	assert.Nil(t, store.current())
}

func TestResumePicksUpFreshSnapshot(t *testing.T) {
	store := &memCheckpoints{}
	m1 := NewManager(store, Config{}, nil)

	started, _, err := m1.Begin(testRequest())
	require.NoError(t, err)
	require.NoError(t, m1.Advance(constants.StageExtracting))
	m1.Progress(60, "extracting chunk 3/5")
	snap := store.current()
	require.NotNil(t, snap)
	m1.Close() // process dies; checkpoint stays

	// restart 5 seconds later, well inside the threshold
	m2 := NewManager(store, Config{ResumeThreshold: 60 * time.Second}, nil)
	defer m2.Close()
	m2.now = func() time.Time { return snap.LastUpdate.Add(5 * time.Second) }

	resumed, jobCtx, err := m2.Resume(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resumed, "a 5s-old snapshot resumes")
	require.NotNil(t, jobCtx)
	assert.Equal(t, started.ID, resumed.ID)
	assert.Equal(t, constants.StageExtracting, resumed.Stage)
	assert.Equal(t, 60, resumed.Progress)
	assert.True(t, m2.Active())
}

func TestResumeDiscardsStaleSnapshot(t *testing.T) {
	store := &memCheckpoints{}
	m1 := NewManager(store, Config{}, nil)
	_, _, err := m1.Begin(testRequest())
	require.NoError(t, err)
	snap := store.current()
	require.NotNil(t, snap)
	m1.Close()

	// restart 90 seconds later: past the 60s threshold
	m2 := NewManager(store, Config{ResumeThreshold: 60 * time.Second}, nil)
	defer m2.Close()
	m2.now = func() time.Time { return snap.LastUpdate.Add(90 * time.Second) }

	resumed, jobCtx, err := m2.Resume(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resumed, "stale snapshot is not resumed")
	assert.Nil(t, jobCtx)
	assert.Nil(t, store.current(), "stale checkpoint cleared")
	assert.False(t, m2.Active())
}

func TestResumeWithEmptyStoreStartsIdle(t *testing.T) {
	m := NewManager(&memCheckpoints{}, Config{}, nil)
	defer m.Close()

	resumed, jobCtx, err := m.Resume(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resumed)
	assert.Nil(t, jobCtx)
}

func TestCurrentKeepsTerminalJobUntilReplaced(t *testing.T) {
	m := NewManager(&memCheckpoints{}, Config{}, nil)
	defer m.Close()

	_, ok := m.Current()
	assert.False(t, ok)

	j, _, err := m.Begin(testRequest())
	require.NoError(t, err)
	m.Complete(&entity.ClipResult{Title: "kept"})

	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, constants.StageComplete, got.Stage)
	require.NotNil(t, got.Result)
	assert.Equal(t, "kept", got.Result.Title)
}
