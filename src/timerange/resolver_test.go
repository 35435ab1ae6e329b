package timerange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"umap-replay/src/cluster"
	"umap-replay/src/helpers"
	"umap-replay/src/logger"
	"umap-replay/src/models"
	"umap-replay/src/playback"
	"umap-replay/src/timecache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fake Backend
// -----------------------------------------------------------------------------

type fakeBackend struct {
	mu    sync.Mutex
	steps map[string]int // time label -> step
}

func (f *fakeBackend) LookupTimeStep(ctx context.Context, timeLabel string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, ok := f.steps[timeLabel]
	if !ok {
		return 0, errors.New("time not covered by the embedding")
	}
	return step, nil
}

func (f *fakeBackend) LookupTime(ctx context.Context, timeStep int) (string, error) {
	return fmt.Sprintf("2019-01-02 09:%02d:00", 30+timeStep%25), nil
}

func (f *fakeBackend) ListInstruments(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeBackend) InstrumentInfo(ctx context.Context, stockCode string) (*models.MInstrumentInfo, error) {
	return nil, nil
}
func (f *fakeBackend) FetchCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, error) {
	return map[string]models.MCoordinate{}, nil
}
func (f *fakeBackend) FetchClusteredCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, map[string]int, error) {
	return nil, nil, errors.New("not used")
}

// -----------------------------------------------------------------------------

type fixture struct {
	resolver  *Resolver
	scheduler *playback.Scheduler
}

func newFixture(steps map[string]int) *fixture {
	cfg := &models.MConfig{}
	cfg.Playback.TickIntervalMS = 1000
	cfg.Backend.FetchTimeout = 1

	backend := &fakeBackend{steps: steps}
	clusters := cluster.NewStore(backend, logger.NewLogger("INFO", "ClusterStore-test"))
	times := timecache.NewTimeCache(backend, logger.NewLogger("INFO", "TimeCache-test"))
	scheduler := playback.NewScheduler(cfg, backend, clusters, times, nil, logger.NewLogger("INFO", "Scheduler-test"))
	resolver := NewResolver(backend, times, scheduler, logger.NewLogger("INFO", "TimeRangeResolver-test"))

	return &fixture{resolver: resolver, scheduler: scheduler}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestResolveUpdatesSchedulerRange(t *testing.T) {
	fix := newFixture(map[string]int{
		"2019-01-02 09:31": 1,
		"2019-01-03 09:31": 51,
	})

	resolved, err := fix.resolver.Resolve(context.Background(), "2019-01-02 09:31", "2019-01-03 09:31")
	require.NoError(t, err)

	assert.Equal(t, 1, resolved.Start)
	assert.Equal(t, 51, resolved.End)
	assert.NotEmpty(t, resolved.StartLabel)
	assert.NotEmpty(t, resolved.EndLabel)

	start, end := fix.scheduler.Range()
	assert.Equal(t, 1, start)
	assert.Equal(t, 51, end)
}

// -----------------------------------------------------------------------------

func TestResolveRejectsInvertedRange(t *testing.T) {
	fix := newFixture(map[string]int{
		"2019-01-03 09:31": 51,
		"2019-01-02 09:31": 1,
	})
	fix.scheduler.SetRange(5, 10)

	_, err := fix.resolver.Resolve(context.Background(), "2019-01-03 09:31", "2019-01-02 09:31")
	require.Error(t, err)

	var rangeErr *helpers.RangeValidationError
	assert.True(t, errors.As(err, &rangeErr))

	// The active range is untouched
	start, end := fix.scheduler.Range()
	assert.Equal(t, 5, start)
	assert.Equal(t, 10, end)
}

// -----------------------------------------------------------------------------

func TestResolveSingleStepRange(t *testing.T) {
	// Equal bounds are a valid one-step range
	fix := newFixture(map[string]int{"2019-01-02 09:31": 1})

	resolved, err := fix.resolver.Resolve(context.Background(), "2019-01-02 09:31", "2019-01-02 09:31")
	require.NoError(t, err)
	assert.Equal(t, 1, resolved.Start)
	assert.Equal(t, 1, resolved.End)
}

// -----------------------------------------------------------------------------

func TestResolveLookupFailure(t *testing.T) {
	fix := newFixture(map[string]int{"2019-01-02 09:31": 1})
	fix.scheduler.SetRange(5, 10)

	_, err := fix.resolver.Resolve(context.Background(), "2019-01-02 09:31", "2030-01-01 00:00")
	require.Error(t, err)

	var lookupErr *helpers.LookupError
	assert.True(t, errors.As(err, &lookupErr))

	start, end := fix.scheduler.Range()
	assert.Equal(t, 5, start)
	assert.Equal(t, 10, end)
}
