package timerange

import (
	"context"
	"fmt"
	"sync"

	"umap-replay/src/helpers"
	"umap-replay/src/interfaces"
	"umap-replay/src/logger"
	"umap-replay/src/models"
	"umap-replay/src/playback"
	"umap-replay/src/timecache"
)

// -----------------------------------------------------------------------------
// Resolver
// -----------------------------------------------------------------------------

// Resolver converts user-supplied real-time bounds ("YYYY-MM-DD HH:MM") into
// the integer step range the scheduler consumes. The backend may round an
// input time to its nearest representable step; the resolver does not
// second-guess that, it reports whatever came back.
type Resolver struct {
	Backend   interfaces.IBackendClient
	Times     *timecache.TimeCache
	Scheduler *playback.Scheduler
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewResolver(backend interfaces.IBackendClient, times *timecache.TimeCache, scheduler *playback.Scheduler, log *logger.Logger) *Resolver {
	return &Resolver{
		Backend:   backend,
		Times:     times,
		Scheduler: scheduler,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Resolve looks up both bounds independently, validates their ordering, and
// on success updates the scheduler range and warms the display labels for
// both bounds. On validation failure the range is left unchanged.
func (r *Resolver) Resolve(ctx context.Context, startTime, endTime string) (*models.MResolvedRange, error) {
	var (
		startStep, endStep int
		startErr, endErr   error
		wg                 sync.WaitGroup
	)

	// The two reverse lookups are independent of each other.
	wg.Add(2)
	go func() {
		defer wg.Done()
		startStep, startErr = r.Backend.LookupTimeStep(ctx, startTime)
	}()
	go func() {
		defer wg.Done()
		endStep, endErr = r.Backend.LookupTimeStep(ctx, endTime)
	}()
	wg.Wait()

	if startErr != nil {
		return nil, helpers.NewLookupError(fmt.Sprintf("cannot resolve start time '%s'", startTime), startErr)
	}
	if endErr != nil {
		return nil, helpers.NewLookupError(fmt.Sprintf("cannot resolve end time '%s'", endTime), endErr)
	}

	if endStep < startStep {
		r.Logger.Warning("rejected range: end step %d precedes start step %d", endStep, startStep)
		return nil, helpers.NewRangeValidationError(
			fmt.Sprintf("end time resolves to step %d which precedes start step %d", endStep, startStep))
	}

	r.Scheduler.SetRange(startStep, endStep)

	labels := r.Times.LookupMany(ctx, []int{startStep, endStep})
	resolved := &models.MResolvedRange{
		Start:      startStep,
		End:        endStep,
		StartLabel: labels[startStep],
		EndLabel:   labels[endStep],
	}

	r.Logger.Info("range resolved: [%d, %d] (%s -> %s)", startStep, endStep, resolved.StartLabel, resolved.EndLabel)
	return resolved, nil
}
