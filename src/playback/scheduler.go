package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"umap-replay/src/cluster"
	"umap-replay/src/interfaces"
	"umap-replay/src/logger"
	"umap-replay/src/models"
	"umap-replay/src/timecache"
)

// -----------------------------------------------------------------------------
// Playback State
// -----------------------------------------------------------------------------

type State int

const (
	StateStopped State = iota
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// ErrNoAssignment is returned by Play when no cluster assignment is active.
var ErrNoAssignment = errors.New("playback requires an active cluster assignment")

// -----------------------------------------------------------------------------
// Non-Trading Classification
// -----------------------------------------------------------------------------

// Each trading day is a block of 50 steps; the first (pre-market) and last
// (post-close) step of every block are non-trading. For [0,199] the trading
// steps are {1..48} u {51..98} u {101..148} u {151..198}.
const stepsPerDay = 50

// IsNonTrading classifies a step under the fixed modulo rule.
func IsNonTrading(timeStep int) bool {
	return timeStep%stepsPerDay == 0 || ((timeStep+1)%stepsPerDay == 0 && timeStep > 0)
}

// -----------------------------------------------------------------------------

// NextStep returns the next step to visit after from. With skip disabled that
// is from+1. With skip enabled, candidates classified non-trading are skipped
// while they stay within end; the returned value may exceed end, which is the
// caller's stop-at-end signal.
func NextStep(from, end int, skip bool) int {
	candidate := from + 1
	if skip {
		for candidate <= end && IsNonTrading(candidate) {
			candidate++
		}
	}
	return candidate
}

// -----------------------------------------------------------------------------
// Scheduler
// -----------------------------------------------------------------------------

// Scheduler drives the playback cursor through an inclusive step range at a
// fixed cadence. It owns the single active timer; coordinate fetches are
// fire-and-forget goroutines tagged by the step they were requested for, so a
// slow or failed fetch never delays or skips a tick.
type Scheduler struct {
	Config    *models.MConfig
	Backend   interfaces.IBackendClient
	Clusters  *cluster.Store
	Times     *timecache.TimeCache
	Publisher interfaces.IFramePublisher
	Logger    *logger.Logger

	mu          sync.Mutex
	state       State
	rangeStart  int
	rangeEnd    int
	cursor      int
	skip        bool
	instruments []string
	cancelTimer context.CancelFunc

	tick         time.Duration
	fetchTimeout time.Duration
}

// -----------------------------------------------------------------------------

func NewScheduler(
	cfg *models.MConfig,
	backend interfaces.IBackendClient,
	clusters *cluster.Store,
	times *timecache.TimeCache,
	publisher interfaces.IFramePublisher,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		Config:       cfg,
		Backend:      backend,
		Clusters:     clusters,
		Times:        times,
		Publisher:    publisher,
		Logger:       log,
		skip:         cfg.Playback.SkipNonTrading,
		tick:         time.Duration(cfg.Playback.TickIntervalMS) * time.Millisecond,
		fetchTimeout: time.Duration(cfg.Backend.FetchTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Scheduler) Range() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeStart, s.rangeEnd
}

func (s *Scheduler) SkipNonTrading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip
}

// Instruments returns a copy of the current selection.
func (s *Scheduler) Instruments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.instruments))
	copy(out, s.instruments)
	return out
}

// -----------------------------------------------------------------------------
// Configuration Operations
// -----------------------------------------------------------------------------

// SetInstruments replaces the instrument selection. Callers must invalidate
// the cluster assignment alongside (the server control layer does).
func (s *Scheduler) SetInstruments(stockCodes []string) {
	s.mu.Lock()
	s.instruments = make([]string, len(stockCodes))
	copy(s.instruments, stockCodes)
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// SetRange replaces the active range. end < start is clamped at the edit
// boundary, not deferred. If the cursor falls outside the new range, or no
// assignment is active yet, the cursor resets to start.
func (s *Scheduler) SetRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}

	s.mu.Lock()
	s.rangeStart = start
	s.rangeEnd = end
	if s.cursor < start || s.cursor > end || !s.Clusters.Active() {
		s.cursor = start
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// SetSkipNonTrading toggles the skip rule for subsequent advances; the cursor
// is not moved retroactively.
func (s *Scheduler) SetSkipNonTrading(enabled bool) {
	s.mu.Lock()
	s.skip = enabled
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------
// State Machine Operations
// -----------------------------------------------------------------------------

// Play starts or resumes playback. Playing while already playing is a no-op
// guard, not a double-start. From Stopped the cursor moves to range start (or
// the next valid step from there when skip is on and the start itself is
// skippable); an out-of-bounds cursor is clamped to range start. The cursor's
// step is fetched immediately, not on the first tick.
func (s *Scheduler) Play() error {
	s.mu.Lock()
	if s.state == StatePlaying {
		s.mu.Unlock()
		return nil
	}
	if !s.Clusters.Active() {
		s.mu.Unlock()
		return ErrNoAssignment
	}

	if s.state == StateStopped || s.cursor < s.rangeStart || s.cursor > s.rangeEnd {
		s.cursor = s.rangeStart
		if s.skip && IsNonTrading(s.cursor) {
			if next := NextStep(s.cursor, s.rangeEnd, true); next <= s.rangeEnd {
				s.cursor = next
			}
		}
	}

	s.state = StatePlaying
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTimer = cancel
	step := s.cursor
	s.mu.Unlock()

	s.Logger.Info("playback started at step %d", step)
	s.spawnFetch(step)
	go s.runTimer(ctx)
	return nil
}

// -----------------------------------------------------------------------------

// Pause cancels the timer and keeps the cursor where it is.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.state = StatePaused
	cursor := s.cursor
	s.mu.Unlock()

	s.Logger.Info("playback paused at step %d", cursor)
}

// -----------------------------------------------------------------------------

// Stop cancels the timer, resets the cursor to range start and triggers one
// final fetch for it so the display settles on the range start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.state = StateStopped
	s.cursor = s.rangeStart
	step := s.cursor
	s.mu.Unlock()

	s.Logger.Info("playback stopped, cursor reset to %d", step)
	s.spawnFetch(step)
}

// -----------------------------------------------------------------------------

// HandleInvalidate forces any state back to Stopped without the final fetch:
// with the assignment gone there is nothing valid to overlay.
func (s *Scheduler) HandleInvalidate() {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.state = StateStopped
	s.cursor = s.rangeStart
	s.mu.Unlock()

	s.Logger.Debug("playback reset by assignment invalidation")
}

// cancelTimerLocked requires s.mu held.
func (s *Scheduler) cancelTimerLocked() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}

// -----------------------------------------------------------------------------
// Timer Loop
// -----------------------------------------------------------------------------

// runTimer is the single live timer. Each firing advances the cursor to the
// next valid step and spawns a fetch for it; when the next step would exceed
// the range end, playback stops and the cursor resets to range start with one
// final fetch.
func (s *Scheduler) runTimer(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != StatePlaying {
				s.mu.Unlock()
				return
			}

			next := NextStep(s.cursor, s.rangeEnd, s.skip)
			if next > s.rangeEnd {
				s.cancelTimerLocked()
				s.state = StateStopped
				s.cursor = s.rangeStart
				step := s.cursor
				s.mu.Unlock()

				s.Logger.Info("playback reached range end, stopping")
				s.spawnFetch(step)
				return
			}

			s.cursor = next
			s.mu.Unlock()
			s.spawnFetch(next)
		}
	}
}

// -----------------------------------------------------------------------------
// Coordinate Fetch
// -----------------------------------------------------------------------------

// spawnFetch requests coordinates for one step, fire-and-forget. The fetch
// carries its own short deadline; on timeout or error it is abandoned
// silently and the previously published frame stays current. A fetch that
// completes after pause/stop is still applied (last write wins), it is
// tagged by its own step value and independent of scheduler state.
func (s *Scheduler) spawnFetch(timeStep int) {
	codes := s.Instruments()
	if len(codes) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()

		raw, err := s.Backend.FetchCoordinates(ctx, codes, timeStep)
		if err != nil {
			s.Logger.Debug("coordinate fetch for step %d dropped: %v", timeStep, err)
			return
		}

		frame := &models.MPlaybackFrame{
			Type:        "FRAME",
			TimeStep:    timeStep,
			Label:       s.Times.Lookup(ctx, timeStep),
			Coordinates: s.Clusters.Overlay(raw),
			Colors:      s.Clusters.Colors(),
			Timestamp:   time.Now().Unix(),
		}
		s.Publisher.Publish(frame)
	}()
}
