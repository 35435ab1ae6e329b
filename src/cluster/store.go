package cluster

import (
	"context"
	"sync"

	"umap-replay/src/helpers"
	"umap-replay/src/interfaces"
	"umap-replay/src/logger"
	"umap-replay/src/models"
)

// -----------------------------------------------------------------------------
// Palette
// -----------------------------------------------------------------------------

// Palette is the fixed color cycle for cluster ids. Smaller than the
// expected cluster count, so colors repeat.
var Palette = []string{
	"#5470c6", "#91cc75", "#fac858", "#ee6666", "#73c0de",
	"#3ba272", "#fc8452", "#9a60b4", "#ea7ccc",
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store holds the stable instrument -> cluster assignment established by one
// "generate clusters" call, plus the derived color assignment. The assignment
// is replaced in full on success and discarded on Invalidate; partial merges
// never happen.
type Store struct {
	Backend interfaces.IBackendClient
	Logger  *logger.Logger

	mu         sync.RWMutex
	assignment map[string]int
	colors     map[int]string
	baseStep   int
	active     bool

	onInvalidate []func()
}

// -----------------------------------------------------------------------------

func NewStore(backend interfaces.IBackendClient, log *logger.Logger) *Store {
	return &Store{
		Backend: backend,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// OnInvalidate registers a hook run after the assignment is discarded.
// Wiring uses this to force playback back to Stopped so a stale assignment
// is never shown.
func (s *Store) OnInvalidate(fn func()) {
	s.mu.Lock()
	s.onInvalidate = append(s.onInvalidate, fn)
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Generate performs the single backend call that returns baseline coordinates
// and an assignment for (instruments, baseStep). On success the result
// replaces the current assignment and the color cycle is derived; on failure
// the current assignment is left untouched and the error is surfaced.
//
// Color discovery order is the order of the instruments slice (the order the
// selection was built in), so repeated calls within one assignment's lifetime
// give identical colors.
func (s *Store) Generate(ctx context.Context, instruments []string, baseStep int) (map[string]models.MCoordinate, error) {
	coords, clusterInfo, err := s.Backend.FetchClusteredCoordinates(ctx, instruments, baseStep)
	if err != nil {
		s.Logger.Warning("cluster generation at step %d failed: %v", baseStep, err)
		return nil, helpers.NewClusterGenerationError("cluster generation failed", err)
	}

	assignment := make(map[string]int, len(clusterInfo))
	for code, id := range clusterInfo {
		assignment[code] = id
	}

	s.mu.Lock()
	s.assignment = assignment
	s.baseStep = baseStep
	s.active = true

	baseline := s.overlayLocked(coords)

	// Derive colors once per assignment: i-th distinct cluster id found in
	// the overlaid baseline gets palette[i mod len(palette)].
	colors := make(map[int]string)
	for _, code := range instruments {
		coord, ok := baseline[code]
		if !ok || coord.ClusterID == nil {
			continue
		}
		if _, seen := colors[*coord.ClusterID]; !seen {
			colors[*coord.ClusterID] = Palette[len(colors)%len(Palette)]
		}
	}
	s.colors = colors
	s.mu.Unlock()

	s.Logger.Info("cluster assignment generated: %d instruments, %d clusters at step %d",
		len(assignment), len(colors), baseStep)

	return baseline, nil
}

// -----------------------------------------------------------------------------

// Overlay forces the stored cluster id onto every instrument present in the
// current assignment, overwriting whatever the raw payload carried.
// Instruments absent from the assignment pass through unchanged. Idempotent.
func (s *Store) Overlay(raw map[string]models.MCoordinate) map[string]models.MCoordinate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlayLocked(raw)
}

// overlayLocked requires s.mu held (read or write).
func (s *Store) overlayLocked(raw map[string]models.MCoordinate) map[string]models.MCoordinate {
	out := make(map[string]models.MCoordinate, len(raw))
	for code, coord := range raw {
		if id, ok := s.assignment[code]; ok {
			assigned := id
			coord.ClusterID = &assigned
		}
		out[code] = coord
	}
	return out
}

// -----------------------------------------------------------------------------

// Colors returns the derived cluster -> color assignment (copy).
func (s *Store) Colors() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]string, len(s.colors))
	for id, color := range s.colors {
		out[id] = color
	}
	return out
}

// -----------------------------------------------------------------------------

// Active reports whether an assignment exists. Playback cannot start without one.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// -----------------------------------------------------------------------------

// BaseStep returns the step the current assignment was computed at.
func (s *Store) BaseStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseStep
}

// -----------------------------------------------------------------------------

// Invalidate discards the assignment and derived colors atomically, then runs
// the registered hooks. Must be called whenever the instrument selection or
// the base step changes, before any new Generate call.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.assignment = nil
	s.colors = nil
	s.active = false
	hooks := s.onInvalidate
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
