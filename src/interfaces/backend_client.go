package interfaces

import (
	"context"

	"umap-replay/src/models"
)

// -----------------------------------------------------------------------------
// IBackendClient defines the embedding backend REST contract consumed by the
// playback core. Every call is one attempt; callers decide how a failure
// degrades (fallback label, stale frame, retained assignment).
// -----------------------------------------------------------------------------

type IBackendClient interface {
	// -----------------------------------------------------------------------------
	// ListInstruments returns the backend's instrument catalogue.
	ListInstruments(ctx context.Context) ([]string, error)

	// -----------------------------------------------------------------------------
	// InstrumentInfo returns descriptive data for one instrument.
	InstrumentInfo(ctx context.Context, stockCode string) (*models.MInstrumentInfo, error)

	// -----------------------------------------------------------------------------
	// LookupTime converts a time step to its "YYYY-MM-DD HH:MM:SS" label.
	LookupTime(ctx context.Context, timeStep int) (string, error)

	// -----------------------------------------------------------------------------
	// LookupTimeStep converts a "YYYY-MM-DD HH:MM" label to its time step.
	// The backend may round the input to its nearest representable step.
	LookupTimeStep(ctx context.Context, timeLabel string) (int, error)

	// -----------------------------------------------------------------------------
	// FetchCoordinates returns raw coordinates for the given instruments at
	// one time step. The map may omit instruments the backend has no data for.
	FetchCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, error)

	// -----------------------------------------------------------------------------
	// FetchClusteredCoordinates returns baseline coordinates plus the cluster
	// assignment computed at the given base step.
	FetchClusteredCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, map[string]int, error)
}
