package interfaces

import "umap-replay/src/models"

// -----------------------------------------------------------------------------
// IFrameStore persists published frames so a session can be inspected after
// the fact. Implementations: sqlite (default), postgres.
// -----------------------------------------------------------------------------

type IFrameStore interface {
	// -----------------------------------------------------------------------------
	// Initialize opens the connection and creates the schema.
	Initialize() error

	// -----------------------------------------------------------------------------
	// SaveFrame appends one published frame to the history.
	SaveFrame(frame *models.MPlaybackFrame) error

	// -----------------------------------------------------------------------------
	// RecentFrames returns up to limit frames, newest first.
	RecentFrames(limit int) ([]models.MPlaybackFrame, error)

	// -----------------------------------------------------------------------------
	// Close releases the underlying connection.
	Close() error
}
