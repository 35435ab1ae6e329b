package interfaces

import "umap-replay/src/models"

// -----------------------------------------------------------------------------
// IFramePublisher is the seam toward the rendering collaborator: the core
// emits a value per step, it does not rely on anything watching its state.
// -----------------------------------------------------------------------------

type IFramePublisher interface {
	// -----------------------------------------------------------------------------
	// Publish pushes one per-step frame to whoever is rendering. Must not
	// block the caller; slow consumers are the publisher's problem.
	Publish(frame *models.MPlaybackFrame)
}
