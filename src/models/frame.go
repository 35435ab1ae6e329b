package models

// -----------------------------------------------------------------------------
// Published Frame Structure
// -----------------------------------------------------------------------------

// MPlaybackFrame is the per-step event published to the rendering side: the
// step, its display label, the cluster-overlaid coordinates and the current
// color assignment. Consumers must treat a frame as "latest known for the
// step it names"; arrival order is not guaranteed.
type MPlaybackFrame struct {
	Type        string                 `json:"type"` // "FRAME"
	TimeStep    int                    `json:"time_step"`
	Label       string                 `json:"label"`
	Coordinates map[string]MCoordinate `json:"coordinates"`
	Colors      map[int]string         `json:"colors"`
	Timestamp   int64                  `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Client Command (websocket)
// -----------------------------------------------------------------------------

type MClientCommand struct {
	Command string `json:"command"`
}

// -----------------------------------------------------------------------------
// Resolved Range (answer to a real-time range request)
// -----------------------------------------------------------------------------

type MResolvedRange struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	StartLabel string `json:"start_label"`
	EndLabel   string `json:"end_label"`
}
