package models

// -----------------------------------------------------------------------------
// Embedding Coordinate (Matches backend payload exactly)
// -----------------------------------------------------------------------------

// MCoordinate is the 2-D embedding position of one instrument at one time step.
// ClusterID is a pointer because the raw backend payload may or may not carry
// it; nil means "unassigned" until the cluster overlay fills it in.
type MCoordinate struct {
	Umap1     float64 `json:"umap1"`
	Umap2     float64 `json:"umap2"`
	TimeStep  int     `json:"time_step,omitempty"`
	ClusterID *int    `json:"cluster_id,omitempty"`
}

// -----------------------------------------------------------------------------

// MInstrumentInfo is the backend's descriptive record for one instrument.
type MInstrumentInfo struct {
	StockCode      string         `json:"stock_code"`
	TotalTimeSteps int            `json:"total_time_steps"`
	TimeStepRange  MTimeStepRange `json:"time_step_range"`
}

type MTimeStepRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}
