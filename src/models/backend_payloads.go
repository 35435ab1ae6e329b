package models

// -----------------------------------------------------------------------------
// Backend Wire Payloads (Matches Python endpoints exactly)
// -----------------------------------------------------------------------------

type MTimesRequest struct {
	TimeStep int `json:"time_step"`
}

type MTimesResponse struct {
	AccurateTime string `json:"accurate_time"`
}

// -----------------------------------------------------------------------------

type MTimeStepRequest struct {
	Time string `json:"time"` // "YYYY-MM-DD HH:MM"
}

type MTimeStepResponse struct {
	TimeStep int `json:"time_step"`
}

// -----------------------------------------------------------------------------

type MCoordinatesRequest struct {
	StockCodes []string `json:"stock_codes"`
	TimeStep   int      `json:"time_step"`
}

type MCoordinatesResponse struct {
	TimeStep    int                    `json:"time_step"`
	Coordinates map[string]MCoordinate `json:"coordinates"`
	Errors      map[string]string      `json:"errors"`
}

// -----------------------------------------------------------------------------

// MClusterResponse carries the baseline coordinates plus the assignment
// produced by one "generate clusters" call.
type MClusterResponse struct {
	TimeStep    int                    `json:"time_step"`
	Coordinates map[string]MCoordinate `json:"coordinates"`
	ClusterInfo map[string]int         `json:"cluster_info"`
}

// -----------------------------------------------------------------------------

type MInstrumentsResponse struct {
	TotalCount int      `json:"total_count"`
	StockCodes []string `json:"stock_codes"`
}

// -----------------------------------------------------------------------------

// MBackendError is the backend's error envelope.
type MBackendError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
