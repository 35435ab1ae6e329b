package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"umap-replay/src/logger"
	"umap-replay/src/models"
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client talks to the embedding backend. One attempt per request: the
// playback core degrades on failure instead of retrying.
type Client struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	HttpClient *http.Client
	baseURL    string
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, log *logger.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: log,
		HttpClient: &http.Client{
			Timeout: time.Duration(cfg.Backend.RequestTimeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
	}
}

// -----------------------------------------------------------------------------
// Request Helpers
// -----------------------------------------------------------------------------

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

// -----------------------------------------------------------------------------

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

// -----------------------------------------------------------------------------

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response for %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		// The backend wraps failures in {"error": ..., "message": ...}
		var backendErr models.MBackendError
		if json.Unmarshal(data, &backendErr) == nil && backendErr.Error != "" {
			return fmt.Errorf("backend %s (%d): %s: %s", path, resp.StatusCode, backendErr.Error, backendErr.Message)
		}
		return fmt.Errorf("backend %s: bad status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("json unmarshal failed for %s: %w", path, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// IBackendClient Implementation
// -----------------------------------------------------------------------------

func (c *Client) ListInstruments(ctx context.Context) ([]string, error) {
	var resp models.MInstrumentsResponse
	if err := c.getJSON(ctx, "/stocks", &resp); err != nil {
		return nil, err
	}
	return resp.StockCodes, nil
}

// -----------------------------------------------------------------------------

func (c *Client) InstrumentInfo(ctx context.Context, stockCode string) (*models.MInstrumentInfo, error) {
	var resp models.MInstrumentInfo
	path := fmt.Sprintf("/stock/%s/info", url.PathEscape(stockCode))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// -----------------------------------------------------------------------------

func (c *Client) LookupTime(ctx context.Context, timeStep int) (string, error) {
	var resp models.MTimesResponse
	if err := c.postJSON(ctx, "/times", models.MTimesRequest{TimeStep: timeStep}, &resp); err != nil {
		return "", err
	}
	if resp.AccurateTime == "" {
		return "", fmt.Errorf("empty accurate_time for step %d", timeStep)
	}
	return resp.AccurateTime, nil
}

// -----------------------------------------------------------------------------

func (c *Client) LookupTimeStep(ctx context.Context, timeLabel string) (int, error) {
	var resp models.MTimeStepResponse
	if err := c.postJSON(ctx, "/timestep", models.MTimeStepRequest{Time: timeLabel}, &resp); err != nil {
		return 0, err
	}
	return resp.TimeStep, nil
}

// -----------------------------------------------------------------------------

func (c *Client) FetchCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, error) {
	var resp models.MCoordinatesResponse
	req := models.MCoordinatesRequest{StockCodes: stockCodes, TimeStep: timeStep}
	if err := c.postJSON(ctx, "/coordinates", req, &resp); err != nil {
		return nil, err
	}

	// Per-instrument misses ride along in the errors map; they are not a
	// request failure, the instrument simply stays off screen for this step.
	for code, msg := range resp.Errors {
		c.Logger.Debug("no coordinates for %s at step %d: %s", code, timeStep, msg)
	}

	if resp.Coordinates == nil {
		resp.Coordinates = make(map[string]models.MCoordinate)
	}
	return resp.Coordinates, nil
}

// -----------------------------------------------------------------------------

func (c *Client) FetchClusteredCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, map[string]int, error) {
	var resp models.MClusterResponse
	req := models.MCoordinatesRequest{StockCodes: stockCodes, TimeStep: timeStep}
	if err := c.postJSON(ctx, "/coordinates/cluster", req, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Coordinates == nil || resp.ClusterInfo == nil {
		return nil, nil, fmt.Errorf("cluster response missing coordinates or cluster_info for step %d", timeStep)
	}
	return resp.Coordinates, resp.ClusterInfo, nil
}
