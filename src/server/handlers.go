package server

import (
	"net/http"
	"strconv"
	"time"

	"umap-replay/src/cluster"
	"umap-replay/src/helpers"
	"umap-replay/src/playback"
	"umap-replay/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Request Bodies
// -----------------------------------------------------------------------------

type selectRequest struct {
	StockCodes []string `json:"stock_codes"`
}

type generateRequest struct {
	StockCodes []string `json:"stock_codes"`
	TimeStep   *int     `json:"time_step"`
}

type rangeRequest struct {
	Start     *int   `json:"start"`
	End       *int   `json:"end"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type skipRequest struct {
	Enabled bool `json:"enabled"`
}

// -----------------------------------------------------------------------------
// Status & Config
// -----------------------------------------------------------------------------

func (s *ReplayServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	s.stateMutex.RUnlock()

	start, end := s.Scheduler.Range()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   connections,
		"state":         s.Scheduler.State().String(),
		"cursor":        s.Scheduler.Cursor(),
		"range":         gin.H{"start": start, "end": end},
		"cached_labels": s.Times.Size(),
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tick_interval_ms": s.Config.Playback.TickIntervalMS,
		"skip_non_trading": s.Scheduler.SkipNonTrading(),
		"history_limit":    s.Config.Playback.HistoryLimit,
		"palette":          cluster.Palette,
	})
}

// -----------------------------------------------------------------------------
// Instrument Catalogue (backend passthrough)
// -----------------------------------------------------------------------------

func (s *ReplayServer) getInstruments(c *gin.Context) {
	codes, err := s.Backend.ListInstruments(c.Request.Context())
	if err != nil {
		s.Logger.Warning("instrument list fetch failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "instrument list unavailable", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_count": len(codes),
		"stock_codes": codes,
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) getInstrumentInfo(c *gin.Context) {
	info, err := s.Backend.InstrumentInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "instrument info unavailable", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// -----------------------------------------------------------------------------
// Selection & Clustering
// -----------------------------------------------------------------------------

func (s *ReplayServer) postSelectInstruments(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.StockCodes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock_codes must be a non-empty list"})
		return
	}

	// A changed selection makes the current assignment stale; the invalidate
	// hook also forces playback back to Stopped
	s.Scheduler.SetInstruments(req.StockCodes)
	s.Clusters.Invalidate()

	c.JSON(http.StatusOK, gin.H{
		"selected": len(req.StockCodes),
		"state":    s.Scheduler.State().String(),
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) postGenerateClusters(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TimeStep == nil || *req.TimeStep < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time_step must be a non-negative integer"})
		return
	}

	if len(req.StockCodes) > 0 {
		s.Scheduler.SetInstruments(req.StockCodes)
		s.Clusters.Invalidate()
	}

	codes := s.Scheduler.Instruments()
	if len(codes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no instruments selected"})
		return
	}

	baseStep := *req.TimeStep
	baseline, err := s.Clusters.Generate(c.Request.Context(), codes, baseStep)
	if err != nil {
		// Prior assignment (if any) is retained
		c.JSON(http.StatusBadGateway, gin.H{"error": "cluster generation failed", "message": err.Error()})
		return
	}

	// Show the baseline immediately
	label := s.Times.Lookup(c.Request.Context(), baseStep)
	s.Publish(s.frameFor(baseStep, label, baseline))

	c.JSON(http.StatusOK, gin.H{
		"time_step":   baseStep,
		"label":       label,
		"coordinates": baseline,
		"colors":      s.Clusters.Colors(),
	})
}

// -----------------------------------------------------------------------------
// Playback Control
// -----------------------------------------------------------------------------

func (s *ReplayServer) postRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range request"})
		return
	}

	// Real-time bounds go through the resolver; step bounds apply directly
	if req.StartTime != "" || req.EndTime != "" {
		if req.StartTime == "" || req.EndTime == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "both start_time and end_time are required"})
			return
		}

		resolved, err := s.Resolver.Resolve(c.Request.Context(), req.StartTime, req.EndTime)
		if err != nil {
			status := http.StatusBadGateway
			if _, ok := err.(*helpers.RangeValidationError); ok {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": "range not updated", "message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, resolved)
		return
	}

	if req.Start == nil || req.End == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end (or start_time and end_time) are required"})
		return
	}

	s.Scheduler.SetRange(*req.Start, *req.End)
	start, end := s.Scheduler.Range()
	labels := s.Times.LookupMany(c.Request.Context(), []int{start, end})

	c.JSON(http.StatusOK, gin.H{
		"start":       start,
		"end":         end,
		"start_label": labels[start],
		"end_label":   labels[end],
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) postSkip(c *gin.Context) {
	var req skipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skip request"})
		return
	}

	s.Scheduler.SetSkipNonTrading(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"skip_non_trading": req.Enabled})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) postPlay(c *gin.Context) {
	if err := s.Scheduler.Play(); err != nil {
		if err == playback.ErrNoAssignment {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.playbackStatus(c)
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) postPause(c *gin.Context) {
	s.Scheduler.Pause()
	s.playbackStatus(c)
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) postStop(c *gin.Context) {
	s.Scheduler.Stop()
	s.playbackStatus(c)
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) playbackStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":  s.Scheduler.State().String(),
		"cursor": s.Scheduler.Cursor(),
	})
}

// -----------------------------------------------------------------------------
// History & Calendar
// -----------------------------------------------------------------------------

func (s *ReplayServer) getHistory(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame history is disabled"})
		return
	}

	limit := s.Config.Playback.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	frames, err := s.Store.RecentFrames(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history read failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(frames),
		"frames": frames,
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) getCalendarDate(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	// Advisory only: the backend's timestep lookup stays authoritative
	code := c.Query("instrument")
	cal := utils.GetMarketCalendar(code)

	c.JSON(http.StatusOK, gin.H{
		"date":        c.Param("date"),
		"trading_day": cal.IsTradingDay(date),
	})
}
