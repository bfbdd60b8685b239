package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaosdojo/chaosdojo/internal/history"
	"github.com/chaosdojo/chaosdojo/internal/llm"
	"github.com/chaosdojo/chaosdojo/internal/scenario"
)

type runRequest struct {
	ScenarioID string `json:"scenarioId"`
}

type runResponse struct {
	Analysis         string `json:"analysis"`
	ScoreChange      int    `json:"scoreChange"`
	Success          bool   `json:"success"`
	ExecutionResult  string `json:"executionResult"`
	ExecutionDetails string `json:"executionDetails"`
	RealChaos        bool   `json:"realChaos"`
	Timestamp        string `json:"timestamp"`
}

// runChaos executes one scenario and narrates the outcome. An unknown
// scenario is a 400; a narration failure is a 500 carrying the fallback
// analysis. The run is recorded either way.
func (s *Server) runChaos(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sc, ok := scenario.Get(req.ScenarioID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scenario", "details": req.ScenarioID})
		return
	}

	res := s.engine.Execute(c.Request.Context(), req.ScenarioID)

	analysis, narrateErr := s.narrator.Narrate(c.Request.Context(), sc, res)

	rec := history.Record{
		RunID:     res.RunID,
		Scenario:  sc.ID,
		Success:   res.Success,
		Simulated: res.Simulated,
		Message:   res.Message,
		Timestamp: time.Now().UTC(),
	}
	if s.history != nil {
		if err := s.history.Append(rec); err != nil {
			s.logger.WithError(err).Warn("history append failed")
		}
	}
	if s.webhook != nil {
		// fire and forget; the request context ends with this response
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			s.webhook.Notify(ctx, rec)
		}()
	}

	if narrateErr != nil {
		s.logger.WithError(narrateErr).Error("narration failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "failed to execute chaos scenario",
			"details":  narrateErr.Error(),
			"analysis": llm.FallbackAnalysis,
		})
		return
	}

	c.JSON(http.StatusOK, runResponse{
		Analysis:         analysis,
		ScoreChange:      sc.Points,
		Success:          res.Success,
		ExecutionResult:  res.Message,
		ExecutionDetails: res.Details,
		RealChaos:        !res.Simulated,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})
}

type statusResponse struct {
	Healthy    bool   `json:"healthy"`
	Pods       int    `json:"pods"`
	TotalPods  int    `json:"totalPods"`
	Nodes      int    `json:"nodes"`
	TotalNodes int    `json:"totalNodes"`
	Services   int    `json:"services"`
	Simulated  bool   `json:"simulated"`
	Timestamp  string `json:"timestamp"`
	Details    *struct {
		Pods any `json:"pods"`
	} `json:"details,omitempty"`
}

// clusterStatus never returns a non-200 status; it degrades to placeholder
// data instead.
func (s *Server) clusterStatus(c *gin.Context) {
	snap := s.monitor.Snapshot(c.Request.Context())

	resp := statusResponse{
		Healthy:    snap.Healthy,
		Pods:       snap.RunningPods,
		TotalPods:  snap.TotalPods,
		Nodes:      snap.ReadyNodes,
		TotalNodes: snap.TotalNodes,
		Services:   snap.Services,
		Simulated:  snap.Simulated,
		Timestamp:  snap.Timestamp.Format(time.RFC3339),
	}
	if len(snap.Pods) > 0 {
		resp.Details = &struct {
			Pods any `json:"pods"`
		}{Pods: snap.Pods}
	}

	c.JSON(http.StatusOK, resp)
}

// listScenarios returns the card metadata for the UI.
func (s *Server) listScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": scenario.All()})
}

// recentHistory returns the latest run records, newest first.
func (s *Server) recentHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []history.Record{}})
		return
	}

	runs, err := s.history.Recent(20)
	if err != nil {
		s.logger.WithError(err).Warn("history read failed")
		runs = nil
	}
	if runs == nil {
		runs = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
