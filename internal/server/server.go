// Package server exposes the dashboard's HTTP surface.
package server

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/chaosdojo/chaosdojo/internal/chaos"
	"github.com/chaosdojo/chaosdojo/internal/cluster"
	"github.com/chaosdojo/chaosdojo/internal/history"
	"github.com/chaosdojo/chaosdojo/internal/llm"
)

//go:embed web/index.html
var indexHTML []byte

// Server wires the engine, monitor, narrator and history behind gin handlers.
type Server struct {
	engine   *chaos.Engine
	monitor  *cluster.Monitor
	narrator *llm.Narrator
	history  *history.Log
	webhook  *Webhook
	logger   logrus.FieldLogger
}

// New builds a server. history may be nil to disable the run log.
func New(engine *chaos.Engine, monitor *cluster.Monitor, narrator *llm.Narrator, hist *history.Log, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		engine:   engine,
		monitor:  monitor,
		narrator: narrator,
		history:  hist,
		logger:   logger,
	}
}

// SetWebhook attaches the optional workflow-orchestration notifier.
func (s *Server) SetWebhook(w *Webhook) {
	s.webhook = w
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(s.recovered))

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/chaos/run", s.runChaos)
	router.GET("/cluster/status", s.clusterStatus)
	router.GET("/scenarios", s.listScenarios)
	router.GET("/history", s.recentHistory)
	return router
}

// recovered maps a handler panic to the documented 500 payload.
func (s *Server) recovered(c *gin.Context, err any) {
	s.logger.WithField("panic", err).Error("handler panic")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":    "internal error",
		"details":  "unexpected failure while executing the request",
		"analysis": llm.FallbackAnalysis,
	})
}
