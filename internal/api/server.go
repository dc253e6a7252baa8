// Package api exposes the engine over HTTP: REST resources for graphs,
// executions and costs, a websocket event stream, and Prometheus
// metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmlow/goalflow/internal/domain"
	"github.com/jmlow/goalflow/internal/engine"
	"github.com/jmlow/goalflow/internal/logging"
	"github.com/jmlow/goalflow/internal/metrics"
	"github.com/jmlow/goalflow/internal/plan"
)

// Server wires the engine's surfaces behind a gin router.
type Server struct {
	store   domain.Store
	eng     *engine.Engine
	planner *plan.Planner
	metrics *metrics.Metrics

	router *gin.Engine
	http   *http.Server
	log    *logging.Logger
}

func NewServer(store domain.Store, eng *engine.Engine, planner *plan.Planner, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:   store,
		eng:     eng,
		planner: planner,
		metrics: m,
		router:  router,
		log:     logging.New("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/graphs", s.createGraph)
		v1.GET("/graphs", s.listGraphs)
		v1.GET("/graphs/:id", s.getGraph)
		v1.GET("/graphs/:id/cost", s.graphCost)
		v1.POST("/graphs/:id/execute", s.executeGraph)
		v1.POST("/graphs/:id/stop", s.stopGraph)

		v1.GET("/executions", s.listExecutions)
		v1.GET("/executions/:id", s.getExecution)
		v1.GET("/executions/:id/steps", s.getSteps)
		v1.GET("/executions/:id/costs", s.executionCosts)
		v1.GET("/executions/:id/events", s.streamEvents)
		v1.POST("/executions/:id/stop", s.stopExecution)
		v1.POST("/executions/:id/resume", s.resume)
		v1.POST("/executions/:id/retry", s.retryFailed)
		v1.POST("/executions/:id/steps/:task/redo", s.redoStep)

		v1.GET("/costs", s.costSummary)
	}
}

// Start serves until the context is cancelled, then drains for up to
// five seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.log.Info("listening", map[string]any{"addr": addr})

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func httpStatus(err error) int {
	if domain.IsNotFound(err) {
		return http.StatusNotFound
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}
