package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jmlow/goalflow/internal/engine"
)

type planRequest struct {
	Goal string `json:"goal" binding:"required"`
}

// createGraph plans a goal into a task graph. A decomposition that
// needs clarification returns 202 with the question instead of a
// graph.
func (s *Server) createGraph(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.planner.Plan(c.Request.Context(), req.Goal)
	if err != nil {
		fail(c, err)
		return
	}
	if res.Clarification != "" {
		c.JSON(http.StatusAccepted, gin.H{"clarification": res.Clarification})
		return
	}
	c.JSON(http.StatusCreated, res.Graph)
}

func (s *Server) listGraphs(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	graphs, err := s.store.ListGraphs(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"graphs": graphs})
}

func (s *Server) getGraph(c *gin.Context) {
	g, err := s.store.GetGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) graphCost(c *gin.Context) {
	usage, cost, err := s.store.GraphCost(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage, "cost": cost})
}

// executeGraph starts an execution and returns once it settles.
func (s *Server) executeGraph(c *gin.Context) {
	exec, err := s.eng.ExecuteGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		if exec != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error(), "execution": exec})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, exec)
}

func (s *Server) stopGraph(c *gin.Context) {
	r, err := s.eng.Stops().RequestGraphStop(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, r)
}

func (s *Server) listExecutions(c *gin.Context) {
	execs, err := s.store.ListExecutions(c.Request.Context(), c.Query("graph"), intQuery(c, "limit", 50))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": execs})
}

func (s *Server) getExecution(c *gin.Context) {
	exec, err := s.eng.GetExecution(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

func (s *Server) getSteps(c *gin.Context) {
	steps, err := s.store.GetSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

func (s *Server) executionCosts(c *gin.Context) {
	records, err := s.store.ExecutionPhaseCosts(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"costs": records})
}

func (s *Server) stopExecution(c *gin.Context) {
	r, err := s.eng.Stops().RequestExecutionStop(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, r)
}

func (s *Server) resume(c *gin.Context) {
	exec, err := s.eng.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

func (s *Server) retryFailed(c *gin.Context) {
	exec, err := s.eng.RetryFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

type redoRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (s *Server) redoStep(c *gin.Context) {
	var req redoRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := s.eng.RedoStep(c.Request.Context(), c.Param("id"), c.Param("task"), engine.RunOptions{
		ProviderID: req.Provider,
		ModelID:    req.Model,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (s *Server) costSummary(c *gin.Context) {
	by := engine.BucketBy(c.DefaultQuery("by", "day"))
	buckets, err := s.eng.CostSummary(c.Request.Context(), by)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"by": by, "buckets": buckets})
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
