package indicatorapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/mmdatafocus/indicator_monitor/workflow"
)

// Pipeline is the engine surface the HTTP and Pub/Sub entrypoints drive.
type Pipeline interface {
	OnFactWritten(ctx context.Context, code string) (workflow.RunResult, error)
	OnExternalValue(ctx context.Context, code string, value float64) (workflow.RunResult, error)
	RecomputeAll(ctx context.Context) (workflow.SweepResult, error)
}

type ExternalValueRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

func RegisterRoutes(r gin.IRouter, p Pipeline) {
	r.POST("/internal/indicators/recompute", RecomputeAllHandler(p))
	r.POST("/internal/indicators/:code/recompute", RecomputeIndicatorHandler(p))
	r.POST("/internal/indicators/:code/value", ExternalValueHandler(p))
	r.POST("/pubsub/facts", PubSubPushHandler(p))
}

func RecomputeAllHandler(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.SetTriggerInContext(c.Request.Context(), workflow.TriggerManual)
		result, err := p.RecomputeAll(ctx)
		if err != nil {
			if errors.Is(err, workflow.ErrSweepInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func RecomputeIndicatorHandler(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.TrimSpace(c.Param("code"))
		ctx := utils.SetTriggerInContext(c.Request.Context(), workflow.TriggerManual)
		result, err := p.OnFactWritten(ctx, code)
		if err != nil {
			writeRunError(c, "RecomputeIndicatorHandler", code, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ExternalValueHandler(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.TrimSpace(c.Param("code"))
		var req ExternalValueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
			return
		}
		result, err := p.OnExternalValue(c.Request.Context(), code, *req.Value)
		if err != nil {
			writeRunError(c, "ExternalValueHandler", code, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func writeRunError(c *gin.Context, funcName string, code string, err error) {
	switch {
	case errors.Is(err, workflow.ErrIndicatorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrConfiguration):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "indicatorapi", funcName, "run indicator pipeline", code, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
