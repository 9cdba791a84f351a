package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"market-screener/models"
	"market-screener/utils"
)

// Analyzer is the pipeline surface the HTTP handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (*models.AnalysisResult, error)
	Reset(ctx context.Context) error
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(a Analyzer, logger *utils.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	RegisterHealthRoutes(r)
	RegisterAnalysisRoutes(r, &analysisController{analyzer: a, logger: logger})
	return r
}

// requestLogger writes one line per request through the application logger.
func requestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start).Round(time.Millisecond)
		switch {
		case status >= 500:
			logger.Error("[http] %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, elapsed)
		case status >= 400:
			logger.Warn("[http] %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, elapsed)
		default:
			logger.Info("[http] %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, elapsed)
		}
	}
}
