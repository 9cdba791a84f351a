package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"market-screener/models"
	"market-screener/storage"
	"market-screener/utils"
)

const noResultsMessage = "No listings or posts were found for this query. Try a broader search term."

type analysisController struct {
	analyzer Analyzer
	logger   *utils.Logger
}

type analyzeRequest struct {
	Query string `json:"query"`
}

// analyzeResponse wraps a result with a status a client can branch on.
type analyzeResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Result  *models.AnalysisResult `json:"result"`
}

// RegisterAnalysisRoutes registers the analysis endpoints.
func RegisterAnalysisRoutes(r *gin.Engine, ac *analysisController) {
	g := r.Group("/api")
	g.POST("/analyze", ac.handlePostAnalyze)
	g.GET("/analyze", ac.handleGetAnalyze)
	g.GET("/analyze/listings.csv", ac.handleListingsCSV)
	g.POST("/reset", ac.handleReset)
}

func (ac *analysisController) handlePostAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ac.analyze(c, req.Query)
}

func (ac *analysisController) handleGetAnalyze(c *gin.Context) {
	ac.analyze(c, c.Query("q"))
}

func (ac *analysisController) analyze(c *gin.Context, query string) {
	res, ok := ac.run(c, query)
	if !ok {
		return
	}
	if res.NoResults() {
		c.JSON(http.StatusOK, analyzeResponse{Status: "no_results", Message: noResultsMessage, Result: res})
		return
	}
	c.JSON(http.StatusOK, analyzeResponse{Status: "ok", Result: res})
}

func (ac *analysisController) handleListingsCSV(c *gin.Context) {
	res, ok := ac.run(c, c.Query("q"))
	if !ok {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="listings.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := storage.WriteListingsCSV(c.Writer, res.Query, res.Listings); err != nil {
		ac.logger.Error("[http] Writing CSV for %q failed: %v", res.Query, err)
	}
}

func (ac *analysisController) handleReset(c *gin.Context) {
	if err := ac.analyzer.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// run executes the analysis and writes the error response itself when it fails.
func (ac *analysisController) run(c *gin.Context, query string) (*models.AnalysisResult, bool) {
	res, err := ac.analyzer.Analyze(c.Request.Context(), query)
	if err == nil {
		return res, true
	}

	var ce *models.CollectionError
	switch {
	case errors.Is(err, models.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
	case errors.As(err, &ce):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "collection_failed",
			"step":    ce.Step,
			"message": "The marketplace could not be scraped. This is not an empty result; please retry later.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return nil, false
}
