package handler

import (
	"net/http"

	"greencity/internal/auth"
	"greencity/internal/model"
	"greencity/internal/service"

	"github.com/gin-gonic/gin"
)

type AIHandler struct {
	analysisService *service.AnalysisService
}

func NewAIHandler(analysisService *service.AnalysisService) *AIHandler {
	return &AIHandler{analysisService: analysisService}
}

func (h *AIHandler) Analyze(c *gin.Context) {
	var req model.AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.analysisService.Analyze(c.Request.Context(), auth.IdentityFrom(c).UID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": record})
}

func (h *AIHandler) GetAnalysis(c *gin.Context) {
	record, err := h.analysisService.GetAnalysis(c.Request.Context(), c.Query("reportId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *AIHandler) BatchAnalyze(c *gin.Context) {
	var req model.BatchAnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}

	results, err := h.analysisService.BatchAnalyze(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Batch analysis completed", "results": results})
}
