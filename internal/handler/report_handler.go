package handler

import (
	"net/http"

	"greencity/internal/auth"
	"greencity/internal/model"
	"greencity/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService *service.ReportService
}

func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func reportFilter(c *gin.Context) model.ReportFilter {
	return model.ReportFilter{
		Status:     model.ReportStatus(c.Query("status")),
		ReportType: model.ReportType(c.Query("reportType")),
		UserID:     c.Query("userId"),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	}
}

// Handles POST /reports - stores a report and queues it for analysis.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req model.CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), *auth.IdentityFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// Handles GET /reports - paginated list filtered by status, reportType and userId.
func (h *ReportHandler) GetReports(c *gin.Context) {
	response, err := h.reportService.ListReports(c.Request.Context(), reportFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Handles GET /reports/map - every matching report as a GeoJSON point.
func (h *ReportHandler) GetReportMap(c *gin.Context) {
	fc, err := h.reportService.Map(c.Request.Context(), reportFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *ReportHandler) GetReportByID(c *gin.Context) {
	detail, err := h.reportService.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	var req model.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.reportService.UpdateStatus(c.Request.Context(), auth.IdentityFrom(c).UID, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report updated successfully"})
}

func (h *ReportHandler) Vote(c *gin.Context) {
	var req model.VoteRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.reportService.Vote(c.Request.Context(), auth.IdentityFrom(c).UID, &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Vote recorded successfully"})
}

func (h *ReportHandler) AddComment(c *gin.Context) {
	var req model.CommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.reportService.AddComment(c.Request.Context(), auth.IdentityFrom(c).UID, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
