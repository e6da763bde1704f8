package handler

import (
	"net/http"

	"greencity/internal/auth"
	"greencity/internal/model"
	"greencity/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), auth.IdentityFrom(c).UID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) GetSessions(c *gin.Context) {
	filter := model.SessionFilter{
		Status:     model.SessionStatus(c.Query("status")),
		VotingType: c.Query("votingType"),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	}

	response, err := h.sessionService.ListSessions(c.Request.Context(), auth.IdentityFrom(c).UID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *SessionHandler) Vote(c *gin.Context) {
	var req model.SessionVoteRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.sessionService.Vote(c.Request.Context(), auth.IdentityFrom(c).UID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *SessionHandler) GetResults(c *gin.Context) {
	results, err := h.sessionService.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *SessionHandler) CloseSession(c *gin.Context) {
	var req model.CloseSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.sessionService.CloseSession(c.Request.Context(), auth.IdentityFrom(c).UID, c.Param("id"), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Voting session closed successfully"})
}
