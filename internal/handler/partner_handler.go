package handler

import (
	"net/http"

	"greencity/internal/auth"
	"greencity/internal/model"
	"greencity/internal/service"

	"github.com/gin-gonic/gin"
)

type PartnerHandler struct {
	partnerService *service.PartnerService
}

func NewPartnerHandler(partnerService *service.PartnerService) *PartnerHandler {
	return &PartnerHandler{partnerService: partnerService}
}

func (h *PartnerHandler) CreatePartner(c *gin.Context) {
	var req model.CreatePartnerRequest
	if !bindJSON(c, &req) {
		return
	}

	partner, err := h.partnerService.CreatePartner(c.Request.Context(), auth.IdentityFrom(c).UID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, partner)
}

func (h *PartnerHandler) GetPartners(c *gin.Context) {
	partners, err := h.partnerService.ListPartners(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}
