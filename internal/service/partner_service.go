package service

import (
	"context"
	"strings"
	"time"

	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/google/uuid"
)

type PartnerService struct {
	partners repository.PartnerStore
	now      func() time.Time
}

func NewPartnerService(partners repository.PartnerStore) *PartnerService {
	return &PartnerService{partners: partners, now: time.Now}
}

func (s *PartnerService) CreatePartner(ctx context.Context, creatorID string, req *model.CreatePartnerRequest) (*model.Partner, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Type == "" {
		return nil, model.Invalid("Name and type are required")
	}
	if !req.Type.Valid() {
		return nil, model.Invalid("Invalid partner type")
	}

	contributions := req.Contributions
	if contributions == nil {
		contributions = []string{}
	}
	partner := &model.Partner{
		ID:            uuid.NewString(),
		Name:          name,
		Type:          req.Type,
		Description:   req.Description,
		Contributions: contributions,
		LogoURL:       req.LogoURL,
		Website:       req.Website,
		CreatedBy:     creatorID,
		CreatedAt:     s.now(),
	}
	if err := s.partners.Create(ctx, partner); err != nil {
		return nil, err
	}
	return partner, nil
}

func (s *PartnerService) ListPartners(ctx context.Context) ([]model.Partner, error) {
	partners, err := s.partners.List(ctx)
	if err != nil {
		return nil, err
	}
	if partners == nil {
		partners = []model.Partner{}
	}
	return partners, nil
}
