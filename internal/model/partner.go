package model

import "time"

type PartnerType string

const (
	PartnerCorporate  PartnerType = "corporate"
	PartnerNGO        PartnerType = "ngo"
	PartnerGovernment PartnerType = "government"
)

func (p PartnerType) Valid() bool {
	switch p {
	case PartnerCorporate, PartnerNGO, PartnerGovernment:
		return true
	}
	return false
}

type Partner struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Type          PartnerType `json:"type"`
	Description   string      `json:"description"`
	Contributions []string    `json:"contributions"`
	LogoURL       string      `json:"logoUrl"`
	Website       string      `json:"website"`
	CreatedBy     string      `json:"createdBy"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type CreatePartnerRequest struct {
	Name          string      `json:"name"`
	Type          PartnerType `json:"type"`
	Description   string      `json:"description"`
	Contributions []string    `json:"contributions"`
	LogoURL       string      `json:"logoUrl"`
	Website       string      `json:"website"`
}
