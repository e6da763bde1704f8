package model

import "time"

// Analysis is the structured result of AI enrichment. Field names follow the
// schema the text model is prompted with.
type Analysis struct {
	FeasibilityScore      float64    `json:"feasibilityScore"`
	ImpactScore           float64    `json:"impactScore"`
	PlantationPossible    bool       `json:"plantation_possible"`
	LandOwnershipEstimate string     `json:"land_ownership_estimate,omitempty"`
	SuggestedCategory     ReportType `json:"suggested_category,omitempty"`
	CoolingImpact         string     `json:"cooling_impact,omitempty"`
	NativeSpecies         []string   `json:"native_species_recommendations,omitempty"`
	EstimatedCarbonOffset string     `json:"estimated_carbon_offset,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	Recommendations       []string   `json:"recommendations"`
	Error                 string     `json:"error,omitempty"`
	AnalyzedAt            *time.Time `json:"analyzedAt,omitempty"`
}

// Brief keeps the scores and the top recommendations, the shape stored on
// a report after an expert-triggered analysis.
func (a *Analysis) Brief(at time.Time) *Analysis {
	recs := a.Recommendations
	if len(recs) > 3 {
		recs = recs[:3]
	}
	return &Analysis{
		FeasibilityScore: a.FeasibilityScore,
		ImpactScore:      a.ImpactScore,
		Recommendations:  append([]string{}, recs...),
		AnalyzedAt:       &at,
	}
}

type ImageTag struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type ImageAnalysis struct {
	Labels    []ImageTag `json:"labels"`
	Objects   []ImageTag `json:"objects"`
	Landmarks []ImageTag `json:"landmarks"`
	Error     string     `json:"error,omitempty"`
}

// AnalysisRecord is one stored run of the analyzer against a report.
type AnalysisRecord struct {
	ID               string         `json:"id"`
	ReportID         string         `json:"reportId"`
	ImageAnalysis    *ImageAnalysis `json:"imageAnalysis"`
	AIAnalysis       Analysis       `json:"aiAnalysis"`
	FeasibilityScore float64        `json:"feasibilityScore"`
	ImpactScore      float64        `json:"impactScore"`
	Recommendations  []string       `json:"recommendations"`
	AnalyzedBy       string         `json:"analyzedBy"`
	AnalyzedAt       time.Time      `json:"analyzedAt"`
	Status           string         `json:"status"`
}

type AnalyzeRequest struct {
	ReportID    string     `json:"reportId"`
	ImageURL    string     `json:"imageUrl"`
	ReportType  ReportType `json:"reportType"`
	Location    *Location  `json:"location"`
	Description string     `json:"description"`
}

type BatchAnalyzeRequest struct {
	ReportIDs []string `json:"reportIds"`
}

type BatchResult struct {
	ReportID string `json:"reportId"`
	Success  bool   `json:"success,omitempty"`
	Error    string `json:"error,omitempty"`
}
