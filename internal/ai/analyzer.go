// Package ai turns a report into a structured greening analysis using an
// image tagger and a text model. Provider failures never surface to callers;
// they degrade to a fixed fallback analysis.
package ai

import (
	"context"
	"errors"
	"time"

	"greencity/internal/model"

	"github.com/apex/log"
)

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageTagger labels the image behind a URL or data URI.
type ImageTagger interface {
	Tag(ctx context.Context, imageRef string) (*model.ImageAnalysis, error)
}

type TextGeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f TextGeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type ImageTaggerFunc func(ctx context.Context, imageRef string) (*model.ImageAnalysis, error)

func (f ImageTaggerFunc) Tag(ctx context.Context, imageRef string) (*model.ImageAnalysis, error) {
	return f(ctx, imageRef)
}

const (
	fallbackError      = "AI analysis failed"
	imageAnalysisError = "Image analysis failed"
)

var errNoTextGenerator = errors.New("text generator not configured")

// Fallback is the analysis used whenever the text model cannot be used.
func Fallback(reportType model.ReportType) model.Analysis {
	a := model.Analysis{
		FeasibilityScore:      50,
		PlantationPossible:    true,
		LandOwnershipEstimate: "Unknown",
		SuggestedCategory:     reportType,
		CoolingImpact:         "Medium",
		NativeSpecies:         []string{"Neem", "Peepal", "Ashoka"},
		EstimatedCarbonOffset: "Unknown",
		Summary:               "Analysis pending manual review.",
		Recommendations:       []string{"Site check required"},
		Error:                 fallbackError,
	}
	a.ImpactScore = ImpactScore(a.CoolingImpact)
	return a
}

// ImpactScore maps the model's cooling estimate onto 0-100.
func ImpactScore(coolingImpact string) float64 {
	switch coolingImpact {
	case "High":
		return 90
	case "Medium":
		return 60
	case "Low":
		return 30
	}
	return 0
}

type Result struct {
	Analysis model.Analysis
	// Image is nil when no image was given or no tagger is configured.
	Image   *model.ImageAnalysis
	Outcome ParseKind
}

// Fallback reports whether the analysis is the fixed fallback.
func (r Result) Fallback() bool {
	return r.Outcome != ParseSuccess
}

type Analyzer struct {
	text   TextGenerator
	images ImageTagger
	now    func() time.Time
}

// NewAnalyzer accepts nil providers; a missing text generator means every
// analysis is the fallback and a missing tagger skips image tagging.
func NewAnalyzer(text TextGenerator, images ImageTagger) *Analyzer {
	return &Analyzer{text: text, images: images, now: time.Now}
}

func (a *Analyzer) Analyze(ctx context.Context, in Input) Result {
	var image *model.ImageAnalysis
	if in.ImageURL != "" && a.images != nil {
		tagged, err := a.images.Tag(ctx, in.ImageURL)
		if err != nil {
			log.WithError(err).Warn("ai: image tagging failed")
			image = &model.ImageAnalysis{Error: imageAnalysisError}
		} else {
			image = tagged
		}
	}

	var parsed ParseResult
	if a.text == nil {
		parsed = ParseResult{Kind: ParseProviderError, Err: errNoTextGenerator}
	} else {
		raw, err := a.text.Generate(ctx, BuildPrompt(in, image))
		parsed = ParseAnalysis(raw, err)
	}

	at := a.now()
	var analysis model.Analysis
	if parsed.Kind == ParseSuccess {
		analysis = *parsed.Analysis
		analysis.ImpactScore = ImpactScore(analysis.CoolingImpact)
	} else {
		log.WithFields(log.Fields{
			"outcome": parsed.Kind.String(),
			"error":   parsed.Err,
		}).Error("ai: analysis failed, using fallback")
		analysis = Fallback(in.ReportType)
	}
	analysis.AnalyzedAt = &at

	return Result{Analysis: analysis, Image: image, Outcome: parsed.Kind}
}
