package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greencity/internal/model"
)

const (
	minScore = 0
	maxScore = 100
)

type ParseKind int

const (
	ParseSuccess ParseKind = iota
	ParseMalformed
	ParseProviderError
)

func (k ParseKind) String() string {
	switch k {
	case ParseSuccess:
		return "success"
	case ParseMalformed:
		return "malformed_response"
	case ParseProviderError:
		return "provider_error"
	}
	return "unknown"
}

// ParseResult is the outcome of reading a model response. Analysis is set
// only for ParseSuccess; Err explains the other kinds.
type ParseResult struct {
	Kind     ParseKind
	Analysis *model.Analysis
	Err      error
}

// ParseAnalysis extracts the analysis JSON from a raw model response.
// Markdown fences and any text around the outermost braces are dropped.
// Anything other than an object with a feasibilityScore in [0,100] is
// ParseMalformed.
// A non-nil providerErr short-circuits to ParseProviderError.
func ParseAnalysis(raw string, providerErr error) ParseResult {
	if providerErr != nil {
		return ParseResult{Kind: ParseProviderError, Err: providerErr}
	}

	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last > first {
		text = text[first : last+1]
	}
	if text == "" {
		return ParseResult{Kind: ParseMalformed, Err: errors.New("empty response")}
	}
	if !strings.HasPrefix(text, "{") {
		return ParseResult{Kind: ParseMalformed, Err: errors.New("no JSON object in response")}
	}

	var a model.Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return ParseResult{Kind: ParseMalformed, Err: fmt.Errorf("decode analysis: %w", err)}
	}
	if a.FeasibilityScore < minScore || a.FeasibilityScore > maxScore {
		return ParseResult{Kind: ParseMalformed, Err: fmt.Errorf("feasibilityScore %v out of range", a.FeasibilityScore)}
	}
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	return ParseResult{Kind: ParseSuccess, Analysis: &a}
}
