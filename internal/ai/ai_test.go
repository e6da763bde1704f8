package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"greencity/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{"feasibilityScore":82,"plantation_possible":true,"land_ownership_estimate":"Public","suggested_category":"heat_hotspot","cooling_impact":"High","native_species_recommendations":["Neem"],"estimated_carbon_offset":"25 kg/year","summary":"Hot lot.","recommendations":["Plant shade trees","Add mulch"]}`

func TestParseAnalysis(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		provider error
		kind     ParseKind
		score    float64
	}{
		{name: "plain json", raw: validJSON, kind: ParseSuccess, score: 82},
		{name: "fenced", raw: "```json\n" + validJSON + "\n```", kind: ParseSuccess, score: 82},
		{name: "preamble and trailer", raw: "Sure! Here it is:\n" + validJSON + "\nHope this helps.", kind: ParseSuccess, score: 82},
		{name: "no braces", raw: "I cannot help with that", kind: ParseMalformed},
		{name: "broken json", raw: `{"feasibilityScore": 82,`, kind: ParseMalformed},
		{name: "empty", raw: "  ", kind: ParseMalformed},
		{name: "json null", raw: "null", kind: ParseMalformed},
		{name: "fenced array", raw: "```json\n[1, 2]\n```", kind: ParseMalformed},
		{name: "score above range", raw: `{"feasibilityScore": 250}`, kind: ParseMalformed},
		{name: "negative score", raw: `{"feasibilityScore": -5}`, kind: ParseMalformed},
		{name: "score at bound", raw: `{"feasibilityScore": 100}`, kind: ParseSuccess, score: 100},
		{name: "wrong types", raw: `{"feasibilityScore":"high"}`, kind: ParseMalformed},
		{name: "provider error", raw: validJSON, provider: errors.New("quota"), kind: ParseProviderError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := ParseAnalysis(tc.raw, tc.provider)
			assert.Equal(t, tc.kind, res.Kind)
			if tc.kind == ParseSuccess {
				require.NotNil(t, res.Analysis)
				assert.Equal(t, tc.score, res.Analysis.FeasibilityScore)
				assert.NoError(t, res.Err)
			} else {
				assert.Nil(t, res.Analysis)
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestImpactScore(t *testing.T) {
	for in, want := range map[string]float64{"High": 90, "Medium": 60, "Low": 30, "": 0, "Extreme": 0} {
		assert.Equal(t, want, ImpactScore(in), in)
	}
}

func TestFallback(t *testing.T) {
	got := Fallback(model.ReportTypeTreeLoss)
	want := model.Analysis{
		FeasibilityScore:      50,
		ImpactScore:           60,
		PlantationPossible:    true,
		LandOwnershipEstimate: "Unknown",
		SuggestedCategory:     model.ReportTypeTreeLoss,
		CoolingImpact:         "Medium",
		NativeSpecies:         []string{"Neem", "Peepal", "Ashoka"},
		EstimatedCarbonOffset: "Unknown",
		Summary:               "Analysis pending manual review.",
		Recommendations:       []string{"Site check required"},
		Error:                 "AI analysis failed",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fallback() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPrompt(t *testing.T) {
	in := Input{ReportType: model.ReportTypeUnusedSpace, Description: "Empty plot"}

	prompt := BuildPrompt(in, nil)
	assert.True(t, strings.HasPrefix(prompt, "Analyze this urban greening proposal. return VALID JSON only."))
	assert.Contains(t, prompt, "Report Type: unused_space")
	assert.Contains(t, prompt, "Location: Unknown")
	assert.NotContains(t, prompt, "Vision Analysis")
	assert.Contains(t, prompt, `"suggested_category": "tree_loss" | "heat_hotspot" | "unused_space"`)

	in.Location.Address = "MG Road"
	prompt = BuildPrompt(in, &model.ImageAnalysis{
		Labels:  []model.ImageTag{{Description: "Soil"}, {Description: "Grass"}},
		Objects: []model.ImageTag{{Description: "Car"}},
	})
	assert.Contains(t, prompt, "Location: MG Road")
	assert.Contains(t, prompt, "Labels: Soil, Grass")
	assert.Contains(t, prompt, "Objects: Car")

	prompt = BuildPrompt(in, &model.ImageAnalysis{Error: "Image analysis failed"})
	assert.NotContains(t, prompt, "Vision Analysis")
}

func TestAnalyzer_Analyze(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		text       TextGenerator
		images     ImageTagger
		imageURL   string
		outcome    ParseKind
		score      float64
		impact     float64
		imageError string
		hasImage   bool
	}{
		{
			name:    "success",
			text:    TextGeneratorFunc(func(context.Context, string) (string, error) { return validJSON, nil }),
			outcome: ParseSuccess, score: 82, impact: 90,
		},
		{
			name:    "malformed falls back",
			text:    TextGeneratorFunc(func(context.Context, string) (string, error) { return "nope", nil }),
			outcome: ParseMalformed, score: 50, impact: 60,
		},
		{
			name:    "provider error falls back",
			text:    TextGeneratorFunc(func(context.Context, string) (string, error) { return "", errors.New("503") }),
			outcome: ParseProviderError, score: 50, impact: 60,
		},
		{
			name:    "no text generator",
			outcome: ParseProviderError, score: 50, impact: 60,
		},
		{
			name: "tagging failure continues",
			text: TextGeneratorFunc(func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "Vision Analysis") {
					return "", errors.New("unexpected tags")
				}
				return validJSON, nil
			}),
			images: ImageTaggerFunc(func(context.Context, string) (*model.ImageAnalysis, error) {
				return nil, errors.New("vision down")
			}),
			imageURL: "https://img.example/1.jpg",
			outcome:  ParseSuccess, score: 82, impact: 90,
			hasImage: true, imageError: "Image analysis failed",
		},
		{
			name: "tags reach the prompt",
			text: TextGeneratorFunc(func(_ context.Context, prompt string) (string, error) {
				if !strings.Contains(prompt, "Labels: Tree") {
					return "", errors.New("missing tags")
				}
				return validJSON, nil
			}),
			images: ImageTaggerFunc(func(context.Context, string) (*model.ImageAnalysis, error) {
				return &model.ImageAnalysis{Labels: []model.ImageTag{{Description: "Tree", Score: 0.9}}}, nil
			}),
			imageURL: "https://img.example/2.jpg",
			outcome:  ParseSuccess, score: 82, impact: 90,
			hasImage: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := NewAnalyzer(tc.text, tc.images)
			analyzer.now = func() time.Time { return fixed }

			res := analyzer.Analyze(context.Background(), Input{
				ReportType: model.ReportTypeUnusedSpace,
				ImageURL:   tc.imageURL,
			})

			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Equal(t, tc.outcome != ParseSuccess, res.Fallback())
			assert.Equal(t, tc.score, res.Analysis.FeasibilityScore)
			assert.Equal(t, tc.impact, res.Analysis.ImpactScore)
			require.NotNil(t, res.Analysis.AnalyzedAt)
			assert.Equal(t, fixed, *res.Analysis.AnalyzedAt)
			if tc.hasImage {
				require.NotNil(t, res.Image)
				assert.Equal(t, tc.imageError, res.Image.Error)
			} else {
				assert.Nil(t, res.Image)
			}
			if res.Fallback() {
				assert.Equal(t, model.ReportTypeUnusedSpace, res.Analysis.SuggestedCategory)
			}
		})
	}
}

func TestGeminiClient_FallsBackToV1(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		if strings.HasPrefix(r.URL.Path, "/v1beta/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req geminiRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"world"}]}}]}`)
	}))
	defer srv.Close()

	client := NewGeminiClient("k", "gemini-test", 0, time.Second)
	client.baseURL = srv.URL

	text, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", text)
	assert.Equal(t, []string{
		"/v1beta/models/gemini-test:generateContent",
		"/v1/models/gemini-test:generateContent",
	}, paths)
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	client := NewGeminiClient("k", "m", 0, time.Second)
	client.baseURL = srv.URL

	_, err := client.Generate(context.Background(), "hello")
	assert.EqualError(t, err, "no candidates in response")
}

func TestVisionClient_Tag(t *testing.T) {
	testCases := []struct {
		name    string
		ref     string
		content string
		uri     string
	}{
		{name: "data uri inline", ref: "data:image/png;base64,QUJD", content: "QUJD"},
		{name: "remote url", ref: "https://img.example/a.jpg", uri: "https://img.example/a.jpg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/images:annotate", r.URL.Path)
				var body struct {
					Requests []annotateRequest `json:"requests"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Len(t, body.Requests, 1)
				req := body.Requests[0]
				assert.Equal(t, tc.content, req.Image.Content)
				if tc.uri != "" {
					require.NotNil(t, req.Image.Source)
					assert.Equal(t, tc.uri, req.Image.Source.ImageURI)
				} else {
					assert.Nil(t, req.Image.Source)
				}
				assert.Equal(t, visionFeatures, req.Features)

				io.WriteString(w, `{"responses":[{
					"labelAnnotations":[{"description":"Tree","score":0.97}],
					"localizedObjectAnnotations":[{"name":"Bench","score":0.8}],
					"landmarkAnnotations":[]
				}]}`)
			}))
			defer srv.Close()

			client := NewVisionClient("k", time.Second)
			client.baseURL = srv.URL

			got, err := client.Tag(context.Background(), tc.ref)
			require.NoError(t, err)
			want := &model.ImageAnalysis{
				Labels:    []model.ImageTag{{Description: "Tree", Score: 0.97}},
				Objects:   []model.ImageTag{{Description: "Bench", Score: 0.8}},
				Landmarks: []model.ImageTag{},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Tag() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVisionClient_ResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"responses":[{"error":{"code":7,"message":"denied"}}]}`)
	}))
	defer srv.Close()

	client := NewVisionClient("k", time.Second)
	client.baseURL = srv.URL

	_, err := client.Tag(context.Background(), "https://img.example/a.jpg")
	assert.EqualError(t, err, "annotate error 7: denied")
}
