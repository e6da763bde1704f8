package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"greencity/internal/model"
)

const visionBaseURL = "https://vision.googleapis.com"

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

var visionFeatures = []visionFeature{
	{Type: "LABEL_DETECTION", MaxResults: 10},
	{Type: "OBJECT_LOCALIZATION", MaxResults: 10},
	{Type: "LANDMARK_DETECTION", MaxResults: 5},
}

type visionImageSource struct {
	ImageURI string `json:"imageUri"`
}

type visionImage struct {
	Content string             `json:"content,omitempty"`
	Source  *visionImageSource `json:"source,omitempty"`
}

type annotateRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type annotation struct {
	Description string  `json:"description"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations           []annotation `json:"labelAnnotations"`
		LocalizedObjectAnnotations []annotation `json:"localizedObjectAnnotations"`
		LandmarkAnnotations        []annotation `json:"landmarkAnnotations"`
		Error                      *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// VisionClient tags images through the Cloud Vision images:annotate REST
// endpoint.
type VisionClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewVisionClient(apiKey string, timeout time.Duration) *VisionClient {
	return &VisionClient{
		apiKey:  apiKey,
		baseURL: visionBaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// imageFor sends data URIs inline and everything else by reference.
func imageFor(ref string) visionImage {
	if strings.HasPrefix(ref, "data:image") {
		content := ref
		if i := strings.Index(ref, ";base64,"); i >= 0 {
			content = ref[i+len(";base64,"):]
		}
		return visionImage{Content: content}
	}
	return visionImage{Source: &visionImageSource{ImageURI: ref}}
}

func tags(in []annotation) []model.ImageTag {
	out := make([]model.ImageTag, 0, len(in))
	for _, a := range in {
		desc := a.Description
		if desc == "" {
			desc = a.Name
		}
		out = append(out, model.ImageTag{Description: desc, Score: a.Score})
	}
	return out
}

func (c *VisionClient) Tag(ctx context.Context, imageRef string) (*model.ImageAnalysis, error) {
	data, err := json.Marshal(map[string][]annotateRequest{
		"requests": {{Image: imageFor(imageRef), Features: visionFeatures}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/images:annotate?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var ar annotateResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(ar.Responses) == 0 {
		return nil, errors.New("no responses in annotate result")
	}
	r := ar.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("annotate error %d: %s", r.Error.Code, r.Error.Message)
	}

	return &model.ImageAnalysis{
		Labels:    tags(r.LabelAnnotations),
		Objects:   tags(r.LocalizedObjectAnnotations),
		Landmarks: tags(r.LandmarkAnnotations),
	}, nil
}
