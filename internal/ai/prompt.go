package ai

import (
	"fmt"
	"strings"

	"greencity/internal/model"
)

const promptTask = `Task:
1. Feasibility (0-100): Can trees be planted here?
2. Impact: Cooling effect?
3. Ownership: Public or Private (guess based on visual cues)?
4. Category: confirm report type.
5. Species: Recommend 3 native plant/tree species suitable for this specific location/climate.
6. Carbon: Estimate CO2 sequestration potential (kg/year) if greened.
7. Summary: 1 sentence summary.

Output JSON scheme:
{
  "feasibilityScore": number,
  "plantation_possible": boolean,
  "land_ownership_estimate": "Public" | "Private" | "Unknown",
  "suggested_category": "tree_loss" | "heat_hotspot" | "unused_space",
  "cooling_impact": "High" | "Medium" | "Low",
  "native_species_recommendations": ["string", "string", "string"],
  "estimated_carbon_offset": "string" (e.g. "25 kg/year"),
  "summary": "string",
  "recommendations": ["string"]
}
`

// Input is what the analyzer knows about a proposal.
type Input struct {
	ReportType  model.ReportType
	Location    model.Location
	Description string
	ImageURL    string
}

func joinTags(in []model.ImageTag) string {
	names := make([]string, 0, len(in))
	for _, t := range in {
		names = append(names, t.Description)
	}
	return strings.Join(names, ", ")
}

// BuildPrompt renders the fixed analysis prompt. Vision tags are included
// only when tagging succeeded.
func BuildPrompt(in Input, image *model.ImageAnalysis) string {
	address := in.Location.Address
	if address == "" {
		address = "Unknown"
	}

	var b strings.Builder
	b.WriteString("Analyze this urban greening proposal. return VALID JSON only.\n\n")
	fmt.Fprintf(&b, "Report Type: %s\n", in.ReportType)
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	fmt.Fprintf(&b, "Location: %s\n\n", address)

	if image != nil && image.Error == "" {
		b.WriteString("Vision Analysis:\n")
		fmt.Fprintf(&b, "Labels: %s\n", joinTags(image.Labels))
		fmt.Fprintf(&b, "Objects: %s\n\n", joinTags(image.Objects))
	}

	b.WriteString(promptTask)
	return b.String()
}
