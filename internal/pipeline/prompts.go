package pipeline

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/campaign-orchestrator/internal/brand"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// insightExcerpt bounds each research insight quoted in the creative prompt.
const insightExcerpt = 200

func planningPrompt(req *domain.CampaignRequest, profile brand.Profile) string {
	return fmt.Sprintf(`You are the %[1]s Planning Agent. Analyze this campaign request and break it down into research, creative, and compliance tasks.

BRAND GUIDELINES (CACHED): %[2]s
Campaign Request: %[3]s
Location: %[4]s
Target Audience: %[5]s

Focus on the Canadian market. Be strategic and brief.

Return a JSON object with:
{
  "objectives": ["specific goals"],
  "researchQueries": ["Google search queries to ground the campaign"],
  "creativeRequirements": ["specific creative needs"],
  "complianceChecks": ["Canadian legal requirements"]
}`, profile.Name, profile.GuidelineContext(), req.Prompt, req.LocationOrDefault(), req.AudienceOrDefault())
}

func extractionPrompt(profile brand.Profile) string {
	return fmt.Sprintf(`You are the %s Brand Extractor. Analyze this brand image and extract:
- Primary color (hex code)
- Secondary/accent color (hex code)
- Font/style vibe (e.g., "Modern Sans", "Heritage Serif", "Bold Script")
- Brand archetype (e.g., "The Explorer", "The Artisan", "The Innovator")
- Canadian cultural elements present

Return as JSON object with keys: primaryColor, secondaryColor, fontVibe, brandArchetype, canadianElements[]`, profile.Name)
}

func creativePrompt(rc *RunContext) string {
	var research strings.Builder
	for _, f := range rc.Findings {
		fmt.Fprintf(&research, "- %s: %s...\n", f.Query, truncate(f.Insights, insightExcerpt))
	}
	a := rc.Analysis

	return fmt.Sprintf(`You are the %s Creative Agent. Create a Canadian ad campaign based on this research and brand analysis.

CAMPAIGN REQUEST: %s
LOCATION: %s
TARGET AUDIENCE: %s

RESEARCH INSIGHTS:
%s
BRAND ANALYSIS:
- Primary Color: %s
- Secondary Color: %s
- Font Vibe: %s
- Brand Archetype: %s
- Canadian Elements: %s

Return a JSON object with:
{
  "headline": "Compelling headline under 50 chars",
  "subheadline": "Supporting subheadline under 100 chars",
  "body": "Main ad copy under 200 chars, Canadian English",
  "callToAction": "Action-oriented CTA under 30 chars",
  "hashtags": ["relevant", "Canadian", "hashtags"],
  "tone": "brand-appropriate tone description"
}`, rc.Brand.Name, rc.Request.Prompt, rc.Request.LocationOrDefault(), rc.Request.AudienceOrDefault(),
		research.String(), a.PrimaryColor, a.SecondaryColor, a.FontVibe, a.Archetype, strings.Join(a.CulturalElements, ", "))
}

func auditPrompt(rc *RunContext) string {
	c := rc.Copy
	return fmt.Sprintf(`You are the %s Compliance Auditor. Validate this Canadian ad campaign for legal and quality standards.

CAMPAIGN CONTENT:
Headline: %s
Subheadline: %s
Body: %s
CTA: %s

LOCATION: %s

Return JSON with compliance assessment:
{
  "canadianStandards": true/false,
  "legalClearance": true/false,
  "accessibilityScore": 0-100,
  "issues": ["any compliance concerns"],
  "recommendations": ["suggested improvements"],
  "crtcCompliant": true/false
}`, rc.Brand.Name, c.Headline, c.Subheadline, c.Body, c.CallToAction, rc.Request.LocationOrDefault())
}

func visualPrompt(rc *RunContext) string {
	a := rc.Analysis
	return fmt.Sprintf(`Create a premium, high-end commercial photograph for a %s campaign.

BRAND DNA INTEGRATION:
- Primary Brand Color: %s (exact hex code from brand analysis)
- Secondary Brand Color: %s (exact hex code from brand analysis)
- Brand Archetype: %s
- Typography Style: %s
- Canadian Cultural Elements: %s

VISUAL REQUIREMENTS:
- High-resolution professional photography
- Luxury studio lighting with soft shadows
- Clean composition focusing on premium quality
- %s aesthetic
- Color palette must prominently feature the extracted brand colors
- Suitable for high-end digital advertising and social media
- No people in frame`, strings.ToLower(rc.Request.Prompt), a.PrimaryColor, a.SecondaryColor, a.Archetype, a.FontVibe,
		strings.Join(a.CulturalElements, ", "), rc.Brand.Name)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
