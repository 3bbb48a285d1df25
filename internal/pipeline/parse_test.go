package pipeline

import (
	"strings"
	"testing"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`},
		{"no object", "nothing here", ""},
		{"unbalanced", "} {", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.raw); got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	plan, err := decode[domain.CampaignPlan]("planning", "```json\n"+planReply+"\n```")
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if len(plan.ResearchQueries) != 4 {
		t.Errorf("ResearchQueries = %v, want 4 entries", plan.ResearchQueries)
	}

	_, err = decode[domain.CampaignPlan]("planning", `{"objectives": "not a list"}`)
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		t.Fatalf("decode() error = %v, want *APIError", err)
	}
	if apiErr.Code != domain.ErrorCodeParseFailure {
		t.Errorf("Code = %q, want %q", apiErr.Code, domain.ErrorCodeParseFailure)
	}
}

func TestSplitDataURL(t *testing.T) {
	tests := []struct {
		in       string
		wantMIME string
		wantData string
	}{
		{"data:image/png;base64,AAAA", "image/png", "AAAA"},
		{"data:image/webp;base64,BBBB", "image/webp", "BBBB"},
		{"data:text/plain;base64,CCCC", "image/jpeg", "CCCC"},
		{"AAAA", "image/jpeg", "AAAA"},
		{"data:broken", "image/jpeg", "data:broken"},
	}
	for _, tt := range tests {
		mimeType, data := splitDataURL(tt.in)
		if mimeType != tt.wantMIME || data != tt.wantData {
			t.Errorf("splitDataURL(%q) = (%q, %q), want (%q, %q)", tt.in, mimeType, data, tt.wantMIME, tt.wantData)
		}
	}
}

func TestAssemble_TruncatesSummary(t *testing.T) {
	rc := &RunContext{
		Request: &domain.CampaignRequest{Prompt: "p"},
		Findings: []domain.ResearchFinding{
			{Query: "a", Insights: strings.Repeat("é", 400)},
			{Query: "b", Insights: strings.Repeat("x", 400)},
		},
		Copy:       &domain.CreativeCopy{Headline: "h"},
		Compliance: &domain.ComplianceResult{CanadianStandards: true, LegalClearance: true},
	}

	got := assemble(rc)
	if n := len([]rune(got.ResearchSummary)); n != summaryLimit+3 {
		t.Errorf("summary runes = %d, want %d", n, summaryLimit+3)
	}
	if !strings.HasSuffix(got.ResearchSummary, "...") {
		t.Errorf("summary %q missing ellipsis", got.ResearchSummary[len(got.ResearchSummary)-10:])
	}
	if got.Targeting.Interests == nil {
		t.Error("Interests should be an empty list, not nil")
	}
}

func TestMerge_PrefersExtractedFields(t *testing.T) {
	def := domain.BrandAnalysis{PrimaryColor: "#000", SecondaryColor: "#111", FontVibe: "Serif", Archetype: "The Explorer", CulturalElements: []string{"Maple"}}

	got := extractedBrand{PrimaryColor: "#abc", BrandArchetype: "The Sage", CulturalElements: []string{"Loon"}}.merge(def)
	want := domain.BrandAnalysis{PrimaryColor: "#abc", SecondaryColor: "#111", FontVibe: "Serif", Archetype: "The Sage", CulturalElements: []string{"Loon"}}
	if got.PrimaryColor != want.PrimaryColor || got.SecondaryColor != want.SecondaryColor ||
		got.Archetype != want.Archetype || got.CulturalElements[0] != "Loon" {
		t.Errorf("merge() = %+v, want %+v", got, want)
	}
}
