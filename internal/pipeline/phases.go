package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

// Estimated cloud spend avoided per logged activity, in cents.
const (
	savedFlashLite  = 0.30
	savedCache      = 4.50
	savedGrounding  = 1.20
	savedExtraction = 2.10
	savedCompliance = 0.45
	savedImagen     = 1.80
)

const (
	maxThoughtCitations = 5
	promptExcerpt       = 50
)

// call dispatches task and decodes the reply into T.
func call[T any](ctx context.Context, inv *Invoker, what string, task Task) (T, Output, error) {
	out, err := inv.Dispatch(ctx, task)
	if err != nil {
		var zero T
		return zero, out, err
	}
	v, err := decode[T](what, out.Text)
	return v, out, err
}

func (rc *RunContext) finish(agent domain.AgentRole, action, details string, metadata map[string]any) {
	rc.thought(domain.AgentThought{Agent: agent, Action: action, Details: details, Metadata: metadata, Status: domain.ThoughtCompleted})
}

func (rc *RunContext) fail(agent domain.AgentRole, action string, err error) {
	if isCancel(err) {
		return
	}
	details := err.Error()
	if apiErr, ok := domain.AsAPIError(err); ok {
		details = apiErr.Message
	}
	rc.thought(domain.AgentThought{Agent: agent, Action: action, Details: details, Status: domain.ThoughtError})
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// metadataOf flattens v into a thought metadata map.
func metadataOf(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

type planningPhase struct {
	inv *Invoker
}

func (planningPhase) Name() State { return StatePlanning }

func (p planningPhase) Run(ctx context.Context, rc *RunContext) Result {
	const action = "Analyzing campaign objectives"
	excerpt := truncate(rc.Request.Prompt, promptExcerpt)
	rc.thinking(domain.AgentPlanner, action, fmt.Sprintf("Processing: \"%s...\"", excerpt))

	plan, out, err := call[domain.CampaignPlan](ctx, p.inv, "planning", Task{
		TaskType:   domain.TaskPlanning,
		Complexity: domain.ComplexitySimple,
		Prompt:     planningPrompt(rc.Request, rc.Brand),
		JSON:       true,
	})

	switch out.Route.Destination {
	case domain.DestinationLocal:
		rc.logAgent(ctx, "Planner", domain.EventLocalInference,
			fmt.Sprintf("Task %q processed locally on %s - zero cloud cost", domain.TaskPlanning, out.Route.Model),
			0, map[string]any{"model": out.Route.Model, "task_type": domain.TaskPlanning})
	case domain.DestinationCloud:
		rc.logAgent(ctx, "Planner", domain.EventFlashLiteRouting,
			fmt.Sprintf("Campaign planning initiated: \"%s...\" - Using %s for optimal cost efficiency", excerpt, out.Route.Model),
			savedFlashLite, map[string]any{"model": out.Route.Model, "task_type": domain.TaskPlanning, "fallback": out.FellBack})
	}
	rc.logAgent(ctx, "Planner", domain.EventCacheHit,
		fmt.Sprintf("%s brand guidelines loaded from context cache - %d tokens saved (%.0f%% cost reduction)",
			rc.Brand.Name, rc.Brand.Cache.TokensSaved, rc.Brand.Cache.CostSavings*100),
		savedCache, map[string]any{"cache_type": "brand_guidelines", "tokens_saved": rc.Brand.Cache.TokensSaved})

	if err != nil {
		rc.fail(domain.AgentPlanner, action, err)
		return failed(err)
	}

	rc.Plan = &plan
	rc.finish(domain.AgentPlanner, action, fmt.Sprintf("%d objectives identified", len(plan.Objectives)), metadataOf(plan))
	return ok(rc.Plan)
}

type researchPhase struct {
	inv        *Invoker
	maxQueries int
}

func (researchPhase) Name() State { return StateResearching }

func (p researchPhase) Run(ctx context.Context, rc *RunContext) Result {
	const action = "Grounding with Google Search"
	rc.thinking(domain.AgentResearcher, action, "Researching current market trends and competitor analysis")
	rc.logAgent(ctx, "Researcher", domain.EventGroundingSearch,
		fmt.Sprintf("Initiating grounded research for \"%s...\" - Using Google Search for real-time market data", truncate(rc.Request.Prompt, 30)),
		savedGrounding, map[string]any{"search_enabled": true, "location": rc.Request.LocationOrDefault()})

	queries := rc.Plan.ResearchQueries
	if p.maxQueries >= 0 && len(queries) > p.maxQueries {
		queries = queries[:p.maxQueries]
	}

	findings := make([]domain.ResearchFinding, 0, len(queries))
	for _, q := range queries {
		step := fmt.Sprintf("Searching: %q", q)
		rc.thinking(domain.AgentResearcher, step, "Grounding campaign with real-time market data")

		res, err := p.inv.Search(ctx, q)
		if err != nil {
			if isCancel(err) {
				return failed(err)
			}
			rc.fail(domain.AgentResearcher, step, err)
			rc.logger.Warn("research query failed",
				slog.String("run_id", rc.Meta.RunID),
				slog.String("query", q),
				slog.String("error", err.Error()))
			continue
		}

		citations := append(append([]domain.Citation{}, res.Sources...), res.Supports...)
		verified := len(citations)
		if len(citations) > maxThoughtCitations {
			citations = citations[:maxThoughtCitations]
		}
		findings = append(findings, domain.ResearchFinding{Query: q, Insights: res.Text, Citations: res.Sources})
		rc.thought(domain.AgentThought{
			Agent:     domain.AgentResearcher,
			Action:    step,
			Details:   fmt.Sprintf("%d sources verified via Google Search", verified),
			Citations: citations,
			Status:    domain.ThoughtCompleted,
		})
	}

	rc.Findings = findings
	rc.finish(domain.AgentResearcher, action, fmt.Sprintf("%d of %d queries grounded", len(findings), len(queries)), nil)
	return ok(findings)
}

// extractedBrand accepts both key spellings models use for the last two fields.
type extractedBrand struct {
	PrimaryColor     string   `json:"primaryColor"`
	SecondaryColor   string   `json:"secondaryColor"`
	FontVibe         string   `json:"fontVibe"`
	BrandArchetype   string   `json:"brandArchetype"`
	Archetype        string   `json:"archetype"`
	CanadianElements []string `json:"canadianElements"`
	CulturalElements []string `json:"culturalElements"`
}

// merge fills fields the model left out from def.
func (e extractedBrand) merge(def domain.BrandAnalysis) domain.BrandAnalysis {
	out := def
	if e.PrimaryColor != "" {
		out.PrimaryColor = e.PrimaryColor
	}
	if e.SecondaryColor != "" {
		out.SecondaryColor = e.SecondaryColor
	}
	if e.FontVibe != "" {
		out.FontVibe = e.FontVibe
	}
	switch {
	case e.BrandArchetype != "":
		out.Archetype = e.BrandArchetype
	case e.Archetype != "":
		out.Archetype = e.Archetype
	}
	switch {
	case len(e.CanadianElements) > 0:
		out.CulturalElements = e.CanadianElements
	case len(e.CulturalElements) > 0:
		out.CulturalElements = e.CulturalElements
	}
	return out
}

type creativePhase struct {
	inv *Invoker
}

func (creativePhase) Name() State { return StateCreating }

func (p creativePhase) Run(ctx context.Context, rc *RunContext) Result {
	if res := p.analyzeBrand(ctx, rc); res.Kind != KindOk {
		return res
	}

	const action = "Crafting campaign copy"
	rc.thinking(domain.AgentCreative, action, "Writing headlines, body copy, and calls-to-action")

	cc, _, err := call[domain.CreativeCopy](ctx, p.inv, "creative", Task{
		TaskType:   domain.TaskCopywriting,
		Complexity: domain.ComplexityComplex,
		Prompt:     creativePrompt(rc),
		JSON:       true,
		Cloud:      true,
	})
	if err != nil {
		rc.fail(domain.AgentCreative, action, err)
		return failed(err)
	}

	rc.Copy = &cc
	rc.finish(domain.AgentCreative, action, fmt.Sprintf("%q - %s tone", cc.Headline, cc.Tone), metadataOf(cc))
	return ok(rc.Copy)
}

func (p creativePhase) analyzeBrand(ctx context.Context, rc *RunContext) Result {
	const action = "Analyzing brand assets"
	def := rc.Brand.DefaultAnalysis()
	rc.Analysis = def

	hasImage := rc.Request.BrandImage != ""
	if !hasImage {
		rc.thinking(domain.AgentCreative, action, fmt.Sprintf("Using %s defaults", rc.Brand.Name))
		rc.logAgent(ctx, "Creative", domain.EventCacheHit,
			fmt.Sprintf("Using cached %s brand DNA - %.0f%% efficiency gain", rc.Brand.Name, rc.Brand.Cache.CostSavings*100),
			savedCache, map[string]any{"has_image": false, "cache_used": true})
		rc.finish(domain.AgentCreative, action, fmt.Sprintf("Primary: %s, Style: %s", def.PrimaryColor, def.FontVibe), metadataOf(def))
		return ok(def)
	}

	rc.thinking(domain.AgentCreative, action, "Processing uploaded brand image for color and style extraction")
	rc.logAgent(ctx, "Creative", domain.EventBrandDNAExtraction,
		"Analyzing uploaded brand asset for DNA extraction - multimodal vision processing active",
		savedExtraction, map[string]any{"has_image": true, "cache_used": false})

	const extract = "Extracting brand DNA from image"
	rc.thinking(domain.AgentCreative, extract, "Analyzing colors, textures, and visual style")

	mimeType, data := splitDataURL(rc.Request.BrandImage)
	got, _, err := call[extractedBrand](ctx, p.inv, "brand extraction", Task{
		TaskType:   domain.TaskBrandExtraction,
		Complexity: domain.ComplexityComplex,
		Prompt:     extractionPrompt(rc.Brand),
		Images:     []ports.InlineImage{{MIMEType: mimeType, Data: data}},
		JSON:       true,
	})
	if err != nil {
		rc.fail(domain.AgentCreative, extract, err)
		if res := failed(err); res.Kind != KindParseError {
			rc.fail(domain.AgentCreative, action, err)
			return res
		}
		rc.finish(domain.AgentCreative, fmt.Sprintf("Using default %s branding", rc.Brand.Name),
			"Image analysis failed, applying heritage defaults", nil)
	} else {
		rc.Analysis = got.merge(def)
		rc.finish(domain.AgentCreative, extract,
			fmt.Sprintf("Primary: %s, Style: %s", rc.Analysis.PrimaryColor, rc.Analysis.FontVibe), metadataOf(rc.Analysis))
	}

	rc.finish(domain.AgentCreative, action,
		fmt.Sprintf("Primary: %s, Style: %s", rc.Analysis.PrimaryColor, rc.Analysis.FontVibe), nil)
	return ok(rc.Analysis)
}

type auditPhase struct {
	inv *Invoker
}

func (auditPhase) Name() State { return StateAuditing }

func (p auditPhase) Run(ctx context.Context, rc *RunContext) Result {
	const action = "Validating Canadian compliance"
	rc.thinking(domain.AgentAuditor, action, "Checking CRTC standards, accessibility, and legal requirements")
	rc.logAgent(ctx, "Auditor", domain.EventComplianceCheck,
		"Initiating Canadian compliance validation - CRTC broadcasting standards, PIPEDA privacy, and accessibility requirements",
		savedCompliance, map[string]any{"standards": []string{"CRTC", "PIPEDA", "WCAG"}, "region": rc.Request.LocationOrDefault()})

	verdict, _, err := call[domain.ComplianceResult](ctx, p.inv, "compliance", Task{
		TaskType:   domain.TaskValidation,
		Complexity: domain.ComplexitySimple,
		Prompt:     auditPrompt(rc),
		JSON:       true,
	})
	if err != nil {
		rc.fail(domain.AgentAuditor, action, err)
		return failed(err)
	}

	if verdict.Issues == nil {
		verdict.Issues = []string{}
	}
	rc.Compliance = &verdict

	if !verdict.Passed() {
		issues := strings.Join(verdict.Issues, ", ")
		rc.thought(domain.AgentThought{
			Agent:    domain.AgentAuditor,
			Action:   action,
			Details:  issues,
			Metadata: metadataOf(verdict),
			Status:   domain.ThoughtError,
		})
		return failed(domain.ErrCompliance(issues))
	}

	crtc := "✓"
	if !verdict.CRTCCompliant {
		crtc = "✗"
	}
	rc.finish(domain.AgentAuditor, action,
		fmt.Sprintf("Accessibility: %d/100, CRTC: %s", verdict.AccessibilityScore, crtc), metadataOf(verdict))
	return ok(rc.Compliance)
}

const (
	visualFailedNote   = "Image generation failed - proceeding with brand styling only"
	visualDisabledNote = "Image generation not enabled - brand colors extracted for manual application"
)

type visualPhase struct {
	inv     *Invoker
	enabled bool
}

func (visualPhase) Name() State { return StateVisualGenerating }

func (p visualPhase) Run(ctx context.Context, rc *RunContext) Result {
	a := rc.Analysis
	assets := &domain.VisualAssets{
		BrandColors: a.Colors(),
		Typography:  a.FontVibe,
	}

	if !p.enabled {
		assets.Note = visualDisabledNote
		rc.Visual = assets
		rc.finish(domain.AgentCreative, "Brand intelligence extracted",
			fmt.Sprintf("Colors: %s, %s | Style: %s", a.PrimaryColor, a.SecondaryColor, a.FontVibe), metadataOf(a))
		return ok(assets)
	}

	const action = "Generating premium visual assets"
	rc.thinking(domain.AgentCreative, action,
		fmt.Sprintf("Creating hero image with extracted brand colors: %s, %s", a.PrimaryColor, a.SecondaryColor))
	rc.logAgent(ctx, "Creative", domain.EventImagenGeneration,
		fmt.Sprintf("Generating hero image - Brand colors: %s, %s", a.PrimaryColor, a.SecondaryColor),
		savedImagen, map[string]any{"colors_used": a.Colors(), "style": "commercial_photography"})

	prompt := visualPrompt(rc)
	img, err := p.inv.GenerateImage(ctx, prompt)
	if err != nil {
		if isCancel(err) {
			return failed(err)
		}
		// non-fatal: the campaign ships with brand styling only
		rc.logger.Warn("hero image generation failed",
			slog.String("run_id", rc.Meta.RunID),
			slog.String("error", err.Error()))
		assets.Error = visualFailedNote
		rc.Visual = assets
		rc.thought(domain.AgentThought{
			Agent:    domain.AgentCreative,
			Action:   action,
			Details:  "Proceeding with text-only campaign. Visual assets can be added post-generation.",
			Metadata: map[string]any{"error": err.Error()},
			Status:   domain.ThoughtError,
		})
		return ok(assets)
	}

	assets.HeroImage = img.DataURL
	assets.GenerationPrompt = prompt
	assets.Model = img.Model
	rc.Visual = assets
	rc.finish(domain.AgentCreative, action,
		fmt.Sprintf("Hero image generated using exact brand colors: %s and %s", a.PrimaryColor, a.SecondaryColor),
		map[string]any{"model": img.Model, "brandColorsUsed": a.Colors(), "canadianElements": a.CulturalElements})
	return ok(assets)
}
