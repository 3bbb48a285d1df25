package domain

import (
	"strings"
	"time"
)

// CampaignRequest is the caller's campaign brief. It is immutable once accepted.
type CampaignRequest struct {
	Prompt         string `json:"prompt"`
	BrandImage     string `json:"brandImage,omitempty"`
	Location       string `json:"location,omitempty"`
	TargetAudience string `json:"targetAudience,omitempty"`
}

// Validate checks the request body before any pipeline work starts.
func (r *CampaignRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Prompt) == "" {
		return ErrInvalidRequest("Campaign prompt is required").
			WithCode(ErrorCodeMissingPrompt).
			WithParam("prompt")
	}
	return nil
}

// LocationOrDefault returns the requested location, or "Canada".
func (r *CampaignRequest) LocationOrDefault() string {
	if r.Location != "" {
		return r.Location
	}
	return "Canada"
}

// AudienceOrDefault returns the requested target audience, or "General consumers".
func (r *CampaignRequest) AudienceOrDefault() string {
	if r.TargetAudience != "" {
		return r.TargetAudience
	}
	return "General consumers"
}

// AgentRole identifies which pipeline agent produced a thought.
type AgentRole string

const (
	AgentPlanner    AgentRole = "planner"
	AgentResearcher AgentRole = "researcher"
	AgentCreative   AgentRole = "creative"
	AgentAuditor    AgentRole = "auditor"
)

// ThoughtStatus is the progress state of a thought.
type ThoughtStatus string

const (
	ThoughtThinking  ThoughtStatus = "thinking"
	ThoughtCompleted ThoughtStatus = "completed"
	ThoughtError     ThoughtStatus = "error"
)

// Citation is a grounding source attached to research output.
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// AgentThought is one progress event streamed to the caller.
// Thoughts sharing a Key supersede each other in the client's view.
type AgentThought struct {
	Agent     AgentRole      `json:"agent"`
	Action    string         `json:"action"`
	Details   string         `json:"details,omitempty"`
	Citations []Citation     `json:"citations,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    ThoughtStatus  `json:"status"`
	Timestamp int64          `json:"timestamp"`
}

// Key returns the identity key used to coalesce thoughts.
func (t AgentThought) Key() string {
	return string(t.Agent) + ":" + t.Action
}

// Complexity classifies how demanding a subtask is.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very_complex"
)

// Destination is where a routed call is dispatched.
type Destination string

const (
	DestinationLocal Destination = "local"
	DestinationCloud Destination = "cloud"
)

// Tier selects a cloud model class.
type Tier string

const (
	// TierFast is the cheap, low-latency cloud tier.
	TierFast Tier = "fast"
	// TierCapable is the slower tier used for complex work.
	TierCapable Tier = "capable"
)

// Common task type tags understood by the router.
const (
	TaskGeneral         = "general"
	TaskPlanning        = "planning"
	TaskValidation      = "validation"
	TaskFormatting      = "formatting"
	TaskClassification  = "classification"
	TaskSentiment       = "sentiment"
	TaskReasoning       = "simple_reasoning"
	TaskCreativeWriting = "creative_writing"
	TaskCodeGeneration  = "code_generation"
	TaskResearch        = "research"
	TaskBrandExtraction = "brand_extraction"
	TaskCopywriting     = "copywriting"
	TaskImageGeneration = "image_generation"
)

// RouteDecision is the router's answer for one subtask.
type RouteDecision struct {
	Destination        Destination `json:"destination"`
	Model              string      `json:"model"`
	Backend            string      `json:"backend,omitempty"` // owning local backend
	Tier               Tier        `json:"tier,omitempty"`
	EstimatedLatencyMs int         `json:"estimatedLatency"`
	EstimatedCost      float64     `json:"cost"`
	Reason             string      `json:"reason,omitempty"`
}

// BackendCapability is a model registered by a bridge or client.
type BackendCapability struct {
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	LatencyMs    int      `json:"latencyMs"`
	CostPerCall  float64  `json:"costPerCall"`
	Owner        string   `json:"owner"`
}

// Supports reports whether the backend declares taskType or the general wildcard.
func (c BackendCapability) Supports(taskType string) bool {
	for _, capability := range c.Capabilities {
		if capability == taskType || capability == TaskGeneral {
			return true
		}
	}
	return false
}

// CampaignPlan is the planner's output.
type CampaignPlan struct {
	Objectives           []string `json:"objectives"`
	ResearchQueries      []string `json:"researchQueries"`
	CreativeRequirements []string `json:"creativeRequirements"`
	ComplianceChecks     []string `json:"complianceChecks"`
}

// ResearchFinding is one grounded query result.
type ResearchFinding struct {
	Query     string     `json:"query"`
	Insights  string     `json:"insights"`
	Citations []Citation `json:"citations,omitempty"`
}

// BrandAnalysis describes the visual identity used by the creative and visual phases.
type BrandAnalysis struct {
	PrimaryColor     string   `json:"primaryColor"`
	SecondaryColor   string   `json:"secondaryColor"`
	FontVibe         string   `json:"fontVibe"`
	Archetype        string   `json:"archetype"`
	CulturalElements []string `json:"culturalElements"`
}

// Colors returns the primary and secondary brand colors.
func (b BrandAnalysis) Colors() []string {
	return []string{b.PrimaryColor, b.SecondaryColor}
}

// CreativeCopy is the full creative output, including fields that are not
// part of the final ad copy.
type CreativeCopy struct {
	Headline     string   `json:"headline"`
	Subheadline  string   `json:"subheadline"`
	Body         string   `json:"body"`
	CallToAction string   `json:"callToAction"`
	Hashtags     []string `json:"hashtags"`
	Tone         string   `json:"tone"`
}

// AdCopy is the copy delivered in the campaign result.
type AdCopy struct {
	Headline     string `json:"headline"`
	Subheadline  string `json:"subheadline"`
	Body         string `json:"body"`
	CallToAction string `json:"callToAction"`
}

// ComplianceResult is the auditor's verdict. A failing result is terminal.
type ComplianceResult struct {
	CanadianStandards  bool     `json:"canadianStandards"`
	LegalClearance     bool     `json:"legalClearance"`
	AccessibilityScore int      `json:"accessibilityScore"`
	Issues             []string `json:"issues"`
	Recommendations    []string `json:"recommendations,omitempty"`
	CRTCCompliant      bool     `json:"crtcCompliant"`
}

// Passed reports whether the campaign cleared both compliance gates.
func (c ComplianceResult) Passed() bool {
	return c.CanadianStandards && c.LegalClearance
}

// Targeting describes who the campaign is aimed at.
type Targeting struct {
	Location     string   `json:"location"`
	Demographics []string `json:"demographics"`
	Interests    []string `json:"interests"`
}

// VisualAssets holds hero image output or the brand styling fallback.
type VisualAssets struct {
	HeroImage        string   `json:"heroImage"`
	BrandColors      []string `json:"brandColors"`
	Typography       string   `json:"typography"`
	GenerationPrompt string   `json:"generationPrompt,omitempty"`
	Model            string   `json:"model,omitempty"`
	Error            string   `json:"error,omitempty"`
	Note             string   `json:"note,omitempty"`
}

// CampaignResult is the single successful outcome of a pipeline run.
type CampaignResult struct {
	ResearchSummary string           `json:"researchSummary"`
	AdCopy          AdCopy           `json:"adCopy"`
	BrandAnalysis   BrandAnalysis    `json:"brandAnalysis"`
	Targeting       Targeting        `json:"targeting"`
	Compliance      ComplianceResult `json:"compliance"`
	VisualAssets    *VisualAssets    `json:"visualAssets,omitempty"`
}

// RateLimitEntry is a fixed-window counter for one caller.
type RateLimitEntry struct {
	Identifier string    `json:"identifier" firestore:"identifier"`
	Count      int       `json:"count" firestore:"count"`
	ResetTime  time.Time `json:"resetTime" firestore:"resetTime"`
}

// Expired reports whether the window has elapsed at now.
func (e RateLimitEntry) Expired(now time.Time) bool {
	return e.ResetTime.Before(now)
}

// UsageRecord is an append-only billing unit record.
type UsageRecord struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	FunctionName string    `json:"functionName" db:"function_name"`
	Units        int       `json:"units" db:"units"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// AgentLog is a structured activity record for downstream dashboards.
type AgentLog struct {
	ID        string         `json:"id"`
	RunID     string         `json:"runId"`
	UserID    string         `json:"userId,omitempty"`
	Component string         `json:"component"`
	EventType string         `json:"eventType"`
	Message   string         `json:"message"`
	CostSaved float64        `json:"costSaved"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Agent log event types.
const (
	EventFlashLiteRouting   = "FLASH_LITE_ROUTING"
	EventCacheHit           = "CACHE_HIT"
	EventGroundingSearch    = "GROUNDING_SEARCH"
	EventBrandDNAExtraction = "BRAND_DNA_EXTRACTION"
	EventComplianceCheck    = "COMPLIANCE_CHECK"
	EventImagenGeneration   = "IMAGEN_GENERATION"
	EventLocalInference     = "LOCAL_INFERENCE"
	EventPipelineFailed     = "PIPELINE_FAILED"
)
