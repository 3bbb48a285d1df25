// Package brand holds the cached brand guidelines injected into planning
// prompts, and the default brand analysis used when no image is supplied.
package brand

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

// Profile is a brand identity loaded from TOML.
type Profile struct {
	Name       string     `toml:"name"`
	Voice      string     `toml:"voice"`
	Values     []string   `toml:"values"`
	Colors     Colors     `toml:"colors"`
	Typography Typography `toml:"typography"`
	Cultural   []string   `toml:"cultural_elements"`
	Compliance []string   `toml:"compliance"`
	Defaults   Defaults   `toml:"defaults"`
	Cache      Cache      `toml:"cache"`
}

// Colors are the brand palette.
type Colors struct {
	Primary       string `toml:"primary"`
	PrimaryName   string `toml:"primary_name"`
	Secondary     string `toml:"secondary"`
	SecondaryName string `toml:"secondary_name"`
}

// Typography names the header and body typefaces.
type Typography struct {
	Headers string `toml:"headers"`
	Body    string `toml:"body"`
}

// Defaults seed the brand analysis when no brand image is supplied.
type Defaults struct {
	FontVibe         string   `toml:"font_vibe"`
	Archetype        string   `toml:"archetype"`
	CulturalElements []string `toml:"cultural_elements"`
}

// Cache describes the savings of reusing the guidelines instead of
// re-sending them with every prompt.
type Cache struct {
	TokensSaved int     `toml:"tokens_saved"`
	CostSavings float64 `toml:"cost_savings"`
}

// Default returns the built-in Modern Voyageur profile.
func Default() Profile {
	return Profile{
		Name:   "Modern Voyageur",
		Voice:  "Professional, elite, Canadian-centric",
		Values: []string{"Heritage", "authenticity", "environmental consciousness", "community"},
		Colors: Colors{
			Primary:       "#3d2b1f",
			PrimaryName:   "Deep Cognac Leather",
			Secondary:     "#d4af37",
			SecondaryName: "Brushed Gold",
		},
		Typography: Typography{Headers: "Playfair Display", Body: "Inter"},
		Cultural:   []string{"Maple motifs", "northern landscapes", "artisan craftsmanship"},
		Compliance: []string{"CRTC standards", "PIPEDA privacy", "bilingual support"},
		Defaults: Defaults{
			FontVibe:         "Heritage-Serif",
			Archetype:        "The Explorer",
			CulturalElements: []string{"Maple leaf motifs", "Canadian wildlife", "Heritage craftsmanship"},
		},
		Cache: Cache{TokensSaved: 5000, CostSavings: 0.90},
	}
}

// Load reads a profile from path. Fields missing from the file keep their
// default values.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read brand profile: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes a TOML profile over the defaults. An empty document is an
// error, since a file caught mid-write reads as empty.
func Parse(data string) (Profile, error) {
	if strings.TrimSpace(data) == "" {
		return Profile{}, fmt.Errorf("brand profile is empty")
	}
	p := Default()
	md, err := toml.Decode(data, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to parse brand profile: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("unknown brand profile keys: %v", undecoded)
	}
	if p.Name == "" {
		return Profile{}, fmt.Errorf("brand profile name is required")
	}
	return p, nil
}

// GuidelineContext renders the profile as the cached guideline block placed
// in planning prompts.
func (p Profile) GuidelineContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Brand Identity:\n", p.Name)
	fmt.Fprintf(&b, "- Primary Colors: %s, %s\n", colorLabel(p.Colors.PrimaryName, p.Colors.Primary), colorLabel(p.Colors.SecondaryName, p.Colors.Secondary))
	fmt.Fprintf(&b, "- Typography: Serif headers (%s), Sans-serif body (%s)\n", p.Typography.Headers, p.Typography.Body)
	if p.Voice != "" {
		fmt.Fprintf(&b, "- Voice: %s\n", p.Voice)
	}
	if len(p.Values) > 0 {
		fmt.Fprintf(&b, "- Values: %s\n", strings.Join(p.Values, ", "))
	}
	if len(p.Cultural) > 0 {
		fmt.Fprintf(&b, "- Canadian Elements: %s\n", strings.Join(p.Cultural, ", "))
	}
	if len(p.Compliance) > 0 {
		fmt.Fprintf(&b, "- Compliance: %s\n", strings.Join(p.Compliance, ", "))
	}
	return b.String()
}

// DefaultAnalysis is the brand analysis used without a brand image.
func (p Profile) DefaultAnalysis() domain.BrandAnalysis {
	return domain.BrandAnalysis{
		PrimaryColor:     p.Colors.Primary,
		SecondaryColor:   p.Colors.Secondary,
		FontVibe:         p.Defaults.FontVibe,
		Archetype:        p.Defaults.Archetype,
		CulturalElements: append([]string(nil), p.Defaults.CulturalElements...),
	}
}

func colorLabel(name, hex string) string {
	if name == "" {
		return hex
	}
	return fmt.Sprintf("%s (%s)", name, hex)
}
