package brand

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, "Modern Voyageur", p.Name)
	assert.Equal(t, "#3d2b1f", p.Colors.Primary)
	assert.Equal(t, "#d4af37", p.Colors.Secondary)
	assert.Equal(t, 5000, p.Cache.TokensSaved)
	assert.InDelta(t, 0.90, p.Cache.CostSavings, 1e-9)
}

func TestDefaultAnalysis(t *testing.T) {
	a := Default().DefaultAnalysis()
	assert.Equal(t, "#3d2b1f", a.PrimaryColor)
	assert.Equal(t, "#d4af37", a.SecondaryColor)
	assert.Equal(t, "Heritage-Serif", a.FontVibe)
	assert.Equal(t, "The Explorer", a.Archetype)
	assert.Equal(t, []string{"Maple leaf motifs", "Canadian wildlife", "Heritage craftsmanship"}, a.CulturalElements)

	// callers may mutate the slice without touching the profile
	a.CulturalElements[0] = "changed"
	assert.Equal(t, "Maple leaf motifs", Default().DefaultAnalysis().CulturalElements[0])
}

func TestGuidelineContext(t *testing.T) {
	ctx := Default().GuidelineContext()
	for _, want := range []string{
		"Modern Voyageur Brand Identity:",
		"Deep Cognac Leather (#3d2b1f)",
		"Brushed Gold (#d4af37)",
		"Playfair Display",
		"Inter",
		"CRTC standards",
		"bilingual support",
	} {
		assert.Contains(t, ctx, want)
	}
}

func TestLoad(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "voyageur.toml"))
	require.NoError(t, err)

	assert.Equal(t, "Northern Outfitters", p.Name)
	assert.Equal(t, "#1f3d2b", p.Colors.Primary)
	assert.Equal(t, "Merriweather", p.Typography.Headers)
	assert.Equal(t, "The Outlaw", p.DefaultAnalysis().Archetype)
	// cache accounting is not in the file and keeps its default
	assert.Equal(t, 5000, p.Cache.TokensSaved)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"malformed", "name = ", "failed to parse"},
		{"unknown key", "name = \"x\"\nlogo = \"y\"", "unknown brand profile keys"},
		{"empty name", "name = \"\"", "name is required"},
		{"empty document", "", "profile is empty"},
		{"whitespace only", " \n\t\n", "profile is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestNewStore_DefaultWithoutPath(t *testing.T) {
	s, err := NewStore("", nil)
	require.NoError(t, err)
	assert.Equal(t, "Modern Voyageur", s.Current().Name)
	assert.NoError(t, s.Watch(context.Background()))
}

func TestStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brand.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "First"`), 0o644))

	s, err := NewStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "First", s.Current().Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(`name = "Second"`), 0o644))
	assert.Eventually(t, func() bool {
		return s.Current().Name == "Second"
	}, 5*time.Second, 20*time.Millisecond)

	// a broken file keeps the last good profile
	require.NoError(t, os.WriteFile(path, []byte(`name = `), 0o644))
	time.Sleep(4 * ReloadDebounce)
	assert.Equal(t, "Second", s.Current().Name)
}

func TestStore_WatchIgnoresTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brand.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "First"`), 0o644))

	s, err := NewStore(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	// truncate and leave the file empty, as a writer does before its first byte
	require.NoError(t, os.Truncate(path, 0))
	time.Sleep(4 * ReloadDebounce)
	assert.Equal(t, "First", s.Current().Name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`name = "Third"`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return s.Current().Name == "Third"
	}, 5*time.Second, 20*time.Millisecond)
}
