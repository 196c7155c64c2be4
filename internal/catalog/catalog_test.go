package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestProgressSeventyPercent(t *testing.T) {
	p := Project{FundingGoal: 2_500_000, CurrentFunding: 1_750_000}
	assert.InDelta(t, 70.0, p.Progress(), 1e-9)
}

func TestProgressNotClamped(t *testing.T) {
	p := Project{FundingGoal: 1_000_000, CurrentFunding: 1_400_000}
	assert.InDelta(t, 140.0, p.Progress(), 1e-9)
}

func TestProgressFormula(t *testing.T) {
	cases := []struct{ goal, current float64 }{
		{850_000, 710_000},
		{4_500_000, 3_200_000},
		{1, 0},
		{3, 10},
	}
	for _, tc := range cases {
		p := Project{FundingGoal: tc.goal, CurrentFunding: tc.current}
		assert.InDelta(t, tc.current/tc.goal*100, p.Progress(), 1e-9)
	}
}

func TestProgressZeroGoal(t *testing.T) {
	assert.Equal(t, 0.0, Project{CurrentFunding: 10}.Progress())
}

// ---------------------------------------------------------------------------
// Default catalog
// ---------------------------------------------------------------------------

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 6, c.Len())

	p, err := c.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Solar Farm in Nevada Desert", p.Title)
	assert.Equal(t, CategorySolar, p.Category)
	assert.Equal(t, 2_500_000.0, p.FundingGoal)
	assert.Equal(t, 1_750_000.0, p.CurrentFunding)
	assert.Equal(t, 12_500.0, p.Impact.CO2Reduction)
	require.NotNil(t, p.Impact.EnergyGenerated)
	assert.Equal(t, 45_000.0, *p.Impact.EnergyGenerated)
}

func TestDefaultCatalogOptionalMetrics(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	p, err := c.Get("3")
	require.NoError(t, err)
	assert.Nil(t, p.Impact.EnergyGenerated, "conservation project has no energy figure")
	assert.Equal(t, 250_000.0, p.Impact.CO2Reduction)
}

func TestGetUnknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	_, err = c.Get("nope")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestEnergyProjects(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var ids []string
	for _, p := range c.EnergyProjects() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "2", "4"}, ids)
}

func TestFilterNoCategoriesReturnsAll(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Len(t, c.Filter(), 6)
	assert.Len(t, c.Filter(CategoryAgriculture), 2)
}

func TestAllReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	all := c.All()
	all[0].Title = "mutated"

	p, err := c.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Solar Farm in Nevada Desert", p.Title)
}

func TestSummary(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	s := Summarize(c.EnergyProjects())
	assert.Equal(t, 3, s.Projects)
	assert.Equal(t, 2_500_000.0+1_750_000+850_000, s.FundingGoal)
	assert.Equal(t, 12_500.0+8_700+3_200, s.CO2Reduction)
	assert.Equal(t, 45_000.0+28_000+5_600, s.EnergyGenerated)
}

// ---------------------------------------------------------------------------
// Parse validation
// ---------------------------------------------------------------------------

func TestParseRequiresCO2(t *testing.T) {
	doc := `
projects:
  - id: x
    category: solar
    funding_goal: 10
    impact:
      jobs_created: 3
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProject)
	assert.Contains(t, err.Error(), "co2_reduction")
}

func TestParseRejectsUnknownCategory(t *testing.T) {
	doc := `
projects:
  - id: x
    category: nuclear
    funding_goal: 10
    impact: {co2_reduction: 1}
`
	_, err := Parse([]byte(doc))
	assert.ErrorIs(t, err, ErrInvalidProject)
}

func TestParseRejectsDuplicateID(t *testing.T) {
	doc := `
projects:
  - {id: a, category: wind, funding_goal: 10, impact: {co2_reduction: 1}}
  - {id: a, category: hydro, funding_goal: 10, impact: {co2_reduction: 1}}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseOverfundedAllowed(t *testing.T) {
	doc := `
projects:
  - {id: a, category: wind, funding_goal: 100, current_funding: 140, impact: {co2_reduction: 1}}
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	p, err := c.Get("a")
	require.NoError(t, err)
	assert.InDelta(t, 140.0, p.Progress(), 1e-9)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	doc := "projects:\n  - {id: z, category: other, funding_goal: 5, impact: {co2_reduction: 2}, treasury: abc}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	p, err := c.Get("z")
	require.NoError(t, err)
	assert.Equal(t, "abc", p.Treasury)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// ParseCategory
// ---------------------------------------------------------------------------

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Solar ")
	require.NoError(t, err)
	assert.Equal(t, CategorySolar, c)

	_, err = ParseCategory("coal")
	assert.Error(t, err)
}
