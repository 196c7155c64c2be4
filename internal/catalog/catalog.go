// Package catalog holds the read-only project records shown on the
// dashboard. Records are loaded from YAML: the embedded seed file by default,
// or an operator-supplied file.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed projects.yaml
var seed []byte

// Errors.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidProject  = errors.New("invalid project")
)

// Category is the closed set of project kinds.
type Category string

const (
	CategorySolar        Category = "solar"
	CategoryWind         Category = "wind"
	CategoryHydro        Category = "hydro"
	CategoryConservation Category = "conservation"
	CategoryAgriculture  Category = "sustainable-agriculture"
	CategoryOther        Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategorySolar, CategoryWind, CategoryHydro,
	CategoryConservation, CategoryAgriculture, CategoryOther,
}

// EnergyCategories are the categories shown on the dashboard grid.
var EnergyCategories = []Category{CategorySolar, CategoryWind, CategoryHydro}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool { return slices.Contains(Categories, c) }

// ParseCategory converts user input (case-insensitive) into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// RiskLevel grades a project's investment risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Impact holds a project's environmental and social metrics.
// CO2Reduction is required; the rest are optional.
type Impact struct {
	CO2Reduction    float64  // tons
	EnergyGenerated *float64 // MWh
	JobsCreated     *float64
	LivesImpacted   *float64
}

// UnmarshalYAML enforces the required co2_reduction field.
func (i *Impact) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		CO2Reduction    *float64 `yaml:"co2_reduction"`
		EnergyGenerated *float64 `yaml:"energy_generated"`
		JobsCreated     *float64 `yaml:"jobs_created"`
		LivesImpacted   *float64 `yaml:"lives_impacted"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.CO2Reduction == nil {
		return fmt.Errorf("%w: impact.co2_reduction is required (line %d)", ErrInvalidProject, n.Line)
	}
	*i = Impact{
		CO2Reduction:    *raw.CO2Reduction,
		EnergyGenerated: raw.EnergyGenerated,
		JobsCreated:     raw.JobsCreated,
		LivesImpacted:   raw.LivesImpacted,
	}
	return nil
}

// Project is one crowdfunding campaign.
type Project struct {
	ID             string    `yaml:"id"`
	Title          string    `yaml:"title"`
	Description    string    `yaml:"description"`
	ImageURL       string    `yaml:"image_url"`
	Category       Category  `yaml:"category"`
	Location       string    `yaml:"location"`
	FundingGoal    float64   `yaml:"funding_goal"`
	CurrentFunding float64   `yaml:"current_funding"`
	Impact         Impact    `yaml:"impact"`
	DurationMonths int       `yaml:"duration_months"`
	Risk           RiskLevel `yaml:"risk"`
	Returns        float64   `yaml:"returns"` // expected APY, percent

	// Treasury is the base58 address receiving investments. Empty means the
	// configured default treasury.
	Treasury string `yaml:"treasury,omitempty"`
}

// Progress returns the funded percentage. It is not clamped: a project that
// raised more than its goal reports more than 100.
func (p Project) Progress() float64 {
	if p.FundingGoal <= 0 {
		return 0
	}
	return p.CurrentFunding / p.FundingGoal * 100
}

// Catalog is an immutable, ordered set of projects.
type Catalog struct {
	projects []Project
	byID     map[string]int
}

type document struct {
	Projects []Project `yaml:"projects"`
}

// Default returns the embedded seed catalog.
func Default() (*Catalog, error) {
	return Parse(seed)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]int, len(doc.Projects))}
	for _, p := range doc.Projects {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidProject, p.ID)
		}
		c.byID[p.ID] = len(c.projects)
		c.projects = append(c.projects, p)
	}
	return c, nil
}

func validate(p Project) error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidProject)
	case !p.Category.Valid():
		return fmt.Errorf("%w: project %s has unknown category %q", ErrInvalidProject, p.ID, p.Category)
	case p.FundingGoal <= 0:
		return fmt.Errorf("%w: project %s needs a positive funding goal", ErrInvalidProject, p.ID)
	case p.CurrentFunding < 0:
		return fmt.Errorf("%w: project %s has negative funding", ErrInvalidProject, p.ID)
	}
	switch p.Risk {
	case RiskLow, RiskMedium, RiskHigh, "":
	default:
		return fmt.Errorf("%w: project %s has unknown risk level %q", ErrInvalidProject, p.ID, p.Risk)
	}
	return nil
}

// All returns every project in catalog order.
func (c *Catalog) All() []Project {
	return slices.Clone(c.projects)
}

// Len returns the number of projects.
func (c *Catalog) Len() int { return len(c.projects) }

// Get returns the project with the given id.
func (c *Catalog) Get(id string) (Project, error) {
	i, ok := c.byID[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return c.projects[i], nil
}

// Filter returns the projects whose category is one of cats, in catalog
// order. No categories means no filter.
func (c *Catalog) Filter(cats ...Category) []Project {
	if len(cats) == 0 {
		return c.All()
	}
	var out []Project
	for _, p := range c.projects {
		if slices.Contains(cats, p.Category) {
			out = append(out, p)
		}
	}
	return out
}

// EnergyProjects returns the solar, wind and hydro projects.
func (c *Catalog) EnergyProjects() []Project {
	return c.Filter(EnergyCategories...)
}

// Summary aggregates impact across a set of projects.
type Summary struct {
	Projects        int
	FundingGoal     float64
	CurrentFunding  float64
	CO2Reduction    float64
	EnergyGenerated float64
	JobsCreated     float64
	LivesImpacted   float64
}

// Summarize aggregates the given projects.
func Summarize(projects []Project) Summary {
	s := Summary{Projects: len(projects)}
	for _, p := range projects {
		s.FundingGoal += p.FundingGoal
		s.CurrentFunding += p.CurrentFunding
		s.CO2Reduction += p.Impact.CO2Reduction
		s.EnergyGenerated += deref(p.Impact.EnergyGenerated)
		s.JobsCreated += deref(p.Impact.JobsCreated)
		s.LivesImpacted += deref(p.Impact.LivesImpacted)
	}
	return s
}

// Summary aggregates the whole catalog.
func (c *Catalog) Summary() Summary { return Summarize(c.projects) }

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
