package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/ui"
)

var (
	projectsAll      bool
	projectsCategory []string
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"ls"},
	Short:   "List crowdfunding projects",
	Long: `List the featured energy projects (solar, wind, hydro).

  --all shows every project; --category filters by one or more categories
  (solar, wind, hydro, conservation, sustainable-agriculture, other).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		projects, title, err := selectProjects(c, projectsAll, projectsCategory)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println(ui.Warn("No projects match."))
			return nil
		}

		fmt.Printf("%s\n\n", ui.StyleTitle.Render(fmt.Sprintf("%s (%d)", title, len(projects))))
		fmt.Println(projectTable(projects).Render())
		fmt.Println()
		fmt.Println(summaryLine(catalog.Summarize(projects)))
		fmt.Println(ui.Hint("amoca project <id> for details, amoca invest <id> to fund one"))
		return nil
	},
}

var projectCmd = &cobra.Command{
	Use:   "project <id>",
	Short: "Show one project in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		p, err := c.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock(p.Title, projectDetails(p)))
		if p.Description != "" {
			fmt.Println()
			fmt.Println(ui.Meta(p.Description))
		}
		return nil
	},
}

// selectProjects applies the listing flags. Categories win over --all.
func selectProjects(c *catalog.Catalog, all bool, categories []string) ([]catalog.Project, string, error) {
	if len(categories) > 0 {
		cats := make([]catalog.Category, 0, len(categories))
		for _, s := range categories {
			cat, err := catalog.ParseCategory(s)
			if err != nil {
				return nil, "", err
			}
			cats = append(cats, cat)
		}
		return c.Filter(cats...), "Projects", nil
	}
	if all {
		return c.All(), "All projects", nil
	}
	return c.EnergyProjects(), "Featured energy projects", nil
}

func projectTable(projects []catalog.Project) *ui.Table {
	t := ui.NewTable([]ui.Column{
		{Title: "ID", Width: 4},
		{Title: "Project", Width: 32},
		{Title: "Category", Width: 16},
		{Title: "Location", Width: 20},
		{Title: "Funded", Width: 7, Right: true},
		{Title: "Goal", Width: 12, Right: true},
		{Title: "CO₂ t", Width: 9, Right: true},
		{Title: "APY", Width: 5, Right: true},
	})
	for _, p := range projects {
		t.AddRow(ui.Row{
			p.ID,
			p.Title,
			ui.Badge(p.Category),
			p.Location,
			format.Percent(p.Progress()),
			format.Currency(p.FundingGoal),
			format.Number(p.Impact.CO2Reduction),
			format.Decimal(p.Returns, 1) + "%",
		})
	}
	return t
}

func projectDetails(p catalog.Project) [][2]string {
	pairs := [][2]string{
		{"ID", p.ID},
		{"Category", ui.Badge(p.Category)},
		{"Location", p.Location},
		{"Progress", ui.ProgressBar(p.Progress(), 24) + " " + format.Percent(p.Progress())},
		{"Raised", format.Currency(p.CurrentFunding)},
		{"Goal", format.Currency(p.FundingGoal)},
		{"CO₂ reduction", format.Number(p.Impact.CO2Reduction) + " t"},
	}
	if v := p.Impact.EnergyGenerated; v != nil {
		pairs = append(pairs, [2]string{"Energy", format.Number(*v) + " MWh"})
	}
	if v := p.Impact.JobsCreated; v != nil {
		pairs = append(pairs, [2]string{"Jobs created", format.Number(*v)})
	}
	if v := p.Impact.LivesImpacted; v != nil {
		pairs = append(pairs, [2]string{"Lives impacted", format.Number(*v)})
	}
	if p.DurationMonths > 0 {
		pairs = append(pairs, [2]string{"Duration", fmt.Sprintf("%d months", p.DurationMonths)})
	}
	if p.Risk != "" {
		pairs = append(pairs, [2]string{"Risk", strings.ToUpper(string(p.Risk[:1])) + string(p.Risk[1:])})
	}
	pairs = append(pairs, [2]string{"Returns", format.Decimal(p.Returns, 1) + "% APY"})
	if p.Treasury != "" {
		pairs = append(pairs, [2]string{"Treasury", p.Treasury})
	}
	if p.ImageURL != "" {
		pairs = append(pairs, [2]string{"Image", p.ImageURL})
	}
	return pairs
}

func summaryLine(s catalog.Summary) string {
	parts := []string{
		fmt.Sprintf("%d projects", s.Projects),
		format.Currency(s.CurrentFunding) + " of " + format.Currency(s.FundingGoal) + " raised",
		format.Number(s.CO2Reduction) + " t CO₂",
	}
	if s.EnergyGenerated > 0 {
		parts = append(parts, format.Number(s.EnergyGenerated)+" MWh")
	}
	return ui.Meta(strings.Join(parts, " · "))
}
