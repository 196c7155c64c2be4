package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/invest"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/transfer"
)

const defaultWidth = 120

// Investor runs the invest pipeline.
type Investor interface {
	Invest(ctx context.Context, p catalog.Project, s invest.Signer) (*invest.Receipt, error)
	InFlight() bool
	Label() string
}

// AppConfig wires the dashboard.
type AppConfig struct {
	Controller  *session.Controller
	Investor    Investor
	Catalog     *catalog.Catalog
	Cluster     chain.Cluster
	TokenSymbol string
	Clipboard   Clipboard
	Browser     func(url string) error
	Logger      *logrus.Logger
	ShowAll     bool // start with the full catalog instead of energy projects
}

type investDoneMsg struct {
	project string
	receipt *invest.Receipt
	err     error
}

// App is the dashboard: wallet header, project grid and the blocking
// outcome modal.
type App struct {
	ctl      *session.Controller
	investor Investor
	catalog  *catalog.Catalog
	header   Header
	browser  func(string) error
	log      *logrus.Logger

	showAll   bool
	projects  []catalog.Project
	cursor    int
	investing string // project id, "" when idle
	modal     *Modal

	width, height int
}

// NewApp builds the dashboard model.
func NewApp(cfg AppConfig) App {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := App{
		ctl:      cfg.Controller,
		investor: cfg.Investor,
		catalog:  cfg.Catalog,
		header:   NewHeader(cfg.Controller, cfg.Cluster, cfg.TokenSymbol, cfg.Clipboard),
		browser:  cfg.Browser,
		log:      log,
		showAll:  cfg.ShowAll,
	}
	a.projects = a.visible()
	return a
}

// RunApp runs the dashboard on the alternate screen until the user quits.
func RunApp(a App) error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}

func (a App) visible() []catalog.Project {
	if a.showAll {
		return a.catalog.All()
	}
	return a.catalog.EnergyProjects()
}

// Init enables mouse reporting for the header panel and starts passkey
// discovery.
func (a App) Init() tea.Cmd {
	return tea.Batch(tea.EnableMouseCellMotion, a.ctl.Init())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, quit()
		}
		if a.modal != nil {
			return a.modalKey(msg)
		}
		return a.key(msg)

	case tea.MouseMsg:
		if a.modal != nil {
			return a, nil
		}
		var cmd tea.Cmd
		a.header, cmd = a.header.Update(msg)
		return a, cmd

	case copiedMsg, copyResetMsg:
		var cmd tea.Cmd
		a.header, cmd = a.header.Update(msg)
		return a, cmd

	case investDoneMsg:
		return a.investDone(msg)
	}

	cmd := a.ctl.Update(msg)
	if !a.ctl.CanDisconnect() {
		a.header = a.header.Close()
	}
	return a, cmd
}

func quit() tea.Cmd {
	return tea.Sequence(tea.DisableMouse, tea.Quit)
}

func (a App) modalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", " ", "q":
		a.modal = nil
	case "o":
		if a.modal.Link != "" && a.browser != nil {
			link, open := a.modal.Link, a.browser
			return a, func() tea.Msg {
				_ = open(link)
				return nil
			}
		}
	}
	return a, nil
}

func (a App) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.String() {
	case "q":
		return a, quit()

	case "c":
		cmd = a.ctl.Connect(a.ctl.DefaultPreference())
	case "p":
		cmd = a.ctl.Connect(session.PreferAnyDevice)
	case "n":
		cmd = a.ctl.Connect(session.PreferForceNew)
	case "d":
		a.header = a.header.Close()
		cmd = a.ctl.Disconnect()
	case "r":
		cmd = a.ctl.Refresh()

	case "a":
		a.header = a.header.Toggle()
	case "y":
		a.header, cmd = a.header.Copy()
	case "esc":
		a.header = a.header.Close()

	case "f":
		a.showAll = !a.showAll
		a.projects = a.visible()
		a.cursor = min(a.cursor, max(len(a.projects)-1, 0))

	case "left", "h":
		a.move(-1)
	case "right", "l":
		a.move(1)
	case "up", "k":
		a.move(-a.columns())
	case "down", "j":
		a.move(a.columns())

	case "enter", "i":
		return a.invest()
	}
	return a, cmd
}

func (a *App) move(delta int) {
	next := a.cursor + delta
	if next >= 0 && next < len(a.projects) {
		a.cursor = next
	}
}

func (a App) columns() int {
	w := a.width
	if w <= 0 {
		w = defaultWidth
	}
	return max(1, min(3, w/(CardWidth+1)))
}

// invest starts an investment into the selected project. It is a no-op while
// the button is disabled.
func (a App) invest() (tea.Model, tea.Cmd) {
	if len(a.projects) == 0 || a.investing != "" || a.investor.InFlight() || !a.ctl.CanInvest() {
		return a, nil
	}
	signer, err := a.ctl.Signer()
	if err != nil {
		return a, nil
	}
	p := a.projects[a.cursor]
	a.investing = p.ID
	inv := a.investor
	return a, func() tea.Msg {
		r, err := inv.Invest(context.Background(), p, signer)
		return investDoneMsg{project: p.ID, receipt: r, err: err}
	}
}

func (a App) investDone(msg investDoneMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, invest.ErrInFlight) {
		return a, nil
	}
	a.investing = ""
	a.modal = outcomeModal(msg)
	if msg.err != nil {
		a.log.WithError(msg.err).WithField("project", msg.project).Warn("investment failed")
		return a, nil
	}
	return a, a.ctl.Refresh()
}

func outcomeModal(msg investDoneMsg) *Modal {
	if msg.err == nil {
		r := msg.receipt
		return &Modal{
			Title: "Investment confirmed",
			Body:  fmt.Sprintf("Invested %s in project %s.\nSignature %s", r.AmountText, r.ProjectID, r.Signature),
			Link:  r.ExplorerURL,
		}
	}

	var se *invest.SigningError
	var sub *invest.SubmissionError
	var res *transfer.AddressResolutionError
	m := &Modal{Title: "Investment failed", Body: msg.err.Error(), Error: true}
	switch {
	case errors.As(msg.err, &se):
		m.Title = "Signature declined"
	case errors.As(msg.err, &sub):
		m.Title = "Transaction failed"
	case errors.As(msg.err, &res):
		m.Title = "Token account unavailable"
	}
	return m
}

func (a App) cardState(p catalog.Project, i int) CardState {
	return CardState{
		Selected:  i == a.cursor,
		Connected: a.ctl.CanInvest(),
		Investing: a.investing == p.ID,
		Busy:      a.investing != "",
		Label:     a.investor.Label(),
	}
}

func (a App) View() string {
	header := a.header.View()
	if a.modal != nil {
		return header + "\n" + a.modal.View(a.width, max(a.height-a.header.Height()-1, 0))
	}

	var sb strings.Builder
	sb.WriteString(header + "\n\n")

	title := "Featured energy projects"
	if a.showAll {
		title = "All projects"
	}
	s := catalog.Summarize(a.projects)
	sb.WriteString(StyleTitle.Render(fmt.Sprintf("%s (%d)", title, s.Projects)) + "\n")
	sb.WriteString(Meta(fmt.Sprintf("%s raised of %s · %s t CO₂ avoided",
		format.Currency(s.CurrentFunding), format.Currency(s.FundingGoal), format.Number(s.CO2Reduction))) + "\n\n")

	cols := a.columns()
	var row []string
	for i, p := range a.projects {
		row = append(row, RenderCard(p, a.cardState(p, i)))
		if len(row) == cols || i == len(a.projects)-1 {
			sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...) + "\n")
			row = nil
		}
	}

	filter := "f all projects"
	if a.showAll {
		filter = "f energy only"
	}
	sb.WriteString("\n" + Hint("←↑↓→ select · enter invest · "+filter+" · q quit"))
	return sb.String()
}
