package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrNothingToPick is returned by PickItem for an empty list.
var ErrNothingToPick = errors.New("no items to pick from")

// PickerItem is one row of the picker.
type PickerItem struct {
	Label    string
	SubLabel string // dimmed, also searched by the filter
	Value    string
}

func (it PickerItem) matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(it.Label), q) ||
		strings.Contains(strings.ToLower(it.SubLabel), q)
}

// pickerModel lists items and narrows them as the user types.
type pickerModel struct {
	title  string
	all    []PickerItem
	query  string
	pos    int
	chosen string
	done   bool
}

func newPickerModel(title string, items []PickerItem) pickerModel {
	return pickerModel{title: title, all: items}
}

// visible is the filtered list in original order.
func (m pickerModel) visible() []PickerItem {
	if m.query == "" {
		return m.all
	}
	var out []PickerItem
	for _, it := range m.all {
		if it.matches(m.query) {
			out = append(out, it)
		}
	}
	return out
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	shown := m.visible()
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.done = true
		return m, tea.Quit
	case tea.KeyUp:
		m.pos = max(m.pos-1, 0)
	case tea.KeyDown:
		m.pos = min(m.pos+1, max(len(shown)-1, 0))
	case tea.KeyEnter:
		if len(shown) > 0 {
			m.chosen = shown[m.pos].Value
			m.done = true
			return m, tea.Quit
		}
	case tea.KeyBackspace:
		if m.query != "" {
			m.query = m.query[:len(m.query)-1]
			m.pos = 0
		}
	case tea.KeyRunes, tea.KeySpace:
		m.query += string(key.Runes)
		m.pos = 0
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.done {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n  %s\n", StyleTitle.Render(m.title))
	fmt.Fprintf(&sb, "  %s %s\n\n", StyleMeta.Render("filter:"), StyleValue.Render(m.query+"▏"))

	shown := m.visible()
	if len(shown) == 0 {
		sb.WriteString("    " + Meta("nothing matches") + "\n")
	}
	for i, it := range shown {
		marker, label := "    ", StyleValue.Render(it.Label)
		if i == m.pos {
			marker, label = "  ▸ ", StyleSelected.Render(it.Label)
		}
		sb.WriteString(marker + label)
		if it.SubLabel != "" {
			sb.WriteString("  " + StyleMeta.Render(it.SubLabel))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n" + Hint("type to filter   [ ↑↓ ] move   [ Enter ] choose   [ Esc ] cancel") + "\n")
	return sb.String()
}

// PickItem lets the user choose one of items and returns its Value. An empty
// string means the user cancelled.
func PickItem(title string, items []PickerItem) (string, error) {
	if len(items) == 0 {
		return "", ErrNothingToPick
	}
	final, err := tea.NewProgram(newPickerModel(title, items), tea.WithAltScreen()).Run()
	if err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}
	return final.(pickerModel).chosen, nil
}
