// Package tui is the interactive item screen. It renders the snapshots a
// Syncer publishes and turns key presses into Syncer mutations.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/itemsync/internal/itemsync"
	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/ui"
)

// Mutator is the part of itemsync.Syncer the screen writes through.
type Mutator interface {
	AddItem(title, description string) *itemsync.Result
	DeleteItem(id string) *itemsync.Result
	UpdateItem(item model.Item) *itemsync.Result
}

type mode int

const (
	browsing mode = iota
	adding
	editing
)

const (
	fieldTitle = iota
	fieldDescription
)

type snapshotMsg []model.Item

type resultMsg struct {
	op  itemsync.Op
	err error
}

type modelTUI struct {
	list       list.Model
	mut        Mutator
	updates    <-chan []model.Item
	collection string
	count      int

	width, height int

	// Inline add / edit form
	mode    mode
	inputs  [2]textinput.Model
	focus   int
	editID  string
	formErr string

	status string

	// Undo support (single-level, re-adds the last deleted item)
	undoItem *model.Item
}

// Run shows the screen until the user quits. The syncer must be started.
func Run(s *itemsync.Syncer, collection string) error {
	updates, cancel := s.Observe()
	defer cancel()

	p := tea.NewProgram(newModel(s, updates, collection), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newModel(mut Mutator, updates <-chan []model.Item, collection string) modelTUI {
	l := list.New(nil, itemDelegate{}, 80, 20)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = ui.TitleStyle
	l.Styles.HelpStyle = ui.HelpStyle
	l.Styles.PaginationStyle = ui.HelpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")

	addBind := key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind := key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	delBind := key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	undoBind := key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo"))
	extra := func() []key.Binding { return []key.Binding{addBind, editBind, delBind, undoBind} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	m := modelTUI{
		list:       l,
		mut:        mut,
		updates:    updates,
		collection: collection,
		width:      80,
		height:     24,
	}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.CharLimit = 200
		m.inputs[i] = ti
	}
	m.inputs[fieldTitle].Placeholder = "Title..."
	m.inputs[fieldDescription].Placeholder = "Description..."
	m.list.Title = m.header()
	return m
}

func (m modelTUI) header() string {
	return fmt.Sprintf("%s   %s %d",
		ui.TitleStyle.Render("Items"),
		ui.AccentStyle.Render(m.collection), m.count)
}

// waitForSnapshot delivers the next snapshot as a message.
func waitForSnapshot(ch <-chan []model.Item) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		items, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(items)
	}
}

// awaitResult reports a submitted mutation once the store has answered.
func awaitResult(res *itemsync.Result) tea.Cmd {
	if res == nil {
		return nil
	}
	return func() tea.Msg {
		<-res.Done()
		return resultMsg{op: res.Op(), err: res.Err()}
	}
}

func (m modelTUI) Init() tea.Cmd { return waitForSnapshot(m.updates) }

func (m modelTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case snapshotMsg:
		m.count = len(msg)
		m.list.Title = m.header()
		cmd := m.list.SetItems(toListItems(msg))
		return m, tea.Batch(cmd, waitForSnapshot(m.updates))
	case resultMsg:
		if msg.err != nil {
			m.status = ui.ErrorStyle.Render(fmt.Sprintf("%s failed: %v", msg.op, msg.err))
		} else {
			m.status = ui.SuccessStyle.Render(string(msg.op) + " ok")
		}
		return m, nil
	}

	if m.mode != browsing {
		return m.updateForm(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch k.String() {
		case "q", "esc":
			return m, tea.Quit
		case "a":
			return m.openForm(adding, model.Item{}), textinput.Blink
		case "e":
			if it, ok := m.selected(); ok {
				return m.openForm(editing, it), textinput.Blink
			}
			return m, nil
		case "d":
			it, ok := m.selected()
			if !ok {
				return m, nil
			}
			m.undoItem = &it
			return m, awaitResult(m.mut.DeleteItem(it.ID))
		case "u":
			if m.undoItem == nil {
				return m, nil
			}
			it := *m.undoItem
			m.undoItem = nil
			return m, awaitResult(m.mut.AddItem(it.Title, it.Description))
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m modelTUI) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return li.item, true
}

func (m modelTUI) openForm(md mode, it model.Item) modelTUI {
	m.mode = md
	m.formErr = ""
	m.editID = it.ID
	m.inputs[fieldTitle].SetValue(it.Title)
	m.inputs[fieldDescription].SetValue(it.Description)
	for i := range m.inputs {
		m.inputs[i].CursorEnd()
	}
	m.focus = fieldTitle
	m.focusInputs()
	m.resize()
	return m
}

func (m *modelTUI) closeForm() {
	m.mode = browsing
	m.editID = ""
	m.formErr = ""
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
	m.resize()
}

func (m *modelTUI) focusInputs() {
	for i := range m.inputs {
		if i == m.focus {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m modelTUI) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.closeForm()
			return m, nil
		case "tab", "down", "shift+tab", "up":
			m.focus = 1 - m.focus
			m.focusInputs()
			return m, nil
		case "enter":
			if m.focus == fieldTitle {
				m.focus = fieldDescription
				m.focusInputs()
				return m, nil
			}
			return m.submitForm()
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m modelTUI) submitForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.inputs[fieldTitle].Value())
	desc := strings.TrimSpace(m.inputs[fieldDescription].Value())
	if title == "" || desc == "" {
		m.formErr = "Title and description cannot be empty"
		return m, nil
	}

	var res *itemsync.Result
	if m.mode == editing {
		res = m.mut.UpdateItem(model.Item{ID: m.editID, Title: title, Description: desc})
	} else {
		res = m.mut.AddItem(title, desc)
	}
	m.closeForm()
	return m, awaitResult(res)
}

func (m *modelTUI) resize() {
	h := m.height - 5
	if m.mode != browsing {
		h -= 5
	}
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width-4, h)
}

func (m modelTUI) View() string {
	content := m.list.View()
	if m.mode != browsing {
		title := "Add new item"
		if m.mode == editing {
			title = "Edit item"
		}
		if m.formErr != "" {
			title += "  " + ui.ErrorStyle.Render(m.formErr)
		}
		form := title + "\n" + m.inputs[fieldTitle].View() + "\n" + m.inputs[fieldDescription].View()
		content += "\n" + ui.PanelString(form)
	}
	if m.status != "" {
		content += "\n" + m.status
	}
	return ui.PanelString(content)
}
