package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/greonxpert/console/pkg/forms"
	"github.com/greonxpert/console/pkg/notify"
)

type roomItems struct {
	room  string
	items []notify.Item
}

// WatchModel shows the live list of one or more rooms, one tab per room.
type WatchModel struct {
	rooms   []string
	panels  map[string]*notify.Panel
	lists   map[string][]notify.Item
	changes chan roomItems
	quit    chan struct{}

	active int
	table  table.Model
	now    func() time.Time
	st     styles
}

// NewWatchModel creates a panel per room, fetching through f.
func NewWatchModel(f notify.Fetcher, rooms []string, opts ...notify.PanelOption) *WatchModel {
	m := &WatchModel{
		rooms:   rooms,
		panels:  make(map[string]*notify.Panel, len(rooms)),
		lists:   make(map[string][]notify.Item, len(rooms)),
		changes: make(chan roomItems, 16),
		quit:    make(chan struct{}),
		now:     time.Now,
		st:      defaultStyles(),
	}
	for _, room := range rooms {
		onChange := notify.WithOnChange(func(items []notify.Item) {
			select {
			case m.changes <- roomItems{room: room, items: items}:
			case <-m.quit:
			}
		})
		m.panels[room] = notify.NewPanel(room, f, append(opts[:len(opts):len(opts)], onChange)...)
	}

	m.table = table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 26},
			{Title: "Title", Width: 40},
			{Title: "Status", Width: 12},
			{Title: "Updated", Width: 16},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	return m
}

// Apply routes an event to its room's panel. It is safe to call from any
// goroutine.
func (m *WatchModel) Apply(ev notify.Event) {
	if p, ok := m.panels[ev.Room]; ok {
		p.Apply(ev)
	}
}

// Close stops every panel.
func (m *WatchModel) Close() {
	select {
	case <-m.quit:
		return
	default:
		close(m.quit)
	}
	for _, p := range m.panels {
		p.Close()
	}
}

func (m *WatchModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case c := <-m.changes:
			return c
		case <-m.quit:
			return nil
		}
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return m.waitForChange()
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case roomItems:
		m.lists[msg.room] = msg.items
		if m.rooms[m.active] == msg.room {
			m.table.SetRows(m.rows(msg.items))
		}
		return m, m.waitForChange()

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.Close()
			return m, tea.Quit
		case "right", "l", "tab":
			m.switchTo((m.active + 1) % len(m.rooms))
			return m, nil
		case "left", "h", "shift+tab":
			m.switchTo((m.active - 1 + len(m.rooms)) % len(m.rooms))
			return m, nil
		case "r":
			m.panels[m.rooms[m.active]].Refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *WatchModel) switchTo(i int) {
	m.active = i
	m.table.SetRows(m.rows(m.lists[m.rooms[i]]))
	m.table.GotoTop()
}

func (m *WatchModel) rows(items []notify.Item) []table.Row {
	rows := make([]table.Row, len(items))
	for i, it := range items {
		rows[i] = table.Row{it.ID(), title(it), str(it, "status"), m.updated(it)}
	}
	return rows
}

func (m *WatchModel) updated(it notify.Item) string {
	for _, key := range []string{"updatedAt", "createdAt"} {
		if t, err := time.Parse(time.RFC3339, str(it, key)); err == nil {
			return forms.TimeAgo(t, m.now())
		}
	}
	return ""
}

// title picks the most descriptive text field of a record.
func title(it notify.Item) string {
	for _, key := range []string{"title", "name", "companyName", "fullName", "email"} {
		if s := str(it, key); s != "" {
			return s
		}
	}
	return ""
}

func str(it notify.Item, key string) string {
	switch v := it[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (m *WatchModel) View() string {
	var b strings.Builder
	tabs := make([]string, len(m.rooms))
	for i, room := range m.rooms {
		label := fmt.Sprintf("%s (%d)", room, len(m.lists[room]))
		if i == m.active {
			tabs[i] = m.st.tabOn.Render(label)
		} else {
			tabs[i] = m.st.tab.Render(label)
		}
	}
	b.WriteString(strings.Join(tabs, " "))
	b.WriteString("\n\n")

	if err := m.panels[m.rooms[m.active]].Err(); err != nil {
		b.WriteString(m.st.err.Render("refresh failed: "+err.Error()) + "\n")
	}
	b.WriteString(m.table.View())
	b.WriteString(m.st.help.Render("←/→ switch room · r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}
