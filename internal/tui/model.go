// Package tui 是交互式浏览界面：输入框驱动搜索，列表滚到底自动翻页，
// 高亮条目的详情由该条目自己的 Fetcher 加载。
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/cinesearch/internal/detail"
	"github.com/John-Robertt/cinesearch/internal/domain"
	"github.com/John-Robertt/cinesearch/internal/search"
)

const (
	defaultWidth  = 100
	defaultHeight = 24
	listMinWidth  = 36
	chromeRows    = 6
)

// Searcher 是 *search.Orchestrator 在界面侧用到的部分。
type Searcher interface {
	SetQuery(text string)
	LoadMore() bool
	State() search.State
}

// DetailSource 是 *detail.Fetcher 在界面侧用到的部分。
type DetailSource interface {
	Fetch(key domain.IMDbID) (domain.DetailRecord, bool)
	State() detail.State
	Close()
}

// Config 组装界面依赖。NewDetail 为每个条目创建一个 Fetcher（监听器应调用 Notifier.Notify）。
type Config struct {
	Search    Searcher
	NewDetail func() DetailSource
	Notifier  *Notifier
}

// Model 只渲染快照：所有状态都从 Searcher / DetailSource 拉取。
type Model struct {
	searcher  Searcher
	newDetail func() DetailSource
	notifier  *Notifier

	input   textinput.Model
	spinner spinner.Model

	search  search.State
	cursor  int
	offset  int
	details map[domain.IMDbID]DetailSource

	width  int
	height int
}

func New(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "search movies..."
	ti.CharLimit = 100
	ti.Width = 40
	ti.Prompt = "Search: "
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorSpinner)

	n := cfg.Notifier
	if n == nil {
		n = NewNotifier()
	}

	return Model{
		searcher:  cfg.Search,
		newDetail: cfg.NewDetail,
		notifier:  n,
		input:     ti,
		spinner:   s,
		search:    cfg.Search.State(),
		details:   make(map[domain.IMDbID]DetailSource),
		width:     defaultWidth,
		height:    defaultHeight,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.notifier.wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.notifier.wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.Close()
		return m, tea.Quit
	case tea.KeyUp:
		m.move(-1)
		return m, nil
	case tea.KeyDown:
		m.move(1)
		return m, nil
	case tea.KeyPgUp:
		m.move(-m.listRows())
		return m, nil
	case tea.KeyPgDown:
		m.move(m.listRows())
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.searcher.SetQuery(v)
		m.refresh()
	}
	return m, cmd
}

// Close 释放所有条目的 Fetcher。
func (m Model) Close() {
	for _, d := range m.details {
		d.Close()
	}
}

func (m *Model) records() []domain.SummaryRecord {
	if m.search.Results == nil {
		return nil
	}
	return m.search.Results.Records
}

// refresh 拉取最新的搜索快照，并为高亮条目触发详情加载。
func (m *Model) refresh() {
	prev := m.selectedID()
	prevQuery, prevFirst := m.search.Query, m.firstID()
	m.search = m.searcher.State()
	// 新 query 或第 1 页替换了列表：高亮回到顶部。
	if m.search.Query != prevQuery || (m.search.Page <= 1 && m.firstID() != prevFirst) {
		m.cursor, m.offset = 0, 0
	}
	n := len(m.records())
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	m.clampOffset()
	if id := m.selectedID(); id != "" && id != prev {
		m.fetchSelected()
	}
}

func (m *Model) firstID() domain.IMDbID {
	if recs := m.records(); len(recs) > 0 {
		return recs[0].IMDbID
	}
	return ""
}

func (m *Model) move(delta int) {
	n := len(m.records())
	if n == 0 {
		return
	}
	next := min(max(m.cursor+delta, 0), n-1)
	if next != m.cursor {
		m.cursor = next
		m.clampOffset()
		m.fetchSelected()
	}
	// 高亮到最后一行时尝试翻页（no-op 条件由编排层判断）。
	if m.cursor == n-1 && m.searcher.LoadMore() {
		m.search = m.searcher.State()
	}
}

func (m *Model) selectedID() domain.IMDbID {
	recs := m.records()
	if m.cursor < 0 || m.cursor >= len(recs) {
		return ""
	}
	return recs[m.cursor].IMDbID
}

func (m *Model) fetchSelected() {
	id := m.selectedID()
	if id == "" || m.newDetail == nil {
		return
	}
	d, ok := m.details[id]
	if !ok {
		d = m.newDetail()
		m.details[id] = d
	}
	if st := d.State(); st.Record != nil || st.Loading {
		return
	}
	d.Fetch(id)
}

func (m *Model) listRows() int {
	return max(m.height-chromeRows, 3)
}

func (m *Model) clampOffset() {
	rows := m.listRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("cinesearch"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	listWidth := max(m.width/2, listMinWidth)
	list := lipgloss.NewStyle().Width(listWidth).Render(m.listView(listWidth))
	pane := paneStyle.Width(max(m.width-listWidth-4, 20)).Render(m.detailView())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, pane))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("↑/↓ move · pgup/pgdn page · esc quit"))
	return b.String()
}

func (m Model) statusLine() string {
	st := m.search
	switch {
	case st.Error != "":
		return errorStyle.Render(st.Error)
	case st.Loading:
		return m.spinner.View() + " Searching..."
	case st.Results != nil:
		more := ""
		if st.HasMore {
			more = " · more below"
		}
		return mutedStyle.Render(fmt.Sprintf("%d of %d results%s", len(st.Results.Records), st.Results.Total, more))
	case domain.IsBlankQuery(st.Query):
		return mutedStyle.Render("Type to search.")
	default:
		return ""
	}
}

func (m Model) listView(width int) string {
	recs := m.records()
	if len(recs) == 0 {
		return ""
	}
	rows := m.listRows()
	end := min(m.offset+rows, len(recs))

	var b strings.Builder
	for i := m.offset; i < end; i++ {
		r := recs[i]
		line := truncate(fmt.Sprintf("%s (%s)", r.Title, r.Year), width-2)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) detailView() string {
	id := m.selectedID()
	if id == "" {
		return mutedStyle.Render("No selection.")
	}
	d, ok := m.details[id]
	if !ok {
		return mutedStyle.Render("Loading...")
	}
	st := d.State()
	switch {
	case st.Error != "":
		return errorStyle.Render(st.Error)
	case st.Record == nil:
		return m.spinner.View() + " Loading details..."
	}

	r := st.Record
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("%s (%s)", r.Title, r.Year)))
	field := func(label, v string) {
		v = strings.TrimSpace(v)
		if v == "" || v == domain.PosterUnavailable {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label+":"), v)
	}
	field("Rated", r.Rated)
	field("Runtime", r.Runtime)
	field("Genre", r.Genre)
	field("Director", r.Director)
	field("Actors", r.Actors)
	field("IMDb", r.IMDbRating)
	field("Awards", r.Awards)
	if p := strings.TrimSpace(r.Plot); p != "" && p != domain.PosterUnavailable {
		b.WriteString("\n" + p)
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate 按 rune 截断并补省略号。
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
