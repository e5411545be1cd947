package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/v2/help"
	"github.com/charmbracelet/bubbles/v2/key"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"tableflip.dev/tilegrid/pkg/coordinator"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/render"
	"tableflip.dev/tilegrid/pkg/tiles"
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	modeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
)

// layoutMsg arrives whenever the coordinator asks for a redraw.
type layoutMsg coordinator.Update

type watchEventMsg struct {
	event tiles.Event
}

type watchStoppedMsg struct{}

// Model is the grid browser.
type Model struct {
	ctx  context.Context
	pipe *pipeline.Pipeline

	tiles  []grid.TileState
	mode   grid.ViewMode
	scroll float64

	width  int
	height int

	keys   keyMap
	help   help.Model
	canvas *Canvas
	frame  render.Frame
	body   string
	err    error

	watchCh <-chan tiles.Event
}

// New returns a model drawing tiles through pipe. watch may be nil.
func New(ctx context.Context, pipe *pipeline.Pipeline, t []grid.TileState, mode grid.ViewMode, watch <-chan tiles.Event) *Model {
	return &Model{
		ctx:     ctx,
		pipe:    pipe,
		tiles:   t,
		mode:    mode,
		keys:    defaultKeyMap(),
		help:    help.New(),
		canvas:  NewCanvas(0, 0),
		watchCh: watch,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.waitForWatch())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
		m.publish()
	case tea.KeyPressMsg:
		return m, m.handleKey(v)
	case layoutMsg:
		m.redraw()
		return m, m.waitForUpdate()
	case watchEventMsg:
		if v.event.Err != nil {
			m.err = v.event.Err
		} else {
			m.err = nil
			m.tiles = v.event.Tiles
			m.publish()
		}
		return m, m.waitForWatch()
	case watchStoppedMsg:
		m.watchCh = nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	layout := m.pipe.Coordinator.CurrentLayout()
	page := float64(m.bodyRows() * UnitsPerRow)
	step := layout.RowHeight
	if step <= 0 {
		step = UnitsPerRow
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.publish()
	case key.Matches(msg, m.keys.Up):
		m.scrollTo(m.scroll - step)
	case key.Matches(msg, m.keys.Down):
		m.scrollTo(m.scroll + step)
	case key.Matches(msg, m.keys.PageUp):
		m.scrollTo(m.scroll - page)
	case key.Matches(msg, m.keys.PageDown):
		m.scrollTo(m.scroll + page)
	case key.Matches(msg, m.keys.Top):
		m.scrollTo(0)
	case key.Matches(msg, m.keys.Bottom):
		m.scrollTo(layout.TotalContentHeight)
	case key.Matches(msg, m.keys.Mode):
		m.mode = nextMode(m.mode)
		m.scroll = 0
		m.publish()
	case key.Matches(msg, m.keys.Reload):
		m.redraw()
	}
	return nil
}

func nextMode(mode grid.ViewMode) grid.ViewMode {
	switch mode {
	case grid.Grid:
		return grid.List
	case grid.List:
		return grid.TextOnly
	default:
		return grid.Grid
	}
}

func (m *Model) scrollTo(offset float64) {
	layout := m.pipe.Coordinator.CurrentLayout()
	limit := layout.TotalContentHeight - float64(m.bodyRows()*UnitsPerRow)
	offset = min(offset, max(limit, 0))
	offset = max(offset, 0)
	if offset == m.scroll {
		return
	}
	m.scroll = offset
	m.publish()
}

func (m *Model) viewport() grid.Viewport {
	return grid.Viewport{
		Width:        float64(m.width * UnitsPerColumn),
		Height:       float64(m.bodyRows() * UnitsPerRow),
		ScrollOffset: m.scroll,
	}
}

func (m *Model) publish() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.pipe.Publish(m.tiles, m.viewport(), m.mode)
}

func (m *Model) redraw() {
	m.canvas.Reset(m.width, m.bodyRows())
	m.frame = m.pipe.Dispatcher.Draw(m.canvas)
	m.body = m.canvas.Render()
}

func (m *Model) helpView() string {
	return m.help.View(m.keys)
}

func (m *Model) bodyRows() int {
	return max(m.height-1-lipgloss.Height(m.helpView()), 0)
}

func (m *Model) waitForUpdate() tea.Cmd {
	ch := m.pipe.Coordinator.Updates()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case u := <-ch:
			return layoutMsg(u)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForWatch() tea.Cmd {
	if m.watchCh == nil {
		return nil
	}
	ch := m.watchCh
	return func() tea.Msg {
		if ev, ok := <-ch; ok {
			return watchEventMsg{event: ev}
		}
		return watchStoppedMsg{}
	}
}

func (m *Model) statusLine() string {
	if m.err != nil {
		return errorStyle.Render(" reload failed: " + m.err.Error())
	}
	layout := m.pipe.Coordinator.CurrentLayout()
	st := m.pipe.Store.Stats()
	fs := m.pipe.Scheduler.Stats()

	parts := []string{
		modeStyle.Render(" " + m.mode.String()),
		fmt.Sprintf("%s tiles", humanize.Comma(int64(len(m.tiles)))),
	}
	if len(m.tiles) > 0 {
		parts = append(parts, fmt.Sprintf("showing %d-%d", layout.VisibleStart+1, layout.VisibleEnd+1))
	}
	parts = append(parts,
		fmt.Sprintf("cache %s", humanize.IBytes(uint64(st.Memory.TotalBytes))),
		fmt.Sprintf("%d/%d drawn", m.frame.Hits, m.frame.Tiles),
		fmt.Sprintf("queue %d", fs.Outstanding),
	)
	return statusStyle.Render(strings.Join(parts, " · "))
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading…"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.body, m.statusLine(), m.helpView())
}
