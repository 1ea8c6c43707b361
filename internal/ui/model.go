// ABOUTME: Bubbletea model for the practice player TUI
// ABOUTME: Maps keys to controller calls and renders the playhead bar
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noodler-audio/noodler/pkg/musictime"
	"github.com/noodler-audio/noodler/pkg/playback"
)

const (
	refreshInterval = 50 * time.Millisecond
	defaultBarWidth = 60
	rateStep        = 0.05
	fineStep        = 0.01
	coarseStep      = 0.1
)

// Player is the part of the playback controller the TUI drives
type Player interface {
	TogglePlay() error
	Back() error
	SetLoopStart(t float64)
	SetLoopEnd(t float64)
	SetLoopEnabled(enabled bool)
	LoopEnabled() bool
	NudgeCursor(delta float64)
	ShiftLoop(delta float64)
	Mode() playback.Mode
	SetMode(m playback.Mode)
	Rate() float64
	SetRate(ctx context.Context, rate float64) error
	Snapshot() *playback.Snapshot
	CurrentTimestamp() float64
	Playing() bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	loopStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	ctx    context.Context
	player Player
	title  string

	// Refreshed from the player
	cursor      float64
	duration    float64
	loop        playback.LoopWindow
	playing     bool
	loopEnabled bool
	mode        playback.Mode
	rate        float64

	// Rate change in flight
	pendingRate float64
	stretching  bool

	err      string
	quitting bool
	width    int
}

type tickMsg time.Time

// ErrorMsg reports an asynchronous playback error
type ErrorMsg struct{ Err error }

// rateMsg reports the outcome of a rate change
type rateMsg struct {
	rate float64
	err  error
}

// NewModel creates a model bound to a player
func NewModel(ctx context.Context, player Player, title string) Model {
	m := Model{ctx: ctx, player: player, title: title}
	m.refresh()
	return m
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.refresh()
		return m, tickEvery()
	case rateMsg:
		m.stretching = false
		if msg.err != nil {
			m.err = msg.err.Error()
		}
		m.refresh()
	case ErrorMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
		}
		m.refresh()
	}
	return m, nil
}

// handleKey maps keys to controller operations
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = ""
	switch msg.String() {
	case "x", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ":
		m.check(m.player.TogglePlay())
	case "r":
		m.check(m.player.Back())
	case "[":
		m.player.SetLoopStart(m.player.CurrentTimestamp())
	case "]":
		m.player.SetLoopEnd(m.player.CurrentTimestamp())
	case "l":
		m.player.SetLoopEnabled(!m.player.LoopEnabled())
	case "m":
		if m.player.Mode() == playback.ModeRestart {
			m.player.SetMode(playback.ModeContinue)
		} else {
			m.player.SetMode(playback.ModeRestart)
		}
	case "+", "=":
		return m.changeRate(rateStep)
	case "-":
		return m.changeRate(-rateStep)
	case "d":
		m.player.NudgeCursor(fineStep)
	case "a":
		m.player.NudgeCursor(-fineStep)
	case "D":
		m.player.NudgeCursor(coarseStep)
	case "A":
		m.player.NudgeCursor(-coarseStep)
	case "e":
		m.player.ShiftLoop(fineStep)
	case "q":
		m.player.ShiftLoop(-fineStep)
	case "E":
		m.player.ShiftLoop(coarseStep)
	case "Q":
		m.player.ShiftLoop(-coarseStep)
	}
	m.refresh()
	return m, nil
}

// changeRate stretches in the background; repeated presses accumulate
func (m Model) changeRate(delta float64) (tea.Model, tea.Cmd) {
	base := m.rate
	if m.stretching {
		base = m.pendingRate
	}
	target := base + delta
	if target < playback.MinRate || target > playback.MaxRate {
		return m, nil
	}
	m.pendingRate = target
	m.stretching = true

	ctx, player := m.ctx, m.player
	return m, func() tea.Msg {
		return rateMsg{rate: target, err: player.SetRate(ctx, target)}
	}
}

func (m *Model) check(err error) {
	if err != nil {
		m.err = err.Error()
	}
}

// refresh copies the player state into the model
func (m *Model) refresh() {
	snap := m.player.Snapshot()
	m.cursor = m.player.CurrentTimestamp()
	m.duration = snap.Duration()
	m.loop = snap.Loop
	m.playing = m.player.Playing()
	m.loopEnabled = m.player.LoopEnabled()
	m.mode = m.player.Mode()
	m.rate = m.player.Rate()
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("noodler"))
	if m.title != "" {
		b.WriteString("  ")
		b.WriteString(valueStyle.Render(m.title))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderBar())
	b.WriteString("\n")
	b.WriteString(m.renderTimes())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString(errStyle.Render("error: " + m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:Play/Pause  r:Back  [ ]:Loop start/end  l:Loop  m:Mode  +/-:Rate\n" +
		"a/d A/D:Nudge  q/e Q/E:Shift loop  x:Quit"))
	return b.String()
}

// renderBar draws the track with loop markers and the playhead
func (m Model) renderBar() string {
	width := defaultBarWidth
	if m.width > 10 && m.width-4 < width {
		width = m.width - 4
	}
	if m.duration <= 0 {
		return valueStyle.Render(strings.Repeat("·", width))
	}

	start := barIndex(m.loop.Start, m.duration, width)
	end := width - 1
	if m.loop.HasEnd {
		end = barIndex(m.loop.End, m.duration, width)
	}
	head := barIndex(m.cursor, m.duration, width)

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == head:
			b.WriteString(headStyle.Render("█"))
		case i == start:
			b.WriteString(loopStyle.Render("["))
		case i == end && m.loop.HasEnd:
			b.WriteString(loopStyle.Render("]"))
		case i > start && i < end:
			b.WriteString(loopStyle.Render("─"))
		default:
			b.WriteString(valueStyle.Render("·"))
		}
	}
	return b.String()
}

func (m Model) renderTimes() string {
	end := "end"
	if m.loop.HasEnd {
		end = musictime.FormatTimestamp(m.loop.End)
	}
	return fmt.Sprintf("%s %s / %s   %s %s - %s",
		headerStyle.Render("Position:"),
		valueStyle.Render(musictime.FormatTimestamp(m.cursor)),
		valueStyle.Render(musictime.FormatTimestamp(m.duration)),
		headerStyle.Render("Loop:"),
		loopStyle.Render(musictime.FormatTimestamp(m.loop.Start)),
		loopStyle.Render(end))
}

func (m Model) renderStatus() string {
	state := "Stopped"
	if m.playing {
		state = "Playing"
	}
	loop := "off"
	if m.loopEnabled {
		loop = "on"
	}
	rate := fmt.Sprintf("%.2fx", m.rate)
	if m.stretching {
		rate += fmt.Sprintf(" -> %.2fx", m.pendingRate)
	}
	return fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		headerStyle.Render("State:"), valueStyle.Render(state),
		headerStyle.Render("Rate:"), valueStyle.Render(rate),
		headerStyle.Render("Mode:"), valueStyle.Render(m.mode.String()),
		headerStyle.Render("Loop:"), valueStyle.Render(loop))
}

func barIndex(t, duration float64, width int) int {
	i := int(t / duration * float64(width))
	if i < 0 {
		return 0
	}
	if i >= width {
		return width - 1
	}
	return i
}
