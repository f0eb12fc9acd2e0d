// Package tui is a terminal front end for a review session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/conorfennell/memodeck/internal/domain"
	"github.com/conorfennell/memodeck/internal/review"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleSubtle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleCard   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	styleFirst  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	stylePaused = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleNotice = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const (
	eventBuffer  = 64
	intervalStep = 5
)

type eventMsg review.Event

// Model drives one review session from the keyboard.
type Model struct {
	ctx      context.Context
	engine   *review.Engine
	events   <-chan review.Event
	keys     keyMap
	help     help.Model
	progress progress.Model

	snap   review.Snapshot
	notice string
	err    error
}

// New subscribes to engine and returns the model and a function that
// removes the subscription. Events are dropped rather than blocking the
// engine when the program falls behind; every event refreshes the whole
// snapshot, so nothing is lost but intermediate ticks.
func New(ctx context.Context, engine *review.Engine) (Model, func()) {
	ch := make(chan review.Event, eventBuffer)
	unsubscribe := engine.Subscribe(func(ev review.Event) {
		select {
		case ch <- ev:
		default:
		}
	})

	m := Model{
		ctx:      ctx,
		engine:   engine,
		events:   ch,
		keys:     defaultKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		snap:     engine.Snapshot(),
	}
	return m, unsubscribe
}

func waitForEvent(ch <-chan review.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(msg.Width-4, 10)
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.snap = m.engine.Snapshot()
		switch msg.Kind {
		case review.EventClosed:
			return m, tea.Quit
		case review.EventError:
			m.err = msg.Err
		case review.EventRowChanged:
			m.notice = ""
		}
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Advance):
		err = m.engine.Advance(m.ctx)
	case key.Matches(msg, m.keys.Mark):
		err = m.engine.Mark(m.ctx)
	case key.Matches(msg, m.keys.Pause):
		_, err = m.engine.TogglePause()
	case key.Matches(msg, m.keys.Tab):
		err = m.engine.SwitchTab(m.ctx, m.snap.Tab.Other())
	case key.Matches(msg, m.keys.Learning):
		err = m.engine.SwitchTab(m.ctx, domain.Learning)
	case key.Matches(msg, m.keys.Remember):
		err = m.engine.SwitchTab(m.ctx, domain.Remembered)
	case key.Matches(msg, m.keys.Loop):
		err = m.engine.SetPolicy(m.ctx, domain.Sequential)
	case key.Matches(msg, m.keys.Random):
		err = m.engine.SetPolicy(m.ctx, domain.Random)
	case key.Matches(msg, m.keys.Slower):
		err = m.engine.SetInterval(m.ctx, min(m.snap.IntervalSeconds+intervalStep, review.MaxIntervalSeconds))
	case key.Matches(msg, m.keys.Faster):
		err = m.engine.SetInterval(m.ctx, max(m.snap.IntervalSeconds-intervalStep, review.MinIntervalSeconds))
	default:
		return m, nil
	}

	m.snap = m.engine.Snapshot()
	m.err = nil
	m.notice = ""
	var empty *review.EmptyPoolError
	switch {
	case errors.As(err, &empty):
		m.notice = fmt.Sprintf("Nothing left in the %s pool", empty.Tab)
	case err != nil:
		m.err = err
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%s · %s", m.snap.Deck, m.snap.Tab)
	b.WriteString(styleHeader.Render(header))
	b.WriteString(styleSubtle.Render(fmt.Sprintf("%d to learn · %d remembered · %s every %ds",
		m.snap.Remaining, m.snap.Remembered, m.snap.Policy.PlayMode(), m.snap.IntervalSeconds)))
	b.WriteString("\n\n")

	if row := m.snap.Current; row != nil {
		b.WriteString(styleCard.Render(renderRow(*row)))
	} else {
		b.WriteString(styleCard.Render(styleSubtle.Render("No row to show")))
	}
	b.WriteString("\n\n")

	if m.snap.Paused() {
		b.WriteString(stylePaused.Render("Paused"))
	} else if m.snap.IntervalSeconds > 0 {
		b.WriteString(m.progress.ViewAs(float64(m.snap.Countdown) / float64(m.snap.IntervalSeconds)))
	}
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(styleNotice.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString(styleError.Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func renderRow(row domain.Row) string {
	values := row.Values()
	if len(values) == 0 {
		return ""
	}
	lines := []string{styleFirst.Render(values[0])}
	lines = append(lines, values[1:]...)
	return strings.Join(lines, "\n")
}
