// cmd/repowiki/progress.go
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianshen/repowiki/internal/pipeline"
	"github.com/julianshen/repowiki/internal/wiki"
)

// stateMsg wraps a pipeline state change as a Bubble Tea message so the
// controller goroutine can dispatch through the Update loop.
type stateMsg pipeline.State

// pageMsg wraps a page status change from the scheduler.
type pageMsg wiki.PageContent

// doneMsg carries the finished job (or the fatal error) back to Update.
type doneMsg struct {
	job *pipeline.Job
	err error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#cc0000", Dark: "#ff5555"})
)

// progressModel renders pipeline progress: the current stage, a bar over
// terminal pages, and a per-page status list.
type progressModel struct {
	repo    string
	spinner spinner.Model
	bar     progress.Model
	state   pipeline.State
	pages   map[string]wiki.PageStatus
	order   []string
	done    bool
	err     error
	width   int
}

func newProgressModel(repo string) *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &progressModel{
		repo:    repo,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		state:   pipeline.StateIdle,
		pages:   make(map[string]wiki.PageStatus),
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-4, 60)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err = context.Canceled
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = pipeline.State(msg)
		return m, nil

	case pageMsg:
		if _, seen := m.pages[msg.PageID]; !seen {
			m.order = append(m.order, msg.PageID)
		}
		m.pages[msg.PageID] = msg.Status
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("repowiki — "+m.repo) + "\n\n")

	if m.done {
		if m.err != nil {
			b.WriteString(errStyle.Render("✗ "+m.err.Error()) + "\n")
		} else {
			b.WriteString("✓ wiki ready\n")
		}
	} else {
		b.WriteString(m.spinner.View() + " " + m.state.String() + "\n")
	}

	if len(m.order) > 0 {
		terminal := 0
		for _, status := range m.pages {
			if status.Terminal() {
				terminal++
			}
		}
		b.WriteString("\n" + m.bar.ViewAs(float64(terminal)/float64(len(m.order))) + "\n\n")
		for _, id := range m.order {
			b.WriteString(fmt.Sprintf("  %s %s\n", pageGlyph(m.pages[id]), dimStyle.Render(id)))
		}
	}
	return b.String()
}

func pageGlyph(status wiki.PageStatus) string {
	switch status {
	case wiki.StatusDone:
		return "✓"
	case wiki.StatusError:
		return errStyle.Render("✗")
	case wiki.StatusInProgress:
		return "…"
	default:
		return "·"
	}
}

// runWithProgress drives the controller under a Bubble Tea program, feeding
// state and page events into the display. Ctrl+C cancels the run.
func runWithProgress(ctx context.Context, s *stack, ref wiki.RepoRef, params wiki.Params) (*pipeline.Job, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newProgressModel(ref.Owner + "/" + ref.Name())
	p := tea.NewProgram(model, tea.WithContext(ctx))

	s.controller.OnStateChange = func(state pipeline.State) {
		p.Send(stateMsg(state))
	}
	s.scheduler.OnUpdate = func(pc wiki.PageContent) {
		p.Send(pageMsg(pc))
	}

	type result struct {
		job *pipeline.Job
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		job, err := s.controller.Run(ctx, ref, params)
		resCh <- result{job, err}
		p.Send(doneMsg{job: job, err: err})
	}()

	final, runErr := p.Run()
	if interrupted(final, runErr) {
		// Display failure or the user quit before the pipeline finished:
		// cancel the run so the blocked goroutine unwinds, then wait it out.
		cancel()
	}
	res := <-resCh
	return res.job, res.err
}

// interrupted reports whether the display exited before the pipeline
// finished. tea.Quit is a graceful exit, so a Ctrl+C quit returns a nil
// error from Run; the completion flag on the final model is what tells an
// abort apart from a finished job.
func interrupted(final tea.Model, runErr error) bool {
	if runErr != nil {
		return true
	}
	pm, ok := final.(*progressModel)
	return !ok || !pm.done
}
