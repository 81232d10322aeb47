package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/stefanpenner/ghclient/pkg/lifecycle"
	"github.com/stefanpenner/ghclient/pkg/utils"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Underline(true)
	transitionalStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#4285F4"))
	terminalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#25A065"))
	unrecognizedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F4B400"))
)

// Progress shows a spinner with the latest observed status while a resource
// settles.
type Progress struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

type observationMsg lifecycle.Observation

type finishMsg struct{}

type progressModel struct {
	title       string
	observation lifecycle.Observation
	observed    bool
	width       int
	done        bool
	spinner     spinner.Model
}

func newProgressModel(title string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return progressModel{title: title, spinner: s}
}

func NewProgress(title string, output io.Writer, opts ...tea.ProgramOption) *Progress {
	opts = append([]tea.ProgramOption{tea.WithOutput(output)}, opts...)
	program := tea.NewProgram(newProgressModel(title), opts...)
	return &Progress{
		program: program,
		done:    make(chan struct{}),
	}
}

func (p *Progress) Start() {
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

func (p *Progress) Wait() {
	<-p.done
}

// Observe is a lifecycle observer.
func (p *Progress) Observe(o lifecycle.Observation) {
	p.program.Send(observationMsg(o))
}

func (p *Progress) Finish() {
	p.program.Send(finishMsg{})
	p.once.Do(func() {
		p.program.Quit()
	})
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case observationMsg:
		m.observation = lifecycle.Observation(typed)
		m.observed = true
		return m, nil
	case tea.WindowSizeMsg:
		m.width = typed.Width
		return m, nil
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case finishMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	header := headerStyle.Render(m.title)

	line := fmt.Sprintf("%s %s", m.spinner.View(), infoStyle.Render("waiting for first status"))
	if m.observed {
		o := m.observation
		line = fmt.Sprintf("%s %s %s%s",
			m.spinner.View(),
			nameStyle.Render(o.ResourceID),
			statusStyle(o.Class).Render(o.Status),
			infoStyle.Render(fmt.Sprintf(" (check %d, %s)", o.Attempt, utils.HumanizeTime(o.Elapsed.Seconds()))),
		)
	}
	if m.width > 0 {
		line = ansi.Truncate(line, m.width, "…")
	}

	return "\n" + header + "\n" + line + "\n"
}

func statusStyle(class lifecycle.Class) lipgloss.Style {
	switch class {
	case lifecycle.Transitional:
		return transitionalStyle
	case lifecycle.Terminal:
		return terminalStyle
	default:
		return unrecognizedStyle
	}
}
