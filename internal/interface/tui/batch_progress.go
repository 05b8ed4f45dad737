package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neilberkman/docrider/internal/core/renamer"
)

type fileDoneMsg struct{ res renamer.Result }

type batchFinishedMsg struct{}

// batchModel draws one bar plus the most recent file
type batchModel struct {
	bar     progress.Model
	total   int
	current int
	failed  int
	last    string
	lastOK  bool
	started time.Time
	now     func() time.Time
	done    bool
}

func newBatchModel(total int) batchModel {
	return batchModel{
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		total:   total,
		started: time.Now(),
		now:     time.Now,
	}
}

func (m batchModel) Init() tea.Cmd { return nil }

func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fileDoneMsg:
		m.current++
		m.last = filepath.Base(msg.res.Source)
		m.lastOK = msg.res.OK()
		if !m.lastOK {
			m.failed++
		}
		return m, nil
	case batchFinishedMsg:
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		width := msg.Width - 30
		if width > 60 {
			width = 60
		}
		if width < 20 {
			width = 20
		}
		m.bar.Width = width
		return m, nil
	}
	return m, nil
}

func (m batchModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.current) / float64(m.total)
}

func (m batchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Renaming documents"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %d/%d", m.bar.ViewAs(m.percent()), m.current, m.total)
	if m.failed > 0 {
		b.WriteString(failStyle.Render(fmt.Sprintf("  %d failed", m.failed)))
	}
	if eta := renamer.ETA(m.current, m.total, m.now().Sub(m.started)); eta > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  ETA %s", eta)))
	}
	b.WriteString("\n")
	if m.last != "" {
		mark := okStyle.Render("✓")
		if !m.lastOK {
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(&b, "%s %s\n", mark, m.last)
	}
	if m.done {
		b.WriteString("\n")
	}
	return b.String()
}

// BatchProgress is a renamer.ProgressCallback that draws a live progress
// bar. Start, Done and Finish may be called from any goroutine.
type BatchProgress struct {
	out     io.Writer
	program *tea.Program
	exited  chan struct{}
}

// NewBatchProgress draws to out
func NewBatchProgress(out io.Writer) *BatchProgress {
	return &BatchProgress{out: out}
}

// Start implements renamer.ProgressCallback
func (p *BatchProgress) Start(total int) {
	p.program = tea.NewProgram(newBatchModel(total),
		tea.WithOutput(p.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	p.exited = make(chan struct{})
	go func() {
		defer close(p.exited)
		_, _ = p.program.Run()
	}()
}

// Done implements renamer.ProgressCallback
func (p *BatchProgress) Done(res renamer.Result) {
	if p.program != nil {
		p.program.Send(fileDoneMsg{res: res})
	}
}

// Finish implements renamer.ProgressCallback and waits for the final frame
func (p *BatchProgress) Finish() {
	if p.program == nil {
		return
	}
	p.program.Send(batchFinishedMsg{})
	<-p.exited
}
