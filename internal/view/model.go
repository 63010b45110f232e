package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/foxseedlab/kikitori/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	frameInterval  = 50 * time.Millisecond
	waveformRows   = 8
	levelWindowSec = 0.1
	defaultWidth   = 60
)

// Recording is the part of the recorder the view drives.
type Recording interface {
	SessionID() string
	Live() *audio.LiveBuffer
	LiveViewAvailable() bool
	Stop(ctx context.Context) (string, error)
}

type Model struct {
	rec         Recording
	stopTimeout time.Duration

	finalizing bool
	done       bool
	quitting   bool
	text       string
	err        error

	peaks []float32
	level float32

	width  int
	height int
}

// New returns a model for a recording that has already started. stopTimeout
// bounds the finalize call made when the user stops.
func New(rec Recording, stopTimeout time.Duration) Model {
	return Model{rec: rec, stopTimeout: stopTimeout}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func stopCmd(rec Recording, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		text, err := rec.Stop(ctx)
		return stoppedMsg{Text: text, Err: err}
	}
}

// Text returns the transcript once the recording is finalized.
func (m Model) Text() string {
	return m.text
}

func (m Model) Err() error {
	return m.err
}

func (m Model) Done() bool {
	return m.done
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.done || m.finalizing {
			return m, nil
		}
		m.sample()
		return m, tickCmd()

	case stoppedMsg:
		m.finalizing = false
		m.done = true
		m.text = msg.Text
		m.err = msg.Err
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.done {
			return m, tea.Quit
		}
		m.quitting = true
		if m.finalizing {
			return m, nil
		}
		m.finalizing = true
		return m, stopCmd(m.rec, m.stopTimeout)

	case "enter", "s", " ":
		if m.done || m.finalizing {
			return m, nil
		}
		m.finalizing = true
		return m, stopCmd(m.rec, m.stopTimeout)
	}
	return m, nil
}

func (m *Model) sample() {
	live := m.rec.Live()
	samples := live.Snapshot(live.MaxSamples())
	m.peaks = audio.Peaks(samples, m.waveWidth())

	recent := int(levelWindowSec * float64(live.SampleRate()))
	if recent > 0 && recent < len(samples) {
		samples = samples[len(samples)-recent:]
	}
	m.level = audio.Level(samples)
}

func (m Model) waveWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return m.width
}

func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatus())

	if m.done {
		sections = append(sections, m.renderResult())
	} else if m.rec.LiveViewAvailable() {
		sections = append(sections, waveStyle.Render(strings.Join(renderWaveform(m.peaks, waveformRows), "\n")))
	} else {
		sections = append(sections, dimStyle.Render("(live view unavailable, still recording)"))
	}

	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	return titleStyle.Render("KIKITORI") + dimStyle.Render(" session "+m.rec.SessionID())
}

func (m Model) renderStatus() string {
	switch {
	case m.done && m.err != nil:
		return errorStyle.Render("✕ FAILED")
	case m.done:
		return titleStyle.Render("✓ DONE")
	case m.finalizing:
		return finalizingStyle.Render("⟳ TRANSCRIBING")
	default:
		return recordingStyle.Render("● REC") + "  " + renderLevelMeter(m.level)
	}
}

func (m Model) renderResult() string {
	if m.err != nil {
		return errorStyle.Render(m.err.Error())
	}
	if m.text == "" {
		return dimStyle.Render("(no speech recognized)")
	}
	if m.width > 0 {
		return lipgloss.NewStyle().Width(m.width).Render(m.text)
	}
	return m.text
}

func (m Model) renderFooter() string {
	if m.done {
		return dimStyle.Render("q quit")
	}
	if m.finalizing {
		return dimStyle.Render("waiting for transcript...")
	}
	return dimStyle.Render("enter/s stop  q stop and quit")
}

func renderLevelMeter(level float32) string {
	const barLen = 10
	filled := int(level * barLen * 2)
	if filled > barLen {
		filled = barLen
	}
	var b strings.Builder
	for i := 0; i < barLen; i++ {
		switch {
		case i >= filled:
			b.WriteString(levelGrayStyle.Render("░"))
		case float32(i)/barLen > 0.6:
			b.WriteString(levelYellowStyle.Render("█"))
		default:
			b.WriteString(levelGreenStyle.Render("█"))
		}
	}
	return fmt.Sprintf("LVL %s", b.String())
}

// renderWaveform draws peaks as bars mirrored around the middle row. rows is
// rounded up to an even number.
func renderWaveform(peaks []float32, rows int) []string {
	half := (rows + 1) / 2
	if half < 1 {
		half = 1
	}
	heights := make([]int, len(peaks))
	for i, p := range peaks {
		if p > 1 {
			p = 1
		}
		h := int(p*float32(half) + 0.5)
		if h == 0 && p > 0 {
			h = 1
		}
		heights[i] = h
	}

	lines := make([]string, 0, half*2)
	for r := half; r >= 1; r-- {
		lines = append(lines, waveRow(heights, r))
	}
	for r := 1; r <= half; r++ {
		lines = append(lines, waveRow(heights, r))
	}
	return lines
}

func waveRow(heights []int, level int) string {
	var b strings.Builder
	for _, h := range heights {
		if h >= level {
			b.WriteString("█")
		} else {
			b.WriteString(" ")
		}
	}
	return b.String()
}
