package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#383838")).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type monitorOptions struct {
	*rootOptions
	Sends    []string
	Interval time.Duration
	History  int
}

func newMonitorCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &monitorOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "monitor [patch]",
		Short: "Process blocks continuously and show events live",
		Long: `Run the patch in real time and show the events it sends in a
terminal view. Space pauses processing, d toggles DSP, q quits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("monitor needs a terminal, use run instead")
			}
			return runMonitor(cmd, opts, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Sends, "send", "s", nil, "message to send on start (repeatable)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between blocks (default: the block's duration)")
	cmd.Flags().IntVar(&opts.History, "history", 200, "number of events kept on screen")

	return cmd
}

func runMonitor(cmd *cobra.Command, opts *monitorOptions, args []string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cfg, err := loadConfig(cmd, opts.rootOptions, args)
	if err != nil {
		return err
	}
	lines := newLineBuffer(opts.History)
	h, err := newHost(cfg, newRunID(""), lines.Add)
	if err != nil {
		return err
	}
	defer h.close()

	for _, line := range opts.Sends {
		if err := h.send(line); err != nil {
			return fmt.Errorf("send %q: %w", line, err)
		}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = blockDuration(h)
	}
	m := newMonitorModel(h, lines, interval)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return m.err
}

func blockDuration(h *host) time.Duration {
	frames := len(h.out) / max(h.cfg.Audio.Outputs, 1)
	return time.Duration(frames) * time.Second / time.Duration(h.cfg.Audio.SampleRate)
}

// lineBuffer keeps the most recent event lines. Drain loops write to it
// from their own goroutines.
type lineBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newLineBuffer(limit int) *lineBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &lineBuffer{limit: limit}
}

func (b *lineBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.limit; over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
	}
}

// Last returns up to n of the newest lines, oldest first.
func (b *lineBuffer) Last(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.lines) {
		n = len(b.lines)
	}
	return append([]string(nil), b.lines[len(b.lines)-n:]...)
}

type monitorKeys struct {
	Pause key.Binding
	DSP   key.Binding
	Quit  key.Binding
}

func defaultMonitorKeys() monitorKeys {
	return monitorKeys{
		Pause: key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause")),
		DSP:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dsp on/off")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type monitorModel struct {
	err      error
	h        *host
	lines    *lineBuffer
	keys     monitorKeys
	interval time.Duration
	height   int
	paused   bool
}

type blockMsg time.Time

func newMonitorModel(h *host, lines *lineBuffer, interval time.Duration) *monitorModel {
	return &monitorModel{
		h:        h,
		lines:    lines,
		keys:     defaultMonitorKeys(),
		interval: interval,
		height:   24,
	}
}

func (m *monitorModel) nextBlock() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return blockMsg(t) })
}

func (m *monitorModel) Init() tea.Cmd {
	return m.nextBlock()
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.DSP):
			if err := m.h.setDSP(!m.h.dsp); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height

	case blockMsg:
		if !m.paused {
			if err := m.h.process(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
		return m, m.nextBlock()
	}
	return m, nil
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pdhost " + m.h.runID))
	b.WriteString("\n")

	dsp := "off"
	if m.h.dsp {
		dsp = "on"
	}
	status := fmt.Sprintf("engine %s  instances %d  blocks %d  events %d  dsp %s",
		backendName, len(m.h.insts), m.h.blocks, m.h.events.Count(), dsp)
	if st, ok := m.h.prof.Stats("process"); ok {
		status += fmt.Sprintf("  load %.1f%%", st.Load(blockDuration(m.h)))
	}
	b.WriteString(statusStyle.Render(status))
	if m.paused {
		b.WriteString("  " + pausedStyle.Render("PAUSED"))
	}
	b.WriteString("\n")

	var peaks []string
	for i, p := range m.h.peaks {
		peaks = append(peaks, fmt.Sprintf("[%d] %.3f", m.h.insts[i].Number(), p))
	}
	b.WriteString(statusStyle.Render("peak " + strings.Join(peaks, "  ")))
	b.WriteString("\n")

	rows := max(m.height-8, 1)
	b.WriteString(paneStyle.Render(strings.Join(m.lines.Last(rows), "\n")))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	var help []string
	for _, k := range []key.Binding{m.keys.Pause, m.keys.DSP, m.keys.Quit} {
		help = append(help, k.Help().Key+" "+k.Help().Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return b.String()
}
