package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws crawl progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *crawlModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newCrawlModel(tracker, cfg.Root)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Update(event)
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. It waits briefly for the program to exit.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

var _ Renderer = (*TUIRenderer)(nil)

type completeMsg CompletionStats
type tickMsg time.Time

// crawlModel is the bubbletea model. State lives in the tracker; the model
// redraws it on every tick.
type crawlModel struct {
	tracker  *ProgressTracker
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	styles   Styles
	root     string
}

func newCrawlModel(tracker *ProgressTracker, root string) *crawlModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &crawlModel{
		tracker: tracker,
		spinner: s,
		styles:  DefaultStyles(),
		width:   80,
		root:    root,
	}
}

// Init implements tea.Model.
func (m *crawlModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *crawlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *crawlModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	stats := m.tracker.Stats()

	sections := []string{
		m.renderStages(stats.Stage),
		m.renderDivider(width),
		m.renderCounts(stats),
		m.renderSpeed(stats),
		m.styles.Speed.Render(m.tracker.RenderSparkline(max(width-14, 10))) + " " + m.styles.Dim.Render("files/s"),
	}
	if stats.CurrentFile != "" {
		sections = append(sections, m.renderDivider(width), m.styles.Dim.Render(truncatePath(stats.CurrentFile, width-2)))
	}

	title := "edm crawl"
	if m.root != "" {
		title += " • " + m.root
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(strings.Join(sections, "\n")),
	) + "\n" + m.renderStatusBar(stats)
}

func (m *crawlModel) renderStages(current Stage) string {
	var parts []string
	for _, s := range []Stage{StageSnapshot, StageCrawling, StageSweeping} {
		switch {
		case s < current:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *crawlModel) renderCounts(stats ProgressStats) string {
	c := stats.Counts
	return fmt.Sprintf("%s %s   %s %d   %s %d   %s %d",
		m.styles.Label.Render("indexed"), m.styles.Active.Render(fmt.Sprint(c.Indexed)),
		m.styles.Label.Render("skipped"), c.Skipped,
		m.styles.Label.Render("excluded"), c.Excluded,
		m.styles.Label.Render("failed"), c.Failed)
}

func (m *crawlModel) renderSpeed(stats ProgressStats) string {
	line := fmt.Sprintf("Speed: %.0f/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		line += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	return m.styles.Speed.Render(line) + m.styles.Dim.Render("  •  ") +
		m.styles.Label.Render("Elapsed: "+formatDuration(stats.Elapsed))
}

func (m *crawlModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

func (m *crawlModel) renderStatusBar(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("ctrl+c to cancel"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *crawlModel) renderComplete() string {
	c := m.stats.Counts
	lines := []string{
		m.styles.Success.Render("✓ Crawl complete: " + m.stats.Source),
		"",
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Indexed: "), c.Indexed),
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Skipped: "), c.Skipped+c.Excluded),
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Deleted: "), m.stats.Deleted),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Duration:"), formatDuration(m.stats.Duration)),
	}
	if c.Failed > 0 {
		lines = append(lines, "", m.styles.Error.Render(fmt.Sprintf("✗ %d errors", c.Failed)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(1, 2).
		Width(max(m.width-4, 40)).
		Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration prints 45s, 3m 12s or 1h 5m.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncatePath keeps the tail of path within maxLen runes.
func truncatePath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return "..."
	}
	return "..." + string(r[len(r)-maxLen+3:])
}
