package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/crazy3lf/colorconv"

	"github.com/veliks/moodpulse/internal/engine"
	"github.com/veliks/moodpulse/internal/utils"
)

// Visualizer renders the scene state in the terminal. It implements
// engine.Sink; frames arriving faster than the render latency are dropped.
type Visualizer struct {
	program   *tea.Program
	mu        sync.Mutex
	lastSend  time.Time
	throttle  time.Duration
	closeOnce sync.Once
}

var _ engine.Sink = (*Visualizer)(nil)

type frameMsg struct {
	frame      engine.Frame
	receivedAt time.Time
}

type visualizerModel struct {
	frame       engine.Frame
	lastUpdated time.Time
	ready       bool
	width       int
	height      int
	onExit      func()
	exitOnce    sync.Once
}

var (
	vizContainerStyle   = lipgloss.NewStyle().Padding(0, 2)
	vizTimestampStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	vizMetricLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	vizMetricValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	vizMaterialStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("219")).Bold(true)
	vizTrackStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	vizWaitingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	vizHintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	vizRingFilledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	vizRingEmptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	vizSparkleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
)

const (
	vizBarWidth   = 32
	ringWidth     = 48
	swatchBlocks  = 18
	renderLatency = 45 * time.Millisecond
)

// NewVisualizer starts the TUI. onExit fires once when the user quits.
func NewVisualizer(onExit func()) *Visualizer {
	model := &visualizerModel{onExit: onExit}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := &Visualizer{
		program:  program,
		throttle: renderLatency,
	}

	go program.Run()

	return v
}

// Publish forwards one frame, dropping it when the previous one is too recent.
func (v *Visualizer) Publish(frame engine.Frame) {
	v.mu.Lock()
	if time.Since(v.lastSend) < v.throttle {
		v.mu.Unlock()
		return
	}
	v.lastSend = time.Now()
	v.mu.Unlock()

	v.program.Send(frameMsg{
		frame:      frame,
		receivedAt: time.Now(),
	})
}

// Close shuts the TUI down. Safe to call multiple times.
func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		v.program.Quit()
	})
}

func (m *visualizerModel) Init() tea.Cmd {
	return nil
}

func (m *visualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case frameMsg:
		m.frame = msg.frame
		m.lastUpdated = msg.receivedAt
		m.ready = true
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC:
			m.invokeExit()
			return m, tea.Quit
		case msg.String() == "q", msg.String() == "esc":
			m.invokeExit()
			return m, tea.Quit
		}
	case tea.QuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *visualizerModel) View() string {
	body := ""
	if !m.ready {
		header := titleStyle.Render("MoodPulse")
		waiting := vizWaitingStyle.Render("Waiting for frames…")
		body = lipgloss.JoinVertical(lipgloss.Left, header, "", waiting)
	} else {
		body = renderVisualizerView(m.frame, m.lastUpdated)
	}
	return vizContainerStyle.Render(body)
}

func renderVisualizerView(frame engine.Frame, updatedAt time.Time) string {
	header := renderHeader(frame, updatedAt)
	track := renderTrackLine(frame)
	metrics := renderMetrics(frame)
	colorSwatch := renderColorSwatch(frame)
	ring := renderProgressRing(frame)
	bars := renderBars(frame)
	controls := vizHintStyle.Render("Press q / esc / ctrl+c to quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		track,
		metrics,
		"",
		colorSwatch,
		ring,
		"",
		bars,
		"",
		controls,
	)
}

func renderHeader(frame engine.Frame, updatedAt time.Time) string {
	p := frame.Params
	color := lipgloss.Color(hexColorFromHSV(p.Hue, p.Saturation, p.Value))

	title := titleStyle.
		Foreground(color).
		Render("MoodPulse")
	timestamp := vizTimestampStyle.Render(updatedAt.Format("15:04:05.000"))

	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", timestamp)
}

func renderTrackLine(frame engine.Frame) string {
	pb := frame.Playback
	if !pb.HasTrack {
		return vizTrackStyle.Render(fmt.Sprintf("source:%s · no track", pb.State))
	}

	state := "paused"
	if pb.Playing {
		state = "playing"
	}
	line := fmt.Sprintf("source:%s · %s — %s · %s · %s / %s",
		pb.State,
		orUnknown(pb.Track.Artist),
		orUnknown(pb.Track.Title),
		state,
		formatMs(pb.SmoothedMs),
		formatMs(pb.DurationMs),
	)
	return vizTrackStyle.Render(line)
}

func renderMetrics(frame engine.Frame) string {
	material := lipgloss.JoinHorizontal(lipgloss.Left,
		vizMetricLabelStyle.Render("Material:"),
		" ",
		vizMaterialStyle.Render(frame.Params.Material.String()),
	)
	beatMode := renderMetric("Beat", frame.BeatMode)
	impulse := renderMetric("Impulse", fmt.Sprintf("%4.2f", utils.Clamp(frame.Impulse, 0.0, 1.0)))

	hsv := renderMetric("HSV", fmt.Sprintf("%3.0f°/%3.0f%%/%3.0f%%",
		frame.Params.Hue,
		frame.Params.Saturation*100,
		frame.Params.Value*100,
	))
	distortion := renderMetric("Distortion", fmt.Sprintf("f%.1f a%.2f",
		frame.Params.DistortionFreq, frame.Params.DistortionAmp))
	sparkle := lipgloss.JoinHorizontal(lipgloss.Left,
		vizMetricLabelStyle.Render("Sparkle:"),
		" ",
		renderSparkleValue(frame.Params.Sparkle),
	)

	top := lipgloss.JoinHorizontal(lipgloss.Left, material, "   ", beatMode, "   ", impulse)
	bottom := lipgloss.JoinHorizontal(lipgloss.Left, hsv, "   ", distortion, "   ", sparkle)

	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func renderSparkleValue(sparkle float64) string {
	value := fmt.Sprintf("%4.2f", utils.Clamp(sparkle, 0.0, 1.0))
	if sparkle > 0 {
		return vizSparkleStyle.Render(value + " ✦")
	}
	return vizMetricValueStyle.Render(value)
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render(label+":"),
		" ",
		vizMetricValueStyle.Render(value),
	)
}

func renderColorSwatch(frame engine.Frame) string {
	p := frame.Params

	blocks := make([]string, swatchBlocks)
	for i := 0; i < swatchBlocks; i++ {
		progress := float64(i) / float64(swatchBlocks-1)
		value := utils.Clamp(0.15+0.85*progress*p.Value, 0.0, 1.0)
		color := lipgloss.Color(hexColorFromHSV(p.Hue, p.Saturation, value))
		blocks[i] = lipgloss.NewStyle().Background(color).Render("  ")
	}

	swatch := strings.Join(blocks, "")
	info := vizMetricValueStyle.Render(fmt.Sprintf("Hue:%3.0f° Sat:%3.0f%% Val:%3.0f%%",
		p.Hue, p.Saturation*100, p.Value*100))

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		subtitleStyle.Render("Color"),
		"  ",
		swatch,
		"  ",
		info,
	)
}

// renderProgressRing flattens the circular progress ring into a strip; the
// sweep fraction matches the on-screen arc.
func renderProgressRing(frame engine.Frame) string {
	sweep := utils.Clamp(frame.Params.RingSweep/(2*math.Pi), 0.0, 1.0)
	filled := int(math.Round(sweep * ringWidth))

	var b strings.Builder
	for i := 0; i < ringWidth; i++ {
		if i < filled {
			b.WriteString(vizRingFilledStyle.Render("━"))
		} else {
			b.WriteString(vizRingEmptyStyle.Render("─"))
		}
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		subtitleStyle.Render("Ring "),
		" ",
		b.String(),
		" ",
		vizMetricValueStyle.Render(fmt.Sprintf("%3.0f%%", sweep*100)),
	)
}

func renderBars(frame engine.Frame) string {
	lines := []string{
		renderBar("Energy", frame.Mood.Energy, vizThemes["Energy"]),
		renderBar("Valence", frame.Mood.Valence, vizThemes["Valence"]),
		renderBar("Euphoria", frame.Mood.Euphoria, vizThemes["Euphoria"]),
		renderBar("Cognition", frame.Mood.Cognition, vizThemes["Cognition"]),
		renderBar("Impulse", frame.Impulse, vizThemes["Impulse"]),
		renderBar("Bass", frame.Bands.Bass, vizThemes["Bass"]),
		renderBar("Mid", frame.Bands.Mid, vizThemes["Mid"]),
		renderBar("Treble", frame.Bands.Treble, vizThemes["Treble"]),
	}
	return strings.Join(lines, "\n")
}

func renderBar(label string, value float64, theme barTheme) string {
	theme = normalizeBarTheme(theme)

	clamped := utils.Clamp(value, 0.0, 1.0)
	filled := int(math.Round(clamped * vizBarWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}
	if filled > vizBarWidth {
		filled = vizBarWidth
	}

	builder := strings.Builder{}
	builder.Grow(128)
	builder.WriteString(theme.LabelStyle.Render(fmt.Sprintf("%-12s", label)))
	builder.WriteString(" [")

	if filled > 0 {
		steps := filled - 1
		if steps <= 0 {
			steps = 1
		}
		for i := 0; i < filled; i++ {
			progress := float64(i) / float64(steps)
			hue := theme.HueStart + (theme.HueEnd-theme.HueStart)*progress
			value := utils.Clamp(theme.ValueBase+theme.ValueSpan*progress, 0.0, 1.0)
			color := lipgloss.Color(hexColorFromHSV(hue, theme.Saturation, value))
			builder.WriteString(lipgloss.NewStyle().
				Foreground(color).
				Render(theme.FilledChar))
		}
	}

	empty := vizBarWidth - filled
	if empty > 0 {
		emptyBlock := theme.EmptyStyle.Render(theme.EmptyChar)
		for i := 0; i < empty; i++ {
			builder.WriteString(emptyBlock)
		}
	}

	builder.WriteString("] ")
	builder.WriteString(theme.ValueStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)))

	return builder.String()
}

type barTheme struct {
	LabelStyle lipgloss.Style
	ValueStyle lipgloss.Style
	EmptyStyle lipgloss.Style

	HueStart   float64
	HueEnd     float64
	Saturation float64
	ValueBase  float64
	ValueSpan  float64

	FilledChar string
	EmptyChar  string
}

var defaultBarTheme = barTheme{
	LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
	HueStart:   210,
	HueEnd:     210,
	Saturation: 0.8,
	ValueBase:  0.35,
	ValueSpan:  0.45,
	FilledChar: "█",
	EmptyChar:  "░",
}

var vizThemes = map[string]barTheme{
	"Energy": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		HueStart:   190,
		HueEnd:     140,
		Saturation: 0.85,
		ValueBase:  0.35,
		ValueSpan:  0.55,
		FilledChar: "█",
		EmptyChar:  "░",
	},
	"Valence": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("228")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("237")),
		HueStart:   225,
		HueEnd:     40,
		Saturation: 0.9,
		ValueBase:  0.4,
		ValueSpan:  0.5,
	},
	"Euphoria": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("219")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("237")),
		HueStart:   300,
		HueEnd:     330,
		Saturation: 0.9,
		ValueBase:  0.4,
		ValueSpan:  0.55,
	},
	"Cognition": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("153")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
		HueStart:   180,
		HueEnd:     200,
		Saturation: 0.78,
		ValueBase:  0.35,
		ValueSpan:  0.45,
	},
	"Impulse": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("237")),
		HueStart:   330,
		HueEnd:     360,
		Saturation: 0.9,
		ValueBase:  0.4,
		ValueSpan:  0.55,
	},
	"Bass": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("215")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("237")),
		HueStart:   25,
		HueEnd:     45,
		Saturation: 0.92,
		ValueBase:  0.4,
		ValueSpan:  0.5,
	},
	"Mid": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("229")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
		HueStart:   55,
		HueEnd:     75,
		Saturation: 0.9,
		ValueBase:  0.35,
		ValueSpan:  0.55,
	},
	"Treble": {
		LabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("123")).Bold(true),
		ValueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		EmptyStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
		HueStart:   210,
		HueEnd:     240,
		Saturation: 0.85,
		ValueBase:  0.35,
		ValueSpan:  0.5,
	},
}

func normalizeBarTheme(theme barTheme) barTheme {
	if theme.FilledChar == "" {
		theme.FilledChar = defaultBarTheme.FilledChar
	}
	if theme.EmptyChar == "" {
		theme.EmptyChar = defaultBarTheme.EmptyChar
	}
	if theme.Saturation <= 0 {
		theme.Saturation = defaultBarTheme.Saturation
	}
	if theme.ValueSpan <= 0 {
		theme.ValueSpan = defaultBarTheme.ValueSpan
	}
	if theme.ValueBase <= 0 {
		theme.ValueBase = defaultBarTheme.ValueBase
	}
	return theme
}

func hexColorFromHSV(h, s, v float64) string {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	s = utils.Clamp(s, 0.0, 1.0)
	v = utils.Clamp(v, 0.0, 1.0)
	r, g, b, err := colorconv.HSVToRGB(h, s, v)
	if err != nil {
		return "#FFFFFF"
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func formatMs(ms float64) string {
	if ms < 0 {
		ms = 0
	}
	total := int(ms / 1000)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func (m *visualizerModel) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}
