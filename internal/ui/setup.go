package ui

import (
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/veliks/moodpulse/internal/utils"
)

var (
	ErrSelectionAborted = eris.New("selection aborted")
	ErrNoInteractiveTTY = eris.New("no interactive terminal available")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213"))
	inactivePointerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("219")).
				Bold(true)
	instructionKeyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("213")).
				Bold(true)
	instructionTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
	instructionDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("246"))
	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)
	emptyStateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// Option is one selectable row in the setup picker.
type Option struct {
	Label string
}

// SetupConfig controls which steps the picker shows.
type SetupConfig struct {
	RequirePreset bool
	RequireDevice bool
	InitialPreset int
	InitialDevice int
}

// SetupResult carries the chosen indices.
type SetupResult struct {
	PresetIndex int
	DeviceIndex int
}

// RunSetup runs the interactive preset/device picker. Callers handle
// ErrNoInteractiveTTY by falling back to the initial indices.
func RunSetup(presets []Option, devices []Option, cfg SetupConfig) (SetupResult, error) {
	if !cfg.RequirePreset && !cfg.RequireDevice {
		return SetupResult{
			PresetIndex: utils.ClampIndex(cfg.InitialPreset, len(presets)),
			DeviceIndex: utils.ClampIndex(cfg.InitialDevice, len(devices)),
		}, nil
	}

	if !isInteractiveTerminal() {
		return SetupResult{}, ErrNoInteractiveTTY
	}

	program := tea.NewProgram(newSetupModel(presets, devices, cfg))
	finalModel, err := program.Run()
	if err != nil {
		return SetupResult{}, err
	}

	result := finalModel.(setupModel)
	if result.err != nil {
		return SetupResult{}, result.err
	}

	return SetupResult{
		PresetIndex: utils.ClampIndex(result.presetIndex, len(presets)),
		DeviceIndex: utils.ClampIndex(result.deviceIndex, len(devices)),
	}, nil
}

type setupStep int

const (
	stepSelectPreset setupStep = iota
	stepSelectDevice
	stepConfirm
	stepDone
)

type setupModel struct {
	step    setupStep
	cfg     SetupConfig
	presets []Option
	devices []Option

	cursor      int
	presetIndex int
	deviceIndex int
	err         error
}

func newSetupModel(presets []Option, devices []Option, cfg SetupConfig) setupModel {
	m := setupModel{
		presets:     presets,
		devices:     devices,
		cfg:         cfg,
		presetIndex: utils.ClampIndex(cfg.InitialPreset, len(presets)),
		deviceIndex: utils.ClampIndex(cfg.InitialDevice, len(devices)),
	}

	switch {
	case cfg.RequirePreset && len(presets) > 0:
		m.step = stepSelectPreset
		m.cursor = utils.ClampIndex(cfg.InitialPreset, len(presets))
	case cfg.RequireDevice && len(devices) > 0:
		m.step = stepSelectDevice
		m.cursor = utils.ClampIndex(cfg.InitialDevice, len(devices))
	default:
		m.step = stepConfirm
	}

	return m
}

func (m setupModel) Init() tea.Cmd {
	return nil
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.step == stepDone {
		return m, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.err = ErrSelectionAborted
			return m, tea.Quit
		case "up", "k":
			items := m.currentItems()
			if len(items) > 0 {
				m.cursor = wrapIndex(m.cursor-1, len(items))
			}
		case "down", "j":
			items := m.currentItems()
			if len(items) > 0 {
				m.cursor = wrapIndex(m.cursor+1, len(items))
			}
		case "tab", "right", "l":
			switch m.step {
			case stepSelectPreset:
				if m.cfg.RequireDevice && len(m.devices) > 0 {
					m.presetIndex = m.cursor
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				}
			case stepSelectDevice:
				m.deviceIndex = m.cursor
				m.step = stepConfirm
				m.cursor = 0
			}
		case "shift+tab", "left", "h":
			switch m.step {
			case stepSelectDevice:
				if m.cfg.RequirePreset && len(m.presets) > 0 {
					m.deviceIndex = m.cursor
					m.step = stepSelectPreset
					m.cursor = utils.ClampIndex(m.presetIndex, len(m.presets))
				}
			case stepConfirm:
				if m.cfg.RequireDevice {
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				} else if m.cfg.RequirePreset {
					m.step = stepSelectPreset
					m.cursor = utils.ClampIndex(m.presetIndex, len(m.presets))
				}
			}
		case "enter":
			switch m.step {
			case stepSelectPreset:
				m.presetIndex = m.cursor
				if m.cfg.RequireDevice && len(m.devices) > 0 {
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				} else {
					m.step = stepConfirm
					m.cursor = 0
				}
			case stepSelectDevice:
				m.deviceIndex = m.cursor
				m.step = stepConfirm
				m.cursor = 0
			case stepConfirm:
				m.step = stepDone
				return m, tea.Quit
			}
		case "backspace", "b":
			if m.step == stepConfirm {
				if m.cfg.RequireDevice {
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				} else if m.cfg.RequirePreset {
					m.step = stepSelectPreset
					m.cursor = utils.ClampIndex(m.presetIndex, len(m.presets))
				}
			}
		}
	}

	return m, nil
}

func (m setupModel) View() string {
	switch m.step {
	case stepSelectPreset:
		return renderPresetView(m)
	case stepSelectDevice:
		return renderDeviceView(m)
	case stepConfirm:
		return renderSummaryView(m)
	default:
		return ""
	}
}

func (m setupModel) currentItems() []Option {
	switch m.step {
	case stepSelectDevice:
		return m.devices
	case stepSelectPreset:
		return m.presets
	default:
		return nil
	}
}

func renderPresetView(m setupModel) string {
	instructions := []string{"↑/k ↓/j move", "enter confirm"}
	if m.cfg.RequireDevice {
		instructions = append(instructions, "tab/right continue")
	}
	instructions = append(instructions, "esc cancel")

	lines := []string{
		"",
		titleStyle.Render("Select a mood preset"),
		"",
		renderOptionList(m.presets, m.cursor),
		"",
		renderInstructions(instructions),
		"",
	}
	return strings.Join(lines, "\n")
}

func renderDeviceView(m setupModel) string {
	instructions := []string{"↑/k ↓/j move", "enter confirm"}
	if m.cfg.RequirePreset {
		instructions = append(instructions, "shift+tab/left back")
	}
	instructions = append(instructions, "tab/right finish", "esc cancel")

	lines := []string{
		"",
		titleStyle.Render("Select an audio input device"),
	}

	if m.cfg.RequirePreset {
		lines = append(lines,
			"",
			renderSummaryRow("Preset", m.selectedPresetLabel()),
		)
	}

	lines = append(lines,
		"",
		renderOptionList(m.devices, m.cursor),
		"",
		renderInstructions(instructions),
		"",
	)

	return strings.Join(lines, "\n")
}

func renderSummaryView(m setupModel) string {
	instructions := []string{"enter start", "←/h/b/backspace edit", "esc cancel"}

	lines := []string{
		"",
		titleStyle.Render("Ready to start"),
		"",
		renderSummaryRow("Preset", m.selectedPresetLabel()),
		renderSummaryRow("Device", m.selectedDeviceLabel()),
		"",
		renderInstructions(instructions),
		"",
	}
	return strings.Join(lines, "\n")
}

func (m setupModel) selectedPresetLabel() string {
	if m.presetIndex >= 0 && m.presetIndex < len(m.presets) {
		return m.presets[m.presetIndex].Label
	}
	return "not selected"
}

func (m setupModel) selectedDeviceLabel() string {
	if m.deviceIndex >= 0 && m.deviceIndex < len(m.devices) {
		return m.devices[m.deviceIndex].Label
	}
	return "not selected"
}

func renderPointer(active bool) string {
	if active {
		return pointerStyle.Render("›")
	}
	return inactivePointerStyle.Render(" ")
}

func renderOptionLabel(text string, active bool) string {
	if active {
		return selectedItemStyle.Render(text)
	}
	return itemStyle.Render(text)
}

func renderOptionList(items []Option, cursor int) string {
	if len(items) == 0 {
		return emptyStateStyle.Render("No options detected")
	}

	rows := make([]string, len(items))
	for i, item := range items {
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Left,
			renderPointer(cursor == i),
			" ",
			renderOptionLabel(item.Label, cursor == i),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderInstructions(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	if len(parts) == 1 {
		return renderInstruction(parts[0])
	}

	var segments []string
	for i, part := range parts {
		if i > 0 {
			segments = append(segments, instructionDividerStyle.Render(" · "))
		}
		segments = append(segments, renderInstruction(part))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderInstruction(part string) string {
	tokens := strings.Fields(part)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) == 1 {
		return instructionTextStyle.Render(tokens[0])
	}

	var segments []string
	keyTokens := tokens[:len(tokens)-1]
	for i, token := range keyTokens {
		if i > 0 {
			segments = append(segments, instructionTextStyle.Render(" "))
		}
		segments = append(segments, instructionKeyStyle.Render(token))
	}
	segments = append(segments, instructionTextStyle.Render(" "))
	segments = append(segments, instructionTextStyle.Render(tokens[len(tokens)-1]))
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderSummaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		summaryLabelStyle.Render(label+": "),
		summaryValueStyle.Render(value),
	)
}

func wrapIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	idx = idx % length
	if idx < 0 {
		idx += length
	}
	return idx
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
