// SPDX-License-Identifier: MIT
package tui

import (
	"audioscope/internal/audio"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrNoSelection is returned by PickDevice when the user quits without
// choosing a device.
var ErrNoSelection = errors.New("no input device selected")

// hostDevices is swapped out in tests.
var hostDevices = audio.HostDevices

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// DevicePicker is the Bubble Tea model that lists input devices and lets the
// user choose one to capture from.
type DevicePicker struct {
	devices       []audio.Device
	selectedIndex int
	selected      *audio.Device
	viewport      viewport.Model
	ready         bool
	err           error
}

// NewDevicePicker creates a new device picker.
func NewDevicePicker() DevicePicker {
	return DevicePicker{}
}

// Init initializes the Bubble Tea model
func (m DevicePicker) Init() tea.Cmd {
	return fetchDevices
}

// fetchDevices gets the devices that can capture.
func fetchDevices() tea.Msg {
	devices, err := hostDevices()
	if err != nil {
		return errMsg{err}
	}
	inputs := devices[:0:0]
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return devicesMsg{inputs}
}

// Update handles input and updates the model
func (m DevicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = msg.devices
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit

		case key.Matches(msg, upKey):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderDevices())
			}

		case key.Matches(msg, downKey):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderDevices())
			}

		case key.Matches(msg, pickKey):
			if len(m.devices) > 0 {
				d := m.devices[m.selectedIndex]
				m.selected = &d
				return m, tea.Quit
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the UI
func (m DevicePicker) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Select Input Device")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DevicePicker) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s\n", device.ID, device.Name)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxInputChannels, device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Selected returns the chosen device, or nil if none was chosen.
func (m DevicePicker) Selected() *audio.Device {
	return m.selected
}

// PickDevice runs the picker and returns the chosen device ID.
func PickDevice() (int, error) {
	p := tea.NewProgram(NewDevicePicker(), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return 0, err
	}

	picker := final.(DevicePicker)
	if picker.err != nil {
		return 0, picker.err
	}
	if picker.selected == nil {
		return 0, ErrNoSelection
	}
	return picker.selected.ID, nil
}
