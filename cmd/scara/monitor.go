package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/scara/pkg/api"
	"github.com/gwillem/scara/pkg/status"
)

type MonitorCommand struct {
	URL string `long:"url" default:"http://localhost:5000" description:"Controller base URL"`
}

const (
	headerHeight = 3 // title + state line + blank
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of notices to show
	borderSize   = 2 // chart border
)

// Chart series. z is plotted in millimetres so it is visible next to the
// joint angles.
const (
	seriesQ1 = "q1"
	seriesQ2 = "q2"
	seriesZ  = "z (mm)"
)

var seriesOrder = []string{seriesQ1, seriesQ2, seriesZ}

var seriesColors = map[string]string{
	seriesQ1: "196", // red
	seriesQ2: "226", // yellow
	seriesZ:  "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	estopStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9"))
	linkUpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	linkDnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	movingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

var noticeColors = map[status.Severity]string{
	status.SeverityInfo:    "252",
	status.SeveritySuccess: "10",
	status.SeverityWarning: "11",
	status.SeverityError:   "9",
}

type monitorModel struct {
	client   *api.Client
	url      string
	events   <-chan api.Event
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N notices
	last     *status.Snapshot
	quitting bool
}

// Messages from the event stream
type eventMsg api.Event
type streamClosedMsg struct{}
type estopMsg struct{ err error }

func waitForEvent(events <-chan api.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func toggleEstop(c *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := c.ToggleEmergencyStop(ctx)
		return estopMsg{err}
	}
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func initialMonitorModel(client *api.Client, url string, events <-chan api.Event) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-180, 180),
	)
	for _, name := range seriesOrder {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return monitorModel{
		client: client,
		url:    url,
		events: events,
		chart:  &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case " ", "e":
			return m, toggleEstop(m.client)
		}

	case eventMsg:
		m.apply(api.Event(msg))
		return m, waitForEvent(m.events)

	case estopMsg:
		if msg.err != nil {
			m.addLog(linkDnStyle.Render(msg.err.Error()))
		}
		return m, nil

	case streamClosedMsg:
		m.addLog(linkDnStyle.Render("event stream closed"))
		return m, nil
	}

	return m, nil
}

func (m *monitorModel) apply(ev api.Event) {
	switch ev.Type {
	case api.EventStatus:
		if ev.Status == nil {
			return
		}
		s := *ev.Status
		if m.last == nil || m.last.Joints != s.Joints {
			m.chart.PushDataSet(seriesQ1, s.Joints.Q1)
			m.chart.PushDataSet(seriesQ2, s.Joints.Q2)
			m.chart.PushDataSet(seriesZ, s.Joints.Z*10)
			m.chart.DrawAll()
		}
		m.last = &s
	case api.EventNotification:
		if ev.Notice == nil {
			return
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(noticeColors[ev.Notice.Severity]))
		m.addLog(fmt.Sprintf("[%s] %s", ev.Notice.Time.Local().Format("15:04:05"), style.Render(ev.Notice.Message)))
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("SCARA Monitor"))
	sb.WriteString(statusStyle.Render(" - " + m.url))
	sb.WriteString("\n")
	sb.WriteString(m.stateLine())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'e' to toggle the emergency stop, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m monitorModel) stateLine() string {
	s := m.last
	if s == nil {
		return statusStyle.Render("waiting for status...")
	}
	parts := []string{
		fmt.Sprintf("mode %s", s.Mode),
		fmt.Sprintf("speed %d%%", s.Speed),
		fmt.Sprintf("pos %s", s.Position),
		fmt.Sprintf("grip %s", s.Gripper),
		fmt.Sprintf("routine %d", s.RoutineLength),
		fmt.Sprintf("observers %d", s.Observers),
	}
	line := strings.Join(parts, "  ")
	if s.Mode.Automated() {
		line += "  " + movingStyle.Render("moving")
	}
	if s.LinkConnected {
		line += "  " + linkUpStyle.Render("robot "+s.LinkAddress)
	} else {
		line += "  " + linkDnStyle.Render("robot offline")
	}
	if s.EmergencyStop {
		line += "  " + estopStyle.Render(" E-STOP ")
	}
	return line
}

func renderLegend() string {
	var items []string
	for _, name := range seriesOrder {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	client := api.NewClient(c.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fail fast if nothing is listening.
	checkCtx, checkCancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := client.Status(checkCtx)
	checkCancel()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.URL, err)
	}

	events := make(chan api.Event, 16)
	go func() {
		defer close(events)
		client.Stream(ctx, func(ev api.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()

	p := tea.NewProgram(initialMonitorModel(client, c.URL, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}
