package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/scara/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// minGoodRange is the raw tick span below which a recorded joint range is
// flagged as too small.
const minGoodRange = 500

var errSetupAborted = errors.New("setup aborted")

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("SCARA Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Step 1: find the servo bus
	port, err := pickBus()
	if err != nil {
		return err
	}
	cfg.Servo.Port = port

	// Step 2: record joint ranges
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Joints ━━━"))
	fmt.Println()
	cal, err := calibrateJoints(port, cfg.Servo.Calibration, cfg.Geometry.ZTravel)
	if err != nil {
		return err
	}
	cfg.Servo.Calibration = cal

	// Step 3: choose the default backend
	useServo := cfg.Actuator == robot.ActuatorServo
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Drive the arm over the servo bus by default?").
				Description("Otherwise 'scara serve' talks to the network controller over UDP").
				Affirmative("Servo bus").
				Negative("UDP").
				Value(&useServo),
		),
	)
	if err := form.Run(); err != nil {
		return errSetupAborted
	}
	if useServo {
		cfg.Actuator = robot.ActuatorServo
	} else {
		cfg.Actuator = robot.ActuatorUDP
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the controller with: " + headerStyle.Render("scara serve"))

	return nil
}

// pickBus scans the serial ports and returns the one carrying the arm. The
// user chooses when there is more than one.
func pickBus() (string, error) {
	fmt.Println("Scanning serial ports for the servo bus...")
	fmt.Println()

	ports := findBuses()
	switch len(ports) {
	case 0:
		fmt.Println("No SCARA servo bus found.")
		fmt.Println("Make sure the arm is connected and powered on.")
		return "", errors.New("no servo bus found")
	case 1:
		return ports[0], nil
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the arm on?").
				Description(fmt.Sprintf("%d ports answer with servos 1-%d", len(ports), len(robot.AllJoints()))).
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return "", errSetupAborted
	}
	return port, nil
}

func findBuses() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var found []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		bus, servos, err := connectToBus(port)
		if err != nil {
			continue
		}
		bus.Close()
		fmt.Printf("  Found %d servos on %s\n", len(servos), port)
		found = append(found, port)
	}
	return found
}

func connectToBus(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	n := len(robot.AllJoints())
	servos, err := bus.Scan(ctx, 1, n)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !isScaraBus(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("not a SCARA bus (expected %d servos with IDs 1-%d)", n, n)
	}
	return bus, servos, nil
}

func isScaraBus(servos []feetech.FoundServo) bool {
	n := len(robot.AllJoints())
	if len(servos) != n {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= n; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

// calibrateJoints records the raw range of every joint while the user moves
// the arm by hand. Engineering ranges are kept from prev, or the defaults.
func calibrateJoints(port string, prev robot.Calibration, zTravel float64) (robot.Calibration, error) {
	bus, servos, err := connectToBus(port)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", port, err)
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Disable all servos so the arm moves freely
	ctx := context.Background()
	for _, servo := range servoMap {
		servo.Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Swing the shoulder and elbow through their full travel,")
	fmt.Println("run the piston end to end and open and close the gripper.")
	fmt.Println()

	joints := robot.AllJoints()
	cur := make(map[robot.JointName]int)
	lo := make(map[robot.JointName]int)
	hi := make(map[robot.JointName]int)
	for i, name := range joints {
		pos, _ := servoMap[i+1].Position(ctx)
		cur[name], lo[name], hi[name] = pos, pos, pos
	}

	p := tea.NewProgram(newCalibrationModel(joints, servoMap, cur, lo, hi))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		return nil, errSetupAborted
	}

	defaults := robot.DefaultCalibration(zTravel)
	cal := make(robot.Calibration, len(joints))
	for i, name := range joints {
		jc, ok := prev[name]
		if !ok {
			jc = defaults[name]
		}
		jc.ID = i + 1
		jc.RangeMin = cm.minPositions[name]
		jc.RangeMax = cm.maxPositions[name]
		cal[name] = jc
	}

	fmt.Println()
	fmt.Println("Joints calibrated.")
	return cal, nil
}

// Calibration TUI model
type calibrationModel struct {
	joints       []robot.JointName
	servoMap     map[int]*feetech.Servo
	curPositions map[robot.JointName]int
	minPositions map[robot.JointName]int
	maxPositions map[robot.JointName]int
	quitting     bool
	aborted      bool
}

type tickMsg time.Time

func newCalibrationModel(
	joints []robot.JointName,
	servoMap map[int]*feetech.Servo,
	curPositions, minPositions, maxPositions map[robot.JointName]int,
) calibrationModel {
	return calibrationModel{
		joints:       joints,
		servoMap:     servoMap,
		curPositions: curPositions,
		minPositions: minPositions,
		maxPositions: maxPositions,
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.quitting = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.quitting = true
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, name := range m.joints {
			servo, ok := m.servoMap[i+1]
			if !ok {
				continue
			}
			pos, err := servo.Position(ctx)
			if err != nil {
				continue
			}
			m.curPositions[name] = pos
			m.minPositions[name] = min(m.minPositions[name], pos)
			m.maxPositions[name] = max(m.maxPositions[name], pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	headerCell := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	jointCell := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	currentCell := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	goodCell := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	lowCell := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	ranges := make([]int, 0, len(m.joints))
	for _, name := range m.joints {
		span := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, span)
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", m.curPositions[name]),
			fmt.Sprintf("%d", m.minPositions[name]),
			fmt.Sprintf("%d", m.maxPositions[name]),
			fmt.Sprintf("%d", span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			switch col {
			case 0:
				return jointCell
			case 1:
				return currentCell
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > minGoodRange {
					return goodCell
				}
				return lowCell
			default:
				return cell
			}
		})

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done, q to abort"))
	return sb.String()
}
