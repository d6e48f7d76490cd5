package robot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/trajectory"
)

const DefaultConfigFile = "scara.json"

// Actuator backends.
const (
	ActuatorUDP   = "udp"
	ActuatorServo = "servo"
)

// Config holds the controller configuration
type Config struct {
	Geometry kinematics.Geometry `json:"geometry"`
	Motion   MotionConfig        `json:"motion"`
	Link     LinkConfig          `json:"link"`
	HTTP     HTTPConfig          `json:"http"`
	Actuator string              `json:"actuator"`
	Servo    ServoConfig         `json:"servo"`
}

// MotionConfig holds trajectory step counts and timing. Durations are in
// milliseconds.
type MotionConfig struct {
	ArcSteps            int     `json:"arc_steps"`
	LinearSteps         int     `json:"linear_steps"`
	RoutineSteps        int     `json:"routine_steps"`
	GotoBaseDelayMS     float64 `json:"goto_base_delay_ms"`
	RoutineBaseDelayMS  float64 `json:"routine_base_delay_ms"`
	WaypointDwellMS     float64 `json:"waypoint_dwell_ms"`
	GotoSpeedFloor      int     `json:"goto_speed_floor"`
	RoutineSpeedFloor   int     `json:"routine_speed_floor"`
	RoutinePublishEvery int     `json:"routine_publish_every"`
	DefaultSpeed        int     `json:"default_speed"`
}

// LinkConfig holds the device link settings. Durations are in seconds.
type LinkConfig struct {
	DeviceAddr        string  `json:"device_addr"`
	CommandPort       int     `json:"command_port"`
	ListenPort        int     `json:"listen_port"`
	TimeoutS          float64 `json:"timeout_s"`
	HeartbeatPeriodS  float64 `json:"heartbeat_period_s"`
	KeepaliveThrottle float64 `json:"keepalive_throttle_s"`
}

// HTTPConfig holds the command surface settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// ServoConfig holds the servo bus settings
type ServoConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// IsCalibrated returns true if the servo bus has calibration data
func (s *ServoConfig) IsCalibrated() bool {
	return len(s.Calibration) > 0
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	geom := kinematics.DefaultGeometry()
	p := trajectory.DefaultPolicy()
	return &Config{
		Geometry: geom,
		Motion: MotionConfig{
			ArcSteps:            p.ArcSteps,
			LinearSteps:         p.LinearSteps,
			RoutineSteps:        p.RoutineSteps,
			GotoBaseDelayMS:     ms(p.GotoBaseDelay),
			RoutineBaseDelayMS:  ms(p.RoutineBaseDelay),
			WaypointDwellMS:     ms(p.WaypointDwell),
			GotoSpeedFloor:      p.GotoSpeedFloor,
			RoutineSpeedFloor:   p.RoutineSpeedFloor,
			RoutinePublishEvery: p.RoutinePublishEvery,
			DefaultSpeed:        50,
		},
		Link: LinkConfig{
			DeviceAddr:        "192.168.1.84",
			CommandPort:       4210,
			ListenPort:        5005,
			TimeoutS:          4.0,
			HeartbeatPeriodS:  1.0,
			KeepaliveThrottle: 0.5,
		},
		HTTP:     HTTPConfig{Addr: ":5000"},
		Actuator: ActuatorUDP,
		Servo:    ServoConfig{Calibration: DefaultCalibration(geom.ZTravel)},
	}
}

// Policy returns the trajectory policy described by the motion section.
func (m MotionConfig) Policy() trajectory.Policy {
	return trajectory.Policy{
		ArcSteps:            m.ArcSteps,
		LinearSteps:         m.LinearSteps,
		RoutineSteps:        m.RoutineSteps,
		GotoBaseDelay:       fromMS(m.GotoBaseDelayMS),
		RoutineBaseDelay:    fromMS(m.RoutineBaseDelayMS),
		WaypointDwell:       fromMS(m.WaypointDwellMS),
		GotoSpeedFloor:      m.GotoSpeedFloor,
		RoutineSpeedFloor:   m.RoutineSpeedFloor,
		RoutinePublishEvery: m.RoutinePublishEvery,
	}
}

// Timeout returns the liveness timeout.
func (l LinkConfig) Timeout() time.Duration { return fromS(l.TimeoutS) }

// HeartbeatPeriod returns the keepalive and broadcast period.
func (l LinkConfig) HeartbeatPeriod() time.Duration { return fromS(l.HeartbeatPeriodS) }

// Throttle returns how long after a manual command keepalives stay withheld.
func (l LinkConfig) Throttle() time.Duration { return fromS(l.KeepaliveThrottle) }

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
func fromMS(v float64) time.Duration { return time.Duration(v * float64(time.Millisecond)) }
func fromS(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Fields absent
// from the file keep their default values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the given config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
