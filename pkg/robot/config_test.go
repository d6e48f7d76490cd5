package robot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/scara/pkg/trajectory"
)

func TestDefaultConfig_Policy(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, trajectory.DefaultPolicy(), cfg.Motion.Policy())
	assert.Equal(t, 4*time.Second, cfg.Link.Timeout())
	assert.Equal(t, time.Second, cfg.Link.HeartbeatPeriod())
	assert.Equal(t, 500*time.Millisecond, cfg.Link.Throttle())
	assert.Equal(t, ActuatorUDP, cfg.Actuator)
	assert.True(t, cfg.Servo.IsCalibrated())
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	assert.False(t, ConfigExists(path))

	cfg := DefaultConfig()
	cfg.Link.DeviceAddr = "10.0.0.7"
	cfg.Motion.ArcSteps = 42
	cfg.Servo.Port = "/dev/ttyUSB0"
	require.NoError(t, cfg.SaveTo(path))
	assert.True(t, ConfigExists(path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigFrom_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"link": {"device_addr": "10.1.1.1"}}`), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", cfg.Link.DeviceAddr)
	assert.Equal(t, 4210, cfg.Link.CommandPort)
	assert.Equal(t, 100, cfg.Motion.ArcSteps)
	assert.InDelta(t, 28.9818176, cfg.Geometry.L1, 1e-9)
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
