package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
serial:
  port: /dev/ttyUSB0
  baud: 19200
inventory:
  bills_file: ./testdata/bills.json
gpio:
  ir_sensor_pin: 4
  intake:
    forward_pin: 16
    backward_pin: 20
    enable_pin: 21
  dispensers:
    "20": {transport_forward: 5, transport_backward: 6, transport_enable: 13, feeder_forward: 19, feeder_backward: 26, feeder_enable: 21, ir_pin: 12}
status:
  listen_addr: 0.0.0.0:9090
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kiosk.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write sample config: %v", err)
	}
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" || cfg.Serial.Baud != 19200 {
		t.Errorf("serial config not overridden: %+v", cfg.Serial)
	}
	if cfg.Inventory.CoinsFile != "./data/coins.json" {
		t.Errorf("expected coins_file to keep its default, got %q", cfg.Inventory.CoinsFile)
	}
	if cfg.GPIO.Dispensers["20"].IRPin != 12 {
		t.Errorf("expected dispenser 20's ir_pin=12, got %+v", cfg.GPIO.Dispensers["20"])
	}
	if cfg.Status.ListenAddr != "0.0.0.0:9090" {
		t.Errorf("status.listen_addr not overridden: %q", cfg.Status.ListenAddr)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeSample(t)
	os.Setenv("KIOSK_SERIAL__PORT", "/dev/ttyACM9")
	defer os.Unsetenv("KIOSK_SERIAL__PORT")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM9" {
		t.Errorf("expected env override to win, got %q", cfg.Serial.Port)
	}
}

func TestParseFlagOverridesEverything(t *testing.T) {
	path := writeSample(t)
	os.Setenv("KIOSK_SERIAL__PORT", "/dev/ttyACM9")
	defer os.Unsetenv("KIOSK_SERIAL__PORT")

	cfg, err := Parse([]string{"--serial.port=/dev/ttyACM0"}, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM0" {
		t.Errorf("expected flag to win over env and file, got %q", cfg.Serial.Port)
	}
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM0" || cfg.Serial.Baud != 9600 {
		t.Errorf("expected built-in defaults, got %+v", cfg.Serial)
	}
}
