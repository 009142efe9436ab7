// Package config loads the kiosk's runtime configuration from a YAML
// file, KIOSK_* environment variables, and command-line flags, in that
// order of increasing precedence, using koanf the same way the teacher
// layers config for cmd/relay: file provider, then env provider, then
// posflag provider on top.
package config

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

// DispenserPins is one bill denomination's motor/sensor pin wiring.
type DispenserPins struct {
	TransportForward  int `koanf:"transport_forward"`
	TransportBackward int `koanf:"transport_backward"`
	TransportEnable   int `koanf:"transport_enable"`
	FeederForward     int `koanf:"feeder_forward"`
	FeederBackward    int `koanf:"feeder_backward"`
	FeederEnable      int `koanf:"feeder_enable"`
	IRPin             int `koanf:"ir_pin"`
}

// IntakePins is the bill acceptor's single transport-motor pin wiring.
type IntakePins struct {
	ForwardPin  int `koanf:"forward_pin"`
	BackwardPin int `koanf:"backward_pin"`
	EnablePin   int `koanf:"enable_pin"`
}

// GPIOConfig is the full BCM pin map for the kiosk's hardware.
type GPIOConfig struct {
	IRSensorPin int                   `koanf:"ir_sensor_pin"`
	Intake      IntakePins            `koanf:"intake"`
	Dispensers  map[string]DispenserPins `koanf:"dispensers"`
}

// SerialConfig configures the physical link to the coin handler board.
type SerialConfig struct {
	Port          string `koanf:"port"`
	Baud          int    `koanf:"baud"`
	ReadTimeoutMs int    `koanf:"read_timeout_ms"`
}

// InventoryConfig names the two persisted snapshot files.
type InventoryConfig struct {
	BillsFile string `koanf:"bills_file"`
	CoinsFile string `koanf:"coins_file"`
}

// StatusConfig configures the operator HTTP status surface.
type StatusConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// Config is the kiosk's full runtime configuration, shaped per SPEC_FULL
// §6.1's kiosk.yaml.
type Config struct {
	Serial    SerialConfig    `koanf:"serial"`
	Inventory InventoryConfig `koanf:"inventory"`
	GPIO      GPIOConfig      `koanf:"gpio"`
	Status    StatusConfig    `koanf:"status"`
}

// Default returns the configuration baseline every layer (file, env,
// flags) is applied on top of.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Port:          "/dev/ttyACM0",
			Baud:          9600,
			ReadTimeoutMs: 1000,
		},
		Inventory: InventoryConfig{
			BillsFile: "./data/bills.json",
			CoinsFile: "./data/coins.json",
		},
		Status: StatusConfig{
			ListenAddr: "127.0.0.1:8090",
		},
	}
}

// DefineFlags registers the command-line flags Parse (via Load) overlays
// on top of file and env configuration. Callers pass their own FlagSet,
// so tests can use a scratch one.
func DefineFlags(fs *flag.FlagSet) {
	fs.String("serial.port", "", "serial device path for the coin handler board")
	fs.Int("serial.baud", 0, "serial baud rate")
	fs.String("inventory.bills_file", "", "bill inventory snapshot path")
	fs.String("inventory.coins_file", "", "coin inventory snapshot path")
	fs.String("status.listen_addr", "", "operator status HTTP listen address")
}

// Load layers a YAML config file, KIOSK_* environment variables, and
// parsed flags (in that precedence order) on top of Default(), the same
// file→env→posflag chain the teacher builds for cmd/relay config.
func Load(path string, fs *flag.FlagSet) (Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "load config defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "load config file %s", path)
		}
	}

	// Double underscore separates nesting levels so single-underscore field
	// names (bills_file, listen_addr, ...) survive intact, e.g.
	// KIOSK_INVENTORY__BILLS_FILE -> inventory.bills_file.
	envProvider := env.Provider("KIOSK_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "KIOSK_")
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, errors.Wrap(err, "load config env overrides")
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, errors.Wrap(err, "load config flag overrides")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}

// Parse is the cmd/kiosk entry point's convenience wrapper: it defines
// the flag set, parses args, and loads the layered config in one call.
func Parse(args []string, configPath string) (Config, error) {
	fs := flag.NewFlagSet("kiosk", flag.ContinueOnError)
	DefineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}
	return Load(configPath, fs)
}
