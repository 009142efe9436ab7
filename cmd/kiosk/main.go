// Command kiosk is the control-core process: it loads configuration,
// brings up hardware (falling back to mock on GPIO init failure per
// spec §7), wires the transaction core, and keeps it and the operator
// status endpoint running until signalled to stop.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/binsoy69/money-converter/internal/billacceptor"
	"github.com/binsoy69/money-converter/internal/changemaker"
	"github.com/binsoy69/money-converter/internal/classifier"
	"github.com/binsoy69/money-converter/internal/coinsession"
	"github.com/binsoy69/money-converter/internal/config"
	"github.com/binsoy69/money-converter/internal/dispenser"
	"github.com/binsoy69/money-converter/internal/hw"
	"github.com/binsoy69/money-converter/internal/hw/gpio"
	"github.com/binsoy69/money-converter/internal/hw/mock"
	"github.com/binsoy69/money-converter/internal/inventory"
	"github.com/binsoy69/money-converter/internal/orchestrator"
	"github.com/binsoy69/money-converter/internal/serial"
	"github.com/binsoy69/money-converter/internal/status"
	"github.com/binsoy69/money-converter/internal/store"
)

func setupLogging() {
	useColor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	var output io.Writer = os.Stderr
	if useColor {
		output = colorable.NewColorableStderr()
	}
	glogger := log.NewGlogHandler(log.StreamHandler(output, log.TerminalFormat(useColor)))
	glogger.Verbosity(log.LvlInfo)
	log.Root().SetHandler(glogger)
}

func main() {
	setupLogging()

	configPath := os.Getenv("KIOSK_CONFIG_FILE")
	if configPath == "" {
		configPath = "kiosk.yaml"
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	fs := flag.NewFlagSet("kiosk", flag.ContinueOnError)
	config.DefineFlags(fs)
	fs.String("config", configPath, "path to kiosk.yaml")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Crit("parse flags", "err", err)
	}
	if p, err := fs.GetString("config"); err == nil && p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath, fs)
	if err != nil {
		log.Crit("load config", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := boot(ctx, cfg)
	if err != nil {
		log.Crit("kiosk boot failed", "err", err)
	}
	if err := app.serve(ctx); err != nil {
		log.Crit("kiosk exited with error", "err", err)
	}
}

// app holds every wired component of a booted kiosk core. Orchestrator is
// the boundary the (out-of-scope, spec §1) touch UI drives in-process,
// the same way main_controller.py held onto its handler objects.
type app struct {
	billInv, coinInv *inventory.Inventory
	link             *serial.Link
	session          *coinsession.Session
	acceptor         *billacceptor.Acceptor
	orch             *orchestrator.Orchestrator
	statusSrv        *status.Server
}

// boot loads inventories, brings up hardware, and wires every component
// through to a ready Orchestrator. It does not block.
func boot(ctx context.Context, cfg config.Config) (*app, error) {
	billInv, err := inventory.New("bill", changemaker.AllBillDenoms,
		map[int]int{1000: 20, 500: 20, 200: 20, 100: 20, 50: 20, 20: 20}, store.New(cfg.Inventory.BillsFile))
	if err != nil {
		return nil, err
	}
	coinInv, err := inventory.New("coin", changemaker.AllCoinDenoms,
		map[int]int{20: 30, 10: 30, 5: 30, 1: 30}, store.New(cfg.Inventory.CoinsFile))
	if err != nil {
		return nil, err
	}

	intakeMotor, irSensor, dispenserHW, degraded := bringUpHardware(cfg)
	if degraded {
		log.Warn("kiosk: booting in degraded hardware mode, all motors/sensors are mocks")
	}

	// Session is built before Link (whose subscriber list is fixed at
	// construction) and wired to it via SetLink once Link exists.
	session := coinsession.New(nil, coinInv, nil, nil)
	link := serial.New(serial.Config{
		PortName:    cfg.Serial.Port,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond,
	}, coinInv, session)
	session.SetLink(link)
	link.Start(ctx)

	classify := &classifier.Mock{}

	acceptor := billacceptor.New(billacceptor.Config{
		Intake:            intakeMotor,
		IR:                irSensor,
		Classifier:        classify,
		Sorter:            link,
		Inventory:         billInv,
		Timing:            billacceptor.DefaultTiming(),
		CoinSessionActive: session.Active,
	})

	billDispensers := map[int]orchestrator.BillDispenserPort{}
	for _, denom := range changemaker.AllBillDenoms {
		hwSet, ok := dispenserHW[denom]
		if !ok {
			continue
		}
		billDispensers[denom] = dispenser.New(denom, hwSet.transport, hwSet.feeder, hwSet.ir, dispenser.DefaultTiming())
	}

	orch := orchestrator.New(orchestrator.Config{
		BillInventory:  billInv,
		CoinInventory:  coinInv,
		Acceptor:       acceptor,
		CoinSession:    session,
		CoinOut:        link,
		BillDispensers: billDispensers,
	})

	statusSrv := status.New(cfg.Status.ListenAddr,
		link.Connected,
		func() (map[int]int, map[int]int) { return billInv.Get(), coinInv.Get() },
	)

	return &app{
		billInv:   billInv,
		coinInv:   coinInv,
		link:      link,
		session:   session,
		acceptor:  acceptor,
		orch:      orch,
		statusSrv: statusSrv,
	}, nil
}

// serve runs the status HTTP surface until ctx is cancelled, then tears
// down the serial link cleanly. The Orchestrator itself is driven by
// whatever process hosts the (out-of-scope) touch UI; serve's only job
// here is keeping the process alive and observable.
func (a *app) serve(ctx context.Context) error {
	defer a.link.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- a.statusSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info("kiosk: shutting down")
		return a.statusSrv.Shutdown()
	case err := <-errCh:
		return err
	}
}

type dispenserHardware struct {
	transport, feeder hw.Motor
	ir                hw.IrSensor
}

// bringUpHardware initializes GPIO for every configured pin, falling back
// to mock.Motor/mock.IrSensor wholesale on any failure (spec §7's
// degraded-mode boot path: never fatal, always logged).
func bringUpHardware(cfg config.Config) (intake hw.Motor, ir hw.IrSensor, dispensers map[int]dispenserHardware, degraded bool) {
	dispensers = map[int]dispenserHardware{}

	if err := gpio.Init(); err != nil {
		log.Error("gpio init failed, falling back to mock hardware", "err", err)
		return mockIntake(), mock.NewIrSensor(), mockDispensers(), true
	}

	intakeMotor, err := gpio.NewMotor(cfg.GPIO.Intake.ForwardPin, cfg.GPIO.Intake.BackwardPin, cfg.GPIO.Intake.EnablePin)
	if err != nil {
		log.Error("gpio intake motor init failed, falling back to mock hardware", "err", err)
		return mockIntake(), mock.NewIrSensor(), mockDispensers(), true
	}
	irSensor, err := gpio.NewIrSensor(cfg.GPIO.IRSensorPin)
	if err != nil {
		log.Error("gpio ir sensor init failed, falling back to mock hardware", "err", err)
		return mockIntake(), mock.NewIrSensor(), mockDispensers(), true
	}

	for _, denom := range changemaker.AllBillDenoms {
		pins, ok := cfg.GPIO.Dispensers[strconv.Itoa(denom)]
		if !ok {
			continue
		}
		transport, err := gpio.NewMotor(pins.TransportForward, pins.TransportBackward, pins.TransportEnable)
		if err != nil {
			log.Error("gpio dispenser transport init failed, falling back to mock hardware", "denom", denom, "err", err)
			return mockIntake(), mock.NewIrSensor(), mockDispensers(), true
		}
		feeder, err := gpio.NewMotor(pins.FeederForward, pins.FeederBackward, pins.FeederEnable)
		if err != nil {
			log.Error("gpio dispenser feeder init failed, falling back to mock hardware", "denom", denom, "err", err)
			return mockIntake(), mock.NewIrSensor(), mockDispensers(), true
		}
		dIR, err := gpio.NewIrSensor(pins.IRPin)
		if err != nil {
			log.Error("gpio dispenser ir init failed, falling back to mock hardware", "denom", denom, "err", err)
			return mockIntake(), mock.NewIrSensor(), mockDispensers(), true
		}
		dispensers[denom] = dispenserHardware{transport: transport, feeder: feeder, ir: dIR}
	}

	return intakeMotor, irSensor, dispensers, false
}

func mockIntake() hw.Motor { return mock.NewMotor() }

func mockDispensers() map[int]dispenserHardware {
	out := map[int]dispenserHardware{}
	for _, denom := range changemaker.AllBillDenoms {
		out[denom] = dispenserHardware{transport: mock.NewMotor(), feeder: mock.NewMotor(), ir: mock.NewIrSensor()}
	}
	return out
}

