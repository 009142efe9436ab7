// Command kioskctl is the operator CLI: inventory inspection and manual
// hardware test commands, run independently of the booted kiosk process
// (it reads the same JSON snapshot files directly).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/binsoy69/money-converter/internal/changemaker"
	"github.com/binsoy69/money-converter/internal/config"
	"github.com/binsoy69/money-converter/internal/dispenser"
	"github.com/binsoy69/money-converter/internal/hw"
	"github.com/binsoy69/money-converter/internal/hw/gpio"
	"github.com/binsoy69/money-converter/internal/hw/mock"
	"github.com/binsoy69/money-converter/internal/inventory"
	"github.com/binsoy69/money-converter/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "inventory":
		runInventory(os.Args[2:])
	case "dispense":
		runDispense(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "kioskctl: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `kioskctl — kiosk operator CLI

Usage:
  kioskctl inventory [--config path]          show current bill/coin stock
  kioskctl dispense --denom N --qty N [--config path] [--mock]
                                               manually exercise one bill dispenser`)
}

func loadConfig(fs *flag.FlagSet) config.Config {
	configPath := fs.String("config", "kiosk.yaml", "path to kiosk.yaml")
	if err := fs.Parse(os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl:", err)
		os.Exit(2)
	}
	if _, err := os.Stat(*configPath); err != nil {
		*configPath = ""
	}
	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: load config:", err)
		os.Exit(1)
	}
	return cfg
}

func runInventory(_ []string) {
	fs := flag.NewFlagSet("inventory", flag.ExitOnError)
	cfg := loadConfig(fs)

	bills, err := inventory.New("bill", changemaker.AllBillDenoms,
		map[int]int{1000: 20, 500: 20, 200: 20, 100: 20, 50: 20, 20: 20}, store.New(cfg.Inventory.BillsFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: load bill inventory:", err)
		os.Exit(1)
	}
	coins, err := inventory.New("coin", changemaker.AllCoinDenoms,
		map[int]int{20: 30, 10: 30, 5: 30, 1: 30}, store.New(cfg.Inventory.CoinsFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: load coin inventory:", err)
		os.Exit(1)
	}

	printStockTable("Bills", bills.Get())
	printStockTable("Coins", coins.Get())
}

func printStockTable(title string, stock inventory.Breakdown) {
	fmt.Println(title + ":")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Denomination", "Count", "Value"})
	total := 0
	for _, denom := range stock.Denoms() {
		count := stock[denom]
		total += denom * count
		table.Append([]string{strconv.Itoa(denom), strconv.Itoa(count), strconv.Itoa(denom * count)})
	}
	table.SetFooter([]string{"", "Total", strconv.Itoa(total)})
	table.Render()
	fmt.Println()
}

func runDispense(_ []string) {
	fs := flag.NewFlagSet("dispense", flag.ExitOnError)
	denom := fs.Int("denom", 0, "bill denomination to dispense")
	qty := fs.Int("qty", 1, "number of bills to dispense")
	useMock := fs.Bool("mock", false, "use mock hardware instead of real GPIO")
	cfg := loadConfig(fs)

	if *denom == 0 {
		fmt.Fprintln(os.Stderr, "kioskctl: --denom is required")
		os.Exit(2)
	}

	transport, feeder, ir := dispenserHardware(cfg, *denom, *useMock)
	d := dispenser.New(*denom, transport, feeder, ir, dispenser.DefaultTiming())

	ok, reason, err := d.Dispense(*qty)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: dispense failed:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "kioskctl: dispense did not complete: %s\n", reason)
		os.Exit(1)
	}
	fmt.Printf("dispensed %dx%d successfully\n", *qty, *denom)
}

func dispenserHardware(cfg config.Config, denom int, useMock bool) (transport, feeder hw.Motor, ir hw.IrSensor) {
	if useMock {
		return mock.NewMotor(), mock.NewMotor(), mock.NewIrSensor()
	}
	pins, ok := cfg.GPIO.Dispensers[strconv.Itoa(denom)]
	if !ok {
		fmt.Fprintf(os.Stderr, "kioskctl: no GPIO pins configured for denom %d, falling back to mock\n", denom)
		return mock.NewMotor(), mock.NewMotor(), mock.NewIrSensor()
	}
	if err := gpio.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: gpio init failed, falling back to mock:", err)
		return mock.NewMotor(), mock.NewMotor(), mock.NewIrSensor()
	}
	t, err := gpio.NewMotor(pins.TransportForward, pins.TransportBackward, pins.TransportEnable)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: gpio transport motor init failed, falling back to mock:", err)
		return mock.NewMotor(), mock.NewMotor(), mock.NewIrSensor()
	}
	f, err := gpio.NewMotor(pins.FeederForward, pins.FeederBackward, pins.FeederEnable)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: gpio feeder motor init failed, falling back to mock:", err)
		return mock.NewMotor(), mock.NewMotor(), mock.NewIrSensor()
	}
	s, err := gpio.NewIrSensor(pins.IRPin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kioskctl: gpio ir sensor init failed, falling back to mock:", err)
		return mock.NewMotor(), mock.NewMotor(), mock.NewIrSensor()
	}
	return t, f, s
}
