// Package gpio implements hw.Motor, hw.IrSensor, and hw.Led against real
// Raspberry Pi GPIO lines via periph.io. A motor is a forward/backward
// pin pair plus an enable line that is driven on/off (no PWM); an IR
// sensor is one active-low input; an LED is one active-high output.
package gpio

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Init brings up the periph.io host driver registry. Call once at boot.
// If it fails, the caller should fall back to hw/mock and log prominently
// per spec §7's degraded-mode treatment — it must not be fatal.
func Init() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "periph host init")
	}
	return nil
}

// lookupPin resolves a GPIO line by its BCM number. Declared as a
// variable so tests can stub it without touching real hardware.
var lookupPin = func(bcm int) (gpio.PinIO, error) {
	name := gpioreg.ByName(bcmName(bcm))
	if name == nil {
		return nil, errors.Errorf("gpio: no such pin GPIO%d", bcm)
	}
	return name, nil
}

func bcmName(bcm int) string {
	// periph.io registers BCM pins as "GPIO<n>".
	return "GPIO" + itoa(bcm)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Motor drives a forward/backward/enable pin triple. The enable line is
// driven on/off rather than as true PWM: periph.io's plain gpio.PinIO
// doesn't expose duty-cycle control on every board, so speed is fixed by
// wiring (a physical PWM driver chip) rather than software here, matching
// the "falls back to on/off" allowance in spec §6.
type Motor struct {
	forward, backward, enable gpio.PinIO
}

// NewMotor resolves the three BCM pins backing a motor.
func NewMotor(forwardPin, backwardPin, enablePin int) (*Motor, error) {
	f, err := lookupPin(forwardPin)
	if err != nil {
		return nil, err
	}
	b, err := lookupPin(backwardPin)
	if err != nil {
		return nil, err
	}
	e, err := lookupPin(enablePin)
	if err != nil {
		return nil, err
	}
	if err := e.Out(gpio.Low); err != nil {
		return nil, errors.Wrap(err, "init motor enable pin")
	}
	return &Motor{forward: f, backward: b, enable: e}, nil
}

func (m *Motor) Forward() error {
	if err := m.backward.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "motor backward low")
	}
	if err := m.forward.Out(gpio.High); err != nil {
		return errors.Wrap(err, "motor forward high")
	}
	return errors.Wrap(m.enable.Out(gpio.High), "motor enable")
}

func (m *Motor) Backward() error {
	if err := m.forward.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "motor forward low")
	}
	if err := m.backward.Out(gpio.High); err != nil {
		return errors.Wrap(err, "motor backward high")
	}
	return errors.Wrap(m.enable.Out(gpio.High), "motor enable")
}

func (m *Motor) Stop() error {
	if err := m.enable.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "motor disable")
	}
	if err := m.forward.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "motor forward low")
	}
	return errors.Wrap(m.backward.Out(gpio.Low), "motor backward low")
}

// IrSensor reads a single active-low input pin.
type IrSensor struct {
	pin gpio.PinIO
}

// NewIrSensor resolves the BCM pin backing an IR beam-break sensor.
func NewIrSensor(pin int) (*IrSensor, error) {
	p, err := lookupPin(pin)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, errors.Wrap(err, "init ir sensor pin")
	}
	return &IrSensor{pin: p}, nil
}

// Active reports true when the beam is broken (pin reads low).
func (s *IrSensor) Active() (bool, error) {
	return s.pin.Read() == gpio.Low, nil
}

// Led drives a single active-high output pin.
type Led struct {
	pin gpio.PinIO
}

// NewLed resolves the BCM pin backing an LED.
func NewLed(pin int) (*Led, error) {
	p, err := lookupPin(pin)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrap(err, "init led pin")
	}
	return &Led{pin: p}, nil
}

func (l *Led) On() error  { return errors.Wrap(l.pin.Out(gpio.High), "led on") }
func (l *Led) Off() error { return errors.Wrap(l.pin.Out(gpio.Low), "led off") }
