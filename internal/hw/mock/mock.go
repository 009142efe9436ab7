// Package mock provides deterministic in-memory Motor/IrSensor/Led fakes
// used by component tests, system_tests, and the degraded-mode boot path
// when real GPIO init fails (spec §7, "Hardware-absent at boot").
package mock

import "sync"

// Motor records the sequence of states it was driven through.
type Motor struct {
	mu      sync.Mutex
	state   string // "stopped", "forward", "backward"
	History []string
}

// NewMotor returns a stopped Motor.
func NewMotor() *Motor {
	return &Motor{state: "stopped"}
}

func (m *Motor) Forward() error { return m.set("forward") }
func (m *Motor) Backward() error { return m.set("backward") }
func (m *Motor) Stop() error    { return m.set("stopped") }

func (m *Motor) set(state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.History = append(m.History, state)
	return nil
}

// State returns the motor's current state.
func (m *Motor) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IrSensor is a test double whose Active() result is driven by the test.
// Script, if set, is consumed one value per call to Active() after the
// first len(Script) calls it sticks to the last value; ForceActive
// overrides Script when non-nil.
type IrSensor struct {
	mu          sync.Mutex
	Script      []bool
	callCount   int
	ForceActive *bool
}

func NewIrSensor() *IrSensor { return &IrSensor{} }

func (s *IrSensor) Active() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForceActive != nil {
		return *s.ForceActive, nil
	}
	if len(s.Script) == 0 {
		return false, nil
	}
	idx := s.callCount
	if idx >= len(s.Script) {
		idx = len(s.Script) - 1
	}
	s.callCount++
	return s.Script[idx], nil
}

// SetActive sets ForceActive, overriding any Script.
func (s *IrSensor) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ForceActive = &active
}

// Led records on/off state transitions.
type Led struct {
	mu sync.Mutex
	on bool
}

func NewLed() *Led { return &Led{} }

func (l *Led) On() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = true
	return nil
}

func (l *Led) Off() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
	return nil
}

func (l *Led) IsOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}
