// Package hw defines the capability interfaces the kiosk core drives
// hardware through: Motor, IrSensor, and Led. Concrete implementations
// live in hw/gpio (real Raspberry Pi GPIO) and hw/mock (deterministic
// fakes for tests and degraded-mode boot).
package hw

// Motor is a forward/backward/stop actuator: a feeder, a transport belt,
// or the bill acceptor's intake motor. Stop must be safe to call from any
// state, including before Forward/Backward have ever been called.
type Motor interface {
	Forward() error
	Backward() error
	Stop() error
}

// IrSensor reports whether a beam is currently broken. Per spec §6 the
// physical sensor is active-low; implementations translate that into
// Active() == true meaning "something is present."
type IrSensor interface {
	Active() (bool, error)
}

// Led is a simple on/off output (the bill acceptor's UV/white LEDs).
type Led interface {
	On() error
	Off() error
}

// Release stops m and returns Stop's error, so callers using Release in
// a defer can still observe failures if they choose to. It
// exists so every motor-energizing function can guarantee cleanup on all
// exit paths (success, failure, or panic) with a single deferred call,
// per spec §9's scope-guarded-release design note.
func Release(m Motor) error {
	return m.Stop()
}
