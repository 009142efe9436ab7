package classifier

import "sync"

// Mock is a scriptable Port for tests: each call to Authenticate or
// ClassifyDenomination consumes the next scripted Result (sticking to the
// last entry once exhausted).
type Mock struct {
	mu sync.Mutex

	AuthScript  []Result
	authCall    int
	DenomScript []Result
	denomCall   int
}

func (m *Mock) Authenticate() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.nextLocked(m.AuthScript, &m.authCall)
	return r.Confidence >= ConfidenceThreshold && r.Label == "genuine", nil
}

func (m *Mock) ClassifyDenomination() (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.nextLocked(m.DenomScript, &m.denomCall)
	if r.Confidence < ConfidenceThreshold {
		return 0, false, nil
	}
	denom, ok := ParseDenomLabel(r.Label)
	return denom, ok, nil
}

func (m *Mock) nextLocked(script []Result, call *int) Result {
	if len(script) == 0 {
		return Result{}
	}
	idx := *call
	if idx >= len(script) {
		idx = len(script) - 1
	}
	*call++
	return script[idx]
}
