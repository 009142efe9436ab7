// Package classifier defines the ClassifierPort capability (spec §4.I):
// authenticity and denomination classification for one captured bill
// image. The actual camera capture and model inference are out of core
// scope (spec §1) — this package only defines the contract and a
// deterministic mock for tests.
package classifier

import "strconv"

// ConfidenceThreshold is the minimum confidence (spec §6) at which either
// capability's result is treated as positive. Below it, the result is a
// negative: authenticity false, denomination unknown.
const ConfidenceThreshold = 0.8

// Result is the raw label+confidence pair a model call returns.
type Result struct {
	Label      string
	Confidence float64
}

// Port is the two black-box capabilities the bill acceptor drives.
type Port interface {
	// Authenticate runs the UV-light authenticity model and returns true
	// only if the label is "genuine" at or above ConfidenceThreshold.
	Authenticate() (bool, error)

	// ClassifyDenomination runs the white-light denomination model and
	// returns the recognized denom, or (0, false) if confidence is below
	// threshold or the label doesn't parse to an integer (see
	// ParseDenomLabel). The parsed value is not checked against the known
	// denominations; the caller compares it with the required one.
	ClassifyDenomination() (denom int, ok bool, err error)
}

// ParseDenomLabel extracts a denomination from a model label, falling
// back to a digits-only scan when the label isn't a bare integer (e.g.
// "php_100" or "100_genuine"), mirroring pi_bill_handler.py's tolerance
// for whatever string the denomination model happens to emit.
func ParseDenomLabel(label string) (int, bool) {
	if v, err := strconv.Atoi(label); err == nil {
		return v, true
	}
	digits := make([]byte, 0, len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
		} else if len(digits) > 0 {
			break
		}
	}
	if len(digits) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, false
	}
	return v, true
}
