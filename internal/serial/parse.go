package serial

import (
	"strconv"
	"strings"
)

// parseLine decodes one inbound line per spec §4.B: split on ':', dispatch
// on the uppercased tag. Unknown lines and malformed numeric fields are
// never fatal — they come back as KindUnknown and the caller just logs.
func parseLine(line string) Message {
	raw := line
	parts := strings.Split(line, ":")
	tag := strings.ToUpper(strings.TrimSpace(parts[0]))

	switch tag {
	case "COIN":
		if len(parts) >= 2 {
			if denom, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				return Message{Kind: KindCoin, Denom: denom, Raw: raw}
			}
		}
	case "SORT_DONE":
		if len(parts) >= 2 {
			if denom, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				return Message{Kind: KindSortDone, Denom: denom, Raw: raw}
			}
		}
	case "ACK":
		return Message{Kind: KindAck, Echo: strings.Join(parts[1:], ":"), Raw: raw}
	case "DISPENSE_DONE":
		if len(parts) >= 3 {
			denom, errD := strconv.Atoi(strings.TrimSpace(parts[1]))
			qty, errQ := strconv.Atoi(strings.TrimSpace(parts[2]))
			if errD == nil && errQ == nil {
				return Message{Kind: KindDispenseDone, Denom: denom, Qty: qty, Raw: raw}
			}
		}
	case "ERR":
		return Message{Kind: KindErr, Text: strings.Join(parts[1:], ":"), Raw: raw}
	case "READY":
		return Message{Kind: KindReady, Raw: raw}
	case "HOMING":
		return Message{Kind: KindHoming, Raw: raw}
	}

	// Not a recognized tagged line. A firmware response to SORT/DISPENSE
	// may still just be free text containing "OK" or an error marker
	// rather than a tagged line (spec §6: "lines containing OK ... or
	// Error/ERR").
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "ERROR") || strings.Contains(upper, "ERR"):
		return Message{Kind: KindErr, Text: raw, Raw: raw}
	case strings.Contains(upper, "OK"):
		return Message{Kind: KindOk, Raw: raw}
	}

	return Message{Kind: KindUnknown, Raw: raw}
}
