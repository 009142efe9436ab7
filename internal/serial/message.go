package serial

// Kind tags a parsed inbound line per spec §3's SerialMessage variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindCoin
	KindSortDone
	KindAck
	KindDispenseDone
	KindErr
	KindReady
	KindOk
	KindHoming
)

// Message is the decoded form of one line-framed inbound message.
type Message struct {
	Kind  Kind
	Denom int
	Qty   int
	Echo  string
	Text  string
	Raw   string
}
