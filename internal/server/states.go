package server

// connState is where a connection is in its single request/response cycle.
type connState uint8

const (
	stateAccepted connState = iota
	stateReadingHeaders
	stateReadingBody
	stateDecodingBody
	stateResponding
	stateClosed
)

var stateNames = [...]string{
	stateAccepted:       "accepted",
	stateReadingHeaders: "reading headers",
	stateReadingBody:    "reading body",
	stateDecodingBody:   "decoding body",
	stateResponding:     "responding",
	stateClosed:         "closed",
}

func (s connState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
