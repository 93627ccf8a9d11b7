package conn

import (
	"fmt"

	"nyiyui.ca/hato/dcatc"
)

// ReqLine sets the power of one track line.
type ReqLine struct {
	Line      byte
	Brake     bool
	Direction dcatc.Direction
	Power     uint8
}

func lineOf(slot dcatc.SlotID) byte { return byte('A' + slot) }

func (r ReqLine) String() string {
	var send [7]byte
	// CAAN000
	// C - change
	//  A - line
	//   A - direction
	//    N - brake
	//     000 - power
	send[0] = 'C'
	send[1] = r.Line
	if r.Direction == dcatc.Forward {
		send[2] = 'A'
	} else {
		send[2] = 'B'
	}
	if r.Brake {
		send[3] = 'Y'
	} else {
		send[3] = 'N'
	}
	copy(send[4:], fmt.Sprintf("%03d", r.Power))
	return string(send[:])
}

// ReqRoute sets the points for a line's journey between two stops.
type ReqRoute struct {
	Line     byte
	From, To dcatc.StopID
}

func (r ReqRoute) String() string {
	return fmt.Sprintf("R%c%d%d", r.Line, r.From, r.To)
}
