// Package dcatc holds the vocabulary shared by the controller's packages.
package dcatc

import "fmt"

const (
	// SensorCount is the number of occupancy sensors on every topology.
	SensorCount = 6
	// CellCount is the number of display cells.
	CellCount = 8
	// MaxSlots is the number of locomotives a single section can hold.
	MaxSlots = 3
	// MaxDuty is the largest duty cycle (percent).
	MaxDuty = 100

	// ScreenCols and ScreenLines are the size of the character display.
	ScreenCols  = 21
	ScreenLines = 8
)

// SensorID references a single sensor (0 to SensorCount-1).
type SensorID int

func (s SensorID) String() string {
	return fmt.Sprintf("S%d", int(s))
}

// Letter is the board's name for this sensor ('A' for S0).
func (s SensorID) Letter() byte {
	return byte('A' + s)
}

func (s SensorID) Valid() bool {
	return s >= 0 && s < SensorCount
}

// SlotID references a locomotive slot (0 to MaxSlots-1).
type SlotID int

func (s SlotID) String() string {
	return fmt.Sprintf("L%d", int(s))
}

// StopID indexes into a layout's stops. NoStop means unset.
type StopID int

const NoStop StopID = -1

type Nature int

const (
	NatureNotInUse Nature = iota
	NatureStop
	NatureEnd
	NatureSlow
)

func (n Nature) String() string {
	switch n {
	case NatureNotInUse:
		return "NOT_IN_USE"
	case NatureStop:
		return "STOP"
	case NatureEnd:
		return "END"
	case NatureSlow:
		return "SLOW"
	default:
		return fmt.Sprintf("Nature(%d)", int(n))
	}
}

func (n Nature) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// SensorState is the last known state of a sensor.
// The zero value is SensorNotSeen.
type SensorState int32

const (
	SensorNotSeen SensorState = iota
	SensorFalse
	SensorTrue
)

func (s SensorState) String() string {
	switch s {
	case SensorNotSeen:
		return "NOT_SEEN"
	case SensorFalse:
		return "FALSE"
	case SensorTrue:
		return "TRUE"
	default:
		return fmt.Sprintf("SensorState(%d)", int(s))
	}
}

func (s SensorState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Glyph is the character shown on the track diagram.
func (s SensorState) Glyph() byte {
	switch s {
	case SensorTrue:
		return 'x'
	case SensorFalse:
		return '-'
	default:
		return '.'
	}
}

// Snapshot is the state of all sensors at one tick.
type Snapshot [SensorCount]SensorState

type MotionState int

const (
	StateStopDelay MotionState = iota
	StateAccel
	StateSteady
	StateDecel
)

func (s MotionState) String() string {
	switch s {
	case StateStopDelay:
		return "STOP_DELAY"
	case StateAccel:
		return "ACCEL"
	case StateSteady:
		return "STEADY"
	case StateDecel:
		return "DECEL"
	default:
		return fmt.Sprintf("MotionState(%d)", int(s))
	}
}

// Short is the 4-character form used on the display.
func (s MotionState) Short() string {
	switch s {
	case StateStopDelay:
		return "DLAY"
	case StateAccel:
		return "ACCL"
	case StateSteady:
		return "STDY"
	case StateDecel:
		return "DECL"
	default:
		return "????"
	}
}

func (s MotionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Command is what the resolver asks of a slot for one tick.
// The zero value is CmdStop.
type Command int

const (
	CmdStop Command = iota
	CmdRun
	CmdSlow
	CmdStopAndReverse
)

func (c Command) String() string {
	switch c {
	case CmdStop:
		return "STOP"
	case CmdRun:
		return "RUN"
	case CmdSlow:
		return "SLOW"
	case CmdStopAndReverse:
		return "STOP_AND_REVERSE"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

func (c Command) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Stopping reports whether c asks the slot to come to rest.
func (c Command) Stopping() bool {
	return c == CmdStop || c == CmdStopAndReverse
}

// Direction of travel. Forward heads east (towards X 2).
type Direction bool

const (
	Forward Direction = true
	Reverse Direction = false
)

func (d Direction) String() string {
	if d {
		return "forward"
	}
	return "reverse"
}

func (d Direction) Flip() Direction { return !d }

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "forward":
		*d = Forward
	case "reverse":
		*d = Reverse
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

func (n *Nature) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, n, []Nature{NatureNotInUse, NatureStop, NatureEnd, NatureSlow})
}

func (s *SensorState) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, s, []SensorState{SensorNotSeen, SensorFalse, SensorTrue})
}

func (s *MotionState) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, s, []MotionState{StateStopDelay, StateAccel, StateSteady, StateDecel})
}

func (c *Command) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, c, []Command{CmdStop, CmdRun, CmdSlow, CmdStopAndReverse})
}

func unmarshalEnum[T fmt.Stringer](b []byte, dst *T, values []T) error {
	for _, v := range values {
		if v.String() == string(b) {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("unknown %T %q", *dst, b)
}
