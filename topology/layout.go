// Package topology describes the supported track arrangements and decides,
// tick by tick, what each locomotive should do.
package topology

import (
	"errors"
	"fmt"

	"nyiyui.ca/hato/dcatc"
)

// DiagramLine is the first screen line used by the track diagram.
// The diagram takes this line and the next.
const DiagramLine = 6

// SensorDef is the fixed description of one sensor.
type SensorDef struct {
	Nature dcatc.Nature
	// Col and Line are where the sensor's glyph goes on the screen.
	Col, Line int
	// Side is the tier a SLOW sensor guards (0 or 2).
	Side int
}

// Stop is a place where a locomotive can come to rest.
type Stop struct {
	Name   string
	Sensor dcatc.SensorID
	// X is the tier: 0 is west, 1 is the middle, 2 is east.
	X int
}

// SlotDef is where a locomotive starts.
type SlotDef struct {
	Home    dcatc.StopID
	Heading dcatc.Direction
}

type Layout struct {
	// Name is used in flags and logs; Short is shown in the Route cell.
	Name    string
	Short   string
	Sensors [dcatc.SensorCount]SensorDef
	Stops   []Stop
	Slots   []SlotDef
	Diagram [2]string
}

func (y *Layout) String() string {
	return fmt.Sprintf("Layout(%s)", y.Name)
}

func (y *Layout) Natures() [dcatc.SensorCount]dcatc.Nature {
	var n [dcatc.SensorCount]dcatc.Nature
	for i, s := range y.Sensors {
		n[i] = s.Nature
	}
	return n
}

// StopOf returns the stop whose sensor is id, or dcatc.NoStop.
func (y *Layout) StopOf(id dcatc.SensorID) dcatc.StopID {
	for k, st := range y.Stops {
		if st.Sensor == id {
			return dcatc.StopID(k)
		}
	}
	return dcatc.NoStop
}

// Terminus reports whether a locomotive reverses after stopping at k.
func (y *Layout) Terminus(k dcatc.StopID) bool {
	return y.Sensors[y.Stops[k].Sensor].Nature == dcatc.NatureEnd
}

// Check reports mapping gaps in y.
func (y *Layout) Check() error {
	var errs []error
	if len(y.Slots) == 0 || len(y.Slots) > dcatc.MaxSlots {
		errs = append(errs, fmt.Errorf("%d slots (1..%d)", len(y.Slots), dcatc.MaxSlots))
	}
	for i, line := range y.Diagram {
		if len(line) != dcatc.ScreenCols {
			errs = append(errs, fmt.Errorf("diagram line %d is %d wide", i, len(line)))
		}
	}
	for i, sd := range y.Sensors {
		id := dcatc.SensorID(i)
		if sd.Nature == dcatc.NatureNotInUse {
			continue
		}
		if sd.Col < 0 || sd.Col >= dcatc.ScreenCols || sd.Line < DiagramLine || sd.Line >= dcatc.ScreenLines {
			errs = append(errs, fmt.Errorf("%s: glyph (%d, %d) outside diagram", id, sd.Col, sd.Line))
		}
		switch sd.Nature {
		case dcatc.NatureStop, dcatc.NatureEnd:
			n := 0
			for _, st := range y.Stops {
				if st.Sensor == id {
					n++
				}
			}
			if n != 1 {
				errs = append(errs, fmt.Errorf("%s: %s sensor used by %d stops", id, sd.Nature, n))
			}
		case dcatc.NatureSlow:
			if sd.Side != 0 && sd.Side != 2 {
				errs = append(errs, fmt.Errorf("%s: slow sensor on side %d", id, sd.Side))
			} else if !y.hasStopAt(sd.Side) {
				errs = append(errs, fmt.Errorf("%s: no stop on side %d", id, sd.Side))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown nature %s", id, sd.Nature))
		}
	}
	for k, st := range y.Stops {
		if !st.Sensor.Valid() {
			errs = append(errs, fmt.Errorf("stop %s: sensor %d out of range", st.Name, st.Sensor))
			continue
		}
		switch y.Sensors[st.Sensor].Nature {
		case dcatc.NatureEnd:
			if st.X != 0 && st.X != 2 {
				errs = append(errs, fmt.Errorf("stop %s: terminus on tier %d", st.Name, st.X))
			}
		case dcatc.NatureStop:
		default:
			errs = append(errs, fmt.Errorf("stop %s: %s sensor", st.Name, y.Sensors[st.Sensor].Nature))
		}
		if st.X < 0 || st.X > 2 {
			errs = append(errs, fmt.Errorf("stop %d: tier %d", k, st.X))
		}
	}
	homes := map[dcatc.StopID]int{}
	for i, sd := range y.Slots {
		if sd.Home < 0 || int(sd.Home) >= len(y.Stops) {
			errs = append(errs, fmt.Errorf("slot %d: home %d out of range", i, sd.Home))
			continue
		}
		if j, ok := homes[sd.Home]; ok {
			errs = append(errs, fmt.Errorf("slot %d: shares home with slot %d", i, j))
		}
		homes[sd.Home] = i
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("layout %s: %w", y.Name, err)
	}
	return nil
}

func (y *Layout) hasStopAt(x int) bool {
	for _, st := range y.Stops {
		if st.X == x {
			return true
		}
	}
	return false
}
