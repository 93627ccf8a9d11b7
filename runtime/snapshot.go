package runtime

import (
	"time"

	"github.com/google/uuid"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
)

// SlotSnapshot is one locomotive as of a tick.
type SlotSnapshot struct {
	Active   bool              `json:"active"`
	Moving   bool              `json:"moving"`
	Stranded bool              `json:"stranded"`
	State    dcatc.MotionState `json:"state"`
	Duty     int               `json:"duty"`
	Dir      dcatc.Direction   `json:"dir"`
	Command  dcatc.Command     `json:"command"`
	At       string            `json:"at"`
	To       string            `json:"to,omitempty"`
}

// Snapshot is the externally visible state after a tick.
type Snapshot struct {
	RunID     uuid.UUID      `json:"run-id"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Layout    string         `json:"layout"`
	Started   bool           `json:"started"`
	Sensors   dcatc.Snapshot `json:"sensors"`
	Slots     []SlotSnapshot `json:"slots"`
	Config    config.Config  `json:"config"`
	Milliamps int            `json:"milliamps"`
	Screen    []string       `json:"screen"`
}

// OccupancyChange is a sensor changing state between two ticks.
type OccupancyChange struct {
	Tick   uint64            `json:"tick"`
	Sensor dcatc.SensorID    `json:"sensor"`
	State  dcatc.SensorState `json:"state"`
}

func (l *Loop) snapshot(cfg config.Config) Snapshot {
	y := l.conf.Layout
	s := Snapshot{
		RunID:     l.runID,
		Tick:      l.tick,
		Time:      time.Now(),
		Layout:    y.Name,
		Started:   l.plan.Started,
		Sensors:   l.sensors,
		Slots:     make([]SlotSnapshot, l.motion.Len()),
		Config:    cfg,
		Milliamps: l.conf.Registry.Milliamps(),
		Screen:    l.buf.Lines(),
	}
	for i := range s.Slots {
		sp := l.plan.Slots[i]
		m := l.motion.Slot(dcatc.SlotID(i))
		ss := SlotSnapshot{
			Active:   sp.Active,
			Moving:   sp.Moving,
			Stranded: sp.Stranded,
			State:    m.State,
			Duty:     m.Duty,
			Dir:      m.Dir,
			Command:  sp.Command,
		}
		if l.plan.Started {
			ss.At = y.Stops[sp.At].Name
		}
		if sp.Moving {
			ss.To = y.Stops[sp.To].Name
		}
		s.Slots[i] = ss
	}
	return s
}
