// Package sensor keeps the last known state of each occupancy sensor.
package sensor

import (
	"fmt"

	"go.uber.org/atomic"

	"nyiyui.ca/hato/dcatc"
)

// Registry is written by the bus goroutine and read by the control loop.
// Each sensor is stored independently; a Snapshot is not atomic across sensors.
type Registry struct {
	natures    [dcatc.SensorCount]dcatc.Nature
	states     [dcatc.SensorCount]atomic.Int32
	handshaken atomic.Bool
	milliamps  atomic.Int32
}

// NewRegistry returns a Registry with every sensor NOT_SEEN.
func NewRegistry(natures [dcatc.SensorCount]dcatc.Nature) *Registry {
	return &Registry{natures: natures}
}

// Update stores the state of id. Updates to sensors not in use are dropped.
func (r *Registry) Update(id dcatc.SensorID, s dcatc.SensorState) {
	if !id.Valid() {
		panic(fmt.Sprintf("sensor %d out of range", id))
	}
	if !r.IsRelevant(id) {
		return
	}
	r.states[id].Store(int32(s))
}

// OnOccupancy is called by the bus when a sensor reports.
func (r *Registry) OnOccupancy(id dcatc.SensorID, occupied bool) {
	if occupied {
		r.Update(id, dcatc.SensorTrue)
	} else {
		r.Update(id, dcatc.SensorFalse)
	}
}

// OnHandshakeComplete marks every sensor that has not reported as clear.
func (r *Registry) OnHandshakeComplete() {
	for i := range r.states {
		if r.IsRelevant(dcatc.SensorID(i)) {
			r.states[i].CompareAndSwap(int32(dcatc.SensorNotSeen), int32(dcatc.SensorFalse))
		}
	}
	r.handshaken.Store(true)
}

func (r *Registry) Handshaken() bool { return r.handshaken.Load() }

// OnCurrent stores the line current reported by the board.
func (r *Registry) OnCurrent(mA int) { r.milliamps.Store(int32(mA)) }

func (r *Registry) Milliamps() int { return int(r.milliamps.Load()) }

func (r *Registry) Read(id dcatc.SensorID) dcatc.SensorState {
	return dcatc.SensorState(r.states[id].Load())
}

func (r *Registry) Nature(id dcatc.SensorID) dcatc.Nature { return r.natures[id] }

func (r *Registry) Natures() [dcatc.SensorCount]dcatc.Nature { return r.natures }

func (r *Registry) IsRelevant(id dcatc.SensorID) bool {
	return r.natures[id] != dcatc.NatureNotInUse
}

func (r *Registry) Snapshot() dcatc.Snapshot {
	var s dcatc.Snapshot
	for i := range s {
		s[i] = r.Read(dcatc.SensorID(i))
	}
	return s
}
