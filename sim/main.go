// Package sim is a virtual track: locomotives move according to the duty
// cycles they are given and trip the sensors they pass.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/conn"
	"nyiyui.ca/hato/dcatc/topology"
)

const simTick = 100 * time.Millisecond

// Conf describes the track geometry. Lengths are in mm.
type Conf struct {
	Layout *topology.Layout
	// RouteLength is the distance between the sensors of adjacent stops.
	RouteLength float64
	// SlowBefore is how far before a stop its approach sensor is.
	SlowBefore float64
	LocoLength float64
	// Runout is how far past a stop sensor the track ends.
	Runout float64
	// Speed is mm/s per percent of duty cycle.
	Speed float64
	// MilliampsPerDuty is the line current per percent of duty cycle.
	MilliampsPerDuty int
	// Present marks the slots with a locomotive on the track.
	Present [dcatc.MaxSlots]bool
	// StartDelay is how long the track takes to report start of day.
	StartDelay time.Duration
}

// DefaultConf puts a locomotive in every slot of y.
func DefaultConf(y *topology.Layout) Conf {
	c := Conf{
		Layout:           y,
		RouteLength:      1200,
		SlowBefore:       400,
		LocoLength:       300,
		Runout:           400,
		Speed:            3,
		MilliampsPerDuty: 8,
		StartDelay:       500 * time.Millisecond,
	}
	for i := range y.Slots {
		c.Present[i] = true
	}
	return c
}

// Fault is something that would have gone wrong on a real track.
type Fault struct {
	Slot dcatc.SlotID
	Kind string
	Pos  float64
}

func (f Fault) String() string {
	return fmt.Sprintf("%s: %s at %.0fmm", f.Slot, f.Kind, f.Pos)
}

type journey struct {
	from, to dcatc.StopID
	dir      dcatc.Direction
}

type loco struct {
	present bool
	at      dcatc.StopID
	// onRoute is false until the first route; pos is then an offset past at's sensor.
	onRoute bool
	route   journey
	// pos is where the front is, in mm from the route's origin sensor.
	pos  float64
	duty int
	dir  dcatc.Direction
}

// Track implements motion.Driver and runtime.Points.
type Track struct {
	conf   Conf
	lock   sync.Mutex
	locos  [dcatc.MaxSlots]loco
	faults []Fault

	reported  [dcatc.SensorCount]bool
	mAReport  int
	reportedA bool
}

func New(conf Conf) *Track {
	t := &Track{conf: conf}
	for i, sd := range conf.Layout.Slots {
		t.locos[i] = loco{
			present: conf.Present[i],
			at:      sd.Home,
			pos:     conf.LocoLength / 2,
			dir:     sd.Heading,
		}
	}
	return t
}

func (t *Track) fault(slot dcatc.SlotID, kind string, pos float64) {
	f := Fault{Slot: slot, Kind: kind, Pos: pos}
	t.faults = append(t.faults, f)
	zap.S().Errorw("sim fault", "fault", f.String())
}

func (t *Track) Faults() []Fault {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]Fault(nil), t.faults...)
}

func (t *Track) SetDutyCycle(slot dcatc.SlotID, duty int, dir dcatc.Direction) {
	t.lock.Lock()
	defer t.lock.Unlock()
	l := &t.locos[slot]
	if !l.present {
		return
	}
	l.duty = duty
	l.dir = dir
}

func (t *Track) SetRoute(slot dcatc.SlotID, from, to dcatc.StopID) {
	t.lock.Lock()
	defer t.lock.Unlock()
	y := t.conf.Layout
	l := &t.locos[slot]
	if !l.present {
		t.fault(slot, "route for an empty slot", 0)
		return
	}
	offset := l.pos
	if l.onRoute {
		if l.route.to != from {
			t.fault(slot, fmt.Sprintf("route from %s but standing at %s", y.Stops[from].Name, y.Stops[l.route.to].Name), l.pos)
		}
		offset = l.pos - t.conf.RouteLength
		if y.Terminus(l.route.to) {
			offset = t.conf.LocoLength - offset
		}
	} else if l.at != from {
		t.fault(slot, fmt.Sprintf("route from %s but standing at %s", y.Stops[from].Name, y.Stops[l.at].Name), l.pos)
	}
	dir := dcatc.Forward
	if y.Stops[to].X < y.Stops[from].X {
		dir = dcatc.Reverse
	}
	l.at = from
	l.onRoute = true
	l.route = journey{from: from, to: to, dir: dir}
	l.pos = offset
	zap.S().Debugw("sim route",
		"slot", slot,
		"from", y.Stops[from].Name,
		"to", y.Stops[to].Name)
}

// Advance moves every locomotive by dt.
func (t *Track) Advance(dt time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i := range t.locos {
		l := &t.locos[i]
		if !l.present || l.duty == 0 {
			continue
		}
		slot := dcatc.SlotID(i)
		if !l.onRoute {
			t.fault(slot, "moving without a route", l.pos)
			l.duty = 0
			continue
		}
		if l.dir != l.route.dir {
			t.fault(slot, "moving the wrong way", l.pos)
			l.duty = 0
			continue
		}
		l.pos += float64(l.duty) * t.conf.Speed * dt.Seconds()
		if end := t.conf.RouteLength + t.conf.Runout; l.pos > end {
			t.fault(slot, "overrun", l.pos)
			l.pos = end
		}
	}
}

// sensorsOn returns the sensors along a journey and where they are.
func (t *Track) sensorsOn(j journey) map[dcatc.SensorID]float64 {
	y := t.conf.Layout
	res := map[dcatc.SensorID]float64{
		y.Stops[j.from].Sensor: 0,
		y.Stops[j.to].Sensor:   t.conf.RouteLength,
	}
	a, b := y.Stops[j.from].X, y.Stops[j.to].X
	for i, sd := range y.Sensors {
		if sd.Nature != dcatc.NatureSlow {
			continue
		}
		switch sd.Side {
		case b:
			res[dcatc.SensorID(i)] = t.conf.RouteLength - t.conf.SlowBefore
		case a:
			res[dcatc.SensorID(i)] = t.conf.SlowBefore
		}
	}
	return res
}

// Levels returns which sensors are covered by a locomotive.
func (t *Track) Levels() [dcatc.SensorCount]bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.levels()
}

func (t *Track) levels() [dcatc.SensorCount]bool {
	var res [dcatc.SensorCount]bool
	y := t.conf.Layout
	for _, l := range t.locos {
		if !l.present {
			continue
		}
		if !l.onRoute {
			if l.pos >= 0 && l.pos < t.conf.LocoLength {
				res[y.Stops[l.at].Sensor] = true
			}
			continue
		}
		for id, p := range t.sensorsOn(l.route) {
			if l.pos-t.conf.LocoLength <= p && p <= l.pos {
				res[id] = true
			}
		}
	}
	return res
}

func (t *Track) milliamps() int {
	sum := 0
	for _, l := range t.locos {
		if l.present {
			sum += l.duty
		}
	}
	return sum * t.conf.MilliampsPerDuty
}

// Report sends changed sensor levels and line current to sink. With all set
// every in-use sensor is sent.
func (t *Track) Report(sink conn.Sink, all bool) {
	t.lock.Lock()
	levels := t.levels()
	mA := t.milliamps()
	var changed []dcatc.SensorID
	for i, v := range levels {
		id := dcatc.SensorID(i)
		if t.conf.Layout.Sensors[i].Nature == dcatc.NatureNotInUse {
			continue
		}
		if all || t.reported[i] != v {
			changed = append(changed, id)
		}
	}
	t.reported = levels
	sendA := !t.reportedA || t.mAReport != mA
	t.mAReport = mA
	t.reportedA = true
	t.lock.Unlock()

	for _, id := range changed {
		sink.OnOccupancy(id, levels[id])
	}
	if sendA {
		sink.OnCurrent(mA)
	}
}

// Run reports start of day after the start delay and then moves the
// locomotives in real time until ctx is done.
func (t *Track) Run(ctx context.Context, sink conn.Sink) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.conf.StartDelay):
	}
	t.Report(sink, true)
	sink.OnHandshakeComplete()
	zap.S().Infow("sim start of day complete", "layout", t.conf.Layout.Name)

	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Advance(now.Sub(last))
			last = now
			t.Report(sink, false)
		}
	}
}
