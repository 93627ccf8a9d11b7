// Package runtime runs the fixed-tick control loop tying sensors, the
// resolver, motion control and the display together.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/display"
	"nyiyui.ca/hato/dcatc/motion"
	"nyiyui.ca/hato/dcatc/notify"
	"nyiyui.ca/hato/dcatc/panel"
	"nyiyui.ca/hato/dcatc/sensor"
	"nyiyui.ca/hato/dcatc/topology"
)

// DefaultTickPeriod is the control loop period. Stop delays are counted in
// ticks of this length.
const DefaultTickPeriod = 100 * time.Millisecond

const (
	eventQueueDepth  = 16
	notifyQueueDepth = 64
)

// Points sets the turnouts for a journey. It must not block.
type Points interface {
	SetRoute(slot dcatc.SlotID, from, to dcatc.StopID)
}

type Conf struct {
	Layout         *topology.Layout
	TickPeriod     time.Duration
	HandshakeGrace time.Duration
	Registry       *sensor.Registry
	Store          *config.Store
	Driver         motion.Driver
	// Points is optional.
	Points Points
	// Trace, if not nil, receives a JSON record per tick.
	Trace io.Writer
}

type encoderEvent struct {
	rotate int
	press  bool
}

type Loop struct {
	conf    Conf
	runID   uuid.UUID
	motion  *motion.Controller
	editor  *panel.Editor
	buf     *display.Buffer
	display *display.Adapter
	events  chan encoderEvent

	plan topology.Plan
	// sensors is the registry as read this tick; plan.Snapshot has NOT_SEEN
	// cleared after grace.
	sensors    dcatc.Snapshot
	tick       uint64
	graceTicks uint64
	trace      *tracer

	// Snapshots receives one Snapshot per tick.
	Snapshots *notify.Multiplexer[Snapshot]
	// Occupancy receives every sensor state change.
	Occupancy *notify.Multiplexer[OccupancyChange]

	latestLock sync.Mutex
	latest     Snapshot
}

// Check reports configuration errors before anything runs.
func (c Conf) Check() error {
	var errs []error
	if c.Layout == nil {
		return errors.New("no layout")
	}
	if err := c.Layout.Check(); err != nil {
		errs = append(errs, err)
	}
	if c.TickPeriod <= 0 || time.Second%c.TickPeriod != 0 {
		errs = append(errs, fmt.Errorf("tick period %s must divide 1s", c.TickPeriod))
	}
	if c.HandshakeGrace < 0 {
		errs = append(errs, fmt.Errorf("handshake grace %s is negative", c.HandshakeGrace))
	}
	if c.Registry == nil {
		errs = append(errs, errors.New("no sensor registry"))
	} else if c.Registry.Natures() != c.Layout.Natures() {
		errs = append(errs, fmt.Errorf("sensor registry does not match %s", c.Layout.Name))
	}
	if c.Store == nil {
		errs = append(errs, errors.New("no config store"))
	}
	if c.Driver == nil {
		errs = append(errs, errors.New("no driver"))
	}
	return errors.Join(errs...)
}

func New(conf Conf) (*Loop, error) {
	if err := conf.Check(); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	headings := make([]dcatc.Direction, len(conf.Layout.Slots))
	for i, sd := range conf.Layout.Slots {
		headings[i] = sd.Heading
	}
	buf := display.NewBuffer()
	l := &Loop{
		conf:       conf,
		runID:      uuid.New(),
		motion:     motion.New(conf.Driver, int(time.Second/conf.TickPeriod), conf.Store.Get(), headings),
		editor:     panel.NewEditor(conf.Store),
		buf:        buf,
		display:    display.NewAdapter(buf, conf.Layout),
		events:     make(chan encoderEvent, eventQueueDepth),
		graceTicks: uint64(conf.HandshakeGrace / conf.TickPeriod),
		Snapshots:  notify.NewMultiplexer[Snapshot]("snapshots", notifyQueueDepth),
		Occupancy:  notify.NewMultiplexer[OccupancyChange]("occupancy", notifyQueueDepth),
	}
	for i := range l.sensors {
		l.sensors[i] = dcatc.SensorNotSeen
	}
	if conf.Trace != nil {
		l.trace = newTracer(conf.Trace)
	}
	return l, nil
}

func (l *Loop) RunID() uuid.UUID { return l.runID }

// Rotate queues an encoder rotation for the next tick.
func (l *Loop) Rotate(delta int) { l.enqueue(encoderEvent{rotate: delta}) }

// Press queues an encoder press for the next tick.
func (l *Loop) Press() { l.enqueue(encoderEvent{press: true}) }

func (l *Loop) enqueue(e encoderEvent) {
	select {
	case l.events <- e:
	default:
		zap.S().Warnw("encoder queue full, dropping event", "event", e)
	}
}

// Run steps the loop every tick period until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.conf.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Step()
		}
	}
}

// Close stops delivering snapshots. Step must not be called afterwards.
func (l *Loop) Close() {
	l.Snapshots.Close()
	l.Occupancy.Close()
}

// Latest returns the most recent Snapshot.
func (l *Loop) Latest() Snapshot {
	l.latestLock.Lock()
	defer l.latestLock.Unlock()
	return l.latest
}

// Step runs exactly one tick.
func (l *Loop) Step() {
	l.tick++
	l.drainEvents()
	cfg := l.conf.Store.Get()

	sensors := l.conf.Registry.Snapshot()
	for i, s := range sensors {
		if s != l.sensors[i] {
			l.Occupancy.Send(OccupancyChange{
				Tick:   l.tick,
				Sensor: dcatc.SensorID(i),
				State:  s,
			})
		}
	}
	l.sensors = sensors

	in := topology.Input{
		Sensors:      sensors,
		GraceExpired: l.tick > l.graceTicks,
	}
	for i := 0; i < l.motion.Len(); i++ {
		s := l.motion.Slot(dcatc.SlotID(i))
		in.Slots[i] = topology.SlotView{State: s.State, Duty: s.Duty}
	}
	prev := l.plan
	l.plan = topology.Resolve(l.conf.Layout, in, prev)
	l.logPlan(prev, l.plan)

	for i := 0; i < l.motion.Len(); i++ {
		sp := l.plan.Slots[i]
		if sp.Dispatched(prev.Slots[i]) && l.conf.Points != nil {
			l.conf.Points.SetRoute(dcatc.SlotID(i), sp.At, sp.To)
		}
		l.motion.SetCommand(dcatc.SlotID(i), sp.Command)
	}
	l.motion.Advance(cfg)

	l.display.Render(l.view(cfg))
	snap := l.snapshot(cfg)
	l.latestLock.Lock()
	l.latest = snap
	l.latestLock.Unlock()
	l.Snapshots.Send(snap)
	if l.trace != nil {
		l.trace.record(l.tick, l.plan, snap)
	}
}

func (l *Loop) drainEvents() {
	for {
		select {
		case e := <-l.events:
			l.apply(e)
		default:
			return
		}
	}
}

func (l *Loop) apply(e encoderEvent) {
	if e.press {
		l.editor.Press()
		return
	}
	changed, err := l.editor.Rotate(e.rotate)
	if err != nil {
		zap.S().Infow("edit rejected", "cell", l.editor.Selected(), "err", err)
		return
	}
	if changed {
		l.motion.Reclamp(l.conf.Store.Get())
	}
}

// focus is the slot shown in the DCcur and State cells.
func (l *Loop) focus() (dcatc.SlotID, bool) {
	if m, ok := l.plan.Mover(); ok {
		return m, true
	}
	for i := 0; i < l.motion.Len(); i++ {
		if l.plan.Slots[i].Active {
			return dcatc.SlotID(i), true
		}
	}
	return 0, false
}

func (l *Loop) view(cfg config.Config) display.View {
	v := display.View{
		Config:    cfg,
		Milliamps: l.conf.Registry.Milliamps(),
		Sensors:   l.sensors,
		Selected:  l.editor.Selected(),
		Editing:   l.editor.Editing(),
		Route:     l.conf.Layout.Short,
	}
	switch f, ok := l.focus(); {
	case !l.plan.Started:
		v.State = "WAIT"
	case !ok:
		v.State = "IDLE"
	default:
		s := l.motion.Slot(f)
		v.DCCur = s.Duty
		v.State = s.State.Short()
		if sp := l.plan.Slots[f]; sp.Moving {
			v.Route = ">" + l.conf.Layout.Stops[sp.To].Name
		}
	}
	return v
}

func (l *Loop) logPlan(prev, cur topology.Plan) {
	y := l.conf.Layout
	if cur.Started && !prev.Started {
		active := make([]bool, len(y.Slots))
		for i := range y.Slots {
			active[i] = cur.Slots[i].Active
		}
		zap.S().Infow("started", "tick", l.tick, "active", active)
	}
	for i := range y.Slots {
		p, c := prev.Slots[i], cur.Slots[i]
		if c.Arrived != p.Arrived {
			zap.S().Infow("arrived",
				"slot", dcatc.SlotID(i),
				"at", y.Stops[c.At].Name,
				"seq", c.Arrived)
		}
		if c.Dispatched(p) {
			zap.S().Infow("dispatch",
				"slot", dcatc.SlotID(i),
				"from", y.Stops[c.At].Name,
				"to", y.Stops[c.To].Name)
		}
		if c.Stranded && !p.Stranded {
			zap.S().Errorw("stranded; restart after moving the locomotive to a stop",
				"slot", dcatc.SlotID(i))
		}
	}
	for i, u := range cur.Unattributed {
		if u {
			zap.S().Warnw("unattributed edge", "sensor", dcatc.SensorID(i), "tick", l.tick)
		}
	}
}
