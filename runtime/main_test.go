package runtime

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/sensor"
	"nyiyui.ca/hato/dcatc/topology"
)

type output struct {
	Duty int
	Dir  dcatc.Direction
}

type fakeDriver struct {
	out [dcatc.MaxSlots]output
}

func (d *fakeDriver) SetDutyCycle(slot dcatc.SlotID, duty int, dir dcatc.Direction) {
	d.out[slot] = output{duty, dir}
}

type route struct {
	Slot     dcatc.SlotID
	From, To dcatc.StopID
}

type fakePoints struct {
	routes []route
}

func (p *fakePoints) SetRoute(slot dcatc.SlotID, from, to dcatc.StopID) {
	p.routes = append(p.routes, route{slot, from, to})
}

type saves []config.Config

func (s *saves) Save(c config.Config) { *s = append(*s, c) }

type fixture struct {
	loop   *Loop
	reg    *sensor.Registry
	store  *config.Store
	driver *fakeDriver
	points *fakePoints
	saved  *saves
}

func newFixture(t *testing.T, y *topology.Layout, cfg config.Config, grace time.Duration) *fixture {
	f := &fixture{
		reg:    sensor.NewRegistry(y.Natures()),
		driver: new(fakeDriver),
		points: new(fakePoints),
		saved:  new(saves),
	}
	var err error
	f.store, err = config.NewStore(cfg, f.saved)
	if err != nil {
		t.Fatal(err)
	}
	f.loop, err = New(Conf{
		Layout:         y,
		TickPeriod:     DefaultTickPeriod,
		HandshakeGrace: grace,
		Registry:       f.reg,
		Store:          f.store,
		Driver:         f.driver,
		Points:         f.points,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.loop.Close)
	return f
}

func (f *fixture) stepUntil(t *testing.T, max int, cond func(s Snapshot) bool) Snapshot {
	t.Helper()
	for i := 0; i < max; i++ {
		f.loop.Step()
		if s := f.loop.Latest(); cond(s) {
			return s
		}
	}
	t.Fatalf("condition not met in %d ticks: %+v", max, f.loop.Latest())
	return Snapshot{}
}

func TestConfCheck(t *testing.T) {
	store, err := config.NewStore(config.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	good := Conf{
		Layout:     topology.Loop,
		TickPeriod: DefaultTickPeriod,
		Registry:   sensor.NewRegistry(topology.Loop.Natures()),
		Store:      store,
		Driver:     new(fakeDriver),
	}
	if err := good.Check(); err != nil {
		t.Fatal(err)
	}
	bad := []func(c *Conf){
		func(c *Conf) { c.TickPeriod = 300 * time.Millisecond },
		func(c *Conf) { c.Registry = sensor.NewRegistry(topology.OneToOne.Natures()) },
		func(c *Conf) { c.Driver = nil },
		func(c *Conf) { c.Store = nil },
		func(c *Conf) { c.HandshakeGrace = -time.Second },
	}
	for i, mutate := range bad {
		c := good
		mutate(&c)
		if err := c.Check(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestHoldUntilGrace(t *testing.T) {
	f := newFixture(t, topology.OneToOne, config.Default(), time.Second)
	f.reg.OnOccupancy(0, true)
	for i := 0; i < 10; i++ {
		f.loop.Step()
		s := f.loop.Latest()
		if s.Started {
			t.Fatalf("tick %d: started before grace expired", s.Tick)
		}
		if got := s.Screen[5][17:]; got != "WAIT" {
			t.Fatalf("state cell %q", got)
		}
		if f.driver.out[0].Duty != 0 {
			t.Fatalf("duty %d while holding", f.driver.out[0].Duty)
		}
	}
	f.loop.Step()
	if !f.loop.Latest().Started {
		t.Fatal("not started after grace")
	}
}

func TestNotSeenShownAfterGrace(t *testing.T) {
	f := newFixture(t, topology.OneToOne, config.Default(), 0)
	s := f.stepUntil(t, 3, func(s Snapshot) bool { return s.Started })
	// the resolver treats silent sensors as clear, the display does not
	if got := s.Screen[7]; got != ".___._____._____.___." {
		t.Fatalf("line 7 %q", got)
	}
	if diff := cmp.Diff(dcatc.Snapshot{}, s.Sensors); diff != "" {
		t.Fatalf("sensors (-want +got):\n%s", diff)
	}

	f.reg.OnOccupancy(1, false)
	f.loop.Step()
	s = f.loop.Latest()
	if s.Sensors[1] != dcatc.SensorFalse || s.Sensors[0] != dcatc.SensorNotSeen {
		t.Fatalf("sensors %v", s.Sensors)
	}
}

func TestOneToOneJourney(t *testing.T) {
	cfg := config.Config{DCMin: 20, DCMax: 80, RampStep: 5, DelaySeconds: 0}
	f := newFixture(t, topology.OneToOne, cfg, 0)
	f.reg.OnOccupancy(0, true)
	f.reg.OnHandshakeComplete()

	f.loop.Step()
	f.loop.Step()
	if got := f.driver.out[0]; got != (output{20, dcatc.Forward}) {
		t.Fatalf("output %+v", got)
	}
	f.reg.OnOccupancy(0, false)
	s := f.stepUntil(t, 30, func(s Snapshot) bool { return s.Slots[0].State == dcatc.StateSteady })
	if s.Slots[0].Duty != 80 || s.Slots[0].To != "M" {
		t.Fatalf("%+v", s.Slots[0])
	}
	if got := s.Screen[4]; got != "DCcur   80 Route >M  " {
		t.Fatalf("line 4 %q", got)
	}

	f.reg.OnOccupancy(2, true)
	s = f.stepUntil(t, 40, func(s Snapshot) bool { return s.Slots[0].At == "M" })
	if !s.Slots[0].Moving || s.Slots[0].To != "E" {
		t.Fatalf("not sent on to E: %+v", s.Slots[0])
	}
	if f.driver.out[0].Dir != dcatc.Forward {
		t.Fatal("reversed at a halt")
	}
	want := []route{{0, 0, 1}, {0, 1, 2}}
	if diff := cmp.Diff(want, f.points.routes); diff != "" {
		t.Fatalf("routes (-want +got):\n%s", diff)
	}
}

func TestEncoderEdit(t *testing.T) {
	f := newFixture(t, topology.OneToOne, config.Default(), 0)
	f.loop.Rotate(2)
	f.loop.Press()
	f.loop.Rotate(-1)
	f.loop.Step()
	if got := f.loop.Latest().Screen[3]; got != "DCmax*  79 Dly s    3" {
		t.Fatalf("line 3 %q", got)
	}
	if len(*f.saved) != 0 {
		t.Fatal("saved while editing")
	}
	f.loop.Press()
	f.loop.Step()
	if got := f.loop.Latest().Screen[3]; got != "DCmax>  79 Dly s    3" {
		t.Fatalf("line 3 %q", got)
	}
	want := config.Default()
	want.DCMax = 79
	if diff := cmp.Diff(saves{want}, *f.saved); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestRejectedEdit(t *testing.T) {
	cfg := config.Config{DCMin: 79, DCMax: 80, RampStep: 5, DelaySeconds: 3}
	f := newFixture(t, topology.OneToOne, cfg, 0)
	f.loop.Press()
	f.loop.Rotate(1)
	f.loop.Step()
	if got := f.store.Get(); got != cfg {
		t.Fatalf("config changed to %+v", got)
	}
	if got := f.loop.Latest().Screen[2][6:10]; got != "  79" {
		t.Fatalf("DCmin shows %q", got)
	}
}

func TestOccupancyChanges(t *testing.T) {
	f := newFixture(t, topology.OneToOne, config.Default(), 0)
	ch := make(chan OccupancyChange, 16)
	f.loop.Occupancy.Subscribe("test", ch)
	f.reg.OnOccupancy(0, true)
	f.reg.OnHandshakeComplete()
	f.loop.Step()
	f.loop.Step()
	f.reg.OnOccupancy(1, true)
	f.loop.Step()
	want := []OccupancyChange{
		{1, 0, dcatc.SensorTrue},
		{1, 1, dcatc.SensorFalse},
		{1, 2, dcatc.SensorFalse},
		{1, 3, dcatc.SensorFalse},
		{1, 4, dcatc.SensorFalse},
		{3, 1, dcatc.SensorTrue},
	}
	var got []OccupancyChange
	for len(got) < len(want) {
		select {
		case c := <-ch:
			got = append(got, c)
		case <-time.After(time.Second):
			t.Fatalf("timed out; got %+v", got)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	store, err := config.NewStore(config.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := sensor.NewRegistry(topology.Loop.Natures())
	reg.OnOccupancy(0, true)
	reg.OnHandshakeComplete()
	l, err := New(Conf{
		Layout:     topology.Loop,
		TickPeriod: DefaultTickPeriod,
		Registry:   reg,
		Store:      store,
		Driver:     new(fakeDriver),
		Trace:      &buf,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	for i := 0; i < 3; i++ {
		l.Step()
	}
	records, err := ReadTrace(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("%d records", len(records))
	}
	for i, r := range records {
		if r.Tick != uint64(i+1) || r.Snapshot.RunID != l.RunID() {
			t.Fatalf("record %d: tick %d run %s", i, r.Tick, r.Snapshot.RunID)
		}
	}
	last := records[2]
	if m, ok := last.Plan.Mover(); !ok || m != 0 || last.Snapshot.Slots[0].To != "T" {
		t.Fatalf("mover %v %v to %s", m, ok, last.Snapshot.Slots[0].To)
	}
}
