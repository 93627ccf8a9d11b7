package motion

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
)

type output struct {
	Duty int
	Dir  dcatc.Direction
}

type recorder struct {
	out [][dcatc.MaxSlots]output
	cur [dcatc.MaxSlots]output
	n   int
}

func (r *recorder) SetDutyCycle(slot dcatc.SlotID, duty int, dir dcatc.Direction) {
	r.cur[slot] = output{duty, dir}
	r.n++
}

func (r *recorder) flush() {
	r.out = append(r.out, r.cur)
}

var scenarioConfig = config.Config{DCMin: 20, DCMax: 80, RampStep: 5, DelaySeconds: 3}

func newScenario() (*Controller, *recorder) {
	r := new(recorder)
	return New(r, 1, scenarioConfig, []dcatc.Direction{dcatc.Forward}), r
}

func tick(c *Controller, r *recorder, cmd dcatc.Command) Slot {
	c.SetCommand(0, cmd)
	c.Advance(scenarioConfig)
	r.flush()
	return c.Slot(0)
}

func TestScenario(t *testing.T) {
	c, r := newScenario()
	var states []dcatc.MotionState
	var duties []int
	run := func(n int, cmd dcatc.Command) {
		for i := 0; i < n; i++ {
			s := tick(c, r, cmd)
			states = append(states, s.State)
			duties = append(duties, s.Duty)
		}
	}
	run(16, dcatc.CmdRun)
	wantDuties := []int{0, 0, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 80}
	if diff := cmp.Diff(wantDuties, duties); diff != "" {
		t.Fatalf("accel duties (-want +got):\n%s", diff)
	}
	if states[1] != dcatc.StateStopDelay || states[2] != dcatc.StateAccel || states[15] != dcatc.StateSteady {
		t.Fatalf("states %v", states)
	}
	if s := c.Slot(0); s.Delay != 0 {
		t.Fatalf("delay %d", s.Delay)
	}

	states, duties = nil, nil
	run(17, dcatc.CmdStopAndReverse)
	wantDuties = []int{75, 70, 65, 60, 55, 50, 45, 40, 35, 30, 25, 20, 15, 10, 5, 0, 0}
	if diff := cmp.Diff(wantDuties, duties); diff != "" {
		t.Fatalf("decel duties (-want +got):\n%s", diff)
	}
	for i, st := range states[:16] {
		if st != dcatc.StateDecel {
			t.Fatalf("tick %d: %s", i, st)
		}
	}
	s := c.Slot(0)
	if s.State != dcatc.StateStopDelay || s.Delay != 3 || s.Dir != dcatc.Reverse {
		t.Fatalf("after stop: %+v", s)
	}
	// the direction only changed once duty had been 0 for a tick
	for i, o := range r.out {
		if i == 0 {
			continue
		}
		if o[0].Dir != r.out[i-1][0].Dir && (o[0].Duty != 0 || r.out[i-1][0].Duty != 0) {
			t.Fatalf("tick %d: direction changed at duty %d", i, o[0].Duty)
		}
	}
}

func TestDriverCalledEveryTick(t *testing.T) {
	r := new(recorder)
	c := New(r, 10, scenarioConfig, []dcatc.Direction{dcatc.Forward, dcatc.Forward, dcatc.Reverse})
	for i := 0; i < 5; i++ {
		c.Advance(scenarioConfig)
	}
	if r.n != 15 {
		t.Fatalf("driver called %d times, want 15", r.n)
	}
}

func TestSetCommandIdempotent(t *testing.T) {
	a, ra := newScenario()
	b, rb := newScenario()
	for i := 0; i < 10; i++ {
		tick(a, ra, dcatc.CmdRun)
		b.SetCommand(0, dcatc.CmdRun)
		b.SetCommand(0, dcatc.CmdRun)
		tick(b, rb, dcatc.CmdRun)
	}
	if diff := cmp.Diff(ra.out, rb.out); diff != "" {
		t.Fatalf("(-once +twice):\n%s", diff)
	}
}

func TestSlow(t *testing.T) {
	c, r := newScenario()
	for i := 0; i < 16; i++ {
		tick(c, r, dcatc.CmdRun)
	}
	var duties []int
	for i := 0; i < 14; i++ {
		duties = append(duties, tick(c, r, dcatc.CmdSlow).Duty)
	}
	want := []int{75, 70, 65, 60, 55, 50, 45, 40, 35, 30, 25, 20, 20, 20}
	if diff := cmp.Diff(want, duties); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	s := c.Slot(0)
	if s.State != dcatc.StateSteady || !s.Slow {
		t.Fatalf("%+v", s)
	}
	// STOP from slow cruise
	duties = nil
	for i := 0; i < 6; i++ {
		duties = append(duties, tick(c, r, dcatc.CmdStop).Duty)
	}
	want = []int{15, 10, 5, 0, 0, 0}
	if diff := cmp.Diff(want, duties); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	s = c.Slot(0)
	if s.State != dcatc.StateStopDelay || s.Dir != dcatc.Forward {
		t.Fatalf("%+v", s)
	}
}

func TestSlowFromStopDelay(t *testing.T) {
	c, r := newScenario()
	for i := 0; i < 3; i++ {
		tick(c, r, dcatc.CmdSlow)
	}
	s := c.Slot(0)
	if s.State != dcatc.StateSteady || s.Duty != 20 || !s.Slow {
		t.Fatalf("%+v", s)
	}
}

func TestRunDoesNotAbortStop(t *testing.T) {
	c, r := newScenario()
	for i := 0; i < 16; i++ {
		tick(c, r, dcatc.CmdRun)
	}
	tick(c, r, dcatc.CmdStop)
	s := tick(c, r, dcatc.CmdRun)
	if s.State != dcatc.StateDecel || s.Duty != 70 {
		t.Fatalf("%+v", s)
	}
}

func TestAccelPreempted(t *testing.T) {
	c, r := newScenario()
	for i := 0; i < 5; i++ {
		tick(c, r, dcatc.CmdRun)
	}
	if s := c.Slot(0); s.State != dcatc.StateAccel || s.Duty != 30 {
		t.Fatalf("%+v", s)
	}
	s := tick(c, r, dcatc.CmdStop)
	if s.State != dcatc.StateDecel || s.Duty != 25 {
		t.Fatalf("%+v", s)
	}
}

func TestStopHolds(t *testing.T) {
	c, r := newScenario()
	for i := 0; i < 20; i++ {
		if s := tick(c, r, dcatc.CmdStop); s.State != dcatc.StateStopDelay || s.Duty != 0 {
			t.Fatalf("tick %d: %+v", i, s)
		}
	}
}

func TestReclamp(t *testing.T) {
	type testCase struct {
		slot Slot
		cfg  config.Config
		want Slot
	}
	narrow := config.Config{DCMin: 30, DCMax: 60, RampStep: 5, DelaySeconds: 1}
	cases := []testCase{
		{Slot{State: dcatc.StateAccel, Duty: 75}, narrow, Slot{State: dcatc.StateAccel, Duty: 60}},
		{Slot{State: dcatc.StateAccel, Duty: 20}, narrow, Slot{State: dcatc.StateAccel, Duty: 30}},
		{Slot{State: dcatc.StateSteady, Duty: 80}, narrow, Slot{State: dcatc.StateSteady, Duty: 60}},
		{Slot{State: dcatc.StateSteady, Duty: 20, Slow: true}, narrow, Slot{State: dcatc.StateSteady, Duty: 30, Slow: true}},
		{Slot{State: dcatc.StateDecel, Duty: 10, Stopping: true}, narrow, Slot{State: dcatc.StateDecel, Duty: 10, Stopping: true}},
		{Slot{State: dcatc.StateDecel, Duty: 70, Stopping: true}, narrow, Slot{State: dcatc.StateDecel, Duty: 60, Stopping: true}},
		{Slot{State: dcatc.StateStopDelay, Delay: 3}, narrow, Slot{State: dcatc.StateStopDelay, Delay: 1}},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			c := New(new(recorder), 1, scenarioConfig, []dcatc.Direction{dcatc.Forward})
			tc.want.Dir = tc.slot.Dir
			c.slots[0] = tc.slot
			c.Reclamp(tc.cfg)
			if diff := cmp.Diff(tc.want, c.Slot(0), cmp.AllowUnexported(Slot{})); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}
