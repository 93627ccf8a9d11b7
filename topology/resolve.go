package topology

import (
	"cmp"

	"golang.org/x/exp/slices"

	"nyiyui.ca/hato/dcatc"
)

// SlotView is what the resolver needs to know about a slot's motion.
type SlotView struct {
	State dcatc.MotionState
	Duty  int
}

type Input struct {
	Sensors dcatc.Snapshot
	Slots   [dcatc.MaxSlots]SlotView
	// GraceExpired makes sensors that never reported count as clear.
	GraceExpired bool
}

// SlotPlan is the resolver's bookkeeping for one slot.
type SlotPlan struct {
	// Active is set at start-up for slots whose home sensor is occupied.
	Active bool
	// Stranded is set when the slot lost a contended stop. It is held until restart.
	Stranded bool
	// At is the stop the slot last came to rest at.
	At dcatc.StopID
	// To is the destination while Moving.
	To       dcatc.StopID
	Moving   bool
	Departed bool
	Heading  dcatc.Direction
	Command  dcatc.Command
	// Arrived is the arrival sequence number; 0 before the first arrival.
	Arrived uint64
}

// Plan is the result of one Resolve. Pass it back in as prev on the next tick.
type Plan struct {
	Started  bool
	Snapshot dcatc.Snapshot
	Slots    [dcatc.MaxSlots]SlotPlan
	Seq      uint64
	// Unattributed marks rising edges that no slot could be blamed for.
	Unattributed [dcatc.SensorCount]bool
}

// Mover returns the slot currently on a route.
func (p Plan) Mover() (dcatc.SlotID, bool) {
	for i, sp := range p.Slots {
		if sp.Moving {
			return dcatc.SlotID(i), true
		}
	}
	return 0, false
}

// Dispatched reports whether sp was sent on a new route since prev. A slot
// can arrive and leave again within one Resolve.
func (sp SlotPlan) Dispatched(prev SlotPlan) bool {
	return sp.Moving && (!prev.Moving || prev.At != sp.At || prev.To != sp.To)
}

func (p Plan) Commands() [dcatc.MaxSlots]dcatc.Command {
	var c [dcatc.MaxSlots]dcatc.Command
	for i, sp := range p.Slots {
		c[i] = sp.Command
	}
	return c
}

// Resolve decides every slot's command for this tick. It has no side effects.
func Resolve(y *Layout, in Input, prev Plan) Plan {
	snap := in.Sensors
	if in.GraceExpired {
		for i := range snap {
			if snap[i] == dcatc.SensorNotSeen {
				snap[i] = dcatc.SensorFalse
			}
		}
	}
	if !prev.Started {
		for i, sd := range y.Sensors {
			if sd.Nature != dcatc.NatureNotInUse && snap[i] == dcatc.SensorNotSeen {
				return Plan{Snapshot: snap}
			}
		}
		return y.start(snap)
	}

	p := prev
	p.Snapshot = snap
	p.Unattributed = [dcatc.SensorCount]bool{}
	for i := range y.Slots {
		y.arrive(&p, i, in.Slots[i])
	}
	for i, sd := range y.Sensors {
		id := dcatc.SensorID(i)
		if !(prev.Snapshot[i] != dcatc.SensorTrue && snap[i] == dcatc.SensorTrue) {
			continue
		}
		switch sd.Nature {
		case dcatc.NatureEnd, dcatc.NatureStop:
			if !y.claimStop(&p, id) {
				p.Unattributed[i] = true
			}
		case dcatc.NatureSlow:
			if !y.slowDown(&p, sd.Side) {
				p.Unattributed[i] = true
			}
		}
	}
	if !y.busy(&p) {
		y.dispatch(&p, snap)
	}
	for i := range p.Slots {
		if !p.Slots[i].Moving {
			p.Slots[i].Command = dcatc.CmdStop
		}
	}
	return p
}

func (y *Layout) start(snap dcatc.Snapshot) Plan {
	p := Plan{Started: true, Snapshot: snap}
	for i, sd := range y.Slots {
		p.Slots[i] = SlotPlan{
			Active:  snap[y.Stops[sd.Home].Sensor] == dcatc.SensorTrue,
			At:      sd.Home,
			To:      dcatc.NoStop,
			Heading: sd.Heading,
		}
	}
	for i := len(y.Slots); i < dcatc.MaxSlots; i++ {
		p.Slots[i] = SlotPlan{At: dcatc.NoStop, To: dcatc.NoStop}
	}
	return p
}

func (y *Layout) arrive(p *Plan, i int, v SlotView) {
	sp := &p.Slots[i]
	if !sp.Moving {
		return
	}
	if v.State != dcatc.StateStopDelay {
		sp.Departed = true
		return
	}
	if !sp.Departed || !sp.Command.Stopping() {
		return
	}
	if sp.Stranded {
		sp.Moving = false
		sp.Departed = false
		return
	}
	sp.At = sp.To
	sp.To = dcatc.NoStop
	sp.Moving = false
	sp.Departed = false
	if y.Terminus(sp.At) {
		sp.Heading = sp.Heading.Flip()
	}
	p.Seq++
	sp.Arrived = p.Seq
	sp.Command = dcatc.CmdStop
}

// claimStop gives the stop behind sensor id to the lowest-numbered slot
// heading for it. Other contenders are stopped where they are.
func (y *Layout) claimStop(p *Plan, id dcatc.SensorID) bool {
	k := y.StopOf(id)
	if k == dcatc.NoStop {
		return false
	}
	cmd := dcatc.CmdStop
	if y.Terminus(k) {
		cmd = dcatc.CmdStopAndReverse
	}
	claimed := false
	for i := range p.Slots {
		sp := &p.Slots[i]
		if !sp.Moving || !sp.Departed || sp.To != k || sp.Stranded {
			continue
		}
		if !claimed {
			sp.Command = cmd
			claimed = true
			continue
		}
		sp.Command = dcatc.CmdStop
		sp.Stranded = true
	}
	return claimed
}

// slowDown slows every slot running into side. It reports whether anything
// was moving to have caused the edge.
func (y *Layout) slowDown(p *Plan, side int) bool {
	towards := dcatc.Forward
	if side == 0 {
		towards = dcatc.Reverse
	}
	moving := false
	for i := range p.Slots {
		sp := &p.Slots[i]
		if !sp.Moving {
			continue
		}
		moving = true
		if sp.Command != dcatc.CmdRun || sp.Heading != towards || y.Stops[sp.To].X != side {
			continue
		}
		sp.Command = dcatc.CmdSlow
	}
	return moving
}

func (y *Layout) busy(p *Plan) bool {
	for _, sp := range p.Slots {
		if sp.Moving || sp.Stranded {
			return true
		}
	}
	return false
}

// dispatch starts at most one slot towards its next stop.
func (y *Layout) dispatch(p *Plan, snap dcatc.Snapshot) {
	order := make([]int, 0, dcatc.MaxSlots)
	for i := range y.Slots {
		if p.Slots[i].Active {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(p.Slots[a].Arrived, p.Slots[b].Arrived)
	})
	for _, i := range order {
		k, ok := y.nextStop(p, i, &snap)
		if !ok {
			continue
		}
		hypo := *p
		hs := &hypo.Slots[i]
		hs.At = k
		if y.Terminus(k) {
			hs.Heading = hs.Heading.Flip()
		}
		if !y.canMove(&hypo) {
			continue
		}
		sp := &p.Slots[i]
		sp.To = k
		sp.Moving = true
		sp.Departed = false
		sp.Command = dcatc.CmdRun
		return
	}
}

func (y *Layout) canMove(p *Plan) bool {
	for i := range y.Slots {
		if !p.Slots[i].Active {
			continue
		}
		if _, ok := y.nextStop(p, i, nil); ok {
			return true
		}
	}
	return false
}

// nextTier returns the nearest tier with stops beyond x in heading dir.
func (y *Layout) nextTier(x int, dir dcatc.Direction) (int, bool) {
	step := 1
	if dir == dcatc.Reverse {
		step = -1
	}
	for x += step; x >= 0 && x <= 2; x += step {
		if y.hasStopAt(x) {
			return x, true
		}
	}
	return 0, false
}

// nextStop returns the first free stop on the next tier in slot i's heading.
// A nil snap ignores sensors.
func (y *Layout) nextStop(p *Plan, i int, snap *dcatc.Snapshot) (dcatc.StopID, bool) {
	sp := p.Slots[i]
	x, ok := y.nextTier(y.Stops[sp.At].X, sp.Heading)
	if !ok {
		return dcatc.NoStop, false
	}
	for k, st := range y.Stops {
		if st.X != x {
			continue
		}
		if y.taken(p, i, dcatc.StopID(k)) {
			continue
		}
		if snap != nil && snap[st.Sensor] != dcatc.SensorFalse {
			continue
		}
		return dcatc.StopID(k), true
	}
	return dcatc.NoStop, false
}

func (y *Layout) taken(p *Plan, except int, k dcatc.StopID) bool {
	for j := range y.Slots {
		if j == except || !p.Slots[j].Active {
			continue
		}
		sp := p.Slots[j]
		if sp.At == k || (sp.Moving && sp.To == k) {
			return true
		}
	}
	return false
}
