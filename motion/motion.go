// Package motion ramps each locomotive's duty cycle according to the command
// it is given every tick.
package motion

import (
	"fmt"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/mathx"
)

// Driver applies a duty cycle to a locomotive's track line.
// It is called for every slot on every tick and must not block.
type Driver interface {
	SetDutyCycle(slot dcatc.SlotID, duty int, dir dcatc.Direction)
}

// Slot is the motion state of one locomotive.
type Slot struct {
	State dcatc.MotionState
	Duty  int
	// Delay is the number of ticks left in StateStopDelay.
	Delay int
	Dir   dcatc.Direction
	// Slow is set while cruising at (or decelerating to) DCMin.
	Slow bool
	// Stopping is set while decelerating to a standstill.
	Stopping bool
	// Reversing flips Dir once the stop completes.
	Reversing bool

	cmd dcatc.Command
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %d%% %s", s.State.Short(), s.Duty, s.Dir)
}

// Controller owns the motion state of every slot.
// It is not safe for concurrent use.
type Controller struct {
	slots          []Slot
	ticksPerSecond int
	d              Driver
}

// New returns a Controller with one slot per heading. Every slot starts
// stopped with a full stop delay.
func New(d Driver, ticksPerSecond int, cfg config.Config, headings []dcatc.Direction) *Controller {
	if len(headings) > dcatc.MaxSlots {
		panic(fmt.Sprintf("%d slots, max %d", len(headings), dcatc.MaxSlots))
	}
	if ticksPerSecond <= 0 {
		panic("ticksPerSecond must be positive")
	}
	c := &Controller{
		slots:          make([]Slot, len(headings)),
		ticksPerSecond: ticksPerSecond,
		d:              d,
	}
	for i, dir := range headings {
		c.slots[i] = Slot{
			State: dcatc.StateStopDelay,
			Delay: c.delayTicks(cfg),
			Dir:   dir,
		}
	}
	return c
}

func (c *Controller) delayTicks(cfg config.Config) int {
	return cfg.DelaySeconds * c.ticksPerSecond
}

func (c *Controller) Len() int { return len(c.slots) }

func (c *Controller) Slot(i dcatc.SlotID) Slot { return c.slots[i] }

// SetCommand sets the command sampled by the next Advance.
func (c *Controller) SetCommand(i dcatc.SlotID, cmd dcatc.Command) {
	c.slots[i].cmd = cmd
}

// Advance steps every slot once and drives the result.
func (c *Controller) Advance(cfg config.Config) {
	for i := range c.slots {
		c.slots[i].step(cfg, c.delayTicks(cfg))
		s := c.slots[i]
		c.d.SetDutyCycle(dcatc.SlotID(i), s.Duty, s.Dir)
	}
}

// Reclamp brings every slot within the bounds of cfg.
func (c *Controller) Reclamp(cfg config.Config) {
	for i := range c.slots {
		c.slots[i].reclamp(cfg, c.delayTicks(cfg))
	}
}

func (s *Slot) step(cfg config.Config, delayTicks int) {
	switch s.State {
	case dcatc.StateStopDelay:
		s.Duty = 0
		if s.Delay > 0 {
			s.Delay--
		}
		if s.Delay > 0 {
			return
		}
		switch s.cmd {
		case dcatc.CmdRun:
			s.State = dcatc.StateAccel
			s.Duty = cfg.DCMin
		case dcatc.CmdSlow:
			s.State = dcatc.StateSteady
			s.Duty = cfg.DCMin
			s.Slow = true
		}
	case dcatc.StateAccel:
		switch {
		case s.cmd.Stopping():
			s.beginStop()
			s.decel(cfg, delayTicks)
		case s.cmd == dcatc.CmdSlow:
			s.State = dcatc.StateDecel
			s.Slow = true
			s.decel(cfg, delayTicks)
		default:
			s.accel(cfg)
		}
	case dcatc.StateSteady:
		switch {
		case s.cmd.Stopping():
			s.beginStop()
			s.decel(cfg, delayTicks)
		case s.cmd == dcatc.CmdSlow && !s.Slow:
			s.State = dcatc.StateDecel
			s.Slow = true
			s.decel(cfg, delayTicks)
		case s.cmd == dcatc.CmdRun && s.Slow:
			s.State = dcatc.StateAccel
			s.Slow = false
			s.accel(cfg)
		case s.Slow:
			s.Duty = cfg.DCMin
		default:
			s.Duty = cfg.DCMax
		}
	case dcatc.StateDecel:
		switch {
		case s.cmd.Stopping():
			s.beginStop()
		case s.cmd == dcatc.CmdRun && !s.Stopping:
			s.State = dcatc.StateAccel
			s.Slow = false
			s.accel(cfg)
			return
		}
		s.decel(cfg, delayTicks)
	default:
		panic(fmt.Sprintf("unknown state %d", s.State))
	}
}

func (s *Slot) beginStop() {
	s.State = dcatc.StateDecel
	s.Stopping = true
	if s.cmd == dcatc.CmdStopAndReverse {
		s.Reversing = true
	}
}

func (s *Slot) accel(cfg config.Config) {
	if s.Duty >= cfg.DCMax {
		s.State = dcatc.StateSteady
		s.Duty = cfg.DCMax
		return
	}
	s.Duty = mathx.StepTowards(s.Duty, cfg.DCMax, cfg.RampStep)
}

// decel takes one step down. A slot already at its target changes state
// instead of stepping.
func (s *Slot) decel(cfg config.Config, delayTicks int) {
	if s.Stopping {
		if s.Duty == 0 {
			s.State = dcatc.StateStopDelay
			s.Delay = delayTicks
			if s.Reversing {
				s.Dir = s.Dir.Flip()
			}
			s.Stopping = false
			s.Reversing = false
			s.Slow = false
			return
		}
		s.Duty = mathx.StepTowards(s.Duty, 0, cfg.RampStep)
		return
	}
	if s.Duty <= cfg.DCMin {
		s.State = dcatc.StateSteady
		s.Duty = cfg.DCMin
		return
	}
	s.Duty = mathx.StepTowards(s.Duty, cfg.DCMin, cfg.RampStep)
}

func (s *Slot) reclamp(cfg config.Config, delayTicks int) {
	switch s.State {
	case dcatc.StateStopDelay:
		s.Duty = 0
		s.Delay = mathx.Min(s.Delay, delayTicks)
	case dcatc.StateAccel:
		s.Duty = mathx.Clamp(s.Duty, cfg.DCMin, cfg.DCMax)
	case dcatc.StateSteady:
		if s.Slow {
			s.Duty = cfg.DCMin
		} else {
			s.Duty = cfg.DCMax
		}
	case dcatc.StateDecel:
		if s.Stopping {
			s.Duty = mathx.Clamp(s.Duty, 0, cfg.DCMax)
		} else {
			s.Duty = mathx.Clamp(s.Duty, cfg.DCMin, cfg.DCMax)
		}
	}
}
