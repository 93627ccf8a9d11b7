// Package ui shows the controller screen in a terminal and turns keys into
// encoder events.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/notify"
	"nyiyui.ca/hato/dcatc/runtime"
)

// Encoder receives decoded rotary encoder events.
type Encoder interface {
	Rotate(delta int)
	Press()
}

type action struct {
	rotate int
	press  bool
	quit   bool
}

// keyAction maps a termui event id to what the encoder would do.
func keyAction(id string) (action, bool) {
	switch id {
	case "<Up>", "k":
		return action{rotate: 1}, true
	case "<Down>", "j":
		return action{rotate: -1}, true
	case "<Enter>", "<Space>":
		return action{press: true}, true
	case "q", "<C-c>":
		return action{quit: true}, true
	}
	return action{}, false
}

type Panel struct {
	enc       Encoder
	snapshots *notify.Multiplexer[runtime.Snapshot]
	screen    *widgets.Paragraph
	status    *widgets.Paragraph
}

func NewPanel(enc Encoder, snapshots *notify.Multiplexer[runtime.Snapshot]) *Panel {
	p := &Panel{
		enc:       enc,
		snapshots: snapshots,
		screen:    widgets.NewParagraph(),
		status:    widgets.NewParagraph(),
	}
	p.screen.Title = "dcatc"
	p.screen.Text = "init"
	p.screen.SetRect(0, 0, dcatc.ScreenCols+2, dcatc.ScreenLines+2)
	p.status.Title = "slots"
	p.status.SetRect(dcatc.ScreenCols+2, 0, dcatc.ScreenCols+2+40, dcatc.ScreenLines+2)
	return p
}

func statusText(s runtime.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick %d  %dmA\n", s.Tick, s.Milliamps)
	for i, ss := range s.Slots {
		if !ss.Active {
			continue
		}
		fmt.Fprintf(&b, "%s %-2s", dcatc.SlotID(i), ss.At)
		if ss.Moving {
			fmt.Fprintf(&b, ">%-2s", ss.To)
		} else {
			b.WriteString("   ")
		}
		fmt.Fprintf(&b, " %s %3d %s\n", ss.State.Short(), ss.Duty, ss.Dir)
	}
	return b.String()
}

// Run draws snapshots and forwards keys until ctx is done or the user quits.
func (p *Panel) Run(ctx context.Context) error {
	if err := termui.Init(); err != nil {
		return fmt.Errorf("termui init: %w", err)
	}
	defer termui.Close()
	termui.Render(p.screen, p.status)

	ch := make(chan runtime.Snapshot, 4)
	p.snapshots.Subscribe("ui", ch)
	defer p.snapshots.Unsubscribe(ch)
	events := termui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-ch:
			p.screen.Text = strings.Join(s.Screen, "\n")
			p.status.Text = statusText(s)
			termui.Render(p.screen, p.status)
		case e := <-events:
			a, ok := keyAction(e.ID)
			if !ok {
				continue
			}
			switch {
			case a.quit:
				return nil
			case a.press:
				p.enc.Press()
			default:
				p.enc.Rotate(a.rotate)
			}
		}
	}
}
