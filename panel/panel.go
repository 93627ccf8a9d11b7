// Package panel turns encoder rotation and presses into cell selection and
// tunable edits.
package panel

import (
	"fmt"

	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/display"
)

// Selectable lists the cells the cursor visits, in order.
var Selectable = [...]display.Cell{
	display.CellDCMin,
	display.CellStep,
	display.CellDCMax,
	display.CellDelay,
	display.CellDCCur,
	display.CellRoute,
}

// Editor is not safe for concurrent use.
type Editor struct {
	s       *config.Store
	sel     int
	editing bool
}

func NewEditor(s *config.Store) *Editor {
	return &Editor{s: s}
}

func (e *Editor) Selected() display.Cell { return Selectable[e.sel] }

func (e *Editor) Editing() bool { return e.editing }

// Rotate moves the selection, or changes the edited value by delta.
// changed reports whether the configuration was modified.
func (e *Editor) Rotate(delta int) (changed bool, err error) {
	if !e.editing {
		n := len(Selectable)
		e.sel = ((e.sel+delta)%n + n) % n
		return false, nil
	}
	f, ok := e.Selected().Field()
	if !ok {
		panic(fmt.Sprintf("editing read-only cell %s", e.Selected()))
	}
	err = e.s.Set(f, e.s.Get().Field(f)+delta)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Press enters or leaves edit mode on an editable cell. Leaving edit mode
// commits the configuration. On a read-only cell it moves to the next cell.
func (e *Editor) Press() {
	if _, ok := e.Selected().Field(); !ok {
		e.sel = (e.sel + 1) % len(Selectable)
		return
	}
	if e.editing {
		e.s.Commit()
	}
	e.editing = !e.editing
}
