// Package display projects the controller's state onto an 8 by 21 character screen.
package display

import (
	"fmt"
	"strings"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/config"
	"nyiyui.ca/hato/dcatc/topology"
)

// Screen is a character display. Writes outside the screen are ignored.
type Screen interface {
	PutChar(col, line int, c byte)
}

type Cell int

const (
	CellDCMin Cell = iota
	CellStep
	CellDCMax
	CellDelay
	CellDCCur
	CellRoute
	CellMilliamps
	CellState
)

const (
	labelWidth = 5
	valueWidth = 4
)

type cellDef struct {
	col, line int
	label     string
}

var cells = [dcatc.CellCount]cellDef{
	{0, 2, "DCmin"},
	{11, 2, "Step "},
	{0, 3, "DCmax"},
	{11, 3, "Dly s"},
	{0, 4, "DCcur"},
	{11, 4, "Route"},
	{0, 5, "   mA"},
	{11, 5, "State"},
}

func (c Cell) String() string {
	if c < 0 || int(c) >= len(cells) {
		return fmt.Sprintf("Cell(%d)", int(c))
	}
	return strings.TrimSpace(cells[c].label)
}

// Field returns the tunable shown in c.
func (c Cell) Field() (config.Field, bool) {
	switch c {
	case CellDCMin:
		return config.FieldDCMin, true
	case CellStep:
		return config.FieldRampStep, true
	case CellDCMax:
		return config.FieldDCMax, true
	case CellDelay:
		return config.FieldDelay, true
	default:
		return 0, false
	}
}

type CursorMode int

const (
	CursorNone CursorMode = iota
	CursorSelected
	CursorEditing
)

func (m CursorMode) glyph() byte {
	switch m {
	case CursorSelected:
		return '>'
	case CursorEditing:
		return '*'
	default:
		return ' '
	}
}

// View is everything drawn in one frame.
type View struct {
	Config    config.Config
	DCCur     int
	State     string
	Route     string
	Milliamps int
	Sensors   dcatc.Snapshot
	Selected  Cell
	Editing   bool
}

type Adapter struct {
	s Screen
	y *topology.Layout
}

func NewAdapter(s Screen, y *topology.Layout) *Adapter {
	return &Adapter{s: s, y: y}
}

func (a *Adapter) PutString(col, line int, s string) {
	for i := 0; i < len(s); i++ {
		a.s.PutChar(col+i, line, s[i])
	}
}

// PutLabels draws the title, the cell labels and the track diagram.
func (a *Adapter) PutLabels() {
	a.PutString(0, 0, fmt.Sprintf("%-*s%s", dcatc.ScreenCols-len(a.y.Short), "DC ATC", a.y.Short))
	for _, c := range cells {
		a.PutString(c.col, c.line, c.label)
	}
	for i, line := range a.y.Diagram {
		a.PutString(0, topology.DiagramLine+i, line)
	}
}

// PutCellValue shows n right-aligned in c. Values that do not fit show as ****.
func (a *Adapter) PutCellValue(c Cell, n int) {
	s := fmt.Sprintf("%*d", valueWidth, n)
	if len(s) > valueWidth {
		s = strings.Repeat("*", valueWidth)
	}
	a.putValue(c, s)
}

func (a *Adapter) PutCellText(c Cell, s string) {
	if len(s) > valueWidth {
		s = s[:valueWidth]
	}
	a.putValue(c, fmt.Sprintf("%-*s", valueWidth, s))
}

func (a *Adapter) putValue(c Cell, s string) {
	d := cells[c]
	a.PutString(d.col+labelWidth+1, d.line, s)
}

func (a *Adapter) PutCursor(c Cell, m CursorMode) {
	d := cells[c]
	a.s.PutChar(d.col+labelWidth, d.line, m.glyph())
}

// PutSensorGlyph draws the state of id on the diagram. Sensors not in use are
// never drawn.
func (a *Adapter) PutSensorGlyph(id dcatc.SensorID, s dcatc.SensorState) {
	d := a.y.Sensors[id]
	if d.Nature == dcatc.NatureNotInUse {
		return
	}
	a.s.PutChar(d.Col, d.Line, s.Glyph())
}

func (a *Adapter) Render(v View) {
	a.PutLabels()
	a.PutCellValue(CellDCMin, v.Config.DCMin)
	a.PutCellValue(CellStep, v.Config.RampStep)
	a.PutCellValue(CellDCMax, v.Config.DCMax)
	a.PutCellValue(CellDelay, v.Config.DelaySeconds)
	a.PutCellValue(CellDCCur, v.DCCur)
	a.PutCellText(CellRoute, v.Route)
	a.PutCellValue(CellMilliamps, v.Milliamps)
	a.PutCellText(CellState, v.State)
	for c := range cells {
		m := CursorNone
		if Cell(c) == v.Selected {
			m = CursorSelected
			if v.Editing {
				m = CursorEditing
			}
		}
		a.PutCursor(Cell(c), m)
	}
	for i, s := range v.Sensors {
		a.PutSensorGlyph(dcatc.SensorID(i), s)
	}
}
