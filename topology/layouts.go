package topology

import "nyiyui.ca/hato/dcatc"

const rail = "_____________________"

func end(col, line int) SensorDef  { return SensorDef{Nature: dcatc.NatureEnd, Col: col, Line: line} }
func halt(col, line int) SensorDef { return SensorDef{Nature: dcatc.NatureStop, Col: col, Line: line} }
func slow(col, line, side int) SensorDef {
	return SensorDef{Nature: dcatc.NatureSlow, Col: col, Line: line, Side: side}
}

var unused = SensorDef{Nature: dcatc.NatureNotInUse}

// OneToOne is end to end with a halt in the middle. Runs one locomotive.
//
//	x____-_____-_____-____x
var OneToOne = &Layout{
	Name:  "1to1",
	Short: "1TO1",
	Sensors: [dcatc.SensorCount]SensorDef{
		end(0, 7),
		slow(4, 7, 0),
		halt(10, 7),
		slow(16, 7, 2),
		end(20, 7),
		unused,
	},
	Stops: []Stop{
		{Name: "W", Sensor: 0, X: 0},
		{Name: "M", Sensor: 2, X: 1},
		{Name: "E", Sensor: 4, X: 2},
	},
	Slots: []SlotDef{
		{Home: 0, Heading: dcatc.Forward},
	},
	Diagram: [2]string{
		"                     ",
		rail,
	},
}

// OneToTwo is a headshunt to two sidings. Runs one or two locomotives.
//
//	          /_________x
//	x___-___-/__________-
var OneToTwo = &Layout{
	Name:  "1to2",
	Short: "1TO2",
	Sensors: [dcatc.SensorCount]SensorDef{
		end(0, 7),
		slow(4, 7, 0),
		end(20, 6),
		end(20, 7),
		slow(8, 7, 2),
		unused,
	},
	Stops: []Stop{
		{Name: "H", Sensor: 0, X: 0},
		{Name: "A", Sensor: 2, X: 2},
		{Name: "B", Sensor: 3, X: 2},
	},
	Slots: []SlotDef{
		{Home: 0, Heading: dcatc.Forward},
		{Home: 1, Heading: dcatc.Reverse},
	},
	Diagram: [2]string{
		"          /__________",
		rail,
	},
}

// TwoToTwo is two sidings to a line to two sidings. Runs up to three locomotives.
//
//	x__\             /__-
//	x_____-_______-_____x
var TwoToTwo = &Layout{
	Name:  "2to2",
	Short: "2TO2",
	Sensors: [dcatc.SensorCount]SensorDef{
		end(0, 6),
		end(0, 7),
		slow(6, 7, 0),
		slow(14, 7, 2),
		end(20, 6),
		end(20, 7),
	},
	Stops: []Stop{
		{Name: "W1", Sensor: 0, X: 0},
		{Name: "W2", Sensor: 1, X: 0},
		{Name: "E1", Sensor: 4, X: 2},
		{Name: "E2", Sensor: 5, X: 2},
	},
	Slots: []SlotDef{
		{Home: 0, Heading: dcatc.Forward},
		{Home: 1, Heading: dcatc.Forward},
		{Home: 3, Heading: dcatc.Reverse},
	},
	Diagram: [2]string{
		"___\\             /___",
		rail,
	},
}

// Loop is a headshunt to a passing loop to a headshunt. Runs up to three
// locomotives.
//
//	     /____x____\
//	x__-_______-_______-__x
var Loop = &Layout{
	Name:  "loop",
	Short: "LOOP",
	Sensors: [dcatc.SensorCount]SensorDef{
		end(0, 7),
		end(20, 7),
		halt(10, 6),
		halt(10, 7),
		slow(3, 7, 0),
		slow(17, 7, 2),
	},
	Stops: []Stop{
		{Name: "H1", Sensor: 0, X: 0},
		{Name: "T", Sensor: 2, X: 1},
		{Name: "B", Sensor: 3, X: 1},
		{Name: "H2", Sensor: 1, X: 2},
	},
	Slots: []SlotDef{
		{Home: 0, Heading: dcatc.Forward},
		{Home: 1, Heading: dcatc.Forward},
		{Home: 3, Heading: dcatc.Reverse},
	},
	Diagram: [2]string{
		"     /_________\\     ",
		rail,
	},
}

// Layouts lists every supported topology.
var Layouts = []*Layout{OneToOne, OneToTwo, TwoToTwo, Loop}

func ByName(name string) (*Layout, bool) {
	for _, y := range Layouts {
		if y.Name == name {
			return y, true
		}
	}
	return nil, false
}
