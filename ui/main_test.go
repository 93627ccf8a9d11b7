package ui

import (
	"fmt"
	"testing"

	"nyiyui.ca/hato/dcatc"
	"nyiyui.ca/hato/dcatc/runtime"
)

func TestKeyAction(t *testing.T) {
	cases := []struct {
		id   string
		want action
		ok   bool
	}{
		{"<Up>", action{rotate: 1}, true},
		{"k", action{rotate: 1}, true},
		{"<Down>", action{rotate: -1}, true},
		{"j", action{rotate: -1}, true},
		{"<Enter>", action{press: true}, true},
		{"<Space>", action{press: true}, true},
		{"q", action{quit: true}, true},
		{"<C-c>", action{quit: true}, true},
		{"x", action{}, false},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			got, ok := keyAction(c.id)
			if got != c.want || ok != c.ok {
				t.Fatalf("%s: got %+v %v", c.id, got, ok)
			}
		})
	}
}

func TestStatusText(t *testing.T) {
	s := runtime.Snapshot{
		Tick:      12,
		Milliamps: 320,
		Slots: []runtime.SlotSnapshot{
			{Active: true, Moving: true, State: dcatc.StateAccel, Duty: 40, Dir: dcatc.Forward, At: "H1", To: "T"},
			{},
			{Active: true, State: dcatc.StateStopDelay, Dir: dcatc.Reverse, At: "H2"},
		},
	}
	want := fmt.Sprintf("tick 12  320mA\nL0 H1>T  ACCL  40 %s\nL2 H2    DLAY   0 %s\n", dcatc.Forward, dcatc.Reverse)
	if got := statusText(s); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
