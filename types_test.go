package dcatc

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGlyph(t *testing.T) {
	want := map[SensorState]byte{
		SensorTrue:    'x',
		SensorFalse:   '-',
		SensorNotSeen: '.',
	}
	for s, g := range want {
		if got := s.Glyph(); got != g {
			t.Fatalf("%s: got %c, want %c", s, got, g)
		}
	}
}

func TestZeroValues(t *testing.T) {
	var c Command
	if c != CmdStop || !c.Stopping() {
		t.Fatalf("zero command is %s", c)
	}
	var s SensorState
	if s != SensorNotSeen {
		t.Fatalf("zero sensor state is %s", s)
	}
}

func TestEnumText(t *testing.T) {
	type record struct {
		Snapshot Snapshot
		State    MotionState
		Command  Command
		Dir      Direction
		Nature   Nature
	}
	want := record{
		Snapshot: Snapshot{SensorTrue, SensorFalse, SensorNotSeen, SensorTrue, SensorFalse, SensorFalse},
		State:    StateDecel,
		Command:  CmdStopAndReverse,
		Dir:      Reverse,
		Nature:   NatureSlow,
	}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	var got record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("%s: %s", data, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if err := json.Unmarshal([]byte(`{"Command": "GO"}`), &got); err == nil {
		t.Fatal("unknown command accepted")
	}
}
