package conn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nyiyui.ca/hato/dcatc"
)

func TestParseLevels(t *testing.T) {
	type testCase struct {
		line      string
		values    map[byte]bool
		monotonic int64
		err       bool
	}
	cases := []testCase{
		{"A1B1C1T838942", map[byte]bool{'A': true, 'B': true, 'C': true}, 838942, false},
		{"A0B1C0D1E0F0T123", map[byte]bool{'A': false, 'B': true, 'C': false, 'D': true, 'E': false, 'F': false}, 123, false},
		{"T5A1", map[byte]bool{'A': true}, 5, false},
		{"A1B", nil, 0, true},
		{"A2", nil, 0, true},
		{"A1Tx", nil, 0, true},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			values, monotonic, err := parseLevels(tc.line)
			if (err != nil) != tc.err {
				t.Fatalf("err %v", err)
			}
			if tc.err {
				return
			}
			if monotonic != tc.monotonic {
				t.Fatalf("monotonic %d", monotonic)
			}
			if diff := cmp.Diff(tc.values, values); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestReqLine(t *testing.T) {
	cases := []struct {
		req  ReqLine
		want string
	}{
		{ReqLine{Line: 'A', Direction: dcatc.Forward, Power: 50}, "CAAN050"},
		{ReqLine{Line: 'C', Direction: dcatc.Reverse, Brake: true}, "CCBY000"},
		{ReqLine{Line: 'B', Direction: dcatc.Forward, Power: 100}, "CBAN100"},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			if got := c.req.String(); got != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
	if got := (ReqRoute{Line: 'B', From: 3, To: 2}).String(); got != "RB32" {
		t.Fatalf("got %s", got)
	}
}

func TestParseId(t *testing.T) {
	want := Id{Type: "soyuu-dcatc", Variant: "nano0", Instance: "0"}
	if got := parseId("soyuu-dcatc/nano0/0"); got != want {
		t.Fatalf("got %#v", got)
	}
	if got := parseId("soyuu-dcatc"); got != (Id{Type: "soyuu-dcatc"}) {
		t.Fatalf("got %#v", got)
	}
}

type rw struct {
	io.Reader
	io.Writer
}

type event struct {
	Kind     string
	Sensor   dcatc.SensorID
	Occupied bool
	MA       int
}

type sink struct {
	events []event
}

func (s *sink) OnOccupancy(id dcatc.SensorID, occupied bool) {
	s.events = append(s.events, event{Kind: "occupancy", Sensor: id, Occupied: occupied})
}

func (s *sink) OnHandshakeComplete() { s.events = append(s.events, event{Kind: "handshake"}) }

func (s *sink) OnCurrent(mA int) { s.events = append(s.events, event{Kind: "current", MA: mA}) }

func TestBoardRun(t *testing.T) {
	in := strings.Join([]string{
		" Isoyuu-dcatc/nano0/0",
		" DA1B0C0D0E0F0T100",
		" DA1B0C0D0E0F0T200",
		" DA1B1C0D0E0F0T300",
		" S",
		" M250",
		" Mxyz",
		" DA1G1T400",
		" hello",
		"",
	}, "\r\n")
	b := NewBoard("test", rw{strings.NewReader(in), io.Discard})
	s := new(sink)
	err := b.Run(context.Background(), s)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err %v", err)
	}
	want := []event{
		{Kind: "occupancy", Sensor: 0, Occupied: true},
		{Kind: "occupancy", Sensor: 1},
		{Kind: "occupancy", Sensor: 2},
		{Kind: "occupancy", Sensor: 3},
		{Kind: "occupancy", Sensor: 4},
		{Kind: "occupancy", Sensor: 5},
		{Kind: "occupancy", Sensor: 1, Occupied: true},
		{Kind: "handshake"},
		{Kind: "current", MA: 250},
	}
	if diff := cmp.Diff(want, s.events); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestIdentify(t *testing.T) {
	var out bytes.Buffer
	b := NewBoard("test", rw{strings.NewReader("garbage\r\n Isoyuu-dcatc/nano0/1\r\n"), &out})
	if err := b.Identify(); err != nil {
		t.Fatal(err)
	}
	if b.Id != (Id{Type: BoardType, Variant: "nano0", Instance: "1"}) {
		t.Fatalf("id %s", b.Id)
	}
	if out.String() != "I\n" {
		t.Fatalf("sent %q", out.String())
	}
}

func TestSetDutyCycleDedup(t *testing.T) {
	var out bytes.Buffer
	b := NewBoard("test", rw{strings.NewReader(""), &out})
	b.SetDutyCycle(0, 0, dcatc.Forward)
	b.SetDutyCycle(0, 0, dcatc.Forward)
	b.SetDutyCycle(1, 0, dcatc.Reverse)
	b.SetDutyCycle(0, 20, dcatc.Forward)
	b.SetDutyCycle(0, 20, dcatc.Forward)
	b.SetRoute(0, 0, 2)
	want := "CAAY000\nCBBY000\nCAAN020\nRA02\n"
	if got := out.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
