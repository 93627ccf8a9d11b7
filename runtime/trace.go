package runtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc/topology"
)

// TraceRecord is one line of a trace.
type TraceRecord struct {
	Tick     uint64        `json:"tick"`
	Plan     topology.Plan `json:"plan"`
	Snapshot Snapshot      `json:"snapshot"`
}

type tracer struct {
	enc    *json.Encoder
	failed bool
}

func newTracer(w io.Writer) *tracer {
	return &tracer{enc: json.NewEncoder(w)}
}

func (t *tracer) record(tick uint64, p topology.Plan, s Snapshot) {
	if t.failed {
		return
	}
	err := t.enc.Encode(TraceRecord{Tick: tick, Plan: p, Snapshot: s})
	if err != nil {
		// one failure is enough to know the trace is unusable
		t.failed = true
		zap.S().Errorw("trace: record failed; tracing stopped", "tick", tick, "err", err)
	}
}

// ReadTrace decodes a trace written by a Loop.
func ReadTrace(r io.Reader) ([]TraceRecord, error) {
	var records []TraceRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec TraceRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("trace: line %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return records, nil
}
