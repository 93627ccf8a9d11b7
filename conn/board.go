// Package conn talks to the line controller board: it decodes sensor and
// current reports and sends power and route requests.
package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc"
)

// Sink receives decoded board reports. sensor.Registry is a Sink.
type Sink interface {
	OnOccupancy(id dcatc.SensorID, occupied bool)
	OnHandshakeComplete()
	OnCurrent(mA int)
}

type level int8

const (
	levelUnknown level = iota
	levelLow
	levelHigh
)

// Board is one connected line controller.
type Board struct {
	Id   Id
	Path string

	f      io.ReadWriter
	reader *bufio.Reader

	fileLock sync.Mutex
	// last holds the last request sent per line; only the loop goroutine touches it.
	last   [dcatc.MaxSlots]ReqLine
	sent   [dcatc.MaxSlots]bool
	levels [dcatc.SensorCount]level
}

func NewBoard(path string, f io.ReadWriter) *Board {
	return &Board{
		Path:   path,
		f:      f,
		reader: bufio.NewReader(f),
	}
}

func (b *Board) send(line string) error {
	b.fileLock.Lock()
	defer b.fileLock.Unlock()
	_, err := fmt.Fprintf(b.f, "%s\n", line)
	return err
}

// Identify asks the board for its Id and waits for the answer.
func (b *Board) Identify() error {
	if err := b.send("I"); err != nil {
		return fmt.Errorf("%s: I: %w", b.Path, err)
	}
	var line string
	var err error
	for !strings.HasPrefix(line, " I") {
		line, err = b.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%s: reading id: %w", b.Path, err)
		}
	}
	line = strings.TrimSpace(line[2:])
	if line == "" {
		return fmt.Errorf("%s: empty id", b.Path)
	}
	b.Id = parseId(line)
	return nil
}

// StartOfDay asks the board to report every sensor. The board answers with
// a report per sensor followed by " S".
func (b *Board) StartOfDay() error {
	if err := b.send("S"); err != nil {
		return fmt.Errorf("%s: S: %w", b.Path, err)
	}
	return nil
}

// SetDutyCycle implements motion.Driver. Unchanged requests are not resent.
func (b *Board) SetDutyCycle(slot dcatc.SlotID, duty int, dir dcatc.Direction) {
	req := ReqLine{
		Line:      lineOf(slot),
		Brake:     duty == 0,
		Direction: dir,
		Power:     uint8(duty),
	}
	if b.sent[slot] && b.last[slot] == req {
		return
	}
	if err := b.send(req.String()); err != nil {
		zap.S().Errorw("commit failed",
			"path", b.Path,
			"req", req.String(),
			"err", err)
		return
	}
	b.last[slot] = req
	b.sent[slot] = true
}

// SetRoute implements runtime.Points.
func (b *Board) SetRoute(slot dcatc.SlotID, from, to dcatc.StopID) {
	req := ReqRoute{Line: lineOf(slot), From: from, To: to}
	if err := b.send(req.String()); err != nil {
		zap.S().Errorw("route failed",
			"path", b.Path,
			"req", req.String(),
			"err", err)
	}
}

// Run reads reports until ctx is done or the board goes away.
func (b *Board) Run(ctx context.Context, sink Sink) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineRaw, err := b.reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w", b.Path, err)
		}
		if errors.Is(err, io.ErrNoProgress) {
			// read timeouts on a quiet line
			continue
		}
		if err != nil {
			failures++
			if failures > 10 {
				return fmt.Errorf("%s: read line: %w", b.Path, err)
			}
			zap.S().Warnw("read line failed", "path", b.Path, "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		failures = 0
		if err := b.handle(strings.TrimRight(lineRaw, "\r\n"), sink); err != nil {
			zap.S().Warnw("bad report",
				"path", b.Path,
				"line", lineRaw,
				"err", err)
		}
	}
}

func (b *Board) handle(line string, sink Sink) error {
	switch {
	case strings.HasPrefix(line, " D"):
		values, monotonic, err := parseLevels(line[2:])
		if err != nil {
			return err
		}
		for i := 0; i < dcatc.SensorCount; i++ {
			id := dcatc.SensorID(i)
			high, ok := values[id.Letter()]
			if !ok {
				continue
			}
			l := levelLow
			if high {
				l = levelHigh
			}
			if b.levels[id] == l {
				continue
			}
			b.levels[id] = l
			zap.S().Debugw("sensor",
				"sensor", id,
				"occupied", high,
				"monotonic", monotonic)
			sink.OnOccupancy(id, high)
		}
	case line == " S":
		zap.S().Infow("start of day complete", "path", b.Path)
		sink.OnHandshakeComplete()
	case strings.HasPrefix(line, " M"):
		mA, err := parseMilliamps(line[2:])
		if err != nil {
			return err
		}
		sink.OnCurrent(mA)
	case strings.HasPrefix(line, " I"):
	default:
		zap.S().Debugw("ignored", "path", b.Path, "line", line)
	}
	return nil
}
