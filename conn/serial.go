package conn

import (
	"fmt"
	"path/filepath"

	"github.com/albenik/go-serial/v2"
	"go.uber.org/zap"
)

// BoardType is the Id type of a line controller running the dcatc firmware.
const BoardType = "soyuu-dcatc"

// Open opens the serial port at path and identifies the board on it.
func Open(path string, baud int) (*Board, func() error, error) {
	port, err := serial.Open(path,
		serial.WithBaudrate(baud),
		serial.WithReadTimeout(1000),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", path, err)
	}
	b := NewBoard(path, port)
	if err := b.Identify(); err != nil {
		port.Close()
		return nil, nil, err
	}
	zap.S().Infow("connected", "path", path, "id", b.Id)
	return b, port.Close, nil
}

// Find opens the first port matching glob that identifies as BoardType.
func Find(glob string, baud int) (*Board, func() error, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, nil, err
	}
	for _, match := range matches {
		b, closer, err := Open(match, baud)
		if err != nil {
			zap.S().Warnw("skipping port", "path", match, "err", err)
			continue
		}
		if b.Id.Type != BoardType {
			zap.S().Infow("skipping board", "path", match, "id", b.Id)
			closer()
			continue
		}
		return b, closer, nil
	}
	return nil, nil, fmt.Errorf("no %s board matching %s", BoardType, glob)
}
