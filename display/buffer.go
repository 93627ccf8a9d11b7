package display

import (
	"strings"
	"sync"

	"nyiyui.ca/hato/dcatc"
)

// Buffer is an in-memory Screen. Lines may be read from other goroutines.
type Buffer struct {
	lock  sync.Mutex
	cells [dcatc.ScreenLines][dcatc.ScreenCols]byte
}

func NewBuffer() *Buffer {
	b := new(Buffer)
	b.Clear()
	return b
}

func (b *Buffer) Clear() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for i := range b.cells {
		for j := range b.cells[i] {
			b.cells[i][j] = ' '
		}
	}
}

func (b *Buffer) PutChar(col, line int, c byte) {
	if col < 0 || col >= dcatc.ScreenCols || line < 0 || line >= dcatc.ScreenLines {
		return
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.cells[line][col] = c
}

func (b *Buffer) Lines() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	lines := make([]string, len(b.cells))
	for i, l := range b.cells {
		lines[i] = string(l[:])
	}
	return lines
}

func (b *Buffer) String() string {
	return strings.Join(b.Lines(), "\n")
}
