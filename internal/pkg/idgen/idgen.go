// Package idgen produces time-ordered 63-bit identifiers for comments and
// reactions: 41 bits of milliseconds since Epoch, 10 bits of node ID and a
// 12 bit per-millisecond sequence.
package idgen

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is 2024-01-01T00:00:00Z in milliseconds
	Epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	maxNode      = -1 ^ (-1 << nodeBits)
	sequenceMask = -1 ^ (-1 << sequenceBits)
	nodeShift    = sequenceBits
	timeShift    = sequenceBits + nodeBits
)

var (
	ErrInvalidNode         = errors.New("node ID out of range")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Generator is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	lastMS   int64
	now      func() time.Time
}

func New(node int64) (*Generator, error) {
	if node < 0 || node > maxNode {
		return nil, ErrInvalidNode
	}
	return &Generator{node: node, now: time.Now}, nil
}

// NextID returns the next identifier. It blocks for at most one millisecond
// when the sequence for the current millisecond is exhausted.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMS {
		return 0, ErrClockMovedBackwards
	}

	if ms == g.lastMS {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			for ms <= g.lastMS {
				ms = g.now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMS = ms

	return (ms-Epoch)<<timeShift | g.node<<nodeShift | g.sequence, nil
}

// Time returns the creation time encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + Epoch)
}

// Node returns the node ID encoded in id.
func Node(id int64) int64 {
	return (id >> nodeShift) & maxNode
}
