// Package slots models the fixed half-hour grid a lab day is divided into.
package slots

import (
	"errors"
	"fmt"
	"time"
)

const Layout = "15:04"

var ErrInvalidRange = errors.New("invalid slot range")

type Grid struct {
	step    time.Duration
	closing string
	labels  []string
	index   map[string]int
}

func NewGrid(opening, closing string, stepMinutes int) (*Grid, error) {
	if stepMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %d", stepMinutes)
	}
	open, err := time.Parse(Layout, opening)
	if err != nil {
		return nil, fmt.Errorf("invalid opening time %q: %w", opening, err)
	}
	shut, err := time.Parse(Layout, closing)
	if err != nil {
		return nil, fmt.Errorf("invalid closing time %q: %w", closing, err)
	}
	if !shut.After(open) {
		return nil, fmt.Errorf("closing time %s must be after opening time %s", closing, opening)
	}

	g := &Grid{
		step:    time.Duration(stepMinutes) * time.Minute,
		closing: shut.Format(Layout),
		index:   make(map[string]int),
	}
	for t := open; t.Before(shut); t = t.Add(g.step) {
		label := t.Format(Layout)
		g.index[label] = len(g.labels)
		g.labels = append(g.labels, label)
	}
	return g, nil
}

// Slots returns the start label of every slot, in order.
func (g *Grid) Slots() []string {
	out := make([]string, len(g.labels))
	copy(out, g.labels)
	return out
}

func (g *Grid) Closing() string {
	return g.closing
}

func (g *Grid) Step() time.Duration {
	return g.step
}

func (g *Grid) Contains(slot string) bool {
	_, ok := g.index[slot]
	return ok
}

func (g *Grid) Index(slot string) (int, bool) {
	i, ok := g.index[slot]
	return i, ok
}

// position maps a label to its boundary index. The closing time is a valid
// end boundary and maps to len(labels).
func (g *Grid) position(label string) (int, bool) {
	if label == g.closing {
		return len(g.labels), true
	}
	return g.Index(label)
}

// Range returns the slots in [start, end).
func (g *Grid) Range(start, end string) ([]string, error) {
	from, ok := g.Index(start)
	if !ok {
		return nil, fmt.Errorf("%w: unknown start slot %q", ErrInvalidRange, start)
	}
	to, ok := g.position(end)
	if !ok {
		return nil, fmt.Errorf("%w: unknown end slot %q", ErrInvalidRange, end)
	}
	if to <= from {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange, end, start)
	}
	out := make([]string, to-from)
	copy(out, g.labels[from:to])
	return out, nil
}

// End returns the label at which slot finishes.
func (g *Grid) End(slot string) (string, bool) {
	i, ok := g.Index(slot)
	if !ok {
		return "", false
	}
	if i+1 == len(g.labels) {
		return g.closing, true
	}
	return g.labels[i+1], true
}
