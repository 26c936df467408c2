// Package phase defines the fixed EAEPT phase sequence and the per-phase
// scheduling policy (the phase catalog).
package phase

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is one stage of the fixed Express-Ask-Explore-Plan-Code-Test sequence.
type Phase string

const (
	Express  Phase = "express"
	Ask      Phase = "ask"
	Explore  Phase = "explore"
	Plan     Phase = "plan"
	Code     Phase = "code"
	Test     Phase = "test"
	Complete Phase = "complete"
)

// Order is the fixed total order of phases. Complete is terminal.
var Order = []Phase{Express, Ask, Explore, Plan, Code, Test, Complete}

// ErrUnknownPhase is returned when a phase name outside the fixed order is
// supplied externally.
var ErrUnknownPhase = errors.New("unknown phase")

// Parse converts a phase name into a Phase. Matching is case-insensitive.
func Parse(name string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, name)
	}
	return p, nil
}

// Valid reports whether p is a member of the fixed phase order.
func (p Phase) Valid() bool {
	for _, candidate := range Order {
		if p == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether p is the terminal phase.
func (p Phase) Terminal() bool {
	return p == Complete
}

// Next returns the phase following p in the fixed order. The second return
// value is false when p is terminal or not a valid phase.
func (p Phase) Next() (Phase, bool) {
	for i, candidate := range Order {
		if p == candidate {
			if i+1 < len(Order) {
				return Order[i+1], true
			}
			return p, false
		}
	}
	return p, false
}

// String returns the phase name.
func (p Phase) String() string {
	return string(p)
}
