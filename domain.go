// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

// Comb is the name of the distinguished combinational domain. Statements
// added under it are re-evaluated to a fixed point by the simulator instead
// of being clocked.
const Comb = "comb"

// An Edge is the clock transition that triggers synchronous state update.
type Edge int

// Active edge polarities.
const (
	Rising Edge = iota
	Falling
)

func (e Edge) String() string {
	if e == Falling {
		return "falling"
	}
	return "rising"
}

// A ResetStyle is a clock domain's reset discipline.
type ResetStyle int

const (
	// SyncReset applies the reset value at the next active edge.
	SyncReset ResetStyle = iota
	// AsyncReset applies the reset value immediately on reset assertion,
	// independent of any clock edge.
	AsyncReset
)

func (r ResetStyle) String() string {
	if r == AsyncReset {
		return "async"
	}
	return "sync"
}

// A ClockDomain is a named grouping of synchronous signals sharing one
// clock, one active edge polarity and one reset discipline. The clock and
// reset signals are ordinary 1-bit signals, driven like any other (usually
// by the simulator's clock source or by a test process).
//
type ClockDomain struct {
	name  string
	clk   *Signal
	rst   *Signal // nil for a domain without reset
	edge  Edge
	reset ResetStyle
}

// NewDomain declares a clock domain with a reset signal.
//
func NewDomain(name string, edge Edge, reset ResetStyle) *ClockDomain {
	return &ClockDomain{
		name:  name,
		clk:   NewSignal(name+"_clk", Unsigned(1)),
		rst:   NewSignal(name+"_rst", Unsigned(1)),
		edge:  edge,
		reset: reset,
	}
}

// NewDomainNoReset declares a clock domain without a reset signal.
//
func NewDomainNoReset(name string, edge Edge) *ClockDomain {
	return &ClockDomain{
		name: name,
		clk:  NewSignal(name+"_clk", Unsigned(1)),
		edge: edge,
	}
}

// Name returns the domain name.
func (d *ClockDomain) Name() string { return d.name }

// Clk returns the domain's clock signal.
func (d *ClockDomain) Clk() *Signal { return d.clk }

// Rst returns the domain's reset signal, or nil if the domain has none.
func (d *ClockDomain) Rst() *Signal { return d.rst }

// ActiveEdge returns the clock transition that triggers state update.
func (d *ClockDomain) ActiveEdge() Edge { return d.edge }

// ResetStyle returns the domain's reset discipline.
func (d *ClockDomain) ResetStyle() ResetStyle { return d.reset }
