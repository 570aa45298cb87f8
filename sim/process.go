// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"math/big"

	"github.com/db47h/rtl"
)

// A ProcessFn is the body of a test process. It runs cooperatively: it is
// resumed by the scheduler, runs uninterrupted until its next Wait call,
// and is torn down when it returns or when the simulation ends.
//
type ProcessFn func(p *Proc) error

type waitKind int

const (
	waitNone waitKind = iota
	waitSettle
	waitEdge
	waitChange
)

type wait struct {
	kind   waitKind
	domain string
	sig    *rtl.Signal
}

type yieldMsg struct {
	w    wait
	done bool
	err  error
}

// errStopped unwinds a process goroutine at simulation teardown; errAbort
// unwinds it when one of its writes caused a fatal simulation error.
var (
	errStopped = new(int)
	errAbort   = new(int)
)

// A Proc is the handle a test process uses to talk to the simulator:
// reading and writing signals and suspending until an event of interest.
// All Proc methods must be called from the process function itself.
//
type Proc struct {
	s      *Simulator
	idx    int
	fn     ProcessFn
	resume chan struct{}
	yield  chan yieldMsg

	// scheduler state, touched only while the process is suspended
	pend  wait
	ready bool
	done  bool
	err   error
}

func (p *Proc) start() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				switch r {
				case errStopped: // simulation teardown
				case errAbort: // fatal error during a write, already recorded
					p.yield <- yieldMsg{done: true, err: p.s.fatal}
				default:
					panic(r)
				}
			}
		}()
		if _, ok := <-p.resume; !ok {
			panic(errStopped)
		}
		err := p.fn(p)
		p.yield <- yieldMsg{done: true, err: err}
	}()
}

// suspend hands control back to the scheduler and blocks until resumed.
//
func (p *Proc) suspend(w wait) {
	p.yield <- yieldMsg{w: w}
	if _, ok := <-p.resume; !ok {
		panic(errStopped)
	}
}

// WaitSettle suspends the process until the next full settle completes.
//
func (p *Proc) WaitSettle() {
	p.suspend(wait{kind: waitSettle})
}

// WaitEdge suspends the process until the named domain's next active edge
// has been committed.
//
func (p *Proc) WaitEdge(domain string) {
	p.suspend(wait{kind: waitEdge, domain: domain})
}

// WaitChange suspends the process until the given signal's value changes.
//
func (p *Proc) WaitChange(sig *rtl.Signal) {
	p.suspend(wait{kind: waitChange, sig: sig})
}

// Get returns the current value of a signal.
//
func (p *Proc) Get(sig *rtl.Signal) *big.Int {
	return new(big.Int).Set(p.s.cur[sig])
}

// GetInt64 returns the current value of a signal as an int64.
//
func (p *Proc) GetInt64(sig *rtl.Signal) int64 {
	return p.s.cur[sig].Int64()
}

// SetBig writes a value to a signal, truncated into the signal's shape.
// The write is applied immediately: combinational logic settles, and any
// clock edge or asynchronous reset it causes is processed, before Set
// returns.
//
func (p *Proc) SetBig(sig *rtl.Signal, v *big.Int) {
	p.s.poke(sig, v)
}

// Set is SetBig for an int64 value.
//
func (p *Proc) Set(sig *rtl.Signal, v int64) {
	p.s.poke(sig, big.NewInt(v))
}

// Now returns the current simulation timestamp.
//
func (p *Proc) Now() uint64 { return p.s.now }
