// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import "github.com/db47h/rtl"

// A SimulationInstabilityError reports a settle that failed to converge
// within the configured iteration bound: the design is acyclic in the
// static dependency graph but oscillates numerically, typically through
// feedback via process writes. It aborts the run; changes committed before
// the failing settle remain in the trace.
//
type SimulationInstabilityError struct {
	Signal *rtl.Signal // a signal still changing when the bound was hit
	Passes int
}

func (e *SimulationInstabilityError) Error() string {
	s := "settle did not converge"
	if e.Signal != nil {
		s += " (signal " + e.Signal.String() + " still changing)"
	}
	return s
}

// An AssertionError reports a violated Assert or Assume statement.
//
type AssertionError struct {
	Msg    string
	Time   uint64
	Domain string
}

func (e *AssertionError) Error() string {
	m := e.Msg
	if m == "" {
		m = "assertion failed"
	}
	return m + " (domain " + e.Domain + ")"
}
