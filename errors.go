// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

// The elaboration-time error taxonomy. Every error carries the implicated
// signal or statement so that diagnostics can point at the offending part
// of the design. All of these abort elaboration: no partial Fragment is
// ever returned.

// A ShapeError reports a value construction that is mathematically
// undefined for the operand shapes.
//
type ShapeError struct {
	Op  string // operator or builder that failed
	Msg string
}

func (e *ShapeError) Error() string {
	return "shape error in " + e.Op + ": " + e.Msg
}

// A DriverConflictError reports two unconditional drivers of the same
// signal bit in one domain.
//
type DriverConflictError struct {
	Signal *Signal
	Domain string
	First  Statement // earlier conflicting statement, in program order
	Second Statement
}

func (e *DriverConflictError) Error() string {
	return "multiple drivers for " + e.Signal.String() + " in domain " + e.Domain
}

// A DomainConflictError reports a signal driven from more than one clock
// domain (the combinational domain counts as one).
//
type DomainConflictError struct {
	Signal  *Signal
	Domains [2]string
}

func (e *DomainConflictError) Error() string {
	return "signal " + e.Signal.String() + " driven from domains " +
		e.Domains[0] + " and " + e.Domains[1]
}

// A CombinationalLoopError reports a combinational cycle not broken by any
// synchronously driven signal.
//
type CombinationalLoopError struct {
	Signals []*Signal // signals on the cycle, in dependency order
}

func (e *CombinationalLoopError) Error() string {
	s := "combinational loop through"
	for _, sig := range e.Signals {
		s += " " + sig.String()
	}
	return s
}

// A ResetDisciplineError reports contradictory declarations of one clock
// domain (differing active edge or reset discipline).
//
type ResetDisciplineError struct {
	Domain string
}

func (e *ResetDisciplineError) Error() string {
	return "contradictory declarations of clock domain " + e.Domain
}
