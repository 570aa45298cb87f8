// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import "math/big"

// A Statement describes one state-changing or checking operation. Concrete
// statement types are *Assign, *Switch, *Assert and *Assume. Statements are
// bound to a clock domain when added to a Module.
//
type Statement interface {
	statement()
}

func (*Assign) statement() {}
func (*Switch) statement() {}
func (*Assert) statement() {}
func (*Assume) statement() {}

// A Field is one contiguous bit range of a signal, the unit an assignment
// target decomposes into.
//
type Field struct {
	Sig    *Signal
	Lo, Hi int // bit range [Lo, Hi) within Sig
}

func (f Field) overlaps(o Field) bool {
	return f.Sig == o.Sig && f.Lo < o.Hi && o.Lo < f.Hi
}

// targetFields decomposes an assignment target into signal bit ranges,
// LSB first. Only signals, slices of signals and concatenations of those
// are assignable.
//
func targetFields(v Value) ([]Field, error) {
	switch t := v.(type) {
	case *Signal:
		return []Field{{Sig: t, Lo: 0, Hi: t.shape.Width}}, nil
	case *Slice:
		sig, ok := t.base.(*Signal)
		if !ok {
			return nil, &ShapeError{Op: "assign", Msg: "slice target must slice a signal directly"}
		}
		return []Field{{Sig: sig, Lo: t.lo, Hi: t.hi}}, nil
	case *Cat:
		var fields []Field
		for _, p := range t.parts {
			fs, err := targetFields(p)
			if err != nil {
				return nil, err
			}
			fields = append(fields, fs...)
		}
		// the ranges of one target must be disjoint
		for i := range fields {
			for j := i + 1; j < len(fields); j++ {
				if fields[i].overlaps(fields[j]) {
					return nil, &ShapeError{Op: "assign", Msg: "target bits of " + fields[i].Sig.String() + " appear twice"}
				}
			}
		}
		return fields, nil
	default:
		return nil, &ShapeError{Op: "assign", Msg: "target is not a signal, slice or concatenation"}
	}
}

// An Assign stores a source value into a target. The target must resolve
// to a disjoint union of signal bit ranges; the source is truncated (or
// sign/zero extended) to the target width when applied.
//
type Assign struct {
	target Value
	src    Value
	fields []Field
}

// NewAssign returns an assignment of src to target.
//
func NewAssign(target Value, src Value) (*Assign, error) {
	fields, err := targetFields(target)
	if err != nil {
		return nil, err
	}
	return &Assign{target: target, src: src, fields: fields}, nil
}

// Target returns the assignment target.
func (a *Assign) Target() Value { return a.target }

// Src returns the assigned value.
func (a *Assign) Src() Value { return a.src }

// Fields returns the target's decomposition into signal bit ranges, LSB
// first. The caller must not modify the returned slice.
func (a *Assign) Fields() []Field { return a.fields }

// A Case is one branch of a Switch: a list of constant patterns and the
// statements to apply when the switch's test matches one of them. A case
// with no patterns is a default case and matches anything.
//
type Case struct {
	patterns []*big.Int
	body     []Statement
}

// Patterns returns the case's match patterns; nil for a default case.
func (c *Case) Patterns() []*big.Int { return c.patterns }

// Body returns the case's statement list.
func (c *Case) Body() []Statement { return c.body }

// A Switch tests a value against its cases in declared order and applies
// the body of the first matching case. When no case matches and there is
// no default case, no statement of the switch is applied for that
// evaluation.
//
type Switch struct {
	test  Value
	cases []*Case
}

// NewSwitch returns a switch over the given test value.
//
func NewSwitch(test Value) *Switch {
	return &Switch{test: test}
}

// Case appends a branch matching any of the given patterns. Patterns are
// truncated into the test's shape. It returns the switch for chaining.
//
func (s *Switch) Case(patterns []int64, body ...Statement) *Switch {
	shape := s.test.Shape()
	ps := make([]*big.Int, len(patterns))
	for i, p := range patterns {
		ps[i] = shape.normalize(big.NewInt(p))
	}
	s.cases = append(s.cases, &Case{patterns: ps, body: body})
	return s
}

// Default appends a branch matching anything. Cases after a default are
// unreachable.
//
func (s *Switch) Default(body ...Statement) *Switch {
	s.cases = append(s.cases, &Case{body: body})
	return s
}

// Test returns the switched value.
func (s *Switch) Test() Value { return s.test }

// Cases returns the branch list in declaration order.
func (s *Switch) Cases() []*Case { return s.cases }

// An Assert checks that a condition holds; the simulator aborts the run on
// violation. Bound to the combinational domain it is checked after every
// settle, bound to a synchronous domain it is checked at every active edge
// against pre-edge state.
//
type Assert struct {
	cond Value
	msg  string
}

// NewAssert returns an assertion of cond.
//
func NewAssert(cond Value, msg string) *Assert {
	return &Assert{cond: cond, msg: msg}
}

// Cond returns the asserted condition.
func (a *Assert) Cond() Value { return a.cond }

// Msg returns the assertion's diagnostic message.
func (a *Assert) Msg() string { return a.msg }

// An Assume declares a condition the environment is expected to uphold.
// The simulator checks it exactly like an Assert; formal backends treat it
// as a constraint instead.
//
type Assume struct {
	cond Value
	msg  string
}

// NewAssume returns an assumption of cond.
//
func NewAssume(cond Value, msg string) *Assume {
	return &Assume{cond: cond, msg: msg}
}

// Cond returns the assumed condition.
func (a *Assume) Cond() Value { return a.cond }

// Msg returns the assumption's diagnostic message.
func (a *Assume) Msg() string { return a.msg }
