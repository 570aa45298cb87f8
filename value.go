// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"
	"strconv"
	"sync/atomic"
)

// A Value is a node in an immutable expression tree. Concrete node types
// are *Const, *Signal, *Op, *Slice, *Cat, *Repl, *Select and *Sample.
//
// Values are never mutated after construction and may safely be shared
// between statements, modules and elaborated fragments. Equality between
// values is structural, see Eq.
//
type Value interface {
	// Shape returns the node's shape, derived from its operands at
	// construction time.
	Shape() Shape

	value()
}

func (*Const) value()  {}
func (*Signal) value() {}
func (*Op) value()     {}
func (*Slice) value()  {}
func (*Cat) value()    {}
func (*Repl) value()   {}
func (*Select) value() {}
func (*Sample) value() {}

// A Const is a constant value of a given shape.
//
type Const struct {
	val   *big.Int
	shape Shape
}

// NewConst returns a constant of the given shape. v is truncated into the
// shape's range (two's-complement reduction modulo 2^width).
//
func NewConst(v *big.Int, s Shape) *Const {
	return &Const{val: s.normalize(v), shape: s}
}

// C returns a constant of the given shape built from an int64.
//
func C(v int64, s Shape) *Const {
	return NewConst(big.NewInt(v), s)
}

// CInt returns a constant with the smallest shape able to represent v.
//
func CInt(v int64) *Const {
	return NewConst(big.NewInt(v), ShapeFor(v, v))
}

// Shape returns the constant's shape.
func (c *Const) Shape() Shape { return c.shape }

// Int returns the constant's value.
func (c *Const) Int() *big.Int { return new(big.Int).Set(c.val) }

func (c *Const) String() string {
	return c.val.String() + ":" + c.shape.String()
}

var signalIDs uint64

// A Signal is a named storage cell. Its value is either driven by
// combinational statements or updated synchronously under a clock domain;
// which of the two is discovered at elaboration time.
//
// A Signal's identity is the node itself: two signals with the same name
// are still distinct cells. The shape and reset value never change after
// declaration.
//
type Signal struct {
	id    uint64
	name  string
	shape Shape
	reset *big.Int
}

// NewSignal declares a signal of the given shape with a reset value of
// zero. Prefer Module.Signal so that ownership of the cell is explicit.
//
func NewSignal(name string, s Shape) *Signal {
	return &Signal{
		id:    atomic.AddUint64(&signalIDs, 1),
		name:  name,
		shape: s,
		reset: new(big.Int),
	}
}

// NewSignalReset declares a signal with the given reset value, truncated
// into the signal's shape.
//
func NewSignalReset(name string, s Shape, reset int64) *Signal {
	sig := NewSignal(name, s)
	sig.reset = s.normalize(big.NewInt(reset))
	return sig
}

// Shape returns the signal's shape.
func (s *Signal) Shape() Shape { return s.shape }

// Name returns the signal's debug name.
func (s *Signal) Name() string { return s.name }

// Reset returns the signal's reset value.
func (s *Signal) Reset() *big.Int { return new(big.Int).Set(s.reset) }

// ID returns the signal's unique identity, usable as a stable map key in
// value-change consumers.
func (s *Signal) ID() uint64 { return s.id }

func (s *Signal) String() string {
	return s.name + "#" + strconv.FormatUint(s.id, 10)
}

// OpKind identifies a composite operator.
type OpKind int

// Operator kinds.
const (
	OpAdd OpKind = iota
	OpSub
	OpMul
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpBool
)

var opNames = [...]string{
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpNeg:  "neg",
	OpAnd:  "&",
	OpOr:   "|",
	OpXor:  "^",
	OpNot:  "~",
	OpShl:  "<<",
	OpShr:  ">>",
	OpLt:   "<",
	OpLe:   "<=",
	OpGt:   ">",
	OpGe:   ">=",
	OpEq:   "==",
	OpNe:   "!=",
	OpBool: "bool",
}

func (k OpKind) String() string {
	if k >= 0 && int(k) < len(opNames) {
		return opNames[k]
	}
	return "op(" + strconv.Itoa(int(k)) + ")"
}

// An Op is a composite operator node. Its shape is derived from the
// operand shapes such that the mathematical result is always representable:
// truncation never happens inside an expression.
//
type Op struct {
	kind  OpKind
	args  []Value
	shape Shape
}

// Kind returns the operator kind.
func (o *Op) Kind() OpKind { return o.kind }

// Args returns the operand list. The caller must not modify it.
func (o *Op) Args() []Value { return o.args }

// Shape returns the derived result shape.
func (o *Op) Shape() Shape { return o.shape }

func newOp(k OpKind, s Shape, args ...Value) *Op {
	return &Op{kind: k, args: args, shape: s}
}

// Add returns a + b. Result width is max of the promoted operand widths
// plus a carry bit, signed if either operand is signed.
//
func Add(a, b Value) Value { return newOp(OpAdd, addShape(a.Shape(), b.Shape()), a, b) }

// Sub returns a - b, with the same shape rule as Add.
//
func Sub(a, b Value) Value { return newOp(OpSub, addShape(a.Shape(), b.Shape()), a, b) }

// Mul returns a * b. Result width is the sum of the operand widths,
// signed if either operand is signed.
//
func Mul(a, b Value) Value { return newOp(OpMul, mulShape(a.Shape(), b.Shape()), a, b) }

// Neg returns -a, one bit wider than a and always signed.
//
func Neg(a Value) Value {
	return newOp(OpNeg, Shape{Width: a.Shape().Width + 1, Signed: true}, a)
}

// And returns the bitwise AND of a and b.
//
func And(a, b Value) Value { return newOp(OpAnd, bitwiseShape(a.Shape(), b.Shape()), a, b) }

// Or returns the bitwise OR of a and b.
//
func Or(a, b Value) Value { return newOp(OpOr, bitwiseShape(a.Shape(), b.Shape()), a, b) }

// Xor returns the bitwise XOR of a and b.
//
func Xor(a, b Value) Value { return newOp(OpXor, bitwiseShape(a.Shape(), b.Shape()), a, b) }

// Not returns the bitwise complement of a, with a's shape.
//
func Not(a Value) Value { return newOp(OpNot, a.Shape(), a) }

// Bool returns a 1-bit unsigned value that is 1 when a is non-zero.
//
func Bool(a Value) Value { return newOp(OpBool, Unsigned(1), a) }

// Shl returns a shifted left by n bits. The result is wide enough for the
// largest representable shift amount. The shift amount must be unsigned.
//
func Shl(a, n Value) (Value, error) {
	ns := n.Shape()
	if ns.Signed {
		return nil, &ShapeError{Op: "<<", Msg: "shift amount must be unsigned, got " + ns.String()}
	}
	if ns.Width > 16 {
		return nil, &ShapeError{Op: "<<", Msg: "shift amount too wide: " + ns.String()}
	}
	maxShift := (int(1) << uint(ns.Width)) - 1
	as := a.Shape()
	return newOp(OpShl, Shape{Width: as.Width + maxShift, Signed: as.Signed}, a, n), nil
}

// Shr returns a shifted right by n bits, keeping a's shape. The shift is
// arithmetic when a is signed. The shift amount must be unsigned.
//
func Shr(a, n Value) (Value, error) {
	if n.Shape().Signed {
		return nil, &ShapeError{Op: ">>", Msg: "shift amount must be unsigned, got " + n.Shape().String()}
	}
	return newOp(OpShr, a.Shape(), a, n), nil
}

func compare(k OpKind, a, b Value) Value { return newOp(k, Unsigned(1), a, b) }

// Lt returns the 1-bit result of a < b.
func Lt(a, b Value) Value { return compare(OpLt, a, b) }

// Le returns the 1-bit result of a <= b.
func Le(a, b Value) Value { return compare(OpLe, a, b) }

// Gt returns the 1-bit result of a > b.
func Gt(a, b Value) Value { return compare(OpGt, a, b) }

// Ge returns the 1-bit result of a >= b.
func Ge(a, b Value) Value { return compare(OpGe, a, b) }

// EqV returns the 1-bit result of a == b.
func EqV(a, b Value) Value { return compare(OpEq, a, b) }

// NeV returns the 1-bit result of a != b.
func NeV(a, b Value) Value { return compare(OpNe, a, b) }

// A Slice selects the bit range [Lo, Hi) of its base value, counted from
// the least significant bit. A slice is always unsigned.
//
type Slice struct {
	base   Value
	lo, hi int
}

// NewSlice returns base[lo:hi).
//
func NewSlice(base Value, lo, hi int) (*Slice, error) {
	w := base.Shape().Width
	if lo < 0 || hi > w || lo >= hi {
		return nil, &ShapeError{
			Op:  "slice",
			Msg: "range [" + strconv.Itoa(lo) + ":" + strconv.Itoa(hi) + ") invalid for width " + strconv.Itoa(w),
		}
	}
	return &Slice{base: base, lo: lo, hi: hi}, nil
}

// Bit returns the single-bit slice base[i].
//
func Bit(base Value, i int) (*Slice, error) {
	return NewSlice(base, i, i+1)
}

// Base returns the sliced value.
func (s *Slice) Base() Value { return s.base }

// Range returns the selected bit range [lo, hi).
func (s *Slice) Range() (lo, hi int) { return s.lo, s.hi }

// Shape returns the slice's shape: unsigned, hi-lo bits.
func (s *Slice) Shape() Shape { return Unsigned(s.hi - s.lo) }

// A Cat concatenates its parts, first part in the least significant
// position. The result is unsigned with the summed width.
//
type Cat struct {
	parts []Value
}

// NewCat returns the concatenation of the given parts, LSB first.
//
func NewCat(parts ...Value) (*Cat, error) {
	if len(parts) == 0 {
		return nil, &ShapeError{Op: "cat", Msg: "empty concatenation"}
	}
	return &Cat{parts: parts}, nil
}

// Parts returns the concatenated parts, LSB first. The caller must not
// modify the slice.
func (c *Cat) Parts() []Value { return c.parts }

// Shape returns the concatenation's shape.
func (c *Cat) Shape() Shape {
	w := 0
	for _, p := range c.parts {
		w += p.Shape().Width
	}
	return Unsigned(w)
}

// A Repl replicates its part count times, like a count-way Cat of the same
// value.
//
type Repl struct {
	part  Value
	count int
}

// NewRepl returns part replicated count times.
//
func NewRepl(part Value, count int) (*Repl, error) {
	if count < 1 {
		return nil, &ShapeError{Op: "repl", Msg: "count must be positive, got " + strconv.Itoa(count)}
	}
	return &Repl{part: part, count: count}, nil
}

// Part returns the replicated value.
func (r *Repl) Part() Value { return r.part }

// Count returns the replication count.
func (r *Repl) Count() int { return r.count }

// Shape returns the replication's shape.
func (r *Repl) Shape() Shape { return Unsigned(r.part.Shape().Width * r.count) }

// A Select picks one of its choices by the runtime value of an index.
// At simulation time an index beyond the last choice selects the last
// choice.
//
type Select struct {
	index   Value
	choices []Value
	shape   Shape
}

// NewSelect returns a value that evaluates to choices[index]. The index
// must be unsigned and must be able to represent every addressable
// position.
//
func NewSelect(index Value, choices ...Value) (*Select, error) {
	if len(choices) == 0 {
		return nil, &ShapeError{Op: "select", Msg: "empty choice list"}
	}
	is := index.Shape()
	if is.Signed {
		return nil, &ShapeError{Op: "select", Msg: "index must be unsigned, got " + is.String()}
	}
	if is.Width < 63 && int(1)<<uint(is.Width) < len(choices) {
		return nil, &ShapeError{
			Op:  "select",
			Msg: is.String() + " index cannot address all of " + strconv.Itoa(len(choices)) + " choices",
		}
	}
	s := choices[0].Shape()
	for _, c := range choices[1:] {
		s = bitwiseShape(s, c.Shape())
	}
	return &Select{index: index, choices: choices, shape: s}, nil
}

// Index returns the index value.
func (s *Select) Index() Value { return s.index }

// Choices returns the choice list. The caller must not modify it.
func (s *Select) Choices() []Value { return s.choices }

// Shape returns the common shape of all choices.
func (s *Select) Shape() Shape { return s.shape }

// A Sample is the value its operand had a number of active edges in the
// past, in a given clock domain. The elaborator lowers every Sample into a
// chain of hidden synchronous signals, so fragments never contain Sample
// nodes.
//
type Sample struct {
	val    Value
	domain string
	edges  int
}

// NewSample returns val as it was edges active edges ago in the named
// domain. A sample zero edges in the past is val itself.
//
func NewSample(val Value, domain string, edges int) (Value, error) {
	if edges < 0 {
		return nil, &ShapeError{Op: "sample", Msg: "negative edge count " + strconv.Itoa(edges)}
	}
	if domain == Comb {
		return nil, &ShapeError{Op: "sample", Msg: "cannot sample in the combinational domain"}
	}
	if edges == 0 {
		return val, nil
	}
	return &Sample{val: val, domain: domain, edges: edges}, nil
}

// Val returns the sampled value.
func (s *Sample) Val() Value { return s.val }

// Domain returns the sampling domain name.
func (s *Sample) Domain() string { return s.domain }

// Edges returns the sampling delay in active edges.
func (s *Sample) Edges() int { return s.edges }

// Shape returns the sampled value's shape.
func (s *Sample) Shape() Shape { return s.val.Shape() }

// Eq reports whether a and b are structurally equal: same node variant and
// structurally equal children. Signals compare by identity. Eq is the
// equality referred to throughout this package; node identity is never
// significant except for signals.
//
func Eq(a, b Value) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *Const:
		y, ok := b.(*Const)
		return ok && x.shape == y.shape && x.val.Cmp(y.val) == 0
	case *Signal:
		y, ok := b.(*Signal)
		return ok && x.id == y.id
	case *Op:
		y, ok := b.(*Op)
		if !ok || x.kind != y.kind || len(x.args) != len(y.args) {
			return false
		}
		for i := range x.args {
			if !Eq(x.args[i], y.args[i]) {
				return false
			}
		}
		return true
	case *Slice:
		y, ok := b.(*Slice)
		return ok && x.lo == y.lo && x.hi == y.hi && Eq(x.base, y.base)
	case *Cat:
		y, ok := b.(*Cat)
		if !ok || len(x.parts) != len(y.parts) {
			return false
		}
		for i := range x.parts {
			if !Eq(x.parts[i], y.parts[i]) {
				return false
			}
		}
		return true
	case *Repl:
		y, ok := b.(*Repl)
		return ok && x.count == y.count && Eq(x.part, y.part)
	case *Select:
		y, ok := b.(*Select)
		if !ok || len(x.choices) != len(y.choices) || !Eq(x.index, y.index) {
			return false
		}
		for i := range x.choices {
			if !Eq(x.choices[i], y.choices[i]) {
				return false
			}
		}
		return true
	case *Sample:
		y, ok := b.(*Sample)
		return ok && x.domain == y.domain && x.edges == y.edges && Eq(x.val, y.val)
	}
	return false
}
