// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"math/big"

	"github.com/db47h/rtl"
)

// Expression evaluation over big integers. Shape inference guarantees that
// every operator's mathematical result fits its derived shape, so only
// bit-pattern operators (not, slice, cat, repl) and assignment boundaries
// ever reduce a value.

// bits returns the two's-complement bit pattern of v in w bits, as a
// non-negative integer.
//
func bits(v *big.Int, w int) *big.Int {
	mod := new(big.Int).Lsh(bigOne, uint(w))
	return new(big.Int).Mod(v, mod)
}

// norm reduces v modulo 2^width and reinterprets the pattern per the
// shape's signedness.
//
func norm(v *big.Int, s rtl.Shape) *big.Int {
	r := bits(v, s.Width)
	if s.Signed && r.Bit(s.Width-1) == 1 {
		r.Sub(r, new(big.Int).Lsh(bigOne, uint(s.Width)))
	}
	return r
}

var bigOne = big.NewInt(1)

// eval computes the value of an expression tree, reading signals through
// get. The result is always within v's shape.
//
func eval(v rtl.Value, get func(*rtl.Signal) *big.Int) *big.Int {
	switch v := v.(type) {
	case *rtl.Const:
		return v.Int()
	case *rtl.Signal:
		return new(big.Int).Set(get(v))
	case *rtl.Op:
		return evalOp(v, get)
	case *rtl.Slice:
		lo, hi := v.Range()
		b := bits(eval(v.Base(), get), v.Base().Shape().Width)
		b.Rsh(b, uint(lo))
		return bits(b, hi-lo)
	case *rtl.Cat:
		acc := new(big.Int)
		off := 0
		for _, p := range v.Parts() {
			w := p.Shape().Width
			acc.Or(acc, new(big.Int).Lsh(bits(eval(p, get), w), uint(off)))
			off += w
		}
		return acc
	case *rtl.Repl:
		w := v.Part().Shape().Width
		part := bits(eval(v.Part(), get), w)
		acc := new(big.Int)
		for i := 0; i < v.Count(); i++ {
			acc.Or(acc, new(big.Int).Lsh(part, uint(i*w)))
		}
		return acc
	case *rtl.Select:
		idx := eval(v.Index(), get)
		choices := v.Choices()
		i := len(choices) - 1
		if idx.IsInt64() && idx.Int64() < int64(i) {
			i = int(idx.Int64())
		}
		return eval(choices[i], get)
	case *rtl.Sample:
		panic("sim: sample node survived elaboration")
	}
	panic("sim: unknown value node")
}

func evalOp(o *rtl.Op, get func(*rtl.Signal) *big.Int) *big.Int {
	args := o.Args()
	a := eval(args[0], get)
	var b *big.Int
	if len(args) > 1 {
		b = eval(args[1], get)
	}
	switch o.Kind() {
	case rtl.OpAdd:
		return a.Add(a, b)
	case rtl.OpSub:
		return a.Sub(a, b)
	case rtl.OpMul:
		return a.Mul(a, b)
	case rtl.OpNeg:
		return a.Neg(a)
	case rtl.OpAnd:
		return a.And(a, b)
	case rtl.OpOr:
		return a.Or(a, b)
	case rtl.OpXor:
		return a.Xor(a, b)
	case rtl.OpNot:
		return norm(a.Not(a), o.Shape())
	case rtl.OpShl:
		return a.Lsh(a, uint(b.Uint64()))
	case rtl.OpShr:
		// big.Int right shift rounds toward minus infinity: an arithmetic
		// shift for negative values
		return a.Rsh(a, uint(b.Uint64()))
	case rtl.OpLt:
		return boolInt(a.Cmp(b) < 0)
	case rtl.OpLe:
		return boolInt(a.Cmp(b) <= 0)
	case rtl.OpGt:
		return boolInt(a.Cmp(b) > 0)
	case rtl.OpGe:
		return boolInt(a.Cmp(b) >= 0)
	case rtl.OpEq:
		return boolInt(a.Cmp(b) == 0)
	case rtl.OpNe:
		return boolInt(a.Cmp(b) != 0)
	case rtl.OpBool:
		return boolInt(a.Sign() != 0)
	}
	panic("sim: unknown operator " + o.Kind().String())
}

func boolInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return new(big.Int)
}

// applyAssign computes the post-assignment value of each target signal of
// a. Reads go through get; the current value of each target signal comes
// from old (so that partial writes splice into the right base). Results
// are stored through set.
//
func applyAssign(a *rtl.Assign, get, old func(*rtl.Signal) *big.Int, set func(*rtl.Signal, *big.Int)) {
	fields := a.Fields()
	total := 0
	for _, f := range fields {
		total += f.Hi - f.Lo
	}
	// truncation happens here, at the assignment boundary
	src := bits(eval(a.Src(), get), total)
	off := 0
	for _, f := range fields {
		w := f.Hi - f.Lo
		part := bits(new(big.Int).Rsh(src, uint(off)), w)
		off += w
		shape := f.Sig.Shape()
		pat := bits(old(f.Sig), shape.Width)
		// splice part into pat[f.Lo:f.Hi)
		mask := new(big.Int).Lsh(bigOne, uint(w))
		mask.Sub(mask, bigOne)
		mask.Lsh(mask, uint(f.Lo))
		pat.AndNot(pat, mask)
		pat.Or(pat, part.Lsh(part, uint(f.Lo)))
		set(f.Sig, norm(pat, shape))
	}
}

// matchCase returns the first case of sw matched by the test value, or nil.
//
func matchCase(sw *rtl.Switch, get func(*rtl.Signal) *big.Int) *rtl.Case {
	test := eval(sw.Test(), get)
	test = norm(test, sw.Test().Shape())
	for _, c := range sw.Cases() {
		pats := c.Patterns()
		if len(pats) == 0 {
			return c
		}
		for _, p := range pats {
			if test.Cmp(p) == 0 {
				return c
			}
		}
	}
	return nil
}
