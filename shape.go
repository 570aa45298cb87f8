// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"
	"strconv"
)

// A Shape describes a finite-precision integer representation as a bit width
// and a signedness. A w bit unsigned shape holds values in [0, 2^w-1], a
// w bit signed shape holds values in [-2^(w-1), 2^(w-1)-1].
//
type Shape struct {
	Width  int
	Signed bool
}

// Unsigned returns an unsigned shape of the given width.
// It panics with a *ShapeError if width is not positive.
//
func Unsigned(width int) Shape {
	if width < 1 {
		panic(&ShapeError{Op: "unsigned", Msg: "width must be positive, got " + strconv.Itoa(width)})
	}
	return Shape{Width: width}
}

// Signed returns a signed shape of the given width.
// It panics with a *ShapeError if width is not positive.
//
func Signed(width int) Shape {
	if width < 1 {
		panic(&ShapeError{Op: "signed", Msg: "width must be positive, got " + strconv.Itoa(width)})
	}
	return Shape{Width: width, Signed: true}
}

// ShapeFor returns the smallest shape able to represent all values in
// [lo, hi].
//
func ShapeFor(lo, hi int64) Shape {
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo >= 0 {
		w := bitsFor(big.NewInt(hi))
		return Unsigned(w)
	}
	wl := new(big.Int).Not(big.NewInt(lo)).BitLen() + 1
	wh := big.NewInt(hi).BitLen() + 1
	if wh > wl {
		wl = wh
	}
	return Signed(wl)
}

func (s Shape) String() string {
	if s.Signed {
		return "signed(" + strconv.Itoa(s.Width) + ")"
	}
	return "unsigned(" + strconv.Itoa(s.Width) + ")"
}

// min and max return the smallest and largest value representable by s.
//
func (s Shape) min() *big.Int {
	if !s.Signed {
		return new(big.Int)
	}
	return new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(s.Width-1)))
}

func (s Shape) max() *big.Int {
	w := uint(s.Width)
	if s.Signed {
		w--
	}
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), w), big.NewInt(1))
}

// contains reports whether v is representable by s without truncation.
//
func (s Shape) contains(v *big.Int) bool {
	return s.min().Cmp(v) <= 0 && v.Cmp(s.max()) <= 0
}

// normalize reduces v modulo 2^width and reinterprets the result per the
// shape's signedness. This is the two's-complement truncation applied at
// assignment boundaries.
//
func (s Shape) normalize(v *big.Int) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(s.Width))
	r := new(big.Int).Mod(v, mod) // big.Int.Mod is Euclidean: r is in [0, mod)
	if s.Signed && r.Bit(s.Width-1) == 1 {
		r.Sub(r, mod)
	}
	return r
}

// bits returns the raw two's-complement bit pattern of v as a non-negative
// integer in [0, 2^width).
//
func (s Shape) bits(v *big.Int) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(s.Width))
	return new(big.Int).Mod(v, mod)
}

func bitsFor(v *big.Int) int {
	if v.Sign() < 0 {
		panic("bitsFor: negative value")
	}
	if n := v.BitLen(); n > 0 {
		return n
	}
	return 1
}

// promote widens shapes for a binary operation on mixed signedness: the
// unsigned operand gains one bit and becomes signed so that every one of
// its values stays representable.
//
func promote(a, b Shape) (Shape, Shape) {
	if a.Signed == b.Signed {
		return a, b
	}
	if !a.Signed {
		a = Shape{Width: a.Width + 1, Signed: true}
	} else {
		b = Shape{Width: b.Width + 1, Signed: true}
	}
	return a, b
}

// bitwiseShape implements the result shape rule for bitwise operators:
// max of the promoted widths, signed if either operand is signed.
//
func bitwiseShape(a, b Shape) Shape {
	a, b = promote(a, b)
	w := a.Width
	if b.Width > w {
		w = b.Width
	}
	return Shape{Width: w, Signed: a.Signed}
}

// addShape implements the result shape rule for addition and subtraction:
// one carry/borrow bit on top of the promoted widths.
//
func addShape(a, b Shape) Shape {
	s := bitwiseShape(a, b)
	s.Width++
	return s
}

// mulShape implements the result shape rule for multiplication: the sum of
// the operand widths, signed if either operand is signed.
//
func mulShape(a, b Shape) Shape {
	return Shape{Width: a.Width + b.Width, Signed: a.Signed || b.Signed}
}
