// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/db47h/rtl/internal/lit"
)

// A Valuer converts a foreign literal or enumeration type into a Value.
// Conversion is always explicit: value factories and statement builders
// accept a Valuer where a caller-supplied literal makes sense, and the
// conversion runs exactly once, at construction time.
//
type Valuer interface {
	RTLValue() (Value, error)
}

// IntLit is a signed integer literal. It converts to a constant with the
// smallest signed-or-unsigned shape able to represent it.
//
type IntLit int64

// RTLValue implements Valuer.
func (i IntLit) RTLValue() (Value, error) {
	return CInt(int64(i)), nil
}

// UintLit is an unsigned integer literal.
//
type UintLit uint64

// RTLValue implements Valuer.
func (u UintLit) RTLValue() (Value, error) {
	v := new(big.Int).SetUint64(uint64(u))
	return NewConst(v, Unsigned(bitsFor(v))), nil
}

// BoolLit is a boolean literal, converting to a 1 bit unsigned constant.
//
type BoolLit bool

// RTLValue implements Valuer.
func (b BoolLit) RTLValue() (Value, error) {
	if b {
		return C(1, Unsigned(1)), nil
	}
	return C(0, Unsigned(1)), nil
}

// StrLit is a sized constant literal in HDL notation, such as "8'hff",
// "4'sb1010" or "-3". A width prefix fixes the shape; signed constants
// take their value from the two's-complement reading of the digits. A bare
// decimal gets the smallest shape able to represent it.
//
type StrLit string

// RTLValue implements Valuer.
func (s StrLit) RTLValue() (Value, error) {
	c, err := lit.Parse(string(s))
	if err != nil {
		return nil, errors.Wrap(err, "literal")
	}
	if c.Width < 0 {
		if v := c.Val; v.Sign() < 0 {
			// smallest signed shape holding v: -2^(w-1) <= v
			mag := new(big.Int).Not(v) // -v - 1
			w := mag.BitLen() + 1
			return NewConst(v, Signed(w)), nil
		}
		return NewConst(c.Val, Unsigned(bitsFor(c.Val))), nil
	}
	sh := Shape{Width: c.Width, Signed: c.Signed}
	return NewConst(c.Val, sh), nil
}

// RTLValue implements Valuer, so that values convert to themselves where a
// Valuer is accepted.
func (c *Const) RTLValue() (Value, error) { return c, nil }

// RTLValue implements Valuer.
func (s *Signal) RTLValue() (Value, error) { return s, nil }
