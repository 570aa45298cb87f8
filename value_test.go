// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl_test

import (
	"math/big"
	"testing"

	"github.com/db47h/rtl"
)

func Test_op_shapes(t *testing.T) {
	u4 := rtl.NewSignal("u4", rtl.Unsigned(4))
	s4 := rtl.NewSignal("s4", rtl.Signed(4))
	u8 := rtl.NewSignal("u8", rtl.Unsigned(8))

	td := []struct {
		name string
		v    rtl.Value
		want rtl.Shape
	}{
		{"add_uu", rtl.Add(u4, u8), rtl.Unsigned(9)},
		{"add_us", rtl.Add(u4, s4), rtl.Signed(6)},
		{"sub_uu", rtl.Sub(u4, u4), rtl.Unsigned(5)},
		{"mul", rtl.Mul(u4, u8), rtl.Unsigned(12)},
		{"mul_signed", rtl.Mul(s4, u4), rtl.Signed(8)},
		{"neg", rtl.Neg(u4), rtl.Signed(5)},
		{"neg_signed", rtl.Neg(s4), rtl.Signed(5)},
		{"and_uu", rtl.And(u4, u8), rtl.Unsigned(8)},
		{"and_us", rtl.And(u8, s4), rtl.Signed(9)},
		{"or_ss", rtl.Or(s4, s4), rtl.Signed(4)},
		{"not", rtl.Not(s4), rtl.Signed(4)},
		{"bool", rtl.Bool(u8), rtl.Unsigned(1)},
		{"lt", rtl.Lt(u4, s4), rtl.Unsigned(1)},
		{"eq", rtl.EqV(u8, u8), rtl.Unsigned(1)},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			if got := d.v.Shape(); got != d.want {
				t.Errorf("got %s, want %s", got, d.want)
			}
		})
	}
}

func Test_shift_shapes(t *testing.T) {
	u8 := rtl.NewSignal("u8", rtl.Unsigned(8))
	n3 := rtl.NewSignal("n", rtl.Unsigned(3))

	shl, err := rtl.Shl(u8, n3)
	if err != nil {
		t.Fatal(err)
	}
	if got := shl.Shape(); got != (rtl.Unsigned(15)) {
		t.Errorf("shl shape = %s, want unsigned(15)", got)
	}
	shr, err := rtl.Shr(u8, n3)
	if err != nil {
		t.Fatal(err)
	}
	if got := shr.Shape(); got != (rtl.Unsigned(8)) {
		t.Errorf("shr shape = %s, want unsigned(8)", got)
	}

	s3 := rtl.NewSignal("s", rtl.Signed(3))
	if _, err = rtl.Shl(u8, s3); err == nil {
		t.Error("no error for signed shift amount")
	}
	if _, err = rtl.Shr(u8, s3); err == nil {
		t.Error("no error for signed shift amount")
	}
	wide := rtl.NewSignal("w", rtl.Unsigned(32))
	if _, err = rtl.Shl(u8, wide); err == nil {
		t.Error("no error for over-wide shift amount")
	}
}

func Test_const_normalize(t *testing.T) {
	td := []struct {
		name  string
		c     *rtl.Const
		want  int64
		shape rtl.Shape
	}{
		{"fit", rtl.C(5, rtl.Unsigned(4)), 5, rtl.Unsigned(4)},
		{"trunc", rtl.C(21, rtl.Unsigned(4)), 5, rtl.Unsigned(4)},
		{"wrap_signed", rtl.C(8, rtl.Signed(4)), -8, rtl.Signed(4)},
		{"neg_unsigned", rtl.C(-1, rtl.Unsigned(4)), 15, rtl.Unsigned(4)},
		{"cint_pos", rtl.CInt(5), 5, rtl.Unsigned(3)},
		{"cint_neg", rtl.CInt(-3), -3, rtl.Signed(3)},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			if got := d.c.Int(); got.Cmp(big.NewInt(d.want)) != 0 {
				t.Errorf("value = %s, want %d", got, d.want)
			}
			if got := d.c.Shape(); got != d.shape {
				t.Errorf("shape = %s, want %s", got, d.shape)
			}
		})
	}
}

func Test_slice_bounds(t *testing.T) {
	u8 := rtl.NewSignal("u8", rtl.Unsigned(8))
	s, err := rtl.NewSlice(u8, 2, 6)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Shape(); got != (rtl.Unsigned(4)) {
		t.Errorf("slice shape = %s, want unsigned(4)", got)
	}
	for _, r := range [][2]int{{-1, 4}, {0, 9}, {4, 4}, {5, 2}} {
		if _, err := rtl.NewSlice(u8, r[0], r[1]); err == nil {
			t.Errorf("no error for range [%d:%d)", r[0], r[1])
		}
	}
}

func Test_select_index(t *testing.T) {
	i1 := rtl.NewSignal("i", rtl.Unsigned(1))
	a := rtl.NewSignal("a", rtl.Unsigned(4))
	b := rtl.NewSignal("b", rtl.Unsigned(4))
	c := rtl.NewSignal("c", rtl.Unsigned(4))

	if _, err := rtl.NewSelect(i1, a, b); err != nil {
		t.Fatal(err)
	}
	// a 1 bit index cannot address 3 choices
	if _, err := rtl.NewSelect(i1, a, b, c); err == nil {
		t.Error("no error for under-wide index")
	}
	if _, err := rtl.NewSelect(rtl.NewSignal("s", rtl.Signed(2)), a, b); err == nil {
		t.Error("no error for signed index")
	}
	if _, err := rtl.NewSelect(i1); err == nil {
		t.Error("no error for empty choice list")
	}
}

func Test_value_eq(t *testing.T) {
	a := rtl.NewSignal("a", rtl.Unsigned(4))
	b := rtl.NewSignal("a", rtl.Unsigned(4)) // same name, distinct cell

	if !rtl.Eq(rtl.Add(a, rtl.CInt(1)), rtl.Add(a, rtl.CInt(1))) {
		t.Error("identical structure not equal")
	}
	if rtl.Eq(rtl.Add(a, rtl.CInt(1)), rtl.Add(b, rtl.CInt(1))) {
		t.Error("distinct signals compare equal")
	}
	if rtl.Eq(rtl.C(1, rtl.Unsigned(1)), rtl.C(1, rtl.Unsigned(2))) {
		t.Error("constants of different shapes compare equal")
	}
	if rtl.Eq(rtl.Add(a, a), rtl.Sub(a, a)) {
		t.Error("different operators compare equal")
	}
}

func Test_str_literal(t *testing.T) {
	td := []struct {
		in    string
		want  int64
		shape rtl.Shape
	}{
		{"8'hff", 255, rtl.Unsigned(8)},
		{"4'b1010", 10, rtl.Unsigned(4)},
		{"4'sb1010", -6, rtl.Signed(4)},
		{"8'shff", -1, rtl.Signed(8)},
		{"12'o777", 511, rtl.Unsigned(12)},
		{"4'd9", 9, rtl.Unsigned(4)},
		{"16'h12_34", 0x1234, rtl.Unsigned(16)},
		{"42", 42, rtl.Unsigned(6)},
		{"-1", -1, rtl.Signed(1)},
		{"-5", -5, rtl.Signed(4)},
	}
	for _, d := range td {
		t.Run(d.in, func(t *testing.T) {
			v, err := rtl.StrLit(d.in).RTLValue()
			if err != nil {
				t.Fatal(err)
			}
			c, ok := v.(*rtl.Const)
			if !ok {
				t.Fatalf("got %T, want *rtl.Const", v)
			}
			if got := c.Int(); got.Cmp(big.NewInt(d.want)) != 0 {
				t.Errorf("value = %s, want %d", got, d.want)
			}
			if got := c.Shape(); got != d.shape {
				t.Errorf("shape = %s, want %s", got, d.shape)
			}
		})
	}
	for _, bad := range []string{"", "4'", "4'q12", "2'd7", "x", "0'd0"} {
		if _, err := rtl.StrLit(bad).RTLValue(); err == nil {
			t.Errorf("no error for %q", bad)
		}
	}
}
