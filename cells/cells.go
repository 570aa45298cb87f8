// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package cells provides prebuilt module generators for common synchronous
// and combinational building blocks. Each generator returns a module ready
// to nest with AddSub, plus the signals forming its port interface.
//
package cells

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/db47h/rtl"
)

// RegisterPorts is the port interface of a Register.
//
type RegisterPorts struct {
	D  *rtl.Signal // data in
	En *rtl.Signal // load enable, 1 bit
	Q  *rtl.Signal // registered output
}

// Register returns a load-enabled register in the named domain.
//
//	Function: q(t) = en(t-1) ? d(t-1) : q(t-1)
//
func Register(name, domain string, shape rtl.Shape) (*rtl.Module, RegisterPorts, error) {
	m := rtl.NewModule(name)
	p := RegisterPorts{
		D:  m.Signal(name+"_d", shape),
		En: m.Signal(name+"_en", rtl.Unsigned(1)),
		Q:  m.Signal(name+"_q", shape),
	}
	m.Input(p.D)
	m.Input(p.En)
	m.Output(p.Q)
	load, err := rtl.NewAssign(p.Q, p.D)
	if err != nil {
		return nil, RegisterPorts{}, errors.Wrap(err, "cells: register")
	}
	m.Add(domain, rtl.NewSwitch(p.En).Case([]int64{1}, load))
	return m, p, nil
}

// CounterPorts is the port interface of a Counter.
//
type CounterPorts struct {
	En    *rtl.Signal // count enable, 1 bit
	Count *rtl.Signal // current count
	Wrap  *rtl.Signal // 1 for the cycle after the counter rolled over
}

// Counter returns a free-running wrapping up-counter in the named domain.
// The count advances on every active edge where en is high; wrap is
// registered and flags the edge where the count rolled over to zero.
//
func Counter(name, domain string, width int) (*rtl.Module, CounterPorts, error) {
	m := rtl.NewModule(name)
	p := CounterPorts{
		En:    m.Signal(name+"_en", rtl.Unsigned(1)),
		Count: m.Signal(name+"_count", rtl.Unsigned(width)),
		Wrap:  m.Signal(name+"_wrap", rtl.Unsigned(1)),
	}
	m.Input(p.En)
	m.Output(p.Count)
	m.Output(p.Wrap)
	next := rtl.Add(p.Count, rtl.CInt(1))
	inc, err := rtl.NewAssign(p.Count, next)
	if err != nil {
		return nil, CounterPorts{}, errors.Wrap(err, "cells: counter")
	}
	// rolled over when every count bit was set
	all := (int64(1) << uint(width)) - 1
	wrap, err := rtl.NewAssign(p.Wrap, rtl.EqV(p.Count, rtl.C(all, rtl.Unsigned(width))))
	if err != nil {
		return nil, CounterPorts{}, errors.Wrap(err, "cells: counter")
	}
	hold, err := rtl.NewAssign(p.Wrap, rtl.C(0, rtl.Unsigned(1)))
	if err != nil {
		return nil, CounterPorts{}, errors.Wrap(err, "cells: counter")
	}
	m.Add(domain, rtl.NewSwitch(p.En).Case([]int64{1}, inc, wrap).Default(hold))
	return m, p, nil
}

// MuxPorts is the port interface of a Mux.
//
type MuxPorts struct {
	Sel *rtl.Signal   // choice index
	In  []*rtl.Signal // inputs, one per choice
	Out *rtl.Signal   // selected input
}

// Mux returns a combinational n-way multiplexer. A select value beyond the
// last input selects the last input.
//
func Mux(name string, shape rtl.Shape, n int) (*rtl.Module, MuxPorts, error) {
	if n < 2 {
		return nil, MuxPorts{}, errors.Errorf("cells: mux needs at least 2 inputs, got %d", n)
	}
	selW := 1
	for (1 << uint(selW)) < n {
		selW++
	}
	m := rtl.NewModule(name)
	p := MuxPorts{
		Sel: m.Signal(name+"_sel", rtl.Unsigned(selW)),
		Out: m.Signal(name+"_out", shape),
	}
	m.Input(p.Sel)
	choices := make([]rtl.Value, n)
	for i := 0; i < n; i++ {
		in := m.Signal(name+"_in"+strconv.Itoa(i), shape)
		m.Input(in)
		p.In = append(p.In, in)
		choices[i] = in
	}
	m.Output(p.Out)
	sel, err := rtl.NewSelect(p.Sel, choices...)
	if err != nil {
		return nil, MuxPorts{}, errors.Wrap(err, "cells: mux")
	}
	if err := m.Assign(rtl.Comb, p.Out, sel); err != nil {
		return nil, MuxPorts{}, err
	}
	return m, p, nil
}

// AdderPorts is the port interface of an Adder.
//
type AdderPorts struct {
	A, B *rtl.Signal // operands
	Sum  *rtl.Signal // a + b, truncated to the operand width
	Cout *rtl.Signal // carry out, 1 bit
}

// Adder returns a combinational adder with carry out for unsigned
// operands of the given width.
//
func Adder(name string, width int) (*rtl.Module, AdderPorts, error) {
	m := rtl.NewModule(name)
	sh := rtl.Unsigned(width)
	p := AdderPorts{
		A:    m.Signal(name+"_a", sh),
		B:    m.Signal(name+"_b", sh),
		Sum:  m.Signal(name+"_sum", sh),
		Cout: m.Signal(name+"_cout", rtl.Unsigned(1)),
	}
	m.Input(p.A)
	m.Input(p.B)
	m.Output(p.Sum)
	m.Output(p.Cout)
	full := rtl.Add(p.A, p.B) // width+1 bits, carry in the top bit
	lo, err := rtl.NewSlice(full, 0, width)
	if err != nil {
		return nil, AdderPorts{}, errors.Wrap(err, "cells: adder")
	}
	carry, err := rtl.Bit(full, width)
	if err != nil {
		return nil, AdderPorts{}, errors.Wrap(err, "cells: adder")
	}
	if err := m.Assign(rtl.Comb, p.Sum, lo); err != nil {
		return nil, AdderPorts{}, err
	}
	if err := m.Assign(rtl.Comb, p.Cout, carry); err != nil {
		return nil, AdderPorts{}, err
	}
	return m, p, nil
}

// EdgeDetectPorts is the port interface of an EdgeDetect.
//
type EdgeDetectPorts struct {
	In   *rtl.Signal // monitored input, 1 bit
	Rise *rtl.Signal // 1 for one cycle after a 0 to 1 transition of in
}

// EdgeDetect returns a rising edge detector for a 1-bit input, in the
// named domain. The output compares the input against its value one
// active edge in the past.
//
func EdgeDetect(name, domain string) (*rtl.Module, EdgeDetectPorts, error) {
	m := rtl.NewModule(name)
	p := EdgeDetectPorts{
		In:   m.Signal(name+"_in", rtl.Unsigned(1)),
		Rise: m.Signal(name+"_rise", rtl.Unsigned(1)),
	}
	m.Input(p.In)
	m.Output(p.Rise)
	prev, err := rtl.NewSample(p.In, domain, 1)
	if err != nil {
		return nil, EdgeDetectPorts{}, errors.Wrap(err, "cells: edge detect")
	}
	if err := m.Assign(rtl.Comb, p.Rise, rtl.And(p.In, rtl.Not(prev))); err != nil {
		return nil, EdgeDetectPorts{}, err
	}
	return m, p, nil
}

// ShiftRegPorts is the port interface of a ShiftReg.
//
type ShiftRegPorts struct {
	In  *rtl.Signal // serial input, 1 bit
	Out *rtl.Signal // parallel output, depth bits, oldest bit on top
}

// ShiftReg returns a serial-in, parallel-out shift register of the given
// depth, shifting towards the most significant bit on every active edge.
//
func ShiftReg(name, domain string, depth int) (*rtl.Module, ShiftRegPorts, error) {
	if depth < 1 {
		return nil, ShiftRegPorts{}, errors.Errorf("cells: shift register depth must be positive, got %d", depth)
	}
	m := rtl.NewModule(name)
	p := ShiftRegPorts{
		In:  m.Signal(name+"_in", rtl.Unsigned(1)),
		Out: m.Signal(name+"_out", rtl.Unsigned(depth)),
	}
	m.Input(p.In)
	m.Output(p.Out)
	var next rtl.Value = p.In
	if depth > 1 {
		kept, err := rtl.NewSlice(p.Out, 0, depth-1)
		if err != nil {
			return nil, ShiftRegPorts{}, errors.Wrap(err, "cells: shift register")
		}
		next, err = rtl.NewCat(p.In, kept)
		if err != nil {
			return nil, ShiftRegPorts{}, errors.Wrap(err, "cells: shift register")
		}
	}
	if err := m.Assign(domain, p.Out, next); err != nil {
		return nil, ShiftRegPorts{}, err
	}
	return m, p, nil
}
