// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl_test

import (
	"strings"
	"testing"

	"github.com/db47h/rtl"
)

func mustAssign(t *testing.T, target, src rtl.Value) *rtl.Assign {
	t.Helper()
	a, err := rtl.NewAssign(target, src)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func Test_elaborate_counter(t *testing.T) {
	m := rtl.NewModule("top")
	m.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	count := m.Signal("count", rtl.Unsigned(2))
	if err := m.Assign("sys", count, rtl.Add(count, rtl.CInt(1))); err != nil {
		t.Fatal(err)
	}
	m.Output(count)

	f, err := rtl.Elaborate(m)
	if err != nil {
		t.Fatal(err)
	}
	if f.Domain("sys") == nil {
		t.Fatal("domain sys missing from fragment")
	}
	if got := f.DriverDomain(count); got != "sys" {
		t.Errorf("driver domain = %q, want \"sys\"", got)
	}
	if len(f.Outputs()) != 1 || f.Outputs()[0] != count {
		t.Error("output port list does not hold count")
	}
	// count plus the domain's clock and reset cells
	if got := len(f.Signals()); got != 3 {
		t.Errorf("fragment holds %d signals, want 3", got)
	}
}

func Test_elaborate_driver_conflict(t *testing.T) {
	m := rtl.NewModule("top")
	out := m.Signal("out", rtl.Unsigned(4))
	a := m.Signal("a", rtl.Unsigned(4))
	if err := m.Assign(rtl.Comb, out, a); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, out, rtl.CInt(1)); err != nil {
		t.Fatal(err)
	}
	_, err := rtl.Elaborate(m)
	if _, ok := err.(*rtl.DriverConflictError); !ok {
		t.Fatalf("got %v (%T), want *rtl.DriverConflictError", err, err)
	}
}

func Test_elaborate_disjoint_slices(t *testing.T) {
	// writes to non-overlapping bit ranges of one signal do not conflict
	m := rtl.NewModule("top")
	out := m.Signal("out", rtl.Unsigned(8))
	a := m.Signal("a", rtl.Unsigned(4))
	lo, err := rtl.NewSlice(out, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	hi, err := rtl.NewSlice(out, 4, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, lo, a); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, hi, a); err != nil {
		t.Fatal(err)
	}
	if _, err := rtl.Elaborate(m); err != nil {
		t.Fatal(err)
	}
}

func Test_elaborate_exclusive_branches(t *testing.T) {
	// assignments in distinct cases of one switch are mutually exclusive
	m := rtl.NewModule("top")
	sel := m.Signal("sel", rtl.Unsigned(1))
	out := m.Signal("out", rtl.Unsigned(4))
	a := m.Signal("a", rtl.Unsigned(4))
	b := m.Signal("b", rtl.Unsigned(4))
	m.Add(rtl.Comb, rtl.NewSwitch(sel).
		Case([]int64{0}, mustAssign(t, out, a)).
		Default(mustAssign(t, out, b)))
	if _, err := rtl.Elaborate(m); err != nil {
		t.Fatal(err)
	}

	// the same two assignments in the same branch do conflict
	m2 := rtl.NewModule("top")
	sel2 := m2.Signal("sel", rtl.Unsigned(1))
	out2 := m2.Signal("out", rtl.Unsigned(4))
	m2.Add(rtl.Comb, rtl.NewSwitch(sel2).
		Case([]int64{0}, mustAssign(t, out2, rtl.CInt(1)), mustAssign(t, out2, rtl.CInt(2))))
	_, err := rtl.Elaborate(m2)
	if _, ok := err.(*rtl.DriverConflictError); !ok {
		t.Fatalf("got %v (%T), want *rtl.DriverConflictError", err, err)
	}
}

func Test_elaborate_default_override(t *testing.T) {
	// an unconditional default plus a guarded override is the idiomatic
	// priority pattern and must elaborate
	m := rtl.NewModule("top")
	sel := m.Signal("sel", rtl.Unsigned(1))
	out := m.Signal("out", rtl.Unsigned(4))
	if err := m.Assign(rtl.Comb, out, rtl.CInt(0)); err != nil {
		t.Fatal(err)
	}
	m.Add(rtl.Comb, rtl.NewSwitch(sel).Case([]int64{1}, mustAssign(t, out, rtl.CInt(9))))
	if _, err := rtl.Elaborate(m); err != nil {
		t.Fatal(err)
	}
}

func Test_elaborate_domain_conflict(t *testing.T) {
	m := rtl.NewModule("top")
	m.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	out := m.Signal("out", rtl.Unsigned(4))
	if err := m.Assign("sys", out, rtl.CInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, out, rtl.CInt(2)); err != nil {
		t.Fatal(err)
	}
	_, err := rtl.Elaborate(m)
	if _, ok := err.(*rtl.DomainConflictError); !ok {
		t.Fatalf("got %v (%T), want *rtl.DomainConflictError", err, err)
	}
}

func Test_elaborate_comb_loop(t *testing.T) {
	m := rtl.NewModule("top")
	a := m.Signal("a", rtl.Unsigned(4))
	b := m.Signal("b", rtl.Unsigned(4))
	if err := m.Assign(rtl.Comb, a, rtl.Not(b)); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, b, rtl.Not(a)); err != nil {
		t.Fatal(err)
	}
	_, err := rtl.Elaborate(m)
	lerr, ok := err.(*rtl.CombinationalLoopError)
	if !ok {
		t.Fatalf("got %v (%T), want *rtl.CombinationalLoopError", err, err)
	}
	if len(lerr.Signals) != 2 {
		t.Errorf("cycle holds %d signals, want 2", len(lerr.Signals))
	}
}

func Test_elaborate_self_loop(t *testing.T) {
	m := rtl.NewModule("top")
	a := m.Signal("a", rtl.Unsigned(4))
	if err := m.Assign(rtl.Comb, a, rtl.Add(a, rtl.CInt(1))); err != nil {
		t.Fatal(err)
	}
	if _, err := rtl.Elaborate(m); err == nil {
		t.Fatal("no error for combinational self loop")
	}
}

func Test_elaborate_registered_loop(t *testing.T) {
	// feedback through a register is not a combinational loop
	m := rtl.NewModule("top")
	m.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	a := m.Signal("a", rtl.Unsigned(4))
	b := m.Signal("b", rtl.Unsigned(4))
	if err := m.Assign(rtl.Comb, a, rtl.Not(b)); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign("sys", b, a); err != nil {
		t.Fatal(err)
	}
	if _, err := rtl.Elaborate(m); err != nil {
		t.Fatal(err)
	}
}

func Test_elaborate_comb_order(t *testing.T) {
	// clusters come out in dependency order regardless of program order
	m := rtl.NewModule("top")
	a := m.Signal("a", rtl.Unsigned(4))
	b := m.Signal("b", rtl.Unsigned(8))
	c := m.Signal("c", rtl.Unsigned(8))
	if err := m.Assign(rtl.Comb, c, rtl.Not(b)); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, b, rtl.Not(a)); err != nil {
		t.Fatal(err)
	}
	cls := func() []*rtl.CombCluster {
		f, err := rtl.Elaborate(m)
		if err != nil {
			t.Fatal(err)
		}
		return f.CombClusters()
	}()
	if len(cls) != 2 {
		t.Fatalf("got %d clusters, want 2", len(cls))
	}
	if cls[0].Sig != b || cls[1].Sig != c {
		t.Errorf("cluster order is %s, %s; want b, c", cls[0].Sig, cls[1].Sig)
	}
}

func Test_elaborate_undeclared_domain(t *testing.T) {
	m := rtl.NewModule("top")
	out := m.Signal("out", rtl.Unsigned(4))
	if err := m.Assign("sys", out, rtl.CInt(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := rtl.Elaborate(m); err == nil {
		t.Fatal("no error for undeclared clock domain")
	}
}

func Test_elaborate_driven_input(t *testing.T) {
	m := rtl.NewModule("top")
	in := m.Signal("in", rtl.Unsigned(4))
	m.Input(in)
	if err := m.Assign(rtl.Comb, in, rtl.CInt(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := rtl.Elaborate(m); err == nil {
		t.Fatal("no error for driven input port")
	}
}

func Test_elaborate_nested_ports(t *testing.T) {
	// a nested module's input markers do not constrain the parent
	sub := rtl.NewModule("sub")
	in := sub.Signal("in", rtl.Unsigned(4))
	out := sub.Signal("out", rtl.Unsigned(4))
	sub.Input(in)
	sub.Output(out)
	if err := sub.Assign(rtl.Comb, out, rtl.Not(in)); err != nil {
		t.Fatal(err)
	}

	top := rtl.NewModule("top")
	top.AddSub(sub)
	if err := top.Assign(rtl.Comb, in, rtl.CInt(3)); err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(top)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Inputs()) != 0 || len(f.Outputs()) != 0 {
		t.Error("nested port markers leaked into the fragment interface")
	}
}

func Test_elaborate_domain_rename(t *testing.T) {
	sub := rtl.NewModule("sub")
	q := sub.Signal("q", rtl.Unsigned(4))
	if err := sub.Assign("clk", q, rtl.Add(q, rtl.CInt(1))); err != nil {
		t.Fatal(err)
	}

	top := rtl.NewModule("top")
	top.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	top.AddSubRenamed(sub, map[string]string{"clk": "sys"})
	f, err := rtl.Elaborate(top)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.DriverDomain(q); got != "sys" {
		t.Errorf("driver domain = %q, want \"sys\"", got)
	}
}

func Test_elaborate_sample_lowering(t *testing.T) {
	m := rtl.NewModule("top")
	m.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	in := m.Signal("in", rtl.Unsigned(1))
	rise := m.Signal("rise", rtl.Unsigned(1))
	prev2, err := rtl.NewSample(in, "sys", 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(rtl.Comb, rise, rtl.And(in, rtl.Not(prev2))); err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(m)
	if err != nil {
		t.Fatal(err)
	}
	// the two pipeline stages are hidden synchronous signals
	var hidden []*rtl.Signal
	for _, sig := range f.Signals() {
		if strings.HasPrefix(sig.Name(), "$sample$sys$") {
			hidden = append(hidden, sig)
		}
	}
	if len(hidden) != 2 {
		t.Fatalf("got %d hidden sample signals, want 2", len(hidden))
	}
	for _, sig := range hidden {
		if got := f.DriverDomain(sig); got != "sys" {
			t.Errorf("sample stage %s driven by %q, want \"sys\"", sig, got)
		}
	}
	// no Sample node survives in any statement
	for _, dn := range f.StmtDomains() {
		for _, s := range f.Stmts(dn) {
			if a, ok := s.(*rtl.Assign); ok {
				if _, ok := a.Src().(*rtl.Sample); ok {
					t.Fatal("sample node survived elaboration")
				}
			}
		}
	}
}

func Test_elaborate_domain_redeclared(t *testing.T) {
	sub := rtl.NewModule("sub")
	sub.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	top := rtl.NewModule("top")
	top.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	top.AddSub(sub)
	_, err := rtl.Elaborate(top)
	cause := err
	for {
		type causer interface{ Cause() error }
		c, ok := cause.(causer)
		if !ok {
			break
		}
		cause = c.Cause()
	}
	if _, ok := cause.(*rtl.ResetDisciplineError); !ok {
		t.Fatalf("got %v (%T), want *rtl.ResetDisciplineError", err, cause)
	}
}

func Test_elaborate_sample_zero(t *testing.T) {
	in := rtl.NewSignal("in", rtl.Unsigned(4))
	v, err := rtl.NewSample(in, "sys", 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != in {
		t.Error("zero-edge sample is not the value itself")
	}
	if _, err := rtl.NewSample(in, rtl.Comb, 1); err == nil {
		t.Error("no error for sample in the combinational domain")
	}
	if _, err := rtl.NewSample(in, "sys", -1); err == nil {
		t.Error("no error for negative edge count")
	}
}
