// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package cells_test

import (
	"testing"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/cells"
	"github.com/db47h/rtl/sim"
	"github.com/db47h/rtl/simtest"
)

// wrap nests sub under a fresh top module declaring a "sys" clock domain.
func wrap(sub *rtl.Module) *rtl.Module {
	top := rtl.NewModule("top")
	top.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))
	top.AddSub(sub)
	return top
}

func Test_register(t *testing.T) {
	reg, p, err := cells.Register("r", "sys", rtl.Unsigned(8))
	if err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(wrap(reg))
	if err != nil {
		t.Fatal(err)
	}
	s := sim.New(f)
	if err := s.AddClock("sys"); err != nil {
		t.Fatal(err)
	}
	s.AddProcess(func(pr *sim.Proc) error {
		pr.Set(p.D, 0x42)
		pr.Set(p.En, 1)
		pr.WaitEdge("sys")
		if got := pr.GetInt64(p.Q); got != 0x42 {
			t.Errorf("q = %#x after load, want 0x42", got)
		}
		// disabled: q holds
		pr.Set(p.En, 0)
		pr.Set(p.D, 0x99)
		pr.WaitEdge("sys")
		if got := pr.GetInt64(p.Q); got != 0x42 {
			t.Errorf("q = %#x while disabled, want 0x42", got)
		}
		return nil
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
}

func Test_counter(t *testing.T) {
	ctr, p, err := cells.Counter("c", "sys", 2)
	if err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(wrap(ctr))
	if err != nil {
		t.Fatal(err)
	}
	s := sim.New(f)
	if err := s.AddClock("sys"); err != nil {
		t.Fatal(err)
	}
	s.AddProcess(func(pr *sim.Proc) error {
		pr.Set(p.En, 1)
		wraps := 0
		for i := 1; i <= 8; i++ {
			pr.WaitEdge("sys")
			if got, want := pr.GetInt64(p.Count), int64(i%4); got != want {
				t.Errorf("count = %d after %d edges, want %d", got, i, want)
			}
			if pr.GetInt64(p.Wrap) == 1 {
				wraps++
			}
		}
		if wraps != 2 {
			t.Errorf("saw %d wrap pulses over 8 edges, want 2", wraps)
		}
		return nil
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
}

func Test_shift_register(t *testing.T) {
	sr, p, err := cells.ShiftReg("s", "sys", 4)
	if err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(wrap(sr))
	if err != nil {
		t.Fatal(err)
	}
	s := sim.New(f)
	if err := s.AddClock("sys"); err != nil {
		t.Fatal(err)
	}
	s.AddProcess(func(pr *sim.Proc) error {
		for _, bit := range []int64{1, 0, 1, 1} {
			pr.Set(p.In, bit)
			pr.WaitEdge("sys")
		}
		// oldest bit on top, newest at bit 0
		if got := pr.GetInt64(p.Out); got != 0xB {
			t.Errorf("out = %#b, want 0b1011", got)
		}
		return nil
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
}

func Test_edge_detect(t *testing.T) {
	det, p, err := cells.EdgeDetect("e", "sys")
	if err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(wrap(det))
	if err != nil {
		t.Fatal(err)
	}
	s := sim.New(f)
	if err := s.AddClock("sys"); err != nil {
		t.Fatal(err)
	}
	s.AddProcess(func(pr *sim.Proc) error {
		pr.Set(p.In, 0)
		pr.WaitEdge("sys")
		// the pulse shows as soon as in rises, through the comb path
		pr.Set(p.In, 1)
		if pr.GetInt64(p.Rise) != 1 {
			t.Error("no rise pulse after a 0 to 1 transition")
		}
		// and clears at the next edge, when the sampled value catches up
		pr.WaitEdge("sys")
		if pr.GetInt64(p.Rise) != 0 {
			t.Error("rise pulse lasted past the next edge")
		}
		return nil
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
}

func Test_mux(t *testing.T) {
	mux, p, err := cells.Mux("m", rtl.Unsigned(4), 3)
	if err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(mux)
	if err != nil {
		t.Fatal(err)
	}
	s := sim.New(f)
	s.AddProcess(func(pr *sim.Proc) error {
		for i, in := range p.In {
			pr.Set(in, int64(i+5))
		}
		for _, d := range []struct{ sel, want int64 }{{0, 5}, {1, 6}, {2, 7}, {3, 7}} {
			pr.Set(p.Sel, d.sel)
			pr.WaitSettle()
			if got := pr.GetInt64(p.Out); got != d.want {
				t.Errorf("sel=%d: out = %d, want %d", d.sel, got, d.want)
			}
		}
		return nil
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
}

// behavioralAdder computes sum and carry through compare logic instead of
// slicing, as a reference for the equivalence check.
func behavioralAdder(t *testing.T, width int) *rtl.Fragment {
	t.Helper()
	m := rtl.NewModule("ref")
	sh := rtl.Unsigned(width)
	a := m.Signal("add_a", sh)
	b := m.Signal("add_b", sh)
	sum := m.Signal("add_sum", sh)
	cout := m.Signal("add_cout", rtl.Unsigned(1))
	m.Input(a)
	m.Input(b)
	m.Output(sum)
	m.Output(cout)
	if err := m.Assign(rtl.Comb, sum, rtl.Add(a, b)); err != nil {
		t.Fatal(err)
	}
	limit := rtl.C((int64(1)<<uint(width))-1, sh)
	// carry out iff a + b exceeds the width
	if err := m.Assign(rtl.Comb, cout, rtl.Gt(rtl.Add(a, b), limit)); err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(m)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func Test_adder_equivalence(t *testing.T) {
	add, _, err := cells.Adder("add", 6)
	if err != nil {
		t.Fatal(err)
	}
	f, err := rtl.Elaborate(add)
	if err != nil {
		t.Fatal(err)
	}
	simtest.Equivalent(t, 128, 1, f, behavioralAdder(t, 6))
}
