// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package simtest provides utility functions for testing elaborated
// designs against each other.
//
package simtest

import (
	"math/big"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/sim"
)

// Equivalent drives two fragments with the same random stimulus and fails
// the test on the first diverging output. Ports are matched by signal
// name: both fragments must expose the same input and output names with
// the same widths. Clocked fragments must declare the same domains; each
// domain gets an engine clock and stimulus is applied once per active
// edge. The seed makes failures reproducible.
//
func Equivalent(t *testing.T, iters int, seed int64, a, b *rtl.Fragment) {
	t.Helper()

	inNames := matchPorts(t, "input", a.Inputs(), b.Inputs())
	outNames := matchPorts(t, "output", a.Outputs(), b.Outputs())
	if len(inNames) == 0 {
		t.Fatal("fragments have no input ports to drive")
	}

	// precompute the stimulus so both runs see identical values
	rng := rand.New(rand.NewSource(seed))
	byName := portMap(a.Inputs())
	stim := make([][]*big.Int, iters)
	for i := range stim {
		row := make([]*big.Int, len(inNames))
		for j, n := range inNames {
			w := byName[n].Shape().Width
			max := new(big.Int).Lsh(big.NewInt(1), uint(w))
			row[j] = new(big.Int).Rand(rng, max)
		}
		stim[i] = row
	}

	ra := run(t, a, inNames, outNames, stim)
	rb := run(t, b, inNames, outNames, stim)
	for i := range ra {
		for j := range ra[i] {
			if ra[i][j].Cmp(rb[i][j]) != 0 {
				t.Fatalf("iteration %d: output %s differs: %s != %s\ninputs: %s",
					i, outNames[j], ra[i][j], rb[i][j], stimString(inNames, stim[i]))
			}
		}
	}
}

func run(t *testing.T, f *rtl.Fragment, inNames, outNames []string, stim [][]*big.Int) [][]*big.Int {
	t.Helper()

	ins := portMap(f.Inputs())
	outs := portMap(f.Outputs())
	s := sim.New(f)
	doms := f.DomainNames()
	for _, dn := range doms {
		if err := s.AddClock(dn); err != nil {
			t.Fatal(err)
		}
	}
	res := make([][]*big.Int, 0, len(stim))
	s.AddProcess(func(p *sim.Proc) error {
		for _, row := range stim {
			for j, n := range inNames {
				p.SetBig(ins[n], row[j])
			}
			if len(doms) > 0 {
				p.WaitEdge(doms[0])
			}
			p.WaitSettle()
			out := make([]*big.Int, len(outNames))
			for j, n := range outNames {
				out[j] = p.Get(outs[n])
			}
			res = append(res, out)
		}
		return nil
	})
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	return res
}

func portMap(sigs []*rtl.Signal) map[string]*rtl.Signal {
	m := make(map[string]*rtl.Signal, len(sigs))
	for _, sig := range sigs {
		m[sig.Name()] = sig
	}
	return m
}

// matchPorts checks that both port sets carry the same names and shapes
// and returns the names in sorted order.
//
func matchPorts(t *testing.T, kind string, a, b []*rtl.Signal) []string {
	t.Helper()

	ma, mb := portMap(a), portMap(b)
	if len(ma) != len(mb) {
		t.Fatalf("%s port count differs: %d != %d", kind, len(ma), len(mb))
	}
	names := make([]string, 0, len(ma))
	for n, sa := range ma {
		sb, ok := mb[n]
		if !ok {
			t.Fatalf("%s port %s missing from second fragment", kind, n)
		}
		if sa.Shape() != sb.Shape() {
			t.Fatalf("%s port %s: shape %s != %s", kind, n, sa.Shape(), sb.Shape())
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func stimString(names []string, row []*big.Int) string {
	var sb strings.Builder
	for i, n := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n)
		sb.WriteRune('=')
		sb.WriteString(row[i].String())
	}
	return sb.String()
}
