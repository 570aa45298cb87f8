// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command rtlsim elaborates a small demo design, a wrapping counter with
// an edge-detected wrap flag, and simulates it for a number of clock
// cycles, printing the value changes it records. With -o the elaborated
// fragment is also written out in its canonical CBOR form.
//
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/cells"
	"github.com/db47h/rtl/export"
	"github.com/db47h/rtl/sim"
)

func main() {
	cfgPath := flag.String("c", "", "simulation config file (TOML)")
	out := flag.String("o", "", "write the elaborated fragment to this file (CBOR)")
	verbose := flag.Bool("v", false, "enable debug logging")
	cycles := flag.Uint64("n", 24, "number of clock cycles to simulate")
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	}
	if err := mainErr(*cfgPath, *out, *cycles); err != nil {
		fmt.Fprintln(os.Stderr, "rtlsim:", err)
		os.Exit(1)
	}
}

func mainErr(cfgPath, out string, cycles uint64) error {
	cfg := sim.DefaultConfig()
	if cfgPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(cfgPath); err != nil {
			return err
		}
	}

	top := rtl.NewModule("top")
	top.AddDomain(rtl.NewDomain("sys", rtl.Rising, rtl.SyncReset))

	ctr, cp, err := cells.Counter("ctr", "sys", 3)
	if err != nil {
		return err
	}
	top.AddSub(ctr)
	det, dp, err := cells.EdgeDetect("det", "sys")
	if err != nil {
		return err
	}
	top.AddSub(det)

	// count permanently enabled, wrap flag fed to the edge detector
	if err := top.AssignLit(rtl.Comb, cp.En, rtl.BoolLit(true)); err != nil {
		return err
	}
	if err := top.Assign(rtl.Comb, dp.In, cp.Wrap); err != nil {
		return err
	}
	top.Output(cp.Count)
	top.Output(dp.Rise)

	frag, err := rtl.Elaborate(top)
	if err != nil {
		return err
	}
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.Write(f, frag); err != nil {
			return err
		}
	}

	s := sim.NewWith(frag, cfg)
	if err := s.AddClock("sys"); err != nil {
		return err
	}
	if cfg.Trace.Enabled {
		s.OnChange(func(c sim.Change) {
			fmt.Println(c)
		})
	}
	s.AddProcess(func(p *sim.Proc) error {
		for i := uint64(0); i < cycles; i++ {
			p.WaitEdge("sys")
		}
		return nil
	})
	return s.Run()
}
