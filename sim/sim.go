// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package sim is an event-driven simulator for elaborated rtl fragments.

The engine is single threaded and cooperative: combinational logic is
settled to a fixed point in the statement order computed at elaboration,
synchronous state advances on clock domain edges, and registered test
processes run one at a time between those phases. Two runs of the same
fragment with the same stimulus produce bit-identical value-change traces.
*/
package sim

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/db47h/rtl"
)

var simLog = commonlog.GetLogger("rtl.sim")

// A Simulator executes one elaborated fragment. It holds the only mutable
// state of a run: the fragment itself is never written to.
//
type Simulator struct {
	frag *rtl.Fragment
	cfg  Config

	cur      map[*rtl.Signal]*big.Int
	clusters []*rtl.CombCluster
	readers  map[*rtl.Signal][]int // signal -> indexes of clusters reading it
	dirty    []bool
	ndirty   int

	clkDoms map[*rtl.Signal][]string // clock signal -> domains clocked by it
	rstDoms map[*rtl.Signal][]string // reset signal -> async-reset domains

	pendEdges  []string // domains with an uncommitted active edge
	pendResets []string // async-reset domains with reset just asserted

	now     uint64
	steps   int
	clocks  []*clock
	procs   []*Proc
	changes []func(Change)

	started bool
	stopped bool
	fatal   error
}

type clock struct {
	domain string
	div    uint64
	cnt    uint64
}

// New returns a simulator for frag with the default configuration.
//
func New(frag *rtl.Fragment) *Simulator {
	return NewWith(frag, DefaultConfig())
}

// NewWith returns a simulator for frag bounded by cfg.
//
func NewWith(frag *rtl.Fragment, cfg Config) *Simulator {
	if cfg.Run.SettleLimit < 1 {
		cfg.Run.SettleLimit = DefaultConfig().Run.SettleLimit
	}
	s := &Simulator{
		frag:     frag,
		cfg:      cfg,
		cur:      make(map[*rtl.Signal]*big.Int, len(frag.Signals())),
		clusters: frag.CombClusters(),
		readers:  make(map[*rtl.Signal][]int),
		clkDoms:  make(map[*rtl.Signal][]string),
		rstDoms:  make(map[*rtl.Signal][]string),
	}
	s.dirty = make([]bool, len(s.clusters))
	for i, cl := range s.clusters {
		for _, sig := range cl.Reads {
			s.readers[sig] = append(s.readers[sig], i)
		}
	}
	for _, dn := range frag.DomainNames() {
		d := frag.Domain(dn)
		s.clkDoms[d.Clk()] = append(s.clkDoms[d.Clk()], dn)
		if d.Rst() != nil && d.ResetStyle() == rtl.AsyncReset {
			s.rstDoms[d.Rst()] = append(s.rstDoms[d.Rst()], dn)
		}
	}
	return s
}

// OnChange subscribes fn to the value-change feed: fn is called for every
// committed change, in commit order. Must be called before Run.
//
func (s *Simulator) OnChange(fn func(Change)) {
	s.changes = append(s.changes, fn)
}

// AddClock registers an engine-driven clock for the named domain, toggling
// its clock signal every tick.
//
func (s *Simulator) AddClock(domain string) error {
	return s.AddClockDiv(domain, 1)
}

// AddClockDiv registers an engine-driven clock toggling every div ticks,
// for multi-rate designs.
//
func (s *Simulator) AddClockDiv(domain string, div uint64) error {
	if s.frag.Domain(domain) == nil {
		return errors.Errorf("unknown clock domain %q", domain)
	}
	if div < 1 {
		return errors.Errorf("clock divider for domain %q must be positive", domain)
	}
	s.clocks = append(s.clocks, &clock{domain: domain, div: div})
	return nil
}

// AddProcess registers a test process. Processes resume in registration
// order when ready at the same instant. Must be called before Run.
//
func (s *Simulator) AddProcess(fn ProcessFn) {
	p := &Proc{
		s:      s,
		idx:    len(s.procs),
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan yieldMsg),
	}
	s.procs = append(s.procs, p)
}

// Peek returns the current value of a signal (the reset value before Run).
//
func (s *Simulator) Peek(sig *rtl.Signal) *big.Int {
	if v, ok := s.cur[sig]; ok {
		return new(big.Int).Set(v)
	}
	return sig.Reset()
}

// Now returns the current simulation timestamp.
//
func (s *Simulator) Now() uint64 { return s.now }

// Run executes the simulation until every process has completed, the
// configured tick count has elapsed, the step limit is hit, or a fatal
// error occurs. A simulator runs exactly once.
//
func (s *Simulator) Run() error {
	if s.started {
		return errors.New("simulator already ran")
	}
	s.started = true
	simLog.Debugf("run: %d signals, %d comb clusters, %d processes, %d clocks",
		len(s.frag.Signals()), len(s.clusters), len(s.procs), len(s.clocks))

	// initial state: every signal at its reset value, all combinational
	// logic evaluated once
	for _, sig := range s.frag.Signals() {
		s.cur[sig] = sig.Reset()
	}
	for i := range s.dirty {
		s.dirty[i] = true
		s.ndirty++
	}
	if err := s.stabilize(); err != nil {
		s.fatal = err
		return err
	}

	for _, p := range s.procs {
		p.ready = true
		p.start()
	}
	s.runReady()

	for s.fatal == nil && !s.stopped && !s.allDone() {
		if s.cfg.Run.Ticks > 0 && s.now >= s.cfg.Run.Ticks {
			break
		}
		if len(s.procs) == 0 && s.cfg.Run.Ticks == 0 {
			// without processes only the tick limit can bound the run
			break
		}
		if len(s.clocks) == 0 {
			// nothing left that could ever wake a process
			break
		}
		if s.countStep() {
			break
		}
		if err := s.tick(); err != nil {
			s.fatal = err
			break
		}
		s.runReady()
	}
	s.teardown()
	if s.fatal != nil {
		simLog.Errorf("run aborted at t=%d: %s", s.now, s.fatal.Error())
	}
	return s.fatal
}

func (s *Simulator) allDone() bool {
	if len(s.procs) == 0 {
		return false
	}
	for _, p := range s.procs {
		if !p.done {
			return false
		}
	}
	return true
}

func (s *Simulator) countStep() bool {
	s.steps++
	if s.cfg.Run.StepLimit > 0 && s.steps > s.cfg.Run.StepLimit {
		s.stopped = true
		return true
	}
	return false
}

func (s *Simulator) teardown() {
	for _, p := range s.procs {
		if !p.done {
			close(p.resume)
			p.done = true
		}
	}
}

// tick advances the timestamp and toggles every engine-driven clock.
//
func (s *Simulator) tick() error {
	s.now++
	for _, ck := range s.clocks {
		ck.cnt++
		if ck.cnt%ck.div != 0 {
			continue
		}
		clk := s.frag.Domain(ck.domain).Clk()
		if s.cur[clk].Sign() == 0 {
			s.commit(clk, big.NewInt(1))
		} else {
			s.commit(clk, new(big.Int))
		}
	}
	return s.stabilize()
}

// poke is a process write: commit the value, then bring the design back to
// a stable state before returning control to the process.
//
func (s *Simulator) poke(sig *rtl.Signal, v *big.Int) {
	s.commit(sig, norm(v, sig.Shape()))
	if err := s.stabilize(); err != nil {
		s.fatal = err
		panic(errAbort)
	}
}

// commit writes a new current value for sig and fans the change out:
// trace subscribers, dirty marks on reading clusters, watching processes,
// and clock-edge/async-reset bookkeeping.
//
func (s *Simulator) commit(sig *rtl.Signal, v *big.Int) {
	old := s.cur[sig]
	if old == nil {
		old = sig.Reset()
	}
	if old.Cmp(v) == 0 {
		return
	}
	s.cur[sig] = v
	for _, fn := range s.changes {
		fn(Change{Time: s.now, Signal: sig, Value: new(big.Int).Set(v)})
	}
	for _, ci := range s.readers[sig] {
		if !s.dirty[ci] {
			s.dirty[ci] = true
			s.ndirty++
		}
	}
	for _, p := range s.procs {
		if !p.done && !p.ready && p.pend.kind == waitChange && p.pend.sig == sig {
			p.ready = true
		}
	}
	for _, dn := range s.clkDoms[sig] {
		d := s.frag.Domain(dn)
		rising := old.Sign() == 0 && v.Sign() != 0
		if (d.ActiveEdge() == rtl.Rising) == rising {
			s.pendEdges = append(s.pendEdges, dn)
		}
	}
	if v.Sign() != 0 {
		s.pendResets = append(s.pendResets, s.rstDoms[sig]...)
	}
}

// stabilize processes pending clock edges and asynchronous resets and
// settles combinational logic until nothing is left to do, then checks
// combinational assertions and wakes settle waiters. Pending edges are
// processed before settling so that synchronous statements observe
// pre-edge state.
//
func (s *Simulator) stabilize() error {
	for rounds := 0; ; rounds++ {
		if rounds > s.cfg.Run.SettleLimit {
			return &SimulationInstabilityError{Passes: rounds}
		}
		switch {
		case len(s.pendEdges) > 0:
			doms := s.pendEdges
			s.pendEdges = nil
			if err := s.edgePhase(doms); err != nil {
				return err
			}
		case len(s.pendResets) > 0:
			doms := s.pendResets
			s.pendResets = nil
			s.asyncReset(doms)
		case s.ndirty > 0:
			if err := s.settle(); err != nil {
				return err
			}
		default:
			if err := s.checkAsserts(s.frag.Stmts(rtl.Comb), rtl.Comb); err != nil {
				return err
			}
			for _, p := range s.procs {
				if !p.done && !p.ready && p.pend.kind == waitSettle {
					p.ready = true
				}
			}
			return nil
		}
	}
}

// settle re-evaluates dirty combinational clusters, in elaboration order,
// until a fixed point is reached or the iteration bound is exceeded.
//
func (s *Simulator) settle() error {
	for pass := 0; s.ndirty > 0; pass++ {
		if pass >= s.cfg.Run.SettleLimit {
			var culprit *rtl.Signal
			for i, cl := range s.clusters {
				if s.dirty[i] {
					culprit = cl.Sig
					break
				}
			}
			return &SimulationInstabilityError{Signal: culprit, Passes: pass}
		}
		for i, cl := range s.clusters {
			if !s.dirty[i] {
				continue
			}
			s.dirty[i] = false
			s.ndirty--
			if v := s.evalCluster(cl); v.Cmp(s.cur[cl.Sig]) != 0 {
				s.commit(cl.Sig, v)
			}
		}
	}
	return nil
}

func (s *Simulator) get(sig *rtl.Signal) *big.Int { return s.cur[sig] }

// evalCluster replays the combinational statements that may drive cl.Sig,
// in program order, starting from the signal's reset value.
//
func (s *Simulator) evalCluster(cl *rtl.CombCluster) *big.Int {
	val := cl.Sig.Reset()
	for _, st := range cl.Stmts {
		val = s.applyClusterStmt(cl.Sig, st, val)
	}
	return val
}

func (s *Simulator) applyClusterStmt(sig *rtl.Signal, st rtl.Statement, val *big.Int) *big.Int {
	switch st := st.(type) {
	case *rtl.Assign:
		applyAssign(st, s.get,
			func(x *rtl.Signal) *big.Int {
				if x == sig {
					return val
				}
				return s.cur[x]
			},
			func(x *rtl.Signal, v *big.Int) {
				if x == sig {
					val = v
				}
			})
	case *rtl.Switch:
		if c := matchCase(st, s.get); c != nil {
			for _, b := range c.Body() {
				val = s.applyClusterStmt(sig, b, val)
			}
		}
	}
	return val
}

// edgePhase evaluates the synchronous statements of every domain whose
// active edge fired at this instant. All reads observe pre-edge state;
// all results are buffered and committed simultaneously afterwards.
//
func (s *Simulator) edgePhase(doms []string) error {
	fired := make(map[string]bool, len(doms))
	for _, dn := range doms {
		fired[dn] = true
	}
	staged := make(map[*rtl.Signal]*big.Int)
	stagedGet := func(x *rtl.Signal) *big.Int {
		if v, ok := staged[x]; ok {
			return v
		}
		return s.cur[x]
	}
	for _, dn := range s.frag.DomainNames() {
		if !fired[dn] {
			continue
		}
		d := s.frag.Domain(dn)
		if d.Rst() != nil && s.cur[d.Rst()].Sign() != 0 {
			// reset asserted: force the domain's signals to their reset
			// values instead of the computed next state
			for _, sig := range s.frag.Signals() {
				if s.frag.DriverDomain(sig) == dn {
					staged[sig] = sig.Reset()
				}
			}
			continue
		}
		for _, st := range s.frag.Stmts(dn) {
			if err := s.applyEdgeStmt(st, dn, staged, stagedGet); err != nil {
				return err
			}
		}
	}
	for _, sig := range s.frag.Signals() {
		if v, ok := staged[sig]; ok {
			s.commit(sig, v)
		}
	}
	for _, p := range s.procs {
		if !p.done && !p.ready && p.pend.kind == waitEdge && fired[p.pend.domain] {
			p.ready = true
		}
	}
	return nil
}

func (s *Simulator) applyEdgeStmt(st rtl.Statement, dn string, staged map[*rtl.Signal]*big.Int, stagedGet func(*rtl.Signal) *big.Int) error {
	switch st := st.(type) {
	case *rtl.Assign:
		applyAssign(st, s.get, stagedGet,
			func(x *rtl.Signal, v *big.Int) { staged[x] = v })
	case *rtl.Switch:
		if c := matchCase(st, s.get); c != nil {
			for _, b := range c.Body() {
				if err := s.applyEdgeStmt(b, dn, staged, stagedGet); err != nil {
					return err
				}
			}
		}
	case *rtl.Assert:
		if eval(st.Cond(), s.get).Sign() == 0 {
			return &AssertionError{Msg: st.Msg(), Time: s.now, Domain: dn}
		}
	case *rtl.Assume:
		if eval(st.Cond(), s.get).Sign() == 0 {
			return &AssertionError{Msg: st.Msg(), Time: s.now, Domain: dn}
		}
	}
	return nil
}

// asyncReset forces the signals of the given async-reset domains to their
// reset values, immediately and independently of any clock edge.
//
func (s *Simulator) asyncReset(doms []string) {
	fired := make(map[string]bool, len(doms))
	for _, dn := range doms {
		fired[dn] = true
	}
	for _, sig := range s.frag.Signals() {
		dn := s.frag.DriverDomain(sig)
		if dn != "" && dn != rtl.Comb && fired[dn] {
			s.commit(sig, sig.Reset())
		}
	}
}

// checkAsserts evaluates assertion statements with the current state,
// honoring switch branches.
//
func (s *Simulator) checkAsserts(stmts []rtl.Statement, dn string) error {
	for _, st := range stmts {
		switch st := st.(type) {
		case *rtl.Assert:
			if eval(st.Cond(), s.get).Sign() == 0 {
				return &AssertionError{Msg: st.Msg(), Time: s.now, Domain: dn}
			}
		case *rtl.Assume:
			if eval(st.Cond(), s.get).Sign() == 0 {
				return &AssertionError{Msg: st.Msg(), Time: s.now, Domain: dn}
			}
		case *rtl.Switch:
			if c := matchCase(st, s.get); c != nil {
				if err := s.checkAsserts(c.Body(), dn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// runReady resumes ready processes in registration order until none is
// ready. A resumed process may make others ready again (by writing
// watched signals); the scan restarts from the first process to keep
// resumption order stable.
//
func (s *Simulator) runReady() {
	for s.fatal == nil && !s.stopped {
		var p *Proc
		for _, q := range s.procs {
			if q.ready && !q.done {
				p = q
				break
			}
		}
		if p == nil {
			return
		}
		p.ready = false
		if s.countStep() {
			return
		}
		s.resumeProc(p)
	}
}

func (s *Simulator) resumeProc(p *Proc) {
	p.resume <- struct{}{}
	msg := <-p.yield
	if msg.done {
		p.done = true
		p.err = msg.err
		if msg.err != nil && s.fatal == nil {
			s.fatal = errors.Wrapf(msg.err, "process %d failed", p.idx)
		}
		return
	}
	p.pend = msg.w
	if msg.w.kind == waitSettle {
		// runReady only runs on a stable design, so a settle wait issued
		// here yields to other ready processes and resumes within the
		// same instant
		p.ready = true
	}
}
