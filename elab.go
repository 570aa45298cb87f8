// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var elabLog = commonlog.GetLogger("rtl.elab")

// Elaborate flattens a module tree into a single immutable Fragment.
//
// The tree is walked depth first. Domains declared in a module are
// instantiated; domain references are resolved in the enclosing scope,
// with instance rename maps applied along the way. All signals and
// statements are collected into the fragment's domain-keyed statement map,
// Sample nodes are lowered to hidden synchronous signals, driver and
// domain conflicts are rejected, and the combinational statements are
// ordered topologically.
//
// Any diagnostic aborts elaboration: on error the returned Fragment is
// nil, never partial.
//
func Elaborate(root *Module) (*Fragment, error) {
	e := &elaborator{
		frag: &Fragment{
			domains: make(map[string]*ClockDomain),
			stmts:   make(map[string][]Statement),
			driver:  make(map[*Signal]string),
		},
		seen:    make(map[*Signal]bool),
		samples: make(map[string][]*sampleChain),
	}
	if err := e.walk(root, func(n string) string { return n }); err != nil {
		return nil, err
	}
	// only the root module's port markers define the fragment interface;
	// a nested module's ports become plain internal wires
	e.frag.inputs = append(e.frag.inputs, root.inputs...)
	e.frag.outputs = append(e.frag.outputs, root.outputs...)
	if err := e.checkDomains(); err != nil {
		return nil, err
	}
	e.lowerSamples()
	if err := e.checkDrivers(); err != nil {
		return nil, err
	}
	if err := e.orderComb(); err != nil {
		return nil, err
	}
	f := e.frag
	elabLog.Debugf("elaborated %s: %d signals, %d clock domains, %d comb clusters",
		root.name, len(f.signals), len(f.domains), len(f.comb))
	return f, nil
}

type elaborator struct {
	frag    *Fragment
	seen    map[*Signal]bool
	samples map[string][]*sampleChain // keyed by domain
	nsample int
}

func (e *elaborator) addSignal(sig *Signal) {
	if sig != nil && !e.seen[sig] {
		e.seen[sig] = true
		e.frag.signals = append(e.frag.signals, sig)
	}
}

func (e *elaborator) addStmt(domain string, s Statement) {
	f := e.frag
	if _, ok := f.stmts[domain]; !ok {
		f.keys = append(f.keys, domain)
	}
	f.stmts[domain] = append(f.stmts[domain], s)
}

func (e *elaborator) walk(m *Module, resolve func(string) string) error {
	for _, d := range m.domains {
		name := resolve(d.name)
		if prev, ok := e.frag.domains[name]; ok && prev != d {
			// each declaration carries its own clock and reset cells, so a
			// redeclaration is always contradictory
			return &ResetDisciplineError{Domain: name}
		}
		if _, ok := e.frag.domains[name]; !ok {
			e.frag.dnames = append(e.frag.dnames, name)
		}
		e.frag.domains[name] = d
		e.addSignal(d.clk)
		e.addSignal(d.rst)
	}
	for _, sig := range m.signals {
		e.addSignal(sig)
	}
	for _, key := range m.order {
		name := resolve(key)
		for _, s := range m.stmts[key] {
			e.addStmt(name, copyStmt(s, resolve))
		}
	}
	for _, sub := range m.subs {
		if err := e.walk(sub.mod, composeResolver(resolve, sub.renames)); err != nil {
			return errors.Wrap(err, "in "+m.name)
		}
	}
	return nil
}

func composeResolver(parent func(string) string, renames map[string]string) func(string) string {
	return func(n string) string {
		if n == Comb {
			return n
		}
		if r, ok := renames[n]; ok {
			n = r
		}
		return parent(n)
	}
}

// copyStmt deep-copies a statement into the fragment, resolving domain
// names referenced by Sample nodes. Value trees are immutable and shared,
// except where a Sample forces a rebuild.
//
func copyStmt(s Statement, resolve func(string) string) Statement {
	switch s := s.(type) {
	case *Assign:
		return &Assign{target: s.target, src: resolveValue(s.src, resolve), fields: s.fields}
	case *Switch:
		sw := &Switch{test: resolveValue(s.test, resolve)}
		for _, c := range s.cases {
			body := make([]Statement, len(c.body))
			for i, b := range c.body {
				body[i] = copyStmt(b, resolve)
			}
			sw.cases = append(sw.cases, &Case{patterns: c.patterns, body: body})
		}
		return sw
	case *Assert:
		return &Assert{cond: resolveValue(s.cond, resolve), msg: s.msg}
	case *Assume:
		return &Assume{cond: resolveValue(s.cond, resolve), msg: s.msg}
	}
	return s
}

// resolveValue rewrites the domain names held by Sample nodes. It returns
// v unchanged when the tree holds no Sample.
//
func resolveValue(v Value, resolve func(string) string) Value {
	switch v := v.(type) {
	case *Op:
		args, changed := resolveValues(v.args, resolve)
		if !changed {
			return v
		}
		return &Op{kind: v.kind, args: args, shape: v.shape}
	case *Slice:
		if b := resolveValue(v.base, resolve); b != v.base {
			return &Slice{base: b, lo: v.lo, hi: v.hi}
		}
	case *Cat:
		if parts, changed := resolveValues(v.parts, resolve); changed {
			return &Cat{parts: parts}
		}
	case *Repl:
		if p := resolveValue(v.part, resolve); p != v.part {
			return &Repl{part: p, count: v.count}
		}
	case *Select:
		idx := resolveValue(v.index, resolve)
		choices, changed := resolveValues(v.choices, resolve)
		if idx != v.index || changed {
			return &Select{index: idx, choices: choices, shape: v.shape}
		}
	case *Sample:
		return &Sample{val: resolveValue(v.val, resolve), domain: resolve(v.domain), edges: v.edges}
	}
	return v
}

func resolveValues(vs []Value, resolve func(string) string) ([]Value, bool) {
	changed := false
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = resolveValue(v, resolve)
		if out[i] != v {
			changed = true
		}
	}
	if !changed {
		return vs, false
	}
	return out, true
}

// checkDomains verifies that every domain key with statements, and every
// domain referenced by a Sample, has a declared clock domain.
//
func (e *elaborator) checkDomains() error {
	for _, key := range e.frag.keys {
		if key == Comb {
			continue
		}
		if _, ok := e.frag.domains[key]; !ok {
			return errors.Errorf("statements bound to undeclared clock domain %q", key)
		}
	}
	var err error
	for _, key := range e.frag.keys {
		for _, s := range e.frag.stmts[key] {
			walkStmtValues(s, func(v Value) {
				if sm, ok := v.(*Sample); ok && err == nil {
					if _, declared := e.frag.domains[sm.domain]; !declared {
						err = errors.Errorf("sample in undeclared clock domain %q", sm.domain)
					}
				}
			})
		}
	}
	return err
}

// A sampleChain holds the hidden register pipeline lowered from Sample
// nodes over one (value, domain) pair.
//
type sampleChain struct {
	val    Value
	stages []*Signal
}

// lowerSamples replaces every Sample node with the tail of a register
// chain in the sampling domain, extending shared chains as needed.
//
func (e *elaborator) lowerSamples() {
	// lowering appends statements (and possibly domain keys), so index
	// through the live slices instead of ranging over snapshots
	for ki := 0; ki < len(e.frag.keys); ki++ {
		key := e.frag.keys[ki]
		for i := 0; i < len(e.frag.stmts[key]); i++ {
			e.frag.stmts[key][i] = e.lowerStmt(e.frag.stmts[key][i])
		}
	}
}

// lowerStmt rewrites a fragment-private statement copy; the value trees it
// references are shared and immutable, so lowering rebuilds them instead of
// mutating.
//
func (e *elaborator) lowerStmt(s Statement) Statement {
	switch s := s.(type) {
	case *Assign:
		s.src = e.lowerValue(s.src)
	case *Switch:
		s.test = e.lowerValue(s.test)
		for _, c := range s.cases {
			for i, b := range c.body {
				c.body[i] = e.lowerStmt(b)
			}
		}
	case *Assert:
		s.cond = e.lowerValue(s.cond)
	case *Assume:
		s.cond = e.lowerValue(s.cond)
	}
	return s
}

func (e *elaborator) lowerValue(v Value) Value {
	switch v := v.(type) {
	case *Op:
		if args, changed := e.lowerValues(v.args); changed {
			return &Op{kind: v.kind, args: args, shape: v.shape}
		}
	case *Slice:
		if b := e.lowerValue(v.base); b != v.base {
			return &Slice{base: b, lo: v.lo, hi: v.hi}
		}
	case *Cat:
		if parts, changed := e.lowerValues(v.parts); changed {
			return &Cat{parts: parts}
		}
	case *Repl:
		if p := e.lowerValue(v.part); p != v.part {
			return &Repl{part: p, count: v.count}
		}
	case *Select:
		idx := e.lowerValue(v.index)
		choices, changed := e.lowerValues(v.choices)
		if idx != v.index || changed {
			return &Select{index: idx, choices: choices, shape: v.shape}
		}
	case *Sample:
		return e.sampleStage(e.lowerValue(v.val), v.domain, v.edges)
	}
	return v
}

func (e *elaborator) lowerValues(vs []Value) ([]Value, bool) {
	changed := false
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = e.lowerValue(v)
		if out[i] != v {
			changed = true
		}
	}
	if !changed {
		return vs, false
	}
	return out, true
}

// sampleStage returns the signal holding val delayed by n active edges of
// the named domain, creating pipeline registers on first use.
//
func (e *elaborator) sampleStage(val Value, domain string, n int) *Signal {
	var chain *sampleChain
	for _, c := range e.samples[domain] {
		if Eq(c.val, val) {
			chain = c
			break
		}
	}
	if chain == nil {
		chain = &sampleChain{val: val}
		e.samples[domain] = append(e.samples[domain], chain)
	}
	for len(chain.stages) < n {
		e.nsample++
		sig := NewSignal("$sample$"+domain+"$"+strconv.Itoa(e.nsample), val.Shape())
		var src Value = val
		if k := len(chain.stages); k > 0 {
			src = chain.stages[k-1]
		}
		a, err := NewAssign(sig, src)
		if err != nil {
			panic(err) // a fresh signal is always assignable
		}
		e.addSignal(sig)
		e.addStmt(domain, a)
		chain.stages = append(chain.stages, sig)
	}
	return chain.stages[n-1]
}

// write records describe every assigned bit range together with the Switch
// branch path guarding it.
//
type pathElem struct {
	sw      *Switch
	caseIdx int
}

type writeRec struct {
	f    Field
	path []pathElem
	stmt *Assign   // innermost assignment, for diagnostics
	top  Statement // top-level statement, the settle evaluation unit
	idx  int       // program order of top
}

func collectWrites(stmts []Statement) []writeRec {
	var recs []writeRec
	for i, s := range stmts {
		recs = collectStmtWrites(recs, s, s, nil, i)
	}
	return recs
}

func collectStmtWrites(recs []writeRec, s, top Statement, path []pathElem, idx int) []writeRec {
	switch s := s.(type) {
	case *Assign:
		for _, f := range s.fields {
			recs = append(recs, writeRec{f: f, path: path, stmt: s, top: top, idx: idx})
		}
	case *Switch:
		for ci, c := range s.cases {
			sub := append(append([]pathElem(nil), path...), pathElem{sw: s, caseIdx: ci})
			for _, b := range c.body {
				recs = collectStmtWrites(recs, b, top, sub, idx)
			}
		}
	}
	return recs
}

func samePath(a, b []pathElem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// collectReads adds to set every signal a statement's evaluation depends
// on: assignment sources, switch tests and condition values. Assignment
// targets are not reads.
//
func collectReads(s Statement, set map[*Signal]bool) {
	switch s := s.(type) {
	case *Assign:
		walkValueSignals(s.src, set)
	case *Switch:
		walkValueSignals(s.test, set)
		for _, c := range s.cases {
			for _, b := range c.body {
				collectReads(b, set)
			}
		}
	case *Assert:
		walkValueSignals(s.cond, set)
	case *Assume:
		walkValueSignals(s.cond, set)
	}
}

func walkValueSignals(v Value, set map[*Signal]bool) {
	walkStmtValuesHelper(v, func(sig *Signal) { set[sig] = true })
}

func walkStmtValuesHelper(v Value, fn func(*Signal)) {
	switch v := v.(type) {
	case *Signal:
		fn(v)
	case *Op:
		for _, a := range v.args {
			walkStmtValuesHelper(a, fn)
		}
	case *Slice:
		walkStmtValuesHelper(v.base, fn)
	case *Cat:
		for _, p := range v.parts {
			walkStmtValuesHelper(p, fn)
		}
	case *Repl:
		walkStmtValuesHelper(v.part, fn)
	case *Select:
		walkStmtValuesHelper(v.index, fn)
		for _, c := range v.choices {
			walkStmtValuesHelper(c, fn)
		}
	case *Sample:
		walkStmtValuesHelper(v.val, fn)
	}
}

// walkStmtValues visits every value tree referenced by a statement.
//
func walkStmtValues(s Statement, fn func(Value)) {
	var rec func(Value)
	rec = func(v Value) {
		fn(v)
		switch v := v.(type) {
		case *Op:
			for _, a := range v.args {
				rec(a)
			}
		case *Slice:
			rec(v.base)
		case *Cat:
			for _, p := range v.parts {
				rec(p)
			}
		case *Repl:
			rec(v.part)
		case *Select:
			rec(v.index)
			for _, c := range v.choices {
				rec(c)
			}
		case *Sample:
			rec(v.val)
		}
	}
	switch s := s.(type) {
	case *Assign:
		rec(s.src)
	case *Switch:
		rec(s.test)
		for _, c := range s.cases {
			for _, b := range c.body {
				walkStmtValues(b, fn)
			}
		}
	case *Assert:
		rec(s.cond)
	case *Assume:
		rec(s.cond)
	}
}

// checkDrivers rejects unconditional multiple drivers within one domain,
// signals driven from more than one domain, and driven input ports.
//
func (e *elaborator) checkDrivers() error {
	inputs := make(map[*Signal]bool, len(e.frag.inputs))
	for _, sig := range e.frag.inputs {
		inputs[sig] = true
	}
	domainOf := e.frag.driver
	for _, key := range e.frag.keys {
		recs := collectWrites(e.frag.stmts[key])
		for i := range recs {
			sig := recs[i].f.Sig
			if inputs[sig] {
				return errors.Errorf("input port %s is driven by a statement", sig)
			}
			if prev, ok := domainOf[sig]; ok && prev != key {
				return &DomainConflictError{Signal: sig, Domains: [2]string{prev, key}}
			}
			domainOf[sig] = key
			for j := 0; j < i; j++ {
				if recs[i].f.overlaps(recs[j].f) && samePath(recs[i].path, recs[j].path) {
					return &DriverConflictError{
						Signal: sig,
						Domain: key,
						First:  recs[j].stmt,
						Second: recs[i].stmt,
					}
				}
			}
		}
	}
	return nil
}

// orderComb builds per-signal combinational clusters and sorts them
// topologically by their read dependencies. A cycle that no synchronously
// driven signal breaks is fatal.
//
func (e *elaborator) orderComb() error {
	recs := collectWrites(e.frag.stmts[Comb])

	type cluster struct {
		c     *CombCluster
		reads map[*Signal]bool
		first int // program order of first write, for stable ordering
	}
	bySig := make(map[*Signal]*cluster)
	var order []*cluster
	for _, r := range recs {
		cl := bySig[r.f.Sig]
		if cl == nil {
			cl = &cluster{
				c:     &CombCluster{Sig: r.f.Sig},
				reads: make(map[*Signal]bool),
				first: r.idx,
			}
			bySig[r.f.Sig] = cl
			order = append(order, cl)
		}
		if n := len(cl.c.Stmts); n == 0 || cl.c.Stmts[n-1] != r.top {
			cl.c.Stmts = append(cl.c.Stmts, r.top)
			collectReads(r.top, cl.reads)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].first < order[j].first })

	for _, cl := range order {
		for sig := range cl.reads {
			cl.c.Reads = append(cl.c.Reads, sig)
		}
		sort.Slice(cl.c.Reads, func(i, j int) bool { return cl.c.Reads[i].id < cl.c.Reads[j].id })
	}

	// Kahn's algorithm over clusters; an edge u->v exists when v reads the
	// signal u drives. Only combinationally driven signals appear as
	// nodes, so a register anywhere on a cycle breaks it.
	indeg := make(map[*cluster]int)
	succ := make(map[*cluster][]*cluster)
	for _, v := range order {
		for _, sig := range v.c.Reads {
			if u := bySig[sig]; u != nil && u != v {
				succ[u] = append(succ[u], v)
				indeg[v]++
			} else if u == v {
				// direct self-dependency is a one-signal loop
				return &CombinationalLoopError{Signals: []*Signal{v.c.Sig}}
			}
		}
	}
	var ready, sorted []*cluster
	for _, cl := range order {
		if indeg[cl] == 0 {
			ready = append(ready, cl)
		}
	}
	for len(ready) > 0 {
		cl := ready[0]
		ready = ready[1:]
		sorted = append(sorted, cl)
		for _, v := range succ[cl] {
			if indeg[v]--; indeg[v] == 0 {
				// keep program order among simultaneously ready clusters
				i := sort.Search(len(ready), func(i int) bool { return ready[i].first > v.first })
				ready = append(ready, nil)
				copy(ready[i+1:], ready[i:])
				ready[i] = v
			}
		}
	}
	if len(sorted) < len(order) {
		left := make(map[*cluster]bool)
		for _, cl := range order {
			left[cl] = true
		}
		for _, cl := range sorted {
			delete(left, cl)
		}
		// extract one concrete cycle for the diagnostic: every leftover
		// cluster has a leftover predecessor, so walking predecessors must
		// revisit a cluster
		pred := make(map[*cluster]*cluster)
		for u, vs := range succ {
			if !left[u] {
				continue
			}
			for _, v := range vs {
				if left[v] {
					pred[v] = u
				}
			}
		}
		var start *cluster
		for _, cl := range order {
			if left[cl] {
				start = cl
				break
			}
		}
		visited := make(map[*cluster]int)
		var path []*cluster
		for cl := start; ; cl = pred[cl] {
			if at, ok := visited[cl]; ok {
				path = path[at:]
				break
			}
			visited[cl] = len(path)
			path = append(path, cl)
		}
		// path was collected walking backwards; reverse into dependency order
		sigs := make([]*Signal, 0, len(path))
		for i := len(path) - 1; i >= 0; i-- {
			sigs = append(sigs, path[i].c.Sig)
		}
		return &CombinationalLoopError{Signals: sigs}
	}
	for _, cl := range sorted {
		e.frag.comb = append(e.frag.comb, cl.c)
	}
	return nil
}
