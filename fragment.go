// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

// A CombCluster groups the combinational statements that may drive one
// signal. Clusters are the unit of re-evaluation during simulation settle:
// replaying a cluster's statements in program order, starting from the
// signal's reset value, yields the signal's new value.
//
type CombCluster struct {
	Sig   *Signal
	Stmts []Statement // program order; a statement may belong to several clusters
	Reads []*Signal   // signals the cluster's statements read
}

// A Fragment is the flattened, immutable netlist produced by Elaborate.
// It owns copies of all statements, keyed by resolved domain name, and the
// full signal set of the design. Simulation state lives outside of it: a
// Fragment is read-only for its whole lifetime and can back any number of
// concurrent simulation or export runs.
//
type Fragment struct {
	inputs  []*Signal
	outputs []*Signal
	domains map[string]*ClockDomain
	dnames  []string // declared domain names, declaration order
	stmts   map[string][]Statement
	keys    []string // domain keys, declaration order
	signals []*Signal
	driver  map[*Signal]string // driving domain per driven signal
	comb    []*CombCluster     // topological evaluation order
}

// Inputs returns the input port signals. The caller must not modify the
// returned slice.
func (f *Fragment) Inputs() []*Signal { return f.inputs }

// Outputs returns the output port signals.
func (f *Fragment) Outputs() []*Signal { return f.outputs }

// Domain returns the clock domain registered under the given resolved
// name, or nil.
func (f *Fragment) Domain(name string) *ClockDomain { return f.domains[name] }

// DomainNames returns the resolved names of all declared clock domains, in
// declaration order.
func (f *Fragment) DomainNames() []string { return f.dnames }

// Stmts returns the statement list bound to the given domain name (Comb
// for combinational statements), in program order.
func (f *Fragment) Stmts(domain string) []Statement { return f.stmts[domain] }

// StmtDomains returns all domain keys that have statements, in first-use
// order.
func (f *Fragment) StmtDomains() []string { return f.keys }

// Signals returns every signal of the design in a stable traversal order,
// including clock and reset signals.
func (f *Fragment) Signals() []*Signal { return f.signals }

// DriverDomain returns the name of the domain driving sig, or "" when sig
// is undriven (an input port, a clock, or a cell only written by test
// processes).
func (f *Fragment) DriverDomain(sig *Signal) string { return f.driver[sig] }

// CombClusters returns the combinational evaluation order computed at
// elaboration time.
func (f *Fragment) CombClusters() []*CombCluster { return f.comb }
