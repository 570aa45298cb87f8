// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import "github.com/pkg/errors"

// A Module is the mutable build-time container for a piece of a design:
// it owns its local signals, its statements keyed by domain name, its
// locally declared clock domains and its submodule instances. Modules are
// only ever read by Elaborate, which copies what it needs into a Fragment;
// a Fragment keeps no reference back to the modules it was built from.
//
// All construction goes through explicit Module methods: there is no
// ambient "current module" state.
//
type Module struct {
	name    string
	signals []*Signal
	stmts   map[string][]Statement
	order   []string // domain keys in first-use order, for reproducible walks
	domains []*ClockDomain
	subs    []*instance
	inputs  []*Signal
	outputs []*Signal
}

// An instance nests a submodule into its parent, optionally renaming the
// domains the child references.
//
type instance struct {
	mod     *Module
	renames map[string]string // child domain name -> parent domain name
}

// NewModule returns an empty module.
//
func NewModule(name string) *Module {
	return &Module{name: name, stmts: make(map[string][]Statement)}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Signal declares a module-local signal with a reset value of zero.
//
func (m *Module) Signal(name string, s Shape) *Signal {
	sig := NewSignal(name, s)
	m.signals = append(m.signals, sig)
	return sig
}

// SignalReset declares a module-local signal with the given reset value.
//
func (m *Module) SignalReset(name string, s Shape, reset int64) *Signal {
	sig := NewSignalReset(name, s, reset)
	m.signals = append(m.signals, sig)
	return sig
}

// AddDomain declares a clock domain in this module. The domain's clock and
// reset signals become part of the design.
//
func (m *Module) AddDomain(d *ClockDomain) {
	m.domains = append(m.domains, d)
}

// Add binds statements to the named domain. Use Comb for combinational
// statements. Statement order is program order: when several statements
// apply to the same bits during one evaluation, the last one added wins.
//
func (m *Module) Add(domain string, stmts ...Statement) {
	if _, ok := m.stmts[domain]; !ok {
		m.order = append(m.order, domain)
	}
	m.stmts[domain] = append(m.stmts[domain], stmts...)
}

// Assign builds an assignment of src to target and adds it to the named
// domain.
//
func (m *Module) Assign(domain string, target, src Value) error {
	a, err := NewAssign(target, src)
	if err != nil {
		return errors.Wrap(err, "module "+m.name)
	}
	m.Add(domain, a)
	return nil
}

// AssignLit is Assign with a literal source, converted through the Valuer
// interface.
//
func (m *Module) AssignLit(domain string, target Value, src Valuer) error {
	v, err := src.RTLValue()
	if err != nil {
		return errors.Wrap(err, "module "+m.name)
	}
	return m.Assign(domain, target, v)
}

// AddSub nests a submodule. The child's domain references resolve in this
// module's scope.
//
func (m *Module) AddSub(sub *Module) {
	m.subs = append(m.subs, &instance{mod: sub})
}

// AddSubRenamed nests a submodule, renaming the child's domain references:
// a child statement bound to domain k is bound to renames[k] in this
// module's scope.
//
func (m *Module) AddSubRenamed(sub *Module, renames map[string]string) {
	r := make(map[string]string, len(renames))
	for k, v := range renames {
		r[k] = v
	}
	m.subs = append(m.subs, &instance{mod: sub, renames: r})
}

// Input marks a signal as an input port. Port markers only take effect on
// the module passed to Elaborate: a nested module's ports elaborate to
// plain internal wires. Input ports must not be driven by any statement.
//
func (m *Module) Input(sig *Signal) {
	m.inputs = append(m.inputs, sig)
}

// Output marks a signal as an output port of the elaborated fragment.
//
func (m *Module) Output(sig *Signal) {
	m.outputs = append(m.outputs, sig)
}
