// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package export serializes elaborated fragments to a canonical CBOR form.

The writer flattens the value graph into a node table indexed in first-use
order and encodes with deterministic (canonical) CBOR options, so a given
fragment always serializes to the same byte sequence. The format is a
stable interchange surface for netlist consumers; it is not meant to be
read back into a live design (signals lose their identity across runs).
*/
package export

import (
	"io"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/db47h/rtl"
)

// Version identifies the encoding layout. Bump on any incompatible change.
const Version = 1

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// A Big is a serialized big.Int: sign plus big-endian magnitude.
//
type Big struct {
	Neg bool   `cbor:"n,omitempty"`
	Abs []byte `cbor:"a"`
}

func newBig(v *big.Int) Big {
	return Big{Neg: v.Sign() < 0, Abs: v.Bytes()}
}

// Int returns the decoded integer value.
func (b Big) Int() *big.Int {
	v := new(big.Int).SetBytes(b.Abs)
	if b.Neg {
		v.Neg(v)
	}
	return v
}

// A SignalRec describes one signal of the fragment. Signals are referenced
// elsewhere by their index in the signal table.
//
type SignalRec struct {
	Name   string `cbor:"name"`
	Width  int    `cbor:"width"`
	Signed bool   `cbor:"signed,omitempty"`
	Reset  Big    `cbor:"reset"`
	Driver string `cbor:"driver,omitempty"`
	Port   string `cbor:"port,omitempty"` // "in", "out" or empty
}

// A DomainRec describes one clock domain.
//
type DomainRec struct {
	Name    string `cbor:"name"`
	Clk     int    `cbor:"clk"`
	Rst     int    `cbor:"rst"` // -1 when the domain has no reset
	Falling bool   `cbor:"falling,omitempty"`
	Async   bool   `cbor:"async,omitempty"`
}

// A NodeRec is one value-graph node. Kind selects which fields are
// meaningful; children are node table indexes.
//
type NodeRec struct {
	Kind    string `cbor:"kind"`
	Sig     int    `cbor:"sig,omitempty"`     // signal
	Val     Big    `cbor:"val,omitempty"`     // const
	Width   int    `cbor:"width,omitempty"`   // const
	Signed  bool   `cbor:"signed,omitempty"`  // const
	Op      string `cbor:"op,omitempty"`      // op
	Args    []int  `cbor:"args,omitempty"`    // op, cat, select choices
	Base    int    `cbor:"base,omitempty"`    // slice, repl
	Lo      int    `cbor:"lo,omitempty"`      // slice
	Hi      int    `cbor:"hi,omitempty"`      // slice
	Count   int    `cbor:"count,omitempty"`   // repl
	Index   int    `cbor:"index,omitempty"`   // select
	Choices []int  `cbor:"choices,omitempty"` // select
}

// A CaseRec is one switch branch.
//
type CaseRec struct {
	Patterns []Big     `cbor:"patterns,omitempty"` // empty for default
	Body     []StmtRec `cbor:"body,omitempty"`
}

// A StmtRec is one statement. Kind is "assign", "switch", "assert" or
// "assume".
//
type StmtRec struct {
	Kind   string    `cbor:"kind"`
	Target int       `cbor:"target,omitempty"`
	Src    int       `cbor:"src,omitempty"`
	Test   int       `cbor:"test,omitempty"`
	Cases  []CaseRec `cbor:"cases,omitempty"`
	Cond   int       `cbor:"cond,omitempty"`
	Msg    string    `cbor:"msg,omitempty"`
}

// A DomainStmts pairs a domain key with its statement list, in program
// order.
//
type DomainStmts struct {
	Domain string    `cbor:"domain"`
	Stmts  []StmtRec `cbor:"stmts"`
}

// A File is the top-level encoded fragment.
//
type File struct {
	Version int           `cbor:"version"`
	Signals []SignalRec   `cbor:"signals"`
	Domains []DomainRec   `cbor:"domains"`
	Nodes   []NodeRec     `cbor:"nodes"`
	Stmts   []DomainStmts `cbor:"stmts"`
}

type encoder struct {
	frag    *rtl.Fragment
	sigIdx  map[*rtl.Signal]int
	nodeIdx map[rtl.Value]int
	file    *File
}

// Build flattens frag into its serializable form. The result is fully
// deterministic: table orders follow the fragment's stable iteration
// orders.
//
func Build(frag *rtl.Fragment) (*File, error) {
	e := &encoder{
		frag:    frag,
		sigIdx:  make(map[*rtl.Signal]int),
		nodeIdx: make(map[rtl.Value]int),
		file:    &File{Version: Version},
	}
	ports := make(map[*rtl.Signal]string)
	for _, sig := range frag.Inputs() {
		ports[sig] = "in"
	}
	for _, sig := range frag.Outputs() {
		ports[sig] = "out"
	}
	for i, sig := range frag.Signals() {
		e.sigIdx[sig] = i
		sh := sig.Shape()
		e.file.Signals = append(e.file.Signals, SignalRec{
			Name:   sig.Name(),
			Width:  sh.Width,
			Signed: sh.Signed,
			Reset:  newBig(sig.Reset()),
			Driver: frag.DriverDomain(sig),
			Port:   ports[sig],
		})
	}
	for _, dn := range frag.DomainNames() {
		d := frag.Domain(dn)
		rec := DomainRec{
			Name:    dn,
			Clk:     e.sigIdx[d.Clk()],
			Rst:     -1,
			Falling: d.ActiveEdge() == rtl.Falling,
			Async:   d.ResetStyle() == rtl.AsyncReset,
		}
		if d.Rst() != nil {
			rec.Rst = e.sigIdx[d.Rst()]
		}
		e.file.Domains = append(e.file.Domains, rec)
	}
	for _, dn := range frag.StmtDomains() {
		stmts, err := e.stmts(frag.Stmts(dn))
		if err != nil {
			return nil, err
		}
		e.file.Stmts = append(e.file.Stmts, DomainStmts{Domain: dn, Stmts: stmts})
	}
	return e.file, nil
}

func (e *encoder) stmts(stmts []rtl.Statement) ([]StmtRec, error) {
	out := make([]StmtRec, 0, len(stmts))
	for _, st := range stmts {
		rec, err := e.stmt(st)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *encoder) stmt(st rtl.Statement) (StmtRec, error) {
	switch st := st.(type) {
	case *rtl.Assign:
		target, err := e.node(st.Target())
		if err != nil {
			return StmtRec{}, err
		}
		src, err := e.node(st.Src())
		if err != nil {
			return StmtRec{}, err
		}
		return StmtRec{Kind: "assign", Target: target, Src: src}, nil
	case *rtl.Switch:
		test, err := e.node(st.Test())
		if err != nil {
			return StmtRec{}, err
		}
		rec := StmtRec{Kind: "switch", Test: test}
		for _, c := range st.Cases() {
			cr := CaseRec{}
			for _, p := range c.Patterns() {
				cr.Patterns = append(cr.Patterns, newBig(p))
			}
			body, err := e.stmts(c.Body())
			if err != nil {
				return StmtRec{}, err
			}
			cr.Body = body
			rec.Cases = append(rec.Cases, cr)
		}
		return rec, nil
	case *rtl.Assert:
		cond, err := e.node(st.Cond())
		if err != nil {
			return StmtRec{}, err
		}
		return StmtRec{Kind: "assert", Cond: cond, Msg: st.Msg()}, nil
	case *rtl.Assume:
		cond, err := e.node(st.Cond())
		if err != nil {
			return StmtRec{}, err
		}
		return StmtRec{Kind: "assume", Cond: cond, Msg: st.Msg()}, nil
	default:
		return StmtRec{}, errors.Errorf("export: unknown statement type %T", st)
	}
}

// node interns v into the node table, children first, and returns its
// index. Shared subtrees encode once.
//
func (e *encoder) node(v rtl.Value) (int, error) {
	if i, ok := e.nodeIdx[v]; ok {
		return i, nil
	}
	var rec NodeRec
	switch v := v.(type) {
	case *rtl.Signal:
		rec = NodeRec{Kind: "signal", Sig: e.sigIdx[v]}
	case *rtl.Const:
		sh := v.Shape()
		rec = NodeRec{Kind: "const", Val: newBig(v.Int()), Width: sh.Width, Signed: sh.Signed}
	case *rtl.Op:
		rec = NodeRec{Kind: "op", Op: v.Kind().String()}
		for _, a := range v.Args() {
			i, err := e.node(a)
			if err != nil {
				return 0, err
			}
			rec.Args = append(rec.Args, i)
		}
	case *rtl.Slice:
		base, err := e.node(v.Base())
		if err != nil {
			return 0, err
		}
		lo, hi := v.Range()
		rec = NodeRec{Kind: "slice", Base: base, Lo: lo, Hi: hi}
	case *rtl.Cat:
		rec = NodeRec{Kind: "cat"}
		for _, p := range v.Parts() {
			i, err := e.node(p)
			if err != nil {
				return 0, err
			}
			rec.Args = append(rec.Args, i)
		}
	case *rtl.Repl:
		base, err := e.node(v.Part())
		if err != nil {
			return 0, err
		}
		rec = NodeRec{Kind: "repl", Base: base, Count: v.Count()}
	case *rtl.Select:
		index, err := e.node(v.Index())
		if err != nil {
			return 0, err
		}
		rec = NodeRec{Kind: "select", Index: index}
		for _, c := range v.Choices() {
			i, err := e.node(c)
			if err != nil {
				return 0, err
			}
			rec.Choices = append(rec.Choices, i)
		}
	case *rtl.Sample:
		// samples are lowered away during elaboration
		return 0, errors.New("export: fragment contains an unlowered sample")
	default:
		return 0, errors.Errorf("export: unknown value type %T", v)
	}
	i := len(e.file.Nodes)
	e.file.Nodes = append(e.file.Nodes, rec)
	e.nodeIdx[v] = i
	return i, nil
}

// Marshal encodes frag to canonical CBOR.
//
func Marshal(frag *rtl.Fragment) ([]byte, error) {
	f, err := Build(frag)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(f)
}

// Write encodes frag to w.
//
func Write(w io.Writer, frag *rtl.Fragment) error {
	b, err := Marshal(frag)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return errors.Wrap(err, "export")
}

// Unmarshal decodes an encoded fragment file. It validates the version but
// not the internal consistency of the tables.
//
func Unmarshal(b []byte) (*File, error) {
	var f File
	if err := decMode.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "export")
	}
	if f.Version != Version {
		return nil, errors.Errorf("export: unsupported version %d", f.Version)
	}
	return &f, nil
}
