// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"math/big"
	"strconv"

	"github.com/db47h/rtl"
)

// A Change is one committed value change: at time Time, Signal took the
// value Value. The ordered stream of changes of a run fully determines the
// observable behaviour of the design; a waveform writer is just a Change
// consumer.
//
type Change struct {
	Time   uint64
	Signal *rtl.Signal
	Value  *big.Int
}

func (c Change) String() string {
	return strconv.FormatUint(c.Time, 10) + " " + c.Signal.String() + " = " + c.Value.String()
}

// A Recorder collects the change stream of a run, mainly for tests and
// trace comparison.
//
type Recorder struct {
	Changes []Change
}

// Attach subscribes the recorder to a simulator's change feed.
//
func (r *Recorder) Attach(s *Simulator) {
	s.OnChange(func(c Change) { r.Changes = append(r.Changes, c) })
}

// Equal reports whether two recorded traces are identical.
//
func (r *Recorder) Equal(o *Recorder) bool {
	if len(r.Changes) != len(o.Changes) {
		return false
	}
	for i, c := range r.Changes {
		d := o.Changes[i]
		if c.Time != d.Time || c.Signal != d.Signal || c.Value.Cmp(d.Value) != 0 {
			return false
		}
	}
	return true
}
