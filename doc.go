/*
Package rtl provides an intermediate representation for synchronous digital
logic, an elaborator that flattens a module hierarchy into a single netlist,
and (in the sim subpackage) a cycle-accurate event-driven simulator for that
netlist.

Designs are built as immutable expression trees (Value) stored into named
cells (Signal) by statements bound to clock domains. Elaborate turns a tree
of modules into a Fragment, the read-only artifact consumed by the simulator
or handed to an external synthesis toolchain.

*/
package rtl
