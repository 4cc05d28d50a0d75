// Package atomics provides small atomic value containers used throughout the
// toolkit.
//
// Three containers are provided:
//
//   - Bool: a boolean with compare-and-set, built directly on sync/atomic
//   - Int64: a numeric cell with CAS-retry update semantics (monotonic
//     maximums, transform-and-get loops)
//   - Cell[T]: a generic single-slot container for arbitrary comparable
//     values, serialized by one mutex
//
// All three guarantee that external observers never see a torn value. Bool and
// Int64 map onto native atomic primitives; Cell uses a mutex because Go has no
// native CAS on arbitrary value types.
package atomics
