// Package spindle owns the pair-candidate detection engine.
//
// Responsibilities: the parsed track/spot data model (Arena), pairwise
// distance time series over two tracks' temporal overlap, congression
// run-length measurement, the six-stage candidate filter cascade, and the
// classifier-ready feature table.
// Key types: Arena, Track, Spot, PairSeries, Cell, FeatureTable.
//
// Everything here is pure, synchronous computation over in-memory records:
// no I/O, no hidden state. Inputs come from internal/trackmate (parsing) and
// internal/register (border bounds); output goes to CSV, internal/pairdb and
// internal/report.
package spindle
