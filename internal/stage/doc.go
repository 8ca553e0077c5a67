// Package stage runs one named unit of pipeline work through a fixed
// lifecycle: skip check, resume check, begin, execute, classify, finish and
// record. Every call to Run appends exactly one record to the ledger.
package stage
