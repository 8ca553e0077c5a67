// Package results holds the ordered ledger of stage outcomes for one pipeline
// run (or one worker process), plus the records restored from a previous,
// completed run for resumption.
package results
