// Package workspace manages the per-run scratch directory that holds worker
// output files. The directory is timestamped (e.g. buildbot-20260102-150405-123456)
// and removed once the run finishes.
package workspace
