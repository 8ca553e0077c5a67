// Package parallel runs independent units of work in separate OS processes.
//
// A worker process is the current executable started again with
// BUILDBOT_PARALLEL_WORKER=1 in its environment. Programs that use this
// package must call ServeIfWorker before doing anything else in main (and in
// TestMain for tests that start workers); in a worker process it serves the
// request from the parent and exits.
//
// Work crosses the process boundary by name: tasks are registered with
// Register from package init functions so that parent and worker agree on
// them, and a Step binds a task name to JSON-encoded arguments.
//
// Each worker's stdout and stderr go to one temporary file that the parent
// replays to its own output. RunParallelSteps replays workers strictly in
// submission order and collects every failure into one AggregateError.
package parallel
