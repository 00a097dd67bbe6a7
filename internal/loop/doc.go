// Package loop implements the scheduler's worker-pool driver: Loop owns a
// root group.Group and a fixed-size pool of preemptively-scheduled OS
// goroutines, each repeatedly calling run_next/wait_for_availability on
// the root until told to stop. Grounded on the teacher's own worker-pool
// dispatch shape (internal/dag/executor.go's Run/worker pair), adapted
// from a single fixed DAG pass into a re-iterable tree.
package loop
