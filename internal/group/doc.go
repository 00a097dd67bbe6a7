// Package group implements the scheduler's interior nodes: the Group
// protocol shared by SequentialGroup and ParallelGroup, and the tagged
// Member union that lets a group hold either a subgroup or a module
// without a polymorphic base-class slice of interface{}. Modelled after
// the worker-loop-plus-tagged-node shape of the teacher's DAG executor,
// generalized from a single fixed graph into a composable, re-iterable
// tree.
package group
