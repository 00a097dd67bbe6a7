// Package module implements the scheduler's leaf unit of work: Module, its
// RunningToken mutual-exclusion device, and the cooperative Idle/StartIdling
// yields a module uses to keep its worker thread useful while it
// conceptually blocks.
//
// A Module is built from plain function values (OnRun, and optionally
// CanRun/HandleException) rather than by subclassing a base class — Go has
// no inheritance, and the teacher repo's own leaves (modules/http_client,
// modules/socketio) are likewise assembled from free functions registered
// against a fixed struct shape rather than via embedding.
package module
