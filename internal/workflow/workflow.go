// Package workflow sequences the native and on-target toolchain test runs.
//
// Every step is timed by a Stepper. A failing step aborts its workflow
// with an *Error whose Kind says which layer failed; the guest and the
// NFS export acquired for on-target testing are always released before
// the failure reaches the caller.
package workflow
