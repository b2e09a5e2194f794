// Package jobs implements the single-flight job orchestrator.
//
// At most one job runs at a time. Submit moves the orchestrator from idle to
// running under one mutex and starts the job's runner on its own goroutine;
// a second Submit while a job is running, or while a finished job's result has
// not been collected, fails with services.ErrBusy. Poll is non-blocking and
// hands over the terminal result exactly once, returning the orchestrator to
// idle.
//
// Runners (acquire, transcode, separate, pitch) adapt the external tool
// clients, the library, and the pitch engine to the Runner interface. Every
// runner error becomes a failed result whose kind comes from
// services.Classify; panics are recovered as processing faults. There is no
// cancellation: a job started by a request keeps running after that request
// goes away.
package jobs
