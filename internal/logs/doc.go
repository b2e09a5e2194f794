// Package logs reads the daemon's JSON log file for `wavedeck logs`.
//
// Last returns the trailing lines with bounded memory, and Follow polls for
// appended lines until its context ends. Both accept a Filter so a single
// job's records can be pulled out of the shared file by job ID.
package logs
