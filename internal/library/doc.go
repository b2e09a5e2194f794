// Package library tracks the files wavedeck has produced: uploaded takes in
// the recordings directory, the most recently acquired track, and the stem
// map of the last successful separation.
//
// State is in-memory only. A daemon restart forgets the current stems and
// the last acquired file; everything on disk under the output root stays.
package library
