// Package preflight provides readiness checks for the filesystem paths,
// external tools, and pitch backend that wavedeck depends on.
//
// The daemon runs RunAll at startup and logs every failed check; the CLI
// "wavedeck deps" command renders the same results as a table. Checks never
// abort startup on their own: a missing optional tool only disables the job
// kinds that need it.
package preflight
