// Package textutil provides filename and display-text helpers shared by the
// library, the job runners, and the CLI.
//
// Downloaded titles arrive with arbitrary Unicode and shell-hostile
// characters. SanitizeFileName folds them to a form that is safe on every
// filesystem wavedeck writes to while keeping the title readable.
package textutil
