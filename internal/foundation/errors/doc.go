// Package errors provides the classified error foundation for breaktimed.
//
// Every error that crosses a package boundary carries a category (what
// subsystem failed), a severity (how bad it is) and a retry strategy (what
// the caller may do about it). The daemon loop routes on these instead of
// string matching: lock errors feed the retry/degradation path, notifier
// errors are logged and dropped, activation errors trigger shutdown.
package errors
