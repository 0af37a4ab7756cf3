// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec behind the CommandRunner abstraction, exposes ShellExecutor
// to run git with consistent logging, and reports command lifecycle events to
// observers so repostamp can trace every clone and pull it performs.
package execshell
