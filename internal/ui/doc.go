// Package ui provides helpers for formatting human-readable console output.
//
// It turns git lifecycle events into short progress lines for console logging
// and prints the per-repository summary at the end of a bootstrap run, while
// detailed telemetry continues to flow through structured loggers.
package ui
