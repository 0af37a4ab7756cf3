// Package cli constructs the repostamp command-line interface, wiring the
// Cobra command hierarchy, the Viper configuration loader, and zap logging.
package cli
