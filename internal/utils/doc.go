// Package utils holds the configuration loader and logger factory shared by the CLI.
//
// ConfigurationLoader layers defaults, embedded YAML, an optional configuration
// file, and REPOSTAMP_ environment variables through Viper. LoggerFactory builds
// zap loggers that can additionally tee into a rotating log file.
package utils
