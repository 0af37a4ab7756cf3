// Package bootstrap stamps the standard Dockerfile and CI workflow into every
// repository of an account that matches a name prefix.
//
// Service lists the repositories once, then processes each one on a bounded
// worker pool: synchronize the working copy, load overrides, render, write.
// A failure in any stage is recorded against that repository only; siblings
// keep running and the aggregate is reported once all tasks finish.
package bootstrap
