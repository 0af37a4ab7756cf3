// Package render produces the Dockerfile and GitHub Actions workflow injected
// into every bootstrapped repository.
//
// Rendering is a pure function of the repository descriptor, the override
// configuration, and the template Settings: identical inputs always yield
// byte-identical artifacts. The workflow is assembled as a typed document and
// serialized with yaml.v3; credential references stay symbolic so GitHub
// Actions resolves them at run time.
package render
